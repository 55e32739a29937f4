package access

import (
	"testing"

	"github.com/R3E-Network/starlane/internal/point"
)

func TestOwnerHasFullAccess(t *testing.T) {
	owner, _ := point.New("localhost")
	on, _ := point.New("localhost:app-0")
	got := Decide(owner, on, owner, nil)
	if !got.Has(PermDelete) {
		t.Error("owner should hold delete access")
	}
}

func TestGrantAppliesToDescendants(t *testing.T) {
	to, _ := point.New("localhost:user-1")
	scope, _ := point.New("localhost:app-0")
	target, _ := point.New("localhost:app-0:db-0")
	owner, _ := point.New("localhost")

	g := Grant{To: to, On: scope, Access: AccessSet{PermRead: true}}
	got := Decide(to, target, owner, []Grant{g})
	if !got.Has(PermRead) {
		t.Error("grant should apply to descendant of its scope")
	}
	if got.Has(PermWrite) {
		t.Error("grant should not confer ungranted permissions")
	}
}

func TestGrantDoesNotApplyOutsideScope(t *testing.T) {
	to, _ := point.New("localhost:user-1")
	scope, _ := point.New("localhost:app-0")
	other, _ := point.New("localhost:app-1")
	owner, _ := point.New("localhost")

	g := Grant{To: to, On: scope, Access: AccessSet{PermRead: true}}
	got := Decide(to, other, owner, []Grant{g})
	if len(got) != 0 {
		t.Errorf("expected empty access set, got %v", got)
	}
}

func TestDecideWithNoGrants(t *testing.T) {
	to, _ := point.New("localhost:user-1")
	on, _ := point.New("localhost:app-0")
	owner, _ := point.New("localhost")
	got := Decide(to, on, owner, nil)
	if len(got) != 0 {
		t.Errorf("expected empty access, got %v", got)
	}
}
