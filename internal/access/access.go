// Package access implements Starlane's owner/grant model: selector-scoped
// access grants and the decision that resolves a (to, on) pair to an access
// set.
package access

import (
	"fmt"

	"github.com/R3E-Network/starlane/internal/point"
)

// Permission is one capability a grant can carry.
type Permission string

const (
	PermRead   Permission = "Read"
	PermWrite  Permission = "Write"
	PermExec   Permission = "Exec"
	PermCreate Permission = "Create"
	PermDelete Permission = "Delete"
)

// AccessSet is the resolved set of permissions a subject holds on an object.
type AccessSet map[Permission]bool

func (s AccessSet) Has(p Permission) bool { return s[p] }

func (s AccessSet) Union(o AccessSet) AccessSet {
	out := make(AccessSet, len(s)+len(o))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range o {
		if v {
			out[k] = true
		}
	}
	return out
}

// Grant binds a selector-scoped permission set to a subject over an object
// point (and its descendants, per registry.md §4.6 grant semantics).
type Grant struct {
	ID         string
	To         point.Point // subject
	On         point.Point // object; the grant applies to On and its descendants
	Access     AccessSet
	ByParticle point.Point // who created/owns the grant
}

func (g Grant) String() string {
	return fmt.Sprintf("grant(%s -> %s: %v)", g.To, g.On, g.Access)
}

// AppliesTo reports whether g's object scope covers target: exact match or
// a strict ancestor relationship.
func (g Grant) AppliesTo(target point.Point) bool {
	return g.On.Equal(target) || g.On.IsAncestorOf(target)
}

// Decide resolves the access set a subject (to) holds on an object (on),
// given the owner of the object and the grants that apply. The owner always
// holds full access regardless of grants.
func Decide(to, on, owner point.Point, grants []Grant) AccessSet {
	if to.Equal(owner) {
		return AccessSet{PermRead: true, PermWrite: true, PermExec: true, PermCreate: true, PermDelete: true}
	}
	result := AccessSet{}
	for _, g := range grants {
		if !g.To.Equal(to) {
			continue
		}
		if !g.AppliesTo(on) {
			continue
		}
		result = result.Union(g.Access)
	}
	return result
}
