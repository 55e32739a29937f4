package kind

import "testing"

func TestResolveNoSub(t *testing.T) {
	k, err := Resolve(Template{Base: BaseSpace})
	if err != nil {
		t.Fatal(err)
	}
	if k.Base != BaseSpace || !k.Sub.IsZero() {
		t.Errorf("Resolve() = %+v", k)
	}
}

func TestResolveRequiresSub(t *testing.T) {
	_, err := Resolve(Template{Base: BaseArtifact})
	if err == nil {
		t.Fatal("expected ErrUnderSpecified")
	}
	var use *ErrUnderSpecified
	if !asUnderSpecified(err, &use) {
		t.Fatalf("error type = %T, want *ErrUnderSpecified", err)
	}
	if len(use.RequiredVariants) == 0 {
		t.Error("expected non-empty RequiredVariants")
	}
}

func asUnderSpecified(err error, target **ErrUnderSpecified) bool {
	if e, ok := err.(*ErrUnderSpecified); ok {
		*target = e
		return true
	}
	return false
}

func TestResolveWithSub(t *testing.T) {
	sub := Sub{Variant: "Raw"}
	k, err := Resolve(Template{Base: BaseArtifact, Sub: &sub})
	if err != nil {
		t.Fatal(err)
	}
	if k.Sub.Variant != "Raw" {
		t.Errorf("Sub = %+v", k.Sub)
	}
}

func TestKindString(t *testing.T) {
	k := Kind{Base: BaseUserBase, Sub: Sub{Variant: "OAuth", Nested: "Specific"}}
	want := "UserBase<OAuth<Specific>>"
	if got := k.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestSpecificString(t *testing.T) {
	s := Specific{Vendor: "keycloak", Product: "keycloak", Variant: "default", Version: "22.0"}
	want := "keycloak:keycloak:default:22.0"
	if got := s.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestIsAutoProvision(t *testing.T) {
	if !(Kind{Base: BaseApp}).IsAutoProvision() {
		t.Error("App should auto-provision")
	}
	if (Kind{Base: BaseSpace}).IsAutoProvision() {
		t.Error("Space should not auto-provision")
	}
}
