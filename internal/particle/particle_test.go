package particle

import "testing"

func TestPropertiesConfigValidateRequired(t *testing.T) {
	pc := PropertiesConfig{Required: []string{"image"}}
	if err := pc.Validate(Properties{}); err == nil {
		t.Error("expected error for missing required property")
	}
	if err := pc.Validate(Properties{"image": {Value: "nginx"}}); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestPropertiesConfigValidateAllowed(t *testing.T) {
	pc := PropertiesConfig{Allowed: map[string]bool{"image": true}}
	if err := pc.Validate(Properties{"other": {Value: "x"}}); err == nil {
		t.Error("expected error for disallowed property")
	}
}

func TestApplyLockedDefaults(t *testing.T) {
	pc := PropertiesConfig{LockedDefault: map[string]bool{"image": true}}
	props := Properties{"image": {Value: "nginx"}}
	pc.ApplyLockedDefaults(props)
	if !props["image"].Locked {
		t.Error("expected image to be locked by default")
	}
}

func TestMergeSetUpserts(t *testing.T) {
	props := Properties{}
	pc := PropertiesConfig{}
	out, err := Merge(props, []PropertyMod{{Key: "k", Value: "v"}}, pc)
	if err != nil {
		t.Fatal(err)
	}
	if out["k"].Value != "v" {
		t.Errorf("got %+v", out["k"])
	}
}

func TestMergeUnSetRemoves(t *testing.T) {
	props := Properties{"k": {Value: "v"}}
	pc := PropertiesConfig{}
	out, err := Merge(props, []PropertyMod{{Key: "k", UnSet: true}}, pc)
	if err != nil {
		t.Fatal(err)
	}
	if _, exists := out["k"]; exists {
		t.Error("expected key to be removed")
	}
}

func TestMergeUnSetLockedRejected(t *testing.T) {
	props := Properties{"k": {Value: "v", Locked: true}}
	pc := PropertiesConfig{}
	if _, err := Merge(props, []PropertyMod{{Key: "k", UnSet: true}}, pc); err == nil {
		t.Error("expected error unsetting locked key")
	}
}

func TestMergeOverwriteLockedRejected(t *testing.T) {
	props := Properties{"k": {Value: "v", Locked: true}}
	pc := PropertiesConfig{}
	if _, err := Merge(props, []PropertyMod{{Key: "k", Value: "new"}}, pc); err == nil {
		t.Error("expected error overwriting locked key")
	}
}

func TestMergeUnSetRequiredRejected(t *testing.T) {
	props := Properties{"k": {Value: "v"}}
	pc := PropertiesConfig{Required: []string{"k"}}
	if _, err := Merge(props, []PropertyMod{{Key: "k", UnSet: true}}, pc); err == nil {
		t.Error("expected error unsetting required key")
	}
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	props := Properties{"k": {Value: "v"}}
	pc := PropertiesConfig{}
	_, err := Merge(props, []PropertyMod{{Key: "k", Value: "new"}}, pc)
	if err != nil {
		t.Fatal(err)
	}
	if props["k"].Value != "v" {
		t.Error("Merge must not mutate its input map")
	}
}

func TestMergeLockOnSet(t *testing.T) {
	props := Properties{}
	pc := PropertiesConfig{}
	out, err := Merge(props, []PropertyMod{{Key: "k", Value: "v", Lock: true}}, pc)
	if err != nil {
		t.Fatal(err)
	}
	if !out["k"].Locked {
		t.Error("expected property to be locked after Set with Lock=true")
	}
}
