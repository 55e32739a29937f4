package executor

import (
	"testing"

	"github.com/R3E-Network/starlane/internal/kind"
)

func TestParseLineCreateExact(t *testing.T) {
	cmd, err := ParseLine(`create Space<Orbital> localhost:app-store;`)
	if err != nil {
		t.Fatal(err)
	}
	cc, ok := cmd.(CreateCommand)
	if !ok {
		t.Fatalf("expected CreateCommand, got %T", cmd)
	}
	if cc.Kind.Base != kind.Base("Space") {
		t.Errorf("unexpected base: %v", cc.Kind.Base)
	}
	if cc.Kind.Sub == nil || cc.Kind.Sub.Variant != "Orbital" {
		t.Errorf("unexpected sub: %+v", cc.Kind.Sub)
	}
	if cc.Segment.Kind != SegExact || cc.Segment.Value != "app-store" {
		t.Errorf("unexpected segment: %+v", cc.Segment)
	}
	if cc.Parent.String() != "localhost" {
		t.Errorf("unexpected parent: %v", cc.Parent.String())
	}
}

func TestParseLineCreatePattern(t *testing.T) {
	cmd, err := ParseLine(`create App localhost:app-%`)
	if err != nil {
		t.Fatal(err)
	}
	cc := cmd.(CreateCommand)
	if cc.Segment.Kind != SegPattern || cc.Segment.Value != "app-%" {
		t.Errorf("unexpected segment: %+v", cc.Segment)
	}
}

func TestParseLineCreateRoot(t *testing.T) {
	cmd, err := ParseLine(`create Global +`)
	if err != nil {
		t.Fatal(err)
	}
	cc := cmd.(CreateCommand)
	if cc.Segment.Kind != SegRoot {
		t.Errorf("expected SegRoot, got %+v", cc.Segment)
	}
}

func TestParseLineCreateWithSetBlock(t *testing.T) {
	cmd, err := ParseLine(`create Space localhost:app-store { Set { +env=prod,+owner=alice } }`)
	if err != nil {
		t.Fatal(err)
	}
	cc := cmd.(CreateCommand)
	if cc.Properties["env"].Value != "prod" {
		t.Errorf("unexpected properties: %+v", cc.Properties)
	}
	if cc.Properties["owner"].Value != "alice" {
		t.Errorf("unexpected properties: %+v", cc.Properties)
	}
	if cc.HasSubstance {
		t.Error("expected HasSubstance false without Install block")
	}
}

func TestParseLineCreateWithInstallBlock(t *testing.T) {
	cmd, err := ParseLine(`create App localhost:app-store { Install { image=foo:latest; } }`)
	if err != nil {
		t.Fatal(err)
	}
	cc := cmd.(CreateCommand)
	if !cc.HasSubstance {
		t.Error("expected HasSubstance true with Install block")
	}
}

func TestParseLineSelectRootOnly(t *testing.T) {
	cmd, err := ParseLine(`select localhost`)
	if err != nil {
		t.Fatal(err)
	}
	sc := cmd.(SelectCommand)
	if sc.Select.Root.String() != "localhost" || sc.Select.Pattern != "" {
		t.Errorf("unexpected select: %+v", sc.Select)
	}
}

func TestParseLineSelectDescendants(t *testing.T) {
	cmd, err := ParseLine(`select +:**`)
	if err != nil {
		t.Fatal(err)
	}
	sc := cmd.(SelectCommand)
	if !sc.Select.Root.IsRoot() {
		t.Errorf("expected root, got %v", sc.Select.Root)
	}
	if sc.Select.Pattern != "**" {
		t.Errorf("unexpected pattern: %q", sc.Select.Pattern)
	}
}

func TestParseLineDelete(t *testing.T) {
	cmd, err := ParseLine(`delete localhost:app-store cascade`)
	if err != nil {
		t.Fatal(err)
	}
	dc := cmd.(DeleteCommand)
	if !dc.Delete.Cascade {
		t.Error("expected Cascade true")
	}
	if dc.Delete.Point.String() != "localhost:app-store" {
		t.Errorf("unexpected point: %v", dc.Delete.Point)
	}
}

func TestParseLineSet(t *testing.T) {
	cmd, err := ParseLine(`set localhost:app-store { +env=staging,-owner }`)
	if err != nil {
		t.Fatal(err)
	}
	sc := cmd.(SetCommand)
	if len(sc.Mods) != 2 {
		t.Fatalf("expected 2 mods, got %d", len(sc.Mods))
	}
	if sc.Mods[0].Key != "env" || sc.Mods[0].Value != "staging" {
		t.Errorf("unexpected mod 0: %+v", sc.Mods[0])
	}
	if sc.Mods[1].Key != "owner" || !sc.Mods[1].UnSet {
		t.Errorf("unexpected mod 1: %+v", sc.Mods[1])
	}
}

func TestParseLineRead(t *testing.T) {
	cmd, err := ParseLine(`read localhost:app-store`)
	if err != nil {
		t.Fatal(err)
	}
	rc := cmd.(ReadCommand)
	if rc.Point.String() != "localhost:app-store" {
		t.Errorf("unexpected point: %v", rc.Point)
	}
}

func TestParseLineUnrecognizedHead(t *testing.T) {
	if _, err := ParseLine(`frobnicate localhost`); err == nil {
		t.Fatal("expected error for unrecognized command head")
	}
}

func TestParseRawCommandMultipleStatements(t *testing.T) {
	cmds, err := ParseRawCommand(RawCommand{Line: `create Space localhost:app-store; read localhost:app-store;`})
	if err != nil {
		t.Fatal(err)
	}
	if len(cmds) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(cmds))
	}
	if _, ok := cmds[0].(CreateCommand); !ok {
		t.Errorf("expected first command to be CreateCommand, got %T", cmds[0])
	}
	if _, ok := cmds[1].(ReadCommand); !ok {
		t.Errorf("expected second command to be ReadCommand, got %T", cmds[1])
	}
}

func TestParseRawCommandSemicolonInsideBlockDoesNotSplit(t *testing.T) {
	cmds, err := ParseRawCommand(RawCommand{Line: `create App localhost:app-store { Install { image=foo:latest; tag=v1; } }`})
	if err != nil {
		t.Fatal(err)
	}
	if len(cmds) != 1 {
		t.Fatalf("expected 1 command, got %d", len(cmds))
	}
}

func TestParseKindTemplateWithSpecific(t *testing.T) {
	tpl, err := parseKindTemplate(`Artifact<Bundle>(acme:demo:release:1.0.0)`)
	if err != nil {
		t.Fatal(err)
	}
	if tpl.Sub == nil || tpl.Sub.Variant != "Bundle" {
		t.Errorf("unexpected sub: %+v", tpl.Sub)
	}
	if tpl.Specific == nil || tpl.Specific.Vendor != "acme" || tpl.Specific.Version != "1.0.0" {
		t.Errorf("unexpected specific: %+v", tpl.Specific)
	}
}
