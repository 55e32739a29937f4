// Package executor implements the Global Command Executor: the command
// plane that parses a command line into a Command, dispatches it against
// the registry (and, for Create, the landing provisioner), and renders the
// result as a ReflectedCore.
package executor

import (
	"github.com/R3E-Network/starlane/internal/kind"
	"github.com/R3E-Network/starlane/internal/particle"
	"github.com/R3E-Network/starlane/internal/point"
	"github.com/R3E-Network/starlane/internal/registry"
)

// Command is the parsed, dispatch-ready form of one RawCommand statement.
type Command interface{ isCommand() }

// PointSegKind distinguishes the three PointSegTemplate constructors.
type PointSegKind int

const (
	SegExact PointSegKind = iota
	SegPattern
	SegRoot
)

// PointSegTemplate is the child-segment half of a create target: an exact
// literal, a "%"-bearing pattern resolved via Registry.Sequence, or the
// synthetic global root.
type PointSegTemplate struct {
	Kind  PointSegKind
	Value string // exact segment or pattern string; unused for SegRoot
}

// CreateCommand is the parsed form of `create <Kind> <point-template> { Set
// {...} Install {...} }`.
type CreateCommand struct {
	Parent       point.Point
	Segment      PointSegTemplate
	Kind         kind.Template
	Strategy     particle.Strategy
	Properties   particle.Properties // from the Set sub-block, if present
	HasSubstance bool                // true when an Install sub-block is present
}

func (CreateCommand) isCommand() {}

// SelectCommand is the parsed form of `select <selector>`.
type SelectCommand struct {
	Select registry.Select
}

func (SelectCommand) isCommand() {}

// DeleteCommand is the parsed form of `delete <delete-spec>`.
type DeleteCommand struct {
	Delete registry.Delete
}

func (DeleteCommand) isCommand() {}

// SetCommand is the parsed form of `set <point> { +key=value }`.
type SetCommand struct {
	Point point.Point
	Mods  []particle.PropertyMod
}

func (SetCommand) isCommand() {}

// ReadCommand is the parsed form of `read <point>`.
type ReadCommand struct {
	Point point.Point
}

func (ReadCommand) isCommand() {}
