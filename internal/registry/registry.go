// Package registry implements the authoritative particle directory:
// RegistryApi and its in-memory and SQL backends.
package registry

import (
	"context"

	"github.com/R3E-Network/starlane/internal/access"
	"github.com/R3E-Network/starlane/internal/particle"
	"github.com/R3E-Network/starlane/internal/point"
)

// Select describes a selector-scoped read: a root point plus a hop pattern
// matched against descendants. An empty Pattern matches only the root.
type Select struct {
	Root    point.Point
	Pattern string // "**" matches all descendants; "" matches only Root
}

// Delete describes a delete request. Cascade, when false, causes Delete to
// refuse if the point has children.
type Delete struct {
	Point    point.Point
	Cascade  bool
}

// QueryKind distinguishes registry query shapes.
type QueryKind int

const (
	QueryPointHierarchy QueryKind = iota
)

// Query is a read-only structural query against the registry.
type Query struct {
	Kind  QueryKind
	Point point.Point
}

// SetProperties is an ordered batch of property mutations for one point.
type SetProperties struct {
	Point point.Point
	Mods  []particle.PropertyMod
}

// RegistryApi is the asynchronous contract every backend (in-memory, SQL)
// implements identically.
type RegistryApi interface {
	Register(ctx context.Context, r particle.Registration) error
	AssignStar(ctx context.Context, p, star point.Point) error
	AssignHost(ctx context.Context, p, host point.Point) error
	SetStatus(ctx context.Context, p point.Point, s particle.Stub) error
	SetProperties(ctx context.Context, sp SetProperties) error
	GetProperties(ctx context.Context, p point.Point) (particle.Properties, error)
	Record(ctx context.Context, p point.Point) (particle.Details, error)
	Sequence(ctx context.Context, parent point.Point) (uint64, error)
	Query(ctx context.Context, q Query) ([]particle.Stub, error)
	Select(ctx context.Context, s Select) ([]particle.Stub, error)
	Delete(ctx context.Context, d Delete) ([]particle.Details, error)

	Grant(ctx context.Context, g access.Grant) error
	Access(ctx context.Context, to, on point.Point) (access.AccessSet, error)
	Chown(ctx context.Context, p, newOwner point.Point) error
	ListAccess(ctx context.Context, on point.Point) ([]access.Grant, error)
	RemoveAccess(ctx context.Context, grantID string) error

	Scorch(ctx context.Context) error
}
