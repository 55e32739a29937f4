// Package kind implements Starlane's Kind tagged-variant type: what a
// particle is, as opposed to where it lives (internal/point) or how it is
// progressing (internal/status).
package kind

import "fmt"

// Base is the top-level classification of a particle.
type Base string

const (
	BaseSpace     Base = "Space"
	BaseApp       Base = "App"
	BaseDatabase  Base = "Database"
	BaseFileStore Base = "FileStore"
	BaseUser      Base = "User"
	BaseUserBase  Base = "UserBase"
	BaseArtifact  Base = "Artifact"
	BaseBundle    Base = "Bundle"
	BaseMechtron  Base = "Mechtron"
	BaseHost      Base = "Host"
	BaseStar      Base = "Star"
	BaseDriver    Base = "Driver"
	BaseGlobal    Base = "Global"
	BaseNative    Base = "Native"
	BaseRegistry  Base = "Registry"
	BaseWebServer Base = "WebServer"
	BaseRoot      Base = "Root"
)

// Sub is the optional, base-dependent sub-kind. The zero value (empty
// Variant) means "no sub-kind".
type Sub struct {
	Variant string // e.g. "Raw", "Dir", "File", "ParticleConfig", "OAuth", "Directory"
	Nested  string // second-level variant, e.g. OAuth's Specific-bearing arm
}

func (s Sub) IsZero() bool { return s.Variant == "" }

// Specific identifies an exact vendor:product:variant:version tuple.
type Specific struct {
	Vendor  string
	Product string
	Variant string
	Version string
}

func (s Specific) IsZero() bool { return s == Specific{} }

func (s Specific) String() string {
	return fmt.Sprintf("%s:%s:%s:%s", s.Vendor, s.Product, s.Variant, s.Version)
}

// Kind is the concrete classification resolved for a particle.
type Kind struct {
	Base     Base
	Sub      Sub
	Specific Specific
}

func (k Kind) String() string {
	s := string(k.Base)
	if !k.Sub.IsZero() {
		s += "<" + k.Sub.Variant
		if k.Sub.Nested != "" {
			s += "<" + k.Sub.Nested + ">"
		}
		s += ">"
	}
	if !k.Specific.IsZero() {
		s += "(" + k.Specific.String() + ")"
	}
	return s
}

// Equal reports structural equality.
func (k Kind) Equal(o Kind) bool { return k == o }

// IsAutoProvision reports whether creating a particle of this Kind implies
// an automatic landing on a host, independent of whether the Create command
// carried initial state/substance.
func (k Kind) IsAutoProvision() bool {
	switch k.Base {
	case BaseApp, BaseDatabase, BaseMechtron, BaseWebServer:
		return true
	default:
		return false
	}
}

// Template is the user-supplied partial shape of a Kind, resolved to a
// concrete Kind by Platform.SelectKind.
type Template struct {
	Base     Base
	Sub      *Sub      // nil: unspecified, resolver must pick a default or fail
	Specific *Specific // nil: unspecified
}

// ErrUnderSpecified is returned by a Kind resolver when a Template lacks a
// sub-kind that the Base requires, along with the allowed variants.
type ErrUnderSpecified struct {
	Base             Base
	RequiredVariants []string
}

func (e *ErrUnderSpecified) Error() string {
	return fmt.Sprintf("kind template for %s requires one of sub-kinds %v", e.Base, e.RequiredVariants)
}

// requiresSub lists the Bases that must carry a Sub to be resolved.
var requiresSub = map[Base][]string{
	BaseArtifact: {"Raw", "Dir", "File", "ParticleConfig"},
	BaseUserBase: {"OAuth"},
	BaseFileStore: {"File", "Directory"},
}

// Resolve maps a Template to a concrete Kind. This is the default,
// context-free resolution; basePlatform.SelectKind returns its result
// unchanged.
func Resolve(t Template) (Kind, error) {
	k := Kind{Base: t.Base}
	if variants, ok := requiresSub[t.Base]; ok {
		if t.Sub == nil || t.Sub.Variant == "" {
			return Kind{}, &ErrUnderSpecified{Base: t.Base, RequiredVariants: variants}
		}
	}
	if t.Sub != nil {
		k.Sub = *t.Sub
	}
	if t.Specific != nil {
		k.Specific = *t.Specific
	}
	return k, nil
}
