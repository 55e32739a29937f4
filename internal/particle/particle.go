// Package particle defines the particle record: the stub (point, kind,
// status), its properties, location, and the create-time Registration
// bundle.
package particle

import (
	"fmt"

	"github.com/R3E-Network/starlane/internal/kind"
	"github.com/R3E-Network/starlane/internal/point"
	"github.com/R3E-Network/starlane/internal/status"
)

// Stub is the minimal identity of a particle.
type Stub struct {
	Point  point.Point
	Kind   kind.Kind
	Status status.Status
}

// Location records where a particle has landed, set by assign_star/host.
type Location struct {
	Star *point.Point
	Host *point.Point
}

// Property is one property value plus its lock state.
type Property struct {
	Value  string
	Locked bool
}

// Properties is a particle's property map.
type Properties map[string]Property

// Details is the full particle record.
type Details struct {
	Stub       Stub
	Properties Properties
	Location   Location
}

// Strategy is the create-time registration strategy.
type Strategy int

const (
	StrategyCreate Strategy = iota
	StrategyEnsure
	StrategyHostedBy // carries a star point, see Registration.HostedByStar
	StrategyCommit   // treated as equivalent to Create; see SPEC_FULL.md §9 open question (a)
)

// Registration is the create-time bundle passed to RegistryApi.Register.
type Registration struct {
	Point         point.Point
	Kind          kind.Kind
	Properties    Properties
	Owner         point.Point
	Strategy      Strategy
	HostedByStar  point.Point // only meaningful when Strategy == StrategyHostedBy
	Status        status.Status
}

// PropertyMod is one property mutation in a SetProperties call.
type PropertyMod struct {
	Key    string
	UnSet  bool // true: remove key unless locked
	Value  string
	Lock   bool
}

// PropertiesConfig declares, per Kind, which property keys are allowed,
// required, locked-by-default, and point-valued.
type PropertiesConfig struct {
	Allowed       map[string]bool
	Required      []string
	LockedDefault map[string]bool
	PointValued   map[string]bool
}

// Validate checks that props satisfies pc: every required key present,
// every key allowed. It does not itself apply LockedDefault; that is the
// registry's job at insert time.
func (pc PropertiesConfig) Validate(props Properties) error {
	for _, req := range pc.Required {
		if _, ok := props[req]; !ok {
			return fmt.Errorf("required property %q missing", req)
		}
	}
	if pc.Allowed != nil {
		for k := range props {
			if !pc.Allowed[k] {
				return fmt.Errorf("property %q not allowed for this kind", k)
			}
		}
	}
	return nil
}

// ApplyLockedDefaults sets Locked=true on any property whose key is marked
// locked-by-default, as Registry.Register would before first persisting it.
func (pc PropertiesConfig) ApplyLockedDefaults(props Properties) {
	for k, locked := range pc.LockedDefault {
		if !locked {
			continue
		}
		if p, ok := props[k]; ok && !p.Locked {
			p.Locked = true
			props[k] = p
		}
	}
}

// Merge applies a sequence of PropertyMod to props in order: Set upserts
// (honouring Lock); UnSet removes unless locked. Returns an error if a
// mutation is rejected against pc (locked-key overwrite, or removing a
// required key).
func Merge(props Properties, mods []PropertyMod, pc PropertiesConfig) (Properties, error) {
	out := make(Properties, len(props))
	for k, v := range props {
		out[k] = v
	}

	for _, m := range mods {
		existing, exists := out[m.Key]
		if m.UnSet {
			if exists && existing.Locked {
				return nil, fmt.Errorf("cannot unset locked property %q", m.Key)
			}
			for _, req := range pc.Required {
				if req == m.Key {
					return nil, fmt.Errorf("cannot unset required property %q", m.Key)
				}
			}
			delete(out, m.Key)
			continue
		}
		if exists && existing.Locked {
			return nil, fmt.Errorf("cannot overwrite locked property %q", m.Key)
		}
		if pc.Allowed != nil && !pc.Allowed[m.Key] {
			return nil, fmt.Errorf("property %q not allowed for this kind", m.Key)
		}
		locked := m.Lock || pc.LockedDefault[m.Key]
		out[m.Key] = Property{Value: m.Value, Locked: locked}
	}
	return out, nil
}
