package registry

import (
	"context"
	"strings"
	"sync"

	"github.com/R3E-Network/starlane/internal/access"
	slerrors "github.com/R3E-Network/starlane/infrastructure/errors"
	"github.com/R3E-Network/starlane/internal/particle"
	"github.com/R3E-Network/starlane/internal/point"
)

// MemRegistry is the in-memory RegistryApi backend: used for tests and
// single-node setups. Writes to the same point are serialized by a single
// RWMutex; cross-point operations are not atomic.
type MemRegistry struct {
	mu         sync.RWMutex
	particles  map[string]particle.Details
	properties map[string]particle.Properties
	grants     map[string]access.Grant
	owners     map[string]point.Point
	sequences  map[string]uint64
	propsCfg   map[string]particle.PropertiesConfig // keyed by kind string, optional
}

// NewMemRegistry creates an empty in-memory registry.
func NewMemRegistry() *MemRegistry {
	return &MemRegistry{
		particles:  make(map[string]particle.Details),
		properties: make(map[string]particle.Properties),
		grants:     make(map[string]access.Grant),
		owners:     make(map[string]point.Point),
		sequences:  make(map[string]uint64),
		propsCfg:   make(map[string]particle.PropertiesConfig),
	}
}

// WithPropertiesConfig registers the PropertiesConfig used to validate
// property mutations for particles of the given kind string.
func (m *MemRegistry) WithPropertiesConfig(kindString string, pc particle.PropertiesConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.propsCfg[kindString] = pc
}

func (m *MemRegistry) pcFor(k string) particle.PropertiesConfig {
	if pc, ok := m.propsCfg[k]; ok {
		return pc
	}
	return particle.PropertiesConfig{}
}

func (m *MemRegistry) Register(ctx context.Context, r particle.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := r.Point.String()
	if _, exists := m.particles[key]; exists && r.Strategy != particle.StrategyEnsure {
		return slerrors.Dupe(key)
	}

	if parent, ok := r.Point.Parent(); ok && !parent.IsRoot() {
		if _, exists := m.particles[parent.String()]; !exists {
			return slerrors.Spatial("parent point does not exist").WithDetails("parent", parent.String())
		}
	}

	pc := m.pcFor(r.Kind.String())
	props := make(particle.Properties, len(r.Properties))
	for k, v := range r.Properties {
		props[k] = v
	}
	pc.ApplyLockedDefaults(props)
	if err := pc.Validate(props); err != nil {
		return slerrors.Spatial(err.Error())
	}
	m.properties[key] = props

	m.particles[key] = particle.Details{
		Stub: particle.Stub{
			Point:  r.Point,
			Kind:   r.Kind,
			Status: r.Status,
		},
		Properties: props,
	}
	m.owners[key] = r.Owner
	return nil
}

func (m *MemRegistry) AssignStar(ctx context.Context, p, star point.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := p.String()
	d, ok := m.particles[key]
	if !ok {
		return slerrors.NotFound(key)
	}
	s := star
	d.Location.Star = &s
	m.particles[key] = d
	return nil
}

func (m *MemRegistry) AssignHost(ctx context.Context, p, host point.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := p.String()
	d, ok := m.particles[key]
	if !ok {
		return slerrors.NotFound(key)
	}
	h := host
	d.Location.Host = &h
	m.particles[key] = d
	return nil
}

func (m *MemRegistry) SetStatus(ctx context.Context, p point.Point, s particle.Stub) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := p.String()
	d, ok := m.particles[key]
	if !ok {
		return slerrors.NotFound(key)
	}
	d.Stub.Status = s.Status
	m.particles[key] = d
	return nil
}

func (m *MemRegistry) SetProperties(ctx context.Context, sp SetProperties) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := sp.Point.String()
	d, ok := m.particles[key]
	if !ok {
		return slerrors.NotFound(key)
	}
	pc := m.pcFor(d.Stub.Kind.String())
	merged, err := particle.Merge(m.properties[key], sp.Mods, pc)
	if err != nil {
		return slerrors.Spatial(err.Error())
	}
	m.properties[key] = merged
	d.Properties = merged
	m.particles[key] = d
	return nil
}

func (m *MemRegistry) GetProperties(ctx context.Context, p point.Point) (particle.Properties, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := p.String()
	props, ok := m.properties[key]
	if !ok {
		if _, exists := m.particles[key]; !exists {
			return nil, slerrors.NotFound(key)
		}
	}
	out := make(particle.Properties, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out, nil
}

// Record returns the particle record at p. record of the synthetic global
// root ("+") is handled by Wrapper, not here.
func (m *MemRegistry) Record(ctx context.Context, p point.Point) (particle.Details, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := p.String()
	d, ok := m.particles[key]
	if !ok {
		return particle.Details{}, slerrors.NotFound(key)
	}
	return d, nil
}

// Sequence returns a monotonically increasing id per parent point, dense
// within that parent.
func (m *MemRegistry) Sequence(ctx context.Context, parent point.Point) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := parent.String()
	seq := m.sequences[key]
	m.sequences[key] = seq + 1
	return seq, nil
}

func (m *MemRegistry) Query(ctx context.Context, q Query) ([]particle.Stub, error) {
	switch q.Kind {
	case QueryPointHierarchy:
		return m.ancestorChain(q.Point)
	default:
		return nil, slerrors.Spatial("unknown query kind")
	}
}

func (m *MemRegistry) ancestorChain(p point.Point) ([]particle.Stub, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var chain []particle.Stub
	cur := p
	for {
		if d, ok := m.particles[cur.String()]; ok {
			chain = append([]particle.Stub{d.Stub}, chain...)
		}
		parent, ok := cur.Parent()
		if !ok {
			break
		}
		cur = parent
	}
	return chain, nil
}

// Select returns the stub at s.Root when it has a record. With an empty
// Pattern nothing else is returned; any non-empty Pattern adds every
// descendant (every record when s.Root is the global root), in no defined
// order.
func (m *MemRegistry) Select(ctx context.Context, s Select) ([]particle.Stub, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []particle.Stub
	rootKey := s.Root.String()
	if rootDetails, ok := m.particles[rootKey]; ok && s.Pattern == "" {
		return []particle.Stub{rootDetails.Stub}, nil
	}
	if rootDetails, ok := m.particles[rootKey]; ok {
		out = append(out, rootDetails.Stub)
	}
	if s.Pattern == "" {
		return out, nil
	}
	prefix := rootKey
	if !s.Root.IsRoot() {
		prefix += ":"
	}
	for key, d := range m.particles {
		if key == rootKey {
			continue
		}
		if s.Root.IsRoot() || strings.HasPrefix(key, prefix) {
			out = append(out, d.Stub)
		}
	}
	return out, nil
}

func (m *MemRegistry) hasChildren(parent point.Point) bool {
	prefix := parent.String()
	if !parent.IsRoot() {
		prefix += ":"
	}
	for key := range m.particles {
		if key == parent.String() {
			continue
		}
		if parent.IsRoot() || strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

func (m *MemRegistry) Delete(ctx context.Context, del Delete) ([]particle.Details, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := del.Point.String()
	if _, ok := m.particles[key]; !ok {
		return nil, slerrors.NotFound(key)
	}
	if !del.Cascade && m.hasChildren(del.Point) {
		return nil, slerrors.Spatial("point has children; refusing non-cascading delete").WithDetails("point", key)
	}

	prefix := key
	if !del.Point.IsRoot() {
		prefix += ":"
	}
	var removed []particle.Details
	for k, d := range m.particles {
		if k == key || del.Point.IsRoot() || strings.HasPrefix(k, prefix) {
			removed = append(removed, d)
			delete(m.particles, k)
			delete(m.properties, k)
			delete(m.owners, k)
		}
	}
	return removed, nil
}

func (m *MemRegistry) Grant(ctx context.Context, g access.Grant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g.ID == "" {
		return slerrors.Spatial("grant id cannot be empty")
	}
	m.grants[g.ID] = g
	return nil
}

func (m *MemRegistry) Access(ctx context.Context, to, on point.Point) (access.AccessSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	owner := m.owners[on.String()]
	var grants []access.Grant
	for _, g := range m.grants {
		grants = append(grants, g)
	}
	return access.Decide(to, on, owner, grants), nil
}

func (m *MemRegistry) Chown(ctx context.Context, p, newOwner point.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := p.String()
	if _, ok := m.particles[key]; !ok {
		return slerrors.NotFound(key)
	}
	m.owners[key] = newOwner
	return nil
}

func (m *MemRegistry) ListAccess(ctx context.Context, on point.Point) ([]access.Grant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []access.Grant
	for _, g := range m.grants {
		if g.AppliesTo(on) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *MemRegistry) RemoveAccess(ctx context.Context, grantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.grants[grantID]; !ok {
		return slerrors.NotFound(grantID)
	}
	delete(m.grants, grantID)
	return nil
}

func (m *MemRegistry) Scorch(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.particles = make(map[string]particle.Details)
	m.properties = make(map[string]particle.Properties)
	m.grants = make(map[string]access.Grant)
	m.owners = make(map[string]point.Point)
	m.sequences = make(map[string]uint64)
	return nil
}

var _ RegistryApi = (*MemRegistry)(nil)
