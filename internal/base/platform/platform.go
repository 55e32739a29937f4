// Package platform implements Platform: the layer that utilizes
// already-ready infrastructure supplied by a Foundation. Where Foundation
// installs and starts the substrate, Platform only connects, pools, and
// authenticates against it.
package platform

import (
	"context"
	"fmt"

	slerrors "github.com/R3E-Network/starlane/infrastructure/errors"
	"github.com/R3E-Network/starlane/internal/base/foundation"
	"github.com/R3E-Network/starlane/internal/config"
	"github.com/R3E-Network/starlane/internal/kind"
	"github.com/R3E-Network/starlane/internal/particle"
	"github.com/R3E-Network/starlane/internal/point"
	"github.com/R3E-Network/starlane/internal/registry"
)

// StarKey identifies one star (a Starlane node/process) by its point address
// on the Mesh route, e.g. "<mesh-star>::particle".
type StarKey = point.Point

// StarSub is the sub-kind of a star: the role it plays in the mesh, which
// in turn decides which Drivers it runs.
type StarSub string

const (
	StarSubMachine StarSub = "Machine" // runs the control-port HTTP surface and the Global Command Executor
	StarSubGateway StarSub = "Gateway" // terminates external connections and forwards into the mesh
	StarSubRelay   StarSub = "Relay"   // pure message forwarding, no locally-hosted particles
)

// StarAuth authenticates this node to a peer star. The concrete
// implementation is supplied by the Foundation/deployment; Platform only
// asks for one per StarKey.
type StarAuth interface {
	Authenticate(ctx context.Context, star StarKey) error
}

// RemoteConnectionFactory dials a peer star and returns a live connection
// handle. What "connection" means is transport-specific (grpc, ws, ...); the
// Global Command Executor only needs Dial/Close.
type RemoteConnectionFactory interface {
	Dial(ctx context.Context, star StarKey) (Connection, error)
}

// Connection is a dialed handle to a peer star.
type Connection interface {
	Close() error
}

// Platform utilizes ready infrastructure.
type Platform interface {
	PropertiesConfig(k kind.Kind) particle.PropertiesConfig
	DriversBuilder(sub StarSub) *DriversBuilder
	SelectKind(t kind.Template) (kind.Kind, error)

	GlobalRegistry() registry.RegistryApi
	StarRegistry(star StarKey) registry.RegistryApi

	StarAuth(star StarKey) (StarAuth, error)
	RemoteConnectionFactoryForStar(star StarKey) (RemoteConnectionFactory, error)

	// Scorch drops the registry contents, keeping the platform config.
	Scorch(ctx context.Context) error
	// Nuke is gated by Config.CanNuke; when allowed it does what Scorch
	// does. It does not delete the platform context.
	Nuke(ctx context.Context) error
}

// Driver is one runnable unit a star hosts for a particular Kind.Base (e.g.
// the Space driver, the App driver, the Mechtron driver): a nameable,
// startable, stoppable, health-checkable unit the Registry records.
type Driver interface {
	Name() string
	Base() kind.Base
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Ping(ctx context.Context) error
}

// DriversBuilder aggregates the Drivers one star sub-kind runs, grounded on
// internal/platform/driver.go's Registry struct (StartAll/StopAll/PingAll),
// retyped from infra-service driver kinds to particle Drivers keyed by
// kind.Base.
type DriversBuilder struct {
	sub     StarSub
	drivers map[kind.Base]Driver
	order   []kind.Base
}

// NewDriversBuilder returns an empty builder for the given star sub-kind.
func NewDriversBuilder(sub StarSub) *DriversBuilder {
	return &DriversBuilder{sub: sub, drivers: make(map[kind.Base]Driver)}
}

// Sub returns the star sub-kind this builder was constructed for.
func (b *DriversBuilder) Sub() StarSub { return b.sub }

// Add registers a Driver for a Kind.Base. Adding twice for the same Base
// replaces the previous entry but preserves start order.
func (b *DriversBuilder) Add(d Driver) {
	base := d.Base()
	if _, exists := b.drivers[base]; !exists {
		b.order = append(b.order, base)
	}
	b.drivers[base] = d
}

// Get returns the Driver registered for base, if any.
func (b *DriversBuilder) Get(base kind.Base) (Driver, bool) {
	d, ok := b.drivers[base]
	return d, ok
}

// StartAll starts every registered driver in registration order.
func (b *DriversBuilder) StartAll(ctx context.Context) error {
	for _, base := range b.order {
		if err := b.drivers[base].Start(ctx); err != nil {
			return fmt.Errorf("starting driver %s: %w", base, err)
		}
	}
	return nil
}

// StopAll stops every registered driver in reverse registration order,
// continuing past individual failures and returning the last error seen.
func (b *DriversBuilder) StopAll(ctx context.Context) error {
	var lastErr error
	for i := len(b.order) - 1; i >= 0; i-- {
		if err := b.drivers[b.order[i]].Stop(ctx); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// PingAll probes every registered driver and returns per-Base results.
func (b *DriversBuilder) PingAll(ctx context.Context) map[kind.Base]error {
	out := make(map[kind.Base]error, len(b.order))
	for _, base := range b.order {
		out[base] = b.drivers[base].Ping(ctx)
	}
	return out
}

// basePlatform is the built-in Platform implementation backing every
// Foundation kind; the registry and star-auth behaviour vary by
// configuration, not by a different Platform type.
type basePlatform struct {
	cfg        *config.Config
	foundation foundation.Foundation
	global     registry.RegistryApi
	auth       StarAuth
	factory    RemoteConnectionFactory
}

// New returns the Platform that utilizes the infrastructure the given
// Foundation has already brought to Ready.
func New(cfg *config.Config, f foundation.Foundation, globalRegistry registry.RegistryApi, auth StarAuth, factory RemoteConnectionFactory) Platform {
	return &basePlatform{cfg: cfg, foundation: f, global: globalRegistry, auth: auth, factory: factory}
}

// PropertiesConfig returns the allowed/required/locked property shape for a
// Kind: Mechtron requires a locked "config" point; Host requires a locked
// "bin" point; every other Base has no default constraints.
func (p *basePlatform) PropertiesConfig(k kind.Kind) particle.PropertiesConfig {
	switch k.Base {
	case kind.BaseMechtron:
		return particle.PropertiesConfig{
			Allowed:       map[string]bool{"config": true},
			Required:      []string{"config"},
			LockedDefault: map[string]bool{"config": true},
			PointValued:   map[string]bool{"config": true},
		}
	case kind.BaseHost:
		return particle.PropertiesConfig{
			Allowed:       map[string]bool{"bin": true},
			Required:      []string{"bin"},
			LockedDefault: map[string]bool{"bin": true},
			PointValued:   map[string]bool{"bin": true},
		}
	default:
		return particle.PropertiesConfig{}
	}
}

// DriversBuilder returns the set of drivers a star sub-kind runs. The
// built-in roles are intentionally minimal: a Machine star hosts every
// particle-facing driver, Gateway/Relay stars host none by default. Callers
// that need a different mix construct their own DriversBuilder and register
// Drivers directly.
func (p *basePlatform) DriversBuilder(sub StarSub) *DriversBuilder {
	b := NewDriversBuilder(sub)
	if sub != StarSubMachine {
		return b
	}
	for _, base := range []kind.Base{
		kind.BaseSpace, kind.BaseApp, kind.BaseMechtron, kind.BaseHost,
		kind.BaseWebServer, kind.BaseDatabase, kind.BaseFileStore,
	} {
		b.Add(&noopDriver{name: string(base), base: base})
	}
	return b
}

// SelectKind resolves a Template to a concrete Kind. This wraps
// kind.Resolve (the context-free resolver) with nothing further today: no
// built-in Foundation keys Specific defaults off registry state.
func (p *basePlatform) SelectKind(t kind.Template) (kind.Kind, error) {
	return kind.Resolve(t)
}

func (p *basePlatform) GlobalRegistry() registry.RegistryApi { return p.global }

// StarRegistry returns the registry handle scoped to one star. Built-in
// Foundations run a single shared registry, so this returns the same handle
// as GlobalRegistry; a multi-registry deployment would route per star here.
func (p *basePlatform) StarRegistry(star StarKey) registry.RegistryApi {
	return p.global
}

func (p *basePlatform) StarAuth(star StarKey) (StarAuth, error) {
	if p.auth == nil {
		return nil, slerrors.Unreachable("StarAuth", fmt.Sprintf("no star auth configured for %s", star))
	}
	return p.auth, nil
}

func (p *basePlatform) RemoteConnectionFactoryForStar(star StarKey) (RemoteConnectionFactory, error) {
	if p.factory == nil {
		return nil, slerrors.Unreachable("RemoteConnectionFactory", fmt.Sprintf("no remote connection factory configured for %s", star))
	}
	return p.factory, nil
}

func (p *basePlatform) Scorch(ctx context.Context) error {
	return p.global.Scorch(ctx)
}

func (p *basePlatform) Nuke(ctx context.Context) error {
	if !p.cfg.CanNuke {
		return slerrors.Forbidden("nuke is disabled; set can_nuke=true in config")
	}
	return p.Scorch(ctx)
}

// noopDriver is the default Driver registered for particle-facing Kind
// Bases that have no dedicated runtime process of their own: their
// lifecycle is entirely owned by the Global Command Executor and the
// registry, so starting/stopping/pinging the "driver" is a no-op that only
// reports the Base it represents.
type noopDriver struct {
	name string
	base kind.Base
}

func (d *noopDriver) Name() string                   { return d.name }
func (d *noopDriver) Base() kind.Base                 { return d.base }
func (d *noopDriver) Start(ctx context.Context) error { return nil }
func (d *noopDriver) Stop(ctx context.Context) error  { return nil }
func (d *noopDriver) Ping(ctx context.Context) error  { return nil }

var _ Platform = (*basePlatform)(nil)
