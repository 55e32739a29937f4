// Package foundation implements Foundation: the layer that manages external
// infrastructure (databases, container daemons, etc.) and brings it to a
// Ready state before Platform can utilize it.
package foundation

import (
	"context"
	"sync"

	"github.com/R3E-Network/starlane/internal/base/dependency"
	"github.com/R3E-Network/starlane/internal/base/provider"
	slerrors "github.com/R3E-Network/starlane/infrastructure/errors"
	"github.com/R3E-Network/starlane/internal/kind"
	"github.com/R3E-Network/starlane/internal/registry"
	"github.com/R3E-Network/starlane/internal/status"
	"github.com/R3E-Network/starlane/pkg/pgnotify"
)

// Kind identifies a Foundation implementation: DockerDaemon, Kubernetes,
// Posix.
type Kind string

const (
	KindDockerDaemon Kind = "DockerDaemon"
	KindKubernetes   Kind = "Kubernetes"
	KindPosix        Kind = "Posix"
)

// Config is the tagged-by-kind configuration read from the top-level
// Starlane config file's foundation section.
type Config struct {
	Kind         Kind
	Required     []kind.Kind
	Dependencies map[dependency.Kind]dependency.Config
}

// Progress reports install-stage completion.
type Progress func(msg string)

// Foundation manages the non-native substrate.
type Foundation interface {
	Kind() Kind
	Config() Config
	Status() status.Status
	StatusWatcher() *status.Watcher
	Synchronize(ctx context.Context, progress Progress) error
	Install(ctx context.Context, progress Progress) error
	Dependency(k dependency.Kind) (*dependency.Dependency, bool, error)
	Provider(k provider.Kind) (*provider.Provider, bool, error)
	Registry() registry.RegistryApi
}

// base holds the fields shared by every built-in Foundation implementation.
type base struct {
	kind         Kind
	cfg          Config
	watcher      *status.Watcher
	pgWatcher    *status.PGWatcher
	mu           sync.Mutex
	dependencies map[dependency.Kind]*dependency.Dependency
	reg          registry.RegistryApi
}

// UseStatusBus wraps this Foundation's Watcher so that publish also
// broadcasts over postgres LISTEN/NOTIFY: a status change observed by one
// star becomes visible to every other star sharing the bus/channel.
func (b *base) UseStatusBus(bus *pgnotify.Bus, channel string) error {
	pw, err := status.NewPGWatcher(b.watcher, bus, channel)
	if err != nil {
		return err
	}
	b.pgWatcher = pw
	return nil
}

// publish records a status transition, broadcasting across processes when
// UseStatusBus has been called, otherwise publishing to the local Watcher
// only.
func (b *base) publish(ctx context.Context, d status.StatusDetail) {
	if b.pgWatcher != nil {
		_ = b.pgWatcher.Publish(ctx, d)
		return
	}
	b.watcher.Publish(d)
}

func newBase(k Kind, cfg Config, reg registry.RegistryApi) base {
	return base{
		kind:         k,
		cfg:          cfg,
		watcher:      status.NewWatcher(status.StatusDetail{Status: status.Status{Phase: status.PhaseUnknown, Action: status.ActionUnknown}}),
		dependencies: make(map[dependency.Kind]*dependency.Dependency),
		reg:          reg,
	}
}

func (b *base) Kind() Kind                        { return b.kind }
func (b *base) Config() Config                     { return b.cfg }
func (b *base) Status() status.Status              { return b.watcher.Last().Status }
func (b *base) StatusWatcher() *status.Watcher      { return b.watcher }
func (b *base) Registry() registry.RegistryApi      { return b.reg }

// RegisterDependency attaches a Dependency this Foundation is responsible
// for installing. Built-in Foundation constructors call this for the
// dependencies their Config names; callers assembling a Foundation outside
// the built-in kinds use it directly.
func (b *base) RegisterDependency(dk dependency.Kind, d *dependency.Dependency) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dependencies[dk] = d
}

// Dependency returns the typed lookup, erroring if the Foundation is in
// Phase::Unknown (callers must Synchronize first).
func (b *base) Dependency(k dependency.Kind) (*dependency.Dependency, bool, error) {
	if b.Status().Phase == status.PhaseUnknown {
		return nil, false, slerrors.FoundationErr(string(b.kind), errNotSynchronized)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.dependencies[k]
	return d, ok, nil
}

func (b *base) Provider(k provider.Kind) (*provider.Provider, bool, error) {
	if b.Status().Phase == status.PhaseUnknown {
		return nil, false, slerrors.FoundationErr(string(b.kind), errNotSynchronized)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range b.dependencies {
		if p, ok := d.Provider(k); ok {
			return p, true, nil
		}
	}
	return nil, false, nil
}

var errNotSynchronized = synchronizationError{}

type synchronizationError struct{}

func (synchronizationError) Error() string {
	return "foundation is in Phase::Unknown; call Synchronize before any other operation"
}
