// Package dependency implements Dependency: a group of Providers that share
// installed software (e.g. a Postgres cluster serving many databases).
package dependency

import (
	"context"
	"sync"

	"github.com/R3E-Network/starlane/internal/base/provider"
	slerrors "github.com/R3E-Network/starlane/infrastructure/errors"
	"github.com/R3E-Network/starlane/internal/kind"
	"github.com/R3E-Network/starlane/internal/status"
)

// Kind identifies a dependency's software, e.g. "PostgresCluster".
type Kind string

// Config is the per-dependency configuration carried in FoundationConfig.
type Config struct {
	Kind      Kind
	Requires  []kind.Kind
	Providers map[provider.Kind]provider.Config
}

// ProviderFactory lazily constructs a Provider on the first
// Provider(providerKind) call.
type ProviderFactory func(cfg provider.Config) *provider.Provider

// Progress reports install-stage completion as Dependency.Install advances.
type Progress func(stage status.Phase)

// Dependency groups Providers sharing installed software.
type Dependency struct {
	kind     Kind
	requires []kind.Kind

	mu        sync.Mutex
	factories map[provider.Kind]ProviderFactory
	cfgs      map[provider.Kind]provider.Config
	providers map[provider.Kind]*provider.Provider

	watcher *status.Watcher
}

// New builds a Dependency. factories supplies how to lazily construct each
// ProviderKind's Provider; cfgs supplies the config each factory receives.
func New(k Kind, requires []kind.Kind, factories map[provider.Kind]ProviderFactory, cfgs map[provider.Kind]provider.Config) *Dependency {
	return &Dependency{
		kind:      k,
		requires:  requires,
		factories: factories,
		cfgs:      cfgs,
		providers: make(map[provider.Kind]*provider.Provider),
		watcher:   status.NewWatcher(status.StatusDetail{Status: status.Status{Phase: status.PhaseNone, Action: status.ActionNone}}),
	}
}

func (d *Dependency) Kind() Kind               { return d.kind }
func (d *Dependency) Require() []kind.Kind     { return d.requires }
func (d *Dependency) Status() status.Status    { return d.watcher.Last().Status }
func (d *Dependency) StatusWatcher() *status.Watcher { return d.watcher }

// Provider looks up (lazily creating) the Provider for providerKind.
func (d *Dependency) Provider(pk provider.Kind) (*provider.Provider, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.providers[pk]; ok {
		return p, true
	}
	factory, ok := d.factories[pk]
	if !ok {
		return nil, false
	}
	p := factory(d.cfgs[pk])
	d.providers[pk] = p
	return p, true
}

// Install publishes Phase::Downloaded, then calls Ready on each provider
// whose probe does not already report Phase::Ready (providers already Ready
// are skipped), then reports Started to progress and publishes Ready. The
// Installed and Initialize phases are not published as separate stages;
// Installed is published only when a provider fails. Returns nil once every
// provider is Ready, or a DependencyErr wrapping the first failure.
func (d *Dependency) Install(ctx context.Context, progress Progress) error {
	d.watcher.Publish(status.StatusDetail{Status: status.Status{Phase: status.PhaseDownloaded, Action: status.ActionInitializing}})
	if progress != nil {
		progress(status.PhaseDownloaded)
	}

	d.mu.Lock()
	var pks []provider.Kind
	for pk := range d.factories {
		pks = append(pks, pk)
	}
	d.mu.Unlock()

	for _, pk := range pks {
		p, ok := d.Provider(pk)
		if !ok {
			continue
		}
		detail := p.Probe(ctx)
		if detail.Status.IsReady() {
			continue
		}
		if _, err := p.Ready(ctx); err != nil {
			d.watcher.Publish(status.StatusDetail{Status: status.Status{Phase: status.PhaseInstalled, Action: status.ActionPending}})
			return slerrors.DependencyErr(string(d.kind), err)
		}
	}

	if progress != nil {
		progress(status.PhaseStarted)
	}
	d.watcher.Publish(status.Ready())
	return nil
}

// Regress forces the Dependency back to at most Installed, as required when
// one of its Requires regresses.
func (d *Dependency) Regress() {
	cur := d.watcher.Last()
	if cur.Status.Phase.Before(status.PhaseInstalled) {
		return
	}
	d.watcher.Publish(status.StatusDetail{Status: status.Status{Phase: status.PhaseInstalled, Action: status.ActionNone}})
}
