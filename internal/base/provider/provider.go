// Package provider implements Provider: a single handle to one external
// resource, with reentrant, deduplicated readying.
package provider

import (
	"context"
	"sync"

	"github.com/R3E-Network/starlane/internal/status"
)

// Manager indicates who advances a Provider to Ready.
type Manager int

const (
	ManagerFoundation Manager = iota // ready() may download/install/start
	ManagerPlatform                  // ready() only connects/pools
	ManagerExternal                  // caller already arranged readiness; only probes
)

// Kind identifies a provider's resource type, e.g. "PostgresCluster",
// "DockerDaemon", "Registry".
type Kind string

// Config is provider configuration. Create-mode configs are a superset of
// Utilize-mode ones, so whatever credentials/ports were provisioned on
// install are also used to connect.
type Config struct {
	Mode       ConfigMode
	Values     map[string]string
}

type ConfigMode int

const (
	ModeUtilize ConfigMode = iota
	ModeCreate
)

// Handle is the typed connection/resource obtained once a Provider is Ready.
// Concrete providers wrap a specific connection type (pool, client) behind
// this marker; callers type-assert to the concrete Handle implementation
// they expect for the ProviderKind they requested.
type Handle interface {
	Close(ctx context.Context) error
}

// Prober is the pure-I/O probe function a provider uses to measure reality.
// Probe must never panic; on failure it returns status.Unknown with a
// reason, never an error.
type Prober func(ctx context.Context) status.StatusDetail

// Starter performs the actual readying work (download/install/start or
// connect/pool) and returns the resulting Handle.
type Starter func(ctx context.Context) (Handle, error)

// Provider is one concrete external resource handle.
type Provider struct {
	kind    Kind
	config  Config
	manager Manager
	prober  Prober
	starter Starter

	watcher *status.Watcher

	mu      sync.Mutex
	inFlight chan struct{} // non-nil while a ready() effort is running
	handle   Handle
	handleErr error
}

// New builds a Provider. prober and starter are supplied by the owning
// Foundation or Platform.
func New(kind Kind, cfg Config, mgr Manager, prober Prober, starter Starter) *Provider {
	return &Provider{
		kind:    kind,
		config:  cfg,
		manager: mgr,
		prober:  prober,
		starter: starter,
		watcher: status.NewWatcher(status.StatusDetail{Status: status.Status{Phase: status.PhaseNone, Action: status.ActionNone}}),
	}
}

func (p *Provider) Kind() Kind               { return p.kind }
func (p *Provider) Config() Config           { return p.config }
func (p *Provider) Manager() Manager         { return p.manager }
func (p *Provider) Status() status.Status    { return p.watcher.Last().Status }
func (p *Provider) StatusDetail() status.StatusDetail { return p.watcher.Last() }
func (p *Provider) StatusWatcher() *status.Watcher    { return p.watcher }

// Probe actively measures reality and updates the watcher. Pure I/O; never
// panics; on failure publishes status.Unknown with Probe::Unreachable.
func (p *Provider) Probe(ctx context.Context) status.StatusDetail {
	d := p.safeProbe(ctx)
	p.watcher.Publish(d)
	return d
}

func (p *Provider) safeProbe(ctx context.Context) (d status.StatusDetail) {
	defer func() {
		if r := recover(); r != nil {
			d = status.Unknown("provider probe panicked")
		}
	}()
	if p.prober == nil {
		return status.Unknown("no prober configured")
	}
	return p.prober(ctx)
}

// Ready returns a Handle once Phase::Ready, reentrantly: concurrent callers
// attach to the single in-flight effort rather than duplicating work. The
// result is cached while Phase::Ready; a dropped caller's context does not
// abort a transition already in flight for other waiters.
func (p *Provider) Ready(ctx context.Context) (Handle, error) {
	p.mu.Lock()
	if p.watcher.Last().Status.IsReady() && p.handle != nil {
		h := p.handle
		p.mu.Unlock()
		return h, nil
	}
	if p.inFlight != nil {
		wait := p.inFlight
		p.mu.Unlock()
		select {
		case <-wait:
			p.mu.Lock()
			h, err := p.handle, p.handleErr
			p.mu.Unlock()
			return h, err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	done := make(chan struct{})
	p.inFlight = done
	p.mu.Unlock()

	p.watcher.Publish(status.StatusDetail{Status: status.Status{Phase: status.PhaseInitialize, Action: status.ActionInitializing}})
	h, err := p.starter(context.WithoutCancel(ctx))

	p.mu.Lock()
	p.handle, p.handleErr = h, err
	close(done)
	p.inFlight = nil
	p.mu.Unlock()

	if err != nil {
		p.watcher.Publish(status.Unknown(err.Error()))
		return nil, err
	}
	p.watcher.Publish(status.Ready())
	return h, nil
}
