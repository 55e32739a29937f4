package foundation

import (
	"context"

	"github.com/R3E-Network/starlane/internal/base/dependency"
	"github.com/R3E-Network/starlane/internal/base/provider"
	slerrors "github.com/R3E-Network/starlane/infrastructure/errors"
	"github.com/R3E-Network/starlane/internal/registry"
	"github.com/R3E-Network/starlane/internal/status"
)

// Safety wraps a Foundation and rejects Install, Dependency and Provider
// while Phase::Unknown; callers must Synchronize first. Kind, Config, Status,
// StatusWatcher, Synchronize and Registry pass through unchecked.
type Safety struct {
	inner Foundation
}

// NewSafety wraps f.
func NewSafety(f Foundation) *Safety { return &Safety{inner: f} }

func (s *Safety) checkSynchronized() error {
	if s.inner.Status().Phase == status.PhaseUnknown {
		return slerrors.FoundationErr(string(s.inner.Kind()), errNotSynchronized)
	}
	return nil
}

func (s *Safety) Kind() Kind                   { return s.inner.Kind() }
func (s *Safety) Config() Config               { return s.inner.Config() }
func (s *Safety) Status() status.Status        { return s.inner.Status() }
func (s *Safety) StatusWatcher() *status.Watcher { return s.inner.StatusWatcher() }

func (s *Safety) Synchronize(ctx context.Context, progress Progress) error {
	return s.inner.Synchronize(ctx, progress)
}

func (s *Safety) Install(ctx context.Context, progress Progress) error {
	if err := s.checkSynchronized(); err != nil {
		return err
	}
	return s.inner.Install(ctx, progress)
}

func (s *Safety) Dependency(k dependency.Kind) (*dependency.Dependency, bool, error) {
	if err := s.checkSynchronized(); err != nil {
		return nil, false, err
	}
	return s.inner.Dependency(k)
}

func (s *Safety) Provider(k provider.Kind) (*provider.Provider, bool, error) {
	if err := s.checkSynchronized(); err != nil {
		return nil, false, err
	}
	return s.inner.Provider(k)
}

func (s *Safety) Registry() registry.RegistryApi { return s.inner.Registry() }

var _ Foundation = (*Safety)(nil)
