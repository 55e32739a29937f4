package registry

import (
	"context"

	"github.com/R3E-Network/starlane/internal/kind"
	"github.com/R3E-Network/starlane/internal/particle"
	"github.com/R3E-Network/starlane/internal/point"
	"github.com/R3E-Network/starlane/internal/status"
)

// Wrapper intercepts reads for well-known synthetic points (the global root
// "+") before delegating to the underlying backend: a record lookup of the
// global root returns a synthetic record at the local star.
type Wrapper struct {
	RegistryApi
	localStar point.Point
}

// NewWrapper wraps backend, synthesizing root reads as hosted at localStar.
func NewWrapper(backend RegistryApi, localStar point.Point) *Wrapper {
	return &Wrapper{RegistryApi: backend, localStar: localStar}
}

func (w *Wrapper) syntheticRoot() particle.Details {
	star := w.localStar
	return particle.Details{
		Stub: particle.Stub{
			Point:  point.MustNew(point.Root),
			Kind:   kind.Kind{Base: kind.BaseRoot},
			Status: status.Status{Phase: status.PhaseReady, Action: status.ActionDone},
		},
		Location: particle.Location{Star: &star},
	}
}

func (w *Wrapper) Record(ctx context.Context, p point.Point) (particle.Details, error) {
	if p.IsRoot() {
		return w.syntheticRoot(), nil
	}
	return w.RegistryApi.Record(ctx, p)
}

func (w *Wrapper) Select(ctx context.Context, s Select) ([]particle.Stub, error) {
	if s.Root.IsRoot() {
		out, err := w.RegistryApi.Select(ctx, s)
		if err != nil {
			return nil, err
		}
		root := w.syntheticRoot().Stub
		for _, stub := range out {
			if stub.Point.Equal(root.Point) {
				return out, nil
			}
		}
		return append([]particle.Stub{root}, out...), nil
	}
	return w.RegistryApi.Select(ctx, s)
}

var _ RegistryApi = (*Wrapper)(nil)
