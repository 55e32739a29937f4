package executor

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	slerrors "github.com/R3E-Network/starlane/infrastructure/errors"
	"github.com/R3E-Network/starlane/internal/base/platform"
	"github.com/R3E-Network/starlane/internal/particle"
	"github.com/R3E-Network/starlane/internal/point"
	"github.com/R3E-Network/starlane/internal/registry"
	"github.com/R3E-Network/starlane/internal/status"
)

// ReflectedCore is the HTTP-shaped response envelope every dispatched
// Command resolves to.
type ReflectedCore struct {
	Status int
	Body   interface{}
}

// Ok wraps a success body at HTTP 200.
func Ok(body interface{}) ReflectedCore { return ReflectedCore{Status: http.StatusOK, Body: body} }

// OkEmpty is the success response for a command with no body, e.g. Set.
func OkEmpty() ReflectedCore { return ReflectedCore{Status: http.StatusOK} }

// FromError renders err as a ReflectedCore using the StarlaneError taxonomy's
// HTTP mapping. Non-StarlaneErrors render as 500.
func FromError(err error) ReflectedCore {
	if se := slerrors.As(err); se != nil {
		return ReflectedCore{Status: se.HTTPStatus, Body: se}
	}
	return ReflectedCore{Status: http.StatusInternalServerError, Body: map[string]string{"message": err.Error()}}
}

// Provisioner lands a newly created particle on a star/host. The executor
// invokes it only when Create carries substance (an Install block) or the
// resolved Kind auto-provisions. Starlane does not implement portal/tcp
// transport framing, so provisioning here is a registry-level landing
// assignment, not an actual deploy-and-connect handshake.
type Provisioner interface {
	Provision(ctx context.Context, p point.Point, hasSubstance bool) error
}

// StarAssigningProvisioner provisions by pinning every created particle to a
// fixed star/host pair, the shape a single-star deployment needs.
type StarAssigningProvisioner struct {
	Registry registry.RegistryApi
	Star     point.Point
	Host     point.Point
}

func (p *StarAssigningProvisioner) Provision(ctx context.Context, pt point.Point, hasSubstance bool) error {
	if err := p.Registry.AssignStar(ctx, pt, p.Star); err != nil {
		return err
	}
	if p.Host.IsRoot() {
		return nil
	}
	return p.Registry.AssignHost(ctx, pt, p.Host)
}

// Executor is the Global Command Executor: it resolves parsed Commands
// against a Registry (and Platform for Kind resolution/property defaults).
type Executor struct {
	Registry    registry.RegistryApi
	Platform    platform.Platform
	Provisioner Provisioner
}

// New builds an Executor. Provisioner may be nil: Create then registers the
// particle but never lands it, appropriate for Kinds that never carry
// substance nor auto-provision.
func New(reg registry.RegistryApi, plat platform.Platform, prov Provisioner) *Executor {
	return &Executor{Registry: reg, Platform: plat, Provisioner: prov}
}

// Execute dispatches one parsed Command as the given agent (the caller
// identity recorded as Owner on Create) and renders its outcome.
func (e *Executor) Execute(ctx context.Context, cmd Command, agent point.Point) ReflectedCore {
	switch c := cmd.(type) {
	case CreateCommand:
		details, err := e.create(ctx, c, agent)
		if err != nil {
			return FromError(err)
		}
		return Ok(details)
	case SelectCommand:
		stubs, err := e.Registry.Select(ctx, c.Select)
		if err != nil {
			return FromError(err)
		}
		return Ok(stubs)
	case DeleteCommand:
		removed, err := e.Registry.Delete(ctx, c.Delete)
		if err != nil {
			return FromError(err)
		}
		return Ok(removed)
	case SetCommand:
		if err := e.Registry.SetProperties(ctx, registry.SetProperties{Point: c.Point, Mods: c.Mods}); err != nil {
			return FromError(err)
		}
		return OkEmpty()
	case ReadCommand:
		details, err := e.Registry.Record(ctx, c.Point)
		if err != nil {
			return FromError(err)
		}
		return Ok(details)
	default:
		return FromError(slerrors.Spatial("command not recognized"))
	}
}

// create implements GlobalExecutionChamber::create: resolve the Kind,
// resolve the target point from the PointSegTemplate, fill/validate
// properties, register, provision if warranted, and return the resulting
// record.
func (e *Executor) create(ctx context.Context, c CreateCommand, agent point.Point) (particle.Details, error) {
	childKind, err := e.Platform.SelectKind(c.Kind)
	if err != nil {
		return particle.Details{}, err
	}

	var pt point.Point
	switch c.Segment.Kind {
	case SegExact:
		pt, err = c.Parent.Push(c.Segment.Value)
		if err != nil {
			return particle.Details{}, slerrors.Spatial(err.Error())
		}

		pc := e.Platform.PropertiesConfig(childKind)
		props := c.Properties
		if props == nil {
			props = particle.Properties{}
		}
		pc.ApplyLockedDefaults(props)
		if err := pc.Validate(props); err != nil {
			return particle.Details{}, slerrors.Spatial(err.Error())
		}

		reg := particle.Registration{
			Point:      pt,
			Kind:       childKind,
			Properties: props,
			Owner:      agent,
			Strategy:   c.Strategy,
			Status:     status.Status{Phase: status.PhaseReady, Action: status.ActionDone},
		}
		if err := e.Registry.Register(ctx, reg); err != nil {
			return particle.Details{}, err
		}

	case SegPattern:
		if strings.Count(c.Segment.Value, "%") != 1 {
			return particle.Details{}, slerrors.Spatial("pattern point template must contain exactly one '%'")
		}
		idx, err := e.Registry.Sequence(ctx, c.Parent)
		if err != nil {
			return particle.Details{}, err
		}
		childSeg := strings.Replace(c.Segment.Value, "%", strconv.FormatUint(idx, 10), 1)
		pt, err = c.Parent.Push(childSeg)
		if err != nil {
			return particle.Details{}, slerrors.Spatial(err.Error())
		}

		reg := particle.Registration{
			Point:      pt,
			Kind:       childKind,
			Properties: c.Properties,
			Owner:      point.Point{}, // root owns pattern-created particles, matching the original's Point::root() owner
			Strategy:   c.Strategy,
			Status:     status.Status{Phase: status.PhaseReady, Action: status.ActionDone},
		}
		if err := e.Registry.Register(ctx, reg); err != nil {
			if slerrors.Is(err, slerrors.CodeDupe) {
				// The resolved point is taken: retry with the next sequence id.
				return e.create(ctx, c, agent)
			}
			return particle.Details{}, err
		}

	case SegRoot:
		pt = point.Point{}

	default:
		return particle.Details{}, slerrors.Spatial("unknown point segment template")
	}

	if (c.HasSubstance || childKind.IsAutoProvision()) && e.Provisioner != nil {
		if err := e.Provisioner.Provision(ctx, pt, c.HasSubstance); err != nil {
			return particle.Details{}, err
		}
	}

	return e.Registry.Record(ctx, pt)
}
