// Package status implements the uniform progress/health model every managed
// entity (Provider, Dependency, Foundation, particle) advances through.
package status

import (
	slerrors "github.com/R3E-Network/starlane/infrastructure/errors"
)

// Phase is the lifecycle position of a managed entity.
type Phase int

const (
	PhaseUnknown Phase = iota
	PhaseNone
	PhaseDownloaded
	PhaseInstalled
	PhaseInitialize
	PhaseStarted
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseUnknown:
		return "Unknown"
	case PhaseNone:
		return "None"
	case PhaseDownloaded:
		return "Downloaded"
	case PhaseInstalled:
		return "Installed"
	case PhaseInitialize:
		return "Initialize"
	case PhaseStarted:
		return "Started"
	case PhaseReady:
		return "Ready"
	default:
		return "Unknown"
	}
}

// phaseFromName reverses Phase.String, used to decode a Phase carried over
// the wire (pgnotify's PGWatcher).
var phaseFromName = map[string]Phase{
	"Unknown":    PhaseUnknown,
	"None":       PhaseNone,
	"Downloaded": PhaseDownloaded,
	"Installed":  PhaseInstalled,
	"Initialize": PhaseInitialize,
	"Started":    PhaseStarted,
	"Ready":      PhaseReady,
}

// rank orders phases for regression checks; PhaseUnknown is deliberately not
// comparable by rank (it is reachable only via an explicit reset).
var rank = map[Phase]int{
	PhaseNone:       0,
	PhaseDownloaded: 1,
	PhaseInstalled:  2,
	PhaseInitialize: 3,
	PhaseStarted:    4,
	PhaseReady:      5,
}

// Before reports whether p is strictly earlier than o in the boot sequence.
func (p Phase) Before(o Phase) bool {
	pr, pok := rank[p]
	or, ook := rank[o]
	if !pok || !ook {
		return false
	}
	return pr < or
}

// Action is the in-progress activity accompanying a Phase.
type Action int

const (
	ActionUnknown Action = iota
	ActionNone
	ActionProbing
	ActionPending
	ActionInitializing
	ActionDone
)

func (a Action) String() string {
	switch a {
	case ActionUnknown:
		return "Unknown"
	case ActionNone:
		return "None"
	case ActionProbing:
		return "Probing"
	case ActionPending:
		return "Pending"
	case ActionInitializing:
		return "Initializing"
	case ActionDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// actionFromName reverses Action.String, used to decode an Action carried
// over the wire (pgnotify's PGWatcher).
var actionFromName = map[string]Action{
	"Unknown":      ActionUnknown,
	"None":         ActionNone,
	"Probing":      ActionProbing,
	"Pending":      ActionPending,
	"Initializing": ActionInitializing,
	"Done":         ActionDone,
}

// Status is the minimal phase/action pair.
type Status struct {
	Phase  Phase
	Action Action
}

func (s Status) IsReady() bool { return s.Phase == PhaseReady }

// PendingDetail carries operator guidance for Action == ActionPending.
type PendingDetail struct {
	Action *slerrors.ActionRequest
}

// PanicDetail records a terminal failure: the offending kind/provider plus
// a message, stored in StatusDetail when a terminal failure occurs.
type PanicDetail struct {
	Kind     string
	Provider string
	Message  string
}

// StatusDetail widens Status with diagnostics: Pending carries an
// ActionRequest the operator can follow to unblock progress; Unreachable
// records that a probe could not observe state (distinct from failure);
// Panic records a terminal failure.
type StatusDetail struct {
	Status      Status
	Pending     *PendingDetail
	Unreachable string // non-empty: probe failed to observe state
	Panic       *PanicDetail
}

func (d StatusDetail) IsPending() bool { return d.Status.Action == ActionPending }

// Unknown returns the Unreachable status: Phase::Unknown, Action::Unknown,
// surfaced whenever a probe fails.
func Unknown(reason string) StatusDetail {
	return StatusDetail{
		Status:      Status{Phase: PhaseUnknown, Action: ActionUnknown},
		Unreachable: reason,
	}
}

// Pending returns a StatusDetail carrying operator guidance.
func Pending(phase Phase, action *slerrors.ActionRequest) StatusDetail {
	return StatusDetail{
		Status:  Status{Phase: phase, Action: ActionPending},
		Pending: &PendingDetail{Action: action},
	}
}

// Ready returns the terminal success StatusDetail.
func Ready() StatusDetail {
	return StatusDetail{Status: Status{Phase: PhaseReady, Action: ActionDone}}
}
