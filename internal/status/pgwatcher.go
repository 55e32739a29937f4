package status

import (
	"context"
	"encoding/json"

	"github.com/R3E-Network/starlane/pkg/pgnotify"
)

// pgChannelPrefix starts every postgres NOTIFY channel name ChannelFor
// builds; the caller's scope string is appended to it.
const pgChannelPrefix = "starlane_status_"

// ChannelFor derives the pgnotify channel name for a point's status
// broadcasts. Postgres channel identifiers are limited to 63 bytes and
// restricted in character set, so the point key is not embedded raw here;
// callers needing per-point channels should hash or truncate key
// themselves. PGWatcher as constructed below uses one shared channel per
// Foundation/Star rather than per-point, matching how status.Watcher is
// actually used (one Watcher per Foundation/Dependency/Provider, not per
// particle).
func ChannelFor(scope string) string { return pgChannelPrefix + scope }

// pgEnvelope is the wire payload carried over a pgnotify Event's Payload.
type pgEnvelope struct {
	Phase  string `json:"phase"`
	Action string `json:"action"`
}

// PGWatcher wraps a Watcher so that Publish also broadcasts across process
// boundaries via postgres LISTEN/NOTIFY (pkg/pgnotify), and incoming remote
// notifications are folded back into the local Watcher. This is the
// SQL-registry-backend counterpart to a plain in-memory Watcher: a status
// change made by one star becomes visible to every other star subscribed
// to the same channel.
type PGWatcher struct {
	*Watcher
	bus     *pgnotify.Bus
	channel string
}

// NewPGWatcher wraps an existing Watcher with cross-process broadcast over
// bus on the given channel. The Watcher's current value is not re-published
// on construction; only subsequent Publish calls broadcast.
func NewPGWatcher(w *Watcher, bus *pgnotify.Bus, channel string) (*PGWatcher, error) {
	pw := &PGWatcher{Watcher: w, bus: bus, channel: channel}
	if err := bus.Subscribe(channel, pw.onRemoteEvent); err != nil {
		return nil, err
	}
	return pw, nil
}

// Publish records the value locally and broadcasts it to every other
// process listening on the same channel.
func (pw *PGWatcher) Publish(ctx context.Context, d StatusDetail) error {
	pw.Watcher.Publish(d)
	env := pgEnvelope{Phase: d.Status.Phase.String(), Action: d.Status.Action.String()}
	return pw.bus.Publish(ctx, pw.channel, env)
}

// onRemoteEvent folds a remote status change back into the local Watcher so
// Last()/Subscribe() observe it without a second round trip through
// Publish (avoiding a publish/receive echo loop back out to postgres).
func (pw *PGWatcher) onRemoteEvent(ctx context.Context, ev pgnotify.Event) error {
	var env pgEnvelope
	if err := json.Unmarshal(ev.Payload, &env); err != nil {
		return err
	}
	phase, ok := phaseFromName[env.Phase]
	if !ok {
		phase = PhaseUnknown
	}
	action, ok := actionFromName[env.Action]
	if !ok {
		action = ActionUnknown
	}
	pw.Watcher.Publish(StatusDetail{Status: Status{Phase: phase, Action: action}})
	return nil
}
