package status

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/R3E-Network/starlane/pkg/pgnotify"
)

func TestChannelForPrefixesScope(t *testing.T) {
	if got := ChannelFor("Mesh<test>"); got != "starlane_status_Mesh<test>" {
		t.Errorf("ChannelFor = %q", got)
	}
}

func TestPGWatcherOnRemoteEventFoldsIntoWatcher(t *testing.T) {
	w := NewWatcher(Unknown("init"))
	pw := &PGWatcher{Watcher: w, channel: "starlane_status_test"}

	ch, cancel := w.Subscribe()
	defer cancel()
	<-ch // drain initial value

	payload, err := json.Marshal(pgEnvelope{Phase: "Ready", Action: "Done"})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	ev := pgnotify.Event{Channel: pw.channel, Payload: payload}

	if err := pw.onRemoteEvent(context.Background(), ev); err != nil {
		t.Fatalf("onRemoteEvent: %v", err)
	}

	got := <-ch
	if got.Status.Phase != PhaseReady || got.Status.Action != ActionDone {
		t.Errorf("onRemoteEvent did not fold status, got %+v", got.Status)
	}
	if !w.Last().Status.IsReady() {
		t.Error("Last() should reflect the remote status")
	}
}

func TestPGWatcherOnRemoteEventUnknownNamesFallBackToUnknown(t *testing.T) {
	w := NewWatcher(Ready())
	pw := &PGWatcher{Watcher: w, channel: "starlane_status_test"}

	ch, cancel := w.Subscribe()
	defer cancel()
	<-ch

	payload, _ := json.Marshal(pgEnvelope{Phase: "Bogus", Action: "Bogus"})
	if err := pw.onRemoteEvent(context.Background(), pgnotify.Event{Payload: payload}); err != nil {
		t.Fatalf("onRemoteEvent: %v", err)
	}

	got := <-ch
	if got.Status.Phase != PhaseUnknown || got.Status.Action != ActionUnknown {
		t.Errorf("expected Unknown fallback, got %+v", got.Status)
	}
}

func TestPGWatcherOnRemoteEventBadPayload(t *testing.T) {
	w := NewWatcher(Ready())
	pw := &PGWatcher{Watcher: w, channel: "starlane_status_test"}

	if err := pw.onRemoteEvent(context.Background(), pgnotify.Event{Payload: []byte("not json")}); err == nil {
		t.Error("expected error decoding malformed payload")
	}
}
