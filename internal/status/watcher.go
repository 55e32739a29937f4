package status

import "sync"

// Watcher is a last-value-cached broadcast of StatusDetail updates. New
// subscribers immediately observe the most recently published value; late
// subscribers never miss the current state. Publication order is preserved
// per writer: the channel delivers values in the order Publish was called.
type Watcher struct {
	mu   sync.Mutex
	last StatusDetail
	subs map[int]chan StatusDetail
	next int
}

// NewWatcher creates a Watcher seeded with an initial value.
func NewWatcher(initial StatusDetail) *Watcher {
	return &Watcher{last: initial, subs: make(map[int]chan StatusDetail)}
}

// Last returns the most recently published value; constant-time.
func (w *Watcher) Last() StatusDetail {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Publish records a new value and delivers it to all current subscribers.
// Dropping all receivers does not cancel the producer: a full subscriber
// channel is skipped rather than blocking Publish.
func (w *Watcher) Publish(d StatusDetail) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.last = d
	for _, ch := range w.subs {
		select {
		case ch <- d:
		default:
		}
	}
}

// Subscribe returns a channel that immediately receives the last value and
// then every subsequent Publish. Call the returned cancel func to
// unsubscribe; it is safe to call more than once.
func (w *Watcher) Subscribe() (<-chan StatusDetail, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.next
	w.next++
	ch := make(chan StatusDetail, 8)
	ch <- w.last
	w.subs[id] = ch

	cancel := func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if sub, ok := w.subs[id]; ok {
			delete(w.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}
