package livesync

import (
	"sync"

	"github.com/clippy-oss/homie/chat-client/internal/store"
)

// Tracker bounds the set of fine-grained per-message subscriptions opened for
// paginated-in messages. The live window gets whole-snapshot updates and does
// not need per-message listeners; only older pages do.
type Tracker struct {
	mu      sync.Mutex
	handles map[string]store.Subscription
}

func NewTracker() *Tracker {
	return &Tracker{handles: make(map[string]store.Subscription)}
}

// Track registers the listener handle for a message id. A second handle for
// an id that is already tracked is released immediately.
func (t *Tracker) Track(messageID string, sub store.Subscription) {
	t.mu.Lock()
	_, exists := t.handles[messageID]
	if !exists {
		t.handles[messageID] = sub
	}
	t.mu.Unlock()

	if exists {
		sub.Unsubscribe()
	}
}

func (t *Tracker) Tracked(messageID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.handles[messageID]
	return ok
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handles)
}

// Clear unsubscribes every tracked listener exactly once and empties the
// registry. This is the leak-prevention contract for window teardown.
func (t *Tracker) Clear() {
	t.mu.Lock()
	handles := t.handles
	t.handles = make(map[string]store.Subscription)
	t.mu.Unlock()

	for _, sub := range handles {
		sub.Unsubscribe()
	}
}
