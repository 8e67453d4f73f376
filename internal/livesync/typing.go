package livesync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clippy-oss/homie/chat-client/internal/metrics"
	"github.com/clippy-oss/homie/chat-client/internal/store"
)

const (
	DefaultTypingThrottle  = time.Second
	DefaultTypingIdleClear = 3 * time.Second
)

// Reporter rate-limits outgoing typing signals and auto-clears the flag
// after inactivity (throttle, then debounce-after-throttle).
type Reporter struct {
	store          store.Store
	log            zerolog.Logger
	conversationID string
	userID         string
	throttle       time.Duration
	idleClear      time.Duration
	now            func() time.Time

	mu           sync.Mutex
	lastAccepted time.Time
	clearTimer   *time.Timer
	closed       bool
}

func NewReporter(st store.Store, conversationID, userID string, throttle, idleClear time.Duration, log zerolog.Logger) *Reporter {
	if throttle <= 0 {
		throttle = DefaultTypingThrottle
	}
	if idleClear <= 0 {
		idleClear = DefaultTypingIdleClear
	}
	return &Reporter{
		store:          st,
		log:            log,
		conversationID: conversationID,
		userID:         userID,
		throttle:       throttle,
		idleClear:      idleClear,
		now:            time.Now,
	}
}

// Signal reports that the local user is typing. A call within the throttle
// window of the previous accepted call is a no-op. Every accepted call
// writes typing=true and resets the deferred clear timer.
func (r *Reporter) Signal(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	now := r.now()
	if !r.lastAccepted.IsZero() && now.Sub(r.lastAccepted) < r.throttle {
		r.mu.Unlock()
		metrics.TypingWritesThrottled.Inc()
		return nil
	}
	r.lastAccepted = now
	if r.clearTimer != nil {
		r.clearTimer.Stop()
	}
	r.clearTimer = time.AfterFunc(r.idleClear, r.clear)
	r.mu.Unlock()

	if err := r.store.SetTyping(ctx, r.conversationID, r.userID, true); err != nil {
		return fmt.Errorf("set typing: %w", err)
	}
	return nil
}

func (r *Reporter) clear() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.clearTimer = nil
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.SetTyping(ctx, r.conversationID, r.userID, false); err != nil {
		r.log.Warn().Err(err).Str("conversation", r.conversationID).Msg("failed to clear typing flag")
	}
}

// Close cancels any pending deferred clear and writes typing=false once,
// best-effort. Failure is logged, not retried.
func (r *Reporter) Close(ctx context.Context) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	if r.clearTimer != nil {
		r.clearTimer.Stop()
		r.clearTimer = nil
	}
	r.mu.Unlock()

	if err := r.store.SetTyping(ctx, r.conversationID, r.userID, false); err != nil {
		r.log.Warn().Err(err).Str("conversation", r.conversationID).Msg("failed to clear typing flag on close")
	}
}

// Mirror keeps a local copy of the conversation's remote typing map via a
// standing subscription. Consumers read the mirror, never the store.
type Mirror struct {
	// OnChange, when set before Start, is called with a copy of the typing
	// map after every remote change.
	OnChange func(typing map[string]bool)

	mu     sync.RWMutex
	typing map[string]bool
	sub    store.Subscription
}

func NewMirror() *Mirror {
	return &Mirror{typing: make(map[string]bool)}
}

func (m *Mirror) Start(ctx context.Context, st store.Store, conversationID string) error {
	sub, err := st.SubscribeTyping(ctx, conversationID, func(typing map[string]bool) {
		m.mu.Lock()
		m.typing = typing
		m.mu.Unlock()
		if m.OnChange != nil {
			m.OnChange(typing)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe typing: %w", err)
	}

	m.mu.Lock()
	m.sub = sub
	m.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the mirrored typing map.
func (m *Mirror) Snapshot() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]bool, len(m.typing))
	for k, v := range m.typing {
		out[k] = v
	}
	return out
}

func (m *Mirror) Typing(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.typing[userID]
}

func (m *Mirror) Close() {
	m.mu.Lock()
	sub := m.sub
	m.sub = nil
	m.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}
