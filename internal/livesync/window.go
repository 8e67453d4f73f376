package livesync

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clippy-oss/homie/chat-client/internal/domain"
	"github.com/clippy-oss/homie/chat-client/internal/metrics"
	"github.com/clippy-oss/homie/chat-client/internal/store"
)

const (
	DefaultPageSize           = 20
	DefaultReconcileTolerance = 5 * time.Second

	// optimisticIDPrefix keeps client-local ids distinct from persisted ids.
	optimisticIDPrefix = "local-"
)

type Config struct {
	// PageSize is the live window size and the pagination batch size.
	PageSize int
	// ReconcileTolerance is the timestamp slack when matching an optimistic
	// message against its persisted counterpart.
	ReconcileTolerance time.Duration
	// OnChange, when set, is called with the recomputed visible sequence
	// after every change. Called without internal locks held.
	OnChange func(messages []*domain.Message)
}

// Window is the single source of truth for the messages currently visible in
// one (conversation, topic) scope. It reconciles three producers: the live
// recent-messages snapshot, backward-paged batches, and optimistic local
// entries. A generation token guards every asynchronous callback so that a
// superseded window can never mutate current state.
type Window struct {
	store store.Store
	cfg   Config
	log   zerolog.Logger
	now   func() time.Time

	mu             sync.Mutex
	gen            uint64
	open           bool
	conversationID string
	topicID        string
	ctx            context.Context
	cancel         context.CancelFunc
	sub            store.Subscription
	tracker        *Tracker

	recent     []*domain.Message
	older      []*domain.Message
	optimistic []*domain.Message

	cursor       time.Time
	cursorSet    bool
	hasMoreOlder bool

	loadingInitial bool
	loadingOlder   bool

	visible []*domain.Message
}

func NewWindow(st store.Store, cfg Config, log zerolog.Logger) *Window {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.ReconcileTolerance <= 0 {
		cfg.ReconcileTolerance = DefaultReconcileTolerance
	}
	return &Window{
		store:   st,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
		tracker: NewTracker(),
	}
}

// Open subscribes to the most recent messages of the given scope, tearing
// down any previously open window first. If subscribing fails the previous
// window is left untouched. Reopening is safe against late callbacks from
// the superseded subscription: their generation token no longer matches.
func (w *Window) Open(conversationID, topicID string) error {
	w.mu.Lock()

	gen := w.gen + 1
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := w.store.SubscribeRecentMessages(ctx, conversationID, topicID, w.cfg.PageSize, func(msgs []*domain.Message) {
		w.applySnapshot(gen, msgs)
	})
	if err != nil {
		cancel()
		w.mu.Unlock()
		return fmt.Errorf("subscribe recent messages: %w", err)
	}

	w.teardownLocked()

	w.gen = gen
	w.open = true
	w.conversationID = conversationID
	w.topicID = topicID
	w.ctx = ctx
	w.cancel = cancel
	w.sub = sub
	w.recent = nil
	w.older = nil
	w.optimistic = nil
	w.cursor = time.Time{}
	w.cursorSet = false
	w.hasMoreOlder = true
	w.loadingInitial = true
	w.loadingOlder = false

	vis := w.recomputeLocked()
	w.mu.Unlock()

	w.log.Debug().Str("conversation", conversationID).Str("topic", topicID).Uint64("generation", gen).Msg("window opened")
	w.notify(vis)
	return nil
}

// Close tears the window down: live subscription, every per-message listener
// and all cached state. Late callbacks are discarded by the generation bump.
func (w *Window) Close() {
	w.mu.Lock()
	if !w.open {
		w.mu.Unlock()
		return
	}
	w.gen++
	w.teardownLocked()
	w.open = false
	w.conversationID = ""
	w.topicID = ""
	w.recent = nil
	w.older = nil
	w.optimistic = nil
	w.cursor = time.Time{}
	w.cursorSet = false
	w.hasMoreOlder = false
	w.loadingInitial = false
	w.loadingOlder = false
	vis := w.recomputeLocked()
	w.mu.Unlock()

	w.notify(vis)
}

// teardownLocked releases the live subscription and the tracked per-message
// listeners of the current generation.
func (w *Window) teardownLocked() {
	if w.sub != nil {
		w.sub.Unsubscribe()
		w.sub = nil
	}
	w.tracker.Clear()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}

func (w *Window) applySnapshot(gen uint64, msgs []*domain.Message) {
	w.mu.Lock()
	if gen != w.gen {
		w.mu.Unlock()
		metrics.StaleCallbacksDropped.Inc()
		return
	}

	w.loadingInitial = false
	w.recent = msgs

	// Reconcile: an optimistic entry matched by a persisted message within
	// tolerance is dropped in favor of the persisted copy.
	if len(w.optimistic) > 0 {
		remaining := w.optimistic[:0]
		for _, opt := range w.optimistic {
			if matchOptimistic(opt, msgs, w.cfg.ReconcileTolerance) {
				metrics.OptimisticReconciled.Inc()
				continue
			}
			remaining = append(remaining, opt)
		}
		w.optimistic = remaining
	}

	// The cursor only seeds from a snapshot or moves backward; pagination
	// may already have moved it past what the snapshot covers.
	if len(msgs) > 0 {
		first := msgs[0].Timestamp
		if !w.cursorSet || first.Before(w.cursor) {
			w.cursor = first
			w.cursorSet = true
		}
	}

	metrics.SnapshotsApplied.Inc()
	vis := w.recomputeLocked()
	w.mu.Unlock()

	w.notify(vis)
}

// applyMessageUpdate replaces a tracked message in place, matched by id.
// Timestamps are immutable post-creation, so no re-sort is needed and
// applying the same update twice is harmless.
func (w *Window) applyMessageUpdate(gen uint64, msg *domain.Message) {
	w.mu.Lock()
	if gen != w.gen {
		w.mu.Unlock()
		metrics.StaleCallbacksDropped.Inc()
		return
	}

	replaced := replaceByID(w.older, msg) || replaceByID(w.recent, msg)
	if !replaced {
		w.mu.Unlock()
		return
	}

	vis := w.recomputeLocked()
	w.mu.Unlock()

	w.notify(vis)
}

// LoadOlder fetches the next page of messages strictly before the current
// cursor. It is a no-op while no window is open, no cursor is set, a load is
// already in flight, or the history is exhausted.
func (w *Window) LoadOlder(ctx context.Context) error {
	w.mu.Lock()
	if !w.open || !w.cursorSet || w.loadingOlder || !w.hasMoreOlder {
		w.mu.Unlock()
		return nil
	}
	gen := w.gen
	conversationID, topicID := w.conversationID, w.topicID
	cursor := w.cursor
	limit := w.cfg.PageSize
	windowCtx := w.ctx
	w.loadingOlder = true
	w.mu.Unlock()

	batch, err := w.store.QueryMessagesBefore(ctx, conversationID, topicID, cursor, limit)

	w.mu.Lock()
	if gen != w.gen {
		// The window moved on while the query was in flight; the new
		// window's state owns the loading flags now.
		w.mu.Unlock()
		metrics.StaleCallbacksDropped.Inc()
		return nil
	}
	w.loadingOlder = false
	if err != nil {
		w.mu.Unlock()
		return fmt.Errorf("load older messages: %w", err)
	}

	w.hasMoreOlder = len(batch) == limit
	if len(batch) == 0 {
		w.mu.Unlock()
		return nil
	}

	seen := make(map[string]bool, len(w.older)+len(w.recent)+len(w.optimistic))
	for _, m := range w.older {
		seen[m.ID] = true
	}
	for _, m := range w.recent {
		seen[m.ID] = true
	}
	for _, m := range w.optimistic {
		seen[m.ID] = true
	}

	fresh := make([]*domain.Message, 0, len(batch))
	for _, m := range batch {
		if !seen[m.ID] {
			fresh = append(fresh, m)
		}
	}

	w.older = append(fresh, w.older...)
	w.cursor = batch[0].Timestamp
	w.cursorSet = true

	for _, m := range fresh {
		w.trackLocked(gen, windowCtx, m.ID)
	}

	metrics.PagesLoaded.Inc()
	vis := w.recomputeLocked()
	w.mu.Unlock()

	w.notify(vis)
	return nil
}

// trackLocked opens a per-message listener so edits, reactions and status
// changes on paged-in messages propagate without re-fetching the page.
func (w *Window) trackLocked(gen uint64, ctx context.Context, messageID string) {
	if w.tracker.Tracked(messageID) {
		return
	}
	sub, err := w.store.SubscribeMessage(ctx, w.conversationID, w.topicID, messageID, func(msg *domain.Message) {
		w.applyMessageUpdate(gen, msg)
	})
	if err != nil {
		w.log.Warn().Err(err).Str("message", messageID).Msg("failed to track message")
		return
	}
	w.tracker.Track(messageID, sub)
}

// AddOptimistic appends a locally created message, stamped with the current
// time and a client-local id, and returns that id so the caller can remove
// the entry explicitly if the send fails.
func (w *Window) AddOptimistic(draft domain.Draft) string {
	w.mu.Lock()
	localID := optimisticIDPrefix + uuid.NewString()
	msg := &domain.Message{
		ID:             localID,
		ConversationID: w.conversationID,
		TopicID:        w.topicID,
		SenderID:       draft.SenderID,
		Text:           draft.Text,
		File:           draft.File,
		ReplyTo:        draft.ReplyTo,
		Timestamp:      w.now(),
		Status:         domain.MessageStatusSent,
		Optimistic:     true,
	}
	w.optimistic = append(w.optimistic, msg)
	vis := w.recomputeLocked()
	w.mu.Unlock()

	w.notify(vis)
	return localID
}

// RemoveOptimistic removes a pending optimistic message by its local id.
func (w *Window) RemoveOptimistic(localID string) {
	w.mu.Lock()
	remaining := w.optimistic[:0]
	for _, m := range w.optimistic {
		if m.ID != localID {
			remaining = append(remaining, m)
		}
	}
	w.optimistic = remaining
	vis := w.recomputeLocked()
	w.mu.Unlock()

	w.notify(vis)
}

// Messages returns the memoized visible sequence: persisted and optimistic
// messages merged, ascending by timestamp, ties kept in insertion order.
// Callers must treat the slice as read-only.
func (w *Window) Messages() []*domain.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.visible
}

func (w *Window) LoadingInitial() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loadingInitial
}

func (w *Window) LoadingOlder() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loadingOlder
}

func (w *Window) HasMoreOlder() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.hasMoreOlder
}

func (w *Window) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open
}

// TrackedListeners reports the size of the per-message listener registry.
func (w *Window) TrackedListeners() int {
	return w.tracker.Len()
}

func (w *Window) Scope() (conversationID, topicID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conversationID, w.topicID
}

// recomputeLocked rebuilds the visible sequence. The snapshot copy of a
// message wins over a paged-in copy with the same id, keeping the paged
// copy's insertion position. The sort is stable so equal timestamps keep
// insertion order, with optimistic entries appended last.
func (w *Window) recomputeLocked() []*domain.Message {
	combined := make([]*domain.Message, 0, len(w.older)+len(w.recent)+len(w.optimistic))
	index := make(map[string]int, len(w.older)+len(w.recent))

	for _, m := range w.older {
		index[m.ID] = len(combined)
		combined = append(combined, m)
	}
	for _, m := range w.recent {
		if i, ok := index[m.ID]; ok {
			combined[i] = m
			continue
		}
		index[m.ID] = len(combined)
		combined = append(combined, m)
	}
	combined = append(combined, w.optimistic...)

	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].Timestamp.Before(combined[j].Timestamp)
	})

	w.visible = combined
	return combined
}

func (w *Window) notify(messages []*domain.Message) {
	if w.cfg.OnChange != nil {
		w.cfg.OnChange(messages)
	}
}

func matchOptimistic(opt *domain.Message, persisted []*domain.Message, tolerance time.Duration) bool {
	for _, p := range persisted {
		if p.Optimistic || p.SenderID != opt.SenderID {
			continue
		}
		if p.Text != opt.Text {
			continue
		}
		if (opt.File == nil) != (p.File == nil) {
			continue
		}
		if opt.File != nil && opt.File.Name != p.File.Name {
			continue
		}
		delta := p.Timestamp.Sub(opt.Timestamp)
		if delta < 0 {
			delta = -delta
		}
		if delta <= tolerance {
			return true
		}
	}
	return false
}

func replaceByID(msgs []*domain.Message, update *domain.Message) bool {
	for i, m := range msgs {
		if m.ID == update.ID {
			msgs[i] = update
			return true
		}
	}
	return false
}
