package livesync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clippy-oss/homie/chat-client/internal/domain"
)

var testBase = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// seedMessages builds n persisted messages one minute apart, ascending.
func seedMessages(n int) []*domain.Message {
	msgs := make([]*domain.Message, n)
	for i := 0; i < n; i++ {
		msgs[i] = domain.NewTextMessage(
			fmt.Sprintf("m%03d", i),
			"conv-1", "", "bob",
			fmt.Sprintf("message %d", i),
			testBase.Add(time.Duration(i)*time.Minute),
		)
	}
	return msgs
}

func newTestWindow(f *fakeStore, cfg Config) *Window {
	return NewWindow(f, cfg, zerolog.Nop())
}

func assertAscending(t *testing.T, msgs []*domain.Message) {
	t.Helper()
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Timestamp.Before(msgs[i-1].Timestamp) {
			t.Fatalf("messages out of order at %d: %s before %s", i, msgs[i].ID, msgs[i-1].ID)
		}
	}
}

func TestWindowInitialSnapshot(t *testing.T) {
	f := newFakeStore()
	f.backlog = seedMessages(45)
	w := newTestWindow(f, Config{PageSize: 20})

	if err := w.Open("conv-1", ""); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !w.LoadingInitial() {
		t.Fatalf("expected LoadingInitial before first snapshot")
	}

	f.pushSnapshot(f.backlog[25:])

	if w.LoadingInitial() {
		t.Fatalf("LoadingInitial should clear after first snapshot")
	}
	got := w.Messages()
	if len(got) != 20 {
		t.Fatalf("visible count = %d, want 20", len(got))
	}
	if got[0].ID != "m025" || got[19].ID != "m044" {
		t.Fatalf("window bounds = %s..%s, want m025..m044", got[0].ID, got[19].ID)
	}
	assertAscending(t, got)
}

func TestWindowPaginationTermination(t *testing.T) {
	f := newFakeStore()
	f.backlog = seedMessages(45)
	w := newTestWindow(f, Config{PageSize: 20})

	if err := w.Open("conv-1", ""); err != nil {
		t.Fatalf("Open: %v", err)
	}
	f.pushSnapshot(f.backlog[25:])

	if err := w.LoadOlder(context.Background()); err != nil {
		t.Fatalf("LoadOlder: %v", err)
	}
	if len(w.Messages()) != 40 {
		t.Fatalf("after first page: %d messages, want 40", len(w.Messages()))
	}
	if !w.HasMoreOlder() {
		t.Fatalf("full page should leave HasMoreOlder true")
	}

	if err := w.LoadOlder(context.Background()); err != nil {
		t.Fatalf("LoadOlder: %v", err)
	}
	if len(w.Messages()) != 45 {
		t.Fatalf("after second page: %d messages, want 45", len(w.Messages()))
	}
	if w.HasMoreOlder() {
		t.Fatalf("short page should clear HasMoreOlder")
	}
	assertAscending(t, w.Messages())

	// Exhausted history: further calls must not hit the store.
	queries := f.queryCount()
	if err := w.LoadOlder(context.Background()); err != nil {
		t.Fatalf("LoadOlder after exhaustion: %v", err)
	}
	if f.queryCount() != queries {
		t.Fatalf("LoadOlder queried the store after history was exhausted")
	}
}

func TestWindowDedupsOverlappingPage(t *testing.T) {
	f := newFakeStore()
	f.backlog = seedMessages(30)
	w := newTestWindow(f, Config{PageSize: 20})

	if err := w.Open("conv-1", ""); err != nil {
		t.Fatalf("Open: %v", err)
	}
	f.pushSnapshot(f.backlog[10:])

	// The page overlaps the live window on m010..m014.
	f.mu.Lock()
	f.queryOverride = append([]*domain.Message(nil), f.backlog[5:15]...)
	f.mu.Unlock()

	if err := w.LoadOlder(context.Background()); err != nil {
		t.Fatalf("LoadOlder: %v", err)
	}

	got := w.Messages()
	if len(got) != 25 {
		t.Fatalf("visible count = %d, want 25 (overlap deduplicated)", len(got))
	}
	seen := make(map[string]int)
	for _, m := range got {
		seen[m.ID]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("message %s appears %d times", id, n)
		}
	}
	assertAscending(t, got)
}

func TestWindowOptimisticReconciled(t *testing.T) {
	f := newFakeStore()
	f.backlog = seedMessages(3)
	w := newTestWindow(f, Config{PageSize: 20})
	localNow := testBase.Add(30 * time.Minute)
	w.now = func() time.Time { return localNow }

	if err := w.Open("conv-1", ""); err != nil {
		t.Fatalf("Open: %v", err)
	}
	f.pushSnapshot(f.backlog)

	w.AddOptimistic(domain.Draft{SenderID: "alice", Text: "hello"})
	got := w.Messages()
	if len(got) != 4 || !got[3].Optimistic {
		t.Fatalf("expected optimistic entry appended, got %d messages", len(got))
	}

	persisted := domain.NewTextMessage("srv-1", "conv-1", "", "alice", "hello", localNow.Add(2*time.Second))
	f.pushSnapshot(append(append([]*domain.Message(nil), f.backlog...), persisted))

	got = w.Messages()
	if len(got) != 4 {
		t.Fatalf("after reconcile: %d messages, want 4", len(got))
	}
	for _, m := range got {
		if m.Optimistic {
			t.Fatalf("message %s still optimistic after reconcile", m.ID)
		}
	}
	if got[3].ID != "srv-1" {
		t.Fatalf("persisted copy should replace the optimistic one, got %s", got[3].ID)
	}
}

func TestWindowOptimisticKeptWithoutMatch(t *testing.T) {
	f := newFakeStore()
	f.backlog = seedMessages(3)
	w := newTestWindow(f, Config{PageSize: 20, ReconcileTolerance: 5 * time.Second})
	localNow := testBase.Add(30 * time.Minute)
	w.now = func() time.Time { return localNow }

	if err := w.Open("conv-1", ""); err != nil {
		t.Fatalf("Open: %v", err)
	}
	f.pushSnapshot(f.backlog)
	w.AddOptimistic(domain.Draft{SenderID: "alice", Text: "hello"})

	tests := []struct {
		name string
		msg  *domain.Message
	}{
		{name: "different text", msg: domain.NewTextMessage("srv-2", "conv-1", "", "alice", "goodbye", localNow.Add(time.Second))},
		{name: "different sender", msg: domain.NewTextMessage("srv-3", "conv-1", "", "bob", "hello", localNow.Add(time.Second))},
		{name: "outside tolerance", msg: domain.NewTextMessage("srv-4", "conv-1", "", "alice", "hello", localNow.Add(10*time.Second))},
	}

	for _, tc := range tests {
		f.pushSnapshot(append(append([]*domain.Message(nil), f.backlog...), tc.msg))

		optimistic := 0
		for _, m := range w.Messages() {
			if m.Optimistic {
				optimistic++
			}
		}
		if optimistic != 1 {
			t.Fatalf("%s: optimistic count = %d, want 1", tc.name, optimistic)
		}
	}
}

func TestWindowRemoveOptimistic(t *testing.T) {
	f := newFakeStore()
	w := newTestWindow(f, Config{PageSize: 20})

	if err := w.Open("conv-1", ""); err != nil {
		t.Fatalf("Open: %v", err)
	}
	f.pushSnapshot(nil)

	localID := w.AddOptimistic(domain.Draft{SenderID: "alice", Text: "oops"})
	if len(w.Messages()) != 1 {
		t.Fatalf("expected one pending message")
	}

	w.RemoveOptimistic(localID)
	if len(w.Messages()) != 0 {
		t.Fatalf("optimistic message should be gone after removal")
	}
}

func TestWindowStaleSnapshotDiscardedAfterReopen(t *testing.T) {
	f := newFakeStore()
	w := newTestWindow(f, Config{PageSize: 20})

	if err := w.Open("conv-1", ""); err != nil {
		t.Fatalf("Open: %v", err)
	}
	f.mu.Lock()
	staleHandler := f.recentSubs[0].snapshotFn
	f.mu.Unlock()

	if err := w.Open("conv-2", ""); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	fresh := []*domain.Message{domain.NewTextMessage("n1", "conv-2", "", "bob", "hi", testBase)}
	f.pushSnapshot(fresh)

	// Late delivery from the superseded subscription must change nothing.
	staleHandler(seedMessages(5))

	got := w.Messages()
	if len(got) != 1 || got[0].ID != "n1" {
		t.Fatalf("stale snapshot leaked into the new window: %d messages", len(got))
	}
}

func TestWindowCloseReleasesEverything(t *testing.T) {
	f := newFakeStore()
	f.backlog = seedMessages(45)
	w := newTestWindow(f, Config{PageSize: 20})

	if err := w.Open("conv-1", ""); err != nil {
		t.Fatalf("Open: %v", err)
	}
	f.pushSnapshot(f.backlog[25:])
	if err := w.LoadOlder(context.Background()); err != nil {
		t.Fatalf("LoadOlder: %v", err)
	}
	if w.TrackedListeners() != 20 {
		t.Fatalf("tracked listeners = %d, want 20", w.TrackedListeners())
	}

	w.Close()

	if w.IsOpen() {
		t.Fatalf("window still open after Close")
	}
	if w.TrackedListeners() != 0 {
		t.Fatalf("tracked listeners = %d after Close, want 0", w.TrackedListeners())
	}
	// 1 recent subscription + 20 per-message listeners.
	if f.unsubscribedCount() != 21 {
		t.Fatalf("unsubscribed = %d, want 21", f.unsubscribedCount())
	}
	if len(w.Messages()) != 0 {
		t.Fatalf("state not cleared after Close")
	}

	// Late per-message delivery after teardown must not resurrect state.
	f.pushMessage(f.backlog[10])
	if len(w.Messages()) != 0 {
		t.Fatalf("late message update mutated a closed window")
	}
}

func TestWindowLoadOlderErrorAllowsRetry(t *testing.T) {
	f := newFakeStore()
	f.backlog = seedMessages(45)
	w := newTestWindow(f, Config{PageSize: 20})

	if err := w.Open("conv-1", ""); err != nil {
		t.Fatalf("Open: %v", err)
	}
	f.pushSnapshot(f.backlog[25:])

	queryErr := errors.New("disk on fire")
	f.mu.Lock()
	f.queryErr = queryErr
	f.mu.Unlock()

	err := w.LoadOlder(context.Background())
	if !errors.Is(err, queryErr) {
		t.Fatalf("LoadOlder error = %v, want wrapped %v", err, queryErr)
	}
	if w.LoadingOlder() {
		t.Fatalf("loading flag stuck after failed page")
	}

	f.mu.Lock()
	f.queryErr = nil
	f.mu.Unlock()

	if err := w.LoadOlder(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(w.Messages()) != 40 {
		t.Fatalf("retry loaded %d messages, want 40", len(w.Messages()))
	}
}

func TestWindowTrackedMessageUpdateInPlace(t *testing.T) {
	f := newFakeStore()
	f.backlog = seedMessages(45)
	w := newTestWindow(f, Config{PageSize: 20})

	if err := w.Open("conv-1", ""); err != nil {
		t.Fatalf("Open: %v", err)
	}
	f.pushSnapshot(f.backlog[25:])
	if err := w.LoadOlder(context.Background()); err != nil {
		t.Fatalf("LoadOlder: %v", err)
	}

	updated := *f.backlog[10]
	updated.Reactions = domain.ReactionMap{}.Toggle("alice", "heart", testBase)
	updated.Status = domain.MessageStatusRead
	f.pushMessage(&updated)

	got := w.Messages()
	if len(got) != 40 {
		t.Fatalf("update changed visible count: %d", len(got))
	}
	var found *domain.Message
	for _, m := range got {
		if m.ID == "m010" {
			found = m
		}
	}
	if found == nil {
		t.Fatalf("m010 missing from window")
	}
	if found.Status != domain.MessageStatusRead || len(found.Reactions["heart"]) != 1 {
		t.Fatalf("update not applied in place: %+v", found)
	}
}

func TestWindowOpenFailureKeepsCurrentWindow(t *testing.T) {
	f := newFakeStore()
	f.backlog = seedMessages(5)
	w := newTestWindow(f, Config{PageSize: 20})

	if err := w.Open("conv-1", ""); err != nil {
		t.Fatalf("Open: %v", err)
	}
	f.pushSnapshot(f.backlog)

	f.mu.Lock()
	f.subscribeRecentErr = errors.New("store offline")
	f.mu.Unlock()

	if err := w.Open("conv-2", ""); err == nil {
		t.Fatalf("expected Open to fail")
	}

	if !w.IsOpen() {
		t.Fatalf("window should remain open on failed reopen")
	}
	if conv, _ := w.Scope(); conv != "conv-1" {
		t.Fatalf("scope = %s, want conv-1", conv)
	}
	if len(w.Messages()) != 5 {
		t.Fatalf("previous window state lost on failed reopen")
	}
}

func TestWindowOnChangeObservesEveryTransition(t *testing.T) {
	f := newFakeStore()
	f.backlog = seedMessages(3)

	var observed [][]*domain.Message
	w := newTestWindow(f, Config{
		PageSize: 20,
		OnChange: func(msgs []*domain.Message) { observed = append(observed, msgs) },
	})

	if err := w.Open("conv-1", ""); err != nil {
		t.Fatalf("Open: %v", err)
	}
	f.pushSnapshot(f.backlog)
	w.AddOptimistic(domain.Draft{SenderID: "alice", Text: "ping"})

	if len(observed) != 3 {
		t.Fatalf("OnChange fired %d times, want 3 (open, snapshot, optimistic)", len(observed))
	}
	if last := observed[len(observed)-1]; len(last) != 4 {
		t.Fatalf("final notification carried %d messages, want 4", len(last))
	}
}

func TestWindowSendRoundTrip(t *testing.T) {
	f := newFakeStore()
	f.backlog = seedMessages(21)
	w := newTestWindow(f, Config{PageSize: 20})
	localNow := testBase.Add(time.Hour)
	w.now = func() time.Time { return localNow }

	if err := w.Open("conv-1", ""); err != nil {
		t.Fatalf("Open: %v", err)
	}
	f.pushSnapshot(f.backlog[1:])

	if err := w.LoadOlder(context.Background()); err != nil {
		t.Fatalf("LoadOlder: %v", err)
	}
	if w.HasMoreOlder() {
		t.Fatalf("one-message page should exhaust history")
	}

	w.AddOptimistic(domain.Draft{SenderID: "alice", Text: "hello"})
	if len(w.Messages()) != 22 {
		t.Fatalf("pending state: %d messages, want 22", len(w.Messages()))
	}

	// The store confirms the send: window slides forward by one and the
	// persisted copy replaces the optimistic entry.
	persisted := domain.NewTextMessage("srv-hello", "conv-1", "", "alice", "hello", localNow.Add(time.Second))
	f.pushSnapshot(append(append([]*domain.Message(nil), f.backlog[2:]...), persisted))

	got := w.Messages()
	helloCount := 0
	for _, m := range got {
		if m.Optimistic {
			t.Fatalf("optimistic entry survived confirmation")
		}
		if m.Text == "hello" {
			helloCount++
		}
	}
	if helloCount != 1 {
		t.Fatalf("hello appears %d times, want exactly once", helloCount)
	}
	assertAscending(t, got)
}
