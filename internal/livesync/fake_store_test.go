package livesync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/clippy-oss/homie/chat-client/internal/domain"
	"github.com/clippy-oss/homie/chat-client/internal/store"
)

// fakeStore is a controllable store.Store for window tests. Handlers are
// never invoked from inside Subscribe; the test drives every delivery
// explicitly through pushSnapshot / pushMessage / pushTyping.
type fakeStore struct {
	mu sync.Mutex

	backlog []*domain.Message // full history, ascending by timestamp

	recentSubs []*fakeSub
	msgSubs    map[string][]*fakeSub
	typingSubs []*fakeSub

	unsubscribed int
	queryCalls   int
	typingWrites []typingWrite

	queryErr           error
	subscribeRecentErr error
	queryOverride      []*domain.Message
}

func newFakeStore() *fakeStore {
	return &fakeStore{msgSubs: make(map[string][]*fakeSub)}
}

type fakeSub struct {
	parent *fakeStore
	once   sync.Once
	active bool

	snapshotFn store.SnapshotHandler
	messageFn  store.MessageHandler
	typingFn   store.TypingHandler
}

func (s *fakeSub) Unsubscribe() {
	s.once.Do(func() {
		s.parent.mu.Lock()
		s.active = false
		s.parent.unsubscribed++
		s.parent.mu.Unlock()
	})
}

func (f *fakeStore) SubscribeRecentMessages(ctx context.Context, conversationID, topicID string, limit int, fn store.SnapshotHandler) (store.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeRecentErr != nil {
		return nil, f.subscribeRecentErr
	}
	sub := &fakeSub{parent: f, active: true, snapshotFn: fn}
	f.recentSubs = append(f.recentSubs, sub)
	return sub, nil
}

func (f *fakeStore) SubscribeMessage(ctx context.Context, conversationID, topicID, messageID string, fn store.MessageHandler) (store.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := &fakeSub{parent: f, active: true, messageFn: fn}
	f.msgSubs[messageID] = append(f.msgSubs[messageID], sub)
	return sub, nil
}

func (f *fakeStore) SubscribeTyping(ctx context.Context, conversationID string, fn store.TypingHandler) (store.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := &fakeSub{parent: f, active: true, typingFn: fn}
	f.typingSubs = append(f.typingSubs, sub)
	return sub, nil
}

func (f *fakeStore) QueryMessagesBefore(ctx context.Context, conversationID, topicID string, before time.Time, limit int) ([]*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryCalls++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.queryOverride != nil {
		batch := f.queryOverride
		f.queryOverride = nil
		return batch, nil
	}

	var eligible []*domain.Message
	for _, m := range f.backlog {
		if m.Timestamp.Before(before) {
			eligible = append(eligible, m)
		}
	}
	if len(eligible) > limit {
		eligible = eligible[len(eligible)-limit:]
	}
	return eligible, nil
}

// pushSnapshot delivers a recent-window snapshot to every live subscriber.
func (f *fakeStore) pushSnapshot(msgs []*domain.Message) {
	f.mu.Lock()
	subs := append([]*fakeSub(nil), f.recentSubs...)
	f.mu.Unlock()
	for _, s := range subs {
		f.mu.Lock()
		active := s.active
		f.mu.Unlock()
		if active {
			s.snapshotFn(msgs)
		}
	}
}

// pushMessage delivers an update to the listeners tracking msg.ID.
func (f *fakeStore) pushMessage(msg *domain.Message) {
	f.mu.Lock()
	subs := append([]*fakeSub(nil), f.msgSubs[msg.ID]...)
	f.mu.Unlock()
	for _, s := range subs {
		f.mu.Lock()
		active := s.active
		f.mu.Unlock()
		if active {
			s.messageFn(msg)
		}
	}
}

// pushTyping delivers a typing map to every live typing subscriber.
func (f *fakeStore) pushTyping(typing map[string]bool) {
	f.mu.Lock()
	subs := append([]*fakeSub(nil), f.typingSubs...)
	f.mu.Unlock()
	for _, s := range subs {
		f.mu.Lock()
		active := s.active
		f.mu.Unlock()
		if active {
			s.typingFn(typing)
		}
	}
}

func (f *fakeStore) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queryCalls
}

func (f *fakeStore) unsubscribedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unsubscribed
}

func (f *fakeStore) CreateMessage(ctx context.Context, msg *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backlog = append(f.backlog, msg)
	return nil
}

func (f *fakeStore) GetMessage(ctx context.Context, conversationID, topicID, messageID string) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.backlog {
		if m.ID == messageID {
			return m, nil
		}
	}
	return nil, fmt.Errorf("message %s: %w", messageID, store.ErrNotFound)
}

func (f *fakeStore) UpdateReactions(ctx context.Context, conversationID, topicID, messageID string, reactions domain.ReactionMap) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.backlog {
		if m.ID == messageID {
			m.Reactions = reactions
			return nil
		}
	}
	return fmt.Errorf("message %s: %w", messageID, store.ErrNotFound)
}

func (f *fakeStore) UpdateStatus(ctx context.Context, conversationID, topicID string, messageIDs []string, status domain.MessageStatus) error {
	return nil
}

func (f *fakeStore) UpsertConversation(ctx context.Context, conv *domain.Conversation) error {
	return nil
}

func (f *fakeStore) GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	return nil, fmt.Errorf("conversation %s: %w", conversationID, store.ErrNotFound)
}

func (f *fakeStore) ListConversations(ctx context.Context, limit, offset int) ([]*domain.Conversation, error) {
	return nil, nil
}

type typingWrite struct {
	userID string
	typing bool
}

func (f *fakeStore) SetTyping(ctx context.Context, conversationID, userID string, typing bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typingWrites = append(f.typingWrites, typingWrite{userID: userID, typing: typing})
	return nil
}

func (f *fakeStore) typingLog() []typingWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]typingWrite(nil), f.typingWrites...)
}

var _ store.Store = (*fakeStore)(nil)
