package store

import (
	"context"
	"errors"
	"time"

	"github.com/clippy-oss/homie/chat-client/internal/domain"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrNotParticipant = errors.New("sender is not a conversation participant")
)

// SnapshotHandler receives the full contents of a recent-messages window,
// ordered ascending by timestamp, every time anything in scope changes.
type SnapshotHandler func(messages []*domain.Message)

// MessageHandler receives updates for a single tracked message.
type MessageHandler func(message *domain.Message)

// TypingHandler receives the conversation's typing map after each change.
type TypingHandler func(typing map[string]bool)

// Subscription is a live change feed. Unsubscribe is idempotent; after it
// returns no further callbacks are started.
type Subscription interface {
	Unsubscribe()
}

// Store is the document store adapter. Implementations convert raw rows to
// typed domain records at this boundary; untyped payloads never cross it.
// Callbacks of one subscription are delivered in order, and never invoked
// synchronously from inside the Subscribe call itself (the initial snapshot
// arrives asynchronously).
type Store interface {
	SubscribeRecentMessages(ctx context.Context, conversationID, topicID string, limit int, fn SnapshotHandler) (Subscription, error)
	SubscribeMessage(ctx context.Context, conversationID, topicID, messageID string, fn MessageHandler) (Subscription, error)
	SubscribeTyping(ctx context.Context, conversationID string, fn TypingHandler) (Subscription, error)

	QueryMessagesBefore(ctx context.Context, conversationID, topicID string, before time.Time, limit int) ([]*domain.Message, error)
	CreateMessage(ctx context.Context, msg *domain.Message) error
	GetMessage(ctx context.Context, conversationID, topicID, messageID string) (*domain.Message, error)
	UpdateReactions(ctx context.Context, conversationID, topicID, messageID string, reactions domain.ReactionMap) error
	UpdateStatus(ctx context.Context, conversationID, topicID string, messageIDs []string, status domain.MessageStatus) error

	UpsertConversation(ctx context.Context, conv *domain.Conversation) error
	GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error)
	ListConversations(ctx context.Context, limit, offset int) ([]*domain.Conversation, error)
	SetTyping(ctx context.Context, conversationID, userID string, typing bool) error
}
