package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clippy-oss/homie/chat-client/internal/domain"
	"github.com/clippy-oss/homie/chat-client/internal/livesync"
	"github.com/clippy-oss/homie/chat-client/internal/store"
)

// ChatService is the caller-facing surface over the store and the sync
// layer: conversation listing, window construction, the send path and
// status transitions.
type ChatService struct {
	store    store.Store
	eventBus domain.EventBus
	log      zerolog.Logger

	windowCfg livesync.Config
}

func NewChatService(st store.Store, eventBus domain.EventBus, windowCfg livesync.Config, log zerolog.Logger) *ChatService {
	return &ChatService{
		store:     st,
		eventBus:  eventBus,
		log:       log,
		windowCfg: windowCfg,
	}
}

func (s *ChatService) Conversations(ctx context.Context, limit, offset int) ([]*domain.Conversation, error) {
	return s.store.ListConversations(ctx, limit, offset)
}

func (s *ChatService) Conversation(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	return s.store.GetConversation(ctx, conversationID)
}

// NewWindow builds an unopened message window with the service's sync
// configuration. onChange may be nil.
func (s *ChatService) NewWindow(onChange func([]*domain.Message)) *livesync.Window {
	cfg := s.windowCfg
	cfg.OnChange = onChange
	return livesync.NewWindow(s.store, cfg, s.log)
}

// Send validates the draft, shows it optimistically in the window, persists
// it and publishes the message-created event for notification fanout. On a
// store failure the optimistic entry is removed so no orphan stays behind.
func (s *ChatService) Send(ctx context.Context, w *livesync.Window, draft domain.Draft) (*domain.Message, error) {
	conversationID, topicID := w.Scope()
	if conversationID == "" {
		return nil, fmt.Errorf("no open window to send into")
	}
	if draft.Text == "" && draft.File == nil {
		return nil, fmt.Errorf("message needs a text body or a file")
	}

	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if !conv.HasParticipant(draft.SenderID) {
		return nil, fmt.Errorf("send to %s: %w", conversationID, store.ErrNotParticipant)
	}

	localID := w.AddOptimistic(draft)

	msg := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		TopicID:        topicID,
		SenderID:       draft.SenderID,
		Text:           draft.Text,
		File:           draft.File,
		ReplyTo:        draft.ReplyTo,
		Timestamp:      time.Now(),
		Status:         domain.MessageStatusSent,
	}

	if err := s.store.CreateMessage(ctx, msg); err != nil {
		w.RemoveOptimistic(localID)
		return nil, fmt.Errorf("persist message: %w", err)
	}

	s.eventBus.Publish(domain.MessageCreatedEvent{
		ConversationID: conversationID,
		SenderID:       draft.SenderID,
		Message:        msg,
		EventTime:      time.Now(),
	})

	return msg, nil
}

func (s *ChatService) MarkDelivered(ctx context.Context, conversationID, topicID string, messageIDs []string) error {
	return s.updateStatus(ctx, conversationID, topicID, messageIDs, domain.MessageStatusDelivered)
}

func (s *ChatService) MarkRead(ctx context.Context, conversationID, topicID string, messageIDs []string) error {
	return s.updateStatus(ctx, conversationID, topicID, messageIDs, domain.MessageStatusRead)
}

func (s *ChatService) updateStatus(ctx context.Context, conversationID, topicID string, messageIDs []string, status domain.MessageStatus) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if err := s.store.UpdateStatus(ctx, conversationID, topicID, messageIDs, status); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	for _, id := range messageIDs {
		s.eventBus.Publish(domain.MessageStatusEvent{
			ConversationID: conversationID,
			MessageID:      id,
			Status:         status,
			EventTime:      time.Now(),
		})
	}
	return nil
}
