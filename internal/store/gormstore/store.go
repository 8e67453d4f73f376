package gormstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/clippy-oss/homie/chat-client/internal/domain"
	"github.com/clippy-oss/homie/chat-client/internal/store"
)

// Open opens (or creates) the sqlite database and migrates the schema.
func Open(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	db.Exec("PRAGMA journal_mode=WAL")

	if err := db.AutoMigrate(&MessageModel{}, &ConversationModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// Store implements store.Store on a gorm database. Change subscriptions are
// served by an in-process hub: every write wakes the subscribers whose scope
// it touched, and each subscriber re-reads its view on a dedicated dispatch
// goroutine so callbacks of one subscription stay ordered.
var _ store.Store = (*Store)(nil)

type Store struct {
	db  *gorm.DB
	log zerolog.Logger

	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*subscriber
}

func New(db *gorm.DB, log zerolog.Logger) *Store {
	return &Store{
		db:   db,
		log:  log,
		subs: make(map[uint64]*subscriber),
	}
}

type subKind int

const (
	subRecent subKind = iota
	subMessage
	subTyping
)

type subscriber struct {
	id             uint64
	kind           subKind
	conversationID string
	topicID        string
	messageID      string
	limit          int

	deliver func(ctx context.Context) error

	ctx    context.Context
	notify chan struct{}
	done   chan struct{}
	once   sync.Once
	parent *Store
}

func (s *subscriber) Unsubscribe() {
	s.once.Do(func() {
		close(s.done)
		s.parent.mu.Lock()
		delete(s.parent.subs, s.id)
		s.parent.mu.Unlock()
	})
}

// wake coalesces pending notifications; the dispatch loop re-reads current
// state, so one wakeup covers any number of writes.
func (s *subscriber) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscriber) loop() {
	for {
		select {
		case <-s.done:
			return
		case <-s.ctx.Done():
			return
		case <-s.notify:
			select {
			case <-s.done:
				return
			default:
			}
			if err := s.deliver(s.ctx); err != nil {
				s.parent.log.Warn().Err(err).Uint64("sub", s.id).Msg("subscription delivery failed")
			}
		}
	}
}

func (s *Store) register(sub *subscriber) {
	s.mu.Lock()
	s.nextID++
	sub.id = s.nextID
	s.subs[sub.id] = sub
	s.mu.Unlock()

	go sub.loop()
	sub.wake() // initial delivery
}

func (s *Store) wakeScope(conversationID, topicID string, messageIDs ...string) {
	idSet := make(map[string]bool, len(messageIDs))
	for _, id := range messageIDs {
		idSet[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		switch sub.kind {
		case subRecent:
			if sub.conversationID == conversationID && sub.topicID == topicID {
				sub.wake()
			}
		case subMessage:
			if sub.conversationID == conversationID && sub.topicID == topicID && idSet[sub.messageID] {
				sub.wake()
			}
		}
	}
}

func (s *Store) wakeTyping(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.kind == subTyping && sub.conversationID == conversationID {
			sub.wake()
		}
	}
}

func (s *Store) SubscribeRecentMessages(ctx context.Context, conversationID, topicID string, limit int, fn store.SnapshotHandler) (store.Subscription, error) {
	sub := &subscriber{
		kind:           subRecent,
		conversationID: conversationID,
		topicID:        topicID,
		limit:          limit,
		ctx:            ctx,
		notify:         make(chan struct{}, 1),
		done:           make(chan struct{}),
		parent:         s,
	}
	sub.deliver = func(ctx context.Context) error {
		msgs, err := s.recentWindow(ctx, conversationID, topicID, limit)
		if err != nil {
			return err
		}
		fn(msgs)
		return nil
	}
	s.register(sub)
	return sub, nil
}

func (s *Store) SubscribeMessage(ctx context.Context, conversationID, topicID, messageID string, fn store.MessageHandler) (store.Subscription, error) {
	sub := &subscriber{
		kind:           subMessage,
		conversationID: conversationID,
		topicID:        topicID,
		messageID:      messageID,
		ctx:            ctx,
		notify:         make(chan struct{}, 1),
		done:           make(chan struct{}),
		parent:         s,
	}
	sub.deliver = func(ctx context.Context) error {
		msg, err := s.GetMessage(ctx, conversationID, topicID, messageID)
		if err != nil {
			return err
		}
		fn(msg)
		return nil
	}
	s.register(sub)
	return sub, nil
}

func (s *Store) SubscribeTyping(ctx context.Context, conversationID string, fn store.TypingHandler) (store.Subscription, error) {
	sub := &subscriber{
		kind:           subTyping,
		conversationID: conversationID,
		ctx:            ctx,
		notify:         make(chan struct{}, 1),
		done:           make(chan struct{}),
		parent:         s,
	}
	sub.deliver = func(ctx context.Context) error {
		conv, err := s.GetConversation(ctx, conversationID)
		if err != nil {
			return err
		}
		typing := make(map[string]bool, len(conv.Typing))
		for k, v := range conv.Typing {
			typing[k] = v
		}
		fn(typing)
		return nil
	}
	s.register(sub)
	return sub, nil
}

// recentWindow returns the most recent limit messages in ascending order.
func (s *Store) recentWindow(ctx context.Context, conversationID, topicID string, limit int) ([]*domain.Message, error) {
	var models []MessageModel
	err := s.db.WithContext(ctx).
		Where("conversation_id = ? AND topic_id = ?", conversationID, topicID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	messages := make([]*domain.Message, len(models))
	for i := range models {
		messages[len(models)-1-i] = MessageModelToDomain(&models[i])
	}
	return messages, nil
}

func (s *Store) QueryMessagesBefore(ctx context.Context, conversationID, topicID string, before time.Time, limit int) ([]*domain.Message, error) {
	var models []MessageModel
	err := s.db.WithContext(ctx).
		Where("conversation_id = ? AND topic_id = ? AND timestamp < ?", conversationID, topicID, before).
		Order("timestamp DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	messages := make([]*domain.Message, len(models))
	for i := range models {
		messages[len(models)-1-i] = MessageModelToDomain(&models[i])
	}
	return messages, nil
}

func (s *Store) CreateMessage(ctx context.Context, msg *domain.Message) error {
	model := MessageDomainToModel(msg)
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}

	err := s.db.WithContext(ctx).
		Model(&ConversationModel{}).
		Where("id = ?", msg.ConversationID).
		Updates(map[string]interface{}{
			"last_message_text":   msg.Preview(),
			"last_message_sender": msg.SenderID,
			"last_message_time":   msg.Timestamp,
		}).Error
	if err != nil {
		s.log.Warn().Err(err).Str("conversation", msg.ConversationID).Msg("failed to update last message summary")
	}

	s.wakeScope(msg.ConversationID, msg.TopicID)
	return nil
}

func (s *Store) GetMessage(ctx context.Context, conversationID, topicID, messageID string) (*domain.Message, error) {
	var model MessageModel
	err := s.db.WithContext(ctx).
		First(&model, "id = ? AND conversation_id = ? AND topic_id = ?", messageID, conversationID, topicID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("message %s: %w", messageID, store.ErrNotFound)
		}
		return nil, err
	}
	return MessageModelToDomain(&model), nil
}

func (s *Store) UpdateReactions(ctx context.Context, conversationID, topicID, messageID string, reactions domain.ReactionMap) error {
	err := s.db.WithContext(ctx).
		Model(&MessageModel{}).
		Where("id = ? AND conversation_id = ? AND topic_id = ?", messageID, conversationID, topicID).
		Update("reactions", reactions).Error
	if err != nil {
		return err
	}

	s.wakeScope(conversationID, topicID, messageID)
	return nil
}

func (s *Store) UpdateStatus(ctx context.Context, conversationID, topicID string, messageIDs []string, status domain.MessageStatus) error {
	err := s.db.WithContext(ctx).
		Model(&MessageModel{}).
		Where("conversation_id = ? AND topic_id = ? AND id IN ?", conversationID, topicID, messageIDs).
		Update("status", string(status)).Error
	if err != nil {
		return err
	}

	s.wakeScope(conversationID, topicID, messageIDs...)
	return nil
}

func (s *Store) UpsertConversation(ctx context.Context, conv *domain.Conversation) error {
	model := ConversationDomainToModel(conv)
	return s.db.WithContext(ctx).Save(model).Error
}

func (s *Store) GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	var model ConversationModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", conversationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("conversation %s: %w", conversationID, store.ErrNotFound)
		}
		return nil, err
	}
	return ConversationModelToDomain(&model), nil
}

func (s *Store) ListConversations(ctx context.Context, limit, offset int) ([]*domain.Conversation, error) {
	var models []ConversationModel
	query := s.db.WithContext(ctx).Order("last_message_time DESC")

	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}

	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	conversations := make([]*domain.Conversation, len(models))
	for i := range models {
		conversations[i] = ConversationModelToDomain(&models[i])
	}
	return conversations, nil
}

func (s *Store) SetTyping(ctx context.Context, conversationID, userID string, typing bool) error {
	conv, err := s.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}

	updated := make(map[string]bool, len(conv.Typing)+1)
	for k, v := range conv.Typing {
		updated[k] = v
	}
	updated[userID] = typing

	err = s.db.WithContext(ctx).
		Model(&ConversationModel{}).
		Where("id = ?", conversationID).
		Update("typing", updated).Error
	if err != nil {
		return err
	}

	s.wakeTyping(conversationID)
	return nil
}
