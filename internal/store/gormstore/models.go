package gormstore

import (
	"time"

	"github.com/clippy-oss/homie/chat-client/internal/domain"
)

type MessageModel struct {
	ID             string               `gorm:"primaryKey;column:id"`
	ConversationID string               `gorm:"column:conversation_id;index:idx_scope_timestamp"`
	TopicID        string               `gorm:"column:topic_id;index:idx_scope_timestamp"`
	SenderID       string               `gorm:"column:sender_id"`
	Text           string               `gorm:"column:text"`
	FileKind       string               `gorm:"column:file_kind"`
	FileURL        string               `gorm:"column:file_url"`
	FileName       string               `gorm:"column:file_name"`
	FileSize       int64                `gorm:"column:file_size"`
	Timestamp      time.Time            `gorm:"column:timestamp;index:idx_scope_timestamp"`
	Status         string               `gorm:"column:status"`
	Reactions      domain.ReactionMap   `gorm:"column:reactions;serializer:json"`
	Pinned         bool                 `gorm:"column:pinned"`
	ReplyToID      string               `gorm:"column:reply_to_id"`
	ReplyToSender  string               `gorm:"column:reply_to_sender"`
	ReplyToText    string               `gorm:"column:reply_to_text"`
	CreatedAt      time.Time            `gorm:"column:created_at"`
	UpdatedAt      time.Time            `gorm:"column:updated_at"`
}

func (MessageModel) TableName() string { return "messages" }

type ConversationModel struct {
	ID                string          `gorm:"primaryKey;column:id"`
	Type              string          `gorm:"column:type"`
	Participants      []string        `gorm:"column:participants;serializer:json"`
	Name              string          `gorm:"column:name"`
	PhotoURL          string          `gorm:"column:photo_url"`
	LastMessageText   string          `gorm:"column:last_message_text"`
	LastMessageSender string          `gorm:"column:last_message_sender"`
	LastMessageTime   time.Time       `gorm:"column:last_message_time;index"`
	Typing            map[string]bool `gorm:"column:typing;serializer:json"`
	CreatedAt         time.Time       `gorm:"column:created_at"`
	UpdatedAt         time.Time       `gorm:"column:updated_at"`
}

func (ConversationModel) TableName() string { return "conversations" }

// Conversion functions
func MessageModelToDomain(m *MessageModel) *domain.Message {
	if m == nil {
		return nil
	}

	msg := &domain.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		TopicID:        m.TopicID,
		SenderID:       m.SenderID,
		Text:           m.Text,
		Timestamp:      m.Timestamp,
		Status:         domain.MessageStatus(m.Status),
		Reactions:      m.Reactions,
		Pinned:         m.Pinned,
	}

	if m.FileKind != "" || m.FileURL != "" {
		msg.File = &domain.FileData{
			Kind: domain.FileKind(m.FileKind),
			URL:  m.FileURL,
			Name: m.FileName,
			Size: m.FileSize,
		}
	}

	if m.ReplyToID != "" {
		msg.ReplyTo = &domain.ReplySummary{
			MessageID: m.ReplyToID,
			SenderID:  m.ReplyToSender,
			Preview:   m.ReplyToText,
		}
	}

	return msg
}

func MessageDomainToModel(msg *domain.Message) *MessageModel {
	if msg == nil {
		return nil
	}

	model := &MessageModel{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		TopicID:        msg.TopicID,
		SenderID:       msg.SenderID,
		Text:           msg.Text,
		Timestamp:      msg.Timestamp,
		Status:         string(msg.Status),
		Reactions:      msg.Reactions,
		Pinned:         msg.Pinned,
	}

	if msg.File != nil {
		model.FileKind = string(msg.File.Kind)
		model.FileURL = msg.File.URL
		model.FileName = msg.File.Name
		model.FileSize = msg.File.Size
	}

	if msg.ReplyTo != nil {
		model.ReplyToID = msg.ReplyTo.MessageID
		model.ReplyToSender = msg.ReplyTo.SenderID
		model.ReplyToText = msg.ReplyTo.Preview
	}

	return model
}

func ConversationModelToDomain(m *ConversationModel) *domain.Conversation {
	if m == nil {
		return nil
	}

	return &domain.Conversation{
		ID:                m.ID,
		Type:              domain.ConversationType(m.Type),
		Participants:      m.Participants,
		Name:              m.Name,
		PhotoURL:          m.PhotoURL,
		LastMessageText:   m.LastMessageText,
		LastMessageSender: m.LastMessageSender,
		LastMessageTime:   m.LastMessageTime,
		Typing:            m.Typing,
		CreatedAt:         m.CreatedAt,
	}
}

func ConversationDomainToModel(conv *domain.Conversation) *ConversationModel {
	if conv == nil {
		return nil
	}

	return &ConversationModel{
		ID:                conv.ID,
		Type:              string(conv.Type),
		Participants:      conv.Participants,
		Name:              conv.Name,
		PhotoURL:          conv.PhotoURL,
		LastMessageText:   conv.LastMessageText,
		LastMessageSender: conv.LastMessageSender,
		LastMessageTime:   conv.LastMessageTime,
		Typing:            conv.Typing,
		CreatedAt:         conv.CreatedAt,
	}
}
