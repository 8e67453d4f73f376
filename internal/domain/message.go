package domain

import "time"

type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
)

type FileKind string

const (
	FileKindImage    FileKind = "image"
	FileKindVideo    FileKind = "video"
	FileKindAudio    FileKind = "audio"
	FileKindDocument FileKind = "document"
)

// FileData describes an attached file. URL points at already-uploaded
// content; upload itself happens elsewhere.
type FileData struct {
	Kind FileKind
	URL  string
	Name string
	Size int64
}

// ReplySummary is the lightweight pointer a reply carries to its target.
type ReplySummary struct {
	MessageID string
	SenderID  string
	Preview   string
}

// ReactionEntry records one user's reaction under a reaction key.
type ReactionEntry struct {
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ReactionMap maps a reaction key (emoji) to the users who reacted with it.
// Invariant: a user id appears under at most one key.
type ReactionMap map[string][]ReactionEntry

// Toggle applies single-active-reaction semantics and returns the updated
// map. Toggling the key the user already reacted with removes the reaction;
// toggling any other key moves the user's reaction there. Keys left without
// entries are deleted.
func (m ReactionMap) Toggle(userID, key string, now time.Time) ReactionMap {
	out := make(ReactionMap, len(m))
	toggledOff := false

	for k, entries := range m {
		kept := make([]ReactionEntry, 0, len(entries))
		for _, e := range entries {
			if e.UserID == userID {
				if k == key {
					toggledOff = true
				}
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) > 0 {
			out[k] = kept
		}
	}

	if !toggledOff {
		out[key] = append(out[key], ReactionEntry{UserID: userID, Timestamp: now})
	}

	return out
}

// UserReaction returns the key the user currently reacts with, if any.
func (m ReactionMap) UserReaction(userID string) (string, bool) {
	for k, entries := range m {
		for _, e := range entries {
			if e.UserID == userID {
				return k, true
			}
		}
	}
	return "", false
}

type Message struct {
	ID             string
	ConversationID string
	TopicID        string
	SenderID       string
	Text           string
	File           *FileData
	Timestamp      time.Time
	Status         MessageStatus
	Reactions      ReactionMap
	Pinned         bool
	ReplyTo        *ReplySummary
	Optimistic     bool
}

// Draft is the caller-supplied part of a message before it gets an id,
// timestamp and status.
type Draft struct {
	SenderID string
	Text     string
	File     *FileData
	ReplyTo  *ReplySummary
}

func NewTextMessage(id, conversationID, topicID, senderID, text string, timestamp time.Time) *Message {
	return &Message{
		ID:             id,
		ConversationID: conversationID,
		TopicID:        topicID,
		SenderID:       senderID,
		Text:           text,
		Timestamp:      timestamp,
		Status:         MessageStatusSent,
	}
}

func NewFileMessage(id, conversationID, topicID, senderID string, file *FileData, caption string, timestamp time.Time) *Message {
	return &Message{
		ID:             id,
		ConversationID: conversationID,
		TopicID:        topicID,
		SenderID:       senderID,
		Text:           caption,
		File:           file,
		Timestamp:      timestamp,
		Status:         MessageStatusSent,
	}
}

// Preview returns the human-readable body used for last-message summaries
// and notification fanout.
func (m *Message) Preview() string {
	if m.Text != "" {
		return m.Text
	}
	if m.File != nil {
		return "[" + string(m.File.Kind) + "] " + m.File.Name
	}
	return ""
}
