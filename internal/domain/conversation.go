package domain

import (
	"fmt"
	"time"
)

type ConversationType string

const (
	ConversationTypeDirect ConversationType = "direct"
	ConversationTypeGroup  ConversationType = "group"
)

type Conversation struct {
	ID                string
	Type              ConversationType
	Participants      []string
	Name              string
	PhotoURL          string
	LastMessageText   string
	LastMessageSender string
	LastMessageTime   time.Time
	Typing            map[string]bool
	CreatedAt         time.Time
}

func NewDirectConversation(id string, participants []string) (*Conversation, error) {
	if len(participants) != 2 {
		return nil, fmt.Errorf("direct conversation requires exactly two participants, got %d", len(participants))
	}
	return &Conversation{
		ID:           id,
		Type:         ConversationTypeDirect,
		Participants: participants,
		CreatedAt:    time.Now(),
	}, nil
}

func NewGroupConversation(id, name string, participants []string) (*Conversation, error) {
	if len(participants) == 0 {
		return nil, fmt.Errorf("group conversation requires at least one participant")
	}
	return &Conversation{
		ID:           id,
		Type:         ConversationTypeGroup,
		Name:         name,
		Participants: participants,
		CreatedAt:    time.Now(),
	}, nil
}

func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// DisplayName derives a name for direct conversations from the counterpart.
func (c *Conversation) DisplayName(viewerID string) string {
	if c.Type == ConversationTypeGroup || c.Name != "" {
		return c.Name
	}
	for _, p := range c.Participants {
		if p != viewerID {
			return p
		}
	}
	return c.ID
}
