package cli

import "time"

// Mode represents the CLI operation mode
type Mode string

const (
	ModeInteractive Mode = "interactive"
	ModeHeadless    Mode = "headless"
)

// Request represents a JSON request in headless mode
type Request struct {
	ID      string                 `json:"id,omitempty"`
	Command string                 `json:"command"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// Response represents a JSON response in headless mode
type Response struct {
	ID      string      `json:"id,omitempty"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Event represents a real-time event pushed to the front-end
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// ConversationInfo represents conversation information for responses
type ConversationInfo struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Type            string    `json:"type"`
	Participants    []string  `json:"participants"`
	LastMessageText string    `json:"last_message_text,omitempty"`
	LastMessageTime time.Time `json:"last_message_time,omitempty"`
}

// MessageInfo represents message information for responses
type MessageInfo struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	TopicID        string         `json:"topic_id,omitempty"`
	SenderID       string         `json:"sender_id"`
	Text           string         `json:"text,omitempty"`
	FileName       string         `json:"file_name,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
	Status         string         `json:"status"`
	Optimistic     bool           `json:"optimistic,omitempty"`
	Reactions      map[string]int `json:"reactions,omitempty"`
}

// WindowStatus represents the open window's state for responses
type WindowStatus struct {
	Open             bool   `json:"open"`
	ConversationID   string `json:"conversation_id,omitempty"`
	TopicID          string `json:"topic_id,omitempty"`
	MessageCount     int    `json:"message_count"`
	LoadingInitial   bool   `json:"loading_initial"`
	LoadingOlder     bool   `json:"loading_older"`
	HasMoreOlder     bool   `json:"has_more_older"`
	TrackedListeners int    `json:"tracked_listeners"`
}
