package domain

import (
	"sync"
	"time"
)

type EventType string

const (
	EventTypeMessageCreated EventType = "message.created"
	EventTypeMessageStatus  EventType = "message.status"
	EventTypeTypingChanged  EventType = "typing.changed"
)

type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// MessageCreatedEvent is the input contract of the notification-fanout
// collaborator: the message must carry a sender and a text body or file
// descriptor so a notification body can be produced.
type MessageCreatedEvent struct {
	ConversationID string
	SenderID       string
	Message        *Message
	EventTime      time.Time
}

func (e MessageCreatedEvent) Type() EventType      { return EventTypeMessageCreated }
func (e MessageCreatedEvent) Timestamp() time.Time { return e.EventTime }

type MessageStatusEvent struct {
	ConversationID string
	MessageID      string
	Status         MessageStatus
	EventTime      time.Time
}

func (e MessageStatusEvent) Type() EventType      { return EventTypeMessageStatus }
func (e MessageStatusEvent) Timestamp() time.Time { return e.EventTime }

type TypingEvent struct {
	ConversationID string
	UserID         string
	Typing         bool
	EventTime      time.Time
}

func (e TypingEvent) Type() EventType      { return EventTypeTypingChanged }
func (e TypingEvent) Timestamp() time.Time { return e.EventTime }

// EventBus provides pub/sub for domain events
type EventBus interface {
	Publish(event Event)
	Subscribe(eventTypes []EventType) <-chan Event
	Unsubscribe(ch <-chan Event)
}

// SimpleEventBus is a basic in-memory implementation of EventBus
type SimpleEventBus struct {
	mu          sync.RWMutex
	subscribers map[<-chan Event]subscription
}

type subscription struct {
	ch         chan Event
	eventTypes map[EventType]bool
}

func NewEventBus() *SimpleEventBus {
	return &SimpleEventBus{
		subscribers: make(map[<-chan Event]subscription),
	}
}

func (b *SimpleEventBus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if len(sub.eventTypes) == 0 || sub.eventTypes[event.Type()] {
			select {
			case sub.ch <- event:
			default:
				// Channel full, skip this subscriber
			}
		}
	}
}

func (b *SimpleEventBus) Subscribe(eventTypes []EventType) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 100)
	typeMap := make(map[EventType]bool)
	for _, t := range eventTypes {
		typeMap[t] = true
	}

	b.subscribers[ch] = subscription{
		ch:         ch,
		eventTypes: typeMap,
	}

	return ch
}

func (b *SimpleEventBus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[ch]; ok {
		close(sub.ch)
		delete(b.subscribers, ch)
	}
}
