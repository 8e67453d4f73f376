package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/clippy-oss/homie/chat-client/internal/domain"
)

const (
	streamName    = "CHAT_MESSAGES"
	subjectPrefix = "chat.messages"
)

// messagePayload is the wire form the notification-fanout collaborator
// consumes. It must always carry a sender and a human-readable body source.
type messagePayload struct {
	ConversationID string    `json:"conversation_id"`
	TopicID        string    `json:"topic_id,omitempty"`
	SenderID       string    `json:"sender_id"`
	MessageID      string    `json:"message_id"`
	Text           string    `json:"text,omitempty"`
	FileName       string    `json:"file_name,omitempty"`
	FileKind       string    `json:"file_kind,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Publisher forwards message-created events onto a JetStream stream so the
// notification fanout service can deliver pushes to other participants.
type Publisher struct {
	nc  *nats.Conn
	js  jetstream.JetStream
	log zerolog.Logger

	events <-chan domain.Event
	bus    domain.EventBus
	done   chan struct{}
}

// NewPublisher connects to NATS and ensures the message stream exists.
func NewPublisher(url string, bus domain.EventBus, log zerolog.Logger) (*Publisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = js.Stream(ctx, streamName)
	if err != nil {
		_, err = js.CreateStream(ctx, jetstream.StreamConfig{
			Name:        streamName,
			Description: "Created chat messages for notification fanout",
			Subjects:    []string{subjectPrefix + ".*"},
			Storage:     jetstream.FileStorage,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("failed to create stream %q: %w", streamName, err)
		}
	}

	p := &Publisher{
		nc:     nc,
		js:     js,
		log:    log,
		bus:    bus,
		events: bus.Subscribe([]domain.EventType{domain.EventTypeMessageCreated}),
		done:   make(chan struct{}),
	}
	go p.run()
	return p, nil
}

func (p *Publisher) run() {
	defer close(p.done)
	for evt := range p.events {
		created, ok := evt.(domain.MessageCreatedEvent)
		if !ok {
			continue
		}
		if err := p.publish(created); err != nil {
			p.log.Warn().Err(err).Str("conversation", created.ConversationID).Msg("failed to publish message-created event")
		}
	}
}

func (p *Publisher) publish(evt domain.MessageCreatedEvent) error {
	payload := messagePayload{
		ConversationID: evt.ConversationID,
		TopicID:        evt.Message.TopicID,
		SenderID:       evt.SenderID,
		MessageID:      evt.Message.ID,
		Text:           evt.Message.Text,
		Timestamp:      evt.Message.Timestamp,
	}
	if evt.Message.File != nil {
		payload.FileName = evt.Message.File.Name
		payload.FileKind = string(evt.Message.File.Kind)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := p.js.Publish(ctx, Subject(evt.ConversationID), data); err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}
	return nil
}

// Subject returns the per-conversation fanout subject.
func Subject(conversationID string) string {
	return fmt.Sprintf("%s.%s", subjectPrefix, conversationID)
}

// Close unsubscribes from the bus, drains the in-flight event and closes
// the NATS connection.
func (p *Publisher) Close() {
	p.bus.Unsubscribe(p.events)
	<-p.done
	p.nc.Close()
}
