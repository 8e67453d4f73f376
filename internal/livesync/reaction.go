package livesync

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clippy-oss/homie/chat-client/internal/store"
)

// Reactor applies exactly-one-reaction-per-user toggle semantics by
// read-modify-write against the store. There is no transaction around the
// two steps: concurrent toggles by different users are last-writer-wins at
// the map level, while each user's own toggles stay idempotent from their
// perspective.
type Reactor struct {
	store store.Store
	log   zerolog.Logger
	now   func() time.Time
}

func NewReactor(st store.Store, log zerolog.Logger) *Reactor {
	return &Reactor{store: st, log: log, now: time.Now}
}

// Toggle flips the user's reaction on a message. Toggling the key the user
// already reacted with removes it; toggling any other key first strips the
// user's previous reaction, then adds the new one.
func (r *Reactor) Toggle(ctx context.Context, conversationID, topicID, messageID, userID, key string) error {
	msg, err := r.store.GetMessage(ctx, conversationID, topicID, messageID)
	if err != nil {
		return fmt.Errorf("read reactions: %w", err)
	}

	updated := msg.Reactions.Toggle(userID, key, r.now())

	if err := r.store.UpdateReactions(ctx, conversationID, topicID, messageID, updated); err != nil {
		return fmt.Errorf("write reactions: %w", err)
	}

	r.log.Debug().Str("message", messageID).Str("user", userID).Str("key", key).Msg("reaction toggled")
	return nil
}
