package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/clippy-oss/homie/chat-client/internal/domain"
	"github.com/clippy-oss/homie/chat-client/internal/logger"
	"github.com/clippy-oss/homie/chat-client/internal/store/gormstore"
)

// Seeds the local store with conversations and message history so the
// client can be exercised without a live backend.
func main() {
	dbPath := "dummy_chat.db"
	if len(os.Args) > 1 {
		dbPath = os.Args[1]
	}

	fmt.Printf("Using database at: %s\n", dbPath)

	logger.Init("warn")

	db, err := gormstore.Open(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	ctx := context.Background()
	if err := db.WithContext(ctx).Exec("DELETE FROM messages").Error; err != nil {
		log.Fatalf("Failed to delete messages: %v", err)
	}
	fmt.Println("Deleted all messages from database")

	st := gormstore.New(db, logger.Module("store"))

	if err := seed(ctx, st); err != nil {
		log.Fatalf("Failed to seed data: %v", err)
	}

	fmt.Println("Successfully seeded conversations and messages!")
	fmt.Printf("Database location: %s\n", dbPath)
}

var users = []string{
	"alice", "bob", "charlie", "diana", "eve",
	"frank", "grace", "henry", "iris", "jack",
}

var groupNames = []string{
	"Family Group",
	"Work Team",
	"Book Club",
	"Travel Buddies",
	"Gaming Squad",
}

var sampleTexts = []string{
	"Hey! How are you doing?",
	"Just checking in",
	"Can we meet tomorrow?",
	"Thanks for your help!",
	"See you later!",
	"That sounds great!",
	"Let me know when you're free",
	"Perfect! I'll be there",
	"Did you see the latest news?",
	"Have a great day!",
	"What time works for you?",
	"I'll send it over shortly",
	"Thanks for understanding",
	"Looking forward to it!",
	"Let's catch up soon",
}

var reactionKeys = []string{"thumbsup", "heart", "laugh", "wow"}

func seed(ctx context.Context, st *gormstore.Store) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	me := "alice"

	var conversations []*domain.Conversation

	for _, other := range users[1:6] {
		conv, err := domain.NewDirectConversation("direct-"+me+"-"+other, []string{me, other})
		if err != nil {
			return err
		}
		conversations = append(conversations, conv)
	}

	for i, name := range groupNames {
		members := append([]string{me}, users[1+rng.Intn(3):4+rng.Intn(4)]...)
		conv, err := domain.NewGroupConversation(fmt.Sprintf("group-%d", i+1), name, members)
		if err != nil {
			return err
		}
		conversations = append(conversations, conv)
	}

	for _, conv := range conversations {
		if err := st.UpsertConversation(ctx, conv); err != nil {
			return fmt.Errorf("upsert conversation %s: %w", conv.ID, err)
		}

		count := 25 + rng.Intn(40)
		ts := time.Now().Add(-time.Duration(count) * 7 * time.Minute)

		for i := 0; i < count; i++ {
			sender := conv.Participants[rng.Intn(len(conv.Participants))]
			msg := domain.NewTextMessage(
				uuid.NewString(),
				conv.ID,
				"",
				sender,
				sampleTexts[rng.Intn(len(sampleTexts))],
				ts,
			)
			if rng.Intn(4) == 0 {
				msg.Status = domain.MessageStatusRead
			}
			if rng.Intn(6) == 0 {
				reactor := conv.Participants[rng.Intn(len(conv.Participants))]
				msg.Reactions = domain.ReactionMap{}.Toggle(reactor, reactionKeys[rng.Intn(len(reactionKeys))], ts)
			}

			if err := st.CreateMessage(ctx, msg); err != nil {
				return fmt.Errorf("create message in %s: %w", conv.ID, err)
			}

			ts = ts.Add(time.Duration(1+rng.Intn(13)) * time.Minute)
		}

		fmt.Printf("Seeded %d messages into %s\n", count, conv.ID)
	}

	return nil
}
