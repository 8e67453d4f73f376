package domain

import (
	"testing"
	"time"
)

func TestReactionToggleOnOffSwitch(t *testing.T) {
	now := time.Now()
	m := ReactionMap{}

	m = m.Toggle("alice", "heart", now)
	if len(m["heart"]) != 1 || m["heart"][0].UserID != "alice" {
		t.Fatalf("expected alice under heart, got %+v", m)
	}

	// Switching keys moves the reaction, never duplicates it.
	m = m.Toggle("alice", "thumbsup", now)
	if _, ok := m["heart"]; ok {
		t.Fatalf("heart key should be deleted once empty, got %+v", m)
	}
	if len(m["thumbsup"]) != 1 {
		t.Fatalf("expected alice under thumbsup, got %+v", m)
	}

	// Toggling the active key removes it.
	m = m.Toggle("alice", "thumbsup", now)
	if len(m) != 0 {
		t.Fatalf("expected empty map after toggle off, got %+v", m)
	}
}

func TestReactionToggleKeepsOtherUsers(t *testing.T) {
	now := time.Now()
	m := ReactionMap{}
	m = m.Toggle("alice", "heart", now)
	m = m.Toggle("bob", "heart", now)

	if len(m["heart"]) != 2 {
		t.Fatalf("expected two entries under heart, got %+v", m)
	}

	m = m.Toggle("alice", "heart", now)
	if len(m["heart"]) != 1 || m["heart"][0].UserID != "bob" {
		t.Fatalf("expected only bob left under heart, got %+v", m)
	}
}

func TestReactionExclusivityOverSequences(t *testing.T) {
	now := time.Now()
	sequences := [][]string{
		{"heart", "heart", "heart"},
		{"heart", "thumbsup", "laugh", "laugh", "heart"},
		{"wow", "wow", "thumbsup", "heart", "heart", "heart"},
	}

	for _, seq := range sequences {
		m := ReactionMap{}
		for _, key := range seq {
			m = m.Toggle("alice", key, now)

			found := 0
			for _, entries := range m {
				for _, e := range entries {
					if e.UserID == "alice" {
						found++
					}
				}
			}
			if found > 1 {
				t.Fatalf("sequence %v: alice appears under %d keys", seq, found)
			}
		}
	}
}

func TestUserReaction(t *testing.T) {
	now := time.Now()
	m := ReactionMap{}.Toggle("alice", "heart", now)

	if key, ok := m.UserReaction("alice"); !ok || key != "heart" {
		t.Fatalf("expected heart, got %q ok=%v", key, ok)
	}
	if _, ok := m.UserReaction("bob"); ok {
		t.Fatalf("bob has no reaction")
	}
}

func TestMessagePreview(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{name: "text", msg: Message{Text: "hello"}, want: "hello"},
		{name: "file", msg: Message{File: &FileData{Kind: FileKindImage, Name: "cat.png"}}, want: "[image] cat.png"},
		{name: "empty", msg: Message{}, want: ""},
	}

	for _, tc := range tests {
		if got := tc.msg.Preview(); got != tc.want {
			t.Fatalf("%s: Preview()=%q, want %q", tc.name, got, tc.want)
		}
	}
}
