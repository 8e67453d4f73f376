package cli

import (
	"testing"
	"time"

	"github.com/clippy-oss/homie/chat-client/internal/domain"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantName string
		wantArgs []string
		wantErr  bool
	}{
		{name: "bare command", input: "/help", wantName: "help"},
		{name: "with args", input: "/send Hello there", wantName: "send", wantArgs: []string{"Hello", "there"}},
		{name: "surrounding whitespace", input: "  /open conv-1  ", wantName: "open", wantArgs: []string{"conv-1"}},
		{name: "empty", input: "", wantErr: true},
		{name: "whitespace only", input: "   ", wantErr: true},
		{name: "missing slash", input: "help", wantErr: true},
	}

	for _, tc := range tests {
		cmd, err := ParseCommand(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error for %q", tc.name, tc.input)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if cmd.Name != tc.wantName {
			t.Fatalf("%s: name = %q, want %q", tc.name, cmd.Name, tc.wantName)
		}
		if len(cmd.Args) != len(tc.wantArgs) {
			t.Fatalf("%s: args = %v, want %v", tc.name, cmd.Args, tc.wantArgs)
		}
		for i := range cmd.Args {
			if cmd.Args[i] != tc.wantArgs[i] {
				t.Fatalf("%s: args = %v, want %v", tc.name, cmd.Args, tc.wantArgs)
			}
		}
	}
}

func TestMessageToInfo(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := domain.NewFileMessage("m1", "conv-1", "", "alice",
		&domain.FileData{Kind: domain.FileKindDocument, Name: "notes.pdf"}, "here", ts)
	msg.Reactions = domain.ReactionMap{}.
		Toggle("bob", "heart", ts).
		Toggle("carol", "heart", ts)
	msg.Optimistic = true

	info := messageToInfo(msg)
	if info.ID != "m1" || info.SenderID != "alice" || info.Text != "here" {
		t.Fatalf("core fields lost: %+v", info)
	}
	if info.FileName != "notes.pdf" {
		t.Fatalf("file name = %q, want notes.pdf", info.FileName)
	}
	if info.Reactions["heart"] != 2 {
		t.Fatalf("reaction counts = %v, want heart:2", info.Reactions)
	}
	if !info.Optimistic {
		t.Fatalf("optimistic flag dropped")
	}
}
