package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// commandTimeout bounds every one-shot store operation a command triggers,
// so a hung store resolves into an error instead of a stuck prompt.
const commandTimeout = 10 * time.Second

// InteractiveCLI handles interactive command-line interface
type InteractiveCLI struct {
	handler *CommandHandler
	reader  *bufio.Reader
	writer  io.Writer
}

// NewInteractiveCLI creates a new interactive CLI
func NewInteractiveCLI(handler *CommandHandler) *InteractiveCLI {
	return &InteractiveCLI{
		handler: handler,
		reader:  bufio.NewReader(os.Stdin),
		writer:  os.Stdout,
	}
}

// Run starts the interactive CLI loop
func (cli *InteractiveCLI) Run(ctx context.Context) error {
	cli.printWelcome()

	go cli.handleEvents(cli.handler.Events())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			cli.print("\n> ")
			line, err := cli.reader.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}

			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			if err := cli.processCommand(ctx, line); err != nil {
				if err.Error() == "quit" {
					cli.println("Goodbye!")
					return nil
				}
				cli.printf("Error: %s\n", err)
			}
		}
	}
}

func (cli *InteractiveCLI) printWelcome() {
	cli.println("===========================================")
	cli.println("  Chat Client CLI")
	cli.println("===========================================")
	cli.println("Type /help for available commands")
	cli.println("")
}

func (cli *InteractiveCLI) processCommand(ctx context.Context, input string) error {
	cmd, err := ParseCommand(input)
	if err != nil {
		return err
	}

	cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	result, err := cli.handler.Execute(cmdCtx, cmd)
	if err != nil {
		return err
	}

	// Check for quit command
	if m, ok := result.(map[string]bool); ok && m["quit"] {
		return fmt.Errorf("quit")
	}

	// Format and display result
	cli.displayResult(cmd.Name, result)
	return nil
}

func (cli *InteractiveCLI) displayResult(cmdName string, result interface{}) {
	switch cmdName {
	case "help", "h":
		if m, ok := result.(map[string]string); ok {
			cli.println(m["help"])
		}

	case "status", "s":
		if s, ok := result.(WindowStatus); ok {
			if !s.Open {
				cli.println("No window open")
				return
			}
			cli.printf("Window: %s", s.ConversationID)
			if s.TopicID != "" {
				cli.printf(" (topic %s)", s.TopicID)
			}
			cli.println("")
			cli.printf("  Messages: %d\n", s.MessageCount)
			cli.printf("  Loading initial: %v | Loading older: %v | Has more older: %v\n", s.LoadingInitial, s.LoadingOlder, s.HasMoreOlder)
			cli.printf("  Tracked listeners: %d\n", s.TrackedListeners)
		}

	case "chats", "ls":
		if m, ok := result.(map[string]interface{}); ok {
			chats, _ := m["chats"].([]ConversationInfo)
			cli.printf("Found %d conversation(s):\n\n", len(chats))
			for i, chat := range chats {
				cli.printf("%d. %s (%s)\n", i+1, chat.Name, chat.Type)
				cli.printf("   ID: %s\n", chat.ID)
				if chat.LastMessageText != "" {
					preview := chat.LastMessageText
					if len(preview) > 50 {
						preview = preview[:50] + "..."
					}
					cli.printf("   Last: %s\n", preview)
				}
			}
		}

	case "messages", "msg":
		if m, ok := result.(map[string]interface{}); ok {
			messages, _ := m["messages"].([]MessageInfo)
			cli.printf("Window holds %d message(s):\n\n", len(messages))
			for _, msg := range messages {
				cli.printMessage(msg)
			}
		}

	case "older":
		if m, ok := result.(map[string]interface{}); ok {
			cli.printf("Loaded %v older message(s), has more: %v\n", m["loaded"], m["has_more_older"])
		}

	case "send":
		if msg, ok := result.(MessageInfo); ok {
			cli.printf("Message sent!\n")
			cli.printf("  ID: %s\n", msg.ID)
			cli.printf("  Time: %s\n", msg.Timestamp.Format("2006-01-02 15:04:05"))
		}

	default:
		// Generic JSON output for other commands
		if m, ok := result.(map[string]string); ok {
			if msg, exists := m["message"]; exists {
				cli.println(msg)
				return
			}
		}
		// Pretty print JSON
		data, _ := json.MarshalIndent(result, "", "  ")
		cli.println(string(data))
	}
}

func (cli *InteractiveCLI) printMessage(msg MessageInfo) {
	marker := ""
	if msg.Optimistic {
		marker = " (sending...)"
	}
	cli.printf("[%s] %s%s:\n", msg.Timestamp.Format("2006-01-02 15:04"), msg.SenderID, marker)
	if msg.Text != "" {
		cli.printf("  %s\n", msg.Text)
	} else if msg.FileName != "" {
		cli.printf("  [file] %s\n", msg.FileName)
	}
	if len(msg.Reactions) > 0 {
		cli.print("  ")
		for key, count := range msg.Reactions {
			cli.printf("%s %d  ", key, count)
		}
		cli.println("")
	}
	cli.printf("  ID: %s | %s\n\n", msg.ID, msg.Status)
}

func (cli *InteractiveCLI) handleEvents(eventChan <-chan Event) {
	for event := range eventChan {
		switch event.Type {
		case "message_appended":
			if msg, ok := event.Data.(MessageInfo); ok {
				cli.printf("\n[New Message] From %s:\n", msg.SenderID)
				if msg.Text != "" {
					cli.printf("  %s\n", msg.Text)
				} else if msg.FileName != "" {
					cli.printf("  [file] %s\n", msg.FileName)
				}
				cli.print("> ")
			}
		case "typing_changed":
			if data, ok := event.Data.(map[string]interface{}); ok {
				users, _ := data["typing"].([]string)
				if len(users) > 0 {
					cli.printf("\n[%s typing...]\n> ", strings.Join(users, ", "))
				}
			}
		}
	}
}

func (cli *InteractiveCLI) print(s string) {
	fmt.Fprint(cli.writer, s)
}

func (cli *InteractiveCLI) println(s string) {
	fmt.Fprintln(cli.writer, s)
}

func (cli *InteractiveCLI) printf(format string, args ...interface{}) {
	fmt.Fprintf(cli.writer, format, args...)
}
