package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clippy-oss/homie/chat-client/internal/domain"
	"github.com/clippy-oss/homie/chat-client/internal/livesync"
	"github.com/clippy-oss/homie/chat-client/internal/service"
	"github.com/clippy-oss/homie/chat-client/internal/store"
)

// CommandHandler handles CLI commands against one open window at a time.
type CommandHandler struct {
	svc     *service.ChatService
	reactor *livesync.Reactor
	st      store.Store
	userID  string
	log     zerolog.Logger

	typingThrottle  time.Duration
	typingIdleClear time.Duration

	mu     sync.Mutex
	window *livesync.Window
	typing *livesync.Reporter
	mirror *livesync.Mirror

	// countMu guards lastCount separately: onWindowChange runs inside
	// window callbacks, which may fire while mu is held by cmdOpen.
	countMu   sync.Mutex
	lastCount int

	events chan Event
}

// NewCommandHandler creates a new command handler for the local user.
func NewCommandHandler(svc *service.ChatService, st store.Store, userID string, typingThrottle, typingIdleClear time.Duration, log zerolog.Logger) *CommandHandler {
	return &CommandHandler{
		svc:             svc,
		reactor:         livesync.NewReactor(st, log),
		st:              st,
		userID:          userID,
		log:             log,
		typingThrottle:  typingThrottle,
		typingIdleClear: typingIdleClear,
		events:          make(chan Event, 100),
	}
}

// Events returns the stream of asynchronous updates (new messages in the
// open window, typing changes) for the front-end to display.
func (h *CommandHandler) Events() <-chan Event {
	return h.events
}

// Command represents a parsed command
type Command struct {
	Name string
	Args []string
}

// ParseCommand parses a command string (e.g., "/send Hello there")
func ParseCommand(input string) (*Command, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("empty command")
	}

	if !strings.HasPrefix(input, "/") {
		return nil, fmt.Errorf("commands must start with /")
	}

	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	name := strings.TrimPrefix(parts[0], "/")
	args := parts[1:]

	return &Command{Name: name, Args: args}, nil
}

// Execute executes a command and returns the result
func (h *CommandHandler) Execute(ctx context.Context, cmd *Command) (interface{}, error) {
	switch cmd.Name {
	case "help", "h":
		return h.cmdHelp()
	case "status", "s":
		return h.cmdStatus()
	case "chats", "ls":
		return h.cmdChats(ctx, cmd.Args)
	case "open", "o":
		return h.cmdOpen(ctx, cmd.Args)
	case "close":
		return h.cmdClose(ctx)
	case "messages", "msg":
		return h.cmdMessages()
	case "older":
		return h.cmdOlder(ctx)
	case "send":
		return h.cmdSend(ctx, cmd.Args)
	case "react":
		return h.cmdReact(ctx, cmd.Args)
	case "read":
		return h.cmdRead(ctx, cmd.Args)
	case "typing", "t":
		return h.cmdTyping(ctx)
	case "quit", "exit", "q":
		return map[string]bool{"quit": true}, nil
	default:
		return nil, fmt.Errorf("unknown command: %s. Type /help for available commands", cmd.Name)
	}
}

func (h *CommandHandler) cmdHelp() (interface{}, error) {
	help := `Available commands:

Conversations:
  /chats, /ls [limit]      List conversations (default: 20)
  /open, /o <id> [topic]   Open a conversation window
  /close                   Close the current window
  /status, /s              Show window status

Messages:
  /messages, /msg          Show the visible message window
  /older                   Load older messages into the window
  /send <text>             Send a message into the open window
  /react <msg_id> <key>    Toggle a reaction on a message
  /read <msg_id> [...]     Mark messages as read
  /typing, /t              Signal that you are typing

Other:
  /help, /h                Show this help
  /quit, /exit, /q         Exit the CLI`

	return map[string]string{"help": help}, nil
}

func (h *CommandHandler) cmdStatus() (interface{}, error) {
	h.mu.Lock()
	w := h.window
	h.mu.Unlock()

	if w == nil || !w.IsOpen() {
		return WindowStatus{Open: false}, nil
	}

	conversationID, topicID := w.Scope()
	return WindowStatus{
		Open:             true,
		ConversationID:   conversationID,
		TopicID:          topicID,
		MessageCount:     len(w.Messages()),
		LoadingInitial:   w.LoadingInitial(),
		LoadingOlder:     w.LoadingOlder(),
		HasMoreOlder:     w.HasMoreOlder(),
		TrackedListeners: w.TrackedListeners(),
	}, nil
}

func (h *CommandHandler) cmdChats(ctx context.Context, args []string) (interface{}, error) {
	limit := 20
	if len(args) > 0 {
		if l, err := strconv.Atoi(args[0]); err == nil && l > 0 {
			limit = l
		}
	}

	conversations, err := h.svc.Conversations(ctx, limit, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	result := make([]ConversationInfo, len(conversations))
	for i, conv := range conversations {
		result[i] = ConversationInfo{
			ID:              conv.ID,
			Name:            conv.DisplayName(h.userID),
			Type:            string(conv.Type),
			Participants:    conv.Participants,
			LastMessageText: conv.LastMessageText,
			LastMessageTime: conv.LastMessageTime,
		}
	}

	return map[string]interface{}{"chats": result, "count": len(result)}, nil
}

func (h *CommandHandler) cmdOpen(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /open <conversation_id> [topic_id]")
	}
	conversationID := args[0]
	topicID := ""
	if len(args) > 1 {
		topicID = args[1]
	}

	if _, err := h.svc.Conversation(ctx, conversationID); err != nil {
		return nil, fmt.Errorf("failed to open conversation: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.closeLocked(ctx)

	h.countMu.Lock()
	h.lastCount = 0
	h.countMu.Unlock()
	window := h.svc.NewWindow(h.onWindowChange)
	if err := window.Open(conversationID, topicID); err != nil {
		return nil, err
	}
	h.window = window

	h.typing = livesync.NewReporter(h.st, conversationID, h.userID, h.typingThrottle, h.typingIdleClear, h.log)

	mirror := livesync.NewMirror()
	mirror.OnChange = h.onTypingChange
	if err := mirror.Start(context.Background(), h.st, conversationID); err != nil {
		h.log.Warn().Err(err).Str("conversation", conversationID).Msg("typing mirror unavailable")
	} else {
		h.mirror = mirror
	}

	return map[string]string{"message": "Opened conversation " + conversationID}, nil
}

func (h *CommandHandler) cmdClose(ctx context.Context) (interface{}, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closeLocked(ctx)
	return map[string]string{"message": "Window closed"}, nil
}

func (h *CommandHandler) closeLocked(ctx context.Context) {
	if h.window != nil {
		h.window.Close()
		h.window = nil
	}
	if h.typing != nil {
		h.typing.Close(ctx)
		h.typing = nil
	}
	if h.mirror != nil {
		h.mirror.Close()
		h.mirror = nil
	}
}

func (h *CommandHandler) openWindow() (*livesync.Window, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.window == nil || !h.window.IsOpen() {
		return nil, fmt.Errorf("no open window. Use /open <conversation_id> first")
	}
	return h.window, nil
}

func (h *CommandHandler) cmdMessages() (interface{}, error) {
	w, err := h.openWindow()
	if err != nil {
		return nil, err
	}

	messages := w.Messages()
	result := make([]MessageInfo, len(messages))
	for i, msg := range messages {
		result[i] = messageToInfo(msg)
	}

	return map[string]interface{}{"messages": result, "count": len(result), "has_more_older": w.HasMoreOlder()}, nil
}

func (h *CommandHandler) cmdOlder(ctx context.Context) (interface{}, error) {
	w, err := h.openWindow()
	if err != nil {
		return nil, err
	}

	before := len(w.Messages())
	if err := w.LoadOlder(ctx); err != nil {
		return nil, err
	}
	loaded := len(w.Messages()) - before

	return map[string]interface{}{
		"loaded":         loaded,
		"has_more_older": w.HasMoreOlder(),
	}, nil
}

func (h *CommandHandler) cmdSend(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /send <text>")
	}

	w, err := h.openWindow()
	if err != nil {
		return nil, err
	}

	text := strings.Join(args, " ")
	msg, err := h.svc.Send(ctx, w, domain.Draft{SenderID: h.userID, Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	return messageToInfo(msg), nil
}

func (h *CommandHandler) cmdReact(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("usage: /react <message_id> <reaction_key>")
	}

	w, err := h.openWindow()
	if err != nil {
		return nil, err
	}
	conversationID, topicID := w.Scope()

	messageID := args[0]
	key := args[1]

	if err := h.reactor.Toggle(ctx, conversationID, topicID, messageID, h.userID, key); err != nil {
		return nil, fmt.Errorf("failed to toggle reaction: %w", err)
	}

	return map[string]string{
		"message":    "Reaction toggled",
		"message_id": messageID,
		"key":        key,
	}, nil
}

func (h *CommandHandler) cmdRead(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /read <message_id> [message_id2...]")
	}

	w, err := h.openWindow()
	if err != nil {
		return nil, err
	}
	conversationID, topicID := w.Scope()

	if err := h.svc.MarkRead(ctx, conversationID, topicID, args); err != nil {
		return nil, fmt.Errorf("failed to mark as read: %w", err)
	}

	return map[string]interface{}{
		"message":     "Messages marked as read",
		"message_ids": args,
	}, nil
}

func (h *CommandHandler) cmdTyping(ctx context.Context) (interface{}, error) {
	h.mu.Lock()
	typing := h.typing
	h.mu.Unlock()

	if typing == nil {
		return nil, fmt.Errorf("no open window. Use /open <conversation_id> first")
	}

	if err := typing.Signal(ctx); err != nil {
		return nil, err
	}

	return map[string]string{"message": "Typing signaled"}, nil
}

// Shutdown closes whatever window is open and releases its listeners.
func (h *CommandHandler) Shutdown(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closeLocked(ctx)
}

// onWindowChange pushes an event when the visible window grows, carrying
// the newest message.
func (h *CommandHandler) onWindowChange(messages []*domain.Message) {
	h.countMu.Lock()
	grew := len(messages) > h.lastCount && h.lastCount > 0
	h.lastCount = len(messages)
	h.countMu.Unlock()

	if !grew || len(messages) == 0 {
		return
	}

	h.pushEvent(Event{
		Type:      "message_appended",
		Timestamp: time.Now(),
		Data:      messageToInfo(messages[len(messages)-1]),
	})
}

func (h *CommandHandler) onTypingChange(typing map[string]bool) {
	active := make([]string, 0, len(typing))
	for userID, isTyping := range typing {
		if isTyping && userID != h.userID {
			active = append(active, userID)
		}
	}

	h.pushEvent(Event{
		Type:      "typing_changed",
		Timestamp: time.Now(),
		Data:      map[string]interface{}{"typing": active},
	})
}

func (h *CommandHandler) pushEvent(evt Event) {
	select {
	case h.events <- evt:
	default:
		// Front-end is not draining; drop rather than block the sync layer.
	}
}

func messageToInfo(msg *domain.Message) MessageInfo {
	info := MessageInfo{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		TopicID:        msg.TopicID,
		SenderID:       msg.SenderID,
		Text:           msg.Text,
		Timestamp:      msg.Timestamp,
		Status:         string(msg.Status),
		Optimistic:     msg.Optimistic,
	}
	if msg.File != nil {
		info.FileName = msg.File.Name
	}
	if len(msg.Reactions) > 0 {
		info.Reactions = make(map[string]int, len(msg.Reactions))
		for key, entries := range msg.Reactions {
			info.Reactions[key] = len(entries)
		}
	}
	return info
}
