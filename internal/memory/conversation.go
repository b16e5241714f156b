package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	// RoleSystem is the role of memory mirror messages.
	RoleSystem = "system"

	setPrefix    = "MEMORY_SET:"
	deletePrefix = "MEMORY_DELETE:"
)

// Message is one entry of a conversation log.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ConversationLog is an append-only message log that RemoteStore mirrors
// mutations into.
type ConversationLog interface {
	// ID returns the conversation identifier.
	ID() string
	// Append adds a message to the end of the log.
	Append(ctx context.Context, msg Message) error
	// Messages returns the whole log, oldest first.
	Messages(ctx context.Context) ([]Message, error)
}

// NewConversationID returns a fresh identifier for a crew memory conversation.
func NewConversationID() string {
	return "crew_memory_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

// SliceLog is an in-process ConversationLog.
type SliceLog struct {
	id string

	mu       sync.Mutex
	messages []Message
}

var _ ConversationLog = (*SliceLog)(nil)

// NewSliceLog creates an empty log. An empty id gets a generated one.
func NewSliceLog(id string) *SliceLog {
	if id == "" {
		id = NewConversationID()
	}
	return &SliceLog{id: id}
}

// ID returns the conversation identifier.
func (l *SliceLog) ID() string {
	return l.id
}

// Append adds a message to the end of the log.
func (l *SliceLog) Append(_ context.Context, msg Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
	return nil
}

// Messages returns a copy of the log.
func (l *SliceLog) Messages(_ context.Context) ([]Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Message(nil), l.messages...), nil
}
