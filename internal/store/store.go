package store

import (
	"context"
	"time"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a persisted conversation turn.
type Message struct {
	ID        int64
	ThreadID  string
	CreatedAt time.Time
	Role      Role
	Content   string
}

// MessageStore handles message persistence. Messages are append-only.
type MessageStore interface {
	// AppendMessage persists a message and fills in its ID and CreatedAt.
	AppendMessage(ctx context.Context, msg *Message) error

	// ListRecentMessages returns up to limit newest messages of a thread,
	// in chronological (oldest-first) order.
	ListRecentMessages(ctx context.Context, threadID string, limit int) ([]*Message, error)

	// ListMessagesAfter returns messages of a thread inserted after the given
	// row id, in insertion order.
	ListMessagesAfter(ctx context.Context, threadID string, afterID int64) ([]*Message, error)

	// ThreadExists reports whether any message was stored for the thread.
	ThreadExists(ctx context.Context, threadID string) (bool, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
