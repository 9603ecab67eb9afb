package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cfn-softbio/scibot-web/internal/store"
)

//go:embed schema.sql
var schema string

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// New opens the SQLite database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, Migrate)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema or seed rows.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Migrate creates the messages table and its index when missing.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// AppendMessage persists a message. CreatedAt is never earlier than the
// newest message already stored for the thread.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *store.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createdAt := s.now().UTC()

	var last time.Time
	err = tx.QueryRowContext(ctx, `
		SELECT created_at
		FROM messages
		WHERE thread_id = ?
		ORDER BY id DESC
		LIMIT 1
	`, msg.ThreadID).Scan(&last)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("query last message time: %w", err)
	case last.After(createdAt):
		createdAt = last
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO messages (thread_id, created_at, role, content)
		VALUES (?, ?, ?, ?)
	`, msg.ThreadID, createdAt, string(msg.Role), msg.Content)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit message: %w", err)
	}

	msg.ID = id
	msg.CreatedAt = createdAt
	return nil
}

// ListRecentMessages returns up to limit newest messages in chronological order.
func (s *SQLiteStore) ListRecentMessages(ctx context.Context, threadID string, limit int) ([]*store.Message, error) {
	query := `
		SELECT id, thread_id, created_at, role, content
		FROM messages
		WHERE thread_id = ?
		ORDER BY id DESC
		LIMIT ?
	`
	messages, err := s.queryMessages(ctx, query, threadID, limit)
	if err != nil {
		return nil, err
	}

	// Reverse to get chronological order
	for i := range len(messages) / 2 {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}

	return messages, nil
}

// ListMessagesAfter returns the thread's messages with id greater than afterID.
func (s *SQLiteStore) ListMessagesAfter(ctx context.Context, threadID string, afterID int64) ([]*store.Message, error) {
	query := `
		SELECT id, thread_id, created_at, role, content
		FROM messages
		WHERE thread_id = ? AND id > ?
		ORDER BY id ASC
	`
	return s.queryMessages(ctx, query, threadID, afterID)
}

// ThreadExists reports whether the thread has any stored message.
func (s *SQLiteStore) ThreadExists(ctx context.Context, threadID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM messages WHERE thread_id = ?)
	`, threadID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query thread: %w", err)
	}
	return exists, nil
}

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...any) ([]*store.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0)
	for rows.Next() {
		var (
			msg  store.Message
			role string
		)
		if err := rows.Scan(&msg.ID, &msg.ThreadID, &msg.CreatedAt, &role, &msg.Content); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = store.Role(role)
		messages = append(messages, &msg)
	}

	return messages, rows.Err()
}
