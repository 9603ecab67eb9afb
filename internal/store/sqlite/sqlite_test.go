package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cfn-softbio/scibot-web/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewWithSetup(":memory:", Migrate)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func appendMessage(t *testing.T, s *SQLiteStore, threadID string, role store.Role, content string) *store.Message {
	t.Helper()

	msg := &store.Message{ThreadID: threadID, Role: role, Content: content}
	if err := s.AppendMessage(context.Background(), msg); err != nil {
		t.Fatalf("append message: %v", err)
	}
	return msg
}

func TestAppendMessageAssignsIDAndTime(t *testing.T) {
	s := newTestStore(t)

	first := appendMessage(t, s, "t1", store.RoleUser, "hello")
	second := appendMessage(t, s, "t1", store.RoleAssistant, "hi")

	if first.ID == 0 || second.ID <= first.ID {
		t.Fatalf("expected increasing ids, got %d then %d", first.ID, second.ID)
	}
	if first.CreatedAt.IsZero() {
		t.Fatalf("expected CreatedAt to be set")
	}
	if second.CreatedAt.Before(first.CreatedAt) {
		t.Fatalf("timestamps went backwards: %v then %v", first.CreatedAt, second.CreatedAt)
	}
}

func TestAppendMessageClampsClockSkew(t *testing.T) {
	s := newTestStore(t)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	first := appendMessage(t, s, "t1", store.RoleUser, "q")

	s.now = func() time.Time { return base.Add(-time.Hour) }
	second := appendMessage(t, s, "t1", store.RoleAssistant, "a")

	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("expected clamped time %v, got %v", first.CreatedAt, second.CreatedAt)
	}

	// Other threads are not affected by the clamp.
	other := appendMessage(t, s, "t2", store.RoleUser, "q")
	if !other.CreatedAt.Equal(base.Add(-time.Hour)) {
		t.Fatalf("unexpected time for independent thread: %v", other.CreatedAt)
	}
}

func TestAppendMessageRejectsUnknownRole(t *testing.T) {
	s := newTestStore(t)

	err := s.AppendMessage(context.Background(), &store.Message{ThreadID: "t1", Role: "system", Content: "x"})
	if err == nil {
		t.Fatalf("expected constraint error for unknown role")
	}
}

func TestListRecentMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := range 5 {
		appendMessage(t, s, "t1", store.RoleUser, fmt.Sprintf("m%d", i))
	}
	appendMessage(t, s, "t2", store.RoleUser, "other")

	tests := []struct {
		name     string
		thread   string
		limit    int
		expected []string
	}{
		{name: "all in order", thread: "t1", limit: 100, expected: []string{"m0", "m1", "m2", "m3", "m4"}},
		{name: "newest window", thread: "t1", limit: 2, expected: []string{"m3", "m4"}},
		{name: "unknown thread", thread: "nope", limit: 100, expected: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, err := s.ListRecentMessages(ctx, tt.thread, tt.limit)
			if err != nil {
				t.Fatalf("ListRecentMessages failed: %v", err)
			}
			if msgs == nil {
				t.Fatalf("expected non-nil slice")
			}
			if len(msgs) != len(tt.expected) {
				t.Fatalf("expected %d messages, got %d", len(tt.expected), len(msgs))
			}
			for i, msg := range msgs {
				if msg.Content != tt.expected[i] {
					t.Errorf("expected %s at index %d, got %s", tt.expected[i], i, msg.Content)
				}
				if msg.ThreadID != tt.thread {
					t.Errorf("unexpected thread %s", msg.ThreadID)
				}
			}
		})
	}
}

func TestListMessagesAfter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := appendMessage(t, s, "t1", store.RoleUser, "q")
	appendMessage(t, s, "t2", store.RoleAssistant, "noise")
	reply := appendMessage(t, s, "t1", store.RoleAssistant, "a")

	msgs, err := s.ListMessagesAfter(ctx, "t1", user.ID)
	if err != nil {
		t.Fatalf("ListMessagesAfter failed: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != reply.ID || msgs[0].Role != store.RoleAssistant {
		t.Fatalf("unexpected messages: %+v", msgs)
	}

	msgs, err = s.ListMessagesAfter(ctx, "t1", reply.ID)
	if err != nil {
		t.Fatalf("ListMessagesAfter failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected no messages, got %d", len(msgs))
	}
}

func TestThreadExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	exists, err := s.ThreadExists(ctx, "t1")
	if err != nil || exists {
		t.Fatalf("expected missing thread, got %v, %v", exists, err)
	}

	appendMessage(t, s, "t1", store.RoleUser, "q")

	exists, err = s.ThreadExists(ctx, "t1")
	if err != nil || !exists {
		t.Fatalf("expected existing thread, got %v, %v", exists, err)
	}
}

func TestNewFailsOnUnwritablePath(t *testing.T) {
	if _, err := New("/nonexistent-dir/sub/db.sqlite"); err == nil {
		t.Fatalf("expected error opening database in missing directory")
	}
}
