package responder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfn-softbio/scibot-web/internal/log"
	"github.com/cfn-softbio/scibot-web/internal/store"
	"github.com/cfn-softbio/scibot-web/internal/store/sqlite"
)

// TestHelperProcess stands in for the external responder script. It is only
// active when launched by execResponderFor.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("SCIBOT_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: -- <mode> <thread>")
		os.Exit(2)
	}
	mode, thread := args[1], args[2]

	if thread != os.Getenv(EnvThreadID) {
		fmt.Fprintln(os.Stderr, "thread id mismatch")
		os.Exit(2)
	}

	st, err := sqlite.New(os.Getenv(EnvDatabasePath))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer st.Close()

	ctx := context.Background()
	add := func(role store.Role, content string) {
		if err := st.AppendMessage(ctx, &store.Message{ThreadID: thread, Role: role, Content: content}); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}

	switch mode {
	case "reply":
		add(store.RoleAssistant, "answer for "+thread)
	case "silent":
	case "user":
		add(store.RoleUser, "unexpected")
	case "twice":
		add(store.RoleAssistant, "one")
		add(store.RoleAssistant, "two")
	case "fail":
		fmt.Fprintln(os.Stderr, "model unavailable")
		os.Exit(3)
	case "sleep":
		time.Sleep(10 * time.Second)
	}
	os.Exit(0)
}

func execResponderFor(t *testing.T, mode string) (*ExecResponder, *sqlite.SQLiteStore) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "scibot.db")
	st, err := sqlite.New(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	t.Setenv("SCIBOT_WANT_HELPER_PROCESS", "1")

	r := NewExec(ExecConfig{
		Command:      os.Args[0],
		Args:         []string{"-test.run=TestHelperProcess", "--", mode},
		DatabasePath: dbPath,
	}, st, log.Nop())
	return r, st
}

func appendUser(t *testing.T, st store.MessageStore, thread string) *store.Message {
	t.Helper()

	msg := &store.Message{ThreadID: thread, Role: store.RoleUser, Content: "question"}
	require.NoError(t, st.AppendMessage(context.Background(), msg))
	return msg
}

func TestExecResponderReadsBackReply(t *testing.T) {
	r, st := execResponderFor(t, "reply")
	user := appendUser(t, st, "thread-a")

	reply, err := r.Respond(context.Background(), Request{ThreadID: "thread-a", UserMessageID: user.ID})
	require.NoError(t, err)
	assert.Equal(t, "answer for thread-a", reply.Content)
	assert.Greater(t, reply.MessageID, user.ID)
}

func TestExecResponderDiagnostics(t *testing.T) {
	tests := []struct {
		mode string
		want string
	}{
		{mode: "silent", want: "db error: expected 1 result, got 0 results."},
		{mode: "twice", want: "db error: expected 1 result, got 2 results."},
		{mode: "user", want: "reply error: last message is from user."},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			r, st := execResponderFor(t, tt.mode)
			user := appendUser(t, st, "thread-b")

			_, err := r.Respond(context.Background(), Request{ThreadID: "thread-b", UserMessageID: user.ID})
			var respErr *Error
			require.True(t, errors.As(err, &respErr), "expected *Error, got %v", err)
			assert.Equal(t, tt.want, respErr.Msg)
		})
	}
}

func TestExecResponderScriptFailure(t *testing.T) {
	r, st := execResponderFor(t, "fail")
	user := appendUser(t, st, "thread-c")

	_, err := r.Respond(context.Background(), Request{ThreadID: "thread-c", UserMessageID: user.ID})
	var respErr *Error
	require.True(t, errors.As(err, &respErr), "expected *Error, got %v", err)
	assert.Contains(t, respErr.Msg, "responder error:")
	assert.Contains(t, respErr.Msg, "exit status 3")
}

func TestExecResponderTimeout(t *testing.T) {
	r, st := execResponderFor(t, "sleep")
	user := appendUser(t, st, "thread-d")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := r.Respond(ctx, Request{ThreadID: "thread-d", UserMessageID: user.ID})
	var respErr *Error
	require.True(t, errors.As(err, &respErr), "expected *Error, got %v", err)
	assert.Contains(t, respErr.Msg, "timed out")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExecResponderCanceled(t *testing.T) {
	r, st := execResponderFor(t, "sleep")
	user := appendUser(t, st, "thread-e")

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	_, err := r.Respond(ctx, Request{ThreadID: "thread-e", UserMessageID: user.ID})
	assert.ErrorIs(t, err, context.Canceled)
}
