package responder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cfn-softbio/scibot-web/internal/store"
)

// Environment passed to the external script.
const (
	EnvDatabasePath = "SCIBOT_DB_PATH"
	EnvThreadID     = "SCIBOT_THREAD_ID"
)

const stderrTail = 512

// ExecConfig configures ExecResponder.
type ExecConfig struct {
	Command      string
	Args         []string
	Workdir      string
	DatabasePath string
}

// ExecResponder runs an external program with the thread id as its last
// argument. The program stores the reply row itself; the responder then reads
// back the rows written after the user message.
type ExecResponder struct {
	cfg      ExecConfig
	messages store.MessageStore
	log      *zerolog.Logger
}

// NewExec creates an ExecResponder.
func NewExec(cfg ExecConfig, messages store.MessageStore, logger *zerolog.Logger) *ExecResponder {
	return &ExecResponder{cfg: cfg, messages: messages, log: logger}
}

// Respond runs the program and returns the single assistant row it appended.
func (r *ExecResponder) Respond(ctx context.Context, req Request) (Reply, error) {
	args := append(slices.Clone(r.cfg.Args), req.ThreadID)

	cmd := exec.CommandContext(ctx, r.cfg.Command, args...)
	cmd.Dir = r.cfg.Workdir
	cmd.Env = append(os.Environ(),
		EnvDatabasePath+"="+r.cfg.DatabasePath,
		EnvThreadID+"="+req.ThreadID,
	)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	r.log.Debug().
		Str("thread_id", req.ThreadID).
		Dur("elapsed", time.Since(start)).
		Int("stdout_bytes", stdout.Len()).
		Msg("responder script finished")

	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return Reply{}, failure(fmt.Errorf("timed out after %s", time.Since(start).Round(time.Millisecond)))
			}
			return Reply{}, ctxErr
		}
		r.log.Warn().Err(runErr).Str("thread_id", req.ThreadID).Str("stderr", tail(stderr.String())).Msg("responder script failed")
		return Reply{}, failure(fmt.Errorf("%s: %w", r.cfg.Command, runErr))
	}

	rows, err := r.messages.ListMessagesAfter(ctx, req.ThreadID, req.UserMessageID)
	if err != nil {
		return Reply{}, fmt.Errorf("read reply: %w", err)
	}
	if len(rows) != 1 {
		return Reply{}, countError(len(rows))
	}
	if rows[0].Role != store.RoleAssistant {
		return Reply{}, roleError(rows[0].Role)
	}

	return Reply{Content: rows[0].Content, MessageID: rows[0].ID}, nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= stderrTail {
		return s
	}
	return s[len(s)-stderrTail:]
}
