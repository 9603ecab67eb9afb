// Package responder talks to the inference and document-retrieval collaborator
// that produces assistant replies.
package responder

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cfn-softbio/scibot-web/internal/config"
	"github.com/cfn-softbio/scibot-web/internal/store"
)

// Turn is one prior message handed to the responder for context.
type Turn struct {
	Role    store.Role `json:"role"`
	Content string     `json:"content"`
}

// Request describes the user message awaiting a reply.
type Request struct {
	ThreadID      string
	UserMessageID int64
	Message       string
	History       []Turn
}

// Reply is the assistant answer. MessageID is set when the responder stored
// the reply row itself; otherwise the caller persists Content.
type Reply struct {
	Content   string
	MessageID int64
}

// Responder produces exactly one assistant reply per request.
type Responder interface {
	Respond(ctx context.Context, req Request) (Reply, error)
}

// Error is a failed exchange that is reported to the user as a diagnostic
// instead of a reply. Other errors returned by a Responder are infrastructure
// failures.
type Error struct {
	Msg string
	Err error
}

func (e *Error) Error() string {
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func countError(got int) *Error {
	return &Error{Msg: fmt.Sprintf("db error: expected 1 result, got %d results.", got)}
}

func roleError(role store.Role) *Error {
	return &Error{Msg: fmt.Sprintf("reply error: last message is from %s.", role)}
}

func failure(err error) *Error {
	return &Error{Msg: "responder error: " + err.Error(), Err: err}
}

// New builds the responder selected by cfg.Mode.
func New(cfg config.ResponderConfig, databasePath string, messages store.MessageStore, logger *zerolog.Logger) (Responder, error) {
	switch cfg.Mode {
	case config.ResponderModeExec:
		return NewExec(ExecConfig{
			Command:      cfg.Command,
			Args:         cfg.Args,
			Workdir:      cfg.Workdir,
			DatabasePath: databasePath,
		}, messages, logger), nil
	case config.ResponderModeHTTP:
		return NewHTTP(HTTPConfig{URL: cfg.URL, APIKey: cfg.APIKey}, nil, logger), nil
	default:
		return nil, fmt.Errorf("unknown responder mode %q", cfg.Mode)
	}
}
