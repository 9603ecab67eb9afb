// Package chat implements the conversation relay: store the user's message,
// obtain one assistant reply, and render conversation history.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cfn-softbio/scibot-web/internal/metrics"
	"github.com/cfn-softbio/scibot-web/internal/render"
	"github.com/cfn-softbio/scibot-web/internal/responder"
	"github.com/cfn-softbio/scibot-web/internal/store"
	"github.com/cfn-softbio/scibot-web/internal/utils"
)

const tokenAttempts = 5

// Config tunes the relay service.
type Config struct {
	BotName          string
	HistoryLimit     int
	ResponderTimeout time.Duration
	SerializeThreads bool
}

// Entry is one rendered turn of a conversation.
type Entry struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// Service relays user messages to the responder and serves history.
type Service struct {
	messages  store.MessageStore
	responder responder.Responder
	cfg       Config
	locks     *threadLocks
	metrics   *metrics.Metrics
	log       *zerolog.Logger
}

// NewService creates a relay service. m may be nil.
func NewService(messages store.MessageStore, resp responder.Responder, cfg Config, m *metrics.Metrics, logger *zerolog.Logger) *Service {
	return &Service{
		messages:  messages,
		responder: resp,
		cfg:       cfg,
		locks:     newThreadLocks(),
		metrics:   m,
		log:       logger,
	}
}

// Relay appends the user's message, waits for the assistant reply and returns
// it as an HTML fragment. It returns ErrBadRequest when either argument is
// blank and *RelayError when no valid reply was produced.
func (s *Service) Relay(ctx context.Context, threadID, text string) (string, error) {
	start := time.Now()

	if strings.TrimSpace(threadID) == "" || strings.TrimSpace(text) == "" {
		s.metrics.ObserveRelay(metrics.OutcomeBadRequest, time.Since(start))
		return "", ErrBadRequest
	}

	s.metrics.InFlight(1)
	defer s.metrics.InFlight(-1)

	reply, err := s.relay(ctx, threadID, text)
	s.metrics.ObserveRelay(outcomeOf(ctx, err), time.Since(start))
	if err != nil {
		return "", err
	}
	return render.Message(reply), nil
}

func (s *Service) relay(ctx context.Context, threadID, text string) (string, error) {
	if s.cfg.SerializeThreads {
		release, err := s.locks.acquire(ctx, threadID)
		if err != nil {
			return "", err
		}
		defer release()
	}

	recent, err := s.messages.ListRecentMessages(ctx, threadID, s.cfg.HistoryLimit)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}

	userMsg := &store.Message{ThreadID: threadID, Role: store.RoleUser, Content: text}
	if err := s.messages.AppendMessage(ctx, userMsg); err != nil {
		return "", fmt.Errorf("store user message: %w", err)
	}

	req := responder.Request{
		ThreadID:      threadID,
		UserMessageID: userMsg.ID,
		Message:       text,
		History:       toTurns(recent),
	}

	respCtx, cancel := context.WithTimeout(ctx, s.cfg.ResponderTimeout)
	respStart := time.Now()
	reply, err := s.responder.Respond(respCtx, req)
	cancel()
	s.metrics.ObserveResponder(outcomeOf(ctx, err), time.Since(respStart))

	if err != nil {
		var respErr *responder.Error
		if errors.As(err, &respErr) {
			s.log.Warn().Err(err).Str("thread_id", threadID).Int64("user_message_id", userMsg.ID).Msg("relay failed")
			return "", &RelayError{Reason: respErr.Msg, Err: err}
		}
		return "", fmt.Errorf("responder: %w", err)
	}

	if reply.MessageID == 0 {
		assistantMsg := &store.Message{ThreadID: threadID, Role: store.RoleAssistant, Content: reply.Content}
		if err := s.messages.AppendMessage(ctx, assistantMsg); err != nil {
			return "", fmt.Errorf("store assistant message: %w", err)
		}
		reply.MessageID = assistantMsg.ID
	}

	s.log.Info().
		Str("thread_id", threadID).
		Int64("user_message_id", userMsg.ID).
		Int64("reply_message_id", reply.MessageID).
		Int("reply_chars", len(reply.Content)).
		Msg("relay completed")

	return reply.Content, nil
}

// History returns up to the configured number of newest turns of a thread in
// chronological order. Unknown or blank threads yield an empty slice.
func (s *Service) History(ctx context.Context, threadID string) ([]Entry, error) {
	entries := make([]Entry, 0)
	if strings.TrimSpace(threadID) == "" {
		return entries, nil
	}

	msgs, err := s.messages.ListRecentMessages(ctx, threadID, s.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	s.metrics.IncHistory()

	for _, msg := range msgs {
		sender := string(msg.Role)
		if msg.Role == store.RoleAssistant {
			sender = s.cfg.BotName
		}
		entries = append(entries, Entry{Sender: sender, Message: render.Message(msg.Content)})
	}
	return entries, nil
}

// NewConversation returns a fresh conversation token with no stored messages.
func (s *Service) NewConversation(ctx context.Context) (string, error) {
	for range tokenAttempts {
		token, err := utils.NewConversationToken()
		if err != nil {
			return "", err
		}
		used, err := s.messages.ThreadExists(ctx, token)
		if err != nil {
			return "", fmt.Errorf("check conversation: %w", err)
		}
		if !used {
			return token, nil
		}
		s.log.Warn().Str("thread_id", token).Msg("generated conversation token already in use")
	}
	return "", errors.New("could not generate an unused conversation token")
}

func toTurns(msgs []*store.Message) []responder.Turn {
	turns := make([]responder.Turn, 0, len(msgs))
	for _, msg := range msgs {
		turns = append(turns, responder.Turn{Role: msg.Role, Content: msg.Content})
	}
	return turns
}

func outcomeOf(ctx context.Context, err error) string {
	var relayErr *RelayError
	var respErr *responder.Error
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.As(err, &relayErr), errors.As(err, &respErr):
		return metrics.OutcomeRelayError
	case ctx.Err() != nil:
		return metrics.OutcomeCanceled
	default:
		return metrics.OutcomeInternal
	}
}
