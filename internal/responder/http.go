package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

const maxResponseBytes = 4 << 20

// HTTPConfig configures HTTPResponder.
type HTTPConfig struct {
	URL    string
	APIKey string
}

// HTTPResponder posts the conversation to a JSON endpoint and receives the
// reply in the response body.
type HTTPResponder struct {
	cfg    HTTPConfig
	client *http.Client
	log    *zerolog.Logger
}

type respondRequest struct {
	ThreadID string `json:"thread_id"`
	Message  string `json:"message"`
	History  []Turn `json:"history"`
}

type respondResponse struct {
	Reply string `json:"reply"`
	Error string `json:"error,omitempty"`
}

// NewHTTP creates an HTTPResponder. Deadlines come from the request context.
func NewHTTP(cfg HTTPConfig, client *http.Client, logger *zerolog.Logger) *HTTPResponder {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPResponder{cfg: cfg, client: client, log: logger}
}

// Respond sends one request and returns the reply text.
func (r *HTTPResponder) Respond(ctx context.Context, req Request) (Reply, error) {
	history := req.History
	if history == nil {
		history = []Turn{}
	}

	body, err := json.Marshal(respondRequest{
		ThreadID: req.ThreadID,
		Message:  req.Message,
		History:  history,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return Reply{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if r.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
			return Reply{}, ctxErr
		}
		return Reply{}, failure(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Reply{}, failure(fmt.Errorf("read response: %w", err))
	}

	var decoded respondResponse
	decodeErr := json.Unmarshal(raw, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(decoded.Error)
		if decodeErr != nil || msg == "" {
			msg = strings.TrimSpace(tail(string(raw)))
		}
		r.log.Warn().Int("status", resp.StatusCode).Str("thread_id", req.ThreadID).Msg("responder returned error status")
		return Reply{}, failure(fmt.Errorf("status %d: %s", resp.StatusCode, msg))
	}
	if decodeErr != nil {
		return Reply{}, failure(fmt.Errorf("decode response: %w", decodeErr))
	}
	if decoded.Error != "" {
		return Reply{}, failure(errors.New(decoded.Error))
	}
	if strings.TrimSpace(decoded.Reply) == "" {
		return Reply{}, failure(errors.New("empty reply"))
	}

	return Reply{Content: decoded.Reply}, nil
}
