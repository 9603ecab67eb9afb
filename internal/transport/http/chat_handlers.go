package http

import (
	"context"
	"errors"
	"html"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/cfn-softbio/scibot-web/internal/chat"
	"github.com/cfn-softbio/scibot-web/internal/config"
)

const contentTypeHTML = "text/html; charset=utf-8"

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ChatHandlers serves the chat page, the relay endpoint and history.
type ChatHandlers struct {
	service         *chat.Service
	botName         string
	maxMessageBytes int64
	log             *zerolog.Logger
}

// NewChatHandlers creates a new chat handlers instance.
func NewChatHandlers(svc *chat.Service, cfg *config.Config, logger *zerolog.Logger) *ChatHandlers {
	return &ChatHandlers{
		service:         svc,
		botName:         cfg.BotName,
		maxMessageBytes: cfg.Relay.MaxMessageBytes,
		log:             logger,
	}
}

// Landing serves the chat page for ?c=<conversation>, redirecting to a fresh
// conversation when none is given.
// GET /
func (h *ChatHandlers) Landing(c *gin.Context) {
	conversation := c.Query("c")
	if conversation == "" {
		token, err := h.service.NewConversation(c.Request.Context())
		if err != nil {
			requestLogger(c, h.log).Error().Err(err).Msg("failed to start conversation")
			c.String(http.StatusInternalServerError, "internal server error")
			return
		}

		u := *c.Request.URL
		q := u.Query()
		q.Set("c", token)
		u.RawQuery = q.Encode()
		c.Redirect(http.StatusFound, u.RequestURI())
		return
	}

	c.HTML(http.StatusOK, "index.html", gin.H{
		"Conversation": conversation,
		"BotName":      h.botName,
	})
}

// Relay stores the posted message, waits for the reply and returns it as an
// HTML fragment. Relay failures are returned as "[[reason]]" with status 200.
// POST /agent
func (h *ChatHandlers) Relay(c *gin.Context) {
	logger := requestLogger(c, h.log)

	if h.maxMessageBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxMessageBytes)
	}
	if err := c.Request.ParseForm(); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.String(http.StatusRequestEntityTooLarge, "message too large")
			return
		}
		c.String(http.StatusBadRequest, "invalid form")
		return
	}

	conversation := c.PostForm("conversation")
	message := c.PostForm("message")

	reply, err := h.service.Relay(c.Request.Context(), conversation, message)
	if err != nil {
		var relayErr *chat.RelayError
		switch {
		case errors.Is(err, chat.ErrBadRequest):
			c.String(http.StatusBadRequest, "conversation and message are required")
		case errors.As(err, &relayErr):
			c.Data(http.StatusOK, contentTypeHTML, []byte(html.EscapeString(relayErr.Diagnostic())))
		case errors.Is(err, context.Canceled):
			logger.Debug().Str("thread_id", conversation).Msg("client went away during relay")
			c.Status(http.StatusServiceUnavailable)
		default:
			logger.Error().Err(err).Str("thread_id", conversation).Msg("relay failed")
			c.String(http.StatusInternalServerError, "internal server error")
		}
		return
	}

	c.Data(http.StatusOK, contentTypeHTML, []byte(reply))
}

// History returns the rendered turns of a conversation as JSON.
// GET /history?conversation=<id>
func (h *ChatHandlers) History(c *gin.Context) {
	conversation := c.Query("conversation")

	entries, err := h.service.History(c.Request.Context(), conversation)
	if err != nil {
		requestLogger(c, h.log).Error().Err(err).Str("thread_id", conversation).Msg("failed to load history")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, entries)
}
