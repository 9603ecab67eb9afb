package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/cfn-softbio/scibot-web/internal/chat"
	"github.com/cfn-softbio/scibot-web/internal/config"
	"github.com/cfn-softbio/scibot-web/internal/proto"
)

// WSHandler upgrades HTTP connections and serves history and msg frames
// against the chat service. Frames on one connection are handled in order.
type WSHandler struct {
	service        *chat.Service
	botName        string
	perMinute      int
	readLimit      int64
	originPatterns []string
	log            *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(svc *chat.Service, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	readLimit := cfg.Relay.MaxMessageBytes
	if readLimit > 0 {
		// room for the envelope around the message text
		readLimit += 1 << 10
	}
	return &WSHandler{
		service:        svc,
		botName:        cfg.BotName,
		perMinute:      cfg.Relay.RateLimitPerMinute,
		readLimit:      readLimit,
		originPatterns: cfg.AllowedOrigins,
		log:            logger,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	if h.readLimit > 0 {
		conn.SetReadLimit(h.readLimit)
	}

	logger := h.log.With().Str("conn_id", uuid.NewString()).Logger()

	err = h.serve(ctx, conn, newPerMinuteLimiter(h.perMinute), &logger)

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			logger.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) serve(ctx context.Context, conn *websocket.Conn, limiter *rate.Limiter, logger *zerolog.Logger) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		req, protoErr, err := inboundToRequest(inbound)
		if err != nil {
			logger.Debug().Err(err).Msg("failed to map inbound")
			protoErr = &proto.Error{Code: proto.ErrCodeInvalidMessage, Msg: "malformed payload"}
		}
		if protoErr != nil {
			if err := wsjson.Write(ctx, conn, proto.Outbound{Type: proto.OutboundTypeError, Error: protoErr}); err != nil {
				return err
			}
			continue
		}

		if err := wsjson.Write(ctx, conn, h.handle(ctx, req, limiter, logger)); err != nil {
			logger.Error().Err(err).Msg("write ws event")
			return err
		}
	}
}

func (h *WSHandler) handle(ctx context.Context, req *wsRequest, limiter *rate.Limiter, logger *zerolog.Logger) proto.Outbound {
	switch req.kind {
	case proto.InboundTypeHistory:
		entries, err := h.service.History(ctx, req.conversation)
		if err != nil {
			logger.Error().Err(err).Str("thread_id", req.conversation).Msg("failed to load history")
			return outboundError(proto.ErrCodeInternal, "internal server error")
		}
		return outboundHistory(req.conversation, entries)
	default:
		if limiter != nil && !limiter.Allow() {
			return outboundError(proto.ErrCodeRateLimited, "too many messages")
		}

		reply, err := h.service.Relay(ctx, req.conversation, req.message)
		if err != nil {
			var relayErr *chat.RelayError
			switch {
			case errors.Is(err, chat.ErrBadRequest):
				return outboundError(proto.ErrCodeBadRequest, "conversation and message are required")
			case errors.As(err, &relayErr):
				return outboundError(proto.ErrCodeRelay, relayErr.Diagnostic())
			default:
				logger.Error().Err(err).Str("thread_id", req.conversation).Msg("relay failed")
				return outboundError(proto.ErrCodeInternal, "internal server error")
			}
		}
		return outboundReply(req.conversation, h.botName, reply)
	}
}
