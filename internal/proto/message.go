package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeHistory = "history"
	InboundTypeMsg     = "msg"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventNameHistory = "history"
	EventNameReply   = "reply"
)

// Error codes carried in Error.Code.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeInvalidMessage = "invalid_message"
	ErrCodeRelay          = "relay_error"
	ErrCodeRateLimited    = "rate_limited"
	ErrCodeInternal       = "internal_error"
)

// HistoryData asks for the stored turns of a conversation.
type HistoryData struct {
	Conversation string `json:"conversation"`
}

// MsgData is a chat message from the client.
type MsgData struct {
	Conversation string `json:"conversation"`
	Message      string `json:"message"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Turn is one rendered message; Message is an HTML fragment.
type Turn struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// EventHistory carries the turns of a conversation in chronological order.
type EventHistory struct {
	Conversation string `json:"conversation"`
	Messages     []Turn `json:"messages"`
}

// EventReply carries the assistant's answer to a msg.
type EventReply struct {
	Conversation string `json:"conversation"`
	Turn
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
