package http

import (
	"encoding/json"
	"strings"

	"github.com/cfn-softbio/scibot-web/internal/chat"
	"github.com/cfn-softbio/scibot-web/internal/proto"
)

// wsRequest is a validated inbound frame.
type wsRequest struct {
	kind         string
	conversation string
	message      string
}

func inboundToRequest(inbound proto.Inbound) (*wsRequest, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeHistory:
		var hist proto.HistoryData
		if err := json.Unmarshal(inbound.Data, &hist); err != nil {
			return nil, nil, err
		}
		if strings.TrimSpace(hist.Conversation) == "" {
			return nil, &proto.Error{Code: proto.ErrCodeBadRequest, Msg: "conversation is required"}, nil
		}
		return &wsRequest{kind: proto.InboundTypeHistory, conversation: hist.Conversation}, nil, nil
	case proto.InboundTypeMsg:
		var msg proto.MsgData
		if err := json.Unmarshal(inbound.Data, &msg); err != nil {
			return nil, nil, err
		}
		if strings.TrimSpace(msg.Conversation) == "" || strings.TrimSpace(msg.Message) == "" {
			return nil, &proto.Error{Code: proto.ErrCodeBadRequest, Msg: "conversation and message are required"}, nil
		}
		return &wsRequest{kind: proto.InboundTypeMsg, conversation: msg.Conversation, message: msg.Message}, nil, nil
	default:
		return nil, &proto.Error{Code: proto.ErrCodeInvalidMessage, Msg: "unknown message type"}, nil
	}
}

func outboundHistory(conversation string, entries []chat.Entry) proto.Outbound {
	messages := make([]proto.Turn, 0, len(entries))
	for _, entry := range entries {
		messages = append(messages, proto.Turn{Sender: entry.Sender, Message: entry.Message})
	}
	return proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: proto.EventNameHistory,
		Data: proto.EventHistory{
			Conversation: conversation,
			Messages:     messages,
		},
	}
}

func outboundReply(conversation, sender, reply string) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: proto.EventNameReply,
		Data: proto.EventReply{
			Conversation: conversation,
			Turn:         proto.Turn{Sender: sender, Message: reply},
		},
	}
}

func outboundError(code, msg string) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: code, Msg: msg},
	}
}
