package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/cfn-softbio/scibot-web/internal/proto"
)

// frame decodes outbound envelopes with the payload left raw.
type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	conversation := flag.String("conversation", "smoke-test", "conversation token")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 150*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	roundTrip := func(typ string, data any) (frame, error) {
		payload, err := json.Marshal(data)
		if err != nil {
			return frame{}, fmt.Errorf("marshal %s: %w", typ, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
			return frame{}, fmt.Errorf("send %s: %w", typ, err)
		}
		var out frame
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			return frame{}, fmt.Errorf("read: %w", err)
		}
		if out.Error != nil {
			return out, fmt.Errorf("%s: %s", out.Error.Code, out.Error.Msg)
		}
		return out, nil
	}

	out, err := roundTrip(proto.InboundTypeHistory, proto.HistoryData{Conversation: *conversation})
	if err != nil {
		return err
	}
	var history proto.EventHistory
	if err := json.Unmarshal(out.Data, &history); err != nil {
		return fmt.Errorf("unmarshal history: %w", err)
	}
	fmt.Printf("History: conversation=%s turns=%d\n", history.Conversation, len(history.Messages))

	out, err = roundTrip(proto.InboundTypeMsg, proto.MsgData{Conversation: *conversation, Message: *text})
	if err != nil {
		return err
	}
	var reply proto.EventReply
	if err := json.Unmarshal(out.Data, &reply); err != nil {
		return fmt.Errorf("unmarshal reply: %w", err)
	}
	fmt.Printf("Reply from %s: %s\n", reply.Sender, reply.Message)
	return nil
}
