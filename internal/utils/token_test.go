package utils

import (
	"encoding/base64"
	"testing"
)

func TestNewConversationToken(t *testing.T) {
	seen := make(map[string]struct{})
	for range 200 {
		token, err := NewConversationToken()
		if err != nil {
			t.Fatalf("NewConversationToken failed: %v", err)
		}
		if len(token) != 22 {
			t.Fatalf("expected 22 characters, got %d (%q)", len(token), token)
		}
		raw, err := base64.RawURLEncoding.DecodeString(token)
		if err != nil {
			t.Fatalf("token %q is not raw url base64: %v", token, err)
		}
		if len(raw) != ConversationTokenBytes {
			t.Fatalf("expected %d bytes, got %d", ConversationTokenBytes, len(raw))
		}
		if _, dup := seen[token]; dup {
			t.Fatalf("duplicate token %q", token)
		}
		seen[token] = struct{}{}
	}
}
