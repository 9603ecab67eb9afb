package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// ConversationTokenBytes is the amount of randomness in a conversation token.
const ConversationTokenBytes = 16

// NewConversationToken returns a random URL-safe base64 token without padding.
func NewConversationToken() (string, error) {
	buf := make([]byte, ConversationTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
