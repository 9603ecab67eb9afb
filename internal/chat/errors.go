package chat

import "errors"

// ErrBadRequest is returned when a required relay field is missing.
var ErrBadRequest = errors.New("bad request")

// RelayError is a failed relay whose reason is shown to the user in place of
// the assistant reply.
type RelayError struct {
	Reason string
	Err    error
}

func (e *RelayError) Error() string {
	return e.Reason
}

func (e *RelayError) Unwrap() error {
	return e.Err
}

// Diagnostic renders the reason the way it is displayed in the chat.
func (e *RelayError) Diagnostic() string {
	return "[[" + e.Reason + "]]"
}
