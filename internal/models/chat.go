package models

import (
	"errors"
	"fmt"
	"time"
)

// Interaction is the archived record of one finalized submit: the user's message and whatever the
// bot entry displayed when the interaction ended.
type Interaction struct {
	ID         string
	Message    string
	Response   string
	Failed     bool
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Event is a single payload decoded from the chat stream. A payload carries at least one of the
// fields; the server may combine them (e.g. an error frame also sets Done).
type Event struct {
	Token string `json:"token,omitempty"`
	Done  bool   `json:"done,omitempty"`
	Error string `json:"error,omitempty"`
}

// ErrMalformedPayload is returned by the stream decoder when a data frame isn't valid JSON.
var ErrMalformedPayload = errors.New("failed to process server response")

// StatusError is returned when the chat endpoint answers with a non-success status before any
// stream is opened. Message is the text to show to the user.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat endpoint returned status %d: %s", e.StatusCode, e.Message)
}
