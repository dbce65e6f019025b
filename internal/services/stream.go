package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/MegaGrindStone/streamchat/internal/models"
	"github.com/tmaxmax/go-sse"
)

// DefaultMaxEventSize is the largest frame the decoder accepts when no limit is configured.
const DefaultMaxEventSize = 64 * 1024

// DecodeStream parses a server-sent-event feed into chat events. The parser keeps its state across
// reads, so frames and multi-byte characters that are split between chunks decode the same way as
// if they had arrived in one piece.
//
// Only unnamed data frames are considered; frames with an "event" field are skipped, and so are
// frames whose payload is blank. A payload that isn't a JSON object ends the sequence with an error
// wrapping models.ErrMalformedPayload. Reaching the end of the stream is not an error: a last frame
// missing its blank line is still decoded, and the sequence simply ends whether or not a terminal
// event was seen.
func DecodeStream(r io.Reader, maxEventSize int) iter.Seq2[models.Event, error] {
	if maxEventSize <= 0 {
		maxEventSize = DefaultMaxEventSize
	}
	cfg := &sse.ReadConfig{MaxEventSize: maxEventSize}

	return func(yield func(models.Event, error) bool) {
		// A final frame without its blank line is dispatched instead of failing at EOF.
		src := io.MultiReader(r, strings.NewReader("\n\n"))

		for e, err := range sse.Read(src, cfg) {
			if err != nil {
				yield(models.Event{}, fmt.Errorf("error reading stream: %w", err))
				return
			}
			if e.Type != "" {
				continue
			}

			payload := strings.TrimSpace(e.Data)
			if payload == "" {
				continue
			}

			event, err := parseEvent(payload)
			if err != nil {
				yield(models.Event{}, fmt.Errorf("%w: %w", models.ErrMalformedPayload, err))
				return
			}

			if !yield(event, nil) {
				return
			}
		}
	}
}

type wireEvent struct {
	Token json.RawMessage `json:"token"`
	Done  bool            `json:"done"`
	Error string          `json:"error"`
}

// parseEvent decodes one payload. The payload must be a JSON object; a numeric token is taken
// as its literal text.
func parseEvent(payload string) (models.Event, error) {
	if !strings.HasPrefix(payload, "{") {
		return models.Event{}, fmt.Errorf("payload is not an object: %.20q", payload)
	}

	var w wireEvent
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		return models.Event{}, err
	}
	event := models.Event{Done: w.Done, Error: w.Error}

	token := bytes.TrimSpace(w.Token)
	switch {
	case len(token) == 0, bytes.Equal(token, []byte("null")):
	case token[0] == '"':
		if err := json.Unmarshal(token, &event.Token); err != nil {
			return models.Event{}, err
		}
	default:
		var n json.Number
		if err := json.Unmarshal(token, &n); err != nil {
			return models.Event{}, fmt.Errorf("invalid token: %w", err)
		}
		event.Token = n.String()
	}
	return event, nil
}
