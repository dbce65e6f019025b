package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"

	"github.com/MegaGrindStone/streamchat/internal/models"
	"go.uber.org/zap"
)

// ChatEndpoint sends user messages to the chat endpoint and exposes the streamed reply as a
// sequence of events. It implements the Endpoint interface consumed by the controller.
type ChatEndpoint struct {
	url          string
	maxEventSize int

	client *http.Client
	logger *zap.Logger
}

type chatRequest struct {
	Message string `json:"message"`
}

// maxErrorBodySize caps how much of a failed response is read to find the error text.
const maxErrorBodySize = 64 * 1024

// NewChatEndpoint creates a ChatEndpoint posting to endpointURL. The URL must be absolute. A nil
// client falls back to http.DefaultClient and a nil logger discards logs. maxEventSize bounds a
// single stream frame; zero selects DefaultMaxEventSize.
func NewChatEndpoint(endpointURL string, client *http.Client, maxEventSize int, logger *zap.Logger) (ChatEndpoint, error) {
	u, err := url.Parse(endpointURL)
	if err != nil {
		return ChatEndpoint{}, fmt.Errorf("invalid endpoint url: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return ChatEndpoint{}, fmt.Errorf("endpoint url %q must be absolute", endpointURL)
	}

	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return ChatEndpoint{
		url:          u.String(),
		maxEventSize: maxEventSize,
		client:       client,
		logger:       logger,
	}, nil
}

// Send posts message to the endpoint. A non-success status is returned as a *models.StatusError
// before any stream is opened; transport failures are returned wrapped.
//
// The returned sequence owns the response body and closes it when iteration ends, so callers must
// range over it exactly once.
func (c ChatEndpoint) Send(ctx context.Context, message string) (iter.Seq2[models.Event, error], error) {
	body, err := json.Marshal(chatRequest{Message: message})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	c.logger.Debug("Sending chat request", zap.String("url", c.url), zap.Int("messageLength", len(message)))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		statusErr := newStatusError(resp)
		c.logger.Warn("Chat endpoint rejected request",
			zap.Int("status", resp.StatusCode),
			zap.String("message", statusErr.Message))
		return nil, statusErr
	}

	return func(yield func(models.Event, error) bool) {
		defer resp.Body.Close()

		for event, err := range DecodeStream(resp.Body, c.maxEventSize) {
			if !yield(event, err) {
				return
			}
		}
	}, nil
}

// newStatusError extracts the message to show for a failed response. A JSON object body with a
// non-empty "error" string supplies the message; any other JSON falls back to "Error: <status>",
// and a body that isn't JSON at all (or is empty) to "Server error: <status>".
func newStatusError(resp *http.Response) *models.StatusError {
	statusErr := &models.StatusError{StatusCode: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil {
		statusErr.Message = fmt.Sprintf("Server error: %d", resp.StatusCode)
		return statusErr
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		statusErr.Message = fmt.Sprintf("Server error: %d", resp.StatusCode)
		return statusErr
	}

	statusErr.Message = fmt.Sprintf("Error: %d", resp.StatusCode)
	if obj, ok := payload.(map[string]any); ok {
		if msg, ok := obj["error"].(string); ok && msg != "" {
			statusErr.Message = msg
		}
	}
	return statusErr
}
