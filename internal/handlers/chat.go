package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MegaGrindStone/streamchat/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	networkErrorFormat = "Network or connection error: %s"
	streamErrorFormat  = " [Stream Error: %s]"
	malformedSuffix    = " [Error: failed to process server response]"
	prematureEndText   = "stream ended before the response completed"
	prematureEndSuffix = " [Error: " + prematureEndText + "]"
)

// session is the transient state of one interaction. It lives from Submit until finalize.
type session struct {
	id        string
	message   string
	startedAt time.Time

	// botID is the transcript entry of the bot response; empty until the placeholder is shown.
	botID      string
	firstToken bool
	buffer     strings.Builder

	// failureText is what the bot entry shows after a failure, and errText the failure detail.
	failureText string
	errText     string

	finalized bool
}

// Submit runs one interaction for message. Whitespace around the message is ignored and an empty
// message is a no-op. While an interaction is running further submissions are rejected with
// ErrInteractionInFlight.
//
// Submit blocks until the interaction has been finalized. Every failure is rendered in the
// transcript, so the returned error only reports a rejected submission.
func (c *Controller) Submit(ctx context.Context, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil
	}

	if !c.inFlight.CompareAndSwap(false, true) {
		c.logger.Warn("Ignoring submission while an interaction is in flight")
		return ErrInteractionInFlight
	}
	c.running.Lock()
	defer c.running.Unlock()

	s := &session{
		id:        uuid.New().String(),
		message:   message,
		startedAt: c.now(),
	}
	logger := c.logger.With(zap.String("interactionID", s.id))

	c.renderer.AddUserMessage(message)
	c.input.Clear()
	c.input.SetEnabled(false)
	s.botID = c.renderer.AddBotMessage(c.labels.Placeholder, models.BotStatePlaceholder)

	failed := c.interact(ctx, s, logger)
	c.finalize(s, failed, logger)

	return nil
}

// interact sends the message and feeds the response into the bot entry. It reports whether the
// interaction failed.
func (c *Controller) interact(ctx context.Context, s *session, logger *zap.Logger) bool {
	stream, err := c.endpoint.Send(ctx, s.message)
	if err != nil {
		var statusErr *models.StatusError
		if errors.As(err, &statusErr) {
			logger.Warn("Chat endpoint returned an error status",
				zap.Int("status", statusErr.StatusCode),
				zap.Error(err))
			c.fail(s, statusErr.Message)
			return true
		}

		logger.Error("Failed to send chat request", zap.Error(err))
		c.fail(s, fmt.Sprintf(networkErrorFormat, err.Error()))
		return true
	}

	for event, err := range stream {
		if err != nil {
			if errors.Is(err, models.ErrMalformedPayload) {
				logger.Error("Failed to parse stream payload", zap.Error(err))
				s.errText = models.ErrMalformedPayload.Error()
				c.fail(s, s.buffer.String()+malformedSuffix)
				return true
			}

			logger.Error("Failed to read stream", zap.Error(err))
			c.fail(s, fmt.Sprintf(networkErrorFormat, err.Error()))
			return true
		}

		if event.Error != "" {
			logger.Warn("Backend reported a stream error", zap.String("streamError", event.Error))
			c.failAfterTokens(s, event.Error, fmt.Sprintf(streamErrorFormat, event.Error))
			return true
		}

		if event.Token != "" {
			if !s.firstToken {
				c.renderer.SetBotText(s.botID, "", models.BotStateNormal)
				s.firstToken = true
			}
			c.renderer.AppendBotText(s.botID, event.Token)
			s.buffer.WriteString(event.Token)
		}

		if event.Done {
			return false
		}
	}

	if c.requireTerminalEvent {
		logger.Warn("Stream ended without a terminal event")
		c.failAfterTokens(s, prematureEndText, prematureEndSuffix)
		return true
	}

	logger.Debug("Stream ended without a terminal event, treating it as complete")
	return false
}

// failAfterTokens reports a failure that keeps any tokens already shown: before the first token the
// bot entry is replaced by detail, afterwards suffix is appended in the error style.
func (c *Controller) failAfterTokens(s *session, detail, suffix string) {
	if !s.firstToken {
		c.fail(s, detail)
		return
	}

	s.errText = detail
	s.failureText = s.buffer.String() + suffix
	c.renderer.SetBotSuffix(s.botID, suffix)
}

// fail shows text as the bot entry in the error state. If no bot entry exists yet, a new one is
// created instead of overwriting one.
func (c *Controller) fail(s *session, text string) {
	if s.errText == "" {
		s.errText = text
	}
	s.failureText = text

	if s.botID == "" {
		s.botID = c.renderer.AddBotMessage(text, models.BotStateError)
		return
	}
	c.renderer.SetBotText(s.botID, text, models.BotStateError)
}

// finalize restores the input, appends a fresh prompt and releases the in-flight guard. It runs once
// per session whatever the outcome.
func (c *Controller) finalize(s *session, failed bool, logger *zap.Logger) {
	if s.finalized {
		logger.Error("Interaction finalized twice")
		return
	}
	s.finalized = true

	if s.botID != "" {
		c.renderer.SealBot(s.botID)
	}
	c.input.SetEnabled(true)
	c.renderer.AddPrompt(true)
	c.input.Focus()

	c.archiveInteraction(s, failed, logger)

	logger.Info("Interaction finalized",
		zap.Bool("failed", failed),
		zap.Duration("elapsed", c.now().Sub(s.startedAt)))

	c.inFlight.Store(false)
}

func (c *Controller) archiveInteraction(s *session, failed bool, logger *zap.Logger) {
	if c.archive == nil {
		return
	}

	interaction := models.Interaction{
		ID:         s.id,
		Message:    s.message,
		Response:   s.buffer.String(),
		Failed:     failed,
		StartedAt:  s.startedAt,
		FinishedAt: c.now(),
	}
	if failed {
		interaction.Response = s.failureText
		interaction.Error = s.errText
	}

	// The request context may already be cancelled; archiving is independent of it.
	if _, err := c.archive.AddInteraction(context.Background(), interaction); err != nil {
		logger.Error("Failed to archive interaction", zap.Error(err))
	}
}
