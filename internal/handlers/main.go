package handlers

import (
	"context"
	"errors"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MegaGrindStone/streamchat/internal/models"
	"go.uber.org/zap"
)

// Endpoint sends a user message to the chat backend. On success it returns the decoded stream of
// events; the sequence owns the underlying response and must be ranged over exactly once. A
// *models.StatusError reports a non-success status received before the stream started.
type Endpoint interface {
	Send(ctx context.Context, message string) (iter.Seq2[models.Event, error], error)
}

// Renderer appends to and mutates the visible transcript. It holds no business logic.
type Renderer interface {
	AddWelcome(text string)
	AddPrompt(blankBefore bool)
	AddUserMessage(text string)
	AddBotMessage(text string, state models.BotState) string
	SetBotText(id, text string, state models.BotState)
	AppendBotText(id, token string)
	SetBotSuffix(id, suffix string)
	SealBot(id string)
}

// Input is the message entry control together with its submit trigger.
type Input interface {
	SetEnabled(enabled bool)
	Clear()
	Focus()
}

// Archive stores finalized interactions.
type Archive interface {
	AddInteraction(ctx context.Context, interaction models.Interaction) (string, error)
}

// Config carries the optional collaborators and behaviour switches of a Controller.
type Config struct {
	Labels models.Labels
	// Archive, if set, receives one record per finalized interaction.
	Archive Archive
	Logger  *zap.Logger
	// RequireTerminalEvent makes a stream that ends without a done or error event a failure.
	RequireTerminalEvent bool
	// Now defaults to time.Now.
	Now func() time.Time
}

// Controller sequences one interaction at a time: it records the user's message, drives the
// endpoint's stream into the transcript and finalizes the interaction once it ends.
type Controller struct {
	endpoint Endpoint
	renderer Renderer
	input    Input
	archive  Archive

	labels               models.Labels
	requireTerminalEvent bool
	now                  func() time.Time
	logger               *zap.Logger

	inFlight atomic.Bool
	// running is held by the admitted Submit until it has finalized.
	running sync.Mutex
}

// ErrInteractionInFlight is returned by Submit when another interaction hasn't been finalized yet.
var ErrInteractionInFlight = errors.New("an interaction is already in flight")

// NewController creates a Controller. Labels left empty in cfg fall back to models.DefaultLabels.
func NewController(endpoint Endpoint, renderer Renderer, input Input, cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Controller{
		endpoint:             endpoint,
		renderer:             renderer,
		input:                input,
		archive:              cfg.Archive,
		labels:               cfg.Labels.Merge(models.DefaultLabels()),
		requireTerminalEvent: cfg.RequireTerminalEvent,
		now:                  now,
		logger:               logger,
	}
}

// Busy reports whether an interaction is in flight.
func (c *Controller) Busy() bool {
	return c.inFlight.Load()
}

// Wait blocks until the interaction in flight, if any, has been finalized and archived.
func (c *Controller) Wait() {
	c.running.Lock()
	c.running.Unlock()
}
