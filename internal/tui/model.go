package tui

import (
	"context"
	"errors"

	"github.com/MegaGrindStone/streamchat/internal/handlers"
	"github.com/MegaGrindStone/streamchat/internal/models"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// Controller is the part of handlers.Controller the view drives.
type Controller interface {
	Start()
	Submit(ctx context.Context, message string) error
}

// TranscriptSource provides the entries to draw.
type TranscriptSource interface {
	Entries() []models.Entry
}

// Config holds the presentation settings of the Model.
type Config struct {
	Labels models.Labels
	Theme  Theme
	// Markdown renders finished bot responses through glamour.
	Markdown bool
	Logger   *zap.Logger
}

type submitDoneMsg struct{ err error }

// inputHeight is the number of rows below the viewport: a blank line and the input line.
const inputHeight = 2

// Model is the bubbletea model of the chat screen: the transcript viewport above a single input line.
type Model struct {
	ctx        context.Context
	controller Controller
	transcript TranscriptSource

	labels   models.Labels
	styles   Styles
	markdown bool
	md       MarkdownRenderer
	logger   *zap.Logger

	viewport     viewport.Model
	input        textinput.Model
	spinner      spinner.Model
	inputEnabled bool
	width        int
}

// NewModel creates the chat screen. Submissions run with ctx.
func NewModel(ctx context.Context, controller Controller, transcript TranscriptSource, cfg Config) Model {
	in := textinput.New()
	in.Prompt = "> "
	in.Placeholder = "Type a message and press Enter"
	in.CharLimit = 0
	in.Width = 60
	in.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	styles := NewStyles(cfg.Theme)
	s.Style = styles.Placeholder

	return Model{
		ctx:          ctx,
		controller:   controller,
		transcript:   transcript,
		labels:       cfg.Labels.Merge(models.DefaultLabels()),
		styles:       styles,
		markdown:     cfg.Markdown,
		logger:       logger,
		viewport:     viewport.New(80, 20),
		input:        in,
		spinner:      s,
		inputEnabled: true,
	}
}

// Init starts the controller, which renders the welcome banner and the first prompt.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, func() tea.Msg {
		m.controller.Start()
		return nil
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case tea.KeyEnter:
			if !m.inputEnabled {
				return m, nil
			}
			return m, m.submit(m.input.Value())
		}

		if !m.inputEnabled {
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case transcriptChangedMsg:
		m.refresh()
		return m, nil

	case inputStateMsg:
		m.inputEnabled = msg.enabled
		if !msg.enabled {
			m.input.Blur()
			return m, m.spinner.Tick
		}
		return m, m.input.Focus()

	case inputClearMsg:
		m.input.Reset()
		return m, nil

	case inputFocusMsg:
		if m.inputEnabled {
			return m, m.input.Focus()
		}
		return m, nil

	case submitDoneMsg:
		if msg.err != nil && !errors.Is(msg.err, handlers.ErrInteractionInFlight) {
			m.logger.Error("Submission failed", zap.Error(msg.err))
		}
		return m, nil

	case spinner.TickMsg:
		if m.inputEnabled {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	line := m.input.View()
	if !m.inputEnabled {
		line = m.spinner.View() + m.styles.Placeholder.Render(" waiting for the response...")
	}
	return m.viewport.View() + "\n\n" + line
}

// submit hands the message to the controller on the command goroutine. The controller blocks until
// the interaction is finalized and reports progress back through the Bridge.
func (m Model) submit(message string) tea.Cmd {
	ctx, controller := m.ctx, m.controller
	return func() tea.Msg {
		return submitDoneMsg{err: controller.Submit(ctx, message)}
	}
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.viewport.Width = width
	m.viewport.Height = max(height-inputHeight, 1)
	m.input.Width = max(width-len(m.input.Prompt)-1, 10)

	if !m.markdown {
		return
	}
	md, err := NewMarkdownRenderer(width - len(m.labels.BotPrefix))
	if err != nil {
		m.logger.Warn("Markdown rendering disabled", zap.Error(err))
		m.md = nil
		return
	}
	// A new width invalidates everything rendered so far.
	m.md = NewCachedMarkdown(md)
}

// refresh redraws the transcript and keeps the newest entry in view.
func (m *Model) refresh() {
	m.viewport.SetContent(Render(m.transcript.Entries(), m.labels, m.width, m.styles, m.md))
	m.viewport.GotoBottom()
}
