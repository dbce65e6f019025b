package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

type (
	transcriptChangedMsg struct{}
	inputStateMsg        struct{ enabled bool }
	inputClearMsg        struct{}
	inputFocusMsg        struct{}
)

// Sender delivers messages to a running program. *tea.Program implements it.
type Sender interface {
	Send(msg tea.Msg)
}

// Bridge connects the controller, which runs outside the bubbletea loop, to the Model. It implements
// handlers.Input, and TranscriptChanged is meant to be the transcript's change callback. Messages
// sent before a program is attached are dropped.
type Bridge struct {
	mu     sync.Mutex
	sender Sender
}

// NewBridge returns a Bridge with no program attached.
func NewBridge() *Bridge {
	return &Bridge{}
}

// Attach sets the program that receives the bridged messages.
func (b *Bridge) Attach(s Sender) {
	b.mu.Lock()
	b.sender = s
	b.mu.Unlock()
}

// SetEnabled enables or disables the input line.
func (b *Bridge) SetEnabled(enabled bool) {
	b.send(inputStateMsg{enabled: enabled})
}

// Clear empties the input line.
func (b *Bridge) Clear() {
	b.send(inputClearMsg{})
}

// Focus moves the cursor to the input line.
func (b *Bridge) Focus() {
	b.send(inputFocusMsg{})
}

// TranscriptChanged asks the view to re-render the transcript and scroll to the bottom.
func (b *Bridge) TranscriptChanged() {
	b.send(transcriptChangedMsg{})
}

func (b *Bridge) send(msg tea.Msg) {
	b.mu.Lock()
	s := b.sender
	b.mu.Unlock()

	if s != nil {
		s.Send(msg)
	}
}
