package handlers

import (
	"slices"
	"sync"
	"time"

	"github.com/MegaGrindStone/streamchat/internal/models"
	"github.com/google/uuid"
)

// Transcript is the in-memory Renderer. It keeps the ordered entries and calls onChange after every
// visible change, outside of its lock, so the view can re-render and scroll to the bottom.
//
// The controller mutates a Transcript from the goroutine running the interaction while the view
// reads snapshots from its own loop; all methods are safe for concurrent use.
type Transcript struct {
	mu      sync.Mutex
	entries []models.Entry

	now      func() time.Time
	onChange func()
}

// NewTranscript creates an empty transcript. onChange may be nil.
func NewTranscript(onChange func()) *Transcript {
	return &Transcript{
		now:      time.Now,
		onChange: onChange,
	}
}

// SetOnChange replaces the change callback. It exists for views that are constructed after the
// transcript they display.
func (t *Transcript) SetOnChange(onChange func()) {
	t.mu.Lock()
	t.onChange = onChange
	t.mu.Unlock()
}

// Entries returns a copy of the current entries.
func (t *Transcript) Entries() []models.Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.entries)
}

// PromptCount returns the number of prompt markers in the transcript.
func (t *Transcript) PromptCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	count := 0
	for _, e := range t.entries {
		if e.Kind == models.EntryKindPrompt {
			count++
		}
	}
	return count
}

// AddWelcome appends the welcome banner.
func (t *Transcript) AddWelcome(text string) {
	t.mutate(func() {
		t.appendLocked(models.Entry{Kind: models.EntryKindWelcome, Text: text})
	})
}

// AddPrompt appends a prompt marker, preceded by a blank separator if blankBefore is set.
func (t *Transcript) AddPrompt(blankBefore bool) {
	t.mutate(func() {
		if blankBefore {
			t.appendLocked(models.Entry{Kind: models.EntryKindSeparator})
		}
		t.appendLocked(models.Entry{Kind: models.EntryKindPrompt})
	})
}

// AddUserMessage removes the most recent prompt marker, if any, and appends the user's message in
// its place.
func (t *Transcript) AddUserMessage(text string) {
	t.mutate(func() {
		for i := len(t.entries) - 1; i >= 0; i-- {
			if t.entries[i].Kind == models.EntryKindPrompt {
				t.entries = slices.Delete(t.entries, i, i+1)
				break
			}
		}
		t.appendLocked(models.Entry{Kind: models.EntryKindUser, Text: text})
	})
}

// AddBotMessage appends a bot entry and returns its ID.
func (t *Transcript) AddBotMessage(text string, state models.BotState) string {
	var id string
	t.mutate(func() {
		id = t.appendLocked(models.Entry{Kind: models.EntryKindBot, Text: text, State: state})
	})
	return id
}

// SetBotText replaces the text and state of the bot entry id.
func (t *Transcript) SetBotText(id, text string, state models.BotState) {
	t.updateBot(id, func(e *models.Entry) {
		e.Text = text
		e.State = state
	})
}

// AppendBotText appends token to the text of the bot entry id.
func (t *Transcript) AppendBotText(id, token string) {
	t.updateBot(id, func(e *models.Entry) {
		e.Text += token
	})
}

// SetBotSuffix sets the error-styled suffix of the bot entry id.
func (t *Transcript) SetBotSuffix(id, suffix string) {
	t.updateBot(id, func(e *models.Entry) {
		e.Suffix = suffix
	})
}

// SealBot marks the bot entry id as final.
func (t *Transcript) SealBot(id string) {
	t.updateBot(id, func(e *models.Entry) {
		e.Sealed = true
	})
}

func (t *Transcript) updateBot(id string, fn func(*models.Entry)) {
	t.mutate(func() {
		// The entry being updated is almost always the last bot entry, so search backwards.
		for i := len(t.entries) - 1; i >= 0; i-- {
			if t.entries[i].ID == id && t.entries[i].Kind == models.EntryKindBot {
				fn(&t.entries[i])
				return
			}
		}
	})
}

func (t *Transcript) appendLocked(e models.Entry) string {
	e.ID = uuid.New().String()
	e.Timestamp = t.now()
	t.entries = append(t.entries, e)
	return e.ID
}

func (t *Transcript) mutate(fn func()) {
	t.mu.Lock()
	fn()
	onChange := t.onChange
	t.mu.Unlock()

	if onChange != nil {
		onChange()
	}
}
