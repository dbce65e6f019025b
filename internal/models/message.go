package models

import "time"

// Entry is a single line of the transcript. Entries are only ever appended, with two exceptions:
// the bot entry of the running interaction is mutated while tokens stream in, and the most recent
// prompt marker is removed when the user submits a message.
type Entry struct {
	ID        string
	Kind      EntryKind
	Text      string
	Timestamp time.Time

	// State is only meaningful for EntryKindBot.
	State BotState
	// Suffix is rendered after Text with the error style. It is set when the backend reports an
	// error after some tokens were already shown.
	Suffix string
	// Sealed marks a bot entry whose interaction has been finalized.
	Sealed bool
}

// EntryKind represents the kind of a transcript entry.
type EntryKind string

// BotState represents the visual state of a bot entry. The states are mutually exclusive.
type BotState string

const (
	// EntryKindWelcome is the banner shown when the chat starts.
	EntryKindWelcome EntryKind = "welcome"
	// EntryKindPrompt is the trailing "awaiting input" marker. At most one exists at any time.
	EntryKindPrompt EntryKind = "prompt"
	// EntryKindSeparator is the blank line that precedes every prompt after the first one.
	EntryKindSeparator EntryKind = "separator"
	// EntryKindUser is a message submitted by the user.
	EntryKindUser EntryKind = "user"
	// EntryKindBot is a bot response, a placeholder for one, or an error.
	EntryKindBot EntryKind = "bot"

	// BotStatePlaceholder is shown between submission and the first token.
	BotStatePlaceholder BotState = "placeholder"
	// BotStateNormal is a bot response that received at least one token.
	BotStateNormal BotState = "normal"
	// BotStateError is a bot entry that reports a failure.
	BotStateError BotState = "error"
)

// Labels holds the user-visible fixed strings of the transcript.
type Labels struct {
	Welcome     string `yaml:"welcome"`
	UserPrefix  string `yaml:"userPrefix"`
	PromptArrow string `yaml:"promptArrow"`
	BotPrefix   string `yaml:"botPrefix"`
	Placeholder string `yaml:"placeholder"`
}

// DefaultLabels returns the labels used when the configuration doesn't override them.
func DefaultLabels() Labels {
	return Labels{
		Welcome:     "(--- Welcome to the chatbot! Type your message. ---)",
		UserPrefix:  "You: ",
		PromptArrow: "▸ ",
		BotPrefix:   "Bot: ",
		Placeholder: "[Processing...]",
	}
}

// Merge returns l with every empty field replaced by the corresponding field of fallback.
func (l Labels) Merge(fallback Labels) Labels {
	pick := func(v, f string) string {
		if v == "" {
			return f
		}
		return v
	}
	return Labels{
		Welcome:     pick(l.Welcome, fallback.Welcome),
		UserPrefix:  pick(l.UserPrefix, fallback.UserPrefix),
		PromptArrow: pick(l.PromptArrow, fallback.PromptArrow),
		BotPrefix:   pick(l.BotPrefix, fallback.BotPrefix),
		Placeholder: pick(l.Placeholder, fallback.Placeholder),
	}
}
