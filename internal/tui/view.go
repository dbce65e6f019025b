package tui

import (
	"strings"

	"github.com/MegaGrindStone/streamchat/internal/models"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// MarkdownRenderer turns markdown into terminal output. *glamour.TermRenderer implements it.
type MarkdownRenderer interface {
	Render(in string) (string, error)
}

// Render draws entries as the transcript text shown in the viewport. A width of zero disables
// wrapping and alignment. If md is non-nil, finished bot responses are rendered as markdown.
func Render(entries []models.Entry, labels models.Labels, width int, styles Styles, md MarkdownRenderer) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		var line string
		switch e.Kind {
		case models.EntryKindWelcome:
			line = styles.Welcome.Render(e.Text)
			if width > 0 {
				line = lipgloss.PlaceHorizontal(width, lipgloss.Right, line)
			}
			lines = append(lines, line)
			continue
		case models.EntryKindSeparator:
			lines = append(lines, "")
			continue
		case models.EntryKindPrompt:
			line = styles.UserPrefix.Render(labels.UserPrefix) + styles.Text.Render(labels.PromptArrow)
		case models.EntryKindUser:
			line = styles.UserPrefix.Render(labels.UserPrefix) + styles.Text.Render(e.Text)
		case models.EntryKindBot:
			line = styles.BotPrefix.Render(labels.BotPrefix) + renderBot(e, styles, md)
		default:
			continue
		}

		if width > 0 {
			line = lipgloss.NewStyle().Width(width).Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func renderBot(e models.Entry, styles Styles, md MarkdownRenderer) string {
	var body string
	switch e.State {
	case models.BotStatePlaceholder:
		body = styles.Placeholder.Render(e.Text)
	case models.BotStateError:
		body = styles.Error.Render(e.Text)
	default:
		body = styles.Text.Render(e.Text)
		if e.Sealed && e.Suffix == "" && md != nil {
			if out, err := md.Render(e.Text); err == nil {
				body = "\n" + strings.Trim(out, "\n")
			}
		}
	}

	if e.Suffix != "" {
		body += styles.Error.Render(e.Suffix)
	}
	return body
}

// CachedMarkdown memoizes a MarkdownRenderer by input so each finished response is rendered once.
// Failed renders are not cached. It is not safe for concurrent use.
type CachedMarkdown struct {
	md       MarkdownRenderer
	rendered map[string]string
}

// NewCachedMarkdown wraps md with a cache.
func NewCachedMarkdown(md MarkdownRenderer) *CachedMarkdown {
	return &CachedMarkdown{md: md, rendered: make(map[string]string)}
}

// Render returns the cached output for in, rendering it on first use.
func (c *CachedMarkdown) Render(in string) (string, error) {
	if out, ok := c.rendered[in]; ok {
		return out, nil
	}
	out, err := c.md.Render(in)
	if err != nil {
		return "", err
	}
	c.rendered[in] = out
	return out, nil
}

// NewMarkdownRenderer returns a glamour renderer wrapping at width columns.
func NewMarkdownRenderer(width int) (*glamour.TermRenderer, error) {
	if width <= 0 {
		width = 80
	}
	return glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
}
