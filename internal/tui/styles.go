package tui

import "github.com/charmbracelet/lipgloss"

// Theme holds the colours of the transcript. Any colour lipgloss understands is accepted (hex or
// ANSI index). Empty fields keep the default.
type Theme struct {
	TextColor        string `yaml:"textColor"`
	UserPrefixColor  string `yaml:"userPrefixColor"`
	BotPrefixColor   string `yaml:"botPrefixColor"`
	PlaceholderColor string `yaml:"placeholderColor"`
	ErrorColor       string `yaml:"errorColor"`
}

// DefaultTheme returns a One Dark inspired palette.
func DefaultTheme() Theme {
	return Theme{
		TextColor:        "#abb2bf",
		UserPrefixColor:  "#61afef",
		BotPrefixColor:   "#98c379",
		PlaceholderColor: "#5c6370",
		ErrorColor:       "#e06c75",
	}
}

// Styles are the lipgloss styles used to render transcript entries.
type Styles struct {
	Welcome     lipgloss.Style
	Text        lipgloss.Style
	UserPrefix  lipgloss.Style
	BotPrefix   lipgloss.Style
	Placeholder lipgloss.Style
	Error       lipgloss.Style
}

// NewStyles builds Styles from t, filling empty colours from DefaultTheme.
func NewStyles(t Theme) Styles {
	d := DefaultTheme()
	pick := func(v, fallback string) lipgloss.Color {
		if v == "" {
			return lipgloss.Color(fallback)
		}
		return lipgloss.Color(v)
	}

	text := pick(t.TextColor, d.TextColor)
	return Styles{
		Welcome:     lipgloss.NewStyle().Foreground(text).Bold(true),
		Text:        lipgloss.NewStyle().Foreground(text),
		UserPrefix:  lipgloss.NewStyle().Foreground(pick(t.UserPrefixColor, d.UserPrefixColor)).Bold(true),
		BotPrefix:   lipgloss.NewStyle().Foreground(pick(t.BotPrefixColor, d.BotPrefixColor)).Bold(true),
		Placeholder: lipgloss.NewStyle().Foreground(pick(t.PlaceholderColor, d.PlaceholderColor)).Italic(true),
		Error:       lipgloss.NewStyle().Foreground(pick(t.ErrorColor, d.ErrorColor)),
	}
}
