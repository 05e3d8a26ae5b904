// Package theme holds the colors and styles shared by the CLI help, the log
// formatter and the watch TUI.
package theme

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/grovetools/presence/pkg/models"
)

// ThemeEnv selects a palette: kanagawa (default), gruvbox or terminal.
const ThemeEnv = "PRESENCE_THEME"

const defaultThemeName = "kanagawa"

// Colors encapsulates the palette used by a theme.
type Colors struct {
	Green     lipgloss.TerminalColor
	Yellow    lipgloss.TerminalColor
	Red       lipgloss.TerminalColor
	Orange    lipgloss.TerminalColor
	Cyan      lipgloss.TerminalColor
	Blue      lipgloss.TerminalColor
	Violet    lipgloss.TerminalColor
	Pink      lipgloss.TerminalColor
	MutedText lipgloss.TerminalColor
	Border    lipgloss.TerminalColor
}

func newKanagawaColors() Colors {
	return Colors{
		Green:     lipgloss.AdaptiveColor{Light: "#4E7C5A", Dark: "#98BB6C"},
		Yellow:    lipgloss.AdaptiveColor{Light: "#A68A64", Dark: "#FF9E3B"},
		Red:       lipgloss.AdaptiveColor{Light: "#C34043", Dark: "#FF5D62"},
		Orange:    lipgloss.AdaptiveColor{Light: "#CC6B4E", Dark: "#FFA066"},
		Cyan:      lipgloss.AdaptiveColor{Light: "#5B8BBE", Dark: "#7E9CD8"},
		Blue:      lipgloss.AdaptiveColor{Light: "#4F7CAC", Dark: "#7FB4CA"},
		Violet:    lipgloss.AdaptiveColor{Light: "#674D7A", Dark: "#957FB8"},
		Pink:      lipgloss.AdaptiveColor{Light: "#B35C74", Dark: "#D27E99"},
		MutedText: lipgloss.AdaptiveColor{Light: "#6C7086", Dark: "#727169"},
		Border:    lipgloss.AdaptiveColor{Light: "#B5BDC5", Dark: "#363646"},
	}
}

func newGruvboxColors() Colors {
	return Colors{
		Green:     lipgloss.AdaptiveColor{Light: "#98971A", Dark: "#B8BB26"},
		Yellow:    lipgloss.AdaptiveColor{Light: "#D79921", Dark: "#FABD2F"},
		Red:       lipgloss.AdaptiveColor{Light: "#CC241D", Dark: "#FB4934"},
		Orange:    lipgloss.AdaptiveColor{Light: "#D65D0E", Dark: "#FE8019"},
		Cyan:      lipgloss.AdaptiveColor{Light: "#458588", Dark: "#83A598"},
		Blue:      lipgloss.AdaptiveColor{Light: "#076678", Dark: "#458588"},
		Violet:    lipgloss.AdaptiveColor{Light: "#8F3F71", Dark: "#B16286"},
		Pink:      lipgloss.AdaptiveColor{Light: "#B57679", Dark: "#D3869B"},
		MutedText: lipgloss.AdaptiveColor{Light: "#928374", Dark: "#BDAE93"},
		Border:    lipgloss.AdaptiveColor{Light: "#D5C4A1", Dark: "#504945"},
	}
}

// newTerminalColors uses the terminal's own ANSI palette.
func newTerminalColors() Colors {
	return Colors{
		Green:     lipgloss.Color("2"),
		Yellow:    lipgloss.Color("3"),
		Red:       lipgloss.Color("1"),
		Orange:    lipgloss.Color("208"),
		Cyan:      lipgloss.Color("6"),
		Blue:      lipgloss.Color("4"),
		Violet:    lipgloss.Color("5"),
		Pink:      lipgloss.Color("13"),
		MutedText: lipgloss.Color("8"),
		Border:    lipgloss.Color("8"),
	}
}

var themeRegistry = map[string]func() Colors{
	"kanagawa": newKanagawaColors,
	"gruvbox":  newGruvboxColors,
	"terminal": newTerminalColors,
}

// Theme is a set of styles built from one palette.
type Theme struct {
	Name   string
	Colors Colors

	Header  lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Bold    lipgloss.Style
	Italic  lipgloss.Style
	Muted   lipgloss.Style
	Accent  lipgloss.Style
	Box     lipgloss.Style

	// Presence states
	Peeking lipgloss.Style
	Typing  lipgloss.Style
	Idle    lipgloss.Style
	Present lipgloss.Style
	Joined  lipgloss.Style
	Left    lipgloss.Style
}

// DefaultTheme is chosen from PRESENCE_THEME when the process starts.
var DefaultTheme = initDefaultTheme()

func initDefaultTheme() *Theme {
	if termenv.EnvNoColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	return NewThemeWithName(os.Getenv(ThemeEnv))
}

// NewThemeWithName builds a theme by name. Unknown names fall back to the default.
func NewThemeWithName(name string) *Theme {
	name = strings.ToLower(strings.TrimSpace(name))
	newColors, ok := themeRegistry[name]
	if !ok {
		name = defaultThemeName
		newColors = themeRegistry[name]
	}
	colors := newColors()

	return &Theme{
		Name:   name,
		Colors: colors,

		Header:  lipgloss.NewStyle().Bold(true).Foreground(colors.Orange),
		Success: lipgloss.NewStyle().Foreground(colors.Green).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(colors.Red).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(colors.Yellow).Bold(true),
		Info:    lipgloss.NewStyle().Foreground(colors.Cyan).Bold(true),
		Bold:    lipgloss.NewStyle().Bold(true),
		Italic:  lipgloss.NewStyle().Italic(true),
		Muted:   lipgloss.NewStyle().Foreground(colors.MutedText),
		Accent:  lipgloss.NewStyle().Foreground(colors.Violet).Bold(true),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colors.Border).
			Padding(0, 1),

		Peeking: lipgloss.NewStyle().Foreground(colors.Violet).Bold(true),
		Typing:  lipgloss.NewStyle().Foreground(colors.Blue),
		Idle:    lipgloss.NewStyle().Foreground(colors.Yellow),
		Present: lipgloss.NewStyle().Foreground(colors.Green),
		Joined:  lipgloss.NewStyle().Foreground(colors.Green).Bold(true),
		Left:    lipgloss.NewStyle().Foreground(colors.Red),
	}
}

// State returns the style for a presence state.
func (t *Theme) State(s models.PresenceState) lipgloss.Style {
	switch s {
	case models.StatePeeking:
		return t.Peeking
	case models.StateTyping:
		return t.Typing
	case models.StateIdle:
		return t.Idle
	case models.StatePresent:
		return t.Present
	case models.StateJoined:
		return t.Joined
	case models.StateLeft:
		return t.Left
	}
	return lipgloss.NewStyle()
}
