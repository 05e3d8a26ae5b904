// Package tui holds the terminal UIs of presence.
package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// InitializeTUI forces a true color profile when CLICOLOR_FORCE=1 or
// COLORTERM=truecolor, so styling survives non-interactive runs.
func InitializeTUI() {
	if os.Getenv("CLICOLOR_FORCE") == "1" || os.Getenv("COLORTERM") == "truecolor" {
		lipgloss.SetColorProfile(termenv.TrueColor)
	}
}
