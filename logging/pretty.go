package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/grovetools/presence/tui/theme"
)

// PrettyLogger prints styled, human-facing CLI output. Unlike the structured
// loggers it always writes, regardless of level.
type PrettyLogger struct {
	writer io.Writer
	theme  *theme.Theme
}

// NewPrettyLogger creates a pretty logger writing to stderr.
func NewPrettyLogger() *PrettyLogger {
	return &PrettyLogger{
		writer: os.Stderr,
		theme:  theme.DefaultTheme,
	}
}

// WithWriter sets a custom writer for pretty output
func (p *PrettyLogger) WithWriter(w io.Writer) *PrettyLogger {
	p.writer = w
	return p
}

// Success logs a success message with a checkmark
func (p *PrettyLogger) Success(message string) {
	fmt.Fprintf(p.writer, "%s %s\n", p.theme.Success.Render("✓"), message)
}

// InfoPretty logs an info message
func (p *PrettyLogger) InfoPretty(message string) {
	fmt.Fprintf(p.writer, "%s\n", p.theme.Info.Render(message))
}

// WarnPretty logs a warning
func (p *PrettyLogger) WarnPretty(message string) {
	fmt.Fprintf(p.writer, "%s %s\n", p.theme.Warning.Render("⚠"), message)
}

// ErrorPretty logs an error
func (p *PrettyLogger) ErrorPretty(message string, err error) {
	fmt.Fprintf(p.writer, "%s %s", p.theme.Error.Render("✗"), message)
	if err != nil {
		fmt.Fprintf(p.writer, ": %s", err.Error())
	}
	fmt.Fprintln(p.writer)
}

// Field logs a key-value pair
func (p *PrettyLogger) Field(key string, value interface{}) {
	fmt.Fprintf(p.writer, "%s: %s\n", p.theme.Muted.Render(key), p.theme.Bold.Render(fmt.Sprint(value)))
}
