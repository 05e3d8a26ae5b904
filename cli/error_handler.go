package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/grovetools/presence/errors"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler writing to stderr
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     os.Stderr,
	}
}

// Handle prints a message for err based on its code and returns err.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(h.Out, "❌ Configuration not found. Create presence.yml or pass --config.\n")

	case errors.ErrCodeConfigInvalid, errors.ErrCodeConfigValidation:
		fmt.Fprintf(h.Out, "❌ Invalid configuration: %v\n", err)
		fmt.Fprintf(h.Out, "Run 'presence config validate' for details.\n")

	case errors.ErrCodeDaemonNotRunning:
		fmt.Fprintf(h.Out, "❌ The presence daemon is not running.\n")
		fmt.Fprintf(h.Out, "Start it with 'presence daemon start'.\n")

	case errors.ErrCodeSourceFailed:
		if pErr, ok := err.(*errors.PresenceError); ok {
			fmt.Fprintf(h.Out, "❌ Snapshot source '%v' failed: %v\n", pErr.Details["source"], pErr.Cause)
		} else {
			fmt.Fprintf(h.Out, "❌ Error: %v\n", err)
		}

	default:
		fmt.Fprintf(h.Out, "❌ Error: %v\n", err)
	}

	if h.Verbose {
		if pErr, ok := err.(*errors.PresenceError); ok {
			fmt.Fprintf(h.Out, "\nError details:\n%s\n", pErr.ToJSON())
		}
	}
	return err
}
