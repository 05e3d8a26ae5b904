package watch

import (
	"context"
	"errors"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/grovetools/presence/logging"
	"github.com/grovetools/presence/pkg/models"
	"github.com/grovetools/presence/tui"
)

// Streamer is the part of the daemon client the watch view needs.
type Streamer interface {
	Resetter
	StreamUpdates(ctx context.Context) (<-chan models.StreamUpdate, error)
}

// Run opens the daemon stream and shows the watch view until the user quits
// or ctx is canceled.
func Run(ctx context.Context, client Streamer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates, err := client.StreamUpdates(ctx)
	if err != nil {
		return err
	}

	tui.InitializeTUI()
	// Log lines would tear the alt screen.
	prev := logging.GetGlobalOutput()
	logging.SetGlobalOutput(io.Discard)
	defer logging.SetGlobalOutput(prev)

	p := tea.NewProgram(New(updates, client), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
