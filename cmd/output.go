package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/grovetools/presence/pkg/models"
	"github.com/grovetools/presence/tui/theme"
)

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

// writeBoard prints the indicator board, one block per conversation.
func writeBoard(w io.Writer, board []models.ConversationIndicators) {
	t := theme.DefaultTheme
	if len(board) == 0 {
		fmt.Fprintln(w, t.Muted.Render("Nobody is around."))
		return
	}
	for _, c := range board {
		fmt.Fprintf(w, "%s %s\n", t.Bold.Render(c.Title), t.Muted.Render("("+c.ConversationID+")"))
		rows := []struct {
			state models.PresenceState
			names []string
		}{
			{models.StatePeeking, c.Peeking},
			{models.StateTyping, c.Typing},
			{models.StateIdle, c.Idle},
			{models.StatePresent, c.Present},
		}
		for _, r := range rows {
			if len(r.names) == 0 {
				continue
			}
			label := fmt.Sprintf("%-8s", strings.ToLower(string(r.state)))
			fmt.Fprintf(w, "  %s %s\n", t.State(r.state).Render(label), strings.Join(r.names, ", "))
		}
	}
}
