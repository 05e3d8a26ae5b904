package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/grovetools/presence/cli"
	"github.com/grovetools/presence/tui/watch"
)

// NewWatchCmd creates the `watch` command.
func NewWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the indicator board and transitions live",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := connect(cmd)
			if err != nil {
				return err
			}
			defer client.Close()
			return watch.Run(cmd.Context(), client)
		},
	}
}

// NewBoardCmd creates the `board` command.
func NewBoardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Print the daemon's indicator board",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := connect(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			st, err := client.GetState(ctx)
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(cmd.OutOrStdout(), st.Indicators)
			}
			writeBoard(cmd.OutOrStdout(), st.Indicators)
			return nil
		},
	}
}
