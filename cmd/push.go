package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/grovetools/presence/cli"
	"github.com/grovetools/presence/internal/daemon/collector"
	"github.com/grovetools/presence/logging"
	"github.com/grovetools/presence/pkg/models"
	"github.com/grovetools/presence/pkg/profiling"
)

// NewPushCmd creates the `push` command.
func NewPushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push FILE",
		Short: "Send ticks from a JSONL file to the running daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := cli.GetLogger(cmd, "push")
			follow, _ := cmd.Flags().GetBool("follow")
			interval, _ := cmd.Flags().GetDuration("interval")

			client, err := connect(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx := cmd.Context()
			var sent int
			var pushErr error
			src := collector.NewFileCollector(args[0], follow, true, logger.WithField("collector", "file"))
			err = src.Scan(ctx, func(tick models.Tick) bool {
				timed := profiling.Start("push")
				pushErr = client.PushTick(ctx, tick)
				timed.Stop()
				if pushErr != nil {
					return false
				}
				sent++
				if interval > 0 {
					select {
					case <-time.After(interval):
					case <-ctx.Done():
						return false
					}
				}
				return true
			})
			if err != nil {
				return err
			}
			if pushErr != nil {
				return fmt.Errorf("push tick %d: %w", sent+1, pushErr)
			}

			logging.NewPrettyLogger().Success(fmt.Sprintf("Pushed %d ticks", sent))
			return nil
		},
	}

	cmd.Flags().BoolP("follow", "f", false, "Keep reading as the file grows")
	cmd.Flags().Duration("interval", 0, "Delay between ticks")

	return cmd
}
