package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/grovetools/presence/cli"
	"github.com/grovetools/presence/config"
	"github.com/grovetools/presence/internal/daemon/collector"
	"github.com/grovetools/presence/logging"
	"github.com/grovetools/presence/pkg/models"
	"github.com/grovetools/presence/pkg/profiling"
)

// NewReplayCmd creates the `replay` command.
func NewReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay FILE",
		Short: "Run a JSONL tick file through the presence pipeline",
		Long: `Feeds every tick in FILE through the transition engine and effect policy
without a daemon, printing the presence log.

Examples:
  # Print the presence log of a recording
  presence replay ticks.jsonl

  # Emit transition events as JSON Lines and keep reading
  presence replay ticks.jsonl --json -f

  # Also send desktop and ntfy notifications
  presence replay ticks.jsonl --notify
`,
		Args: cobra.ExactArgs(1),
		RunE: runReplayE,
	}

	cmd.Flags().BoolP("follow", "f", false, "Keep reading as the file grows")
	cmd.Flags().Bool("notify", false, "Deliver desktop and ntfy notifications")
	cmd.Flags().Bool("board", false, "Print the indicator board when done")

	return cmd
}

func runReplayE(cmd *cobra.Command, args []string) error {
	logger := cli.GetLogger(cmd, "replay")
	opts := cli.GetOptions(cmd)
	follow, _ := cmd.Flags().GetBool("follow")
	notify, _ := cmd.Flags().GetBool("notify")
	showBoard, _ := cmd.Flags().GetBool("board")

	cfg, _, err := cli.LoadConfig(cmd)
	if err != nil {
		logger.WithError(err).Warn("Failed to load config, using defaults")
		cfg = config.Default()
	}
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	out := cmd.OutOrStdout()
	var logOut io.Writer = out
	if opts.JSONOutput {
		logOut = io.Discard
	}
	p := newPipeline(cfg, pipelineOptions{LogOut: logOut, Notify: notify}, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	enc := json.NewEncoder(out)
	var ticks, events int
	src := collector.NewFileCollector(args[0], follow, true, logger.WithField("collector", "file"))
	err = src.Scan(ctx, func(tick models.Tick) bool {
		timed := profiling.Start("process")
		res := p.runner.Process(ctx, tick)
		timed.Stop()
		ticks++
		events += len(res.Events)
		if opts.JSONOutput {
			for _, ev := range res.Events {
				if err := enc.Encode(ev); err != nil {
					return false
				}
			}
		}
		return true
	})
	if err != nil {
		return err
	}

	if showBoard && !opts.JSONOutput {
		fmt.Fprintln(out)
		writeBoard(out, p.board.Snapshot())
	}
	logging.NewPrettyLogger().InfoPretty(fmt.Sprintf("Replayed %d ticks, %d transitions", ticks, events))
	return nil
}
