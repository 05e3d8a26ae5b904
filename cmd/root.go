package cmd

import (
	"github.com/spf13/cobra"

	"github.com/grovetools/presence/cli"
	"github.com/grovetools/presence/pkg/profiling"
)

// NewRootCmd assembles the presence command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := cli.NewStandardCommand(
		"presence",
		"Turn chat presence snapshots into transitions, notifications and a live board",
	)

	profiling.NewCobraProfiler().Attach(rootCmd)

	rootCmd.AddCommand(NewDaemonCmd())
	rootCmd.AddCommand(NewReplayCmd())
	rootCmd.AddCommand(NewPushCmd())
	rootCmd.AddCommand(NewWatchCmd())
	rootCmd.AddCommand(NewBoardCmd())
	rootCmd.AddCommand(NewResetCmd())
	rootCmd.AddCommand(NewPolicyCmd())
	rootCmd.AddCommand(NewConfigCmd())
	rootCmd.AddCommand(NewPathsCmd())
	rootCmd.AddCommand(cli.NewVersionCommand("presence"))

	return rootCmd
}
