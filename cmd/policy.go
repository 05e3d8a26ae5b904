package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/grovetools/presence/cli"
	"github.com/grovetools/presence/logging"
	"github.com/grovetools/presence/pkg/presence"
)

// NewResetCmd creates the `reset` command.
func NewResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Forget all presence state in the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := connect(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			if err := client.Reset(ctx); err != nil {
				return err
			}
			logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout()).Success("Presence state reset")
			return nil
		},
	}
}

// NewPolicyCmd creates the `policy` command.
func NewPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Show or change the daemon's effect policy",
		Long: `Shows the effect policy of the running daemon. Flags change it until the
next config reload.

Examples:
  # Mute notifications
  presence policy --disable notify

  # Only report peeking and typing, and ignore two people
  presence policy --types PEEKING,TYPING --ignore "Ada,Grace Hopper"

  # Report every type again
  presence policy --all-types
`,
		RunE: runPolicyE,
	}

	cmd.Flags().StringSlice("enable", nil, "Channels to enable (log, notify, indicator)")
	cmd.Flags().StringSlice("disable", nil, "Channels to disable (log, notify, indicator)")
	cmd.Flags().StringSlice("ignore", nil, "Replace the ignore list")
	cmd.Flags().StringSlice("types", nil, "Replace the presence type allow-list")
	cmd.Flags().Bool("all-types", false, "Allow every presence type")
	cmd.Flags().String("cooldown", "", "Notification cooldown per participant and state (e.g. 30s)")

	return cmd
}

func runPolicyE(cmd *cobra.Command, args []string) error {
	client, err := connect(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	settings, err := client.GetPolicy(ctx)
	if err != nil {
		return err
	}

	changed, err := applyPolicyFlags(cmd, settings)
	if err != nil {
		return err
	}
	if changed {
		if settings, err = client.SetPolicy(ctx, *settings); err != nil {
			return err
		}
	}

	if cli.GetOptions(cmd).JSONOutput {
		return printJSON(cmd.OutOrStdout(), settings)
	}
	pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
	for _, ch := range presence.Channels {
		pretty.Field(string(ch), onOff(settings.Channels[ch]))
	}
	types := "all"
	if settings.AllowedTypes != nil {
		names := make([]string, len(settings.AllowedTypes))
		for i, s := range settings.AllowedTypes {
			names[i] = string(s)
		}
		types = strings.Join(names, ", ")
		if types == "" {
			types = "none"
		}
	}
	pretty.Field("types", types)
	pretty.Field("ignored", strings.Join(settings.IgnoredNames, ", "))
	if settings.NotifyCooldown != "" {
		pretty.Field("cooldown", settings.NotifyCooldown)
	}
	return nil
}

// applyPolicyFlags edits settings from the command's flags and reports
// whether anything was set.
func applyPolicyFlags(cmd *cobra.Command, settings *presence.Settings) (bool, error) {
	flags := cmd.Flags()
	changed := false

	if settings.Channels == nil {
		settings.Channels = make(map[presence.Channel]bool)
	}
	for _, sw := range []struct {
		flag string
		on   bool
	}{{"enable", true}, {"disable", false}} {
		names, _ := flags.GetStringSlice(sw.flag)
		for _, name := range names {
			ch, err := parseChannel(name)
			if err != nil {
				return false, err
			}
			settings.Channels[ch] = sw.on
			changed = true
		}
	}

	if flags.Changed("ignore") {
		names, _ := flags.GetStringSlice("ignore")
		settings.IgnoredNames = names
		changed = true
	}

	if all, _ := flags.GetBool("all-types"); all {
		settings.AllowedTypes = nil
		changed = true
	} else if flags.Changed("types") {
		names, _ := flags.GetStringSlice("types")
		states, err := presence.StatesFromNames(names)
		if err != nil {
			return false, err
		}
		settings.AllowedTypes = states
		changed = true
	}

	if flags.Changed("cooldown") {
		settings.NotifyCooldown, _ = flags.GetString("cooldown")
		changed = true
	}
	return changed, nil
}

func parseChannel(name string) (presence.Channel, error) {
	for _, ch := range presence.Channels {
		if strings.EqualFold(string(ch), strings.TrimSpace(name)) {
			return ch, nil
		}
	}
	return "", fmt.Errorf("unknown channel %q (want log, notify or indicator)", name)
}
