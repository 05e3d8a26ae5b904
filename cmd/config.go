package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/grovetools/presence/cli"
	"github.com/grovetools/presence/config"
	"github.com/grovetools/presence/logging"
)

// NewConfigCmd creates the `config` command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate presence.yml",
		Long: `The configuration is resolved in this order:
1. --config flag
2. PRESENCE_CONFIG
3. presence.yml, presence.yaml or presence.toml in the current directory
4. The same names in the config directory (see 'presence paths')
5. Built-in defaults
Override files (presence.override.yml) next to the config are merged on top.`,
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigSchemaCmd())
	cmd.AddCommand(newConfigValidateCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(out, cfg)
			}

			if path != "" {
				fmt.Fprintf(out, "# Source: %s\n", path)
			} else {
				fmt.Fprintln(out, "# Source: built-in defaults")
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			fmt.Fprint(out, string(data))
			return nil
		},
	}
}

func newConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of presence.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [FILE]",
		Short: "Validate a configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cli.GetOptions(cmd).ConfigFile
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				path = os.Getenv(config.ConfigEnv)
			}
			if path == "" {
				cwd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("failed to get current directory: %w", err)
				}
				if path, err = config.FindConfigFile(cwd); err != nil {
					return err
				}
			}

			pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
			cfg, err := config.Load(path)
			if err != nil {
				pretty.ErrorPretty(path, err)
				return err
			}
			for _, w := range cfg.Warnings() {
				pretty.WarnPretty(w)
			}
			pretty.Success(fmt.Sprintf("%s is valid", path))
			return nil
		},
	}
}
