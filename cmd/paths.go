package cmd

import (
	"github.com/spf13/cobra"

	"github.com/grovetools/presence/cli"
	"github.com/grovetools/presence/logging"
	"github.com/grovetools/presence/pkg/paths"
)

// PathsOutput represents the XDG-compliant paths used by presence.
type PathsOutput struct {
	ConfigDir    string `json:"config_dir"`
	StateDir     string `json:"state_dir"`
	CacheDir     string `json:"cache_dir"`
	RuntimeDir   string `json:"runtime_dir"`
	Socket       string `json:"socket"`
	PidFile      string `json:"pid_file"`
	ProfileCache string `json:"profile_cache"`
}

func NewPathsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paths",
		Short: "Print the XDG-compliant paths used by presence",
		Long: `Print the XDG-compliant paths used by presence.

The paths follow the XDG Base Directory Specification, or live below
PRESENCE_HOME when it is set:
- config_dir: presence.yml and its .env file
- state_dir: PID file, profile cache and log files
- cache_dir: Temporary/regenerable data
- runtime_dir: The daemon socket`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := PathsOutput{
				ConfigDir:    paths.ConfigDir(),
				StateDir:     paths.StateDir(),
				CacheDir:     paths.CacheDir(),
				RuntimeDir:   paths.RuntimeDir(),
				Socket:       paths.SocketPath(),
				PidFile:      paths.PidFilePath(),
				ProfileCache: paths.ProfileCachePath(),
			}

			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(cmd.OutOrStdout(), output)
			}
			pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
			pretty.Field("config_dir", output.ConfigDir)
			pretty.Field("state_dir", output.StateDir)
			pretty.Field("cache_dir", output.CacheDir)
			pretty.Field("runtime_dir", output.RuntimeDir)
			pretty.Field("socket", output.Socket)
			pretty.Field("pid_file", output.PidFile)
			pretty.Field("profile_cache", output.ProfileCache)
			return nil
		},
	}

	return cmd
}
