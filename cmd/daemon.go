package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/grovetools/presence/cli"
	"github.com/grovetools/presence/config"
	"github.com/grovetools/presence/internal/daemon/collector"
	"github.com/grovetools/presence/internal/daemon/pidfile"
	"github.com/grovetools/presence/internal/daemon/server"
	"github.com/grovetools/presence/logging"
	"github.com/grovetools/presence/pkg/daemon"
	"github.com/grovetools/presence/pkg/models"
	"github.com/grovetools/presence/pkg/paths"
	"github.com/grovetools/presence/pkg/presence"
	"github.com/grovetools/presence/pkg/process"
	"github.com/grovetools/presence/version"
)

// configReloadDebounceMs coalesces editor save bursts into one reload.
const configReloadDebounceMs = 300

// NewDaemonCmd returns the daemon command with subcommands.
func NewDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run and control presenced",
		Long:  "presenced ingests presence snapshots, applies the effect policy and serves the board over a unix socket.",
	}

	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())

	return cmd
}

func newDaemonStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon",
		Long:  "Start the presence daemon in foreground mode.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.SetStderrMode("always")
			logger := cli.GetLogger(cmd, "presenced")

			cfg, cfgPath, err := cli.LoadConfig(cmd)
			if err != nil {
				logger.WithError(err).Warn("Failed to load config, using defaults")
				cfg, cfgPath = config.Default(), ""
			}
			for _, w := range cfg.Warnings() {
				logger.Warn(w)
			}

			pidPath := paths.PidFilePath()
			sockPath := socketPath(cfg)

			// 1. Acquire lock
			if err := pidfile.Acquire(pidPath); err != nil {
				return fmt.Errorf("failed to start: %w", err)
			}
			defer func() {
				if err := pidfile.Release(pidPath); err != nil {
					logger.Errorf("Failed to release pidfile: %v", err)
				}
			}()

			// 2. Pipeline and collectors
			p := newPipeline(cfg, pipelineOptions{
				Notify:       true,
				ProfileCache: profileCachePath(cfg),
			}, logger)
			defer func() {
				if err := p.profiles.Save(); err != nil {
					logger.WithError(err).Warn("Failed to save profile cache")
				}
			}()

			sources := []string{"push"}
			if fs := cfg.Sources.File; fs != nil {
				path := paths.ExpandHome(fs.Path)
				p.runner.Register(collector.NewFileCollector(path, fs.Follow, fs.FromStart, logger.WithField("collector", "file")))
				sources = append(sources, "file:"+path)
			}
			if ws := cfg.Sources.WebSocket; ws != nil {
				p.runner.Register(collector.NewWebSocketCollector(ws.URL, ws.Headers, logger.WithField("collector", "websocket")))
				sources = append(sources, "websocket:"+ws.URL)
			}

			// 3. Server
			srv := server.New(logger)
			srv.SetRunner(p.runner)
			srv.SetRunningConfig(&models.RunningConfig{
				ConfigFile: cfgPath,
				Socket:     sockPath,
				Sources:    sources,
				Channels:   p.enabledChannels(),
				StartedAt:  time.Now(),
				Version:    version.Version,
			})

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			// 4. Live config reload
			if cfgPath != "" {
				watcher, err := daemon.NewConfigWatcher(cfgPath, configReloadDebounceMs, func(file string) {
					next, err := config.Load(cfgPath)
					if err != nil {
						logger.WithError(err).Warn("Config reload failed, keeping current settings")
						return
					}
					for _, w := range next.Warnings() {
						logger.Warn(w)
					}
					p.apply(next)
					if err := p.runner.RequestReload(ctx, file); err != nil {
						logger.WithError(err).Debug("Reload not queued")
					}
					logger.WithField("file", file).Info("Configuration reloaded")
				})
				if err != nil {
					logger.WithError(err).Warn("Config watcher disabled")
				} else {
					go watcher.Start(ctx)
				}
			}

			// 5. Signals
			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			go func() {
				select {
				case <-stop:
					logger.Info("Received stop signal")
				case <-ctx.Done():
				}
				cancel()

				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Errorf("Server shutdown error: %v", err)
				}
			}()

			// 6. Runner and profile persistence in background
			runnerDone := make(chan struct{})
			go func() {
				p.runner.Start(ctx)
				close(runnerDone)
			}()
			go p.saveEvery(time.Minute, ctx.Done())

			// 7. Serve (blocking)
			logger.WithField("pid", os.Getpid()).Info("Starting daemon")
			err = srv.ListenAndServe(sockPath)
			cancel()
			<-runnerDone
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("Daemon stopped")
			return nil
		},
	}
}

func newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			pidPath := paths.PidFilePath()

			running, pid, err := pidfile.IsRunning(pidPath)
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}
			if !running {
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
				return nil
			}

			if err := process.Terminate(pid); err != nil {
				return fmt.Errorf("failed to send stop signal to %d: %w", pid, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent SIGTERM to process %d\n", pid)
			return nil
		},
	}
}

func newDaemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			running, pid, err := pidfile.IsRunning(paths.PidFilePath())
			if err != nil {
				return fmt.Errorf("error: %w", err)
			}
			if !running {
				fmt.Fprintln(cmd.OutOrStdout(), "Stopped")
				os.Exit(1) // Non-zero for scripts
			}

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
			rc, err := client.GetConfig(ctx)
			if err != nil {
				return err
			}
			pol, err := client.GetPolicy(ctx)
			if err != nil {
				return err
			}

			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(cmd.OutOrStdout(), struct {
					PID    int                   `json:"pid"`
					Config *models.RunningConfig `json:"config"`
					Policy *presence.Settings    `json:"policy"`
					State  *models.DaemonState   `json:"state"`
				}{pid, rc, pol, st})
			}

			pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
			pretty.Success(fmt.Sprintf("Running (PID: %d)", pid))
			pretty.Field("Socket", rc.Socket)
			if rc.ConfigFile != "" {
				pretty.Field("Config", rc.ConfigFile)
			}
			pretty.Field("Sources", rc.Sources)
			for _, ch := range presence.Channels {
				pretty.Field("Channel "+string(ch), onOff(pol.Channels[ch]))
			}
			if len(pol.IgnoredNames) > 0 {
				pretty.Field("Ignored", pol.IgnoredNames)
			}
			pretty.Field("Tracking", onOff(st.Tracking))
			pretty.Field("Ticks", st.Ticks)
			pretty.Field("Events", st.Events)
			pretty.Field("Conversations", len(st.Indicators))
			return nil
		},
	}
}

// connect opens the daemon client for the socket configured for cmd.
func connect(cmd *cobra.Command) (daemon.Client, error) {
	cfg, _, err := cli.LoadConfig(cmd)
	if err != nil {
		cfg = nil
	}
	return daemon.Connect(socketPath(cfg))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
