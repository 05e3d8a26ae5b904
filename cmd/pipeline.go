// Package cmd implements the presence commands.
package cmd

import (
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/presence/command"
	"github.com/grovetools/presence/config"
	"github.com/grovetools/presence/internal/daemon/engine"
	"github.com/grovetools/presence/internal/daemon/store"
	"github.com/grovetools/presence/pkg/channels"
	"github.com/grovetools/presence/pkg/paths"
	"github.com/grovetools/presence/pkg/presence"
	"github.com/grovetools/presence/pkg/profiles"
)

// pipelineOptions selects the effect channels a pipeline is built with.
type pipelineOptions struct {
	// LogOut receives presence log lines. Nil routes them to the logger.
	LogOut io.Writer
	// Notify registers the desktop and ntfy emitters configured in cfg.
	Notify bool
	// ProfileCache is the persisted profile cache; empty keeps it in memory.
	ProfileCache string
	// HTTPClient is used by the ntfy emitter; nil uses its default.
	HTTPClient *http.Client
	// Executor runs desktop notification commands; nil uses os/exec.
	Executor command.Executor
}

// pipeline is the engine, policy, dispatcher and channels wired from one
// configuration.
type pipeline struct {
	runner     *engine.Runner
	policy     *presence.Policy
	dispatcher *presence.Dispatcher
	logEmitter *channels.LogEmitter
	board      *channels.Board
	profiles   *profiles.Cache
	logger     *logrus.Entry
}

func newPipeline(cfg *config.Config, opts pipelineOptions, logger *logrus.Entry) *pipeline {
	cache := profiles.NewCache(opts.ProfileCache)
	if err := cache.Load(); err != nil {
		logger.WithError(err).Warn("Failed to load profile cache, starting empty")
	}

	policy := presence.NewPolicy()
	disp := presence.NewDispatcher(policy, cache, logger.WithField("part", "dispatcher"))

	logEmitter := channels.NewLogEmitter(opts.LogOut, logger, cfg.PresenceLog.ShowTimestamp)
	disp.Register(presence.ChannelLog, logEmitter)

	if opts.Notify {
		if cfg.Notifications.Desktop {
			exec := opts.Executor
			if exec == nil {
				exec = &command.RealExecutor{}
			}
			disp.Register(presence.ChannelNotify, channels.NewDesktopEmitter(exec))
		}
		if cfg.Ntfy.Enabled {
			disp.Register(presence.ChannelNotify, channels.NewNtfyEmitter(channels.NtfyConfig{
				Server:   cfg.Ntfy.Server,
				Topic:    cfg.Ntfy.Topic,
				Priority: cfg.Ntfy.Priority,
				ClickURL: cfg.Ntfy.ClickURL,
			}, opts.HTTPClient))
		}
	}

	board := channels.NewBoard()
	disp.Register(presence.ChannelIndicator, board)

	runner := engine.New(store.New(), presence.NewEngine(logger.WithField("part", "engine")), disp, logger)
	runner.SetProfiles(cache)
	runner.SetBoard(board)

	p := &pipeline{
		runner:     runner,
		policy:     policy,
		dispatcher: disp,
		logEmitter: logEmitter,
		board:      board,
		profiles:   cache,
		logger:     logger,
	}
	p.apply(cfg)
	return p
}

// apply pushes the reloadable parts of cfg into the running pipeline. The
// set of emitters is fixed when the pipeline is built.
func (p *pipeline) apply(cfg *config.Config) {
	if err := p.policy.Apply(cfg.PolicySettings()); err != nil {
		p.logger.WithError(err).Warn("Notification cooldown disabled")
	}
	p.logEmitter.SetShowTimestamp(cfg.PresenceLog.ShowTimestamp)
	if d := cfg.EmitTimeout(); d > 0 {
		p.dispatcher.SetTimeout(d)
	} else {
		p.dispatcher.SetTimeout(presence.DefaultEmitTimeout)
	}
	p.runner.SyncTracking()
}

// enabledChannels reports the policy's channel switches by name.
func (p *pipeline) enabledChannels() map[string]bool {
	out := make(map[string]bool, len(presence.Channels))
	for _, ch := range presence.Channels {
		out[string(ch)] = p.policy.ChannelEnabled(ch)
	}
	return out
}

// profileCachePath resolves daemon.profile_cache against the state directory.
func profileCachePath(cfg *config.Config) string {
	if cfg.Daemon.ProfileCache != "" {
		return paths.ExpandHome(cfg.Daemon.ProfileCache)
	}
	return paths.ProfileCachePath()
}

// socketPath resolves daemon.socket, falling back to the runtime directory.
func socketPath(cfg *config.Config) string {
	if cfg != nil && cfg.Daemon.Socket != "" {
		return paths.ExpandHome(cfg.Daemon.Socket)
	}
	return paths.SocketPath()
}

// saveEvery persists the profile cache periodically until done is closed.
func (p *pipeline) saveEvery(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := p.profiles.Save(); err != nil {
				p.logger.WithError(err).Warn("Failed to save profile cache")
			}
		}
	}
}
