// Package daemon provides a client for the presence daemon (presenced) and
// the config watcher the daemon uses to apply configuration changes live.
package daemon

import (
	"context"

	"github.com/grovetools/presence/pkg/models"
	"github.com/grovetools/presence/pkg/presence"
)

// Client defines the interface for interacting with the presence daemon.
type Client interface {
	// PushTick queues a snapshot for ingest.
	PushTick(ctx context.Context, tick models.Tick) error

	// GetState returns the engine state, counters and indicator board.
	GetState(ctx context.Context) (*models.DaemonState, error)

	// GetConfig returns the configuration the daemon is running with.
	GetConfig(ctx context.Context) (*models.RunningConfig, error)

	// Reset clears the engine state.
	Reset(ctx context.Context) error

	// GetPolicy and SetPolicy read and replace the effect policy.
	GetPolicy(ctx context.Context) (*presence.Settings, error)
	SetPolicy(ctx context.Context, settings presence.Settings) (*presence.Settings, error)

	// StreamUpdates subscribes to transitions, board changes, resets and
	// config reloads. The channel closes when ctx ends or the daemon goes away.
	StreamUpdates(ctx context.Context) (<-chan models.StreamUpdate, error)

	// IsRunning returns true if the daemon is available and responding.
	IsRunning() bool

	// Close cleans up any resources used by the client.
	Close() error
}
