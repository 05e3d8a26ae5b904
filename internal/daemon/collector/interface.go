// Package collector provides the snapshot sources that feed the daemon:
// each one turns an upstream feed into ticks on the updates channel.
package collector

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/grovetools/presence/errors"
	"github.com/grovetools/presence/internal/daemon/store"
	"github.com/grovetools/presence/pkg/models"
)

// Collector is a background worker that reads snapshots and emits tick updates.
type Collector interface {
	// Name returns the collector's name for logging.
	Name() string

	// Run starts the collector. It blocks until the context is canceled or
	// the source is exhausted, emitting UpdateTick updates carrying a
	// models.Tick payload.
	Run(ctx context.Context, st *store.Store, updates chan<- store.Update) error
}

// DecodeTick parses one JSON tick. Blank lines and lines starting with '#'
// yield ok=false and no error.
func DecodeTick(source string, line []byte) (tick models.Tick, ok bool, err error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] == '#' {
		return models.Tick{}, false, nil
	}
	if err := json.Unmarshal(line, &tick); err != nil {
		return models.Tick{}, false, errors.SnapshotMalformed(source, err)
	}
	return tick, true, nil
}

// send delivers a tick unless the context ends first.
func send(ctx context.Context, updates chan<- store.Update, source string, tick models.Tick) bool {
	select {
	case updates <- store.Update{Type: store.UpdateTick, Source: source, Payload: tick}:
		return true
	case <-ctx.Done():
		return false
	}
}
