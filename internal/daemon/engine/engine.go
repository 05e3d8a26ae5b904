// Package engine runs the daemon's collectors and feeds their ticks through
// the transition engine and dispatcher on a single goroutine.
package engine

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/presence/internal/daemon/collector"
	"github.com/grovetools/presence/internal/daemon/store"
	"github.com/grovetools/presence/pkg/channels"
	"github.com/grovetools/presence/pkg/models"
	"github.com/grovetools/presence/pkg/presence"
	"github.com/grovetools/presence/pkg/profiles"
)

// Runner owns the presence pipeline. Every tick, reset and reload goes
// through one updates channel and is applied by one consumer, so ingest and
// dispatch never overlap and later ticks never overtake earlier ones.
type Runner struct {
	store      *store.Store
	engine     *presence.Engine
	dispatcher *presence.Dispatcher
	profiles   *profiles.Cache
	board      *channels.Board
	collectors []collector.Collector
	updates    chan store.Update
	logger     *logrus.Entry

	mu       sync.Mutex
	tracking bool
}

// New creates a Runner. The profile cache and board are optional.
func New(st *store.Store, eng *presence.Engine, disp *presence.Dispatcher, logger *logrus.Entry) *Runner {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Runner{
		store:      st,
		engine:     eng,
		dispatcher: disp,
		updates:    make(chan store.Update, 100),
		logger:     logger,
		tracking:   true,
	}
}

// SetProfiles attaches the cache that tick profiles are merged into.
func (r *Runner) SetProfiles(c *profiles.Cache) { r.profiles = c }

// SetBoard attaches the indicator board whose snapshots are broadcast.
func (r *Runner) SetBoard(b *channels.Board) { r.board = b }

// Register adds a collector to the runner.
func (r *Runner) Register(c collector.Collector) {
	r.collectors = append(r.collectors, c)
}

// Store returns the runner's state store.
func (r *Runner) Store() *store.Store { return r.store }

// Engine returns the transition engine.
func (r *Runner) Engine() *presence.Engine { return r.engine }

// Policy returns the dispatcher's policy.
func (r *Runner) Policy() *presence.Policy { return r.dispatcher.Policy() }

// Submit queues a tick pushed by a client.
func (r *Runner) Submit(ctx context.Context, tick models.Tick) error {
	return r.enqueue(ctx, store.Update{Type: store.UpdateTick, Source: "push", Payload: tick})
}

// RequestReset queues an engine reset behind any pending ticks.
func (r *Runner) RequestReset(ctx context.Context) error {
	return r.enqueue(ctx, store.Update{Type: store.UpdateReset, Source: "client"})
}

// RequestReload queues a policy re-check after the configuration changed.
func (r *Runner) RequestReload(ctx context.Context, file string) error {
	return r.enqueue(ctx, store.Update{Type: store.UpdateConfigReload, Source: "config", Payload: file})
}

func (r *Runner) enqueue(ctx context.Context, u store.Update) error {
	select {
	case r.updates <- u:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start runs all collectors and the consumer, blocking until ctx is canceled.
func (r *Runner) Start(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case u := <-r.updates:
				r.apply(ctx, u)
			}
		}
	}()

	for _, c := range r.collectors {
		wg.Add(1)
		go func(col collector.Collector) {
			defer wg.Done()
			r.logger.WithField("collector", col.Name()).Info("Starting collector")
			if err := col.Run(ctx, r.store, r.updates); err != nil {
				r.logger.WithField("collector", col.Name()).WithError(err).Error("Collector failed")
				return
			}
			r.logger.WithField("collector", col.Name()).Debug("Collector finished")
		}(c)
	}

	wg.Wait()
}

func (r *Runner) apply(ctx context.Context, u store.Update) {
	switch u.Type {
	case store.UpdateTick:
		tick, ok := u.Payload.(models.Tick)
		if !ok {
			r.logger.WithField("source", u.Source).Warn("Ignoring tick update without a tick")
			return
		}
		r.Process(ctx, tick)
	case store.UpdateReset:
		r.Reset()
	case store.UpdateConfigReload:
		r.SyncTracking()
		file, _ := u.Payload.(string)
		r.store.BroadcastConfigReload(file)
	default:
		r.store.ApplyUpdate(u)
	}
}

// Process runs one tick through the pipeline and returns what the engine
// produced. Callers other than the consumer goroutine must not run Process
// concurrently with Start.
func (r *Runner) Process(ctx context.Context, tick models.Tick) presence.Result {
	r.store.RecordTick(&tick)
	if r.profiles != nil {
		r.profiles.Merge(tick.Profiles)
	}

	if !r.isTracking() {
		return presence.Result{}
	}

	res := r.engine.IngestDetailed(tick)
	if len(res.Events) == 0 && len(res.Cleared) == 0 {
		return res
	}

	stats := r.dispatcher.Dispatch(ctx, res.Events)
	stats.Add(r.dispatcher.Clear(ctx, res.Cleared))
	r.logger.WithFields(logrus.Fields{
		"tick":       tick.Seq,
		"events":     len(res.Events),
		"cleared":    len(res.Cleared),
		"accepted":   stats.Accepted,
		"suppressed": stats.Suppressed,
		"failed":     stats.Failed,
	}).Debug("Processed tick")

	if len(res.Events) > 0 {
		r.store.ApplyUpdate(store.Update{Type: store.UpdateEvents, Source: "engine", Tick: tick.Seq, Payload: res.Events})
	}
	r.broadcastBoard(tick.Seq)
	return res
}

// Reset clears the engine and the board.
func (r *Runner) Reset() {
	r.engine.Reset()
	if r.board != nil {
		r.board.Reset()
	}
	r.store.ApplyUpdate(store.Update{Type: store.UpdateReset, Source: "engine"})
	r.logger.Info("Presence state reset")
}

// SyncTracking stops ingesting and resets state when every channel is
// disabled, and resumes once any channel is enabled again. A disabled
// indicator channel empties the board.
func (r *Runner) SyncTracking() {
	policy := r.dispatcher.Policy()
	want := policy.AnyChannelEnabled()

	r.mu.Lock()
	was := r.tracking
	r.tracking = want
	r.mu.Unlock()
	r.store.SetTracking(want)

	switch {
	case was && !want:
		r.Reset()
		r.logger.Info("All channels disabled, presence tracking paused")
	case !was && want:
		r.logger.Info("Presence tracking resumed")
	}

	if r.board != nil && !policy.ChannelEnabled(presence.ChannelIndicator) && want {
		r.board.Reset()
		r.broadcastBoard(0)
	}
}

func (r *Runner) isTracking() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tracking
}

func (r *Runner) broadcastBoard(seq uint64) {
	if r.board == nil {
		return
	}
	r.store.ApplyUpdate(store.Update{
		Type:    store.UpdateIndicators,
		Source:  "board",
		Tick:    seq,
		Payload: r.board.Snapshot(),
	})
}
