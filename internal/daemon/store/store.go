package store

import (
	"sync"
	"time"

	"github.com/grovetools/presence/pkg/models"
)

// Store is the in-memory state store for the daemon.
// It is thread-safe and supports pub/sub for real-time updates.
type Store struct {
	mu          sync.RWMutex
	state       *State
	seq         uint64
	subscribers map[chan Update]struct{}
	now         func() time.Time
}

// New creates a new Store instance.
func New() *Store {
	return &Store{
		state:       &State{Tracking: true},
		subscribers: make(map[chan Update]struct{}),
		now:         time.Now,
	}
}

// Get returns a copy of the current state.
func (s *Store) Get() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cpy := *s.state
	cpy.Indicators = append([]models.ConversationIndicators(nil), s.state.Indicators...)
	return cpy
}

// RecordTick stamps an incoming tick with the next sequence number and, when
// missing, the observation time. Sequence numbers are assigned here so that
// ticks from different collectors share one ordering.
func (s *Store) RecordTick(tick *models.Tick) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	tick.Seq = s.seq
	if tick.ObservedAt.IsZero() {
		tick.ObservedAt = s.now()
	}
	s.state.LastTick = tick.Seq
	s.state.LastTickAt = tick.ObservedAt
	s.state.Ticks++
}

// SetTracking records whether the engine is currently ingesting.
func (s *Store) SetTracking(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Tracking = on
}

// ApplyUpdate modifies the state and notifies subscribers.
func (s *Store) ApplyUpdate(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch u.Type {
	case UpdateEvents:
		if events, ok := u.Payload.([]models.TransitionEvent); ok {
			s.state.Events += uint64(len(events))
		}
	case UpdateIndicators:
		if indicators, ok := u.Payload.([]models.ConversationIndicators); ok {
			s.state.Indicators = indicators
		}
	case UpdateReset:
		s.state.Indicators = nil
	}

	s.broadcastLocked(u)
}

// Subscribe creates a new subscription channel for state updates.
func (s *Store) Subscribe() chan Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Update, 100)
	s.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Store) Unsubscribe(ch chan Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[ch]; !ok {
		return
	}
	delete(s.subscribers, ch)
	close(ch)
}

// Subscribers returns the number of active subscriptions.
func (s *Store) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

// BroadcastConfigReload notifies subscribers that the config file changed.
func (s *Store) BroadcastConfigReload(file string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.broadcastLocked(Update{
		Type:    UpdateConfigReload,
		Source:  "config",
		Payload: file,
	})
}

func (s *Store) broadcastLocked(u Update) {
	for ch := range s.subscribers {
		select {
		case ch <- u:
		default:
			// Non-blocking send to prevent slow clients from stalling the daemon
		}
	}
}
