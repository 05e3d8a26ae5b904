// Package presence turns a stream of presence snapshots into transition
// events, filters them through a user policy and dispatches the accepted ones
// to effect channels.
package presence

import (
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/grovetools/presence/pkg/models"
	"github.com/sirupsen/logrus"
)

// Result is the outcome of a single ingest.
type Result struct {
	// Events are the transitions, ordered peeking, typing/idle, joined, left.
	Events []models.TransitionEvent
	// Cleared lists steady states that ended this tick without a replacement.
	Cleared []models.Clearance
}

// Engine diffs successive ticks against the state it holds and emits one
// transition per meaningful change. It owns its state exclusively; callers
// must serialize Ingest. A concurrent or re-entrant Ingest is dropped.
type Engine struct {
	inFlight atomic.Bool
	dropped  atomic.Uint64

	mu      sync.RWMutex
	steady  map[models.IdentityKey]models.PresenceState
	present map[models.IdentityKey]uint64 // value is the order in which tracking began
	titles  map[string]string
	order   uint64

	logger *logrus.Entry
}

// NewEngine creates an engine with empty state. A nil logger discards output.
func NewEngine(logger *logrus.Entry) *Engine {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = logrus.NewEntry(l)
	}
	e := &Engine{logger: logger}
	e.resetLocked()
	return e
}

// Ingest processes one tick and returns its transition events.
func (e *Engine) Ingest(tick models.Tick) []models.TransitionEvent {
	return e.IngestDetailed(tick).Events
}

// IngestDetailed processes one tick and returns its events together with the
// steady states that ended.
func (e *Engine) IngestDetailed(tick models.Tick) Result {
	if !e.inFlight.CompareAndSwap(false, true) {
		e.dropped.Add(1)
		e.logger.WithField("tick", tick.Seq).Warn("Dropped overlapping ingest")
		return Result{}
	}
	defer e.inFlight.Store(false)

	e.mu.Lock()
	defer e.mu.Unlock()

	d := &diff{
		tick:       tick.Seq,
		peeking:    make(map[models.IdentityKey]struct{}),
		typing:     make(map[models.IdentityKey]struct{}),
		present:    make(map[models.IdentityKey]struct{}),
		wasPeeking: make(map[models.IdentityKey]struct{}),
	}
	for key, state := range e.steady {
		if state == models.StatePeeking {
			d.wasPeeking[key] = struct{}{}
		}
	}

	for _, conv := range tick.Conversations {
		e.classifyConversation(d, conv)
	}

	left := e.detectLeft(d)
	cleared := e.removeEnded(d)

	events := make([]models.TransitionEvent, 0, len(d.peekEvents)+len(d.typingEvents)+len(d.joined)+len(left))
	events = append(events, d.peekEvents...)
	events = append(events, d.typingEvents...)
	events = append(events, d.joined...)
	events = append(events, left...)

	if len(events) > 0 || len(cleared) > 0 {
		e.logger.WithFields(logrus.Fields{
			"tick":    tick.Seq,
			"events":  len(events),
			"cleared": len(cleared),
		}).Debug("Ingested tick")
	}

	return Result{Events: events, Cleared: cleared}
}

// diff is the scratch state of one ingest.
type diff struct {
	tick uint64

	peeking    map[models.IdentityKey]struct{}
	typing     map[models.IdentityKey]struct{}
	present    map[models.IdentityKey]struct{}
	wasPeeking map[models.IdentityKey]struct{}

	peekEvents   []models.TransitionEvent
	typingEvents []models.TransitionEvent
	joined       []models.TransitionEvent
}

func (e *Engine) classifyConversation(d *diff, conv models.ConversationSnapshot) {
	convID := conv.ConversationID
	if convID == "" {
		convID = models.DirectConversation
	}
	title := e.resolveTitle(convID, conv.Title)

	for _, pid := range conv.Peeking {
		if pid == "" {
			continue
		}
		key := models.NewIdentityKey(pid, convID)
		if _, seen := d.peeking[key]; seen {
			continue
		}
		d.peeking[key] = struct{}{}
		if ev, changed := e.transition(key, models.StatePeeking, title, d.tick); changed {
			d.peekEvents = append(d.peekEvents, ev)
		}
	}

	for _, tp := range conv.Typing {
		if tp.ParticipantID == "" {
			continue
		}
		key := models.NewIdentityKey(tp.ParticipantID, convID)
		// Peeking takes precedence over typing data for the same identity.
		if _, isPeeking := d.peeking[key]; isPeeking {
			continue
		}
		if _, seen := d.typing[key]; seen {
			continue
		}
		d.typing[key] = struct{}{}

		state := models.StateIdle
		if tp.TypingState == models.TypingActive {
			state = models.StateTyping
		}
		if ev, changed := e.transition(key, state, title, d.tick); changed {
			d.typingEvents = append(d.typingEvents, ev)
		}
	}

	presentHere := make(map[string]struct{}, len(conv.Present))
	for _, pid := range conv.Present {
		if pid == "" {
			continue
		}
		presentHere[pid] = struct{}{}
		key := models.NewIdentityKey(pid, convID)
		d.present[key] = struct{}{}

		if _, tracked := e.present[key]; tracked {
			continue
		}
		_, isPeeking := d.peeking[key]
		_, isTyping := d.typing[key]
		switch {
		case isPeeking:
			// Not tracked until the peek ends or turns into real presence.
		case isTyping:
			// The typing event already announced the arrival.
			e.track(key)
		default:
			e.track(key)
			d.joined = append(d.joined, models.TransitionEvent{
				Identity:          key,
				To:                models.StateJoined,
				ConversationTitle: title,
				Tick:              d.tick,
			})
		}
	}

	for _, tp := range conv.Typing {
		if _, ok := presentHere[tp.ParticipantID]; ok || tp.ParticipantID == "" {
			continue
		}
		key := models.NewIdentityKey(tp.ParticipantID, convID)
		if _, ok := d.typing[key]; ok {
			e.logger.WithFields(logrus.Fields{
				"identity": key.String(),
				"tick":     d.tick,
			}).Debug("Typing participant missing from present list")
		}
	}
}

// transition records the classification and reports whether it changed.
func (e *Engine) transition(key models.IdentityKey, state models.PresenceState, title string, tick uint64) (models.TransitionEvent, bool) {
	prior, known := e.steady[key]
	if known && prior == state {
		return models.TransitionEvent{}, false
	}
	e.steady[key] = state

	ev := models.TransitionEvent{
		Identity:          key,
		To:                state,
		ConversationTitle: title,
		Tick:              tick,
	}
	if known {
		from := prior
		ev.From = &from
	}
	return ev, true
}

// detectLeft emits LEFT for tracked identities missing from this tick's
// present set. An identity peeking this tick keeps its flag. An identity
// whose peek ended this tick is untracked without a LEFT.
func (e *Engine) detectLeft(d *diff) []models.TransitionEvent {
	type candidate struct {
		key   models.IdentityKey
		order uint64
	}
	var candidates []candidate
	for key, order := range e.present {
		if _, ok := d.present[key]; !ok {
			candidates = append(candidates, candidate{key, order})
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].order < candidates[j].order })

	var left []models.TransitionEvent
	for _, c := range candidates {
		if _, ok := d.peeking[c.key]; ok {
			continue
		}
		delete(e.present, c.key)
		if _, ok := d.wasPeeking[c.key]; ok {
			continue
		}
		from := models.StatePresent
		left = append(left, models.TransitionEvent{
			Identity:          c.key,
			From:              &from,
			To:                models.StateLeft,
			ConversationTitle: e.resolveTitle(c.key.ConversationID, ""),
			Tick:              d.tick,
		})
	}
	return left
}

// removeEnded drops steady states that were not reclassified this tick.
func (e *Engine) removeEnded(d *diff) []models.Clearance {
	var cleared []models.Clearance
	for key, state := range e.steady {
		switch state {
		case models.StatePeeking, models.StateTyping, models.StateIdle:
		default:
			continue
		}
		_, peeking := d.peeking[key]
		_, typing := d.typing[key]
		if peeking || typing {
			continue
		}
		delete(e.steady, key)
		cleared = append(cleared, models.Clearance{Identity: key, State: state})
	}
	sort.Slice(cleared, func(i, j int) bool {
		return cleared[i].Identity.String() < cleared[j].Identity.String()
	})
	return cleared
}

func (e *Engine) track(key models.IdentityKey) {
	e.order++
	e.present[key] = e.order
}

// resolveTitle prefers the tick's title, then the last one seen, then the
// placeholder.
func (e *Engine) resolveTitle(convID, title string) string {
	if t := strings.TrimSpace(title); t != "" {
		e.titles[convID] = t
		return t
	}
	if t, ok := e.titles[convID]; ok {
		return t
	}
	return models.PlaceholderTitle
}

// Reset clears all engine state. After a reset every classification is new
// and is emitted with a nil From.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
	e.logger.Debug("Engine state reset")
}

func (e *Engine) resetLocked() {
	e.steady = make(map[models.IdentityKey]models.PresenceState)
	e.present = make(map[models.IdentityKey]uint64)
	e.titles = make(map[string]string)
	e.order = 0
}

// Dropped returns how many overlapping ingests were discarded.
func (e *Engine) Dropped() uint64 {
	return e.dropped.Load()
}

// State returns a copy of the engine's current state.
func (e *Engine) State() models.EngineState {
	e.mu.RLock()
	defer e.mu.RUnlock()

	steady := make(map[string]models.PresenceState, len(e.steady))
	for key, state := range e.steady {
		steady[key.String()] = state
	}

	type tracked struct {
		key   string
		order uint64
	}
	list := make([]tracked, 0, len(e.present))
	for key, order := range e.present {
		list = append(list, tracked{key.String(), order})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].order < list[j].order })
	present := make([]string, len(list))
	for i, t := range list {
		present[i] = t.key
	}

	return models.EngineState{
		Steady:  steady,
		Present: present,
		Dropped: e.dropped.Load(),
	}
}
