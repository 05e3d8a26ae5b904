package channels

import (
	"context"
	"sort"
	"sync"

	"github.com/grovetools/presence/pkg/models"
	"github.com/grovetools/presence/pkg/presence"
	"github.com/samber/lo"
)

type boardConversation struct {
	title   string
	steady  map[string]models.PresenceState // participant id -> PEEKING/TYPING/IDLE
	present map[string]struct{}
}

// Board is the indicator channel: per conversation, who is peeking, typing,
// idle or present. It implements presence.Emitter and presence.Clearer.
type Board struct {
	mu       sync.RWMutex
	convs    map[string]*boardConversation
	labels   map[string]string
	onChange []func([]models.ConversationIndicators)
}

// NewBoard creates an empty board.
func NewBoard() *Board {
	return &Board{
		convs:  make(map[string]*boardConversation),
		labels: make(map[string]string),
	}
}

func (b *Board) Name() string { return "indicator" }

// OnChange registers a listener called with a fresh snapshot after every
// change. Listeners run synchronously and must not call back into the board.
func (b *Board) OnChange(fn func([]models.ConversationIndicators)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = append(b.onChange, fn)
}

func (b *Board) conversation(id, title string) *boardConversation {
	c, ok := b.convs[id]
	if !ok {
		c = &boardConversation{
			steady:  make(map[string]models.PresenceState),
			present: make(map[string]struct{}),
		}
		b.convs[id] = c
	}
	if title != "" {
		c.title = title
	}
	return c
}

func (b *Board) Emit(_ context.Context, n presence.Notice) error {
	key := n.Event.Identity
	b.mu.Lock()
	if n.Title != "" {
		b.labels[key.ParticipantID] = n.Title
	}
	c := b.conversation(key.ConversationID, n.Event.ConversationTitle)

	switch n.Event.To {
	case models.StatePeeking, models.StateTyping, models.StateIdle:
		c.steady[key.ParticipantID] = n.Event.To
	case models.StateJoined:
		c.present[key.ParticipantID] = struct{}{}
	case models.StateLeft:
		delete(c.present, key.ParticipantID)
		delete(c.steady, key.ParticipantID)
	}
	b.pruneLocked(key.ConversationID)
	b.mu.Unlock()

	b.notify()
	return nil
}

// Clear removes a steady state that ended.
func (b *Board) Clear(_ context.Context, cl models.Clearance) error {
	b.mu.Lock()
	c, ok := b.convs[cl.Identity.ConversationID]
	if !ok || c.steady[cl.Identity.ParticipantID] != cl.State {
		b.mu.Unlock()
		return nil
	}
	delete(c.steady, cl.Identity.ParticipantID)
	b.pruneLocked(cl.Identity.ConversationID)
	b.mu.Unlock()

	b.notify()
	return nil
}

// Reset empties the board, e.g. when the indicator channel is disabled.
func (b *Board) Reset() {
	b.mu.Lock()
	b.convs = make(map[string]*boardConversation)
	b.mu.Unlock()

	b.notify()
}

func (b *Board) pruneLocked(id string) {
	if c, ok := b.convs[id]; ok && len(c.steady) == 0 && len(c.present) == 0 {
		delete(b.convs, id)
	}
}

// Snapshot returns the board's content sorted by conversation id, with
// participants labeled and sorted by label.
func (b *Board) Snapshot() []models.ConversationIndicators {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := lo.Keys(b.convs)
	sort.Strings(ids)

	out := make([]models.ConversationIndicators, 0, len(ids))
	for _, id := range ids {
		c := b.convs[id]
		ind := models.ConversationIndicators{ConversationID: id, Title: c.title}
		if ind.Title == "" {
			ind.Title = models.PlaceholderTitle
		}
		for pid, state := range c.steady {
			label := b.label(pid)
			switch state {
			case models.StatePeeking:
				ind.Peeking = append(ind.Peeking, label)
			case models.StateTyping:
				ind.Typing = append(ind.Typing, label)
			case models.StateIdle:
				ind.Idle = append(ind.Idle, label)
			}
		}
		ind.Present = lo.Map(lo.Keys(c.present), func(pid string, _ int) string { return b.label(pid) })
		for _, list := range [][]string{ind.Peeking, ind.Typing, ind.Idle, ind.Present} {
			sort.Strings(list)
		}
		if len(ind.Present) == 0 {
			ind.Present = nil
		}
		out = append(out, ind)
	}
	return out
}

func (b *Board) label(pid string) string {
	if l, ok := b.labels[pid]; ok {
		return l
	}
	return pid
}

func (b *Board) notify() {
	b.mu.RLock()
	listeners := append([]func([]models.ConversationIndicators){}, b.onChange...)
	b.mu.RUnlock()
	if len(listeners) == 0 {
		return
	}
	snap := b.Snapshot()
	for _, fn := range listeners {
		fn(snap)
	}
}
