// Package watch is the live view of the daemon: the indicator board on top
// and the feed of transitions below.
package watch

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/grovetools/presence/pkg/models"
)

// maxFeed bounds the number of transitions kept in the feed.
const maxFeed = 500

// Resetter resets the daemon's presence state.
type Resetter interface {
	Reset(ctx context.Context) error
}

type feedEntry struct {
	at    time.Time
	event models.TransitionEvent
}

// Model represents the state of the watch TUI.
type Model struct {
	keys     KeyMap
	help     help.Model
	viewport viewport.Model
	ready    bool

	updates <-chan models.StreamUpdate
	client  Resetter
	now     func() time.Time

	board     []models.ConversationIndicators
	feed      []feedEntry
	lastTick  uint64
	status    string
	connected bool
	follow    bool

	width  int
	height int
}

// New creates a watch model reading from updates. client may be nil, which
// disables the reset key.
func New(updates <-chan models.StreamUpdate, client Resetter) Model {
	return Model{
		keys:      DefaultKeyMap,
		help:      help.New(),
		updates:   updates,
		client:    client,
		now:       time.Now,
		connected: true,
		follow:    true,
	}
}

// Messages
type (
	updateMsg     models.StreamUpdate
	streamDoneMsg struct{}
	resetDoneMsg  struct{ err error }
)

// Init is the first command that will be executed.
func (m Model) Init() tea.Cmd {
	return m.waitForUpdate()
}

func (m Model) waitForUpdate() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return streamDoneMsg{}
		}
		return updateMsg(u)
	}
}

func (m Model) resetDaemon() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return resetDoneMsg{err: client.Reset(ctx)}
	}
}

// Board returns the indicator board as last received.
func (m Model) Board() []models.ConversationIndicators { return m.board }

// FeedLen returns the number of transitions in the feed.
func (m Model) FeedLen() int { return len(m.feed) }
