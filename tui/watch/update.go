package watch

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles messages and key presses.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		h := m.feedHeight()
		if !m.ready {
			m.viewport = viewport.New(msg.Width, h)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = h
		}
		m.refreshFeed()
		return m, nil

	case updateMsg:
		m.apply(msg)
		m.refreshFeed()
		return m, m.waitForUpdate()

	case streamDoneMsg:
		m.connected = false
		m.status = "Disconnected from daemon"
		return m, nil

	case resetDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Reset failed: %v", msg.err)
		} else {
			m.status = "Reset requested"
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			if m.ready {
				m.viewport.Height = m.feedHeight()
			}
			return m, nil
		case key.Matches(msg, m.keys.Reset):
			if m.client == nil || !m.connected {
				return m, nil
			}
			return m, m.resetDaemon()
		case key.Matches(msg, m.keys.Clear):
			m.feed = nil
			m.refreshFeed()
			return m, nil
		case key.Matches(msg, m.keys.Bottom):
			m.follow = true
			m.viewport.GotoBottom()
			return m, nil
		case key.Matches(msg, m.keys.Up, m.keys.PageUp):
			m.follow = false
		}
	}

	if m.ready {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
		if m.viewport.AtBottom() {
			m.follow = true
		}
	}
	return m, tea.Batch(cmds...)
}

// apply folds one stream update into the model.
func (m *Model) apply(u updateMsg) {
	if u.Tick > m.lastTick {
		m.lastTick = u.Tick
	}
	switch u.UpdateType {
	case "initial", "indicators":
		m.board = u.Indicators
	case "events":
		at := m.now()
		for _, ev := range u.Events {
			m.feed = append(m.feed, feedEntry{at: at, event: ev})
		}
		if over := len(m.feed) - maxFeed; over > 0 {
			m.feed = append(m.feed[:0:0], m.feed[over:]...)
		}
	case "reset":
		m.board = nil
		m.status = "State reset"
	case "config_reload":
		m.status = fmt.Sprintf("Config reloaded (%s)", u.ConfigFile)
	}
}

func (m *Model) refreshFeed() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderFeed())
	if m.follow {
		m.viewport.GotoBottom()
	}
}
