package watch

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/grovetools/presence/pkg/models"
	"github.com/grovetools/presence/pkg/presence"
	"github.com/grovetools/presence/tui/theme"
)

// View renders the TUI.
func (m Model) View() string {
	if !m.ready {
		return "Connecting..."
	}
	t := theme.DefaultTheme

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderBoard())
	b.WriteString("\n")
	b.WriteString(t.Muted.Render(strings.Repeat("─", max(m.width, 1))))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderHeader() string {
	t := theme.DefaultTheme
	state := t.Success.Render("● live")
	if !m.connected {
		state = t.Error.Render("● disconnected")
	}
	header := fmt.Sprintf("%s  %s  %s",
		t.Header.Render("presence"),
		state,
		t.Muted.Render(fmt.Sprintf("tick %d", m.lastTick)))
	if m.status != "" {
		header += "  " + t.Muted.Render(m.status)
	}
	return header
}

// boardLines renders one line per conversation.
func (m Model) boardLines() []string {
	t := theme.DefaultTheme
	if len(m.board) == 0 {
		return []string{t.Muted.Render("Nobody is around.")}
	}

	lines := make([]string, 0, len(m.board))
	for _, c := range m.board {
		var parts []string
		add := func(state models.PresenceState, badge string, names []string) {
			if len(names) == 0 {
				return
			}
			parts = append(parts, t.State(state).Render(badge+" "+strings.Join(names, ", ")))
		}
		add(models.StatePeeking, "👀", c.Peeking)
		add(models.StateTyping, "✎", c.Typing)
		add(models.StateIdle, "…", c.Idle)
		add(models.StatePresent, "●", c.Present)
		lines = append(lines, fmt.Sprintf("%s  %s", t.Bold.Render(c.Title), strings.Join(parts, "  ")))
	}
	return lines
}

func (m Model) renderBoard() string {
	return lipgloss.JoinVertical(lipgloss.Left, m.boardLines()...)
}

func (m Model) renderFeed() string {
	t := theme.DefaultTheme
	if len(m.feed) == 0 {
		return t.Muted.Render("Waiting for transitions...")
	}
	lines := make([]string, 0, len(m.feed))
	for _, e := range m.feed {
		action, ok := presence.Action(e.event.To, e.event.ConversationTitle)
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %s %s",
			t.Muted.Render(e.at.Format("15:04:05")),
			t.State(e.event.To).Render(e.event.Identity.ParticipantID),
			action))
	}
	return strings.Join(lines, "\n")
}

// feedHeight is what is left for the feed below the header, board, divider
// and help line.
func (m Model) feedHeight() int {
	used := 1 + len(m.boardLines()) + 1 + 1
	if m.help.ShowAll {
		used += 5
	} else {
		used++
	}
	if h := m.height - used; h > 3 {
		return h
	}
	return 3
}
