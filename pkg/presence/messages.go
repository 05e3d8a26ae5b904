package presence

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/grovetools/presence/pkg/models"
)

var actions = map[models.PresenceState]func(title string) string{
	models.StatePeeking: func(t string) string { return "is peeking at " + t },
	models.StateTyping:  func(t string) string { return "is typing in " + t },
	models.StateIdle:    func(t string) string { return "is idle in " + t },
	models.StateJoined:  func(t string) string { return "joined " + t },
	models.StateLeft:    func(t string) string { return "left " + t },
}

// Action returns the user-facing action text for a state, e.g. "is peeking at
// Book Club". PRESENT has no action.
func Action(state models.PresenceState, title string) (string, bool) {
	fn, ok := actions[state]
	if !ok {
		return "", false
	}
	if strings.TrimSpace(title) == "" {
		title = models.PlaceholderTitle
	}
	return fn(title), true
}

// ParseIgnoreList decodes a JSON array of names. On failure it returns an
// empty list, which ignores nobody, together with the error.
func ParseIgnoreList(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, fmt.Errorf("parse ignore list: %w", err)
	}
	return names, nil
}

// ParseTypeAllowList decodes a JSON array of state names. An empty string,
// a parse failure or a list with no valid state yields nil, which enables
// every type. An explicit empty array enables none.
func ParseTypeAllowList(raw string) ([]models.PresenceState, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, fmt.Errorf("parse presence types: %w", err)
	}
	return StatesFromNames(names)
}

// StatesFromNames converts state names, skipping unknown ones. If names is
// non-empty but none are valid it returns nil (all types) and an error.
func StatesFromNames(names []string) ([]models.PresenceState, error) {
	if names == nil {
		return nil, nil
	}
	states := make([]models.PresenceState, 0, len(names))
	var unknown []string
	for _, name := range names {
		s, err := models.ParsePresenceState(name)
		if err != nil {
			unknown = append(unknown, name)
			continue
		}
		states = append(states, s)
	}
	if len(names) > 0 && len(states) == 0 {
		return nil, fmt.Errorf("no valid presence types in %v", names)
	}
	if len(unknown) > 0 {
		return states, fmt.Errorf("unknown presence types %v", unknown)
	}
	return states, nil
}
