package models

import "time"

// EngineState is a point-in-time copy of the transition engine's memory.
type EngineState struct {
	Steady  map[string]PresenceState `json:"steady"`  // keyed by IdentityKey.String()
	Present []string                 `json:"present"` // tracked-present keys in tracking order
	Dropped uint64                   `json:"dropped"`
}

// ConversationIndicators is what the indicator board shows for one conversation.
type ConversationIndicators struct {
	ConversationID string   `json:"conversation_id"`
	Title          string   `json:"title"`
	Peeking        []string `json:"peeking,omitempty"`
	Typing         []string `json:"typing,omitempty"`
	Idle           []string `json:"idle,omitempty"`
	Present        []string `json:"present,omitempty"`
}

// Empty reports whether the conversation has nothing to show.
func (c ConversationIndicators) Empty() bool {
	return len(c.Peeking)+len(c.Typing)+len(c.Idle)+len(c.Present) == 0
}

// DaemonState is returned by the daemon's /api/state endpoint.
type DaemonState struct {
	LastTick   uint64                   `json:"last_tick"`
	LastTickAt time.Time                `json:"last_tick_at,omitempty"`
	Ticks      uint64                   `json:"ticks"`
	Events     uint64                   `json:"events"`
	Tracking   bool                     `json:"tracking"`
	Engine     EngineState              `json:"engine"`
	Indicators []ConversationIndicators `json:"indicators"`
}

// StreamUpdate is one message on the daemon's SSE stream.
type StreamUpdate struct {
	UpdateType string                   `json:"update_type"` // "initial", "events", "indicators", "reset", "config_reload"
	Source     string                   `json:"source,omitempty"`
	Tick       uint64                   `json:"tick,omitempty"`
	Events     []TransitionEvent        `json:"events,omitempty"`
	Indicators []ConversationIndicators `json:"indicators,omitempty"`
	ConfigFile string                   `json:"config_file,omitempty"`
}

// RunningConfig describes the configuration the daemon is running with. It is
// returned by the daemon's /api/config endpoint.
type RunningConfig struct {
	ConfigFile string          `json:"config_file,omitempty"`
	Socket     string          `json:"socket"`
	Sources    []string        `json:"sources"`
	Channels   map[string]bool `json:"channels"`
	StartedAt  time.Time       `json:"started_at"`
	Version    string          `json:"version,omitempty"`
}
