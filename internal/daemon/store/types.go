// Package store is the presence daemon's single subscription point: it holds
// the latest tick bookkeeping and indicator board and fans updates out to
// every listener.
package store

import (
	"time"

	"github.com/grovetools/presence/pkg/models"
)

// State is the daemon's world view outside the transition engine.
type State struct {
	LastTick   uint64                          `json:"last_tick"`
	LastTickAt time.Time                       `json:"last_tick_at"`
	Ticks      uint64                          `json:"ticks"`
	Events     uint64                          `json:"events"`
	Tracking   bool                            `json:"tracking"`
	Indicators []models.ConversationIndicators `json:"indicators"`
}

// UpdateType defines what kind of data changed.
type UpdateType string

const (
	UpdateTick         UpdateType = "tick"
	UpdateEvents       UpdateType = "events"
	UpdateIndicators   UpdateType = "indicators"
	UpdateReset        UpdateType = "reset"
	UpdateConfigReload UpdateType = "config_reload"
)

// Update represents a change to the state.
type Update struct {
	Type    UpdateType
	Source  string // collector or component that produced the update
	Tick    uint64
	Payload interface{}
}

// StreamUpdate converts an update to its wire form. Tick updates are not
// streamed and return false.
func (u Update) StreamUpdate() (models.StreamUpdate, bool) {
	out := models.StreamUpdate{
		UpdateType: string(u.Type),
		Source:     u.Source,
		Tick:       u.Tick,
	}
	switch u.Type {
	case UpdateEvents:
		events, _ := u.Payload.([]models.TransitionEvent)
		out.Events = events
	case UpdateIndicators:
		indicators, _ := u.Payload.([]models.ConversationIndicators)
		out.Indicators = indicators
	case UpdateConfigReload:
		file, _ := u.Payload.(string)
		out.ConfigFile = file
	case UpdateReset:
	default:
		return models.StreamUpdate{}, false
	}
	return out, true
}
