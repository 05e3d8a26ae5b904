package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DirectConversation is the conversation id used for one-to-one chats that
// the host reports without a conversation id.
const DirectConversation = "direct"

// PlaceholderTitle is used when a conversation has no resolvable title.
const PlaceholderTitle = "your Chat"

// TypingActive is the host's sentinel for "actively typing". Any other
// typing state is treated as idle-but-focused.
const TypingActive = 1

// PresenceState classifies a participant's activity in a conversation.
type PresenceState string

const (
	StatePeeking PresenceState = "PEEKING"
	StateTyping  PresenceState = "TYPING"
	StateIdle    PresenceState = "IDLE"
	StatePresent PresenceState = "PRESENT"
	StateJoined  PresenceState = "JOINED"
	StateLeft    PresenceState = "LEFT"
)

// AllStates lists every presence state in declaration order.
var AllStates = []PresenceState{
	StatePeeking,
	StateTyping,
	StateIdle,
	StatePresent,
	StateJoined,
	StateLeft,
}

// IsSteady reports whether the state is held across ticks.
func (s PresenceState) IsSteady() bool {
	switch s {
	case StatePeeking, StateTyping, StateIdle, StatePresent:
		return true
	}
	return false
}

// IsEdge reports whether the state is emitted once on transition and never held.
func (s PresenceState) IsEdge() bool {
	return s == StateJoined || s == StateLeft
}

// Valid reports whether s is one of the known states.
func (s PresenceState) Valid() bool {
	return s.IsSteady() || s.IsEdge()
}

func (s PresenceState) String() string { return string(s) }

// ParsePresenceState parses a state name case-insensitively.
func ParsePresenceState(name string) (PresenceState, error) {
	s := PresenceState(strings.ToUpper(strings.TrimSpace(name)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown presence state %q", name)
	}
	return s, nil
}

// UnmarshalText lets PresenceState decode from JSON, YAML and TOML strings.
func (s *PresenceState) UnmarshalText(text []byte) error {
	parsed, err := ParsePresenceState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// IdentityKey identifies a participant within a conversation.
// It encodes to JSON as its String form.
type IdentityKey struct {
	ParticipantID  string
	ConversationID string
}

// NewIdentityKey builds a key, normalizing an empty conversation id to "direct".
func NewIdentityKey(participantID, conversationID string) IdentityKey {
	if conversationID == "" {
		conversationID = DirectConversation
	}
	return IdentityKey{ParticipantID: participantID, ConversationID: conversationID}
}

// String encodes the key as "{participantId}:{conversationId}".
func (k IdentityKey) String() string {
	conv := k.ConversationID
	if conv == "" {
		conv = DirectConversation
	}
	return k.ParticipantID + ":" + conv
}

// IsDirect reports whether the key belongs to a direct conversation.
func (k IdentityKey) IsDirect() bool {
	return k.ConversationID == "" || k.ConversationID == DirectConversation
}

// ParseIdentityKey decodes the String form of a key. The participant id is
// everything before the last colon.
func ParseIdentityKey(s string) (IdentityKey, error) {
	i := strings.LastIndex(s, ":")
	if i <= 0 || i == len(s)-1 {
		return IdentityKey{}, fmt.Errorf("malformed identity key %q", s)
	}
	return NewIdentityKey(s[:i], s[i+1:]), nil
}

// MarshalText encodes the key for use as a JSON object key.
func (k IdentityKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a key produced by MarshalText.
func (k *IdentityKey) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentityKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// TypingParticipant pairs a participant with the host's typing indicator.
type TypingParticipant struct {
	ParticipantID string `json:"participant_id"`
	TypingState   int    `json:"typing_state"`
}

// ConversationSnapshot is the per-conversation part of a tick.
type ConversationSnapshot struct {
	ConversationID string              `json:"conversation_id"`
	Title          string              `json:"title,omitempty"`
	Peeking        []string            `json:"peeking,omitempty"`
	Typing         []TypingParticipant `json:"typing,omitempty"`
	Present        []string            `json:"present,omitempty"`
}

// DisplayTitle returns the title or the placeholder when it is empty.
func (c ConversationSnapshot) DisplayTitle() string {
	if strings.TrimSpace(c.Title) == "" {
		return PlaceholderTitle
	}
	return c.Title
}

// Tick is one discrete update of the presence snapshot.
type Tick struct {
	Seq           uint64                 `json:"seq,omitempty"`
	ObservedAt    time.Time              `json:"observed_at,omitempty"`
	Conversations []ConversationSnapshot `json:"conversations"`
	Profiles      map[string]Profile     `json:"profiles,omitempty"`
}

// UnmarshalJSON accepts both the canonical form and a bare conversation map
// ({"c1": {...}}) as produced by some bridges. Map form has no stable order,
// so conversations are sorted by id.
func (t *Tick) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	canonical := len(fields) == 0
	for _, key := range []string{"conversations", "seq", "observed_at", "profiles"} {
		if _, ok := fields[key]; ok {
			canonical = true
			break
		}
	}

	if canonical {
		type tickAlias Tick
		var decoded tickAlias
		if err := json.Unmarshal(data, &decoded); err != nil {
			return err
		}
		*t = Tick(decoded)
		return nil
	}

	ids := make([]string, 0, len(fields))
	for id := range fields {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	*t = Tick{Conversations: make([]ConversationSnapshot, 0, len(ids))}
	for _, id := range ids {
		var snap ConversationSnapshot
		if err := json.Unmarshal(fields[id], &snap); err != nil {
			return fmt.Errorf("conversation %s: %w", id, err)
		}
		if snap.ConversationID == "" {
			snap.ConversationID = id
		}
		t.Conversations = append(t.Conversations, snap)
	}
	return nil
}

// TransitionEvent is one meaningful change of a participant's presence.
type TransitionEvent struct {
	Identity          IdentityKey    `json:"identity"`
	From              *PresenceState `json:"from"`
	To                PresenceState  `json:"to"`
	ConversationTitle string         `json:"conversation_title"`
	Tick              uint64         `json:"tick,omitempty"`
}

// FromState returns the prior state, or "" when there was none.
func (e TransitionEvent) FromState() PresenceState {
	if e.From == nil {
		return ""
	}
	return *e.From
}

func (e TransitionEvent) String() string {
	from := "none"
	if e.From != nil {
		from = string(*e.From)
	}
	return fmt.Sprintf("%s %s->%s (%s)", e.Identity, from, e.To, e.ConversationTitle)
}

// Clearance reports that a steady state ended without a replacement.
type Clearance struct {
	Identity IdentityKey   `json:"identity"`
	State    PresenceState `json:"state"`
}

// Profile is the display identity of a participant.
type Profile struct {
	ParticipantID string `json:"participant_id" yaml:"participant_id"`
	DisplayName   string `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Username      string `json:"username,omitempty" yaml:"username,omitempty"`
	AvatarURL     string `json:"avatar_url,omitempty" yaml:"avatar_url,omitempty"`
}

// Label returns the most human-readable name available.
func (p Profile) Label() string {
	switch {
	case p.DisplayName != "":
		return p.DisplayName
	case p.Username != "":
		return p.Username
	}
	return p.ParticipantID
}
