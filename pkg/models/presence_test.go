package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityKeyString(t *testing.T) {
	assert.Equal(t, "u1:c1", NewIdentityKey("u1", "c1").String())
	assert.Equal(t, "u1:direct", NewIdentityKey("u1", "").String())
	assert.Equal(t, "u1:direct", IdentityKey{ParticipantID: "u1"}.String())
	assert.True(t, IdentityKey{ParticipantID: "u1"}.IsDirect())
	assert.False(t, NewIdentityKey("u1", "c1").IsDirect())
}

func TestParseIdentityKey(t *testing.T) {
	tests := []struct {
		in      string
		want    IdentityKey
		wantErr bool
	}{
		{in: "u1:c1", want: IdentityKey{ParticipantID: "u1", ConversationID: "c1"}},
		{in: "u1:direct", want: IdentityKey{ParticipantID: "u1", ConversationID: DirectConversation}},
		{in: "org:u1:c1", want: IdentityKey{ParticipantID: "org:u1", ConversationID: "c1"}},
		{in: "u1", wantErr: true},
		{in: ":c1", wantErr: true},
		{in: "u1:", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseIdentityKey(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestIdentityKeyAsMapKey(t *testing.T) {
	in := map[IdentityKey]PresenceState{
		NewIdentityKey("u1", "c1"): StatePeeking,
		NewIdentityKey("u2", ""):   StateTyping,
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"u1:c1":"PEEKING","u2:direct":"TYPING"}`, string(data))

	var out map[IdentityKey]PresenceState
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)

	assert.Error(t, json.Unmarshal([]byte(`{"nocolon":"PEEKING"}`), &out))
}

func TestParsePresenceState(t *testing.T) {
	s, err := ParsePresenceState(" peeking ")
	require.NoError(t, err)
	assert.Equal(t, StatePeeking, s)

	_, err = ParsePresenceState("AWAY")
	assert.Error(t, err)

	var decoded struct {
		States []PresenceState `json:"states"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"states":["typing","LEFT"]}`), &decoded))
	assert.Equal(t, []PresenceState{StateTyping, StateLeft}, decoded.States)
	assert.Error(t, json.Unmarshal([]byte(`{"states":["bogus"]}`), &decoded))
}

func TestStateKinds(t *testing.T) {
	for _, s := range AllStates {
		assert.True(t, s.Valid(), s)
		assert.NotEqual(t, s.IsSteady(), s.IsEdge(), "%s must be exactly one of steady or edge", s)
	}
	assert.True(t, StateJoined.IsEdge())
	assert.True(t, StateLeft.IsEdge())
	assert.True(t, StatePresent.IsSteady())
	assert.False(t, PresenceState("").Valid())
}

func TestTickUnmarshalCanonical(t *testing.T) {
	var tick Tick
	data := `{"seq":7,"conversations":[{"conversation_id":"c1","title":"Book Club","peeking":["u1"],"typing":[{"participant_id":"u2","typing_state":1}]}],"profiles":{"u1":{"participant_id":"u1","display_name":"Ada"}}}`
	require.NoError(t, json.Unmarshal([]byte(data), &tick))

	assert.Equal(t, uint64(7), tick.Seq)
	require.Len(t, tick.Conversations, 1)
	assert.Equal(t, "c1", tick.Conversations[0].ConversationID)
	assert.Equal(t, []string{"u1"}, tick.Conversations[0].Peeking)
	assert.Equal(t, []TypingParticipant{{ParticipantID: "u2", TypingState: TypingActive}}, tick.Conversations[0].Typing)
	assert.Equal(t, "Ada", tick.Profiles["u1"].Label())
}

func TestTickUnmarshalConversationMap(t *testing.T) {
	var tick Tick
	data := `{"c2":{"present":["u3"]},"c1":{"title":"Book Club","peeking":["u1"]}}`
	require.NoError(t, json.Unmarshal([]byte(data), &tick))

	require.Len(t, tick.Conversations, 2)
	assert.Equal(t, "c1", tick.Conversations[0].ConversationID)
	assert.Equal(t, "Book Club", tick.Conversations[0].Title)
	assert.Equal(t, "c2", tick.Conversations[1].ConversationID)
	assert.Equal(t, []string{"u3"}, tick.Conversations[1].Present)

	assert.Error(t, json.Unmarshal([]byte(`{"c1":{"peeking":"u1"}}`), &tick))
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &tick))

	require.NoError(t, json.Unmarshal([]byte(`{}`), &tick))
	assert.Empty(t, tick.Conversations)
}

func TestTransitionEvent(t *testing.T) {
	ev := TransitionEvent{Identity: NewIdentityKey("u1", "c1"), To: StatePeeking, ConversationTitle: "Book Club"}
	assert.Equal(t, PresenceState(""), ev.FromState())
	assert.Equal(t, "u1:c1 none->PEEKING (Book Club)", ev.String())

	from := StateTyping
	ev.From = &from
	assert.Equal(t, StateTyping, ev.FromState())
	assert.Equal(t, "u1:c1 TYPING->PEEKING (Book Club)", ev.String())

	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"identity":"u1:c1"`)
}

func TestDisplayTitle(t *testing.T) {
	assert.Equal(t, "Book Club", ConversationSnapshot{Title: "Book Club"}.DisplayTitle())
	assert.Equal(t, PlaceholderTitle, ConversationSnapshot{}.DisplayTitle())
	assert.Equal(t, PlaceholderTitle, ConversationSnapshot{Title: "  "}.DisplayTitle())
}

func TestProfileLabel(t *testing.T) {
	assert.Equal(t, "Ada", Profile{ParticipantID: "u1", DisplayName: "Ada", Username: "ada"}.Label())
	assert.Equal(t, "ada", Profile{ParticipantID: "u1", Username: "ada"}.Label())
	assert.Equal(t, "u1", Profile{ParticipantID: "u1"}.Label())
}
