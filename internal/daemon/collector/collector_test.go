package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/presence/errors"
	"github.com/grovetools/presence/internal/daemon/store"
	"github.com/grovetools/presence/pkg/models"
)

const tickLines = `# recorded session
{"conversations":[{"conversation_id":"c1","title":"Book Club","peeking":["u1"]}]}

not json
{"c2":{"present":["u2"]},"c1":{"typing":[{"participant_id":"u3","typing_state":1}]}}
{"conversations":[]}`

func TestDecodeTick(t *testing.T) {
	_, ok, err := DecodeTick("test", []byte("   "))
	assert.False(t, ok)
	assert.NoError(t, err)

	_, _, err = DecodeTick("test", []byte("{"))
	assert.True(t, errors.Is(err, errors.ErrCodeSnapshotMalformed))

	tick, ok, err := DecodeTick("test", []byte(`{"c2":{"present":["u2"]},"c1":{}}`))
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, tick.Conversations, 2)
	assert.Equal(t, "c1", tick.Conversations[0].ConversationID)
	assert.Equal(t, []string{"u2"}, tick.Conversations[1].Present)
}

func TestFileCollectorReadsToEOF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticks.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(tickLines), 0644))

	logger, hook := test.NewNullLogger()
	c := NewFileCollector(path, false, false, logrus.NewEntry(logger))

	updates := make(chan store.Update, 10)
	require.NoError(t, c.Run(context.Background(), store.New(), updates))
	close(updates)

	var ticks []models.Tick
	for u := range updates {
		assert.Equal(t, store.UpdateTick, u.Type)
		assert.Equal(t, "file", u.Source)
		ticks = append(ticks, u.Payload.(models.Tick))
	}
	require.Len(t, ticks, 3)
	assert.Equal(t, []string{"u1"}, ticks[0].Conversations[0].Peeking)
	assert.Equal(t, "c1", ticks[1].Conversations[0].ConversationID)
	assert.Empty(t, ticks[2].Conversations)

	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, "Skipping malformed tick", hook.LastEntry().Message)
}

func TestFileCollectorMissingFile(t *testing.T) {
	c := NewFileCollector(filepath.Join(t.TempDir(), "missing.jsonl"), false, false, nil)
	err := c.Scan(context.Background(), func(models.Tick) bool { return true })
	assert.True(t, errors.Is(err, errors.ErrCodeSourceFailed))
}

func TestFileCollectorScanStops(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticks.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(tickLines), 0644))

	n := 0
	c := NewFileCollector(path, false, false, nil)
	require.NoError(t, c.Scan(context.Background(), func(models.Tick) bool {
		n++
		return false
	}))
	assert.Equal(t, 1, n)
}

func TestWebSocketCollector(t *testing.T) {
	upgrader := websocket.Upgrader{}
	auth := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"conversations":[{"conversation_id":"c1","present":["u1"]}]}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`garbage`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"c9":{"peeking":["u2"]}}`))
		// Keep the connection open until the client goes away.
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := NewWebSocketCollector(url, map[string]string{"Authorization": "Bearer secret"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates := make(chan store.Update, 10)
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, store.New(), updates) }()

	var ticks []models.Tick
	for len(ticks) < 2 {
		select {
		case u := <-updates:
			assert.Equal(t, "websocket", u.Source)
			ticks = append(ticks, u.Payload.(models.Tick))
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for ticks")
		}
	}
	assert.Equal(t, "Bearer secret", <-auth)
	assert.Equal(t, "c1", ticks[0].Conversations[0].ConversationID)
	assert.Equal(t, "c9", ticks[1].Conversations[0].ConversationID)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("collector did not stop")
	}
}

func TestWebSocketCollectorRetries(t *testing.T) {
	attempts := make(chan struct{}, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts <- struct{}{}
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewWebSocketCollector("ws"+strings.TrimPrefix(srv.URL, "http"), nil, nil)
	c.minBackoff = 10 * time.Millisecond
	c.maxBackoff = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = c.Run(ctx, store.New(), make(chan store.Update)) }()
	for i := 0; i < 3; i++ {
		select {
		case <-attempts:
		case <-time.After(5 * time.Second):
			t.Fatal("collector did not retry")
		}
	}
	cancel()
}
