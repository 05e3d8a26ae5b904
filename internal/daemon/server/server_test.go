package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/presence/internal/daemon/engine"
	"github.com/grovetools/presence/internal/daemon/store"
	"github.com/grovetools/presence/pkg/channels"
	"github.com/grovetools/presence/pkg/models"
	"github.com/grovetools/presence/pkg/presence"
)

func newTestServer(t *testing.T) (*httptest.Server, *engine.Runner) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	entry := logrus.NewEntry(logger)

	disp := presence.NewDispatcher(presence.NewPolicy(), nil, entry)
	board := channels.NewBoard()
	disp.Register(presence.ChannelIndicator, board)

	runner := engine.New(store.New(), presence.NewEngine(entry), disp, entry)
	runner.SetBoard(board)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.Start(ctx)
		close(done)
	}()

	s := New(entry)
	s.SetRunner(runner)
	s.SetRunningConfig(&models.RunningConfig{Socket: "/tmp/presenced.sock", Sources: []string{"push"}})
	srv := httptest.NewServer(s.Handler())

	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return srv, runner
}

const peekTick = `{"conversations":[{"conversation_id":"c1","title":"Book Club","peeking":["u1"]}]}`

func getState(t *testing.T, base string) models.DaemonState {
	t.Helper()
	resp, err := http.Get(base + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	var st models.DaemonState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	return st
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestPushTickAndState(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/tick", "application/json", strings.NewReader(peekTick))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool { return getState(t, srv.URL).LastTick == 1 }, 5*time.Second, 10*time.Millisecond)

	st := getState(t, srv.URL)
	assert.Equal(t, models.StatePeeking, st.Engine.Steady["u1:c1"])
	require.Len(t, st.Indicators, 1)
	assert.Equal(t, []string{"u1"}, st.Indicators[0].Peeking)

	resp, err = http.Post(srv.URL+"/api/tick", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/tick")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestReset(t *testing.T) {
	srv, runner := newTestServer(t)
	require.NoError(t, runner.Submit(context.Background(), models.Tick{Conversations: []models.ConversationSnapshot{{ConversationID: "c1", Peeking: []string{"u1"}}}}))
	require.Eventually(t, func() bool { return len(getState(t, srv.URL).Engine.Steady) == 1 }, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Post(srv.URL+"/api/reset", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool { return len(getState(t, srv.URL).Engine.Steady) == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.Empty(t, getState(t, srv.URL).Indicators)
}

func TestPolicyEndpoints(t *testing.T) {
	srv, runner := newTestServer(t)

	body := `{"channels":{"notify":false},"ignored_names":["Ada"],"allowed_types":["PEEKING"],"notify_cooldown":"1m"}`
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/policy", strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var settings presence.Settings
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&settings))
	assert.Equal(t, []string{"Ada"}, settings.IgnoredNames)
	assert.Equal(t, []models.PresenceState{models.StatePeeking}, settings.AllowedTypes)
	assert.False(t, settings.Channels[presence.ChannelNotify])
	assert.True(t, settings.Channels[presence.ChannelLog])
	assert.Equal(t, "1m0s", settings.NotifyCooldown)

	assert.True(t, runner.Policy().IsIgnored("Ada"))

	resp2, err := http.Get(srv.URL + "/api/policy")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var got presence.Settings
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&got))
	assert.Equal(t, settings, got)
}

func TestGetConfig(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/config")
	require.NoError(t, err)
	defer resp.Body.Close()

	var cfg models.RunningConfig
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cfg))
	assert.Equal(t, "/tmp/presenced.sock", cfg.Socket)
	assert.Equal(t, []string{"push"}, cfg.Sources)
}

func TestStream(t *testing.T) {
	srv, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 20)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if data, ok := strings.CutPrefix(scanner.Text(), "data: "); ok {
				lines <- data
			}
		}
		close(lines)
	}()

	next := func() models.StreamUpdate {
		t.Helper()
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stream closed")
			var u models.StreamUpdate
			require.NoError(t, json.Unmarshal([]byte(line), &u))
			return u
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for stream update")
		}
		return models.StreamUpdate{}
	}

	assert.Equal(t, "initial", next().UpdateType)

	resp2, err := http.Post(srv.URL+"/api/tick", "application/json", strings.NewReader(peekTick))
	require.NoError(t, err)
	resp2.Body.Close()

	u := next()
	require.Equal(t, "events", u.UpdateType)
	require.Len(t, u.Events, 1)
	assert.Equal(t, models.StatePeeking, u.Events[0].To)
	assert.Equal(t, "Book Club", u.Events[0].ConversationTitle)

	u = next()
	assert.Equal(t, "indicators", u.UpdateType)
	require.Len(t, u.Indicators, 1)
}
