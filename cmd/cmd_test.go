package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/presence/config"
	"github.com/grovetools/presence/internal/daemon/server"
	"github.com/grovetools/presence/pkg/models"
	"github.com/grovetools/presence/pkg/presence"
	"github.com/grovetools/presence/testutil"
)

const ticksJSONL = `{"conversations":[{"conversation_id":"c1","title":"Book Club","typing":[{"participant_id":"u1","typing_state":1}],"present":["u1"]}],"profiles":{"u1":{"display_name":"Ada"}}}
not a tick
{"conversations":[{"conversation_id":"c1","peeking":["u1"],"present":["u1"]}]}
`

// setup isolates the command from the user's files and writes a config and
// a tick file. extra is appended to the config.
func setup(t *testing.T, extra string) (cfgPath, ticksPath string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PRESENCE_HOME", dir)
	t.Setenv(config.ConfigEnv, "")

	cfgPath = filepath.Join(dir, "presence.yml")
	cfg := "presence_log:\n  enabled: true\nnotifications:\n  enabled: false\nindicators:\n  enabled: true\n" + extra
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))

	ticksPath = filepath.Join(dir, "ticks.jsonl")
	require.NoError(t, os.WriteFile(ticksPath, []byte(ticksJSONL), 0644))
	return cfgPath, ticksPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestReplay(t *testing.T) {
	cfgPath, ticks := setup(t, "")

	out, err := run(t, "replay", ticks, "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "Ada: is typing in Book Club\nAda: is peeking at Book Club\n", out)

	out, err = run(t, "replay", ticks, "--config", cfgPath, "--board")
	require.NoError(t, err)
	assert.Contains(t, out, "Book Club (c1)")
	assert.Contains(t, out, "peeking  Ada")
}

func TestReplayJSON(t *testing.T) {
	cfgPath, ticks := setup(t, "")

	out, err := run(t, "replay", ticks, "--config", cfgPath, "--json")
	require.NoError(t, err)

	var got []models.TransitionEvent
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		var ev models.TransitionEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		got = append(got, ev)
	}
	require.Len(t, got, 2)
	assert.Equal(t, models.StateTyping, got[0].To)
	assert.Equal(t, models.StatePeeking, got[1].To)
	assert.Equal(t, "u1:c1", got[1].Identity.String())
	assert.Equal(t, "Book Club", got[1].ConversationTitle)
}

func TestReplayHonorsTypeAllowList(t *testing.T) {
	cfgPath, ticks := setup(t, "")
	require.NoError(t, os.WriteFile(cfgPath, []byte("presence_log:\n  enabled: true\n  types: [PEEKING]\nnotifications:\n  enabled: false\n"), 0644))

	out, err := run(t, "replay", ticks, "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "Ada: is peeking at Book Club\n", out)
}

func TestReplayMissingFile(t *testing.T) {
	cfgPath, _ := setup(t, "")
	_, err := run(t, "replay", filepath.Join(t.TempDir(), "missing.jsonl"), "--config", cfgPath)
	require.Error(t, err)
}

func TestConfigCommands(t *testing.T) {
	cfgPath, _ := setup(t, "ignored_names: [Ada]\n")

	out, err := run(t, "config", "show", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "# Source: "+cfgPath)
	assert.Contains(t, out, "ignored_names:")

	out, err = run(t, "config", "show", "--config", cfgPath, "--json")
	require.NoError(t, err)
	var cfg map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, []interface{}{"Ada"}, cfg["ignored_names"])

	out, err = run(t, "config", "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "Presence Configuration")

	out, err = run(t, "config", "validate", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")

	bad := filepath.Join(t.TempDir(), "presence.yml")
	require.NoError(t, os.WriteFile(bad, []byte("ntfy:\n  enabled: true\n"), 0644))
	_, err = run(t, "config", "validate", bad)
	require.Error(t, err)
}

func TestPathsJSON(t *testing.T) {
	setup(t, "")
	out, err := run(t, "paths", "--json")
	require.NoError(t, err)

	var p PathsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	home := os.Getenv("PRESENCE_HOME")
	assert.True(t, strings.HasPrefix(p.ConfigDir, home))
	assert.True(t, strings.HasPrefix(p.PidFile, home))
}

func TestApplyPolicyFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		changed bool
		check   func(t *testing.T, s presence.Settings)
		wantErr bool
	}{
		{name: "no flags", args: nil, changed: false},
		{
			name:    "channels",
			args:    []string{"--disable", "notify", "--enable", "Log"},
			changed: true,
			check: func(t *testing.T, s presence.Settings) {
				assert.False(t, s.Channels[presence.ChannelNotify])
				assert.True(t, s.Channels[presence.ChannelLog])
			},
		},
		{
			name:    "types and ignore",
			args:    []string{"--types", "peeking,TYPING", "--ignore", "Ada,Grace Hopper"},
			changed: true,
			check: func(t *testing.T, s presence.Settings) {
				assert.Equal(t, []models.PresenceState{models.StatePeeking, models.StateTyping}, s.AllowedTypes)
				assert.Equal(t, []string{"Ada", "Grace Hopper"}, s.IgnoredNames)
			},
		},
		{
			name:    "all types",
			args:    []string{"--all-types", "--cooldown", "30s"},
			changed: true,
			check: func(t *testing.T, s presence.Settings) {
				assert.Nil(t, s.AllowedTypes)
				assert.Equal(t, "30s", s.NotifyCooldown)
			},
		},
		{name: "unknown channel", args: []string{"--enable", "sms"}, wantErr: true},
		{name: "unknown type", args: []string{"--types", "SNEEZING"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewPolicyCmd()
			require.NoError(t, cmd.Flags().Parse(tt.args))
			settings := presence.Settings{AllowedTypes: []models.PresenceState{models.StateIdle}}

			changed, err := applyPolicyFlags(cmd, &settings)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.changed, changed)
			if tt.check != nil {
				tt.check(t, settings)
			}
		})
	}
}

// startDaemon serves a pipeline built from cfgPath on the configured socket.
func startDaemon(t *testing.T, cfgPath string) *pipeline {
	t.Helper()
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	p := newPipeline(cfg, pipelineOptions{LogOut: io.Discard}, testutil.Logger())

	s := server.New(p.logger)
	s.SetRunner(p.runner)
	s.SetRunningConfig(&models.RunningConfig{Socket: socketPath(cfg), Sources: []string{"push"}})

	ln, err := net.Listen("unix", socketPath(cfg))
	require.NoError(t, err)
	hs := &http.Server{Handler: s.Handler()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.runner.Start(ctx)
		close(done)
	}()
	go hs.Serve(ln)

	t.Cleanup(func() {
		hs.Close()
		cancel()
		<-done
	})
	return p
}

func TestDaemonClientCommands(t *testing.T) {
	socket := testutil.SocketPath(t)

	cfgPath, ticks := setup(t, "daemon:\n  socket: "+socket+"\n")
	p := startDaemon(t, cfgPath)

	_, err := run(t, "push", ticks, "--config", cfgPath)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return p.runner.Store().Get().Ticks == 2 }, 5*time.Second, 10*time.Millisecond)

	out, err := run(t, "board", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Book Club")
	assert.Contains(t, out, "Ada")

	out, err = run(t, "policy", "--config", cfgPath, "--disable", "notify", "--ignore", "Grace", "--json")
	require.NoError(t, err)
	var settings presence.Settings
	require.NoError(t, json.Unmarshal([]byte(out), &settings))
	assert.False(t, settings.Channels[presence.ChannelNotify])
	assert.True(t, p.policy.IsIgnored("Grace"))

	_, err = run(t, "reset", "--config", cfgPath)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(p.board.Snapshot()) == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestClientCommandsWithoutDaemon(t *testing.T) {
	cfgPath, _ := setup(t, "daemon:\n  socket: /nonexistent/presence.sock\n")
	_, err := run(t, "board", "--config", cfgPath)
	require.Error(t, err)
}
