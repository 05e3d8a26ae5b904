package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/presence/errors"
	"github.com/grovetools/presence/pkg/models"
	"github.com/grovetools/presence/pkg/paths"
	"github.com/grovetools/presence/pkg/presence"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "1", cfg.Version)
	assert.True(t, cfg.PresenceLog.Enabled)
	assert.True(t, cfg.Notifications.Enabled)
	assert.True(t, cfg.Notifications.Desktop)
	assert.True(t, cfg.Indicators.Enabled)
	assert.False(t, cfg.Ntfy.Enabled)
	assert.Equal(t, "https://ntfy.sh", cfg.Ntfy.Server)
	assert.Equal(t, 5, cfg.Ntfy.Priority)
	require.NoError(t, cfg.Validate())

	s := cfg.PolicySettings()
	assert.Nil(t, s.AllowedTypes, "no types means all types")
	assert.Empty(t, s.IgnoredNames)
	assert.True(t, s.Channels[presence.ChannelIndicator])
}

func TestLoadFromBytes(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(`
version: "1"
presence_log:
  enabled: true
  show_timestamp: true
  types: [peeking, TYPING]
notifications:
  enabled: false
  cooldown: 30s
ntfy:
  enabled: true
  topic: my-topic
  click_url: "https://example.com/c/{conversation_id}"
indicators:
  enabled: true
ignored_names: [Ada, "Book Club"]
sources:
  file:
    path: /tmp/ticks.jsonl
    follow: true
daemon:
  emit_timeout: 2s
logging:
  level: debug
`))
	require.NoError(t, err)

	assert.True(t, cfg.PresenceLog.ShowTimestamp)
	assert.Equal(t, []string{"Ada", "Book Club"}, cfg.IgnoredNames.Names)
	assert.Equal(t, "my-topic", cfg.Ntfy.Topic)
	assert.Equal(t, "https://ntfy.sh", cfg.Ntfy.Server)
	require.NotNil(t, cfg.Sources.File)
	assert.True(t, cfg.Sources.File.Follow)
	assert.Nil(t, cfg.Sources.WebSocket)
	assert.Equal(t, "2s", cfg.Daemon.EmitTimeout)
	assert.Equal(t, 2*time.Second, cfg.EmitTimeout())
	assert.Empty(t, cfg.Warnings())

	s := cfg.PolicySettings()
	assert.False(t, s.Channels[presence.ChannelNotify])
	assert.True(t, s.Channels[presence.ChannelLog])
	assert.Equal(t, []models.PresenceState{models.StatePeeking, models.StateTyping}, s.AllowedTypes)
	assert.Equal(t, "30s", s.NotifyCooldown)

	var logCfg struct {
		Level string `yaml:"level"`
	}
	require.NoError(t, cfg.UnmarshalExtension("logging", &logCfg))
	assert.Equal(t, "debug", logCfg.Level)

	var missing struct{ Level string }
	require.NoError(t, cfg.UnmarshalExtension("nope", &missing))
	assert.Empty(t, missing.Level)
}

func TestJSONStringLists(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(`
ignored_names: '["Ada", "Grace"]'
presence_log:
  enabled: true
  types: '["PEEKING"]'
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"Ada", "Grace"}, cfg.IgnoredNames.Names)
	assert.Equal(t, []models.PresenceState{models.StatePeeking}, cfg.PolicySettings().AllowedTypes)
	assert.Empty(t, cfg.Warnings())
}

func TestMalformedListsFailOpen(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(`
ignored_names: 'Ada, Grace'
presence_log:
  enabled: true
  types: '[PEEKING'
`))
	require.NoError(t, err)

	s := cfg.PolicySettings()
	assert.Empty(t, s.IgnoredNames)
	assert.Nil(t, s.AllowedTypes)

	warnings := cfg.Warnings()
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "ignored_names")
	assert.Contains(t, warnings[1], "presence_log.types")
}

func TestWarnings(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(`
presence_log:
  enabled: true
  types: [PEEKING, SNEEZING]
presense_log:
  enabled: false
`))
	require.NoError(t, err)
	assert.Equal(t, []models.PresenceState{models.StatePeeking}, cfg.PolicySettings().AllowedTypes)
	assert.Equal(t, []string{
		`presence_log.types: unknown presence types [SNEEZING]`,
		`unknown top-level key "presense_log"`,
	}, cfg.Warnings())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{"defaults", ``, false},
		{"ntfy without topic", "ntfy:\n  enabled: true\n", true},
		{"ntfy bad server", "ntfy:\n  enabled: true\n  topic: t\n  server: ftp://x\n", true},
		{"priority too high", "ntfy:\n  priority: 9\n", true},
		{"bad cooldown", "notifications:\n  enabled: true\n  cooldown: soon\n", true},
		{"negative timeout", "daemon:\n  emit_timeout: -1s\n", true},
		{"file without path", "sources:\n  file:\n    follow: true\n", true},
		{"websocket http url", "sources:\n  websocket:\n    url: http://localhost:8080\n", true},
		{"websocket ok", "sources:\n  websocket:\n    url: ws://localhost:8080/presence\n", false},
		{"wrong type", "indicators:\n  enabled: sometimes\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.yaml))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			code := errors.GetCode(err)
			assert.Contains(t, []errors.ErrorCode{errors.ErrCodeConfigValidation, errors.ErrCodeConfigInvalid}, code)
		})
	}
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "presence.yml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigNotFound))
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "presence.toml", `
version = "1"
ignored_names = ["Ada"]

[presence_log]
enabled = true
types = ["IDLE"]

[ntfy]
enabled = true
topic = "t"
priority = 3

[logging]
level = "warn"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ada"}, cfg.IgnoredNames.Names)
	assert.Equal(t, 3, cfg.Ntfy.Priority)
	assert.True(t, cfg.Notifications.Enabled, "unset sections keep defaults")
	assert.Equal(t, []models.PresenceState{models.StateIdle}, cfg.PolicySettings().AllowedTypes)

	var logCfg struct {
		Level string `yaml:"level"`
	}
	require.NoError(t, cfg.UnmarshalExtension("logging", &logCfg))
	assert.Equal(t, "warn", logCfg.Level)
}

func TestLoadExpandsEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "PRESENCE_TEST_TOPIC=from-dotenv\nPRESENCE_TEST_SERVER=https://dotenv.example\n")
	t.Setenv("PRESENCE_TEST_SERVER", "https://env.example")
	path := writeFile(t, dir, "presence.yml", `
ntfy:
  enabled: true
  topic: ${PRESENCE_TEST_TOPIC}
  server: ${PRESENCE_TEST_SERVER}
  click_url: ${PRESENCE_TEST_UNSET:-https://fallback.example}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Ntfy.Topic)
	assert.Equal(t, "https://env.example", cfg.Ntfy.Server)
	assert.Equal(t, "https://fallback.example", cfg.Ntfy.ClickURL)
}

func TestLoadMergesOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "presence.yml", `
presence_log:
  enabled: true
  show_timestamp: true
ignored_names: [Ada]
`)
	writeFile(t, dir, "presence.override.yml", `
presence_log:
  enabled: false
ignored_names: [Grace]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.PresenceLog.Enabled)
	assert.True(t, cfg.PresenceLog.ShowTimestamp, "nested keys merge")
	assert.Equal(t, []string{"Grace"}, cfg.IgnoredNames.Names, "lists are replaced")
}

func TestResolve(t *testing.T) {
	home := t.TempDir()
	t.Setenv(paths.HomeEnv, home)
	t.Setenv(ConfigEnv, "")
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(wd) })

	cfg, path, err := Resolve("")
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, Default(), cfg)

	require.NoError(t, os.MkdirAll(paths.ConfigDir(), 0o755))
	want := writeFile(t, paths.ConfigDir(), "presence.yaml", "ignored_names: [Ada]\n")
	cfg, path, err = Resolve("")
	require.NoError(t, err)
	assert.Equal(t, want, path)
	assert.Equal(t, []string{"Ada"}, cfg.IgnoredNames.Names)

	explicit := writeFile(t, t.TempDir(), "custom.yml", "ignored_names: [Grace]\n")
	t.Setenv(ConfigEnv, explicit)
	cfg, path, err = Resolve("")
	require.NoError(t, err)
	assert.Equal(t, explicit, path)
	assert.Equal(t, []string{"Grace"}, cfg.IgnoredNames.Names)
}

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)
	s := string(data)
	assert.Contains(t, s, `"presence_log"`)
	assert.Contains(t, s, `"ignored_names"`)
	assert.NotContains(t, s, `"Extensions"`)
	assert.NotContains(t, s, `"Names"`)
}

func TestMergeMaps(t *testing.T) {
	base := map[string]interface{}{
		"a": 1,
		"n": map[string]interface{}{"x": 1, "y": 2},
	}
	override := map[string]interface{}{
		"b": 2,
		"n": map[string]interface{}{"y": 3},
	}
	got := mergeMaps(base, override)
	assert.Equal(t, map[string]interface{}{
		"a": 1,
		"b": 2,
		"n": map[string]interface{}{"x": 1, "y": 3},
	}, got)
	assert.Equal(t, 2, base["n"].(map[string]interface{})["y"], "base is not modified")
}
