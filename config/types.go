package config

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/grovetools/presence/pkg/channels"
	"github.com/grovetools/presence/pkg/presence"
)

// Config is the presence configuration, usually read from presence.yml.
type Config struct {
	Version       string              `yaml:"version" json:"version" jsonschema:"description=Configuration version (e.g. '1')"`
	PresenceLog   PresenceLogConfig   `yaml:"presence_log" json:"presence_log" jsonschema:"description=Presence log channel"`
	Notifications NotificationsConfig `yaml:"notifications" json:"notifications" jsonschema:"description=Desktop and push notification channel"`
	Ntfy          NtfyConfig          `yaml:"ntfy" json:"ntfy" jsonschema:"description=ntfy push notifications"`
	Indicators    IndicatorsConfig    `yaml:"indicators" json:"indicators" jsonschema:"description=Indicator board channel"`
	IgnoredNames  NameList            `yaml:"ignored_names,omitempty" json:"ignored_names,omitempty" jsonschema:"description=Display names or usernames or conversation titles that never produce effects"`
	Sources       SourcesConfig       `yaml:"sources" json:"sources" jsonschema:"description=Where the daemon reads snapshots from"`
	Daemon        DaemonConfig        `yaml:"daemon" json:"daemon" jsonschema:"description=Configuration for the presence daemon (presenced)"`

	// Extensions captures all other top-level keys, e.g. "logging".
	Extensions map[string]interface{} `yaml:",inline" json:"-" jsonschema:"-"`
}

// PresenceLogConfig configures the log channel.
type PresenceLogConfig struct {
	Enabled       bool     `yaml:"enabled" json:"enabled"`
	ShowTimestamp bool     `yaml:"show_timestamp" json:"show_timestamp" jsonschema:"description=Prefix lines with a local timestamp"`
	Types         TypeList `yaml:"types,omitempty" json:"types,omitempty" jsonschema:"description=Presence types that are logged and notified; omit for all"`
}

// NotificationsConfig configures the notify channel.
type NotificationsConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Desktop  bool   `yaml:"desktop" json:"desktop" jsonschema:"description=Send desktop notifications (notify-send or osascript)"`
	Cooldown string `yaml:"cooldown,omitempty" json:"cooldown,omitempty" jsonschema:"description=Minimum time between notifications for the same participant and state (e.g. 30s)"`
}

// NtfyConfig configures ntfy push notifications, delivered on the notify channel.
type NtfyConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Server   string `yaml:"server,omitempty" json:"server,omitempty" jsonschema:"description=ntfy server URL"`
	Topic    string `yaml:"topic,omitempty" json:"topic,omitempty"`
	Priority int    `yaml:"priority,omitempty" json:"priority,omitempty" jsonschema:"minimum=1,maximum=5"`
	ClickURL string `yaml:"click_url,omitempty" json:"click_url,omitempty" jsonschema:"description=URL opened on click; {conversation_id} is replaced"`
}

// IndicatorsConfig configures the indicator board.
type IndicatorsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// SourcesConfig lists the snapshot collectors. Ticks pushed over the daemon
// API are always accepted.
type SourcesConfig struct {
	File      *FileSourceConfig      `yaml:"file,omitempty" json:"file,omitempty"`
	WebSocket *WebSocketSourceConfig `yaml:"websocket,omitempty" json:"websocket,omitempty"`
}

// FileSourceConfig reads ticks from a JSONL file.
type FileSourceConfig struct {
	Path      string `yaml:"path" json:"path"`
	Follow    bool   `yaml:"follow" json:"follow" jsonschema:"description=Keep reading as the file grows"`
	FromStart bool   `yaml:"from_start" json:"from_start" jsonschema:"description=Replay existing lines before following"`
}

// WebSocketSourceConfig reads ticks from a websocket bridge.
type WebSocketSourceConfig struct {
	URL     string            `yaml:"url" json:"url"`
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// DaemonConfig configures presenced.
type DaemonConfig struct {
	Socket       string `yaml:"socket,omitempty" json:"socket,omitempty"`
	ProfileCache string `yaml:"profile_cache,omitempty" json:"profile_cache,omitempty"`
	EmitTimeout  string `yaml:"emit_timeout,omitempty" json:"emit_timeout,omitempty" jsonschema:"description=Per-emit timeout for notification channels (e.g. 5s)"`
}

// NameList is a list of names written either as a YAML sequence or as a
// JSON-encoded string array. A string that does not parse yields an empty
// list and is reported by Config.Warnings.
type NameList struct {
	Names []string
	err   error
}

// UnmarshalYAML accepts a sequence or a JSON string.
func (l *NameList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		l.Names, l.err = decodeJSONList(node.Value)
		return nil
	}
	return node.Decode(&l.Names)
}

// MarshalYAML writes the list as a sequence.
func (l NameList) MarshalYAML() (interface{}, error) { return l.Names, nil }

// MarshalJSON writes the list as an array.
func (l NameList) MarshalJSON() ([]byte, error) { return json.Marshal(l.Names) }

// IsZero lets omitempty drop an empty list.
func (l NameList) IsZero() bool { return len(l.Names) == 0 }

// TypeList is a list of presence type names. Like NameList it may be a JSON
// string; a list that does not parse means all types.
type TypeList struct {
	Names []string
	err   error
}

// UnmarshalYAML accepts a sequence or a JSON string.
func (l *TypeList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		l.Names, l.err = decodeJSONList(node.Value)
		return nil
	}
	return node.Decode(&l.Names)
}

// MarshalYAML writes the list as a sequence.
func (l TypeList) MarshalYAML() (interface{}, error) { return l.Names, nil }

// MarshalJSON writes the list as an array.
func (l TypeList) MarshalJSON() ([]byte, error) { return json.Marshal(l.Names) }

// IsZero lets omitempty drop an unset list.
func (l TypeList) IsZero() bool { return l.Names == nil }

// JSONSchema describes both lists as an optional array of strings.
func (NameList) JSONSchema() *jsonschema.Schema { return stringListSchema() }

// JSONSchema describes both lists as an optional array of strings.
func (TypeList) JSONSchema() *jsonschema.Schema { return stringListSchema() }

func stringListSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		AnyOf: []*jsonschema.Schema{
			{Type: "array", Items: &jsonschema.Schema{Type: "string"}},
			{Type: "null"},
		},
	}
}

func decodeJSONList(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, fmt.Errorf("not a JSON string array: %q", raw)
	}
	return names, nil
}

// knownExtensions are top-level sections decoded with UnmarshalExtension.
var knownExtensions = map[string]bool{"logging": true}

// Default returns the configuration used when no file is found: every
// channel on, desktop notifications on, ntfy off.
func Default() *Config {
	c := &Config{
		PresenceLog:   PresenceLogConfig{Enabled: true},
		Notifications: NotificationsConfig{Enabled: true, Desktop: true},
		Indicators:    IndicatorsConfig{Enabled: true},
	}
	c.SetDefaults()
	return c
}

// SetDefaults fills values left empty by the file.
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = "1"
	}
	if c.Ntfy.Server == "" {
		c.Ntfy.Server = channels.DefaultNtfyServer
	}
	if c.Ntfy.Priority == 0 {
		c.Ntfy.Priority = channels.DefaultNtfyPriority
	}
}

// Warnings lists values that were ignored in favor of permissive defaults.
func (c *Config) Warnings() []string {
	var out []string
	if c.IgnoredNames.err != nil {
		out = append(out, fmt.Sprintf("ignored_names: %v; ignoring nobody", c.IgnoredNames.err))
	}
	if c.PresenceLog.Types.err != nil {
		out = append(out, fmt.Sprintf("presence_log.types: %v; allowing all types", c.PresenceLog.Types.err))
	} else if _, err := presence.StatesFromNames(c.PresenceLog.Types.Names); err != nil {
		out = append(out, fmt.Sprintf("presence_log.types: %v", err))
	}
	for _, key := range lo.Keys(c.Extensions) {
		if !knownExtensions[key] {
			out = append(out, fmt.Sprintf("unknown top-level key %q", key))
		}
	}
	sort.Strings(out)
	return out
}

// UnmarshalExtension decodes a top-level section not modeled by Config, such
// as "logging", into target. A missing section leaves target untouched.
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}
	return nil
}
