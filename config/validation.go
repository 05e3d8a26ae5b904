package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/grovetools/presence/errors"
	"github.com/grovetools/presence/pkg/presence"
)

// Validate checks if the configuration is valid. Problems that have a
// permissive fallback are reported by Warnings instead.
func (c *Config) Validate() error {
	if c.Ntfy.Enabled {
		if c.Ntfy.Topic == "" {
			return errors.New(errors.ErrCodeConfigValidation, "ntfy.topic cannot be empty when ntfy is enabled")
		}
		if err := validateURL("ntfy.server", c.Ntfy.Server, "http", "https"); err != nil {
			return err
		}
	}
	if c.Ntfy.Priority < 1 || c.Ntfy.Priority > 5 {
		return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("ntfy.priority must be between 1 and 5, got %d", c.Ntfy.Priority)).
			WithDetail("priority", c.Ntfy.Priority)
	}

	if err := validateDuration("notifications.cooldown", c.Notifications.Cooldown); err != nil {
		return err
	}
	if err := validateDuration("daemon.emit_timeout", c.Daemon.EmitTimeout); err != nil {
		return err
	}

	if f := c.Sources.File; f != nil && f.Path == "" {
		return errors.New(errors.ErrCodeConfigValidation, "sources.file.path cannot be empty")
	}
	if ws := c.Sources.WebSocket; ws != nil {
		if err := validateURL("sources.websocket.url", ws.URL, "ws", "wss"); err != nil {
			return err
		}
	}
	return nil
}

func validateDuration(field, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("%s must be a non-negative duration such as 30s, got %q", field, value)).
			WithDetail("field", field)
	}
	return nil
}

func validateURL(field, value string, schemes ...string) error {
	u, err := url.Parse(value)
	if err == nil && u.Host != "" {
		for _, s := range schemes {
			if u.Scheme == s {
				return nil
			}
		}
	}
	return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("%s must be a %v URL, got %q", field, schemes, value)).
		WithDetail("field", field)
}

// PolicySettings converts the file's channel, ignore, type and cooldown
// settings into the policy's form.
func (c *Config) PolicySettings() presence.Settings {
	types, _ := presence.StatesFromNames(c.PresenceLog.Types.Names)
	return presence.Settings{
		Channels: map[presence.Channel]bool{
			presence.ChannelLog:       c.PresenceLog.Enabled,
			presence.ChannelNotify:    c.Notifications.Enabled,
			presence.ChannelIndicator: c.Indicators.Enabled,
		},
		IgnoredNames:   c.IgnoredNames.Names,
		AllowedTypes:   types,
		NotifyCooldown: c.Notifications.Cooldown,
	}
}

// EmitTimeout returns daemon.emit_timeout, or zero for the dispatcher default.
func (c *Config) EmitTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Daemon.EmitTimeout)
	return d
}
