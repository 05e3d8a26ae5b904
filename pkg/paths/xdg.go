// Package paths provides XDG-compliant path resolution for presence.
//
// Resolution order:
// 1. PRESENCE_HOME (portable root) → $PRESENCE_HOME/{config,state,cache,run}
// 2. XDG env vars → $XDG_*_HOME/presence
// 3. Platform defaults → ~/.config/presence, ~/.local/state/presence, etc.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const appName = "presence"

// HomeEnv overrides every base directory with a single portable root.
const HomeEnv = "PRESENCE_HOME"

// base resolves one XDG base directory: the portable root, then the XDG
// variable, then the platform default below the user's home.
func base(sub, xdgEnv string, fallback ...string) string {
	if home := os.Getenv(HomeEnv); home != "" {
		return filepath.Join(home, sub)
	}
	if dir := os.Getenv(xdgEnv); dir != "" {
		return filepath.Join(dir, appName)
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(append(append([]string{homeDir}, fallback...), appName)...)
	}
	return ""
}

// ConfigDir returns the configuration directory.
// Used for presence.yml and its .env file.
func ConfigDir() string {
	return base("config", "XDG_CONFIG_HOME", ".config")
}

// StateDir returns the state directory.
// Used for the PID file, the profile cache and log files.
func StateDir() string {
	return base("state", "XDG_STATE_HOME", ".local", "state")
}

// CacheDir returns the cache directory.
func CacheDir() string {
	return base("cache", "XDG_CACHE_HOME", ".cache")
}

// RuntimeDir returns the directory for the daemon socket.
// Uses XDG_RUNTIME_DIR when available (Linux), falls back to StateDir (macOS).
func RuntimeDir() string {
	if home := os.Getenv(HomeEnv); home != "" {
		return filepath.Join(home, "run")
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return StateDir()
}

// SocketPath returns the path to the daemon unix socket.
func SocketPath() string {
	return filepath.Join(RuntimeDir(), "presenced.sock")
}

// PidFilePath returns the path to the daemon PID file.
func PidFilePath() string {
	return filepath.Join(StateDir(), "presenced.pid")
}

// ProfileCachePath returns the default location of the persisted profile cache.
func ProfileCachePath() string {
	return filepath.Join(StateDir(), "profiles.yml")
}

// EnsureDirs creates all presence directories if they don't exist.
func EnsureDirs() error {
	for _, dir := range []string{ConfigDir(), StateDir(), CacheDir(), RuntimeDir()} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
