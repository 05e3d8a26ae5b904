package errors

import (
	"fmt"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *PresenceError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *PresenceError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// SnapshotMalformed creates an error for a tick that could not be decoded
func SnapshotMalformed(source string, err error) *PresenceError {
	return Wrap(err, ErrCodeSnapshotMalformed, fmt.Sprintf("malformed snapshot from %s", source)).
		WithDetail("source", source)
}

// SourceFailed creates an error for a snapshot source that stopped working
func SourceFailed(source string, err error) *PresenceError {
	return Wrap(err, ErrCodeSourceFailed, fmt.Sprintf("snapshot source '%s' failed", source)).
		WithDetail("source", source)
}

// ChannelFailed creates an error for an effect emitter that failed
func ChannelFailed(channel, emitter string, err error) *PresenceError {
	return Wrap(err, ErrCodeChannelFailed, fmt.Sprintf("emitter '%s' on channel '%s' failed", emitter, channel)).
		WithDetail("channel", channel).
		WithDetail("emitter", emitter)
}

// NotifyFailed creates an error for a rejected push notification
func NotifyFailed(target string, status int) *PresenceError {
	return New(ErrCodeNotifyFailed, fmt.Sprintf("notification to %s rejected with status %d", target, status)).
		WithDetail("target", target).
		WithDetail("status", status)
}

// DaemonNotRunning creates an error for commands that need the daemon
func DaemonNotRunning(socket string) *PresenceError {
	return New(ErrCodeDaemonNotRunning, "presence daemon is not running").
		WithDetail("socket", socket)
}
