// Package process inspects processes by PID.
package process

import (
	"os"
	"syscall"
)

// IsProcessAlive reports whether a process with the given PID exists.
// Signal 0 probes for existence on Unix; EPERM means the process exists but
// belongs to another user.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || os.IsPermission(err)
}

// Terminate asks a process to shut down with SIGTERM.
func Terminate(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(syscall.SIGTERM)
}
