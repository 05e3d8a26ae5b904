package cli

import (
	"bytes"
	stderrors "errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/presence/errors"
)

func TestWrapText(t *testing.T) {
	assert.Equal(t, "short", wrapText("short", 10))
	assert.Equal(t, "one two\nthree", wrapText("one two three", 8))
	assert.Equal(t, "a\nb", wrapText("a\nb", 10))
}

func TestStandardCommandFlags(t *testing.T) {
	cmd := NewStandardCommand("presence", "Presence transitions")
	sub := &cobra.Command{Use: "show", RunE: func(*cobra.Command, []string) error { return nil }}
	cmd.AddCommand(sub)

	cmd.SetArgs([]string{"show", "--json", "-v", "-c", "/tmp/p.yml"})
	require.NoError(t, cmd.Execute())

	opts := GetOptions(sub)
	assert.True(t, opts.JSONOutput)
	assert.True(t, opts.Verbose)
	assert.Equal(t, "/tmp/p.yml", opts.ConfigFile)
}

func TestStyledHelp(t *testing.T) {
	cmd := NewStandardCommand("presence", "Presence transitions")
	daemon := &cobra.Command{Use: "daemon", Short: "Manage the daemon"}
	start := &cobra.Command{Use: "start", Short: "Start it", Run: func(*cobra.Command, []string) {}}
	start.Flags().Bool("foreground", false, "Stay attached")
	daemon.AddCommand(start)
	cmd.AddCommand(daemon)

	var buf bytes.Buffer
	renderHelp(&buf, cmd, 60)
	out := buf.String()
	assert.Contains(t, out, "PRESENCE")
	assert.Contains(t, out, "COMMANDS")
	assert.Contains(t, out, "daemon")
	assert.Contains(t, out, "Manage the daemon")

	buf.Reset()
	renderHelp(&buf, start, 60)
	assert.Contains(t, buf.String(), "--foreground")
	assert.Contains(t, buf.String(), "Stay attached")
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"daemon", errors.DaemonNotRunning("/tmp/s.sock"), "presence daemon start"},
		{"config", errors.ConfigNotFound("/x"), "Configuration not found"},
		{"invalid", errors.ConfigInvalid("bad"), "presence config validate"},
		{"source", errors.SourceFailed("websocket", stderrors.New("refused")), "Snapshot source 'websocket' failed: refused"},
		{"plain", stderrors.New("boom"), "Error: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &ErrorHandler{Out: &buf}
			assert.Equal(t, tt.err, h.Handle(tt.err))
			assert.Contains(t, buf.String(), tt.want)
		})
	}
	assert.NoError(t, NewErrorHandler(false).Handle(nil))
}

func TestVersionCommand(t *testing.T) {
	root := NewStandardCommand("presence", "Presence transitions")
	root.AddCommand(NewVersionCommand("presence"))

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"version", "--json"})
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), `"version": "dev"`)
}
