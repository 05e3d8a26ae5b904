package channels

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/grovetools/presence/command"
	"github.com/grovetools/presence/pkg/presence"
)

// DesktopEmitter shows native notifications with notify-send on Linux and
// osascript on macOS.
type DesktopEmitter struct {
	builder *command.SafeBuilder
	goos    string
	appName string
}

// NewDesktopEmitter creates a desktop emitter running commands through exec.
func NewDesktopEmitter(exec command.Executor) *DesktopEmitter {
	return &DesktopEmitter{
		builder: command.NewSafeBuilderWithExecutor(exec),
		goos:    runtime.GOOS,
		appName: "presence",
	}
}

func (d *DesktopEmitter) Name() string { return "desktop" }

// Args returns the helper command line for a notice.
func (d *DesktopEmitter) Args(n presence.Notice) (string, []string, error) {
	title := command.Sanitize(n.Title)
	body := command.Sanitize(n.Message)

	switch d.goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		args := []string{"--app-name", d.appName}
		if n.Profile.AvatarURL != "" && d.builder.Validate("url", n.Profile.AvatarURL) == nil &&
			strings.HasPrefix(n.Profile.AvatarURL, "file://") {
			args = append(args, "--icon", strings.TrimPrefix(n.Profile.AvatarURL, "file://"))
		}
		args = append(args, "--", title, body)
		return "notify-send", args, nil
	case "darwin":
		script := fmt.Sprintf("display notification %s with title %s", appleScriptString(body), appleScriptString(title))
		return "osascript", []string{"-e", script}, nil
	}
	return "", nil, fmt.Errorf("desktop notifications are not supported on %s", d.goos)
}

func (d *DesktopEmitter) Emit(ctx context.Context, n presence.Notice) error {
	name, args, err := d.Args(n)
	if err != nil {
		return err
	}
	cmd, err := d.builder.Build(name, args...)
	if err != nil {
		return err
	}
	return cmd.Run(ctx)
}

func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
