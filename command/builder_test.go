package command

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func TestValidateText(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"plain", "Ada is peeking at Book Club", false},
		{"unicode", "Zoë joined Café ☕", false},
		{"tab allowed", "a\tb", false},
		{"newline", "a\nb", true},
		{"escape sequence", "a\x1b[31mb", true},
		{"invalid utf8", string([]byte{0xff, 0xfe}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateText(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateText(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"https", "https://cdn.example.com/a.png", false},
		{"file", "file:///tmp/a.png", false},
		{"javascript", "javascript:alert(1)", true},
		{"relative", "a.png", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	if got := Sanitize("  Ada\njoined \x07 "); got != "Ada joined" {
		t.Errorf("Sanitize() = %q", got)
	}
	long := strings.Repeat("x", MaxTextLength+10)
	if got := []rune(Sanitize(long)); len(got) != MaxTextLength {
		t.Errorf("Sanitize() length = %d, want %d", len(got), MaxTextLength)
	}
}

func TestSafeBuilder(t *testing.T) {
	sb := NewSafeBuilder()

	if _, err := sb.Build(""); err == nil {
		t.Error("expected error for empty command name")
	}

	cmd, err := sb.Build("echo", "hello")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if cmd.String() != "echo hello" {
		t.Errorf("String() = %q", cmd.String())
	}

	cmd.WithTimeout(2 * MaxTimeout)
	if cmd.timeout != MaxTimeout {
		t.Errorf("timeout = %v, want %v", cmd.timeout, MaxTimeout)
	}

	if err := sb.Validate("unknown", "x"); err == nil {
		t.Error("expected error for unknown validator")
	}
}

func TestCommandRun(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	sb := NewSafeBuilder()

	cmd, _ := sb.Build("sh", "-c", "exit 0")
	if err := cmd.Run(context.Background()); err != nil {
		t.Errorf("Run() error = %v", err)
	}

	cmd, _ = sb.Build("sh", "-c", "echo nope >&2; exit 3")
	err := cmd.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "nope") {
		t.Errorf("Run() error = %v, want output in error", err)
	}

	cmd, _ = sb.Build("sh", "-c", "exec sleep 5")
	cmd.WithTimeout(50 * time.Millisecond)
	start := time.Now()
	if err := cmd.Run(context.Background()); err == nil {
		t.Error("expected timeout error")
	}
	if time.Since(start) > 4*time.Second {
		t.Error("timeout not applied")
	}
}
