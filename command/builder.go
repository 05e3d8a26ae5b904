package command

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultTimeout is the default command execution timeout
	DefaultTimeout = 10 * time.Second

	// MaxTimeout is the maximum allowed timeout
	MaxTimeout = time.Minute

	// MaxTextLength bounds notification titles and bodies, in runes.
	MaxTextLength = 256
)

// SafeBuilder builds helper commands whose arguments carry untrusted text
// such as participant names and conversation titles.
type SafeBuilder struct {
	defaultTimeout time.Duration
	validators     map[string]func(string) error
	executor       Executor
}

// NewSafeBuilder creates a new SafeBuilder instance with a RealExecutor
func NewSafeBuilder() *SafeBuilder {
	return NewSafeBuilderWithExecutor(&RealExecutor{})
}

// NewSafeBuilderWithExecutor creates a new SafeBuilder with a custom Executor
func NewSafeBuilderWithExecutor(exec Executor) *SafeBuilder {
	return &SafeBuilder{
		defaultTimeout: DefaultTimeout,
		validators: map[string]func(string) error{
			"text": validateText,
			"url":  validateURL,
		},
		executor: exec,
	}
}

// validateText rejects control characters, which notify-send and osascript
// would pass through to the notification daemon.
func validateText(s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("text is not valid UTF-8")
	}
	for _, r := range s {
		if unicode.IsControl(r) && r != '\t' {
			return fmt.Errorf("text contains control character %U", r)
		}
	}
	return nil
}

// validateURL accepts absolute http(s) and file URLs.
func validateURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "file":
		return nil
	}
	return fmt.Errorf("unsupported url scheme %q", u.Scheme)
}

// Sanitize trims s, replaces control characters with spaces and truncates
// it to MaxTextLength runes.
func Sanitize(s string) string {
	s = strings.TrimSpace(strings.Map(func(r rune) rune {
		if r == utf8.RuneError || (unicode.IsControl(r) && r != '\t') {
			return ' '
		}
		return r
	}, s))
	if utf8.RuneCountInString(s) > MaxTextLength {
		runes := []rune(s)
		s = string(runes[:MaxTextLength-1]) + "…"
	}
	return s
}

// Command is a validated command ready to run.
type Command struct {
	name     string
	args     []string
	timeout  time.Duration
	executor Executor
}

// Build creates a new command.
func (sb *SafeBuilder) Build(name string, args ...string) (*Command, error) {
	if name == "" {
		return nil, fmt.Errorf("command name cannot be empty")
	}
	return &Command{
		name:     name,
		args:     args,
		timeout:  sb.defaultTimeout,
		executor: sb.executor,
	}, nil
}

// WithTimeout sets a custom timeout for the command
func (c *Command) WithTimeout(timeout time.Duration) *Command {
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}
	c.timeout = timeout
	return c
}

// Validate validates specific arguments
func (sb *SafeBuilder) Validate(argType string, value string) error {
	validator, exists := sb.validators[argType]
	if !exists {
		return fmt.Errorf("no validator for argument type: %s", argType)
	}
	return validator(value)
}

// Run executes the command and returns its combined output on failure.
func (c *Command) Run(ctx context.Context) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	cmd := c.executor.CommandContext(ctx, c.name, c.args...) //nolint:gosec // arguments validated by SafeBuilder
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("%s: %w: %s", c.name, err, msg)
		}
		return fmt.Errorf("%s: %w", c.name, err)
	}
	return nil
}

// String returns the command line for logging.
func (c *Command) String() string {
	return strings.TrimSpace(c.name + " " + strings.Join(c.args, " "))
}
