package channels

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/grovetools/presence/errors"
	"github.com/grovetools/presence/pkg/presence"
	"github.com/grovetools/presence/version"
)

const (
	// DefaultNtfyServer is the public ntfy instance.
	DefaultNtfyServer = "https://ntfy.sh"

	// DefaultNtfyPriority is ntfy's "max" priority.
	DefaultNtfyPriority = 5
)

// NtfyConfig configures the ntfy push emitter.
type NtfyConfig struct {
	Server   string
	Topic    string
	Priority int
	// ClickURL is a template; "{conversation_id}" is replaced per notice.
	ClickURL string
}

// NtfyEmitter publishes notices to an ntfy topic.
type NtfyEmitter struct {
	cfg    NtfyConfig
	client *http.Client
}

// NewNtfyEmitter creates an ntfy emitter. A nil client uses a client with a
// 10 second timeout.
func NewNtfyEmitter(cfg NtfyConfig, client *http.Client) *NtfyEmitter {
	if cfg.Server == "" {
		cfg.Server = DefaultNtfyServer
	}
	cfg.Server = strings.TrimRight(cfg.Server, "/")
	if cfg.Priority <= 0 {
		cfg.Priority = DefaultNtfyPriority
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &NtfyEmitter{cfg: cfg, client: client}
}

func (e *NtfyEmitter) Name() string { return "ntfy" }

// URL returns the topic URL notices are posted to.
func (e *NtfyEmitter) URL() string {
	return e.cfg.Server + "/" + e.cfg.Topic
}

// EncodeHeader returns s unchanged when it is plain ASCII and as an RFC 2047
// B-encoded word otherwise.
func EncodeHeader(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return mime.BEncoding.Encode("UTF-8", s)
		}
	}
	return s
}

func (e *NtfyEmitter) Emit(ctx context.Context, n presence.Notice) error {
	if e.cfg.Topic == "" {
		return errors.New(errors.ErrCodeConfigInvalid, "ntfy topic is not set")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL(), bytes.NewBufferString(n.Message))
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Title", EncodeHeader(n.Title))
	req.Header.Set("Priority", strconv.Itoa(e.cfg.Priority))
	if n.Profile.AvatarURL != "" {
		req.Header.Set("Icon", n.Profile.AvatarURL)
	}
	if e.cfg.ClickURL != "" {
		req.Header.Set("Click", strings.ReplaceAll(e.cfg.ClickURL, "{conversation_id}", n.Event.Identity.ConversationID))
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusMultipleChoices {
		return errors.NotifyFailed(e.URL(), resp.StatusCode)
	}
	return nil
}
