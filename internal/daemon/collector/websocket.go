package collector

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/presence/errors"
	"github.com/grovetools/presence/internal/daemon/store"
	"github.com/grovetools/presence/version"
)

const (
	wsMinBackoff = time.Second
	wsMaxBackoff = 30 * time.Second
)

// WebSocketCollector receives ticks as text frames from a bridge that pushes
// presence snapshots over a websocket. It reconnects with exponential backoff.
type WebSocketCollector struct {
	url     string
	headers http.Header
	dialer  *websocket.Dialer
	logger  *logrus.Entry

	minBackoff time.Duration
	maxBackoff time.Duration
}

// NewWebSocketCollector creates a collector for the bridge at url.
func NewWebSocketCollector(url string, headers map[string]string, logger *logrus.Entry) *WebSocketCollector {
	h := make(http.Header, len(headers))
	for k, v := range headers {
		h.Set(k, v)
	}
	if h.Get("User-Agent") == "" {
		h.Set("User-Agent", version.UserAgent())
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second
	return &WebSocketCollector{
		url:        url,
		headers:    h,
		dialer:     &dialer,
		logger:     logger,
		minBackoff: wsMinBackoff,
		maxBackoff: wsMaxBackoff,
	}
}

// Name returns the collector's name.
func (c *WebSocketCollector) Name() string { return "websocket" }

// Run connects and reads until ctx is canceled.
func (c *WebSocketCollector) Run(ctx context.Context, _ *store.Store, updates chan<- store.Update) error {
	backoff := c.minBackoff
	for {
		connected, err := c.session(ctx, updates)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			backoff = c.minBackoff
		}
		c.logger.WithError(errors.SourceFailed(c.url, err)).
			WithField("retry_in", backoff.String()).
			Warn("Bridge connection lost")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}
}

// session runs one connection. It reports whether the dial succeeded.
func (c *WebSocketCollector) session(ctx context.Context, updates chan<- store.Update) (bool, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, c.headers)
	if err != nil {
		return false, err
	}
	defer conn.Close()
	c.logger.WithField("url", c.url).Info("Connected to bridge")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return true, nil
			}
			return true, err
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		tick, ok, err := DecodeTick(c.url, data)
		if err != nil {
			c.logger.WithError(err).Warn("Skipping malformed tick")
			continue
		}
		if !ok {
			continue
		}
		if !send(ctx, updates, c.Name(), tick) {
			return true, nil
		}
	}
}
