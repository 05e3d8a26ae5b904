package daemon

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/grovetools/presence/pkg/models"
	"github.com/grovetools/presence/pkg/presence"
)

// RemoteClient implements Client by calling the daemon's HTTP API over a Unix socket.
type RemoteClient struct {
	httpClient *http.Client
	socketPath string
}

// NewRemoteClient creates a new RemoteClient connected to the daemon socket.
func NewRemoteClient(socketPath string) *RemoteClient {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
	}

	return &RemoteClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   10 * time.Second,
		},
		socketPath: socketPath,
	}
}

// baseURL is the dummy host used for Unix socket HTTP requests.
// The actual connection goes through the Unix socket, not this URL.
const baseURL = "http://unix"

// do sends a request and decodes a JSON response into out when out is non-nil.
func (c *RemoteClient) do(ctx context.Context, method, path string, body interface{}, want int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("daemon returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// PushTick queues a snapshot for ingest.
func (c *RemoteClient) PushTick(ctx context.Context, tick models.Tick) error {
	return c.do(ctx, http.MethodPost, "/api/tick", tick, http.StatusAccepted, nil)
}

// GetState returns the daemon state.
func (c *RemoteClient) GetState(ctx context.Context) (*models.DaemonState, error) {
	var st models.DaemonState
	if err := c.do(ctx, http.MethodGet, "/api/state", nil, http.StatusOK, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// GetConfig returns the running configuration.
func (c *RemoteClient) GetConfig(ctx context.Context) (*models.RunningConfig, error) {
	var cfg models.RunningConfig
	if err := c.do(ctx, http.MethodGet, "/api/config", nil, http.StatusOK, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Reset clears the engine state.
func (c *RemoteClient) Reset(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/reset", nil, http.StatusAccepted, nil)
}

// GetPolicy returns the effect policy.
func (c *RemoteClient) GetPolicy(ctx context.Context) (*presence.Settings, error) {
	var s presence.Settings
	if err := c.do(ctx, http.MethodGet, "/api/policy", nil, http.StatusOK, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SetPolicy replaces the effect policy and returns the result.
func (c *RemoteClient) SetPolicy(ctx context.Context, settings presence.Settings) (*presence.Settings, error) {
	var s presence.Settings
	if err := c.do(ctx, http.MethodPut, "/api/policy", settings, http.StatusOK, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// IsRunning returns true if the daemon is available and responding.
func (c *RemoteClient) IsRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// StreamUpdates subscribes to real-time updates via Server-Sent Events (SSE).
func (c *RemoteClient) StreamUpdates(ctx context.Context) (<-chan models.StreamUpdate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/stream", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}

	// Streaming needs its own client without a timeout.
	streamTransport := &http.Transport{
		DialContext: func(dialCtx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(dialCtx, "unix", c.socketPath)
		},
	}
	streamClient := &http.Client{Transport: streamTransport}

	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("stream returned status %d", resp.StatusCode)
	}

	ch := make(chan models.StreamUpdate, 10)
	go func() {
		defer resp.Body.Close()
		defer close(ch)
		defer streamTransport.CloseIdleConnections()
		readStream(ctx, resp.Body, ch)
	}()
	return ch, nil
}

// readStream parses SSE "data:" lines into updates, skipping comments and
// malformed payloads.
func readStream(ctx context.Context, r io.Reader, ch chan<- models.StreamUpdate) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var update models.StreamUpdate
		if err := json.Unmarshal([]byte(data), &update); err != nil {
			continue
		}
		select {
		case ch <- update:
		case <-ctx.Done():
			return
		}
	}
}

// Close cleans up any resources used by the client.
func (c *RemoteClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Ensure RemoteClient implements Client interface.
var _ Client = (*RemoteClient)(nil)
