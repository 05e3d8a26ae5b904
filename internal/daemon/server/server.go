// Package server provides the HTTP API of the presence daemon.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/grovetools/presence/internal/daemon/engine"
	"github.com/grovetools/presence/pkg/models"
	"github.com/grovetools/presence/pkg/presence"
)

// maxTickBytes bounds a pushed tick body.
const maxTickBytes = 1 << 20

// Server manages the daemon's HTTP server over a Unix socket.
type Server struct {
	logger        *logrus.Entry
	server        *http.Server
	runner        *engine.Runner
	runningConfig *models.RunningConfig
}

// New creates a new Server instance.
func New(logger *logrus.Entry) *Server {
	return &Server{logger: logger}
}

// SetRunner sets the presence pipeline the server exposes.
func (s *Server) SetRunner(r *engine.Runner) {
	s.runner = r
}

// SetRunningConfig sets the running configuration for the server.
func (s *Server) SetRunningConfig(cfg *models.RunningConfig) {
	s.runningConfig = cfg
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/tick", s.handleTick)
	mux.HandleFunc("/api/state", s.handleGetState)
	mux.HandleFunc("/api/stream", s.handleStream)
	mux.HandleFunc("/api/reset", s.handleReset)
	mux.HandleFunc("/api/policy", s.handlePolicy)
	mux.HandleFunc("/api/config", s.handleGetConfig)
	return mux
}

// ListenAndServe starts the daemon on the given unix socket path.
// It blocks until the server stops or fails.
func (s *Server) ListenAndServe(socketPath string) error {
	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}

	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.server = &http.Server{
		Handler: h2c.NewHandler(s.Handler(), &http2.Server{}),
	}

	s.logger.WithField("socket", socketPath).Info("Daemon listening")
	return s.server.Serve(listener)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) ready(w http.ResponseWriter) bool {
	if s.runner == nil {
		http.Error(w, "engine not initialized", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// handleTick queues a pushed tick for ingest.
func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var tick models.Tick
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTickBytes)).Decode(&tick); err != nil {
		http.Error(w, "invalid tick: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.runner.Submit(r.Context(), tick); err != nil {
		http.Error(w, "daemon busy", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"conversations": len(tick.Conversations)})
}

// handleGetState returns the daemon state as JSON.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	st := s.runner.Store().Get()
	writeJSON(w, http.StatusOK, models.DaemonState{
		LastTick:   st.LastTick,
		LastTickAt: st.LastTickAt,
		Ticks:      st.Ticks,
		Events:     st.Events,
		Tracking:   st.Tracking,
		Engine:     s.runner.Engine().State(),
		Indicators: st.Indicators,
	})
}

// handleStream provides Server-Sent Events for transitions, board changes,
// resets and config reloads.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	st := s.runner.Store()
	ch := st.Subscribe()
	defer st.Unsubscribe(ch)

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()
	s.logger.Debug("SSE client connected")

	// Send the current board so the client has data right away.
	current := st.Get()
	initial := models.StreamUpdate{
		UpdateType: "initial",
		Tick:       current.LastTick,
		Indicators: current.Indicators,
	}
	if data, err := json.Marshal(initial); err == nil {
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case update, ok := <-ch:
			if !ok {
				return
			}
			wire, ok := update.StreamUpdate()
			if !ok {
				continue
			}
			data, err := json.Marshal(wire)
			if err != nil {
				s.logger.WithError(err).Error("Failed to marshal update")
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// handleReset queues an engine reset.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.runner.RequestReset(r.Context()); err != nil {
		http.Error(w, "daemon busy", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"reset": true})
}

// handlePolicy handles GET/PUT of the effect policy.
func (s *Server) handlePolicy(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	policy := s.runner.Policy()

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, policy.Settings())

	case http.MethodPut:
		var settings presence.Settings
		if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
			http.Error(w, "invalid policy: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := policy.Apply(settings); err != nil {
			s.logger.WithError(err).Warn("Policy applied with notify cooldown disabled")
		}
		if err := s.runner.RequestReload(r.Context(), "api"); err != nil {
			http.Error(w, "daemon busy", http.StatusServiceUnavailable)
			return
		}
		s.logger.WithField("ignored", len(settings.IgnoredNames)).Info("Policy updated")
		writeJSON(w, http.StatusOK, policy.Settings())

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleGetConfig returns the running configuration as JSON.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.runningConfig == nil {
		http.Error(w, "config not initialized", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.runningConfig)
}
