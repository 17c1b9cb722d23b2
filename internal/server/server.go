// Package server provides the HTTP observation surface: health, metrics, and
// the websocket event bridge the external GUI shell subscribes to.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/beysion/beytracker/internal/event"
)

// Status is the health snapshot reported by /api/health.
type Status struct {
	Uptime          string `json:"uptime"`
	ConnectionState string `json:"connection_state"`
	FramesProcessed int64  `json:"frames_processed"`
	LiveBeys        int    `json:"live_beys"`
}

// Config holds the server configuration.
type Config struct {
	Bus     event.Bus
	Metrics *prometheus.Registry
	// Status supplies the current health snapshot; may be nil.
	Status func() Status
}

// Server is the HTTP server for the beytracker observation surface.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Metrics != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(s.config.Metrics, promhttp.HandlerOpts{}))
	}
	if s.config.Bus != nil {
		s.mux.Handle("/ws", NewEventsHandler(s.config.Bus))
	}
}

// handleHealth reports process liveness and the tracking snapshot.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := Status{}
	if s.config.Status != nil {
		status = s.config.Status()
	}
	status.Uptime = time.Since(s.start).Round(time.Second).String()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// Handler returns the root handler, useful for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s.mux)
}
