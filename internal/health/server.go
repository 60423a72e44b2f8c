package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server provides HTTP endpoints for health monitoring.
type Server struct {
	monitor *Monitor
	server  *http.Server
}

// NewServer creates a new health server.
func NewServer(monitor *Monitor, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		monitor: monitor,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	mux.HandleFunc("GET /health", s.handleSummary)
	mux.HandleFunc("GET /health/detailed", s.handleDetailed)
	mux.HandleFunc("GET /health/components/{name}", s.handleComponent)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Summary is the short form served on /health.
type Summary struct {
	Status     SystemStatus `json:"status"`
	Degraded   []string     `json:"degraded,omitempty"`
	QueueDepth int          `json:"queue_depth"`
}

func summarize(report HealthReport, queueDepth int) Summary {
	sum := Summary{Status: report.SystemStatus, QueueDepth: queueDepth}
	for name, c := range report.Components {
		if c.Status != StatusHealthy {
			sum.Degraded = append(sum.Degraded, name)
		}
	}
	slices.Sort(sum.Degraded)
	return sum
}

// statusCode maps a status to the HTTP code served with it; only a critical
// agent is unavailable.
func statusCode(s SystemStatus) int {
	if s == StatusCritical {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.CheckHealth(r.Context())
	writeJSON(w, statusCode(report.SystemStatus), summarize(report, s.monitor.QueueDepth()))
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.CheckHealth(r.Context())
	writeJSON(w, statusCode(report.SystemStatus), report)
}

func (s *Server) handleComponent(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	c, ok := s.monitor.CheckHealth(r.Context()).Components[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown component " + name})
		return
	}
	writeJSON(w, statusCode(c.Status), c)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to write health response", "error", err)
	}
}
