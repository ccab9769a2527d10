// Package health exposes the HTTP health and metrics endpoints.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor is the controller surface the health endpoint reports on.
type Monitor interface {
	Running() bool
	ChainStates() map[string]string
}

// Server provides /health and /metrics.
type Server struct {
	monitor Monitor
	server  *http.Server
}

// NewServer creates a health server.
func NewServer(monitor Monitor, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		monitor: monitor,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type healthResponse struct {
	Status     string            `json:"status"`
	Monitoring string            `json:"monitoring"`
	Chains     map[string]string `json:"chains,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:     "ok",
		Monitoring: "stopped",
	}
	if s.monitor.Running() {
		resp.Monitoring = "running"
		resp.Chains = s.monitor.ChainStates()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
