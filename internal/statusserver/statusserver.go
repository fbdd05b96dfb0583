// Package statusserver exposes the core's read-only observability surface
// over HTTP: current stage of both machines, the health topic snapshot, and
// prometheus metrics. It is a monitoring interface, not a control interface;
// every route is a GET.
package statusserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skylark-uav/skylark/internal/exec"
	"github.com/skylark-uav/skylark/internal/pkg/metrics"
	"github.com/skylark-uav/skylark/pkg/log"
)

// StatusSource provides the snapshot the server publishes. Implemented by
// the Exec supervisor.
type StatusSource interface {
	Status() exec.Status
}

// Server is the observability HTTP server.
type Server struct {
	source StatusSource
	logger log.Logger
	srv    *http.Server
}

// New builds a server listening on addr.
func New(addr string, source StatusSource) *Server {
	s := &Server{
		source: source,
		logger: log.WithName("statusserver"),
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router builds the route table. Exposed separately for tests.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	v1.HandleFunc("/topics", s.handleTopics).Methods(http.MethodGet)
	return r
}

// Start serves until the listener fails or Shutdown is called. Blocking.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Status server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.source.Status())
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.source.Status().Topics)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error(err, "Response encoding failed")
	}
}
