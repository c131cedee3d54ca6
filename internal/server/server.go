// Package server exposes a tickflow host over HTTP: Prometheus metrics,
// a health check and a snapshot of the scheduler's routines.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vnykmshr/tickflow/internal/logging"
	"github.com/vnykmshr/tickflow/pkg/coroutine/scheduler"
)

// Host runs functions against a scheduler on the goroutine that owns it.
// *loop.Loop implements Host.
type Host interface {
	Do(ctx context.Context, fn func(*scheduler.Scheduler)) error
}

// Server is the tickflow HTTP handler.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	host      Host
	gatherer  prometheus.Gatherer
	startTime time.Time
	timeout   time.Duration
}

// Snapshot is the body of GET /routines.
type Snapshot struct {
	Scheduler string   `json:"scheduler"`
	Ticks     uint64   `json:"ticks"`
	Routines  int      `json:"routines"`
	IDs       []string `json:"ids"`
}

// New creates a Server with all routes registered. A nil gatherer serves
// prometheus.DefaultGatherer.
func New(host Host, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logging.OrDiscard(logger).With("component", "server"),
		host:      host,
		gatherer:  gatherer,
		startTime: time.Now(),
		timeout:   time.Second,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Get("/routines", s.handleRoutines)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) handleRoutines(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	var snap Snapshot
	err := s.host.Do(ctx, func(sched *scheduler.Scheduler) {
		ids := sched.IDs()
		snap = Snapshot{
			Scheduler: sched.Name(),
			Ticks:     sched.Ticks(),
			Routines:  len(ids),
			IDs:       make([]string, len(ids)),
		}
		for i, id := range ids {
			snap.IDs[i] = id.String()
		}
	})
	if err != nil {
		s.logger.Warn("routine snapshot failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// loggingMiddleware logs HTTP requests at DEBUG level.
func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start).String(),
			)
		})
	}
}
