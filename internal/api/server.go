package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/flightontime/internal/infra/scorer/resilience"
)

// Health status values reported by /health.
const (
	StatusUp       = "UP"
	StatusDegraded = "DEGRADED"
	StatusDown     = "DOWN"
)

// CircuitReporter exposes the scorer breaker state.
type CircuitReporter interface {
	State() resilience.State
}

// HealthCheck probes a dependency. A nil HealthCheck means the dependency is in-process.
type HealthCheck func(ctx context.Context) error

// Server serves the API, /health and /metrics.
type Server struct {
	router  *mux.Router
	server  *http.Server
	breaker CircuitReporter
	dbCheck HealthCheck
	logger  *slog.Logger
}

// NewServer creates a new HTTP server. breaker and dbCheck may be nil.
func NewServer(
	port int,
	handler *Handler,
	gatherer prometheus.Gatherer,
	breaker CircuitReporter,
	dbCheck HealthCheck,
) *Server {
	r := mux.NewRouter()
	s := &Server{
		router:  r,
		breaker: breaker,
		dbCheck: dbCheck,
		logger:  slog.Default().With("component", "http"),
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}

	r.Use(s.logRequests)
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	handler.RegisterRoutes(r.PathPrefix("/api").Subrouter())

	return s
}

// Handler returns the root router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := StatusUp
	circuit := "unknown"
	if s.breaker != nil {
		st := s.breaker.State()
		circuit = st.String()
		if st == resilience.StateOpen {
			status = StatusDegraded
		}
	}

	database := "memory"
	code := http.StatusOK
	if s.dbCheck != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.dbCheck(ctx); err != nil {
			s.logger.Warn("Database health check failed", "error", err)
			database = "down"
			status = StatusDown
			code = http.StatusServiceUnavailable
		} else {
			database = "up"
		}
	}

	respondJSON(w, code, map[string]any{
		"status":    status,
		"service":   "flightontime",
		"circuit":   circuit,
		"database":  database,
		"timestamp": time.Now().UnixMilli(),
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
