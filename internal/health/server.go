// Package health serves the standard gRPC health protocol for the scorer dependency.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vietddude/flightontime/internal/infra/scorer/resilience"
)

// ScorerService is the health service name tracking the scorer circuit.
const ScorerService = "flightontime.Scorer"

// Server is a gRPC server exposing grpc.health.v1.Health.
type Server struct {
	port   int
	grpc   *grpc.Server
	health *grpchealth.Server
	logger *slog.Logger
}

// NewServer creates a health server. The scorer service starts SERVING.
func NewServer(port int) *Server {
	hs := grpchealth.NewServer()
	hs.SetServingStatus(ScorerService, healthpb.HealthCheckResponse_SERVING)

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	return &Server{
		port:   port,
		grpc:   srv,
		health: hs,
		logger: slog.Default().With("component", "grpc-health"),
	}
}

// SetCircuitState maps a breaker state onto the scorer's serving status.
// Only an open circuit reports NOT_SERVING.
func (s *Server) SetCircuitState(state resilience.State) {
	status := healthpb.HealthCheckResponse_SERVING
	if state == resilience.StateOpen {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(ScorerService, status)
}

// Check answers a health query in-process.
func (s *Server) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

// Start listens on the configured port and serves until Stop.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("listen on gRPC port %d: %w", s.port, err)
	}
	return s.Serve(lis)
}

// Serve serves on an existing listener.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("gRPC health server listening", "addr", lis.Addr().String())
	return s.grpc.Serve(lis)
}

// Stop drains in-flight calls, forcing a stop if ctx expires first.
func (s *Server) Stop(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
	}
}
