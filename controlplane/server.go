package controlplane

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Logger is the structured logging seam shared across subsystems.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

const serviceName = "scadaflow.ingestcore.ControlPlane"

// Server serves the standard gRPC health-checking protocol and reflection
// over the control-plane port. It reports SERVING once the shim it wraps
// has at least started, and flips to NOT_SERVING on shutdown. The actual
// AddConnection/RemoveConnection/QueryReadings/GetAggregatorStats/HealthCheck
// RPCs are a generated-stub concern outside this module's scope; Shim is
// the interface those stubs would call.
type Server struct {
	shim   Shim
	logger Logger

	grpcServer  *grpc.Server
	healthSrv   *grpchealth.Server
	address     string
	shutdownMu  sync.Mutex
	isShutdown  bool
}

// NewServer builds a Server bound to addr (e.g. ":50051").
func NewServer(addr string, shim Shim, logger Logger) *Server {
	healthSrv := grpchealth.NewServer()
	grpcServer := grpc.NewServer()

	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	reflection.Register(grpcServer)

	return &Server{
		shim:       shim,
		logger:     logger,
		grpcServer: grpcServer,
		healthSrv:  healthSrv,
		address:    addr,
	}
}

// Start listens on s.address and blocks serving until ctx is cancelled, at
// which point it performs a graceful stop.
func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.address, err)
	}

	s.healthSrv.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	if s.logger != nil {
		s.logger.Info("controlplane_server_started", "address", s.address)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		s.GracefulStop()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// GracefulStop stops accepting new RPCs, marks the health service
// NOT_SERVING, and waits for in-flight RPCs to complete.
func (s *Server) GracefulStop() {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()
	if s.isShutdown {
		return
	}
	s.isShutdown = true

	s.healthSrv.SetServingStatus(serviceName, healthpb.HealthCheckResponse_NOT_SERVING)
	s.grpcServer.GracefulStop()
	if s.logger != nil {
		s.logger.Info("controlplane_server_stopped")
	}
}

// ShutdownWithTimeout performs a graceful stop, forcing an immediate stop
// if it does not complete within timeout.
func (s *Server) ShutdownWithTimeout(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		if s.logger != nil {
			s.logger.Warn("controlplane_shutdown_timeout", "timeout_ms", timeout.Milliseconds())
		}
		s.grpcServer.Stop()
	}
}
