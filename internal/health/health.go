package health

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// #region services
// Service names reported by the health server. The empty name is the
// overall process status.
const (
	ServiceVision    = "vision"
	ServicePredictor = "predictor"
)

// #endregion services

// #region server-struct
// Server exposes the standard gRPC health protocol for the game process.
type Server struct {
	grpc   *grpc.Server
	health *grpchealth.Server
	log    *zap.Logger
}

// #endregion server-struct

// #region constructor
// NewServer creates a health server. Vision and predictor start NOT_SERVING
// until reported otherwise.
func NewServer(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	hs := grpchealth.NewServer()
	hs.SetServingStatus(ServiceVision, healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServicePredictor, healthpb.HealthCheckResponse_NOT_SERVING)

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	return &Server{grpc: gs, health: hs, log: logger}
}

// #endregion constructor

// #region status
// SetVision reports whether the camera pipeline is running.
func (s *Server) SetVision(up bool) {
	s.set(ServiceVision, up)
}

// SetPredictor reports whether the predictor is ready to play.
func (s *Server) SetPredictor(up bool) {
	s.set(ServicePredictor, up)
}

func (s *Server) set(service string, up bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if up {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(service, status)
	s.log.Debug("health status", zap.String("service", service), zap.Stringer("status", status))
}

// #endregion status

// #region serve
// Serve answers health checks on lis until ctx is done.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			s.grpc.GracefulStop()
		case <-done:
		}
	}()

	s.log.Info("health server listening", zap.String("addr", lis.Addr().String()))
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve health: %w", err)
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, lis)
}

// #endregion serve

// #region check
// Check queries a running health server for one service ("" for overall).
func Check(ctx context.Context, addr, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("health check %q: %w", service, err)
	}
	return resp.GetStatus(), nil
}

// #endregion check
