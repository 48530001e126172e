// Package healthcheck exposes and probes the standard gRPC health service of
// the analysis backend.
package healthcheck

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceAnalysis is the health service name registered by mindwell-analysis.
const ServiceAnalysis = "mindwell.analysis"

// Server hosts the gRPC health service.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
}

// NewServer creates a health server with every service NOT_SERVING.
func NewServer() *Server {
	s := &Server{
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.SetServing(false)
	return s
}

// SetServing flips both the overall and the analysis service status.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceAnalysis, status)
}

// Serve accepts connections on lis until ctx is done.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		s.health.Shutdown()
		s.grpc.GracefulStop()
	})
	defer stop()

	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve grpc health: %w", err)
	}
	return nil
}

// Probe dials target, waits for the connection to become ready, and asks the
// health service for ServiceAnalysis.
func Probe(ctx context.Context, target string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("dial %s: %w", target, err)
	}
	defer conn.Close()

	conn.Connect()
	if err := waitForReady(ctx, conn); err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceAnalysis})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("health check %s: %w", target, err)
	}
	return resp.GetStatus(), nil
}

// waitForReady blocks until the connection enters Ready or fails.
func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("grpc connection entered shutdown state")
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("grpc readiness wait timed out in state %s", state.String())
		}
	}
}
