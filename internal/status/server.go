// Package status exposes training liveness over the standard gRPC health protocol.
package status

import (
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Service is the health service name reported for the trainer
const Service = "snakedqn.Trainer"

// Server serves grpc.health.v1 for the trainer
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	lis    net.Listener
}

// Start listens on addr and serves health checks in the background. The
// trainer starts out NOT_SERVING.
func Start(addr string) (*Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s := &Server{
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
		lis:    lis,
	}
	grpc_health_v1.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus(Service, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	go s.grpc.Serve(lis)
	return s, nil
}

// Addr returns the address the server listens on
func (s *Server) Addr() string {
	return s.lis.Addr().String()
}

// SetServing marks the trainer as running or idle
func (s *Server) SetServing(serving bool) {
	st := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		st = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(Service, st)
}

// Stop marks every service NOT_SERVING and shuts the server down
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
