// Package grpcapi exposes the gRPC health service so orchestrators can probe
// the bot the same way they probe other services.
package grpcapi

import (
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"discord-transcriber/internal/observability"
	"discord-transcriber/internal/observability/logging"
	"discord-transcriber/internal/observability/metrics"
)

// ServiceName is the health service entry that tracks gateway readiness.
const ServiceName = "discord.transcriber.Bot"

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	port   string
	lis    net.Listener
	logger zerolog.Logger
}

// New registers health and reflection. Both the overall and the named
// service start NOT_SERVING until SetServing(true).
func New(port string, m *metrics.Metrics) *Server {
	g := grpc.NewServer(
		grpc.ChainUnaryInterceptor(observability.UnaryServerInterceptor(m)),
		grpc.ChainStreamInterceptor(observability.StreamServerInterceptor(m)),
	)

	h := health.NewServer()
	grpc_health_v1.RegisterHealthServer(g, h)
	reflection.Register(g)

	s := &Server{
		grpc:   g,
		health: h,
		port:   port,
		logger: logging.WithComponent("grpc"),
	}
	s.SetServing(false)
	return s
}

// SetServing flips both health entries.
func (s *Server) SetServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Listen binds the port so startup fails before the bot connects.
func (s *Server) Listen() error {
	lis, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return fmt.Errorf("listening on :%s: %w", s.port, err)
	}
	s.lis = lis
	return nil
}

// Addr is the bound address, useful when port is 0.
func (s *Server) Addr() net.Addr {
	if s.lis == nil {
		return nil
	}
	return s.lis.Addr()
}

// Serve blocks until Shutdown. Listen must have succeeded.
func (s *Server) Serve() error {
	s.logger.Info().Str("addr", s.lis.Addr().String()).Msg("gRPC health server started")
	return s.grpc.Serve(s.lis)
}

// Shutdown reports NOT_SERVING to watchers, then stops gracefully.
func (s *Server) Shutdown() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
	s.logger.Info().Msg("gRPC health server stopped")
}
