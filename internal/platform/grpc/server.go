package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// Server couples a gRPC server with its listener and health service.
type Server struct {
	listener   net.Listener
	grpcServer *gogrpc.Server
	health     *health.Server
	logf       func(string, ...any)
}

// Listen binds addr and prepares a server with the otelgrpc stats handler
// and the standard health service registered. Register application services
// on GRPC() before calling Serve.
func Listen(addr string, logf func(string, ...any), opts ...gogrpc.ServerOption) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}
	opts = append([]gogrpc.ServerOption{gogrpc.StatsHandler(otelgrpc.NewServerHandler())}, opts...)
	grpcServer := gogrpc.NewServer(opts...)
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	return &Server{
		listener:   listener,
		grpcServer: grpcServer,
		health:     healthServer,
		logf:       logf,
	}, nil
}

// GRPC exposes the underlying server for service registration.
func (s *Server) GRPC() *gogrpc.Server {
	return s.grpcServer
}

// Addr reports the bound listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// SetServing flips the overall and per-service health status to SERVING.
func (s *Server) SetServing(services ...string) {
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	for _, name := range services {
		s.health.SetServingStatus(name, grpc_health_v1.HealthCheckResponse_SERVING)
	}
}

// Serve blocks until ctx ends or the server fails. Cancellation drains
// in-flight calls with GracefulStop.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	serveErr := make(chan error, 1)
	s.logf("gRPC server listening at %v", s.listener.Addr())
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	handleErr := func(err error) error {
		if err == nil || errors.Is(err, gogrpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
		return handleErr(<-serveErr)
	case err := <-serveErr:
		return handleErr(err)
	}
}

// Close stops the server immediately.
func (s *Server) Close() {
	if s == nil {
		return
	}
	s.health.Shutdown()
	s.grpcServer.Stop()
	_ = s.listener.Close()
}
