package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	platformgrpc "github.com/Impact-Forge/SharedGamemode/internal/platform/grpc"
	"github.com/Impact-Forge/SharedGamemode/internal/platform/timeouts"
	hostservice "github.com/Impact-Forge/SharedGamemode/internal/services/host/api/grpc/host"
	"github.com/Impact-Forge/SharedGamemode/internal/services/mcp/domain"
)

const (
	// serverName identifies this MCP server to clients.
	serverName = "sharedgamemode-mcp"
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"
	// healthCheckInterval paces host health probes during HTTP serving.
	healthCheckInterval = 30 * time.Second
)

// TransportKind identifies the MCP transport implementation.
type TransportKind string

const (
	// TransportStdio serves MCP over stdin/stdout.
	TransportStdio TransportKind = "stdio"
	// TransportHTTP serves MCP over streamable HTTP.
	TransportHTTP TransportKind = "http"
)

// Config configures the MCP server.
type Config struct {
	// HostAddr is the session host gRPC address.
	HostAddr string
	// HTTPAddr is the listen address for the HTTP transport.
	HTTPAddr  string
	Transport TransportKind
}

// Server hosts the MCP server.
type Server struct {
	mcpServer *mcp.Server
	conn      *grpc.ClientConn
}

// newServer binds every tool and resource to client.
func newServer(client domain.HostClient, conn *grpc.ClientConn) (*Server, error) {
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	notify := func(ctx context.Context, uri string) {
		if strings.TrimSpace(uri) == "" {
			return
		}
		if err := mcpServer.ResourceUpdated(ctx, &mcp.ResourceUpdatedNotificationParams{URI: uri}); err != nil {
			log.Printf("mcp resource updated notify failed: uri=%s err=%v", uri, err)
		}
	}

	var tools, resources int
	for _, module := range newMCPRegistrationModules(client, notify) {
		if err := module.register(mcpServer); err != nil {
			return nil, fmt.Errorf("register MCP module %q: %w", module.name, err)
		}
		switch module.kind {
		case mcpRegistrationKindTools:
			tools++
		case mcpRegistrationKindResources:
			resources++
		}
	}
	log.Printf("registered %d tool modules and %d resource modules", tools, resources)
	return &Server{mcpServer: mcpServer, conn: conn}, nil
}

// Run is the service entrypoint for MCP and blocks until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}
	switch cfg.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}

	conn, err := dialHost(ctx, cfg.HostAddr)
	if err != nil {
		return err
	}
	server, err := newServer(hostservice.NewClient(conn), conn)
	if err != nil {
		_ = conn.Close()
		return err
	}
	if cfg.Transport == TransportHTTP {
		return server.serveHTTP(ctx, cfg.HTTPAddr)
	}
	return server.serveWithTransport(ctx, &mcp.StdioTransport{})
}

// Close releases the gRPC connection held by the server.
func (s *Server) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	if err := s.conn.Close(); err != nil {
		return err
	}
	s.conn = nil
	return nil
}

// serveWithTransport runs the MCP server on transport and closes the host
// connection on exit.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	closeErr := s.Close()
	if closeErr != nil {
		if err == nil {
			return fmt.Errorf("close gRPC connection: %w", closeErr)
		}
		return fmt.Errorf("serve MCP: %v; close gRPC connection: %w", err, closeErr)
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

// Handler serves the MCP server over streamable HTTP.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)
}

// serveHTTP serves the streamable HTTP transport on addr until ctx ends.
func (s *Server) serveHTTP(ctx context.Context, addr string) error {
	defer s.Close()
	if addr == "" {
		addr = "localhost:8091"
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen MCP HTTP on %s: %w", addr, err)
	}

	healthCtx, healthCancel := context.WithCancel(ctx)
	defer healthCancel()
	go s.monitorHealth(healthCtx)

	mux := http.NewServeMux()
	mux.Handle("/mcp", s.Handler())
	httpServer := &http.Server{Handler: mux, ReadHeaderTimeout: timeouts.ReadHeader}

	serveErr := make(chan error, 1)
	log.Printf("MCP HTTP listening at %v", listener.Addr())
	go func() {
		serveErr <- httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown MCP HTTP: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve MCP HTTP: %w", err)
	}
}

// monitorHealth periodically checks the host connection and logs failures
// without stopping the HTTP server.
func (s *Server) monitorHealth(ctx context.Context) {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.conn == nil {
				continue
			}
			callCtx, cancel := context.WithTimeout(ctx, timeouts.GRPCRequest)
			response, err := grpc_health_v1.NewHealthClient(s.conn).Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: hostservice.ServiceName})
			cancel()
			if err != nil {
				log.Printf("host health check failed: %v", err)
			} else if response.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
				log.Printf("host health check status: %s", response.GetStatus().String())
			}
		}
	}
}

func dialHost(ctx context.Context, addr string) (*grpc.ClientConn, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logf := func(format string, args ...any) {
		log.Printf("host %s", fmt.Sprintf(format, args...))
	}
	conn, err := platformgrpc.DialWithHealth(ctx, nil, addr, timeouts.GRPCDial, logf, platformgrpc.DefaultClientDialOptions()...)
	if err != nil {
		var dialErr *platformgrpc.DialError
		if errors.As(err, &dialErr) {
			if dialErr.Stage == platformgrpc.DialStageConnect {
				return nil, fmt.Errorf("connect to host at %s: %w", addr, dialErr.Err)
			}
			return nil, dialErr.Err
		}
		return nil, err
	}
	return conn, nil
}
