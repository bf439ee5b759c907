// Package mcp parses MCP command flags and selects stdio or HTTP transport.
package mcp

import (
	"context"
	"flag"

	entrypoint "github.com/Impact-Forge/SharedGamemode/internal/platform/cmd"
	mcpservice "github.com/Impact-Forge/SharedGamemode/internal/services/mcp/service"
)

// Config holds MCP command configuration.
type Config struct {
	HostAddr  string `env:"SHAREDGAMEMODE_GRPC_ADDR"      envDefault:"localhost:8090"`
	HTTPAddr  string `env:"SHAREDGAMEMODE_MCP_HTTP_ADDR"  envDefault:"localhost:8091"`
	Transport string `env:"SHAREDGAMEMODE_MCP_TRANSPORT"  envDefault:"stdio"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HostAddr, "addr", cfg.HostAddr, "session host address")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address (for HTTP transport)")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: stdio or http")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the MCP protocol adapter.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMCP, func(ctx context.Context) error {
		return mcpservice.Run(ctx, mcpservice.Config{
			HostAddr:  cfg.HostAddr,
			HTTPAddr:  cfg.HTTPAddr,
			Transport: mcpservice.TransportKind(cfg.Transport),
		})
	})
}
