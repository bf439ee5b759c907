// Package main provides a CLI for running Lua playtest scripts.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/Impact-Forge/SharedGamemode/internal/platform/config"

	playtestcmd "github.com/Impact-Forge/SharedGamemode/internal/cmd/playtest"
)

func main() {
	cfg, err := playtestcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := playtestcmd.Run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		config.Exitf("Error: %v", err)
	}
}
