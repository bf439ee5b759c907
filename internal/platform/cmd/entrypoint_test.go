package cmd

import (
	"context"
	"errors"
	"flag"
	"testing"
)

type testConfig struct {
	Address string `env:"SHAREDGAMEMODE_CMD_TEST_ADDRESS" envDefault:"127.0.0.1:8095"`
	Catalog string `env:"SHAREDGAMEMODE_CMD_TEST_CATALOG" envDefault:"catalog.yaml"`
}

func TestParseConfigReadsEnvAndFlags(t *testing.T) {
	t.Setenv("SHAREDGAMEMODE_CMD_TEST_ADDRESS", "env:9000")
	t.Setenv("SHAREDGAMEMODE_CMD_TEST_CATALOG", "env.yaml")
	fs := flag.NewFlagSet("test", flag.ContinueOnError)

	cfg := testConfig{}
	if err := ParseConfig(&cfg); err != nil {
		t.Fatalf("load config defaults: %v", err)
	}
	fs.StringVar(&cfg.Address, "addr", cfg.Address, "address")
	fs.StringVar(&cfg.Catalog, "catalog", cfg.Catalog, "catalog")
	if err := ParseArgs(fs, []string{"-addr", "flag:9001"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	if cfg.Address != "flag:9001" {
		t.Fatalf("address = %q, want flag:9001", cfg.Address)
	}
	if cfg.Catalog != "env.yaml" {
		t.Fatalf("catalog = %q, want env.yaml", cfg.Catalog)
	}
}

func TestParseConfigRejectsNilTarget(t *testing.T) {
	if err := ParseConfig[testConfig](nil); err == nil {
		t.Fatal("expected nil target error")
	}
}

func TestParseArgsRejectsNilParser(t *testing.T) {
	if err := ParseArgs(nil, []string{}); err == nil {
		t.Fatal("expected parse args to reject nil parser")
	}
}

func TestRunWithTelemetryRejectsMissingInputs(t *testing.T) {
	if err := RunWithTelemetry(context.Background(), "", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected missing service error")
	}
	if err := RunWithTelemetry(context.Background(), ServiceHost, nil); err == nil {
		t.Fatal("expected missing run function error")
	}
}

func TestRunWithTelemetryReturnsRunError(t *testing.T) {
	t.Setenv("SHAREDGAMEMODE_OTEL_ENDPOINT", "")
	want := errors.New("boom")

	err := RunWithTelemetry(context.Background(), ServicePlaytest, func(context.Context) error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
}
