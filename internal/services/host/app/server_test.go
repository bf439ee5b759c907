package server

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	platformgrpc "github.com/Impact-Forge/SharedGamemode/internal/platform/grpc"
	hostservice "github.com/Impact-Forge/SharedGamemode/internal/services/host/api/grpc/host"
	"github.com/Impact-Forge/SharedGamemode/internal/services/transition/engine"
	"github.com/Impact-Forge/SharedGamemode/internal/services/transition/storage/jsonfile"
)

const catalogYAML = `
scenarios:
  - id: duel
    rotation:
      weight: 1.5
    stages:
      - name: fight
        objectives:
          - name: win
            trackers:
              - kind: manual
  - id: hunt
    stages:
      - name: track
        objectives:
          - name: find
            trackers:
              - kind: manual
`

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	catalogDir := filepath.Join(dir, "scenarios")
	if err := os.MkdirAll(catalogDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(catalogDir, "test.yaml"), []byte(catalogYAML), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	voting := engine.DefaultConfig()
	voting.OptionCount = 2
	return Config{
		GRPCAddr:     "127.0.0.1:0",
		MetricsAddr:  "127.0.0.1:0",
		CatalogDir:   catalogDir,
		StatsBackend: BackendJSON,
		StatsPath:    filepath.Join(dir, "stats", "ScenarioStats.json"),
		Voting:       voting,
		Seed:         11,
		TickInterval: 10 * time.Millisecond,
		Logger:       log.New(io.Discard, "", 0),
	}
}

func TestServerVotingRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	srv, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	serveDone := make(chan error, 1)
	go func() { serveDone <- srv.Serve(runCtx) }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := platformgrpc.DialWithHealth(ctx, nil, srv.Addr(), 2*time.Second, t.Logf, platformgrpc.DefaultClientDialOptions()...)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	client := hostservice.NewClient(conn)

	if err := client.JoinParticipant(ctx, "p1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	started, err := client.StartVoting(ctx)
	if err != nil {
		t.Fatalf("start voting: %v", err)
	}
	choice := started.Options[0]
	if err := client.CastVote(ctx, "p1", choice); err != nil {
		t.Fatalf("vote: %v", err)
	}
	resolved, err := client.ResolveVoting(ctx)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Winner != choice {
		t.Fatalf("winner = %s, want %s", resolved.Winner, choice)
	}

	resp, err := http.Get("http://" + srv.MetricsAddr() + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	for _, want := range []string{
		"sharedgamemode_voting_rounds_started_total 1",
		"sharedgamemode_voting_ballots_total 1",
		`sharedgamemode_grpc_requests_total{code="OK",method="/sharedgamemode.host.v1.HostService/CastVote"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics missing %q", want)
		}
	}

	runCancel()
	select {
	case err := <-serveDone:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for shutdown")
	}

	store, err := jsonfile.Open(cfg.StatsPath)
	if err != nil {
		t.Fatalf("open stats: %v", err)
	}
	snap, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load stats: %v", err)
	}
	var played int
	for _, st := range snap.Stats {
		if st.ScenarioID == choice {
			played = st.TimesPlayed
		}
	}
	if played != 1 {
		t.Fatalf("stats = %+v, want %s played once", snap.Stats, choice)
	}
	if len(snap.RotationEntries) != 1 || snap.RotationEntries[0].ScenarioID != "duel" {
		t.Fatalf("rotation = %+v, want seeded duel entry", snap.RotationEntries)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Voting.OptionCount = 0
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("expected voting config error")
	}

	cfg = testConfig(t)
	cfg.StatsBackend = "tape"
	if _, err := New(context.Background(), cfg); err == nil || !strings.Contains(err.Error(), "tape") {
		t.Fatalf("err = %v, want unknown backend", err)
	}

	cfg = testConfig(t)
	cfg.CatalogDir = filepath.Join(t.TempDir(), "missing")
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("expected catalog error")
	}
}

func TestOpenStatsStoreBackends(t *testing.T) {
	dir := t.TempDir()
	for _, backend := range []string{BackendSQLite, BackendBBolt, BackendJSON} {
		t.Run(backend, func(t *testing.T) {
			store, err := openStatsStore(context.Background(), backend, filepath.Join(dir, backend, "stats"))
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			if err := store.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}
		})
	}
	store, err := openStatsStore(context.Background(), BackendMemory, "")
	if err != nil || store != nil {
		t.Fatalf("memory backend = %v, %v; want nil store", store, err)
	}
}
