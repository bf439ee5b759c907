package playtest

import (
	"bytes"
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const catalogYAML = `
scenarios:
  - id: duel
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

func testRunner(t *testing.T, mode AssertionMode) (*Runner, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "test.yaml"), []byte(catalogYAML), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	cfg := DefaultConfig()
	cfg.CatalogDir = dir
	cfg.Seed = 5
	cfg.Voting.OptionCount = 2
	cfg.Assertions = mode
	var out bytes.Buffer
	cfg.Logger = log.New(&out, "", 0)
	runner, err := NewRunner(cfg)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return runner, &out
}

func mustLoad(t *testing.T, source string) *Script {
	t.Helper()
	script, err := LoadScript("test", source)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return script
}

func TestRunVotingRound(t *testing.T) {
	runner, _ := testRunner(t, AssertionStrict)
	script := mustLoad(t, `
local p = Playtest.new("round")
p:join("alice")
p:join("bob")
p:expect_participants(2)
p:vote("alice", "duel")
p:expect_error("VOTING_INACTIVE")
p:start_voting()
p:expect_phase("voting")
p:expect_options(2)
p:vote("alice", "duel")
p:vote("bob", "duel")
p:vote("carol", "duel")
p:expect_error("PARTICIPANT_UNKNOWN")
p:advance(30)
p:expect_phase("idle")
p:expect_winner("duel")
p:expect_active({"duel"})
p:expect_stats("duel", {times_played = 1, total_votes = 2})
p:expect_event("voting.resolved", {scenario = "duel", count = 1})
return p
`)
	if err := runner.Run(context.Background(), script); err != nil {
		t.Fatalf("run: %v", err)
	}
	if failed := runner.assertions.Failed(); failed != 0 {
		t.Fatalf("failed expectations = %d", failed)
	}
}

func TestRunScenarioLifecycle(t *testing.T) {
	runner, _ := testRunner(t, AssertionStrict)
	script := mustLoad(t, `
local p = Playtest.new("lifecycle")
p:start("hunt", {as = "h"})
p:expect_state("h", "active")
p:expect_stage("h", "track")
p:label("h", "kills", 2)
p:mark("h", 0)
p:expect_state("h", "success")
p:start("duel", {as = "d"})
p:cancel("d")
p:expect_state("d", "cancelled")
p:activate("hunt")
p:expect_active({"hunt"})
p:deactivate("hunt")
p:expect_active({})
return p
`)
	if err := runner.Run(context.Background(), script); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRunStrictStopsOnFailedExpectation(t *testing.T) {
	runner, _ := testRunner(t, AssertionStrict)
	script := mustLoad(t, `
local p = Playtest.new("strict")
p:expect_phase("voting")
p:join("never-runs")
return p
`)
	err := runner.Run(context.Background(), script)
	if err == nil || !strings.Contains(err.Error(), "step 1 (expect_phase)") {
		t.Fatalf("err = %v, want step 1 failure", err)
	}
}

func TestRunLogOnlyContinues(t *testing.T) {
	runner, out := testRunner(t, AssertionLogOnly)
	script := mustLoad(t, `
local p = Playtest.new("log-only")
p:expect_phase("voting")
p:join("alice")
p:expect_participants(1)
return p
`)
	if err := runner.Run(context.Background(), script); err != nil {
		t.Fatalf("run: %v", err)
	}
	if failed := runner.assertions.Failed(); failed != 1 {
		t.Fatalf("failed expectations = %d, want 1", failed)
	}
	if !strings.Contains(out.String(), "expectation: phase = idle, want voting") {
		t.Fatalf("log = %q", out.String())
	}
}

func TestRunUnexpectedErrorFails(t *testing.T) {
	runner, _ := testRunner(t, AssertionLogOnly)
	script := mustLoad(t, `
local p = Playtest.new("broken")
p:mark("missing", 0)
return p
`)
	if err := runner.Run(context.Background(), script); err == nil {
		t.Fatal("expected unknown instance error")
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	runner, _ := testRunner(t, AssertionStrict)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	script := mustLoad(t, `
local p = Playtest.new("cancelled")
p:join("alice")
return p
`)
	if err := runner.Run(ctx, script); err == nil {
		t.Fatal("expected context error")
	}
}

func TestNewRunnerRequiresCatalog(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CatalogDir = ""
	if _, err := NewRunner(cfg); err == nil {
		t.Fatal("expected error")
	}
}
