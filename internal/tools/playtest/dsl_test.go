package playtest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadScriptParsesSteps(t *testing.T) {
	script, err := LoadScript("basic", `
local p = Playtest.new("basic", {seed = 4, options = 2, weighted = true})
p:join("alice")
p:start_voting()
p:vote("alice", 1)
p:veto("alice", "duel")
p:advance(30)
p:advance("1m30s")
p:start("duel", {as = "d", tags = {"night"}})
p:mark("d", 0)
p:label("d", "kills", 3)
p:expect_active({"duel", "hunt"})
p:expect_stats("duel", {times_played = 1})
return p
`)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if script.Name != "basic" {
		t.Fatalf("name = %q", script.Name)
	}
	if script.Options["seed"] != 4 || script.Options["weighted"] != true {
		t.Fatalf("options = %+v", script.Options)
	}

	wantKinds := []string{"join", "start_voting", "vote", "veto", "advance", "advance", "start", "mark", "label", "expect_active", "expect_stats"}
	if len(script.Steps) != len(wantKinds) {
		t.Fatalf("steps = %d, want %d", len(script.Steps), len(wantKinds))
	}
	for i, kind := range wantKinds {
		if script.Steps[i].Kind != kind {
			t.Fatalf("step %d kind = %s, want %s", i, script.Steps[i].Kind, kind)
		}
	}

	if got := script.Steps[2].Args["option"]; got != 1 {
		t.Fatalf("vote option = %v, want 1", got)
	}
	if got := script.Steps[3].Args["scenario"]; got != "duel" {
		t.Fatalf("veto scenario = %v", got)
	}
	if _, ok := script.Steps[4].Args["seconds"]; !ok {
		t.Fatalf("advance args = %+v", script.Steps[4].Args)
	}
	if got := script.Steps[5].Args["duration"]; got != "1m30s" {
		t.Fatalf("advance duration = %v", got)
	}
	start := script.Steps[6].Args
	if start["as"] != "d" || start["scenario"] != "duel" {
		t.Fatalf("start args = %+v", start)
	}
	if tags := stringList(start["tags"]); len(tags) != 1 || tags[0] != "night" {
		t.Fatalf("start tags = %v", tags)
	}
	if got := script.Steps[7].Args["result"]; got != "success" {
		t.Fatalf("mark result = %v, want default success", got)
	}
	if got := stringList(script.Steps[9].Args["scenarios"]); len(got) != 2 {
		t.Fatalf("expect_active scenarios = %v", got)
	}
	if got := script.Steps[10].Args["times_played"]; got != 1 {
		t.Fatalf("expect_stats times_played = %v", got)
	}
}

func TestLoadScriptAttachesExpectedError(t *testing.T) {
	script, err := LoadScript("errors", `
local p = Playtest.new("errors")
p:vote("ghost", "duel")
p:expect_error("VOTING_INACTIVE")
return p
`)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(script.Steps) != 1 {
		t.Fatalf("steps = %d, want 1", len(script.Steps))
	}
	if got := script.Steps[0].ExpectError; got != "VOTING_INACTIVE" {
		t.Fatalf("expect error = %q", got)
	}
}

func TestLoadScriptErrors(t *testing.T) {
	cases := map[string]string{
		"no return":          `local p = Playtest.new("x")`,
		"dangling expect":    `local p = Playtest.new("x") p:expect_error("X") return p`,
		"syntax":             `local p = `,
		"wrong return value": `return 42`,
	}
	for name, source := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadScript(name, source); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadScriptFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smoke.lua")
	source := "local p = Playtest.new(\"smoke\")\np:join(\"alice\")\nreturn p\n"
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	script, err := LoadScriptFromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if script.Name != "smoke" || len(script.Steps) != 1 {
		t.Fatalf("script = %+v", script)
	}
}
