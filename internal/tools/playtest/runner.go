// Package playtest runs Lua playtest scripts against an in-process session.
package playtest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/Impact-Forge/SharedGamemode/internal/platform/id"
	"github.com/Impact-Forge/SharedGamemode/internal/platform/telemetry/events"
	"github.com/Impact-Forge/SharedGamemode/internal/random"
	"github.com/Impact-Forge/SharedGamemode/internal/services/host/session"
	"github.com/Impact-Forge/SharedGamemode/internal/services/scenario/catalog"
	"github.com/Impact-Forge/SharedGamemode/internal/services/scenario/domain/tasks"
	"github.com/Impact-Forge/SharedGamemode/internal/services/transition/engine"
)

// Config controls playtest execution.
type Config struct {
	// CatalogDir holds the scenario YAML files loaded for every run.
	CatalogDir string
	// Seed fixes the random source; zero draws a fresh seed. A script's
	// seed option overrides it.
	Seed       int64
	Voting     engine.Config
	Weighted   bool
	Assertions AssertionMode
	Verbose    bool
	Logger     *log.Logger
}

// DefaultConfig returns default runner configuration.
func DefaultConfig() Config {
	return Config{
		CatalogDir: "data/scenarios",
		Voting:     engine.DefaultConfig(),
		Assertions: AssertionStrict,
	}
}

// Runner executes playtest scripts, each against a fresh session.
type Runner struct {
	cfg        Config
	assertions *Assertions
	logger     *log.Logger
}

// NewRunner validates cfg.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.CatalogDir == "" {
		return nil, errors.New("catalog dir is required")
	}
	if err := cfg.Voting.Validate(); err != nil {
		return nil, fmt.Errorf("voting config: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}
	return &Runner{
		cfg:        cfg,
		assertions: &Assertions{Mode: cfg.Assertions, Logger: logger},
		logger:     logger,
	}, nil
}

// RunFile loads and executes a playtest file.
func RunFile(ctx context.Context, cfg Config, path string) error {
	runner, err := NewRunner(cfg)
	if err != nil {
		return err
	}
	script, err := LoadScriptFromFile(path)
	if err != nil {
		return err
	}
	return runner.Run(ctx, script)
}

// Run executes the script's steps in order.
func (r *Runner) Run(ctx context.Context, script *Script) error {
	if script == nil {
		return errors.New("playtest is required")
	}
	run, err := r.newRun(script)
	if err != nil {
		return err
	}
	defer run.world.TearDown()

	r.logf("playtest start: %s (%d steps)", script.Name, len(script.Steps))
	for index, step := range script.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		stepNumber := index + 1
		r.logf("step %d/%d start: %s", stepNumber, len(script.Steps), step.Kind)
		if err := r.runStep(run, step); err != nil {
			return fmt.Errorf("step %d (%s): %w", stepNumber, step.Kind, err)
		}
	}
	if failed := r.assertions.Failed(); failed > 0 {
		r.logger.Printf("playtest %s: %d unmet expectations", script.Name, failed)
	}
	r.logf("playtest done: %s", script.Name)
	return nil
}

// runState is the per-script session and bookkeeping.
type runState struct {
	world    *session.World
	recorder *events.Recorder
	// instances maps script aliases to instance IDs.
	instances map[string]string
}

func (r *Runner) newRun(script *Script) (*runState, error) {
	taskRegistry := tasks.Builtin()
	loaded, err := catalog.LoadDir(r.cfg.CatalogDir, taskRegistry)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	voting := r.cfg.Voting
	seed := r.cfg.Seed
	weighted := r.cfg.Weighted
	if v, ok := script.Options["seed"].(int); ok {
		seed = int64(v)
	}
	if v, ok := script.Options["options"].(int); ok {
		voting.OptionCount = v
	}
	if v, ok := script.Options["weighted"].(bool); ok {
		weighted = v
	}
	if v, ok := script.Options["duration"]; ok {
		d, err := durationArg(v)
		if err != nil {
			return nil, fmt.Errorf("duration option: %w", err)
		}
		voting.Duration = d
	}
	if v, ok := script.Options["vetoes"].(bool); ok {
		voting.AllowVetoes = v
	}
	if err := voting.Validate(); err != nil {
		return nil, fmt.Errorf("voting config: %w", err)
	}

	rng, err := random.NewRand(seed)
	if err != nil {
		return nil, err
	}
	recorder := events.NewRecorder()
	quiet := r.logger
	if !r.cfg.Verbose {
		quiet = log.New(io.Discard, "", 0)
	}
	world, err := session.NewWorld(session.WorldConfig{
		Catalog:     catalog.NewStore(loaded),
		Tasks:       taskRegistry,
		Voting:      voting,
		Weighted:    weighted,
		Rand:        rng,
		Publisher:   recorder,
		Logger:      quiet,
		IDGenerator: id.NewID,
	})
	if err != nil {
		return nil, err
	}
	world.SeedRotation()
	return &runState{world: world, recorder: recorder, instances: map[string]string{}}, nil
}

func (r *Runner) logf(format string, args ...any) {
	if !r.cfg.Verbose || r.logger == nil {
		return
	}
	r.logger.Printf(format, args...)
}

func durationArg(value any) (time.Duration, error) {
	switch v := value.(type) {
	case int:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case string:
		return time.ParseDuration(v)
	default:
		return 0, fmt.Errorf("unsupported duration %v", value)
	}
}
