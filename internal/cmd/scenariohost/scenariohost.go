// Package scenariohost parses host flags and launches the session authority.
package scenariohost

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	entrypoint "github.com/Impact-Forge/SharedGamemode/internal/platform/cmd"
	server "github.com/Impact-Forge/SharedGamemode/internal/services/host/app"
	"github.com/Impact-Forge/SharedGamemode/internal/services/transition/engine"
)

// Config holds host command configuration.
type Config struct {
	GRPCAddr          string `env:"SHAREDGAMEMODE_GRPC_ADDR"           envDefault:"localhost:8090"`
	MetricsAddr       string `env:"SHAREDGAMEMODE_METRICS_ADDR"        envDefault:"localhost:9090"`
	CatalogDir        string `env:"SHAREDGAMEMODE_CATALOG_DIR"         envDefault:"data/scenarios"`
	WatchCatalog      bool   `env:"SHAREDGAMEMODE_CATALOG_WATCH"       envDefault:"true"`
	StatsBackend      string `env:"SHAREDGAMEMODE_STATS_BACKEND"       envDefault:"sqlite"`
	StatsPath         string `env:"SHAREDGAMEMODE_STATS_PATH"`
	NATSURL           string `env:"SHAREDGAMEMODE_NATS_URL"`
	NATSSubjectPrefix string `env:"SHAREDGAMEMODE_NATS_SUBJECT_PREFIX" envDefault:"sharedgamemode"`

	Seed int64         `env:"SHAREDGAMEMODE_SEED"`
	Tick time.Duration `env:"SHAREDGAMEMODE_TICK" envDefault:"100ms"`

	VotingDuration   time.Duration `env:"SHAREDGAMEMODE_VOTING_DURATION"     envDefault:"30s"`
	VotingOptions    int           `env:"SHAREDGAMEMODE_VOTING_OPTIONS"      envDefault:"3"`
	VotingTags       []string      `env:"SHAREDGAMEMODE_VOTING_TAGS"         envSeparator:","`
	Weighted         bool          `env:"SHAREDGAMEMODE_VOTING_WEIGHTED"`
	BaseWeight       float64       `env:"SHAREDGAMEMODE_VOTING_BASE_WEIGHT"  envDefault:"1.0"`
	MinWeight        float64       `env:"SHAREDGAMEMODE_VOTING_MIN_WEIGHT"   envDefault:"0.5"`
	MaxWeight        float64       `env:"SHAREDGAMEMODE_VOTING_MAX_WEIGHT"   envDefault:"2.0"`
	PerformanceScale float64       `env:"SHAREDGAMEMODE_PERFORMANCE_SCALE"   envDefault:"0.1"`
	AllowVetoes      bool          `env:"SHAREDGAMEMODE_VETOES"              envDefault:"true"`
	VetoThreshold    int           `env:"SHAREDGAMEMODE_VETO_THRESHOLD"      envDefault:"3"`
	AllVetoed        string        `env:"SHAREDGAMEMODE_ALL_VETOED"          envDefault:"least_vetoed"`
	EndPhase         string        `env:"SHAREDGAMEMODE_END_PHASE"           envDefault:"Game.EndGame"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "host gRPC listen address")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus listen address, empty to disable")
	fs.StringVar(&cfg.CatalogDir, "catalog", cfg.CatalogDir, "directory of scenario YAML files")
	fs.BoolVar(&cfg.WatchCatalog, "watch", cfg.WatchCatalog, "reload the catalog when files change")
	fs.StringVar(&cfg.StatsBackend, "stats-backend", cfg.StatsBackend, "statistics backend: sqlite, bbolt, json or memory")
	fs.StringVar(&cfg.StatsPath, "stats-path", cfg.StatsPath, "statistics file path")
	fs.StringVar(&cfg.NATSURL, "nats-url", cfg.NATSURL, "NATS server for session events, empty to disable")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed, 0 for a fresh one")
	fs.DurationVar(&cfg.VotingDuration, "voting-duration", cfg.VotingDuration, "length of a voting round")
	fs.IntVar(&cfg.VotingOptions, "voting-options", cfg.VotingOptions, "options offered per round")
	fs.BoolVar(&cfg.Weighted, "weighted", cfg.Weighted, "pick options by rotation score")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// VotingConfig converts the flat voting settings into an engine config.
func (c Config) VotingConfig() (engine.Config, error) {
	policy, err := engine.ParseAllVetoedPolicy(c.AllVetoed)
	if err != nil {
		return engine.Config{}, err
	}
	var tags []string
	for _, tag := range c.VotingTags {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	cfg := engine.Config{
		Duration:         c.VotingDuration,
		OptionCount:      c.VotingOptions,
		ScenarioTags:     tags,
		BaseWeight:       c.BaseWeight,
		MinWeight:        c.MinWeight,
		MaxWeight:        c.MaxWeight,
		PerformanceScale: c.PerformanceScale,
		AllowVetoes:      c.AllowVetoes,
		VetoThreshold:    c.VetoThreshold,
		AllVetoed:        policy,
		EndPhase:         c.EndPhase,
	}
	if err := cfg.Validate(); err != nil {
		return engine.Config{}, fmt.Errorf("voting config: %w", err)
	}
	return cfg, nil
}

// Run starts the session host.
func Run(ctx context.Context, cfg Config) error {
	voting, err := cfg.VotingConfig()
	if err != nil {
		return err
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceHost, func(ctx context.Context) error {
		return server.Run(ctx, server.Config{
			GRPCAddr:          cfg.GRPCAddr,
			MetricsAddr:       cfg.MetricsAddr,
			CatalogDir:        cfg.CatalogDir,
			WatchCatalog:      cfg.WatchCatalog,
			StatsBackend:      cfg.StatsBackend,
			StatsPath:         cfg.StatsPath,
			NATSURL:           cfg.NATSURL,
			NATSSubjectPrefix: cfg.NATSSubjectPrefix,
			Voting:            voting,
			Weighted:          cfg.Weighted,
			Seed:              cfg.Seed,
			TickInterval:      cfg.Tick,
			Logger:            log.Default(),
		})
	})
}
