package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Impact-Forge/SharedGamemode/internal/services/transition/storage"
	statsbbolt "github.com/Impact-Forge/SharedGamemode/internal/services/transition/storage/bbolt"
	"github.com/Impact-Forge/SharedGamemode/internal/services/transition/storage/jsonfile"
	statssqlite "github.com/Impact-Forge/SharedGamemode/internal/services/transition/storage/sqlite"
)

// Statistics backends.
const (
	BackendSQLite = "sqlite"
	BackendBBolt  = "bbolt"
	BackendJSON   = "json"
	BackendMemory = "memory"
)

// openStatsStore opens the configured statistics backend. The memory backend
// returns a nil store: statistics live only as long as the process.
func openStatsStore(ctx context.Context, backend, path string) (storage.Store, error) {
	backend = strings.ToLower(strings.TrimSpace(backend))
	if backend == BackendMemory {
		return nil, nil
	}
	path = strings.TrimSpace(path)
	if path == "" {
		path = defaultStatsPath(backend)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	switch backend {
	case "", BackendSQLite:
		store, err := statssqlite.Open(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("open statistics sqlite store: %w", err)
		}
		return store, nil
	case BackendBBolt:
		store, err := statsbbolt.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open statistics bbolt store: %w", err)
		}
		return store, nil
	case BackendJSON:
		store, err := jsonfile.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open statistics json store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown statistics backend %q", backend)
	}
}

func defaultStatsPath(backend string) string {
	switch backend {
	case BackendBBolt:
		return filepath.Join("data", "stats.bolt")
	case BackendJSON:
		return filepath.Join("data", "ScenarioStats.json")
	default:
		return filepath.Join("data", "stats.db")
	}
}
