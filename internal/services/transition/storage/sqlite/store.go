// Package sqlite provides a SQLite-backed statistics store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/Impact-Forge/SharedGamemode/internal/platform/storage/sqlitemigrate"
	"github.com/Impact-Forge/SharedGamemode/internal/services/transition/storage"
	"github.com/Impact-Forge/SharedGamemode/internal/services/transition/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists statistics snapshots in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) sql.NullInt64 {
	if value.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: value.UTC().UnixMilli(), Valid: true}
}

func fromMillis(value sql.NullInt64) time.Time {
	if !value.Valid {
		return time.Time{}
	}
	return time.UnixMilli(value.Int64).UTC()
}

// Open opens a SQLite statistics store and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Load reads both lists in their saved order.
func (s *Store) Load(ctx context.Context) (storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return storage.Snapshot{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Snapshot{}, storage.ErrNotConfigured
	}

	var snap storage.Snapshot
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT scenario_id, times_played, total_votes, average_player_count, last_played
		 FROM scenario_stats ORDER BY position`)
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("query scenario stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			st         storage.Stats
			lastPlayed sql.NullInt64
		)
		if err := rows.Scan(&st.ScenarioID, &st.TimesPlayed, &st.TotalVotes, &st.AveragePlayerCount, &lastPlayed); err != nil {
			return storage.Snapshot{}, fmt.Errorf("scan scenario stats: %w", err)
		}
		st.LastPlayed = fromMillis(lastPlayed)
		snap.Stats = append(snap.Stats, st)
	}
	if err := rows.Err(); err != nil {
		return storage.Snapshot{}, fmt.Errorf("iterate scenario stats: %w", err)
	}

	entries, err := s.sqlDB.QueryContext(ctx,
		`SELECT scenario_id, weight, minimum_gap_days FROM rotation_entries ORDER BY position`)
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("query rotation entries: %w", err)
	}
	defer entries.Close()
	for entries.Next() {
		var entry storage.RotationEntry
		if err := entries.Scan(&entry.ScenarioID, &entry.Weight, &entry.MinimumGapDays); err != nil {
			return storage.Snapshot{}, fmt.Errorf("scan rotation entry: %w", err)
		}
		snap.RotationEntries = append(snap.RotationEntries, entry)
	}
	if err := entries.Err(); err != nil {
		return storage.Snapshot{}, fmt.Errorf("iterate rotation entries: %w", err)
	}
	return snap, nil
}

// Save replaces both lists in one transaction.
func (s *Store) Save(ctx context.Context, snap storage.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ErrNotConfigured
	}
	if err := snap.Validate(); err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM scenario_stats`); err != nil {
		return fmt.Errorf("clear scenario stats: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM rotation_entries`); err != nil {
		return fmt.Errorf("clear rotation entries: %w", err)
	}
	for i, st := range snap.Stats {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO scenario_stats (position, scenario_id, times_played, total_votes, average_player_count, last_played)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			i, st.ScenarioID, st.TimesPlayed, st.TotalVotes, st.AveragePlayerCount, toMillis(st.LastPlayed),
		); err != nil {
			return fmt.Errorf("insert scenario stats %s: %w", st.ScenarioID, err)
		}
	}
	for i, entry := range snap.RotationEntries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rotation_entries (position, scenario_id, weight, minimum_gap_days) VALUES (?, ?, ?, ?)`,
			i, entry.ScenarioID, entry.Weight, entry.MinimumGapDays,
		); err != nil {
			return fmt.Errorf("insert rotation entry %s: %w", entry.ScenarioID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}
