// Package bbolt provides a BoltDB-backed statistics store.
package bbolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Impact-Forge/SharedGamemode/internal/services/transition/storage"
	"go.etcd.io/bbolt"
)

const (
	statsBucket    = "scenario_stats"
	rotationBucket = "rotation_entries"
)

// Store provides a BoltDB-backed statistics store.
type Store struct {
	db *bbolt.DB
}

// statsRecord is the persisted form of storage.Stats.
type statsRecord struct {
	ScenarioID         string  `json:"scenario_id"`
	TimesPlayed        int     `json:"times_played"`
	TotalVotes         int     `json:"total_votes"`
	AveragePlayerCount float64 `json:"average_player_count"`
	LastPlayedMillis   int64   `json:"last_played,omitempty"`
}

type rotationRecord struct {
	ScenarioID     string  `json:"scenario_id"`
	Weight         float64 `json:"weight"`
	MinimumGapDays int     `json:"minimum_gap_days"`
}

// Open opens a BoltDB store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt store: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{statsBucket, rotationBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

// Load returns both lists ordered by their saved position.
func (s *Store) Load(ctx context.Context) (storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return storage.Snapshot{}, err
	}
	if s == nil || s.db == nil {
		return storage.Snapshot{}, storage.ErrNotConfigured
	}

	var snap storage.Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		stats := tx.Bucket([]byte(statsBucket))
		if stats == nil {
			return fmt.Errorf("bucket %s is missing", statsBucket)
		}
		if err := stats.ForEach(func(_, value []byte) error {
			var record statsRecord
			if err := json.Unmarshal(value, &record); err != nil {
				return fmt.Errorf("unmarshal scenario stats: %w", err)
			}
			snap.Stats = append(snap.Stats, record.toDomain())
			return nil
		}); err != nil {
			return err
		}

		rotation := tx.Bucket([]byte(rotationBucket))
		if rotation == nil {
			return fmt.Errorf("bucket %s is missing", rotationBucket)
		}
		return rotation.ForEach(func(_, value []byte) error {
			var record rotationRecord
			if err := json.Unmarshal(value, &record); err != nil {
				return fmt.Errorf("unmarshal rotation entry: %w", err)
			}
			snap.RotationEntries = append(snap.RotationEntries, storage.RotationEntry{
				ScenarioID:     record.ScenarioID,
				Weight:         record.Weight,
				MinimumGapDays: record.MinimumGapDays,
			})
			return nil
		})
	})
	if err != nil {
		return storage.Snapshot{}, err
	}
	return snap, nil
}

// Save replaces both buckets in a single update.
func (s *Store) Save(ctx context.Context, snap storage.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return storage.ErrNotConfigured
	}
	if err := snap.Validate(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		stats, err := recreateBucket(tx, statsBucket)
		if err != nil {
			return err
		}
		for i, st := range snap.Stats {
			payload, err := json.Marshal(fromStats(st))
			if err != nil {
				return fmt.Errorf("marshal scenario stats: %w", err)
			}
			if err := stats.Put(positionKey(i), payload); err != nil {
				return fmt.Errorf("put scenario stats: %w", err)
			}
		}

		rotation, err := recreateBucket(tx, rotationBucket)
		if err != nil {
			return err
		}
		for i, entry := range snap.RotationEntries {
			payload, err := json.Marshal(rotationRecord{
				ScenarioID:     entry.ScenarioID,
				Weight:         entry.Weight,
				MinimumGapDays: entry.MinimumGapDays,
			})
			if err != nil {
				return fmt.Errorf("marshal rotation entry: %w", err)
			}
			if err := rotation.Put(positionKey(i), payload); err != nil {
				return fmt.Errorf("put rotation entry: %w", err)
			}
		}
		return nil
	})
}

func recreateBucket(tx *bbolt.Tx, name string) (*bbolt.Bucket, error) {
	if tx.Bucket([]byte(name)) != nil {
		if err := tx.DeleteBucket([]byte(name)); err != nil {
			return nil, fmt.Errorf("delete bucket %s: %w", name, err)
		}
	}
	bucket, err := tx.CreateBucket([]byte(name))
	if err != nil {
		return nil, fmt.Errorf("create bucket %s: %w", name, err)
	}
	return bucket, nil
}

// positionKey encodes list positions big-endian so cursor order matches
// list order.
func positionKey(position int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(position))
	return key
}

func fromStats(st storage.Stats) statsRecord {
	record := statsRecord{
		ScenarioID:         st.ScenarioID,
		TimesPlayed:        st.TimesPlayed,
		TotalVotes:         st.TotalVotes,
		AveragePlayerCount: st.AveragePlayerCount,
	}
	if !st.LastPlayed.IsZero() {
		record.LastPlayedMillis = st.LastPlayed.UTC().UnixMilli()
	}
	return record
}

func (r statsRecord) toDomain() storage.Stats {
	st := storage.Stats{
		ScenarioID:         r.ScenarioID,
		TimesPlayed:        r.TimesPlayed,
		TotalVotes:         r.TotalVotes,
		AveragePlayerCount: r.AveragePlayerCount,
	}
	if r.LastPlayedMillis != 0 {
		st.LastPlayed = time.UnixMilli(r.LastPlayedMillis).UTC()
	}
	return st
}
