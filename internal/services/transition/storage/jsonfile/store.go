// Package jsonfile stores statistics snapshots as a single JSON document.
//
// The document holds two flat arrays, ScenarioStats and RotationEntries. It
// is used for import and export and as a dependency-free fallback backend.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Impact-Forge/SharedGamemode/internal/services/transition/storage"
)

type document struct {
	ScenarioStats   []statsRecord    `json:"ScenarioStats"`
	RotationEntries []rotationRecord `json:"RotationEntries"`
}

type statsRecord struct {
	ScenarioID         string  `json:"scenarioId"`
	TimesPlayed        int     `json:"timesPlayed"`
	TotalVotes         int     `json:"totalVotes"`
	AveragePlayerCount float64 `json:"averagePlayerCount"`
	LastPlayed         string  `json:"lastPlayed,omitempty"`
}

type rotationRecord struct {
	ScenarioID             string  `json:"scenarioId"`
	Weight                 float64 `json:"weight"`
	MinimumGapBetweenPlays int     `json:"minimumGapBetweenPlays"`
}

// Store reads and writes one JSON file.
type Store struct {
	mu   sync.Mutex
	path string
}

// Open returns a store for path. The file is created on first Save.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	return &Store{path: filepath.Clean(path)}, nil
}

// Path reports the backing file.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Load reads the document. A missing file yields an empty snapshot.
func (s *Store) Load(ctx context.Context) (storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return storage.Snapshot{}, err
	}
	if s == nil || s.path == "" {
		return storage.Snapshot{}, storage.ErrNotConfigured
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return storage.Snapshot{}, nil
	}
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("read %s: %w", s.path, err)
	}
	return Decode(data)
}

// Save writes the document through a temporary file and rename.
func (s *Store) Save(ctx context.Context, snap storage.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.path == "" {
		return storage.ErrNotConfigured
	}
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// Encode renders a snapshot as an indented document.
func Encode(snap storage.Snapshot) ([]byte, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	doc := document{
		ScenarioStats:   make([]statsRecord, 0, len(snap.Stats)),
		RotationEntries: make([]rotationRecord, 0, len(snap.RotationEntries)),
	}
	for _, st := range snap.Stats {
		record := statsRecord{
			ScenarioID:         st.ScenarioID,
			TimesPlayed:        st.TimesPlayed,
			TotalVotes:         st.TotalVotes,
			AveragePlayerCount: st.AveragePlayerCount,
		}
		if !st.LastPlayed.IsZero() {
			record.LastPlayed = st.LastPlayed.UTC().Format(time.RFC3339Nano)
		}
		doc.ScenarioStats = append(doc.ScenarioStats, record)
	}
	for _, entry := range snap.RotationEntries {
		doc.RotationEntries = append(doc.RotationEntries, rotationRecord{
			ScenarioID:             entry.ScenarioID,
			Weight:                 entry.Weight,
			MinimumGapBetweenPlays: entry.MinimumGapDays,
		})
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a document. Records without a scenario id are skipped.
func Decode(data []byte) (storage.Snapshot, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return storage.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	var snap storage.Snapshot
	for _, record := range doc.ScenarioStats {
		if strings.TrimSpace(record.ScenarioID) == "" {
			continue
		}
		st := storage.Stats{
			ScenarioID:         record.ScenarioID,
			TimesPlayed:        record.TimesPlayed,
			TotalVotes:         record.TotalVotes,
			AveragePlayerCount: record.AveragePlayerCount,
		}
		if record.LastPlayed != "" {
			played, err := time.Parse(time.RFC3339Nano, record.LastPlayed)
			if err != nil {
				return storage.Snapshot{}, fmt.Errorf("scenario %s: parse last played: %w", record.ScenarioID, err)
			}
			st.LastPlayed = played.UTC()
		}
		snap.Stats = append(snap.Stats, st)
	}
	for _, record := range doc.RotationEntries {
		if strings.TrimSpace(record.ScenarioID) == "" {
			continue
		}
		snap.RotationEntries = append(snap.RotationEntries, storage.RotationEntry{
			ScenarioID:     record.ScenarioID,
			Weight:         record.Weight,
			MinimumGapDays: record.MinimumGapBetweenPlays,
		})
	}
	return snap, nil
}
