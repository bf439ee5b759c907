// Package storage defines persistence contracts for scenario play statistics
// and rotation configuration.
//
// The persisted shape is two ordered lists of flat records. Backends store
// and return them in the given order without interpreting them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotConfigured indicates a nil or closed store.
var ErrNotConfigured = errors.New("storage is not configured")

// Stats is the play history of one scenario.
type Stats struct {
	ScenarioID         string
	TimesPlayed        int
	TotalVotes         int
	AveragePlayerCount float64
	// LastPlayed is zero for never-played scenarios.
	LastPlayed time.Time
}

// RotationEntry limits how often a scenario may be offered again.
type RotationEntry struct {
	ScenarioID     string
	Weight         float64
	MinimumGapDays int
}

// Snapshot is the whole persisted state.
type Snapshot struct {
	Stats           []Stats
	RotationEntries []RotationEntry
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Stats:           append([]Stats(nil), s.Stats...),
		RotationEntries: append([]RotationEntry(nil), s.RotationEntries...),
	}
}

// Validate checks that every record names a scenario and that the numeric
// fields are in range.
func (s Snapshot) Validate() error {
	for i, st := range s.Stats {
		if strings.TrimSpace(st.ScenarioID) == "" {
			return fmt.Errorf("stats %d: scenario id is required", i)
		}
		if st.TimesPlayed < 0 || st.TotalVotes < 0 || st.AveragePlayerCount < 0 {
			return fmt.Errorf("stats %s: counters must not be negative", st.ScenarioID)
		}
	}
	for i, entry := range s.RotationEntries {
		if strings.TrimSpace(entry.ScenarioID) == "" {
			return fmt.Errorf("rotation entry %d: scenario id is required", i)
		}
		if entry.Weight < 0 || entry.MinimumGapDays < 0 {
			return fmt.Errorf("rotation entry %s: weight and gap must not be negative", entry.ScenarioID)
		}
	}
	return nil
}

// Store loads and saves snapshots.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snapshot Snapshot) error
	Close() error
}
