// Package rotation scores scenarios by popularity and enforces rotation
// gaps between plays.
package rotation

import (
	"context"
	"log"
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"

	apperrors "github.com/Impact-Forge/SharedGamemode/internal/platform/errors"
	"github.com/Impact-Forge/SharedGamemode/internal/services/transition/storage"
)

const (
	votesPerPlayWeight = 0.7
	playerCountWeight  = 0.3
	poolRepeatScale    = 10
)

// Scorer owns play statistics and rotation entries. It is not safe for
// concurrent use; the host confines it to the authority goroutine.
type Scorer struct {
	stats   []storage.Stats
	index   map[string]int
	entries []storage.RotationEntry

	now     func() time.Time
	players func() int
	rng     *rand.Rand
	store   storage.Store
	saver   *Saver
	logger  *log.Logger
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithClock overrides the wall clock used for last-played timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPlayerCount supplies the live participant count folded into the
// running average by RecordPlay.
func WithPlayerCount(players func() int) Option {
	return func(s *Scorer) {
		s.players = players
	}
}

// WithRand sets the source used to shuffle the rotation pool.
func WithRand(rng *rand.Rand) Option {
	return func(s *Scorer) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// WithStore loads from and persists to store. Writes go through saver when
// one is given and synchronously otherwise.
func WithStore(store storage.Store, saver *Saver) Option {
	return func(s *Scorer) {
		s.store = store
		s.saver = saver
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Scorer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScorer returns an empty scorer.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		index:  make(map[string]int),
		now:    time.Now,
		rng:    rand.New(rand.NewSource(1)),
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory state with the stored snapshot. A failed load
// leaves the scorer empty and reports the error for logging; it is never
// fatal to callers.
func (s *Scorer) Load(ctx context.Context) error {
	s.Restore(storage.Snapshot{})
	if s.store == nil {
		return nil
	}
	snap, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Printf("load transition statistics, starting empty: %v", err)
		return apperrors.Wrap(apperrors.CodeStorageUnavailable, "load transition statistics", err)
	}
	s.Restore(snap)
	return nil
}

// Restore replaces the in-memory state without persisting.
func (s *Scorer) Restore(snap storage.Snapshot) {
	s.stats = s.stats[:0]
	s.index = make(map[string]int, len(snap.Stats))
	for _, st := range snap.Stats {
		if st.ScenarioID == "" {
			continue
		}
		if i, ok := s.index[st.ScenarioID]; ok {
			s.stats[i] = st
			continue
		}
		s.index[st.ScenarioID] = len(s.stats)
		s.stats = append(s.stats, st)
	}
	s.entries = s.entries[:0]
	for _, entry := range snap.RotationEntries {
		if entry.ScenarioID == "" {
			continue
		}
		s.removeEntry(entry.ScenarioID)
		s.entries = append(s.entries, entry)
	}
}

// Snapshot returns a copy of the current state in persisted order.
func (s *Scorer) Snapshot() storage.Snapshot {
	return storage.Snapshot{
		Stats:           append([]storage.Stats(nil), s.stats...),
		RotationEntries: append([]storage.RotationEntry(nil), s.entries...),
	}
}

// GetStats returns the statistics for id. Unknown scenarios yield zero
// statistics carrying the id.
func (s *Scorer) GetStats(scenarioID string) storage.Stats {
	if i, ok := s.index[scenarioID]; ok {
		return s.stats[i]
	}
	return storage.Stats{ScenarioID: scenarioID}
}

// SaveStats upserts statistics and persists.
func (s *Scorer) SaveStats(st storage.Stats) error {
	if strings.TrimSpace(st.ScenarioID) == "" {
		return apperrors.New(apperrors.CodeScenarioRequired, "scenario id is required")
	}
	*s.statsFor(st.ScenarioID) = st
	s.persist()
	return nil
}

// RecordPlay counts a play of id at the current time and folds the live
// participant count into the running average.
func (s *Scorer) RecordPlay(scenarioID string) {
	if scenarioID == "" {
		return
	}
	st := s.statsFor(scenarioID)
	st.TimesPlayed++
	st.LastPlayed = s.now().UTC()
	if s.players != nil {
		current := float64(s.players())
		n := float64(st.TimesPlayed)
		st.AveragePlayerCount = (st.AveragePlayerCount*(n-1) + current) / n
	}
	s.persist()
}

// RecordVotes adds a round's raw tallies to the vote totals.
func (s *Scorer) RecordVotes(tallies map[string]int) {
	changed := false
	ids := make([]string, 0, len(tallies))
	for id := range tallies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		votes := tallies[id]
		if id == "" || votes <= 0 {
			continue
		}
		s.statsFor(id).TotalVotes += votes
		changed = true
	}
	if changed {
		s.persist()
	}
}

// RotationEntries returns a copy of the rotation entries.
func (s *Scorer) RotationEntries() []storage.RotationEntry {
	return append([]storage.RotationEntry(nil), s.entries...)
}

// RotationEntry returns the entry for id, if any.
func (s *Scorer) RotationEntry(scenarioID string) (storage.RotationEntry, bool) {
	for _, entry := range s.entries {
		if entry.ScenarioID == scenarioID {
			return entry, true
		}
	}
	return storage.RotationEntry{}, false
}

// SetRotationEntry replaces any entry for the same scenario and persists.
func (s *Scorer) SetRotationEntry(entry storage.RotationEntry) error {
	if strings.TrimSpace(entry.ScenarioID) == "" {
		return apperrors.New(apperrors.CodeScenarioRequired, "scenario id is required")
	}
	if entry.Weight < 0 || entry.MinimumGapDays < 0 || math.IsNaN(entry.Weight) {
		return apperrors.WithMetadata(apperrors.CodeInvalidRotation, "rotation weight and gap must not be negative",
			map[string]string{"ScenarioID": entry.ScenarioID})
	}
	s.removeEntry(entry.ScenarioID)
	s.entries = append(s.entries, entry)
	s.persist()
	return nil
}

// RemoveRotationEntry deletes the entry for id and reports whether one
// existed.
func (s *Scorer) RemoveRotationEntry(scenarioID string) bool {
	if !s.removeEntry(scenarioID) {
		return false
	}
	s.persist()
	return true
}

// SeedRotation appends entries for scenarios that have none yet and returns
// how many were added.
func (s *Scorer) SeedRotation(entries ...storage.RotationEntry) int {
	added := 0
	for _, entry := range entries {
		if entry.ScenarioID == "" {
			continue
		}
		if _, ok := s.RotationEntry(entry.ScenarioID); ok {
			continue
		}
		s.entries = append(s.entries, entry)
		added++
	}
	if added > 0 {
		s.persist()
	}
	return added
}

// Score returns the popularity score of id. Never-played scenarios score 0.
func (s *Scorer) Score(scenarioID string) float64 {
	i, ok := s.index[scenarioID]
	if !ok {
		return 0
	}
	return popularity(s.stats[i])
}

// GetWeightedCandidates ranks every scenario with statistics by popularity
// and returns the top count identifiers. Equal scores keep stats order.
func (s *Scorer) GetWeightedCandidates(count int) []string {
	if count <= 0 || len(s.stats) == 0 {
		return nil
	}
	type scored struct {
		id    string
		score float64
	}
	ranked := make([]scored, 0, len(s.stats))
	for _, st := range s.stats {
		ranked = append(ranked, scored{id: st.ScenarioID, score: popularity(st)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	count = min(count, len(ranked))
	ids := make([]string, 0, count)
	for _, r := range ranked[:count] {
		ids = append(ids, r.id)
	}
	return ids
}

// IsAllowedInRotation reports whether id may be offered now. Scenarios
// without an entry or never played are always allowed; otherwise the whole
// days since the last play must reach the entry's minimum gap.
func (s *Scorer) IsAllowedInRotation(scenarioID string) bool {
	entry, ok := s.RotationEntry(scenarioID)
	if !ok {
		return true
	}
	return s.gapSatisfied(entry)
}

// GetNextRotationOptions builds the rotation pool: every allowed entry
// appears round(weight*10) times.
func (s *Scorer) GetNextRotationOptions() []string {
	var pool []string
	for _, entry := range s.entries {
		if !s.gapSatisfied(entry) {
			continue
		}
		repeat := int(math.Round(entry.Weight * poolRepeatScale))
		for i := 0; i < repeat; i++ {
			pool = append(pool, entry.ScenarioID)
		}
	}
	return pool
}

// ApplyRotationFilter drops options that are not allowed in rotation. When
// fewer than half of desiredCount survive, it backfills from the shuffled
// rotation pool, skipping duplicates, until desiredCount is reached or the
// pool runs out.
func (s *Scorer) ApplyRotationFilter(options []string, desiredCount int) []string {
	filtered := make([]string, 0, max(len(options), desiredCount))
	seen := make(map[string]struct{}, len(options))
	for _, id := range options {
		if !s.IsAllowedInRotation(id) {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		filtered = append(filtered, id)
	}
	if len(filtered) >= desiredCount/2 {
		return filtered
	}

	pool := s.GetNextRotationOptions()
	s.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	for _, id := range pool {
		if len(filtered) >= desiredCount {
			break
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		filtered = append(filtered, id)
	}
	return filtered
}

// Flush waits for pending writes.
func (s *Scorer) Flush(ctx context.Context) error {
	if s.saver != nil {
		return s.saver.Flush(ctx)
	}
	return nil
}

func (s *Scorer) gapSatisfied(entry storage.RotationEntry) bool {
	i, ok := s.index[entry.ScenarioID]
	if !ok || s.stats[i].LastPlayed.IsZero() {
		return true
	}
	days := int(math.Floor(s.now().Sub(s.stats[i].LastPlayed).Hours() / 24))
	return days >= entry.MinimumGapDays
}

func (s *Scorer) statsFor(scenarioID string) *storage.Stats {
	if i, ok := s.index[scenarioID]; ok {
		return &s.stats[i]
	}
	s.index[scenarioID] = len(s.stats)
	s.stats = append(s.stats, storage.Stats{ScenarioID: scenarioID})
	return &s.stats[len(s.stats)-1]
}

func (s *Scorer) removeEntry(scenarioID string) bool {
	for i, entry := range s.entries {
		if entry.ScenarioID == scenarioID {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Scorer) persist() {
	switch {
	case s.saver != nil:
		s.saver.Submit(s.Snapshot())
	case s.store != nil:
		if err := s.store.Save(context.Background(), s.Snapshot()); err != nil {
			s.logger.Printf("save transition statistics: %v", err)
		}
	}
}

func popularity(st storage.Stats) float64 {
	if st.TimesPlayed <= 0 {
		return 0
	}
	votesPerPlay := float64(st.TotalVotes) / float64(st.TimesPlayed)
	return votesPerPlay*votesPerPlayWeight + st.AveragePlayerCount*playerCountWeight
}
