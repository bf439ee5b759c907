package rotation

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	apperrors "github.com/Impact-Forge/SharedGamemode/internal/platform/errors"
	"github.com/Impact-Forge/SharedGamemode/internal/services/transition/storage"
)

type fakeStore struct {
	snap    storage.Snapshot
	loadErr error
	saveErr error
	saves   int
}

func (f *fakeStore) Load(context.Context) (storage.Snapshot, error) {
	if f.loadErr != nil {
		return storage.Snapshot{}, f.loadErr
	}
	return f.snap.Clone(), nil
}

func (f *fakeStore) Save(_ context.Context, snap storage.Snapshot) error {
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.snap = snap.Clone()
	return nil
}

func (f *fakeStore) Close() error { return nil }

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestScorer(c *clock, opts ...Option) *Scorer {
	base := []Option{WithClock(c.Now), WithRand(rand.New(rand.NewSource(7)))}
	return NewScorer(append(base, opts...)...)
}

func TestRecordPlayRunningAverage(t *testing.T) {
	c := &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	players := 4
	s := newTestScorer(c, WithPlayerCount(func() int { return players }))

	s.RecordPlay("siege")
	players = 8
	s.RecordPlay("siege")

	st := s.GetStats("siege")
	if st.TimesPlayed != 2 {
		t.Fatalf("times played = %d, want 2", st.TimesPlayed)
	}
	if st.AveragePlayerCount != 6 {
		t.Fatalf("average = %v, want 6", st.AveragePlayerCount)
	}
	if !st.LastPlayed.Equal(c.now) {
		t.Fatalf("last played = %v, want %v", st.LastPlayed, c.now)
	}
}

func TestGetStatsUnknown(t *testing.T) {
	s := NewScorer()
	st := s.GetStats("missing")
	if st.ScenarioID != "missing" || st.TimesPlayed != 0 || !st.LastPlayed.IsZero() {
		t.Fatalf("stats = %+v", st)
	}
}

func TestGetWeightedCandidates(t *testing.T) {
	s := NewScorer()
	s.Restore(storage.Snapshot{Stats: []storage.Stats{
		{ScenarioID: "fresh"},
		{ScenarioID: "popular", TimesPlayed: 2, TotalVotes: 10, AveragePlayerCount: 10},
		{ScenarioID: "crowded", TimesPlayed: 1, TotalVotes: 1, AveragePlayerCount: 20},
		{ScenarioID: "quiet", TimesPlayed: 4, TotalVotes: 4, AveragePlayerCount: 2},
	}})

	// popular: 5*0.7+10*0.3 = 6.5; crowded: 0.7+6 = 6.7; quiet: 0.7+0.6 = 1.3
	got := s.GetWeightedCandidates(3)
	want := []string{"crowded", "popular", "quiet"}
	if len(got) != len(want) {
		t.Fatalf("candidates = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("candidates = %v, want %v", got, want)
		}
	}

	if all := s.GetWeightedCandidates(10); len(all) != 4 || all[3] != "fresh" {
		t.Fatalf("all candidates = %v, want fresh last", all)
	}
	if none := s.GetWeightedCandidates(0); none != nil {
		t.Fatalf("zero count = %v, want nil", none)
	}
}

func TestGetWeightedCandidatesStableForTies(t *testing.T) {
	s := NewScorer()
	s.Restore(storage.Snapshot{Stats: []storage.Stats{{ScenarioID: "b"}, {ScenarioID: "a"}, {ScenarioID: "c"}}})
	got := s.GetWeightedCandidates(3)
	if got[0] != "b" || got[1] != "a" || got[2] != "c" {
		t.Fatalf("candidates = %v, want stats order", got)
	}
}

func TestIsAllowedInRotationMinimumGap(t *testing.T) {
	start := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	c := &clock{now: start}
	s := newTestScorer(c)
	if err := s.SetRotationEntry(storage.RotationEntry{ScenarioID: "siege", Weight: 1, MinimumGapDays: 3}); err != nil {
		t.Fatalf("set rotation entry: %v", err)
	}
	if !s.IsAllowedInRotation("siege") {
		t.Fatal("never played scenario should be allowed")
	}

	s.RecordPlay("siege")
	c.now = start.Add(2 * 24 * time.Hour)
	if s.IsAllowedInRotation("siege") {
		t.Fatal("scenario played 2 days ago with gap 3 should be excluded")
	}
	c.now = start.Add(3*24*time.Hour + time.Minute)
	if !s.IsAllowedInRotation("siege") {
		t.Fatal("scenario played over 3 days ago with gap 3 should be allowed")
	}
	if !s.IsAllowedInRotation("no_entry") {
		t.Fatal("scenario without rotation entry should be allowed")
	}
}

func TestGetNextRotationOptionsRepeatsByWeight(t *testing.T) {
	c := &clock{now: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}
	s := newTestScorer(c)
	s.Restore(storage.Snapshot{
		Stats: []storage.Stats{{ScenarioID: "blocked", TimesPlayed: 1, LastPlayed: c.now.Add(-time.Hour)}},
		RotationEntries: []storage.RotationEntry{
			{ScenarioID: "heavy", Weight: 0.25, MinimumGapDays: 1},
			{ScenarioID: "blocked", Weight: 1, MinimumGapDays: 1},
			{ScenarioID: "zero", Weight: 0.04},
		},
	})

	pool := s.GetNextRotationOptions()
	counts := map[string]int{}
	for _, id := range pool {
		counts[id]++
	}
	if counts["heavy"] != 3 {
		t.Fatalf("heavy count = %d, want 3", counts["heavy"])
	}
	if counts["blocked"] != 0 || counts["zero"] != 0 {
		t.Fatalf("pool = %v", pool)
	}
}

func TestApplyRotationFilter(t *testing.T) {
	c := &clock{now: time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)}
	recent := c.now.Add(-24 * time.Hour)

	t.Run("drops disallowed without backfill", func(t *testing.T) {
		s := newTestScorer(c)
		s.Restore(storage.Snapshot{
			Stats: []storage.Stats{{ScenarioID: "b", TimesPlayed: 1, LastPlayed: recent}},
			RotationEntries: []storage.RotationEntry{
				{ScenarioID: "b", Weight: 1, MinimumGapDays: 5},
				{ScenarioID: "d", Weight: 1},
			},
		})
		got := s.ApplyRotationFilter([]string{"a", "b", "c"}, 3)
		if len(got) != 2 || got[0] != "a" || got[1] != "c" {
			t.Fatalf("filtered = %v, want [a c]", got)
		}
	})

	t.Run("one of three survives without backfill", func(t *testing.T) {
		s := newTestScorer(c)
		s.Restore(storage.Snapshot{
			Stats: []storage.Stats{
				{ScenarioID: "a", TimesPlayed: 1, LastPlayed: recent},
				{ScenarioID: "b", TimesPlayed: 1, LastPlayed: recent},
			},
			RotationEntries: []storage.RotationEntry{
				{ScenarioID: "a", Weight: 1, MinimumGapDays: 3},
				{ScenarioID: "b", Weight: 1, MinimumGapDays: 3},
				{ScenarioID: "y", Weight: 1},
			},
		})
		// 3/2 truncates to 1, so a single survivor is enough.
		got := s.ApplyRotationFilter([]string{"a", "b", "x"}, 3)
		if len(got) != 1 || got[0] != "x" {
			t.Fatalf("filtered = %v, want [x]", got)
		}
	})

	t.Run("backfills below half", func(t *testing.T) {
		s := newTestScorer(c)
		s.Restore(storage.Snapshot{
			Stats: []storage.Stats{
				{ScenarioID: "a", TimesPlayed: 1, LastPlayed: recent},
				{ScenarioID: "b", TimesPlayed: 1, LastPlayed: recent},
			},
			RotationEntries: []storage.RotationEntry{
				{ScenarioID: "a", Weight: 1, MinimumGapDays: 3},
				{ScenarioID: "b", Weight: 1, MinimumGapDays: 3},
				{ScenarioID: "x", Weight: 1},
				{ScenarioID: "y", Weight: 2},
				{ScenarioID: "z", Weight: 1},
			},
		})
		got := s.ApplyRotationFilter([]string{"a", "b", "x"}, 4)
		if len(got) != 3 {
			t.Fatalf("filtered = %v, want x plus two backfilled", got)
		}
		if got[0] != "x" {
			t.Fatalf("first = %s, want surviving option x", got[0])
		}
		seen := map[string]bool{}
		for _, id := range got {
			if seen[id] {
				t.Fatalf("duplicate %s in %v", id, got)
			}
			if id == "a" || id == "b" {
				t.Fatalf("disallowed %s in %v", id, got)
			}
			seen[id] = true
		}
	})
}

func TestSetRotationEntryReplaces(t *testing.T) {
	s := NewScorer()
	if err := s.SetRotationEntry(storage.RotationEntry{ScenarioID: "a", Weight: 1}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.SetRotationEntry(storage.RotationEntry{ScenarioID: "b", Weight: 1}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.SetRotationEntry(storage.RotationEntry{ScenarioID: "a", Weight: 2, MinimumGapDays: 4}); err != nil {
		t.Fatalf("set: %v", err)
	}
	entries := s.RotationEntries()
	if len(entries) != 2 || entries[1].ScenarioID != "a" || entries[1].Weight != 2 {
		t.Fatalf("entries = %+v", entries)
	}

	err := s.SetRotationEntry(storage.RotationEntry{ScenarioID: "c", Weight: -1})
	if !apperrors.IsCode(err, apperrors.CodeInvalidRotation) {
		t.Fatalf("err = %v, want invalid rotation", err)
	}
	if !s.RemoveRotationEntry("a") || s.RemoveRotationEntry("a") {
		t.Fatal("remove should succeed once")
	}
}

func TestSeedRotationKeepsExisting(t *testing.T) {
	s := NewScorer()
	_ = s.SetRotationEntry(storage.RotationEntry{ScenarioID: "a", Weight: 3})
	added := s.SeedRotation(
		storage.RotationEntry{ScenarioID: "a", Weight: 1},
		storage.RotationEntry{ScenarioID: "b", Weight: 1, MinimumGapDays: 1},
	)
	if added != 1 {
		t.Fatalf("added = %d, want 1", added)
	}
	entry, _ := s.RotationEntry("a")
	if entry.Weight != 3 {
		t.Fatalf("weight = %v, want 3", entry.Weight)
	}
}

func TestRecordVotes(t *testing.T) {
	s := NewScorer()
	s.RecordVotes(map[string]int{"a": 2, "b": 0, "": 4})
	s.RecordVotes(map[string]int{"a": 1})
	if got := s.GetStats("a").TotalVotes; got != 3 {
		t.Fatalf("total votes = %d, want 3", got)
	}
	if len(s.Snapshot().Stats) != 1 {
		t.Fatalf("stats = %+v, want only a", s.Snapshot().Stats)
	}
}

func TestLoadFailSoft(t *testing.T) {
	store := &fakeStore{loadErr: errors.New("corrupt")}
	s := NewScorer(WithStore(store, nil))
	s.RecordPlay("stale")

	err := s.Load(context.Background())
	if !apperrors.IsCode(err, apperrors.CodeStorageUnavailable) {
		t.Fatalf("err = %v, want storage unavailable", err)
	}
	snap := s.Snapshot()
	if len(snap.Stats) != 0 || len(snap.RotationEntries) != 0 {
		t.Fatalf("snapshot = %+v, want empty", snap)
	}
}

func TestLoadRestoresAndMutationsPersist(t *testing.T) {
	store := &fakeStore{snap: storage.Snapshot{
		Stats:           []storage.Stats{{ScenarioID: "a", TimesPlayed: 1}},
		RotationEntries: []storage.RotationEntry{{ScenarioID: "a", Weight: 1}},
	}}
	s := NewScorer(WithStore(store, nil))
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.GetStats("a").TimesPlayed != 1 {
		t.Fatalf("stats = %+v", s.GetStats("a"))
	}
	s.RecordPlay("a")
	if store.saves != 1 || store.snap.Stats[0].TimesPlayed != 2 {
		t.Fatalf("saves = %d, stored = %+v", store.saves, store.snap.Stats)
	}
}

func TestSaveStatsRequiresID(t *testing.T) {
	s := NewScorer()
	if err := s.SaveStats(storage.Stats{}); !apperrors.IsCode(err, apperrors.CodeScenarioRequired) {
		t.Fatalf("err = %v, want scenario required", err)
	}
	if err := s.SaveStats(storage.Stats{ScenarioID: "a", TimesPlayed: 9}); err != nil {
		t.Fatalf("save stats: %v", err)
	}
	if s.GetStats("a").TimesPlayed != 9 {
		t.Fatal("stats not stored")
	}
}
