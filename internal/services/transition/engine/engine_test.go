package engine

import (
	"errors"
	"io"
	"log"
	"math/rand"
	"slices"
	"testing"
	"time"

	apperrors "github.com/Impact-Forge/SharedGamemode/internal/platform/errors"
)

type fixedCandidates []string

func (f fixedCandidates) ListEligibleCandidates(CandidateFilter) []string {
	return slices.Clone(f)
}

// fixedStrategy returns a preset ballot so tests control option order.
type fixedStrategy struct {
	Strategy
	ids []string
}

func (f fixedStrategy) Generate(Config, *rand.Rand) []string { return slices.Clone(f.ids) }

type roster map[string]bool

func (r roster) IsParticipant(id string) bool { return r[id] }

type fakeActivator struct {
	active []string
	calls  []string
	err    error
}

func (f *fakeActivator) Activate(id string) error {
	f.calls = append(f.calls, "activate:"+id)
	if f.err != nil {
		return f.err
	}
	f.active = append(f.active, id)
	return nil
}

func (f *fakeActivator) Deactivate(id string) error {
	f.calls = append(f.calls, "deactivate:"+id)
	f.active = slices.DeleteFunc(f.active, func(s string) bool { return s == id })
	return nil
}

func (f *fakeActivator) IsActive(id string) bool { return slices.Contains(f.active, id) }

func (f *fakeActivator) ActiveScenarios() []string { return slices.Clone(f.active) }

type fakeRecorder struct {
	votes []map[string]int
	plays []string
}

func (f *fakeRecorder) RecordVotes(tallies map[string]int) { f.votes = append(f.votes, tallies) }
func (f *fakeRecorder) RecordPlay(id string)               { f.plays = append(f.plays, id) }

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func newEngine(t *testing.T, strategy Strategy, opts ...EngineOption) *Engine {
	t.Helper()
	base := []EngineOption{
		WithRoster(roster{"p1": true, "p2": true, "p3": true, "p4": true}),
		WithRand(rand.New(rand.NewSource(42))),
		WithLogger(quietLogger()),
	}
	e, err := New(DefaultConfig(), strategy, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func uniformBallot(ids ...string) Strategy {
	return fixedStrategy{Strategy: Uniform{}, ids: ids}
}

func weightedBallot(ids ...string) Strategy {
	return fixedStrategy{Strategy: Weighted{}, ids: ids}
}

func optionByID(t *testing.T, e *Engine, id string) Option {
	t.Helper()
	for _, opt := range e.Options() {
		if opt.ScenarioID == id {
			return opt
		}
	}
	t.Fatalf("option %s not on ballot", id)
	return Option{}
}

func TestUniformMajorityWins(t *testing.T) {
	activator := &fakeActivator{active: []string{"old"}}
	e := newEngine(t, uniformBallot("A", "B", "C"), WithActivator(activator))
	if _, err := e.StartVoting(); err != nil {
		t.Fatalf("start voting: %v", err)
	}
	for participant, choice := range map[string]string{"p1": "A", "p2": "A", "p3": "B"} {
		if err := e.CastVote(participant, choice); err != nil {
			t.Fatalf("cast vote: %v", err)
		}
	}

	outcome, err := e.ProcessResults()
	if err != nil {
		t.Fatalf("process results: %v", err)
	}
	if outcome.Winner != "A" {
		t.Fatalf("winner = %s, want A", outcome.Winner)
	}
	if e.Active() {
		t.Fatal("voting should be inactive after processing")
	}
	want := []string{"deactivate:old", "activate:A"}
	if !slices.Equal(activator.calls, want) {
		t.Fatalf("activator calls = %v, want %v", activator.calls, want)
	}
}

func TestUniformTieGoesToFirstOption(t *testing.T) {
	e := newEngine(t, uniformBallot("A", "B"))
	_, _ = e.StartVoting()
	_ = e.CastVote("p1", "B")
	_ = e.CastVote("p2", "A")
	outcome, err := e.ProcessResults()
	if err != nil {
		t.Fatalf("process results: %v", err)
	}
	if outcome.Winner != "A" {
		t.Fatalf("winner = %s, want first option A", outcome.Winner)
	}
}

func TestUniformZeroVotesPicksAnOption(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		e := newEngine(t, uniformBallot("A", "B"), WithRand(rand.New(rand.NewSource(seed))))
		_, _ = e.StartVoting()
		outcome, err := e.ProcessResults()
		if err != nil {
			t.Fatalf("seed %d: process results: %v", seed, err)
		}
		if outcome.Winner != "A" && outcome.Winner != "B" {
			t.Fatalf("seed %d: winner = %q, want A or B", seed, outcome.Winner)
		}
	}
}

func TestVoteInvariant(t *testing.T) {
	e := newEngine(t, uniformBallot("A", "B", "C"))
	_, _ = e.StartVoting()
	sequence := []struct{ participant, choice string }{
		{"p1", "A"}, {"p1", "B"}, {"p2", "B"}, {"p1", "C"}, {"p1", "C"}, {"p3", "A"}, {"p2", "A"},
	}
	for _, step := range sequence {
		if err := e.CastVote(step.participant, step.choice); err != nil {
			t.Fatalf("cast vote: %v", err)
		}
		total := 0
		for _, opt := range e.Options() {
			if opt.Votes < 0 {
				t.Fatalf("negative tally: %+v", opt)
			}
			total += opt.Votes
		}
		if total != e.Status().Voters {
			t.Fatalf("total tallies = %d, want %d voters", total, e.Status().Voters)
		}
	}
	if optionByID(t, e, "A").Votes != 2 || optionByID(t, e, "C").Votes != 1 || optionByID(t, e, "B").Votes != 0 {
		t.Fatalf("options = %+v", e.Options())
	}
}

func TestCastVoteRejections(t *testing.T) {
	e := newEngine(t, uniformBallot("A", "B"))
	if err := e.CastVote("p1", "A"); !apperrors.IsCode(err, apperrors.CodeVotingInactive) {
		t.Fatalf("err = %v, want voting inactive", err)
	}
	_, _ = e.StartVoting()
	if err := e.CastVote("stranger", "A"); !apperrors.IsCode(err, apperrors.CodeParticipantUnknown) {
		t.Fatalf("err = %v, want participant unknown", err)
	}
	if err := e.CastVote("p1", "Z"); !apperrors.IsCode(err, apperrors.CodeOptionUnknown) {
		t.Fatalf("err = %v, want option unknown", err)
	}
	for _, opt := range e.Options() {
		if opt.Votes != 0 {
			t.Fatalf("rejected votes changed tallies: %+v", e.Options())
		}
	}
}

func TestWeightedVotesBeatRawTallies(t *testing.T) {
	e := newEngine(t, weightedBallot("A", "B"))
	if err := e.UpdatePerformance("p1", 20); err != nil {
		t.Fatalf("update performance: %v", err)
	}
	_, _ = e.StartVoting()
	_ = e.CastVote("p1", "A")
	_ = e.CastVote("p2", "B")

	if got := optionByID(t, e, "A").WeightedVotes; got != 2.0 {
		t.Fatalf("A weighted = %v, want 2.0", got)
	}
	if got := optionByID(t, e, "B").WeightedVotes; got != 1.0 {
		t.Fatalf("B weighted = %v, want 1.0", got)
	}
	outcome, err := e.ProcessResults()
	if err != nil {
		t.Fatalf("process results: %v", err)
	}
	if outcome.Winner != "A" {
		t.Fatalf("winner = %s, want A", outcome.Winner)
	}
}

func TestUpdatePerformanceRecomputes(t *testing.T) {
	e := newEngine(t, weightedBallot("A", "B"))
	_, _ = e.StartVoting()
	_ = e.CastVote("p1", "A")
	_ = e.CastVote("p2", "A")
	_ = e.CastVote("p3", "B")

	scores := []struct {
		participant string
		score       float64
	}{{"p1", 15}, {"p3", 1}, {"p1", 100}, {"p2", -5}, {"p1", 12}}
	for _, s := range scores {
		if err := e.UpdatePerformance(s.participant, s.score); err != nil {
			t.Fatalf("update performance: %v", err)
		}
		want := map[string]float64{}
		for _, p := range []string{"p1", "p2", "p3"} {
			choice, _ := e.ledger.Ballot(p)
			want[choice] += e.Weight(p)
		}
		for _, opt := range e.Options() {
			if diff := opt.WeightedVotes - want[opt.ScenarioID]; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("%s weighted = %v, want %v", opt.ScenarioID, opt.WeightedVotes, want[opt.ScenarioID])
			}
		}
	}
}

func TestMultiplierClamps(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		score float64
		want  float64
	}{
		{score: 0, want: 0.5},
		{score: 10, want: 1.0},
		{score: 15, want: 1.5},
		{score: 1000, want: 2.0},
		{score: -10, want: 0.5},
	}
	for _, tc := range tests {
		if got := cfg.Multiplier(tc.score); got != tc.want {
			t.Fatalf("Multiplier(%v) = %v, want %v", tc.score, got, tc.want)
		}
	}
}

func TestVetoExcludesOption(t *testing.T) {
	e := newEngine(t, weightedBallot("A", "B"))
	_, _ = e.StartVoting()
	for _, p := range []string{"p1", "p2", "p3"} {
		_ = e.CastVote(p, "A")
		if err := e.Veto(p, "A"); err != nil {
			t.Fatalf("veto: %v", err)
		}
	}
	_ = e.CastVote("p4", "B")
	if !e.IsVetoed("A") {
		t.Fatal("A should be vetoed")
	}
	outcome, err := e.ProcessResults()
	if err != nil {
		t.Fatalf("process results: %v", err)
	}
	if outcome.Winner != "B" {
		t.Fatalf("winner = %s, want B", outcome.Winner)
	}
}

func TestVetoOncePerRound(t *testing.T) {
	e := newEngine(t, weightedBallot("A", "B"))
	_, _ = e.StartVoting()
	if err := e.Veto("p1", "A"); err != nil {
		t.Fatalf("veto: %v", err)
	}
	if err := e.Veto("p1", "B"); !apperrors.IsCode(err, apperrors.CodeVetoAlreadyUsed) {
		t.Fatalf("err = %v, want veto already used", err)
	}
	if optionByID(t, e, "B").Vetoes != 0 || optionByID(t, e, "A").Vetoes != 1 {
		t.Fatalf("options = %+v", e.Options())
	}

	_, _ = e.StartVoting()
	if err := e.Veto("p1", "B"); err != nil {
		t.Fatalf("veto in new round: %v", err)
	}
}

func TestVetoUnavailableForUniform(t *testing.T) {
	e := newEngine(t, uniformBallot("A"))
	_, _ = e.StartVoting()
	if err := e.Veto("p1", "A"); !apperrors.IsCode(err, apperrors.CodeVetoUnavailable) {
		t.Fatalf("err = %v, want veto unavailable", err)
	}
}

func TestAllVetoedPolicies(t *testing.T) {
	setup := func(policy AllVetoedPolicy) *Engine {
		cfg := DefaultConfig()
		cfg.VetoThreshold = 1
		cfg.AllVetoed = policy
		e, err := New(cfg, weightedBallot("A", "B"),
			WithRoster(roster{"p1": true, "p2": true, "p3": true}),
			WithLogger(quietLogger()))
		if err != nil {
			t.Fatalf("new engine: %v", err)
		}
		_, _ = e.StartVoting()
		_ = e.Veto("p1", "A")
		_ = e.Veto("p2", "A")
		_ = e.Veto("p3", "B")
		return e
	}

	t.Run("least vetoed", func(t *testing.T) {
		outcome, err := setup(LeastVetoed).ProcessResults()
		if err != nil {
			t.Fatalf("process results: %v", err)
		}
		if outcome.Winner != "B" {
			t.Fatalf("winner = %s, want B", outcome.Winner)
		}
	})

	t.Run("keep current", func(t *testing.T) {
		activator := &fakeActivator{active: []string{"old"}}
		e := setup(KeepCurrent)
		e.activator = activator
		outcome, err := e.ProcessResults()
		if !apperrors.IsCode(err, apperrors.CodeNoWinner) {
			t.Fatalf("err = %v, want no winner", err)
		}
		if outcome.Winner != "" || len(activator.calls) != 0 {
			t.Fatalf("outcome = %+v, calls = %v", outcome, activator.calls)
		}
		if e.Active() {
			t.Fatal("round should be closed")
		}
	})
}

func TestRestartClearsRound(t *testing.T) {
	e := newEngine(t, weightedBallot("A", "B"))
	_, _ = e.StartVoting()
	_ = e.CastVote("p1", "A")
	_ = e.Veto("p2", "A")
	_, _, _ = e.Tick(10 * time.Second)

	if _, err := e.StartVoting(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	status := e.Status()
	if status.Round != 2 {
		t.Fatalf("round = %d, want 2", status.Round)
	}
	if status.Remaining != DefaultConfig().Duration {
		t.Fatalf("remaining = %v, want full duration", status.Remaining)
	}
	for _, opt := range status.Options {
		if opt.Votes != 0 || opt.WeightedVotes != 0 || opt.Vetoes != 0 {
			t.Fatalf("stale option %+v", opt)
		}
	}
	if status.Voters != 0 {
		t.Fatalf("voters = %d, want 0", status.Voters)
	}
	if _, ok := e.ledger.Ballot("p1"); ok {
		t.Fatal("stale ballot survived restart")
	}
	if err := e.Veto("p2", "B"); err != nil {
		t.Fatalf("veto after restart: %v", err)
	}
}

func TestTickResolvesOnTimeout(t *testing.T) {
	recorder := &fakeRecorder{}
	activator := &fakeActivator{}
	e := newEngine(t, uniformBallot("A", "B"), WithRecorder(recorder), WithActivator(activator))
	var resolved []Outcome
	e.OnResolved(func(o Outcome) { resolved = append(resolved, o) })

	_, _ = e.StartVoting()
	_ = e.CastVote("p1", "B")
	if _, fired, _ := e.Tick(29 * time.Second); fired {
		t.Fatal("round closed early")
	}
	outcome, fired, err := e.Tick(time.Second)
	if !fired || err != nil {
		t.Fatalf("fired = %v, err = %v", fired, err)
	}
	if outcome.Winner != "B" || len(resolved) != 1 {
		t.Fatalf("outcome = %+v, resolved = %d", outcome, len(resolved))
	}
	if !slices.Equal(recorder.plays, []string{"B"}) {
		t.Fatalf("plays = %v", recorder.plays)
	}
	if len(recorder.votes) != 1 || recorder.votes[0]["B"] != 1 {
		t.Fatalf("votes = %v", recorder.votes)
	}
	if !activator.IsActive("B") {
		t.Fatal("winner not activated")
	}
	if _, fired, _ := e.Tick(time.Minute); fired {
		t.Fatal("idle engine should not fire")
	}
}

func TestProcessResultsReportsActivationError(t *testing.T) {
	activator := &fakeActivator{err: errors.New("boom")}
	e := newEngine(t, uniformBallot("A"), WithActivator(activator))
	_, _ = e.StartVoting()
	outcome, err := e.ProcessResults()
	if err == nil {
		t.Fatal("expected activation error")
	}
	if outcome.Winner != "A" {
		t.Fatalf("winner = %s, want A", outcome.Winner)
	}
}

func TestMirrorRejectsMutations(t *testing.T) {
	e := newEngine(t, uniformBallot("A"), WithAuthority(false))
	if _, err := e.StartVoting(); !apperrors.IsCode(err, apperrors.CodeNotAuthority) {
		t.Fatalf("err = %v, want not authority", err)
	}
	if err := e.UpdatePerformance("p1", 10); !apperrors.IsCode(err, apperrors.CodeNotAuthority) {
		t.Fatalf("err = %v, want not authority", err)
	}
}

func TestRemoveParticipantWithdrawsBallot(t *testing.T) {
	e := newEngine(t, weightedBallot("A", "B"))
	_, _ = e.StartVoting()
	_ = e.CastVote("p1", "A")
	_ = e.CastVote("p2", "A")
	e.RemoveParticipant("p1")
	opt := optionByID(t, e, "A")
	if opt.Votes != 1 || opt.WeightedVotes != 1 {
		t.Fatalf("option = %+v, want one remaining ballot", opt)
	}
}

func TestRemoveParticipantWithdrawsVeto(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VetoThreshold = 2
	e, err := New(cfg, weightedBallot("A", "B"),
		WithRoster(roster{"p1": true, "p2": true}),
		WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	_, _ = e.StartVoting()
	if err := e.Veto("p1", "A"); err != nil {
		t.Fatalf("veto: %v", err)
	}
	e.RemoveParticipant("p1")
	if got := optionByID(t, e, "A").Vetoes; got != 0 {
		t.Fatalf("vetoes after leave = %d, want 0", got)
	}

	// Rejoining in the same round leaves one counted veto.
	if err := e.Veto("p1", "A"); err != nil {
		t.Fatalf("veto after rejoin: %v", err)
	}
	if got := optionByID(t, e, "A").Vetoes; got != 1 {
		t.Fatalf("vetoes after rejoin = %d, want 1", got)
	}
	if e.IsVetoed("A") {
		t.Fatal("one participant vetoed A past the threshold")
	}
}

func TestHandlePhaseChange(t *testing.T) {
	e := newEngine(t, uniformBallot("A"))
	if e.HandlePhaseChange("Game.Warmup") {
		t.Fatal("unrelated phase started voting")
	}
	if !e.HandlePhaseChange("Game.EndGame") || !e.Active() {
		t.Fatal("end phase should start voting")
	}
}

func TestUniformGenerateSamplesWithoutReplacement(t *testing.T) {
	strategy := Uniform{Candidates: fixedCandidates{"a", "b", "c", "d", "a"}}
	cfg := DefaultConfig()
	got := strategy.Generate(cfg, rand.New(rand.NewSource(3)))
	if len(got) != 3 {
		t.Fatalf("options = %v, want 3", got)
	}
	if len(sortedUnique(slices.Clone(got))) != 3 {
		t.Fatalf("options = %v contain duplicates", got)
	}

	cfg.OptionCount = 10
	if got := strategy.Generate(cfg, rand.New(rand.NewSource(3))); len(got) != 4 {
		t.Fatalf("options = %v, want capped at 4 eligible", got)
	}
	if got := (Uniform{}).Generate(cfg, rand.New(rand.NewSource(3))); len(got) != 0 {
		t.Fatalf("options = %v, want none without candidates", got)
	}
}

type fakeRanker struct {
	ranked   []string
	filtered []string
}

func (f fakeRanker) GetWeightedCandidates(count int) []string {
	return slices.Clone(f.ranked[:min(count, len(f.ranked))])
}

func (f fakeRanker) ApplyRotationFilter(options []string, _ int) []string {
	if f.filtered != nil {
		return slices.Clone(f.filtered)
	}
	return options
}

func TestWeightedGenerate(t *testing.T) {
	cfg := DefaultConfig()
	rng := rand.New(rand.NewSource(1))

	got := Weighted{Ranker: fakeRanker{ranked: []string{"x", "gone", "y", "z"}}, Candidates: fixedCandidates{"x", "y", "z"}}.Generate(cfg, rng)
	if !slices.Equal(got, []string{"x", "y"}) {
		t.Fatalf("options = %v, want [x y]", got)
	}

	got = Weighted{Ranker: fakeRanker{}, Candidates: fixedCandidates{"x", "y"}}.Generate(cfg, rng)
	if len(got) != 2 {
		t.Fatalf("fallback options = %v, want both candidates", got)
	}

	got = Weighted{Ranker: fakeRanker{ranked: []string{"x"}, filtered: []string{"w", "y"}}}.Generate(cfg, rng)
	if !slices.Equal(got, []string{"w", "y"}) {
		t.Fatalf("filtered options = %v, want [w y]", got)
	}
}

func TestEmptyBallotHasNoWinner(t *testing.T) {
	e := newEngine(t, uniformBallot())
	ids, err := e.StartVoting()
	if err != nil || len(ids) != 0 {
		t.Fatalf("ids = %v, err = %v", ids, err)
	}
	if _, err := e.ProcessResults(); !apperrors.IsCode(err, apperrors.CodeNoWinner) {
		t.Fatalf("err = %v, want no winner", err)
	}
}

func TestParseAllVetoedPolicy(t *testing.T) {
	if p, err := ParseAllVetoedPolicy("keep_current"); err != nil || p != KeepCurrent {
		t.Fatalf("policy = %v, err = %v", p, err)
	}
	if p, err := ParseAllVetoedPolicy(""); err != nil || p != LeastVetoed {
		t.Fatalf("policy = %v, err = %v", p, err)
	}
	if _, err := ParseAllVetoedPolicy("coin_flip"); err == nil {
		t.Fatal("expected error")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OptionCount = 0
	if _, err := New(cfg, Uniform{}); err == nil {
		t.Fatal("expected config error")
	}
	if _, err := New(DefaultConfig(), nil); err == nil {
		t.Fatal("expected strategy error")
	}
}
