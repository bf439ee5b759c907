// Package engine resolves the next scenario through timed voting rounds.
//
// One Engine serves both voting variants: the injected Strategy decides how
// options are generated and how the winner is picked. Ballots count once in
// the uniform variant; the weighted variant scales each ballot by the
// voter's performance multiplier and honors vetoes.
//
// An Engine is not safe for concurrent use. The host confines it to the
// authority goroutine.
package engine

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"slices"
	"time"

	apperrors "github.com/Impact-Forge/SharedGamemode/internal/platform/errors"
)

// Phase is the voting lifecycle state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseVoting
)

// String returns the phase name.
func (p Phase) String() string {
	if p == PhaseVoting {
		return "voting"
	}
	return "idle"
}

// Option is one ballot entry.
type Option struct {
	ScenarioID    string
	Votes         int
	WeightedVotes float64
	Vetoes        int
}

// Roster reports which participants may vote.
type Roster interface {
	IsParticipant(participantID string) bool
}

// Activator is the scenario activation collaborator.
type Activator interface {
	Activate(scenarioID string) error
	Deactivate(scenarioID string) error
	IsActive(scenarioID string) bool
	ActiveScenarios() []string
}

// Recorder receives round statistics.
type Recorder interface {
	RecordVotes(tallies map[string]int)
	RecordPlay(scenarioID string)
}

// Outcome describes a resolved round.
type Outcome struct {
	Round   uint64
	Winner  string
	Options []Option
}

// Status is a read view of the engine.
type Status struct {
	Phase     Phase
	Round     uint64
	Remaining time.Duration
	Strategy  string
	Options   []Option
	Voters    int
	// LastWinner is the winner of the most recent resolved round.
	LastWinner string
}

// Engine runs voting rounds.
type Engine struct {
	cfg       Config
	strategy  Strategy
	roster    Roster
	activator Activator
	recorder  Recorder
	rng       *rand.Rand
	logger    *log.Logger
	authority bool

	phase      Phase
	round      uint64
	remaining  time.Duration
	options    []Option
	ledger     *Ledger
	lastWinner string

	onStarted  []func(round uint64, options []Option)
	onResolved []func(Outcome)
	onEmpty    []func(round uint64)
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithRoster sets the voter roster. Without one every vote is rejected.
func WithRoster(roster Roster) EngineOption {
	return func(e *Engine) { e.roster = roster }
}

// WithActivator sets the collaborator that activates winners.
func WithActivator(activator Activator) EngineOption {
	return func(e *Engine) { e.activator = activator }
}

// WithRecorder sets the statistics recorder notified on resolution.
func WithRecorder(recorder Recorder) EngineOption {
	return func(e *Engine) { e.recorder = recorder }
}

// WithRand sets the random source for sampling and tie fallbacks.
func WithRand(rng *rand.Rand) EngineOption {
	return func(e *Engine) {
		if rng != nil {
			e.rng = rng
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithAuthority marks the engine as authoritative (default) or as a mirror
// that rejects every mutation.
func WithAuthority(authority bool) EngineOption {
	return func(e *Engine) { e.authority = authority }
}

// New returns an idle engine.
func New(cfg Config, strategy Strategy, opts ...EngineOption) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("voting config: %w", err)
	}
	if strategy == nil {
		return nil, errors.New("voting strategy is required")
	}
	e := &Engine{
		cfg:       cfg,
		strategy:  strategy,
		rng:       rand.New(rand.NewSource(1)),
		logger:    log.Default(),
		authority: true,
		ledger:    NewLedger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// OnStarted registers fn for new rounds.
func (e *Engine) OnStarted(fn func(round uint64, options []Option)) {
	if fn != nil {
		e.onStarted = append(e.onStarted, fn)
	}
}

// OnResolved registers fn for rounds that produced a winner.
func (e *Engine) OnResolved(fn func(Outcome)) {
	if fn != nil {
		e.onResolved = append(e.onResolved, fn)
	}
}

// OnNoWinner registers fn for rounds that ended without a winner.
func (e *Engine) OnNoWinner(fn func(round uint64)) {
	if fn != nil {
		e.onEmpty = append(e.onEmpty, fn)
	}
}

// Active reports whether a round is open.
func (e *Engine) Active() bool {
	return e.phase == PhaseVoting
}

// StartVoting opens a new round and returns its option IDs. An open round is
// cancelled first so no ballots, vetoes or tallies carry over. The option
// list may be shorter than configured when few candidates are eligible.
func (e *Engine) StartVoting() ([]string, error) {
	if err := e.requireAuthority(); err != nil {
		return nil, err
	}
	if e.phase == PhaseVoting {
		e.logger.Printf("voting round %d restarted before resolution", e.round)
		e.closeRound()
	}

	e.round++
	e.ledger.ResetRound()
	ids := e.strategy.Generate(e.cfg, e.rng)
	e.options = make([]Option, 0, len(ids))
	for _, id := range ids {
		e.options = append(e.options, Option{ScenarioID: id})
	}
	e.remaining = e.cfg.Duration
	e.phase = PhaseVoting
	if len(e.options) == 0 {
		e.logger.Printf("voting round %d has no eligible candidates", e.round)
	}

	options := e.Options()
	for _, fn := range e.onStarted {
		fn(e.round, options)
	}
	return slices.Clone(ids), nil
}

// CancelVoting closes the open round without a winner.
func (e *Engine) CancelVoting() error {
	if err := e.requireAuthority(); err != nil {
		return err
	}
	if e.phase != PhaseVoting {
		return votingInactive()
	}
	e.closeRound()
	return nil
}

// HandlePhaseChange starts voting when the match enters the configured end
// phase. It reports whether a round was started.
func (e *Engine) HandlePhaseChange(phase string) bool {
	if e.cfg.EndPhase == "" || phase != e.cfg.EndPhase {
		return false
	}
	_, err := e.StartVoting()
	return err == nil
}

// CastVote records the participant's choice, replacing any earlier one.
func (e *Engine) CastVote(participantID, scenarioID string) error {
	if err := e.requireAuthority(); err != nil {
		return err
	}
	if e.phase != PhaseVoting {
		return votingInactive()
	}
	if err := e.requireParticipant(participantID); err != nil {
		return err
	}
	next := e.optionIndex(scenarioID)
	if next < 0 {
		return optionUnknown(scenarioID)
	}

	previous, hadPrevious := e.ledger.Record(participantID, scenarioID)
	if hadPrevious {
		if i := e.optionIndex(previous); i >= 0 {
			e.options[i].Votes--
		}
	}
	e.options[next].Votes++
	e.recomputeWeights()
	return nil
}

// Veto counts the participant's single veto for this round against
// scenarioID.
func (e *Engine) Veto(participantID, scenarioID string) error {
	if err := e.requireAuthority(); err != nil {
		return err
	}
	if e.phase != PhaseVoting {
		return votingInactive()
	}
	if !e.strategy.Weighted() || !e.cfg.AllowVetoes {
		return apperrors.New(apperrors.CodeVetoUnavailable, "vetoes are disabled")
	}
	if err := e.requireParticipant(participantID); err != nil {
		return err
	}
	if e.ledger.Vetoed(participantID) {
		return apperrors.WithMetadata(apperrors.CodeVetoAlreadyUsed, "participant already vetoed this round",
			map[string]string{"ParticipantID": participantID})
	}
	i := e.optionIndex(scenarioID)
	if i < 0 {
		return optionUnknown(scenarioID)
	}
	e.ledger.RecordVeto(participantID, scenarioID)
	e.options[i].Vetoes++
	return nil
}

// UpdatePerformance stores the participant's performance multiplier and,
// during a round, recomputes every weighted total.
func (e *Engine) UpdatePerformance(participantID string, score float64) error {
	if err := e.requireAuthority(); err != nil {
		return err
	}
	if participantID == "" {
		return apperrors.New(apperrors.CodeParticipantRequired, "participant id is required")
	}
	e.ledger.SetMultiplier(participantID, e.cfg.Multiplier(score))
	if e.phase == PhaseVoting {
		e.recomputeWeights()
	}
	return nil
}

// RemoveParticipant withdraws a departing participant's ballot and veto
// from the open round and forgets their multiplier.
func (e *Engine) RemoveParticipant(participantID string) {
	if !e.authority {
		return
	}
	if e.phase != PhaseVoting {
		e.ledger.Forget(participantID)
		return
	}
	if choice, ok := e.ledger.Ballot(participantID); ok {
		if i := e.optionIndex(choice); i >= 0 {
			e.options[i].Votes--
		}
	}
	if vetoedID, ok := e.ledger.Veto(participantID); ok {
		if i := e.optionIndex(vetoedID); i >= 0 {
			e.options[i].Vetoes--
		}
	}
	e.ledger.Forget(participantID)
	e.recomputeWeights()
}

// Weight returns the participant's current ballot weight.
func (e *Engine) Weight(participantID string) float64 {
	if !e.strategy.Weighted() {
		return 1
	}
	return e.cfg.BaseWeight * e.ledger.Multiplier(participantID)
}

// Tick advances the countdown by dt and resolves the round once it runs
// out. The returned bool reports whether the round closed on this tick.
func (e *Engine) Tick(dt time.Duration) (Outcome, bool, error) {
	if !e.authority || e.phase != PhaseVoting {
		return Outcome{}, false, nil
	}
	e.remaining -= dt
	if e.remaining > 0 {
		return Outcome{}, false, nil
	}
	outcome, err := e.ProcessResults()
	return outcome, true, err
}

// ProcessResults closes the round and activates the winner. Tallies are
// reported to the recorder; a winner also records a play before the active
// scenarios are replaced. A round without a winner leaves them running and
// returns a no-winner error.
func (e *Engine) ProcessResults() (Outcome, error) {
	if err := e.requireAuthority(); err != nil {
		return Outcome{}, err
	}
	if e.phase != PhaseVoting {
		return Outcome{}, votingInactive()
	}

	outcome := Outcome{Round: e.round, Options: e.Options()}
	winner, ok := e.strategy.Resolve(outcome.Options, e.cfg, e.rng)
	e.closeRound()

	if e.recorder != nil {
		tallies := make(map[string]int, len(outcome.Options))
		for _, opt := range outcome.Options {
			tallies[opt.ScenarioID] = opt.Votes
		}
		e.recorder.RecordVotes(tallies)
	}
	if !ok {
		for _, fn := range e.onEmpty {
			fn(outcome.Round)
		}
		return outcome, apperrors.WithMetadata(apperrors.CodeNoWinner, "voting round ended without a winner",
			map[string]string{"Round": fmt.Sprint(outcome.Round)})
	}

	outcome.Winner = winner
	e.lastWinner = winner
	e.logger.Printf("voting round %d selected %s", outcome.Round, winner)
	if e.recorder != nil {
		e.recorder.RecordPlay(winner)
	}
	activateErr := e.activate(winner)
	for _, fn := range e.onResolved {
		fn(outcome)
	}
	return outcome, activateErr
}

// IsVetoed reports whether scenarioID reached the veto threshold this round.
func (e *Engine) IsVetoed(scenarioID string) bool {
	i := e.optionIndex(scenarioID)
	if i < 0 || !e.strategy.Weighted() {
		return false
	}
	return vetoed(e.options[i], e.cfg)
}

// Options returns a copy of the current ballot.
func (e *Engine) Options() []Option {
	return slices.Clone(e.options)
}

// Status returns a read view of the engine.
func (e *Engine) Status() Status {
	return Status{
		Phase:      e.phase,
		Round:      e.round,
		Remaining:  max(e.remaining, 0),
		Strategy:   e.strategy.Name(),
		Options:    e.Options(),
		Voters:     len(e.ledger.Voters()),
		LastWinner: e.lastWinner,
	}
}

func (e *Engine) activate(winner string) error {
	if e.activator == nil {
		return nil
	}
	var errs []error
	for _, scenarioID := range e.activator.ActiveScenarios() {
		if err := e.activator.Deactivate(scenarioID); err != nil {
			errs = append(errs, fmt.Errorf("deactivate %s: %w", scenarioID, err))
		}
	}
	if err := e.activator.Activate(winner); err != nil {
		errs = append(errs, fmt.Errorf("activate %s: %w", winner, err))
	}
	return errors.Join(errs...)
}

// recomputeWeights rebuilds every weighted total from the ballots.
func (e *Engine) recomputeWeights() {
	for i := range e.options {
		e.options[i].WeightedVotes = 0
	}
	for _, participantID := range e.ledger.Voters() {
		choice, ok := e.ledger.Ballot(participantID)
		if !ok {
			continue
		}
		if i := e.optionIndex(choice); i >= 0 {
			e.options[i].WeightedVotes += e.Weight(participantID)
		}
	}
}

func (e *Engine) closeRound() {
	e.phase = PhaseIdle
	e.remaining = 0
}

func (e *Engine) optionIndex(scenarioID string) int {
	return slices.IndexFunc(e.options, func(opt Option) bool { return opt.ScenarioID == scenarioID })
}

func (e *Engine) requireAuthority() error {
	if !e.authority {
		return apperrors.New(apperrors.CodeNotAuthority, "voting state is read-only on mirrors")
	}
	return nil
}

func (e *Engine) requireParticipant(participantID string) error {
	if participantID == "" {
		return apperrors.New(apperrors.CodeParticipantRequired, "participant id is required")
	}
	if e.roster == nil || !e.roster.IsParticipant(participantID) {
		return apperrors.WithMetadata(apperrors.CodeParticipantUnknown, "participant is not in the session",
			map[string]string{"ParticipantID": participantID})
	}
	return nil
}

func votingInactive() error {
	return apperrors.New(apperrors.CodeVotingInactive, "no voting round is open")
}

func optionUnknown(scenarioID string) error {
	return apperrors.WithMetadata(apperrors.CodeOptionUnknown, "scenario is not on the ballot",
		map[string]string{"ScenarioID": scenarioID})
}
