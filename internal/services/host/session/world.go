// Package session holds the single-owner aggregate of a game session: the
// scenario registry, the rotation scorer, the transition engine and the
// participant roster, plus the actor goroutine that serializes access to them.
package session

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"slices"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/Impact-Forge/SharedGamemode/internal/platform/errors"
	"github.com/Impact-Forge/SharedGamemode/internal/platform/telemetry"
	"github.com/Impact-Forge/SharedGamemode/internal/platform/telemetry/events"
	"github.com/Impact-Forge/SharedGamemode/internal/platform/telemetry/metrics"
	"github.com/Impact-Forge/SharedGamemode/internal/services/scenario/catalog"
	"github.com/Impact-Forge/SharedGamemode/internal/services/scenario/domain"
	"github.com/Impact-Forge/SharedGamemode/internal/services/scenario/domain/tasks"
	"github.com/Impact-Forge/SharedGamemode/internal/services/scenario/registry"
	"github.com/Impact-Forge/SharedGamemode/internal/services/scenario/scheduler"
	"github.com/Impact-Forge/SharedGamemode/internal/services/transition/engine"
	"github.com/Impact-Forge/SharedGamemode/internal/services/transition/rotation"
	"github.com/Impact-Forge/SharedGamemode/internal/services/transition/storage"
)

// WorldConfig configures NewWorld.
type WorldConfig struct {
	// Catalog supplies scenario templates. Required.
	Catalog *catalog.Store
	// Tasks builds trackers and services; defaults to tasks.Builtin().
	Tasks *tasks.Registry
	// ScorerOptions are appended after the player-count and rand options.
	ScorerOptions []rotation.Option
	Voting        engine.Config
	// Weighted selects the weighted/veto strategy over the uniform one.
	Weighted    bool
	Rand        *rand.Rand
	Publisher   events.Publisher
	Metrics     *metrics.Metrics
	Logger      *log.Logger
	IDGenerator func() (string, error)
}

// World owns all mutable session state. It is not safe for concurrent use;
// Host confines it to one goroutine.
type World struct {
	sched    *scheduler.Scheduler
	tasks    *tasks.Registry
	catalog  *catalog.Store
	registry *registry.Registry
	scorer   *rotation.Scorer
	engine   *engine.Engine
	roster   *Roster
	emitter  *telemetry.Emitter
	metrics  *metrics.Metrics
	logger   *log.Logger
}

// NewWorld wires the registry, scorer and engine together.
func NewWorld(cfg WorldConfig) (*World, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog store is required")
	}
	if cfg.Tasks == nil {
		cfg.Tasks = tasks.Builtin()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.Noop{}
	}

	w := &World{
		sched:   scheduler.New(),
		tasks:   cfg.Tasks,
		catalog: cfg.Catalog,
		roster:  NewRoster(),
		emitter: telemetry.NewEmitter(cfg.Publisher),
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}

	regOpts := []registry.Option{registry.WithLogger(cfg.Logger)}
	if cfg.IDGenerator != nil {
		regOpts = append(regOpts, registry.WithIDGenerator(cfg.IDGenerator))
	}
	w.registry = registry.New(cfg.Catalog, cfg.Tasks, w.sched, regOpts...)

	scorerOpts := []rotation.Option{
		rotation.WithPlayerCount(w.roster.Count),
		rotation.WithRand(cfg.Rand),
		rotation.WithLogger(cfg.Logger),
	}
	w.scorer = rotation.NewScorer(append(scorerOpts, cfg.ScorerOptions...)...)

	candidates := catalogCandidates{store: cfg.Catalog}
	var strategy engine.Strategy = engine.Uniform{Candidates: candidates}
	if cfg.Weighted {
		strategy = engine.Weighted{Ranker: w.scorer, Candidates: candidates}
	}
	eng, err := engine.New(cfg.Voting, strategy,
		engine.WithRoster(w.roster),
		engine.WithActivator(w.registry),
		engine.WithRecorder(w.scorer),
		engine.WithRand(cfg.Rand),
		engine.WithLogger(cfg.Logger),
		engine.WithAuthority(true),
	)
	if err != nil {
		return nil, err
	}
	w.engine = eng

	w.wireListeners()
	return w, nil
}

func (w *World) wireListeners() {
	w.registry.OnActivated(func(scenarioID string) {
		w.metrics.SetActiveScenarios(len(w.registry.ActiveScenarios()))
		w.emit(events.Event{Type: events.TypeScenarioActivated, ScenarioID: scenarioID})
	})
	w.registry.OnDeactivated(func(scenarioID string) {
		w.metrics.SetActiveScenarios(len(w.registry.ActiveScenarios()))
		w.emit(events.Event{Type: events.TypeScenarioDeactivated, ScenarioID: scenarioID})
	})
	w.registry.OnStateChanged(func(inst *domain.Instance, next, prev domain.State) {
		if next.Finished() {
			w.metrics.ScenarioEnded(next.String())
		}
		w.emit(events.Event{
			Type:       events.TypeScenarioState,
			ScenarioID: inst.ScenarioID(),
			InstanceID: inst.InstanceID(),
			Attributes: map[string]string{"state": next.String(), "previous": prev.String()},
		})
	})
	w.registry.OnStageChanged(func(inst *domain.Instance, stage domain.StageID) {
		w.metrics.StageChanged()
		w.emit(events.Event{
			Type:       events.TypeStageChanged,
			ScenarioID: inst.ScenarioID(),
			InstanceID: inst.InstanceID(),
			Attributes: map[string]string{"stage": stageName(inst.Scenario(), stage)},
		})
	})

	w.engine.OnStarted(func(round uint64, options []engine.Option) {
		w.metrics.RoundStarted()
		ids := make([]string, 0, len(options))
		for _, opt := range options {
			ids = append(ids, opt.ScenarioID)
		}
		attrs := map[string]string{"options": strings.Join(ids, ",")}
		w.emit(events.Event{Type: events.TypeVotingStarted, Round: round, Attributes: attrs})
	})
	w.engine.OnResolved(func(out engine.Outcome) {
		w.metrics.RoundResolved(true)
		attrs := make(map[string]string, len(out.Options))
		for _, opt := range out.Options {
			attrs["votes."+opt.ScenarioID] = strconv.Itoa(opt.Votes)
		}
		w.emit(events.Event{Type: events.TypeVotingResolved, ScenarioID: out.Winner, Round: out.Round, Attributes: attrs})
	})
	w.engine.OnNoWinner(func(round uint64) {
		w.metrics.RoundResolved(false)
		w.emit(events.Event{Type: events.TypeVotingNoWinner, Round: round})
	})
}

func (w *World) emit(evt events.Event) {
	if err := w.emitter.Emit(context.Background(), evt); err != nil {
		w.logger.Printf("publish %s event: %v", evt.Type, err)
	}
}

// Advance moves virtual time forward by d: due scheduler callbacks fire
// first, then the voting countdown ticks.
func (w *World) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	w.sched.Advance(d)
	if _, _, err := w.engine.Tick(d); err != nil && !apperrors.IsCode(err, apperrors.CodeNoWinner) {
		w.logger.Printf("resolve voting round: %v", err)
	}
}

// StartVoting opens a round and returns its options.
func (w *World) StartVoting() ([]string, error) {
	return w.engine.StartVoting()
}

// CancelVoting closes the current round without a winner.
func (w *World) CancelVoting() error {
	return w.engine.CancelVoting()
}

// ProcessResults resolves the current round immediately.
func (w *World) ProcessResults() (engine.Outcome, error) {
	return w.engine.ProcessResults()
}

// CastVote records a ballot.
func (w *World) CastVote(participantID, scenarioID string) error {
	if err := w.engine.CastVote(participantID, scenarioID); err != nil {
		return err
	}
	w.metrics.BallotCast()
	return nil
}

// Veto records a veto.
func (w *World) Veto(participantID, scenarioID string) error {
	if err := w.engine.Veto(participantID, scenarioID); err != nil {
		return err
	}
	w.metrics.VetoCast()
	return nil
}

// UpdatePerformance sets a participant's performance score. Scores outside
// the multiplier bounds, NaN and infinities included, saturate.
func (w *World) UpdatePerformance(participantID string, score float64) error {
	return w.engine.UpdatePerformance(participantID, score)
}

// Join adds a participant to the roster.
func (w *World) Join(participantID string) error {
	if participantID == "" {
		return apperrors.New(apperrors.CodeParticipantRequired, "participant id is required")
	}
	if w.roster.Join(participantID) {
		w.metrics.SetParticipants(w.roster.Count())
		w.emit(events.Event{Type: events.TypeParticipantJoined, ParticipantID: participantID})
	}
	return nil
}

// Leave removes a participant and withdraws their ballot.
func (w *World) Leave(participantID string) error {
	if !w.roster.Leave(participantID) {
		return apperrors.WithMetadata(apperrors.CodeParticipantUnknown, "participant is not in the session",
			map[string]string{"ParticipantID": participantID})
	}
	w.engine.RemoveParticipant(participantID)
	w.metrics.SetParticipants(w.roster.Count())
	w.emit(events.Event{Type: events.TypeParticipantLeft, ParticipantID: participantID})
	return nil
}

// StartScenario starts an instance outside the activation set.
func (w *World) StartScenario(scenarioID string, tags ...string) (InstanceView, error) {
	inst, err := w.registry.StartScenario(scenarioID, tags...)
	if err != nil {
		return InstanceView{}, err
	}
	return instanceView(inst), nil
}

// ActivateScenario activates a scenario, restarting it when force is set.
func (w *World) ActivateScenario(scenarioID string, force bool) error {
	return w.registry.ActivateScenario(scenarioID, force)
}

// DeactivateScenario cancels a scenario's instances.
func (w *World) DeactivateScenario(scenarioID string) error {
	return w.registry.Deactivate(scenarioID)
}

// CancelScenario cancels one instance.
func (w *World) CancelScenario(instanceID string) error {
	return w.registry.CancelScenario(instanceID)
}

// MarkTracker sets the result of a manual tracker.
func (w *World) MarkTracker(instanceID string, index int, result domain.Result) error {
	inst, err := w.instance(instanceID)
	if err != nil {
		return err
	}
	if err := inst.MarkTracker(index, result); err != nil {
		return apperrors.WrapWithMetadata(apperrors.CodeTrackerNotFound, "mark tracker",
			map[string]string{"InstanceID": instanceID, "Index": strconv.Itoa(index)}, err)
	}
	return nil
}

// AddLabel adjusts a label count on an instance. Negative n removes.
func (w *World) AddLabel(instanceID, label string, n int) error {
	inst, err := w.instance(instanceID)
	if err != nil {
		return err
	}
	if n < 0 {
		inst.RemoveLabel(label, -n)
	} else {
		inst.AddLabel(label, n)
	}
	return nil
}

// Instance returns the view of a running instance.
func (w *World) Instance(instanceID string) (InstanceView, error) {
	inst, err := w.instance(instanceID)
	if err != nil {
		return InstanceView{}, err
	}
	return instanceView(inst), nil
}

func (w *World) instance(instanceID string) (*domain.Instance, error) {
	inst, ok := w.registry.Instance(instanceID)
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodeInstanceNotFound, "scenario instance not found",
			map[string]string{"InstanceID": instanceID})
	}
	return inst, nil
}

// Status returns the observable session state.
func (w *World) Status() StatusView {
	view := StatusView{
		Voting:          votingView(w.engine.Status(), w.engine.IsVetoed),
		ActiveScenarios: w.registry.ActiveScenarios(),
		PendingScenario: w.registry.PendingScenario(),
		Instances:       []InstanceView{},
		Participants:    w.roster.Participants(),
		CatalogSize:     w.catalog.Current().Len(),
	}
	if view.ActiveScenarios == nil {
		view.ActiveScenarios = []string{}
	}
	if view.Participants == nil {
		view.Participants = []string{}
	}
	w.registry.ForEachScenario(func(inst *domain.Instance) {
		view.Instances = append(view.Instances, instanceView(inst))
	})
	return view
}

// Stats returns the play history and rotation standing of a scenario.
func (w *World) Stats(scenarioID string) (StatsView, error) {
	if scenarioID == "" {
		return StatsView{}, apperrors.New(apperrors.CodeScenarioRequired, "scenario id is required")
	}
	view := statsView(w.scorer.GetStats(scenarioID))
	view.Score = w.scorer.Score(scenarioID)
	view.AllowedInRotation = w.scorer.IsAllowedInRotation(scenarioID)
	if entry, ok := w.scorer.RotationEntry(scenarioID); ok {
		weight, gap := entry.Weight, entry.MinimumGapDays
		view.RotationWeight = &weight
		view.MinimumGapDays = &gap
	}
	return view, nil
}

// SetRotationEntry replaces a scenario's rotation entry.
func (w *World) SetRotationEntry(entry storage.RotationEntry) error {
	return w.scorer.SetRotationEntry(entry)
}

// SeedRotation adds catalog rotation defaults for scenarios that have no
// rotation entry and returns how many were added.
func (w *World) SeedRotation() int {
	current := w.catalog.Current()
	var entries []storage.RotationEntry
	for _, id := range current.IDs() {
		defaults, ok := current.Rotation(id)
		if !ok {
			continue
		}
		entries = append(entries, storage.RotationEntry{
			ScenarioID:     id,
			Weight:         defaults.Weight,
			MinimumGapDays: defaults.MinimumGapDays,
		})
	}
	return w.scorer.SeedRotation(entries...)
}

// CatalogReloaded records a catalog swap and seeds rotation entries for new
// scenarios.
func (w *World) CatalogReloaded(c *catalog.Catalog) {
	seeded := w.SeedRotation()
	w.emit(events.Event{
		Type: events.TypeCatalogReloaded,
		Attributes: map[string]string{
			"scenarios": strconv.Itoa(c.Len()),
			"seeded":    strconv.Itoa(seeded),
		},
	})
}

// PhaseChanged forwards a match phase change to the engine and reports
// whether it opened a round.
func (w *World) PhaseChanged(phase string) bool {
	return w.engine.HandlePhaseChange(phase)
}

// Scorer exposes the rotation scorer.
func (w *World) Scorer() *rotation.Scorer {
	return w.scorer
}

// TearDown cancels voting and every scenario.
func (w *World) TearDown() {
	if w.engine.Active() {
		_ = w.engine.CancelVoting()
	}
	w.registry.TearDown()
	w.sched.CancelAll()
}

// catalogCandidates lists catalog scenarios carrying any of the filter tags,
// or every scenario when the filter is empty.
type catalogCandidates struct {
	store *catalog.Store
}

func (c catalogCandidates) ListEligibleCandidates(filter engine.CandidateFilter) []string {
	current := c.store.Current()
	var out []string
	for _, id := range current.IDs() {
		if len(filter.Tags) == 0 {
			out = append(out, id)
			continue
		}
		scenario, ok := current.Lookup(id)
		if !ok {
			continue
		}
		if slices.ContainsFunc(filter.Tags, func(tag string) bool { return slices.Contains(scenario.Tags, tag) }) {
			out = append(out, id)
		}
	}
	return out
}
