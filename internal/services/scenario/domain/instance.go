package domain

import (
	"errors"
	"fmt"
	"log"
	"slices"
	"time"

	"github.com/Impact-Forge/SharedGamemode/internal/services/scenario/domain/labels"
	"github.com/Impact-Forge/SharedGamemode/internal/services/scenario/scheduler"
)

// maxChainedStages bounds how many stages may settle synchronously inside one
// call. A graph that loops through settled stages is cancelled at this depth.
const maxChainedStages = 32

var (
	// ErrTrackerNotFound is returned when a tracker index is out of range.
	ErrTrackerNotFound = errors.New("tracker not found")
	// ErrTrackerNotMarkable is returned when a tracker does not accept external results.
	ErrTrackerNotMarkable = errors.New("tracker does not accept external results")
)

type trackerSlot struct {
	objective ObjectiveID
	kind      string
	tracker   Tracker
	result    Result
}

// TrackerView is a read-only snapshot of a live tracker.
type TrackerView struct {
	Index     int
	Objective ObjectiveID
	Kind      string
	Result    Result
}

// Option configures an Instance.
type Option func(*Instance)

// WithAuthority marks whether the instance drives simulation. Mirrors track
// the current stage but never spawn tasks or decide transitions.
func WithAuthority(authority bool) Option {
	return func(i *Instance) { i.authority = authority }
}

// WithTags attaches runtime tags supplied at start.
func WithTags(tags ...string) Option {
	return func(i *Instance) { i.tags = append(i.tags, tags...) }
}

// WithLogger sets the logger used for author errors.
func WithLogger(logger *log.Logger) Option {
	return func(i *Instance) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// Instance is one running scenario. It must be confined to the authority
// goroutine.
type Instance struct {
	id        string
	scenario  *Scenario
	factory   TaskFactory
	sched     Scheduler
	authority bool
	tags      []string
	logger    *log.Logger

	state      State
	current    StageID
	prevResult Result
	labels     *labels.Store

	globals  []Service
	services []Service
	trackers []*trackerSlot

	stageGen   scheduler.Generation
	entering   bool
	depth      int
	pending    scheduler.Token
	hasPending bool
	ended      bool

	onEnded        []func(inst *Instance, cancelled bool)
	onStateChanged []func(inst *Instance, next, prev State)
	onStageChanged []func(inst *Instance, stage StageID)
}

// NewInstance prepares an instance of scenario. Call Init to start it.
func NewInstance(id string, scenario *Scenario, factory TaskFactory, sched Scheduler, opts ...Option) *Instance {
	inst := &Instance{
		id:        id,
		scenario:  scenario,
		factory:   factory,
		sched:     sched,
		authority: true,
		logger:    log.Default(),
		current:   NoStage,
		labels:    labels.New(),
	}
	for _, opt := range opts {
		opt(inst)
	}
	return inst
}

// OnEnded registers fn to run once the scenario ends.
func (i *Instance) OnEnded(fn func(inst *Instance, cancelled bool)) {
	if fn != nil {
		i.onEnded = append(i.onEnded, fn)
	}
}

// OnStateChanged registers fn for every scenario state change.
func (i *Instance) OnStateChanged(fn func(inst *Instance, next, prev State)) {
	if fn != nil {
		i.onStateChanged = append(i.onStateChanged, fn)
	}
}

// OnStageChanged registers fn for every stage entry and for the final exit
// (stage NoStage).
func (i *Instance) OnStageChanged(fn func(inst *Instance, stage StageID)) {
	if fn != nil {
		i.onStageChanged = append(i.onStageChanged, fn)
	}
}

// Init activates the instance, starts its global services, and enters the
// initial stage.
func (i *Instance) Init() error {
	if i.state != StateNone {
		return fmt.Errorf("instance %s already initialized", i.id)
	}
	if i.scenario == nil {
		return errors.New("scenario is required")
	}
	if _, ok := i.scenario.Stage(i.scenario.InitialStage); !ok {
		return fmt.Errorf("scenario %s has no initial stage", i.scenario.ID)
	}

	i.setState(StateActive)
	if i.authority {
		for _, spec := range i.scenario.GlobalServices {
			svc, err := i.factory.NewService(spec)
			if err != nil {
				i.Logf("global service %q: %v", spec.Kind, err)
				continue
			}
			i.globals = append(i.globals, svc)
			svc.BeginPlay(i)
		}
	}
	i.EnterStage(i.scenario.InitialStage)
	return nil
}

// EnterStage makes stage current. With authority it spawns the stage's
// services, then one tracker per tracker template of each objective, and
// finally checks whether the stage has already settled.
func (i *Instance) EnterStage(id StageID) bool {
	if i.ended {
		return false
	}
	stage, ok := i.scenario.Stage(id)
	if !ok {
		i.Logf("enter stage %d: no such stage", id)
		return false
	}
	prevStage := i.current
	i.current = id
	i.stageGen.Bump()
	for _, fn := range i.onStageChanged {
		fn(i, id)
	}
	if !i.authority {
		return true
	}

	i.entering = true
	for _, svc := range i.globals {
		if obs, ok := svc.(StageObserver); ok {
			obs.StageBegun(i.prevResult, prevStage)
		}
	}
	for _, spec := range stage.Services {
		svc, err := i.factory.NewService(spec)
		if err != nil {
			i.Logf("stage %q service %q: %v", stage.Name, spec.Kind, err)
			continue
		}
		i.services = append(i.services, svc)
		svc.BeginPlay(i)
	}
	gen := i.stageGen.Current()
	for _, objectiveID := range stage.Objectives {
		objective, ok := i.scenario.Objective(objectiveID)
		if !ok {
			i.Logf("stage %q: missing objective %d", stage.Name, objectiveID)
			continue
		}
		for _, spec := range objective.Trackers {
			tracker, err := i.factory.NewTracker(spec)
			if err != nil {
				i.Logf("objective %q tracker %q: %v", objective.Name, spec.Kind, err)
				continue
			}
			slot := &trackerSlot{objective: objectiveID, kind: spec.Kind, tracker: tracker, result: ResultInProgress}
			i.trackers = append(i.trackers, slot)
			tracker.BeginPlay(&TrackerHandle{inst: i, slot: len(i.trackers) - 1, gen: gen})
		}
	}
	i.entering = false

	i.TryProgressStage()
	return true
}

// ExitStage ends every per-stage service and tracker. Global services are
// left running and the current stage reference is kept.
func (i *Instance) ExitStage() {
	i.exitStage(ResultNone)
}

func (i *Instance) exitStage(result Result) {
	i.cancelPending()
	i.stageGen.Bump()

	services := i.services
	trackers := i.trackers
	i.services = nil
	i.trackers = nil
	for _, svc := range services {
		svc.EndPlay(false)
	}
	for _, slot := range trackers {
		slot.tracker.EndPlay(false)
	}
	for _, svc := range i.globals {
		if obs, ok := svc.(StageObserver); ok {
			obs.StageEnded(result)
		}
	}
}

// EvaluateObjectives computes the current stage verdict from live trackers.
// Only objectives with at least one live tracker take part.
func (i *Instance) EvaluateObjectives() Result {
	stage, ok := i.scenario.Stage(i.current)
	if !ok {
		return ResultNone
	}

	type tally struct {
		mode                      CompletionMode
		total, success, failure int
	}
	var order []ObjectiveID
	tallies := make(map[ObjectiveID]*tally)

	for _, slot := range i.trackers {
		objective, ok := i.scenario.Objective(slot.objective)
		if !ok {
			continue
		}
		result := slot.result
		if result == ResultNone {
			result = ResultInProgress
		}
		if stage.Mode == AllSuccess && objective.Mode == AllSuccess && result == ResultFailure {
			return ResultFailure
		}
		if stage.Mode == AnySuccess && objective.Mode == AnySuccess && result == ResultSuccess {
			return ResultSuccess
		}

		t, ok := tallies[slot.objective]
		if !ok {
			t = &tally{mode: objective.Mode}
			tallies[slot.objective] = t
			order = append(order, slot.objective)
		}
		t.total++
		switch result {
		case ResultSuccess:
			t.success++
		case ResultFailure:
			t.failure++
		}
	}

	complete, succeeded := 0, 0
	for _, id := range order {
		t := tallies[id]
		var verdict Result
		switch t.mode {
		case AnySuccess:
			switch {
			case t.success > 0:
				verdict = ResultSuccess
			case t.failure == t.total:
				verdict = ResultFailure
			default:
				verdict = ResultInProgress
			}
		default:
			switch {
			case t.failure > 0:
				verdict = ResultFailure
			case t.success == t.total:
				verdict = ResultSuccess
			default:
				verdict = ResultInProgress
			}
		}
		if verdict == ResultInProgress {
			continue
		}
		complete++
		if verdict == ResultSuccess {
			succeeded++
		}
	}

	if complete < len(order) {
		return ResultInProgress
	}
	if stage.Mode == AnySuccess {
		if succeeded > 0 {
			return ResultSuccess
		}
		return ResultFailure
	}
	if succeeded == complete {
		return ResultSuccess
	}
	return ResultFailure
}

// TryProgressStage advances the stage when its verdict has settled, either
// immediately or after the scenario base delay plus the stage delay. While a
// delayed transition is pending the first verdict stands.
func (i *Instance) TryProgressStage() bool {
	if !i.authority || i.entering || i.ended {
		return false
	}
	stage, ok := i.scenario.Stage(i.current)
	if !ok {
		return false
	}
	if i.hasPending {
		return true
	}

	verdict := i.EvaluateObjectives()
	if !verdict.Settled() {
		return false
	}

	delay := i.scenario.BaseDelay + stage.CompletionDelay
	if delay <= 0 && i.depth >= maxChainedStages {
		i.Logf("stage %q: %d stages settled in one step, cancelling", stage.Name, i.depth)
		i.EndScenario(true)
		return true
	}
	if delay > 0 {
		i.hasPending = true
		i.pending = i.sched.Schedule(delay, i.stageGen.Guard(func() {
			i.hasPending = false
			i.advance(verdict)
		}))
		return true
	}

	i.depth++
	defer func() { i.depth-- }()
	i.advance(verdict)
	return true
}

// TransitionPending reports whether a delayed stage transition is scheduled.
func (i *Instance) TransitionPending() bool {
	return i.hasPending
}

func (i *Instance) advance(verdict Result) {
	stage, ok := i.scenario.Stage(i.current)
	if !ok {
		return
	}
	next := stage.Successor(verdict)

	i.exitStage(verdict)
	i.prevResult = verdict

	if next != NoStage && i.EnterStage(next) {
		return
	}
	i.current = NoStage
	for _, fn := range i.onStageChanged {
		fn(i, NoStage)
	}
	if verdict == ResultSuccess {
		i.setState(StateSuccess)
	} else {
		i.setState(StateFailure)
	}
	i.EndScenario(false)
}

// EndScenario tears the instance down: the current stage exits, global
// services end with the cancelled flag, and OnEnded listeners run. A
// cancellation only overrides the Active state. Calling it again is a no-op.
func (i *Instance) EndScenario(cancelled bool) {
	if i.ended {
		return
	}
	i.ended = true
	if cancelled && i.state == StateActive {
		i.setState(StateCancelled)
	}

	if i.current != NoStage {
		i.exitStage(ResultNone)
		i.current = NoStage
		for _, fn := range i.onStageChanged {
			fn(i, NoStage)
		}
	}
	i.cancelPending()

	globals := i.globals
	i.globals = nil
	for _, svc := range globals {
		svc.EndPlay(cancelled)
	}

	for _, fn := range i.onEnded {
		fn(i, cancelled)
	}
}

// MarkTracker pushes a result into a Markable tracker.
func (i *Instance) MarkTracker(index int, result Result) error {
	if index < 0 || index >= len(i.trackers) {
		return fmt.Errorf("%w: %d", ErrTrackerNotFound, index)
	}
	markable, ok := i.trackers[index].tracker.(Markable)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTrackerNotMarkable, i.trackers[index].kind)
	}
	markable.Mark(result)
	return nil
}

// AddLabel adds n to label.
func (i *Instance) AddLabel(label string, n int) { i.labels.Add(label, n) }

// RemoveLabel removes n from label.
func (i *Instance) RemoveLabel(label string, n int) { i.labels.Remove(label, n) }

// LabelCount reports the count for label.
func (i *Instance) LabelCount(label string) int { return i.labels.Count(label) }

// ForEachService visits global services, then per-stage services.
func (i *Instance) ForEachService(fn func(Service)) {
	for _, svc := range i.globals {
		fn(svc)
	}
	for _, svc := range i.services {
		fn(svc)
	}
}

// Trackers returns a snapshot of the live trackers.
func (i *Instance) Trackers() []TrackerView {
	out := make([]TrackerView, len(i.trackers))
	for idx, slot := range i.trackers {
		out[idx] = TrackerView{Index: idx, Objective: slot.objective, Kind: slot.kind, Result: slot.result}
	}
	return out
}

// IsActive reports whether a stage is current.
func (i *Instance) IsActive() bool { return i.current != NoStage }

// CurrentStage returns the current stage ID, NoStage when inactive.
func (i *Instance) CurrentStage() StageID { return i.current }

// State returns the scenario state.
func (i *Instance) State() State { return i.state }

// PreviousStageResult returns the verdict of the last completed stage.
func (i *Instance) PreviousStageResult() Result { return i.prevResult }

// Scenario returns the template this instance runs.
func (i *Instance) Scenario() *Scenario { return i.scenario }

// HasAuthority reports whether the instance drives simulation.
func (i *Instance) HasAuthority() bool { return i.authority }

// InstanceID implements Env.
func (i *Instance) InstanceID() string { return i.id }

// ScenarioID implements Env.
func (i *Instance) ScenarioID() string {
	if i.scenario == nil {
		return ""
	}
	return i.scenario.ID
}

// Tags implements Env.
func (i *Instance) Tags() []string { return slices.Clone(i.tags) }

// Labels implements Env.
func (i *Instance) Labels() *labels.Store { return i.labels }

// Scheduler implements Env.
func (i *Instance) Scheduler() Scheduler { return i.sched }

// Logf implements Env.
func (i *Instance) Logf(format string, args ...any) {
	i.logger.Printf("scenario %s/%s: "+format, append([]any{i.ScenarioID(), i.id}, args...)...)
}

// Delay returns the transition delay of the current stage.
func (i *Instance) Delay() time.Duration {
	stage, ok := i.scenario.Stage(i.current)
	if !ok {
		return 0
	}
	return i.scenario.BaseDelay + stage.CompletionDelay
}

func (i *Instance) trackerChanged() {
	if i.entering {
		return
	}
	i.TryProgressStage()
}

func (i *Instance) cancelPending() {
	if !i.hasPending {
		return
	}
	i.sched.Cancel(i.pending)
	i.hasPending = false
}

func (i *Instance) setState(next State) {
	prev := i.state
	if prev == next {
		return
	}
	i.state = next
	for _, fn := range i.onStateChanged {
		fn(i, next, prev)
	}
}
