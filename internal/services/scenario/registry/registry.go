// Package registry is the session-wide container of scenario instances and
// the activation collaborator used by the transition engine.
//
// A Registry is owned by the authority goroutine; nothing here locks.
package registry

import (
	"log"
	"slices"

	apperrors "github.com/Impact-Forge/SharedGamemode/internal/platform/errors"
	"github.com/Impact-Forge/SharedGamemode/internal/platform/id"
	"github.com/Impact-Forge/SharedGamemode/internal/services/scenario/domain"
)

// Source resolves scenario templates by ID.
type Source interface {
	Lookup(scenarioID string) (*domain.Scenario, bool)
}

// StateChangedFunc observes instance state changes.
type StateChangedFunc func(inst *domain.Instance, next, prev domain.State)

// Registry owns every running scenario instance plus the set of activated
// scenarios.
type Registry struct {
	source  Source
	factory domain.TaskFactory
	sched   domain.Scheduler
	logger  *log.Logger
	newID   func() (string, error)

	instances []*domain.Instance
	active    []string
	pending   string

	stateListeners []StateChangedFunc
	stageListeners []func(inst *domain.Instance, stage domain.StageID)
	onActivated    []func(scenarioID string)
	onDeactivated  []func(scenarioID string)
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger for author errors.
func WithLogger(logger *log.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithIDGenerator replaces the instance ID generator.
func WithIDGenerator(fn func() (string, error)) Option {
	return func(r *Registry) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// New creates an empty registry.
func New(source Source, factory domain.TaskFactory, sched domain.Scheduler, opts ...Option) *Registry {
	r := &Registry{
		source:  source,
		factory: factory,
		sched:   sched,
		logger:  log.Default(),
		newID:   id.NewID,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnStateChanged registers fn for state changes of every instance.
func (r *Registry) OnStateChanged(fn StateChangedFunc) {
	if fn != nil {
		r.stateListeners = append(r.stateListeners, fn)
	}
}

// OnStageChanged registers fn for stage changes of every instance.
func (r *Registry) OnStageChanged(fn func(inst *domain.Instance, stage domain.StageID)) {
	if fn != nil {
		r.stageListeners = append(r.stageListeners, fn)
	}
}

// OnActivated registers fn for scenario activations.
func (r *Registry) OnActivated(fn func(scenarioID string)) {
	if fn != nil {
		r.onActivated = append(r.onActivated, fn)
	}
}

// OnDeactivated registers fn for scenario deactivations.
func (r *Registry) OnDeactivated(fn func(scenarioID string)) {
	if fn != nil {
		r.onDeactivated = append(r.onDeactivated, fn)
	}
}

// StartScenario creates and initializes an instance of scenarioID. The
// instance leaves the registry as soon as it ends, which may already have
// happened when StartScenario returns.
func (r *Registry) StartScenario(scenarioID string, tags ...string) (*domain.Instance, error) {
	scenario, ok := r.lookup(scenarioID)
	if !ok {
		return nil, scenarioUnknown(scenarioID)
	}
	instanceID, err := r.newID()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUnknown, "generate instance id", err)
	}

	inst := domain.NewInstance(instanceID, scenario, r.factory, r.sched,
		domain.WithTags(tags...),
		domain.WithLogger(r.logger),
	)
	inst.OnStateChanged(func(inst *domain.Instance, next, prev domain.State) {
		for _, fn := range r.stateListeners {
			fn(inst, next, prev)
		}
	})
	inst.OnStageChanged(func(inst *domain.Instance, stage domain.StageID) {
		for _, fn := range r.stageListeners {
			fn(inst, stage)
		}
	})
	inst.OnEnded(func(inst *domain.Instance, _ bool) {
		r.remove(inst)
	})

	r.instances = append(r.instances, inst)
	if err := inst.Init(); err != nil {
		r.remove(inst)
		return nil, apperrors.WrapWithMetadata(apperrors.CodeScenarioUnknown, "init scenario", map[string]string{"ScenarioID": scenarioID}, err)
	}
	return inst, nil
}

// CancelScenario cancels a running instance.
func (r *Registry) CancelScenario(instanceID string) error {
	inst, ok := r.Instance(instanceID)
	if !ok {
		return apperrors.WithMetadata(apperrors.CodeInstanceNotFound, "scenario instance not found", map[string]string{"InstanceID": instanceID})
	}
	if inst.IsActive() {
		inst.EndScenario(true)
	}
	return nil
}

// Instance finds a running instance by ID.
func (r *Registry) Instance(instanceID string) (*domain.Instance, bool) {
	for _, inst := range r.instances {
		if inst.InstanceID() == instanceID {
			return inst, true
		}
	}
	return nil, false
}

// Instances returns the running instances in start order.
func (r *Registry) Instances() []*domain.Instance {
	return slices.Clone(r.instances)
}

// ForEachScenario visits every running instance. fn may start or cancel
// instances.
func (r *Registry) ForEachScenario(fn func(*domain.Instance)) {
	for _, inst := range r.Instances() {
		fn(inst)
	}
}

// SetPendingScenario queues scenarioID for TransitionToPendingScenario.
func (r *Registry) SetPendingScenario(scenarioID string) error {
	if _, ok := r.lookup(scenarioID); !ok {
		return scenarioUnknown(scenarioID)
	}
	r.pending = scenarioID
	return nil
}

// PendingScenario reports the queued scenario, empty when none.
func (r *Registry) PendingScenario() string {
	return r.pending
}

// TransitionToPendingScenario activates the queued scenario and clears it.
func (r *Registry) TransitionToPendingScenario(force bool) error {
	if r.pending == "" {
		r.logger.Printf("transition to pending scenario called with no pending scenario")
		return apperrors.New(apperrors.CodeScenarioNoPending, "no pending scenario")
	}
	scenarioID := r.pending
	r.pending = ""
	return r.ActivateScenario(scenarioID, force)
}

// Activate implements the activation collaborator. Activating an active
// scenario is a no-op.
func (r *Registry) Activate(scenarioID string) error {
	return r.ActivateScenario(scenarioID, false)
}

// ActivateScenario marks scenarioID active and starts an instance of it.
// With force an already active scenario restarts.
func (r *Registry) ActivateScenario(scenarioID string, force bool) error {
	if _, ok := r.lookup(scenarioID); !ok {
		return scenarioUnknown(scenarioID)
	}
	if r.IsActive(scenarioID) {
		if !force {
			return nil
		}
		r.cancelInstancesOf(scenarioID)
	} else {
		r.active = append(r.active, scenarioID)
	}
	r.logger.Printf("activating scenario %s", scenarioID)
	if _, err := r.StartScenario(scenarioID); err != nil {
		r.active = slices.DeleteFunc(r.active, func(s string) bool { return s == scenarioID })
		return err
	}
	for _, fn := range r.onActivated {
		fn(scenarioID)
	}
	return nil
}

// Deactivate cancels the scenario's instances and removes it from the active
// set. Inactive scenarios are ignored.
func (r *Registry) Deactivate(scenarioID string) error {
	if !r.IsActive(scenarioID) {
		return nil
	}
	r.logger.Printf("deactivating scenario %s", scenarioID)
	r.active = slices.DeleteFunc(r.active, func(s string) bool { return s == scenarioID })
	r.cancelInstancesOf(scenarioID)
	for _, fn := range r.onDeactivated {
		fn(scenarioID)
	}
	return nil
}

// IsActive reports whether scenarioID is in the active set.
func (r *Registry) IsActive(scenarioID string) bool {
	return slices.Contains(r.active, scenarioID)
}

// ActiveScenarios lists active scenario IDs in activation order.
func (r *Registry) ActiveScenarios() []string {
	return slices.Clone(r.active)
}

// TearDown deactivates every scenario, cancels every instance, and drops the
// pending scenario.
func (r *Registry) TearDown() {
	for _, scenarioID := range r.ActiveScenarios() {
		_ = r.Deactivate(scenarioID)
	}
	for _, inst := range r.Instances() {
		inst.EndScenario(true)
	}
	r.instances = nil
	r.pending = ""
}

func (r *Registry) cancelInstancesOf(scenarioID string) {
	for _, inst := range r.Instances() {
		if inst.ScenarioID() == scenarioID {
			inst.EndScenario(true)
		}
	}
}

func (r *Registry) lookup(scenarioID string) (*domain.Scenario, bool) {
	if r.source == nil || scenarioID == "" {
		return nil, false
	}
	return r.source.Lookup(scenarioID)
}

func (r *Registry) remove(inst *domain.Instance) {
	r.instances = slices.DeleteFunc(r.instances, func(existing *domain.Instance) bool {
		return existing == inst
	})
}

func scenarioUnknown(scenarioID string) error {
	return apperrors.WithMetadata(apperrors.CodeScenarioUnknown, "scenario is not in the catalog", map[string]string{"ScenarioID": scenarioID})
}
