package registry

import (
	"fmt"
	"io"
	"log"
	"reflect"
	"testing"

	apperrors "github.com/Impact-Forge/SharedGamemode/internal/platform/errors"
	"github.com/Impact-Forge/SharedGamemode/internal/services/scenario/domain"
	"github.com/Impact-Forge/SharedGamemode/internal/services/scenario/domain/tasks"
	"github.com/Impact-Forge/SharedGamemode/internal/services/scenario/scheduler"
)

type mapSource map[string]*domain.Scenario

func (m mapSource) Lookup(id string) (*domain.Scenario, bool) {
	s, ok := m[id]
	return s, ok
}

func manualScenario(id string) *domain.Scenario {
	return &domain.Scenario{
		ID:           id,
		InitialStage: 0,
		Stages: []domain.Stage{{
			ID: 0, Name: "only", Objectives: []domain.ObjectiveID{0},
			OnSuccess: domain.NoStage, OnFailure: domain.NoStage,
		}},
		Objectives: []domain.Objective{{ID: 0, Name: "goal", Trackers: []domain.TaskSpec{{Kind: tasks.KindManual}}}},
	}
}

func newRegistry(t *testing.T, ids ...string) *Registry {
	t.Helper()
	source := mapSource{}
	for _, id := range ids {
		source[id] = manualScenario(id)
	}
	n := 0
	return New(source, tasks.Builtin(), scheduler.New(),
		WithLogger(log.New(io.Discard, "", 0)),
		WithIDGenerator(func() (string, error) {
			n++
			return fmt.Sprintf("inst-%d", n), nil
		}),
	)
}

func TestStartScenarioAndRemovalOnEnd(t *testing.T) {
	r := newRegistry(t, "arena")
	var transitions []string
	r.OnStateChanged(func(inst *domain.Instance, next, prev domain.State) {
		transitions = append(transitions, fmt.Sprintf("%s:%s->%s", inst.InstanceID(), prev, next))
	})

	inst, err := r.StartScenario("arena", "night")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := inst.Tags(); !reflect.DeepEqual(got, []string{"night"}) {
		t.Fatalf("tags = %v", got)
	}
	if len(r.Instances()) != 1 {
		t.Fatalf("instances = %d, want 1", len(r.Instances()))
	}

	if err := inst.MarkTracker(0, domain.ResultSuccess); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if len(r.Instances()) != 0 {
		t.Fatal("ended instance still registered")
	}
	want := []string{"inst-1:none->active", "inst-1:active->success"}
	if !reflect.DeepEqual(transitions, want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
}

func TestStartUnknownScenario(t *testing.T) {
	r := newRegistry(t)
	_, err := r.StartScenario("ghost")
	if !apperrors.IsCode(err, apperrors.CodeScenarioUnknown) {
		t.Fatalf("err = %v, want scenario unknown", err)
	}
}

func TestCancelScenario(t *testing.T) {
	r := newRegistry(t, "arena")
	inst, err := r.StartScenario("arena")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := r.CancelScenario("nope"); !apperrors.IsCode(err, apperrors.CodeInstanceNotFound) {
		t.Fatalf("err = %v, want instance not found", err)
	}
	if err := r.CancelScenario(inst.InstanceID()); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if inst.State() != domain.StateCancelled {
		t.Fatalf("state = %s, want cancelled", inst.State())
	}
	if _, ok := r.Instance(inst.InstanceID()); ok {
		t.Fatal("cancelled instance still registered")
	}
}

func TestActivateDeactivate(t *testing.T) {
	r := newRegistry(t, "a", "b")
	var events []string
	r.OnActivated(func(id string) { events = append(events, "+"+id) })
	r.OnDeactivated(func(id string) { events = append(events, "-"+id) })

	for _, id := range []string{"a", "b", "a"} {
		if err := r.Activate(id); err != nil {
			t.Fatalf("activate %s: %v", id, err)
		}
	}
	if got := r.ActiveScenarios(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("active = %v", got)
	}
	if len(r.Instances()) != 2 {
		t.Fatalf("instances = %d, want 2", len(r.Instances()))
	}

	if err := r.Deactivate("a"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := r.Deactivate("a"); err != nil {
		t.Fatalf("second deactivate: %v", err)
	}
	if r.IsActive("a") || !r.IsActive("b") {
		t.Fatalf("active = %v", r.ActiveScenarios())
	}
	for _, inst := range r.Instances() {
		if inst.ScenarioID() == "a" {
			t.Fatal("deactivated scenario still has instances")
		}
	}
	if want := []string{"+a", "+b", "-a"}; !reflect.DeepEqual(events, want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
}

func TestActivateForceRestarts(t *testing.T) {
	r := newRegistry(t, "a")
	if err := r.ActivateScenario("a", false); err != nil {
		t.Fatalf("activate: %v", err)
	}
	first := r.Instances()[0]
	if err := r.ActivateScenario("a", true); err != nil {
		t.Fatalf("force activate: %v", err)
	}
	if first.State() != domain.StateCancelled {
		t.Fatalf("first instance state = %s, want cancelled", first.State())
	}
	if len(r.Instances()) != 1 || r.Instances()[0] == first {
		t.Fatal("expected a fresh instance")
	}
}

func TestPendingScenario(t *testing.T) {
	r := newRegistry(t, "a")
	if err := r.TransitionToPendingScenario(false); !apperrors.IsCode(err, apperrors.CodeScenarioNoPending) {
		t.Fatalf("err = %v, want no pending", err)
	}
	if err := r.SetPendingScenario("ghost"); !apperrors.IsCode(err, apperrors.CodeScenarioUnknown) {
		t.Fatalf("err = %v, want unknown", err)
	}
	if err := r.SetPendingScenario("a"); err != nil {
		t.Fatalf("set pending: %v", err)
	}
	if err := r.TransitionToPendingScenario(false); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if r.PendingScenario() != "" || !r.IsActive("a") {
		t.Fatalf("pending = %q active = %v", r.PendingScenario(), r.ActiveScenarios())
	}
}

func TestTearDown(t *testing.T) {
	r := newRegistry(t, "a", "b")
	_ = r.Activate("a")
	extra, _ := r.StartScenario("b")
	_ = r.SetPendingScenario("b")

	r.TearDown()

	if len(r.ActiveScenarios()) != 0 || len(r.Instances()) != 0 || r.PendingScenario() != "" {
		t.Fatalf("registry not empty after teardown")
	}
	if extra.State() != domain.StateCancelled {
		t.Fatalf("extra state = %s", extra.State())
	}
}

func TestStageChangesForwarded(t *testing.T) {
	r := newRegistry(t, "arena")
	var stages []domain.StageID
	r.OnStageChanged(func(_ *domain.Instance, stage domain.StageID) {
		stages = append(stages, stage)
	})
	inst, err := r.StartScenario("arena")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := inst.MarkTracker(0, domain.ResultSuccess); err != nil {
		t.Fatalf("mark: %v", err)
	}
	want := []domain.StageID{0, domain.NoStage}
	if !reflect.DeepEqual(stages, want) {
		t.Fatalf("stages = %v, want %v", stages, want)
	}
}
