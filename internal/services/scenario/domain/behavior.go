package domain

import (
	"time"

	"github.com/Impact-Forge/SharedGamemode/internal/services/scenario/domain/labels"
	"github.com/Impact-Forge/SharedGamemode/internal/services/scenario/scheduler"
)

// Scheduler defers callbacks on the authority's clock.
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) scheduler.Token
	Cancel(token scheduler.Token) bool
}

// Env is the view of its owning instance a task may use.
type Env interface {
	InstanceID() string
	ScenarioID() string
	Tags() []string
	Labels() *labels.Store
	Scheduler() Scheduler
	Logf(format string, args ...any)
}

// Tracker evaluates one contributing condition of an objective. Results are
// reported through the handle passed to BeginPlay.
type Tracker interface {
	BeginPlay(handle *TrackerHandle)
	EndPlay(cancelled bool)
}

// Service runs for the lifetime of a stage, or of the whole scenario when
// declared as a global service. It has no outcome.
type Service interface {
	BeginPlay(env Env)
	EndPlay(cancelled bool)
}

// StageObserver is implemented by global services that react to stage
// boundaries.
type StageObserver interface {
	StageBegun(prevResult Result, prevStage StageID)
	StageEnded(result Result)
}

// Markable trackers accept results from outside the instance.
type Markable interface {
	Mark(result Result)
}

// TaskFactory builds runtime tasks from template specs.
type TaskFactory interface {
	NewTracker(spec TaskSpec) (Tracker, error)
	NewService(spec TaskSpec) (Service, error)
}

// TrackerHandle is a tracker's link back to its instance. A handle goes stale
// when its stage exits; stale handles ignore every call.
type TrackerHandle struct {
	inst *Instance
	slot int
	gen  uint64
}

// Env returns the owning instance.
func (h *TrackerHandle) Env() Env {
	return h.inst
}

// Objective reports which objective the tracker contributes to.
func (h *TrackerHandle) Objective() ObjectiveID {
	if s := h.live(); s != nil {
		return s.objective
	}
	return -1
}

// Result reports the tracker's current result.
func (h *TrackerHandle) Result() Result {
	if s := h.live(); s != nil {
		return s.result
	}
	return ResultNone
}

// SetResult records a new result. A change triggers stage re-evaluation
// before SetResult returns.
func (h *TrackerHandle) SetResult(result Result) {
	s := h.live()
	if s == nil || s.result == result {
		return
	}
	s.result = result
	h.inst.trackerChanged()
}

// MarkSuccess is SetResult(ResultSuccess).
func (h *TrackerHandle) MarkSuccess() { h.SetResult(ResultSuccess) }

// MarkFailure is SetResult(ResultFailure).
func (h *TrackerHandle) MarkFailure() { h.SetResult(ResultFailure) }

func (h *TrackerHandle) live() *trackerSlot {
	if h == nil || h.inst == nil || h.gen != h.inst.stageGen.Current() {
		return nil
	}
	if h.slot < 0 || h.slot >= len(h.inst.trackers) {
		return nil
	}
	return h.inst.trackers[h.slot]
}
