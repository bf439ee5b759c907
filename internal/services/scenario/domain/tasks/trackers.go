package tasks

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Impact-Forge/SharedGamemode/internal/services/scenario/domain"
	"github.com/Impact-Forge/SharedGamemode/internal/services/scenario/scheduler"
)

const (
	KindManual         = "manual"
	KindLabelThreshold = "label_threshold"
	KindTimeout        = "timeout"
)

// Manual is settled from outside, through Instance.MarkTracker.
type Manual struct {
	initial domain.Result
	handle  *domain.TrackerHandle
}

// NewManual builds a manual tracker. Param "initial" may preset a result.
func NewManual(spec domain.TaskSpec) (domain.Tracker, error) {
	t := &Manual{initial: domain.ResultInProgress}
	if v := spec.String("initial", ""); v != "" {
		r, err := domain.ParseResult(v)
		if err != nil {
			return nil, fmt.Errorf("manual param initial: %w", err)
		}
		t.initial = r
	}
	return t, nil
}

func (t *Manual) BeginPlay(h *domain.TrackerHandle) {
	t.handle = h
	h.SetResult(t.initial)
}

func (t *Manual) EndPlay(bool) {
	t.handle = nil
}

// Mark implements domain.Markable.
func (t *Manual) Mark(result domain.Result) {
	if t.handle != nil {
		t.handle.SetResult(result)
	}
}

// LabelThreshold succeeds once a label reaches a target count and fails once
// an optional failure label reaches its own target.
type LabelThreshold struct {
	label       string
	target      int
	failLabel   string
	failTarget  int
	handle      *domain.TrackerHandle
	unsubscribe func()
}

// NewLabelThreshold reads params label, target (default 1), fail_label and
// fail_target (default 1).
func NewLabelThreshold(spec domain.TaskSpec) (domain.Tracker, error) {
	label := strings.TrimSpace(spec.String("label", ""))
	if label == "" {
		return nil, errors.New("label_threshold param label is required")
	}
	target, err := spec.Int("target", 1)
	if err != nil {
		return nil, err
	}
	failTarget, err := spec.Int("fail_target", 1)
	if err != nil {
		return nil, err
	}
	if target <= 0 || failTarget <= 0 {
		return nil, errors.New("label_threshold targets must be positive")
	}
	return &LabelThreshold{
		label:      label,
		target:     target,
		failLabel:  strings.TrimSpace(spec.String("fail_label", "")),
		failTarget: failTarget,
	}, nil
}

func (t *LabelThreshold) BeginPlay(h *domain.TrackerHandle) {
	t.handle = h
	store := h.Env().Labels()
	t.unsubscribe = store.OnChange(func(label string, _, _ int) {
		if label == t.label || (t.failLabel != "" && label == t.failLabel) {
			t.check()
		}
	})
	t.check()
}

func (t *LabelThreshold) EndPlay(bool) {
	if t.unsubscribe != nil {
		t.unsubscribe()
		t.unsubscribe = nil
	}
	t.handle = nil
}

func (t *LabelThreshold) check() {
	if t.handle == nil {
		return
	}
	store := t.handle.Env().Labels()
	switch {
	case t.failLabel != "" && store.Count(t.failLabel) >= t.failTarget:
		t.handle.MarkFailure()
	case store.Count(t.label) >= t.target:
		t.handle.MarkSuccess()
	default:
		t.handle.SetResult(domain.ResultInProgress)
	}
}

// Timeout settles after a fixed duration on the instance scheduler.
type Timeout struct {
	after   time.Duration
	outcome domain.Result
	sched   domain.Scheduler
	token   scheduler.Token
	armed   bool
}

// NewTimeout reads params after (required duration) and outcome
// ("failure" by default, or "success" for survive-the-clock objectives).
func NewTimeout(spec domain.TaskSpec) (domain.Tracker, error) {
	after, err := spec.Duration("after", 0)
	if err != nil {
		return nil, err
	}
	if after <= 0 {
		return nil, errors.New("timeout param after must be positive")
	}
	outcome, err := domain.ParseResult(spec.String("outcome", "failure"))
	if err != nil || !outcome.Settled() {
		return nil, fmt.Errorf("timeout param outcome must be success or failure")
	}
	return &Timeout{after: after, outcome: outcome}, nil
}

func (t *Timeout) BeginPlay(h *domain.TrackerHandle) {
	t.sched = h.Env().Scheduler()
	t.armed = true
	t.token = t.sched.Schedule(t.after, func() {
		t.armed = false
		h.SetResult(t.outcome)
	})
}

func (t *Timeout) EndPlay(bool) {
	if t.armed {
		t.sched.Cancel(t.token)
		t.armed = false
	}
}
