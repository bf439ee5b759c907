// Package domain models scenarios as immutable stage graphs and runs them as
// per-instance state machines.
//
// Templates (Scenario, Stage, Objective) live in an arena indexed by stable
// IDs and are shared by every running Instance. An Instance owns the runtime
// trackers and services spawned from those templates and is the only thing
// that decides stage transitions.
package domain

import (
	"fmt"
	"strings"
)

// Result is the outcome reported by a tracker, an objective, or a stage.
type Result int

const (
	ResultNone Result = iota
	ResultInProgress
	ResultSuccess
	ResultFailure
)

var resultNames = [...]string{"none", "in_progress", "success", "failure"}

func (r Result) String() string {
	if r < 0 || int(r) >= len(resultNames) {
		return fmt.Sprintf("result(%d)", int(r))
	}
	return resultNames[r]
}

// Settled reports whether r is a final verdict.
func (r Result) Settled() bool {
	return r == ResultSuccess || r == ResultFailure
}

// ParseResult accepts the names produced by Result.String, case-insensitively.
func ParseResult(value string) (Result, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for i, name := range resultNames {
		if name == normalized {
			return Result(i), nil
		}
	}
	return ResultNone, fmt.Errorf("unknown result %q", value)
}

// State is the lifecycle of a scenario instance.
type State int

const (
	StateNone State = iota
	StateActive
	StateSuccess
	StateFailure
	StateCancelled
)

var stateNames = [...]string{"none", "active", "success", "failure", "cancelled"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Finished reports whether the instance reached a terminal state.
func (s State) Finished() bool {
	return s == StateSuccess || s == StateFailure || s == StateCancelled
}

// CompletionMode decides how child results combine.
type CompletionMode int

const (
	// AllSuccess requires every child to succeed.
	AllSuccess CompletionMode = iota
	// AnySuccess requires one child to succeed.
	AnySuccess
)

func (m CompletionMode) String() string {
	switch m {
	case AllSuccess:
		return "all_success"
	case AnySuccess:
		return "any_success"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseCompletionMode reads a catalog mode. Empty means AllSuccess.
func ParseCompletionMode(value string) (CompletionMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "all", "all_success":
		return AllSuccess, nil
	case "any", "any_success":
		return AnySuccess, nil
	default:
		return AllSuccess, fmt.Errorf("unknown completion mode %q", value)
	}
}
