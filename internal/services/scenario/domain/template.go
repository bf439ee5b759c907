package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// StageID indexes Scenario.Stages.
type StageID int

// ObjectiveID indexes Scenario.Objectives.
type ObjectiveID int

// NoStage marks a missing successor.
const NoStage StageID = -1

// TaskSpec names a tracker or service kind and its parameters.
type TaskSpec struct {
	Kind   string
	Params map[string]string
}

// String returns a parameter, or def when it is unset.
func (s TaskSpec) String(key, def string) string {
	if v, ok := s.Params[key]; ok {
		return v
	}
	return def
}

// Int returns an integer parameter, or def when it is unset.
func (s TaskSpec) Int(key string, def int) (int, error) {
	v, ok := s.Params[key]
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("%s param %s: %w", s.Kind, key, err)
	}
	return n, nil
}

// Bool returns a boolean parameter, or def when it is unset.
func (s TaskSpec) Bool(key string, def bool) (bool, error) {
	v, ok := s.Params[key]
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("%s param %s: %w", s.Kind, key, err)
	}
	return b, nil
}

// Duration returns a duration parameter ("90s", "2m"), or def when it is unset.
func (s TaskSpec) Duration(key string, def time.Duration) (time.Duration, error) {
	v, ok := s.Params[key]
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("%s param %s: %w", s.Kind, key, err)
	}
	return d, nil
}

// Objective is a completion goal made of one or more trackers.
type Objective struct {
	ID       ObjectiveID
	Name     string
	Mode     CompletionMode
	Trackers []TaskSpec
}

// Stage is a node of the scenario graph.
type Stage struct {
	ID              StageID
	Name            string
	Mode            CompletionMode
	Objectives      []ObjectiveID
	Services        []TaskSpec
	OnSuccess       StageID
	OnFailure       StageID
	CompletionDelay time.Duration
}

// Successor returns the next stage for a settled verdict.
func (s *Stage) Successor(verdict Result) StageID {
	if verdict == ResultSuccess {
		return s.OnSuccess
	}
	return s.OnFailure
}

// Scenario is an immutable template arena. Stages and Objectives are indexed
// by their IDs; instances hold IDs, never copies.
type Scenario struct {
	ID             string
	Name           string
	InitialStage   StageID
	BaseDelay      time.Duration
	GlobalServices []TaskSpec
	Tags           []string
	Stages         []Stage
	Objectives     []Objective
}

// Stage looks up a stage by ID.
func (s *Scenario) Stage(id StageID) (*Stage, bool) {
	if s == nil || id < 0 || int(id) >= len(s.Stages) {
		return nil, false
	}
	return &s.Stages[id], true
}

// Objective looks up an objective by ID.
func (s *Scenario) Objective(id ObjectiveID) (*Objective, bool) {
	if s == nil || id < 0 || int(id) >= len(s.Objectives) {
		return nil, false
	}
	return &s.Objectives[id], true
}

// StageByName finds a stage by its authored name.
func (s *Scenario) StageByName(name string) (StageID, bool) {
	if s == nil {
		return NoStage, false
	}
	for i := range s.Stages {
		if s.Stages[i].Name == name {
			return s.Stages[i].ID, true
		}
	}
	return NoStage, false
}

// Validate checks that every reference in the arena resolves.
func (s *Scenario) Validate() error {
	if s == nil {
		return errors.New("scenario is nil")
	}
	if strings.TrimSpace(s.ID) == "" {
		return errors.New("scenario id is required")
	}
	if _, ok := s.Stage(s.InitialStage); !ok {
		return fmt.Errorf("scenario %s: initial stage %d does not exist", s.ID, s.InitialStage)
	}
	if s.BaseDelay < 0 {
		return fmt.Errorf("scenario %s: base delay must not be negative", s.ID)
	}
	for i, stage := range s.Stages {
		if stage.ID != StageID(i) {
			return fmt.Errorf("scenario %s: stage %q has id %d at index %d", s.ID, stage.Name, stage.ID, i)
		}
		if stage.CompletionDelay < 0 {
			return fmt.Errorf("scenario %s: stage %q delay must not be negative", s.ID, stage.Name)
		}
		for _, next := range []StageID{stage.OnSuccess, stage.OnFailure} {
			if next == NoStage {
				continue
			}
			if _, ok := s.Stage(next); !ok {
				return fmt.Errorf("scenario %s: stage %q references missing stage %d", s.ID, stage.Name, next)
			}
		}
		for _, objectiveID := range stage.Objectives {
			if _, ok := s.Objective(objectiveID); !ok {
				return fmt.Errorf("scenario %s: stage %q references missing objective %d", s.ID, stage.Name, objectiveID)
			}
		}
		if err := validateSpecs(stage.Services); err != nil {
			return fmt.Errorf("scenario %s: stage %q: %w", s.ID, stage.Name, err)
		}
	}
	for i, objective := range s.Objectives {
		if objective.ID != ObjectiveID(i) {
			return fmt.Errorf("scenario %s: objective %q has id %d at index %d", s.ID, objective.Name, objective.ID, i)
		}
		if err := validateSpecs(objective.Trackers); err != nil {
			return fmt.Errorf("scenario %s: objective %q: %w", s.ID, objective.Name, err)
		}
	}
	if err := validateSpecs(s.GlobalServices); err != nil {
		return fmt.Errorf("scenario %s: global services: %w", s.ID, err)
	}
	return nil
}

func validateSpecs(specs []TaskSpec) error {
	for i, spec := range specs {
		if strings.TrimSpace(spec.Kind) == "" {
			return fmt.Errorf("task %d: kind is required", i)
		}
	}
	return nil
}
