// Package catalog loads scenario templates from YAML documents and keeps the
// current set available to the registry, reloading on file changes.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Impact-Forge/SharedGamemode/internal/services/scenario/domain"
)

// Checker validates that every task in a scenario can be built.
type Checker interface {
	Check(scenario *domain.Scenario) error
}

// RotationDefaults seeds a rotation entry for scenarios that have none yet.
type RotationDefaults struct {
	Weight         float64
	MinimumGapDays int
}

// Catalog is an immutable set of scenario templates.
type Catalog struct {
	scenarios map[string]*domain.Scenario
	rotation  map[string]RotationDefaults
	order     []string
}

// Lookup implements registry.Source.
func (c *Catalog) Lookup(scenarioID string) (*domain.Scenario, bool) {
	if c == nil {
		return nil, false
	}
	s, ok := c.scenarios[scenarioID]
	return s, ok
}

// IDs lists scenario IDs in document order.
func (c *Catalog) IDs() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.order...)
}

// Rotation returns the rotation defaults authored for scenarioID.
func (c *Catalog) Rotation(scenarioID string) (RotationDefaults, bool) {
	if c == nil {
		return RotationDefaults{}, false
	}
	r, ok := c.rotation[scenarioID]
	return r, ok
}

// Len reports the number of scenarios.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

type document struct {
	Scenarios []scenarioDoc `yaml:"scenarios"`
}

type scenarioDoc struct {
	ID             string       `yaml:"id"`
	Name           string       `yaml:"name"`
	Tags           []string     `yaml:"tags"`
	BaseDelay      string       `yaml:"base_delay"`
	InitialStage   string       `yaml:"initial_stage"`
	GlobalServices []taskDoc    `yaml:"global_services"`
	Stages         []stageDoc   `yaml:"stages"`
	Rotation       *rotationDoc `yaml:"rotation"`
}

type stageDoc struct {
	Name            string         `yaml:"name"`
	Mode            string         `yaml:"mode"`
	CompletionDelay string         `yaml:"completion_delay"`
	OnSuccess       string         `yaml:"on_success"`
	OnFailure       string         `yaml:"on_failure"`
	Services        []taskDoc      `yaml:"services"`
	Objectives      []objectiveDoc `yaml:"objectives"`
}

type objectiveDoc struct {
	Name     string    `yaml:"name"`
	Mode     string    `yaml:"mode"`
	Trackers []taskDoc `yaml:"trackers"`
}

type taskDoc struct {
	Kind   string            `yaml:"kind"`
	Params map[string]string `yaml:"params"`
}

type rotationDoc struct {
	Weight         *float64 `yaml:"weight"`
	MinimumGapDays *int     `yaml:"minimum_gap_days"`
}

// Parse decodes one YAML document. checker may be nil.
func Parse(data []byte, checker Checker) (*Catalog, error) {
	c := &Catalog{
		scenarios: make(map[string]*domain.Scenario),
		rotation:  make(map[string]RotationDefaults),
	}
	if err := c.add(data, checker); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadDir reads every *.yaml and *.yml file in dir, in name order. Scenario
// IDs must be unique across files.
func LoadDir(dir string, checker Checker) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read catalog dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && isCatalogFile(entry.Name()) {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	c := &Catalog{
		scenarios: make(map[string]*domain.Scenario),
		rotation:  make(map[string]RotationDefaults),
	}
	for _, name := range files {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read catalog file %s: %w", name, err)
		}
		if err := c.add(data, checker); err != nil {
			return nil, fmt.Errorf("catalog file %s: %w", name, err)
		}
	}
	return c, nil
}

func isCatalogFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

func (c *Catalog) add(data []byte, checker Checker) error {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode yaml: %w", err)
	}
	for _, sd := range doc.Scenarios {
		scenario, err := sd.build()
		if err != nil {
			return err
		}
		if _, exists := c.scenarios[scenario.ID]; exists {
			return fmt.Errorf("scenario %s declared twice", scenario.ID)
		}
		if err := scenario.Validate(); err != nil {
			return err
		}
		if checker != nil {
			if err := checker.Check(scenario); err != nil {
				return fmt.Errorf("scenario %s: %w", scenario.ID, err)
			}
		}
		c.scenarios[scenario.ID] = scenario
		c.order = append(c.order, scenario.ID)
		if sd.Rotation != nil {
			defaults := RotationDefaults{Weight: 1.0, MinimumGapDays: 1}
			if sd.Rotation.Weight != nil {
				defaults.Weight = *sd.Rotation.Weight
			}
			if sd.Rotation.MinimumGapDays != nil {
				defaults.MinimumGapDays = *sd.Rotation.MinimumGapDays
			}
			c.rotation[scenario.ID] = defaults
		}
	}
	return nil
}

func (sd scenarioDoc) build() (*domain.Scenario, error) {
	id := strings.TrimSpace(sd.ID)
	if id == "" {
		return nil, errors.New("scenario id is required")
	}
	if len(sd.Stages) == 0 {
		return nil, fmt.Errorf("scenario %s: at least one stage is required", id)
	}
	baseDelay, err := parseDelay(sd.BaseDelay)
	if err != nil {
		return nil, fmt.Errorf("scenario %s base_delay: %w", id, err)
	}

	stageIDs := make(map[string]domain.StageID, len(sd.Stages))
	for i, st := range sd.Stages {
		name := strings.TrimSpace(st.Name)
		if name == "" {
			return nil, fmt.Errorf("scenario %s: stage %d has no name", id, i)
		}
		if _, dup := stageIDs[name]; dup {
			return nil, fmt.Errorf("scenario %s: stage %q declared twice", id, name)
		}
		stageIDs[name] = domain.StageID(i)
	}
	resolve := func(ref string) (domain.StageID, error) {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			return domain.NoStage, nil
		}
		stageID, ok := stageIDs[ref]
		if !ok {
			return domain.NoStage, fmt.Errorf("unknown stage %q", ref)
		}
		return stageID, nil
	}

	scenario := &domain.Scenario{
		ID:             id,
		Name:           sd.Name,
		Tags:           append([]string(nil), sd.Tags...),
		BaseDelay:      baseDelay,
		GlobalServices: buildSpecs(sd.GlobalServices),
		InitialStage:   0,
	}
	if sd.InitialStage != "" {
		if scenario.InitialStage, err = resolve(sd.InitialStage); err != nil {
			return nil, fmt.Errorf("scenario %s initial_stage: %w", id, err)
		}
	}

	for i, st := range sd.Stages {
		mode, err := domain.ParseCompletionMode(st.Mode)
		if err != nil {
			return nil, fmt.Errorf("scenario %s stage %q: %w", id, st.Name, err)
		}
		delay, err := parseDelay(st.CompletionDelay)
		if err != nil {
			return nil, fmt.Errorf("scenario %s stage %q completion_delay: %w", id, st.Name, err)
		}
		onSuccess, err := resolve(st.OnSuccess)
		if err != nil {
			return nil, fmt.Errorf("scenario %s stage %q on_success: %w", id, st.Name, err)
		}
		onFailure, err := resolve(st.OnFailure)
		if err != nil {
			return nil, fmt.Errorf("scenario %s stage %q on_failure: %w", id, st.Name, err)
		}

		stage := domain.Stage{
			ID:              domain.StageID(i),
			Name:            strings.TrimSpace(st.Name),
			Mode:            mode,
			Services:        buildSpecs(st.Services),
			OnSuccess:       onSuccess,
			OnFailure:       onFailure,
			CompletionDelay: delay,
		}
		for _, od := range st.Objectives {
			objMode, err := domain.ParseCompletionMode(od.Mode)
			if err != nil {
				return nil, fmt.Errorf("scenario %s objective %q: %w", id, od.Name, err)
			}
			objectiveID := domain.ObjectiveID(len(scenario.Objectives))
			scenario.Objectives = append(scenario.Objectives, domain.Objective{
				ID:       objectiveID,
				Name:     od.Name,
				Mode:     objMode,
				Trackers: buildSpecs(od.Trackers),
			})
			stage.Objectives = append(stage.Objectives, objectiveID)
		}
		scenario.Stages = append(scenario.Stages, stage)
	}
	return scenario, nil
}

func buildSpecs(docs []taskDoc) []domain.TaskSpec {
	if len(docs) == 0 {
		return nil
	}
	out := make([]domain.TaskSpec, 0, len(docs))
	for _, d := range docs {
		params := make(map[string]string, len(d.Params))
		for k, v := range d.Params {
			params[k] = v
		}
		out = append(out, domain.TaskSpec{Kind: strings.TrimSpace(d.Kind), Params: params})
	}
	return out
}

func parseDelay(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, errors.New("must not be negative")
	}
	return d, nil
}
