// Package tasks provides the built-in tracker and service kinds referenced by
// scenario catalogs, and the registry that maps kinds to constructors.
package tasks

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Impact-Forge/SharedGamemode/internal/services/scenario/domain"
)

var (
	// ErrKindRequired indicates a spec or registration without a kind.
	ErrKindRequired = errors.New("task kind is required")
	// ErrKindUnknown indicates an unregistered kind.
	ErrKindUnknown = errors.New("task kind is not registered")
)

// TrackerConstructor builds a tracker from its template spec.
type TrackerConstructor func(spec domain.TaskSpec) (domain.Tracker, error)

// ServiceConstructor builds a service from its template spec.
type ServiceConstructor func(spec domain.TaskSpec) (domain.Service, error)

// Registry maps task kinds to constructors. It implements domain.TaskFactory.
type Registry struct {
	trackers map[string]TrackerConstructor
	services map[string]ServiceConstructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		trackers: make(map[string]TrackerConstructor),
		services: make(map[string]ServiceConstructor),
	}
}

// Builtin returns a registry holding every built-in kind.
func Builtin() *Registry {
	r := NewRegistry()
	mustRegister(r.RegisterTracker(KindManual, NewManual))
	mustRegister(r.RegisterTracker(KindLabelThreshold, NewLabelThreshold))
	mustRegister(r.RegisterTracker(KindTimeout, NewTimeout))
	mustRegister(r.RegisterService(KindLabelGrant, NewLabelGrant))
	mustRegister(r.RegisterService(KindAnnounce, NewAnnounce))
	return r
}

func mustRegister(err error) {
	if err != nil {
		panic(err)
	}
}

// RegisterTracker adds a tracker kind.
func (r *Registry) RegisterTracker(kind string, ctor TrackerConstructor) error {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return ErrKindRequired
	}
	if ctor == nil {
		return fmt.Errorf("tracker kind %s: constructor is required", kind)
	}
	if _, exists := r.trackers[kind]; exists {
		return fmt.Errorf("tracker kind already registered: %s", kind)
	}
	r.trackers[kind] = ctor
	return nil
}

// RegisterService adds a service kind.
func (r *Registry) RegisterService(kind string, ctor ServiceConstructor) error {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return ErrKindRequired
	}
	if ctor == nil {
		return fmt.Errorf("service kind %s: constructor is required", kind)
	}
	if _, exists := r.services[kind]; exists {
		return fmt.Errorf("service kind already registered: %s", kind)
	}
	r.services[kind] = ctor
	return nil
}

// NewTracker implements domain.TaskFactory.
func (r *Registry) NewTracker(spec domain.TaskSpec) (domain.Tracker, error) {
	ctor, ok := r.trackers[strings.TrimSpace(spec.Kind)]
	if !ok {
		return nil, fmt.Errorf("%w: tracker %q", ErrKindUnknown, spec.Kind)
	}
	return ctor(spec)
}

// NewService implements domain.TaskFactory.
func (r *Registry) NewService(spec domain.TaskSpec) (domain.Service, error) {
	ctor, ok := r.services[strings.TrimSpace(spec.Kind)]
	if !ok {
		return nil, fmt.Errorf("%w: service %q", ErrKindUnknown, spec.Kind)
	}
	return ctor(spec)
}

// Check reports whether every task referenced by scenario can be built.
// Catalog loading uses it to reject unknown kinds and bad parameters early.
func (r *Registry) Check(scenario *domain.Scenario) error {
	var errs []error
	for _, spec := range scenario.GlobalServices {
		if _, err := r.NewService(spec); err != nil {
			errs = append(errs, err)
		}
	}
	for _, stage := range scenario.Stages {
		for _, spec := range stage.Services {
			if _, err := r.NewService(spec); err != nil {
				errs = append(errs, fmt.Errorf("stage %q: %w", stage.Name, err))
			}
		}
	}
	for _, objective := range scenario.Objectives {
		for _, spec := range objective.Trackers {
			if _, err := r.NewTracker(spec); err != nil {
				errs = append(errs, fmt.Errorf("objective %q: %w", objective.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// TrackerKinds lists registered tracker kinds, sorted.
func (r *Registry) TrackerKinds() []string {
	return sortedKeys(r.trackers)
}

// ServiceKinds lists registered service kinds, sorted.
func (r *Registry) ServiceKinds() []string {
	return sortedKeys(r.services)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
