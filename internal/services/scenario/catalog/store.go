package catalog

import (
	"sync/atomic"

	"github.com/Impact-Forge/SharedGamemode/internal/services/scenario/domain"
)

// Store holds the current catalog. Readers on the authority goroutine and the
// watcher goroutine swapping in reloads may use it concurrently.
type Store struct {
	current atomic.Pointer[Catalog]
}

// NewStore wraps an initial catalog.
func NewStore(initial *Catalog) *Store {
	s := &Store{}
	s.current.Store(initial)
	return s
}

// Current returns the live catalog.
func (s *Store) Current() *Catalog {
	return s.current.Load()
}

// Swap installs next and returns the previous catalog.
func (s *Store) Swap(next *Catalog) *Catalog {
	return s.current.Swap(next)
}

// Lookup implements registry.Source against the live catalog.
func (s *Store) Lookup(scenarioID string) (*domain.Scenario, bool) {
	return s.Current().Lookup(scenarioID)
}

// IDs lists the live catalog's scenario IDs.
func (s *Store) IDs() []string {
	return s.Current().IDs()
}
