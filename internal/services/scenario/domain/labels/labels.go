// Package labels holds the counted-label store each scenario instance uses for
// arbitrary runtime state: a label maps to a positive count, and a label whose
// count reaches zero disappears.
//
// A Store is owned by exactly one scenario instance and is not safe for
// concurrent use.
package labels

import "sort"

// ChangeFunc observes a label count change. newCount is zero when the label
// was removed.
type ChangeFunc func(label string, newCount, oldCount int)

// Store maps labels to positive counts.
type Store struct {
	counts    map[string]int
	listeners []*listener
}

type listener struct {
	fn ChangeFunc
}

// New returns an empty store.
func New() *Store {
	return &Store{counts: make(map[string]int)}
}

// OnChange registers fn for every subsequent count change. The returned
// function unregisters it.
func (s *Store) OnChange(fn ChangeFunc) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	l := &listener{fn: fn}
	s.listeners = append(s.listeners, l)
	return func() {
		for idx, existing := range s.listeners {
			if existing == l {
				s.listeners = append(s.listeners[:idx:idx], s.listeners[idx+1:]...)
				return
			}
		}
	}
}

// Add increases label by n. Empty labels and non-positive n are ignored.
func (s *Store) Add(label string, n int) {
	if label == "" || n <= 0 {
		return
	}
	old := s.counts[label]
	s.counts[label] = old + n
	s.notify(label, old+n, old)
}

// Remove decreases label by n, dropping it once the count would reach zero.
func (s *Store) Remove(label string, n int) {
	if label == "" || n <= 0 {
		return
	}
	old, ok := s.counts[label]
	if !ok {
		return
	}
	next := old - n
	if next <= 0 {
		delete(s.counts, label)
		next = 0
	} else {
		s.counts[label] = next
	}
	s.notify(label, next, old)
}

// Set overwrites the count for label. A count <= 0 removes it.
func (s *Store) Set(label string, count int) {
	if label == "" {
		return
	}
	old := s.counts[label]
	if count <= 0 {
		if old == 0 {
			return
		}
		delete(s.counts, label)
		s.notify(label, 0, old)
		return
	}
	if old == count {
		return
	}
	s.counts[label] = count
	s.notify(label, count, old)
}

// Clear removes every label, notifying listeners for each one in label order.
func (s *Store) Clear() {
	for _, label := range s.Labels() {
		old := s.counts[label]
		delete(s.counts, label)
		s.notify(label, 0, old)
	}
}

// Count returns the count for label, zero when absent.
func (s *Store) Count(label string) int {
	return s.counts[label]
}

// Has reports whether label is present.
func (s *Store) Has(label string) bool {
	_, ok := s.counts[label]
	return ok
}

// Len reports the number of distinct labels.
func (s *Store) Len() int {
	return len(s.counts)
}

// Labels returns the present labels sorted.
func (s *Store) Labels() []string {
	out := make([]string, 0, len(s.counts))
	for label := range s.counts {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a copy of the counts.
func (s *Store) Snapshot() map[string]int {
	out := make(map[string]int, len(s.counts))
	for label, count := range s.counts {
		out[label] = count
	}
	return out
}

func (s *Store) notify(label string, newCount, oldCount int) {
	// Listeners may unregister while being notified.
	for _, l := range append([]*listener(nil), s.listeners...) {
		l.fn(label, newCount, oldCount)
	}
}
