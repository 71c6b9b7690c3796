// Package memory provides an in-memory baseline store for development and
// testing.
package memory

import (
	"context"
	"sync"

	"github.com/PrabhuV2003/Website-Monitoring/internal/monitor"
)

// Store keeps baselines in a mutex-guarded map keyed by (site, path).
type Store struct {
	mu        sync.RWMutex
	baselines map[string]monitor.Baseline
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		baselines: make(map[string]monitor.Baseline),
	}
}

// Get returns the baseline for (site, path), if one exists.
func (s *Store) Get(_ context.Context, site, path string) (monitor.Baseline, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.baselines[key(site, path)]
	return b, ok, nil
}

// Put stores the baseline for (site, path), replacing any previous entry.
func (s *Store) Put(_ context.Context, site, path string, baseline monitor.Baseline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baselines[key(site, path)] = baseline
	return nil
}

// Len reports the number of stored baselines.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.baselines)
}

func key(site, path string) string {
	return site + "\x00" + path
}
