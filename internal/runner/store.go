package runner

import (
	"fmt"
	"sort"
	"sync"
)

// Store keeps runs in memory for the status server.
type Store struct {
	runs map[string]*Run
	mu   sync.RWMutex
}

// NewStore creates a new run store
func NewStore() *Store {
	return &Store{
		runs: make(map[string]*Run),
	}
}

// Save saves a run to the store
func (s *Store) Save(run *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
}

// Get returns a snapshot of a run by ID
func (s *Store) Get(runID string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	return run.Snapshot(), nil
}

// List returns snapshots of all runs, newest first
func (s *Store) List() []*Run {
	s.mu.RLock()
	runs := make([]*Run, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run.Snapshot())
	}
	s.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt != runs[j].CreatedAt {
			return runs[i].CreatedAt > runs[j].CreatedAt
		}
		return runs[i].ID < runs[j].ID
	})
	return runs
}
