package api

import (
	"slices"
	"sync"
)

// RunStore keeps finished runs in memory, in creation order.
type RunStore struct {
	mu    sync.Mutex
	runs  map[string]RunResponse
	order []string
}

func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]RunResponse),
	}
}

func (s *RunStore) Save(run RunResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		s.order = append(s.order, run.ID)
	}
	s.runs[run.ID] = run
}

func (s *RunStore) Get(id string) (RunResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	return run, ok
}

func (s *RunStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[id]; !ok {
		return false
	}
	delete(s.runs, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	return true
}

func (s *RunStore) List() []RunResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RunResponse, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.runs[id])
	}
	return out
}
