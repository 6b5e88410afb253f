package state

import (
	"sort"
	"sync"
	"time"

	"github.com/auto-dns/docker-log-sentry/internal/domain"
)

type workerState struct {
	Name        string
	State       domain.WorkerState
	LastUpdated time.Time
}

// MemoryState tracks the lifecycle state of every worker by name. Each worker
// only writes its own entry.
type MemoryState struct {
	mu      sync.RWMutex
	workers map[string]*workerState
}

func NewMemoryState() *MemoryState {
	return &MemoryState{
		workers: make(map[string]*workerState),
	}
}

// Set records the current state of a worker.
func (s *MemoryState) Set(name string, state domain.WorkerState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers[name] = &workerState{
		Name:        name,
		State:       state,
		LastUpdated: time.Now(),
	}
}

// Get returns the last recorded state of a worker.
func (s *MemoryState) Get(name string) (domain.WorkerState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ws, ok := s.workers[name]
	if !ok {
		return "", false
	}
	return ws.State, true
}

// Alive returns the sorted names of workers that have not stopped.
func (s *MemoryState) Alive() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.workers))
	for _, ws := range s.workers {
		if ws.State.IsAlive() {
			names = append(names, ws.Name)
		}
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of all worker states keyed by name.
func (s *MemoryState) Snapshot() map[string]domain.WorkerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.WorkerState, len(s.workers))
	for name, ws := range s.workers {
		out[name] = ws.State
	}
	return out
}
