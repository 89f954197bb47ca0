package paper

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"strategy-lab/internal/domain"
)

var (
	// ErrRunnerExists is returned when registering a duplicate strategy ID.
	ErrRunnerExists = errors.New("runner already registered")

	// ErrRunnerNotFound is returned when the requested runner is unknown.
	ErrRunnerNotFound = errors.New("runner not found")
)

// Registry tracks live paper runners by strategy identity.
type Registry struct {
	mu      sync.RWMutex
	runners map[string]*Runner
}

// NewRegistry returns an empty runner registry.
func NewRegistry() *Registry {
	return &Registry{runners: make(map[string]*Runner)}
}

// Add registers a runner under its strategy ID. Duplicate IDs are rejected
// so two runners never share one ledger identity.
func (r *Registry) Add(runner *Runner) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := runner.StrategyID()
	if _, exists := r.runners[id]; exists {
		return fmt.Errorf("%w: %q", ErrRunnerExists, id)
	}
	r.runners[id] = runner
	return nil
}

// Get returns the runner for the given strategy ID.
func (r *Registry) Get(id string) (*Runner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	runner, ok := r.runners[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRunnerNotFound, id)
	}
	return runner, nil
}

// Remove deregisters a runner. Only STOPPED runners may be removed; stop the
// runner first.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	runner, ok := r.runners[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrRunnerNotFound, id)
	}
	if state := runner.State(); state != StateStopped {
		return fmt.Errorf("%w: runner %q is %s, stop it before removing", domain.ErrInvalidInput, id, state)
	}
	delete(r.runners, id)
	return nil
}

// List returns snapshots of all registered runners sorted by strategy ID.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Snapshot, 0, len(r.runners))
	for _, runner := range r.runners {
		out = append(out, runner.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StrategyID < out[j].StrategyID })
	return out
}
