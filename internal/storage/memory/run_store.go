package memory

import (
	"context"
	"sort"
	"sync"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunRecord // keyed by run_id
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		data: make(map[string]*domain.RunRecord),
	}
}

// Insert adds a run record. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(_ context.Context, r *domain.RunRecord) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	clone := *r
	clone.Report = append([]byte(nil), r.Report...)
	s.data[r.RunID] = &clone
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(_ context.Context, runID string) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[runID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone := *r
	clone.Report = append([]byte(nil), r.Report...)
	return &clone, nil
}

// GetByStrategy retrieves all runs for a strategy, ordered by created_at
// ASC, run_id ASC.
func (s *RunStore) GetByStrategy(_ context.Context, strategyID string) ([]*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.RunRecord
	for _, r := range s.data {
		if r.StrategyID != strategyID {
			continue
		}
		clone := *r
		clone.Report = append([]byte(nil), r.Report...)
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].RunID < out[j].RunID
	})
	return out, nil
}

// Ensure RunStore implements storage.RunStore
var _ storage.RunStore = (*RunStore)(nil)
