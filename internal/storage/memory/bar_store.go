// Package memory provides in-memory store implementations used by tests and
// the CLI's --use-memory mode.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// BarStore is an in-memory implementation of storage.BarStore.
type BarStore struct {
	mu   sync.RWMutex
	data map[string][]domain.MarketBar // keyed by symbol|interval, sorted by timestamp
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{
		data: make(map[string][]domain.MarketBar),
	}
}

func barKey(symbol string, interval time.Duration) string {
	return fmt.Sprintf("%s|%d", symbol, interval.Milliseconds())
}

// InsertBulk adds bars atomically. Fails the entire batch on any duplicate
// (symbol, interval, timestamp).
func (s *BarStore) InsertBulk(_ context.Context, symbol string, interval time.Duration, bars []domain.MarketBar) error {
	if symbol == "" || interval <= 0 {
		return storage.ErrInvalidInput
	}
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := barKey(symbol, interval)
	existing := s.data[key]

	seen := make(map[int64]struct{}, len(existing)+len(bars))
	for _, b := range existing {
		seen[b.Timestamp.UnixMilli()] = struct{}{}
	}
	for _, b := range bars {
		if err := b.Validate(); err != nil {
			return storage.ErrInvalidInput
		}
		ts := b.Timestamp.UnixMilli()
		if _, dup := seen[ts]; dup {
			return storage.ErrDuplicateKey
		}
		seen[ts] = struct{}{}
	}

	merged := append(append([]domain.MarketBar{}, existing...), bars...)
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	s.data[key] = merged
	return nil
}

// GetByTimeRange retrieves bars within [start, end] inclusive, ordered by
// timestamp ASC.
func (s *BarStore) GetByTimeRange(_ context.Context, symbol string, interval time.Duration, start, end time.Time) ([]domain.MarketBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.MarketBar
	for _, b := range s.data[barKey(symbol, interval)] {
		if b.Timestamp.Before(start) || b.Timestamp.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// Symbols lists distinct symbols with stored bars.
func (s *BarStore) Symbols(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := make(map[string]struct{})
	for key := range s.data {
		for i := 0; i < len(key); i++ {
			if key[i] == '|' {
				set[key[:i]] = struct{}{}
				break
			}
		}
	}
	out := make([]string, 0, len(set))
	for sym := range set {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out, nil
}

// Ensure BarStore implements storage.BarStore
var _ storage.BarStore = (*BarStore)(nil)
