// Package storage defines the persistence interfaces for bar series and
// completed runs, with in-memory, PostgreSQL, and ClickHouse implementations.
package storage

import (
	"context"
	"time"

	"strategy-lab/internal/domain"
)

// BarStore provides access to OHLCV bar storage.
type BarStore interface {
	// InsertBulk adds bars for a symbol/interval atomically. Fails the
	// entire batch on any duplicate (symbol, interval, timestamp).
	InsertBulk(ctx context.Context, symbol string, interval time.Duration, bars []domain.MarketBar) error

	// GetByTimeRange retrieves bars for a symbol/interval within
	// [start, end] inclusive, ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, symbol string, interval time.Duration, start, end time.Time) ([]domain.MarketBar, error)

	// Symbols lists distinct symbols with stored bars.
	Symbols(ctx context.Context) ([]string, error)
}

// RunStore provides access to completed run records.
type RunStore interface {
	// Insert adds a run record. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.RunRecord) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunRecord, error)

	// GetByStrategy retrieves all runs for a strategy, ordered by
	// created_at ASC, run_id ASC.
	GetByStrategy(ctx context.Context, strategyID string) ([]*domain.RunRecord, error)
}
