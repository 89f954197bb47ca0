// Package clickhouse implements bar storage on ClickHouse. High-volume OHLCV
// series live here; run summaries live in PostgreSQL.
package clickhouse

import (
	"context"
	"fmt"
	"time"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// BarStore implements storage.BarStore using ClickHouse.
type BarStore struct {
	conn *Conn
}

// NewBarStore creates a new BarStore.
func NewBarStore(conn *Conn) *BarStore {
	return &BarStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// InsertBulk adds bars for a symbol/interval. Fails the entire batch on any
// duplicate (symbol, interval, timestamp). MergeTree does not enforce
// uniqueness at insert time, so duplicates are checked explicitly before the
// batch is sent.
func (s *BarStore) InsertBulk(ctx context.Context, symbol string, interval time.Duration, bars []domain.MarketBar) error {
	if symbol == "" || interval <= 0 {
		return storage.ErrInvalidInput
	}
	if len(bars) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[int64]struct{}, len(bars))
	for i := range bars {
		if err := bars[i].Validate(); err != nil {
			return storage.ErrInvalidInput
		}
		ts := bars[i].Timestamp.UnixMilli()
		if _, exists := seen[ts]; exists {
			return storage.ErrDuplicateKey
		}
		seen[ts] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	first, last := bars[0].Timestamp.UnixMilli(), bars[len(bars)-1].Timestamp.UnixMilli()
	for i := range bars {
		ts := bars[i].Timestamp.UnixMilli()
		if ts < first {
			first = ts
		}
		if ts > last {
			last = ts
		}
	}
	existing, err := s.existingTimestamps(ctx, symbol, interval, first, last)
	if err != nil {
		return fmt.Errorf("check existing bars: %w", err)
	}
	for ts := range seen {
		if _, dup := existing[ts]; dup {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO bars (
			symbol, interval_ms, timestamp_ms, open, high, low, close, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for i := range bars {
		b := &bars[i]
		err = batch.Append(
			symbol, uint64(interval.Milliseconds()), uint64(b.Timestamp.UnixMilli()),
			b.Open, b.High, b.Low, b.Close, b.Volume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves bars for a symbol/interval within [start, end]
// inclusive, ordered by timestamp ASC.
func (s *BarStore) GetByTimeRange(ctx context.Context, symbol string, interval time.Duration, start, end time.Time) ([]domain.MarketBar, error) {
	query := `
		SELECT symbol, timestamp_ms, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND interval_ms = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query,
		symbol, uint64(interval.Milliseconds()),
		uint64(start.UnixMilli()), uint64(end.UnixMilli()),
	)
	if err != nil {
		return nil, fmt.Errorf("query bars by time range: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// Symbols lists distinct symbols with stored bars.
func (s *BarStore) Symbols(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT symbol FROM bars ORDER BY symbol ASC`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan symbol row: %w", err)
		}
		symbols = append(symbols, sym)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate symbol rows: %w", err)
	}
	return symbols, nil
}

// existingTimestamps returns stored bar timestamps for the key within
// [first, last] milliseconds.
func (s *BarStore) existingTimestamps(ctx context.Context, symbol string, interval time.Duration, first, last int64) (map[int64]struct{}, error) {
	query := `
		SELECT timestamp_ms FROM bars
		WHERE symbol = ? AND interval_ms = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
	`

	rows, err := s.conn.Query(ctx, query,
		symbol, uint64(interval.Milliseconds()), uint64(first), uint64(last),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]struct{})
	for rows.Next() {
		var ts uint64
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		out[int64(ts)] = struct{}{}
	}
	return out, rows.Err()
}

// chRows is the subset of driver.Rows the scanners need.
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanBars scans multiple rows into a slice of MarketBar.
func scanBars(rows chRows) ([]domain.MarketBar, error) {
	var bars []domain.MarketBar

	for rows.Next() {
		var b domain.MarketBar
		var timestampMs uint64

		err := rows.Scan(
			&b.Symbol, &timestampMs,
			&b.Open, &b.High, &b.Low, &b.Close, &b.Volume,
		)
		if err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}

		b.Timestamp = time.UnixMilli(int64(timestampMs)).UTC()
		bars = append(bars, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}

	return bars, nil
}
