// Package marketdata provides bar sources: historical (store-backed,
// synthetic) and live (websocket stream). Every series carries an explicit
// data source tag so reports can never pass generated data off as real.
package marketdata

import (
	"context"
	"time"

	"strategy-lab/internal/domain"
)

// BarSource provides ordered OHLCV bars for a symbol within a time range.
type BarSource interface {
	// Fetch returns bars in [start, end] ordered by timestamp. A failed or
	// empty fetch returns an error wrapping domain.ErrDataUnavailable,
	// never a silently substituted series.
	Fetch(ctx context.Context, symbol string, start, end time.Time, interval time.Duration) (domain.BarSeries, error)
}

// LiveSource provides an unbounded, append-only bar stream.
type LiveSource interface {
	// Subscribe returns a channel of bars for the symbol. The channel is
	// closed when the context is cancelled or the stream fails terminally.
	Subscribe(ctx context.Context, symbol string, interval time.Duration) (<-chan domain.MarketBar, error)
}
