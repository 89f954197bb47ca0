package marketdata

import (
	"context"
	"fmt"
	"time"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// StoreSource serves historical bars out of a BarStore.
type StoreSource struct {
	store storage.BarStore
}

// NewStoreSource creates a bar source backed by persistent storage.
func NewStoreSource(store storage.BarStore) *StoreSource {
	return &StoreSource{store: store}
}

// Fetch returns stored bars tagged as real data. An empty range is reported
// as unavailable, not as an empty series.
func (s *StoreSource) Fetch(ctx context.Context, symbol string, start, end time.Time, interval time.Duration) (domain.BarSeries, error) {
	bars, err := s.store.GetByTimeRange(ctx, symbol, interval, start, end)
	if err != nil {
		return domain.BarSeries{}, fmt.Errorf("%w: %s: %v", domain.ErrDataUnavailable, symbol, err)
	}
	if len(bars) == 0 {
		return domain.BarSeries{}, fmt.Errorf("%w: no bars for %s in [%s, %s]",
			domain.ErrDataUnavailable, symbol, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return domain.BarSeries{
		Symbol:     symbol,
		Interval:   interval,
		DataSource: domain.DataSourceReal,
		Bars:       bars,
	}, nil
}

var _ BarSource = (*StoreSource)(nil)
