package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

func testBars(symbol string, start time.Time, interval time.Duration, n int) []domain.MarketBar {
	bars := make([]domain.MarketBar, n)
	for i := range bars {
		px := 100.0 + float64(i)
		bars[i] = domain.MarketBar{
			Symbol:    symbol,
			Timestamp: start.Add(time.Duration(i) * interval),
			Open:      px,
			High:      px * 1.01,
			Low:       px * 0.99,
			Close:     px * 1.005,
			Volume:    1000 + float64(i),
		}
	}
	return bars
}

func TestBarStore_InsertBulkAndGetByTimeRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBarStore(conn)
	ctx := context.Background()

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := testBars("BTC/USDT", start, time.Hour, 10)

	// Empty insert is a no-op
	require.NoError(t, store.InsertBulk(ctx, "BTC/USDT", time.Hour, nil))

	require.NoError(t, store.InsertBulk(ctx, "BTC/USDT", time.Hour, bars))

	// Full range, inclusive bounds
	got, err := store.GetByTimeRange(ctx, "BTC/USDT", time.Hour, start, start.Add(9*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 10)

	assert.Equal(t, "BTC/USDT", got[0].Symbol)
	assert.True(t, got[0].Timestamp.Equal(start))
	assert.Equal(t, 100.0, got[0].Open)
	assert.Equal(t, bars[9].Close, got[9].Close)

	for i := 1; i < len(got); i++ {
		assert.True(t, got[i].Timestamp.After(got[i-1].Timestamp), "bars out of order at %d", i)
	}

	// Partial range
	got, err = store.GetByTimeRange(ctx, "BTC/USDT", time.Hour, start.Add(2*time.Hour), start.Add(4*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].Timestamp.Equal(start.Add(2*time.Hour)))
}

func TestBarStore_IntervalIsolation(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBarStore(conn)
	ctx := context.Background()

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertBulk(ctx, "ETH/USDT", time.Hour, testBars("ETH/USDT", start, time.Hour, 5)))
	require.NoError(t, store.InsertBulk(ctx, "ETH/USDT", time.Minute, testBars("ETH/USDT", start, time.Minute, 5)))

	got, err := store.GetByTimeRange(ctx, "ETH/USDT", time.Hour, start, start.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 5)

	got, err = store.GetByTimeRange(ctx, "ETH/USDT", time.Minute, start, start.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestBarStore_InsertBulkDuplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBarStore(conn)
	ctx := context.Background()

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := testBars("BTC/USDT", start, time.Hour, 5)
	require.NoError(t, store.InsertBulk(ctx, "BTC/USDT", time.Hour, bars))

	// Overlapping batch fails entirely
	overlap := testBars("BTC/USDT", start.Add(4*time.Hour), time.Hour, 3)
	err := store.InsertBulk(ctx, "BTC/USDT", time.Hour, overlap)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Nothing from the failed batch landed
	got, err := store.GetByTimeRange(ctx, "BTC/USDT", time.Hour, start, start.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestBarStore_InsertBulkIntraBatchDuplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBarStore(conn)
	ctx := context.Background()

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := testBars("BTC/USDT", start, time.Hour, 3)
	bars[2].Timestamp = bars[0].Timestamp

	err := store.InsertBulk(ctx, "BTC/USDT", time.Hour, bars)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestBarStore_InsertBulkInvalid(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBarStore(conn)
	ctx := context.Background()

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := testBars("BTC/USDT", start, time.Hour, 2)

	assert.ErrorIs(t, store.InsertBulk(ctx, "", time.Hour, bars), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.InsertBulk(ctx, "BTC/USDT", 0, bars), storage.ErrInvalidInput)

	bad := testBars("BTC/USDT", start, time.Hour, 1)
	bad[0].High = bad[0].Low - 1
	assert.ErrorIs(t, store.InsertBulk(ctx, "BTC/USDT", time.Hour, bad), storage.ErrInvalidInput)
}

func TestBarStore_Symbols(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBarStore(conn)
	ctx := context.Background()

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertBulk(ctx, "SOL/USDT", time.Hour, testBars("SOL/USDT", start, time.Hour, 2)))
	require.NoError(t, store.InsertBulk(ctx, "BTC/USDT", time.Hour, testBars("BTC/USDT", start, time.Hour, 2)))

	symbols, err := store.Symbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC/USDT", "SOL/USDT"}, symbols)
}
