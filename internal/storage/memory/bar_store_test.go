package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

func makeBars(symbol string, start time.Time, interval time.Duration, closes []float64) []domain.MarketBar {
	bars := make([]domain.MarketBar, len(closes))
	for i, c := range closes {
		bars[i] = domain.MarketBar{
			Symbol:    symbol,
			Timestamp: start.Add(time.Duration(i) * interval),
			Open:      c,
			High:      c * 1.01,
			Low:       c * 0.99,
			Close:     c,
			Volume:    1000,
		}
	}
	return bars
}

func TestBarStore_InsertAndGet(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	bars := makeBars("BTC-USD", start, time.Hour, []float64{100, 101, 102, 103})
	if err := store.InsertBulk(ctx, "BTC-USD", time.Hour, bars); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByTimeRange(ctx, "BTC-USD", time.Hour, start, start.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i].Timestamp.After(got[i-1].Timestamp) {
			t.Errorf("bars not ordered at index %d", i)
		}
	}
}

func TestBarStore_DuplicateTimestamp(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	bars := makeBars("BTC-USD", start, time.Hour, []float64{100, 101})
	if err := store.InsertBulk(ctx, "BTC-USD", time.Hour, bars); err != nil {
		t.Fatalf("first InsertBulk failed: %v", err)
	}

	err := store.InsertBulk(ctx, "BTC-USD", time.Hour, bars[:1])
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestBarStore_RejectsInvalidBar(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	bars := makeBars("BTC-USD", start, time.Hour, []float64{100, 101})
	bars[1].High = bars[1].Low - 1

	err := store.InsertBulk(ctx, "BTC-USD", time.Hour, bars)
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	got, err := store.GetByTimeRange(ctx, "BTC-USD", time.Hour, start, start.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("failed batch should land nothing, got %d bars", len(got))
	}
}

func TestBarStore_IntervalIsolation(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	hourly := makeBars("BTC-USD", start, time.Hour, []float64{100})
	daily := makeBars("BTC-USD", start, 24*time.Hour, []float64{100})
	if err := store.InsertBulk(ctx, "BTC-USD", time.Hour, hourly); err != nil {
		t.Fatalf("hourly insert failed: %v", err)
	}
	// Same timestamp under a different interval must not collide.
	if err := store.InsertBulk(ctx, "BTC-USD", 24*time.Hour, daily); err != nil {
		t.Fatalf("daily insert failed: %v", err)
	}
}

func TestBarStore_Symbols(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_ = store.InsertBulk(ctx, "ETH-USD", time.Hour, makeBars("ETH-USD", start, time.Hour, []float64{1}))
	_ = store.InsertBulk(ctx, "BTC-USD", time.Hour, makeBars("BTC-USD", start, time.Hour, []float64{1}))

	symbols, err := store.Symbols(ctx)
	if err != nil {
		t.Fatalf("Symbols failed: %v", err)
	}
	if len(symbols) != 2 || symbols[0] != "BTC-USD" || symbols[1] != "ETH-USD" {
		t.Errorf("unexpected symbols: %v", symbols)
	}
}
