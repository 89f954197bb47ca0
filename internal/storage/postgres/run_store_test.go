package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

func testRunRecord(runID, strategyID string, createdAt time.Time) *domain.RunRecord {
	return &domain.RunRecord{
		RunID:          runID,
		StrategyID:     strategyID,
		Symbol:         "BTC/USDT",
		StartAt:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndAt:          time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:      createdAt,
		Status:         domain.RunStatusOK,
		DataSource:     domain.DataSourceReal,
		Sharpe:         1.42,
		MaxDrawdown:    0.18,
		ViabilityScore: 67.5,
		Verdict:        "PASS",
		Report:         []byte(`{"run_id":"` + runID + `"}`),
	}
}

func TestRunStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRunStore(pool)

	rec := testRunRecord("run-1", "sma_cross_10_30", time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC))
	require.NoError(t, store.Insert(ctx, rec))

	got, err := store.GetByID(ctx, "run-1")
	require.NoError(t, err)

	assert.Equal(t, rec.RunID, got.RunID)
	assert.Equal(t, rec.StrategyID, got.StrategyID)
	assert.Equal(t, rec.Symbol, got.Symbol)
	assert.True(t, rec.StartAt.Equal(got.StartAt))
	assert.True(t, rec.EndAt.Equal(got.EndAt))
	assert.Equal(t, rec.Status, got.Status)
	assert.Equal(t, rec.DataSource, got.DataSource)
	assert.InDelta(t, rec.Sharpe, got.Sharpe, 1e-9)
	assert.InDelta(t, rec.MaxDrawdown, got.MaxDrawdown, 1e-9)
	assert.InDelta(t, rec.ViabilityScore, got.ViabilityScore, 1e-9)
	assert.Equal(t, rec.Verdict, got.Verdict)
	assert.JSONEq(t, string(rec.Report), string(got.Report))
}

func TestRunStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRunStore(pool)

	rec := testRunRecord("run-dup", "sma_cross_10_30", time.Now().UTC())
	require.NoError(t, store.Insert(ctx, rec))

	err := store.Insert(ctx, rec)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestRunStore_InsertInvalid(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRunStore(pool)

	assert.ErrorIs(t, store.Insert(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Insert(ctx, &domain.RunRecord{}), storage.ErrInvalidInput)
}

func TestRunStore_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRunStore(pool)

	_, err := store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunStore_GetByStrategyOrdering(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRunStore(pool)

	base := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	// Same created_at for b and c so the run_id tiebreak is exercised.
	require.NoError(t, store.Insert(ctx, testRunRecord("run-c", "momentum_20", base.Add(time.Hour))))
	require.NoError(t, store.Insert(ctx, testRunRecord("run-b", "momentum_20", base.Add(time.Hour))))
	require.NoError(t, store.Insert(ctx, testRunRecord("run-a", "momentum_20", base)))
	require.NoError(t, store.Insert(ctx, testRunRecord("run-x", "other_strategy", base)))

	runs, err := store.GetByStrategy(ctx, "momentum_20")
	require.NoError(t, err)
	require.Len(t, runs, 3)

	assert.Equal(t, "run-a", runs[0].RunID)
	assert.Equal(t, "run-b", runs[1].RunID)
	assert.Equal(t, "run-c", runs[2].RunID)
}

func TestRunStore_GetByStrategyEmpty(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRunStore(pool)

	runs, err := store.GetByStrategy(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, runs)
}
