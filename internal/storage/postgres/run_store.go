package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

const runColumns = `
	run_id, strategy_id, symbol, start_at, end_at, created_at,
	status, data_source, sharpe, max_drawdown, viability_score, verdict,
	report
`

// Insert adds a run record. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.RunRecord) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO runs (` + runColumns + `) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13
		)
	`

	_, err := s.pool.Exec(ctx, query,
		r.RunID, r.StrategyID, r.Symbol, r.StartAt, r.EndAt, r.CreatedAt,
		r.Status, r.DataSource, r.Sharpe, r.MaxDrawdown, r.ViabilityScore, r.Verdict,
		r.Report,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE run_id = $1`

	row := s.pool.QueryRow(ctx, query, runID)
	r, err := scanRun(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run by id: %w", err)
	}
	return r, nil
}

// GetByStrategy retrieves all runs for a strategy, ordered by created_at
// ASC, run_id ASC.
func (s *RunStore) GetByStrategy(ctx context.Context, strategyID string) ([]*domain.RunRecord, error) {
	query := `
		SELECT ` + runColumns + `
		FROM runs
		WHERE strategy_id = $1
		ORDER BY created_at ASC, run_id ASC
	`

	rows, err := s.pool.Query(ctx, query, strategyID)
	if err != nil {
		return nil, fmt.Errorf("get runs by strategy: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// scanRun scans a single row into a RunRecord.
func scanRun(row pgx.Row) (*domain.RunRecord, error) {
	var r domain.RunRecord

	err := row.Scan(
		&r.RunID, &r.StrategyID, &r.Symbol, &r.StartAt, &r.EndAt, &r.CreatedAt,
		&r.Status, &r.DataSource, &r.Sharpe, &r.MaxDrawdown, &r.ViabilityScore, &r.Verdict,
		&r.Report,
	)
	if err != nil {
		return nil, err
	}

	return &r, nil
}

// scanRuns scans multiple rows into a slice of RunRecord.
func scanRuns(rows pgx.Rows) ([]*domain.RunRecord, error) {
	var runs []*domain.RunRecord

	for rows.Next() {
		var r domain.RunRecord

		err := rows.Scan(
			&r.RunID, &r.StrategyID, &r.Symbol, &r.StartAt, &r.EndAt, &r.CreatedAt,
			&r.Status, &r.DataSource, &r.Sharpe, &r.MaxDrawdown, &r.ViabilityScore, &r.Verdict,
			&r.Report,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}

		runs = append(runs, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}

	return runs, nil
}
