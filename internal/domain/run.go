package domain

import "time"

// RunRecord is the persisted summary of one completed backtest run. The full
// report is stored as serialized JSON; the summary columns exist so stored
// runs can be listed and compared without deserializing every report.
type RunRecord struct {
	RunID      string
	StrategyID string
	Symbol     string
	StartAt    time.Time
	EndAt      time.Time
	CreatedAt  time.Time

	Status         string // ok | warnings | partial | failed
	DataSource     string // real | synthetic
	Sharpe         float64
	MaxDrawdown    float64
	ViabilityScore float64
	Verdict        string // PASS | FAIL

	Report []byte // full report JSON
}
