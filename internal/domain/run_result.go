package domain

import "time"

// Rejection records a risk rejection during a run. Rejections are business
// outcomes and stay visible in the result, separate from warnings.
type Rejection struct {
	Timestamp time.Time
	Reason    string
}

// RunResult is the raw outcome of one simulated run.
type RunResult struct {
	StrategyID     string
	Symbol         string
	DataSource     string
	InitialCapital float64
	FinalEquity    float64
	Trades         []Trade
	EquityCurve    []EquityPoint
	Rejections     []Rejection
	Warnings       []string
	Liquidated     bool
	Status         string
}
