package domain

import "time"

// EquityPoint is a capital snapshot: capital plus unrealized PnL at one bar.
// A run appends exactly one point per bar processed.
type EquityPoint struct {
	Timestamp   time.Time
	Equity      float64
	DrawdownPct float64 // (peak - equity) / peak at this point
}
