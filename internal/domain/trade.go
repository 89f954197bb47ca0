package domain

import "time"

// Trade represents a completed round trip.
//
// RealizedPnL = Size * (ExitPrice - EntryPrice) * direction - Commission - Slippage,
// where direction is +1 for long and -1 for short. Commission and Slippage are
// the summed costs of both legs.
type Trade struct {
	ID         string // deterministic hash, see idhash
	Symbol     string
	StrategyID string
	Side       Side

	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	Size       float64

	Commission  float64
	Slippage    float64
	RealizedPnL float64
	ExitReason  string
}

// Exit reason codes.
const (
	ExitReasonSignal        = "signal"
	ExitReasonStopLoss      = "stop_loss"
	ExitReasonTakeProfit    = "take_profit"
	ExitReasonLiquidation   = "liquidation"
	ExitReasonEndOfData     = "end_of_data"
	ExitReasonFlattenOnStop = "flatten_on_stop"
)

// GrossPnL returns the PnL before friction costs.
func (t *Trade) GrossPnL() float64 {
	return t.Size * (t.ExitPrice - t.EntryPrice) * t.Side.Direction()
}

// Duration returns the holding time.
func (t *Trade) Duration() time.Duration {
	return t.ExitTime.Sub(t.EntryTime)
}
