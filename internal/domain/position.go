package domain

import "time"

// Side represents the direction of an exposure.
type Side string

// Side constants.
const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Direction returns +1 for long, -1 for short.
func (s Side) Direction() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

// Position is an open exposure. Size == 0 means no position.
// Owned exclusively by the execution simulator for the duration of a run.
type Position struct {
	Symbol     string
	Side       Side
	Size       float64
	EntryPrice float64
	EntryTime  time.Time

	StopLoss   *float64 // nil when no stop configured
	TakeProfit *float64 // nil when no target configured
}

// IsOpen reports whether the position holds any exposure.
func (p *Position) IsOpen() bool {
	return p != nil && p.Size > 0
}

// Notional returns the position value at the given price.
func (p *Position) Notional(price float64) float64 {
	if !p.IsOpen() {
		return 0
	}
	return p.Size * price
}

// UnrealizedPnL marks the position to market at the given price.
func (p *Position) UnrealizedPnL(price float64) float64 {
	if !p.IsOpen() {
		return 0
	}
	return p.Size * (price - p.EntryPrice) * p.Side.Direction()
}
