// Package strategy defines the pluggable strategy contract and the built-in
// strategy implementations. Strategies are pure: the only memory they touch
// is the State owned by the caller, and the only randomness available is the
// seeded source inside that State.
package strategy

import (
	"strategy-lab/internal/domain"
)

// Strategy produces a trading signal for each bar.
//
// Generate must be deterministic given identical (bars[0..index], state) and
// must return hold for every index below WarmUp(). It has no knowledge of
// capital or fills; sizing is the risk manager's job.
type Strategy interface {
	// ID returns the strategy identifier (includes parameters).
	ID() string

	// WarmUp returns the number of bars required before the strategy may
	// emit a non-hold signal.
	WarmUp() int

	// Generate produces a signal for the bar at index. Indicator memory
	// lives in state, which is owned by the caller and passed back
	// unchanged except for fields the strategy itself updates.
	Generate(bar domain.MarketBar, index int, state *State) domain.Signal
}
