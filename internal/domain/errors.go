package domain

import "errors"

// Run-level errors. Fatal to the run or runner they occur in, never to the
// host process or to other concurrent runners.
var (
	// ErrInvalidInput is returned when entity validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDataUnavailable is returned when a bar source fetch failed or
	// returned an empty series. Historical runs abort; live runners skip
	// the tick and retry.
	ErrDataUnavailable = errors.New("market data unavailable")

	// ErrInvalidStrategy is returned when a strategy violates the generate
	// contract (signals before warm-up, non-deterministic replay).
	ErrInvalidStrategy = errors.New("strategy violates generate contract")

	// ErrInsufficientCapital is returned when capital reaches the
	// liquidation floor. The run continues for reporting but accepts no
	// further entries.
	ErrInsufficientCapital = errors.New("capital at liquidation floor")

	// ErrParameterOutOfRange is returned for an invalid perturbed parameter
	// in a robustness variant. The variant is skipped, not fatal to the
	// sweep.
	ErrParameterOutOfRange = errors.New("parameter out of range")
)
