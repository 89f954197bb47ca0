// Package analysis runs post-hoc overfitting and robustness checks over a
// completed backtest. Both analyses re-run the strategy through a caller
// supplied evaluation function, so this package never depends on the engine
// directly.
package analysis

import (
	"context"

	"strategy-lab/internal/domain"
)

// RunSharpe evaluates a strategy config over a bar slice and returns the
// annualized Sharpe of the resulting run. Undefined means the run completed
// but produced no usable Sharpe (too few bars, zero variance).
type RunSharpe func(ctx context.Context, cfg domain.StrategyConfig, bars []domain.MarketBar) (domain.Stat, error)

// Options configures both analyses.
type Options struct {
	// Variation is the fractional perturbation applied to each parameter
	// (0.20 means each parameter is re-run at 80% and 120%).
	Variation float64

	// StabilityBand is the allowed Sharpe deviation from baseline, relative
	// to max(|baseline|, 1), for a variant to count as stable.
	StabilityBand float64

	// WalkForwardSplits is the number of sequential windows for the
	// walk-forward check.
	WalkForwardSplits int

	// MinBarsPerSplit gates the walk-forward analysis; with fewer bars per
	// split the flags come out "not computed".
	MinBarsPerSplit int
}

// DefaultOptions returns the standard analysis configuration.
func DefaultOptions() Options {
	return Options{
		Variation:         0.20,
		StabilityBand:     0.30,
		WalkForwardSplits: 3,
		MinBarsPerSplit:   60,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
