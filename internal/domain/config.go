package domain

import "fmt"

// RiskLimits configures the risk manager. All fractions are of current
// capital.
type RiskLimits struct {
	RiskPerTrade     float64 // capital fraction risked per trade when a stop exists
	MaxPositionSize  float64 // cap on single-position notional, and sizing fallback
	MaxTotalExposure float64 // cap on summed open notional
	MaxDailyLoss     float64 // realized-loss lockout threshold per UTC day
	StopLossPct      float64 // stop distance from entry; 0 disables
	TakeProfitPct    float64 // target distance from entry; 0 disables
}

// DefaultRiskLimits returns the standard limits.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		RiskPerTrade:     0.02,
		MaxPositionSize:  0.10,
		MaxTotalExposure: 0.50,
		MaxDailyLoss:     0.05,
		StopLossPct:      0.05,
		TakeProfitPct:    0.10,
	}
}

// FrictionConfig models execution costs. Slippage is applied against the
// trader (buys fill higher, sells lower) and scaled by HighVolMult while the
// volatility regime flag is set.
type FrictionConfig struct {
	FeeRate      float64 // commission per leg, fraction of notional
	SlippageRate float64 // base slippage, fraction of price
	HighVolMult  float64 // slippage multiplier in high-volatility regime

	// HighVolThreshold flags a bar as high-volatility when its range
	// (high-low) exceeds this fraction of the open. 0 disables the regime.
	HighVolThreshold float64

	// Partial fill model: with probability PartialFillProb an entry fills
	// at a uniform ratio in [MinFillRatio, 1) of the requested size.
	// Deterministic under a fixed Seed.
	PartialFillProb float64
	MinFillRatio    float64
	Seed            int64
}

// DefaultFriction returns the standard friction model.
func DefaultFriction() FrictionConfig {
	return FrictionConfig{
		FeeRate:          0.001,
		SlippageRate:     0.0005,
		HighVolMult:      2.5,
		HighVolThreshold: 0.05,
		PartialFillProb:  0,
		MinFillRatio:     0.5,
		Seed:             1,
	}
}

// Strategy type constants.
const (
	StrategyTypeSMACross = "SMA_CROSS"
	StrategyTypeMomentum = "MOMENTUM"
)

// StrategyConfig holds strategy identity and parameters. Strategies are
// registered plugins built from configs; parameters are named so that the
// robustness tester can perturb them individually.
type StrategyConfig struct {
	StrategyType string

	// SMA_CROSS parameters
	FastPeriod *int
	SlowPeriod *int

	// MOMENTUM parameters
	LookbackPeriod *int
	Threshold      *float64 // minimum absolute rolling return to act on
}

// Parameters returns the numeric parameters by name. Used by the robustness
// tester to enumerate perturbation targets.
func (c StrategyConfig) Parameters() map[string]float64 {
	params := map[string]float64{}
	if c.FastPeriod != nil {
		params["fast_period"] = float64(*c.FastPeriod)
	}
	if c.SlowPeriod != nil {
		params["slow_period"] = float64(*c.SlowPeriod)
	}
	if c.LookbackPeriod != nil {
		params["lookback_period"] = float64(*c.LookbackPeriod)
	}
	if c.Threshold != nil {
		params["threshold"] = *c.Threshold
	}
	return params
}

// WithParameter returns a copy with the named parameter replaced. Integer
// parameters are rounded. Returns ErrParameterOutOfRange for values the
// strategy cannot accept.
func (c StrategyConfig) WithParameter(name string, value float64) (StrategyConfig, error) {
	out := c
	switch name {
	case "fast_period", "slow_period", "lookback_period":
		period := int(value + 0.5)
		if period < 1 {
			return out, fmt.Errorf("%w: %s = %f", ErrParameterOutOfRange, name, value)
		}
		switch name {
		case "fast_period":
			out.FastPeriod = &period
		case "slow_period":
			out.SlowPeriod = &period
		case "lookback_period":
			out.LookbackPeriod = &period
		}
	case "threshold":
		if value < 0 {
			return out, fmt.Errorf("%w: threshold = %f", ErrParameterOutOfRange, value)
		}
		out.Threshold = &value
	default:
		return out, fmt.Errorf("%w: unknown parameter %q", ErrParameterOutOfRange, name)
	}
	return out, nil
}
