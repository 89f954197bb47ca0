package strategy

import "strategy-lab/internal/domain"

// Defaults applied when a strategy config omits a parameter.
const (
	DefaultFastPeriod     = 10
	DefaultSlowPeriod     = 30
	DefaultLookbackPeriod = 20
	DefaultThreshold      = 0.02
)

func buildSMACross(cfg domain.StrategyConfig) (Strategy, error) {
	fast := DefaultFastPeriod
	if cfg.FastPeriod != nil {
		fast = *cfg.FastPeriod
	}
	slow := DefaultSlowPeriod
	if cfg.SlowPeriod != nil {
		slow = *cfg.SlowPeriod
	}
	return NewSMACross(fast, slow)
}

func buildMomentum(cfg domain.StrategyConfig) (Strategy, error) {
	lookback := DefaultLookbackPeriod
	if cfg.LookbackPeriod != nil {
		lookback = *cfg.LookbackPeriod
	}
	threshold := DefaultThreshold
	if cfg.Threshold != nil {
		threshold = *cfg.Threshold
	}
	return NewMomentum(lookback, threshold)
}
