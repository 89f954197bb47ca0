package analysis

import (
	"context"
	"fmt"
	"math"

	"strategy-lab/internal/domain"
)

// Curve-fit composite weights.
const (
	weightSensitivity = 0.4
	weightDegradation = 0.4
	weightScarcity    = 0.2

	// tradesPerParameter is the trade count per tuned parameter below
	// which the scarcity component maxes out.
	tradesPerParameter = 10
)

// DetectOverfitting computes the overfitting diagnostics for a completed run.
// Each flag that cannot be computed (not enough variants, not enough bars for
// walk-forward splits) comes out undefined with an explanatory warning,
// never as a passing zero.
func DetectOverfitting(ctx context.Context, cfg domain.StrategyConfig, bars []domain.MarketBar, baseline domain.Stat, tradeCount int, run RunSharpe, opts Options) (domain.OverfittingFlags, error) {
	flags := domain.OverfittingFlags{
		ParameterSensitivity: domain.UndefinedStat(),
		WalkForwardStability: domain.UndefinedStat(),
		OOSDegradation:       domain.UndefinedStat(),
		CurveFitScore:        domain.UndefinedStat(),
	}

	sensitivity, err := parameterSensitivity(ctx, cfg, bars, baseline, run, opts)
	if err != nil {
		return flags, err
	}
	flags.ParameterSensitivity = sensitivity
	if !sensitivity.Defined {
		flags.Warnings = append(flags.Warnings, "parameter sensitivity not computed: fewer than two usable variants")
	} else if sensitivity.Value > 0.5 {
		flags.Warnings = append(flags.Warnings, fmt.Sprintf("high parameter sensitivity: %.2f", sensitivity.Value))
	}

	stability, degradation, err := walkForward(ctx, cfg, bars, run, opts)
	if err != nil {
		return flags, err
	}
	flags.WalkForwardStability = stability
	flags.OOSDegradation = degradation
	if !degradation.Defined {
		flags.Warnings = append(flags.Warnings, fmt.Sprintf(
			"walk-forward not computed: need %d splits of at least %d bars, have %d bars",
			opts.WalkForwardSplits, opts.MinBarsPerSplit, len(bars)))
	} else if degradation.Value > 0.5 {
		flags.Warnings = append(flags.Warnings, fmt.Sprintf("high out-of-sample degradation: %.2f", degradation.Value))
	}

	if sensitivity.Defined && degradation.Defined {
		scarcity := tradeScarcity(cfg, tradeCount)
		score := weightSensitivity*sensitivity.Value +
			weightDegradation*degradation.Value +
			weightScarcity*scarcity
		flags.CurveFitScore = domain.DefinedStat(clamp01(score))
		if scarcity > 0.5 {
			flags.Warnings = append(flags.Warnings, fmt.Sprintf(
				"few trades for parameter count: %d trades, %d parameters", tradeCount, len(cfg.Parameters())))
		}
	} else {
		flags.Warnings = append(flags.Warnings, "curve-fit score not computed: missing component analyses")
	}
	return flags, nil
}

// parameterSensitivity measures the normalized Sharpe spread across the
// perturbed variants.
func parameterSensitivity(ctx context.Context, cfg domain.StrategyConfig, bars []domain.MarketBar, baseline domain.Stat, run RunSharpe, opts Options) (domain.Stat, error) {
	if !baseline.Defined {
		return domain.UndefinedStat(), nil
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	defined := 0
	for name, base := range cfg.Parameters() {
		for _, mult := range []float64{1 - opts.Variation, 1 + opts.Variation} {
			if err := ctx.Err(); err != nil {
				return domain.UndefinedStat(), err
			}
			varCfg, err := cfg.WithParameter(name, base*mult)
			if err != nil {
				continue
			}
			sharpe, err := run(ctx, varCfg, bars)
			if err != nil || !sharpe.Defined {
				continue
			}
			defined++
			lo = math.Min(lo, sharpe.Value)
			hi = math.Max(hi, sharpe.Value)
		}
	}
	if defined < 2 {
		return domain.UndefinedStat(), nil
	}
	scale := math.Abs(baseline.Value)
	if scale < 1 {
		scale = 1
	}
	return domain.DefinedStat(clamp01((hi - lo) / (2 * scale))), nil
}

// walkForward splits the range into sequential windows, compares in-sample
// and out-of-sample Sharpe per window, and averages the degradation.
func walkForward(ctx context.Context, cfg domain.StrategyConfig, bars []domain.MarketBar, run RunSharpe, opts Options) (stability, degradation domain.Stat, err error) {
	stability = domain.UndefinedStat()
	degradation = domain.UndefinedStat()

	splits := opts.WalkForwardSplits
	if splits < 1 {
		return stability, degradation, nil
	}
	splitLen := len(bars) / splits
	if splitLen < opts.MinBarsPerSplit {
		return stability, degradation, nil
	}

	total := 0.0
	computed := 0
	for s := 0; s < splits; s++ {
		if err := ctx.Err(); err != nil {
			return stability, degradation, err
		}
		window := bars[s*splitLen : (s+1)*splitLen]
		cut := len(window) * 7 / 10
		inSharpe, err := run(ctx, cfg, window[:cut])
		if err != nil {
			continue
		}
		outSharpe, err := run(ctx, cfg, window[cut:])
		if err != nil {
			continue
		}
		if !inSharpe.Defined || !outSharpe.Defined {
			continue
		}
		scale := math.Abs(inSharpe.Value)
		if scale < 1 {
			scale = 1
		}
		total += clamp01((inSharpe.Value - outSharpe.Value) / scale)
		computed++
	}
	if computed == 0 {
		return stability, degradation, nil
	}

	avg := total / float64(computed)
	degradation = domain.DefinedStat(avg)
	stability = domain.DefinedStat(clamp01(1 - avg))
	return stability, degradation, nil
}

// tradeScarcity scores how thin the trade evidence is relative to the number
// of tuned parameters.
func tradeScarcity(cfg domain.StrategyConfig, tradeCount int) float64 {
	paramCount := len(cfg.Parameters())
	if paramCount == 0 {
		return 0
	}
	needed := float64(paramCount * tradesPerParameter)
	return clamp01(1 - float64(tradeCount)/needed)
}
