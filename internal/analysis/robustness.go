package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"strategy-lab/internal/domain"
)

// Robustness perturbs each strategy parameter by ±opts.Variation, re-runs
// every variant, and reports the fraction whose Sharpe stays within the
// stability band of the baseline. A variant whose perturbed parameter is
// invalid is recorded as skipped, never fatal to the sweep. With an empty
// variant set the stability score is undefined, not zero.
func Robustness(ctx context.Context, cfg domain.StrategyConfig, bars []domain.MarketBar, baseline domain.Stat, run RunSharpe, opts Options) (domain.RobustnessResult, error) {
	res := domain.RobustnessResult{StabilityScore: domain.UndefinedStat()}

	params := cfg.Parameters()
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var sharpes stats.Float64Data
	stable, counted := 0, 0
	for _, name := range names {
		base := params[name]
		for _, mult := range []float64{1 - opts.Variation, 1 + opts.Variation} {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			value := base * mult
			variant := domain.VariantMetrics{Parameter: name, Value: value, Sharpe: domain.UndefinedStat()}

			varCfg, err := cfg.WithParameter(name, value)
			if err != nil {
				if !errors.Is(err, domain.ErrParameterOutOfRange) {
					return res, err
				}
				variant.Skipped = true
				variant.Reason = err.Error()
				res.PerVariant = append(res.PerVariant, variant)
				continue
			}

			sharpe, err := run(ctx, varCfg, bars)
			if err != nil {
				variant.Skipped = true
				variant.Reason = fmt.Sprintf("run failed: %v", err)
				res.PerVariant = append(res.PerVariant, variant)
				continue
			}
			variant.Sharpe = sharpe
			res.PerVariant = append(res.PerVariant, variant)

			if sharpe.Defined {
				sharpes = append(sharpes, sharpe.Value)
			}
			if baseline.Defined && sharpe.Defined {
				counted++
				if withinBand(sharpe.Value, baseline.Value, opts.StabilityBand) {
					stable++
				}
			}
		}
	}

	if counted > 0 {
		res.StabilityScore = domain.DefinedStat(float64(stable) / float64(counted))
	}
	if len(sharpes) >= 2 {
		if sd, err := stats.StandardDeviationSample(sharpes); err == nil {
			res.ParameterDeviation = sd
		}
	}
	return res, nil
}

func withinBand(value, baseline, band float64) bool {
	scale := math.Abs(baseline)
	if scale < 1 {
		scale = 1
	}
	return math.Abs(value-baseline) <= band*scale
}
