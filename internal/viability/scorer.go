// Package viability condenses a run's metrics and analyses into a single
// 0-100 score and a PASS/FAIL verdict. Scoring is a pure function of its
// inputs: accumulate weighted points, subtract overfitting penalties, add the
// robustness bonus, clamp, compare to the threshold.
package viability

import (
	"fmt"
	"math"

	"strategy-lab/internal/domain"
)

// PassThreshold is the minimum score for a PASS verdict, inclusive.
const PassThreshold = 60.0

// Component weights. Each component contributes linearly up to its weight;
// the weights sum to 100.
const (
	weightSharpe       = 25.0
	weightDrawdown     = 20.0
	weightWinRate      = 15.0
	weightProfit       = 15.0
	weightCAGR         = 15.0
	weightTradeCount   = 10.0
	maxCurveFitPenalty = 25.0
	maxStabilityBonus  = 5.0
)

// Component saturation points.
const (
	sharpeFull   = 2.0 // Sharpe at which the component maxes out
	drawdownZero = 0.5 // drawdown at which the component reaches zero
	winRateFloor = 0.3 // win rate below which no points accrue
	winRateFull  = 0.6
	profitFloor  = 1.0 // break-even profit factor
	profitFull   = 2.0
	cagrFull     = 0.3
	tradeFull    = 30
)

// Score produces the final verdict from metrics and the optional analyses.
// Undefined analysis flags contribute neither penalty nor bonus; they only
// surface as recommendations.
func Score(m domain.PerformanceMetrics, flags domain.OverfittingFlags, robustness domain.RobustnessResult) domain.ViabilityVerdict {
	score := weightSharpe*ratio(m.Sharpe, 0, sharpeFull) +
		weightDrawdown*(1-ratio(m.MaxDrawdown, 0, drawdownZero)) +
		weightProfit*statRatio(m.ProfitFactor, profitFloor, profitFull) +
		weightWinRate*statRatio(m.WinRate, winRateFloor, winRateFull) +
		weightCAGR*ratio(m.CAGR, 0, cagrFull) +
		weightTradeCount*ratio(float64(m.TotalTrades), 0, tradeFull)

	var recs []string
	if flags.CurveFitScore.Defined {
		score -= maxCurveFitPenalty * flags.CurveFitScore.Value
		if flags.CurveFitScore.Value > 0.5 {
			recs = append(recs, fmt.Sprintf("curve-fit score %.2f suggests overfitting; widen the data range or reduce tuned parameters", flags.CurveFitScore.Value))
		}
	} else {
		recs = append(recs, "overfitting analysis not computed; treat the score as provisional")
	}
	if robustness.StabilityScore.Defined {
		score += maxStabilityBonus * bonusRatio(robustness.StabilityScore.Value)
		if robustness.StabilityScore.Value < 0.5 {
			recs = append(recs, fmt.Sprintf("only %.0f%% of parameter variants stayed stable; performance is parameter-fragile", robustness.StabilityScore.Value*100))
		}
	}

	if m.Sharpe < 1 {
		recs = append(recs, fmt.Sprintf("Sharpe %.2f is below 1; risk-adjusted returns are weak", m.Sharpe))
	}
	if m.MaxDrawdown > 0.3 {
		recs = append(recs, fmt.Sprintf("max drawdown %.0f%% exceeds 30%%; tighten stops or reduce position size", m.MaxDrawdown*100))
	}
	if m.TotalTrades < 10 {
		recs = append(recs, fmt.Sprintf("%d trades is thin evidence; extend the test period", m.TotalTrades))
	}

	score = math.Max(0, math.Min(100, score))
	verdict := domain.VerdictFail
	if score >= PassThreshold {
		verdict = domain.VerdictPass
	}
	return domain.ViabilityVerdict{Score: score, Verdict: verdict, Recommendations: recs}
}

// ratio maps value linearly onto [0, 1] between floor and full.
func ratio(value, floor, full float64) float64 {
	if full <= floor {
		return 0
	}
	r := (value - floor) / (full - floor)
	return math.Max(0, math.Min(1, r))
}

// statRatio is ratio for possibly-undefined stats; undefined earns nothing.
func statRatio(s domain.Stat, floor, full float64) float64 {
	if !s.Defined {
		return 0
	}
	return ratio(s.Value, floor, full)
}

// bonusRatio scales the stability bonus: nothing below 0.5, full at 1.0.
func bonusRatio(stability float64) float64 {
	return ratio(stability, 0.5, 1.0)
}
