// Package metrics derives risk-adjusted statistics from a trade list and
// equity curve.
package metrics

import (
	"math"

	"github.com/montanaflynn/stats"

	"strategy-lab/internal/domain"
)

// Regime labeling parameters for the trend filter.
const (
	regimeWindow    = 20
	regimeThreshold = 0.02
)

// Params configures metric computation.
type Params struct {
	InitialCapital float64
	PeriodsPerYear float64   // 8760 for hourly bars, 365 for daily
	Closes         []float64 // bar closes aligned with the equity curve, for regime labeling
}

// Compute derives performance metrics from a completed (or snapshotted) run.
// Trade statistics come out undefined, not zero, when there are no trades.
func Compute(trades []domain.Trade, equity []domain.EquityPoint, p Params) domain.PerformanceMetrics {
	m := domain.PerformanceMetrics{
		WinRate:      domain.UndefinedStat(),
		AvgWin:       domain.UndefinedStat(),
		AvgLoss:      domain.UndefinedStat(),
		ProfitFactor: domain.UndefinedStat(),
		RegimePerformance: domain.RegimePerformance{
			Bull:     domain.UndefinedStat(),
			Bear:     domain.UndefinedStat(),
			Sideways: domain.UndefinedStat(),
		},
	}

	returns := periodReturns(equity)
	m.Sharpe = sharpe(returns, p.PeriodsPerYear)
	m.Sortino = sortino(returns, p.PeriodsPerYear)
	m.MaxDrawdown = MaxDrawdown(equity)
	m.TotalReturn, m.CAGR = growth(equity, p.InitialCapital)
	m.ReturnOverTime = returnOverTime(equity, p.InitialCapital)
	m.RegimePerformance = regimePerformance(p.Closes, returns, p.PeriodsPerYear)

	fillTradeStats(&m, trades)
	return m
}

// MaxDrawdown returns the largest peak-to-trough decline as a fraction of the
// peak. A strictly rising curve reports 0.
func MaxDrawdown(equity []domain.EquityPoint) float64 {
	maxDD := 0.0
	peak := math.Inf(-1)
	for _, pt := range equity {
		if pt.Equity > peak {
			peak = pt.Equity
		}
		if peak > 0 {
			if dd := (peak - pt.Equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// SharpeFromEquity computes the annualized Sharpe ratio straight from an
// equity curve. Used by the analysis sweeps, which only care about Sharpe.
func SharpeFromEquity(equity []domain.EquityPoint, periodsPerYear float64) domain.Stat {
	returns := periodReturns(equity)
	if len(returns) < 2 {
		return domain.UndefinedStat()
	}
	sd, err := stats.StandardDeviationSample(returns)
	if err != nil || sd == 0 {
		return domain.UndefinedStat()
	}
	mean, _ := stats.Mean(returns)
	return domain.DefinedStat(mean / sd * math.Sqrt(periodsPerYear))
}

func periodReturns(equity []domain.EquityPoint) stats.Float64Data {
	if len(equity) < 2 {
		return nil
	}
	returns := make(stats.Float64Data, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, equity[i].Equity/prev-1)
	}
	return returns
}

func sharpe(returns stats.Float64Data, periodsPerYear float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	sd, err := stats.StandardDeviationSample(returns)
	if err != nil || sd == 0 {
		return 0
	}
	mean, _ := stats.Mean(returns)
	return mean / sd * math.Sqrt(periodsPerYear)
}

func sortino(returns stats.Float64Data, periodsPerYear float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	downside := make(stats.Float64Data, 0, len(returns))
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) < 2 {
		return 0
	}
	sd, err := stats.StandardDeviationSample(downside)
	if err != nil || sd == 0 {
		return 0
	}
	mean, _ := stats.Mean(returns)
	return mean / sd * math.Sqrt(periodsPerYear)
}

func growth(equity []domain.EquityPoint, initial float64) (totalReturn, cagr float64) {
	if len(equity) == 0 || initial <= 0 {
		return 0, 0
	}
	final := equity[len(equity)-1].Equity
	totalReturn = final/initial - 1

	days := equity[len(equity)-1].Timestamp.Sub(equity[0].Timestamp).Hours() / 24
	if days <= 0 || final <= 0 {
		return totalReturn, 0
	}
	cagr = math.Pow(final/initial, 365/days) - 1
	return totalReturn, cagr
}

func returnOverTime(equity []domain.EquityPoint, initial float64) []float64 {
	if initial <= 0 {
		return nil
	}
	out := make([]float64, len(equity))
	for i, pt := range equity {
		out[i] = pt.Equity/initial - 1
	}
	return out
}

func fillTradeStats(m *domain.PerformanceMetrics, trades []domain.Trade) {
	m.TotalTrades = len(trades)
	if len(trades) == 0 {
		return
	}

	var grossProfit, grossLoss float64
	for _, t := range trades {
		if t.RealizedPnL > 0 {
			m.WinningTrades++
			grossProfit += t.RealizedPnL
		} else {
			m.LosingTrades++
			grossLoss += -t.RealizedPnL
		}
	}

	m.WinRate = domain.DefinedStat(float64(m.WinningTrades) / float64(m.TotalTrades))
	if m.WinningTrades > 0 {
		m.AvgWin = domain.DefinedStat(grossProfit / float64(m.WinningTrades))
	}
	if m.LosingTrades > 0 {
		m.AvgLoss = domain.DefinedStat(grossLoss / float64(m.LosingTrades))
	}
	if grossLoss > 0 {
		m.ProfitFactor = domain.DefinedStat(grossProfit / grossLoss)
	}
}

// regimePerformance labels each bar bull, bear, or sideways by the trailing
// rolling return of the market closes, buckets the strategy's period returns
// by that label, and annualizes the mean of each bucket. The regime is a
// property of the market, so a flat strategy in a rising market still fills
// the bull bucket.
func regimePerformance(closes []float64, returns stats.Float64Data, periodsPerYear float64) domain.RegimePerformance {
	out := domain.RegimePerformance{
		Bull:     domain.UndefinedStat(),
		Bear:     domain.UndefinedStat(),
		Sideways: domain.UndefinedStat(),
	}
	if len(returns) < regimeWindow || len(closes) < regimeWindow+1 {
		return out
	}

	n := len(closes)
	if m := len(returns) + 1; m < n {
		n = m
	}
	var bull, bear, side stats.Float64Data
	for i := regimeWindow; i < n; i++ {
		base := closes[i-regimeWindow]
		if base == 0 {
			continue
		}
		trend := closes[i]/base - 1
		r := returns[i-1]
		switch {
		case trend > regimeThreshold:
			bull = append(bull, r)
		case trend < -regimeThreshold:
			bear = append(bear, r)
		default:
			side = append(side, r)
		}
	}

	annualize := func(bucket stats.Float64Data) domain.Stat {
		if len(bucket) == 0 {
			return domain.UndefinedStat()
		}
		mean, err := stats.Mean(bucket)
		if err != nil {
			return domain.UndefinedStat()
		}
		return domain.DefinedStat(mean * periodsPerYear)
	}
	out.Bull = annualize(bull)
	out.Bear = annualize(bear)
	out.Sideways = annualize(side)
	return out
}
