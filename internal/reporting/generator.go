package reporting

import (
	"time"

	"strategy-lab/internal/domain"
)

// Generator assembles reports from run outcomes.
type Generator struct {
	now func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a report generator.
func NewGenerator() *Generator {
	return &Generator{now: func() time.Time { return time.Now().UTC() }}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Build assembles the report for a completed run. Risk rejections surface in
// the warnings list so they are never silently absorbed.
func (g *Generator) Build(runID string, res *domain.RunResult, m domain.PerformanceMetrics, flags domain.OverfittingFlags, robustness domain.RobustnessResult, verdict domain.ViabilityVerdict) *Report {
	warnings := make([]string, 0, len(res.Warnings)+len(res.Rejections))
	warnings = append(warnings, res.Warnings...)
	for _, rej := range res.Rejections {
		warnings = append(warnings, "risk rejection at "+rej.Timestamp.Format(time.RFC3339)+": "+rej.Reason)
	}

	status := res.Status
	if status == domain.RunStatusOK && notComputed(flags) {
		status = domain.RunStatusPartial
	}

	return &Report{
		RunID:       runID,
		StrategyID:  res.StrategyID,
		Symbol:      res.Symbol,
		GeneratedAt: g.now(),
		Status:      status,
		DataSource:  res.DataSource,

		InitialCapital: res.InitialCapital,
		FinalEquity:    res.FinalEquity,

		Sharpe:       m.Sharpe,
		Sortino:      m.Sortino,
		MaxDrawdown:  m.MaxDrawdown,
		CAGR:         m.CAGR,
		TotalReturn:  m.TotalReturn,
		WinRate:      m.WinRate,
		AvgWin:       m.AvgWin,
		AvgLoss:      m.AvgLoss,
		ProfitFactor: m.ProfitFactor,

		TotalTrades:   m.TotalTrades,
		WinningTrades: m.WinningTrades,
		LosingTrades:  m.LosingTrades,

		ReturnOverTime:    m.ReturnOverTime,
		RegimePerformance: m.RegimePerformance,

		Viability:        verdict.Verdict,
		ViabilityScore:   verdict.Score,
		OverfittingFlags: flags,
		RobustnessResult: robustness,

		Warnings:        warnings,
		Recommendations: verdict.Recommendations,
	}
}

func notComputed(flags domain.OverfittingFlags) bool {
	return !flags.ParameterSensitivity.Defined &&
		!flags.WalkForwardStability.Defined &&
		!flags.OOSDegradation.Defined &&
		!flags.CurveFitScore.Defined
}
