package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders the report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Strategy Report: %s\n\n", r.StrategyID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Symbol: %s | Status: %s | Data source: %s\n\n", r.Symbol, r.Status, r.DataSource))

	sb.WriteString(fmt.Sprintf("## Verdict: %s (%.1f/100)\n\n", r.Viability, r.ViabilityScore))

	sb.WriteString("## Performance\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Initial Capital | %.2f |\n", r.InitialCapital))
	sb.WriteString(fmt.Sprintf("| Final Equity | %.2f |\n", r.FinalEquity))
	sb.WriteString(fmt.Sprintf("| Total Return | %.2f%% |\n", r.TotalReturn*100))
	sb.WriteString(fmt.Sprintf("| CAGR | %.2f%% |\n", r.CAGR*100))
	sb.WriteString(fmt.Sprintf("| Sharpe | %.2f |\n", r.Sharpe))
	sb.WriteString(fmt.Sprintf("| Sortino | %.2f |\n", r.Sortino))
	sb.WriteString(fmt.Sprintf("| Max Drawdown | %.2f%% |\n", r.MaxDrawdown*100))
	sb.WriteString(fmt.Sprintf("| Trades | %d (%d won / %d lost) |\n", r.TotalTrades, r.WinningTrades, r.LosingTrades))
	sb.WriteString(fmt.Sprintf("| Win Rate | %s |\n", statCell(r.WinRate.Defined, r.WinRate.Value*100, "%.1f%%")))
	sb.WriteString(fmt.Sprintf("| Avg Win | %s |\n", statCell(r.AvgWin.Defined, r.AvgWin.Value, "%.2f")))
	sb.WriteString(fmt.Sprintf("| Avg Loss | %s |\n", statCell(r.AvgLoss.Defined, r.AvgLoss.Value, "%.2f")))
	sb.WriteString(fmt.Sprintf("| Profit Factor | %s |\n", statCell(r.ProfitFactor.Defined, r.ProfitFactor.Value, "%.2f")))
	sb.WriteString("\n")

	sb.WriteString("## Regime Performance (annualized)\n\n")
	sb.WriteString("| Regime | Return |\n")
	sb.WriteString("|--------|--------|\n")
	sb.WriteString(fmt.Sprintf("| Bull | %s |\n", statCell(r.RegimePerformance.Bull.Defined, r.RegimePerformance.Bull.Value*100, "%.1f%%")))
	sb.WriteString(fmt.Sprintf("| Bear | %s |\n", statCell(r.RegimePerformance.Bear.Defined, r.RegimePerformance.Bear.Value*100, "%.1f%%")))
	sb.WriteString(fmt.Sprintf("| Sideways | %s |\n", statCell(r.RegimePerformance.Sideways.Defined, r.RegimePerformance.Sideways.Value*100, "%.1f%%")))
	sb.WriteString("\n")

	sb.WriteString("## Overfitting Flags\n\n")
	sb.WriteString("| Flag | Value |\n")
	sb.WriteString("|------|-------|\n")
	f := r.OverfittingFlags
	sb.WriteString(fmt.Sprintf("| Parameter Sensitivity | %s |\n", statCell(f.ParameterSensitivity.Defined, f.ParameterSensitivity.Value, "%.2f")))
	sb.WriteString(fmt.Sprintf("| Walk-Forward Stability | %s |\n", statCell(f.WalkForwardStability.Defined, f.WalkForwardStability.Value, "%.2f")))
	sb.WriteString(fmt.Sprintf("| OOS Degradation | %s |\n", statCell(f.OOSDegradation.Defined, f.OOSDegradation.Value, "%.2f")))
	sb.WriteString(fmt.Sprintf("| Curve-Fit Score | %s |\n", statCell(f.CurveFitScore.Defined, f.CurveFitScore.Value, "%.2f")))
	sb.WriteString("\n")

	sb.WriteString("## Robustness\n\n")
	sb.WriteString(fmt.Sprintf("Stability score: %s | Parameter deviation: %.3f\n\n",
		statCell(r.RobustnessResult.StabilityScore.Defined, r.RobustnessResult.StabilityScore.Value, "%.2f"),
		r.RobustnessResult.ParameterDeviation))
	if len(r.RobustnessResult.PerVariant) > 0 {
		sb.WriteString("| Parameter | Value | Sharpe | Skipped |\n")
		sb.WriteString("|-----------|-------|--------|---------|\n")
		for _, v := range r.RobustnessResult.PerVariant {
			sharpe := statCell(v.Sharpe.Defined, v.Sharpe.Value, "%.2f")
			skipped := ""
			if v.Skipped {
				skipped = v.Reason
			}
			sb.WriteString(fmt.Sprintf("| %s | %.2f | %s | %s |\n", v.Parameter, v.Value, sharpe, skipped))
		}
		sb.WriteString("\n")
	}

	if len(r.Warnings) > 0 {
		sb.WriteString("## Warnings\n\n")
		for _, w := range r.Warnings {
			sb.WriteString(fmt.Sprintf("- %s\n", w))
		}
		sb.WriteString("\n")
	}

	if len(r.Recommendations) > 0 {
		sb.WriteString("## Recommendations\n\n")
		for _, rec := range r.Recommendations {
			sb.WriteString(fmt.Sprintf("- %s\n", rec))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// statCell formats a possibly-undefined statistic for a table cell.
func statCell(defined bool, value float64, format string) string {
	if !defined {
		return "n/a"
	}
	return fmt.Sprintf(format, value)
}
