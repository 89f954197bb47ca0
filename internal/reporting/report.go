// Package reporting assembles the run report consumed by the dashboard/API
// layer, in JSON and Markdown renderings.
package reporting

import (
	"time"

	"strategy-lab/internal/domain"
)

// Report is the full output of one evaluated run. Field names follow the
// schema the dashboard consumes; undefined statistics serialize as null.
type Report struct {
	RunID       string    `json:"run_id"`
	StrategyID  string    `json:"strategy_id"`
	Symbol      string    `json:"symbol"`
	GeneratedAt time.Time `json:"generated_at"`
	Status      string    `json:"status"`
	DataSource  string    `json:"data_source"`

	InitialCapital float64 `json:"initial_capital"`
	FinalEquity    float64 `json:"final_equity"`

	Sharpe       float64     `json:"sharpe"`
	Sortino      float64     `json:"sortino"`
	MaxDrawdown  float64     `json:"max_drawdown"`
	CAGR         float64     `json:"cagr"`
	TotalReturn  float64     `json:"total_return"`
	WinRate      domain.Stat `json:"win_rate"`
	AvgWin       domain.Stat `json:"avg_win"`
	AvgLoss      domain.Stat `json:"avg_loss"`
	ProfitFactor domain.Stat `json:"profit_factor"`

	TotalTrades   int `json:"total_trades"`
	WinningTrades int `json:"winning_trades"`
	LosingTrades  int `json:"losing_trades"`

	ReturnOverTime    []float64                `json:"return_over_time"`
	RegimePerformance domain.RegimePerformance `json:"regime_performance"`

	Viability        string                  `json:"viability"` // PASS | FAIL
	ViabilityScore   float64                 `json:"viabilityScore"`
	OverfittingFlags domain.OverfittingFlags `json:"overfittingFlags"`
	RobustnessResult domain.RobustnessResult `json:"robustnessResult"`

	Warnings        []string `json:"warnings"`
	Recommendations []string `json:"recommendations"`
}
