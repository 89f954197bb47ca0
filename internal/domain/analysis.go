package domain

import "encoding/json"

// Stat is a statistic that may be undefined (zero trades, prerequisites
// unmet). Undefined stats serialize as null, never as NaN or a misleading
// zero.
type Stat struct {
	Value   float64
	Defined bool
}

// DefinedStat returns a defined statistic.
func DefinedStat(v float64) Stat {
	return Stat{Value: v, Defined: true}
}

// UndefinedStat returns the undefined sentinel.
func UndefinedStat() Stat {
	return Stat{}
}

// MarshalJSON serializes undefined stats as null.
func (s Stat) MarshalJSON() ([]byte, error) {
	if !s.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(s.Value)
}

// UnmarshalJSON treats null as undefined.
func (s *Stat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = Stat{}
		return nil
	}
	s.Defined = true
	return json.Unmarshal(data, &s.Value)
}

// RegimePerformance holds annualized returns bucketed by trend regime.
type RegimePerformance struct {
	Bull     Stat `json:"bull"`
	Bear     Stat `json:"bear"`
	Sideways Stat `json:"sideways"`
}

// PerformanceMetrics summarizes a completed (or snapshotted) run.
type PerformanceMetrics struct {
	Sharpe      float64 `json:"sharpe"`
	Sortino     float64 `json:"sortino"`
	MaxDrawdown float64 `json:"max_drawdown"` // [0, 1], peak-to-trough fraction
	CAGR        float64 `json:"cagr"`
	TotalReturn float64 `json:"total_return"`

	// Trade statistics; undefined when there are no trades.
	WinRate      Stat `json:"win_rate"`
	AvgWin       Stat `json:"avg_win"`
	AvgLoss      Stat `json:"avg_loss"`
	ProfitFactor Stat `json:"profit_factor"`

	TotalTrades   int `json:"total_trades"`
	WinningTrades int `json:"winning_trades"`
	LosingTrades  int `json:"losing_trades"`

	ReturnOverTime    []float64         `json:"return_over_time"`
	RegimePerformance RegimePerformance `json:"regime_performance"`
}

// OverfittingFlags are robustness diagnostics. Each score is bounded [0, 1];
// an undefined Stat means "not computed" because prerequisites were unmet,
// which must never be read as a passing value.
type OverfittingFlags struct {
	ParameterSensitivity Stat     `json:"parameter_sensitivity"`
	WalkForwardStability Stat     `json:"walk_forward_stability"`
	OOSDegradation       Stat     `json:"oos_degradation"`
	CurveFitScore        Stat     `json:"curve_fit_score"`
	Warnings             []string `json:"warnings"`
}

// VariantMetrics holds the outcome of one perturbed parameter variant.
type VariantMetrics struct {
	Parameter string  `json:"parameter"`
	Value     float64 `json:"value"`
	Sharpe    Stat    `json:"sharpe"`
	Skipped   bool    `json:"skipped"`
	Reason    string  `json:"reason,omitempty"`
}

// RobustnessResult is the outcome of a parameter-perturbation sweep.
// StabilityScore is undefined (not zero) when the variant set is empty.
type RobustnessResult struct {
	StabilityScore     Stat             `json:"stability_score"`
	ParameterDeviation float64          `json:"parameter_deviation"`
	PerVariant         []VariantMetrics `json:"per_variant"`
}

// Viability verdict constants.
const (
	VerdictPass = "PASS"
	VerdictFail = "FAIL"
)

// ViabilityVerdict is the final judgment. Verdict is PASS iff Score >= 60
// after overfitting penalties and robustness bonuses are applied.
type ViabilityVerdict struct {
	Score           float64  `json:"viabilityScore"` // [0, 100]
	Verdict         string   `json:"viability"`      // PASS | FAIL
	Recommendations []string `json:"recommendations"`
}

// Run status values carried on reports and events so callers can
// distinguish a successful run with warnings from a failed run or a
// partial analysis.
const (
	RunStatusOK       = "ok"
	RunStatusWarnings = "warnings"
	RunStatusPartial  = "partial"
	RunStatusFailed   = "failed"
)
