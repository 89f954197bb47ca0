package backtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"strategy-lab/internal/analysis"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/marketdata"
	"strategy-lab/internal/storage/memory"
	"strategy-lab/internal/strategy"
)

func testRegistry() *strategy.Registry {
	reg := strategy.DefaultRegistry()
	reg.Register("FLAKY", func(cfg domain.StrategyConfig) (strategy.Strategy, error) {
		return &flakyStrategy{}, nil
	})
	return reg
}

func testRequest() Request {
	fast, slow := 5, 15
	return Request{
		Strategy: domain.StrategyConfig{
			StrategyType: domain.StrategyTypeSMACross,
			FastPeriod:   &fast,
			SlowPeriod:   &slow,
		},
		Symbol:         "BTC-USD",
		Start:          t0,
		End:            t0.Add(299 * time.Hour),
		Interval:       time.Hour,
		InitialCapital: 10000,
		Limits:         domain.DefaultRiskLimits(),
		Friction:       domain.DefaultFriction(),
	}
}

func TestRunnerProducesReport(t *testing.T) {
	store := memory.NewRunStore()
	runner := NewRunner(RunnerOptions{
		Registry: testRegistry(),
		Source:   marketdata.NewSyntheticSource(marketdata.DefaultSyntheticConfig()),
		Store:    store,
	})

	req := testRequest()
	req.Robustness = RobustnessRequest{Enabled: true, Variation: 0.2}

	report, err := runner.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.RunID == "" || report.StrategyID != "sma_cross_5_15" {
		t.Errorf("identity: run_id=%q strategy=%q", report.RunID, report.StrategyID)
	}
	if report.DataSource != domain.DataSourceSynthetic {
		t.Errorf("data_source: got %s, want synthetic", report.DataSource)
	}
	if report.Viability != domain.VerdictPass && report.Viability != domain.VerdictFail {
		t.Errorf("viability: got %q", report.Viability)
	}
	if len(report.RobustnessResult.PerVariant) == 0 {
		t.Error("robustness sweep produced no variants")
	}

	stored, err := store.GetByID(context.Background(), report.RunID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Verdict != report.Viability || stored.DataSource != report.DataSource {
		t.Errorf("stored record mismatch: %+v", stored)
	}
	if len(stored.Report) == 0 {
		t.Error("stored record missing report payload")
	}
}

func TestRunnerIsDeterministic(t *testing.T) {
	runner := NewRunner(RunnerOptions{
		Registry: testRegistry(),
		Source:   marketdata.NewSyntheticSource(marketdata.DefaultSyntheticConfig()),
	})

	first, err := runner.Run(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := runner.Run(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first.RunID != second.RunID {
		t.Errorf("run IDs differ: %s vs %s", first.RunID, second.RunID)
	}
	if first.Sharpe != second.Sharpe || first.TotalTrades != second.TotalTrades || first.FinalEquity != second.FinalEquity {
		t.Errorf("results differ between identical runs")
	}
}

func TestRunnerRejectsNonDeterministicStrategy(t *testing.T) {
	runner := NewRunner(RunnerOptions{
		Registry: testRegistry(),
		Source:   marketdata.NewSyntheticSource(marketdata.DefaultSyntheticConfig()),
	})

	req := testRequest()
	req.Strategy = domain.StrategyConfig{StrategyType: "FLAKY"}

	_, err := runner.Run(context.Background(), req)
	if !errors.Is(err, domain.ErrInvalidStrategy) {
		t.Errorf("got %v, want ErrInvalidStrategy", err)
	}
}

func TestRunnerPropagatesDataUnavailable(t *testing.T) {
	runner := NewRunner(RunnerOptions{
		Registry: testRegistry(),
		Source:   marketdata.NewStoreSource(memory.NewBarStore()),
	})

	_, err := runner.Run(context.Background(), testRequest())
	if !errors.Is(err, domain.ErrDataUnavailable) {
		t.Errorf("got %v, want ErrDataUnavailable", err)
	}
}

func TestRunnerSkipsRobustnessWhenDisabled(t *testing.T) {
	runner := NewRunner(RunnerOptions{
		Registry: testRegistry(),
		Source:   marketdata.NewSyntheticSource(marketdata.DefaultSyntheticConfig()),
		Analysis: analysis.DefaultOptions(),
	})

	report, err := runner.Run(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.RobustnessResult.StabilityScore.Defined {
		t.Error("stability score should be undefined when the sweep is disabled")
	}
	if len(report.RobustnessResult.PerVariant) != 0 {
		t.Errorf("variants: got %d, want 0", len(report.RobustnessResult.PerVariant))
	}
}
