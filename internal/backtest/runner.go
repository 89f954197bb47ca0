package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"strategy-lab/internal/analysis"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/idhash"
	"strategy-lab/internal/marketdata"
	"strategy-lab/internal/metrics"
	"strategy-lab/internal/observability"
	"strategy-lab/internal/reporting"
	"strategy-lab/internal/storage"
	"strategy-lab/internal/strategy"
	"strategy-lab/internal/viability"
)

// RobustnessRequest controls the parameter-perturbation sweep.
type RobustnessRequest struct {
	Enabled   bool
	Variation float64 // fractional perturbation; 0 falls back to the default
}

// Request describes one evaluation run.
type Request struct {
	Strategy       domain.StrategyConfig
	Symbol         string
	Start, End     time.Time
	Interval       time.Duration
	InitialCapital float64
	Limits         domain.RiskLimits
	Friction       domain.FrictionConfig
	Robustness     RobustnessRequest
}

// RunnerOptions wires the runner's collaborators. Store and Metrics are
// optional; without them the run is neither persisted nor counted.
type RunnerOptions struct {
	Registry *strategy.Registry
	Source   marketdata.BarSource
	Store    storage.RunStore
	Metrics  *observability.Metrics
	Analysis analysis.Options
	Logger   *log.Logger
}

// Runner executes the full evaluation pipeline: fetch bars, verify the
// strategy replays deterministically, simulate, measure, analyze, score, and
// assemble the report.
type Runner struct {
	registry *strategy.Registry
	source   marketdata.BarSource
	store    storage.RunStore
	obs      *observability.Metrics
	analysis analysis.Options
	gen      *reporting.Generator
	log      *log.Logger
	now      func() time.Time
}

// NewRunner creates a runner.
func NewRunner(opts RunnerOptions) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	a := opts.Analysis
	if a == (analysis.Options{}) {
		a = analysis.DefaultOptions()
	}
	return &Runner{
		registry: opts.Registry,
		source:   opts.Source,
		store:    opts.Store,
		obs:      opts.Metrics,
		analysis: a,
		gen:      reporting.NewGenerator(),
		log:      logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock for deterministic run records.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	r.gen = r.gen.WithClock(now)
	return r
}

// Run executes the request and returns the assembled report.
func (r *Runner) Run(ctx context.Context, req Request) (*reporting.Report, error) {
	started := r.now()

	report, err := r.run(ctx, req)
	if r.obs != nil {
		status := "failed"
		if err == nil {
			status = report.Status
		}
		r.obs.BacktestRunsTotal.WithLabelValues(status).Inc()
		r.obs.BacktestDuration.Observe(r.now().Sub(started).Seconds())
		if err == nil {
			r.obs.TradesSimulated.Add(float64(report.TotalTrades))
		}
	}
	return report, err
}

func (r *Runner) run(ctx context.Context, req Request) (*reporting.Report, error) {
	strat, err := r.registry.Build(req.Strategy)
	if err != nil {
		return nil, err
	}

	series, err := r.source.Fetch(ctx, req.Symbol, req.Start, req.End, req.Interval)
	if err != nil {
		return nil, err
	}
	if series.DataSource == domain.DataSourceSynthetic {
		r.log.Printf("run %s/%s uses synthetic data", strat.ID(), req.Symbol)
	}

	engine := NewEngine(EngineOptions{
		InitialCapital: req.InitialCapital,
		Limits:         req.Limits,
		Friction:       req.Friction,
		Logger:         r.log,
	})

	res, err := r.verifiedRun(ctx, engine, strat, series)
	if err != nil {
		return nil, err
	}
	if r.obs != nil {
		r.obs.RiskRejections.Add(float64(len(res.Rejections)))
		if res.Liquidated {
			r.obs.Liquidations.Inc()
		}
	}

	periodsPerYear := periodsPerYear(req.Interval)
	perf := metrics.Compute(res.Trades, res.EquityCurve, metrics.Params{
		InitialCapital: req.InitialCapital,
		PeriodsPerYear: periodsPerYear,
		Closes:         barCloses(series.Bars),
	})

	runVariant := r.variantEvaluator(req, periodsPerYear, series.DataSource)
	baseline := metrics.SharpeFromEquity(res.EquityCurve, periodsPerYear)

	flags, err := analysis.DetectOverfitting(ctx, req.Strategy, series.Bars, baseline, len(res.Trades), runVariant, r.analysis)
	if err != nil {
		return nil, err
	}

	robustness := domain.RobustnessResult{StabilityScore: domain.UndefinedStat()}
	if req.Robustness.Enabled {
		opts := r.analysis
		if req.Robustness.Variation > 0 {
			opts.Variation = req.Robustness.Variation
		}
		robustness, err = analysis.Robustness(ctx, req.Strategy, series.Bars, baseline, runVariant, opts)
		if err != nil {
			return nil, err
		}
	}

	verdict := viability.Score(perf, flags, robustness)

	runID := idhash.ComputeRunID(strat.ID(), req.Symbol, req.Start.UnixMilli(), req.End.UnixMilli(), req.Friction.Seed)
	report := r.gen.Build(runID, res, perf, flags, robustness, verdict)

	if r.store != nil {
		if err := r.persist(ctx, req, report); err != nil {
			r.log.Printf("persist run %s: %v", runID, err)
			report.Warnings = append(report.Warnings, fmt.Sprintf("run record not persisted: %v", err))
		}
	}
	return report, nil
}

// verifiedRun executes the simulation twice and rejects strategies whose
// replays disagree; a strategy drawing on anything but its seeded state
// cannot produce trustworthy results.
func (r *Runner) verifiedRun(ctx context.Context, engine *Engine, strat strategy.Strategy, series domain.BarSeries) (*domain.RunResult, error) {
	first, err := engine.Run(ctx, strat, series)
	if err != nil {
		return nil, err
	}
	second, err := engine.Run(ctx, strat, series)
	if err != nil {
		return nil, err
	}
	if !replaysMatch(first, second) {
		return nil, fmt.Errorf("%w: %s produced different results on replay", domain.ErrInvalidStrategy, strat.ID())
	}
	return first, nil
}

func replaysMatch(a, b *domain.RunResult) bool {
	if len(a.Trades) != len(b.Trades) || len(a.EquityCurve) != len(b.EquityCurve) {
		return false
	}
	for i := range a.Trades {
		if a.Trades[i] != b.Trades[i] {
			return false
		}
	}
	for i := range a.EquityCurve {
		if a.EquityCurve[i] != b.EquityCurve[i] {
			return false
		}
	}
	return true
}

// variantEvaluator builds the closure the analyses use to score perturbed
// configs over bar sub-ranges.
func (r *Runner) variantEvaluator(req Request, periodsPerYear float64, dataSource string) analysis.RunSharpe {
	return func(ctx context.Context, cfg domain.StrategyConfig, bars []domain.MarketBar) (domain.Stat, error) {
		strat, err := r.registry.Build(cfg)
		if err != nil {
			return domain.UndefinedStat(), err
		}
		engine := NewEngine(EngineOptions{
			InitialCapital: req.InitialCapital,
			Limits:         req.Limits,
			Friction:       req.Friction,
			Logger:         r.log,
		})
		res, err := engine.Run(ctx, strat, domain.BarSeries{
			Symbol:     req.Symbol,
			Interval:   req.Interval,
			DataSource: dataSource,
			Bars:       bars,
		})
		if err != nil {
			return domain.UndefinedStat(), err
		}
		return metrics.SharpeFromEquity(res.EquityCurve, periodsPerYear), nil
	}
}

func (r *Runner) persist(ctx context.Context, req Request, report *reporting.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return r.store.Insert(ctx, &domain.RunRecord{
		RunID:          report.RunID,
		StrategyID:     report.StrategyID,
		Symbol:         report.Symbol,
		StartAt:        req.Start,
		EndAt:          req.End,
		CreatedAt:      r.now(),
		Status:         report.Status,
		DataSource:     report.DataSource,
		Sharpe:         report.Sharpe,
		MaxDrawdown:    report.MaxDrawdown,
		ViabilityScore: report.ViabilityScore,
		Verdict:        report.Viability,
		Report:         payload,
	})
}

func barCloses(bars []domain.MarketBar) []float64 {
	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}
	return closes
}

// periodsPerYear converts a bar interval into the annualization factor.
func periodsPerYear(interval time.Duration) float64 {
	if interval <= 0 {
		return 365
	}
	return float64(365*24*time.Hour) / float64(interval)
}
