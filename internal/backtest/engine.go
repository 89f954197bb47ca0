// Package backtest drives a strategy over historical bars through the risk
// manager and execution simulator, producing the trade list and equity curve
// that the metrics and analysis layers consume.
package backtest

import (
	"context"
	"fmt"
	"log"
	"time"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/execution"
	"strategy-lab/internal/risk"
	"strategy-lab/internal/strategy"
)

// EngineOptions configures a single-run engine.
type EngineOptions struct {
	InitialCapital float64
	Limits         domain.RiskLimits
	Friction       domain.FrictionConfig
	Logger         *log.Logger
}

// Engine runs one strategy over one bar series. Bars are processed strictly
// in order on a single goroutine; parallelism lives above the engine, never
// inside it.
type Engine struct {
	opts EngineOptions
	log  *log.Logger
}

// NewEngine creates an engine.
func NewEngine(opts EngineOptions) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{opts: opts, log: logger}
}

// Run simulates the strategy over the series. Per bar: sweep stops and
// targets on the open position, feed the bar to the strategy, size and fill
// any entry, then mark equity. Any position left open at the end of data is
// closed on the final bar.
func (e *Engine) Run(ctx context.Context, strat strategy.Strategy, series domain.BarSeries) (*domain.RunResult, error) {
	if len(series.Bars) == 0 {
		return nil, fmt.Errorf("%w: empty bar series for %s", domain.ErrDataUnavailable, series.Symbol)
	}
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if e.opts.InitialCapital <= 0 {
		return nil, fmt.Errorf("%w: initial capital must be positive", domain.ErrInvalidInput)
	}

	res := &domain.RunResult{
		StrategyID:     strat.ID(),
		Symbol:         series.Symbol,
		DataSource:     series.DataSource,
		InitialCapital: e.opts.InitialCapital,
	}
	sim := execution.NewSimulator(strat.ID(), series.Symbol, e.opts.InitialCapital, e.opts.Friction, e.log)
	riskMgr := risk.NewManager(e.opts.Limits, e.log)
	state := strategy.NewState(e.opts.Friction.Seed)

	warnedCapital := false
	for i, bar := range series.Bars {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Protective exits first, against this bar's range.
		if pos, open := sim.Position(); open {
			if price, reason, hit := riskMgr.CheckExit(pos, bar); hit {
				trade, err := sim.Close(price, bar, reason)
				if err != nil {
					return nil, err
				}
				riskMgr.RecordPnL(trade.RealizedPnL, sim.Capital(), bar.Timestamp)
			}
		}

		state.ObserveClose(bar.Close)
		sig := strat.Generate(bar, i, state)
		e.applySignal(sim, riskMgr, res, sig, bar, &warnedCapital)

		// Force-close on the final bar so no position survives the data.
		if i == len(series.Bars)-1 {
			if _, open := sim.Position(); open {
				trade, err := sim.Close(bar.Close, bar, domain.ExitReasonEndOfData)
				if err != nil {
					return nil, err
				}
				riskMgr.RecordPnL(trade.RealizedPnL, sim.Capital(), bar.Timestamp)
			}
		}

		forced, err := sim.MarkBar(bar)
		if err != nil {
			return nil, err
		}
		if forced != nil {
			riskMgr.RecordPnL(forced.RealizedPnL, sim.Capital(), bar.Timestamp)
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"liquidation at %s: equity floor reached, entries halted", bar.Timestamp.Format(time.RFC3339)))
		}
	}

	res.Trades = sim.Trades()
	res.EquityCurve = sim.EquityCurve()
	res.FinalEquity = sim.Capital()
	res.Liquidated = sim.Liquidated()
	if sim.Liquidated() && len(res.Warnings) == 0 {
		res.Warnings = append(res.Warnings, "equity floor reached, entries halted")
	}
	if len(res.Warnings) > 0 {
		res.Status = domain.RunStatusWarnings
	} else {
		res.Status = domain.RunStatusOK
	}
	return res, nil
}

func (e *Engine) applySignal(sim *execution.Simulator, riskMgr *risk.Manager, res *domain.RunResult, sig domain.Signal, bar domain.MarketBar, warnedCapital *bool) {
	switch sig.Action {
	case domain.ActionHold:
		return
	case domain.ActionClose:
		if _, open := sim.Position(); open {
			trade, err := sim.Close(bar.Close, bar, domain.ExitReasonSignal)
			if err == nil {
				riskMgr.RecordPnL(trade.RealizedPnL, sim.Capital(), bar.Timestamp)
			}
		}
		return
	case domain.ActionBuy, domain.ActionSell:
		side := domain.SideLong
		if sig.Action == domain.ActionSell {
			side = domain.SideShort
		}
		if pos, open := sim.Position(); open {
			if pos.Side == side {
				return
			}
			trade, err := sim.Close(bar.Close, bar, domain.ExitReasonSignal)
			if err != nil {
				return
			}
			riskMgr.RecordPnL(trade.RealizedPnL, sim.Capital(), bar.Timestamp)
		}
		e.enter(sim, riskMgr, res, side, bar, warnedCapital)
	}
}

func (e *Engine) enter(sim *execution.Simulator, riskMgr *risk.Manager, res *domain.RunResult, side domain.Side, bar domain.MarketBar, warnedCapital *bool) {
	if sim.Liquidated() {
		if !*warnedCapital {
			res.Warnings = append(res.Warnings, "entry skipped: insufficient capital")
			*warnedCapital = true
		}
		return
	}
	size, rej := riskMgr.Size(bar.Close, sim.Equity(bar.Close), sim.Exposure(bar.Close), bar.Timestamp)
	if rej != nil {
		res.Rejections = append(res.Rejections, domain.Rejection{Timestamp: bar.Timestamp, Reason: rej.Reason})
		return
	}
	stop, target := riskMgr.StopLevels(side, bar.Close)
	if _, err := sim.Open(side, size, bar.Close, bar, stop, target); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"entry failed at %s: %v", bar.Timestamp.Format(time.RFC3339), err))
	}
}
