package paper

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/execution"
	"strategy-lab/internal/marketdata"
	"strategy-lab/internal/observability"
	"strategy-lab/internal/risk"
	"strategy-lab/internal/strategy"
)

// State is the runner lifecycle state.
type State string

const (
	StateIdle    State = "IDLE"
	StateRunning State = "RUNNING"
	StatePaused  State = "PAUSED"
	StateStopped State = "STOPPED"
)

// RunnerConfig configures one paper-trading runner.
type RunnerConfig struct {
	Strategy       domain.StrategyConfig
	Symbol         string
	Interval       time.Duration
	InitialCapital float64
	Limits         domain.RiskLimits
	Friction       domain.FrictionConfig

	// FlattenOnStop closes any open position when the runner stops. It is
	// an explicit deployment choice; the default leaves positions open.
	FlattenOnStop bool

	// TickGrace is how far past the bar interval the runner waits before
	// declaring a tick skipped. Defaults to half the interval.
	TickGrace time.Duration
}

// Snapshot is a point-in-time view of a runner.
type Snapshot struct {
	StrategyID string
	Symbol     string
	State      State
	Equity     float64
	Capital    float64
	Position   *domain.Position
	TradeCount int
	LastBarAt  time.Time
	Liquidated bool
}

// Runner drives one strategy against a live bar stream. All lifecycle
// methods are safe for concurrent use; bar processing happens on a single
// goroutine owned by the runner.
type Runner struct {
	cfg    RunnerConfig
	strat  strategy.Strategy
	source marketdata.LiveSource
	bus    *Bus
	obs    *observability.Metrics
	log    *log.Logger

	mu         sync.Mutex
	state      State
	sim        *execution.Simulator
	riskMgr    *risk.Manager
	stratState *strategy.State
	barIndex   int
	lastBarAt  time.Time
	lastPrice  float64
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewRunner builds a runner for the configured strategy. The runner starts
// in IDLE and owns a fresh capital ledger.
func NewRunner(registry *strategy.Registry, source marketdata.LiveSource, bus *Bus, obs *observability.Metrics, cfg RunnerConfig, logger *log.Logger) (*Runner, error) {
	if cfg.InitialCapital <= 0 {
		return nil, fmt.Errorf("%w: initial capital must be positive", domain.ErrInvalidInput)
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive", domain.ErrInvalidInput)
	}
	strat, err := registry.Build(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	if cfg.TickGrace <= 0 {
		cfg.TickGrace = cfg.Interval / 2
	}
	r := &Runner{
		cfg:    cfg,
		strat:  strat,
		source: source,
		bus:    bus,
		obs:    obs,
		log:    logger,
		state:  StateIdle,
	}
	r.resetLedger()
	return r, nil
}

// StrategyID returns the runner's strategy identity.
func (r *Runner) StrategyID() string { return r.strat.ID() }

// State returns the current lifecycle state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Status returns a snapshot of the runner.
func (r *Runner) Status() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		StrategyID: r.strat.ID(),
		Symbol:     r.cfg.Symbol,
		State:      r.state,
		Capital:    r.sim.Capital(),
		Equity:     r.sim.Equity(r.lastPrice),
		TradeCount: len(r.sim.Trades()),
		LastBarAt:  r.lastBarAt,
		Liquidated: r.sim.Liquidated(),
	}
	if pos, open := r.sim.Position(); open {
		snap.Position = &pos
	}
	return snap
}

// Start transitions IDLE -> RUNNING and begins consuming bars.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateIdle {
		r.mu.Unlock()
		return fmt.Errorf("%w: cannot start from %s", domain.ErrInvalidInput, r.state)
	}

	runCtx, cancel := context.WithCancel(ctx)
	bars, err := r.source.Subscribe(runCtx, r.cfg.Symbol, r.cfg.Interval)
	if err != nil {
		cancel()
		r.mu.Unlock()
		return err
	}
	r.cancel = cancel
	r.done = make(chan struct{})
	r.state = StateRunning
	r.mu.Unlock()

	if r.obs != nil {
		r.obs.RunnersActive.Inc()
	}
	go r.loop(runCtx, bars)
	return nil
}

// Pause transitions RUNNING -> PAUSED. Bars arriving while paused are
// dropped without touching strategy or ledger state.
func (r *Runner) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRunning {
		return fmt.Errorf("%w: cannot pause from %s", domain.ErrInvalidInput, r.state)
	}
	r.state = StatePaused
	return nil
}

// Resume transitions PAUSED -> RUNNING.
func (r *Runner) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StatePaused {
		return fmt.Errorf("%w: cannot resume from %s", domain.ErrInvalidInput, r.state)
	}
	r.state = StateRunning
	return nil
}

// Stop cooperatively halts the runner: the current bar finishes processing,
// a final equity snapshot is emitted, and the position is flattened only if
// the config says so. Blocks until the loop exits.
func (r *Runner) Stop() error {
	r.mu.Lock()
	if r.state != StateRunning && r.state != StatePaused {
		r.mu.Unlock()
		return fmt.Errorf("%w: cannot stop from %s", domain.ErrInvalidInput, r.state)
	}
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	<-done
	return nil
}

// Reset re-arms a STOPPED runner with a fresh ledger and strategy state. It
// is the only sanctioned way to adjust capital from outside.
func (r *Runner) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateStopped {
		return fmt.Errorf("%w: reset requires STOPPED, runner is %s", domain.ErrInvalidInput, r.state)
	}
	r.resetLedger()
	r.state = StateIdle
	return nil
}

// resetLedger must be called with the lock held (or before the runner is
// shared).
func (r *Runner) resetLedger() {
	r.sim = execution.NewSimulator(r.strat.ID(), r.cfg.Symbol, r.cfg.InitialCapital, r.cfg.Friction, r.log)
	r.riskMgr = risk.NewManager(r.cfg.Limits, r.log)
	r.stratState = strategy.NewState(r.cfg.Friction.Seed)
	r.barIndex = 0
	r.lastBarAt = time.Time{}
	r.lastPrice = 0
}

func (r *Runner) loop(ctx context.Context, bars <-chan domain.MarketBar) {
	defer r.finish()

	watchdog := time.NewTicker(r.cfg.Interval + r.cfg.TickGrace)
	defer watchdog.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case bar, ok := <-bars:
			if !ok {
				r.emitWarning(time.Now().UTC(), "bar stream closed, stopping runner")
				return
			}
			watchdog.Reset(r.cfg.Interval + r.cfg.TickGrace)
			if r.State() != StateRunning {
				continue
			}
			r.processBar(bar)
		case <-watchdog.C:
			if r.State() != StateRunning {
				continue
			}
			r.emitWarning(time.Now().UTC(), fmt.Sprintf("tick skipped: no bar within %s", r.cfg.Interval+r.cfg.TickGrace))
			if r.obs != nil {
				r.obs.RunnerFetchErrors.WithLabelValues(r.strat.ID()).Inc()
			}
		}
	}
}

// finish emits the final equity snapshot, optionally flattens, and lands in
// STOPPED.
func (r *Runner) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cfg.FlattenOnStop && r.lastPrice > 0 {
		if _, open := r.sim.Position(); open {
			bar := domain.MarketBar{
				Symbol:    r.cfg.Symbol,
				Timestamp: r.lastBarAt,
				Open:      r.lastPrice,
				High:      r.lastPrice,
				Low:       r.lastPrice,
				Close:     r.lastPrice,
			}
			if trade, err := r.sim.Close(r.lastPrice, bar, domain.ExitReasonFlattenOnStop); err == nil {
				r.publish(Event{
					Type: EventTrade, StrategyID: r.strat.ID(), Symbol: r.cfg.Symbol,
					Timestamp: r.lastBarAt, Trade: &trade,
				})
			}
		}
	}

	final := domain.EquityPoint{Timestamp: time.Now().UTC(), Equity: r.sim.Equity(r.lastPrice)}
	r.publish(Event{
		Type: EventEquity, StrategyID: r.strat.ID(), Symbol: r.cfg.Symbol,
		Timestamp: final.Timestamp, Equity: &final,
	})

	r.state = StateStopped
	if r.obs != nil {
		r.obs.RunnersActive.Dec()
	}
	close(r.done)
}

// processBar runs the same per-bar pipeline as the backtester: protective
// exits, then the strategy, then sizing and fills, then the equity mark.
func (r *Runner) processBar(bar domain.MarketBar) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := bar.Validate(); err != nil {
		r.publishLocked(Event{
			Type: EventWarning, StrategyID: r.strat.ID(), Symbol: r.cfg.Symbol,
			Timestamp: bar.Timestamp, Message: fmt.Sprintf("invalid bar dropped: %v", err),
		})
		return
	}
	if !r.lastBarAt.IsZero() && !bar.Timestamp.After(r.lastBarAt) {
		return
	}

	if pos, open := r.sim.Position(); open {
		if price, reason, hit := r.riskMgr.CheckExit(pos, bar); hit {
			if trade, err := r.sim.Close(price, bar, reason); err == nil {
				r.riskMgr.RecordPnL(trade.RealizedPnL, r.sim.Capital(), bar.Timestamp)
				r.publishLocked(Event{
					Type: EventTrade, StrategyID: r.strat.ID(), Symbol: r.cfg.Symbol,
					Timestamp: bar.Timestamp, Trade: &trade,
				})
			}
		}
	}

	r.stratState.ObserveClose(bar.Close)
	sig := r.strat.Generate(bar, r.barIndex, r.stratState)
	if sig.Action != domain.ActionHold {
		sigCopy := sig
		r.publishLocked(Event{
			Type: EventSignal, StrategyID: r.strat.ID(), Symbol: r.cfg.Symbol,
			Timestamp: bar.Timestamp, Signal: &sigCopy,
		})
	}
	r.applySignal(sig, bar)

	if forced, err := r.sim.MarkBar(bar); err == nil && forced != nil {
		r.riskMgr.RecordPnL(forced.RealizedPnL, r.sim.Capital(), bar.Timestamp)
		r.publishLocked(Event{
			Type: EventTrade, StrategyID: r.strat.ID(), Symbol: r.cfg.Symbol,
			Timestamp: bar.Timestamp, Trade: forced,
		})
		r.publishLocked(Event{
			Type: EventWarning, StrategyID: r.strat.ID(), Symbol: r.cfg.Symbol,
			Timestamp: bar.Timestamp, Message: "equity floor reached, entries halted",
		})
	}

	curve := r.sim.EquityCurve()
	if len(curve) > 0 {
		pt := curve[len(curve)-1]
		r.publishLocked(Event{
			Type: EventEquity, StrategyID: r.strat.ID(), Symbol: r.cfg.Symbol,
			Timestamp: bar.Timestamp, Equity: &pt,
		})
	}

	r.barIndex++
	r.lastBarAt = bar.Timestamp
	r.lastPrice = bar.Close
	if r.obs != nil {
		r.obs.RunnerTicks.WithLabelValues(r.strat.ID()).Inc()
		r.obs.RunnerEquity.WithLabelValues(r.strat.ID()).Set(r.sim.Equity(bar.Close))
	}
}

func (r *Runner) applySignal(sig domain.Signal, bar domain.MarketBar) {
	switch sig.Action {
	case domain.ActionClose:
		if _, open := r.sim.Position(); open {
			if trade, err := r.sim.Close(bar.Close, bar, domain.ExitReasonSignal); err == nil {
				r.riskMgr.RecordPnL(trade.RealizedPnL, r.sim.Capital(), bar.Timestamp)
				r.publishLocked(Event{
					Type: EventTrade, StrategyID: r.strat.ID(), Symbol: r.cfg.Symbol,
					Timestamp: bar.Timestamp, Trade: &trade,
				})
			}
		}
	case domain.ActionBuy, domain.ActionSell:
		side := domain.SideLong
		if sig.Action == domain.ActionSell {
			side = domain.SideShort
		}
		if pos, open := r.sim.Position(); open {
			if pos.Side == side {
				return
			}
			trade, err := r.sim.Close(bar.Close, bar, domain.ExitReasonSignal)
			if err != nil {
				return
			}
			r.riskMgr.RecordPnL(trade.RealizedPnL, r.sim.Capital(), bar.Timestamp)
			r.publishLocked(Event{
				Type: EventTrade, StrategyID: r.strat.ID(), Symbol: r.cfg.Symbol,
				Timestamp: bar.Timestamp, Trade: &trade,
			})
		}
		size, rej := r.riskMgr.Size(bar.Close, r.sim.Equity(bar.Close), r.sim.Exposure(bar.Close), bar.Timestamp)
		if rej != nil {
			r.publishLocked(Event{
				Type: EventRiskRejection, StrategyID: r.strat.ID(), Symbol: r.cfg.Symbol,
				Timestamp: bar.Timestamp, Message: rej.Reason,
			})
			return
		}
		stop, target := r.riskMgr.StopLevels(side, bar.Close)
		if _, err := r.sim.Open(side, size, bar.Close, bar, stop, target); err != nil {
			r.publishLocked(Event{
				Type: EventWarning, StrategyID: r.strat.ID(), Symbol: r.cfg.Symbol,
				Timestamp: bar.Timestamp, Message: fmt.Sprintf("entry failed: %v", err),
			})
		}
	}
}

func (r *Runner) emitWarning(at time.Time, msg string) {
	r.publish(Event{
		Type: EventWarning, StrategyID: r.strat.ID(), Symbol: r.cfg.Symbol,
		Timestamp: at, Message: msg,
	})
	r.log.Printf("[paper %s] %s", r.strat.ID(), msg)
}

// publish emits without holding the runner lock.
func (r *Runner) publish(ev Event) {
	if r.bus != nil {
		r.bus.Publish(ev)
		if r.obs != nil {
			r.obs.RunnerEventsTotal.WithLabelValues(string(ev.Type)).Inc()
		}
	}
}

// publishLocked is publish for callers already holding the lock; the bus has
// its own synchronization, so the distinction is documentation only.
func (r *Runner) publishLocked(ev Event) {
	r.publish(ev)
}
