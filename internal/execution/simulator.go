// Package execution simulates order fills against a virtual capital ledger.
// Fill friction (commission, slippage, partial fills) comes from a
// FrictionConfig and every random draw uses the config's seed, so two
// simulations over the same bars produce identical trades.
package execution

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/idhash"
)

// Simulator owns the position, capital and trade history for one strategy on
// one symbol. It is not safe for concurrent use; each run or runner owns its
// own simulator.
type Simulator struct {
	strategyID string
	symbol     string
	friction   domain.FrictionConfig
	rng        *rand.Rand
	log        *log.Logger

	capital    float64
	position   *domain.Position
	entryCosts entryCosts
	trades     []domain.Trade
	equity     []domain.EquityPoint
	peak       float64
	seq        int
	liquidated bool
}

type entryCosts struct {
	commission float64
	slippage   float64
}

// NewSimulator creates a simulator with the given starting capital.
func NewSimulator(strategyID, symbol string, initialCapital float64, friction domain.FrictionConfig, logger *log.Logger) *Simulator {
	if logger == nil {
		logger = log.Default()
	}
	return &Simulator{
		strategyID: strategyID,
		symbol:     symbol,
		friction:   friction,
		rng:        rand.New(rand.NewSource(friction.Seed)),
		log:        logger,
		capital:    initialCapital,
		peak:       initialCapital,
	}
}

// Capital returns the current cash ledger (entry costs already deducted).
func (s *Simulator) Capital() float64 { return s.capital }

// Position returns a copy of the open position, if any.
func (s *Simulator) Position() (domain.Position, bool) {
	if !s.position.IsOpen() {
		return domain.Position{}, false
	}
	return *s.position, true
}

// Exposure returns the open notional at the given mark price.
func (s *Simulator) Exposure(price float64) float64 {
	if !s.position.IsOpen() {
		return 0
	}
	return s.position.Notional(price)
}

// Equity returns capital plus unrealized PnL at the given mark price.
func (s *Simulator) Equity(price float64) float64 {
	eq := s.capital
	if s.position.IsOpen() {
		eq += s.position.UnrealizedPnL(price)
	}
	return eq
}

// Trades returns the closed trade history.
func (s *Simulator) Trades() []domain.Trade { return s.trades }

// EquityCurve returns the per-bar equity points recorded so far.
func (s *Simulator) EquityCurve() []domain.EquityPoint { return s.equity }

// Liquidated reports whether the ledger hit the liquidation floor. Once set,
// no further entries are accepted.
func (s *Simulator) Liquidated() bool { return s.liquidated }

// Open enters a position of the requested size. The fill may be reduced by
// the partial-fill model; the filled size is returned. Stop and target levels
// ride on the position for the per-bar exit sweep.
func (s *Simulator) Open(side domain.Side, size, price float64, bar domain.MarketBar, stopLoss, takeProfit *float64) (float64, error) {
	if s.liquidated {
		return 0, fmt.Errorf("%w: ledger is liquidated", domain.ErrInsufficientCapital)
	}
	if s.position.IsOpen() {
		return 0, fmt.Errorf("%w: position already open", domain.ErrInvalidInput)
	}
	if size <= 0 || price <= 0 {
		return 0, fmt.Errorf("%w: size=%f price=%f", domain.ErrInvalidInput, size, price)
	}

	filled := size * s.fillRatio()
	commission := s.friction.FeeRate * price * filled
	slippage := s.slippageRate(bar) * price * filled
	s.capital -= commission + slippage
	s.entryCosts = entryCosts{commission: commission, slippage: slippage}
	s.position = &domain.Position{
		Symbol:     s.symbol,
		Side:       side,
		Size:       filled,
		EntryPrice: price,
		EntryTime:  bar.Timestamp,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
	}
	return filled, nil
}

// Close exits the open position at the given price and returns the realized
// trade. The exit leg's commission and slippage are deducted here; the entry
// leg's were deducted at Open.
func (s *Simulator) Close(price float64, bar domain.MarketBar, reason string) (domain.Trade, error) {
	if !s.position.IsOpen() {
		return domain.Trade{}, fmt.Errorf("%w: no open position", domain.ErrInvalidInput)
	}
	pos := *s.position

	exitCommission := s.friction.FeeRate * price * pos.Size
	exitSlippage := s.slippageRate(bar) * price * pos.Size
	gross := pos.Size * (price - pos.EntryPrice) * float64(pos.Side.Direction())
	s.capital += gross - exitCommission - exitSlippage

	trade := domain.Trade{
		ID:         idhash.ComputeTradeID(s.strategyID, s.symbol, pos.EntryTime.UnixMilli(), s.seq),
		Symbol:     s.symbol,
		StrategyID: s.strategyID,
		Side:       pos.Side,
		EntryTime:  pos.EntryTime,
		ExitTime:   bar.Timestamp,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  price,
		Size:       pos.Size,
		Commission: s.entryCosts.commission + exitCommission,
		Slippage:   s.entryCosts.slippage + exitSlippage,
		ExitReason: reason,
	}
	trade.RealizedPnL = trade.GrossPnL() - trade.Commission - trade.Slippage

	s.seq++
	s.position = nil
	s.entryCosts = entryCosts{}
	s.trades = append(s.trades, trade)
	return trade, nil
}

// MarkBar appends the bar's equity point and enforces the liquidation floor.
// Call exactly once per bar, after all fills for that bar. A forced
// liquidation trade is returned when equity reaches zero with a position
// still open.
func (s *Simulator) MarkBar(bar domain.MarketBar) (*domain.Trade, error) {
	eq := s.Equity(bar.Close)
	if eq <= 0 && !s.liquidated {
		s.liquidated = true
		s.log.Printf("liquidation: strategy=%s symbol=%s equity=%.2f at=%s",
			s.strategyID, s.symbol, eq, bar.Timestamp.Format(time.RFC3339))
		if s.position.IsOpen() {
			trade, err := s.Close(bar.Close, bar, domain.ExitReasonLiquidation)
			if err != nil {
				return nil, err
			}
			s.appendEquity(bar.Timestamp, s.Equity(bar.Close))
			return &trade, nil
		}
	} else if eq <= 0 {
		s.liquidated = true
	}
	s.appendEquity(bar.Timestamp, eq)
	return nil, nil
}

func (s *Simulator) appendEquity(at time.Time, eq float64) {
	if eq > s.peak {
		s.peak = eq
	}
	dd := 0.0
	if s.peak > 0 && eq < s.peak {
		dd = (s.peak - eq) / s.peak
	}
	s.equity = append(s.equity, domain.EquityPoint{Timestamp: at, Equity: eq, DrawdownPct: dd})
}

// fillRatio draws the partial-fill ratio for an entry. Returns 1 when the
// partial-fill model is disabled or the draw does not trigger.
func (s *Simulator) fillRatio() float64 {
	if s.friction.PartialFillProb <= 0 {
		return 1
	}
	if s.rng.Float64() >= s.friction.PartialFillProb {
		return 1
	}
	min := s.friction.MinFillRatio
	if min <= 0 || min > 1 {
		min = 1
	}
	return min + s.rng.Float64()*(1-min)
}

// slippageRate returns the effective slippage rate for a fill on this bar,
// scaled when the bar's range marks a high-volatility regime.
func (s *Simulator) slippageRate(bar domain.MarketBar) float64 {
	rate := s.friction.SlippageRate
	if s.friction.HighVolThreshold > 0 && bar.Open > 0 {
		if (bar.High-bar.Low)/bar.Open > s.friction.HighVolThreshold {
			rate *= s.friction.HighVolMult
		}
	}
	return rate
}
