// Package risk sizes entries and enforces drawdown limits. A rejected entry
// is a normal outcome of the rules, not an error.
package risk

import (
	"fmt"
	"log"
	"time"

	"strategy-lab/internal/domain"
)

// Rejection explains why the risk manager refused an entry.
type Rejection struct {
	Reason string
}

// Manager applies position sizing and loss limits. It is not safe for
// concurrent use; each run owns its own manager.
type Manager struct {
	limits domain.RiskLimits
	log    *log.Logger

	day            time.Time
	dayStartEquity float64
	dayPnL         float64
}

// NewManager creates a risk manager with the given limits.
func NewManager(limits domain.RiskLimits, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{limits: limits, log: logger}
}

// Limits returns the configured limits.
func (m *Manager) Limits() domain.RiskLimits {
	return m.limits
}

// Size computes the position size for an entry at the given price, or rejects
// it. Sizing risks limits.RiskPerTrade of equity against the stop distance,
// capped at limits.MaxPositionSize of equity. Entries are rejected when the
// added notional would push total exposure past limits.MaxTotalExposure or
// when the daily loss limit has tripped for the current UTC day.
func (m *Manager) Size(price, equity, openExposure float64, at time.Time) (float64, *Rejection) {
	if price <= 0 {
		return 0, &Rejection{Reason: fmt.Sprintf("non-positive price %.4f", price)}
	}
	if equity <= 0 {
		return 0, &Rejection{Reason: "no equity available"}
	}
	m.rollDay(at, equity)
	if m.lockedOut() {
		return 0, &Rejection{Reason: fmt.Sprintf("daily loss limit reached (%.2f on %s)", m.dayPnL, m.day.Format("2006-01-02"))}
	}

	stopDistance := price * m.limits.StopLossPct
	var size float64
	if stopDistance > 0 {
		size = m.limits.RiskPerTrade * equity / stopDistance
	} else {
		size = m.limits.MaxPositionSize * equity / price
	}
	if maxSize := m.limits.MaxPositionSize * equity / price; size > maxSize {
		size = maxSize
	}
	if size <= 0 {
		return 0, &Rejection{Reason: "computed size is zero"}
	}

	notional := size * price
	if openExposure+notional > m.limits.MaxTotalExposure*equity {
		return 0, &Rejection{Reason: fmt.Sprintf("exposure %.2f would exceed limit %.2f",
			openExposure+notional, m.limits.MaxTotalExposure*equity)}
	}
	return size, nil
}

// StopLevels derives the protective stop and take-profit prices for an
// entry. A nil level means the corresponding limit is disabled.
func (m *Manager) StopLevels(side domain.Side, entry float64) (stop, takeProfit *float64) {
	d := float64(side.Direction())
	if m.limits.StopLossPct > 0 {
		v := entry * (1 - d*m.limits.StopLossPct)
		stop = &v
	}
	if m.limits.TakeProfitPct > 0 {
		v := entry * (1 + d*m.limits.TakeProfitPct)
		takeProfit = &v
	}
	return stop, takeProfit
}

// CheckExit reports whether the bar touches the position's stop or target.
// When both levels fall inside the bar range the stop wins.
func (m *Manager) CheckExit(pos domain.Position, bar domain.MarketBar) (exitPrice float64, reason string, hit bool) {
	if !pos.IsOpen() {
		return 0, "", false
	}
	switch pos.Side {
	case domain.SideLong:
		if pos.StopLoss != nil && bar.Low <= *pos.StopLoss {
			return *pos.StopLoss, domain.ExitReasonStopLoss, true
		}
		if pos.TakeProfit != nil && bar.High >= *pos.TakeProfit {
			return *pos.TakeProfit, domain.ExitReasonTakeProfit, true
		}
	case domain.SideShort:
		if pos.StopLoss != nil && bar.High >= *pos.StopLoss {
			return *pos.StopLoss, domain.ExitReasonStopLoss, true
		}
		if pos.TakeProfit != nil && bar.Low <= *pos.TakeProfit {
			return *pos.TakeProfit, domain.ExitReasonTakeProfit, true
		}
	}
	return 0, "", false
}

// RecordPnL feeds a realized trade result into the daily loss tracker. The
// caller's current equity seeds the loss-cap base when the UTC day rolls.
func (m *Manager) RecordPnL(pnl, equity float64, at time.Time) {
	m.rollDay(at, equity)
	m.dayPnL += pnl
	if m.lockedOut() {
		m.log.Printf("daily loss limit tripped: pnl=%.2f day=%s", m.dayPnL, m.day.Format("2006-01-02"))
	}
}

func (m *Manager) rollDay(at time.Time, equity float64) {
	day := at.UTC().Truncate(24 * time.Hour)
	if !day.Equal(m.day) {
		m.day = day
		m.dayStartEquity = equity
		m.dayPnL = 0
	}
}

func (m *Manager) lockedOut() bool {
	if m.limits.MaxDailyLoss <= 0 || m.dayStartEquity <= 0 {
		return false
	}
	return m.dayPnL <= -m.limits.MaxDailyLoss*m.dayStartEquity
}
