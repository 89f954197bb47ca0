package strategy

import (
	"fmt"

	"strategy-lab/internal/domain"
)

// SMACross goes long when the fast moving average crosses above the slow one
// and short on the opposite cross. Between crosses it holds.
type SMACross struct {
	id   string
	fast int
	slow int
}

// NewSMACross creates an SMA crossover strategy. fast must be smaller than
// slow and both must be positive.
func NewSMACross(fast, slow int) (*SMACross, error) {
	if fast <= 0 || slow <= 0 {
		return nil, fmt.Errorf("%w: sma periods must be positive", domain.ErrParameterOutOfRange)
	}
	if fast >= slow {
		return nil, fmt.Errorf("%w: fast period %d must be below slow period %d", domain.ErrParameterOutOfRange, fast, slow)
	}
	return &SMACross{
		id:   fmt.Sprintf("sma_cross_%d_%d", fast, slow),
		fast: fast,
		slow: slow,
	}, nil
}

func (s *SMACross) ID() string { return s.id }

// WarmUp needs one bar beyond the slow period so that a previous-bar average
// exists to detect the cross.
func (s *SMACross) WarmUp() int { return s.slow + 1 }

func (s *SMACross) Generate(bar domain.MarketBar, index int, state *State) domain.Signal {
	if index < s.WarmUp() {
		return domain.Hold("warming up")
	}
	closes := state.Closes()
	if len(closes) <= s.slow {
		return domain.Hold("insufficient history")
	}
	end := len(closes) - 1
	fastNow := sma(closes, end, s.fast)
	slowNow := sma(closes, end, s.slow)
	fastPrev := sma(closes, end-1, s.fast)
	slowPrev := sma(closes, end-1, s.slow)

	// On the first evaluable bar there is no prior cross to detect; enter
	// in the direction the averages already point.
	if index == s.WarmUp() {
		switch {
		case fastNow > slowNow:
			return domain.Signal{
				Action:     domain.ActionBuy,
				Confidence: 1.0,
				Reason:     fmt.Sprintf("initial trend: fast SMA %.4f above slow SMA %.4f", fastNow, slowNow),
			}
		case fastNow < slowNow:
			return domain.Signal{
				Action:     domain.ActionSell,
				Confidence: 1.0,
				Reason:     fmt.Sprintf("initial trend: fast SMA %.4f below slow SMA %.4f", fastNow, slowNow),
			}
		}
		return domain.Hold("initial trend flat")
	}

	switch {
	case fastPrev <= slowPrev && fastNow > slowNow:
		return domain.Signal{
			Action:     domain.ActionBuy,
			Confidence: 1.0,
			Reason:     fmt.Sprintf("fast SMA %.4f crossed above slow SMA %.4f", fastNow, slowNow),
		}
	case fastPrev >= slowPrev && fastNow < slowNow:
		return domain.Signal{
			Action:     domain.ActionSell,
			Confidence: 1.0,
			Reason:     fmt.Sprintf("fast SMA %.4f crossed below slow SMA %.4f", fastNow, slowNow),
		}
	default:
		return domain.Hold("no cross")
	}
}

var _ Strategy = (*SMACross)(nil)
