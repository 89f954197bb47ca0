package strategy

import (
	"fmt"
	"math"

	"strategy-lab/internal/domain"
)

// Momentum trades the rolling return over a lookback window. A return above
// the threshold opens long, below the negative threshold opens short, and a
// decayed return (under half the threshold in magnitude) closes whatever is
// open.
type Momentum struct {
	id        string
	lookback  int
	threshold float64
}

// NewMomentum creates a momentum strategy. lookback must be positive and
// threshold strictly positive.
func NewMomentum(lookback int, threshold float64) (*Momentum, error) {
	if lookback <= 0 {
		return nil, fmt.Errorf("%w: lookback must be positive", domain.ErrParameterOutOfRange)
	}
	if threshold <= 0 {
		return nil, fmt.Errorf("%w: threshold must be positive", domain.ErrParameterOutOfRange)
	}
	return &Momentum{
		id:        fmt.Sprintf("momentum_%d_%.4f", lookback, threshold),
		lookback:  lookback,
		threshold: threshold,
	}, nil
}

func (m *Momentum) ID() string { return m.id }

func (m *Momentum) WarmUp() int { return m.lookback + 1 }

func (m *Momentum) Generate(bar domain.MarketBar, index int, state *State) domain.Signal {
	if index < m.WarmUp() {
		return domain.Hold("warming up")
	}
	closes := state.Closes()
	if len(closes) <= m.lookback {
		return domain.Hold("insufficient history")
	}
	end := len(closes) - 1
	base := closes[end-m.lookback]
	if base == 0 {
		return domain.Hold("zero reference close")
	}
	ret := closes[end]/base - 1

	switch {
	case ret > m.threshold:
		return domain.Signal{
			Action:     domain.ActionBuy,
			Confidence: math.Min(1, ret/m.threshold/2),
			Reason:     fmt.Sprintf("momentum %.4f above threshold %.4f", ret, m.threshold),
		}
	case ret < -m.threshold:
		return domain.Signal{
			Action:     domain.ActionSell,
			Confidence: math.Min(1, -ret/m.threshold/2),
			Reason:     fmt.Sprintf("momentum %.4f below threshold -%.4f", ret, m.threshold),
		}
	case math.Abs(ret) < m.threshold/2:
		return domain.Signal{
			Action:     domain.ActionClose,
			Confidence: 1.0,
			Reason:     fmt.Sprintf("momentum %.4f decayed", ret),
		}
	default:
		return domain.Hold("momentum inside band")
	}
}

var _ Strategy = (*Momentum)(nil)
