// Package domain defines the core entities shared by the simulation and
// evaluation engine: market bars, signals, positions, trades, equity points,
// and the analysis result types.
package domain

import (
	"fmt"
	"time"
)

// MarketBar represents one OHLCV sample.
type MarketBar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Validate checks OHLC consistency.
// high >= max(open, close, low) and low <= min(open, close, high).
func (b *MarketBar) Validate() error {
	if b.Timestamp.IsZero() {
		return fmt.Errorf("%w: bar has zero timestamp", ErrInvalidInput)
	}
	if b.High < b.Open || b.High < b.Close || b.High < b.Low {
		return fmt.Errorf("%w: high %.8f below open/close/low", ErrInvalidInput, b.High)
	}
	if b.Low > b.Open || b.Low > b.Close || b.Low > b.High {
		return fmt.Errorf("%w: low %.8f above open/close/high", ErrInvalidInput, b.Low)
	}
	return nil
}

// Data source tags. Synthetic series must never masquerade as real data;
// every series carries its origin and reports surface it.
const (
	DataSourceReal      = "real"
	DataSourceSynthetic = "synthetic"
)

// BarSeries is an ordered OHLCV series for one symbol/interval.
type BarSeries struct {
	Symbol     string
	Interval   time.Duration
	DataSource string // "real" or "synthetic"
	Bars       []MarketBar
}

// Validate checks per-bar consistency and strictly increasing timestamps.
func (s *BarSeries) Validate() error {
	for i := range s.Bars {
		if err := s.Bars[i].Validate(); err != nil {
			return fmt.Errorf("bar %d: %w", i, err)
		}
		if i > 0 && !s.Bars[i].Timestamp.After(s.Bars[i-1].Timestamp) {
			return fmt.Errorf("%w: bar %d timestamp not after bar %d", ErrInvalidInput, i, i-1)
		}
	}
	return nil
}
