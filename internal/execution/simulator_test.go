package execution

import (
	"errors"
	"math"
	"testing"
	"time"

	"strategy-lab/internal/domain"
)

func bar(at time.Time, o, h, l, c float64) domain.MarketBar {
	return domain.MarketBar{
		Symbol:    "BTC-USD",
		Timestamp: at,
		Open:      o, High: h, Low: l, Close: c,
		Volume: 1000,
	}
}

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestRoundTripPnL(t *testing.T) {
	friction := domain.DefaultFriction()
	friction.HighVolThreshold = 0 // flat slippage for the known-value check
	sim := NewSimulator("strat", "BTC-USD", 10000, friction, nil)

	entryBar := bar(start, 100, 101, 99, 100)
	if _, err := sim.Open(domain.SideLong, 1, 100, entryBar, nil, nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	exitBar := bar(start.Add(time.Hour), 110, 111, 109, 110)
	trade, err := sim.Close(110, exitBar, domain.ExitReasonSignal)
	if err != nil {
		t.Fatalf("Close: %v", err)
	}

	wantCommission := 100*0.001 + 110*0.001
	wantSlippage := 100*0.0005 + 110*0.0005
	wantPnL := 1*(110-100.0) - wantCommission - wantSlippage
	if math.Abs(trade.RealizedPnL-wantPnL) > 1e-9 {
		t.Errorf("RealizedPnL: got %.6f, want %.6f", trade.RealizedPnL, wantPnL)
	}
	if math.Abs(trade.Commission-wantCommission) > 1e-9 {
		t.Errorf("Commission: got %.6f, want %.6f", trade.Commission, wantCommission)
	}
	if math.Abs(trade.Slippage-wantSlippage) > 1e-9 {
		t.Errorf("Slippage: got %.6f, want %.6f", trade.Slippage, wantSlippage)
	}
	if math.Abs(sim.Capital()-(10000+wantPnL)) > 1e-9 {
		t.Errorf("Capital: got %.6f, want %.6f", sim.Capital(), 10000+wantPnL)
	}
	if trade.ID == "" || trade.ExitReason != domain.ExitReasonSignal {
		t.Errorf("trade identity: id=%q reason=%q", trade.ID, trade.ExitReason)
	}
}

func TestShortRoundTrip(t *testing.T) {
	friction := domain.DefaultFriction()
	friction.HighVolThreshold = 0
	sim := NewSimulator("strat", "BTC-USD", 10000, friction, nil)

	if _, err := sim.Open(domain.SideShort, 2, 100, bar(start, 100, 101, 99, 100), nil, nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	trade, err := sim.Close(90, bar(start.Add(time.Hour), 90, 91, 89, 90), domain.ExitReasonSignal)
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	wantGross := 2 * (100 - 90.0)
	if math.Abs(trade.GrossPnL()-wantGross) > 1e-9 {
		t.Errorf("GrossPnL: got %.6f, want %.6f", trade.GrossPnL(), wantGross)
	}
	if trade.RealizedPnL >= wantGross {
		t.Errorf("RealizedPnL %.6f should be below gross %.6f after friction", trade.RealizedPnL, wantGross)
	}
}

func TestHighVolatilityScalesSlippage(t *testing.T) {
	friction := domain.DefaultFriction() // threshold 0.05, mult 2.5
	sim := NewSimulator("strat", "BTC-USD", 10000, friction, nil)

	// Range 10 on open 100 = 10%, above the 5% threshold.
	wild := bar(start, 100, 106, 96, 100)
	if _, err := sim.Open(domain.SideLong, 1, 100, wild, nil, nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	calm := bar(start.Add(time.Hour), 100, 101, 100, 100)
	trade, err := sim.Close(100, calm, domain.ExitReasonSignal)
	if err != nil {
		t.Fatalf("Close: %v", err)
	}

	wantSlippage := 100*0.0005*2.5 + 100*0.0005
	if math.Abs(trade.Slippage-wantSlippage) > 1e-9 {
		t.Errorf("Slippage: got %.6f, want %.6f", trade.Slippage, wantSlippage)
	}
}

func TestPartialFillsAreSeededAndBounded(t *testing.T) {
	friction := domain.DefaultFriction()
	friction.PartialFillProb = 1
	friction.MinFillRatio = 0.5
	friction.Seed = 42

	run := func() []float64 {
		sim := NewSimulator("strat", "BTC-USD", 1e6, friction, nil)
		fills := make([]float64, 0, 20)
		for i := 0; i < 20; i++ {
			at := start.Add(time.Duration(i) * time.Hour)
			filled, err := sim.Open(domain.SideLong, 10, 100, bar(at, 100, 101, 99, 100), nil, nil)
			if err != nil {
				t.Fatalf("Open %d: %v", i, err)
			}
			fills = append(fills, filled)
			if _, err := sim.Close(100, bar(at, 100, 101, 99, 100), domain.ExitReasonSignal); err != nil {
				t.Fatalf("Close %d: %v", i, err)
			}
		}
		return fills
	}

	first := run()
	second := run()
	partial := false
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("fill %d differs between seeded runs: %f vs %f", i, first[i], second[i])
		}
		if first[i] < 5 || first[i] > 10 {
			t.Errorf("fill %d outside [5,10]: %f", i, first[i])
		}
		if first[i] < 10 {
			partial = true
		}
	}
	if !partial {
		t.Error("expected at least one partial fill with probability 1")
	}
}

func TestMarkBarAppendsOneEquityPointWithDrawdown(t *testing.T) {
	sim := NewSimulator("strat", "BTC-USD", 10000, domain.DefaultFriction(), nil)

	bars := []domain.MarketBar{
		bar(start, 100, 101, 99, 100),
		bar(start.Add(time.Hour), 100, 101, 99, 100),
		bar(start.Add(2*time.Hour), 100, 101, 99, 100),
	}
	for _, b := range bars {
		if _, err := sim.MarkBar(b); err != nil {
			t.Fatalf("MarkBar: %v", err)
		}
	}
	curve := sim.EquityCurve()
	if len(curve) != len(bars) {
		t.Fatalf("equity points: got %d, want %d", len(curve), len(bars))
	}
	for i, p := range curve {
		if p.Equity != 10000 || p.DrawdownPct != 0 {
			t.Errorf("point %d: equity=%.2f drawdown=%.4f", i, p.Equity, p.DrawdownPct)
		}
	}
}

func TestLiquidationClosesAndHaltsEntries(t *testing.T) {
	friction := domain.DefaultFriction()
	friction.HighVolThreshold = 0
	sim := NewSimulator("strat", "BTC-USD", 100, friction, nil)

	if _, err := sim.Open(domain.SideLong, 10, 100, bar(start, 100, 101, 99, 100), nil, nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	// Price collapse puts unrealized PnL far below remaining capital.
	crash := bar(start.Add(time.Hour), 100, 100, 50, 50)
	forced, err := sim.MarkBar(crash)
	if err != nil {
		t.Fatalf("MarkBar: %v", err)
	}
	if forced == nil {
		t.Fatal("expected forced liquidation trade")
	}
	if forced.ExitReason != domain.ExitReasonLiquidation {
		t.Errorf("exit reason: got %s", forced.ExitReason)
	}
	if !sim.Liquidated() {
		t.Error("Liquidated should report true")
	}
	if _, err := sim.Open(domain.SideLong, 1, 50, crash, nil, nil); !errors.Is(err, domain.ErrInsufficientCapital) {
		t.Errorf("entry after liquidation: got %v, want ErrInsufficientCapital", err)
	}
}

func TestTradeIDsAreDeterministicAcrossRuns(t *testing.T) {
	run := func() []string {
		sim := NewSimulator("strat", "BTC-USD", 10000, domain.DefaultFriction(), nil)
		ids := make([]string, 0, 3)
		for i := 0; i < 3; i++ {
			at := start.Add(time.Duration(i) * time.Hour)
			b := bar(at, 100, 101, 99, 100)
			if _, err := sim.Open(domain.SideLong, 1, 100, b, nil, nil); err != nil {
				t.Fatalf("Open: %v", err)
			}
			trade, err := sim.Close(100, b, domain.ExitReasonSignal)
			if err != nil {
				t.Fatalf("Close: %v", err)
			}
			ids = append(ids, trade.ID)
		}
		return ids
	}
	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("trade %d ID differs: %s vs %s", i, a[i], b[i])
		}
		for j := i + 1; j < len(a); j++ {
			if a[i] == a[j] {
				t.Fatalf("trades %d and %d share an ID", i, j)
			}
		}
	}
}
