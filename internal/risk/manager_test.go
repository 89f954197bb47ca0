package risk

import (
	"math"
	"strings"
	"testing"
	"time"

	"strategy-lab/internal/domain"
)

var t0 = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func TestSizeRisksFractionAgainstStopDistance(t *testing.T) {
	m := NewManager(domain.DefaultRiskLimits(), nil)

	// risk 2% of 10000 = 200 against a 5% stop at price 100 = distance 5.
	size, rej := m.Size(100, 10000, 0, t0)
	if rej != nil {
		t.Fatalf("unexpected rejection: %s", rej.Reason)
	}
	want := 200.0 / 5.0
	// MaxPositionSize caps at 10% of equity: 1000/100 = 10 units.
	if want > 10 {
		want = 10
	}
	if math.Abs(size-want) > 1e-9 {
		t.Errorf("size: got %.4f, want %.4f", size, want)
	}
}

func TestSizeFallsBackWithoutStop(t *testing.T) {
	limits := domain.DefaultRiskLimits()
	limits.StopLossPct = 0
	m := NewManager(limits, nil)

	size, rej := m.Size(50, 10000, 0, t0)
	if rej != nil {
		t.Fatalf("unexpected rejection: %s", rej.Reason)
	}
	want := limits.MaxPositionSize * 10000 / 50
	if math.Abs(size-want) > 1e-9 {
		t.Errorf("size: got %.4f, want %.4f", size, want)
	}
}

func TestSizeRejectsExposureBreach(t *testing.T) {
	m := NewManager(domain.DefaultRiskLimits(), nil)

	// Exposure limit is 50% of 10000 = 5000. Existing 4900 leaves no room
	// for a 1000 notional entry.
	_, rej := m.Size(100, 10000, 4900, t0)
	if rej == nil {
		t.Fatal("expected exposure rejection")
	}
	if !strings.Contains(rej.Reason, "exposure") {
		t.Errorf("reason: got %q", rej.Reason)
	}
}

func TestDailyLossLockoutResetsNextDay(t *testing.T) {
	m := NewManager(domain.DefaultRiskLimits(), nil)

	if _, rej := m.Size(100, 10000, 0, t0); rej != nil {
		t.Fatalf("initial entry rejected: %s", rej.Reason)
	}
	// Lose more than 5% of the day's starting equity.
	m.RecordPnL(-600, 9400, t0.Add(time.Hour))

	if _, rej := m.Size(100, 10000, 0, t0.Add(2*time.Hour)); rej == nil {
		t.Fatal("expected lockout rejection after daily loss breach")
	}

	nextDay := t0.Add(13 * time.Hour) // 01:00 UTC the following day
	if _, rej := m.Size(100, 10000, 0, nextDay); rej != nil {
		t.Fatalf("entry still rejected after UTC day rollover: %s", rej.Reason)
	}
}

func TestRecordPnLSeedsNewDayFromCurrentEquity(t *testing.T) {
	m := NewManager(domain.DefaultRiskLimits(), nil)

	// Day one starts at 10000 and halves to 5000.
	if _, rej := m.Size(100, 10000, 0, t0); rej != nil {
		t.Fatalf("initial entry rejected: %s", rej.Reason)
	}
	m.RecordPnL(-5000, 5000, t0.Add(time.Hour))

	// The first event of day two is a closing trade. The loss-cap base for
	// the new day is the current 5000 equity, not day one's 10000, so a 300
	// loss (6% of 5000) trips the 5% cap.
	nextDay := t0.Add(13 * time.Hour)
	m.RecordPnL(-300, 4700, nextDay)

	if _, rej := m.Size(100, 4700, 0, nextDay.Add(time.Hour)); rej == nil {
		t.Fatal("expected lockout against the rolled day's equity base")
	}
}

func TestStopLevels(t *testing.T) {
	m := NewManager(domain.DefaultRiskLimits(), nil)

	stop, tp := m.StopLevels(domain.SideLong, 100)
	if stop == nil || tp == nil {
		t.Fatal("long levels should be set with default limits")
	}
	if math.Abs(*stop-95) > 1e-9 || math.Abs(*tp-110) > 1e-9 {
		t.Errorf("long levels: got stop=%.2f tp=%.2f, want 95/110", *stop, *tp)
	}
	stop, tp = m.StopLevels(domain.SideShort, 100)
	if math.Abs(*stop-105) > 1e-9 || math.Abs(*tp-90) > 1e-9 {
		t.Errorf("short levels: got stop=%.2f tp=%.2f, want 105/90", *stop, *tp)
	}

	disabled := NewManager(domain.RiskLimits{}, nil)
	stop, tp = disabled.StopLevels(domain.SideLong, 100)
	if stop != nil || tp != nil {
		t.Error("zero percentages should disable the levels")
	}
}

func TestCheckExit(t *testing.T) {
	m := NewManager(domain.DefaultRiskLimits(), nil)
	stop, tp := 95.0, 110.0
	long := domain.Position{
		Symbol: "BTC-USD", Side: domain.SideLong, Size: 1,
		EntryPrice: 100, EntryTime: t0,
		StopLoss: &stop, TakeProfit: &tp,
	}

	tests := []struct {
		name       string
		bar        domain.MarketBar
		wantHit    bool
		wantPrice  float64
		wantReason string
	}{
		{
			name:    "inside range",
			bar:     domain.MarketBar{Open: 100, High: 105, Low: 96, Close: 101},
			wantHit: false,
		},
		{
			name:       "stop touched",
			bar:        domain.MarketBar{Open: 98, High: 99, Low: 94, Close: 95},
			wantHit:    true,
			wantPrice:  95,
			wantReason: domain.ExitReasonStopLoss,
		},
		{
			name:       "target touched",
			bar:        domain.MarketBar{Open: 105, High: 112, Low: 104, Close: 111},
			wantHit:    true,
			wantPrice:  110,
			wantReason: domain.ExitReasonTakeProfit,
		},
		{
			name:       "both touched favors stop",
			bar:        domain.MarketBar{Open: 100, High: 115, Low: 90, Close: 100},
			wantHit:    true,
			wantPrice:  95,
			wantReason: domain.ExitReasonStopLoss,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, reason, hit := m.CheckExit(long, tt.bar)
			if hit != tt.wantHit {
				t.Fatalf("hit: got %v, want %v", hit, tt.wantHit)
			}
			if !hit {
				return
			}
			if price != tt.wantPrice || reason != tt.wantReason {
				t.Errorf("got price=%.2f reason=%s, want %.2f/%s", price, reason, tt.wantPrice, tt.wantReason)
			}
		})
	}
}

func TestCheckExitShort(t *testing.T) {
	m := NewManager(domain.DefaultRiskLimits(), nil)
	stop, tp := 105.0, 90.0
	short := domain.Position{
		Symbol: "BTC-USD", Side: domain.SideShort, Size: 1,
		EntryPrice: 100, EntryTime: t0,
		StopLoss: &stop, TakeProfit: &tp,
	}

	price, reason, hit := m.CheckExit(short, domain.MarketBar{Open: 102, High: 106, Low: 101, Close: 104})
	if !hit || price != 105 || reason != domain.ExitReasonStopLoss {
		t.Errorf("short stop: got hit=%v price=%.2f reason=%s", hit, price, reason)
	}
	price, reason, hit = m.CheckExit(short, domain.MarketBar{Open: 95, High: 96, Low: 89, Close: 90})
	if !hit || price != 90 || reason != domain.ExitReasonTakeProfit {
		t.Errorf("short target: got hit=%v price=%.2f reason=%s", hit, price, reason)
	}
}
