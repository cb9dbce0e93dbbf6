package signals

import (
	"testing"

	"market-structure-analyzer/internal/marketdata"
)

func barsFromCloses(closes []float64) []marketdata.Bar {
	bars := make([]marketdata.Bar, len(closes))
	for i, c := range closes {
		bars[i] = marketdata.Bar{Index: i, Open: c, High: c + 1, Low: c - 1, Close: c}
	}
	return bars
}

func runSMA(d *SMACross, bars []marketdata.Bar, gate TrendGate) []Signal {
	d.Prime(bars)
	var out []Signal
	for i := range bars {
		if sig := d.Observe(bars[i], nil, gate); sig != nil {
			out = append(out, *sig)
		}
	}
	return out
}

// TestSMACross_BullishAndBearish drives a close series through one cross
// above and one cross below with 2/3 periods
func TestSMACross_BullishAndBearish(t *testing.T) {
	bars := barsFromCloses([]float64{10, 9, 8, 9, 11, 12, 10, 7})

	got := runSMA(NewSMACross(2, 3), bars, openGate{})
	if len(got) != 2 {
		t.Fatalf("Expected 2 signals, got %d: %+v", len(got), got)
	}

	bull := got[0]
	if bull.Direction != Bullish || bull.Index != 4 {
		t.Errorf("Expected bullish cross at bar 4, got %s at %d", bull.Direction, bull.Index)
	}
	if bull.Detector != DetectorSMACross {
		t.Errorf("Expected detector %s, got %s", DetectorSMACross, bull.Detector)
	}
	if bull.TriggerPrice != 11 {
		t.Errorf("Expected trigger at crossing close 11, got %v", bull.TriggerPrice)
	}

	bear := got[1]
	if bear.Direction != Bearish || bear.Index != 7 {
		t.Errorf("Expected bearish cross at bar 7, got %s at %d", bear.Direction, bear.Index)
	}
}

// TestSMACross_WarmupNeverFires tests that bars before both averages settle
// stay silent even when closes jump
func TestSMACross_WarmupNeverFires(t *testing.T) {
	bars := barsFromCloses([]float64{10, 30, 10})

	if got := runSMA(NewSMACross(2, 3), bars, openGate{}); len(got) != 0 {
		t.Errorf("Expected no signals during warm-up, got %+v", got)
	}
}

// TestSMACross_SeriesShorterThanLongPeriod tests that a series too short to
// compute the long average produces nothing
func TestSMACross_SeriesShorterThanLongPeriod(t *testing.T) {
	bars := barsFromCloses([]float64{10, 11})

	if got := runSMA(NewSMACross(2, 3), bars, openGate{}); len(got) != 0 {
		t.Errorf("Expected no signals on a short series, got %+v", got)
	}
}

// TestSMACross_GateSuppresses tests that the trend gate blocks the fire
func TestSMACross_GateSuppresses(t *testing.T) {
	bars := barsFromCloses([]float64{10, 9, 8, 9, 11, 12, 10, 7})

	if got := runSMA(NewSMACross(2, 3), bars, closedGate{}); len(got) != 0 {
		t.Errorf("Expected gate to suppress all fires, got %+v", got)
	}
}

// TestSMACross_DefaultPeriods tests the constructor fallback
func TestSMACross_DefaultPeriods(t *testing.T) {
	tests := []struct {
		name         string
		short, long  int
		wantS, wantL int
	}{
		{"valid periods kept", 5, 20, 5, 20},
		{"zero short falls back", 0, 20, 10, 30},
		{"long not above short falls back", 10, 10, 10, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewSMACross(tt.short, tt.long)
			if d.shortPeriod != tt.wantS || d.longPeriod != tt.wantL {
				t.Errorf("Expected %d/%d, got %d/%d", tt.wantS, tt.wantL, d.shortPeriod, d.longPeriod)
			}
		})
	}
}
