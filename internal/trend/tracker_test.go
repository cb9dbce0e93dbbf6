package trend

import (
	"errors"
	"testing"

	"market-structure-analyzer/internal/marketdata"
	"market-structure-analyzer/internal/signals"
	"market-structure-analyzer/internal/swings"

	"github.com/rs/zerolog"
)

func bullishSignal(id string, index int) signals.Signal {
	return signals.Signal{
		ID:        id,
		Detector:  signals.DetectorDowBullish,
		Index:     index,
		Direction: signals.Bullish,
	}
}

func bearishSignal(id string, index int) signals.Signal {
	return signals.Signal{
		ID:        id,
		Detector:  signals.DetectorDowBearish,
		Index:     index,
		Direction: signals.Bearish,
	}
}

func seedSwings(high, low float64) (*swings.SwingPoint, *swings.SwingPoint) {
	return &swings.SwingPoint{Index: 3, Kind: swings.High, Price: high, ConfirmedIndex: 4},
		&swings.SwingPoint{Index: 5, Kind: swings.Low, Price: low, ConfirmedIndex: 6}
}

// TestTracker_SuppressionGate tests that an active trend blocks
// same-direction fires while leaving the other direction open
func TestTracker_SuppressionGate(t *testing.T) {
	tr := NewTracker(true, zerolog.Nop())

	if !tr.CanFire(signals.Bullish) || !tr.CanFire(signals.Bearish) {
		t.Fatal("Expected both directions open on an empty tracker")
	}

	high, low := seedSwings(20, 10)
	if _, err := tr.StartTrend(bullishSignal("sig-1", 7), high, low); err != nil {
		t.Fatalf("StartTrend failed: %v", err)
	}

	if tr.CanFire(signals.Bullish) {
		t.Error("Expected bullish fires suppressed while a bullish trend is active")
	}
	if !tr.CanFire(signals.Bearish) {
		t.Error("Expected bearish fires still open")
	}

	if _, err := tr.StartTrend(bullishSignal("sig-2", 8), high, low); !errors.Is(err, ErrInvariantViolation) {
		t.Errorf("Expected ErrInvariantViolation on a duplicate bullish trend, got %v", err)
	}
}

// TestTracker_SignalPhaseIsOneBar tests the unconditional promotion on the
// first bar after firing
func TestTracker_SignalPhaseIsOneBar(t *testing.T) {
	tr := NewTracker(true, zerolog.Nop())
	high, low := seedSwings(20, 10)
	st, err := tr.StartTrend(bullishSignal("sig-1", 7), high, low)
	if err != nil {
		t.Fatalf("StartTrend failed: %v", err)
	}
	if st.Phase != PhaseBullishSignal {
		t.Fatalf("Expected phase %s at firing, got %s", PhaseBullishSignal, st.Phase)
	}

	tr.Advance(marketdata.Bar{Index: 8, Open: 15, High: 16, Low: 14, Close: 15}, nil)
	if st.Phase != PhaseUptrend {
		t.Errorf("Expected phase %s after one bar, got %s", PhaseUptrend, st.Phase)
	}
	if !st.Active() {
		t.Error("Expected trend still active")
	}
}

// TestTracker_UptrendPriceBreak tests the low-under-LastSwingLow break
func TestTracker_UptrendPriceBreak(t *testing.T) {
	tr := NewTracker(true, zerolog.Nop())
	high, low := seedSwings(20, 10)
	st, _ := tr.StartTrend(bullishSignal("sig-1", 7), high, low)

	tr.Advance(marketdata.Bar{Index: 8, Open: 15, High: 16, Low: 14, Close: 15}, nil)
	broken := tr.Advance(marketdata.Bar{Index: 9, Open: 11, High: 12, Low: 9.5, Close: 10}, nil)

	if len(broken) != 1 || broken[0] != st {
		t.Fatalf("Expected the uptrend to break, got %+v", broken)
	}
	if st.Status != StatusBroken || st.Phase != PhaseTrendEnd {
		t.Errorf("Expected broken/trend_end, got %s/%s", st.Status, st.Phase)
	}
	if st.BreakIndex == nil || *st.BreakIndex != 9 {
		t.Errorf("Expected break index 9, got %v", st.BreakIndex)
	}
	if st.BreakReason != BreakPrice {
		t.Errorf("Expected %s, got %s", BreakPrice, st.BreakReason)
	}
	if !tr.CanFire(signals.Bullish) {
		t.Error("Expected bullish fires reopened after the break")
	}
}

// TestTracker_UptrendSwingBreak tests the lower-high structural break when no
// price break is in play
func TestTracker_UptrendSwingBreak(t *testing.T) {
	tr := NewTracker(true, zerolog.Nop())
	high, low := seedSwings(20, 10)
	st, _ := tr.StartTrend(bullishSignal("sig-1", 7), high, low)

	lowerHigh := &swings.SwingPoint{Index: 9, Kind: swings.High, Price: 18, ConfirmedIndex: 10}
	broken := tr.Advance(marketdata.Bar{Index: 10, Open: 15, High: 16, Low: 14, Close: 15}, lowerHigh)

	if len(broken) != 1 {
		t.Fatalf("Expected the lower high to break the trend, got %+v", broken)
	}
	if st.BreakReason != BreakSwing {
		t.Errorf("Expected %s, got %s", BreakSwing, st.BreakReason)
	}
}

// TestTracker_LastSwingLowRatchet tests that the tracked low only moves up
// during an active uptrend
func TestTracker_LastSwingLowRatchet(t *testing.T) {
	tr := NewTracker(true, zerolog.Nop())
	high, low := seedSwings(20, 10)
	st, _ := tr.StartTrend(bullishSignal("sig-1", 7), high, low)

	higherLow := &swings.SwingPoint{Index: 9, Kind: swings.Low, Price: 12, ConfirmedIndex: 10}
	tr.Advance(marketdata.Bar{Index: 10, Open: 15, High: 16, Low: 13, Close: 15}, higherLow)
	if st.LastSwingLow != 12 {
		t.Errorf("Expected LastSwingLow raised to 12, got %v", st.LastSwingLow)
	}

	// A repeat confirmation at a lower price must not lower the level, and a
	// bar holding above it must not break.
	sameLow := &swings.SwingPoint{Index: 11, Kind: swings.Low, Price: 12, ConfirmedIndex: 12}
	broken := tr.Advance(marketdata.Bar{Index: 12, Open: 15, High: 16, Low: 12.5, Close: 15}, sameLow)
	if len(broken) != 0 {
		t.Fatalf("Expected no break, got %+v", broken)
	}
	if st.LastSwingLow != 12 {
		t.Errorf("Expected LastSwingLow to hold at 12, got %v", st.LastSwingLow)
	}
}

// TestTracker_SimultaneousBreakPrecedence constructs a bar that satisfies the
// price break and confirms a lower high on the same bar, then checks which
// reason each policy records
func TestTracker_SimultaneousBreakPrecedence(t *testing.T) {
	tests := []struct {
		name            string
		priceBreakFirst bool
		want            BreakReason
	}{
		{"price break first", true, BreakPrice},
		{"swing break first", false, BreakSwing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(tt.priceBreakFirst, zerolog.Nop())
			high, low := seedSwings(20, 10)
			st, _ := tr.StartTrend(bullishSignal("sig-1", 7), high, low)

			lowerHigh := &swings.SwingPoint{Index: 9, Kind: swings.High, Price: 18, ConfirmedIndex: 10}
			both := marketdata.Bar{Index: 10, Open: 11, High: 12, Low: 9.5, Close: 10}
			broken := tr.Advance(both, lowerHigh)

			if len(broken) != 1 {
				t.Fatalf("Expected a break, got %+v", broken)
			}
			if st.BreakReason != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, st.BreakReason)
			}
			if *st.BreakIndex != 10 {
				t.Errorf("Expected break index 10, got %d", *st.BreakIndex)
			}
		})
	}
}

// TestTracker_DowntrendMirror tests the bearish break conditions
func TestTracker_DowntrendMirror(t *testing.T) {
	tr := NewTracker(true, zerolog.Nop())
	high, low := seedSwings(20, 10)
	st, err := tr.StartTrend(bearishSignal("sig-1", 7), high, low)
	if err != nil {
		t.Fatalf("StartTrend failed: %v", err)
	}

	tr.Advance(marketdata.Bar{Index: 8, Open: 15, High: 16, Low: 14, Close: 15}, nil)
	if st.Phase != PhaseDowntrend {
		t.Fatalf("Expected phase %s, got %s", PhaseDowntrend, st.Phase)
	}

	broken := tr.Advance(marketdata.Bar{Index: 9, Open: 19, High: 21, Low: 18, Close: 20}, nil)
	if len(broken) != 1 {
		t.Fatalf("Expected high over LastSwingHigh to break, got %+v", broken)
	}
	if st.BreakReason != BreakPrice {
		t.Errorf("Expected %s, got %s", BreakPrice, st.BreakReason)
	}
}

// TestTracker_DowntrendHigherLowSwingBreak tests selling exhaustion ending a
// downtrend
func TestTracker_DowntrendHigherLowSwingBreak(t *testing.T) {
	tr := NewTracker(true, zerolog.Nop())
	high, low := seedSwings(20, 10)
	st, _ := tr.StartTrend(bearishSignal("sig-1", 7), high, low)

	higherLow := &swings.SwingPoint{Index: 9, Kind: swings.Low, Price: 11, ConfirmedIndex: 10}
	broken := tr.Advance(marketdata.Bar{Index: 10, Open: 14, High: 15, Low: 13, Close: 14}, higherLow)
	if len(broken) != 1 {
		t.Fatalf("Expected higher low to break the downtrend, got %+v", broken)
	}
	if st.BreakReason != BreakSwing {
		t.Errorf("Expected %s, got %s", BreakSwing, st.BreakReason)
	}
}

// TestTracker_StateLookup tests the arena accessors
func TestTracker_StateLookup(t *testing.T) {
	tr := NewTracker(true, zerolog.Nop())
	high, low := seedSwings(20, 10)
	tr.StartTrend(bullishSignal("sig-1", 7), high, low)
	tr.StartTrend(bearishSignal("sig-2", 9), high, low)

	if got := len(tr.States()); got != 2 {
		t.Fatalf("Expected 2 states, got %d", got)
	}
	st, ok := tr.StateFor("sig-2")
	if !ok || st.Direction != signals.Bearish {
		t.Errorf("Expected bearish state for sig-2, got %+v ok=%v", st, ok)
	}
	if _, ok := tr.StateFor("missing"); ok {
		t.Error("Expected lookup miss for unknown signal id")
	}
	if got := len(tr.ActiveStates()); got != 2 {
		t.Errorf("Expected 2 active states, got %d", got)
	}
}
