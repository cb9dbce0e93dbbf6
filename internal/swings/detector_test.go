package swings

import (
	"math/rand"
	"testing"

	"market-structure-analyzer/internal/marketdata"
)

// feed classifies each bar against its predecessor and runs it through the
// detector, collecting every confirmed swing.
func feed(t *testing.T, d *Detector, bars []marketdata.Bar) []SwingPoint {
	t.Helper()
	var out []SwingPoint
	var prev *marketdata.Bar
	for i := range bars {
		barType := marketdata.Classify(bars[i], prev)
		sp, err := d.Observe(bars[i], barType)
		if err != nil {
			t.Fatalf("Observe(bar %d) returned error: %v", bars[i].Index, err)
		}
		if sp != nil {
			out = append(out, *sp)
		}
		prev = &bars[i]
	}
	return out
}

// TestDetector_ConfirmationSequence walks a hand-built six bar series and
// checks every confirmed swing against the expected alternating sequence
func TestDetector_ConfirmationSequence(t *testing.T) {
	bars := []marketdata.Bar{
		{Index: 0, Open: 9.5, High: 10, Low: 9, Close: 9.8},
		{Index: 1, Open: 10.2, High: 11, Low: 10, Close: 10.8},
		{Index: 2, Open: 8.8, High: 9, Low: 8, Close: 8.2},
		{Index: 3, Open: 11.2, High: 12, Low: 11, Close: 11.8},
		{Index: 4, Open: 9.8, High: 10, Low: 9.5, Close: 9.6},
		{Index: 5, Open: 12.2, High: 13, Low: 12, Close: 12.9},
	}

	want := []SwingPoint{
		{Index: 0, Kind: Low, Price: 9, ConfirmedIndex: 1},
		{Index: 1, Kind: High, Price: 11, ConfirmedIndex: 2},
		{Index: 2, Kind: Low, Price: 8, ConfirmedIndex: 3},
		{Index: 3, Kind: High, Price: 12, ConfirmedIndex: 4},
		{Index: 4, Kind: Low, Price: 9.5, ConfirmedIndex: 5},
	}

	got := feed(t, NewDetector(), bars)
	if len(got) != len(want) {
		t.Fatalf("Expected %d swings, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Swing %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

// TestDetector_NoLookahead checks that every swing's extreme bar precedes its
// confirming bar
func TestDetector_NoLookahead(t *testing.T) {
	bars := []marketdata.Bar{
		{Index: 0, Open: 9.5, High: 10, Low: 9, Close: 9.8},
		{Index: 1, Open: 10.2, High: 11, Low: 10, Close: 10.8},
		{Index: 2, Open: 8.8, High: 9, Low: 8, Close: 8.2},
		{Index: 3, Open: 11.2, High: 12, Low: 11, Close: 11.8},
		{Index: 4, Open: 9.8, High: 10, Low: 9.5, Close: 9.6},
		{Index: 5, Open: 12.2, High: 13, Low: 12, Close: 12.9},
	}

	for _, sp := range feed(t, NewDetector(), bars) {
		if sp.Index >= sp.ConfirmedIndex {
			t.Errorf("Swing at bar %d confirmed at bar %d, extreme must precede confirmation", sp.Index, sp.ConfirmedIndex)
		}
	}
}

// TestDetector_InsideTransparent tests that Inside bars alter neither the
// provisional extremes nor the pending direction
func TestDetector_InsideTransparent(t *testing.T) {
	bars := []marketdata.Bar{
		{Index: 0, Open: 9.5, High: 10, Low: 9, Close: 9.8},
		{Index: 1, Open: 10.2, High: 11, Low: 10, Close: 10.5},
		{Index: 2, Open: 10.3, High: 10.5, Low: 10.2, Close: 10.4}, // inside
		{Index: 3, Open: 8.5, High: 9, Low: 8, Close: 8.2},
	}

	got := feed(t, NewDetector(), bars)
	if len(got) != 2 {
		t.Fatalf("Expected 2 swings, got %d: %+v", len(got), got)
	}
	high := got[1]
	if high.Kind != High || high.Index != 1 || high.Price != 11 || high.ConfirmedIndex != 3 {
		t.Errorf("Expected swing high 11 at bar 1 confirmed at bar 3, got %+v", high)
	}
}

// TestDetector_OutsideExtendsBothSides tests that an Outside bar extends both
// provisional extremes without confirming, and that the next directional bar
// confirms carrying the Outside bar's extreme and index
func TestDetector_OutsideExtendsBothSides(t *testing.T) {
	bars := []marketdata.Bar{
		{Index: 0, Open: 9.5, High: 10, Low: 9, Close: 9.8},
		{Index: 1, Open: 10.2, High: 11, Low: 10, Close: 10.5},
		{Index: 2, Open: 10, High: 12, Low: 8, Close: 9}, // outside
		{Index: 3, Open: 9.5, High: 10, Low: 7, Close: 8},
		{Index: 4, Open: 8.5, High: 11, Low: 8, Close: 10.5},
	}

	got := feed(t, NewDetector(), bars)
	if len(got) != 3 {
		t.Fatalf("Expected 3 swings, got %d: %+v", len(got), got)
	}
	high := got[1]
	if high.Kind != High || high.Index != 2 || high.Price != 12 || high.ConfirmedIndex != 3 {
		t.Errorf("Expected swing high carrying the outside bar extreme 12 at bar 2, got %+v", high)
	}
	low := got[2]
	if low.Kind != Low || low.Index != 3 || low.Price != 7 || low.ConfirmedIndex != 4 {
		t.Errorf("Expected swing low 7 at bar 3 confirmed at bar 4, got %+v", low)
	}
}

// TestDetector_AllInsideEmitsNothing tests the boundary case where every bar
// after the first holds within the reference range
func TestDetector_AllInsideEmitsNothing(t *testing.T) {
	bars := []marketdata.Bar{
		{Index: 0, Open: 10, High: 12, Low: 8, Close: 10},
		{Index: 1, Open: 10, High: 11, Low: 9, Close: 10},
		{Index: 2, Open: 10, High: 10.8, Low: 9.2, Close: 10},
		{Index: 3, Open: 10, High: 10.5, Low: 9.5, Close: 10},
	}

	if got := feed(t, NewDetector(), bars); len(got) != 0 {
		t.Errorf("Expected no swings from all-inside bars, got %+v", got)
	}
}

// TestDetector_StrictAlternation feeds a long pseudo-random walk and checks
// that confirmed swings never repeat kind
func TestDetector_StrictAlternation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	bars := make([]marketdata.Bar, 500)
	price := 100.0
	for i := range bars {
		price += rng.Float64()*4 - 2
		if price < 10 {
			price = 10
		}
		high := price + rng.Float64()*3
		low := price - rng.Float64()*3
		if low <= 0 {
			low = 0.5
		}
		bars[i] = marketdata.Bar{Index: i, Open: price, High: high, Low: low, Close: price}
	}

	swingPoints := feed(t, NewDetector(), bars)
	if len(swingPoints) < 2 {
		t.Fatalf("Random walk produced only %d swings, fixture too flat", len(swingPoints))
	}
	for i := 1; i < len(swingPoints); i++ {
		if swingPoints[i].Kind == swingPoints[i-1].Kind {
			t.Errorf("Consecutive %s swings at bars %d and %d", swingPoints[i].Kind, swingPoints[i-1].Index, swingPoints[i].Index)
		}
		if swingPoints[i].Index >= swingPoints[i].ConfirmedIndex {
			t.Errorf("Swing at bar %d confirmed at bar %d", swingPoints[i].Index, swingPoints[i].ConfirmedIndex)
		}
	}
}

// TestDetector_LastKind tests the confirmed-kind accessor
func TestDetector_LastKind(t *testing.T) {
	d := NewDetector()
	if got := d.LastKind(); got != "" {
		t.Errorf("Expected empty kind before first confirmation, got %q", got)
	}

	bars := []marketdata.Bar{
		{Index: 0, Open: 9.5, High: 10, Low: 9, Close: 9.8},
		{Index: 1, Open: 10.2, High: 11, Low: 10, Close: 10.8},
	}
	feed(t, d, bars)
	if got := d.LastKind(); got != Low {
		t.Errorf("Expected %s after first confirmation, got %s", Low, got)
	}
}
