package marketdata

import (
	"errors"
	"testing"
)

func validBars() []Bar {
	return []Bar{
		{Index: 0, Open: 9.5, High: 10, Low: 9, Close: 9.8},
		{Index: 1, Open: 10.2, High: 11, Low: 10, Close: 10.8},
		{Index: 2, Open: 8.8, High: 9, Low: 8, Close: 8.2},
	}
}

// TestNewSeries_RejectsDisorder tests that non-monotonic and duplicate
// indices fail construction
func TestNewSeries_RejectsDisorder(t *testing.T) {
	tests := []struct {
		name    string
		indices []int
	}{
		{"descending index", []int{0, 2, 1}},
		{"duplicate index", []int{0, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bars := validBars()
			for i, idx := range tt.indices {
				bars[i].Index = idx
			}
			if _, err := NewSeries("TEST", bars); !errors.Is(err, ErrSequenceViolation) {
				t.Errorf("Expected ErrSequenceViolation, got %v", err)
			}
		})
	}
}

// TestNewSeries_RejectsMalformed tests the strict policy
func TestNewSeries_RejectsMalformed(t *testing.T) {
	bars := validBars()
	bars[1].High = 0

	if _, err := NewSeries("TEST", bars); !errors.Is(err, ErrMalformedBar) {
		t.Errorf("Expected ErrMalformedBar, got %v", err)
	}
}

// TestNewSeriesSkipMalformed tests the skip-and-report policy
func TestNewSeriesSkipMalformed(t *testing.T) {
	bars := validBars()
	bars[1].High = 0

	s, rejected, err := NewSeriesSkipMalformed("TEST", bars)
	if err != nil {
		t.Fatalf("Expected skip policy to succeed, got %v", err)
	}
	if s.Len() != 2 {
		t.Errorf("Expected 2 accepted bars, got %d", s.Len())
	}
	if len(rejected) != 1 || rejected[0].Index != 1 {
		t.Fatalf("Expected bar 1 rejected, got %+v", rejected)
	}
	if rejected[0].Reason == "" {
		t.Error("Expected a rejection reason")
	}
}

// TestFingerprint tests digest stability and sensitivity
func TestFingerprint(t *testing.T) {
	a, err := NewSeries("TEST", validBars())
	if err != nil {
		t.Fatalf("NewSeries failed: %v", err)
	}
	b, err := NewSeries("TEST", validBars())
	if err != nil {
		t.Fatalf("NewSeries failed: %v", err)
	}
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("Identical series must fingerprint identically")
	}

	perturbed := validBars()
	perturbed[2].Close += 0.0001
	c, err := NewSeries("TEST", perturbed)
	if err != nil {
		t.Fatalf("NewSeries failed: %v", err)
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("An OHLC perturbation must change the fingerprint")
	}

	d, err := NewSeries("OTHER", validBars())
	if err != nil {
		t.Fatalf("NewSeries failed: %v", err)
	}
	if a.Fingerprint() == d.Fingerprint() {
		t.Error("A different symbol must change the fingerprint")
	}
}
