package marketdata

import (
	"errors"
	"fmt"
	"math"
)

// BarType classifies a bar relative to its immediate predecessor.
type BarType string

const (
	// Reference is assigned to the first bar of a series, which has no
	// predecessor to compare against.
	Reference BarType = "reference"
	// Up bars make a strictly higher high and a strictly higher low.
	Up BarType = "up"
	// Down bars make a strictly lower high and a strictly lower low.
	Down BarType = "down"
	// Inside bars hold within the previous bar's range (ties allowed on
	// both bounds).
	Inside BarType = "inside"
	// Outside bars expand the previous bar's range. The canonical case is
	// a strictly higher high with a strictly lower low; one-sided
	// expansions with a tie on the other bound also land here.
	Outside BarType = "outside"
)

// Errors surfaced by bar and series validation.
var (
	ErrMalformedBar      = errors.New("malformed bar")
	ErrSequenceViolation = errors.New("bar sequence violation")
)

// Bar is a single OHLC observation. Index is the caller-assigned sequence
// position; it must be strictly increasing across a series but need not be
// contiguous. Bars are value types and are never mutated by the pipeline.
type Bar struct {
	Index int     `json:"index"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// Validate reports whether the bar carries usable OHLC values. A zero or
// negative price marks a missing or corrupt field, NaN/Inf are non-numeric,
// and high < low is internally inconsistent. All are fatal for the bar.
func (b Bar) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"open", b.Open},
		{"high", b.High},
		{"low", b.Low},
		{"close", b.Close},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: bar %d has non-numeric %s", ErrMalformedBar, b.Index, f.name)
		}
		if f.value <= 0 {
			return fmt.Errorf("%w: bar %d has missing or non-positive %s", ErrMalformedBar, b.Index, f.name)
		}
	}
	if b.High < b.Low {
		return fmt.Errorf("%w: bar %d has high %v below low %v", ErrMalformedBar, b.Index, b.High, b.Low)
	}
	return nil
}

// Classify determines the bar type of bar relative to prev. A nil prev marks
// the start of a series and yields Reference.
//
// Up and Down require both bounds strictly on the same side of the previous
// bar. A tie on either bound can therefore never produce Up or Down: ties
// that contract the range (equal high with a higher low, equal low with a
// lower high, equal both) are Inside, while ties that expand it (higher high
// with an equal low, equal high with a lower low) are Outside. The asymmetry
// is deliberate and classification is total: every pair resolves to exactly
// one type.
func Classify(bar Bar, prev *Bar) BarType {
	if prev == nil {
		return Reference
	}

	switch {
	case bar.High > prev.High && bar.Low > prev.Low:
		return Up
	case bar.High < prev.High && bar.Low < prev.Low:
		return Down
	case bar.High <= prev.High && bar.Low >= prev.Low:
		return Inside
	default:
		// Remaining combinations all expand the previous range on at
		// least one end without a two-sided directional move.
		return Outside
	}
}

// Directional reports whether the type is Up or Down. Inside and Outside
// bars never set or reverse the pending swing direction on their own.
func (t BarType) Directional() bool {
	return t == Up || t == Down
}
