package swings

import (
	"errors"
	"fmt"

	"market-structure-analyzer/internal/marketdata"
)

// Kind distinguishes swing highs from swing lows.
type Kind string

const (
	High Kind = "high"
	Low  Kind = "low"
)

// ErrInvariantViolation is surfaced when the detector would emit two
// consecutive swings of the same kind. It indicates a defect in the scan
// logic, not bad input, and is never silently corrected.
var ErrInvariantViolation = errors.New("swing invariant violation")

// SwingPoint is a confirmed reversal point in price structure. Index is the
// bar where the extreme price occurred; ConfirmedIndex is the later bar whose
// direction change confirmed it. Index < ConfirmedIndex always, which is how
// the no-lookahead property is checked downstream.
type SwingPoint struct {
	Index          int     `json:"index"`
	Kind           Kind    `json:"kind"`
	Price          float64 `json:"price"`
	ConfirmedIndex int     `json:"confirmed_index"`
}

// Detector performs a streaming scan over classified bars and confirms swing
// points at the bar where direction actually reverses. One detector instance
// serves one series; create a fresh one per run.
//
// The scan carries a pending direction and a provisional extreme per side
// (price plus the bar index where it was set). Directional bars extend their
// side and confirm the opposite side on reversal. Inside bars are fully
// transparent. Outside bars extend both sides but never confirm on their own;
// the next Up/Down bar decides which side the expansion belonged to.
type Detector struct {
	pending marketdata.BarType // Up or Down once the first directional bar is seen

	provHigh    float64
	provHighIdx int
	provLow     float64
	provLowIdx  int
	seeded      bool

	lastKind Kind // kind of the last confirmed swing, empty before the first
}

// NewDetector creates a detector with no accumulated state.
func NewDetector() *Detector {
	return &Detector{}
}

// Observe feeds the next bar and its type. It returns a SwingPoint when this
// bar confirms one, nil otherwise. Confirmation uses only bars at or before
// the current one.
func (d *Detector) Observe(bar marketdata.Bar, barType marketdata.BarType) (*SwingPoint, error) {
	switch barType {
	case marketdata.Reference:
		d.provHigh, d.provHighIdx = bar.High, bar.Index
		d.provLow, d.provLowIdx = bar.Low, bar.Index
		d.seeded = true
		return nil, nil

	case marketdata.Inside:
		// Transparent: neither extremes nor pending direction change.
		return nil, nil

	case marketdata.Outside:
		if !d.seeded {
			d.provHigh, d.provHighIdx = bar.High, bar.Index
			d.provLow, d.provLowIdx = bar.Low, bar.Index
			d.seeded = true
			return nil, nil
		}
		d.extendHigh(bar)
		d.extendLow(bar)
		return nil, nil

	case marketdata.Up:
		if d.pending != marketdata.Up {
			sp, err := d.confirm(Low, d.provLow, d.provLowIdx, bar)
			if err != nil {
				return nil, err
			}
			d.pending = marketdata.Up
			d.resetAfterLow(bar, sp.Index)
			return sp, nil
		}
		d.extendHigh(bar)
		d.extendLow(bar)
		return nil, nil

	case marketdata.Down:
		if d.pending != marketdata.Down {
			sp, err := d.confirm(High, d.provHigh, d.provHighIdx, bar)
			if err != nil {
				return nil, err
			}
			d.pending = marketdata.Down
			d.resetAfterHigh(bar, sp.Index)
			return sp, nil
		}
		d.extendHigh(bar)
		d.extendLow(bar)
		return nil, nil
	}

	return nil, fmt.Errorf("unhandled bar type %q at bar %d", barType, bar.Index)
}

// LastKind returns the kind of the most recently confirmed swing, or empty
// if none has been confirmed yet.
func (d *Detector) LastKind() Kind {
	return d.lastKind
}

func (d *Detector) confirm(kind Kind, price float64, index int, confirming marketdata.Bar) (*SwingPoint, error) {
	if d.lastKind == kind {
		return nil, fmt.Errorf("%w: consecutive %s swings at bars %d and %d",
			ErrInvariantViolation, kind, index, confirming.Index)
	}
	d.lastKind = kind
	return &SwingPoint{
		Index:          index,
		Kind:           kind,
		Price:          price,
		ConfirmedIndex: confirming.Index,
	}, nil
}

// resetAfterLow starts the next leg after a swing low was confirmed. The new
// provisional low is the confirming bar; the provisional high survives only
// if it was set at or after the swing low's extreme (an Outside bar at or
// past the extreme carries a high that belongs to the new leg).
func (d *Detector) resetAfterLow(bar marketdata.Bar, lowIdx int) {
	d.provLow, d.provLowIdx = bar.Low, bar.Index
	if d.provHighIdx < lowIdx {
		d.provHigh, d.provHighIdx = bar.High, bar.Index
	} else {
		d.extendHigh(bar)
	}
}

func (d *Detector) resetAfterHigh(bar marketdata.Bar, highIdx int) {
	d.provHigh, d.provHighIdx = bar.High, bar.Index
	if d.provLowIdx < highIdx {
		d.provLow, d.provLowIdx = bar.Low, bar.Index
	} else {
		d.extendLow(bar)
	}
}

// Provisional extremes advance on strict improvement only, so the first bar
// to set an extreme keeps the index on ties.
func (d *Detector) extendHigh(bar marketdata.Bar) {
	if bar.High > d.provHigh {
		d.provHigh, d.provHighIdx = bar.High, bar.Index
	}
}

func (d *Detector) extendLow(bar marketdata.Bar) {
	if bar.Low < d.provLow {
		d.provLow, d.provLowIdx = bar.Low, bar.Index
	}
}
