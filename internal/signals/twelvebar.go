package signals

import (
	"market-structure-analyzer/internal/marketdata"
	"market-structure-analyzer/internal/swings"

	"github.com/google/uuid"
)

// TwelveBar detects the consolidation breakout anchored on a valid swing
// low. Valid means the immediately preceding confirmed swing low is not
// lower (a higher low is mid-trend continuation, not an anchor; the first
// swing low always qualifies). Resistance is the highest high over the
// window of bars starting at the anchor; the breakout may fire on the first
// bar past the window whose high exceeds it. Any bar low dropping below the
// anchor price kills the pattern. One fire per anchor; a newer valid anchor
// replaces the one being tracked.
type TwelveBar struct {
	windowSize int

	history []marketdata.Bar

	prevLow    float64 // previous confirmed swing low price
	hasPrevLow bool

	anchored    bool
	anchorPos   int // position of the anchor bar in history
	anchorIndex int
	anchorPrice float64
	resistance  float64
}

// NewTwelveBar creates a detector with the given window size (bars counted
// from the anchor, inclusive).
func NewTwelveBar(windowSize int) *TwelveBar {
	if windowSize <= 0 {
		windowSize = 12
	}
	return &TwelveBar{windowSize: windowSize}
}

func (d *TwelveBar) Name() string { return DetectorTwelveBar }

func (d *TwelveBar) Observe(bar marketdata.Bar, swing *swings.SwingPoint, gate TrendGate) *Signal {
	pos := len(d.history)
	d.history = append(d.history, bar)

	if swing != nil && swing.Kind == swings.Low {
		valid := !d.hasPrevLow || d.prevLow >= swing.Price
		d.prevLow, d.hasPrevLow = swing.Price, true
		if valid {
			d.anchor(swing, pos)
		}
	}

	if !d.anchored {
		return nil
	}

	if bar.Low < d.anchorPrice {
		d.anchored = false
		return nil
	}

	offset := pos - d.anchorPos
	if offset < d.windowSize {
		if bar.High > d.resistance {
			d.resistance = bar.High
		}
		return nil
	}

	if bar.High <= d.resistance {
		return nil
	}

	res := d.resistance
	anchorIdx := d.anchorIndex
	d.anchored = false

	if !gate.CanFire(Bullish) {
		return nil
	}
	return &Signal{
		ID:            uuid.New().String(),
		Detector:      DetectorTwelveBar,
		Index:         bar.Index,
		Direction:     Bullish,
		TriggerPrice:  res,
		Swing1Index:   anchorIdx,
		Swing2Index:   -1,
		BreakoutIndex: -1,
	}
}

// anchor starts tracking a new pattern. The anchor swing is confirmed after
// its extreme bar, so the part of the window already seen is replayed from
// history: resistance accumulates over it and an early invalidation kills
// the anchor immediately.
func (d *TwelveBar) anchor(sp *swings.SwingPoint, currentPos int) {
	anchorPos := -1
	for p := currentPos; p >= 0; p-- {
		if d.history[p].Index == sp.Index {
			anchorPos = p
			break
		}
	}
	if anchorPos < 0 {
		return
	}

	d.anchored = true
	d.anchorPos = anchorPos
	d.anchorIndex = sp.Index
	d.anchorPrice = sp.Price
	d.resistance = d.history[anchorPos].High

	for p := anchorPos + 1; p < currentPos; p++ { // current bar is handled by the caller
		b := d.history[p]
		if b.Low < d.anchorPrice {
			d.anchored = false
			return
		}
		if p-anchorPos < d.windowSize {
			if b.High > d.resistance {
				d.resistance = b.High
			}
		} else if b.High > d.resistance {
			// breakout happened before the anchor confirmed; stale setup
			d.anchored = false
			return
		}
	}
}
