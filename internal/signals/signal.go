package signals

import (
	"market-structure-analyzer/internal/marketdata"
	"market-structure-analyzer/internal/swings"
)

// Direction is the side of an entry signal.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
)

// Detector names as they appear on emitted signals and in stored results.
const (
	DetectorDowBullish        = "dow_123_bullish"
	DetectorDowBearish        = "dow_123_bearish"
	DetectorDowntrendReversal = "downtrend_reversal"
	DetectorTwelveBar         = "twelve_bar_breakout"
	DetectorSMACross          = "sma_crossover"
)

// Signal is an entry signal, immutable once created. Index is the bar the
// signal fired on; TriggerPrice is the level whose break fired it. The
// supporting swing indices let charting collaborators reconstruct the
// structure; a detector without a given reference leaves it at -1.
type Signal struct {
	ID           string    `json:"id"`
	Detector     string    `json:"detector"`
	Index        int       `json:"index"`
	Direction    Direction `json:"direction"`
	TriggerPrice float64   `json:"trigger_price"`

	Swing1Index   int `json:"swing1_index"`
	Swing2Index   int `json:"swing2_index"`
	BreakoutIndex int `json:"breakout_index"`
}

// TrendGate is consulted before a detector fires. A same-direction trend in
// progress suppresses new signals; the trend tracker implements this.
type TrendGate interface {
	CanFire(dir Direction) bool
}

// Detector is a streaming pattern detector. Observe is called once per bar
// in order, with the swing point confirmed at this bar (nil if none) and the
// firing gate. At most one signal is returned per bar.
type Detector interface {
	Name() string
	Observe(bar marketdata.Bar, swing *swings.SwingPoint, gate TrendGate) *Signal
}

// Primer is implemented by detectors that precompute backward-looking
// indicator series over the full run before the forward pass begins. The
// precomputed values at bar i depend only on bars at or before i, so the
// no-lookahead property is preserved.
type Primer interface {
	Prime(bars []marketdata.Bar)
}
