package signals

import (
	"market-structure-analyzer/internal/marketdata"
	"market-structure-analyzer/internal/swings"

	"github.com/google/uuid"
	"github.com/markcheno/go-talib"
)

// SMACross fires on close-price moving average crossovers: bullish when the
// short average crosses above the long one, bearish on the cross below. Both
// averages are computed over the full series up front; each window only looks
// backward, so the forward pass sees exactly the values a streaming
// computation would.
type SMACross struct {
	shortPeriod int
	longPeriod  int

	short []float64
	long  []float64
	pos   int
}

// NewSMACross creates a crossover detector. The short period must be less
// than the long period; out-of-range values fall back to 10 and 30.
func NewSMACross(shortPeriod, longPeriod int) *SMACross {
	if shortPeriod <= 0 || longPeriod <= shortPeriod {
		shortPeriod, longPeriod = 10, 30
	}
	return &SMACross{shortPeriod: shortPeriod, longPeriod: longPeriod}
}

func (d *SMACross) Name() string { return DetectorSMACross }

// Prime computes both averages over the whole series before the forward pass.
func (d *SMACross) Prime(bars []marketdata.Bar) {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	if len(closes) >= d.longPeriod {
		d.short = talib.Sma(closes, d.shortPeriod)
		d.long = talib.Sma(closes, d.longPeriod)
	}
	d.pos = 0
}

func (d *SMACross) Observe(bar marketdata.Bar, _ *swings.SwingPoint, gate TrendGate) *Signal {
	pos := d.pos
	d.pos++

	// Both averages and their previous values must be past warm-up.
	if d.long == nil || pos < d.longPeriod {
		return nil
	}

	prevDelta := d.short[pos-1] - d.long[pos-1]
	delta := d.short[pos] - d.long[pos]

	var dir Direction
	switch {
	case prevDelta <= 0 && delta > 0:
		dir = Bullish
	case prevDelta >= 0 && delta < 0:
		dir = Bearish
	default:
		return nil
	}

	if !gate.CanFire(dir) {
		return nil
	}
	return &Signal{
		ID:            uuid.New().String(),
		Detector:      DetectorSMACross,
		Index:         bar.Index,
		Direction:     dir,
		TriggerPrice:  bar.Close,
		Swing1Index:   -1,
		Swing2Index:   -1,
		BreakoutIndex: -1,
	}
}
