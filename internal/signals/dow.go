package signals

import (
	"market-structure-analyzer/internal/marketdata"
	"market-structure-analyzer/internal/swings"

	"github.com/google/uuid"
)

// DowBullish detects the Dow 1-2-3 bullish breakout: Swing Low 1, Swing High
// (the resistance), Swing Low 2 with Low2 > Low1, then the first bar whose
// high exceeds the resistance. The detector tracks a single structure at a
// time: the most recent qualifying triple of confirmed swings. A completed
// structure is discarded if a bar's low drops below Low2 without breaking
// out (a bar that does both fires), and consumed on the breakout bar whether
// or not the gate allowed a fire, so a late bar never fires on a stale
// structure.
type DowBullish struct {
	window [3]*swings.SwingPoint
	filled int

	armed      bool
	low1       *swings.SwingPoint
	resistance *swings.SwingPoint
	low2       *swings.SwingPoint
}

// NewDowBullish creates a detector with no accumulated structure.
func NewDowBullish() *DowBullish {
	return &DowBullish{}
}

func (d *DowBullish) Name() string { return DetectorDowBullish }

// Observe processes one bar. A swing confirmed at this bar participates in
// structure formation before the breakout check, which is what lets a
// structure complete and break out on the same bar.
func (d *DowBullish) Observe(bar marketdata.Bar, swing *swings.SwingPoint, gate TrendGate) *Signal {
	if swing != nil {
		d.pushSwing(swing)
	}

	if !d.armed {
		return nil
	}

	// Breakout wins over a same-bar dip through Low2; the dip only kills the
	// structure when it happens on a bar that does not break out.
	if bar.High > d.resistance.Price {
		return d.consume(bar, gate)
	}

	if bar.Low < d.low2.Price {
		d.disarm()
	}
	return nil
}

func (d *DowBullish) pushSwing(sp *swings.SwingPoint) {
	if d.filled < len(d.window) {
		d.window[d.filled] = sp
		d.filled++
	} else {
		d.window[0], d.window[1], d.window[2] = d.window[1], d.window[2], sp
	}

	if d.filled < 3 {
		return
	}
	a, b, c := d.window[0], d.window[1], d.window[2]
	if a.Kind == swings.Low && b.Kind == swings.High && c.Kind == swings.Low && c.Price > a.Price {
		d.armed = true
		d.low1, d.resistance, d.low2 = a, b, c
	} else if sp.Kind == swings.Low {
		// The newest low did not qualify as a higher Low2; any armed
		// structure it belonged to is superseded.
		d.disarm()
	}
}

func (d *DowBullish) consume(bar marketdata.Bar, gate TrendGate) *Signal {
	low1, res, low2 := d.low1, d.resistance, d.low2
	d.disarm()
	// Require fresh swings before another structure can form.
	d.filled = 0

	if !gate.CanFire(Bullish) {
		return nil
	}
	return &Signal{
		ID:            uuid.New().String(),
		Detector:      DetectorDowBullish,
		Index:         bar.Index,
		Direction:     Bullish,
		TriggerPrice:  res.Price,
		Swing1Index:   low1.Index,
		Swing2Index:   low2.Index,
		BreakoutIndex: res.Index,
	}
}

func (d *DowBullish) disarm() {
	d.armed = false
	d.low1, d.resistance, d.low2 = nil, nil, nil
}

// DowBearish is the mirror breakdown: Swing High 1, Swing Low (the support),
// Swing High 2 with High2 < High1, firing on the first bar whose low falls
// below the support. A bar's high rising above High2 discards the structure
// unless that same bar also breaks down.
type DowBearish struct {
	window [3]*swings.SwingPoint
	filled int

	armed   bool
	high1   *swings.SwingPoint
	support *swings.SwingPoint
	high2   *swings.SwingPoint
}

// NewDowBearish creates a detector with no accumulated structure.
func NewDowBearish() *DowBearish {
	return &DowBearish{}
}

func (d *DowBearish) Name() string { return DetectorDowBearish }

func (d *DowBearish) Observe(bar marketdata.Bar, swing *swings.SwingPoint, gate TrendGate) *Signal {
	if swing != nil {
		d.pushSwing(swing)
	}

	if !d.armed {
		return nil
	}

	if bar.Low < d.support.Price {
		return d.consume(bar, gate)
	}

	if bar.High > d.high2.Price {
		d.disarm()
	}
	return nil
}

func (d *DowBearish) pushSwing(sp *swings.SwingPoint) {
	if d.filled < len(d.window) {
		d.window[d.filled] = sp
		d.filled++
	} else {
		d.window[0], d.window[1], d.window[2] = d.window[1], d.window[2], sp
	}

	if d.filled < 3 {
		return
	}
	a, b, c := d.window[0], d.window[1], d.window[2]
	if a.Kind == swings.High && b.Kind == swings.Low && c.Kind == swings.High && c.Price < a.Price {
		d.armed = true
		d.high1, d.support, d.high2 = a, b, c
	} else if sp.Kind == swings.High {
		d.disarm()
	}
}

func (d *DowBearish) consume(bar marketdata.Bar, gate TrendGate) *Signal {
	high1, sup, high2 := d.high1, d.support, d.high2
	d.disarm()
	d.filled = 0

	if !gate.CanFire(Bearish) {
		return nil
	}
	return &Signal{
		ID:            uuid.New().String(),
		Detector:      DetectorDowBearish,
		Index:         bar.Index,
		Direction:     Bearish,
		TriggerPrice:  sup.Price,
		Swing1Index:   high1.Index,
		Swing2Index:   high2.Index,
		BreakoutIndex: sup.Index,
	}
}

func (d *DowBearish) disarm() {
	d.armed = false
	d.high1, d.support, d.high2 = nil, nil, nil
}
