package signals

import (
	"market-structure-analyzer/internal/marketdata"
	"market-structure-analyzer/internal/swings"

	"github.com/google/uuid"
)

// DowntrendReversal is a mean-reversion long entry. It arms when a bearish
// Dow breakdown confirms a downtrend and fires when that downtrend shows its
// first crack: either a confirmed swing low strictly above the trend's
// lowest swing low (selling exhaustion) or a bar high breaking above the
// most recent confirmed swing high (the downtrend's resistance). One fire
// per armed episode; firing disarms until the next breakdown.
type DowntrendReversal struct {
	armed      bool
	resistance float64 // most recent confirmed swing high while armed
	hasRes     bool
	trendLow   float64 // lowest confirmed swing low during the downtrend
	hasLow     bool
}

// NewDowntrendReversal creates a disarmed detector.
func NewDowntrendReversal() *DowntrendReversal {
	return &DowntrendReversal{}
}

func (d *DowntrendReversal) Name() string { return DetectorDowntrendReversal }

// Arm is called by the pipeline when a bearish Dow breakdown fires. The
// levels seed from the most recent confirmed swing of each kind at that bar.
func (d *DowntrendReversal) Arm(lastHigh, lastLow *swings.SwingPoint) {
	d.armed = true
	d.hasRes = lastHigh != nil
	if d.hasRes {
		d.resistance = lastHigh.Price
	}
	d.hasLow = lastLow != nil
	if d.hasLow {
		d.trendLow = lastLow.Price
	}
}

// Observe processes one bar while armed. Swing updates are applied before
// the trigger checks so a swing confirmed at this bar can itself be the
// higher low that fires.
func (d *DowntrendReversal) Observe(bar marketdata.Bar, swing *swings.SwingPoint, gate TrendGate) *Signal {
	if !d.armed {
		return nil
	}

	triggered := false
	trigger := 0.0

	if swing != nil && swing.Kind == swings.Low && d.hasLow && swing.Price > d.trendLow {
		triggered = true
		trigger = d.trendLow
	}
	if !triggered && d.hasRes && bar.High > d.resistance {
		triggered = true
		trigger = d.resistance
	}

	if triggered {
		d.armed = false
		if !gate.CanFire(Bullish) {
			return nil
		}
		return &Signal{
			ID:            uuid.New().String(),
			Detector:      DetectorDowntrendReversal,
			Index:         bar.Index,
			Direction:     Bullish,
			TriggerPrice:  trigger,
			Swing1Index:   -1,
			Swing2Index:   -1,
			BreakoutIndex: -1,
		}
	}

	// Track the downtrend: resistance follows the most recent swing high,
	// the trend low ratchets down on lower confirmed swing lows.
	if swing != nil {
		switch swing.Kind {
		case swings.High:
			d.resistance = swing.Price
			d.hasRes = true
		case swings.Low:
			if !d.hasLow || swing.Price < d.trendLow {
				d.trendLow = swing.Price
				d.hasLow = true
			}
		}
	}

	return nil
}
