package trend

import (
	"errors"
	"fmt"

	"market-structure-analyzer/internal/marketdata"
	"market-structure-analyzer/internal/signals"
	"market-structure-analyzer/internal/swings"

	"github.com/rs/zerolog"
)

// Phase is the lifecycle position of a tracked trend.
type Phase string

const (
	PhaseUnknown       Phase = "unknown"
	PhaseBullishSignal Phase = "bullish_signal"
	PhaseBearishSignal Phase = "bearish_signal"
	PhaseUptrend       Phase = "uptrend"
	PhaseDowntrend     Phase = "downtrend"
	PhaseTrendEnd      Phase = "trend_end"
)

// Status reports whether a tracked trend is still running.
type Status string

const (
	StatusActive Status = "active"
	StatusBroken Status = "broken"
)

// BreakReason records which break condition terminated a trend.
type BreakReason string

const (
	BreakPrice BreakReason = "price_break"
	BreakSwing BreakReason = "swing_break"
)

// ErrInvariantViolation is surfaced when a signal starts a trend while a
// same-direction trend is already active. The detector gate should make this
// impossible; hitting it means the gate logic is broken.
var ErrInvariantViolation = errors.New("trend invariant violation")

// State is the mutable per-signal trend record. It is created when a signal
// fires, advanced bar by bar, and owned exclusively by the Tracker that
// created it.
type State struct {
	SignalID  string            `json:"signal_id"`
	Direction signals.Direction `json:"direction"`
	Phase     Phase             `json:"phase"`
	Status    Status            `json:"status"`

	EntryIndex    int     `json:"entry_index"`
	LastSwingHigh float64 `json:"last_swing_high"`
	LastSwingLow  float64 `json:"last_swing_low"`

	BreakIndex  *int        `json:"break_index,omitempty"`
	BreakReason BreakReason `json:"break_reason,omitempty"`
}

// Active reports whether the state still tracks a running trend.
func (s *State) Active() bool {
	return s.Status == StatusActive
}

// Tracker owns all trend states of one pipeline run. States are arena-stored
// in firing order; at most one state per direction is Active at a time, which
// is the suppression gate the pattern detectors consult before firing.
type Tracker struct {
	priceBreakFirst bool
	states          []*State
	byID            map[string]int
	activeBull      int // index into states, -1 when no bullish trend is active
	activeBear      int
	logger          zerolog.Logger
}

// NewTracker creates an empty tracker. priceBreakFirst selects which break
// condition is recorded when a price break and a swing break land on the
// same bar.
func NewTracker(priceBreakFirst bool, logger zerolog.Logger) *Tracker {
	return &Tracker{
		priceBreakFirst: priceBreakFirst,
		byID:            make(map[string]int),
		activeBull:      -1,
		activeBear:      -1,
		logger:          logger.With().Str("component", "TrendTracker").Logger(),
	}
}

// CanFire reports whether a new signal of the given direction is allowed.
// Only the absence of an active same-direction trend permits firing.
func (t *Tracker) CanFire(dir signals.Direction) bool {
	if dir == signals.Bullish {
		return t.activeBull < 0
	}
	return t.activeBear < 0
}

// StartTrend creates the State for a freshly fired signal. lastHigh and
// lastLow seed the tracked swing levels from the most recent confirmed swing
// of each kind; for a Dow fire these are the broken resistance (or support)
// and the structure's final swing.
func (t *Tracker) StartTrend(sig signals.Signal, lastHigh, lastLow *swings.SwingPoint) (*State, error) {
	if !t.CanFire(sig.Direction) {
		return nil, fmt.Errorf("%w: %s signal %s fired at bar %d while a %s trend is active",
			ErrInvariantViolation, sig.Direction, sig.ID, sig.Index, sig.Direction)
	}

	st := &State{
		SignalID:   sig.ID,
		Direction:  sig.Direction,
		Status:     StatusActive,
		EntryIndex: sig.Index,
	}
	if sig.Direction == signals.Bullish {
		st.Phase = PhaseBullishSignal
	} else {
		st.Phase = PhaseBearishSignal
	}
	if lastHigh != nil {
		st.LastSwingHigh = lastHigh.Price
	}
	if lastLow != nil {
		st.LastSwingLow = lastLow.Price
	}

	idx := len(t.states)
	t.states = append(t.states, st)
	t.byID[sig.ID] = idx
	if sig.Direction == signals.Bullish {
		t.activeBull = idx
	} else {
		t.activeBear = idx
	}

	t.logger.Debug().
		Str("signal_id", sig.ID).
		Str("direction", string(sig.Direction)).
		Int("entry_index", sig.Index).
		Msg("trend started")

	return st, nil
}

// Advance feeds the next bar to every active state. swing is the swing point
// confirmed at this bar, or nil. It returns the states that broke on this
// bar, in firing order.
func (t *Tracker) Advance(bar marketdata.Bar, swing *swings.SwingPoint) []*State {
	var broken []*State
	for i, st := range t.states {
		if !st.Active() {
			continue
		}
		// Signal phases are exactly one bar long; the state was created on
		// the firing bar, so the first Advance promotes it.
		switch st.Phase {
		case PhaseBullishSignal:
			st.Phase = PhaseUptrend
		case PhaseBearishSignal:
			st.Phase = PhaseDowntrend
		}

		if t.advanceState(st, bar, swing) {
			broken = append(broken, st)
			if t.activeBull == i {
				t.activeBull = -1
			}
			if t.activeBear == i {
				t.activeBear = -1
			}
		}
	}
	return broken
}

// advanceState applies the per-bar transition rules to one state and reports
// whether it broke on this bar.
func (t *Tracker) advanceState(st *State, bar marketdata.Bar, swing *swings.SwingPoint) bool {
	var priceBreak bool
	var swingBreak bool

	if st.Phase == PhaseUptrend {
		priceBreak = bar.Low < st.LastSwingLow

		if swing != nil {
			switch swing.Kind {
			case swings.High:
				if swing.Price < st.LastSwingHigh {
					swingBreak = true // lower high, structural weakening
				} else {
					st.LastSwingHigh = swing.Price
				}
			case swings.Low:
				// During an active uptrend the tracked low only ratchets up.
				if swing.Price > st.LastSwingLow {
					st.LastSwingLow = swing.Price
				}
			}
		}
	} else {
		priceBreak = bar.High > st.LastSwingHigh

		if swing != nil {
			switch swing.Kind {
			case swings.Low:
				if swing.Price > st.LastSwingLow {
					swingBreak = true // higher low, selling exhaustion
				} else {
					st.LastSwingLow = swing.Price
				}
			case swings.High:
				if swing.Price < st.LastSwingHigh {
					st.LastSwingHigh = swing.Price
				}
			}
		}
	}

	if !priceBreak && !swingBreak {
		return false
	}

	reason := BreakSwing
	if t.priceBreakFirst {
		if priceBreak {
			reason = BreakPrice
		}
	} else {
		if swingBreak {
			reason = BreakSwing
		} else {
			reason = BreakPrice
		}
	}

	idx := bar.Index
	st.Phase = PhaseTrendEnd
	st.Status = StatusBroken
	st.BreakIndex = &idx
	st.BreakReason = reason

	t.logger.Debug().
		Str("signal_id", st.SignalID).
		Int("break_index", idx).
		Str("reason", string(reason)).
		Msg("trend ended")

	return true
}

// States returns every state created during the run, in firing order.
func (t *Tracker) States() []*State {
	return t.states
}

// ActiveStates returns the states still running; at the end of a series
// these become right-censored outcomes.
func (t *Tracker) ActiveStates() []*State {
	var active []*State
	for _, st := range t.states {
		if st.Active() {
			active = append(active, st)
		}
	}
	return active
}

// StateFor looks up the state created for a signal ID.
func (t *Tracker) StateFor(signalID string) (*State, bool) {
	idx, ok := t.byID[signalID]
	if !ok {
		return nil, false
	}
	return t.states[idx], true
}
