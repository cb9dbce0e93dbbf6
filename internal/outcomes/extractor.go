package outcomes

import (
	"sort"

	"market-structure-analyzer/internal/marketdata"
	"market-structure-analyzer/internal/signals"
	"market-structure-analyzer/internal/trend"
)

// Basis says what ended the measurement window.
type Basis string

const (
	// BasisTrendBreak measures from entry to the bar that broke the trend.
	BasisTrendBreak Basis = "trend_break"
	// BasisHorizon measures over a fixed number of bars after entry.
	BasisHorizon Basis = "horizon"
)

// DefaultHorizon is the holding period used for signals that do not start a
// tracked trend.
const DefaultHorizon = 52

// Outcome is the measured result of one signal. Indices are bar indices as
// carried on the series, not slice positions. MFE and MAE are percentages
// relative to the entry price; for a bullish signal MFE is taken from bar
// highs and MAE from bar lows, mirrored for bearish.
type Outcome struct {
	SignalID     string            `json:"signal_id"`
	Detector     string            `json:"detector"`
	Direction    signals.Direction `json:"direction"`
	Basis        Basis             `json:"basis"`
	EntryIndex   int               `json:"entry_index"`
	EntryPrice   float64           `json:"entry_price"`
	EndIndex     int               `json:"end_index"`
	Duration     int               `json:"duration"`
	MagnitudePct float64           `json:"magnitude_pct"`
	MFEPct       float64           `json:"mfe_pct"`
	MFEIndex     int               `json:"mfe_index"`
	MAEPct       float64           `json:"mae_pct"`
	MAEIndex     int               `json:"mae_index"`
	Censored     bool              `json:"censored"`
	BreakReason  trend.BreakReason `json:"break_reason,omitempty"`
}

// position maps a bar index to its slice position. Bars are ordered by index
// but indices need not be contiguous.
func position(bars []marketdata.Bar, index int) (int, bool) {
	p := sort.Search(len(bars), func(i int) bool { return bars[i].Index >= index })
	if p == len(bars) || bars[p].Index != index {
		return 0, false
	}
	return p, true
}

// FromTrendState measures a signal against its tracked trend. The window runs
// from the signal bar to the break bar, or to the last bar with the outcome
// marked censored when the trend never broke.
func FromTrendState(state *trend.State, sig *signals.Signal, bars []marketdata.Bar) (*Outcome, bool) {
	entryPos, ok := position(bars, sig.Index)
	if !ok || len(bars) == 0 {
		return nil, false
	}

	endPos := len(bars) - 1
	censored := true
	var reason trend.BreakReason
	if state.BreakIndex != nil {
		if p, ok := position(bars, *state.BreakIndex); ok {
			endPos = p
			censored = false
			reason = state.BreakReason
		}
	}

	out := measure(sig, bars, entryPos, endPos)
	out.Basis = BasisTrendBreak
	out.Censored = censored
	out.BreakReason = reason
	return out, true
}

// FixedHorizon measures a signal over a fixed holding period. A horizon that
// runs past the end of the series is truncated and the outcome marked
// censored.
func FixedHorizon(sig *signals.Signal, bars []marketdata.Bar, horizon int) (*Outcome, bool) {
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	entryPos, ok := position(bars, sig.Index)
	if !ok || len(bars) == 0 {
		return nil, false
	}

	endPos := entryPos + horizon
	censored := false
	if endPos >= len(bars) {
		endPos = len(bars) - 1
		censored = true
	}

	out := measure(sig, bars, entryPos, endPos)
	out.Basis = BasisHorizon
	out.Censored = censored
	return out, true
}

func measure(sig *signals.Signal, bars []marketdata.Bar, entryPos, endPos int) *Outcome {
	entry := bars[entryPos].Close
	endClose := bars[endPos].Close

	out := &Outcome{
		SignalID:     sig.ID,
		Detector:     sig.Detector,
		Direction:    sig.Direction,
		EntryIndex:   bars[entryPos].Index,
		EntryPrice:   entry,
		EndIndex:     bars[endPos].Index,
		Duration:     bars[endPos].Index - bars[entryPos].Index,
		MagnitudePct: (endClose - entry) / entry * 100,
		MFEIndex:     bars[entryPos].Index,
		MAEIndex:     bars[entryPos].Index,
	}

	bestFav := entry
	worstAdv := entry
	for p := entryPos; p <= endPos; p++ {
		b := bars[p]
		if sig.Direction == signals.Bullish {
			if b.High > bestFav {
				bestFav = b.High
				out.MFEIndex = b.Index
			}
			if b.Low < worstAdv {
				worstAdv = b.Low
				out.MAEIndex = b.Index
			}
		} else {
			if b.Low < bestFav {
				bestFav = b.Low
				out.MFEIndex = b.Index
			}
			if b.High > worstAdv {
				worstAdv = b.High
				out.MAEIndex = b.Index
			}
		}
	}

	if sig.Direction == signals.Bullish {
		out.MFEPct = (bestFav - entry) / entry * 100
		out.MAEPct = (worstAdv - entry) / entry * 100
	} else {
		out.MFEPct = (entry - bestFav) / entry * 100
		out.MAEPct = (entry - worstAdv) / entry * 100
	}
	return out
}
