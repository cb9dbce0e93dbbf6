package database

import (
	"time"

	"market-structure-analyzer/internal/marketdata"
	"market-structure-analyzer/internal/outcomes"
	"market-structure-analyzer/internal/pipeline"
	"market-structure-analyzer/internal/signals"
	"market-structure-analyzer/internal/swings"
)

// Run is the persisted summary row of one analysis run
type Run struct {
	ID           string                   `json:"id"`
	Symbol       string                   `json:"symbol"`
	Fingerprint  string                   `json:"fingerprint"`
	BarCount     int                      `json:"bar_count"`
	Horizon      int                      `json:"horizon"`
	RejectedBars []marketdata.RejectedBar `json:"rejected_bars,omitempty"`
	CreatedAt    time.Time                `json:"created_at"`
}

// RunBundle is a run together with its detail sections, the unit the
// repository saves and loads
type RunBundle struct {
	Run      Run                 `json:"run"`
	Swings   []swings.SwingPoint `json:"swings"`
	Signals  []signals.Signal    `json:"signals"`
	Outcomes []outcomes.Outcome  `json:"outcomes"`
}

// BundleFromResult converts a pipeline result into its persisted form
func BundleFromResult(res *pipeline.Result, horizon int) *RunBundle {
	return &RunBundle{
		Run: Run{
			ID:           res.RunID,
			Symbol:       res.Symbol,
			Fingerprint:  res.Fingerprint,
			BarCount:     res.BarCount,
			Horizon:      horizon,
			RejectedBars: res.Rejected,
			CreatedAt:    res.CreatedAt,
		},
		Swings:   res.Swings,
		Signals:  res.Signals,
		Outcomes: res.Outcomes,
	}
}
