package pipeline

import (
	"context"
	"time"

	"market-structure-analyzer/internal/events"
	"market-structure-analyzer/internal/marketdata"
	"market-structure-analyzer/internal/outcomes"
	"market-structure-analyzer/internal/signals"
	"market-structure-analyzer/internal/swings"
	"market-structure-analyzer/internal/trend"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Malformed-bar policies.
const (
	PolicyAbort = "abort"
	PolicySkip  = "skip"
)

// Config holds the analysis parameters for a run. Zero values fall back to
// the defaults each constructor applies.
type Config struct {
	MalformedPolicy string
	PriceBreakFirst bool
	Horizon         int
	SMAShort        int
	SMALong         int
	TwelveBarWindow int
}

// Result is the complete output of one run. Classifications align with the
// accepted bars of the series; swings, signals and outcomes are in
// confirmation/firing order.
type Result struct {
	RunID       string                    `json:"run_id"`
	Symbol      string                    `json:"symbol"`
	Fingerprint string                    `json:"fingerprint"`
	BarCount    int                       `json:"bar_count"`
	CreatedAt   time.Time                 `json:"created_at"`
	Bars        []marketdata.Bar          `json:"-"`
	Types       []marketdata.BarType      `json:"classifications"`
	Swings      []swings.SwingPoint       `json:"swings"`
	Signals     []signals.Signal          `json:"signals"`
	Outcomes    []outcomes.Outcome        `json:"outcomes"`
	TrendStates []*trend.State            `json:"trend_states"`
	Rejected    []marketdata.RejectedBar  `json:"rejected,omitempty"`
}

// Pipeline runs the classification stages over a bar series. Each Run builds
// fresh detector and tracker instances, so one Pipeline can serve any number
// of sequential runs; concurrent runs each construct their own.
type Pipeline struct {
	cfg    Config
	bus    *events.EventBus
	logger zerolog.Logger
}

// New creates a pipeline. bus may be nil when no event streaming is wanted.
func New(cfg Config, bus *events.EventBus, logger zerolog.Logger) *Pipeline {
	if cfg.MalformedPolicy == "" {
		cfg.MalformedPolicy = PolicyAbort
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = outcomes.DefaultHorizon
	}
	return &Pipeline{
		cfg:    cfg,
		bus:    bus,
		logger: logger.With().Str("component", "Pipeline").Logger(),
	}
}

// Run executes one full analysis pass over the given bars.
func (p *Pipeline) Run(ctx context.Context, symbol string, bars []marketdata.Bar) (*Result, error) {
	var (
		series   *marketdata.Series
		rejected []marketdata.RejectedBar
		err      error
	)
	if p.cfg.MalformedPolicy == PolicySkip {
		series, rejected, err = marketdata.NewSeriesSkipMalformed(symbol, bars)
	} else {
		series, err = marketdata.NewSeries(symbol, bars)
	}
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:       uuid.New().String(),
		Symbol:      symbol,
		Fingerprint: series.Fingerprint(),
		BarCount:    series.Len(),
		CreatedAt:   time.Now().UTC(),
		Bars:        series.Bars,
		Rejected:    rejected,
	}

	if p.bus != nil {
		p.bus.PublishRunStarted(res.RunID, symbol, res.BarCount)
	}
	p.logger.Info().
		Str("run_id", res.RunID).
		Str("symbol", symbol).
		Int("bars", res.BarCount).
		Int("rejected", len(rejected)).
		Msg("run started")

	fail := func(err error) (*Result, error) {
		if p.bus != nil {
			p.bus.PublishRunFailed(res.RunID, symbol, err.Error())
		}
		p.logger.Error().
			Err(err).
			Str("run_id", res.RunID).
			Str("symbol", symbol).
			Msg("run failed")
		return nil, err
	}

	swingDet := swings.NewDetector()
	tracker := trend.NewTracker(p.cfg.PriceBreakFirst, p.logger)
	reversal := signals.NewDowntrendReversal()
	detectors := []signals.Detector{
		signals.NewDowBullish(),
		signals.NewDowBearish(),
		reversal,
		signals.NewTwelveBar(p.cfg.TwelveBarWindow),
		signals.NewSMACross(p.cfg.SMAShort, p.cfg.SMALong),
	}
	for _, det := range detectors {
		if primer, ok := det.(signals.Primer); ok {
			primer.Prime(series.Bars)
		}
	}

	var prev *marketdata.Bar
	var lastHigh, lastLow *swings.SwingPoint

	for i := range series.Bars {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		bar := series.Bars[i]

		barType := marketdata.Classify(bar, prev)
		res.Types = append(res.Types, barType)

		sp, err := swingDet.Observe(bar, barType)
		if err != nil {
			return fail(err)
		}
		if sp != nil {
			res.Swings = append(res.Swings, *sp)
			if sp.Kind == swings.High {
				lastHigh = sp
			} else {
				lastLow = sp
			}
			if p.bus != nil {
				p.bus.PublishSwingConfirmed(res.RunID, symbol, string(sp.Kind), sp.Index, sp.Price, sp.ConfirmedIndex)
			}
		}

		// Breaks are evaluated before new signals fire, so a trend never
		// breaks on its own entry bar.
		for _, st := range tracker.Advance(bar, sp) {
			if p.bus != nil {
				p.bus.PublishTrendEnded(res.RunID, symbol, st.SignalID, string(st.BreakReason), *st.BreakIndex)
			}
		}

		for _, det := range detectors {
			sig := det.Observe(bar, sp, tracker)
			if sig == nil {
				continue
			}
			res.Signals = append(res.Signals, *sig)
			if p.bus != nil {
				p.bus.PublishSignalFired(res.RunID, symbol, sig.ID, sig.Detector, string(sig.Direction), sig.Index, sig.TriggerPrice)
			}
			p.logger.Info().
				Str("run_id", res.RunID).
				Str("detector", sig.Detector).
				Str("direction", string(sig.Direction)).
				Int("index", sig.Index).
				Msg("signal fired")

			if sig.Detector == signals.DetectorDowBullish || sig.Detector == signals.DetectorDowBearish {
				if _, err := tracker.StartTrend(*sig, lastHigh, lastLow); err != nil {
					return fail(err)
				}
				if sig.Direction == signals.Bearish {
					reversal.Arm(lastHigh, lastLow)
				}
			}
		}

		prev = &series.Bars[i]
	}

	for i := range res.Signals {
		sig := &res.Signals[i]
		if st, ok := tracker.StateFor(sig.ID); ok {
			if out, ok := outcomes.FromTrendState(st, sig, series.Bars); ok {
				res.Outcomes = append(res.Outcomes, *out)
			}
			continue
		}
		if out, ok := outcomes.FixedHorizon(sig, series.Bars, p.cfg.Horizon); ok {
			res.Outcomes = append(res.Outcomes, *out)
		}
	}
	res.TrendStates = tracker.States()

	if p.bus != nil {
		p.bus.PublishRunCompleted(res.RunID, symbol, len(res.Swings), len(res.Signals), len(res.Outcomes))
	}
	p.logger.Info().
		Str("run_id", res.RunID).
		Int("swings", len(res.Swings)).
		Int("signals", len(res.Signals)).
		Int("outcomes", len(res.Outcomes)).
		Msg("run completed")

	return res, nil
}
