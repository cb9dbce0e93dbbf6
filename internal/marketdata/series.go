package marketdata

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
)

// Series is a validated, chronologically ordered bar sequence for one
// instrument. Construction is the only way to obtain one, so downstream
// stages can rely on strictly increasing indices and well-formed bars
// (unless the caller opted into skip-and-report, in which case rejected
// bars are excluded here and reported separately).
type Series struct {
	Symbol string
	Bars   []Bar
}

// RejectedBar records a bar excluded under the skip-and-report policy.
type RejectedBar struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// NewSeries validates ordering and bar contents. Any malformed bar or
// index violation fails construction; callers wanting skip semantics use
// NewSeriesSkipMalformed.
func NewSeries(symbol string, bars []Bar) (*Series, error) {
	s, rejected, err := buildSeries(symbol, bars, false)
	if err != nil {
		return nil, err
	}
	_ = rejected // empty by construction when skipping is off
	return s, nil
}

// NewSeriesSkipMalformed validates ordering strictly but excludes malformed
// bars instead of failing, reporting each exclusion. Sequence violations
// remain fatal: a disordered input cannot be repaired by skipping.
func NewSeriesSkipMalformed(symbol string, bars []Bar) (*Series, []RejectedBar, error) {
	return buildSeries(symbol, bars, true)
}

func buildSeries(symbol string, bars []Bar, skipMalformed bool) (*Series, []RejectedBar, error) {
	kept := make([]Bar, 0, len(bars))
	var rejected []RejectedBar

	lastIndex := 0
	haveLast := false
	for _, bar := range bars {
		if haveLast && bar.Index <= lastIndex {
			return nil, nil, fmt.Errorf("%w: index %d after %d", ErrSequenceViolation, bar.Index, lastIndex)
		}
		lastIndex = bar.Index
		haveLast = true

		if err := bar.Validate(); err != nil {
			if skipMalformed {
				rejected = append(rejected, RejectedBar{Index: bar.Index, Reason: err.Error()})
				continue
			}
			return nil, nil, err
		}
		kept = append(kept, bar)
	}

	return &Series{Symbol: symbol, Bars: kept}, rejected, nil
}

// Len returns the number of accepted bars.
func (s *Series) Len() int {
	return len(s.Bars)
}

// Fingerprint returns a stable SHA-256 hex digest over the symbol and the
// full OHLC content. Identical series always fingerprint identically, so
// the digest doubles as an idempotency key for analysis runs.
func (s *Series) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(s.Symbol))
	buf := make([]byte, 8)
	for _, bar := range s.Bars {
		binary.LittleEndian.PutUint64(buf, uint64(bar.Index))
		h.Write(buf)
		for _, v := range []float64{bar.Open, bar.High, bar.Low, bar.Close} {
			binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
			h.Write(buf)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
