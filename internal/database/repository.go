package database

import (
	"context"
	"encoding/json"
	"fmt"

	"market-structure-analyzer/internal/outcomes"
	"market-structure-analyzer/internal/signals"
	"market-structure-analyzer/internal/swings"
	"market-structure-analyzer/internal/trend"

	"github.com/google/uuid"
)

// Repository provides data access methods
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// SaveRun persists a run and all of its sections in one transaction
func (r *Repository) SaveRun(ctx context.Context, b *RunBundle) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var rejected []byte
	if len(b.Run.RejectedBars) > 0 {
		rejected, err = json.Marshal(b.Run.RejectedBars)
		if err != nil {
			return fmt.Errorf("failed to marshal rejected bars: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO analysis_runs (id, symbol, fingerprint, bar_count, horizon, rejected_bars, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, b.Run.ID, b.Run.Symbol, b.Run.Fingerprint, b.Run.BarCount, b.Run.Horizon, rejected, b.Run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for seq, sp := range b.Swings {
		_, err = tx.Exec(ctx, `
			INSERT INTO run_swings (id, run_id, seq, kind, bar_index, price, confirmed_index)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, uuid.New().String(), b.Run.ID, seq, string(sp.Kind), sp.Index, sp.Price, sp.ConfirmedIndex)
		if err != nil {
			return fmt.Errorf("failed to insert swing: %w", err)
		}
	}

	for _, sig := range b.Signals {
		_, err = tx.Exec(ctx, `
			INSERT INTO run_signals (id, run_id, detector, direction, bar_index, trigger_price, swing1_index, swing2_index, breakout_index)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, sig.ID, b.Run.ID, sig.Detector, string(sig.Direction), sig.Index, sig.TriggerPrice,
			sig.Swing1Index, sig.Swing2Index, sig.BreakoutIndex)
		if err != nil {
			return fmt.Errorf("failed to insert signal: %w", err)
		}
	}

	for _, out := range b.Outcomes {
		var breakReason *string
		if out.BreakReason != "" {
			s := string(out.BreakReason)
			breakReason = &s
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO run_outcomes (id, run_id, signal_id, detector, direction, basis, entry_index, entry_price,
				end_index, duration, magnitude_pct, mfe_pct, mfe_index, mae_pct, mae_index, censored, break_reason)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		`, uuid.New().String(), b.Run.ID, out.SignalID, out.Detector, string(out.Direction), string(out.Basis),
			out.EntryIndex, out.EntryPrice, out.EndIndex, out.Duration, out.MagnitudePct,
			out.MFEPct, out.MFEIndex, out.MAEPct, out.MAEIndex, out.Censored, breakReason)
		if err != nil {
			return fmt.Errorf("failed to insert outcome: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GetRun retrieves a run summary by ID
func (r *Repository) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `
		SELECT id, symbol, fingerprint, bar_count, horizon, rejected_bars, created_at
		FROM analysis_runs
		WHERE id = $1
	`
	run := &Run{}
	var rejected []byte
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&run.ID, &run.Symbol, &run.Fingerprint, &run.BarCount, &run.Horizon, &rejected, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(rejected) > 0 {
		if err := json.Unmarshal(rejected, &run.RejectedBars); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rejected bars: %w", err)
		}
	}
	return run, nil
}

// GetRunByFingerprint retrieves the run summary for a series fingerprint
// analyzed under the given horizon, newest first when the same series was
// analyzed more than once
func (r *Repository) GetRunByFingerprint(ctx context.Context, fingerprint string, horizon int) (*Run, error) {
	query := `
		SELECT id, symbol, fingerprint, bar_count, horizon, rejected_bars, created_at
		FROM analysis_runs
		WHERE fingerprint = $1 AND horizon = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	run := &Run{}
	var rejected []byte
	err := r.db.Pool.QueryRow(ctx, query, fingerprint, horizon).Scan(
		&run.ID, &run.Symbol, &run.Fingerprint, &run.BarCount, &run.Horizon, &rejected, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(rejected) > 0 {
		if err := json.Unmarshal(rejected, &run.RejectedBars); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rejected bars: %w", err)
		}
	}
	return run, nil
}

// ListRuns retrieves recent runs, newest first
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, symbol, fingerprint, bar_count, horizon, rejected_bars, created_at
		FROM analysis_runs
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		var rejected []byte
		if err := rows.Scan(&run.ID, &run.Symbol, &run.Fingerprint, &run.BarCount, &run.Horizon, &rejected, &run.CreatedAt); err != nil {
			return nil, err
		}
		if len(rejected) > 0 {
			if err := json.Unmarshal(rejected, &run.RejectedBars); err != nil {
				return nil, fmt.Errorf("failed to unmarshal rejected bars: %w", err)
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetSwings retrieves the swing sequence of a run in confirmation order
func (r *Repository) GetSwings(ctx context.Context, runID string) ([]swings.SwingPoint, error) {
	query := `
		SELECT kind, bar_index, price, confirmed_index
		FROM run_swings
		WHERE run_id = $1
		ORDER BY seq
	`
	rows, err := r.db.Pool.Query(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []swings.SwingPoint
	for rows.Next() {
		var sp swings.SwingPoint
		var kind string
		if err := rows.Scan(&kind, &sp.Index, &sp.Price, &sp.ConfirmedIndex); err != nil {
			return nil, err
		}
		sp.Kind = swings.Kind(kind)
		result = append(result, sp)
	}
	return result, rows.Err()
}

// GetSignals retrieves the signals of a run in firing order
func (r *Repository) GetSignals(ctx context.Context, runID string) ([]signals.Signal, error) {
	query := `
		SELECT id, detector, direction, bar_index, trigger_price, swing1_index, swing2_index, breakout_index
		FROM run_signals
		WHERE run_id = $1
		ORDER BY bar_index
	`
	rows, err := r.db.Pool.Query(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []signals.Signal
	for rows.Next() {
		var sig signals.Signal
		var direction string
		if err := rows.Scan(&sig.ID, &sig.Detector, &direction, &sig.Index, &sig.TriggerPrice,
			&sig.Swing1Index, &sig.Swing2Index, &sig.BreakoutIndex); err != nil {
			return nil, err
		}
		sig.Direction = signals.Direction(direction)
		result = append(result, sig)
	}
	return result, rows.Err()
}

// GetOutcomes retrieves the outcomes of a run
func (r *Repository) GetOutcomes(ctx context.Context, runID string) ([]outcomes.Outcome, error) {
	query := `
		SELECT signal_id, detector, direction, basis, entry_index, entry_price, end_index, duration,
			magnitude_pct, mfe_pct, mfe_index, mae_pct, mae_index, censored, break_reason
		FROM run_outcomes
		WHERE run_id = $1
		ORDER BY entry_index
	`
	rows, err := r.db.Pool.Query(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []outcomes.Outcome
	for rows.Next() {
		var out outcomes.Outcome
		var direction, basis string
		var breakReason *string
		if err := rows.Scan(&out.SignalID, &out.Detector, &direction, &basis, &out.EntryIndex,
			&out.EntryPrice, &out.EndIndex, &out.Duration, &out.MagnitudePct,
			&out.MFEPct, &out.MFEIndex, &out.MAEPct, &out.MAEIndex, &out.Censored, &breakReason); err != nil {
			return nil, err
		}
		out.Direction = signals.Direction(direction)
		out.Basis = outcomes.Basis(basis)
		if breakReason != nil {
			out.BreakReason = trend.BreakReason(*breakReason)
		}
		result = append(result, out)
	}
	return result, rows.Err()
}

// GetRunBundle retrieves a run with all of its sections
func (r *Repository) GetRunBundle(ctx context.Context, runID string) (*RunBundle, error) {
	run, err := r.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	swingPoints, err := r.GetSwings(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load swings: %w", err)
	}
	sigs, err := r.GetSignals(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load signals: %w", err)
	}
	outs, err := r.GetOutcomes(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load outcomes: %w", err)
	}

	return &RunBundle{Run: *run, Swings: swingPoints, Signals: sigs, Outcomes: outs}, nil
}
