package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB creates a new database connection
func NewDB(connString string) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	// Configure connection pool
	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log.Println("Successfully connected to PostgreSQL")

	return &DB{Pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		log.Println("Database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	log.Println("Running database migrations...")

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS analysis_runs (
			id UUID PRIMARY KEY,
			symbol VARCHAR(40) NOT NULL,
			fingerprint VARCHAR(64) NOT NULL,
			bar_count INTEGER NOT NULL,
			horizon INTEGER NOT NULL,
			rejected_bars JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_runs_symbol ON analysis_runs(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_runs_fingerprint ON analysis_runs(fingerprint)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_runs_created_at ON analysis_runs(created_at)`,

		`CREATE TABLE IF NOT EXISTS run_swings (
			id UUID PRIMARY KEY,
			run_id UUID NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			kind VARCHAR(8) NOT NULL,
			bar_index INTEGER NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			confirmed_index INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_swings_run_id ON run_swings(run_id)`,

		`CREATE TABLE IF NOT EXISTS run_signals (
			id UUID PRIMARY KEY,
			run_id UUID NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
			detector VARCHAR(40) NOT NULL,
			direction VARCHAR(8) NOT NULL,
			bar_index INTEGER NOT NULL,
			trigger_price DOUBLE PRECISION NOT NULL,
			swing1_index INTEGER NOT NULL,
			swing2_index INTEGER NOT NULL,
			breakout_index INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_signals_run_id ON run_signals(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_run_signals_detector ON run_signals(detector)`,

		`CREATE TABLE IF NOT EXISTS run_outcomes (
			id UUID PRIMARY KEY,
			run_id UUID NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
			signal_id UUID NOT NULL,
			detector VARCHAR(40) NOT NULL,
			direction VARCHAR(8) NOT NULL,
			basis VARCHAR(12) NOT NULL,
			entry_index INTEGER NOT NULL,
			entry_price DOUBLE PRECISION NOT NULL,
			end_index INTEGER NOT NULL,
			duration INTEGER NOT NULL,
			magnitude_pct DOUBLE PRECISION NOT NULL,
			mfe_pct DOUBLE PRECISION NOT NULL,
			mfe_index INTEGER NOT NULL,
			mae_pct DOUBLE PRECISION NOT NULL,
			mae_index INTEGER NOT NULL,
			censored BOOLEAN NOT NULL,
			break_reason VARCHAR(16)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_outcomes_run_id ON run_outcomes(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_run_outcomes_signal_id ON run_outcomes(signal_id)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	log.Println("Database migrations completed")
	return nil
}
