// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
// Amount columns use NUMERIC(78, 0): wide enough for any 256-bit integer in
// base units, no floating point anywhere near depositor balances.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS strategy_parameters (
			params_id SERIAL PRIMARY KEY,
			version INTEGER NOT NULL DEFAULT 1,
			config_name VARCHAR(255) NOT NULL DEFAULT 'default',
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			activated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			otm_percent DECIMAL(10, 4) NOT NULL,
			cycle_days INTEGER NOT NULL,
			premium_budget_percent DECIMAL(10, 4) NOT NULL,
			vol_lookback_hours INTEGER NOT NULL,
			min_volatility DECIMAL(10, 4) NOT NULL,
			max_volatility DECIMAL(10, 4) NOT NULL,
			CONSTRAINT uq_strategy_parameters_config_version UNIQUE (config_name, version)
		);
		CREATE INDEX IF NOT EXISTS idx_strategy_parameters_config_active ON strategy_parameters(config_name, is_active, activated_at DESC);

		-- Migration: the volatility band was added after the first deploys.
		ALTER TABLE strategy_parameters ADD COLUMN IF NOT EXISTS min_volatility DECIMAL(10, 4) DEFAULT 0.30;
		ALTER TABLE strategy_parameters ADD COLUMN IF NOT EXISTS max_volatility DECIMAL(10, 4) DEFAULT 2.50;
		ALTER TABLE strategy_parameters ALTER COLUMN min_volatility SET NOT NULL;
		ALTER TABLE strategy_parameters ALTER COLUMN max_volatility SET NOT NULL;

		CREATE TABLE IF NOT EXISTS deposit_receipts (
			receipt_id SERIAL PRIMARY KEY,
			receipt_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			account VARCHAR(42) NOT NULL,
			amount NUMERIC(78, 0) NOT NULL,
			shares_minted NUMERIC(78, 0) NOT NULL,
			total_balance NUMERIC(78, 0) NOT NULL,
			share_supply NUMERIC(78, 0) NOT NULL,
			native BOOLEAN NOT NULL DEFAULT FALSE
		);
		CREATE INDEX IF NOT EXISTS idx_deposit_receipts_timestamp ON deposit_receipts(receipt_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_deposit_receipts_account ON deposit_receipts(account);

		CREATE TABLE IF NOT EXISTS withdrawal_receipts (
			receipt_id SERIAL PRIMARY KEY,
			receipt_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			account VARCHAR(42) NOT NULL,
			shares_burned NUMERIC(78, 0) NOT NULL,
			gross_amount NUMERIC(78, 0) NOT NULL,
			fee NUMERIC(78, 0) NOT NULL,
			net_amount NUMERIC(78, 0) NOT NULL,
			total_balance NUMERIC(78, 0) NOT NULL,
			share_supply NUMERIC(78, 0) NOT NULL,
			native BOOLEAN NOT NULL DEFAULT FALSE
		);
		CREATE INDEX IF NOT EXISTS idx_withdrawal_receipts_timestamp ON withdrawal_receipts(receipt_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_withdrawal_receipts_account ON withdrawal_receipts(account);

		CREATE TABLE IF NOT EXISTS cycle_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			cycle_id VARCHAR(36) NOT NULL,
			cycle_number INTEGER NOT NULL,
			snapshot_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			strategy_params_id INTEGER REFERENCES strategy_parameters(params_id),

			-- The position
			option_address VARCHAR(42) NOT NULL,
			option_type VARCHAR(8) NOT NULL,
			strike_price NUMERIC(78, 0) NOT NULL,
			expiry TIMESTAMPTZ NOT NULL,
			purchase_amount NUMERIC(78, 0) NOT NULL,
			premium NUMERIC(78, 0) NOT NULL,

			-- Balances around the cycle
			initial_total_balance NUMERIC(78, 0) NOT NULL,
			initial_free_balance NUMERIC(78, 0) NOT NULL,
			final_total_balance NUMERIC(78, 0) NOT NULL,
			final_free_balance NUMERIC(78, 0) NOT NULL,
			realized_profit NUMERIC(78, 0) NOT NULL,

			phase VARCHAR(16) NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_cycle_snapshots_timestamp ON cycle_snapshots(snapshot_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_cycle_snapshots_cycle ON cycle_snapshots(cycle_number DESC);
		CREATE INDEX IF NOT EXISTS idx_cycle_snapshots_cycle_id ON cycle_snapshots(cycle_id);

		-- Cycle counter table for persistent global cycle tracking
		CREATE TABLE IF NOT EXISTS cycle_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			current_cycle INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		-- Insert initial row if it doesn't exist
		INSERT INTO cycle_counter (id, current_cycle)
		VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}

// scanAmount converts a NUMERIC column read as text back into an Int.
func scanAmount(value, column string) (sdkmath.Int, error) {
	amount, ok := sdkmath.NewIntFromString(value)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("column %s holds a non-integer value: %q", column, value)
	}
	return amount, nil
}
