package state

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// VaultSummary represents high-level vault statistics for the dashboard.
// Amounts stay as base-unit decimal strings all the way to the API.
type VaultSummary struct {
	TotalBalance string `json:"total_balance"`
	FreeBalance  string `json:"free_balance"`
	TotalCycles  int    `json:"total_cycles"`
	LastPhase    string `json:"last_phase"`
	LastUpdated  string `json:"last_updated"`
}

// PerformanceMetrics represents aggregated performance data across cycles.
type PerformanceMetrics struct {
	TotalRealizedProfit string `json:"total_realized_profit"`
	TotalPremiumSpent   string `json:"total_premium_spent"`
	TotalCycles         int    `json:"total_cycles"`
	RedeemedCycles      int    `json:"redeemed_cycles"`
	ProfitableCycles    int    `json:"profitable_cycles"`
}

// GetVaultSummary retrieves high-level vault statistics from the latest
// journaled cycle snapshot.
func GetVaultSummary() (*VaultSummary, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	summary := &VaultSummary{
		TotalBalance: "0",
		FreeBalance:  "0",
	}

	query := `
		SELECT final_total_balance, final_free_balance, phase, snapshot_timestamp
		FROM cycle_snapshots
		ORDER BY snapshot_timestamp DESC
		LIMIT 1
	`

	var total, free, phase string
	var lastUpdated sql.NullString
	err := DB.QueryRow(query).Scan(&total, &free, &phase, &lastUpdated)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get latest vault balances: %w", err)
	}
	if err == nil {
		summary.TotalBalance = total
		summary.FreeBalance = free
		summary.LastPhase = phase
		if lastUpdated.Valid {
			summary.LastUpdated = lastUpdated.String
		}
	}

	err = DB.QueryRow(`SELECT COUNT(DISTINCT cycle_id) FROM cycle_snapshots`).Scan(&summary.TotalCycles)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get total cycle count")
	}

	log.Info().
		Str("totalBalance", summary.TotalBalance).
		Int("totalCycles", summary.TotalCycles).
		Msg("Retrieved vault summary")
	return summary, nil
}

// GetPerformanceMetrics retrieves aggregated performance metrics over all
// redeemed cycles.
func GetPerformanceMetrics() (*PerformanceMetrics, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	metrics := &PerformanceMetrics{}

	// Only "redeemed" rows carry a final realized result; earlier phases of
	// the same cycle would double-count premiums.
	query := `
		SELECT
			COALESCE(SUM(realized_profit), 0)::TEXT AS total_realized_profit,
			COALESCE(SUM(premium), 0)::TEXT AS total_premium_spent,
			COUNT(*) AS redeemed_cycles,
			COUNT(CASE WHEN realized_profit > 0 THEN 1 END) AS profitable_cycles
		FROM cycle_snapshots
		WHERE phase = 'redeemed'
	`

	err := DB.QueryRow(query).Scan(
		&metrics.TotalRealizedProfit,
		&metrics.TotalPremiumSpent,
		&metrics.RedeemedCycles,
		&metrics.ProfitableCycles,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get performance metrics: %w", err)
	}

	err = DB.QueryRow(`SELECT COUNT(DISTINCT cycle_id) FROM cycle_snapshots`).Scan(&metrics.TotalCycles)
	if err != nil {
		return nil, fmt.Errorf("failed to get total cycle count: %w", err)
	}

	log.Info().
		Str("totalRealizedProfit", metrics.TotalRealizedProfit).
		Int("totalCycles", metrics.TotalCycles).
		Msg("Retrieved performance metrics")
	return metrics, nil
}

// GetCycleByID retrieves a specific cycle snapshot row by its snapshot id.
func GetCycleByID(snapshotID int64) (*CycleRow, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT snapshot_id, cycle_id, cycle_number, snapshot_timestamp,
		       option_address, option_type, strike_price, expiry,
		       purchase_amount, premium, realized_profit, phase
		FROM cycle_snapshots
		WHERE snapshot_id = $1
	`

	var row CycleRow
	err := DB.QueryRow(query, snapshotID).Scan(
		&row.SnapshotID, &row.CycleID, &row.CycleNumber, &row.Timestamp,
		&row.OptionAddress, &row.OptionType, &row.StrikePrice, &row.Expiry,
		&row.PurchaseAmount, &row.Premium, &row.RealizedProfit, &row.Phase,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("cycle with ID %d not found", snapshotID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cycle by ID: %w", err)
	}
	return &row, nil
}

// CycleRow is the API-facing shape of one cycle snapshot, amounts as strings.
type CycleRow struct {
	SnapshotID     int64  `json:"snapshot_id"`
	CycleID        string `json:"cycle_id"`
	CycleNumber    int    `json:"cycle_number"`
	Timestamp      string `json:"timestamp"`
	OptionAddress  string `json:"option_address"`
	OptionType     string `json:"option_type"`
	StrikePrice    string `json:"strike_price"`
	Expiry         string `json:"expiry"`
	PurchaseAmount string `json:"purchase_amount"`
	Premium        string `json:"premium"`
	RealizedProfit string `json:"realized_profit"`
	Phase          string `json:"phase"`
}
