// ./internal/state/snapshot_store.go
package state

import (
	"database/sql"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"github.com/quillon-fi/ovm/internal/types"
)

// SaveCycleSnapshot saves a complete cycle snapshot to the database.
func SaveCycleSnapshot(snapshot types.CycleSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO cycle_snapshots (
			cycle_id, cycle_number, snapshot_timestamp, strategy_params_id,
			option_address, option_type, strike_price, expiry, purchase_amount, premium,
			initial_total_balance, initial_free_balance,
			final_total_balance, final_free_balance, realized_profit,
			phase
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING snapshot_id;
	`

	var paramsID interface{}
	if snapshot.StrategyParamsID != 0 {
		paramsID = snapshot.StrategyParamsID
	}

	var snapshotID int64
	err := DB.QueryRow(
		query,
		snapshot.CycleID, snapshot.CycleNumber, snapshot.Timestamp, paramsID,
		snapshot.Option.Hex(), snapshot.OptionType, snapshot.StrikePrice.String(),
		snapshot.Expiry, snapshot.PurchaseAmount.String(), snapshot.Premium.String(),
		snapshot.InitialTotalBalance.String(), snapshot.InitialFreeBalance.String(),
		snapshot.FinalTotalBalance.String(), snapshot.FinalFreeBalance.String(),
		snapshot.RealizedProfit.String(),
		snapshot.Phase,
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to save cycle snapshot: %w", err)
	}

	log.Info().
		Int64("snapshot_id", snapshotID).
		Str("cycle_id", snapshot.CycleID).
		Int("cycle_number", snapshot.CycleNumber).
		Str("phase", snapshot.Phase).
		Msg("Cycle snapshot saved to database")
	return snapshotID, nil
}

// GetRecentCycles retrieves recent cycle snapshots, newest first.
func GetRecentCycles(limit int) ([]types.CycleSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	query := `
		SELECT snapshot_id, cycle_id, cycle_number, snapshot_timestamp, strategy_params_id,
		       option_address, option_type, strike_price, expiry, purchase_amount, premium,
		       initial_total_balance, initial_free_balance,
		       final_total_balance, final_free_balance, realized_profit,
		       phase
		FROM cycle_snapshots
		ORDER BY snapshot_timestamp DESC
		LIMIT $1
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent cycles: %w", err)
	}
	defer rows.Close()

	var cycles []types.CycleSnapshot
	for rows.Next() {
		cycle, err := scanCycleRow(rows)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan cycle row")
			continue
		}
		cycles = append(cycles, cycle)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return cycles, nil
}

func scanCycleRow(rows *sql.Rows) (types.CycleSnapshot, error) {
	var cycle types.CycleSnapshot
	var paramsID sql.NullInt64
	var option, strike, amount, premium string
	var initTotal, initFree, finTotal, finFree, profit string

	err := rows.Scan(
		&cycle.SnapshotID, &cycle.CycleID, &cycle.CycleNumber, &cycle.Timestamp, &paramsID,
		&option, &cycle.OptionType, &strike, &cycle.Expiry, &amount, &premium,
		&initTotal, &initFree,
		&finTotal, &finFree, &profit,
		&cycle.Phase,
	)
	if err != nil {
		return types.CycleSnapshot{}, err
	}
	if paramsID.Valid {
		cycle.StrategyParamsID = paramsID.Int64
	}
	cycle.Option = common.HexToAddress(option)
	if cycle.StrikePrice, err = scanAmount(strike, "strike_price"); err != nil {
		return types.CycleSnapshot{}, err
	}
	if cycle.PurchaseAmount, err = scanAmount(amount, "purchase_amount"); err != nil {
		return types.CycleSnapshot{}, err
	}
	if cycle.Premium, err = scanAmount(premium, "premium"); err != nil {
		return types.CycleSnapshot{}, err
	}
	if cycle.InitialTotalBalance, err = scanAmount(initTotal, "initial_total_balance"); err != nil {
		return types.CycleSnapshot{}, err
	}
	if cycle.InitialFreeBalance, err = scanAmount(initFree, "initial_free_balance"); err != nil {
		return types.CycleSnapshot{}, err
	}
	if cycle.FinalTotalBalance, err = scanAmount(finTotal, "final_total_balance"); err != nil {
		return types.CycleSnapshot{}, err
	}
	if cycle.FinalFreeBalance, err = scanAmount(finFree, "final_free_balance"); err != nil {
		return types.CycleSnapshot{}, err
	}
	if cycle.RealizedProfit, err = scanAmount(profit, "realized_profit"); err != nil {
		return types.CycleSnapshot{}, err
	}
	return cycle, nil
}
