// ./internal/state/parameters_store.go
package state

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/quillon-fi/ovm/internal/types"
)

// SaveStrategyParameters stores a new version of the strategy parameters
// under the given config name. When makeActive is true any previously
// active version for that name is deactivated in the same transaction.
func SaveStrategyParameters(params types.StrategyParameters, configName string, version int, makeActive bool) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}
	if configName == "" {
		configName = "default"
	}

	tx, err := DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if makeActive {
		_, err = tx.Exec(
			`UPDATE strategy_parameters SET is_active = FALSE WHERE config_name = $1 AND is_active = TRUE`,
			configName,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to deactivate previous parameters: %w", err)
		}
	}

	var paramsID int64
	err = tx.QueryRow(
		`INSERT INTO strategy_parameters (
			version, config_name, is_active,
			otm_percent, cycle_days, premium_budget_percent,
			vol_lookback_hours, min_volatility, max_volatility
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING params_id`,
		version, configName, makeActive,
		params.OTMPercent, params.CycleDays, params.PremiumBudgetPercent,
		params.VolLookbackHours, params.MinVolatility, params.MaxVolatility,
	).Scan(&paramsID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert strategy parameters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit strategy parameters: %w", err)
	}

	log.Info().
		Int64("params_id", paramsID).
		Str("config_name", configName).
		Int("version", version).
		Bool("active", makeActive).
		Msg("Strategy parameters saved to database")
	return paramsID, nil
}

// LoadActiveStrategyParameters returns the currently active parameter set for
// the config name, or (nil, 0, nil) when none has been activated yet.
func LoadActiveStrategyParameters(configName string) (*types.StrategyParameters, int64, error) {
	if DB == nil {
		return nil, 0, fmt.Errorf("database not initialized")
	}
	if configName == "" {
		configName = "default"
	}

	var params types.StrategyParameters
	var paramsID int64
	err := DB.QueryRow(
		`SELECT params_id, otm_percent, cycle_days, premium_budget_percent,
		        vol_lookback_hours, min_volatility, max_volatility
		 FROM strategy_parameters
		 WHERE config_name = $1 AND is_active = TRUE
		 ORDER BY activated_at DESC
		 LIMIT 1`,
		configName,
	).Scan(
		&paramsID, &params.OTMPercent, &params.CycleDays, &params.PremiumBudgetPercent,
		&params.VolLookbackHours, &params.MinVolatility, &params.MaxVolatility,
	)
	if err == sql.ErrNoRows {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load active strategy parameters: %w", err)
	}
	return &params, paramsID, nil
}

// NextParametersVersion returns one past the highest stored version for the
// config name, starting at 1 for an unused name.
func NextParametersVersion(configName string) (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}
	if configName == "" {
		configName = "default"
	}

	var maxVersion sql.NullInt64
	err := DB.QueryRow(
		`SELECT MAX(version) FROM strategy_parameters WHERE config_name = $1`,
		configName,
	).Scan(&maxVersion)
	if err != nil {
		return 0, fmt.Errorf("failed to query parameter versions: %w", err)
	}
	if !maxVersion.Valid {
		return 1, nil
	}
	return int(maxVersion.Int64) + 1, nil
}
