/*

This file manages the persistent global cycle counter for the OVM system.
The counter survives restarts so cycle numbers in the journal stay unique
and monotonically increasing across process lifetimes.

*/

package state

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// GetCurrentCycleNumber returns the current global cycle number.
func GetCurrentCycleNumber() (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	var cycle int
	err := DB.QueryRow(`SELECT current_cycle FROM cycle_counter WHERE id = 1`).Scan(&cycle)
	if err != nil {
		return 0, fmt.Errorf("failed to read cycle counter: %w", err)
	}
	return cycle, nil
}

// IncrementCycleNumber atomically advances the global cycle counter and
// returns the new value.
func IncrementCycleNumber() (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	var cycle int
	err := DB.QueryRow(
		`UPDATE cycle_counter
		 SET current_cycle = current_cycle + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = 1
		 RETURNING current_cycle`,
	).Scan(&cycle)
	if err != nil {
		return 0, fmt.Errorf("failed to increment cycle counter: %w", err)
	}

	log.Info().Int("cycle_number", cycle).Msg("Advanced global cycle counter")
	return cycle, nil
}

// ResetCycleNumber sets the global cycle counter back to zero. Used by the
// database reset script, never by the running service.
func ResetCycleNumber() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	_, err := DB.Exec(
		`UPDATE cycle_counter
		 SET current_cycle = 0, updated_at = CURRENT_TIMESTAMP
		 WHERE id = 1`,
	)
	if err != nil {
		return fmt.Errorf("failed to reset cycle counter: %w", err)
	}

	log.Warn().Msg("Global cycle counter reset to 0")
	return nil
}
