/*

This file contains the default strategy parameters for the OVM.

These parameters are designed for managing pooled depositor capital in a
production environment. Each value balances premium spend against the odds of
a profitable exercise.

*/

package config

import (
	"github.com/quillon-fi/ovm/internal/types"
)

// DefaultStrategyParameters provides a baseline set of parameters for the
// option-cycle manager. These values are used if no active parameters are
// found in the database during initialization.
var DefaultStrategyParameters = types.StrategyParameters{
	OTMPercent: 0.10, // Strike 10% out of the money.
	// Rationale: close-to-the-money options cost too much premium per cycle;
	// deep OTM options almost never pay. 10% keeps the premium affordable
	// while leaving a realistic path to exercise on a volatile week.

	CycleDays: 7, // Weekly option tenor.
	// Rationale: weekly cycles keep capital turnover high and limit how long
	// depositor funds stay locked behind a single position. Longer tenors
	// compound oracle drift into the exercise decision.

	PremiumBudgetPercent: 0.05, // Spend at most 5% of free balance per cycle.
	// Rationale: premium is the only capital the vault can actually lose in
	// a cycle. Capping it at 5% bounds the worst-case weekly drawdown while
	// leaving enough size for exercise profits to matter.

	VolLookbackHours: 720, // 30 days of hourly data.
	// Rationale: matches the window the volatility estimator was calibrated
	// against; shorter windows overreact to single-day moves.

	MinVolatility: 0.30, // Skip cycles below 30% annualized vol.
	// Rationale: in quiet markets OTM options expire worthless almost
	// surely; holding cash beats paying premium.

	MaxVolatility: 2.50, // Skip cycles above 250% annualized vol.
	// Rationale: extreme prints usually mean broken price data or a market
	// dislocation where quoted premiums are unreliable.
}
