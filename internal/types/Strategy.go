/*

This file contains the manager strategy parameters and the price history
types used to derive them. Parameters are versioned in the database so a
running vault can be retuned without redeploying.

*/

package types

import "time"

// StrategyParameters drive the automated option-cycle manager: how far out of
// the money to strike, how long a cycle runs, and how much of the free
// balance may be spent on premium per cycle.
type StrategyParameters struct {
	// OTMPercent is the distance of the strike from spot, as a fraction
	// (0.10 strikes 10% out of the money in the option's favor direction).
	OTMPercent float64 `json:"otm_percent"`

	// CycleDays is the target option tenor in days.
	CycleDays int `json:"cycle_days"`

	// PremiumBudgetPercent caps the premium spent per cycle as a fraction of
	// the free balance (0.05 = 5%).
	PremiumBudgetPercent float64 `json:"premium_budget_percent"`

	// VolLookbackHours is how much hourly price history feeds the realized
	// volatility estimate.
	VolLookbackHours int `json:"vol_lookback_hours"`

	// MinVolatility and MaxVolatility bound the annualized volatility the
	// manager will act on. Outside the band the cycle is skipped.
	MinVolatility float64 `json:"min_volatility"`
	MaxVolatility float64 `json:"max_volatility"`
}

// PriceData holds one historical price point.
type PriceData struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}
