/*

This file contains the protocol-agnostic option types. The vault engine and
the settlement layer speak these terms only; adapters translate them into
whatever the target protocol understands.

*/

package types

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// OptionType distinguishes puts from calls.
type OptionType uint8

const (
	OptionInvalid OptionType = iota
	OptionPut
	OptionCall
)

// Valid reports whether the option type is one of the supported values.
func (t OptionType) Valid() bool {
	return t == OptionPut || t == OptionCall
}

func (t OptionType) String() string {
	switch t {
	case OptionPut:
		return "put"
	case OptionCall:
		return "call"
	default:
		return fmt.Sprintf("invalid(%d)", uint8(t))
	}
}

// PurchaseMethod is the mechanism an adapter prefers for acquiring positions.
type PurchaseMethod uint8

const (
	PurchaseMethodInvalid PurchaseMethod = iota
	// PurchaseMethodContract buys directly from the protocol contract.
	PurchaseMethodContract
	// PurchaseMethodOrderMatch buys through a bilateral signed-order settlement.
	PurchaseMethodOrderMatch
)

func (m PurchaseMethod) String() string {
	switch m {
	case PurchaseMethodContract:
		return "contract"
	case PurchaseMethodOrderMatch:
		return "order_match"
	default:
		return fmt.Sprintf("invalid(%d)", uint8(m))
	}
}

// OptionTerms describes an option position in generic terms.
// StrikePrice always carries 18 decimals here; adapters rescale into the
// target protocol's own fixed-point convention.
type OptionTerms struct {
	Underlying  common.Address `json:"underlying"`
	StrikeAsset common.Address `json:"strike_asset"`
	Expiry      time.Time      `json:"expiry"`
	StrikePrice sdkmath.Int    `json:"strike_price"`
	OptionType  OptionType     `json:"option_type"`
}

// Validate checks the terms for structural soundness. It does not check
// expiry against the clock; timing gates belong to the engine.
func (t OptionTerms) Validate() error {
	if t.Underlying == (common.Address{}) {
		return fmt.Errorf("option terms: underlying address is zero")
	}
	if t.StrikeAsset == (common.Address{}) {
		return fmt.Errorf("option terms: strike asset address is zero")
	}
	if t.StrikePrice.IsNil() || !t.StrikePrice.IsPositive() {
		return fmt.Errorf("option terms: strike price must be positive")
	}
	if !t.OptionType.Valid() {
		return fmt.Errorf("option terms: unknown option type %d", t.OptionType)
	}
	return nil
}

// PositionState mirrors the settlement state a protocol reports for one
// non-fungible position.
type PositionState uint8

const (
	PositionUnknown PositionState = iota
	PositionActive
	PositionExercised
	PositionExpired
)

func (s PositionState) String() string {
	switch s {
	case PositionActive:
		return "active"
	case PositionExercised:
		return "exercised"
	case PositionExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// OptionPosition is the adapter-normalized view of a held position.
type OptionPosition struct {
	ID               common.Address `json:"id"`
	Holder           common.Address `json:"holder"`
	Terms            OptionTerms    `json:"terms"`
	Amount           sdkmath.Int    `json:"amount"`            // purchase size in underlying units
	LockedCollateral sdkmath.Int    `json:"locked_collateral"` // collateral the protocol reserved for this position
	State            PositionState  `json:"state"`
}
