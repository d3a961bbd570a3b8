/*

This file defines the capability set any options-protocol implementation
must provide. The vault engine interacts only through this interface and
never through protocol-specific types, so protocols can be swapped without
engine changes.

*/

package adapter

import (
	"errors"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/quillon-fi/ovm/internal/types"
)

var (
	ErrPositionNotFound = errors.New("adapter: position not found")
	ErrUnsupportedTerms = errors.New("adapter: protocol cannot express these terms")
)

// Adapter normalizes one external options protocol into the vault's generic
// terms. The zero payment-asset address means the protocol's native payment
// currency.
type Adapter interface {
	// ProtocolName identifies the wrapped protocol, e.g. "HEGIC".
	ProtocolName() string

	// NonFungible reports whether positions are discrete per-purchase
	// records rather than fungible tokens.
	NonFungible() bool

	// PurchaseMethod is the mechanism purchases go through.
	PurchaseMethod() types.PurchaseMethod

	// LookupOption resolves the position matching the terms, if the
	// protocol has one.
	LookupOption(terms types.OptionTerms) (common.Address, bool, error)

	// TermsOf returns the normalized view of an existing position.
	TermsOf(position common.Address) (types.OptionPosition, error)

	// PremiumQuote prices a purchase of `amount` under `terms`, denominated
	// in paymentAsset.
	PremiumQuote(terms types.OptionTerms, amount sdkmath.Int, paymentAsset common.Address) (sdkmath.Int, error)

	// CanExercise reports whether exercising the position right now would
	// realize a strictly positive profit.
	CanExercise(position common.Address) (bool, error)

	// ExerciseProfit computes the profit exercising would realize, capped
	// at the position's locked collateral.
	ExerciseProfit(position common.Address) (sdkmath.Int, error)

	// Purchase opens a position for the buyer. `value` is the native
	// currency attached to the call; non-native payments must attach zero.
	Purchase(buyer common.Address, terms types.OptionTerms, amount sdkmath.Int, paymentAsset common.Address, value sdkmath.Int) (types.PurchaseRecord, error)

	// Exercise realizes the position's profit to the beneficiary and
	// returns the amount paid out.
	Exercise(position, beneficiary common.Address) (sdkmath.Int, error)
}
