/*

This file defines the asset collaborator interfaces the engine and adapters
program against: ERC20-style transfer/approve ledgers, native-currency
balances, and the wrapped-native bridge between the two.

*/

package assets

import (
	"errors"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// Error definitions for zero-tolerance error handling
var (
	ErrUnknownAsset          = errors.New("asset ledger not registered")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrZeroAddress           = errors.New("address is zero")
)

// Ledger provides ERC20-style bookkeeping for a single asset. Callers are
// trusted to pass the correct acting party as `from`/`spender`; the live
// implementation enforces that through transaction signing instead.
type Ledger interface {
	BalanceOf(addr common.Address) (sdkmath.Int, error)
	Transfer(from, to common.Address, amount sdkmath.Int) error
	Approve(owner, spender common.Address, amount sdkmath.Int) error
	Allowance(owner, spender common.Address) (sdkmath.Int, error)
	TransferFrom(spender, from, to common.Address, amount sdkmath.Int) error
}

// Bank aggregates the per-asset ledgers and the native-currency balances of
// one execution environment.
type Bank interface {
	Ledger(asset common.Address) (Ledger, error)
	NativeBalance(addr common.Address) (sdkmath.Int, error)
	NativeTransfer(from, to common.Address, amount sdkmath.Int) error
}

// Wrapper converts native currency into its wrapped token form and back.
type Wrapper interface {
	// Asset is the address of the wrapped token's ledger.
	Asset() common.Address
	// Wrap converts `amount` of addr's native balance into wrapped tokens.
	Wrap(addr common.Address, amount sdkmath.Int) error
	// Unwrap converts `amount` of addr's wrapped tokens back to native.
	Unwrap(addr common.Address, amount sdkmath.Int) error
}
