/*

This file contains the payment-conversion collaborator: a constant-product
two-asset pool pairing the native settlement currency with one alternate
payment token. The quoting rule is the standard x*y=k "amount-in for exact
amount-out" formula with a 0.3% fee folded into the 997/1000 factor.

*/

package swap

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/quillon-fi/ovm/internal/assets"
)

var (
	ErrInsufficientLiquidity = errors.New("requested output exceeds pool reserve")
	ErrUnknownPoolAsset      = errors.New("asset is not one of the pool's two sides")
	ErrInvalidAmount         = errors.New("amount must be positive")
)

// NativeAsset is the zero-address sentinel for the pool's native side.
var NativeAsset = common.Address{}

// Pool is the conversion collaborator consumed by adapters.
type Pool interface {
	// Reserve reports the current reserve of one side.
	Reserve(asset common.Address) (sdkmath.Int, error)
	// QuoteAmountIn prices an exact-output swap without executing it.
	QuoteAmountIn(assetOut common.Address, amountOut sdkmath.Int) (sdkmath.Int, error)
	// SwapExactOut pulls the quoted input from payer and delivers amountOut
	// of assetOut to recipient.
	SwapExactOut(payer, recipient, assetOut common.Address, amountOut sdkmath.Int) (sdkmath.Int, error)
}

// AmountIn computes the input required to withdraw amountOut from a
// constant-product pool holding (reserveIn, reserveOut):
//
//	amountIn = reserveIn*amountOut*1000 / ((reserveOut-amountOut)*997) + 1
//
// The +1 rounds the truncated quotient up so the pool never undercharges.
func AmountIn(reserveIn, reserveOut, amountOut sdkmath.Int) (sdkmath.Int, error) {
	if amountOut.IsNil() || !amountOut.IsPositive() {
		return sdkmath.ZeroInt(), ErrInvalidAmount
	}
	if amountOut.GTE(reserveOut) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: out %s, reserve %s", ErrInsufficientLiquidity, amountOut, reserveOut)
	}
	numerator := reserveIn.Mul(amountOut).MulRaw(1000)
	denominator := reserveOut.Sub(amountOut).MulRaw(997)
	return numerator.Quo(denominator).AddRaw(1), nil
}

// MemoryPool is the in-process reference pool. One side is the native
// currency, the other the configured payment token; reserves back actual
// bank balances held at the pool's own address.
type MemoryPool struct {
	mu      sync.Mutex
	bank    *assets.MemoryBank
	address common.Address
	token   common.Address

	reserveNative sdkmath.Int
	reserveToken  sdkmath.Int
}

// NewMemoryPool seeds a pool at the given address. The seed balances are
// minted onto the pool so swaps move real bank funds.
func NewMemoryPool(bank *assets.MemoryBank, address, token common.Address, seedNative, seedToken sdkmath.Int) (*MemoryPool, error) {
	if !seedNative.IsPositive() || !seedToken.IsPositive() {
		return nil, ErrInvalidAmount
	}
	bank.RegisterAsset(token)
	bank.MintNative(address, seedNative)
	if err := bank.Mint(token, address, seedToken); err != nil {
		return nil, err
	}
	return &MemoryPool{
		bank:          bank,
		address:       address,
		token:         token,
		reserveNative: seedNative,
		reserveToken:  seedToken,
	}, nil
}

// Address returns the pool's own account.
func (p *MemoryPool) Address() common.Address { return p.address }

func (p *MemoryPool) Reserve(asset common.Address) (sdkmath.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch asset {
	case NativeAsset:
		return p.reserveNative, nil
	case p.token:
		return p.reserveToken, nil
	default:
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s", ErrUnknownPoolAsset, asset.Hex())
	}
}

func (p *MemoryPool) QuoteAmountIn(assetOut common.Address, amountOut sdkmath.Int) (sdkmath.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	reserveIn, reserveOut, err := p.orient(assetOut)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return AmountIn(reserveIn, reserveOut, amountOut)
}

// orient returns (reserveIn, reserveOut) for a swap paying out assetOut.
// Callers must hold the lock.
func (p *MemoryPool) orient(assetOut common.Address) (sdkmath.Int, sdkmath.Int, error) {
	switch assetOut {
	case NativeAsset:
		return p.reserveToken, p.reserveNative, nil
	case p.token:
		return p.reserveNative, p.reserveToken, nil
	default:
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("%w: %s", ErrUnknownPoolAsset, assetOut.Hex())
	}
}

func (p *MemoryPool) SwapExactOut(payer, recipient, assetOut common.Address, amountOut sdkmath.Int) (sdkmath.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	reserveIn, reserveOut, err := p.orient(assetOut)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	amountIn, err := AmountIn(reserveIn, reserveOut, amountOut)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	tokenLedger, err := p.bank.Ledger(p.token)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	// Pull the input leg first; the payout only happens once the pool holds
	// the input.
	if assetOut == NativeAsset {
		if err := tokenLedger.Transfer(payer, p.address, amountIn); err != nil {
			return sdkmath.ZeroInt(), err
		}
		if err := p.bank.NativeTransfer(p.address, recipient, amountOut); err != nil {
			return sdkmath.ZeroInt(), err
		}
		p.reserveToken = p.reserveToken.Add(amountIn)
		p.reserveNative = p.reserveNative.Sub(amountOut)
	} else {
		if err := p.bank.NativeTransfer(payer, p.address, amountIn); err != nil {
			return sdkmath.ZeroInt(), err
		}
		if err := tokenLedger.Transfer(p.address, recipient, amountOut); err != nil {
			return sdkmath.ZeroInt(), err
		}
		p.reserveNative = p.reserveNative.Add(amountIn)
		p.reserveToken = p.reserveToken.Sub(amountOut)
	}

	return amountIn, nil
}
