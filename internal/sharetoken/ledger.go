/*

This file contains the share-token collaborator. The vault engine owns share
issuance through Mint/Burn only; transfer mechanics between holders live
entirely on the token side and never touch vault accounting.

*/

package sharetoken

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidAmount     = errors.New("share amount must be positive")
	ErrInsufficientShare = errors.New("insufficient share balance")
)

// Ledger is the fungible ownership-share ledger consumed by the engine.
type Ledger interface {
	Mint(to common.Address, amount sdkmath.Int) error
	Burn(from common.Address, amount sdkmath.Int) error
	TotalSupply() (sdkmath.Int, error)
	BalanceOf(addr common.Address) (sdkmath.Int, error)
	Transfer(from, to common.Address, amount sdkmath.Int) error
	Decimals() uint8
}

// MemoryLedger is the in-process reference implementation.
type MemoryLedger struct {
	mu       sync.Mutex
	name     string
	symbol   string
	decimals uint8
	supply   sdkmath.Int
	balances map[common.Address]sdkmath.Int
}

// NewMemoryLedger creates an empty share ledger with the given token
// metadata. Decimals follow the vault asset so one share prices cleanly
// against one base unit at bootstrap.
func NewMemoryLedger(name, symbol string, decimals uint8) *MemoryLedger {
	return &MemoryLedger{
		name:     name,
		symbol:   symbol,
		decimals: decimals,
		supply:   sdkmath.ZeroInt(),
		balances: make(map[common.Address]sdkmath.Int),
	}
}

func (l *MemoryLedger) Name() string    { return l.name }
func (l *MemoryLedger) Symbol() string  { return l.symbol }
func (l *MemoryLedger) Decimals() uint8 { return l.decimals }

func (l *MemoryLedger) balanceOf(addr common.Address) sdkmath.Int {
	if v, ok := l.balances[addr]; ok {
		return v
	}
	return sdkmath.ZeroInt()
}

func (l *MemoryLedger) Mint(to common.Address, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[to] = l.balanceOf(to).Add(amount)
	l.supply = l.supply.Add(amount)
	return nil
}

func (l *MemoryLedger) Burn(from common.Address, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	balance := l.balanceOf(from)
	if balance.LT(amount) {
		return fmt.Errorf("%w: balance %s < %s", ErrInsufficientShare, balance, amount)
	}
	l.balances[from] = balance.Sub(amount)
	l.supply = l.supply.Sub(amount)
	return nil
}

func (l *MemoryLedger) TotalSupply() (sdkmath.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.supply, nil
}

func (l *MemoryLedger) BalanceOf(addr common.Address) (sdkmath.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balanceOf(addr), nil
}

func (l *MemoryLedger) Transfer(from, to common.Address, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	balance := l.balanceOf(from)
	if balance.LT(amount) {
		return fmt.Errorf("%w: balance %s < %s", ErrInsufficientShare, balance, amount)
	}
	l.balances[from] = balance.Sub(amount)
	l.balances[to] = l.balanceOf(to).Add(amount)
	return nil
}
