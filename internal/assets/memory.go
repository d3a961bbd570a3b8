package assets

import (
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// MemoryBank is the in-process reference implementation of Bank used by the
// paper-trading mode and the test suites. All ledgers share one lock so a
// multi-leg settlement observes a consistent view.
type MemoryBank struct {
	mu      sync.Mutex
	native  map[common.Address]sdkmath.Int
	ledgers map[common.Address]*memoryLedger
}

// NewMemoryBank creates an empty bank.
func NewMemoryBank() *MemoryBank {
	return &MemoryBank{
		native:  make(map[common.Address]sdkmath.Int),
		ledgers: make(map[common.Address]*memoryLedger),
	}
}

// RegisterAsset creates an empty ledger for the asset. Registering the same
// asset twice is a no-op.
func (b *MemoryBank) RegisterAsset(asset common.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.ledgers[asset]; !ok {
		b.ledgers[asset] = &memoryLedger{
			bank:       b,
			balances:   make(map[common.Address]sdkmath.Int),
			allowances: make(map[common.Address]map[common.Address]sdkmath.Int),
		}
	}
}

// Ledger returns the ledger for the asset, or ErrUnknownAsset.
func (b *MemoryBank) Ledger(asset common.Address) (Ledger, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ledger, ok := b.ledgers[asset]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, asset.Hex())
	}
	return ledger, nil
}

// Mint credits token balance out of thin air. Test and bootstrap helper.
func (b *MemoryBank) Mint(asset, to common.Address, amount sdkmath.Int) error {
	ledger, err := b.Ledger(asset)
	if err != nil {
		return err
	}
	ml := ledger.(*memoryLedger)
	b.mu.Lock()
	defer b.mu.Unlock()
	ml.credit(to, amount)
	return nil
}

// MintNative credits native balance. Test and bootstrap helper.
func (b *MemoryBank) MintNative(to common.Address, amount sdkmath.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.native[to] = b.nativeOf(to).Add(amount)
}

func (b *MemoryBank) NativeBalance(addr common.Address) (sdkmath.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nativeOf(addr), nil
}

func (b *MemoryBank) NativeTransfer(from, to common.Address, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	balance := b.nativeOf(from)
	if balance.LT(amount) {
		return fmt.Errorf("%w: native balance %s < %s", ErrInsufficientBalance, balance, amount)
	}
	b.native[from] = balance.Sub(amount)
	b.native[to] = b.nativeOf(to).Add(amount)
	return nil
}

// nativeOf reads a native balance; callers must hold the lock.
func (b *MemoryBank) nativeOf(addr common.Address) sdkmath.Int {
	if v, ok := b.native[addr]; ok {
		return v
	}
	return sdkmath.ZeroInt()
}

type memoryLedger struct {
	bank       *MemoryBank
	balances   map[common.Address]sdkmath.Int
	allowances map[common.Address]map[common.Address]sdkmath.Int
}

func (l *memoryLedger) balanceOf(addr common.Address) sdkmath.Int {
	if v, ok := l.balances[addr]; ok {
		return v
	}
	return sdkmath.ZeroInt()
}

func (l *memoryLedger) credit(addr common.Address, amount sdkmath.Int) {
	l.balances[addr] = l.balanceOf(addr).Add(amount)
}

func (l *memoryLedger) BalanceOf(addr common.Address) (sdkmath.Int, error) {
	l.bank.mu.Lock()
	defer l.bank.mu.Unlock()
	return l.balanceOf(addr), nil
}

func (l *memoryLedger) Transfer(from, to common.Address, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	l.bank.mu.Lock()
	defer l.bank.mu.Unlock()
	return l.move(from, to, amount)
}

// move debits and credits under the bank lock.
func (l *memoryLedger) move(from, to common.Address, amount sdkmath.Int) error {
	balance := l.balanceOf(from)
	if balance.LT(amount) {
		return fmt.Errorf("%w: balance %s < %s", ErrInsufficientBalance, balance, amount)
	}
	l.balances[from] = balance.Sub(amount)
	l.credit(to, amount)
	return nil
}

func (l *memoryLedger) Approve(owner, spender common.Address, amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return ErrInvalidAmount
	}
	if spender == (common.Address{}) {
		return ErrZeroAddress
	}
	l.bank.mu.Lock()
	defer l.bank.mu.Unlock()
	if _, ok := l.allowances[owner]; !ok {
		l.allowances[owner] = make(map[common.Address]sdkmath.Int)
	}
	l.allowances[owner][spender] = amount
	return nil
}

func (l *memoryLedger) Allowance(owner, spender common.Address) (sdkmath.Int, error) {
	l.bank.mu.Lock()
	defer l.bank.mu.Unlock()
	return l.allowanceOf(owner, spender), nil
}

func (l *memoryLedger) allowanceOf(owner, spender common.Address) sdkmath.Int {
	if byOwner, ok := l.allowances[owner]; ok {
		if v, ok := byOwner[spender]; ok {
			return v
		}
	}
	return sdkmath.ZeroInt()
}

func (l *memoryLedger) TransferFrom(spender, from, to common.Address, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	l.bank.mu.Lock()
	defer l.bank.mu.Unlock()
	allowance := l.allowanceOf(from, spender)
	if allowance.LT(amount) {
		return fmt.Errorf("%w: allowance %s < %s", ErrInsufficientAllowance, allowance, amount)
	}
	if err := l.move(from, to, amount); err != nil {
		return err
	}
	l.allowances[from][spender] = allowance.Sub(amount)
	return nil
}

// MemoryWrapper is the WETH-style bridge of the in-process bank: wrapping
// burns native balance and mints wrapped tokens 1:1, unwrapping reverses it.
type MemoryWrapper struct {
	bank  *MemoryBank
	asset common.Address
}

// NewMemoryWrapper registers the wrapped asset on the bank and returns the
// bridge for it.
func NewMemoryWrapper(bank *MemoryBank, asset common.Address) *MemoryWrapper {
	bank.RegisterAsset(asset)
	return &MemoryWrapper{bank: bank, asset: asset}
}

func (w *MemoryWrapper) Asset() common.Address { return w.asset }

func (w *MemoryWrapper) Wrap(addr common.Address, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return ErrInvalidAmount
	}
	w.bank.mu.Lock()
	defer w.bank.mu.Unlock()
	balance := w.bank.nativeOf(addr)
	if balance.LT(amount) {
		return fmt.Errorf("%w: native balance %s < %s", ErrInsufficientBalance, balance, amount)
	}
	w.bank.native[addr] = balance.Sub(amount)
	w.bank.ledgers[w.asset].credit(addr, amount)
	return nil
}

func (w *MemoryWrapper) Unwrap(addr common.Address, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return ErrInvalidAmount
	}
	w.bank.mu.Lock()
	defer w.bank.mu.Unlock()
	ledger := w.bank.ledgers[w.asset]
	balance := ledger.balanceOf(addr)
	if balance.LT(amount) {
		return fmt.Errorf("%w: wrapped balance %s < %s", ErrInsufficientBalance, balance, amount)
	}
	ledger.balances[addr] = balance.Sub(amount)
	w.bank.native[addr] = w.bank.nativeOf(addr).Add(amount)
	return nil
}
