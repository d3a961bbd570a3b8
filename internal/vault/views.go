/*

This file contains the read-only views over the engine state: balances,
withdrawal previews and lifecycle introspection. Views take the engine lock
but not the reentrancy flag; they never mutate.

*/

package vault

import (
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// freeBalance is the vault-asset balance sitting at the vault's account.
// Callers must hold the lock.
func (v *Vault) freeBalance() (sdkmath.Int, error) {
	ledger, err := v.cfg.Bank.Ledger(v.cfg.Asset)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return ledger.BalanceOf(v.cfg.Address)
}

// totalBalance is free plus locked capital. Callers must hold the lock.
func (v *Vault) totalBalance() (sdkmath.Int, error) {
	free, err := v.freeBalance()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return free.Add(v.lockedAmount), nil
}

// TotalBalance is the pool's full accounting balance, locked capital
// included.
func (v *Vault) TotalBalance() (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.totalBalance()
}

// FreeBalance is the portion of the pool withdrawals can draw on.
func (v *Vault) FreeBalance() (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.freeBalance()
}

// LockedAmount is the capital committed to the open position.
func (v *Vault) LockedAmount() sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lockedAmount
}

// WithdrawAmountWithShares previews redeeming `shareAmount`: the gross slice
// of the pool, the fee taken from it and the net payout.
func (v *Vault) WithdrawAmountWithShares(shareAmount sdkmath.Int) (gross, net, fee sdkmath.Int, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	zero := sdkmath.ZeroInt()
	if err := v.requireInitialized(); err != nil {
		return zero, zero, zero, err
	}
	if shareAmount.IsNil() || !shareAmount.IsPositive() {
		return zero, zero, zero, ErrInvalidAmount
	}
	total, err := v.totalBalance()
	if err != nil {
		return zero, zero, zero, err
	}
	supply, err := v.shares.TotalSupply()
	if err != nil {
		return zero, zero, zero, err
	}
	if supply.IsZero() {
		return zero, zero, zero, ErrInvalidAmount
	}
	gross, fee, net = v.withdrawBreakdown(shareAmount, total, supply)
	return gross, net, fee, nil
}

// MaxWithdrawableShares is the largest share amount the free balance can
// currently redeem.
func (v *Vault) MaxWithdrawableShares() (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireInitialized(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	total, err := v.totalBalance()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if total.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	free, err := v.freeBalance()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	supply, err := v.shares.TotalSupply()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return supply.Mul(free).Quo(total), nil
}

// MaxWithdrawAmount is the gross value the account could withdraw right now,
// bounded by both its share balance and the free balance.
func (v *Vault) MaxWithdrawAmount(account common.Address) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireInitialized(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	total, err := v.totalBalance()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if total.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	free, err := v.freeBalance()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	supply, err := v.shares.TotalSupply()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if supply.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	balance, err := v.shares.BalanceOf(account)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	maxShares := supply.Mul(free).Quo(total)
	if balance.LT(maxShares) {
		maxShares = balance
	}
	if maxShares.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	return maxShares.Mul(total).Quo(supply), nil
}

// AssetAmountToShares converts an asset amount into shares at the current
// pool ratio.
func (v *Vault) AssetAmountToShares(amount sdkmath.Int) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireInitialized(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if amount.IsNil() || amount.IsNegative() {
		return sdkmath.ZeroInt(), ErrInvalidAmount
	}
	total, err := v.totalBalance()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if total.IsZero() {
		return amount, nil
	}
	supply, err := v.shares.TotalSupply()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if supply.IsZero() {
		return amount, nil
	}
	return amount.Mul(supply).Quo(total), nil
}

// AccountVaultBalance is the asset value of the account's shares.
func (v *Vault) AccountVaultBalance(account common.Address) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireInitialized(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	supply, err := v.shares.TotalSupply()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if supply.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	balance, err := v.shares.BalanceOf(account)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	total, err := v.totalBalance()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return balance.Mul(total).Quo(supply), nil
}

// Decimals is the share token's precision.
func (v *Vault) Decimals() (uint8, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireInitialized(); err != nil {
		return 0, err
	}
	return v.shares.Decimals(), nil
}

// CurrentOption is the open position, or the zero address when none.
func (v *Vault) CurrentOption() common.Address {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.currentOption
}

// CurrentOptionExpiry is the open position's expiry, zero when none.
func (v *Vault) CurrentOptionExpiry() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.currentExpiry
}

// NextOptionReadyAt reports when the staged proposal becomes rollable; false
// when nothing is staged.
func (v *Vault) NextOptionReadyAt() (time.Time, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.next == nil {
		return time.Time{}, false
	}
	return v.next.readyAt, true
}

// StagedPremium is the quoted premium of the staged proposal; false when
// nothing is staged.
func (v *Vault) StagedPremium() (sdkmath.Int, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.next == nil {
		return sdkmath.ZeroInt(), false
	}
	return v.next.premium, true
}

// WithdrawalFee is the current fee rate.
func (v *Vault) WithdrawalFee() sdkmath.LegacyDec {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.withdrawalFee
}

// Cap is the current deposit cap.
func (v *Vault) Cap() sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cap
}
