/*

This file contains the pooled-capital vault engine: proportional share
accounting over deposits and withdrawals, and the option lifecycle that
stages, enters and settles one position at a time through the protocol
adapter. All mutating entry points are serialized and guarded; state is
committed only once every fallible step of an operation has succeeded.

*/

package vault

import (
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/quillon-fi/ovm/internal/adapter"
	"github.com/quillon-fi/ovm/internal/assets"
	"github.com/quillon-fi/ovm/internal/logger"
	"github.com/quillon-fi/ovm/internal/settlement"
	"github.com/quillon-fi/ovm/internal/sharetoken"
	"github.com/quillon-fi/ovm/internal/types"
	"github.com/quillon-fi/ovm/internal/utils"
)

// Config carries the immutable wiring of one vault instance. Everything here
// is fixed at construction; mutable administration lives behind Initialize.
type Config struct {
	// Asset is the vault's deposit and accounting asset.
	Asset common.Address
	// Underlying and StrikeAsset pair the option terms this vault trades.
	Underlying  common.Address
	StrikeAsset common.Address
	// Mode restricts the vault to puts or calls.
	Mode types.OptionType

	Adapter  adapter.Adapter
	Executor settlement.Executor
	Bank     assets.Bank
	// Wrapper bridges native currency into Asset. Required for the native
	// deposit/withdraw paths and for wrapping native exercise payouts.
	Wrapper assets.Wrapper

	// Address is the vault's own account; deposits accumulate here and the
	// settlement order's premium leg is pulled from here.
	Address common.Address

	// MinimumPoolSize floors both the total balance and the share supply.
	MinimumPoolSize sdkmath.Int

	// FixedDelay separates proposing an option from entering it. Zero means
	// the one hour default.
	FixedDelay time.Duration
}

// DefaultFixedDelay is the activation delay between proposing and rolling.
const DefaultFixedDelay = time.Hour

// defaultWithdrawalFee is 0.5% until the owner sets a different rate.
var defaultWithdrawalFee = sdkmath.LegacyNewDecWithPrec(5, 3)

// maxWithdrawalFee is the exclusive upper bound on the fee rate.
var maxWithdrawalFee = sdkmath.LegacyNewDecWithPrec(30, 2)

// proposal is a staged option waiting out the activation delay.
type proposal struct {
	terms   types.OptionTerms
	amount  sdkmath.Int
	premium sdkmath.Int
	readyAt time.Time
}

// Vault is the accounting and lifecycle engine.
type Vault struct {
	mu      sync.Mutex
	entered bool

	cfg         Config
	initialized bool

	owner        common.Address
	manager      common.Address
	feeRecipient common.Address
	cap          sdkmath.Int

	withdrawalFee sdkmath.LegacyDec
	shares        sharetoken.Ledger

	lockedAmount  sdkmath.Int
	currentOption common.Address
	currentExpiry time.Time
	next          *proposal

	now    func() time.Time
	logger zerolog.Logger
}

// NewVault validates the immutable wiring. The vault is unusable until
// Initialize has run.
func NewVault(cfg Config) (*Vault, error) {
	if cfg.Asset == (common.Address{}) || cfg.Underlying == (common.Address{}) ||
		cfg.StrikeAsset == (common.Address{}) || cfg.Address == (common.Address{}) {
		return nil, fmt.Errorf("%w: config address fields must be set", ErrZeroAddress)
	}
	if !cfg.Mode.Valid() {
		return nil, fmt.Errorf("vault: invalid mode %d", cfg.Mode)
	}
	if cfg.Adapter == nil || cfg.Executor == nil || cfg.Bank == nil {
		return nil, fmt.Errorf("vault: adapter, executor and bank are required")
	}
	if cfg.MinimumPoolSize.IsNil() || cfg.MinimumPoolSize.IsNegative() {
		return nil, fmt.Errorf("vault: minimum pool size must be non-negative")
	}
	if cfg.FixedDelay <= 0 {
		cfg.FixedDelay = DefaultFixedDelay
	}
	return &Vault{
		cfg:          cfg,
		lockedAmount: sdkmath.ZeroInt(),
		now:          time.Now,
		logger:       logger.GetForComponent("vault_engine"),
	}, nil
}

// Initialize is the one-shot mutable setup: administration addresses, the
// deposit cap and the share ledger the engine owns issuance on.
func (v *Vault) Initialize(owner, manager, feeRecipient common.Address, cap sdkmath.Int, shares sharetoken.Ledger) error {
	if err := v.enter(); err != nil {
		return err
	}
	defer v.exit()

	if v.initialized {
		return ErrAlreadyInitialized
	}
	if owner == (common.Address{}) || manager == (common.Address{}) || feeRecipient == (common.Address{}) {
		return ErrZeroAddress
	}
	if cap.IsNil() || !cap.IsPositive() {
		return fmt.Errorf("%w: cap", ErrInvalidAmount)
	}
	if shares == nil {
		return fmt.Errorf("vault: share ledger is required")
	}

	v.owner = owner
	v.manager = manager
	v.feeRecipient = feeRecipient
	v.cap = cap
	v.shares = shares
	v.withdrawalFee = defaultWithdrawalFee
	v.initialized = true

	v.logger.Info().
		Str("owner", owner.Hex()).
		Str("manager", manager.Hex()).
		Str("cap", cap.String()).
		Str("mode", v.cfg.Mode.String()).
		Msg("Vault initialized")
	return nil
}

// SetClock overrides the engine clock. Test helper.
func (v *Vault) SetClock(now func() time.Time) { v.now = now }

// enter acquires the engine lock and the scoped reentrancy flag.
func (v *Vault) enter() error {
	v.mu.Lock()
	if v.entered {
		v.mu.Unlock()
		return ErrReentrancy
	}
	v.entered = true
	return nil
}

func (v *Vault) exit() {
	v.entered = false
	v.mu.Unlock()
}

func (v *Vault) requireInitialized() error {
	if !v.initialized {
		return ErrNotInitialized
	}
	return nil
}

func (v *Vault) requireOwner(caller common.Address) error {
	if caller != v.owner {
		return fmt.Errorf("%w: owner required", ErrUnauthorized)
	}
	return nil
}

func (v *Vault) requireManager(caller common.Address) error {
	if caller != v.manager {
		return fmt.Errorf("%w: manager required", ErrUnauthorized)
	}
	return nil
}

// SetManager replaces the manager. Owner only.
func (v *Vault) SetManager(caller, manager common.Address) error {
	if err := v.enter(); err != nil {
		return err
	}
	defer v.exit()
	if err := v.requireInitialized(); err != nil {
		return err
	}
	if err := v.requireOwner(caller); err != nil {
		return err
	}
	if manager == (common.Address{}) {
		return ErrZeroAddress
	}
	v.manager = manager
	v.logger.Info().Str("manager", manager.Hex()).Msg("Manager replaced")
	return nil
}

// SetFeeRecipient replaces the withdrawal-fee recipient. Owner only.
func (v *Vault) SetFeeRecipient(caller, recipient common.Address) error {
	if err := v.enter(); err != nil {
		return err
	}
	defer v.exit()
	if err := v.requireInitialized(); err != nil {
		return err
	}
	if err := v.requireOwner(caller); err != nil {
		return err
	}
	if recipient == (common.Address{}) {
		return ErrZeroAddress
	}
	v.feeRecipient = recipient
	return nil
}

// SetWithdrawalFee sets the fee rate taken off gross withdrawals. The rate
// must be strictly between zero and 30%.
func (v *Vault) SetWithdrawalFee(caller common.Address, fee sdkmath.LegacyDec) error {
	if err := v.enter(); err != nil {
		return err
	}
	defer v.exit()
	if err := v.requireInitialized(); err != nil {
		return err
	}
	if err := v.requireOwner(caller); err != nil {
		return err
	}
	if fee.IsNil() || !fee.IsPositive() || fee.GTE(maxWithdrawalFee) {
		return fmt.Errorf("%w: %s", ErrInvalidFee, fee)
	}
	v.withdrawalFee = fee
	v.logger.Info().Str("fee", fee.String()).Msg("Withdrawal fee updated")
	return nil
}

// SetCap replaces the deposit cap. Owner only; existing balances above the
// new cap stay, only further deposits are gated.
func (v *Vault) SetCap(caller common.Address, cap sdkmath.Int) error {
	if err := v.enter(); err != nil {
		return err
	}
	defer v.exit()
	if err := v.requireInitialized(); err != nil {
		return err
	}
	if err := v.requireOwner(caller); err != nil {
		return err
	}
	if cap.IsNil() || !cap.IsPositive() {
		return fmt.Errorf("%w: cap", ErrInvalidAmount)
	}
	v.cap = cap
	v.logger.Info().Str("cap", cap.String()).Msg("Cap updated")
	return nil
}

// Deposit pulls `amount` of the vault asset from the account and mints
// proportional shares: one share per unit at bootstrap, afterwards
// amount * supply / (total - amount) with the deposit already counted in
// the total.
func (v *Vault) Deposit(account common.Address, amount sdkmath.Int) (types.DepositReceipt, error) {
	if err := v.enter(); err != nil {
		return types.DepositReceipt{}, err
	}
	defer v.exit()
	return v.deposit(account, amount, false)
}

// DepositNative wraps the account's native currency into the vault asset and
// deposits it. Only legal when the vault asset is the wrapped native asset.
func (v *Vault) DepositNative(account common.Address, value sdkmath.Int) (types.DepositReceipt, error) {
	if err := v.enter(); err != nil {
		return types.DepositReceipt{}, err
	}
	defer v.exit()

	if v.cfg.Wrapper == nil || v.cfg.Wrapper.Asset() != v.cfg.Asset {
		return types.DepositReceipt{}, ErrNativeNotSupported
	}
	if value.IsNil() || !value.IsPositive() {
		return types.DepositReceipt{}, ErrInvalidAmount
	}
	if err := v.cfg.Wrapper.Wrap(account, value); err != nil {
		return types.DepositReceipt{}, fmt.Errorf("vault: wrap deposit: %w", err)
	}
	receipt, err := v.deposit(account, value, true)
	if err != nil {
		// Hand the native funds back so a rejected deposit leaves no effects.
		if undoErr := v.cfg.Wrapper.Unwrap(account, value); undoErr != nil {
			return types.DepositReceipt{}, fmt.Errorf("%w (unwind failed: %w)", err, undoErr)
		}
		return types.DepositReceipt{}, err
	}
	return receipt, nil
}

func (v *Vault) deposit(account common.Address, amount sdkmath.Int, native bool) (types.DepositReceipt, error) {
	if err := v.requireInitialized(); err != nil {
		return types.DepositReceipt{}, err
	}
	if account == (common.Address{}) {
		return types.DepositReceipt{}, ErrZeroAddress
	}
	if amount.IsNil() || !amount.IsPositive() {
		return types.DepositReceipt{}, ErrInvalidAmount
	}

	total, err := v.totalBalance()
	if err != nil {
		return types.DepositReceipt{}, err
	}
	supply, err := v.shares.TotalSupply()
	if err != nil {
		return types.DepositReceipt{}, err
	}

	newTotal := total.Add(amount)
	if newTotal.GT(v.cap) {
		return types.DepositReceipt{}, fmt.Errorf("%w: total %s, cap %s", ErrCapExceeded, newTotal, v.cap)
	}

	var minted sdkmath.Int
	if supply.IsZero() {
		minted = amount
	} else {
		minted = amount.Mul(supply).Quo(total)
	}
	if !minted.IsPositive() {
		return types.DepositReceipt{}, fmt.Errorf("%w: deposit mints no shares", ErrInvalidAmount)
	}

	newSupply := supply.Add(minted)
	if newTotal.LT(v.cfg.MinimumPoolSize) || newSupply.LT(v.cfg.MinimumPoolSize) {
		return types.DepositReceipt{}, fmt.Errorf("%w: minimum %s", ErrInsufficientPoolSize, v.cfg.MinimumPoolSize)
	}

	ledger, err := v.cfg.Bank.Ledger(v.cfg.Asset)
	if err != nil {
		return types.DepositReceipt{}, err
	}
	if err := ledger.Transfer(account, v.cfg.Address, amount); err != nil {
		return types.DepositReceipt{}, fmt.Errorf("vault: pull deposit: %w", err)
	}
	if err := v.shares.Mint(account, minted); err != nil {
		// Undo the pull so a failed mint leaves no effects.
		if undoErr := ledger.Transfer(v.cfg.Address, account, amount); undoErr != nil {
			return types.DepositReceipt{}, fmt.Errorf("%w (unwind failed: %w)", err, undoErr)
		}
		return types.DepositReceipt{}, err
	}

	v.logger.Info().
		Str("account", account.Hex()).
		Str("amount", amount.String()).
		Str("shares", minted.String()).
		Bool("native", native).
		Msg("Deposit accepted")

	return types.DepositReceipt{
		Account:      account,
		Amount:       amount,
		SharesMinted: minted,
		TotalBalance: newTotal,
		ShareSupply:  newSupply,
		Native:       native,
		Timestamp:    v.now(),
	}, nil
}

// Withdraw burns shares and pays out the proportional slice of the pool,
// minus the withdrawal fee. Gross beyond the free balance is refused; locked
// capital cannot be drawn down.
func (v *Vault) Withdraw(account common.Address, shareAmount sdkmath.Int) (types.WithdrawalReceipt, error) {
	if err := v.enter(); err != nil {
		return types.WithdrawalReceipt{}, err
	}
	defer v.exit()
	return v.withdraw(account, shareAmount, false)
}

// WithdrawNative withdraws and unwraps the net amount back to native
// currency. The fee recipient is paid in the wrapped asset.
func (v *Vault) WithdrawNative(account common.Address, shareAmount sdkmath.Int) (types.WithdrawalReceipt, error) {
	if err := v.enter(); err != nil {
		return types.WithdrawalReceipt{}, err
	}
	defer v.exit()

	if v.cfg.Wrapper == nil || v.cfg.Wrapper.Asset() != v.cfg.Asset {
		return types.WithdrawalReceipt{}, ErrNativeNotSupported
	}
	receipt, err := v.withdraw(account, shareAmount, true)
	if err != nil {
		return types.WithdrawalReceipt{}, err
	}
	if err := v.cfg.Wrapper.Unwrap(account, receipt.NetAmount); err != nil {
		return types.WithdrawalReceipt{}, fmt.Errorf("vault: unwrap withdrawal: %w", err)
	}
	return receipt, nil
}

func (v *Vault) withdraw(account common.Address, shareAmount sdkmath.Int, native bool) (types.WithdrawalReceipt, error) {
	if err := v.requireInitialized(); err != nil {
		return types.WithdrawalReceipt{}, err
	}
	if account == (common.Address{}) {
		return types.WithdrawalReceipt{}, ErrZeroAddress
	}
	if shareAmount.IsNil() || !shareAmount.IsPositive() {
		return types.WithdrawalReceipt{}, ErrInvalidAmount
	}

	total, err := v.totalBalance()
	if err != nil {
		return types.WithdrawalReceipt{}, err
	}
	free, err := v.freeBalance()
	if err != nil {
		return types.WithdrawalReceipt{}, err
	}
	supply, err := v.shares.TotalSupply()
	if err != nil {
		return types.WithdrawalReceipt{}, err
	}
	balance, err := v.shares.BalanceOf(account)
	if err != nil {
		return types.WithdrawalReceipt{}, err
	}
	if balance.LT(shareAmount) {
		return types.WithdrawalReceipt{}, fmt.Errorf("%w: shares %s < %s", sharetoken.ErrInsufficientShare, balance, shareAmount)
	}

	gross, fee, net := v.withdrawBreakdown(shareAmount, total, supply)
	if gross.GT(free) {
		return types.WithdrawalReceipt{}, fmt.Errorf("%w: gross %s, free %s", ErrExceedsAvailableBalance, gross, free)
	}

	newTotal := total.Sub(gross)
	newSupply := supply.Sub(shareAmount)
	if newTotal.LT(v.cfg.MinimumPoolSize) || newSupply.LT(v.cfg.MinimumPoolSize) {
		return types.WithdrawalReceipt{}, fmt.Errorf("%w: minimum %s", ErrInsufficientPoolSize, v.cfg.MinimumPoolSize)
	}

	ledger, err := v.cfg.Bank.Ledger(v.cfg.Asset)
	if err != nil {
		return types.WithdrawalReceipt{}, err
	}

	// Burn before any funds move.
	if err := v.shares.Burn(account, shareAmount); err != nil {
		return types.WithdrawalReceipt{}, err
	}
	if fee.IsPositive() {
		if err := ledger.Transfer(v.cfg.Address, v.feeRecipient, fee); err != nil {
			return types.WithdrawalReceipt{}, fmt.Errorf("vault: fee transfer: %w", err)
		}
	}
	if err := ledger.Transfer(v.cfg.Address, account, net); err != nil {
		return types.WithdrawalReceipt{}, fmt.Errorf("vault: payout transfer: %w", err)
	}

	v.logger.Info().
		Str("account", account.Hex()).
		Str("shares", shareAmount.String()).
		Str("gross", gross.String()).
		Str("fee", fee.String()).
		Bool("native", native).
		Msg("Withdrawal completed")

	return types.WithdrawalReceipt{
		Account:      account,
		SharesBurned: shareAmount,
		GrossAmount:  gross,
		Fee:          fee,
		NetAmount:    net,
		TotalBalance: newTotal,
		ShareSupply:  newSupply,
		Native:       native,
		Timestamp:    v.now(),
	}, nil
}

// withdrawBreakdown splits a share redemption into gross, fee and net.
func (v *Vault) withdrawBreakdown(shareAmount, total, supply sdkmath.Int) (gross, fee, net sdkmath.Int) {
	gross = shareAmount.Mul(total).Quo(supply)
	fee = v.withdrawalFee.MulInt(gross).TruncateInt()
	net = gross.Sub(fee)
	return gross, fee, net
}

// ProposeNextOption stages the option the vault intends to enter after the
// activation delay. Proposing while a position is open is allowed; the roll
// itself is what requires the previous position redeemed.
func (v *Vault) ProposeNextOption(caller common.Address, terms types.OptionTerms, amount sdkmath.Int) error {
	if err := v.enter(); err != nil {
		return err
	}
	defer v.exit()
	return v.propose(caller, terms, amount)
}

func (v *Vault) propose(caller common.Address, terms types.OptionTerms, amount sdkmath.Int) error {
	if err := v.requireInitialized(); err != nil {
		return err
	}
	if err := v.requireManager(caller); err != nil {
		return err
	}
	if err := terms.Validate(); err != nil {
		return err
	}
	if terms.OptionType != v.cfg.Mode {
		return fmt.Errorf("%w: terms %s, vault %s", ErrTypeMismatch, terms.OptionType, v.cfg.Mode)
	}
	if terms.Underlying != v.cfg.Underlying || terms.StrikeAsset != v.cfg.StrikeAsset {
		return fmt.Errorf("%w: underlying %s / strike asset %s", ErrPairMismatch,
			terms.Underlying.Hex(), terms.StrikeAsset.Hex())
	}
	if amount.IsNil() || !amount.IsPositive() {
		return ErrInvalidAmount
	}

	now := v.now()
	if terms.Expiry.Before(now.Add(v.cfg.FixedDelay)) {
		return fmt.Errorf("%w: expiry %s", ErrExpiryTooSoon, terms.Expiry)
	}

	premium, err := v.cfg.Adapter.PremiumQuote(terms, amount, v.paymentAsset())
	if err != nil {
		return fmt.Errorf("vault: premium quote: %w", err)
	}

	v.next = &proposal{
		terms:   terms,
		amount:  amount,
		premium: premium,
		readyAt: now.Add(v.cfg.FixedDelay),
	}

	v.logger.Info().
		Str("type", terms.OptionType.String()).
		Str("strike", terms.StrikePrice.String()).
		Time("expiry", terms.Expiry).
		Str("amount", amount.String()).
		Str("premium", premium.String()).
		Time("ready_at", v.next.readyAt).
		Msg("Option proposed")
	return nil
}

// paymentAsset is the denomination premiums are quoted in: native terms when
// the vault asset is the wrapped native asset, the vault asset otherwise.
func (v *Vault) paymentAsset() common.Address {
	if v.cfg.Wrapper != nil && v.cfg.Wrapper.Asset() == v.cfg.Asset {
		return common.Address{}
	}
	return v.cfg.Asset
}

// RollToNextOption enters the staged option by settling the supplied signed
// order: the vault pays exactly the staged premium in its own asset against
// ownership of a position carrying the staged terms. The premium moves from
// free to locked capital.
func (v *Vault) RollToNextOption(caller common.Address, order settlement.Order) error {
	if err := v.enter(); err != nil {
		return err
	}
	defer v.exit()

	if err := v.requireInitialized(); err != nil {
		return err
	}
	if err := v.requireManager(caller); err != nil {
		return err
	}
	if v.next == nil {
		return ErrNoProposal
	}
	now := v.now()
	if now.Before(v.next.readyAt) {
		return fmt.Errorf("%w: ready at %s", ErrNotReady, v.next.readyAt)
	}
	if v.currentOption != (common.Address{}) {
		return fmt.Errorf("%w: %s", ErrPositionOpen, v.currentOption.Hex())
	}
	if err := v.matchOrder(order, *v.next); err != nil {
		return err
	}
	if _, err := settlement.RecoverSigner(order); err != nil {
		return err
	}

	ledger, err := v.cfg.Bank.Ledger(v.cfg.Asset)
	if err != nil {
		return err
	}
	// The executor may pull exactly the staged premium, nothing more.
	if err := ledger.Approve(v.cfg.Address, v.cfg.Executor.Address(), v.next.premium); err != nil {
		return fmt.Errorf("vault: approve premium: %w", err)
	}

	staged := *v.next

	// Gating fields move before the external call-out.
	v.currentOption = order.Sender.Token
	v.currentExpiry = staged.terms.Expiry
	v.lockedAmount = v.lockedAmount.Add(staged.premium)
	v.next = nil

	if err := v.cfg.Executor.Execute(order); err != nil {
		v.currentOption = common.Address{}
		v.currentExpiry = time.Time{}
		v.lockedAmount = v.lockedAmount.Sub(staged.premium)
		v.next = &staged
		if revokeErr := ledger.Approve(v.cfg.Address, v.cfg.Executor.Address(), sdkmath.ZeroInt()); revokeErr != nil {
			return fmt.Errorf("%w (revoke failed: %w)", err, revokeErr)
		}
		return fmt.Errorf("vault: settle order: %w", err)
	}

	v.logger.Info().
		Str("position", v.currentOption.Hex()).
		Str("premium", staged.premium.String()).
		Time("expiry", v.currentExpiry).
		Msg("Rolled into option")
	return nil
}

// matchOrder checks the order settles exactly the staged proposal.
func (v *Vault) matchOrder(order settlement.Order, staged proposal) error {
	if err := order.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrOrderMismatch, err)
	}
	if order.Signer.Wallet != v.cfg.Address {
		return fmt.Errorf("%w: signer wallet %s is not the vault", ErrOrderMismatch, order.Signer.Wallet.Hex())
	}
	if order.Signer.Token != v.cfg.Asset {
		return fmt.Errorf("%w: signer token %s is not the vault asset", ErrOrderMismatch, order.Signer.Token.Hex())
	}
	if !order.Signer.Amount.Equal(staged.premium) {
		return fmt.Errorf("%w: premium %s, staged %s", ErrOrderMismatch, order.Signer.Amount, staged.premium)
	}
	if !order.Sender.Amount.Equal(staged.amount) {
		return fmt.Errorf("%w: size %s, staged %s", ErrOrderMismatch, order.Sender.Amount, staged.amount)
	}

	pos, err := v.cfg.Adapter.TermsOf(order.Sender.Token)
	if err != nil {
		return fmt.Errorf("%w: counter leg: %w", ErrOrderMismatch, err)
	}
	if pos.State != types.PositionActive {
		return fmt.Errorf("%w: position state %s", ErrOrderMismatch, pos.State)
	}
	if pos.Holder != order.Sender.Wallet {
		return fmt.Errorf("%w: position holder %s, sender %s", ErrOrderMismatch, pos.Holder.Hex(), order.Sender.Wallet.Hex())
	}
	if !pos.Amount.Equal(staged.amount) {
		return fmt.Errorf("%w: position size %s, staged %s", ErrOrderMismatch, pos.Amount, staged.amount)
	}
	if pos.Terms.OptionType != staged.terms.OptionType || pos.Terms.Underlying != staged.terms.Underlying {
		return fmt.Errorf("%w: position terms differ from staged terms", ErrOrderMismatch)
	}
	if !pos.Terms.Expiry.Equal(staged.terms.Expiry) {
		return fmt.Errorf("%w: position expiry %s, staged %s", ErrOrderMismatch, pos.Terms.Expiry, staged.terms.Expiry)
	}

	// Protocols truncate strikes to their own precision; compare at the
	// coarser 8-decimal convention.
	posStrike, err := utils.RescaleDecimals(pos.Terms.StrikePrice, 18, 8)
	if err != nil {
		return err
	}
	stagedStrike, err := utils.RescaleDecimals(staged.terms.StrikePrice, 18, 8)
	if err != nil {
		return err
	}
	if !posStrike.Equal(stagedStrike) {
		return fmt.Errorf("%w: position strike %s, staged %s", ErrOrderMismatch, posStrike, stagedStrike)
	}
	return nil
}

// Redeem settles the open position after expiry: exercises through the
// adapter when profitable, credits the payout to the free balance and zeroes
// the locked amount. A vault with nothing open is a no-op. Returns the
// realized profit.
func (v *Vault) Redeem(caller common.Address) (sdkmath.Int, error) {
	if err := v.enter(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer v.exit()
	return v.redeem(caller)
}

func (v *Vault) redeem(caller common.Address) (sdkmath.Int, error) {
	if err := v.requireInitialized(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := v.requireManager(caller); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if v.currentOption == (common.Address{}) {
		return sdkmath.ZeroInt(), nil
	}
	now := v.now()
	if !now.After(v.currentExpiry) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: expiry %s", ErrNotExpired, v.currentExpiry)
	}

	position := v.currentOption
	expiry := v.currentExpiry
	locked := v.lockedAmount

	// Gating fields move before the external call-out.
	v.currentOption = common.Address{}
	v.currentExpiry = time.Time{}
	v.lockedAmount = sdkmath.ZeroInt()

	restore := func() {
		v.currentOption = position
		v.currentExpiry = expiry
		v.lockedAmount = locked
	}

	exercisable, err := v.cfg.Adapter.CanExercise(position)
	if err != nil {
		restore()
		return sdkmath.ZeroInt(), fmt.Errorf("vault: exercisability: %w", err)
	}

	profit := sdkmath.ZeroInt()
	if exercisable {
		freeBefore, err := v.freeBalance()
		if err != nil {
			restore()
			return sdkmath.ZeroInt(), err
		}
		nativeBefore, err := v.cfg.Bank.NativeBalance(v.cfg.Address)
		if err != nil {
			restore()
			return sdkmath.ZeroInt(), err
		}

		if _, err := v.cfg.Adapter.Exercise(position, v.cfg.Address); err != nil {
			restore()
			return sdkmath.ZeroInt(), fmt.Errorf("vault: exercise: %w", err)
		}

		// Native payouts are wrapped back into the vault asset.
		nativeAfter, err := v.cfg.Bank.NativeBalance(v.cfg.Address)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		if delta := nativeAfter.Sub(nativeBefore); delta.IsPositive() && v.cfg.Wrapper != nil {
			if err := v.cfg.Wrapper.Wrap(v.cfg.Address, delta); err != nil {
				return sdkmath.ZeroInt(), fmt.Errorf("vault: wrap payout: %w", err)
			}
		}

		freeAfter, err := v.freeBalance()
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		profit = freeAfter.Sub(freeBefore)
	}

	v.logger.Info().
		Str("position", position.Hex()).
		Str("profit", profit.String()).
		Str("released", locked.String()).
		Msg("Position redeemed")
	return profit, nil
}

// CommitAndClose stages the next option and settles the expired one in a
// single guarded step. Returns the realized profit of the redemption.
func (v *Vault) CommitAndClose(caller common.Address, terms types.OptionTerms, amount sdkmath.Int) (sdkmath.Int, error) {
	if err := v.enter(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer v.exit()

	if err := v.propose(caller, terms, amount); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return v.redeem(caller)
}
