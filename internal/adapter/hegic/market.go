/*

This file contains the sub-market abstraction of the wrapped protocol: one
underlying-specific options market with its own settlement denomination,
liquidity pool and oracle. MemoryMarket is the in-process reference
implementation backing the paper mode and the test suites.

*/

package hegic

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/quillon-fi/ovm/internal/assets"
	"github.com/quillon-fi/ovm/internal/oracle"
	"github.com/quillon-fi/ovm/internal/types"
)

// The protocol quotes strikes with 8 decimals.
const StrikeDecimals = 8

// SettlementWindow is how long after expiry a position can still be settled
// at the reference price before it lapses. Holders settle strictly after
// expiry, so a position must stay exercisable for the window.
const SettlementWindow = 30 * time.Minute

var (
	ErrMarketLiquidity   = errors.New("hegic market: insufficient unlocked liquidity")
	ErrPositionUnknown   = errors.New("hegic market: unknown position")
	ErrNotHolder         = errors.New("hegic market: transfer from non-holder")
	ErrPositionNotActive = errors.New("hegic market: position is not active")
	ErrInvalidPeriod     = errors.New("hegic market: period must be positive")
	ErrInvalidSize       = errors.New("hegic market: size must be positive")
)

// Market is one underlying-specific sub-market.
type Market interface {
	// Underlying is the generic-terms address of the market's base asset.
	Underlying() common.Address
	// SettlementNative reports whether the market settles in native
	// currency; otherwise SettlementAsset names the token.
	SettlementNative() bool
	SettlementAsset() common.Address
	// Account is the liquidity account premiums are paid into and payouts
	// come out of.
	Account() common.Address
	// Fee quotes the total purchase cost in settlement units for a position
	// of `amount` at an 8-decimal strike over `period`.
	Fee(period time.Duration, amount, strike sdkmath.Int, typ types.OptionType) (sdkmath.Int, error)
	// Create opens a position for holder, locking writer collateral.
	Create(holder common.Address, period time.Duration, amount, strike sdkmath.Int, typ types.OptionType, premium sdkmath.Int) (common.Address, error)
	// Position returns the normalized record; the reported state accounts
	// for the settlement window after expiry having lapsed.
	Position(id common.Address) (types.OptionPosition, bool, error)
	// MarkExercised flips an active position to exercised and releases its
	// collateral for payout.
	MarkExercised(id common.Address) error
	// TransferPosition reassigns ownership of a position.
	TransferPosition(id, from, to common.Address) error
}

// MemoryMarket implements Market against the in-process bank.
type MemoryMarket struct {
	mu sync.Mutex

	bank       *assets.MemoryBank
	underlying common.Address
	settleAsset common.Address // zero when settling native
	account    common.Address  // liquidity-pool account holding writer funds
	feed       oracle.PriceSource

	// impliedVolRate scales the period fee; an 8-decimal annualized rate.
	impliedVolRate sdkmath.Int
	lockedTotal    sdkmath.Int

	counter   uint64
	positions map[common.Address]*marketPosition

	now func() time.Time
}

type marketPosition struct {
	record types.OptionPosition
	// collateral still reserved against this position, in settlement units
	locked sdkmath.Int
}

// NewMemoryMarket seeds a market whose liquidity account already holds
// `seedLiquidity` of its settlement denomination. Pass the zero address as
// settleAsset for a native-settling market.
func NewMemoryMarket(bank *assets.MemoryBank, underlying, settleAsset, account common.Address, feed oracle.PriceSource, impliedVolRate, seedLiquidity sdkmath.Int) (*MemoryMarket, error) {
	if feed == nil {
		return nil, errors.New("hegic market: price feed is required")
	}
	if impliedVolRate.IsNil() || !impliedVolRate.IsPositive() {
		return nil, errors.New("hegic market: implied vol rate must be positive")
	}
	if settleAsset == (common.Address{}) {
		bank.MintNative(account, seedLiquidity)
	} else {
		bank.RegisterAsset(settleAsset)
		if err := bank.Mint(settleAsset, account, seedLiquidity); err != nil {
			return nil, err
		}
	}
	return &MemoryMarket{
		bank:           bank,
		underlying:     underlying,
		settleAsset:    settleAsset,
		account:        account,
		feed:           feed,
		impliedVolRate: impliedVolRate,
		lockedTotal:    sdkmath.ZeroInt(),
		positions:      make(map[common.Address]*marketPosition),
		now:            time.Now,
	}, nil
}

// SetClock overrides the market clock. Test helper.
func (m *MemoryMarket) SetClock(now func() time.Time) { m.now = now }

// Account is the liquidity-pool account premiums are paid into.
func (m *MemoryMarket) Account() common.Address { return m.account }

func (m *MemoryMarket) Underlying() common.Address      { return m.underlying }
func (m *MemoryMarket) SettlementNative() bool          { return m.settleAsset == (common.Address{}) }
func (m *MemoryMarket) SettlementAsset() common.Address { return m.settleAsset }

// Fee is a 1% settlement fee plus a period fee growing with the square root
// of the tenor and the market's implied-vol rate, discounted for strikes out
// of the money relative to the current reference price.
func (m *MemoryMarket) Fee(period time.Duration, amount, strike sdkmath.Int, typ types.OptionType) (sdkmath.Int, error) {
	if period <= 0 {
		return sdkmath.ZeroInt(), ErrInvalidPeriod
	}
	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.ZeroInt(), ErrInvalidSize
	}
	if strike.IsNil() || !strike.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("hegic market: strike must be positive")
	}
	if !typ.Valid() {
		return sdkmath.ZeroInt(), fmt.Errorf("hegic market: invalid option type %d", typ)
	}

	price, err := m.feed.LatestPrice()
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("hegic market: price feed: %w", err)
	}

	settlementFee := amount.QuoRaw(100)

	sqrtPeriod := new(big.Int).Sqrt(big.NewInt(int64(period / time.Second)))
	periodFee := amount.
		Mul(m.impliedVolRate).
		Mul(sdkmath.NewIntFromBigInt(sqrtPeriod)).
		Quo(pow10(StrikeDecimals)).
		Quo(sdkmath.NewInt(5600)) // sqrt(seconds per year), normalizing the annualized rate

	// Strike moneyness adjustment: puts get cheaper as the strike drops
	// below spot, calls as it rises above.
	switch typ {
	case types.OptionPut:
		periodFee = periodFee.Mul(strike).Quo(price)
	case types.OptionCall:
		periodFee = periodFee.Mul(price).Quo(strike)
	}

	return settlementFee.Add(periodFee), nil
}

func (m *MemoryMarket) Create(holder common.Address, period time.Duration, amount, strike sdkmath.Int, typ types.OptionType, premium sdkmath.Int) (common.Address, error) {
	if holder == (common.Address{}) {
		return common.Address{}, errors.New("hegic market: holder address is zero")
	}
	if period <= 0 {
		return common.Address{}, ErrInvalidPeriod
	}
	if amount.IsNil() || !amount.IsPositive() {
		return common.Address{}, ErrInvalidSize
	}

	price, err := m.feed.LatestPrice()
	if err != nil {
		return common.Address{}, fmt.Errorf("hegic market: price feed: %w", err)
	}

	// Writers reserve the full size for calls; for puts the strike value of
	// the size, expressed in settlement units at the current price.
	locked := amount
	if typ == types.OptionPut {
		locked = amount.Mul(strike).Quo(price)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	available, err := m.availableLiquidity()
	if err != nil {
		return common.Address{}, err
	}
	if available.LT(locked) {
		return common.Address{}, fmt.Errorf("%w: need %s, have %s", ErrMarketLiquidity, locked, available)
	}

	m.counter++
	id := m.positionID(m.counter)
	now := m.now()

	m.positions[id] = &marketPosition{
		record: types.OptionPosition{
			ID:     id,
			Holder: holder,
			Terms: types.OptionTerms{
				Underlying:  m.underlying,
				StrikeAsset: m.settleAsset,
				Expiry:      now.Add(period),
				StrikePrice: strike.Mul(pow10(18 - StrikeDecimals)),
				OptionType:  typ,
			},
			Amount:           amount,
			LockedCollateral: locked,
			State:            types.PositionActive,
		},
		locked: locked,
	}
	m.lockedTotal = m.lockedTotal.Add(locked)

	_ = premium // premium accounting happens on the payment leg, outside the registry

	return id, nil
}

func (m *MemoryMarket) positionID(counter uint64) common.Address {
	var buf [28]byte
	copy(buf[:20], m.account.Bytes())
	binary.BigEndian.PutUint64(buf[20:], counter)
	return common.BytesToAddress(crypto.Keccak256(buf[:])[12:])
}

// availableLiquidity is the settlement balance not reserved against open
// positions. Callers must hold the lock.
func (m *MemoryMarket) availableLiquidity() (sdkmath.Int, error) {
	var balance sdkmath.Int
	var err error
	if m.SettlementNative() {
		balance, err = m.bank.NativeBalance(m.account)
	} else {
		var ledger assets.Ledger
		ledger, err = m.bank.Ledger(m.settleAsset)
		if err == nil {
			balance, err = ledger.BalanceOf(m.account)
		}
	}
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return balance.Sub(m.lockedTotal), nil
}

func (m *MemoryMarket) Position(id common.Address) (types.OptionPosition, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[id]
	if !ok {
		return types.OptionPosition{}, false, nil
	}
	record := pos.record
	if record.State == types.PositionActive && m.now().After(record.Terms.Expiry.Add(SettlementWindow)) {
		record.State = types.PositionExpired
	}
	return record, true, nil
}

func (m *MemoryMarket) MarkExercised(id common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPositionUnknown, id.Hex())
	}
	if pos.record.State != types.PositionActive {
		return fmt.Errorf("%w: state %s", ErrPositionNotActive, pos.record.State)
	}
	pos.record.State = types.PositionExercised
	m.lockedTotal = m.lockedTotal.Sub(pos.locked)
	pos.locked = sdkmath.ZeroInt()
	return nil
}

func (m *MemoryMarket) TransferPosition(id, from, to common.Address) error {
	if to == (common.Address{}) {
		return errors.New("hegic market: transfer to zero address")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPositionUnknown, id.Hex())
	}
	if pos.record.Holder != from {
		return fmt.Errorf("%w: holder %s, from %s", ErrNotHolder, pos.record.Holder.Hex(), from.Hex())
	}
	pos.record.Holder = to
	return nil
}

func pow10(n int) sdkmath.Int {
	result := sdkmath.OneInt()
	for i := 0; i < n; i++ {
		result = result.MulRaw(10)
	}
	return result
}
