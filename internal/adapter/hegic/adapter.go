/*

This file contains the HEGIC adapter: it translates generic option terms into
the protocol's two underlying-specific sub-markets, converts payments made in
the alternate asset through the constant-product pool, and settles exercises
in each sub-market's own denomination.

*/

package hegic

import (
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/quillon-fi/ovm/internal/adapter"
	"github.com/quillon-fi/ovm/internal/assets"
	"github.com/quillon-fi/ovm/internal/logger"
	"github.com/quillon-fi/ovm/internal/oracle"
	"github.com/quillon-fi/ovm/internal/swap"
	"github.com/quillon-fi/ovm/internal/types"
	"github.com/quillon-fi/ovm/internal/utils"
)

var (
	ErrNoMarket          = errors.New("hegic adapter: no sub-market for underlying")
	ErrNotExercisable    = errors.New("hegic adapter: position is not exercisable")
	ErrInsufficientValue = errors.New("hegic adapter: attached value does not cover the cost")
	ErrUnexpectedValue   = errors.New("hegic adapter: non-native payment must attach zero value")
)

// Adapter implements the generic adapter contract for the wrapped protocol.
// It also satisfies settlement.PositionTransferrer by routing ownership
// transfers to the sub-market that issued the position.
type Adapter struct {
	mu sync.Mutex

	bank assets.Bank
	pool swap.Pool
	// quoteAsset is stamped onto normalized terms as the strike asset; the
	// protocol itself has no notion of one.
	quoteAsset common.Address
	markets    []marketEntry
	logger     zerolog.Logger
	now        func() time.Time
}

type marketEntry struct {
	market Market
	feed   oracle.PriceSource
}

// NewAdapter wires the adapter to the bank it moves payments through, the
// conversion pool for alternate-asset payments, and the quote asset its
// normalized terms are expressed against.
func NewAdapter(bank assets.Bank, pool swap.Pool, quoteAsset common.Address) *Adapter {
	return &Adapter{
		bank:       bank,
		pool:       pool,
		quoteAsset: quoteAsset,
		logger:     logger.GetForComponent("hegic_adapter"),
		now:        time.Now,
	}
}

// RegisterMarket attaches a sub-market and its reference price feed.
func (a *Adapter) RegisterMarket(m Market, feed oracle.PriceSource) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.markets = append(a.markets, marketEntry{market: m, feed: feed})
}

// SetClock overrides the adapter clock. Test helper.
func (a *Adapter) SetClock(now func() time.Time) { a.now = now }

func (a *Adapter) ProtocolName() string { return "HEGIC" }

// NonFungible is true: every purchase mints a discrete position record.
func (a *Adapter) NonFungible() bool { return true }

func (a *Adapter) PurchaseMethod() types.PurchaseMethod { return types.PurchaseMethodContract }

// LookupOption always reports no position: the protocol has no standing
// instruments, positions only exist once purchased.
func (a *Adapter) LookupOption(terms types.OptionTerms) (common.Address, bool, error) {
	if err := terms.Validate(); err != nil {
		return common.Address{}, false, err
	}
	if _, err := a.marketFor(terms.Underlying); err != nil {
		return common.Address{}, false, err
	}
	return common.Address{}, false, nil
}

func (a *Adapter) TermsOf(position common.Address) (types.OptionPosition, error) {
	_, pos, err := a.positionOf(position)
	if err != nil {
		return types.OptionPosition{}, err
	}
	return a.normalize(pos), nil
}

// normalize stamps the quote asset onto a market record whose settlement
// denomination is native and therefore carries a zero strike asset.
func (a *Adapter) normalize(pos types.OptionPosition) types.OptionPosition {
	if pos.Terms.StrikeAsset == (common.Address{}) {
		pos.Terms.StrikeAsset = a.quoteAsset
	}
	return pos
}

// PremiumQuote prices the purchase in paymentAsset units. The zero address
// asks for the sub-market's own settlement denomination; anything else is
// converted through the pool's exact-output quote.
func (a *Adapter) PremiumQuote(terms types.OptionTerms, amount sdkmath.Int, paymentAsset common.Address) (sdkmath.Int, error) {
	entry, err := a.marketFor(terms.Underlying)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	cost, err := a.settlementCost(entry, terms, amount)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	denom := paymentDenom(entry.market)
	if paymentAsset == denom {
		return cost, nil
	}
	// Paying in the other asset: the pool must know both sides.
	if _, err := a.pool.Reserve(paymentAsset); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return a.pool.QuoteAmountIn(denom, cost)
}

// settlementCost quotes the sub-market fee in its settlement denomination,
// rescaling the generic 18-decimal strike into the protocol's 8 decimals.
func (a *Adapter) settlementCost(entry marketEntry, terms types.OptionTerms, amount sdkmath.Int) (sdkmath.Int, error) {
	if err := terms.Validate(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	strike, err := utils.RescaleDecimals(terms.StrikePrice, 18, StrikeDecimals)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	period := terms.Expiry.Sub(a.now())
	if period <= 0 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: expiry %s is in the past", adapter.ErrUnsupportedTerms, terms.Expiry)
	}
	return entry.market.Fee(period, amount, strike, terms.OptionType)
}

func (a *Adapter) CanExercise(position common.Address) (bool, error) {
	entry, pos, err := a.positionOf(position)
	if err != nil {
		if errors.Is(err, adapter.ErrPositionNotFound) {
			return false, nil
		}
		return false, err
	}
	if pos.State != types.PositionActive {
		return false, nil
	}
	profit, err := a.profitOf(entry, pos)
	if err != nil {
		return false, err
	}
	return profit.IsPositive(), nil
}

func (a *Adapter) ExerciseProfit(position common.Address) (sdkmath.Int, error) {
	entry, pos, err := a.positionOf(position)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return a.profitOf(entry, pos)
}

// profitOf prices the intrinsic value of a position in settlement units at
// the feed's current price, capped at the locked collateral.
func (a *Adapter) profitOf(entry marketEntry, pos types.OptionPosition) (sdkmath.Int, error) {
	price, err := entry.feed.LatestPrice()
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("hegic adapter: price feed: %w", err)
	}
	strike, err := utils.RescaleDecimals(pos.Terms.StrikePrice, 18, StrikeDecimals)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	var profit sdkmath.Int
	switch pos.Terms.OptionType {
	case types.OptionCall:
		if price.LTE(strike) {
			return sdkmath.ZeroInt(), nil
		}
		profit = price.Sub(strike).Mul(pos.Amount).Quo(price)
	case types.OptionPut:
		if strike.LTE(price) {
			return sdkmath.ZeroInt(), nil
		}
		profit = strike.Sub(price).Mul(pos.Amount).Quo(price)
	default:
		return sdkmath.ZeroInt(), fmt.Errorf("hegic adapter: invalid option type %d", pos.Terms.OptionType)
	}

	if profit.GT(pos.LockedCollateral) {
		profit = pos.LockedCollateral
	}
	return profit, nil
}

// Purchase opens a position for the buyer. Native-denominated markets take
// the premium out of the attached value; paying with the alternate asset
// swaps exact-out through the pool first and must attach zero value.
func (a *Adapter) Purchase(buyer common.Address, terms types.OptionTerms, amount sdkmath.Int, paymentAsset common.Address, value sdkmath.Int) (types.PurchaseRecord, error) {
	entry, err := a.marketFor(terms.Underlying)
	if err != nil {
		return types.PurchaseRecord{}, err
	}
	cost, err := a.settlementCost(entry, terms, amount)
	if err != nil {
		return types.PurchaseRecord{}, err
	}
	denom := paymentDenom(entry.market)

	if paymentAsset != denom {
		if !value.IsNil() && !value.IsZero() {
			return types.PurchaseRecord{}, ErrUnexpectedValue
		}
		if _, err := a.pool.Reserve(paymentAsset); err != nil {
			return types.PurchaseRecord{}, err
		}
		if _, err := a.pool.SwapExactOut(buyer, buyer, denom, cost); err != nil {
			return types.PurchaseRecord{}, fmt.Errorf("hegic adapter: payment conversion: %w", err)
		}
	} else if entry.market.SettlementNative() {
		if value.IsNil() || value.LT(cost) {
			return types.PurchaseRecord{}, fmt.Errorf("%w: need %s", ErrInsufficientValue, cost)
		}
	}

	if err := a.payPremium(entry.market, buyer, cost); err != nil {
		return types.PurchaseRecord{}, err
	}

	strike, err := utils.RescaleDecimals(terms.StrikePrice, 18, StrikeDecimals)
	if err != nil {
		return types.PurchaseRecord{}, err
	}
	period := terms.Expiry.Sub(a.now())

	id, err := entry.market.Create(buyer, period, amount, strike, terms.OptionType, cost)
	if err != nil {
		// Refund the premium leg so a rejected creation leaves no effects.
		if refundErr := a.payout(entry.market, buyer, cost); refundErr != nil {
			return types.PurchaseRecord{}, errors.Join(err, refundErr)
		}
		return types.PurchaseRecord{}, err
	}

	pos, _, err := entry.market.Position(id)
	if err != nil {
		return types.PurchaseRecord{}, err
	}

	a.logger.Info().
		Str("position", id.Hex()).
		Str("buyer", buyer.Hex()).
		Str("type", terms.OptionType.String()).
		Str("size", amount.String()).
		Str("premium", cost.String()).
		Msg("Purchased option position")

	return types.PurchaseRecord{
		Position:     id,
		Terms:        a.normalize(pos).Terms,
		Amount:       amount,
		Premium:      cost,
		PaymentAsset: paymentAsset,
		Timestamp:    a.now(),
	}, nil
}

// Exercise realizes the position's intrinsic value to the beneficiary in the
// sub-market's settlement denomination.
func (a *Adapter) Exercise(position, beneficiary common.Address) (sdkmath.Int, error) {
	entry, pos, err := a.positionOf(position)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if pos.State != types.PositionActive {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: state %s", ErrNotExercisable, pos.State)
	}
	profit, err := a.profitOf(entry, pos)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if !profit.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: no intrinsic value", ErrNotExercisable)
	}

	if err := entry.market.MarkExercised(position); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := a.payout(entry.market, beneficiary, profit); err != nil {
		return sdkmath.ZeroInt(), err
	}

	a.logger.Info().
		Str("position", position.Hex()).
		Str("beneficiary", beneficiary.Hex()).
		Str("profit", profit.String()).
		Msg("Exercised option position")

	return profit, nil
}

// TransferPosition routes an ownership transfer to the issuing sub-market.
func (a *Adapter) TransferPosition(position, from, to common.Address) error {
	entry, _, err := a.positionOf(position)
	if err != nil {
		return err
	}
	return entry.market.TransferPosition(position, from, to)
}

// payPremium moves the settlement-denominated cost from the buyer into the
// market's liquidity account.
func (a *Adapter) payPremium(m Market, buyer common.Address, cost sdkmath.Int) error {
	if m.SettlementNative() {
		return a.bank.NativeTransfer(buyer, m.Account(), cost)
	}
	ledger, err := a.bank.Ledger(m.SettlementAsset())
	if err != nil {
		return err
	}
	return ledger.Transfer(buyer, m.Account(), cost)
}

// payout moves settlement funds from the market's liquidity account out.
func (a *Adapter) payout(m Market, to common.Address, amount sdkmath.Int) error {
	if m.SettlementNative() {
		return a.bank.NativeTransfer(m.Account(), to, amount)
	}
	ledger, err := a.bank.Ledger(m.SettlementAsset())
	if err != nil {
		return err
	}
	return ledger.Transfer(m.Account(), to, amount)
}

func (a *Adapter) marketFor(underlying common.Address) (marketEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, entry := range a.markets {
		if entry.market.Underlying() == underlying {
			return entry, nil
		}
	}
	return marketEntry{}, fmt.Errorf("%w: %s", ErrNoMarket, underlying.Hex())
}

// positionOf finds the sub-market that issued the position.
func (a *Adapter) positionOf(position common.Address) (marketEntry, types.OptionPosition, error) {
	a.mu.Lock()
	entries := make([]marketEntry, len(a.markets))
	copy(entries, a.markets)
	a.mu.Unlock()

	for _, entry := range entries {
		pos, ok, err := entry.market.Position(position)
		if err != nil {
			return marketEntry{}, types.OptionPosition{}, err
		}
		if ok {
			return entry, pos, nil
		}
	}
	return marketEntry{}, types.OptionPosition{}, fmt.Errorf("%w: %s", adapter.ErrPositionNotFound, position.Hex())
}

// paymentDenom is the asset a sub-market prices its fee in: the zero address
// for native, the settlement token otherwise.
func paymentDenom(m Market) common.Address {
	if m.SettlementNative() {
		return swap.NativeAsset
	}
	return m.SettlementAsset()
}
