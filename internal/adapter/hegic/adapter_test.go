package hegic

import (
	"errors"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/quillon-fi/ovm/internal/adapter"
	"github.com/quillon-fi/ovm/internal/assets"
	"github.com/quillon-fi/ovm/internal/oracle"
	"github.com/quillon-fi/ovm/internal/swap"
	"github.com/quillon-fi/ovm/internal/types"
)

var (
	testWETH    = common.HexToAddress("0x0000000000000000000000000000000000000101")
	testUSDC    = common.HexToAddress("0x0000000000000000000000000000000000000102")
	testBuyer   = common.HexToAddress("0x0000000000000000000000000000000000000201")
	testOther   = common.HexToAddress("0x0000000000000000000000000000000000000202")
	testMktAcct = common.HexToAddress("0x0000000000000000000000000000000000000301")
	testPoolAct = common.HexToAddress("0x0000000000000000000000000000000000000302")
)

type testRig struct {
	bank    *assets.MemoryBank
	pool    *swap.MemoryPool
	market  *MemoryMarket
	feed    *oracle.StaticFeed
	adapter *Adapter
	clock   *time.Time
}

// strike18 lifts an 8-decimal strike into the generic 18-decimal convention.
func strike18(strike8 int64) sdkmath.Int {
	return sdkmath.NewInt(strike8).Mul(pow10(10))
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	bank := assets.NewMemoryBank()
	feed, err := oracle.NewStaticFeed(sdkmath.NewInt(2000_00000000))
	require.NoError(t, err)

	pool, err := swap.NewMemoryPool(bank, testPoolAct, testUSDC,
		sdkmath.NewInt(1_000_000_000_000), sdkmath.NewInt(2_000_000_000_000))
	require.NoError(t, err)

	market, err := NewMemoryMarket(bank, testWETH, common.Address{}, testMktAcct, feed,
		sdkmath.NewInt(55_000_000), sdkmath.NewInt(1_000_000_000_000))
	require.NoError(t, err)

	a := NewAdapter(bank, pool, testUSDC)
	a.RegisterMarket(market, feed)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &base
	now := func() time.Time { return *clock }
	market.SetClock(now)
	a.SetClock(now)

	return &testRig{bank: bank, pool: pool, market: market, feed: feed, adapter: a, clock: clock}
}

func (r *testRig) callTerms(strike8 int64, period time.Duration) types.OptionTerms {
	return types.OptionTerms{
		Underlying:  testWETH,
		StrikeAsset: testUSDC,
		Expiry:      r.clock.Add(period),
		StrikePrice: strike18(strike8),
		OptionType:  types.OptionCall,
	}
}

func TestPremiumQuoteConvertsThroughPool(t *testing.T) {
	rig := newTestRig(t)
	terms := rig.callTerms(2200_00000000, 7*24*time.Hour)
	size := sdkmath.NewInt(1_000_000_000)

	native, err := rig.adapter.PremiumQuote(terms, size, swap.NativeAsset)
	require.NoError(t, err)
	require.True(t, native.IsPositive())

	expected, err := rig.pool.QuoteAmountIn(swap.NativeAsset, native)
	require.NoError(t, err)

	inToken, err := rig.adapter.PremiumQuote(terms, size, testUSDC)
	require.NoError(t, err)
	require.True(t, inToken.Equal(expected))

	// An asset the pool does not pair is rejected, not mispriced.
	_, err = rig.adapter.PremiumQuote(terms, size, testOther)
	require.ErrorIs(t, err, swap.ErrUnknownPoolAsset)
}

func TestPremiumQuoteRejectsPastExpiry(t *testing.T) {
	rig := newTestRig(t)
	terms := rig.callTerms(2200_00000000, 7*24*time.Hour)
	terms.Expiry = rig.clock.Add(-time.Hour)

	_, err := rig.adapter.PremiumQuote(terms, sdkmath.NewInt(1_000_000_000), swap.NativeAsset)
	require.ErrorIs(t, err, adapter.ErrUnsupportedTerms)
}

func TestPurchaseNativeMarket(t *testing.T) {
	rig := newTestRig(t)
	terms := rig.callTerms(2200_00000000, 7*24*time.Hour)
	size := sdkmath.NewInt(1_000_000_000)

	cost, err := rig.adapter.PremiumQuote(terms, size, swap.NativeAsset)
	require.NoError(t, err)

	rig.bank.MintNative(testBuyer, cost.MulRaw(2))
	before, err := rig.bank.NativeBalance(testMktAcct)
	require.NoError(t, err)

	// Attached value below cost is refused outright.
	_, err = rig.adapter.Purchase(testBuyer, terms, size, swap.NativeAsset, cost.SubRaw(1))
	require.ErrorIs(t, err, ErrInsufficientValue)

	record, err := rig.adapter.Purchase(testBuyer, terms, size, swap.NativeAsset, cost)
	require.NoError(t, err)
	require.True(t, record.Premium.Equal(cost))
	require.Equal(t, testUSDC, record.Terms.StrikeAsset)

	after, err := rig.bank.NativeBalance(testMktAcct)
	require.NoError(t, err)
	require.True(t, after.Sub(before).Equal(cost))

	pos, err := rig.adapter.TermsOf(record.Position)
	require.NoError(t, err)
	require.Equal(t, testBuyer, pos.Holder)
	require.Equal(t, types.PositionActive, pos.State)
	require.True(t, pos.Amount.Equal(size))
}

func TestPurchasePayingWithTokenSwapsExactOut(t *testing.T) {
	rig := newTestRig(t)
	terms := rig.callTerms(2200_00000000, 7*24*time.Hour)
	size := sdkmath.NewInt(1_000_000_000)

	tokenCost, err := rig.adapter.PremiumQuote(terms, size, testUSDC)
	require.NoError(t, err)
	require.NoError(t, rig.bank.Mint(testUSDC, testBuyer, tokenCost))

	// Attaching native value alongside a token payment is a mistake.
	_, err = rig.adapter.Purchase(testBuyer, terms, size, testUSDC, sdkmath.OneInt())
	require.ErrorIs(t, err, ErrUnexpectedValue)

	record, err := rig.adapter.Purchase(testBuyer, terms, size, testUSDC, sdkmath.ZeroInt())
	require.NoError(t, err)

	ledger, err := rig.bank.Ledger(testUSDC)
	require.NoError(t, err)
	left, err := ledger.BalanceOf(testBuyer)
	require.NoError(t, err)
	require.True(t, left.IsZero(), "token payment should consume the quoted input, left %s", left)

	pos, err := rig.adapter.TermsOf(record.Position)
	require.NoError(t, err)
	require.Equal(t, types.PositionActive, pos.State)
}

func TestExercisePaysBeneficiaryNative(t *testing.T) {
	rig := newTestRig(t)
	terms := rig.callTerms(2200_00000000, 7*24*time.Hour)
	size := sdkmath.NewInt(1_000_000_000)

	cost, err := rig.adapter.PremiumQuote(terms, size, swap.NativeAsset)
	require.NoError(t, err)
	rig.bank.MintNative(testBuyer, cost)

	record, err := rig.adapter.Purchase(testBuyer, terms, size, swap.NativeAsset, cost)
	require.NoError(t, err)

	// At the money or below, the call has no intrinsic value.
	ok, err := rig.adapter.CanExercise(record.Position)
	require.NoError(t, err)
	require.False(t, ok)
	_, err = rig.adapter.Exercise(record.Position, testOther)
	require.ErrorIs(t, err, ErrNotExercisable)

	require.NoError(t, rig.feed.SetPrice(sdkmath.NewInt(2600_00000000)))
	ok, err = rig.adapter.CanExercise(record.Position)
	require.NoError(t, err)
	require.True(t, ok)

	expected, err := rig.adapter.ExerciseProfit(record.Position)
	require.NoError(t, err)

	paid, err := rig.adapter.Exercise(record.Position, testOther)
	require.NoError(t, err)
	require.True(t, paid.Equal(expected))

	got, err := rig.bank.NativeBalance(testOther)
	require.NoError(t, err)
	require.True(t, got.Equal(expected))

	// A position settles once.
	_, err = rig.adapter.Exercise(record.Position, testOther)
	require.ErrorIs(t, err, ErrNotExercisable)
}

func TestExerciseWithinSettlementWindow(t *testing.T) {
	rig := newTestRig(t)
	terms := rig.callTerms(2200_00000000, 24*time.Hour)
	size := sdkmath.NewInt(1_000_000_000)

	cost, err := rig.adapter.PremiumQuote(terms, size, swap.NativeAsset)
	require.NoError(t, err)
	rig.bank.MintNative(testBuyer, cost)
	record, err := rig.adapter.Purchase(testBuyer, terms, size, swap.NativeAsset, cost)
	require.NoError(t, err)

	// Settlement happens strictly after expiry; inside the window the
	// position is still live and pays its intrinsic value.
	require.NoError(t, rig.feed.SetPrice(sdkmath.NewInt(4400_00000000)))
	*rig.clock = rig.clock.Add(24*time.Hour + time.Minute)

	pos, err := rig.adapter.TermsOf(record.Position)
	require.NoError(t, err)
	require.Equal(t, types.PositionActive, pos.State)

	ok, err := rig.adapter.CanExercise(record.Position)
	require.NoError(t, err)
	require.True(t, ok)

	paid, err := rig.adapter.Exercise(record.Position, testOther)
	require.NoError(t, err)
	require.True(t, paid.IsPositive())

	got, err := rig.bank.NativeBalance(testOther)
	require.NoError(t, err)
	require.True(t, got.Equal(paid))
}

func TestExpiredPositionIsNotExercisable(t *testing.T) {
	rig := newTestRig(t)
	terms := rig.callTerms(2200_00000000, 24*time.Hour)
	size := sdkmath.NewInt(1_000_000_000)

	cost, err := rig.adapter.PremiumQuote(terms, size, swap.NativeAsset)
	require.NoError(t, err)
	rig.bank.MintNative(testBuyer, cost)
	record, err := rig.adapter.Purchase(testBuyer, terms, size, swap.NativeAsset, cost)
	require.NoError(t, err)

	require.NoError(t, rig.feed.SetPrice(sdkmath.NewInt(2600_00000000)))
	*rig.clock = rig.clock.Add(24*time.Hour + SettlementWindow + time.Minute)

	pos, err := rig.adapter.TermsOf(record.Position)
	require.NoError(t, err)
	require.Equal(t, types.PositionExpired, pos.State)

	ok, err := rig.adapter.CanExercise(record.Position)
	require.NoError(t, err)
	require.False(t, ok)
	_, err = rig.adapter.Exercise(record.Position, testOther)
	require.ErrorIs(t, err, ErrNotExercisable)
}

func TestTransferPositionRequiresHolder(t *testing.T) {
	rig := newTestRig(t)
	terms := rig.callTerms(2200_00000000, 7*24*time.Hour)
	size := sdkmath.NewInt(1_000_000_000)

	cost, err := rig.adapter.PremiumQuote(terms, size, swap.NativeAsset)
	require.NoError(t, err)
	rig.bank.MintNative(testBuyer, cost)
	record, err := rig.adapter.Purchase(testBuyer, terms, size, swap.NativeAsset, cost)
	require.NoError(t, err)

	err = rig.adapter.TransferPosition(record.Position, testOther, testOther)
	require.ErrorIs(t, err, ErrNotHolder)

	require.NoError(t, rig.adapter.TransferPosition(record.Position, testBuyer, testOther))
	pos, err := rig.adapter.TermsOf(record.Position)
	require.NoError(t, err)
	require.Equal(t, testOther, pos.Holder)
}

func TestLookupOptionReportsNoStandingInstrument(t *testing.T) {
	rig := newTestRig(t)
	terms := rig.callTerms(2200_00000000, 7*24*time.Hour)

	_, found, err := rig.adapter.LookupOption(terms)
	require.NoError(t, err)
	require.False(t, found)

	terms.Underlying = testOther
	_, _, err = rig.adapter.LookupOption(terms)
	require.ErrorIs(t, err, ErrNoMarket)
}

// stubMarket returns a fixed position so profit math can be probed with
// crafted collateral values.
type stubMarket struct {
	underlying common.Address
	pos        types.OptionPosition
}

func (s *stubMarket) Underlying() common.Address      { return s.underlying }
func (s *stubMarket) SettlementNative() bool          { return true }
func (s *stubMarket) SettlementAsset() common.Address { return common.Address{} }
func (s *stubMarket) Account() common.Address         { return testMktAcct }
func (s *stubMarket) Fee(time.Duration, sdkmath.Int, sdkmath.Int, types.OptionType) (sdkmath.Int, error) {
	return sdkmath.ZeroInt(), errors.New("not implemented")
}
func (s *stubMarket) Create(common.Address, time.Duration, sdkmath.Int, sdkmath.Int, types.OptionType, sdkmath.Int) (common.Address, error) {
	return common.Address{}, errors.New("not implemented")
}
func (s *stubMarket) Position(id common.Address) (types.OptionPosition, bool, error) {
	if id != s.pos.ID {
		return types.OptionPosition{}, false, nil
	}
	return s.pos, true, nil
}
func (s *stubMarket) MarkExercised(common.Address) error             { return nil }
func (s *stubMarket) TransferPosition(_, _, _ common.Address) error { return nil }

func TestCallProfitCappedAtLockedCollateral(t *testing.T) {
	feed, err := oracle.NewStaticFeed(sdkmath.NewInt(1200))
	require.NoError(t, err)

	id := common.HexToAddress("0x0000000000000000000000000000000000000F01")
	stub := &stubMarket{
		underlying: testWETH,
		pos: types.OptionPosition{
			ID:     id,
			Holder: testBuyer,
			Terms: types.OptionTerms{
				Underlying:  testWETH,
				StrikeAsset: testUSDC,
				Expiry:      time.Now().Add(time.Hour),
				StrikePrice: strike18(1000),
				OptionType:  types.OptionCall,
			},
			Amount:           sdkmath.NewInt(10),
			LockedCollateral: sdkmath.OneInt(),
			State:            types.PositionActive,
		},
	}

	a := NewAdapter(assets.NewMemoryBank(), nil, testUSDC)
	a.RegisterMarket(stub, feed)

	// Intrinsic value (1200-1000)*10/1200 = 1 is already at the cap; raising
	// the price further must not pay out more than the locked unit.
	profit, err := a.ExerciseProfit(id)
	require.NoError(t, err)
	require.True(t, profit.Equal(sdkmath.OneInt()))

	require.NoError(t, feed.SetPrice(sdkmath.NewInt(5000)))
	profit, err = a.ExerciseProfit(id)
	require.NoError(t, err)
	require.True(t, profit.Equal(sdkmath.OneInt()), "profit %s exceeds locked collateral", profit)
}

func TestPutProfitFormula(t *testing.T) {
	feed, err := oracle.NewStaticFeed(sdkmath.NewInt(900))
	require.NoError(t, err)

	id := common.HexToAddress("0x0000000000000000000000000000000000000F02")
	stub := &stubMarket{
		underlying: testWETH,
		pos: types.OptionPosition{
			ID:     id,
			Holder: testBuyer,
			Terms: types.OptionTerms{
				Underlying:  testWETH,
				StrikeAsset: testUSDC,
				Expiry:      time.Now().Add(time.Hour),
				StrikePrice: strike18(1000),
				OptionType:  types.OptionPut,
			},
			Amount:           sdkmath.NewInt(900),
			LockedCollateral: sdkmath.NewInt(1_000_000),
			State:            types.PositionActive,
		},
	}

	a := NewAdapter(assets.NewMemoryBank(), nil, testUSDC)
	a.RegisterMarket(stub, feed)

	// (1000-900)*900/900 = 100.
	profit, err := a.ExerciseProfit(id)
	require.NoError(t, err)
	require.True(t, profit.Equal(sdkmath.NewInt(100)))

	// At or above the strike the put is worthless.
	require.NoError(t, feed.SetPrice(sdkmath.NewInt(1000)))
	profit, err = a.ExerciseProfit(id)
	require.NoError(t, err)
	require.True(t, profit.IsZero())
}
