package manager

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/quillon-fi/ovm/internal/adapter/hegic"
	"github.com/quillon-fi/ovm/internal/assets"
	"github.com/quillon-fi/ovm/internal/config"
	"github.com/quillon-fi/ovm/internal/oracle"
	"github.com/quillon-fi/ovm/internal/settlement"
	"github.com/quillon-fi/ovm/internal/sharetoken"
	"github.com/quillon-fi/ovm/internal/swap"
	"github.com/quillon-fi/ovm/internal/types"
	"github.com/quillon-fi/ovm/internal/vault"
)

// Well-known throwaway development key.
const testSignerKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var (
	testOwner   = common.HexToAddress("0x0000000000000000000000000000000000001901")
	testMgr     = common.HexToAddress("0x0000000000000000000000000000000000001902")
	testFeeRcpt = common.HexToAddress("0x0000000000000000000000000000000000001903")
	testAlice   = common.HexToAddress("0x0000000000000000000000000000000000001904")
	testCounter = common.HexToAddress("0x0000000000000000000000000000000000001905")
	testMktAcct = common.HexToAddress("0x0000000000000000000000000000000000001906")
	testPoolAct = common.HexToAddress("0x0000000000000000000000000000000000001907")
	testExec    = common.HexToAddress("0x0000000000000000000000000000000000001908")
)

func tokens(n int64) sdkmath.Int {
	return sdkmath.NewInt(n).MulRaw(1_000_000_000_000_000_000)
}

// volatileSeries alternates +/-2% hourly moves around the base price, which
// annualizes to roughly 185% volatility.
func volatileSeries(base float64, hours int) []types.PriceData {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(-time.Duration(hours) * time.Hour)
	out := make([]types.PriceData, hours)
	for i := range out {
		price := base
		if i%2 == 1 {
			price = base * 1.02
		}
		out[i] = types.PriceData{Timestamp: start.Add(time.Duration(i) * time.Hour), Price: price}
	}
	return out
}

func flatSeries(base float64, hours int) []types.PriceData {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(-time.Duration(hours) * time.Hour)
	out := make([]types.PriceData, hours)
	for i := range out {
		out[i] = types.PriceData{Timestamp: start.Add(time.Duration(i) * time.Hour), Price: base}
	}
	return out
}

type managerRig struct {
	bank    *assets.MemoryBank
	vault   *vault.Vault
	manager *Manager
	shares  *sharetoken.MemoryLedger
	feed    *oracle.StaticFeed
	clock   *time.Time
}

func defaultTestParams() *types.StrategyParameters {
	return &types.StrategyParameters{
		OTMPercent:           0.10,
		CycleDays:            1,
		PremiumBudgetPercent: 0.05,
		VolLookbackHours:     48,
		MinVolatility:        0.30,
		MaxVolatility:        2.50,
	}
}

func newManagerRig(t *testing.T, prices []types.PriceData, params *types.StrategyParameters) *managerRig {
	t.Helper()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &base
	now := func() time.Time { return *clock }

	bank := assets.NewMemoryBank()
	bank.RegisterAsset(config.WETH)
	bank.RegisterAsset(config.USDC)
	wrapper := assets.NewMemoryWrapper(bank, config.WETH)
	shares := sharetoken.NewMemoryLedger("Vault Share", "oWETH", 18)

	feed, err := oracle.NewStaticFeed(sdkmath.NewInt(2000_00000000))
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	pool, err := swap.NewMemoryPool(bank, testPoolAct, config.USDC, tokens(1000), tokens(2_000_000))
	if err != nil {
		t.Fatalf("pool: %v", err)
	}

	market, err := hegic.NewMemoryMarket(bank, config.WETH, common.Address{}, testMktAcct,
		feed, sdkmath.NewInt(55_000_000), tokens(1000))
	if err != nil {
		t.Fatalf("market: %v", err)
	}
	market.SetClock(now)

	adpt := hegic.NewAdapter(bank, pool, config.USDC)
	adpt.RegisterMarket(market, feed)
	adpt.SetClock(now)

	signer, err := settlement.NewSigner(testSignerKey)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	executor := settlement.NewMemoryExecutor(bank, adpt, testExec)
	executor.SetClock(now)

	v, err := vault.NewVault(vault.Config{
		Asset:           config.WETH,
		Underlying:      config.WETH,
		StrikeAsset:     config.USDC,
		Mode:            types.OptionCall,
		Adapter:         adpt,
		Executor:        executor,
		Bank:            bank,
		Wrapper:         wrapper,
		Address:         signer.Address(),
		MinimumPoolSize: sdkmath.ZeroInt(),
		FixedDelay:      time.Hour,
	})
	if err != nil {
		t.Fatalf("vault: %v", err)
	}
	v.SetClock(now)
	if err := v.Initialize(testOwner, testMgr, testFeeRcpt, tokens(1_000_000), shares); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	// Seed the pool and the counterparty.
	if err := bank.Mint(config.WETH, testAlice, tokens(100)); err != nil {
		t.Fatalf("fund depositor: %v", err)
	}
	if _, err := v.Deposit(testAlice, tokens(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	bank.MintNative(testCounter, tokens(50))

	m, err := NewManager(Config{
		Vault:          v,
		Adapter:        adpt,
		Signer:         signer,
		Shares:         shares,
		ManagerAddress: testMgr,
		Counterparty:   testCounter,
		Asset:          config.WETH,
		Underlying:     config.WETH,
		StrikeAsset:    config.USDC,
		PaymentAsset:   common.Address{},
		Mode:           types.OptionCall,
		Params:         params,
		FetchPrices: func(string, int) ([]types.PriceData, error) {
			return prices, nil
		},
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	m.SetClock(now)
	// Sleeping advances the shared clock instead of blocking.
	m.sleep = func(_ context.Context, d time.Duration) error {
		*clock = clock.Add(d)
		return nil
	}

	return &managerRig{bank: bank, vault: v, manager: m, shares: shares, feed: feed, clock: clock}
}

func TestRunCycleProposesRollsAndRedeems(t *testing.T) {
	rig := newManagerRig(t, volatileSeries(2000, 48), defaultTestParams())

	initialTotal, err := rig.vault.TotalBalance()
	if err != nil {
		t.Fatalf("total: %v", err)
	}

	if err := rig.manager.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	// The cycle closed: nothing open, nothing staged, nothing locked.
	if rig.vault.CurrentOption() != (common.Address{}) {
		t.Fatalf("position still open after cycle: %s", rig.vault.CurrentOption().Hex())
	}
	if _, staged := rig.vault.StagedPremium(); staged {
		t.Fatal("proposal still staged after cycle")
	}
	if !rig.vault.LockedAmount().IsZero() {
		t.Fatalf("locked %s after cycle, want 0", rig.vault.LockedAmount())
	}

	// The flat-price feed leaves the call worthless, so the pool paid the
	// premium and got nothing back. The counterparty received exactly what
	// the pool lost, in the vault asset.
	finalTotal, err := rig.vault.TotalBalance()
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	premiumPaid := initialTotal.Sub(finalTotal)
	if !premiumPaid.IsPositive() {
		t.Fatalf("no premium left the vault: initial %s, final %s", initialTotal, finalTotal)
	}

	ledger, err := rig.bank.Ledger(config.WETH)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	counterBalance, err := ledger.BalanceOf(testCounter)
	if err != nil {
		t.Fatalf("counter balance: %v", err)
	}
	if !counterBalance.Equal(premiumPaid) {
		t.Fatalf("counterparty holds %s, vault paid %s", counterBalance, premiumPaid)
	}
}

func TestRunCycleRealizesProfitInTheMoney(t *testing.T) {
	rig := newManagerRig(t, volatileSeries(2000, 48), defaultTestParams())
	base := *rig.clock

	// Once the clock jumps past the roll, move spot deep above the strike so
	// the call finishes in the money at settlement.
	rig.manager.sleep = func(_ context.Context, d time.Duration) error {
		*rig.clock = rig.clock.Add(d)
		if rig.clock.Sub(base) > 2*time.Hour {
			if err := rig.feed.SetPrice(sdkmath.NewInt(4400_00000000)); err != nil {
				return err
			}
		}
		return nil
	}

	initialTotal, err := rig.vault.TotalBalance()
	if err != nil {
		t.Fatalf("total: %v", err)
	}

	if err := rig.manager.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	if rig.vault.CurrentOption() != (common.Address{}) {
		t.Fatalf("position still open after cycle: %s", rig.vault.CurrentOption().Hex())
	}
	if !rig.vault.LockedAmount().IsZero() {
		t.Fatalf("locked %s after cycle, want 0", rig.vault.LockedAmount())
	}

	finalTotal, err := rig.vault.TotalBalance()
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	finalFree, err := rig.vault.FreeBalance()
	if err != nil {
		t.Fatalf("free: %v", err)
	}

	// The counterparty holds exactly the premium the vault paid, so the
	// exercise payout is the vault's balance move plus that premium.
	ledger, err := rig.bank.Ledger(config.WETH)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	premiumPaid, err := ledger.BalanceOf(testCounter)
	if err != nil {
		t.Fatalf("counter balance: %v", err)
	}
	profit := finalTotal.Add(premiumPaid).Sub(initialTotal)
	if !profit.IsPositive() {
		t.Fatalf("no realized profit: initial %s, final %s, premium %s", initialTotal, finalTotal, premiumPaid)
	}
	if !finalFree.Equal(finalTotal) {
		t.Fatalf("payout not in the free balance: free %s, total %s", finalFree, finalTotal)
	}
}

func TestRunCycleSkipsQuietMarket(t *testing.T) {
	rig := newManagerRig(t, flatSeries(2000, 48), defaultTestParams())

	initialTotal, err := rig.vault.TotalBalance()
	if err != nil {
		t.Fatalf("total: %v", err)
	}

	if err := rig.manager.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	if _, staged := rig.vault.StagedPremium(); staged {
		t.Fatal("quiet market should not stage a proposal")
	}
	finalTotal, err := rig.vault.TotalBalance()
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if !finalTotal.Equal(initialTotal) {
		t.Fatalf("balance moved on a skipped cycle: %s -> %s", initialTotal, finalTotal)
	}
}

func TestBuildPlanSizesUnderPremiumBudget(t *testing.T) {
	params := defaultTestParams()
	rig := newManagerRig(t, volatileSeries(2000, 48), params)

	free, err := rig.vault.FreeBalance()
	if err != nil {
		t.Fatalf("free: %v", err)
	}

	plan, err := rig.manager.buildPlan(volatileSeries(2000, 48), free)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !plan.Amount.IsPositive() {
		t.Fatalf("plan amount %s, want positive", plan.Amount)
	}
	if plan.Terms.OptionType != types.OptionCall {
		t.Fatalf("plan type %s, want call", plan.Terms.OptionType)
	}

	budget := free.MulRaw(5).QuoRaw(100)
	premium, err := rig.manager.cfg.Adapter.PremiumQuote(plan.Terms, plan.Amount, common.Address{})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if premium.GT(budget) {
		t.Fatalf("premium %s exceeds budget %s", premium, budget)
	}
}

func TestBuildPlanRejectsOutOfBandVolatility(t *testing.T) {
	rig := newManagerRig(t, flatSeries(2000, 48), defaultTestParams())

	free, err := rig.vault.FreeBalance()
	if err != nil {
		t.Fatalf("free: %v", err)
	}
	_, err = rig.manager.buildPlan(flatSeries(2000, 48), free)
	if !errors.Is(err, ErrVolatilityOutOfBand) {
		t.Fatalf("got %v, want ErrVolatilityOutOfBand", err)
	}
}
