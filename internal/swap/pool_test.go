package swap

import (
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/quillon-fi/ovm/internal/assets"
)

var (
	poolAddr  = common.HexToAddress("0x0000000000000000000000000000000000002001")
	tokenAddr = common.HexToAddress("0x0000000000000000000000000000000000002002")
	payer     = common.HexToAddress("0x0000000000000000000000000000000000002003")
	recipient = common.HexToAddress("0x0000000000000000000000000000000000002004")
)

func TestAmountInRoundsUp(t *testing.T) {
	// 1000*100*1000 / (900*997) = 111.44 truncated to 111, plus one.
	in, err := AmountIn(sdkmath.NewInt(1000), sdkmath.NewInt(1000), sdkmath.NewInt(100))
	if err != nil {
		t.Fatalf("amount in: %v", err)
	}
	if !in.Equal(sdkmath.NewInt(112)) {
		t.Fatalf("amount in = %s, want 112", in)
	}
}

func TestAmountInKnownReserves(t *testing.T) {
	// 100000*10*1000 / (490*997) = 2046.96 truncated to 2046, plus one.
	in, err := AmountIn(sdkmath.NewInt(100_000), sdkmath.NewInt(500), sdkmath.NewInt(10))
	if err != nil {
		t.Fatalf("amount in: %v", err)
	}
	if !in.Equal(sdkmath.NewInt(2047)) {
		t.Fatalf("amount in = %s, want 2047", in)
	}
}

func TestAmountInRejectsBadOutput(t *testing.T) {
	if _, err := AmountIn(sdkmath.NewInt(1000), sdkmath.NewInt(1000), sdkmath.ZeroInt()); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero output: got %v, want ErrInvalidAmount", err)
	}
	if _, err := AmountIn(sdkmath.NewInt(1000), sdkmath.NewInt(1000), sdkmath.NewInt(1000)); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("draining output: got %v, want ErrInsufficientLiquidity", err)
	}
}

func newTestPool(t *testing.T) (*assets.MemoryBank, *MemoryPool) {
	t.Helper()
	bank := assets.NewMemoryBank()
	pool, err := NewMemoryPool(bank, poolAddr, tokenAddr, sdkmath.NewInt(1_000_000), sdkmath.NewInt(2_000_000_000))
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	return bank, pool
}

func TestReserveKnowsBothSides(t *testing.T) {
	_, pool := newTestPool(t)

	native, err := pool.Reserve(NativeAsset)
	if err != nil {
		t.Fatalf("native reserve: %v", err)
	}
	if !native.Equal(sdkmath.NewInt(1_000_000)) {
		t.Fatalf("native reserve = %s", native)
	}
	token, err := pool.Reserve(tokenAddr)
	if err != nil {
		t.Fatalf("token reserve: %v", err)
	}
	if !token.Equal(sdkmath.NewInt(2_000_000_000)) {
		t.Fatalf("token reserve = %s", token)
	}
	if _, err := pool.Reserve(payer); !errors.Is(err, ErrUnknownPoolAsset) {
		t.Fatalf("stranger asset: got %v, want ErrUnknownPoolAsset", err)
	}
}

func TestSwapExactOutMovesFundsAndReserves(t *testing.T) {
	bank, pool := newTestPool(t)
	bank.MintNative(payer, sdkmath.NewInt(1_000_000))

	out := sdkmath.NewInt(50_000)
	quoted, err := pool.QuoteAmountIn(tokenAddr, out)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}

	paid, err := pool.SwapExactOut(payer, recipient, tokenAddr, out)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if !paid.Equal(quoted) {
		t.Fatalf("paid %s, quoted %s", paid, quoted)
	}

	ledger, err := bank.Ledger(tokenAddr)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	got, err := ledger.BalanceOf(recipient)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !got.Equal(out) {
		t.Fatalf("recipient received %s, want %s", got, out)
	}

	native, _ := pool.Reserve(NativeAsset)
	token, _ := pool.Reserve(tokenAddr)
	if !native.Equal(sdkmath.NewInt(1_000_000).Add(paid)) {
		t.Fatalf("native reserve %s after swap", native)
	}
	if !token.Equal(sdkmath.NewInt(2_000_000_000).Sub(out)) {
		t.Fatalf("token reserve %s after swap", token)
	}
}

func TestSwapExactOutNativeLeg(t *testing.T) {
	bank, pool := newTestPool(t)
	if err := bank.Mint(tokenAddr, payer, sdkmath.NewInt(1_000_000_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	out := sdkmath.NewInt(10_000)
	paid, err := pool.SwapExactOut(payer, recipient, NativeAsset, out)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if !paid.IsPositive() {
		t.Fatalf("paid %s, want positive", paid)
	}

	got, err := bank.NativeBalance(recipient)
	if err != nil {
		t.Fatalf("native balance: %v", err)
	}
	if !got.Equal(out) {
		t.Fatalf("recipient received %s native, want %s", got, out)
	}
}

func TestSwapExactOutFailsWithoutFunds(t *testing.T) {
	_, pool := newTestPool(t)
	if _, err := pool.SwapExactOut(payer, recipient, tokenAddr, sdkmath.NewInt(1000)); err == nil {
		t.Fatal("unfunded payer should not swap")
	}
}
