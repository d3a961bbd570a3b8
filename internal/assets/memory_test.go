package assets

import (
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

var (
	testToken = common.HexToAddress("0x0000000000000000000000000000000000003001")
	alice     = common.HexToAddress("0x0000000000000000000000000000000000003002")
	bob       = common.HexToAddress("0x0000000000000000000000000000000000003003")
	carol     = common.HexToAddress("0x0000000000000000000000000000000000003004")
)

func fundedLedger(t *testing.T, amount int64) (*MemoryBank, Ledger) {
	t.Helper()
	bank := NewMemoryBank()
	bank.RegisterAsset(testToken)
	if err := bank.Mint(testToken, alice, sdkmath.NewInt(amount)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	ledger, err := bank.Ledger(testToken)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	return bank, ledger
}

func TestLedgerUnregisteredAsset(t *testing.T) {
	bank := NewMemoryBank()
	if _, err := bank.Ledger(testToken); !errors.Is(err, ErrUnknownAsset) {
		t.Fatalf("got %v, want ErrUnknownAsset", err)
	}
}

func TestTransferMovesBalance(t *testing.T) {
	_, ledger := fundedLedger(t, 100)

	if err := ledger.Transfer(alice, bob, sdkmath.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	got, _ := ledger.BalanceOf(bob)
	if !got.Equal(sdkmath.NewInt(40)) {
		t.Fatalf("bob holds %s, want 40", got)
	}
	rest, _ := ledger.BalanceOf(alice)
	if !rest.Equal(sdkmath.NewInt(60)) {
		t.Fatalf("alice holds %s, want 60", rest)
	}
}

func TestTransferRejectsOverdraftAndZeroes(t *testing.T) {
	_, ledger := fundedLedger(t, 100)

	if err := ledger.Transfer(alice, bob, sdkmath.NewInt(101)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("overdraft: got %v, want ErrInsufficientBalance", err)
	}
	if err := ledger.Transfer(alice, bob, sdkmath.ZeroInt()); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero amount: got %v, want ErrInvalidAmount", err)
	}
	if err := ledger.Transfer(alice, common.Address{}, sdkmath.NewInt(1)); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("zero recipient: got %v, want ErrZeroAddress", err)
	}
}

func TestTransferFromSpendsAllowance(t *testing.T) {
	_, ledger := fundedLedger(t, 100)

	if err := ledger.Approve(alice, bob, sdkmath.NewInt(30)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := ledger.TransferFrom(bob, alice, carol, sdkmath.NewInt(20)); err != nil {
		t.Fatalf("transfer from: %v", err)
	}

	got, _ := ledger.BalanceOf(carol)
	if !got.Equal(sdkmath.NewInt(20)) {
		t.Fatalf("carol holds %s, want 20", got)
	}
	left, _ := ledger.Allowance(alice, bob)
	if !left.Equal(sdkmath.NewInt(10)) {
		t.Fatalf("allowance %s after spend, want 10", left)
	}

	if err := ledger.TransferFrom(bob, alice, carol, sdkmath.NewInt(11)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("over-allowance: got %v, want ErrInsufficientAllowance", err)
	}
}

func TestApproveOverwritesPriorAllowance(t *testing.T) {
	_, ledger := fundedLedger(t, 100)

	if err := ledger.Approve(alice, bob, sdkmath.NewInt(30)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := ledger.Approve(alice, bob, sdkmath.ZeroInt()); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	left, _ := ledger.Allowance(alice, bob)
	if !left.IsZero() {
		t.Fatalf("allowance %s after revoke, want 0", left)
	}
}

func TestNativeTransfer(t *testing.T) {
	bank := NewMemoryBank()
	bank.MintNative(alice, sdkmath.NewInt(50))

	if err := bank.NativeTransfer(alice, bob, sdkmath.NewInt(20)); err != nil {
		t.Fatalf("native transfer: %v", err)
	}
	got, _ := bank.NativeBalance(bob)
	if !got.Equal(sdkmath.NewInt(20)) {
		t.Fatalf("bob holds %s native, want 20", got)
	}
	if err := bank.NativeTransfer(alice, bob, sdkmath.NewInt(31)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("overdraft: got %v, want ErrInsufficientBalance", err)
	}
}

func TestWrapperRoundTrip(t *testing.T) {
	bank := NewMemoryBank()
	wrapper := NewMemoryWrapper(bank, testToken)
	bank.MintNative(alice, sdkmath.NewInt(100))

	if err := wrapper.Wrap(alice, sdkmath.NewInt(60)); err != nil {
		t.Fatalf("wrap: %v", err)
	}
	ledger, err := bank.Ledger(testToken)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	wrapped, _ := ledger.BalanceOf(alice)
	native, _ := bank.NativeBalance(alice)
	if !wrapped.Equal(sdkmath.NewInt(60)) || !native.Equal(sdkmath.NewInt(40)) {
		t.Fatalf("after wrap: wrapped %s native %s", wrapped, native)
	}

	if err := wrapper.Unwrap(alice, sdkmath.NewInt(60)); err != nil {
		t.Fatalf("unwrap: %v", err)
	}
	wrapped, _ = ledger.BalanceOf(alice)
	native, _ = bank.NativeBalance(alice)
	if !wrapped.IsZero() || !native.Equal(sdkmath.NewInt(100)) {
		t.Fatalf("after unwrap: wrapped %s native %s", wrapped, native)
	}

	if err := wrapper.Unwrap(alice, sdkmath.NewInt(1)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("unwrap beyond balance: got %v, want ErrInsufficientBalance", err)
	}
}
