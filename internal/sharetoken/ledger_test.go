package sharetoken

import (
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

var (
	holderA = common.HexToAddress("0x0000000000000000000000000000000000005001")
	holderB = common.HexToAddress("0x0000000000000000000000000000000000005002")
)

func TestMintAndBurnTrackSupply(t *testing.T) {
	ledger := NewMemoryLedger("Vault Share", "oWETH", 18)

	if err := ledger.Mint(holderA, sdkmath.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	supply, _ := ledger.TotalSupply()
	if !supply.Equal(sdkmath.NewInt(100)) {
		t.Fatalf("supply %s after mint, want 100", supply)
	}

	if err := ledger.Burn(holderA, sdkmath.NewInt(40)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	supply, _ = ledger.TotalSupply()
	balance, _ := ledger.BalanceOf(holderA)
	if !supply.Equal(sdkmath.NewInt(60)) || !balance.Equal(sdkmath.NewInt(60)) {
		t.Fatalf("supply %s balance %s after burn, want 60/60", supply, balance)
	}

	if err := ledger.Burn(holderA, sdkmath.NewInt(61)); !errors.Is(err, ErrInsufficientShare) {
		t.Fatalf("over-burn: got %v, want ErrInsufficientShare", err)
	}
}

func TestTransferDoesNotChangeSupply(t *testing.T) {
	ledger := NewMemoryLedger("Vault Share", "oWETH", 18)
	if err := ledger.Mint(holderA, sdkmath.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := ledger.Transfer(holderA, holderB, sdkmath.NewInt(25)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	supply, _ := ledger.TotalSupply()
	a, _ := ledger.BalanceOf(holderA)
	b, _ := ledger.BalanceOf(holderB)
	if !supply.Equal(sdkmath.NewInt(100)) || !a.Equal(sdkmath.NewInt(75)) || !b.Equal(sdkmath.NewInt(25)) {
		t.Fatalf("supply %s a %s b %s after transfer", supply, a, b)
	}

	if err := ledger.Transfer(holderB, holderA, sdkmath.ZeroInt()); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero transfer: got %v, want ErrInvalidAmount", err)
	}
}

func TestLedgerMetadata(t *testing.T) {
	ledger := NewMemoryLedger("Vault Share", "oWETH", 18)
	if ledger.Name() != "Vault Share" || ledger.Symbol() != "oWETH" || ledger.Decimals() != 18 {
		t.Fatalf("metadata %s/%s/%d", ledger.Name(), ledger.Symbol(), ledger.Decimals())
	}
}
