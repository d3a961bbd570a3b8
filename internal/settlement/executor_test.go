package settlement

import (
	"errors"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/quillon-fi/ovm/internal/assets"
)

// Well-known throwaway development key.
const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var (
	testToken    = common.HexToAddress("0x0000000000000000000000000000000000004001")
	testSender   = common.HexToAddress("0x0000000000000000000000000000000000004002")
	testExecAddr = common.HexToAddress("0x0000000000000000000000000000000000004003")
	testPosition = common.HexToAddress("0x0000000000000000000000000000000000004004")
)

// fakePositions tracks one position's owner and can be told to refuse moves.
type fakePositions struct {
	owner common.Address
	fail  bool
}

func (f *fakePositions) TransferPosition(position, from, to common.Address) error {
	if f.fail {
		return errors.New("market refused the transfer")
	}
	if position != testPosition || f.owner != from {
		return errors.New("not the position owner")
	}
	f.owner = to
	return nil
}

func signedOrder(t *testing.T, signer *Signer, premium sdkmath.Int, nonce uint64) Order {
	t.Helper()
	order := Order{
		Nonce:  nonce,
		Expiry: time.Now().Add(time.Hour),
		Signer: Party{Wallet: signer.Address(), Token: testToken, Amount: premium},
		Sender: Party{Wallet: testSender, Token: testPosition, Amount: sdkmath.NewInt(1)},
	}
	if err := signer.SignOrder(&order); err != nil {
		t.Fatalf("sign: %v", err)
	}
	return order
}

func newExecutorRig(t *testing.T, premium sdkmath.Int) (*Signer, *MemoryExecutor, *fakePositions, assets.Ledger) {
	t.Helper()
	signer, err := NewSigner(testKey)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	bank := assets.NewMemoryBank()
	bank.RegisterAsset(testToken)
	if err := bank.Mint(testToken, signer.Address(), premium); err != nil {
		t.Fatalf("mint: %v", err)
	}
	ledger, err := bank.Ledger(testToken)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	positions := &fakePositions{owner: testSender}
	return signer, NewMemoryExecutor(bank, positions, testExecAddr), positions, ledger
}

func TestRecoverSignerRoundTrip(t *testing.T) {
	signer, _, _, _ := newExecutorRig(t, sdkmath.NewInt(100))
	order := signedOrder(t, signer, sdkmath.NewInt(100), 1)

	recovered, err := RecoverSigner(order)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if recovered != signer.Address() {
		t.Fatalf("recovered %s, want %s", recovered.Hex(), signer.Address().Hex())
	}
}

func TestRecoverSignerDetectsTampering(t *testing.T) {
	signer, _, _, _ := newExecutorRig(t, sdkmath.NewInt(100))
	order := signedOrder(t, signer, sdkmath.NewInt(100), 1)

	order.Signer.Amount = sdkmath.NewInt(1)
	if _, err := RecoverSigner(order); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("tampered amount: got %v, want ErrBadSignature", err)
	}

	order.Signature = nil
	if _, err := RecoverSigner(order); !errors.Is(err, ErrMissingSignature) {
		t.Fatalf("no signature: got %v, want ErrMissingSignature", err)
	}
}

func TestExecuteSettlesBothLegs(t *testing.T) {
	premium := sdkmath.NewInt(100)
	signer, exec, positions, ledger := newExecutorRig(t, premium)
	if err := ledger.Approve(signer.Address(), exec.Address(), premium); err != nil {
		t.Fatalf("approve: %v", err)
	}

	order := signedOrder(t, signer, premium, 7)
	if err := exec.Execute(order); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if positions.owner != signer.Address() {
		t.Fatalf("position owner %s, want signer", positions.owner.Hex())
	}
	got, _ := ledger.BalanceOf(testSender)
	if !got.Equal(premium) {
		t.Fatalf("sender received %s, want %s", got, premium)
	}
}

func TestExecuteRejectsNonceReplay(t *testing.T) {
	premium := sdkmath.NewInt(100)
	signer, exec, positions, ledger := newExecutorRig(t, premium.MulRaw(2))
	if err := ledger.Approve(signer.Address(), exec.Address(), premium.MulRaw(2)); err != nil {
		t.Fatalf("approve: %v", err)
	}

	order := signedOrder(t, signer, premium, 9)
	if err := exec.Execute(order); err != nil {
		t.Fatalf("first execute: %v", err)
	}
	// Hand the position back so only the nonce can block the replay.
	positions.owner = testSender

	if err := exec.Execute(order); !errors.Is(err, ErrNonceReused) {
		t.Fatalf("replay: got %v, want ErrNonceReused", err)
	}
}

func TestExecuteRejectsExpiredOrder(t *testing.T) {
	premium := sdkmath.NewInt(100)
	signer, exec, _, _ := newExecutorRig(t, premium)

	order := Order{
		Nonce:  3,
		Expiry: time.Now().Add(-time.Minute),
		Signer: Party{Wallet: signer.Address(), Token: testToken, Amount: premium},
		Sender: Party{Wallet: testSender, Token: testPosition, Amount: sdkmath.NewInt(1)},
	}
	if err := signer.SignOrder(&order); err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := exec.Execute(order); !errors.Is(err, ErrOrderExpired) {
		t.Fatalf("expired: got %v, want ErrOrderExpired", err)
	}
}

func TestExecuteUnwindsPositionOnFailedPremium(t *testing.T) {
	premium := sdkmath.NewInt(100)
	signer, exec, positions, _ := newExecutorRig(t, premium)
	// No allowance granted, so the premium pull must fail.

	order := signedOrder(t, signer, premium, 11)
	if err := exec.Execute(order); !errors.Is(err, assets.ErrInsufficientAllowance) {
		t.Fatalf("got %v, want ErrInsufficientAllowance", err)
	}
	if positions.owner != testSender {
		t.Fatalf("position owner %s after unwind, want sender", positions.owner.Hex())
	}
}

func TestExecuteRetriesAfterUnwoundPremiumFailure(t *testing.T) {
	premium := sdkmath.NewInt(100)
	signer, exec, positions, ledger := newExecutorRig(t, premium)

	order := signedOrder(t, signer, premium, 13)
	if err := exec.Execute(order); !errors.Is(err, assets.ErrInsufficientAllowance) {
		t.Fatalf("got %v, want ErrInsufficientAllowance", err)
	}

	// The unwound order left no effects, so the same signed order settles
	// once the allowance is in place.
	if err := ledger.Approve(signer.Address(), exec.Address(), premium); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := exec.Execute(order); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if positions.owner != signer.Address() {
		t.Fatalf("position owner %s after retry, want signer", positions.owner.Hex())
	}
	got, err := ledger.BalanceOf(testSender)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !got.Equal(premium) {
		t.Fatalf("sender received %s, want %s", got, premium)
	}
}
