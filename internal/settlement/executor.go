package settlement

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/quillon-fi/ovm/internal/assets"
	"github.com/quillon-fi/ovm/internal/logger"
)

var (
	ErrNonceReused      = errors.New("order nonce already executed")
	ErrPositionTransfer = errors.New("position transfer failed")
)

// PositionTransferrer moves ownership of a non-fungible position between
// wallets. The concrete adapter's market satisfies this.
type PositionTransferrer interface {
	TransferPosition(position, from, to common.Address) error
}

// Executor settles a signed bilateral order atomically: the signer leg moves
// via an allowance the signer granted the executor, the counter leg via a
// position ownership transfer.
type Executor interface {
	// Address is the account the signer must approve for the premium leg.
	Address() common.Address
	Execute(order Order) error
}

// MemoryExecutor is the in-process reference settlement counterparty.
type MemoryExecutor struct {
	mu        sync.Mutex
	bank      assets.Bank
	positions PositionTransferrer
	address   common.Address
	usedNonce map[uint64]bool
	logger    zerolog.Logger
	now       func() time.Time
}

// NewMemoryExecutor wires the executor to the bank it pulls the premium leg
// through and the market it transfers positions on.
func NewMemoryExecutor(bank assets.Bank, positions PositionTransferrer, address common.Address) *MemoryExecutor {
	return &MemoryExecutor{
		bank:      bank,
		positions: positions,
		address:   address,
		usedNonce: make(map[uint64]bool),
		logger:    logger.GetForComponent("settlement_executor"),
		now:       time.Now,
	}
}

// SetClock overrides the executor clock. Test helper.
func (e *MemoryExecutor) SetClock(now func() time.Time) { e.now = now }

func (e *MemoryExecutor) Address() common.Address { return e.address }

// releaseNonce frees a nonce whose order left no effects, so the same signed
// order can be retried.
func (e *MemoryExecutor) releaseNonce(nonce uint64) {
	e.mu.Lock()
	delete(e.usedNonce, nonce)
	e.mu.Unlock()
}

// Execute verifies and settles the order. Either both legs move or neither:
// the position leg runs first because it is the leg the executor can reverse
// if the premium pull fails.
func (e *MemoryExecutor) Execute(order Order) error {
	if err := order.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOrder, err)
	}
	if !order.Expiry.IsZero() && e.now().After(order.Expiry) {
		return ErrOrderExpired
	}
	if _, err := RecoverSigner(order); err != nil {
		return err
	}

	ledger, err := e.bank.Ledger(order.Signer.Token)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.usedNonce[order.Nonce] {
		e.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNonceReused, order.Nonce)
	}
	e.usedNonce[order.Nonce] = true
	e.mu.Unlock()

	if err := e.positions.TransferPosition(order.Sender.Token, order.Sender.Wallet, order.Signer.Wallet); err != nil {
		e.releaseNonce(order.Nonce)
		return fmt.Errorf("%w: %w", ErrPositionTransfer, err)
	}
	if err := ledger.TransferFrom(e.address, order.Signer.Wallet, order.Sender.Wallet, order.Signer.Amount); err != nil {
		// Unwind the position leg so a failed premium pull leaves no effects.
		// The nonce stays burned only if the unwind itself fails, because then
		// the position has actually moved.
		if undoErr := e.positions.TransferPosition(order.Sender.Token, order.Signer.Wallet, order.Sender.Wallet); undoErr != nil {
			return errors.Join(err, undoErr)
		}
		e.releaseNonce(order.Nonce)
		return err
	}

	e.logger.Info().
		Uint64("nonce", order.Nonce).
		Str("signer", order.Signer.Wallet.Hex()).
		Str("premium", order.Signer.Amount.String()).
		Str("position", order.Sender.Token.Hex()).
		Msg("Settled bilateral order")

	return nil
}
