/*

This file contains the bilateral settlement order. An order swaps the signer
party's asset leg against the sender party's counter leg atomically; for this
system the signer is always the vault (paying premium in its own asset) and
the counter leg is an option position.

*/

package settlement

import (
	"encoding/binary"
	"errors"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrInvalidOrder     = errors.New("order is structurally invalid")
	ErrOrderExpired     = errors.New("order has expired")
	ErrBadSignature     = errors.New("order signature does not recover the signer wallet")
	ErrMissingSignature = errors.New("order carries no signature")
)

// Party is one leg of a bilateral order.
type Party struct {
	Wallet common.Address `json:"wallet"`
	Token  common.Address `json:"token"`
	Amount sdkmath.Int    `json:"amount"`
}

// Order is a fully-specified bilateral swap. Signer gives Signer.Amount of
// Signer.Token; Sender gives Sender.Amount of Sender.Token. For non-fungible
// position legs the token is the position address and the amount its size.
type Order struct {
	Nonce     uint64    `json:"nonce"`
	Expiry    time.Time `json:"expiry"`
	Signer    Party     `json:"signer"`
	Sender    Party     `json:"sender"`
	Signature []byte    `json:"signature"` // 65-byte [R || S || V] over Digest
}

// Validate checks structural soundness before any cryptography.
func (o Order) Validate() error {
	if o.Signer.Wallet == (common.Address{}) || o.Sender.Wallet == (common.Address{}) {
		return errors.New("order party wallet is zero")
	}
	if o.Signer.Amount.IsNil() || !o.Signer.Amount.IsPositive() {
		return errors.New("signer amount must be positive")
	}
	if o.Sender.Amount.IsNil() || !o.Sender.Amount.IsPositive() {
		return errors.New("sender amount must be positive")
	}
	return nil
}

// Digest is the keccak256 hash signed by the signer party: the nonce and
// expiry followed by both legs, each field in its ABI-packed width.
func (o Order) Digest() common.Hash {
	buf := make([]byte, 0, 16+2*(20+20+32))

	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], o.Nonce)
	buf = append(buf, scratch[:]...)
	binary.BigEndian.PutUint64(scratch[:], uint64(o.Expiry.Unix()))
	buf = append(buf, scratch[:]...)

	buf = appendParty(buf, o.Signer)
	buf = appendParty(buf, o.Sender)

	return crypto.Keccak256Hash(buf)
}

func appendParty(buf []byte, p Party) []byte {
	buf = append(buf, p.Wallet.Bytes()...)
	buf = append(buf, p.Token.Bytes()...)
	var amount [32]byte
	if !p.Amount.IsNil() && !p.Amount.IsNegative() {
		p.Amount.BigInt().FillBytes(amount[:])
	}
	return append(buf, amount[:]...)
}
