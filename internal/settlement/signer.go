package settlement

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer signs settlement orders with a secp256k1 key. The recovered address
// is the identity the engine checks orders against.
type Signer struct {
	key *ecdsa.PrivateKey
}

// NewSigner parses a hex-encoded private key.
func NewSigner(hexKey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("settlement signer: invalid key: %w", err)
	}
	return &Signer{key: key}, nil
}

// Address is the wallet address corresponding to the signing key.
func (s *Signer) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

// SignOrder computes the order digest and attaches a recoverable signature.
func (s *Signer) SignOrder(order *Order) error {
	if order == nil {
		return ErrInvalidOrder
	}
	digest := order.Digest()
	sig, err := crypto.Sign(digest.Bytes(), s.key)
	if err != nil {
		return fmt.Errorf("settlement signer: %w", err)
	}
	order.Signature = sig
	return nil
}

// RecoverSigner returns the wallet address that produced the order's
// signature, or ErrBadSignature when it does not recover the signer leg.
func RecoverSigner(order Order) (common.Address, error) {
	if len(order.Signature) == 0 {
		return common.Address{}, ErrMissingSignature
	}
	digest := order.Digest()
	pub, err := crypto.SigToPub(digest.Bytes(), order.Signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %w", ErrBadSignature, err)
	}
	recovered := crypto.PubkeyToAddress(*pub)
	if recovered != order.Signer.Wallet {
		return common.Address{}, fmt.Errorf("%w: recovered %s, want %s",
			ErrBadSignature, recovered.Hex(), order.Signer.Wallet.Hex())
	}
	return recovered, nil
}
