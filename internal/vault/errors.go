package vault

import "errors"

// Error definitions for zero-tolerance error handling
var (
	ErrNotInitialized     = errors.New("vault is not initialized")
	ErrAlreadyInitialized = errors.New("vault is already initialized")
	ErrUnauthorized       = errors.New("caller is not authorized")
	ErrReentrancy         = errors.New("reentrant call rejected")

	ErrInvalidAmount           = errors.New("amount must be positive")
	ErrZeroAddress             = errors.New("address is zero")
	ErrCapExceeded             = errors.New("deposit would exceed the vault cap")
	ErrInsufficientPoolSize    = errors.New("pool would fall below the minimum size")
	ErrExceedsAvailableBalance = errors.New("withdrawal exceeds the free balance")
	ErrInvalidFee              = errors.New("withdrawal fee must be between 0 and 30 percent exclusive")
	ErrNativeNotSupported      = errors.New("vault asset is not the wrapped native asset")

	ErrTypeMismatch  = errors.New("option type does not match the vault mode")
	ErrPairMismatch  = errors.New("option terms do not match the vault pairing")
	ErrExpiryTooSoon = errors.New("option expiry is inside the activation delay")
	ErrNoProposal    = errors.New("no option proposal is staged")
	ErrNotReady      = errors.New("proposal is still inside the activation delay")
	ErrPositionOpen  = errors.New("previous position has not been redeemed")
	ErrNotExpired    = errors.New("position has not expired yet")
	ErrOrderMismatch = errors.New("settlement order does not match the staged proposal")
)
