package registry

import "errors"

var (
	ErrUnauthorized          = errors.New("registry: caller is not the administrator")
	ErrInvalidAddress        = errors.New("registry: invalid address")
	ErrInvalidFingerprint    = errors.New("registry: invalid fingerprint")
	ErrInvalidAmount         = errors.New("registry: invalid amount")
	ErrNotVerified           = errors.New("registry: address not verified")
	ErrAlreadyVerified       = errors.New("registry: address already verified")
	ErrAddressCancelled      = errors.New("registry: address has been cancelled")
	ErrInsufficientBalance   = errors.New("registry: insufficient balance")
	ErrInsufficientAllowance = errors.New("registry: insufficient allowance")
	ErrAddressLocked         = errors.New("registry: address is locked")
	ErrLedgerFrozen          = errors.New("registry: ledger is frozen")
	ErrLedgerClosed          = errors.New("registry: ledger is closed")
	ErrIndexOutOfRange       = errors.New("registry: holder index out of range")
	ErrNotShareholder        = errors.New("registry: address is not a shareholder")
	ErrShareholderExists     = errors.New("registry: address is already a shareholder")

	// ErrChainTooDeep indicates the cancellation chain exceeded the defensive
	// hop bound, which can only happen if the append-only invariant was
	// violated. It is an internal-consistency failure, not a rejection.
	ErrChainTooDeep = errors.New("registry: cancellation chain exceeded hop bound")
)
