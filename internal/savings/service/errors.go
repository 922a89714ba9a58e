package service

import "errors"

// Domain failures returned across the service boundary. The excluded
// HTTP layer maps these onto responses; none of them should ever crash
// the process. Infrastructure failures (store or cache unavailability)
// are returned wrapped and are deliberately NOT part of this set.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrAccountInactive    = errors.New("account deactivated, contact support for activation")
	ErrUntrustedDevice    = errors.New("login from this device is not allowed")
	ErrDeviceNotFound     = errors.New("device not found")

	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrSessionInvalid        = errors.New("session is no longer valid")
	ErrInvalidOrExpiredCode  = errors.New("invalid or expired code")

	ErrEmailTaken           = errors.New("email already in use")
	ErrEmailAlreadyVerified = errors.New("email already verified")
	ErrInvalidPIN           = errors.New("invalid transaction PIN")
	ErrUnauthorized         = errors.New("unauthorized")

	ErrInvalidAmount            = errors.New("amount must be positive with at most two decimal places")
	ErrAccountNotFound          = errors.New("no active account found")
	ErrInsufficientBalance      = errors.New("insufficient balance")
	ErrBalanceLimitExceeded     = errors.New("deposit would exceed the maximum balance limit")
	ErrTransactionNotFound      = errors.New("transaction not found")
	ErrTransactionNotPending    = errors.New("transaction is not pending")
	ErrTransactionNotReversible = errors.New("only completed transactions can be reversed")
	ErrTransactionExpired       = errors.New("transaction has expired")
	ErrAlreadyReversed          = errors.New("transaction already reversed")
)
