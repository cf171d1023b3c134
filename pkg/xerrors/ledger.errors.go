package xerrors

import "errors"

// Generic
var (
	ErrNotFound       = errors.New("not found")
	ErrInternalServer = errors.New("internal server error")
	ErrInvalidInput   = errors.New("invalid input provided")
)

// Transaction processing
var (
	ErrInvalidAmount  = errors.New("amount must be a positive number of coins")
	ErrUnknownTxType  = errors.New("unknown transaction type")
	ErrAccountBusy    = errors.New("user has pending transaction")
	ErrFraudBlocked   = errors.New("transaction blocked by fraud analysis")
	ErrReviewRequired = errors.New("transaction queued for manual review")
)

// Wallet
var (
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrWalletFrozen        = errors.New("wallet is frozen")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrLimitExceeded       = errors.New("daily limit exceeded")
	ErrEmergencyControl    = errors.New("transaction rejected by emergency economy controls")
)
