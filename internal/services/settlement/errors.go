package settlement

import "errors"

// Service errors
var (
	ErrPaymentFinalized = errors.New("payment is already completed or failed")
	ErrBelowMinimum     = errors.New("amount is below the processor minimum")
	ErrIntentFailed     = errors.New("failed to create payment intent")
	ErrLockFailed       = errors.New("failed to lock payment")
	ErrSaveFailed       = errors.New("failed to save payment")
)
