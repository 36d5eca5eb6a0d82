package domain

import "errors"

var (
	ErrNotFound              = errors.New("not_found")
	ErrInvalidID             = errors.New("invalid_id")
	ErrInvalidAmount         = errors.New("invalid_amount")
	ErrInvalidIdempotencyKey = errors.New("invalid_idempotency_key")
	ErrCurrencyMismatch      = errors.New("currency_mismatch")
	ErrAlreadyTerminal       = errors.New("already_terminal")
	ErrInvalidTransition     = errors.New("invalid_transition")
	ErrRefundExceedsPayment  = errors.New("refund_exceeds_payment")
)
