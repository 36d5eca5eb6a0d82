package domain

import "errors"

var (
	ErrNotFound               = errors.New("not_found")
	ErrInvalidID              = errors.New("invalid_id")
	ErrInvalidUser            = errors.New("invalid_user")
	ErrInvalidPeriod          = errors.New("invalid_period")
	ErrInvoiceVoid            = errors.New("invoice_void")
	ErrInvalidTransition      = errors.New("invalid_transition")
	ErrNoLineItems            = errors.New("no_line_items")
	ErrOverpayment            = errors.New("overpayment")
	ErrConcurrentModification = errors.New("concurrent_modification")
)
