package domain

import "errors"

var (
	ErrInvalidUsage      = errors.New("invalid_usage")
	ErrRateConfiguration = errors.New("rate_configuration")
	ErrInvalidKind       = errors.New("invalid_kind")
	ErrInvalidCurrency   = errors.New("invalid_currency")
	ErrInvalidUnitAmount = errors.New("invalid_unit_amount")
	ErrNotFound          = errors.New("not_found")
)
