// Package money holds exact monetary values as integer minor units tagged
// with an ISO currency code. Amounts are never represented as binary
// floating point; scaling helpers round half-up to the minor unit as the
// final step.
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrCurrencyMismatch = errors.New("currency_mismatch")
	ErrInvalidCurrency  = errors.New("invalid_currency")
	ErrNegativeAmount   = errors.New("negative_amount")
)

// Money is an amount in minor units (e.g. cents) of a single currency.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// New builds a Money value, normalizing the currency code to upper case.
func New(amount int64, currency string) (Money, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if len(code) != 3 {
		return Money{}, ErrInvalidCurrency
	}
	return Money{Amount: amount, Currency: code}, nil
}

// MustNew is New for static literals in tests and seeds.
func MustNew(amount int64, currency string) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns the zero amount of the given currency.
func Zero(currency string) Money {
	return Money{Amount: 0, Currency: strings.ToUpper(strings.TrimSpace(currency))}
}

func (m Money) IsZero() bool     { return m.Amount == 0 }
func (m Money) IsNegative() bool { return m.Amount < 0 }

func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.Amount, m.Currency)
}

// SameCurrency reports whether both values carry the same currency code.
func (m Money) SameCurrency(other Money) bool {
	return m.Currency == other.Currency
}

// Add returns m + other. Fails on currency mismatch.
func (m Money) Add(other Money) (Money, error) {
	if !m.SameCurrency(other) {
		return Money{}, ErrCurrencyMismatch
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Sub returns m - other. Fails on currency mismatch.
func (m Money) Sub(other Money) (Money, error) {
	if !m.SameCurrency(other) {
		return Money{}, ErrCurrencyMismatch
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// Cmp compares two amounts of the same currency: -1, 0, or +1.
func (m Money) Cmp(other Money) (int, error) {
	if !m.SameCurrency(other) {
		return 0, ErrCurrencyMismatch
	}
	switch {
	case m.Amount < other.Amount:
		return -1, nil
	case m.Amount > other.Amount:
		return 1, nil
	default:
		return 0, nil
	}
}

// MulQuantity scales the amount by a usage quantity, rounding half-up to
// the minor unit. Quantities must be non-negative.
func (m Money) MulQuantity(quantity float64) (Money, error) {
	if quantity < 0 {
		return Money{}, ErrNegativeAmount
	}
	return Money{Amount: roundHalfUp(float64(m.Amount) * quantity), Currency: m.Currency}, nil
}

// MulFraction scales the amount by an arbitrary fraction (proration factor,
// tax multiplier), rounding half-up to the minor unit.
func (m Money) MulFraction(fraction float64) Money {
	return Money{Amount: roundHalfUp(float64(m.Amount) * fraction), Currency: m.Currency}
}

// ClampZero floors a negative amount at zero.
func (m Money) ClampZero() Money {
	if m.Amount < 0 {
		return Money{Amount: 0, Currency: m.Currency}
	}
	return m
}

func roundHalfUp(raw float64) int64 {
	return int64(math.Floor(raw + 0.5))
}
