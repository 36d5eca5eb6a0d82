// Package domain contains discount and tax policy models.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidDiscount = errors.New("invalid_discount")
	ErrInvalidTaxRate  = errors.New("invalid_tax_rate")
	ErrInvalidTaxMode  = errors.New("invalid_tax_mode")
	ErrInvalidTaxCode  = errors.New("invalid_tax_code")
	ErrNotFound        = errors.New("not_found")
)

// DiscountKind selects how a discount reduces the running total.
type DiscountKind string

const (
	DiscountKindPercentage DiscountKind = "percentage"
	DiscountKindFixed      DiscountKind = "fixed"
)

// Discount is one step of the pricing pipeline, applied in declaration
// order. Percentage values are fractions (0.10 for 10%); fixed values are
// minor units of the base currency.
type Discount struct {
	Kind  DiscountKind `json:"kind"`
	Value float64      `json:"value"`
}

func (d Discount) Validate() error {
	switch d.Kind {
	case DiscountKindPercentage:
		if d.Value < 0 || d.Value > 1 {
			return ErrInvalidDiscount
		}
	case DiscountKindFixed:
		if d.Value < 0 {
			return ErrInvalidDiscount
		}
	default:
		return ErrInvalidDiscount
	}
	return nil
}

// TaxMode represents how tax is applied to the invoice total. The engine
// charges exclusively: subtotal + tax.
type TaxMode string

const (
	TaxModeExclusive TaxMode = "exclusive"
	TaxModeInclusive TaxMode = "inclusive"
)

// TaxDefinition is a stored tax policy. Code is a stable engine-facing
// identifier, immutable once invoiced against.
type TaxDefinition struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Name      string       `json:"name" gorm:"type:text;not null"`
	Code      string       `json:"code" gorm:"type:text;not null;uniqueIndex"`
	TaxMode   TaxMode      `json:"tax_mode" gorm:"column:tax_mode;type:text;not null"`
	Rate      float64      `json:"rate" gorm:"type:numeric(6,4);not null"`
	IsEnabled bool         `json:"is_enabled" gorm:"column:is_enabled;not null;default:true"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (TaxDefinition) TableName() string { return "tax_definitions" }

func (t *TaxDefinition) Validate() error {
	if t.Code == "" {
		return ErrInvalidTaxCode
	}
	if t.TaxMode != TaxModeExclusive && t.TaxMode != TaxModeInclusive {
		return ErrInvalidTaxMode
	}
	if t.Rate < 0 {
		return ErrInvalidTaxRate
	}
	return nil
}
