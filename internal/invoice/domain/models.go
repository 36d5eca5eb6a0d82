// Package domain contains invoice persistence models and the invoice
// lifecycle state machine.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "draft"
	InvoiceStatusIssued        InvoiceStatus = "issued"
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusOverdue       InvoiceStatus = "overdue"
	InvoiceStatusVoid          InvoiceStatus = "void"
)

// Invoice is one bill for one user over one billing period. The
// (user_id, period_start, period_end) key is unique: generation is
// idempotent on it. Version guards all settlement mutations.
type Invoice struct {
	ID               snowflake.ID      `json:"id" gorm:"primaryKey"`
	UserID           snowflake.ID      `json:"user_id" gorm:"not null;index;uniqueIndex:ux_invoice_user_period,priority:1"`
	PlanID           snowflake.ID      `json:"plan_id" gorm:"not null;index"`
	PeriodStart      time.Time         `json:"period_start" gorm:"not null;uniqueIndex:ux_invoice_user_period,priority:2"`
	PeriodEnd        time.Time         `json:"period_end" gorm:"not null;uniqueIndex:ux_invoice_user_period,priority:3"`
	Status           InvoiceStatus     `json:"status" gorm:"type:text;not null;default:'draft'"`
	Items            []InvoiceLineItem `json:"items" gorm:"foreignKey:InvoiceID"`
	TotalAmountCents int64             `json:"total_amount_cents" gorm:"not null;default:0"`
	PaidAmountCents  int64             `json:"paid_amount_cents" gorm:"not null;default:0"`
	Currency         string            `json:"currency" gorm:"type:text;not null"`
	IssueDate        *time.Time        `json:"issue_date,omitempty" gorm:""`
	DueDate          *time.Time        `json:"due_date,omitempty" gorm:""`
	Version          int64             `json:"version" gorm:"not null;default:0"`
	Metadata         datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt        time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time         `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// LineItemType tags what a line charges for.
type LineItemType string

const (
	LineItemTypeRate     LineItemType = "rate"
	LineItemTypeDiscount LineItemType = "discount"
	LineItemTypeTax      LineItemType = "tax"
)

// InvoiceLineItem is one line on an invoice. Line amounts sum exactly to
// the invoice total: discount lines are negative, the tax line positive.
type InvoiceLineItem struct {
	ID              snowflake.ID `json:"id" gorm:"primaryKey"`
	InvoiceID       snowflake.ID `json:"invoice_id" gorm:"not null;index"`
	RateID          *snowflake.ID `json:"rate_id,omitempty" gorm:"index"`
	Type            LineItemType `json:"type" gorm:"type:text;not null"`
	Description     string       `json:"description" gorm:"type:text"`
	Quantity        float64      `json:"quantity" gorm:"not null"`
	UnitAmountCents int64        `json:"unit_amount_cents" gorm:"not null"`
	AmountCents     int64        `json:"amount_cents" gorm:"not null"`
	CreatedAt       time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (InvoiceLineItem) TableName() string { return "invoice_line_items" }

// Terminal reports whether no further lifecycle transition is possible.
func (i *Invoice) Terminal() bool {
	return i.Status == InvoiceStatusPaid || i.Status == InvoiceStatusVoid
}

// AcceptsSettlement reports whether payments or refunds may be applied in
// the invoice's current state. Paid invoices still accept refunds.
func (i *Invoice) AcceptsSettlement() bool {
	switch i.Status {
	case InvoiceStatusIssued, InvoiceStatusPartiallyPaid, InvoiceStatusOverdue, InvoiceStatusPaid:
		return true
	default:
		return false
	}
}

// SettlementStatus derives the lifecycle state implied by the paid amount.
// Overdue is a time-based overlay applied by the overdue sweep, not here.
func (i *Invoice) SettlementStatus() InvoiceStatus {
	switch {
	case i.TotalAmountCents > 0 && i.PaidAmountCents >= i.TotalAmountCents:
		return InvoiceStatusPaid
	case i.PaidAmountCents > 0:
		return InvoiceStatusPartiallyPaid
	default:
		return InvoiceStatusIssued
	}
}
