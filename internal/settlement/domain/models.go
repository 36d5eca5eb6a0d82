// Package domain contains payment and refund models and their state
// machines.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PaymentStatus represents payment lifecycle states. Completed and failed
// are terminal: a retry is a new Payment record, never a mutation.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
)

func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}

// Payment is one gateway payment attempt against an invoice. The
// idempotency key is the caller-supplied token that makes at-least-once
// gateway callbacks safe to re-deliver.
type Payment struct {
	ID             snowflake.ID  `json:"id" gorm:"primaryKey"`
	InvoiceID      snowflake.ID  `json:"invoice_id" gorm:"not null;index"`
	AmountCents    int64         `json:"amount_cents" gorm:"not null"`
	Currency       string        `json:"currency" gorm:"type:text;not null"`
	IdempotencyKey string        `json:"idempotency_key" gorm:"type:text;not null;uniqueIndex:ux_payment_idempotency"`
	Status         PaymentStatus `json:"status" gorm:"type:text;not null;default:'pending'"`
	TransactionID  *string       `json:"transaction_id,omitempty" gorm:"type:text"`
	FailureReason  *string       `json:"failure_reason,omitempty" gorm:"type:text"`
	CreatedAt      time.Time     `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time     `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }

// RefundStatus represents refund lifecycle states. Rejected, completed and
// failed are terminal; only completed refunds move invoice money.
type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusApproved  RefundStatus = "approved"
	RefundStatusRejected  RefundStatus = "rejected"
	RefundStatusCompleted RefundStatus = "completed"
	RefundStatusFailed    RefundStatus = "failed"
)

func (s RefundStatus) Terminal() bool {
	return s == RefundStatusRejected || s == RefundStatusCompleted || s == RefundStatusFailed
}

// Refund is a (partial) reversal of one completed payment. The sum of
// completed and approved refunds on a payment never exceeds the payment
// amount.
type Refund struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	PaymentID   snowflake.ID `json:"payment_id" gorm:"not null;index"`
	AmountCents int64        `json:"amount_cents" gorm:"not null"`
	Currency    string       `json:"currency" gorm:"type:text;not null"`
	Status      RefundStatus `json:"status" gorm:"type:text;not null;default:'pending'"`
	Reason      string       `json:"reason" gorm:"type:text"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Refund) TableName() string { return "refunds" }
