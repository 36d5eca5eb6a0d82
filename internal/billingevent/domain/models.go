// Package domain contains the settlement event outbox models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Event types emitted by the engine for notification collaborators.
const (
	EventInvoiceIssued        = "invoice.issued"
	EventInvoiceVoided        = "invoice.voided"
	EventInvoiceStatusChanged = "invoice.status_changed"
	EventPaymentCompleted     = "payment.completed"
	EventPaymentFailed        = "payment.failed"
	EventRefundCompleted      = "refund.completed"
)

// BillingEvent is an outbox row appended in the same transaction as the
// state change it describes. Events are immutable; DedupeKey keeps retried
// transitions from producing duplicate notifications.
type BillingEvent struct {
	ID          snowflake.ID      `gorm:"primaryKey"`
	EventType   string            `gorm:"type:text;not null;index"`
	Payload     datatypes.JSONMap `gorm:"type:jsonb;not null"`
	DedupeKey   *string           `gorm:"type:text;uniqueIndex:ux_billing_event_dedupe"`
	Published   bool              `gorm:"not null;default:false;index"`
	PublishedAt *time.Time        `gorm:""`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (BillingEvent) TableName() string { return "billing_events" }
