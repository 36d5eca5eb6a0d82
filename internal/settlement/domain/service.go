package domain

import (
	"context"
	"time"
)

// RecordPaymentRequest is the idempotent intake for one gateway attempt.
type RecordPaymentRequest struct {
	InvoiceID      string `json:"invoice_id"`
	AmountCents    int64  `json:"amount_cents"`
	Currency       string `json:"currency"`
	IdempotencyKey string `json:"idempotency_key"`
}

// Service owns the payment and refund state machines and applies their
// settlement results back to invoices.
type Service interface {
	// RecordPaymentAttempt returns the existing Payment unchanged when the
	// idempotency key was seen before; re-delivery is a no-op, not an error.
	RecordPaymentAttempt(ctx context.Context, req RecordPaymentRequest) (*Payment, error)
	MarkProcessing(ctx context.Context, paymentID string) (*Payment, error)
	// MarkCompleted credits the owning invoice and re-evaluates its status
	// atomically with the payment transition.
	MarkCompleted(ctx context.Context, paymentID, transactionID string) (*Payment, error)
	MarkFailed(ctx context.Context, paymentID, reason string) (*Payment, error)

	RequestRefund(ctx context.Context, paymentID string, amountCents int64, reason string) (*Refund, error)
	ApproveRefund(ctx context.Context, refundID string) (*Refund, error)
	RejectRefund(ctx context.Context, refundID string) (*Refund, error)
	// CompleteRefund debits the owning invoice, never below zero, and
	// re-evaluates its status.
	CompleteRefund(ctx context.Context, refundID string) (*Refund, error)
	FailRefund(ctx context.Context, refundID, reason string) (*Refund, error)

	// ListStalePayments surfaces payments stuck in processing longer than
	// the cutoff for operational resolution. The engine never auto-fails
	// them: the gateway may yet confirm success.
	ListStalePayments(ctx context.Context, olderThan time.Duration) ([]Payment, error)
}
