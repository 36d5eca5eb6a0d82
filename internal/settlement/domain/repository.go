package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertPayment(ctx context.Context, tx *gorm.DB, payment *Payment) error
	FindPaymentByID(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Payment, error)
	FindPaymentByKey(ctx context.Context, tx *gorm.DB, idempotencyKey string) (*Payment, error)
	// TransitionPayment persists a status change guarded by the expected
	// prior status; zero rows affected means the payment moved underneath
	// the caller.
	TransitionPayment(ctx context.Context, tx *gorm.DB, payment *Payment, from PaymentStatus) error
	ListStalePayments(ctx context.Context, tx *gorm.DB, before time.Time) ([]Payment, error)

	InsertRefund(ctx context.Context, tx *gorm.DB, refund *Refund) error
	FindRefundByID(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Refund, error)
	TransitionRefund(ctx context.Context, tx *gorm.DB, refund *Refund, from RefundStatus) error
	// SumActiveRefunds totals completed and approved refund amounts for a
	// payment, the quantity the refund ceiling is checked against.
	SumActiveRefunds(ctx context.Context, tx *gorm.DB, paymentID snowflake.ID) (int64, error)
}
