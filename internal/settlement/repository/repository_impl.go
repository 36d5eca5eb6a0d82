package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	settlementdomain "github.com/netbill/netbill/internal/settlement/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) settlementdomain.Repository {
	return &repository{db: db}
}

func (r *repository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *repository) InsertPayment(ctx context.Context, tx *gorm.DB, payment *settlementdomain.Payment) error {
	return r.conn(tx).WithContext(ctx).Create(payment).Error
}

func (r *repository) FindPaymentByID(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*settlementdomain.Payment, error) {
	var payment settlementdomain.Payment
	err := r.conn(tx).WithContext(ctx).First(&payment, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindPaymentByKey(ctx context.Context, tx *gorm.DB, idempotencyKey string) (*settlementdomain.Payment, error) {
	var payment settlementdomain.Payment
	err := r.conn(tx).WithContext(ctx).
		First(&payment, "idempotency_key = ?", idempotencyKey).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repository) TransitionPayment(ctx context.Context, tx *gorm.DB, payment *settlementdomain.Payment, from settlementdomain.PaymentStatus) error {
	result := r.conn(tx).WithContext(ctx).Exec(
		`UPDATE payments
		 SET status = ?, transaction_id = ?, failure_reason = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		payment.Status,
		payment.TransactionID,
		payment.FailureReason,
		time.Now().UTC(),
		payment.ID,
		from,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return settlementdomain.ErrAlreadyTerminal
	}
	return nil
}

func (r *repository) ListStalePayments(ctx context.Context, tx *gorm.DB, before time.Time) ([]settlementdomain.Payment, error) {
	var payments []settlementdomain.Payment
	err := r.conn(tx).WithContext(ctx).
		Where("status = ? AND updated_at < ?", settlementdomain.PaymentStatusProcessing, before).
		Order("updated_at ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repository) InsertRefund(ctx context.Context, tx *gorm.DB, refund *settlementdomain.Refund) error {
	return r.conn(tx).WithContext(ctx).Create(refund).Error
}

func (r *repository) FindRefundByID(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*settlementdomain.Refund, error) {
	var refund settlementdomain.Refund
	err := r.conn(tx).WithContext(ctx).First(&refund, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &refund, nil
}

func (r *repository) TransitionRefund(ctx context.Context, tx *gorm.DB, refund *settlementdomain.Refund, from settlementdomain.RefundStatus) error {
	result := r.conn(tx).WithContext(ctx).Exec(
		`UPDATE refunds
		 SET status = ?, reason = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		refund.Status,
		refund.Reason,
		time.Now().UTC(),
		refund.ID,
		from,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return settlementdomain.ErrAlreadyTerminal
	}
	return nil
}

func (r *repository) SumActiveRefunds(ctx context.Context, tx *gorm.DB, paymentID snowflake.ID) (int64, error) {
	var total int64
	err := r.conn(tx).WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount_cents), 0)
		 FROM refunds
		 WHERE payment_id = ? AND status IN (?, ?)`,
		paymentID,
		settlementdomain.RefundStatusApproved,
		settlementdomain.RefundStatusCompleted,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
