package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/netbill/netbill/internal/invoice/domain"
	"github.com/netbill/netbill/pkg/db/pagination"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) invoicedomain.Repository {
	return &repository{db: db}
}

func (r *repository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *repository) Insert(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice) error {
	return r.conn(tx).WithContext(ctx).Create(invoice).Error
}

func (r *repository) FindByID(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := r.conn(tx).WithContext(ctx).
		Preload("Items").
		First(&invoice, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) FindByUserPeriod(ctx context.Context, tx *gorm.DB, userID snowflake.ID, periodStart, periodEnd time.Time) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := r.conn(tx).WithContext(ctx).
		Preload("Items").
		Where("user_id = ? AND period_start = ? AND period_end = ?", userID, periodStart, periodEnd).
		First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) List(ctx context.Context, tx *gorm.DB, req invoicedomain.ListRequest) ([]invoicedomain.Invoice, pagination.PageInfo, error) {
	stmt := r.conn(tx).WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Preload("Items").
		Order("id DESC")

	if req.UserID != "" {
		userID, err := snowflake.ParseString(req.UserID)
		if err != nil {
			return nil, pagination.PageInfo{}, invoicedomain.ErrInvalidUser
		}
		stmt = stmt.Where("user_id = ?", userID)
	}
	if req.Status != "" {
		stmt = stmt.Where("status = ?", req.Status)
	}
	if req.Page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.Page.PageToken)
		if err != nil {
			return nil, pagination.PageInfo{}, invoicedomain.ErrInvalidID
		}
		lastID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, pagination.PageInfo{}, invoicedomain.ErrInvalidID
		}
		stmt = stmt.Where("id < ?", lastID)
	}

	limit := req.Page.Limit()
	var invoices []invoicedomain.Invoice
	if err := stmt.Limit(limit + 1).Find(&invoices).Error; err != nil {
		return nil, pagination.PageInfo{}, err
	}
	return pagination.Build(invoices, limit, func(inv invoicedomain.Invoice) pagination.Cursor {
		return pagination.Cursor{ID: inv.ID.String()}
	})
}

// UpdateLifecycle and ApplySettlement both write through the optimistic
// version guard: UPDATE ... WHERE id = ? AND version = ?. Zero rows
// affected means another writer committed first.

func (r *repository) UpdateLifecycle(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice) error {
	result := r.conn(tx).WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = ?, issue_date = ?, due_date = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		invoice.Status,
		invoice.IssueDate,
		invoice.DueDate,
		time.Now().UTC(),
		invoice.ID,
		invoice.Version,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return invoicedomain.ErrConcurrentModification
	}
	invoice.Version++
	return nil
}

func (r *repository) ApplySettlement(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice) error {
	result := r.conn(tx).WithContext(ctx).Exec(
		`UPDATE invoices
		 SET paid_amount_cents = ?, status = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		invoice.PaidAmountCents,
		invoice.Status,
		time.Now().UTC(),
		invoice.ID,
		invoice.Version,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return invoicedomain.ErrConcurrentModification
	}
	invoice.Version++
	return nil
}

func (r *repository) MarkOverdue(ctx context.Context, tx *gorm.DB, asOf time.Time) (int64, error) {
	result := r.conn(tx).WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = ?, version = version + 1, updated_at = ?
		 WHERE status IN (?, ?) AND due_date IS NOT NULL AND due_date < ?`,
		invoicedomain.InvoiceStatusOverdue,
		time.Now().UTC(),
		invoicedomain.InvoiceStatusIssued,
		invoicedomain.InvoiceStatusPartiallyPaid,
		asOf,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
