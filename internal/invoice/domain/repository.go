package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/netbill/netbill/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, tx *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindByUserPeriod(ctx context.Context, tx *gorm.DB, userID snowflake.ID, periodStart, periodEnd time.Time) (*Invoice, error)
	List(ctx context.Context, tx *gorm.DB, req ListRequest) ([]Invoice, pagination.PageInfo, error)
	// UpdateLifecycle persists status and date changes guarded by the
	// version column; zero rows affected means a concurrent writer won.
	UpdateLifecycle(ctx context.Context, tx *gorm.DB, invoice *Invoice) error
	// ApplySettlement persists a paid-amount/status change under the same
	// version guard. This is the single writer path for settlement money.
	ApplySettlement(ctx context.Context, tx *gorm.DB, invoice *Invoice) error
	MarkOverdue(ctx context.Context, tx *gorm.DB, asOf time.Time) (int64, error)
}
