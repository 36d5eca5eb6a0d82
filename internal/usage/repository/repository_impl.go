package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	usagedomain "github.com/netbill/netbill/internal/usage/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) usagedomain.Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, event *usagedomain.UsageEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) Aggregate(ctx context.Context, userID snowflake.ID, start, end time.Time) (usagedomain.UsageTotals, error) {
	var totals usagedomain.UsageTotals
	err := r.db.WithContext(ctx).Raw(
		`SELECT
			COALESCE(SUM(session_seconds), 0) AS session_seconds,
			COALESCE(SUM(upload_bytes), 0) AS upload_bytes,
			COALESCE(SUM(download_bytes), 0) AS download_bytes,
			COALESCE(MAX(bandwidth_bps), 0) AS peak_bandwidth_bps,
			COUNT(*) AS session_count
		 FROM usage_events
		 WHERE user_id = ? AND recorded_at >= ? AND recorded_at < ?`,
		userID,
		start,
		end,
	).Scan(&totals).Error
	if err != nil {
		return usagedomain.UsageTotals{}, err
	}
	return totals, nil
}
