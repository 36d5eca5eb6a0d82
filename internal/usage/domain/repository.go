package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// UsageTotals is the raw aggregation row folded from usage_events.
type UsageTotals struct {
	SessionSeconds   int64
	UploadBytes      int64
	DownloadBytes    int64
	PeakBandwidthBps int64
	SessionCount     int64
}

type Repository interface {
	Insert(ctx context.Context, event *UsageEvent) error
	Aggregate(ctx context.Context, userID snowflake.ID, start, end time.Time) (UsageTotals, error)
}
