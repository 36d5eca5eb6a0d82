package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Service ingests accounting events and folds them into billable usage.
type Service interface {
	Record(ctx context.Context, req RecordRequest) (*UsageEvent, error)
	AggregateForPeriod(ctx context.Context, userID snowflake.ID, period Period) (UsageData, error)
}

type RecordRequest struct {
	UserID         string `json:"user_id"`
	SessionSeconds int64  `json:"session_seconds"`
	UploadBytes    int64  `json:"upload_bytes"`
	DownloadBytes  int64  `json:"download_bytes"`
	BandwidthBps   int64  `json:"bandwidth_bps"`
	RecordedAt     string `json:"recorded_at"`
}
