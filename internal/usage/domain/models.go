// Package domain contains usage models consumed by rating and invoicing.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidUsage  = errors.New("invalid_usage")
	ErrInvalidPeriod = errors.New("invalid_period")
	ErrInvalidUser   = errors.New("invalid_user")
)

// Period is a half-open [Start, End) billing window.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (p Period) Valid() bool {
	return !p.Start.IsZero() && p.End.After(p.Start)
}

// Seconds returns the window length in seconds.
func (p Period) Seconds() float64 {
	return p.End.Sub(p.Start).Seconds()
}

// Overlap returns the intersection of two windows, zero-length if disjoint.
func (p Period) Overlap(other Period) Period {
	start := p.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := p.End
	if other.End.Before(end) {
		end = other.End
	}
	if !end.After(start) {
		return Period{Start: start, End: start}
	}
	return Period{Start: start, End: end}
}

// UsageData is the aggregated accounting footprint of one user over one
// billing period, as handed to the rate calculator.
type UsageData struct {
	SessionSeconds   int64  `json:"session_seconds"`
	UploadBytes      int64  `json:"upload_bytes"`
	DownloadBytes    int64  `json:"download_bytes"`
	SessionCount     int64  `json:"session_count"`
	PeakBandwidthBps int64  `json:"peak_bandwidth_bps"`
	Period           Period `json:"period"`
}

// TotalBytes is the volume quantity rated by volume rates.
func (u UsageData) TotalBytes() int64 {
	return u.UploadBytes + u.DownloadBytes
}

func (u UsageData) Validate() error {
	if u.SessionSeconds < 0 || u.UploadBytes < 0 || u.DownloadBytes < 0 ||
		u.SessionCount < 0 || u.PeakBandwidthBps < 0 {
		return ErrInvalidUsage
	}
	if !u.Period.Valid() {
		return ErrInvalidPeriod
	}
	return nil
}

// UsageEvent is one accounting record emitted by the session-tracking
// collaborator (one row per closed session or interim update).
type UsageEvent struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	UserID         snowflake.ID `gorm:"not null;index:idx_usage_user_recorded"`
	SessionSeconds int64        `gorm:"not null;default:0"`
	UploadBytes    int64        `gorm:"not null;default:0"`
	DownloadBytes  int64        `gorm:"not null;default:0"`
	BandwidthBps   int64        `gorm:"not null;default:0"`
	RecordedAt     time.Time    `gorm:"not null;index:idx_usage_user_recorded"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (UsageEvent) TableName() string { return "usage_events" }
