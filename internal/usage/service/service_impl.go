package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	usagedomain "github.com/netbill/netbill/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  usagedomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  usagedomain.Repository
}

func NewService(p Params) usagedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("usage.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, req usagedomain.RecordRequest) (*usagedomain.UsageEvent, error) {
	userID, err := parseID(req.UserID)
	if err != nil {
		return nil, usagedomain.ErrInvalidUser
	}
	if req.SessionSeconds < 0 || req.UploadBytes < 0 || req.DownloadBytes < 0 || req.BandwidthBps < 0 {
		return nil, usagedomain.ErrInvalidUsage
	}

	recordedAt := time.Now().UTC()
	if strings.TrimSpace(req.RecordedAt) != "" {
		parsed, err := time.Parse(time.RFC3339, req.RecordedAt)
		if err != nil {
			return nil, usagedomain.ErrInvalidUsage
		}
		recordedAt = parsed.UTC()
	}

	event := &usagedomain.UsageEvent{
		ID:             s.genID.Generate(),
		UserID:         userID,
		SessionSeconds: req.SessionSeconds,
		UploadBytes:    req.UploadBytes,
		DownloadBytes:  req.DownloadBytes,
		BandwidthBps:   req.BandwidthBps,
		RecordedAt:     recordedAt,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.repo.Insert(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *Service) AggregateForPeriod(ctx context.Context, userID snowflake.ID, period usagedomain.Period) (usagedomain.UsageData, error) {
	if !period.Valid() {
		return usagedomain.UsageData{}, usagedomain.ErrInvalidPeriod
	}

	totals, err := s.repo.Aggregate(ctx, userID, period.Start, period.End)
	if err != nil {
		return usagedomain.UsageData{}, err
	}

	return usagedomain.UsageData{
		SessionSeconds:   totals.SessionSeconds,
		UploadBytes:      totals.UploadBytes,
		DownloadBytes:    totals.DownloadBytes,
		SessionCount:     totals.SessionCount,
		PeakBandwidthBps: totals.PeakBandwidthBps,
		Period:           period,
	}, nil
}

func parseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(value))
}
