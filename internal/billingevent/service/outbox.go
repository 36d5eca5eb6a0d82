// Package service implements the settlement event outbox: transactional
// append plus a dispatcher that drains unpublished rows to subscribers.
package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	eventdomain "github.com/netbill/netbill/internal/billingevent/domain"
	"github.com/netbill/netbill/internal/config"
	"github.com/netbill/netbill/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Outbox struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node

	events chan eventdomain.BillingEvent
}

func NewOutbox(p Params) *Outbox {
	return &Outbox{
		db:     p.DB,
		log:    p.Log.Named("billingevent.outbox"),
		genID:  p.GenID,
		events: make(chan eventdomain.BillingEvent, 256),
	}
}

// Append records an event inside the caller's transaction. A dedupe-key
// collision means the transition was already recorded on a prior retry and
// is not an error.
func (o *Outbox) Append(ctx context.Context, tx *gorm.DB, eventType string, dedupeKey string, payload map[string]any) error {
	conn := tx
	if conn == nil {
		conn = o.db
	}
	if dedupeKey == "" {
		dedupeKey = uuid.NewString()
	}

	event := eventdomain.BillingEvent{
		ID:        o.genID.Generate(),
		EventType: eventType,
		Payload:   datatypes.JSONMap(payload),
		DedupeKey: &dedupeKey,
		CreatedAt: time.Now().UTC(),
	}
	if err := conn.WithContext(ctx).Create(&event).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil
		}
		return err
	}
	return nil
}

// Subscribe exposes the dispatch channel consumed by the notification
// collaborator.
func (o *Outbox) Subscribe() <-chan eventdomain.BillingEvent {
	return o.events
}

// DispatchPending publishes unpublished rows oldest-first, marking each
// row only after the subscriber has taken it. A full channel stops the
// drain and leaves the remainder unpublished for the next pass; a crash
// between send and mark redelivers, which subscribers absorb via the
// event id.
func (o *Outbox) DispatchPending(ctx context.Context) (int, error) {
	var pending []eventdomain.BillingEvent
	err := o.db.WithContext(ctx).
		Where("published = ?", false).
		Order("id ASC").
		Limit(100).
		Find(&pending).Error
	if err != nil {
		return 0, err
	}

	dispatched := 0
	now := time.Now().UTC()
	for _, event := range pending {
		event.Published = true
		event.PublishedAt = &now

		select {
		case o.events <- event:
		default:
			o.log.Warn("event channel full, deferring dispatch",
				zap.String("event_type", event.EventType),
				zap.Int64("event_id", int64(event.ID)))
			return dispatched, nil
		}

		result := o.db.WithContext(ctx).Exec(
			`UPDATE billing_events SET published = ?, published_at = ? WHERE id = ? AND published = ?`,
			true, now, event.ID, false,
		)
		if result.Error != nil {
			return dispatched, result.Error
		}
		dispatched++
	}
	return dispatched, nil
}

// RegisterDispatcher pumps the outbox on the configured interval for the
// lifetime of the application.
func RegisterDispatcher(lc fx.Lifecycle, o *Outbox, billing *config.BillingConfigHolder) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				ticker := time.NewTicker(billing.Get().DispatchInterval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						if _, err := o.DispatchPending(ctx); err != nil && ctx.Err() == nil {
							o.log.Error("dispatch pending events", zap.Error(err))
						}
					}
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}
