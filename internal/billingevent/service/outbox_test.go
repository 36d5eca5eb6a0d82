package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	eventdomain "github.com/netbill/netbill/internal/billingevent/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestOutbox(t *testing.T) (*Outbox, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&eventdomain.BillingEvent{}))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	return NewOutbox(Params{DB: db, Log: zap.NewNop(), GenID: node}), db
}

func TestAppend_DedupeKeyCollisionIsNoop(t *testing.T) {
	outbox, db := newTestOutbox(t)
	ctx := context.Background()

	require.NoError(t, outbox.Append(ctx, nil, eventdomain.EventInvoiceIssued, "invoice.issued:1", nil))
	require.NoError(t, outbox.Append(ctx, nil, eventdomain.EventInvoiceIssued, "invoice.issued:1", nil))

	var count int64
	require.NoError(t, db.Model(&eventdomain.BillingEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDispatchPending_MarksAndEmitsInOrder(t *testing.T) {
	outbox, db := newTestOutbox(t)
	ctx := context.Background()

	require.NoError(t, outbox.Append(ctx, nil, eventdomain.EventInvoiceIssued, "a", nil))
	require.NoError(t, outbox.Append(ctx, nil, eventdomain.EventPaymentCompleted, "b", nil))

	dispatched, err := outbox.DispatchPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, dispatched)

	first := <-outbox.Subscribe()
	second := <-outbox.Subscribe()
	assert.Equal(t, eventdomain.EventInvoiceIssued, first.EventType)
	assert.Equal(t, eventdomain.EventPaymentCompleted, second.EventType)

	var unpublished int64
	require.NoError(t, db.Model(&eventdomain.BillingEvent{}).
		Where("published = ?", false).
		Count(&unpublished).Error)
	assert.Zero(t, unpublished)

	// Nothing left to dispatch.
	dispatched, err = outbox.DispatchPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, dispatched)
}

func TestDispatchPending_FullChannelKeepsRowsUnpublished(t *testing.T) {
	outbox, db := newTestOutbox(t)
	ctx := context.Background()

	// Saturate the subscriber channel so the next dispatch cannot hand
	// anything over.
	for i := 0; i < cap(outbox.events); i++ {
		outbox.events <- eventdomain.BillingEvent{}
	}

	require.NoError(t, outbox.Append(ctx, nil, eventdomain.EventRefundCompleted, "r-1", nil))

	dispatched, err := outbox.DispatchPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, dispatched)

	// The row must survive the deferred pass; a pre-marked row would be
	// lost here.
	var unpublished int64
	require.NoError(t, db.Model(&eventdomain.BillingEvent{}).
		Where("published = ?", false).
		Count(&unpublished).Error)
	assert.Equal(t, int64(1), unpublished)

	for i := 0; i < cap(outbox.events); i++ {
		<-outbox.events
	}
	dispatched, err = outbox.DispatchPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, dispatched)

	got := <-outbox.Subscribe()
	assert.Equal(t, eventdomain.EventRefundCompleted, got.EventType)
}
