package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	eventdomain "github.com/netbill/netbill/internal/billingevent/domain"
	eventservice "github.com/netbill/netbill/internal/billingevent/service"
	"github.com/netbill/netbill/internal/clock"
	"github.com/netbill/netbill/internal/config"
	invoicedomain "github.com/netbill/netbill/internal/invoice/domain"
	invoicerepo "github.com/netbill/netbill/internal/invoice/repository"
	settlementdomain "github.com/netbill/netbill/internal/settlement/domain"
	settlementrepo "github.com/netbill/netbill/internal/settlement/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	svc         *Service
	clock       *clock.FakeClock
	db          *gorm.DB
	genID       *snowflake.Node
	invoiceRepo invoicedomain.Repository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceLineItem{},
		&settlementdomain.Payment{},
		&settlementdomain.Refund{},
		&eventdomain.BillingEvent{},
	))

	node, err := snowflake.NewNode(8)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Now().UTC())
	log := zap.NewNop()
	invRepo := invoicerepo.NewRepository(db)

	svc := &Service{
		db:          db,
		log:         log,
		genID:       node,
		clock:       fake,
		billing:     config.StaticBillingConfig(config.DefaultBillingConfig()),
		repo:        settlementrepo.NewRepository(db),
		invoiceRepo: invRepo,
		outbox:      eventservice.NewOutbox(eventservice.Params{DB: db, Log: log, GenID: node}),
	}
	return &testEnv{svc: svc, clock: fake, db: db, genID: node, invoiceRepo: invRepo}
}

// seedInvoice creates an issued $100.00 invoice.
func (e *testEnv) seedInvoice(t *testing.T) *invoicedomain.Invoice {
	t.Helper()
	now := e.clock.Now()
	inv := &invoicedomain.Invoice{
		ID:               e.genID.Generate(),
		UserID:           e.genID.Generate(),
		PlanID:           e.genID.Generate(),
		PeriodStart:      now.Add(-30 * 24 * time.Hour),
		PeriodEnd:        now,
		Status:           invoicedomain.InvoiceStatusIssued,
		TotalAmountCents: 10000,
		Currency:         "USD",
		IssueDate:        &now,
	}
	require.NoError(t, e.invoiceRepo.Insert(context.Background(), nil, inv))
	return inv
}

func (e *testEnv) completedPayment(t *testing.T, inv *invoicedomain.Invoice, cents int64, key string) *settlementdomain.Payment {
	t.Helper()
	payment, err := e.svc.RecordPaymentAttempt(context.Background(), settlementdomain.RecordPaymentRequest{
		InvoiceID:      inv.ID.String(),
		AmountCents:    cents,
		Currency:       "USD",
		IdempotencyKey: key,
	})
	require.NoError(t, err)
	payment, err = e.svc.MarkCompleted(context.Background(), payment.ID.String(), "txn-"+key)
	require.NoError(t, err)
	return payment
}

func (e *testEnv) reloadInvoice(t *testing.T, id snowflake.ID) *invoicedomain.Invoice {
	t.Helper()
	inv, err := e.invoiceRepo.FindByID(context.Background(), nil, id)
	require.NoError(t, err)
	require.NotNil(t, inv)
	return inv
}

func TestRecordPaymentAttempt_IdempotencyKeyDedupes(t *testing.T) {
	env := newTestEnv(t)
	inv := env.seedInvoice(t)

	req := settlementdomain.RecordPaymentRequest{
		InvoiceID:      inv.ID.String(),
		AmountCents:    6000,
		Currency:       "USD",
		IdempotencyKey: "cb-1",
	}
	first, err := env.svc.RecordPaymentAttempt(context.Background(), req)
	require.NoError(t, err)

	second, err := env.svc.RecordPaymentAttempt(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, env.db.Model(&settlementdomain.Payment{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRecordPaymentAttempt_Guards(t *testing.T) {
	env := newTestEnv(t)
	inv := env.seedInvoice(t)

	_, err := env.svc.RecordPaymentAttempt(context.Background(), settlementdomain.RecordPaymentRequest{
		InvoiceID: inv.ID.String(), AmountCents: 0, IdempotencyKey: "k",
	})
	assert.ErrorIs(t, err, settlementdomain.ErrInvalidAmount)

	_, err = env.svc.RecordPaymentAttempt(context.Background(), settlementdomain.RecordPaymentRequest{
		InvoiceID: inv.ID.String(), AmountCents: 100, IdempotencyKey: " ",
	})
	assert.ErrorIs(t, err, settlementdomain.ErrInvalidIdempotencyKey)

	_, err = env.svc.RecordPaymentAttempt(context.Background(), settlementdomain.RecordPaymentRequest{
		InvoiceID: inv.ID.String(), AmountCents: 100, Currency: "EUR", IdempotencyKey: "k2",
	})
	assert.ErrorIs(t, err, settlementdomain.ErrCurrencyMismatch)
}

func TestRecordPaymentAttempt_VoidAndDraftInvoicesRejected(t *testing.T) {
	env := newTestEnv(t)

	inv := env.seedInvoice(t)
	require.NoError(t, env.db.Model(&invoicedomain.Invoice{}).
		Where("id = ?", inv.ID).
		Update("status", invoicedomain.InvoiceStatusVoid).Error)
	_, err := env.svc.RecordPaymentAttempt(context.Background(), settlementdomain.RecordPaymentRequest{
		InvoiceID: inv.ID.String(), AmountCents: 100, IdempotencyKey: "k1",
	})
	assert.ErrorIs(t, err, invoicedomain.ErrInvoiceVoid)

	draft := env.seedInvoice(t)
	require.NoError(t, env.db.Model(&invoicedomain.Invoice{}).
		Where("id = ?", draft.ID).
		Update("status", invoicedomain.InvoiceStatusDraft).Error)
	_, err = env.svc.RecordPaymentAttempt(context.Background(), settlementdomain.RecordPaymentRequest{
		InvoiceID: draft.ID.String(), AmountCents: 100, IdempotencyKey: "k2",
	})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidTransition)
}

// A $100 invoice settled by a $60 then a $40 payment walks
// issued -> partially_paid -> paid.
func TestMarkCompleted_SettlesInvoiceProgressively(t *testing.T) {
	env := newTestEnv(t)
	inv := env.seedInvoice(t)

	env.completedPayment(t, inv, 6000, "cb-60")
	got := env.reloadInvoice(t, inv.ID)
	assert.Equal(t, invoicedomain.InvoiceStatusPartiallyPaid, got.Status)
	assert.Equal(t, int64(6000), got.PaidAmountCents)

	env.completedPayment(t, inv, 4000, "cb-40")
	got = env.reloadInvoice(t, inv.ID)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, got.Status)
	assert.Equal(t, int64(10000), got.PaidAmountCents)

	var events int64
	require.NoError(t, env.db.Model(&eventdomain.BillingEvent{}).
		Where("event_type = ?", eventdomain.EventPaymentCompleted).
		Count(&events).Error)
	assert.Equal(t, int64(2), events)
}

func TestMarkCompleted_TerminalPaymentRejected(t *testing.T) {
	env := newTestEnv(t)
	inv := env.seedInvoice(t)

	payment := env.completedPayment(t, inv, 6000, "cb-1")
	_, err := env.svc.MarkCompleted(context.Background(), payment.ID.String(), "txn-again")
	assert.ErrorIs(t, err, settlementdomain.ErrAlreadyTerminal)

	// No double credit.
	got := env.reloadInvoice(t, inv.ID)
	assert.Equal(t, int64(6000), got.PaidAmountCents)
}

func TestMarkCompleted_OverpaymentRejected(t *testing.T) {
	env := newTestEnv(t)
	inv := env.seedInvoice(t)
	env.completedPayment(t, inv, 6000, "cb-1")

	payment, err := env.svc.RecordPaymentAttempt(context.Background(), settlementdomain.RecordPaymentRequest{
		InvoiceID: inv.ID.String(), AmountCents: 5000, Currency: "USD", IdempotencyKey: "cb-2",
	})
	require.NoError(t, err)

	_, err = env.svc.MarkCompleted(context.Background(), payment.ID.String(), "txn-2")
	assert.ErrorIs(t, err, invoicedomain.ErrOverpayment)

	got := env.reloadInvoice(t, inv.ID)
	assert.Equal(t, int64(6000), got.PaidAmountCents)
	assert.Equal(t, invoicedomain.InvoiceStatusPartiallyPaid, got.Status)
}

func TestMarkFailed_DoesNotTouchInvoice(t *testing.T) {
	env := newTestEnv(t)
	inv := env.seedInvoice(t)

	payment, err := env.svc.RecordPaymentAttempt(context.Background(), settlementdomain.RecordPaymentRequest{
		InvoiceID: inv.ID.String(), AmountCents: 6000, Currency: "USD", IdempotencyKey: "cb-1",
	})
	require.NoError(t, err)

	failed, err := env.svc.MarkFailed(context.Background(), payment.ID.String(), "card_declined")
	require.NoError(t, err)
	assert.Equal(t, settlementdomain.PaymentStatusFailed, failed.Status)
	require.NotNil(t, failed.FailureReason)
	assert.Equal(t, "card_declined", *failed.FailureReason)

	got := env.reloadInvoice(t, inv.ID)
	assert.Zero(t, got.PaidAmountCents)
	assert.Equal(t, invoicedomain.InvoiceStatusIssued, got.Status)

	_, err = env.svc.MarkCompleted(context.Background(), payment.ID.String(), "txn-late")
	assert.ErrorIs(t, err, settlementdomain.ErrAlreadyTerminal)
}

func TestRequestRefund_CeilingEnforced(t *testing.T) {
	env := newTestEnv(t)
	inv := env.seedInvoice(t)
	payment := env.completedPayment(t, inv, 4000, "cb-1")

	_, err := env.svc.RequestRefund(context.Background(), payment.ID.String(), 5000, "too much")
	assert.ErrorIs(t, err, settlementdomain.ErrRefundExceedsPayment)

	refund, err := env.svc.RequestRefund(context.Background(), payment.ID.String(), 4000, "goodwill")
	require.NoError(t, err)
	assert.Equal(t, settlementdomain.RefundStatusPending, refund.Status)

	// Pending refunds do not consume the ceiling yet; approval does.
	_, err = env.svc.ApproveRefund(context.Background(), refund.ID.String())
	require.NoError(t, err)
	_, err = env.svc.RequestRefund(context.Background(), payment.ID.String(), 100, "one more")
	assert.ErrorIs(t, err, settlementdomain.ErrRefundExceedsPayment)
}

func TestRequestRefund_RequiresCompletedPayment(t *testing.T) {
	env := newTestEnv(t)
	inv := env.seedInvoice(t)

	payment, err := env.svc.RecordPaymentAttempt(context.Background(), settlementdomain.RecordPaymentRequest{
		InvoiceID: inv.ID.String(), AmountCents: 4000, Currency: "USD", IdempotencyKey: "cb-1",
	})
	require.NoError(t, err)

	_, err = env.svc.RequestRefund(context.Background(), payment.ID.String(), 1000, "early")
	assert.ErrorIs(t, err, settlementdomain.ErrInvalidTransition)
}

// A paid invoice with a completed $40 refund regresses to partially_paid
// with $60 still applied.
func TestCompleteRefund_DebitsInvoice(t *testing.T) {
	env := newTestEnv(t)
	inv := env.seedInvoice(t)
	env.completedPayment(t, inv, 6000, "cb-60")
	payment := env.completedPayment(t, inv, 4000, "cb-40")

	refund, err := env.svc.RequestRefund(context.Background(), payment.ID.String(), 4000, "goodwill")
	require.NoError(t, err)
	_, err = env.svc.ApproveRefund(context.Background(), refund.ID.String())
	require.NoError(t, err)

	completed, err := env.svc.CompleteRefund(context.Background(), refund.ID.String())
	require.NoError(t, err)
	assert.Equal(t, settlementdomain.RefundStatusCompleted, completed.Status)

	got := env.reloadInvoice(t, inv.ID)
	assert.Equal(t, int64(6000), got.PaidAmountCents)
	assert.Equal(t, invoicedomain.InvoiceStatusPartiallyPaid, got.Status)

	var events int64
	require.NoError(t, env.db.Model(&eventdomain.BillingEvent{}).
		Where("event_type = ?", eventdomain.EventRefundCompleted).
		Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestRefund_StateMachineGuards(t *testing.T) {
	env := newTestEnv(t)
	inv := env.seedInvoice(t)
	payment := env.completedPayment(t, inv, 4000, "cb-1")

	refund, err := env.svc.RequestRefund(context.Background(), payment.ID.String(), 1000, "r")
	require.NoError(t, err)

	// Completion requires prior approval.
	_, err = env.svc.CompleteRefund(context.Background(), refund.ID.String())
	assert.ErrorIs(t, err, settlementdomain.ErrInvalidTransition)

	rejected, err := env.svc.RejectRefund(context.Background(), refund.ID.String())
	require.NoError(t, err)
	assert.Equal(t, settlementdomain.RefundStatusRejected, rejected.Status)

	_, err = env.svc.ApproveRefund(context.Background(), refund.ID.String())
	assert.ErrorIs(t, err, settlementdomain.ErrAlreadyTerminal)
}

func TestFailRefund_FromApproved(t *testing.T) {
	env := newTestEnv(t)
	inv := env.seedInvoice(t)
	payment := env.completedPayment(t, inv, 4000, "cb-1")

	refund, err := env.svc.RequestRefund(context.Background(), payment.ID.String(), 1000, "r")
	require.NoError(t, err)
	_, err = env.svc.ApproveRefund(context.Background(), refund.ID.String())
	require.NoError(t, err)

	failed, err := env.svc.FailRefund(context.Background(), refund.ID.String(), "gateway_error")
	require.NoError(t, err)
	assert.Equal(t, settlementdomain.RefundStatusFailed, failed.Status)

	// Failed refunds free the ceiling again.
	_, err = env.svc.RequestRefund(context.Background(), payment.ID.String(), 4000, "retry")
	require.NoError(t, err)
}

func TestListStalePayments_SurfacesStuckProcessing(t *testing.T) {
	env := newTestEnv(t)
	inv := env.seedInvoice(t)

	payment, err := env.svc.RecordPaymentAttempt(context.Background(), settlementdomain.RecordPaymentRequest{
		InvoiceID: inv.ID.String(), AmountCents: 6000, Currency: "USD", IdempotencyKey: "cb-1",
	})
	require.NoError(t, err)
	_, err = env.svc.MarkProcessing(context.Background(), payment.ID.String())
	require.NoError(t, err)

	stale, err := env.svc.ListStalePayments(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, stale)

	env.clock.Advance(2 * time.Hour)
	stale, err = env.svc.ListStalePayments(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, payment.ID, stale[0].ID)
	assert.Equal(t, settlementdomain.PaymentStatusProcessing, stale[0].Status)
}

func TestCompleteRefund_VoidedInvoiceStaysVoid(t *testing.T) {
	env := newTestEnv(t)
	inv := env.seedInvoice(t)
	payment := env.completedPayment(t, inv, 6000, "void-refund")

	refund, err := env.svc.RequestRefund(context.Background(), payment.ID.String(), 2000, "goodwill")
	require.NoError(t, err)
	_, err = env.svc.ApproveRefund(context.Background(), refund.ID.String())
	require.NoError(t, err)

	require.NoError(t, env.db.Model(&invoicedomain.Invoice{}).
		Where("id = ?", inv.ID).
		Update("status", invoicedomain.InvoiceStatusVoid).Error)

	completed, err := env.svc.CompleteRefund(context.Background(), refund.ID.String())
	require.NoError(t, err)
	assert.Equal(t, settlementdomain.RefundStatusCompleted, completed.Status)

	// The debit lands, but void is terminal.
	got := env.reloadInvoice(t, inv.ID)
	assert.Equal(t, invoicedomain.InvoiceStatusVoid, got.Status)
	assert.Equal(t, int64(4000), got.PaidAmountCents)
}

func TestCompleteRefund_ReChecksCeiling(t *testing.T) {
	env := newTestEnv(t)
	inv := env.seedInvoice(t)
	payment := env.completedPayment(t, inv, 4000, "ceiling-race")

	refund, err := env.svc.RequestRefund(context.Background(), payment.ID.String(), 3000, "partial")
	require.NoError(t, err)
	_, err = env.svc.ApproveRefund(context.Background(), refund.ID.String())
	require.NoError(t, err)

	// A rival refund approved as if a concurrent request had read the
	// same ceiling before this one was inserted.
	now := env.clock.Now()
	rival := &settlementdomain.Refund{
		ID:          env.genID.Generate(),
		PaymentID:   payment.ID,
		AmountCents: 3000,
		Currency:    "USD",
		Status:      settlementdomain.RefundStatusApproved,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, env.db.Create(rival).Error)

	_, err = env.svc.CompleteRefund(context.Background(), refund.ID.String())
	assert.ErrorIs(t, err, settlementdomain.ErrRefundExceedsPayment)

	got := env.reloadInvoice(t, inv.ID)
	assert.Equal(t, int64(4000), got.PaidAmountCents)
}
