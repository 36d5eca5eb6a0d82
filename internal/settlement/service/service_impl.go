package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	eventdomain "github.com/netbill/netbill/internal/billingevent/domain"
	eventservice "github.com/netbill/netbill/internal/billingevent/service"
	"github.com/netbill/netbill/internal/clock"
	"github.com/netbill/netbill/internal/config"
	invoicedomain "github.com/netbill/netbill/internal/invoice/domain"
	obsmetrics "github.com/netbill/netbill/internal/observability/metrics"
	settlementdomain "github.com/netbill/netbill/internal/settlement/domain"
	"github.com/netbill/netbill/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Billing     *config.BillingConfigHolder
	Repo        settlementdomain.Repository
	InvoiceRepo invoicedomain.Repository
	Outbox      *eventservice.Outbox
	Metrics     *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	billing     *config.BillingConfigHolder
	repo        settlementdomain.Repository
	invoiceRepo invoicedomain.Repository
	outbox      *eventservice.Outbox
	metrics     *obsmetrics.Metrics
}

func NewService(p Params) settlementdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("settlement.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		billing:     p.Billing,
		repo:        p.Repo,
		invoiceRepo: p.InvoiceRepo,
		outbox:      p.Outbox,
		metrics:     p.Metrics,
	}
}

// RecordPaymentAttempt is the idempotent intake for gateway attempts. The
// idempotency key is the dedupe boundary: a re-delivered callback gets the
// prior Payment back, so at-least-once delivery never double-books.
func (s *Service) RecordPaymentAttempt(ctx context.Context, req settlementdomain.RecordPaymentRequest) (*settlementdomain.Payment, error) {
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		return nil, settlementdomain.ErrInvalidIdempotencyKey
	}
	if req.AmountCents <= 0 {
		return nil, settlementdomain.ErrInvalidAmount
	}
	invoiceID, err := parseID(req.InvoiceID)
	if err != nil {
		return nil, settlementdomain.ErrInvalidID
	}

	if existing, err := s.repo.FindPaymentByKey(ctx, nil, key); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	invoice, err := s.invoiceRepo.FindByID(ctx, nil, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, settlementdomain.ErrNotFound
	}
	if invoice.Status == invoicedomain.InvoiceStatusVoid {
		return nil, invoicedomain.ErrInvoiceVoid
	}
	if invoice.Status == invoicedomain.InvoiceStatusDraft {
		return nil, invoicedomain.ErrInvalidTransition
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = invoice.Currency
	}
	if currency != invoice.Currency {
		return nil, settlementdomain.ErrCurrencyMismatch
	}

	now := s.clock.Now()
	payment := &settlementdomain.Payment{
		ID:             s.genID.Generate(),
		InvoiceID:      invoiceID,
		AmountCents:    req.AmountCents,
		Currency:       currency,
		IdempotencyKey: key,
		Status:         settlementdomain.PaymentStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.InsertPayment(ctx, nil, payment); err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Concurrent delivery of the same callback; the first insert wins.
			return s.repo.FindPaymentByKey(ctx, nil, key)
		}
		return nil, err
	}
	return payment, nil
}

func (s *Service) MarkProcessing(ctx context.Context, paymentID string) (*settlementdomain.Payment, error) {
	payment, err := s.loadPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status.Terminal() {
		return nil, settlementdomain.ErrAlreadyTerminal
	}
	if payment.Status == settlementdomain.PaymentStatusProcessing {
		return payment, nil
	}

	from := payment.Status
	payment.Status = settlementdomain.PaymentStatusProcessing
	if err := s.repo.TransitionPayment(ctx, nil, payment, from); err != nil {
		return nil, err
	}
	return payment, nil
}

// MarkCompleted settles a payment: the payment transition, the invoice
// credit, the invoice status re-evaluation, and the emitted events all
// commit in one transaction, retried on optimistic-lock conflicts. Either
// the full settlement lands or nothing does.
func (s *Service) MarkCompleted(ctx context.Context, paymentID, transactionID string) (*settlementdomain.Payment, error) {
	id, err := parseID(paymentID)
	if err != nil {
		return nil, settlementdomain.ErrInvalidID
	}

	var payment *settlementdomain.Payment
	err = s.withConflictRetry(ctx, func(tx *gorm.DB) error {
		payment, err = s.repo.FindPaymentByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if payment == nil {
			return settlementdomain.ErrNotFound
		}
		if payment.Status.Terminal() {
			return settlementdomain.ErrAlreadyTerminal
		}

		invoice, err := s.invoiceRepo.FindByID(ctx, tx, payment.InvoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return settlementdomain.ErrNotFound
		}
		if invoice.Status == invoicedomain.InvoiceStatusVoid {
			return invoicedomain.ErrInvoiceVoid
		}
		if !invoice.AcceptsSettlement() {
			return invoicedomain.ErrInvalidTransition
		}
		if payment.Currency != invoice.Currency {
			return settlementdomain.ErrCurrencyMismatch
		}
		if invoice.PaidAmountCents+payment.AmountCents > invoice.TotalAmountCents {
			return invoicedomain.ErrOverpayment
		}

		from := payment.Status
		txnID := strings.TrimSpace(transactionID)
		payment.Status = settlementdomain.PaymentStatusCompleted
		if txnID != "" {
			payment.TransactionID = &txnID
		}
		if err := s.repo.TransitionPayment(ctx, tx, payment, from); err != nil {
			return err
		}

		prevStatus := invoice.Status
		invoice.PaidAmountCents += payment.AmountCents
		invoice.Status = invoice.SettlementStatus()
		if err := s.invoiceRepo.ApplySettlement(ctx, tx, invoice); err != nil {
			return err
		}

		if err := s.outbox.Append(ctx, tx, eventdomain.EventPaymentCompleted,
			"payment.completed:"+payment.ID.String(),
			map[string]any{
				"payment_id":   payment.ID.String(),
				"invoice_id":   invoice.ID.String(),
				"amount_cents": payment.AmountCents,
				"currency":     payment.Currency,
			}); err != nil {
			return err
		}
		if invoice.Status != prevStatus {
			if err := s.appendStatusChanged(ctx, tx, invoice, "payment:"+payment.ID.String()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PaymentCompleted()
	s.log.Info("payment completed",
		zap.Int64("payment_id", int64(payment.ID)),
		zap.Int64("invoice_id", int64(payment.InvoiceID)),
		zap.Int64("amount_cents", payment.AmountCents))
	return payment, nil
}

func (s *Service) MarkFailed(ctx context.Context, paymentID, reason string) (*settlementdomain.Payment, error) {
	payment, err := s.loadPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status.Terminal() {
		return nil, settlementdomain.ErrAlreadyTerminal
	}

	from := payment.Status
	trimmed := strings.TrimSpace(reason)
	payment.Status = settlementdomain.PaymentStatusFailed
	if trimmed != "" {
		payment.FailureReason = &trimmed
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.TransitionPayment(ctx, tx, payment, from); err != nil {
			return err
		}
		return s.outbox.Append(ctx, tx, eventdomain.EventPaymentFailed,
			"payment.failed:"+payment.ID.String(),
			map[string]any{
				"payment_id": payment.ID.String(),
				"invoice_id": payment.InvoiceID.String(),
				"reason":     trimmed,
			})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PaymentFailed()
	return payment, nil
}

// RequestRefund opens a refund against a completed payment, enforcing the
// ceiling: requested + already approved/completed never exceeds the
// payment amount.
func (s *Service) RequestRefund(ctx context.Context, paymentID string, amountCents int64, reason string) (*settlementdomain.Refund, error) {
	if amountCents <= 0 {
		return nil, settlementdomain.ErrInvalidAmount
	}
	payment, err := s.loadPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != settlementdomain.PaymentStatusCompleted {
		return nil, settlementdomain.ErrInvalidTransition
	}

	now := s.clock.Now()
	refund := &settlementdomain.Refund{
		ID:          s.genID.Generate(),
		PaymentID:   payment.ID,
		AmountCents: amountCents,
		Currency:    payment.Currency,
		Status:      settlementdomain.RefundStatusPending,
		Reason:      strings.TrimSpace(reason),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		active, err := s.repo.SumActiveRefunds(ctx, tx, payment.ID)
		if err != nil {
			return err
		}
		if amountCents+active > payment.AmountCents {
			return settlementdomain.ErrRefundExceedsPayment
		}
		return s.repo.InsertRefund(ctx, tx, refund)
	})
	if err != nil {
		return nil, err
	}
	return refund, nil
}

func (s *Service) ApproveRefund(ctx context.Context, refundID string) (*settlementdomain.Refund, error) {
	return s.transitionRefund(ctx, refundID, settlementdomain.RefundStatusPending, settlementdomain.RefundStatusApproved, "")
}

func (s *Service) RejectRefund(ctx context.Context, refundID string) (*settlementdomain.Refund, error) {
	return s.transitionRefund(ctx, refundID, settlementdomain.RefundStatusPending, settlementdomain.RefundStatusRejected, "")
}

func (s *Service) FailRefund(ctx context.Context, refundID, reason string) (*settlementdomain.Refund, error) {
	return s.transitionRefund(ctx, refundID, settlementdomain.RefundStatusApproved, settlementdomain.RefundStatusFailed, reason)
}

func (s *Service) transitionRefund(ctx context.Context, refundID string, from, to settlementdomain.RefundStatus, reason string) (*settlementdomain.Refund, error) {
	refund, err := s.loadRefund(ctx, refundID)
	if err != nil {
		return nil, err
	}
	if refund.Status.Terminal() {
		return nil, settlementdomain.ErrAlreadyTerminal
	}
	if refund.Status != from {
		return nil, settlementdomain.ErrInvalidTransition
	}

	refund.Status = to
	if trimmed := strings.TrimSpace(reason); trimmed != "" {
		refund.Reason = trimmed
	}
	if err := s.repo.TransitionRefund(ctx, nil, refund, from); err != nil {
		return nil, err
	}
	return refund, nil
}

// CompleteRefund lands an approved refund: the refund transition, the
// invoice debit (never below zero) and the status re-evaluation commit
// together. A fully refunded invoice moves back to issued; a voided
// invoice takes the debit but stays void.
func (s *Service) CompleteRefund(ctx context.Context, refundID string) (*settlementdomain.Refund, error) {
	id, err := parseID(refundID)
	if err != nil {
		return nil, settlementdomain.ErrInvalidID
	}

	var refund *settlementdomain.Refund
	err = s.withConflictRetry(ctx, func(tx *gorm.DB) error {
		refund, err = s.repo.FindRefundByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if refund == nil {
			return settlementdomain.ErrNotFound
		}
		if refund.Status.Terminal() {
			return settlementdomain.ErrAlreadyTerminal
		}
		if refund.Status != settlementdomain.RefundStatusApproved {
			return settlementdomain.ErrInvalidTransition
		}

		payment, err := s.repo.FindPaymentByID(ctx, tx, refund.PaymentID)
		if err != nil {
			return err
		}
		if payment == nil {
			return settlementdomain.ErrNotFound
		}

		// The ceiling is re-checked here because approvals raced since the
		// request-time check. The sum already includes this refund.
		active, err := s.repo.SumActiveRefunds(ctx, tx, payment.ID)
		if err != nil {
			return err
		}
		if active > payment.AmountCents {
			return settlementdomain.ErrRefundExceedsPayment
		}

		invoice, err := s.invoiceRepo.FindByID(ctx, tx, payment.InvoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return settlementdomain.ErrNotFound
		}

		if err := s.repo.TransitionRefund(ctx, tx, &settlementdomain.Refund{
			ID:     refund.ID,
			Status: settlementdomain.RefundStatusCompleted,
			Reason: refund.Reason,
		}, settlementdomain.RefundStatusApproved); err != nil {
			return err
		}
		refund.Status = settlementdomain.RefundStatusCompleted

		prevStatus := invoice.Status
		invoice.PaidAmountCents -= refund.AmountCents
		if invoice.PaidAmountCents < 0 {
			invoice.PaidAmountCents = 0
		}
		// Void is terminal: the debit is recorded, but the refund must not
		// pull the invoice back into the settlement lifecycle.
		if invoice.Status != invoicedomain.InvoiceStatusVoid {
			invoice.Status = invoice.SettlementStatus()
		}
		if err := s.invoiceRepo.ApplySettlement(ctx, tx, invoice); err != nil {
			return err
		}

		if err := s.outbox.Append(ctx, tx, eventdomain.EventRefundCompleted,
			"refund.completed:"+refund.ID.String(),
			map[string]any{
				"refund_id":    refund.ID.String(),
				"payment_id":   payment.ID.String(),
				"invoice_id":   invoice.ID.String(),
				"amount_cents": refund.AmountCents,
			}); err != nil {
			return err
		}
		if invoice.Status != prevStatus {
			if err := s.appendStatusChanged(ctx, tx, invoice, "refund:"+refund.ID.String()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RefundCompleted()
	s.log.Info("refund completed",
		zap.Int64("refund_id", int64(refund.ID)),
		zap.Int64("amount_cents", refund.AmountCents))
	return refund, nil
}

func (s *Service) ListStalePayments(ctx context.Context, olderThan time.Duration) ([]settlementdomain.Payment, error) {
	if olderThan <= 0 {
		olderThan = s.billing.Get().StalePaymentAfter
	}
	cutoff := s.clock.Now().Add(-olderThan)
	return s.repo.ListStalePayments(ctx, nil, cutoff)
}

// withConflictRetry re-runs the whole read-modify-write when the invoice
// version check loses; any other error propagates untouched.
func (s *Service) withConflictRetry(ctx context.Context, fn func(tx *gorm.DB) error) error {
	retries := s.billing.Get().SettlementRetries
	if retries < 1 {
		retries = 1
	}

	var err error
	for attempt := 0; attempt < retries; attempt++ {
		err = s.db.WithContext(ctx).Transaction(fn)
		if err == nil || !errors.Is(err, invoicedomain.ErrConcurrentModification) {
			return err
		}
		s.metrics.SettlementConflict()
		s.log.Warn("settlement conflict, retrying", zap.Int("attempt", attempt+1))
	}
	return err
}

func (s *Service) appendStatusChanged(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice, cause string) error {
	return s.outbox.Append(ctx, tx, eventdomain.EventInvoiceStatusChanged,
		"invoice.status_changed:"+invoice.ID.String()+":"+cause,
		map[string]any{
			"invoice_id":        invoice.ID.String(),
			"user_id":           invoice.UserID.String(),
			"status":            string(invoice.Status),
			"paid_amount_cents": invoice.PaidAmountCents,
		})
}

func (s *Service) loadPayment(ctx context.Context, id string) (*settlementdomain.Payment, error) {
	paymentID, err := parseID(id)
	if err != nil {
		return nil, settlementdomain.ErrInvalidID
	}
	payment, err := s.repo.FindPaymentByID(ctx, nil, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, settlementdomain.ErrNotFound
	}
	return payment, nil
}

func (s *Service) loadRefund(ctx context.Context, id string) (*settlementdomain.Refund, error) {
	refundID, err := parseID(id)
	if err != nil {
		return nil, settlementdomain.ErrInvalidID
	}
	refund, err := s.repo.FindRefundByID(ctx, nil, refundID)
	if err != nil {
		return nil, err
	}
	if refund == nil {
		return nil, settlementdomain.ErrNotFound
	}
	return refund, nil
}

func parseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(value))
}
