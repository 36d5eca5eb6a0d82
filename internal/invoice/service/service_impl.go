package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	eventdomain "github.com/netbill/netbill/internal/billingevent/domain"
	eventservice "github.com/netbill/netbill/internal/billingevent/service"
	"github.com/netbill/netbill/internal/clock"
	"github.com/netbill/netbill/internal/config"
	invoicedomain "github.com/netbill/netbill/internal/invoice/domain"
	obsmetrics "github.com/netbill/netbill/internal/observability/metrics"
	plandomain "github.com/netbill/netbill/internal/plan/domain"
	pricingservice "github.com/netbill/netbill/internal/pricing/service"
	"github.com/netbill/netbill/pkg/db"
	"github.com/netbill/netbill/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Billing   *config.BillingConfigHolder
	Repo      invoicedomain.Repository
	Evaluator plandomain.Evaluator
	TaxRates  *pricingservice.Resolver
	Outbox    *eventservice.Outbox
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	billing   *config.BillingConfigHolder
	repo      invoicedomain.Repository
	evaluator plandomain.Evaluator
	taxRates  *pricingservice.Resolver
	outbox    *eventservice.Outbox
	metrics   *obsmetrics.Metrics
}

func NewService(p Params) invoicedomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("invoice.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		billing:   p.Billing,
		repo:      p.Repo,
		evaluator: p.Evaluator,
		taxRates:  p.TaxRates,
		outbox:    p.Outbox,
		metrics:   p.Metrics,
	}
}

// GenerateInvoice turns one (user, period, plan, usage) tuple into a draft
// invoice. The (user, period) key is idempotent: if an invoice already
// exists in any state it is returned as-is, so at-least-once billing runs
// never duplicate a bill.
func (s *Service) GenerateInvoice(ctx context.Context, req invoicedomain.GenerateRequest) (*invoicedomain.Invoice, error) {
	if req.UserID == 0 {
		return nil, invoicedomain.ErrInvalidUser
	}
	if !req.Period.Valid() {
		return nil, invoicedomain.ErrInvalidPeriod
	}

	existing, err := s.repo.FindByUserPeriod(ctx, nil, req.UserID, req.Period.Start, req.Period.End)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	charges, err := s.evaluator.Breakdown(req.Plan, req.Usage)
	if err != nil {
		return nil, err
	}

	taxRate := float64(0)
	if req.TaxRate != nil {
		taxRate = *req.TaxRate
	} else {
		taxRate, err = s.taxRates.ActiveTaxRate(ctx)
		if err != nil {
			return nil, err
		}
	}

	invoice, err := s.buildInvoice(req, charges, taxRate)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Insert(ctx, nil, invoice); err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Lost the race against a concurrent generation for the same key.
			return s.repo.FindByUserPeriod(ctx, nil, req.UserID, req.Period.Start, req.Period.End)
		}
		return nil, err
	}

	s.metrics.InvoiceGenerated()
	s.log.Info("invoice generated",
		zap.Int64("invoice_id", int64(invoice.ID)),
		zap.Int64("user_id", int64(req.UserID)),
		zap.Int64("total_cents", invoice.TotalAmountCents))
	return invoice, nil
}

func (s *Service) buildInvoice(req invoicedomain.GenerateRequest, charges []plandomain.RateCharge, taxRate float64) (*invoicedomain.Invoice, error) {
	now := s.clock.Now()
	invoiceID := s.genID.Generate()
	currency := charges[0].Charge.Currency

	items := make([]invoicedomain.InvoiceLineItem, 0, len(charges)+2)
	subtotal := charges[0].Charge
	subtotal.Amount = 0
	for _, charge := range charges {
		rateID := charge.Rate.ID
		items = append(items, invoicedomain.InvoiceLineItem{
			ID:              s.genID.Generate(),
			InvoiceID:       invoiceID,
			RateID:          &rateID,
			Type:            invoicedomain.LineItemTypeRate,
			Description:     string(charge.Rate.Kind) + " " + charge.Rate.Slot,
			Quantity:        charge.Quantity,
			UnitAmountCents: charge.Rate.UnitAmountCents,
			AmountCents:     charge.Charge.Amount,
			CreatedAt:       now,
		})
		next, err := subtotal.Add(charge.Charge)
		if err != nil {
			return nil, err
		}
		subtotal = next
	}

	postDiscount, err := pricingservice.Apply(subtotal, req.Discounts, 0)
	if err != nil {
		return nil, err
	}
	total, err := pricingservice.Apply(subtotal, req.Discounts, taxRate)
	if err != nil {
		return nil, err
	}

	if discount := subtotal.Amount - postDiscount.Amount; discount > 0 {
		items = append(items, invoicedomain.InvoiceLineItem{
			ID:          s.genID.Generate(),
			InvoiceID:   invoiceID,
			Type:        invoicedomain.LineItemTypeDiscount,
			Description: "discounts",
			Quantity:    1,
			AmountCents: -discount,
			CreatedAt:   now,
		})
	}
	if tax := total.Amount - postDiscount.Amount; tax > 0 {
		items = append(items, invoicedomain.InvoiceLineItem{
			ID:          s.genID.Generate(),
			InvoiceID:   invoiceID,
			Type:        invoicedomain.LineItemTypeTax,
			Description: "tax",
			Quantity:    1,
			AmountCents: tax,
			CreatedAt:   now,
		})
	}

	return &invoicedomain.Invoice{
		ID:               invoiceID,
		UserID:           req.UserID,
		PlanID:           req.Plan.ID,
		PeriodStart:      req.Period.Start,
		PeriodEnd:        req.Period.End,
		Status:           invoicedomain.InvoiceStatusDraft,
		Items:            items,
		TotalAmountCents: total.Amount,
		PaidAmountCents:  0,
		Currency:         currency,
		Version:          0,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// IssueInvoice moves a draft to issued, stamping issue and due dates.
func (s *Service) IssueInvoice(ctx context.Context, id string) (*invoicedomain.Invoice, error) {
	invoice, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status == invoicedomain.InvoiceStatusVoid {
		return nil, invoicedomain.ErrInvoiceVoid
	}
	if invoice.Status != invoicedomain.InvoiceStatusDraft {
		return nil, invoicedomain.ErrInvalidTransition
	}
	if len(invoice.Items) == 0 {
		return nil, invoicedomain.ErrNoLineItems
	}

	now := s.clock.Now()
	due := now.Add(time.Duration(s.billing.Get().DueDays) * 24 * time.Hour)
	invoice.Status = invoicedomain.InvoiceStatusIssued
	invoice.IssueDate = &now
	invoice.DueDate = &due

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.UpdateLifecycle(ctx, tx, invoice); err != nil {
			return err
		}
		return s.outbox.Append(ctx, tx, eventdomain.EventInvoiceIssued,
			"invoice.issued:"+invoice.ID.String(),
			map[string]any{
				"invoice_id":  invoice.ID.String(),
				"user_id":     invoice.UserID.String(),
				"total_cents": invoice.TotalAmountCents,
				"currency":    invoice.Currency,
				"due_date":    due.Format(time.RFC3339),
			})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.InvoiceIssued()
	return invoice, nil
}

// VoidInvoice cancels any non-terminal invoice. Void is terminal: no
// settlement is accepted afterwards.
func (s *Service) VoidInvoice(ctx context.Context, id string) (*invoicedomain.Invoice, error) {
	invoice, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status == invoicedomain.InvoiceStatusVoid {
		return invoice, nil
	}
	if invoice.Status == invoicedomain.InvoiceStatusPaid {
		return nil, invoicedomain.ErrInvalidTransition
	}

	invoice.Status = invoicedomain.InvoiceStatusVoid
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.UpdateLifecycle(ctx, tx, invoice); err != nil {
			return err
		}
		return s.outbox.Append(ctx, tx, eventdomain.EventInvoiceVoided,
			"invoice.voided:"+invoice.ID.String(),
			map[string]any{
				"invoice_id": invoice.ID.String(),
				"user_id":    invoice.UserID.String(),
			})
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func (s *Service) GetInvoice(ctx context.Context, id string) (*invoicedomain.Invoice, error) {
	return s.load(ctx, id)
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListRequest) ([]invoicedomain.Invoice, pagination.PageInfo, error) {
	return s.repo.List(ctx, nil, req)
}

func (s *Service) MarkOverdueInvoices(ctx context.Context, asOf time.Time) (int64, error) {
	var flagged int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := s.repo.MarkOverdue(ctx, tx, asOf)
		if err != nil {
			return err
		}
		flagged = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	if flagged > 0 {
		s.log.Info("invoices marked overdue", zap.Int64("count", flagged))
	}
	return flagged, nil
}

func (s *Service) load(ctx context.Context, id string) (*invoicedomain.Invoice, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return nil, invoicedomain.ErrInvalidID
	}
	invoice, err := s.repo.FindByID(ctx, nil, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrNotFound
	}
	return invoice, nil
}

func parseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(value))
}
