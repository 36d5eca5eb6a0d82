package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/netbill/netbill/internal/plan/domain"
	pricingdomain "github.com/netbill/netbill/internal/pricing/domain"
	usagedomain "github.com/netbill/netbill/internal/usage/domain"
	"github.com/netbill/netbill/pkg/db/pagination"
)

// GenerateRequest carries everything needed to bill one user for one
// period. The plan is an explicit parameter, never ambient state.
type GenerateRequest struct {
	UserID    snowflake.ID
	Period    usagedomain.Period
	Plan      plandomain.BillingPlan
	Usage     usagedomain.UsageData
	Discounts []pricingdomain.Discount
	// TaxRate overrides the active tax definition when non-nil.
	TaxRate *float64
}

type ListRequest struct {
	UserID string `form:"user_id"`
	Status string `form:"status"`
	Page   pagination.Pagination
}

type Service interface {
	// GenerateInvoice is idempotent on (user, period): an existing invoice
	// for the key is returned unchanged, in any state.
	GenerateInvoice(ctx context.Context, req GenerateRequest) (*Invoice, error)
	IssueInvoice(ctx context.Context, id string) (*Invoice, error)
	VoidInvoice(ctx context.Context, id string) (*Invoice, error)
	GetInvoice(ctx context.Context, id string) (*Invoice, error)
	List(ctx context.Context, req ListRequest) ([]Invoice, pagination.PageInfo, error)
	// MarkOverdueInvoices flags issued/partially_paid invoices whose due
	// date has passed as of the given instant. Returns the number flagged.
	MarkOverdueInvoices(ctx context.Context, asOf time.Time) (int64, error)
}
