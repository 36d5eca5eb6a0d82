package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/netbill/netbill/internal/money"
	ratedomain "github.com/netbill/netbill/internal/rate/domain"
	usagedomain "github.com/netbill/netbill/internal/usage/domain"
)

// RateCharge is one priced rate of an evaluated plan, proration already
// applied. Quantity is the metered quantity for usage rates and the
// proration factor for fixed rates, mirroring how rating rows explain
// their own arithmetic.
type RateCharge struct {
	Rate     ratedomain.BillingRate `json:"rate"`
	Quantity float64                `json:"quantity"`
	Charge   money.Money            `json:"charge"`
}

// Evaluator resolves which rates of a plan apply to a usage period and
// prices the period, prorating partial overlap.
type Evaluator interface {
	Evaluate(plan BillingPlan, usage usagedomain.UsageData) (money.Money, error)
	Breakdown(plan BillingPlan, usage usagedomain.UsageData) ([]RateCharge, error)
}

// Service is the plan catalog surface consumed by the admin collaborator.
type Service interface {
	Evaluator
	Create(ctx context.Context, plan *BillingPlan) (*BillingPlan, error)
	Get(ctx context.Context, id string) (*BillingPlan, error)
}

type Repository interface {
	Insert(ctx context.Context, plan *BillingPlan) error
	FindByID(ctx context.Context, id snowflake.ID) (*BillingPlan, error)
}
