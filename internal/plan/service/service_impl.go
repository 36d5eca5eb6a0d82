package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/netbill/netbill/internal/money"
	plandomain "github.com/netbill/netbill/internal/plan/domain"
	ratedomain "github.com/netbill/netbill/internal/rate/domain"
	rateservice "github.com/netbill/netbill/internal/rate/service"
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
	Repo  plandomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  plandomain.Repository
}

func NewService(p Params) plandomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("plan.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

// Evaluate prices one usage period under a plan: the sum of the prorated
// per-rate charges from Breakdown.
func (s *Service) Evaluate(plan plandomain.BillingPlan, usage usagedomain.UsageData) (money.Money, error) {
	charges, err := s.Breakdown(plan, usage)
	if err != nil {
		return money.Money{}, err
	}

	total := money.Zero(charges[0].Charge.Currency)
	for _, charge := range charges {
		total, err = total.Add(charge.Charge)
		if err != nil {
			return money.Money{}, err
		}
	}
	return total, nil
}

// Breakdown prices one usage period under a plan:
//  1. select the latest version of each rate slot with ValidFrom not after
//     the period end,
//  2. price each selected rate against the usage,
//  3. prorate by the overlap of the plan window and the usage period,
//     applied to the summed charge with a single final rounding and then
//     allocated back across the charges.
func (s *Service) Breakdown(plan plandomain.BillingPlan, usage usagedomain.UsageData) ([]plandomain.RateCharge, error) {
	if err := usage.Validate(); err != nil {
		return nil, err
	}

	window := plan.Window(usage.Period.End)
	overlap := window.Overlap(usage.Period)
	overlapSeconds := overlap.Seconds()
	if overlapSeconds <= 0 {
		return nil, plandomain.ErrPlanNotApplicable
	}

	selected := selectRates(plan.Rates, usage.Period.End)
	if len(selected) == 0 {
		return nil, plandomain.ErrPlanNotApplicable
	}

	factor := overlapSeconds / usage.Period.Seconds()
	if factor > 1.0 {
		factor = 1.0
	}

	charges := make([]plandomain.RateCharge, 0, len(selected))
	for _, rate := range selected {
		charge, err := rateservice.Calculate(rate, usage)
		if err != nil {
			return nil, err
		}
		charges = append(charges, plandomain.RateCharge{
			Rate:     rate,
			Quantity: chargeQuantity(rate, usage, factor),
			Charge:   charge,
		})
	}
	if factor < 1.0 {
		prorate(charges, factor)
	}
	return charges, nil
}

// prorate scales the charges by the overlap factor, rounding the running
// prorated sum rather than each charge. The allocated amounts therefore
// add up to the sum scaled once, and no per-charge rounding error
// compounds across slots.
func prorate(charges []plandomain.RateCharge, factor float64) {
	var raw float64
	var allocated int64
	for i := range charges {
		raw += float64(charges[i].Charge.Amount) * factor
		next := int64(math.Floor(raw + 0.5))
		charges[i].Charge.Amount = next - allocated
		allocated = next
	}
}

func chargeQuantity(rate ratedomain.BillingRate, usage usagedomain.UsageData, factor float64) float64 {
	switch rate.Kind {
	case ratedomain.RateKindVolume, ratedomain.RateKindTiered:
		return float64(usage.TotalBytes())
	case ratedomain.RateKindBandwidth:
		return float64(usage.PeakBandwidthBps)
	case ratedomain.RateKindTimeBased:
		return float64(usage.SessionSeconds)
	default:
		return factor
	}
}

// selectRates keeps, per slot, the version with the latest ValidFrom not
// exceeding the period end.
func selectRates(rates []ratedomain.BillingRate, periodEnd time.Time) []ratedomain.BillingRate {
	latest := make(map[string]ratedomain.BillingRate)
	order := make([]string, 0, len(rates))
	for _, rate := range rates {
		if rate.ValidFrom.After(periodEnd) {
			continue
		}
		current, ok := latest[rate.Slot]
		if !ok {
			order = append(order, rate.Slot)
			latest[rate.Slot] = rate
			continue
		}
		if rate.ValidFrom.After(current.ValidFrom) {
			latest[rate.Slot] = rate
		}
	}

	selected := make([]ratedomain.BillingRate, 0, len(order))
	for _, slot := range order {
		selected = append(selected, latest[slot])
	}
	return selected
}

func (s *Service) Create(ctx context.Context, plan *plandomain.BillingPlan) (*plandomain.BillingPlan, error) {
	if plan == nil || strings.TrimSpace(plan.Name) == "" {
		return nil, plandomain.ErrInvalidName
	}
	if plan.ValidFrom.IsZero() {
		return nil, plandomain.ErrInvalidPlan
	}
	if plan.ValidTo != nil && !plan.ValidTo.After(plan.ValidFrom) {
		return nil, plandomain.ErrInvalidPlan
	}

	now := time.Now().UTC()
	plan.ID = s.genID.Generate()
	plan.CreatedAt = now
	plan.UpdatedAt = now
	for i := range plan.Rates {
		rate := &plan.Rates[i]
		if !rate.Kind.Valid() {
			return nil, ratedomain.ErrInvalidKind
		}
		if rate.UnitAmountCents < 0 {
			return nil, ratedomain.ErrInvalidUnitAmount
		}
		rate.ID = s.genID.Generate()
		rate.PlanID = plan.ID
		rate.CreatedAt = now
		rate.UpdatedAt = now
		if rate.Kind == ratedomain.RateKindTiered {
			if err := rate.ValidateTiers(); err != nil {
				return nil, err
			}
		}
		for j := range rate.Tiers {
			rate.Tiers[j].ID = s.genID.Generate()
			rate.Tiers[j].RateID = rate.ID
			rate.Tiers[j].CreatedAt = now
		}
	}

	if err := s.repo.Insert(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *Service) Get(ctx context.Context, id string) (*plandomain.BillingPlan, error) {
	planID, err := parseID(id)
	if err != nil {
		return nil, plandomain.ErrInvalidID
	}

	plan, err := s.repo.FindByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, plandomain.ErrNotFound
	}
	return plan, nil
}

func parseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(value))
}
