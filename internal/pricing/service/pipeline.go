// Package service implements the discount/tax pipeline applied to a base
// charge before it becomes an invoice total.
package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/netbill/netbill/internal/money"
	pricingdomain "github.com/netbill/netbill/internal/pricing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Apply runs the ordered discounts against the base amount, clamping the
// running total at zero after each step, then applies tax on the
// post-discount total. Rounding to the minor unit happens once per discount
// subtraction and once for the final tax multiplication.
func Apply(base money.Money, discounts []pricingdomain.Discount, taxRate float64) (money.Money, error) {
	if taxRate < 0 {
		return money.Money{}, pricingdomain.ErrInvalidTaxRate
	}

	running := base
	for _, discount := range discounts {
		if err := discount.Validate(); err != nil {
			return money.Money{}, err
		}
		switch discount.Kind {
		case pricingdomain.DiscountKindPercentage:
			cut := running.MulFraction(discount.Value)
			next, err := running.Sub(cut)
			if err != nil {
				return money.Money{}, err
			}
			running = next.ClampZero()
		case pricingdomain.DiscountKindFixed:
			running = money.Money{
				Amount:   running.Amount - int64(discount.Value),
				Currency: running.Currency,
			}.ClampZero()
		}
	}

	return running.MulFraction(1 + taxRate), nil
}

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  pricingdomain.Repository
}

// Resolver owns the tax definition catalog and supplies the active tax
// rate for invoice generation, falling back to zero when no tax policy is
// configured.
type Resolver struct {
	log   *zap.Logger
	genID *snowflake.Node
	repo  pricingdomain.Repository
}

func NewResolver(p Params) *Resolver {
	return &Resolver{
		log:   p.Log.Named("pricing.resolver"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (r *Resolver) CreateTaxDefinition(ctx context.Context, def *pricingdomain.TaxDefinition) (*pricingdomain.TaxDefinition, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	def.ID = r.genID.Generate()
	def.CreatedAt = now
	def.UpdatedAt = now
	if err := r.repo.Create(ctx, def); err != nil {
		return nil, err
	}
	return def, nil
}

func (r *Resolver) ActiveTaxDefinition(ctx context.Context) (*pricingdomain.TaxDefinition, error) {
	def, err := r.repo.GetActiveTaxDefinition(ctx)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, pricingdomain.ErrNotFound
	}
	return def, nil
}

func (r *Resolver) ActiveTaxRate(ctx context.Context) (float64, error) {
	def, err := r.repo.GetActiveTaxDefinition(ctx)
	if err != nil {
		return 0, err
	}
	if def == nil {
		return 0, nil
	}
	if err := def.Validate(); err != nil {
		return 0, err
	}
	if def.TaxMode == pricingdomain.TaxModeInclusive {
		// Inclusive policies carry the tax inside the rate card price.
		return 0, nil
	}
	return def.Rate, nil
}
