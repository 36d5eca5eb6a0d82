// Package service implements the rate calculator: a pure function from a
// rate definition and aggregated usage to a charge.
package service

import (
	"github.com/netbill/netbill/internal/money"
	ratedomain "github.com/netbill/netbill/internal/rate/domain"
	usagedomain "github.com/netbill/netbill/internal/usage/domain"
)

// Calculate prices usage under a single rate. It never touches storage and
// must not be held across a persistence boundary.
func Calculate(rate ratedomain.BillingRate, usage usagedomain.UsageData) (money.Money, error) {
	if err := usage.Validate(); err != nil {
		return money.Money{}, ratedomain.ErrInvalidUsage
	}
	unit, err := money.New(rate.UnitAmountCents, rate.Currency)
	if err != nil {
		return money.Money{}, ratedomain.ErrInvalidCurrency
	}

	switch rate.Kind {
	case ratedomain.RateKindFixed:
		return unit, nil
	case ratedomain.RateKindVolume:
		return unit.MulQuantity(float64(usage.TotalBytes()))
	case ratedomain.RateKindBandwidth:
		return unit.MulQuantity(float64(usage.PeakBandwidthBps))
	case ratedomain.RateKindTimeBased:
		return unit.MulQuantity(float64(usage.SessionSeconds))
	case ratedomain.RateKindTiered:
		return calculateTiered(rate, float64(usage.TotalBytes()))
	default:
		return money.Money{}, ratedomain.ErrInvalidKind
	}
}

// calculateTiered walks tiers in ascending order, consuming usage at each
// tier's unit price. Usage beyond an open-ended last tier is priced at that
// tier's rate; usage beyond a bounded last tier is a configuration error,
// never silently dropped.
func calculateTiered(rate ratedomain.BillingRate, quantity float64) (money.Money, error) {
	if err := rate.ValidateTiers(); err != nil {
		return money.Money{}, err
	}

	tiers := rate.SortedTiers()
	total := money.Zero(rate.Currency)
	remaining := quantity

	for _, tier := range tiers {
		if remaining <= 0 {
			break
		}

		consumed := remaining
		if tier.EndQuantity != nil {
			width := *tier.EndQuantity - tier.StartQuantity
			if consumed > width {
				consumed = width
			}
		}

		unit, err := money.New(tier.UnitAmountCents, rate.Currency)
		if err != nil {
			return money.Money{}, ratedomain.ErrInvalidCurrency
		}
		charge, err := unit.MulQuantity(consumed)
		if err != nil {
			return money.Money{}, err
		}
		total, err = total.Add(charge)
		if err != nil {
			return money.Money{}, err
		}
		remaining -= consumed
	}

	if remaining > 0 {
		// Only reachable when the last tier is bounded.
		return money.Money{}, ratedomain.ErrRateConfiguration
	}
	return total, nil
}
