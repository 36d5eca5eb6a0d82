// Package domain contains billing rate definitions and the rate taxonomy.
package domain

import (
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// RateKind selects the charging strategy for a rate.
type RateKind string

const (
	RateKindFixed     RateKind = "fixed"
	RateKindVolume    RateKind = "volume"
	RateKindTiered    RateKind = "tiered"
	RateKindBandwidth RateKind = "bandwidth"
	RateKindTimeBased RateKind = "time_based"
)

func (k RateKind) Valid() bool {
	switch k {
	case RateKindFixed, RateKindVolume, RateKindTiered, RateKindBandwidth, RateKindTimeBased:
		return true
	default:
		return false
	}
}

// RateTier is one band of a tiered rate. EndQuantity nil means unbounded.
type RateTier struct {
	ID              snowflake.ID `json:"id" gorm:"primaryKey"`
	RateID          snowflake.ID `json:"rate_id" gorm:"not null;index"`
	StartQuantity   float64      `json:"start_quantity" gorm:"type:numeric;not null"`
	EndQuantity     *float64     `json:"end_quantity,omitempty" gorm:"type:numeric"`
	UnitAmountCents int64        `json:"unit_amount_cents" gorm:"not null"`
	CreatedAt       time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (RateTier) TableName() string { return "rate_tiers" }

// BillingRate is one chargeable slot of a billing plan. Slot identifies the
// logical position; several versions of a slot may exist with different
// ValidFrom timestamps, latest-not-after-period-end wins.
type BillingRate struct {
	ID              snowflake.ID      `json:"id" gorm:"primaryKey"`
	PlanID          snowflake.ID      `json:"plan_id" gorm:"not null;index"`
	Slot            string            `json:"slot" gorm:"type:text;not null"`
	Kind            RateKind          `json:"kind" gorm:"type:text;not null"`
	UnitAmountCents int64             `json:"unit_amount_cents" gorm:"not null"`
	Currency        string            `json:"currency" gorm:"type:text;not null"`
	Tiers           []RateTier        `json:"tiers,omitempty" gorm:"foreignKey:RateID"`
	ValidFrom       time.Time         `json:"valid_from" gorm:"not null"`
	Metadata        datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt       time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time         `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (BillingRate) TableName() string { return "billing_rates" }

// SortedTiers returns the tiers ordered by StartQuantity ascending.
func (r BillingRate) SortedTiers() []RateTier {
	tiers := make([]RateTier, len(r.Tiers))
	copy(tiers, r.Tiers)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].StartQuantity < tiers[j].StartQuantity })
	return tiers
}

// ValidateTiers enforces the tier invariant: first tier starts at zero,
// tiers are contiguous and non-overlapping, only the last may be unbounded.
func (r BillingRate) ValidateTiers() error {
	tiers := r.SortedTiers()
	if len(tiers) == 0 {
		return ErrRateConfiguration
	}
	if tiers[0].StartQuantity != 0 {
		return ErrRateConfiguration
	}
	for i, tier := range tiers {
		if tier.UnitAmountCents < 0 {
			return ErrRateConfiguration
		}
		last := i == len(tiers)-1
		if tier.EndQuantity == nil {
			if !last {
				return ErrRateConfiguration
			}
			continue
		}
		if *tier.EndQuantity <= tier.StartQuantity {
			return ErrRateConfiguration
		}
		if !last && tiers[i+1].StartQuantity != *tier.EndQuantity {
			return ErrRateConfiguration
		}
	}
	return nil
}
