// Package domain contains billing plan definitions.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	ratedomain "github.com/netbill/netbill/internal/rate/domain"
	usagedomain "github.com/netbill/netbill/internal/usage/domain"
	"gorm.io/datatypes"
)

var (
	ErrPlanNotApplicable = errors.New("plan_not_applicable")
	ErrInvalidPlan       = errors.New("invalid_plan")
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidID         = errors.New("invalid_id")
	ErrNotFound          = errors.New("not_found")
)

// BillingPlan groups the rates sold to a user. A plan is applicable to a
// usage period only if [ValidFrom, ValidTo) overlaps that period.
type BillingPlan struct {
	ID        snowflake.ID             `json:"id" gorm:"primaryKey"`
	Name      string                   `json:"name" gorm:"type:text;not null"`
	Rates     []ratedomain.BillingRate `json:"rates" gorm:"foreignKey:PlanID"`
	ValidFrom time.Time                `json:"valid_from" gorm:"not null"`
	ValidTo   *time.Time               `json:"valid_to,omitempty" gorm:""`
	MaxUsers  *int64                   `json:"max_users,omitempty" gorm:""`
	Metadata  datatypes.JSONMap        `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt time.Time                `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time                `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (BillingPlan) TableName() string { return "billing_plans" }

// Window returns the plan validity as a period. An open-ended plan extends
// to the end of the usage period under evaluation.
func (p BillingPlan) Window(fallbackEnd time.Time) usagedomain.Period {
	end := fallbackEnd
	if p.ValidTo != nil {
		end = *p.ValidTo
	}
	return usagedomain.Period{Start: p.ValidFrom, End: end}
}
