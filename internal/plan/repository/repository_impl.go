package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/netbill/netbill/internal/plan/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) plandomain.Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, plan *plandomain.BillingPlan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*plandomain.BillingPlan, error) {
	var plan plandomain.BillingPlan
	err := r.db.WithContext(ctx).
		Preload("Rates").
		Preload("Rates.Tiers").
		First(&plan, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}
