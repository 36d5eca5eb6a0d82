package repository

import (
	"context"

	pricingdomain "github.com/netbill/netbill/internal/pricing/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) pricingdomain.Repository {
	return &repository{db: db}
}

func (r *repository) GetActiveTaxDefinition(ctx context.Context) (*pricingdomain.TaxDefinition, error) {
	var def pricingdomain.TaxDefinition
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, name, code, tax_mode, rate, is_enabled, created_at, updated_at
		 FROM tax_definitions
		 WHERE is_enabled = true
		 ORDER BY id ASC
		 LIMIT 1`,
	).Scan(&def).Error
	if err != nil {
		return nil, err
	}
	if def.ID == 0 {
		return nil, nil
	}
	return &def, nil
}

func (r *repository) Create(ctx context.Context, def *pricingdomain.TaxDefinition) error {
	return r.db.WithContext(ctx).Create(def).Error
}
