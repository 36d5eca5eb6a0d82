package domain

import "context"

type Repository interface {
	GetActiveTaxDefinition(ctx context.Context) (*TaxDefinition, error)
	Create(ctx context.Context, def *TaxDefinition) error
}
