// Package migration applies the engine schema at startup.
package migration

import (
	eventdomain "github.com/netbill/netbill/internal/billingevent/domain"
	invoicedomain "github.com/netbill/netbill/internal/invoice/domain"
	plandomain "github.com/netbill/netbill/internal/plan/domain"
	pricingdomain "github.com/netbill/netbill/internal/pricing/domain"
	ratedomain "github.com/netbill/netbill/internal/rate/domain"
	settlementdomain "github.com/netbill/netbill/internal/settlement/domain"
	usagedomain "github.com/netbill/netbill/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func Run(db *gorm.DB, log *zap.Logger) error {
	err := db.AutoMigrate(
		&usagedomain.UsageEvent{},
		&plandomain.BillingPlan{},
		&ratedomain.BillingRate{},
		&ratedomain.RateTier{},
		&pricingdomain.TaxDefinition{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceLineItem{},
		&settlementdomain.Payment{},
		&settlementdomain.Refund{},
		&eventdomain.BillingEvent{},
	)
	if err != nil {
		return err
	}
	log.Info("schema migrated")
	return nil
}

var Module = fx.Module("migration",
	fx.Invoke(Run),
)
