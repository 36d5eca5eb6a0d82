package pricing

import (
	"github.com/netbill/netbill/internal/pricing/repository"
	"github.com/netbill/netbill/internal/pricing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pricing.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewResolver),
)
