package invoice

import (
	"github.com/netbill/netbill/internal/invoice/repository"
	"github.com/netbill/netbill/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
