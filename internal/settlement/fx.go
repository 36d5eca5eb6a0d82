package settlement

import (
	"github.com/netbill/netbill/internal/settlement/repository"
	"github.com/netbill/netbill/internal/settlement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("settlement.service",
	fx.Provide(
		repository.NewRepository,
		service.NewService,
	),
)
