package usage

import (
	"github.com/netbill/netbill/internal/usage/repository"
	"github.com/netbill/netbill/internal/usage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("usage.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
