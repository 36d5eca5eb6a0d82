package plan

import (
	"github.com/netbill/netbill/internal/plan/domain"
	"github.com/netbill/netbill/internal/plan/repository"
	"github.com/netbill/netbill/internal/plan/service"
	"go.uber.org/fx"
)

var Module = fx.Module("plan.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
	fx.Provide(func(svc domain.Service) domain.Evaluator { return svc }),
)
