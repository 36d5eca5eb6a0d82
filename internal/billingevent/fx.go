package billingevent

import (
	"github.com/netbill/netbill/internal/billingevent/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billingevent.service",
	fx.Provide(service.NewOutbox),
	fx.Invoke(service.RegisterDispatcher),
)
