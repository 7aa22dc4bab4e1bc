package payment

import (
	"github.com/smallbiznis/payvault/internal/payment/repository"
	"github.com/smallbiznis/payvault/internal/payment/service"
	"github.com/smallbiznis/payvault/internal/payment/worker"
	"go.uber.org/fx"
)

var Module = fx.Module("payment",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(worker.NewReconciler),
	fx.Invoke(worker.Register),
)
