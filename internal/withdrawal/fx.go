package withdrawal

import (
	"github.com/smallbiznis/payvault/internal/withdrawal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("withdrawal",
	fx.Provide(service.NewService),
)
