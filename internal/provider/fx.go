package provider

import (
	"github.com/smallbiznis/payvault/internal/config"
	"github.com/smallbiznis/payvault/internal/provider/adapters"
	"github.com/smallbiznis/payvault/internal/provider/adapters/cryptomus"
	"github.com/smallbiznis/payvault/internal/provider/adapters/payeer"
	"github.com/smallbiznis/payvault/internal/provider/adapters/stripe"
	"github.com/smallbiznis/payvault/internal/provider/configstore"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("provider",
	fx.Provide(configstore.NewStore),
	fx.Provide(func(cfg config.Config, log *zap.Logger, store *configstore.Store) *adapters.Registry {
		return adapters.NewRegistry(cfg.ProviderConfigTTL, log, store,
			stripe.NewFactory(),
			payeer.NewFactory(),
			cryptomus.NewFactory(),
		)
	}),
)
