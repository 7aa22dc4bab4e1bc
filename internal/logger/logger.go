package logger

import (
	"strings"

	"github.com/smallbiznis/payvault/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// New builds the process logger. Production uses the JSON encoder, everything
// else the console encoder.
func New(cfg config.Config) (*zap.Logger, error) {
	var log *zap.Logger
	var err error
	if cfg.IsProduction() {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, err
	}
	log = log.With(
		zap.String("service", strings.TrimSpace(cfg.ServiceName)),
		zap.String("version", strings.TrimSpace(cfg.ServiceVersion)),
	)
	zap.ReplaceGlobals(log)
	return log, nil
}

var Module = fx.Module("logger",
	fx.Provide(New),
)
