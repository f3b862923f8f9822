package redemption

import (
	"time"

	"github.com/tapsavehq/tapsave/internal/config"
	"github.com/tapsavehq/tapsave/internal/redemption/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("redemption.service",
	fx.Provide(ProvideConfig),
	fx.Provide(service.NewService),
)

func ProvideConfig(cfg config.Config, log *zap.Logger) service.Config {
	loc, err := time.LoadLocation(cfg.CapTimezone)
	if err != nil {
		log.Warn("invalid cap timezone, falling back to UTC", zap.String("timezone", cfg.CapTimezone))
		loc = time.UTC
	}
	return service.Config{
		TTLDefault: cfg.TokenTTLDefault,
		TTLMin:     cfg.TokenTTLMin,
		TTLMax:     cfg.TokenTTLMax,
		Location:   loc,
	}
}
