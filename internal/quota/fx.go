package quota

import (
	"github.com/tapsavehq/tapsave/internal/config"
	"github.com/tapsavehq/tapsave/internal/quota/service"
	"go.uber.org/fx"
)

var Module = fx.Module("quota.service",
	fx.Provide(ProvideConfig),
	fx.Provide(service.NewService),
)

func ProvideConfig(cfg config.Config) service.Config {
	return service.Config{
		StartingAllowance: cfg.StartingAllowance,
	}
}
