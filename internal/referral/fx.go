package referral

import (
	"github.com/tapsavehq/tapsave/internal/config"
	"github.com/tapsavehq/tapsave/internal/referral/service"
	"go.uber.org/fx"
)

var Module = fx.Module("referral.service",
	fx.Provide(ProvideConfig),
	fx.Provide(service.NewService),
)

func ProvideConfig(cfg config.Config) service.Config {
	return service.Config{
		RewardCredits: cfg.ReferralRewardCredits,
	}
}
