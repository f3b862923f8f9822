package offer

import (
	"github.com/tapsavehq/tapsave/internal/offer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("offer.service",
	fx.Provide(service.NewService),
)
