package offercap

import (
	"github.com/tapsavehq/tapsave/internal/offercap/service"
	"go.uber.org/fx"
)

var Module = fx.Module("offercap.service",
	fx.Provide(service.NewService),
)
