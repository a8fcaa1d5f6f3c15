package paystack

import (
	"github.com/stokvelhq/patron/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("paystack",
	fx.Provide(func(cfg config.Config) config.PaystackConfig { return cfg.Paystack }),
	fx.Provide(NewClient),
)
