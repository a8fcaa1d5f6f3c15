package turnstile

import (
	"github.com/stokvelhq/patron/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("turnstile",
	fx.Provide(fx.Annotate(
		func(cfg config.Config, log *zap.Logger) *Verifier {
			return NewVerifier(cfg.Turnstile, log)
		},
		fx.As(new(HumanVerifier)),
	)),
)
