package providers

import (
	"github.com/stokvelhq/patron/internal/config"
	"github.com/stokvelhq/patron/internal/providers/slack"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers",
	fx.Provide(fx.Annotate(
		func(cfg config.Config, log *zap.Logger) *slack.WebhookProvider {
			return slack.NewWebhookProvider(cfg.Slack, log)
		},
		fx.As(new(slack.Provider)),
	)),
)
