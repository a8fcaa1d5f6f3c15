package payment

import (
	"github.com/stokvelhq/patron/internal/payment/repository"
	"github.com/stokvelhq/patron/internal/payment/service"
	"github.com/stokvelhq/patron/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(webhook.NewDispatcher),
)
