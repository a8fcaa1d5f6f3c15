package exchange

import (
	"github.com/stokvelhq/patron/internal/config"
	exchangedomain "github.com/stokvelhq/patron/internal/exchange/domain"
	"github.com/stokvelhq/patron/internal/exchange/repository"
	"github.com/stokvelhq/patron/internal/exchange/service"
	"go.uber.org/fx"
)

var Module = fx.Module("exchange.service",
	fx.Provide(func(cfg config.Config) config.ExchangeConfig { return cfg.Exchange }),
	fx.Provide(repository.Provide),
	fx.Provide(fx.Annotate(service.NewHTTPFetcher, fx.As(new(exchangedomain.Fetcher)))),
	fx.Provide(service.NewService),
)
