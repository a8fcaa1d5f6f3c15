package qr

import (
	"github.com/redis/go-redis/v9"
	"github.com/stokvelhq/patron/internal/clock"
	"github.com/stokvelhq/patron/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module wires the QR generator with a redis-backed cache when REDIS_ADDR
// is set, falling back to the in-process cache otherwise.
var Module = fx.Module("qr",
	fx.Provide(func(cfg config.Config, clk clock.Clock) Cache {
		if cfg.Redis.Addr == "" {
			return NewMemoryCache(clk)
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedisCache(client)
	}),
	fx.Provide(func(cfg config.Config, cache Cache, log *zap.Logger) *Generator {
		return NewGenerator(cfg.QR, cache, log)
	}),
)
