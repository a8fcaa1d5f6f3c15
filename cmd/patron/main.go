package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/stokvelhq/patron/internal/clock"
	"github.com/stokvelhq/patron/internal/config"
	"github.com/stokvelhq/patron/internal/logger"
	"github.com/stokvelhq/patron/internal/migration"
	"github.com/stokvelhq/patron/internal/observability/metrics"
	"github.com/stokvelhq/patron/internal/server"
	"github.com/stokvelhq/patron/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		metrics.Module,
		migration.Module,

		// Domain modules are pulled in by the server module.
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
