package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/givelane/internal/clock"
	"github.com/smallbiznis/givelane/internal/config"
	"github.com/smallbiznis/givelane/internal/migration"
	"github.com/smallbiznis/givelane/internal/observability"
	"github.com/smallbiznis/givelane/internal/seed"
	"github.com/smallbiznis/givelane/internal/server"
	"github.com/smallbiznis/givelane/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		seed.Module,

		// HTTP API, payment pipeline and the expiry scheduler
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
