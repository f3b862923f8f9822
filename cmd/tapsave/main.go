package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/tapsavehq/tapsave/internal/clock"
	"github.com/tapsavehq/tapsave/internal/config"
	"github.com/tapsavehq/tapsave/internal/migration"
	"github.com/tapsavehq/tapsave/internal/observability"
	"github.com/tapsavehq/tapsave/internal/server"
	"github.com/tapsavehq/tapsave/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
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
