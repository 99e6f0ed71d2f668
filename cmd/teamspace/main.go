package main

import (
	_ "time/tzdata"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/teamspace/internal/audit"
	"github.com/smallbiznis/teamspace/internal/authorization"
	"github.com/smallbiznis/teamspace/internal/billing"
	"github.com/smallbiznis/teamspace/internal/clock"
	"github.com/smallbiznis/teamspace/internal/config"
	"github.com/smallbiznis/teamspace/internal/migration"
	"github.com/smallbiznis/teamspace/internal/observability"
	"github.com/smallbiznis/teamspace/internal/providers/email"
	"github.com/smallbiznis/teamspace/internal/ratelimit"
	"github.com/smallbiznis/teamspace/internal/server"
	"github.com/smallbiznis/teamspace/internal/user"
	"github.com/smallbiznis/teamspace/internal/workspace"
	"github.com/smallbiznis/teamspace/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Domains
		user.Module,
		authorization.Module,
		audit.Module,
		email.Module,
		workspace.Module,
		billing.Module,
		ratelimit.Module,

		server.Module,
	)
	app.Run()
}

// RegisterSnowflake builds the id generator. Each replica needs its own
// SNOWFLAKE_NODE so generated ids never collide.
func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
