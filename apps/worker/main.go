package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/givelane/internal/campaign"
	"github.com/smallbiznis/givelane/internal/clock"
	"github.com/smallbiznis/givelane/internal/config"
	donationrepository "github.com/smallbiznis/givelane/internal/donation/repository"
	"github.com/smallbiznis/givelane/internal/donor"
	"github.com/smallbiznis/givelane/internal/ledger"
	"github.com/smallbiznis/givelane/internal/observability"
	paymentrepository "github.com/smallbiznis/givelane/internal/payment/repository"
	"github.com/smallbiznis/givelane/internal/ratelimit"
	"github.com/smallbiznis/givelane/internal/scheduler"
	"github.com/smallbiznis/givelane/pkg/db"
	"go.uber.org/fx"
)

// worker runs the background jobs without the HTTP API.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Ledger dependencies used by the expiry job
		fx.Provide(donationrepository.Provide),
		fx.Provide(paymentrepository.Provide),
		donor.Module,
		campaign.Module,
		ledger.Module,
		ratelimit.Module,

		// No server module!
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
