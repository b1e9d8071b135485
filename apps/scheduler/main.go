package main

import (
	"github.com/smallbiznis/harvestprice/internal/clock"
	"github.com/smallbiznis/harvestprice/internal/config"
	"github.com/smallbiznis/harvestprice/internal/ingest"
	"github.com/smallbiznis/harvestprice/internal/observability"
	"github.com/smallbiznis/harvestprice/internal/pricehistory"
	"github.com/smallbiznis/harvestprice/internal/ratelimit"
	"github.com/smallbiznis/harvestprice/internal/referenceprice"
	"github.com/smallbiznis/harvestprice/internal/scheduler"
	"github.com/smallbiznis/harvestprice/pkg/db"
	"go.uber.org/fx"
)

// Worker deployment: cron jobs and the sales consumer, no HTTP server.
// Schema migrations are left to the API process.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(config.NewSnowflakeNode),
		db.Module,
		clock.Module,
		ratelimit.Module,

		pricehistory.Module,
		referenceprice.Module,

		ingest.Module,
		scheduler.Module,
	)
	app.Run()
}
