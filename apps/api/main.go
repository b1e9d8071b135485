package main

import (
	"github.com/smallbiznis/harvestprice/internal/clock"
	"github.com/smallbiznis/harvestprice/internal/config"
	"github.com/smallbiznis/harvestprice/internal/migration"
	"github.com/smallbiznis/harvestprice/internal/observability"
	"github.com/smallbiznis/harvestprice/internal/prediction"
	"github.com/smallbiznis/harvestprice/internal/pricehistory"
	"github.com/smallbiznis/harvestprice/internal/ratelimit"
	"github.com/smallbiznis/harvestprice/internal/recommendation"
	"github.com/smallbiznis/harvestprice/internal/referenceprice"
	"github.com/smallbiznis/harvestprice/internal/server"
	"github.com/smallbiznis/harvestprice/internal/trend"
	"github.com/smallbiznis/harvestprice/pkg/db"
	"go.uber.org/fx"
)

// API-only deployment: serves HTTP, runs no scheduler and no sales consumer.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(config.NewSnowflakeNode),
		db.Module,
		migration.Module,
		clock.Module,
		ratelimit.Module,

		pricehistory.Module,
		referenceprice.Module,
		prediction.Module,
		trend.Module,
		recommendation.Module,

		server.Module,
	)
	app.Run()
}
