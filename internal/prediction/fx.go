package prediction

import (
	"github.com/smallbiznis/harvestprice/internal/config"
	predictiondomain "github.com/smallbiznis/harvestprice/internal/prediction/domain"
	"github.com/smallbiznis/harvestprice/internal/prediction/service"
	"go.uber.org/fx"
)

var Module = fx.Module("prediction.service",
	fx.Provide(provideSeasonalTable),
	fx.Provide(service.New),
)

func provideSeasonalTable(holder *config.SeasonalHolder) predictiondomain.SeasonalTable {
	return holder
}
