package recommendation

import (
	"github.com/smallbiznis/harvestprice/internal/recommendation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("recommendation.service",
	fx.Provide(service.New),
)
