package referenceprice

import (
	refdomain "github.com/smallbiznis/harvestprice/internal/referenceprice/domain"
	"github.com/smallbiznis/harvestprice/internal/referenceprice/repository"
	"github.com/smallbiznis/harvestprice/internal/referenceprice/service"
	"github.com/smallbiznis/harvestprice/internal/referenceprice/source"
	"go.uber.org/fx"
)

var Module = fx.Module("referenceprice.service",
	fx.Provide(repository.Provide),
	fx.Provide(fx.Annotate(source.NewAgmarknet, fx.As(new(refdomain.PriceSource)))),
	fx.Provide(service.New),
)
