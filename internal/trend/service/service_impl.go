package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/harvestprice/internal/commodity"
	obslogger "github.com/smallbiznis/harvestprice/internal/observability/logger"
	historydomain "github.com/smallbiznis/harvestprice/internal/pricehistory/domain"
	trenddomain "github.com/smallbiznis/harvestprice/internal/trend/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// changeThreshold is the percent move either side of which a trend stops being stable.
var changeThreshold = decimal.NewFromInt(5)

type Params struct {
	fx.In

	Log     *zap.Logger
	History historydomain.Service
}

type Service struct {
	log     *zap.Logger
	history historydomain.Service
}

func New(p Params) trenddomain.Service {
	return &Service{
		log:     p.Log.Named("trend.service"),
		history: p.History,
	}
}

func (s *Service) Compute(ctx context.Context, name string, windowDays int) (trenddomain.Trend, error) {
	key := commodity.Normalize(name)
	if key == "" {
		return trenddomain.Trend{}, trenddomain.ErrInvalidCommodity
	}
	if windowDays < 0 {
		return trenddomain.Trend{}, trenddomain.ErrInvalidWindow
	}
	if windowDays == 0 {
		windowDays = trenddomain.DefaultWindowDays
	}

	out := trenddomain.Trend{
		Commodity:  key,
		Direction:  trenddomain.DirectionUnknown,
		WindowDays: windowDays,
	}

	observations, err := s.history.Query(ctx, key, time.Duration(windowDays)*24*time.Hour)
	if err != nil {
		obslogger.WithContext(ctx, s.log).Warn("trend history unavailable",
			zap.String("commodity", key),
			zap.Int("window_days", windowDays),
			zap.Error(err),
		)
		return out, nil
	}

	out.DataPoints = len(observations)
	if len(observations) < 2 {
		return out, nil
	}

	// history is newest first
	first := decimal.NewFromFloat(observations[len(observations)-1].Price)
	last := decimal.NewFromFloat(observations[0].Price)
	if !first.IsPositive() {
		return out, nil
	}

	// classified on the exact change; rounding only affects the reported value
	change := last.Sub(first).Mul(decimal.NewFromInt(100)).Div(first)
	out.Direction = classify(change)
	out.Change = change.Round(2).InexactFloat64()
	return out, nil
}

func classify(change decimal.Decimal) trenddomain.Direction {
	switch {
	case change.GreaterThan(changeThreshold):
		return trenddomain.DirectionIncreasing
	case change.LessThan(changeThreshold.Neg()):
		return trenddomain.DirectionDecreasing
	default:
		return trenddomain.DirectionStable
	}
}
