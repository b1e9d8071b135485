package service

import (
	"context"
	"math"

	"github.com/smallbiznis/harvestprice/internal/commodity"
	obslogger "github.com/smallbiznis/harvestprice/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/harvestprice/internal/observability/metrics"
	predictiondomain "github.com/smallbiznis/harvestprice/internal/prediction/domain"
	recdomain "github.com/smallbiznis/harvestprice/internal/recommendation/domain"
	refdomain "github.com/smallbiznis/harvestprice/internal/referenceprice/domain"
	"github.com/smallbiznis/harvestprice/internal/signal"
	trenddomain "github.com/smallbiznis/harvestprice/internal/trend/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	lowBand  = 0.8
	highBand = 1.2

	raiseTarget = 0.9
	lowerTarget = 1.1
)

const (
	msgBelowMarket = "Your price is below market average. Consider increasing."
	msgAboveMarket = "Your price is above market average. Consider competitive pricing."
	msgCompetitive = "Your price is competitive."
	msgRising      = " Market prices are rising."
	msgFalling     = " Market prices are falling."
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Prediction predictiondomain.Service
	Reference  refdomain.Service
	Trend      trenddomain.Service
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	prediction predictiondomain.Service
	reference  refdomain.Service
	trend      trenddomain.Service
	metrics    *obsmetrics.Metrics
}

func New(p Params) recdomain.Service {
	return &Service{
		log:        p.Log.Named("recommendation.service"),
		prediction: p.Prediction,
		reference:  p.Reference,
		trend:      p.Trend,
		metrics:    p.Metrics,
	}
}

func (s *Service) Recommend(ctx context.Context, name string, currentPrice float64) (recdomain.Recommendation, error) {
	key := commodity.Normalize(name)
	if key == "" {
		return recdomain.Recommendation{}, recdomain.ErrInvalidCommodity
	}
	if !(currentPrice > 0) || math.IsInf(currentPrice, 0) {
		return recdomain.Recommendation{}, recdomain.ErrInvalidPrice
	}

	var (
		predicted signal.Result[predictiondomain.Prediction]
		reference signal.Result[refdomain.Quote]
		tr        = trenddomain.Trend{Commodity: key, Direction: trenddomain.DirectionUnknown}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		predicted = s.prediction.Predict(gctx, key, "")
		return nil
	})
	g.Go(func() error {
		reference = s.reference.GetPrice(gctx, refdomain.Lookup{Commodity: key})
		return nil
	})
	g.Go(func() error {
		computed, err := s.trend.Compute(gctx, key, trenddomain.DefaultWindowDays)
		if err == nil {
			tr = computed
		}
		return nil
	})
	_ = g.Wait()

	out := recdomain.Recommendation{
		Commodity:      key,
		Action:         recdomain.ActionNone,
		SuggestedPrice: currentPrice,
		CurrentPrice:   currentPrice,
		PredictedPrice: signal.Ptr(signal.Map(predicted, func(p predictiondomain.Prediction) float64 { return p.Price })),
		ReferencePrice: signal.Ptr(signal.Map(reference, func(q refdomain.Quote) float64 { return q.ModalPrice })),
		Trend:          tr.Direction,
		TrendChange:    tr.Change,
	}

	if out.PredictedPrice == nil || out.ReferencePrice == nil {
		obslogger.WithContext(ctx, s.log).Debug("recommendation without market comparison",
			zap.String("commodity", key),
			zap.String("prediction_state", string(predicted.State())),
			zap.String("reference_state", string(reference.State())),
		)
		s.metrics.RecordRecommendation(ctx, string(out.Action))
		return out, nil
	}

	avg := (*out.PredictedPrice + *out.ReferencePrice) / 2
	switch {
	case currentPrice < avg*lowBand:
		out.Action = recdomain.ActionRaise
		out.Message = msgBelowMarket
		out.SuggestedPrice = math.Round(avg * raiseTarget)
	case currentPrice > avg*highBand:
		out.Action = recdomain.ActionLower
		out.Message = msgAboveMarket
		out.SuggestedPrice = math.Round(avg * lowerTarget)
	default:
		out.Action = recdomain.ActionKeep
		out.Message = msgCompetitive
	}

	switch tr.Direction {
	case trenddomain.DirectionIncreasing:
		out.Message += msgRising
	case trenddomain.DirectionDecreasing:
		out.Message += msgFalling
	}

	s.metrics.RecordRecommendation(ctx, string(out.Action))
	return out, nil
}
