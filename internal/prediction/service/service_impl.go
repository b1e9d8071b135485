package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/smallbiznis/harvestprice/internal/clock"
	"github.com/smallbiznis/harvestprice/internal/commodity"
	"github.com/smallbiznis/harvestprice/internal/config"
	obslogger "github.com/smallbiznis/harvestprice/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/harvestprice/internal/observability/metrics"
	predictiondomain "github.com/smallbiznis/harvestprice/internal/prediction/domain"
	historydomain "github.com/smallbiznis/harvestprice/internal/pricehistory/domain"
	refdomain "github.com/smallbiznis/harvestprice/internal/referenceprice/domain"
	"github.com/smallbiznis/harvestprice/internal/signal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const batchConcurrency = 4

type Params struct {
	fx.In

	Log       *zap.Logger
	Clock     clock.Clock
	Config    config.Config
	History   historydomain.Service
	Reference refdomain.Service
	Seasonal  predictiondomain.SeasonalTable
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log       *zap.Logger
	clock     clock.Clock
	history   historydomain.Service
	reference refdomain.Service
	seasonal  predictiondomain.SeasonalTable
	metrics   *obsmetrics.Metrics

	window          time.Duration
	minObservations int
}

func New(p Params) predictiondomain.Service {
	window := p.Config.Prediction.HistoryWindow
	if window <= 0 {
		window = 90 * 24 * time.Hour
	}
	minObs := p.Config.Prediction.MinObservations
	if minObs <= 0 {
		minObs = 5
	}
	return &Service{
		log:             p.Log.Named("prediction.service"),
		clock:           p.Clock,
		history:         p.History,
		reference:       p.Reference,
		seasonal:        p.Seasonal,
		metrics:         p.Metrics,
		window:          window,
		minObservations: minObs,
	}
}

func (s *Service) Predict(ctx context.Context, name, region string) signal.Result[predictiondomain.Prediction] {
	key := commodity.Normalize(name)
	if key == "" {
		return signal.Failed[predictiondomain.Prediction](predictiondomain.ErrInvalidCommodity)
	}
	region = strings.TrimSpace(region)

	observations, err := s.history.Query(ctx, key, s.window)
	if err != nil {
		obslogger.WithContext(ctx, s.log).Warn("price history unavailable",
			zap.String("commodity", key),
			zap.Error(err),
		)
		return signal.Failed[predictiondomain.Prediction](err)
	}

	if len(observations) < s.minObservations {
		return s.fromReference(ctx, key, region, len(observations))
	}

	prices := make([]float64, len(observations))
	for i, o := range observations {
		prices[i] = o.Price
	}
	base, _ := weightedAverage(prices)
	multiplier := s.seasonal.Multiplier(key, s.clock.Now().Month())

	s.metrics.RecordPrediction(ctx, string(predictiondomain.BasisHistory))
	return signal.Present(predictiondomain.Prediction{
		Commodity:          key,
		Region:             region,
		Price:              math.Round(base * multiplier),
		Basis:              predictiondomain.BasisHistory,
		Observations:       len(observations),
		SeasonalMultiplier: multiplier,
	})
}

// fromReference serves the reference modal price when history is too thin.
// Region is deliberately not forwarded.
func (s *Service) fromReference(ctx context.Context, key, region string, observations int) signal.Result[predictiondomain.Prediction] {
	ref := s.reference.GetPrice(ctx, refdomain.Lookup{Commodity: key})
	out := signal.Map(ref, func(q refdomain.Quote) predictiondomain.Prediction {
		return predictiondomain.Prediction{
			Commodity:          key,
			Region:             region,
			Price:              q.ModalPrice,
			Basis:              predictiondomain.BasisReference,
			Observations:       observations,
			SeasonalMultiplier: 1,
		}
	})
	if out.OK() {
		s.metrics.RecordPrediction(ctx, string(predictiondomain.BasisReference))
	}
	return out
}

func (s *Service) BatchPredict(ctx context.Context, items []predictiondomain.BatchItem) []predictiondomain.BatchPrediction {
	out := make([]predictiondomain.BatchPrediction, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, item := range items {
		g.Go(func() error {
			res := predictiondomain.BatchPrediction{
				ProductRef:   strings.TrimSpace(item.ProductRef),
				Commodity:    commodity.Normalize(item.Commodity),
				CurrentPrice: item.CurrentPrice,
				Confidence:   predictiondomain.DefaultConfidence,
			}
			if p, ok := s.Predict(gctx, item.Commodity, item.Region).Get(); ok {
				price := p.Price
				res.PredictedPrice = &price
				res.Basis = p.Basis
			}
			out[i] = res
			return nil
		})
	}
	_ = g.Wait()

	return out
}
