package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/harvestprice/internal/clock"
	"github.com/smallbiznis/harvestprice/internal/config"
	predictiondomain "github.com/smallbiznis/harvestprice/internal/prediction/domain"
	historydomain "github.com/smallbiznis/harvestprice/internal/pricehistory/domain"
	refdomain "github.com/smallbiznis/harvestprice/internal/referenceprice/domain"
	"github.com/smallbiznis/harvestprice/internal/signal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var january = time.Date(2025, time.January, 20, 10, 0, 0, 0, time.UTC)

type stubHistory struct {
	mu      sync.Mutex
	prices  map[string][]float64
	err     error
	windows []time.Duration
}

func (s *stubHistory) Record(context.Context, historydomain.RecordRequest) {}

func (s *stubHistory) Query(_ context.Context, commodity string, window time.Duration) ([]historydomain.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows = append(s.windows, window)
	if s.err != nil {
		return nil, s.err
	}
	prices := s.prices[commodity]
	out := make([]historydomain.Observation, len(prices))
	for i, p := range prices {
		out[i] = historydomain.Observation{
			Commodity:  commodity,
			Price:      p,
			Quantity:   1,
			RecordedAt: january.Add(-time.Duration(i) * time.Hour),
		}
	}
	return out, nil
}

func (s *stubHistory) Prune(context.Context, time.Duration) (int64, error) { return 0, nil }

type stubReference struct {
	mu      sync.Mutex
	quotes  map[string]signal.Result[refdomain.Quote]
	lookups []refdomain.Lookup
}

func (s *stubReference) GetPrice(_ context.Context, lookup refdomain.Lookup) signal.Result[refdomain.Quote] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups = append(s.lookups, lookup)
	return s.quotes[lookup.Commodity]
}

func (s *stubReference) RefreshBatch(context.Context, []string) []refdomain.RefreshResult {
	return nil
}

func (s *stubReference) Trending(context.Context, time.Duration, int) ([]refdomain.TrendingCommodity, error) {
	return nil, nil
}

func newTestService(history *stubHistory, reference *stubReference, seasonal config.SeasonalFactors) *Service {
	cfg := config.Config{
		Prediction: config.PredictionConfig{
			HistoryWindow:   90 * 24 * time.Hour,
			MinObservations: 5,
		},
	}
	return New(Params{
		Log:       zap.NewNop(),
		Clock:     clock.NewFakeClock(january),
		Config:    cfg,
		History:   history,
		Reference: reference,
		Seasonal:  config.NewStaticSeasonalHolder(seasonal),
	}).(*Service)
}

func neutralSeasons() config.SeasonalFactors {
	return config.SeasonalFactors{Default: []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}}
}

func TestWeightedAverage(t *testing.T) {
	avg, ok := weightedAverage([]float64{10, 20, 30})
	require.True(t, ok)
	assert.InDelta(t, 16.3636, avg, 0.0001)

	avg, ok = weightedAverage([]float64{42})
	require.True(t, ok)
	assert.Equal(t, 42.0, avg)

	_, ok = weightedAverage(nil)
	assert.False(t, ok)
}

func TestPredictUsesWeightedHistory(t *testing.T) {
	history := &stubHistory{prices: map[string][]float64{
		"carrot": {10, 20, 30, 30, 30},
	}}
	svc := newTestService(history, &stubReference{}, neutralSeasons())

	res := svc.Predict(context.Background(), "  Carrot ", "karnataka")
	p, ok := res.Get()
	require.True(t, ok)

	assert.Equal(t, predictiondomain.BasisHistory, p.Basis)
	assert.Equal(t, "carrot", p.Commodity)
	assert.Equal(t, "karnataka", p.Region)
	assert.Equal(t, 5, p.Observations)
	assert.Equal(t, 1.0, p.SeasonalMultiplier)
	// (10 + 10 + 10 + 7.5 + 6) / 2.2833
	assert.Equal(t, 19.0, p.Price)
	assert.Equal(t, []time.Duration{90 * 24 * time.Hour}, history.windows)
}

func TestPredictAppliesSeasonalMultiplier(t *testing.T) {
	history := &stubHistory{prices: map[string][]float64{
		"tomato": {22, 24, 23, 25, 21, 26},
	}}
	svc := newTestService(history, &stubReference{}, config.DefaultSeasonalFactors())

	p, ok := svc.Predict(context.Background(), "tomato", "").Get()
	require.True(t, ok)

	assert.Equal(t, 1.2, p.SeasonalMultiplier)
	assert.Equal(t, 28.0, p.Price)
	assert.Equal(t, 6, p.Observations)
}

func TestPredictFallsBackToReference(t *testing.T) {
	history := &stubHistory{prices: map[string][]float64{
		"onion": {30, 31, 29, 32},
	}}
	reference := &stubReference{quotes: map[string]signal.Result[refdomain.Quote]{
		"onion": signal.Present(refdomain.Quote{Commodity: "onion", ModalPrice: 27.5}),
	}}
	svc := newTestService(history, reference, config.DefaultSeasonalFactors())

	p, ok := svc.Predict(context.Background(), "onion", "maharashtra").Get()
	require.True(t, ok)

	assert.Equal(t, predictiondomain.BasisReference, p.Basis)
	assert.Equal(t, 27.5, p.Price)
	assert.Equal(t, 4, p.Observations)
	assert.Equal(t, 1.0, p.SeasonalMultiplier)
	// the fallback ignores region
	require.Len(t, reference.lookups, 1)
	assert.Equal(t, refdomain.Lookup{Commodity: "onion"}, reference.lookups[0])
}

func TestPredictAbsentWithoutData(t *testing.T) {
	svc := newTestService(&stubHistory{}, &stubReference{}, neutralSeasons())

	res := svc.Predict(context.Background(), "okra", "")
	assert.Equal(t, signal.StateAbsent, res.State())
	assert.NoError(t, res.Err())
}

func TestPredictPropagatesFailures(t *testing.T) {
	boom := errors.New("db down")
	svc := newTestService(&stubHistory{err: boom}, &stubReference{}, neutralSeasons())

	res := svc.Predict(context.Background(), "tomato", "")
	assert.Equal(t, signal.StateFailed, res.State())
	assert.ErrorIs(t, res.Err(), boom)

	upstream := errors.New("upstream")
	reference := &stubReference{quotes: map[string]signal.Result[refdomain.Quote]{
		"tomato": signal.Failed[refdomain.Quote](upstream),
	}}
	svc = newTestService(&stubHistory{}, reference, neutralSeasons())

	res = svc.Predict(context.Background(), "tomato", "")
	assert.Equal(t, signal.StateFailed, res.State())
	assert.ErrorIs(t, res.Err(), upstream)
}

func TestPredictRejectsBlankCommodity(t *testing.T) {
	svc := newTestService(&stubHistory{}, &stubReference{}, neutralSeasons())

	res := svc.Predict(context.Background(), "   ", "")
	assert.ErrorIs(t, res.Err(), predictiondomain.ErrInvalidCommodity)
}

func TestBatchPredict(t *testing.T) {
	history := &stubHistory{prices: map[string][]float64{
		"tomato": {22, 24, 23, 25, 21, 26},
	}}
	svc := newTestService(history, &stubReference{}, config.DefaultSeasonalFactors())

	out := svc.BatchPredict(context.Background(), []predictiondomain.BatchItem{
		{ProductRef: "p-1", Commodity: "Tomato", CurrentPrice: 25},
		{ProductRef: "p-2", Commodity: "okra", CurrentPrice: 40},
	})
	require.Len(t, out, 2)

	assert.Equal(t, "p-1", out[0].ProductRef)
	assert.Equal(t, "tomato", out[0].Commodity)
	require.NotNil(t, out[0].PredictedPrice)
	assert.Equal(t, 28.0, *out[0].PredictedPrice)
	assert.Equal(t, predictiondomain.DefaultConfidence, out[0].Confidence)

	assert.Equal(t, "p-2", out[1].ProductRef)
	assert.Nil(t, out[1].PredictedPrice)
	assert.Equal(t, 40.0, out[1].CurrentPrice)
	assert.Equal(t, predictiondomain.DefaultConfidence, out[1].Confidence)
}
