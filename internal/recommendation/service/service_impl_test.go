package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	predictiondomain "github.com/smallbiznis/harvestprice/internal/prediction/domain"
	recdomain "github.com/smallbiznis/harvestprice/internal/recommendation/domain"
	refdomain "github.com/smallbiznis/harvestprice/internal/referenceprice/domain"
	"github.com/smallbiznis/harvestprice/internal/signal"
	trenddomain "github.com/smallbiznis/harvestprice/internal/trend/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// barrier releases once every signal fetch has started.
type barrier struct {
	wg       sync.WaitGroup
	timedOut atomic.Bool
}

func newBarrier(n int) *barrier {
	b := &barrier{}
	b.wg.Add(n)
	return b
}

func (b *barrier) arrive() {
	if b == nil {
		return
	}
	b.wg.Done()
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		b.timedOut.Store(true)
	}
}

type stubPrediction struct {
	result signal.Result[predictiondomain.Prediction]
	gate   *barrier
}

func (s *stubPrediction) Predict(_ context.Context, commodity, _ string) signal.Result[predictiondomain.Prediction] {
	s.gate.arrive()
	return s.result
}

func (s *stubPrediction) BatchPredict(context.Context, []predictiondomain.BatchItem) []predictiondomain.BatchPrediction {
	return nil
}

type stubReference struct {
	result signal.Result[refdomain.Quote]
	gate   *barrier
	lookup refdomain.Lookup
}

func (s *stubReference) GetPrice(_ context.Context, lookup refdomain.Lookup) signal.Result[refdomain.Quote] {
	s.gate.arrive()
	s.lookup = lookup
	return s.result
}

func (s *stubReference) RefreshBatch(context.Context, []string) []refdomain.RefreshResult {
	return nil
}

func (s *stubReference) Trending(context.Context, time.Duration, int) ([]refdomain.TrendingCommodity, error) {
	return nil, nil
}

type stubTrend struct {
	trend trenddomain.Trend
	err   error
	gate  *barrier
	days  int
}

func (s *stubTrend) Compute(_ context.Context, _ string, days int) (trenddomain.Trend, error) {
	s.gate.arrive()
	s.days = days
	return s.trend, s.err
}

func predicted(price float64) signal.Result[predictiondomain.Prediction] {
	return signal.Present(predictiondomain.Prediction{Price: price, Basis: predictiondomain.BasisHistory})
}

func reference(price float64) signal.Result[refdomain.Quote] {
	return signal.Present(refdomain.Quote{ModalPrice: price})
}

func stable() trenddomain.Trend {
	return trenddomain.Trend{Direction: trenddomain.DirectionStable}
}

func newTestService(p *stubPrediction, r *stubReference, tr *stubTrend) recdomain.Service {
	return New(Params{Log: zap.NewNop(), Prediction: p, Reference: r, Trend: tr})
}

func TestRecommendThresholds(t *testing.T) {
	cases := []struct {
		name      string
		current   float64
		action    recdomain.Action
		suggested float64
		message   string
	}{
		{"well below", 79, recdomain.ActionRaise, 90, msgBelowMarket},
		{"lower band edge", 80, recdomain.ActionKeep, 80, msgCompetitive},
		{"at market", 100, recdomain.ActionKeep, 100, msgCompetitive},
		{"upper band edge", 120, recdomain.ActionKeep, 120, msgCompetitive},
		{"well above", 121, recdomain.ActionLower, 110, msgAboveMarket},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService(
				&stubPrediction{result: predicted(90)},
				&stubReference{result: reference(110)},
				&stubTrend{trend: stable()},
			)

			rec, err := svc.Recommend(context.Background(), "tomato", tc.current)
			require.NoError(t, err)

			assert.Equal(t, tc.action, rec.Action)
			assert.Equal(t, tc.suggested, rec.SuggestedPrice)
			assert.Equal(t, tc.message, rec.Message)
			assert.Equal(t, tc.current, rec.CurrentPrice)
			require.NotNil(t, rec.PredictedPrice)
			require.NotNil(t, rec.ReferencePrice)
			assert.Equal(t, 90.0, *rec.PredictedPrice)
			assert.Equal(t, 110.0, *rec.ReferencePrice)
		})
	}
}

func TestRecommendAppendsTrend(t *testing.T) {
	rising := trenddomain.Trend{Direction: trenddomain.DirectionIncreasing, Change: 12.5}
	svc := newTestService(
		&stubPrediction{result: predicted(100)},
		&stubReference{result: reference(100)},
		&stubTrend{trend: rising},
	)

	rec, err := svc.Recommend(context.Background(), "tomato", 50)
	require.NoError(t, err)
	assert.Equal(t, "Your price is below market average. Consider increasing. Market prices are rising.", rec.Message)
	assert.Equal(t, trenddomain.DirectionIncreasing, rec.Trend)
	assert.Equal(t, 12.5, rec.TrendChange)

	falling := trenddomain.Trend{Direction: trenddomain.DirectionDecreasing, Change: -8}
	svc = newTestService(
		&stubPrediction{result: predicted(100)},
		&stubReference{result: reference(100)},
		&stubTrend{trend: falling},
	)

	rec, err = svc.Recommend(context.Background(), "tomato", 100)
	require.NoError(t, err)
	assert.Equal(t, "Your price is competitive. Market prices are falling.", rec.Message)
}

func TestRecommendDegradesWithoutSignals(t *testing.T) {
	cases := []struct {
		name string
		p    signal.Result[predictiondomain.Prediction]
		r    signal.Result[refdomain.Quote]
	}{
		{"no prediction", signal.Absent[predictiondomain.Prediction](), reference(100)},
		{"no reference", predicted(100), signal.Failed[refdomain.Quote](refdomain.ErrSourceUnavailable)},
		{"nothing", signal.Absent[predictiondomain.Prediction](), signal.Absent[refdomain.Quote]()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService(
				&stubPrediction{result: tc.p},
				&stubReference{result: tc.r},
				&stubTrend{trend: trenddomain.Trend{Direction: trenddomain.DirectionIncreasing, Change: 9}},
			)

			rec, err := svc.Recommend(context.Background(), "tomato", 40)
			require.NoError(t, err)

			assert.Equal(t, recdomain.ActionNone, rec.Action)
			assert.Empty(t, rec.Message)
			assert.Equal(t, 40.0, rec.SuggestedPrice)
			assert.Equal(t, trenddomain.DirectionIncreasing, rec.Trend)
		})
	}
}

func TestRecommendUsesUnknownTrendOnError(t *testing.T) {
	svc := newTestService(
		&stubPrediction{result: predicted(100)},
		&stubReference{result: reference(100)},
		&stubTrend{err: trenddomain.ErrInvalidWindow},
	)

	rec, err := svc.Recommend(context.Background(), "tomato", 100)
	require.NoError(t, err)
	assert.Equal(t, trenddomain.DirectionUnknown, rec.Trend)
	assert.Equal(t, msgCompetitive, rec.Message)
}

func TestRecommendFetchesSignalsConcurrently(t *testing.T) {
	gate := newBarrier(3)
	p := &stubPrediction{result: predicted(100), gate: gate}
	r := &stubReference{result: reference(100), gate: gate}
	tr := &stubTrend{trend: stable(), gate: gate}

	_, err := newTestService(p, r, tr).Recommend(context.Background(), " Tomato ", 100)
	require.NoError(t, err)

	assert.False(t, gate.timedOut.Load())
	assert.Equal(t, refdomain.Lookup{Commodity: "tomato"}, r.lookup)
	assert.Equal(t, trenddomain.DefaultWindowDays, tr.days)
}

func TestRecommendRejectsInvalidInput(t *testing.T) {
	svc := newTestService(&stubPrediction{}, &stubReference{}, &stubTrend{})

	_, err := svc.Recommend(context.Background(), "", 10)
	assert.ErrorIs(t, err, recdomain.ErrInvalidCommodity)

	_, err = svc.Recommend(context.Background(), "tomato", 0)
	assert.ErrorIs(t, err, recdomain.ErrInvalidPrice)

	_, err = svc.Recommend(context.Background(), "tomato", -3)
	assert.ErrorIs(t, err, recdomain.ErrInvalidPrice)
}
