package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/harvestprice/internal/clock"
	"github.com/smallbiznis/harvestprice/internal/commodity"
	"github.com/smallbiznis/harvestprice/internal/config"
	obslogger "github.com/smallbiznis/harvestprice/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/harvestprice/internal/observability/metrics"
	"github.com/smallbiznis/harvestprice/internal/ratelimit"
	refdomain "github.com/smallbiznis/harvestprice/internal/referenceprice/domain"
	"github.com/smallbiznis/harvestprice/internal/signal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultTrendingLimit = 20
	maxTrendingLimit     = 100
	batchConcurrency     = 4
	peerPollInterval     = 100 * time.Millisecond
)

var errNoData = errors.New("reference_no_data")

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Config  config.Config
	Repo    refdomain.Repository
	Source  refdomain.PriceSource
	Guard   *ratelimit.RefreshGuard `optional:"true"`
	Metrics *obsmetrics.Metrics     `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    refdomain.Repository
	source  refdomain.PriceSource
	guard   *ratelimit.RefreshGuard
	metrics *obsmetrics.Metrics

	staleAfter time.Duration
	timeout    time.Duration
	serveStale bool

	group singleflight.Group
}

func New(p Params) refdomain.Service {
	staleAfter := p.Config.Reference.StaleAfter
	if staleAfter <= 0 {
		staleAfter = 24 * time.Hour
	}
	timeout := p.Config.Reference.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("referenceprice.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		source:     p.Source,
		guard:      p.Guard,
		metrics:    p.Metrics,
		staleAfter: staleAfter,
		timeout:    timeout,
		serveStale: p.Config.Reference.ServeStaleOnFailure,
	}
}

func (s *Service) GetPrice(ctx context.Context, lookup refdomain.Lookup) signal.Result[refdomain.Quote] {
	key, err := normalizeLookup(lookup)
	if err != nil {
		return signal.Failed[refdomain.Quote](err)
	}
	log := obslogger.WithContext(ctx, s.log).With(
		zap.String("commodity", key.Commodity),
		zap.String("region", key.Region),
		zap.String("district", key.District),
	)

	cached, err := s.repo.FindByKey(ctx, s.db, key)
	if err != nil {
		log.Warn("reference cache read failed", zap.Error(err))
		cached = nil
	}
	if cached != nil && s.isFresh(cached) {
		s.metrics.RecordReferenceLookup(ctx, string(refdomain.SourceCache), string(signal.StatePresent))
		return signal.Present(toQuote(cached, refdomain.SourceCache))
	}

	// the flight outlives any single caller; each caller stops waiting on its own ctx
	ch := s.group.DoChan(flightKey(key), func() (interface{}, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*s.timeout)
		defer cancel()
		return s.refresh(flightCtx, key)
	})
	var v interface{}
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case r := <-ch:
		v, err = r.Val, r.Err
	}
	if err == nil {
		quote := v.(refdomain.Quote)
		quote.Markets = append([]string(nil), quote.Markets...)
		s.metrics.RecordReferenceLookup(ctx, string(quote.Source), string(signal.StatePresent))
		return signal.Present(quote)
	}

	if s.serveStale && cached != nil {
		log.Info("serving stale reference price", zap.Time("last_updated", cached.LastUpdated), zap.Error(err))
		s.metrics.RecordReferenceLookup(ctx, string(refdomain.SourceStale), string(signal.StatePresent))
		return signal.Present(toQuote(cached, refdomain.SourceStale))
	}

	if errors.Is(err, errNoData) {
		log.Info("no reference data available")
		s.metrics.RecordReferenceLookup(ctx, "", string(signal.StateAbsent))
		return signal.Absent[refdomain.Quote]()
	}

	if ctx.Err() != nil {
		log.Debug("reference lookup abandoned by caller", zap.Error(err))
		s.metrics.RecordReferenceLookup(ctx, "", string(signal.StateFailed))
		return signal.Failed[refdomain.Quote](err)
	}

	log.Warn("reference refresh failed", zap.Error(err))
	s.metrics.RecordReferenceFetchError(ctx, fetchErrorReason(err))
	s.metrics.RecordReferenceLookup(ctx, "", string(signal.StateFailed))
	return signal.Failed[refdomain.Quote](err)
}

func (s *Service) refresh(ctx context.Context, key refdomain.Lookup) (refdomain.Quote, error) {
	token, acquired, err := s.guard.TryLockRefresh(ctx, key.Commodity, key.Region, key.District)
	if err != nil {
		s.log.Warn("refresh lock unavailable, refreshing unlocked", zap.String("commodity", key.Commodity), zap.Error(err))
		acquired = true
	}
	if !acquired {
		if entry, ok := s.awaitPeer(ctx, key); ok {
			return toQuote(entry, refdomain.SourceCache), nil
		}
	} else if token != "" {
		defer func() {
			if err := s.guard.ReleaseRefresh(context.WithoutCancel(ctx), key.Commodity, key.Region, key.District, token); err != nil {
				s.log.Warn("release refresh lock", zap.String("commodity", key.Commodity), zap.Error(err))
			}
		}()
	}

	allowed, _, err := s.guard.AllowUpstream(ctx)
	if err != nil {
		s.log.Warn("shared upstream budget unavailable", zap.Error(err))
	} else if !allowed {
		return refdomain.Quote{}, refdomain.ErrUpstreamRateLimited
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	records, err := s.source.Fetch(fetchCtx, key)
	if err != nil {
		return refdomain.Quote{}, err
	}

	agg, ok := aggregateRecords(records)
	if !ok {
		return refdomain.Quote{}, errNoData
	}

	entry := &refdomain.Entry{
		ID:          s.genID.Generate(),
		Commodity:   key.Commodity,
		Region:      key.Region,
		District:    key.District,
		ModalPrice:  agg.modal,
		MinPrice:    agg.min,
		MaxPrice:    agg.max,
		Variety:     agg.variety,
		ArrivalDate: agg.arrivalDate,
		RecordCount: agg.count,
		Metadata:    datatypes.JSONMap{"markets": agg.markets},
		LastUpdated: s.clock.Now().UTC().Truncate(time.Microsecond),
	}
	if err := s.repo.Upsert(ctx, s.db, entry); err != nil {
		// the fetched price is still good for this caller
		s.log.Error("failed to store reference price",
			zap.String("commodity", key.Commodity),
			zap.String("region", key.Region),
			zap.Error(err),
		)
	}

	return toQuote(entry, refdomain.SourceAPI), nil
}

// awaitPeer waits for another instance holding the refresh lock to store a
// fresh entry.
func (s *Service) awaitPeer(ctx context.Context, key refdomain.Lookup) (*refdomain.Entry, bool) {
	deadline := time.NewTimer(s.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(peerPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, false
		case <-deadline.C:
			return nil, false
		case <-ticker.C:
			entry, err := s.repo.FindByKey(ctx, s.db, key)
			if err == nil && entry != nil && s.isFresh(entry) {
				return entry, true
			}
		}
	}
}

func (s *Service) RefreshBatch(ctx context.Context, commodities []string) []refdomain.RefreshResult {
	results := make([]refdomain.RefreshResult, len(commodities))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, name := range commodities {
		g.Go(func() error {
			res := refdomain.RefreshResult{Commodity: strings.TrimSpace(name)}
			out := s.GetPrice(gctx, refdomain.Lookup{Commodity: name})
			res.State = string(out.State())
			res.Quote = signal.Ptr(out)
			res.Success = out.State() != signal.StateFailed
			if err := out.Err(); err != nil {
				res.Error = err.Error()
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (s *Service) Trending(ctx context.Context, window time.Duration, limit int) ([]refdomain.TrendingCommodity, error) {
	if window <= 0 {
		return nil, refdomain.ErrInvalidWindow
	}
	if limit <= 0 {
		limit = defaultTrendingLimit
	}
	if limit > maxTrendingLimit {
		limit = maxTrendingLimit
	}

	since := s.clock.Now().UTC().Add(-window)
	items, err := s.repo.TrendingSince(ctx, s.db, since, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []refdomain.TrendingCommodity{}
	}
	return items, nil
}

func (s *Service) isFresh(entry *refdomain.Entry) bool {
	return s.clock.Now().Sub(entry.LastUpdated) < s.staleAfter
}

func normalizeLookup(lookup refdomain.Lookup) (refdomain.Lookup, error) {
	key := commodity.Normalize(lookup.Commodity)
	if key == "" {
		return refdomain.Lookup{}, refdomain.ErrInvalidCommodity
	}
	return refdomain.Lookup{
		Commodity: key,
		Region:    strings.TrimSpace(lookup.Region),
		District:  strings.TrimSpace(lookup.District),
	}, nil
}

func flightKey(key refdomain.Lookup) string {
	return key.Commodity + "|" + key.Region + "|" + key.District
}

func toQuote(entry *refdomain.Entry, source refdomain.Source) refdomain.Quote {
	return refdomain.Quote{
		Commodity:   entry.Commodity,
		Region:      entry.Region,
		District:    entry.District,
		ModalPrice:  entry.ModalPrice,
		MinPrice:    entry.MinPrice,
		MaxPrice:    entry.MaxPrice,
		Variety:     entry.Variety,
		ArrivalDate: entry.ArrivalDate,
		RecordCount: entry.RecordCount,
		Markets:     marketsFromMetadata(entry.Metadata),
		Source:      source,
		LastUpdated: entry.LastUpdated.UTC(),
	}
}

func marketsFromMetadata(meta datatypes.JSONMap) []string {
	switch v := meta["markets"].(type) {
	case []string:
		return append([]string(nil), v...)
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, m := range v {
			if str, ok := m.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

func fetchErrorReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, refdomain.ErrUpstreamRateLimited):
		return "rate_limited"
	case errors.Is(err, refdomain.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, refdomain.ErrSourceUnavailable):
		return "unavailable"
	default:
		return "unknown"
	}
}
