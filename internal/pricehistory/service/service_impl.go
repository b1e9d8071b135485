package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/harvestprice/internal/clock"
	"github.com/smallbiznis/harvestprice/internal/commodity"
	"github.com/smallbiznis/harvestprice/internal/config"
	obslogger "github.com/smallbiznis/harvestprice/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/harvestprice/internal/observability/metrics"
	historydomain "github.com/smallbiznis/harvestprice/internal/pricehistory/domain"
	"github.com/smallbiznis/harvestprice/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    historydomain.Repository
	Config  config.Config
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    historydomain.Repository
	metrics *obsmetrics.Metrics

	minRetention time.Duration
}

func New(p Params) historydomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("pricehistory.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		metrics:      p.Metrics,
		minRetention: p.Config.Prediction.HistoryWindow,
	}
}

func (s *Service) Record(ctx context.Context, req historydomain.RecordRequest) {
	channel := req.Channel
	if channel == "" {
		channel = historydomain.ChannelInternal
	}
	log := obslogger.WithContext(ctx, s.log)

	key := commodity.Normalize(req.Commodity)
	if key == "" {
		log.Warn("dropping observation without commodity",
			zap.String("product_ref", req.ProductRef),
			zap.String("channel", string(channel)),
		)
		s.metrics.RecordObservation(ctx, string(channel), "rejected")
		return
	}

	obs := &historydomain.Observation{
		ID:         s.genID.Generate(),
		ProductRef: strings.TrimSpace(req.ProductRef),
		Commodity:  key,
		Region:     strings.TrimSpace(req.Region),
		Price:      req.Price,
		Quantity:   req.Quantity,
		RecordedAt: s.clock.Now().UTC(),
	}

	if err := s.repo.Insert(ctx, s.db, obs); err != nil {
		if db.IsDuplicateKeyErr(err) {
			// two nodes sharing a NODE_ID can mint the same snowflake
			log.Warn("duplicate observation id",
				zap.String("commodity", key),
				zap.String("id", obs.ID.String()),
				zap.String("channel", string(channel)),
			)
			s.metrics.RecordObservation(ctx, string(channel), "duplicate")
			return
		}
		log.Error("failed to record price observation",
			zap.String("commodity", key),
			zap.String("region", obs.Region),
			zap.String("channel", string(channel)),
			zap.Error(err),
		)
		s.metrics.RecordObservation(ctx, string(channel), "failed")
		return
	}
	s.metrics.RecordObservation(ctx, string(channel), "recorded")
}

func (s *Service) Query(ctx context.Context, name string, window time.Duration) ([]historydomain.Observation, error) {
	key := commodity.Normalize(name)
	if key == "" {
		return nil, historydomain.ErrInvalidCommodity
	}
	if window <= 0 {
		return nil, historydomain.ErrInvalidWindow
	}

	since := s.clock.Now().UTC().Add(-window)
	items, err := s.repo.ListSince(ctx, s.db, key, since)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []historydomain.Observation{}
	}
	return items, nil
}

func (s *Service) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	if retention < s.minRetention {
		retention = s.minRetention
	}

	cutoff := s.clock.Now().UTC().Add(-retention)
	deleted, err := s.repo.DeleteBefore(ctx, s.db, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		obslogger.WithContext(ctx, s.log).Info("pruned price observations",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
	return deleted, nil
}
