package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/robfig/cron/v3"
	"github.com/smallbiznis/harvestprice/internal/clock"
	obsmetrics "github.com/smallbiznis/harvestprice/internal/observability/metrics"
	historydomain "github.com/smallbiznis/harvestprice/internal/pricehistory/domain"
	refdomain "github.com/smallbiznis/harvestprice/internal/referenceprice/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobRefreshReferencePrices = "refresh_reference_prices"
	JobPrunePriceHistory      = "prune_price_history"
)

var (
	ErrInvalidConfig     = errors.New("invalid_scheduler_config")
	ErrRefreshIncomplete = errors.New("reference_refresh_incomplete")
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Clock     clock.Clock
	Config    Config
	Reference refdomain.Service
	History   historydomain.Service
	Metrics   *obsmetrics.SchedulerMetrics `optional:"true"`
}

type Scheduler struct {
	log       *zap.Logger
	cfg       Config
	clock     clock.Clock
	reference refdomain.Service
	history   historydomain.Service
	metrics   *obsmetrics.SchedulerMetrics

	cron    *cron.Cron
	running sync.Map // job name -> *sync.Mutex
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.Reference == nil || p.History == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()
	log := p.Log.Named("scheduler").With(zap.String("component", "scheduler"))

	s := &Scheduler{
		log:       log,
		cfg:       cfg,
		clock:     p.Clock,
		reference: p.Reference,
		history:   p.History,
		metrics:   p.Metrics,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLogger{sugar: log.Sugar()}),
			cron.WithChain(cron.Recover(cronLogger{sugar: log.Sugar()})),
		),
	}

	if _, err := s.cron.AddFunc(cfg.RefreshSpec, s.tick(JobRefreshReferencePrices, cfg.RefreshTimeout, s.RefreshReferencePricesJob)); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, JobRefreshReferencePrices, err)
	}
	if cfg.Retention > 0 {
		if _, err := s.cron.AddFunc(cfg.PruneSpec, s.tick(JobPrunePriceHistory, cfg.PruneTimeout, s.PrunePriceHistoryJob)); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, JobPrunePriceHistory, err)
		}
	}

	return s, nil
}

// Start begins firing jobs on their cron schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.log.Debug("scheduler entry registered", zap.Time("next", e.Next))
	}
}

// Stop halts the schedule and waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce runs every enabled job immediately.
func (s *Scheduler) RunOnce(parent context.Context) error {
	err := s.runJob(parent, JobRefreshReferencePrices, s.cfg.RefreshTimeout, s.RefreshReferencePricesJob)
	if s.cfg.Retention > 0 {
		err = errors.Join(err, s.runJob(parent, JobPrunePriceHistory, s.cfg.PruneTimeout, s.PrunePriceHistoryJob))
	}
	return err
}

// tick adapts a job to a cron callback. Overlapping runs of the same job are skipped.
func (s *Scheduler) tick(name string, timeout time.Duration, fn func(context.Context) error) func() {
	return func() {
		lock := s.jobLock(name)
		if !lock.TryLock() {
			s.metrics.IncJobSkipped(name)
			s.log.Warn("scheduler job still running, tick skipped", zap.String("job", name))
			return
		}
		defer lock.Unlock()

		if err := s.runJob(context.Background(), name, timeout, fn); err != nil {
			s.log.Warn("scheduler run failed", zap.String("job", name), zap.Error(err))
		}
	}
}

func (s *Scheduler) jobLock(name string) *sync.Mutex {
	v, _ := s.running.LoadOrStore(name, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run := s.startJobRun(ctx, name)
	s.logJobStart(ctx)
	s.metrics.IncJobRun(name)

	err := fn(withJobRun(ctx, run))
	s.metrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if err != nil && run.errorCount == 0 {
		run.IncError()
	}
	s.logJobFinish(ctx, run)
	if err == nil {
		return nil
	}

	// deadline is a soft timeout; the next tick picks up where this one stopped
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		s.metrics.IncJobTimeout(name)
	}
	s.metrics.IncJobError(name, err)
	if isTimeout {
		s.logger(ctx).Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RefreshReferencePricesJob refreshes the cached reference price of every tracked commodity.
func (s *Scheduler) RefreshReferencePricesJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	results := s.reference.RefreshBatch(ctx, s.cfg.TrackedCommodities)

	failed := 0
	for _, r := range results {
		if r.Success {
			run.AddProcessed(1)
			continue
		}
		failed++
		run.IncError()
		s.logger(ctx).Warn("reference refresh failed",
			zap.String("commodity", r.Commodity),
			zap.String("state", r.State),
			zap.String("error", r.Error),
		)
	}
	s.metrics.AddBatchProcessed(JobRefreshReferencePrices, "reference_price", len(results)-failed)

	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d commodities", ErrRefreshIncomplete, failed, len(results))
	}
	return nil
}

// PrunePriceHistoryJob deletes observations older than the retention window.
func (s *Scheduler) PrunePriceHistoryJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	deleted, err := s.history.Prune(ctx, s.cfg.Retention)
	if err != nil {
		s.logJobError(ctx, "scheduler.prune.failed", err, zap.Duration("retention", s.cfg.Retention))
		return err
	}
	run.AddProcessed(int(deleted))
	s.metrics.AddBatchProcessed(JobPrunePriceHistory, "price_observation", int(deleted))
	return nil
}

func (s *Scheduler) newRunID() string {
	return ulid.MustNew(ulid.Timestamp(s.clock.Now()), ulid.DefaultEntropy()).String()
}

type jobRunKey struct{}

func withJobRun(ctx context.Context, run *jobRun) context.Context {
	return context.WithValue(ctx, jobRunKey{}, run)
}

func jobRunFromContext(ctx context.Context) *jobRun {
	run, _ := ctx.Value(jobRunKey{}).(*jobRun)
	return run
}
