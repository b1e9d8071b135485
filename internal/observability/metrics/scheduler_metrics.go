package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	SchedulerJobReasonDeadlineExceeded     = "deadline_exceeded"
	SchedulerJobReasonDBLockTimeout        = "db_lock_timeout"
	SchedulerJobReasonSerializationFailure = "serialization_failure"
	SchedulerJobReasonUniqueViolation      = "unique_violation"
	SchedulerJobReasonDB                   = "db"
	SchedulerJobReasonUnknown              = "unknown"
)

// pgReasons maps the postgres SQLSTATE codes a pruning or upserting job can
// realistically hit.
var pgReasons = map[string]string{
	"55P03": SchedulerJobReasonDBLockTimeout,
	"40001": SchedulerJobReasonSerializationFailure,
	"23505": SchedulerJobReasonUniqueViolation,
}

const schedulerNamespace = "harvestprice_scheduler"

// SchedulerMetrics is the prometheus view of cron job health. A nil value
// records nothing.
type SchedulerMetrics struct {
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobTimeouts    *prometheus.CounterVec
	jobErrors      *prometheus.CounterVec
	batchProcessed *prometheus.CounterVec
	jobSkipped     *prometheus.CounterVec
}

var (
	defaultSchedulerOnce sync.Once
	defaultScheduler     *SchedulerMetrics
)

// SchedulerWithConfig registers the scheduler metrics on the default
// registerer once per process.
func SchedulerWithConfig(cfg Config) *SchedulerMetrics {
	defaultSchedulerOnce.Do(func() {
		defaultScheduler = newSchedulerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return defaultScheduler
}

func NewSchedulerMetrics(registerer prometheus.Registerer, cfg Config) *SchedulerMetrics {
	return newSchedulerMetrics(registerer, cfg)
}

func newSchedulerMetrics(registerer prometheus.Registerer, cfg Config) *SchedulerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	labels := serviceLabels(cfg)
	counter := func(name, help string, variable ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   schedulerNamespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, variable)
	}

	m := &SchedulerMetrics{
		jobRuns:     counter("job_runs_total", "Scheduler job runs by name.", "job"),
		jobTimeouts: counter("job_timeouts_total", "Scheduler jobs that hit their deadline.", "job"),
		jobErrors:   counter("job_errors_total", "Scheduler job errors by low-cardinality reason.", "job", "reason"),
		batchProcessed: counter("batch_processed_total",
			"Items handled by scheduler jobs: commodities refreshed or observations pruned.", "job", "resource"),
		jobSkipped: counter("job_skipped_total", "Ticks skipped because the previous run was still active.", "job"),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: schedulerNamespace,
			Name:      "job_duration_seconds",
			Help:      "Scheduler job latency.",
			// a full refresh walks every tracked commodity through the rate limiter
			Buckets:     []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			ConstLabels: labels,
		}, []string{"job"}),
	}

	registerer.MustRegister(m.jobRuns, m.jobDuration, m.jobTimeouts, m.jobErrors, m.batchProcessed, m.jobSkipped)
	return m
}

func (m *SchedulerMetrics) IncJobRun(job string) {
	if m != nil {
		m.jobRuns.WithLabelValues(job).Inc()
	}
}

func (m *SchedulerMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m != nil {
		m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
	}
}

func (m *SchedulerMetrics) IncJobTimeout(job string) {
	if m != nil {
		m.jobTimeouts.WithLabelValues(job).Inc()
	}
}

func (m *SchedulerMetrics) IncJobError(job string, err error) {
	if m != nil && err != nil {
		m.jobErrors.WithLabelValues(job, ClassifySchedulerJobReason(err)).Inc()
	}
}

func (m *SchedulerMetrics) AddBatchProcessed(job, resource string, count int) {
	if m != nil && count > 0 {
		m.batchProcessed.WithLabelValues(job, resource).Add(float64(count))
	}
}

func (m *SchedulerMetrics) IncJobSkipped(job string) {
	if m != nil {
		m.jobSkipped.WithLabelValues(job).Inc()
	}
}

// ClassifySchedulerJobReason maps a job error to a low-cardinality label.
func ClassifySchedulerJobReason(err error) string {
	if err == nil {
		return SchedulerJobReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return SchedulerJobReasonDeadlineExceeded
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return SchedulerJobReasonUniqueViolation
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if reason, ok := pgReasons[pgErr.Code]; ok {
			return reason
		}
		return SchedulerJobReasonDB
	}

	switch {
	case errors.Is(err, gorm.ErrInvalidDB),
		errors.Is(err, gorm.ErrInvalidTransaction),
		errors.Is(err, gorm.ErrInvalidData),
		errors.Is(err, gorm.ErrMissingWhereClause):
		return SchedulerJobReasonDB
	}
	return SchedulerJobReasonUnknown
}
