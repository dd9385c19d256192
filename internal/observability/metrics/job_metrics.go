package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	JobReasonDeadlineExceeded     = "deadline_exceeded"
	JobReasonDBLockTimeout        = "db_lock_timeout"
	JobReasonSerializationFailure = "serialization_failure"
	JobReasonUniqueViolation      = "unique_violation"
	JobReasonProvider             = "provider"
	JobReasonUnknown              = "unknown"
)

const (
	JobOutcomeSucceeded = "succeeded"
	JobOutcomeFailed    = "failed"
	JobOutcomeTimeout   = "timeout"
)

// JobMetrics captures background job and scheduler health.
type JobMetrics struct {
	enqueued      *prometheus.CounterVec
	runs          *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	errors        *prometheus.CounterVec
	queueDepth    *prometheus.GaugeVec
	runLoopLag    prometheus.Observer
	itemsTouched  *prometheus.CounterVec
	lockContended *prometheus.CounterVec
}

var (
	jobMetricsOnce sync.Once
	jobMetrics     *JobMetrics
)

// providerFailure is implemented by insurance provider errors.
type providerFailure interface {
	ProviderFailure() bool
}

// Jobs returns the singleton job metrics registry.
func Jobs() *JobMetrics {
	return JobsWithConfig(Config{})
}

// JobsWithConfig returns the singleton job metrics registry using config labels.
func JobsWithConfig(cfg Config) *JobMetrics {
	jobMetricsOnce.Do(func() {
		jobMetrics = newJobMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return jobMetrics
}

func newJobMetrics(registerer prometheus.Registerer, cfg Config) *JobMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "hmsinsure"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	enqueued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "hmsinsure_jobs_enqueued_total",
		Help:        "Background jobs enqueued by method and queue.",
		ConstLabels: constLabels,
	}, []string{"method", "queue"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "hmsinsure_jobs_runs_total",
		Help:        "Background job runs by method and outcome.",
		ConstLabels: constLabels,
	}, []string{"method", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "hmsinsure_jobs_duration_seconds",
		Help:        "Background job latency; provider syncs may take minutes.",
		Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1500},
		ConstLabels: constLabels,
	}, []string{"method"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "hmsinsure_jobs_errors_total",
		Help:        "Background job errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"method", "reason"})
	queueDepth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "hmsinsure_jobs_queue_depth",
		Help:        "Pending jobs per queue.",
		ConstLabels: constLabels,
	}, []string{"queue"})
	runLoopLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "hmsinsure_scheduler_runloop_lag_seconds",
		Help:        "Scheduler run loop lag beyond the configured interval.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		ConstLabels: constLabels,
	})
	itemsTouched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "hmsinsure_jobs_items_processed_total",
		Help:        "Rows processed by background jobs per resource.",
		ConstLabels: constLabels,
	}, []string{"method", "resource"})
	lockContended := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "hmsinsure_scheduler_lock_contended_total",
		Help:        "Scheduler ticks skipped because another worker held the lock.",
		ConstLabels: constLabels,
	}, []string{"job"})

	registerer.MustRegister(enqueued, runs, duration, jobErrors, queueDepth, runLoopLag, itemsTouched, lockContended)

	return &JobMetrics{
		enqueued:      enqueued,
		runs:          runs,
		duration:      duration,
		errors:        jobErrors,
		queueDepth:    queueDepth,
		runLoopLag:    runLoopLag,
		itemsTouched:  itemsTouched,
		lockContended: lockContended,
	}
}

func (m *JobMetrics) IncEnqueued(method, queue string) {
	if m == nil {
		return
	}
	m.enqueued.WithLabelValues(method, queue).Inc()
}

// ObserveRun records one finished job with its outcome and latency.
func (m *JobMetrics) ObserveRun(method string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := JobOutcomeSucceeded
	if err != nil {
		outcome = JobOutcomeFailed
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = JobOutcomeTimeout
		}
		m.errors.WithLabelValues(method, ClassifyJobReason(err)).Inc()
	}
	m.runs.WithLabelValues(method, outcome).Inc()
	m.duration.WithLabelValues(method).Observe(duration.Seconds())
}

func (m *JobMetrics) SetQueueDepth(queue string, depth int64) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// ObserveRunLoopLag records lag between the scheduled tick and actual run start.
func (m *JobMetrics) ObserveRunLoopLag(duration time.Duration) {
	if m == nil {
		return
	}
	m.runLoopLag.Observe(max(duration, 0).Seconds())
}

func (m *JobMetrics) AddItemsProcessed(method, resource string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.itemsTouched.WithLabelValues(method, resource).Add(float64(count))
}

func (m *JobMetrics) IncLockContended(job string) {
	if m == nil {
		return
	}
	m.lockContended.WithLabelValues(job).Inc()
}

// ClassifyJobReason maps job errors to low-cardinality reasons.
func ClassifyJobReason(err error) string {
	switch {
	case err == nil:
		return JobReasonUnknown
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return JobReasonDeadlineExceeded
	case hasPGCode(err, "55P03"):
		return JobReasonDBLockTimeout
	case hasPGCode(err, "40001"):
		return JobReasonSerializationFailure
	case errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, "23505"):
		return JobReasonUniqueViolation
	case isProviderFailure(err):
		return JobReasonProvider
	default:
		return JobReasonUnknown
	}
}

func isProviderFailure(err error) bool {
	var pf providerFailure
	return errors.As(err, &pf) && pf.ProviderFailure()
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
