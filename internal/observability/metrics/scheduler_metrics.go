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
	SchedulerErrorTypeDeadlineExceeded = "deadline_exceeded"
	SchedulerErrorTypeDB               = "db"
	SchedulerErrorTypeLock             = "lock"
	SchedulerErrorTypeUnknown          = "unknown"
)

const (
	SchedulerJobExpirePendingDonations = "expire_pending_donations"
)

// SchedulerMetrics captures background job health signals.
type SchedulerMetrics struct {
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobErrors      *prometheus.CounterVec
	batchProcessed *prometheus.CounterVec
	lockSkipped    *prometheus.CounterVec
}

var (
	schedulerOnce     sync.Once
	schedulerInstance *SchedulerMetrics
)

// Scheduler returns the process-wide scheduler metrics registered on the default registry.
func Scheduler() *SchedulerMetrics {
	schedulerOnce.Do(func() {
		schedulerInstance = NewSchedulerMetrics(prometheus.DefaultRegisterer)
	})
	return schedulerInstance
}

// NewSchedulerMetrics registers scheduler collectors on reg. Collectors that are
// already registered are reused.
func NewSchedulerMetrics(reg prometheus.Registerer) *SchedulerMetrics {
	m := &SchedulerMetrics{
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "givelane_scheduler_job_runs_total",
			Help: "Scheduler job runs by job and status.",
		}, []string{"job", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "givelane_scheduler_job_duration_seconds",
			Help:    "Scheduler job duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "givelane_scheduler_job_errors_total",
			Help: "Scheduler job errors by job and error type.",
		}, []string{"job", "error_type"}),
		batchProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "givelane_scheduler_batch_processed_total",
			Help: "Records processed by scheduler jobs.",
		}, []string{"job"}),
		lockSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "givelane_scheduler_lock_skipped_total",
			Help: "Job runs skipped because another replica holds the lock.",
		}, []string{"job"}),
	}
	m.jobRuns = registerCounterVec(reg, m.jobRuns)
	m.jobDuration = registerHistogramVec(reg, m.jobDuration)
	m.jobErrors = registerCounterVec(reg, m.jobErrors)
	m.batchProcessed = registerCounterVec(reg, m.batchProcessed)
	m.lockSkipped = registerCounterVec(reg, m.lockSkipped)
	return m
}

func (m *SchedulerMetrics) ObserveJob(job string, started time.Time, processed int, err error) {
	if m == nil {
		return
	}
	job = strings.TrimSpace(job)
	status := "success"
	if err != nil {
		status = "error"
		m.jobErrors.WithLabelValues(job, ClassifySchedulerError(err)).Inc()
	}
	m.jobRuns.WithLabelValues(job, status).Inc()
	m.jobDuration.WithLabelValues(job).Observe(time.Since(started).Seconds())
	if processed > 0 {
		m.batchProcessed.WithLabelValues(job).Add(float64(processed))
	}
}

func (m *SchedulerMetrics) LockSkipped(job string) {
	if m == nil {
		return
	}
	m.lockSkipped.WithLabelValues(strings.TrimSpace(job)).Inc()
}

// ClassifySchedulerError maps job errors to a bounded label set.
func ClassifySchedulerError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return SchedulerErrorTypeDeadlineExceeded
	case isLockError(err):
		return SchedulerErrorTypeLock
	case isDBError(err):
		return SchedulerErrorTypeDB
	default:
		return SchedulerErrorTypeUnknown
	}
}

// isLockError matches lock_not_available and deadlock_detected as well as
// errors from the distributed lock.
func isLockError(err error) bool {
	if hasPGCode(err, "55P03") || hasPGCode(err, "40P01") {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "lock")
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrMissingWhereClause) ||
		errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "sql") || strings.Contains(msg, "database")
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return c
}

func registerHistogramVec(reg prometheus.Registerer, h *prometheus.HistogramVec) *prometheus.HistogramVec {
	if reg == nil {
		return h
	}
	if err := reg.Register(h); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing
			}
		}
	}
	return h
}
