package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestSchedulerMetricsObserveJob(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSchedulerMetrics(reg)

	m.ObserveJob(SchedulerJobExpirePendingDonations, time.Now(), 3, nil)
	m.ObserveJob(SchedulerJobExpirePendingDonations, time.Now(), 0, context.DeadlineExceeded)
	m.LockSkipped(SchedulerJobExpirePendingDonations)

	assert.Equal(t, float64(1), counterValue(t, m.jobRuns, SchedulerJobExpirePendingDonations, "success"))
	assert.Equal(t, float64(1), counterValue(t, m.jobRuns, SchedulerJobExpirePendingDonations, "error"))
	assert.Equal(t, float64(3), counterValue(t, m.batchProcessed, SchedulerJobExpirePendingDonations))
	assert.Equal(t, float64(1), counterValue(t, m.jobErrors, SchedulerJobExpirePendingDonations, SchedulerErrorTypeDeadlineExceeded))
	assert.Equal(t, float64(1), counterValue(t, m.lockSkipped, SchedulerJobExpirePendingDonations))
}

func TestSchedulerMetricsReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewSchedulerMetrics(reg)
	second := NewSchedulerMetrics(reg)

	first.ObserveJob("job", time.Now(), 1, nil)
	second.ObserveJob("job", time.Now(), 1, nil)

	assert.Equal(t, float64(2), counterValue(t, first.jobRuns, "job", "success"))
}

func TestClassifySchedulerError(t *testing.T) {
	assert.Equal(t, "", ClassifySchedulerError(nil))
	assert.Equal(t, SchedulerErrorTypeDeadlineExceeded, ClassifySchedulerError(fmt.Errorf("wrap: %w", context.DeadlineExceeded)))
	assert.Equal(t, SchedulerErrorTypeLock, ClassifySchedulerError(errors.New("lock client not configured")))
	assert.Equal(t, SchedulerErrorTypeDB, ClassifySchedulerError(errors.New("sql: connection refused")))
	assert.Equal(t, SchedulerErrorTypeUnknown, ClassifySchedulerError(errors.New("boom")))

	assert.Equal(t, SchedulerErrorTypeLock, ClassifySchedulerError(&pgconn.PgError{Code: "55P03"}))
	assert.Equal(t, SchedulerErrorTypeDB, ClassifySchedulerError(fmt.Errorf("expire: %w", &pgconn.PgError{Code: "23505"})))
	assert.Equal(t, SchedulerErrorTypeDB, ClassifySchedulerError(gorm.ErrInvalidTransaction))
	assert.Equal(t, SchedulerErrorTypeUnknown, ClassifySchedulerError(gorm.ErrRecordNotFound))
}

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	counter, err := vec.GetMetricWithLabelValues(labels...)
	require.NoError(t, err)
	var out dto.Metric
	require.NoError(t, counter.Write(&out))
	return out.GetCounter().GetValue()
}
