package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/givelane/internal/audit/domain"
	"github.com/smallbiznis/givelane/internal/clock"
	ledgerdomain "github.com/smallbiznis/givelane/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/givelane/internal/observability/metrics"
	"github.com/smallbiznis/givelane/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

const lockPrefix = "scheduler:"

type Params struct {
	fx.In

	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	LedgerSvc ledgerdomain.Service
	Locker    *ratelimit.Locker            `optional:"true"`
	Metrics   *obsmetrics.SchedulerMetrics `optional:"true"`
	Config    Config                       `optional:"true"`
}

type Scheduler struct {
	log       *zap.Logger
	cfg       Config
	genID     *snowflake.Node
	clock     clock.Clock
	ledgerSvc ledgerdomain.Service
	locker    *ratelimit.Locker
	metrics   *obsmetrics.SchedulerMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.LedgerSvc == nil {
		return nil, ErrInvalidConfig
	}
	metrics := p.Metrics
	if metrics == nil {
		metrics = obsmetrics.Scheduler()
	}
	return &Scheduler{
		log:       p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:       p.Config.withDefaults(),
		genID:     p.GenID,
		clock:     p.Clock,
		ledgerSvc: p.LedgerSvc,
		locker:    p.Locker,
		metrics:   metrics,
	}, nil
}

// runJob runs fn under the job's lock and a timeout. A timeout is reported
// but not returned so the loop keeps ticking.
func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context, run *jobRun) error,
) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx = s.withLogContext(ctx)
	ctx, run, owner := s.ensureJobRun(ctx, name)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)

	err := s.locker.WithLock(ctx, lockPrefix+name, s.cfg.LockTTL, func(ctx context.Context) error {
		return fn(ctx, run)
	})
	if errors.Is(err, ratelimit.ErrLockHeld) {
		s.metrics.LockSkipped(name)
		log.Debug("job skipped, lock held by another replica")
		return nil
	}

	s.metrics.ObserveJob(name, start, run.processedCount, err)
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context, *jobRun) error
	}{
		{obsmetrics.SchedulerJobExpirePendingDonations, s.ExpirePendingDonationsJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, s.cfg.JobTimeout, job.Run))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// ExpirePendingDonationsJob fails one-off donations whose checkout was
// abandoned past the pending TTL.
func (s *Scheduler) ExpirePendingDonationsJob(ctx context.Context, run *jobRun) error {
	expired, err := s.ledgerSvc.ExpirePending(ctx)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.expire_pending.failed", obsmetrics.SchedulerJobExpirePendingDonations, err)
		return err
	}
	run.AddProcessed(int(expired))
	return nil
}

func systemActor() (string, string) {
	return string(auditdomain.ActorTypeSystem), "scheduler"
}
