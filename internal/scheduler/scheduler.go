package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/hmsinsure/internal/cache"
	"github.com/smallbiznis/hmsinsure/internal/clock"
	"github.com/smallbiznis/hmsinsure/internal/config"
	"github.com/smallbiznis/hmsinsure/internal/jobqueue"
	obsmetrics "github.com/smallbiznis/hmsinsure/internal/observability/metrics"
	"github.com/smallbiznis/hmsinsure/internal/scheduler/guard"
	"github.com/smallbiznis/hmsinsure/internal/syncjob"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const JobProviderSync = "provider_sync"

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

// SyncEnqueuer queues provider price package syncs.
type SyncEnqueuer interface {
	EnqueueSync(ctx context.Context, args syncjob.Args) (*jobqueue.Job, error)
}

type Params struct {
	fx.In

	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Settings config.SettingsSource
	Syncs    SyncEnqueuer
	Locker   *cache.Locker
	Metrics  *obsmetrics.JobMetrics `optional:"true"`
	Config   Config                 `optional:"true"`
}

type Scheduler struct {
	log      *zap.Logger
	cfg      Config
	genID    *snowflake.Node
	clock    clock.Clock
	settings config.SettingsSource
	syncs    SyncEnqueuer
	locker   *cache.Locker
	metrics  *obsmetrics.JobMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Settings == nil || p.Syncs == nil || p.Locker == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:      p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:      p.Config.withDefaults(),
		genID:    p.GenID,
		clock:    p.Clock,
		settings: p.Settings,
		syncs:    p.Syncs,
		locker:   p.Locker,
		metrics:  p.Metrics,
	}, nil
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

	ctx, run, owner := s.ensureJobRun(ctx, name)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)

	err := fn(ctx)
	s.metrics.ObserveRun("scheduler."+name, s.clock.Now().Sub(start), err)
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// deadline is a soft timeout; the next tick retries
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
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{JobProviderSync, s.isJobEnabled(JobProviderSync), func(ctx context.Context) error {
			return s.runJob(ctx, JobProviderSync, s.cfg.JobTimeout, s.ProviderSyncJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)

	for {
		if runLag := s.clock.Now().Sub(nextRun); runLag > 0 {
			s.metrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

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

// ProviderSyncJob enqueues a price package sync for every setting with auto
// sync on. Only the worker holding the tick lock enqueues.
func (s *Scheduler) ProviderSyncJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobProviderSync)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	tick := s.clock.Now().Truncate(s.cfg.RunInterval)
	key := fmt.Sprintf("hmsinsure:scheduler:%s:%d", JobProviderSync, tick.Unix())
	if _, ok, err := s.locker.TryLock(ctx, key, s.cfg.RunInterval); err != nil {
		return err
	} else if !ok {
		s.metrics.IncLockContended(JobProviderSync)
		s.logger(ctx).Debug("scheduler.tick.locked", zap.String("job", JobProviderSync), zap.Time("tick", tick))
		return nil
	}

	var jobErr error
	for _, setting := range s.settings.Get().AutoSyncTargets() {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}
		if err := guard.EnsureCanSync(setting); err != nil {
			s.logSchedulerError(ctx, run, "scheduler.sync.skipped", JobProviderSync, setting.Company, err,
				zap.String("provider", setting.Provider))
			continue
		}
		job, err := s.syncs.EnqueueSync(ctx, syncjob.Args{Provider: setting.Provider, Company: setting.Company})
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			s.logSchedulerError(ctx, run, "scheduler.sync.enqueue_failed", JobProviderSync, setting.Company, err,
				zap.String("provider", setting.Provider))
			continue
		}
		run.AddProcessed(1)
		s.logger(s.withLogContext(ctx, setting.Company)).Info("scheduler.sync.enqueued",
			zap.String("provider", setting.Provider),
			zap.String("job_id", job.ID),
		)
	}
	return jobErr
}
