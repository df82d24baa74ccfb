package cron

import (
	"context"
	"fmt"
	"time"

	robfig "github.com/robfig/cron/v3"
	"go.uber.org/multierr"

	"github.com/angelmondragon/skillbridge-billing/pkg/logger"
	"github.com/angelmondragon/skillbridge-billing/pkg/metrics"
)

const defaultSchedule = "0 2 * * *"

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	// Schedule is a standard five-field cron expression evaluated in UTC.
	Schedule string
	Now      func() time.Time
}

// Service executes registered cron jobs on a cron schedule.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	spec     string
	schedule robfig.Schedule
	now      func() time.Time
}

// NewService builds a cron service; an invalid schedule is rejected here
// rather than at the first tick.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	spec := params.Schedule
	if spec == "" {
		spec = defaultSchedule
	}
	schedule, err := robfig.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron schedule %q: %w", spec, err)
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		spec:     spec,
		schedule: schedule,
		now:      now,
	}, nil
}

// Next reports when the schedule fires after t.
func (s *Service) Next(t time.Time) time.Time {
	return s.schedule.Next(t.UTC())
}

// Run fires every registered job on the schedule until ctx is canceled.
// Overlapping ticks are skipped while a cycle is still running.
func (s *Service) Run(ctx context.Context) error {
	scheduler := robfig.New(
		robfig.WithLocation(time.UTC),
		robfig.WithChain(robfig.SkipIfStillRunning(robfig.DiscardLogger)),
	)
	scheduler.Schedule(s.schedule, robfig.FuncJob(func() {
		// Failures are already logged and counted per job.
		_ = s.RunOnce(ctx)
	}))
	scheduler.Start()

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"schedule": s.spec,
		"next_run": s.Next(s.now()).Format(time.RFC3339),
		"jobs":     len(s.registry.Jobs()),
	}), "cron scheduler started")

	<-ctx.Done()
	stopped := scheduler.Stop()
	<-stopped.Done()
	s.logg.Info(ctx, "cron scheduler stopped")
	return ctx.Err()
}

// RunOnce runs every registered job once, in registration order. A failing
// job does not stop the ones after it.
func (s *Service) RunOnce(ctx context.Context) error {
	var errs error
	for _, job := range s.registry.Jobs() {
		errs = multierr.Append(errs, s.runJob(ctx, job))
	}
	return errs
}

// RunJob runs a single registered job by name, honoring the lock.
func (s *Service) RunJob(ctx context.Context, name string) error {
	job, ok := s.registry.Find(name)
	if !ok {
		return fmt.Errorf("cron job %q not registered", name)
	}
	return s.runJob(ctx, job)
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	jobCtx := s.logg.WithJob(ctx, job.Name())
	jobCtx = s.logg.WithField(jobCtx, "event", "cron.job")

	locked, err := s.lock.Acquire(jobCtx, job.Name())
	if err != nil {
		s.logg.Error(jobCtx, "cron lock acquire failed", err)
		s.metrics.IncFailure(job.Name())
		return err
	}
	if !locked {
		s.logg.Info(jobCtx, "another instance holds the job lock; skipping")
		s.metrics.IncSkipped(job.Name())
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(context.WithoutCancel(jobCtx), job.Name()); relErr != nil {
			s.logg.Error(jobCtx, "failed to release cron lock", relErr)
		}
	}()

	s.logg.Info(jobCtx, "job start")
	start := s.now()
	err = job.Run(jobCtx)
	duration := s.now().Sub(start)
	s.metrics.ObserveDuration(job.Name(), duration)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		s.metrics.IncFailure(job.Name())
		return err
	}
	s.logg.Info(jobCtx, "job completed")
	s.metrics.IncSuccess(job.Name(), s.now())
	return nil
}
