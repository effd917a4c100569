package usecase

import (
	"context"
	"time"

	"ChatDigest/internal/domain"
	"ChatDigest/internal/ports"
)

// RunHook observes every scheduled run.
type RunHook func(status domain.RunStatus, err error)

// Scheduler wires the cron driver with the pipeline use case.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	hook     RunHook
}

// NewScheduler returns a helper to start/stop recurring runs. hook may be nil.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, hook RunHook) *Scheduler {
	return &Scheduler{driver: driver, pipeline: pipeline, hook: hook}
}

// Start registers the pipeline with the provided scheduler. Every trigger
// builds a fresh time window ending at the trigger time.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		status, err := s.pipeline.Run(ctx, trigger)
		if s.hook != nil {
			s.hook(status, err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
