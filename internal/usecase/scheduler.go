package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"JobScanner/internal/domain"
	"JobScanner/internal/logging"
	"JobScanner/internal/ports"
)

// Scheduler wires the interval driver with the scrape orchestrator.
type Scheduler struct {
	driver       ports.Scheduler
	orchestrator *Orchestrator
	logger       *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring passes.
func NewScheduler(driver ports.Scheduler, orchestrator *Orchestrator, log *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, orchestrator: orchestrator, logger: logging.OrDiscard(log)}
}

// Start registers the orchestrator with the provided scheduler. A tick that
// lands while a pass is running is skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.orchestrator == nil {
		return nil
	}

	job := func(trigger time.Time) {
		report, err := s.orchestrator.RunAll(ctx)
		switch {
		case errors.Is(err, domain.ErrRunInProgress):
			s.logger.Info("scheduled pass skipped, previous pass still running", "trigger", trigger)
		case err != nil:
			s.logger.Warn("scheduled pass interrupted", "run_id", report.RunID, "error", err)
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
