package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"budget/internal/log"
	"budget/internal/services"
)

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// Scheduler runs named jobs on cron schedules. Overlapping runs of the same
// job are skipped.
type Scheduler struct {
	cron    *cron.Cron
	logger  *log.Logger
	timeout time.Duration

	mu   sync.Mutex
	jobs map[string]Job
}

func NewScheduler(timeout time.Duration, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Discard()
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:  logger.WithComponent(log.ComponentScheduler),
		timeout: timeout,
		jobs:    make(map[string]Job),
	}
}

// Add registers job under name on a standard cron spec or descriptor.
func (s *Scheduler) Add(name, spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[name]; dup {
		return fmt.Errorf("job %q already registered", name)
	}
	if _, err := s.cron.AddFunc(spec, func() { s.run(context.Background(), name, job) }); err != nil {
		return fmt.Errorf("schedule %q (%s): %w", name, spec, err)
	}
	s.jobs[name] = job
	s.logger.Info("Job scheduled", "job", name, "schedule", spec)
	return nil
}

// RunNow runs a registered job synchronously, e.g. once at startup.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return s.run(ctx, name, job)
}

func (s *Scheduler) run(ctx context.Context, name string, job Job) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := job(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Scheduled job failed", "job", name, log.FieldError, err,
			log.FieldDuration, time.Since(start).Milliseconds())
		return err
	}
	s.logger.InfoContext(ctx, "Scheduled job complete", "job", name,
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AccountsReconciler is satisfied by *services.Reconciler.
type AccountsReconciler interface {
	ReconcileAll(ctx context.Context) ([]services.Reconciliation, error)
}

// ReconcileJob recomputes every balance and logs the accounts that drifted.
func ReconcileJob(r AccountsReconciler, logger *log.Logger) Job {
	if logger == nil {
		logger = log.Discard()
	}
	return func(ctx context.Context) error {
		results, err := r.ReconcileAll(ctx)
		fixed := 0
		for _, res := range results {
			if res.Fixed {
				fixed++
				logger.WarnContext(ctx, "Balance drift corrected",
					log.FieldAccountID, res.AccountID,
					"drift", res.Drift.String(),
					log.FieldCurrency, res.Currency)
			}
		}
		logger.InfoContext(ctx, "Reconciliation pass finished",
			log.FieldOperation, log.OpReconcile,
			"accounts", len(results),
			"fixed", fixed)
		if err != nil {
			return fmt.Errorf("reconcile accounts: %w", err)
		}
		return nil
	}
}
