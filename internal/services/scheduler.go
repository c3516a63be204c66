package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Runner executes one aggregation run.
type Runner interface {
	Run(ctx context.Context) (*RunReport, error)
}

// SchedulerConfig holds configuration for the run scheduler
type SchedulerConfig struct {
	// Interval between runs (default: 24h)
	Interval time.Duration

	// RunTimeout bounds a single run; zero means no bound (default: 0)
	RunTimeout time.Duration

	// OnReport is called after every run, including failed ones
	OnReport func(*RunReport, error)
}

// DefaultSchedulerConfig returns sensible defaults
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval: 24 * time.Hour,
	}
}

// Scheduler runs the job immediately and then on every interval tick.
// Runs never overlap.
type Scheduler struct {
	runner Runner
	config SchedulerConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	runs    int
}

func NewScheduler(runner Runner, config SchedulerConfig) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultSchedulerConfig().Interval
	}
	return &Scheduler{runner: runner, config: config}
}

// Start begins the scheduling loop. Returns an error if already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	slog.InfoContext(ctx, "Scheduler started", "interval", s.config.Interval)
	return nil
}

// Stop signals the loop and waits for the current run to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	close(s.stopCh)

	select {
	case <-s.doneCh:
		slog.InfoContext(ctx, "Scheduler stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Scheduler stop timed out")
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return nil
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Runs returns how many runs completed so far.
func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

func (s *Scheduler) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Run immediately on startup
	s.runOnce(ctx)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// runOnce executes a single run with the configured timeout and reports it.
func (s *Scheduler) runOnce(ctx context.Context) {
	runCtx := ctx
	if s.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.config.RunTimeout)
		defer cancel()
	}

	report, err := s.runner.Run(runCtx)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		slog.ErrorContext(ctx, "Aggregation run timed out", "timeout", s.config.RunTimeout, "error", err)
	case err != nil:
		slog.ErrorContext(ctx, "Aggregation run failed", "error", err)
	}

	s.mu.Lock()
	s.runs++
	s.mu.Unlock()

	if s.config.OnReport != nil {
		s.config.OnReport(report, err)
	}
}
