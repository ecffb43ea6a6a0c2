// Package cron runs the periodic full resync. Realtime events keep the
// cache fresh while the socket is healthy; the resync schedule is the
// safety net for anything missed in between.
package cron

import (
	"context"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// cronParser parses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow,
)

// ResyncFunc pulls authoritative state from the server.
type ResyncFunc func(ctx context.Context) error

// Config holds the dependencies for the resync scheduler.
type Config struct {
	// Expr is the 5-field cron expression driving resyncs.
	Expr   string
	Resync ResyncFunc
	Logger *slog.Logger
	// Interval is the tick interval at which due schedules are checked.
	// Defaults to 30 seconds if zero.
	Interval time.Duration
}

// Scheduler fires the resync whenever the cron schedule comes due.
type Scheduler struct {
	expr     string
	resync   ResyncFunc
	logger   *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	nextRun time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a Scheduler. The expression is validated up front so
// a config typo fails at startup, not at 3am.
func NewScheduler(cfg Config) (*Scheduler, error) {
	if _, err := cronParser.Parse(cfg.Expr); err != nil {
		return nil, err
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		expr:     cfg.Expr,
		resync:   cfg.Resync,
		logger:   logger,
		interval: interval,
	}, nil
}

// Start begins the scheduler loop. It runs in a background goroutine
// and respects the provided context for shutdown.
func (s *Scheduler) Start(ctx context.Context) {
	next, _ := NextRunTime(s.expr, time.Now())
	s.mu.Lock()
	s.nextRun = next
	s.mu.Unlock()

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("resync scheduler started", "expr", s.expr, "next_run_at", next)
}

// Stop cancels the scheduler loop and waits for it to exit.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("resync scheduler stopped")
}

// NextRun returns the next scheduled resync time.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRun
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, time.Now())
		}
	}
}

// tick fires the resync when the schedule is due and advances the next run.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	due := !s.nextRun.IsZero() && !now.Before(s.nextRun)
	s.mu.Unlock()
	if !due {
		return
	}

	if err := s.resync(ctx); err != nil {
		// Leave nextRun as-is: the next tick retries instead of waiting a
		// whole schedule period with a stale cache.
		s.logger.Error("scheduled resync failed", "error", err)
		return
	}

	next, err := NextRunTime(s.expr, now)
	if err != nil {
		s.logger.Error("failed to compute next resync time", "expr", s.expr, "error", err)
		return
	}
	s.mu.Lock()
	s.nextRun = next
	s.mu.Unlock()
	s.logger.Info("scheduled resync completed", "next_run_at", next)
}

// NextRunTime parses the cron expression and returns the next run time after the given time.
func NextRunTime(cronExpr string, after time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(after), nil
}
