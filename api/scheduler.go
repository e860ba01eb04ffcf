/*
scheduler.go - Periodic leave auto-credit

PURPOSE:
  Runs the roster-wide rule pass (leave.Evaluator.CreditAll) on a fixed
  interval and records every run in the run log, so balances follow the
  rule catalog without anyone pressing a button.

DESIGN:
  - One background goroutine driven by a ticker; the first pass runs
    immediately on Start
  - At most one batch runs at a time; a manual RunNow waits for an
    in-flight tick to finish
  - Each run is saved twice: as "running" before the batch starts and
    with its final summary afterwards
  - Stop cancels the context of an in-flight batch; the batch stops
    between employees and the run is recorded as canceled

CONFIGURATION:
  - Interval: AUTO_CREDIT_INTERVAL (default 24h)
  - Enabled: AUTO_CREDIT_ENABLED (default false); a disabled scheduler
    still serves RunNow for POST /api/admin/auto-credit

USAGE:
  scheduler := NewAutoCreditScheduler(evaluator, store, loc, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - leave/credit.go: CreditAll
  - handlers.go: TriggerAutoCredit (manual run)
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/leave"
)

// AutoCreditScheduler handles periodic roster-wide leave credit.
type AutoCreditScheduler struct {
	Evaluator *leave.Evaluator
	Runs      leave.RunLog
	Location  *time.Location
	Interval  time.Duration
	Enabled   bool
	Logger    *slog.Logger

	ticker *time.Ticker
	stop   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex // guards Start/Stop
	runMu  sync.Mutex // one batch at a time
}

func NewAutoCreditScheduler(evaluator *leave.Evaluator, runs leave.RunLog, loc *time.Location, logger *slog.Logger) *AutoCreditScheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AutoCreditScheduler{
		Evaluator: evaluator,
		Runs:      runs,
		Location:  loc,
		Interval:  24 * time.Hour,
		Logger:    logger,
	}
}

// Start begins the scheduler. It is a no-op when disabled or already started.
func (s *AutoCreditScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info("auto-credit scheduler disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.stop = make(chan struct{})
	s.ticker = time.NewTicker(s.Interval)
	s.wg.Add(1)

	go s.run(ctx)

	s.Logger.Info("auto-credit scheduler started", slog.Duration("interval", s.Interval))
}

// Stop stops the scheduler and waits for an in-flight batch to return.
func (s *AutoCreditScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	s.cancel()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	s.Logger.Info("auto-credit scheduler stopped")
}

func (s *AutoCreditScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	s.tick(ctx)

	for {
		select {
		case <-s.ticker.C:
			s.tick(ctx)
		case <-s.stop:
			return
		}
	}
}

func (s *AutoCreditScheduler) tick(ctx context.Context) {
	if _, err := s.RunNow(ctx, generic.Today(s.Location)); err != nil {
		s.Logger.Error("scheduled auto-credit failed", slog.Any("error", err))
	}
}

// RunNow runs one batch as of asOf and records it in the run log.
func (s *AutoCreditScheduler) RunNow(ctx context.Context, asOf generic.TimePoint) (leave.CreditRun, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	runID := uuid.NewString()
	started := leave.CreditRun{ID: runID, AsOf: asOf, Status: leave.RunRunning, StartedAt: time.Now()}
	if err := s.Runs.SaveCreditRun(ctx, started); err != nil {
		return started, err
	}

	run, err := s.Evaluator.CreditAll(ctx, runID, asOf)

	// The final status is recorded even when ctx was canceled mid-batch.
	if saveErr := s.Runs.SaveCreditRun(context.WithoutCancel(ctx), run); saveErr != nil {
		s.Logger.Error("failed to record auto-credit run",
			slog.String("run", runID),
			slog.Any("error", saveErr),
		)
		if err == nil {
			err = saveErr
		}
	}
	return run, err
}

// LastRun returns the most recent recorded run, if any.
func (s *AutoCreditScheduler) LastRun(ctx context.Context) (leave.CreditRun, bool, error) {
	runs, err := s.Runs.CreditRuns(ctx, 1)
	if err != nil || len(runs) == 0 {
		return leave.CreditRun{}, false, err
	}
	return runs[0], true, nil
}

// NextRunTime returns when the next scheduled batch is due. ok is false
// when the scheduler is not running.
func (s *AutoCreditScheduler) NextRunTime(ctx context.Context) (time.Time, bool) {
	s.mu.Lock()
	running := s.ticker != nil
	s.mu.Unlock()
	if !running {
		return time.Time{}, false
	}

	last, ok, err := s.LastRun(ctx)
	if err != nil || !ok {
		return time.Now().Add(s.Interval), true
	}
	return last.StartedAt.Add(s.Interval), true
}
