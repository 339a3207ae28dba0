/*
scheduler.go - Automated period rollover scheduler

PURPOSE:
  Periodically resolves the budget settings so the stored period moves to
  the new calendar month even when no client reads the settings.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Compares the stored period with the clock before resolving
  - Resolve is idempotent, so extra checks within a month write nothing
  - Records every check for audit and UI display when a RunLog is set

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewPeriodScheduler(ledger, runs, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - ledger/resolver.go: PeriodResolver
  - handlers.go: TriggerPeriodCheck endpoint (manual check)
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/budget-engine/ledger"
	"github.com/warp/budget-engine/store/sqlite"
)

// PeriodScheduler rolls the budget period over in the background.
type PeriodScheduler struct {
	Ledger        *ledger.Ledger
	Resolver      *ledger.PeriodResolver
	Runs          RunLog // optional
	CheckInterval time.Duration
	Enabled       bool

	logger *slog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPeriodScheduler creates a new scheduler. runs may be nil.
func NewPeriodScheduler(l *ledger.Ledger, runs RunLog, logger *slog.Logger) *PeriodScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PeriodScheduler{
		Ledger:        l,
		Resolver:      ledger.NewPeriodResolver(l),
		Runs:          runs,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		logger:        logger.With("component", "scheduler"),
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (ps *PeriodScheduler) Start() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.Enabled {
		ps.logger.Info("disabled, not starting")
		return
	}
	if ps.ticker != nil {
		return
	}

	ps.ticker = time.NewTicker(ps.CheckInterval)
	ps.wg.Add(1)

	go ps.run()

	ps.logger.Info("started", "interval", ps.CheckInterval)
}

// Stop stops the scheduler and waits for an in-flight check.
func (ps *PeriodScheduler) Stop() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.ticker != nil {
		ps.ticker.Stop()
		close(ps.stop)
		ps.wg.Wait()
		ps.ticker = nil
		ps.stop = make(chan struct{})
		ps.logger.Info("stopped")
	}
}

func (ps *PeriodScheduler) run() {
	defer ps.wg.Done()

	// Run immediately on start
	ps.check(context.Background())

	for {
		select {
		case <-ps.ticker.C:
			ps.check(context.Background())
		case <-ps.stop:
			return
		}
	}
}

// check resolves the settings period and records the outcome.
func (ps *PeriodScheduler) check(ctx context.Context) sqlite.PeriodRun {
	run := sqlite.PeriodRun{
		ID:            uuid.NewString(),
		CheckedAt:     ps.Ledger.Clock().Now().UTC(),
		CurrentPeriod: ps.Resolver.Current().String(),
	}

	before, err := ps.Ledger.Settings(ctx)
	if err == nil {
		run.PreviousPeriod = before.Period.String()
		var after ledger.BudgetSettings
		after, err = ps.Resolver.Resolve(ctx)
		if err == nil {
			run.CurrentPeriod = after.Period.String()
			run.Rolled = before.Period != after.Period
		}
	}
	if err != nil {
		run.Error = err.Error()
		ps.logger.Error("period check failed", "error", err)
	} else if run.Rolled {
		ps.logger.Info("period rolled over", "from", run.PreviousPeriod, "to", run.CurrentPeriod)
	} else {
		ps.logger.Debug("period unchanged", "period", run.CurrentPeriod)
	}

	if ps.Runs != nil {
		if err := ps.Runs.SavePeriodRun(ctx, run); err != nil {
			ps.logger.Warn("failed to record period run", "error", err)
		}
	}
	return run
}

// RunNow triggers an immediate check (for testing/admin).
func (ps *PeriodScheduler) RunNow(ctx context.Context) sqlite.PeriodRun {
	return ps.check(ctx)
}

// GetNextRunTime returns when the next scheduled check will occur.
func (ps *PeriodScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(ps.CheckInterval)
}
