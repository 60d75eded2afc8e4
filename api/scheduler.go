/*
scheduler.go - Automated monthly generation scheduler

PURPOSE:
  Periodically fills the current month of every stored user with default
  work entries, so employees start from a prefilled timesheet.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each user is generated in its own transaction
  - Generation is idempotent: days that already have an entry are skipped
  - A failing user is logged and skipped; the others still run
  - A losing race against a concurrent run surfaces as ErrDuplicateEntry
    and is retried on the next tick

USAGE:
  scheduler := NewGenerationScheduler(store, deps)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: GenerateMonth endpoint (manual generation)
  - timesheet/generation.go: GenerationEngine
*/
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/timesheet-engine/timesheet"
)

// GenerationScheduler runs monthly generation for all users.
type GenerationScheduler struct {
	Store         timesheet.TxStore
	Deps          timesheet.Dependencies
	CheckInterval time.Duration
	Enabled       bool
	Logger        *zap.Logger

	ticker *time.Ticker
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex

	nextMu  sync.Mutex
	nextRun time.Time
}

// RunSummary counts the outcome of one scheduler pass.
type RunSummary struct {
	Users   int
	Created int
	Skipped int
	Failed  int
}

// NewGenerationScheduler creates a new scheduler.
func NewGenerationScheduler(store timesheet.TxStore, deps timesheet.Dependencies) *GenerationScheduler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationScheduler{
		Store:         store,
		Deps:          deps,
		CheckInterval: 24 * time.Hour,
		Enabled:       true,
		Logger:        logger,
	}
}

// Start begins the scheduler.
func (gs *GenerationScheduler) Start() {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if !gs.Enabled {
		gs.Logger.Info("generation scheduler disabled, not starting")
		return
	}
	if gs.ticker != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	gs.ticker = time.NewTicker(gs.CheckInterval)
	gs.cancel = cancel
	gs.setNextRun(time.Now().Add(gs.CheckInterval))
	gs.wg.Add(1)

	go gs.run(ctx, gs.ticker)

	gs.Logger.Info("generation scheduler started", zap.Duration("interval", gs.CheckInterval))
}

// Stop cancels a running pass and waits for it to return.
func (gs *GenerationScheduler) Stop() {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if gs.ticker != nil {
		gs.ticker.Stop()
		gs.cancel()
		gs.wg.Wait()
		gs.ticker = nil
		gs.cancel = nil
		gs.setNextRun(time.Time{})
		gs.Logger.Info("generation scheduler stopped")
	}
}

func (gs *GenerationScheduler) run(ctx context.Context, ticker *time.Ticker) {
	defer gs.wg.Done()

	// Run immediately on start
	gs.RunNow(ctx)

	for {
		select {
		case <-ticker.C:
			gs.setNextRun(time.Now().Add(gs.CheckInterval))
			gs.RunNow(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunNow generates the current month for every user.
func (gs *GenerationScheduler) RunNow(ctx context.Context) RunSummary {
	var summary RunSummary

	users, err := gs.Store.ListUsers(ctx)
	if err != nil {
		gs.Logger.Error("list users for generation", zap.Error(err))
		return summary
	}

	for _, u := range users {
		if ctx.Err() != nil {
			gs.Logger.Info("generation pass cancelled", zap.Int("remaining", len(users)-summary.Users))
			break
		}
		summary.Users++

		var result timesheet.GenerationResult
		err := gs.Store.WithTx(ctx, func(s timesheet.Store) error {
			var err error
			result, err = timesheet.NewEngine(s, gs.Deps).Generation.GenerateMonthly(ctx, u.ID)
			return err
		})
		if err != nil {
			summary.Failed++
			level := gs.Logger.Error
			if errors.Is(err, timesheet.ErrDuplicateEntry) {
				level = gs.Logger.Warn
			}
			level("scheduled generation failed", zap.String("user_id", string(u.ID)), zap.Error(err))
			continue
		}
		summary.Created += result.Created
		summary.Skipped += result.Skipped
	}

	if summary.Created > 0 || summary.Failed > 0 {
		gs.Logger.Info("scheduled generation completed",
			zap.Int("users", summary.Users),
			zap.Int("created", summary.Created),
			zap.Int("skipped", summary.Skipped),
			zap.Int("failed", summary.Failed))
	}
	return summary
}

// NextRunTime returns when the next scheduled pass will occur, or the
// zero time when the scheduler is not running.
func (gs *GenerationScheduler) NextRunTime() time.Time {
	gs.nextMu.Lock()
	defer gs.nextMu.Unlock()
	return gs.nextRun
}

func (gs *GenerationScheduler) setNextRun(t time.Time) {
	gs.nextMu.Lock()
	gs.nextRun = t
	gs.nextMu.Unlock()
}
