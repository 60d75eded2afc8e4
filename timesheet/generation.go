/*
generation.go - Calendar fill for missing days

PURPOSE:
  Walks a calendar period and creates exactly one entry for every day
  that has none yet. Occupied days are never touched.

STRATEGIES:
  Monthly: the current month (from the clock). Working days of the
           user's week get a default work entry; other days are skipped.
  Yearly:  a full year. Per day, first match wins:
             1. public holiday   -> Holiday entry, note = holiday name
             2. Saturday/Sunday  -> Weekend entry, note = weekday
             3. otherwise        -> default work entry

IDEMPOTENCY:
  Occupied dates are read once at the start of a run. A second run over
  a filled period creates nothing.

RACE CONDITION:
  The occupied-date snapshot is not a lock. Two concurrent runs for the
  same user and period can both see a day as free and both insert it.
  The engine does not serialize them; the storage uniqueness constraint
  on (user, work date) makes the losing batch fail with
  ErrDuplicateEntry, and its transaction rolls back as a whole.

SEE ALSO:
  - factory.go: CreateDefaultEntry, CreateWeekendEntry, CreateHolidayEntry
  - holiday.go: HolidayLookup and its cache
*/
package timesheet

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/warp/timesheet-engine/holiday"
)

// GenerationStore is the persistence slice generation needs.
type GenerationStore interface {
	ExistingDatesInRange(ctx context.Context, userID UserID, from, to Date) (DateSet, error)
	InsertBatch(ctx context.Context, entries []TimeEntry) error
	GetUser(ctx context.Context, id UserID) (*User, error)
}

// GenerationEngine fills calendar periods with generated entries.
type GenerationEngine struct {
	Store    GenerationStore
	Factory  *EntryFactory
	Expected ExpectedHoursLookup
	Holidays HolidayLookup
	Config   Config
	Clock    Clock
	Logger   *zap.Logger
}

// GenerationResult summarizes one run.
type GenerationResult struct {
	UserID  UserID      `json:"user_id"`
	Period  Period      `json:"period"`
	Created int         `json:"created"`
	Skipped int         `json:"skipped"`
	Entries []TimeEntry `json:"-"`
}

// dayPlan decides the entry for a free day; ok=false leaves it empty.
type dayPlan func(d Date) (entry TimeEntry, ok bool)

// GenerateMonthly fills the current month with default work entries on
// the user's working days.
func (g *GenerationEngine) GenerateMonthly(ctx context.Context, userID UserID) (GenerationResult, error) {
	now := g.Clock.now()
	period := MonthPeriod(now.Year(), now.Month())

	user, cfg, err := g.userConfig(ctx, userID)
	if err != nil {
		return GenerationResult{}, err
	}

	return g.run(ctx, user.ID, period, func(d Date) (TimeEntry, bool) {
		if !IsWorkingDay(d, cfg.WorkingDaysPerWeek) {
			return TimeEntry{}, false
		}
		return g.Factory.CreateDefaultEntry(user.ID, d, cfg), true
	})
}

// GenerateYearly fills a whole year with holiday, weekend and default
// work entries. An empty stateCode uses the user's state, then the
// configured default.
func (g *GenerationEngine) GenerateYearly(ctx context.Context, userID UserID, year int, stateCode string) (GenerationResult, error) {
	if err := g.Config.validateYear(year); err != nil {
		return GenerationResult{}, err
	}

	user, cfg, err := g.userConfig(ctx, userID)
	if err != nil {
		return GenerationResult{}, err
	}

	state := stateCode
	if state == "" {
		state = user.StateCode
	}
	if state == "" {
		state = g.Config.DefaultStateCode
	}
	if !holiday.ValidStateCode(state) {
		return GenerationResult{}, validationErr("state_code", "unknown state code %q", state)
	}

	holidays := map[string]string{}
	if g.Holidays != nil {
		holidays = g.Holidays.Holidays(ctx, year, state)
	}

	return g.run(ctx, user.ID, YearPeriod(year), func(d Date) (TimeEntry, bool) {
		if name, ok := holidays[d.String()]; ok {
			return g.Factory.CreateHolidayEntry(user.ID, d, name), true
		}
		if d.IsWeekend() {
			return g.Factory.CreateWeekendEntry(user.ID, d), true
		}
		return g.Factory.CreateDefaultEntry(user.ID, d, cfg), true
	})
}

// userConfig loads the user with freshly derived expected hours.
func (g *GenerationEngine) userConfig(ctx context.Context, userID UserID) (*User, UserConfig, error) {
	user, err := g.Store.GetUser(ctx, userID)
	if err != nil {
		return nil, UserConfig{}, fmt.Errorf("load user %s: %w", userID, err)
	}
	if user == nil {
		return nil, UserConfig{}, &NotFoundError{Kind: "user", IDs: []string{string(userID)}}
	}
	cfg := user.Config()
	if g.Expected != nil {
		expected, err := g.Expected.ExpectedDailyHours(ctx, userID)
		if err != nil {
			return nil, UserConfig{}, err
		}
		cfg.ExpectedDailyHours = expected
	}
	return user, cfg, nil
}

func (g *GenerationEngine) run(ctx context.Context, userID UserID, period Period, plan dayPlan) (GenerationResult, error) {
	result := GenerationResult{UserID: userID, Period: period}
	started := time.Now()

	existing, err := g.Store.ExistingDatesInRange(ctx, userID, period.Start, period.End)
	if err != nil {
		return result, fmt.Errorf("load existing dates: %w", err)
	}

	var batch []TimeEntry
	for _, day := range period.Days() {
		if existing.Contains(day) {
			result.Skipped++
			continue
		}
		if entry, ok := plan(day); ok {
			batch = append(batch, entry)
		}
	}

	if len(batch) > 0 {
		if err := g.Store.InsertBatch(ctx, batch); err != nil {
			return result, fmt.Errorf("insert generated entries: %w", err)
		}
	}
	result.Created = len(batch)
	result.Entries = batch

	g.logger().Info("generated entries",
		zap.String("user", string(userID)),
		zap.String("period", period.String()),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Duration("took", time.Since(started)))
	return result, nil
}

func (g *GenerationEngine) logger() *zap.Logger {
	if g.Logger == nil {
		return zap.NewNop()
	}
	return g.Logger
}
