package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timesheet-engine/store/sqlite"
	"github.com/warp/timesheet-engine/timesheet"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func entry(id, user, date string) timesheet.TimeEntry {
	return timesheet.TimeEntry{
		ID:                 timesheet.EntryID(id),
		UserID:             timesheet.UserID(user),
		WorkDate:           timesheet.MustParseDate(date),
		EntryType:          timesheet.EntryWork,
		StartTime:          "08:00:00",
		EndTime:            "16:30:00",
		BreakMinutes:       30,
		DurationHoursGross: decimal.RequireFromString("8.5"),
		DurationHoursNet:   decimal.RequireFromString("8"),
		OvertimeHours:      decimal.RequireFromString("0.2"),
		UndertimeHours:     decimal.Zero,
		ExpectedDailyHours: decimal.RequireFromString("7.8"),
		Status:             timesheet.StatusOpen,
		Source:             timesheet.SourceManual,
		CreatedAt:          time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		UpdatedAt:          time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestStore_InsertAndRead(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	e := entry("e-1", "u-1", "2025-03-10")
	e.ProjectID = "P-1"
	require.NoError(t, s.Insert(ctx, e))

	got, err := s.GetByID(ctx, "e-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "2025-03-10", got.WorkDate.String())
	assert.True(t, got.DurationHoursNet.Equal(decimal.NewFromInt(8)))
	assert.True(t, got.ExpectedDailyHours.Equal(decimal.RequireFromString("7.8")))
	assert.Equal(t, "P-1", got.ProjectID)
	assert.Equal(t, e.CreatedAt, got.CreatedAt)

	missing, err := s.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_UniqueEntryPerDay(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.Insert(ctx, entry("e-1", "u-1", "2025-03-10")))

	err := s.Insert(ctx, entry("e-2", "u-1", "2025-03-10"))
	assert.True(t, errors.Is(err, timesheet.ErrDuplicateEntry))

	// another user may use the same day
	assert.NoError(t, s.Insert(ctx, entry("e-3", "u-2", "2025-03-10")))

	other, err := s.EntryByUserAndDate(ctx, "u-1", timesheet.MustParseDate("2025-03-10"), "e-1")
	require.NoError(t, err)
	assert.Nil(t, other)

	found, err := s.EntryByUserAndDate(ctx, "u-1", timesheet.MustParseDate("2025-03-10"), "")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, timesheet.EntryID("e-1"), found.ID)
}

func TestStore_InsertBatchIsAtomic(t *testing.T) {
	// GIVEN: an existing entry on 2025-03-11
	// WHEN: a batch containing that day is inserted
	// THEN: the batch fails with ErrDuplicateEntry and none of its rows persist

	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.Insert(ctx, entry("e-0", "u-1", "2025-03-11")))

	err := s.InsertBatch(ctx, []timesheet.TimeEntry{
		entry("e-1", "u-1", "2025-03-10"),
		entry("e-2", "u-1", "2025-03-11"),
	})
	assert.True(t, errors.Is(err, timesheet.ErrDuplicateEntry))

	dates, err := s.ExistingDatesInRange(ctx, "u-1",
		timesheet.MustParseDate("2025-03-01"), timesheet.MustParseDate("2025-03-31"))
	require.NoError(t, err)
	assert.Len(t, dates, 1)
	assert.True(t, dates.Contains(timesheet.MustParseDate("2025-03-11")))
}

func TestStore_RangeQueriesAndUpdates(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.InsertBatch(ctx, []timesheet.TimeEntry{
		entry("e-2", "u-1", "2025-03-12"),
		entry("e-1", "u-1", "2025-03-10"),
		entry("e-3", "u-1", "2025-04-01"),
	}))

	march, err := s.EntriesInRange(ctx, "u-1",
		timesheet.MustParseDate("2025-03-01"), timesheet.MustParseDate("2025-03-31"))
	require.NoError(t, err)
	require.Len(t, march, 2)
	assert.Equal(t, timesheet.EntryID("e-1"), march[0].ID)

	all, err := s.EntriesForUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	e := march[0]
	e.Note = "moved"
	e.WorkDate = timesheet.MustParseDate("2025-03-11")
	require.NoError(t, s.Update(ctx, e))

	e.WorkDate = timesheet.MustParseDate("2025-03-12")
	assert.True(t, errors.Is(s.Update(ctx, e), timesheet.ErrDuplicateEntry))

	ghost := entry("ghost", "u-1", "2025-05-01")
	assert.True(t, timesheet.IsNotFound(s.Update(ctx, ghost)))

	require.NoError(t, s.UpdateStatusBatch(ctx, []timesheet.EntryID{"e-1", "e-2"}, timesheet.StatusDone))
	got, err := s.GetByIDs(ctx, []timesheet.EntryID{"e-1", "e-2", "missing"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, g := range got {
		assert.Equal(t, timesheet.StatusDone, g.Status)
	}
	assert.Equal(t, "moved", got[0].Note)
}

func TestStore_Users(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	u, err := s.GetUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Nil(t, u)

	require.NoError(t, s.SaveUser(ctx, timesheet.User{
		ID: "u-1", Name: "Ada", WeeklyHours: decimal.NewFromInt(39), WorkingDaysPerWeek: 5, StateCode: "BY",
	}))
	require.NoError(t, s.UpdateExpectedDailyHours(ctx, "u-1", decimal.RequireFromString("7.8")))

	u, err = s.GetUser(ctx, "u-1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.True(t, u.ExpectedDailyHours.Equal(decimal.RequireFromString("7.8")))
	assert.Equal(t, "BY", u.StateCode)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	assert.True(t, timesheet.IsNotFound(s.UpdateExpectedDailyHours(ctx, "u-9", decimal.Zero)))
}

func TestStore_StatusCatalog(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	seeded, err := s.StatusMapByCodes(ctx, timesheet.Statuses())
	require.NoError(t, err)
	assert.Equal(t, timesheet.DefaultStatusCatalog(), seeded)

	narrowed := timesheet.DefaultStatusCatalog()
	done := narrowed[timesheet.StatusDone]
	done.AllowReleaseAction = false
	narrowed[timesheet.StatusDone] = done
	require.NoError(t, s.SaveStatuses(ctx, narrowed))

	got, err := s.StatusMapByCodes(ctx, []timesheet.Status{timesheet.StatusDone})
	require.NoError(t, err)
	assert.False(t, got[timesheet.StatusDone].AllowReleaseAction)

	broken := timesheet.DefaultStatusCatalog()
	delete(broken, timesheet.StatusOpen)
	assert.True(t, timesheet.IsValidation(s.SaveStatuses(ctx, broken)))
}

func TestStore_References(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.AddReference(ctx, timesheet.RefProject, "P-1", "Website"))

	ok, err := s.ReferenceExists(ctx, timesheet.RefProject, "P-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ReferenceExists(ctx, timesheet.RefActivity, "P-1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.ReferenceCheckers().Projects.Exists(ctx, "P-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_WithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx timesheet.Store) error {
		require.NoError(t, tx.Insert(ctx, entry("e-1", "u-1", "2025-03-10")))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetByID(ctx, "e-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.WithTx(ctx, func(tx timesheet.Store) error {
		return tx.InsertBatch(ctx, []timesheet.TimeEntry{entry("e-1", "u-1", "2025-03-10")})
	}))
	got, err = s.GetByID(ctx, "e-1")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestStore_DrivesEngine(t *testing.T) {
	// GIVEN: a user in the SQLite store
	// WHEN: the engine generates a month inside a transaction
	// THEN: the generated rows are readable through the store

	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.SaveUser(ctx, timesheet.User{
		ID: "u-1", WeeklyHours: decimal.NewFromInt(40), WorkingDaysPerWeek: 5, StateCode: "BY",
	}))

	var res timesheet.GenerationResult
	err := s.WithTx(ctx, func(tx timesheet.Store) error {
		engine := timesheet.NewEngine(tx, timesheet.Dependencies{
			Config: timesheet.DefaultConfig(),
			Clock: func() time.Time { return time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC) },
		})
		var err error
		res, err = engine.Generation.GenerateMonthly(ctx, "u-1")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 21, res.Created)

	all, err := s.EntriesForUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Len(t, all, 21)
}
