/*
handlers_test.go - HTTP tests for API handlers

Tests for:
- Entry create/read/update and the error mapping (400/404/409)
- Status actions through HTTP
- Generation, balances and the xlsx export
- Generation scheduler passes
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/timesheet-engine/export"
	"github.com/warp/timesheet-engine/store/sqlite"
	"github.com/warp/timesheet-engine/timesheet"
)

type apiFixture struct {
	store  *sqlite.Store
	deps   timesheet.Dependencies
	router http.Handler
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.SaveUser(context.Background(), timesheet.User{
		ID: "u-1", Name: "Ada", WeeklyHours: decimal.NewFromInt(39), WorkingDaysPerWeek: 5, StateCode: "BY",
	}))

	seq := 0
	deps := timesheet.Dependencies{
		Config: timesheet.DefaultConfig(),
		Clock:  func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) },
		NewID: func() timesheet.EntryID {
			seq++
			return timesheet.EntryID(fmt.Sprintf("e-%d", seq))
		},
	}
	return &apiFixture{
		store:  store,
		deps:   deps,
		router: NewRouter(NewHandler(store, deps), RouterOptions{}),
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func workDay(date string) map[string]any {
	return map[string]any{
		"user_id":       "u-1",
		"work_date":     date,
		"entry_type":    "work",
		"start_time":    "08:00",
		"end_time":      "16:30",
		"break_minutes": 30,
	}
}

func TestCreateEntry_ComputesHours(t *testing.T) {
	// GIVEN: a user with a 39h / 5 day contract (7.8h per day)
	// WHEN: a work entry 08:00-16:30 with 30 minutes break is posted
	// THEN: 8h net and 0.2h overtime are stored as an open manual entry

	f := newAPIFixture(t)
	rec := f.do(t, http.MethodPost, "/api/entries", workDay("2025-03-10"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	entry := decode[EntryDTO](t, rec)
	assert.Equal(t, "e-1", entry.ID)
	assert.True(t, entry.DurationHoursNet.Equal(decimal.NewFromInt(8)))
	assert.True(t, entry.OvertimeHours.Equal(decimal.RequireFromString("0.2")))
	assert.Equal(t, "open", entry.Status)
	assert.Equal(t, "manual", entry.Source)

	got := f.do(t, http.MethodGet, "/api/entries/e-1", nil)
	assert.Equal(t, http.StatusOK, got.Code)
}

func TestCreateEntry_ErrorMapping(t *testing.T) {
	f := newAPIFixture(t)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/entries", workDay("2025-03-10")).Code)

	t.Run("duplicate day is 409 with the existing id", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/entries", workDay("2025-03-10"))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, []string{"e-1"}, decode[ErrorResponse](t, rec).EntryIDs)
	})

	t.Run("missing clock time is 400", func(t *testing.T) {
		body := workDay("2025-03-11")
		delete(body, "end_time")
		rec := f.do(t, http.MethodPost, "/api/entries", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "end_time", decode[ErrorResponse](t, rec).Field)
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/entries", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown entry is 404", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/entries/nope", nil).Code)
	})

	t.Run("delete is always 409", func(t *testing.T) {
		assert.Equal(t, http.StatusConflict, f.do(t, http.MethodDelete, "/api/entries/e-1", nil).Code)
	})
}

func TestStatusActions_ThroughHTTP(t *testing.T) {
	// GIVEN: an open entry
	// WHEN: it is marked done, released, then edited
	// THEN: the actions succeed and the edit of the released entry is 409

	f := newAPIFixture(t)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/entries", workDay("2025-03-10")).Code)

	// release before done is refused
	rec := f.do(t, http.MethodPost, "/api/entries/release", StatusActionRequest{IDs: []timesheet.EntryID{"e-1"}})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/entries/done", StatusActionRequest{IDs: []timesheet.EntryID{"e-1"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []timesheet.EntryID{"e-1"}, decode[timesheet.StatusResult](t, rec).Updated)

	rec = f.do(t, http.MethodPost, "/api/entries/release", StatusActionRequest{IDs: []timesheet.EntryID{"e-1"}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPatch, "/api/entries/e-1", map[string]any{"note": "late edit"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/entries/done", StatusActionRequest{IDs: []timesheet.EntryID{"missing"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateEntry_Recalculates(t *testing.T) {
	f := newAPIFixture(t)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/entries", workDay("2025-03-10")).Code)

	rec := f.do(t, http.MethodPatch, "/api/entries/e-1", map[string]any{"end_time": "15:30"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	entry := decode[EntryDTO](t, rec)
	assert.True(t, entry.DurationHoursNet.Equal(decimal.NewFromInt(7)))
	assert.True(t, entry.UndertimeHours.Equal(decimal.RequireFromString("0.8")))
}

func TestUsers_SaveDerivesExpectedHours(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/users", SaveUserRequest{
		ID: "u-2", Name: "Grace", WeeklyHours: decimal.NewFromInt(32), WorkingDaysPerWeek: 4, StateCode: "BE",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[UserDTO](t, rec).ExpectedDailyHours.Equal(decimal.NewFromInt(8)))

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/users/u-2", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/users/u-9", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/users", SaveUserRequest{}).Code)
}

func TestGenerationAndBalances(t *testing.T) {
	// GIVEN: an empty March 2025 (clock on 2025-03-10)
	// WHEN: the month is generated twice and the balance requested
	// THEN: 21 working days are created once and the balance is neutral

	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/users/u-1/generate/month", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 21, decode[timesheet.GenerationResult](t, rec).Created)

	rec = f.do(t, http.MethodPost, "/api/users/u-1/generate/month", nil)
	again := decode[timesheet.GenerationResult](t, rec)
	assert.Equal(t, 0, again.Created)
	assert.Equal(t, 21, again.Skipped)

	rec = f.do(t, http.MethodGet, "/api/users/u-1/balance/month/2025/3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	month := decode[timesheet.MonthlyBalance](t, rec)
	assert.Equal(t, 21, month.WorkingDays)
	assert.True(t, month.BalanceHours.IsZero())

	rec = f.do(t, http.MethodGet, "/api/users/u-1/entries?from=2025-03-01&to=2025-03-31", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[map[string][]EntryDTO](t, rec)
	assert.Len(t, list["entries"], 21)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/users/u-1/balance/current", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/users/u-1/balance/recent?months=2", nil).Code)
}

func TestBalances_InputValidation(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		path string
		code int
	}{
		{"/api/users/u-1/balance/month/2025/13", http.StatusBadRequest},
		{"/api/users/u-1/balance/month/abc/3", http.StatusBadRequest},
		{"/api/users/u-1/balance/year/1999", http.StatusBadRequest},
		{"/api/users/u-1/balance/recent?months=99", http.StatusBadRequest},
		{"/api/users/u-1/balance/recent?months=x", http.StatusBadRequest},
		{"/api/users/u-1/entries?from=2025-03-31&to=2025-03-01", http.StatusBadRequest},
		{"/api/users/u-1/entries?from=bad", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.code, f.do(t, http.MethodGet, tt.path, nil).Code)
		})
	}

	rec := f.do(t, http.MethodPost, "/api/users/u-1/generate/year", GenerateYearRequest{Year: 2025, StateCode: "XX"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "state_code", decode[ErrorResponse](t, rec).Field)
}

func TestExportYear_ReturnsWorkbook(t *testing.T) {
	f := newAPIFixture(t)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/entries", workDay("2025-03-10")).Code)

	rec := f.do(t, http.MethodGet, "/api/users/u-1/balance/year/2025/export", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "balance-u-1-2025.xlsx")

	file, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer file.Close()

	rows, err := file.GetRows(export.EntriesSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestClearHolidays(t *testing.T) {
	f := newAPIFixture(t)
	cache := timesheet.NewHolidayCache(holidaySourceFunc(func(context.Context, int, string) (map[string]string, error) {
		return map[string]string{"2025-01-01": "Neujahrstag"}, nil
	}), nil)
	cache.Holidays(context.Background(), 2025, "BY")
	f.deps.Holidays = cache

	router := NewRouter(NewHandler(f.store, f.deps), RouterOptions{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/holidays/clear", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, cache.Len())
}

func TestGenerationScheduler_RunNow(t *testing.T) {
	// GIVEN: two users with empty timesheets
	// WHEN: the scheduler runs a pass
	// THEN: every user is visited and the second pass creates nothing

	f := newAPIFixture(t)
	require.NoError(t, f.store.SaveUser(context.Background(), timesheet.User{
		ID: "u-2", WeeklyHours: decimal.NewFromInt(20), WorkingDaysPerWeek: 5,
	}))

	scheduler := NewGenerationScheduler(f.store, f.deps)
	first := scheduler.RunNow(context.Background())
	assert.Equal(t, 2, first.Users)
	assert.Equal(t, 42, first.Created)
	assert.Zero(t, first.Failed)

	second := scheduler.RunNow(context.Background())
	assert.Zero(t, second.Created)
	assert.Equal(t, 42, second.Skipped)
}

func TestGenerationScheduler_StartStop(t *testing.T) {
	f := newAPIFixture(t)
	scheduler := NewGenerationScheduler(f.store, f.deps)
	scheduler.CheckInterval = time.Hour

	assert.True(t, scheduler.NextRunTime().IsZero(), "not running yet")

	scheduler.Start()
	assert.WithinDuration(t, time.Now().Add(time.Hour), scheduler.NextRunTime(), time.Minute)

	// the first pass runs right after Start
	require.Eventually(t, func() bool {
		entries, err := f.store.EntriesForUser(context.Background(), "u-1")
		return err == nil && len(entries) == 21
	}, 5*time.Second, 10*time.Millisecond)

	scheduler.Stop()
	scheduler.Stop()
	assert.True(t, scheduler.NextRunTime().IsZero())
}

func TestGenerationScheduler_CancelledPassWritesNothing(t *testing.T) {
	f := newAPIFixture(t)
	scheduler := NewGenerationScheduler(f.store, f.deps)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary := scheduler.RunNow(ctx)

	assert.Zero(t, summary.Users)
	assert.Zero(t, summary.Created)
	entries, err := f.store.EntriesForUser(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type holidaySourceFunc func(ctx context.Context, year int, state string) (map[string]string, error)

func (f holidaySourceFunc) FetchHolidays(ctx context.Context, year int, state string) (map[string]string, error) {
	return f(ctx, year, state)
}
