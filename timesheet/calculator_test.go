package timesheet

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestTimeToMinutes(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"08:30", 510},
		{"08:30:00", 510},
		{"08:30:59", 510},
		{"00:00", 0},
		{"23:59:59", 1439},
		{"", 0},
		{"  ", 0},
	}
	for _, tt := range tests {
		got, err := TimeToMinutes(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"8", "24:00", "12:60", "12:00:60", "ab:cd", "1:2:3:4", "-1:00"} {
		_, err := TimeToMinutes(bad)
		assert.True(t, IsValidation(err), bad)
	}
}

func TestCalculateWorkingHours(t *testing.T) {
	wh, err := CalculateWorkingHours("08:00:00", "16:30:00", 30)
	require.NoError(t, err)

	assert.Equal(t, 510, wh.GrossMinutes)
	assert.Equal(t, 30, wh.BreakMinutes)
	assert.Equal(t, 480, wh.NetMinutes)
	assert.True(t, wh.NetHours.Equal(dec("8")), wh.NetHours.String())
	assert.True(t, wh.GrossHours().Equal(dec("8.5")))
}

func TestCalculateWorkingHours_NegativeBreakCountsAsZero(t *testing.T) {
	wh, err := CalculateWorkingHours("09:00", "10:00", -15)
	require.NoError(t, err)
	assert.Equal(t, 0, wh.BreakMinutes)
	assert.Equal(t, 60, wh.NetMinutes)
}

func TestCalculateWorkingHours_Rejections(t *testing.T) {
	_, err := CalculateWorkingHours("10:00", "10:00", 0)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "endTime", ve.Field)
	assert.Contains(t, ve.Message, "end must be after start")

	_, err = CalculateWorkingHours("17:00", "08:00", 0)
	assert.True(t, IsValidation(err))

	_, err = CalculateWorkingHours("08:00", "08:20", 30)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "breakMinutes", ve.Field)
	assert.Contains(t, ve.Message, "break longer than gross time")

	// a break equal to gross time is allowed
	wh, err := CalculateWorkingHours("08:00", "08:30", 30)
	require.NoError(t, err)
	assert.Equal(t, 0, wh.NetMinutes)
}

func TestCalculateWorkingHours_NetIsGrossMinusBreak(t *testing.T) {
	expected := dec("7.8")
	for start := 0; start < 24*60; start += 97 {
		for end := start + 1; end < 24*60; end += 131 {
			gross := end - start
			for _, brk := range []int{0, 15, 30, 45, gross} {
				if brk > gross {
					continue
				}
				wh, err := CalculateWorkingHours(FormatClock(start), FormatClock(end), brk)
				require.NoError(t, err)
				assert.Equal(t, gross-brk, wh.NetMinutes)

				over, under := CalculateOvertimeUndertime(wh.NetHours, expected)
				assert.True(t, over.IsZero() || under.IsZero(), "overtime and undertime both positive")
			}
		}
	}
}

func TestCalculateOvertimeUndertime(t *testing.T) {
	over, under := CalculateOvertimeUndertime(dec("9.5"), dec("8"))
	assert.True(t, over.Equal(dec("1.5")))
	assert.True(t, under.IsZero())

	over, under = CalculateOvertimeUndertime(dec("6"), dec("7.8"))
	assert.True(t, over.IsZero())
	assert.True(t, under.Equal(dec("1.8")))

	over, under = CalculateOvertimeUndertime(dec("8"), dec("8"))
	assert.True(t, over.IsZero())
	assert.True(t, under.IsZero())
}

func TestRound2_HalfAwayFromZero(t *testing.T) {
	assert.Equal(t, "1.01", Round2(dec("1.005")).String())
	assert.Equal(t, "-1.01", Round2(dec("-1.005")).String())
	assert.Equal(t, "0.33", MinutesToHours(20).String())
	assert.Equal(t, "7.75", MinutesToHours(465).String())
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "08:00:00", FormatClock(480))
	assert.Equal(t, "16:42:00", FormatClock(16*60+42))
	assert.Equal(t, "00:05:00", FormatClock(5))
}

func TestLeapYears(t *testing.T) {
	assert.Equal(t, 366, DaysInYear(2024))
	assert.Equal(t, 365, DaysInYear(2025))
	assert.Equal(t, 365, DaysInYear(1900))
	assert.Equal(t, 366, DaysInYear(2000))
	assert.Len(t, YearPeriod(2024).Days(), 366)
	assert.Len(t, YearPeriod(2025).Days(), 365)
}

func TestMonthPeriod(t *testing.T) {
	p := MonthPeriod(2024, time.February)
	assert.Equal(t, "2024-02-01", p.Start.String())
	assert.Equal(t, "2024-02-29", p.End.String())
	assert.Len(t, p.Days(), 29)
}

func TestIsWorkingDay(t *testing.T) {
	monday := MustParseDate("2025-03-03")
	friday := monday.AddDays(4)
	saturday := monday.AddDays(5)
	sunday := monday.AddDays(6)

	for _, days := range []int{0, 5} {
		assert.True(t, IsWorkingDay(monday, days))
		assert.True(t, IsWorkingDay(friday, days))
		assert.False(t, IsWorkingDay(saturday, days))
		assert.False(t, IsWorkingDay(sunday, days))
	}

	// four-day week: Monday to Thursday
	assert.True(t, IsWorkingDay(monday.AddDays(3), 4))
	assert.False(t, IsWorkingDay(friday, 4))

	// six-day week includes Saturday
	assert.True(t, IsWorkingDay(saturday, 6))
	assert.False(t, IsWorkingDay(sunday, 6))
}

func TestDateText(t *testing.T) {
	d := MustParseDate("2025-01-06")
	b, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2025-01-06", string(b))

	var back Date
	require.NoError(t, back.UnmarshalText(b))
	assert.True(t, back.Equal(d))

	require.NoError(t, back.UnmarshalText(nil))
	assert.True(t, back.IsZero())

	assert.Error(t, back.UnmarshalText([]byte("06.01.2025")))
}

func TestExpectedHoursFor(t *testing.T) {
	assert.True(t, ExpectedHoursFor(UserConfig{ExpectedDailyHours: dec("7")}, 5).Equal(dec("7")))
	assert.True(t, ExpectedHoursFor(UserConfig{WeeklyHours: dec("39"), WorkingDaysPerWeek: 5}, 5).Equal(dec("7.8")))
	assert.True(t, ExpectedHoursFor(UserConfig{WeeklyHours: dec("40")}, 5).Equal(dec("8")))
	assert.True(t, ExpectedHoursFor(UserConfig{WeeklyHours: dec("32"), WorkingDaysPerWeek: 4}, 5).Equal(dec("8")))
}

func TestCreateDefaultEntry(t *testing.T) {
	f := &EntryFactory{Config: DefaultConfig(), NewID: func() EntryID { return "e-1" }}
	date := MustParseDate("2025-03-03")

	e := f.CreateDefaultEntry("u-1", date, UserConfig{WeeklyHours: dec("39"), WorkingDaysPerWeek: 5})

	assert.Equal(t, EntryWork, e.EntryType)
	assert.Equal(t, SourceGenerated, e.Source)
	assert.Equal(t, StatusOpen, e.Status)
	assert.Equal(t, "08:00:00", e.StartTime)
	// 7.8h = 468 min, plus 30 min break
	assert.Equal(t, "16:18:00", e.EndTime)
	assert.Equal(t, 30, e.BreakMinutes)
	assert.True(t, e.DurationHoursNet.Equal(dec("7.8")), e.DurationHoursNet.String())
	assert.True(t, e.DurationHoursNet.Equal(e.ExpectedDailyHours))
	assert.True(t, e.OvertimeHours.IsZero())
	assert.True(t, e.UndertimeHours.IsZero())
}

func TestCreateDefaultEntry_CreditsExpectedHoursExactly(t *testing.T) {
	f := &EntryFactory{Config: DefaultConfig()}
	date := MustParseDate("2025-03-03")

	tests := []struct {
		name     string
		cfg      UserConfig
		expected string
		gross    string
		endTime  string
	}{
		{"40h over 7 days", UserConfig{WeeklyHours: dec("40"), WorkingDaysPerWeek: 7}, "5.71", "6.21", "14:13:00"},
		{"35.05h over 5 days", UserConfig{WeeklyHours: dec("35.05"), WorkingDaysPerWeek: 5}, "7.01", "7.51", "15:31:00"},
		{"40h over 5 days", UserConfig{WeeklyHours: dec("40"), WorkingDaysPerWeek: 5}, "8", "8.5", "16:30:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := f.CreateDefaultEntry("u-1", date, tt.cfg)

			assert.Equal(t, tt.endTime, e.EndTime)
			assert.True(t, e.ExpectedDailyHours.Equal(dec(tt.expected)), e.ExpectedDailyHours.String())
			assert.True(t, e.DurationHoursNet.Equal(e.ExpectedDailyHours), e.DurationHoursNet.String())
			assert.True(t, e.DurationHoursGross.Equal(dec(tt.gross)), e.DurationHoursGross.String())
			assert.True(t, e.OvertimeHours.IsZero())
			assert.True(t, e.UndertimeHours.IsZero())
		})
	}
}

func TestCreateDefaultEntry_ClampsToEndOfDay(t *testing.T) {
	f := &EntryFactory{Config: DefaultConfig()}
	e := f.CreateDefaultEntry("u-1", MustParseDate("2025-03-03"), UserConfig{ExpectedDailyHours: dec("20")})

	assert.Equal(t, "23:59:00", e.EndTime)
	assert.True(t, e.UndertimeHours.IsPositive())
	assert.NotEmpty(t, e.ID)
}

func TestPlaceholderEntries(t *testing.T) {
	f := &EntryFactory{Config: DefaultConfig()}
	sat := MustParseDate("2025-01-04")

	w := f.CreateWeekendEntry("u-1", sat)
	assert.Equal(t, EntryWeekend, w.EntryType)
	assert.Equal(t, "Saturday", w.Note)
	assert.True(t, w.DurationHoursGross.IsZero())
	assert.True(t, w.DurationHoursNet.IsZero())
	assert.Empty(t, w.StartTime)

	h := f.CreateHolidayEntry("u-1", MustParseDate("2025-01-01"), "Neujahrstag")
	assert.Equal(t, EntryHoliday, h.EntryType)
	assert.Equal(t, "Neujahrstag", h.Note)
	assert.Equal(t, SourceGenerated, h.Source)
	assert.True(t, h.DurationHoursNet.IsZero())
}

func TestClassifyBalance(t *testing.T) {
	threshold := dec("5")
	assert.Equal(t, CriticalityPositive, ClassifyBalance(dec("3"), threshold))
	assert.Equal(t, CriticalityCritical, ClassifyBalance(dec("-6"), threshold))
	assert.Equal(t, CriticalityWarning, ClassifyBalance(dec("-2"), threshold))
	assert.Equal(t, CriticalityWarning, ClassifyBalance(dec("-5"), threshold))
	assert.Equal(t, CriticalityNeutral, ClassifyBalance(decimal.Zero, threshold))
}

func TestStatusCatalogValidation(t *testing.T) {
	require.NoError(t, ValidateStatusCatalog(DefaultStatusCatalog()))

	missing := DefaultStatusCatalog()
	delete(missing, StatusDone)
	assert.True(t, IsValidation(ValidateStatusCatalog(missing)))

	releaseFromOpen := DefaultStatusCatalog()
	releaseFromOpen[StatusOpen] = StatusMeta{Code: StatusOpen, AllowReleaseAction: true}
	assert.Error(t, ValidateStatusCatalog(releaseFromOpen))

	releasedActions := DefaultStatusCatalog()
	releasedActions[StatusReleased] = StatusMeta{Code: StatusReleased, AllowDoneAction: true}
	assert.Error(t, ValidateStatusCatalog(releasedActions))

	skipTarget := DefaultStatusCatalog()
	skipTarget[StatusOpen] = StatusMeta{Code: StatusOpen, AllowDoneAction: true, TransitionTarget: StatusReleased}
	assert.Error(t, ValidateStatusCatalog(skipTarget))

	// narrowing is allowed
	narrowed := DefaultStatusCatalog()
	narrowed[StatusOpen] = StatusMeta{Code: StatusOpen}
	assert.NoError(t, ValidateStatusCatalog(narrowed))
}

func TestValidateStatusChange(t *testing.T) {
	assert.NoError(t, ValidateStatusChange(StatusOpen, StatusOpen))
	assert.NoError(t, ValidateStatusChange(StatusOpen, StatusDone))
	assert.True(t, IsConflict(ValidateStatusChange(StatusDone, StatusReleased)))
	assert.True(t, IsValidation(ValidateStatusChange(StatusOpen, "archived")))
	assert.NoError(t, ValidateStatusChange(StatusReleased, StatusReleased))
}

func TestAutoAdvance(t *testing.T) {
	assert.Equal(t, StatusProcessed, AutoAdvance(StatusOpen))
	assert.Equal(t, StatusProcessed, AutoAdvance(StatusProcessed))
	assert.Equal(t, StatusProcessed, AutoAdvance(StatusDone))
	assert.Equal(t, StatusReleased, AutoAdvance(StatusReleased))
}

func TestRequiresTimeRecalculation(t *testing.T) {
	note := "text only"
	assert.True(t, RequiresTimeRecalculation(EntryPatch{Note: &note}))

	brk := 15
	assert.True(t, RequiresTimeRecalculation(EntryPatch{BreakMinutes: &brk}))

	project := "P-1"
	assert.False(t, RequiresTimeRecalculation(EntryPatch{ProjectID: &project}))
	assert.False(t, RequiresTimeRecalculation(EntryPatch{}))
}

func TestErrorsMatchSentinels(t *testing.T) {
	var err error = &ConflictError{Reason: ErrDuplicateEntry.Reason}
	assert.ErrorIs(t, err, ErrDuplicateEntry)
	assert.ErrorIs(t, ErrDuplicateEntry, ErrConflict)
	assert.NotErrorIs(t, &ConflictError{Reason: "other"}, ErrDuplicateEntry)

	assert.True(t, IsNotFound(entryNotFound("a", "b")))
	assert.Equal(t, "time entry not found: a, b", entryNotFound("a", "b").Error())
}
