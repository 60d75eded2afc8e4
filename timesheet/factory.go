/*
factory.go - Building fully populated time entries

PURPOSE:
  Every entry that reaches storage carries consistent derived fields.
  The factory is the only place that turns clock times, break minutes
  and expected hours into gross/net/overtime/undertime values.

ENTRY SHAPES:
  Work / BusinessTrip:  clock times -> CalculateWorkingHours -> deviation
  Vacation / Sick:      expected hours credited as gross and net
  Default (generated):  start 08:00, expected hours + default break
  Weekend / Holiday:    zero-duration placeholders with a note

SEE ALSO:
  - calculator.go: The arithmetic used here
  - generation.go: Uses the generated variants
  - service.go: Uses the manual variants
*/
package timesheet

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WorkTimeData is the derived hour block of one entry.
type WorkTimeData struct {
	GrossHours     decimal.Decimal
	NetHours       decimal.Decimal
	OvertimeHours  decimal.Decimal
	UndertimeHours decimal.Decimal
	ExpectedHours  decimal.Decimal
	BreakMinutes   int
}

// Apply copies the derived fields onto e.
func (d WorkTimeData) Apply(e *TimeEntry) {
	e.DurationHoursGross = d.GrossHours
	e.DurationHoursNet = d.NetHours
	e.OvertimeHours = d.OvertimeHours
	e.UndertimeHours = d.UndertimeHours
	e.ExpectedDailyHours = d.ExpectedHours
	e.BreakMinutes = d.BreakMinutes
}

// EntryFactory builds entries. Expected is required for manual entries;
// generated entries read expected hours from the UserConfig instead.
type EntryFactory struct {
	Expected ExpectedHoursLookup
	Config   Config
	Clock    Clock
	NewID    func() EntryID
}

func (f *EntryFactory) newID() EntryID {
	if f.NewID != nil {
		return f.NewID()
	}
	return EntryID(uuid.NewString())
}

// CreateWorkTimeData computes the hour block of a day with clock times.
func (f *EntryFactory) CreateWorkTimeData(ctx context.Context, userID UserID, start, end string, breakMinutes int) (WorkTimeData, error) {
	hours, err := CalculateWorkingHours(start, end, breakMinutes)
	if err != nil {
		return WorkTimeData{}, err
	}
	expected, err := f.Expected.ExpectedDailyHours(ctx, userID)
	if err != nil {
		return WorkTimeData{}, err
	}
	overtime, undertime := CalculateOvertimeUndertime(hours.NetHours, expected)
	return WorkTimeData{
		GrossHours:     hours.GrossHours(),
		NetHours:       hours.NetHours,
		OvertimeHours:  overtime,
		UndertimeHours: undertime,
		ExpectedHours:  expected,
		BreakMinutes:   hours.BreakMinutes,
	}, nil
}

// CreateNonWorkTimeData credits the expected hours of an absence day.
func (f *EntryFactory) CreateNonWorkTimeData(ctx context.Context, userID UserID) (WorkTimeData, error) {
	expected, err := f.Expected.ExpectedDailyHours(ctx, userID)
	if err != nil {
		return WorkTimeData{}, err
	}
	return WorkTimeData{
		GrossHours:     expected,
		NetHours:       expected,
		OvertimeHours:  decimal.Zero,
		UndertimeHours: decimal.Zero,
		ExpectedHours:  expected,
	}, nil
}

// ExpectedHoursFor prefers the cached expected hours and otherwise derives
// them from weekly hours and working days.
func ExpectedHoursFor(cfg UserConfig, defaultDays int) decimal.Decimal {
	if cfg.ExpectedDailyHours.IsPositive() {
		return cfg.ExpectedDailyHours
	}
	return ImpliedDailyHours(cfg.WeeklyHours, cfg.WorkingDaysPerWeek, defaultDays)
}

const lastMinuteOfDay = 23*60 + 59

// CreateDefaultEntry builds the generated work day: start at the default
// hour, work the expected hours plus the default break.
func (f *EntryFactory) CreateDefaultEntry(userID UserID, date Date, cfg UserConfig) TimeEntry {
	expected := ExpectedHoursFor(cfg, f.Config.DefaultWorkingDaysPerWeek)
	brk := f.Config.DefaultBreakMinutes

	startMin := f.Config.DefaultStartHour * 60
	workMin := int(expected.Mul(minutesPerHour).Round(0).IntPart())
	clamped := startMin+workMin+brk > lastMinuteOfDay
	endMin := min(startMin+workMin+brk, lastMinuteOfDay)

	entry := f.base(userID, date, EntryWork)
	entry.StartTime = FormatClock(startMin)
	entry.EndTime = FormatClock(endMin)
	entry.ExpectedDailyHours = expected
	entry.BreakMinutes = brk

	hours, err := CalculateWorkingHours(entry.StartTime, entry.EndTime, brk)
	if err != nil {
		// Only reachable when expected hours are zero: a break-only day.
		entry.EndTime = FormatClock(startMin)
		entry.BreakMinutes = 0
		entry.DurationHoursGross = decimal.Zero
		entry.DurationHoursNet = decimal.Zero
		entry.OvertimeHours, entry.UndertimeHours = CalculateOvertimeUndertime(decimal.Zero, expected)
		return entry
	}
	if !clamped {
		// Clock times are rounded to the minute; the day credits exactly
		// the expected hours.
		entry.DurationHoursGross = expected.Add(MinutesToHours(brk))
		entry.DurationHoursNet = expected
		entry.OvertimeHours = decimal.Zero
		entry.UndertimeHours = decimal.Zero
		return entry
	}
	entry.DurationHoursGross = hours.GrossHours()
	entry.DurationHoursNet = hours.NetHours
	entry.OvertimeHours, entry.UndertimeHours = CalculateOvertimeUndertime(hours.NetHours, expected)
	return entry
}

// CreateWeekendEntry builds a zero-duration placeholder noted with the weekday.
func (f *EntryFactory) CreateWeekendEntry(userID UserID, date Date) TimeEntry {
	entry := f.base(userID, date, EntryWeekend)
	entry.Note = date.Weekday().String()
	return entry
}

// CreateHolidayEntry builds a zero-duration placeholder noted with the holiday name.
func (f *EntryFactory) CreateHolidayEntry(userID UserID, date Date, name string) TimeEntry {
	entry := f.base(userID, date, EntryHoliday)
	entry.Note = name
	return entry
}

func (f *EntryFactory) base(userID UserID, date Date, entryType EntryType) TimeEntry {
	now := f.Clock.now().UTC().Truncate(time.Second)
	return TimeEntry{
		ID:                 f.newID(),
		UserID:             userID,
		WorkDate:           date,
		EntryType:          entryType,
		DurationHoursGross: decimal.Zero,
		DurationHoursNet:   decimal.Zero,
		OvertimeHours:      decimal.Zero,
		UndertimeHours:     decimal.Zero,
		ExpectedDailyHours: decimal.Zero,
		Status:             StatusOpen,
		Source:             SourceGenerated,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}
