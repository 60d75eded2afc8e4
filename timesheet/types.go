/*
Package timesheet provides the time entry lifecycle and balance engine.

PURPOSE:
  Records one time entry per employee and calendar day, derives worked,
  overtime and undertime hours, moves entries through the approval
  lifecycle and aggregates monthly and cumulative balances.

KEY CONCEPTS IN THIS FILE (types.go):
  - TimeEntry: One row per (user, work date), with derived hour fields
  - EntryType: Work, Vacation, Sick, BusinessTrip, Weekend, Holiday
  - Status: Open -> Processed -> Done -> Released (terminal)
  - Source: Manual (user entered) or Generated (calendar fill)
  - User: Weekly hours and working days that imply expected daily hours

DESIGN PRINCIPLES:
  1. Precision: Hour values use decimal.Decimal, rounded to 2 places
  2. One entry per day: (UserID, WorkDate) is unique, enforced again by storage
  3. No deletes: entries are created and updated, never removed
  4. Released is frozen: no field of a released entry changes

SEE ALSO:
  - calculator.go: Clock time and hour arithmetic
  - factory.go: Building fully populated entries
  - status.go: Status transitions
  - balance.go: Balance aggregation
*/
package timesheet

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EntryID string
type UserID string

// =============================================================================
// ENTRY TYPE
// =============================================================================

type EntryType string

const (
	EntryWork         EntryType = "work"
	EntryVacation     EntryType = "vacation"
	EntrySick         EntryType = "sick"
	EntryBusinessTrip EntryType = "business_trip"
	EntryWeekend      EntryType = "weekend"
	EntryHoliday      EntryType = "holiday"
)

var entryTypes = []EntryType{EntryWork, EntryVacation, EntrySick, EntryBusinessTrip, EntryWeekend, EntryHoliday}

// EntryTypes returns all known entry types.
func EntryTypes() []EntryType {
	out := make([]EntryType, len(entryTypes))
	copy(out, entryTypes)
	return out
}

// Valid reports whether t is a known entry type.
func (t EntryType) Valid() bool {
	for _, known := range entryTypes {
		if t == known {
			return true
		}
	}
	return false
}

// RequiresWorkedTime reports whether entries of this type need start and end times.
func (t EntryType) RequiresWorkedTime() bool {
	return t == EntryWork || t == EntryBusinessTrip
}

// CreditsExpectedHours reports whether the type credits the full expected
// daily hours without clock times (absence days).
func (t EntryType) CreditsExpectedHours() bool {
	return t == EntryVacation || t == EntrySick
}

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusOpen      Status = "open"
	StatusProcessed Status = "processed"
	StatusDone      Status = "done"
	StatusReleased  Status = "released"
)

var statuses = []Status{StatusOpen, StatusProcessed, StatusDone, StatusReleased}

// Statuses returns all statuses in lifecycle order.
func Statuses() []Status {
	out := make([]Status, len(statuses))
	copy(out, statuses)
	return out
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s.rank() >= 0
}

// rank is the position of s in the lifecycle, -1 when unknown.
func (s Status) rank() int {
	for i, known := range statuses {
		if s == known {
			return i
		}
	}
	return -1
}

// =============================================================================
// SOURCE
// =============================================================================

type Source string

const (
	SourceManual    Source = "manual"
	SourceGenerated Source = "generated"
)

// =============================================================================
// TIME ENTRY
// =============================================================================

// TimeEntry is the daily record of one user.
//
// StartTime and EndTime are clock strings ("HH:MM:SS") and empty for entry
// types that carry no worked time. All hour fields are derived and
// recomputed whenever a time-relevant field changes.
type TimeEntry struct {
	ID        EntryID
	UserID    UserID
	WorkDate  Date
	EntryType EntryType

	StartTime    string
	EndTime      string
	BreakMinutes int

	DurationHoursGross decimal.Decimal
	DurationHoursNet   decimal.Decimal
	OvertimeHours      decimal.Decimal
	UndertimeHours     decimal.Decimal
	ExpectedDailyHours decimal.Decimal

	Status Status
	Source Source
	Note   string

	// Optional references, checked for existence when set.
	ProjectID        string
	ActivityCode     string
	WorkLocationCode string
	TravelTypeCode   string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// USER PROFILE
// =============================================================================

// User is the employee profile the engine reads expected hours from.
// ExpectedDailyHours is a cached value, refreshed lazily by ProfileService.
type User struct {
	ID                 UserID
	Name               string
	WeeklyHours        decimal.Decimal
	WorkingDaysPerWeek int
	ExpectedDailyHours decimal.Decimal
	StateCode          string
}

// UserConfig is the subset of a profile used to build generated entries.
type UserConfig struct {
	ExpectedDailyHours decimal.Decimal
	WeeklyHours        decimal.Decimal
	WorkingDaysPerWeek int
}

// Config returns the generation config of the user.
func (u User) Config() UserConfig {
	return UserConfig{
		ExpectedDailyHours: u.ExpectedDailyHours,
		WeeklyHours:        u.WeeklyHours,
		WorkingDaysPerWeek: u.WorkingDaysPerWeek,
	}
}
