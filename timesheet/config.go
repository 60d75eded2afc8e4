package timesheet

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config holds the engine constants injected by the caller.
// The config package loads it from file and environment.
type Config struct {
	DefaultBreakMinutes        int
	DefaultStartHour           int
	DefaultWorkingDaysPerWeek  int
	UndertimeCriticalThreshold decimal.Decimal
	RecentMonthsDefault        int
	MaxRecentMonths            int
	MinYear                    int
	MaxYear                    int
	DefaultStateCode           string
}

// DefaultConfig returns the built-in engine constants.
func DefaultConfig() Config {
	return Config{
		DefaultBreakMinutes:        30,
		DefaultStartHour:           8,
		DefaultWorkingDaysPerWeek:  5,
		UndertimeCriticalThreshold: decimal.NewFromInt(5),
		RecentMonthsDefault:        3,
		MaxRecentMonths:            24,
		MinYear:                    2000,
		MaxYear:                    2100,
		DefaultStateCode:           "BY",
	}
}

func (c Config) validateYear(year int) error {
	if year < c.MinYear || year > c.MaxYear {
		return validationErr("year", "%d is outside [%d, %d]", year, c.MinYear, c.MaxYear)
	}
	return nil
}

func validateMonth(month int) error {
	if month < 1 || month > 12 {
		return validationErr("month", "%d is outside [1, 12]", month)
	}
	return nil
}

// Clock returns the current time. Tests inject a fixed clock.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}
