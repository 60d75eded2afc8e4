package timesheet

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TIME CALCULATOR - Clock times and hour deltas
// =============================================================================

var minutesPerHour = decimal.NewFromInt(60)

// Round2 rounds half away from zero to two decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// MinutesToHours converts minutes to hours rounded to two places.
func MinutesToHours(minutes int) decimal.Decimal {
	return Round2(decimal.NewFromInt(int64(minutes)).Div(minutesPerHour))
}

// TimeToMinutes parses "HH:MM" or "HH:MM:SS" into minutes after midnight.
// An empty value is 0. Seconds truncate to the containing minute.
func TimeToMinutes(value string) (int, error) {
	return clockField("time", value)
}

func clockField(field, value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	parts := strings.Split(value, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, validationErr(field, "%q is not HH:MM[:SS]", value)
	}
	limits := []int{23, 59, 59}
	fields := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] {
			return 0, validationErr(field, "%q is not HH:MM[:SS]", value)
		}
		fields[i] = n
	}
	return fields[0]*60 + fields[1], nil
}

// FormatClock renders minutes after midnight as "HH:MM:SS".
func FormatClock(minutes int) string {
	return pad2(minutes/60) + ":" + pad2(minutes%60) + ":00"
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// WorkingHours is the result of a start/end/break computation.
type WorkingHours struct {
	GrossMinutes int
	BreakMinutes int
	NetMinutes   int
	NetHours     decimal.Decimal
}

// GrossHours returns the gross duration in hours rounded to two places.
func (w WorkingHours) GrossHours() decimal.Decimal {
	return MinutesToHours(w.GrossMinutes)
}

// CalculateWorkingHours computes gross, break and net time of one day.
// End must be after start on the same day, and the break may not exceed
// the gross time. Negative breaks count as zero.
func CalculateWorkingHours(start, end string, breakMinutes int) (WorkingHours, error) {
	startMin, err := clockField("startTime", start)
	if err != nil {
		return WorkingHours{}, err
	}
	endMin, err := clockField("endTime", end)
	if err != nil {
		return WorkingHours{}, err
	}

	gross := endMin - startMin
	if gross <= 0 {
		return WorkingHours{}, validationErr("endTime", "end must be after start, same day")
	}
	brk := max(0, breakMinutes)
	if brk > gross {
		return WorkingHours{}, validationErr("breakMinutes", "break longer than gross time")
	}

	net := gross - brk
	return WorkingHours{
		GrossMinutes: gross,
		BreakMinutes: brk,
		NetMinutes:   net,
		NetHours:     MinutesToHours(net),
	}, nil
}

// CalculateOvertimeUndertime splits the deviation from expected hours.
// At most one of the results is positive.
func CalculateOvertimeUndertime(actual, expected decimal.Decimal) (overtime, undertime decimal.Decimal) {
	overtime = decimal.Max(decimal.Zero, Round2(actual.Sub(expected)))
	undertime = decimal.Max(decimal.Zero, Round2(expected.Sub(actual)))
	return overtime, undertime
}
