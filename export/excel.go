// Package export writes balances and entries as xlsx workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/warp/timesheet-engine/timesheet"
)

const (
	BalanceSheet = "Balance"
	EntriesSheet = "Entries"
)

var (
	balanceHeaders = []string{"Year", "Month", "Overtime Hours", "Undertime Hours", "Balance Hours", "Working Days", "Criticality"}
	entryHeaders   = []string{"Date", "Type", "Start", "End", "Break (min)", "Gross Hours", "Net Hours",
		"Expected Hours", "Overtime Hours", "Undertime Hours", "Status", "Source", "Project", "Activity", "Note"}
)

// WriteYearBalance writes the monthly rows and the year total of yb.
func WriteYearBalance(w io.Writer, yb timesheet.YearBalance) error {
	return write(w, func(file *excelize.File) error {
		return balanceSheet(file, yb)
	})
}

// WriteEntries writes one row per entry.
func WriteEntries(w io.Writer, entries []timesheet.TimeEntry) error {
	return write(w, func(file *excelize.File) error {
		return entriesSheet(file, entries)
	})
}

// WriteYearReport writes both sheets into one workbook.
func WriteYearReport(w io.Writer, yb timesheet.YearBalance, entries []timesheet.TimeEntry) error {
	return write(w, func(file *excelize.File) error {
		if err := balanceSheet(file, yb); err != nil {
			return err
		}
		return entriesSheet(file, entries)
	})
}

func write(w io.Writer, fill func(*excelize.File) error) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := fill(file); err != nil {
		return err
	}
	// the default sheet is only dropped once a named one exists
	if idx, _ := file.GetSheetIndex("Sheet1"); idx >= 0 {
		if err := file.DeleteSheet("Sheet1"); err != nil {
			return fmt.Errorf("drop default sheet: %w", err)
		}
	}
	if _, err := file.WriteTo(w); err != nil {
		return fmt.Errorf("write excel output: %w", err)
	}
	return nil
}

func balanceSheet(file *excelize.File, yb timesheet.YearBalance) error {
	if _, err := file.NewSheet(BalanceSheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", BalanceSheet, err)
	}
	if err := writeRow(file, BalanceSheet, 1, toAny(balanceHeaders)); err != nil {
		return err
	}

	row := 2
	for _, m := range yb.Months {
		if err := writeRow(file, BalanceSheet, row, totalsRow(m.Year, m.Month, m.Totals)); err != nil {
			return err
		}
		row++
	}
	total := totalsRow(yb.Year, "Total", yb.Totals)
	return writeRow(file, BalanceSheet, row, total)
}

func entriesSheet(file *excelize.File, entries []timesheet.TimeEntry) error {
	if _, err := file.NewSheet(EntriesSheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", EntriesSheet, err)
	}
	if err := writeRow(file, EntriesSheet, 1, toAny(entryHeaders)); err != nil {
		return err
	}

	for i, e := range entries {
		values := []any{
			e.WorkDate.String(),
			string(e.EntryType),
			e.StartTime,
			e.EndTime,
			e.BreakMinutes,
			e.DurationHoursGross.InexactFloat64(),
			e.DurationHoursNet.InexactFloat64(),
			e.ExpectedDailyHours.InexactFloat64(),
			e.OvertimeHours.InexactFloat64(),
			e.UndertimeHours.InexactFloat64(),
			string(e.Status),
			string(e.Source),
			e.ProjectID,
			e.ActivityCode,
			e.Note,
		}
		if err := writeRow(file, EntriesSheet, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

func totalsRow(year int, month any, t timesheet.Totals) []any {
	return []any{
		year,
		month,
		t.TotalOvertimeHours.InexactFloat64(),
		t.TotalUndertimeHours.InexactFloat64(),
		t.BalanceHours.InexactFloat64(),
		t.WorkingDays,
		CriticalityLabel(t.Criticality),
	}
}

func writeRow(file *excelize.File, sheet string, row int, values []any) error {
	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := file.SetCellValue(sheet, cell, value); err != nil {
			return fmt.Errorf("set excel value %s: %w", cell, err)
		}
	}
	return nil
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// CriticalityLabel names a criticality for reports.
func CriticalityLabel(c timesheet.Criticality) string {
	switch c {
	case timesheet.CriticalityCritical:
		return "critical"
	case timesheet.CriticalityWarning:
		return "warning"
	case timesheet.CriticalityPositive:
		return "positive"
	default:
		return "neutral"
	}
}
