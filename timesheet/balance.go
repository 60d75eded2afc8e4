package timesheet

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BALANCE AGGREGATOR - Overtime/undertime sums over stored entries
// =============================================================================

// Criticality classifies a balance value.
type Criticality int

const (
	CriticalityNeutral  Criticality = 0
	CriticalityCritical Criticality = 1 // below -threshold
	CriticalityWarning  Criticality = 2 // negative, within threshold
	CriticalityPositive Criticality = 3
)

// ClassifyBalance maps a balance to its criticality.
func ClassifyBalance(balance, threshold decimal.Decimal) Criticality {
	switch {
	case balance.IsPositive():
		return CriticalityPositive
	case balance.LessThan(threshold.Neg()):
		return CriticalityCritical
	case balance.IsNegative():
		return CriticalityWarning
	default:
		return CriticalityNeutral
	}
}

// Totals is the sum over a set of entries.
type Totals struct {
	TotalOvertimeHours  decimal.Decimal `json:"total_overtime_hours"`
	TotalUndertimeHours decimal.Decimal `json:"total_undertime_hours"`
	BalanceHours        decimal.Decimal `json:"balance_hours"`
	WorkingDays         int             `json:"working_days"`
	Criticality         Criticality     `json:"criticality"`
}

// MonthlyBalance is the balance of one calendar month.
type MonthlyBalance struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Totals
}

// CumulativeBalance is the balance over the whole history of a user.
type CumulativeBalance struct {
	UserID UserID `json:"user_id"`
	Totals
}

// YearBalance holds the twelve months of a year and their aggregate.
type YearBalance struct {
	UserID UserID           `json:"user_id"`
	Year   int              `json:"year"`
	Months []MonthlyBalance `json:"months"`
	Totals
}

// BalanceStore is the persistence slice balances need.
type BalanceStore interface {
	EntriesInRange(ctx context.Context, userID UserID, from, to Date) ([]TimeEntry, error)
	EntriesForUser(ctx context.Context, userID UserID) ([]TimeEntry, error)
}

// BalanceAggregator computes balances on demand; nothing is stored.
type BalanceAggregator struct {
	Store  BalanceStore
	Config Config
	Clock  Clock
}

func (b *BalanceAggregator) sum(entries []TimeEntry) Totals {
	t := Totals{TotalOvertimeHours: decimal.Zero, TotalUndertimeHours: decimal.Zero}
	for _, e := range entries {
		t.TotalOvertimeHours = t.TotalOvertimeHours.Add(e.OvertimeHours)
		t.TotalUndertimeHours = t.TotalUndertimeHours.Add(e.UndertimeHours)
		if e.EntryType == EntryWork {
			t.WorkingDays++
		}
	}
	return b.finish(t)
}

func (b *BalanceAggregator) finish(t Totals) Totals {
	t.TotalOvertimeHours = Round2(t.TotalOvertimeHours)
	t.TotalUndertimeHours = Round2(t.TotalUndertimeHours)
	t.BalanceHours = Round2(t.TotalOvertimeHours.Sub(t.TotalUndertimeHours))
	t.Criticality = ClassifyBalance(t.BalanceHours, b.Config.UndertimeCriticalThreshold)
	return t
}

// MonthBalance sums the entries of one month.
func (b *BalanceAggregator) MonthBalance(ctx context.Context, userID UserID, year, month int) (MonthlyBalance, error) {
	if err := b.Config.validateYear(year); err != nil {
		return MonthlyBalance{}, err
	}
	if err := validateMonth(month); err != nil {
		return MonthlyBalance{}, err
	}
	return b.month(ctx, userID, year, time.Month(month))
}

func (b *BalanceAggregator) month(ctx context.Context, userID UserID, year int, month time.Month) (MonthlyBalance, error) {
	period := MonthPeriod(year, month)
	entries, err := b.Store.EntriesInRange(ctx, userID, period.Start, period.End)
	if err != nil {
		return MonthlyBalance{}, fmt.Errorf("load entries %s: %w", period, err)
	}
	return MonthlyBalance{Year: year, Month: int(month), Totals: b.sum(entries)}, nil
}

// CurrentCumulativeBalance sums the whole history of the user.
func (b *BalanceAggregator) CurrentCumulativeBalance(ctx context.Context, userID UserID) (CumulativeBalance, error) {
	entries, err := b.Store.EntriesForUser(ctx, userID)
	if err != nil {
		return CumulativeBalance{}, fmt.Errorf("load entries: %w", err)
	}
	return CumulativeBalance{UserID: userID, Totals: b.sum(entries)}, nil
}

// RecentMonthsBalance returns n month balances, the current month first.
// n <= 0 uses the configured default.
func (b *BalanceAggregator) RecentMonthsBalance(ctx context.Context, userID UserID, n int) ([]MonthlyBalance, error) {
	if n <= 0 {
		n = b.Config.RecentMonthsDefault
	}
	if b.Config.MaxRecentMonths > 0 && n > b.Config.MaxRecentMonths {
		return nil, validationErr("months", "%d exceeds the maximum of %d", n, b.Config.MaxRecentMonths)
	}

	now := b.Clock.now()
	first := NewDate(now.Year(), now.Month(), 1)
	out := make([]MonthlyBalance, 0, n)
	for i := 0; i < n; i++ {
		m := first.AddMonths(-i)
		mb, err := b.month(ctx, userID, m.Year(), m.Month())
		if err != nil {
			return nil, err
		}
		out = append(out, mb)
	}
	return out, nil
}

// YearBalance returns the twelve month balances and their totals.
func (b *BalanceAggregator) YearBalance(ctx context.Context, userID UserID, year int) (YearBalance, error) {
	if err := b.Config.validateYear(year); err != nil {
		return YearBalance{}, err
	}

	yb := YearBalance{UserID: userID, Year: year, Months: make([]MonthlyBalance, 0, 12)}
	total := Totals{TotalOvertimeHours: decimal.Zero, TotalUndertimeHours: decimal.Zero}
	for m := time.January; m <= time.December; m++ {
		mb, err := b.month(ctx, userID, year, m)
		if err != nil {
			return YearBalance{}, err
		}
		yb.Months = append(yb.Months, mb)
		total.TotalOvertimeHours = total.TotalOvertimeHours.Add(mb.TotalOvertimeHours)
		total.TotalUndertimeHours = total.TotalUndertimeHours.Add(mb.TotalUndertimeHours)
		total.WorkingDays += mb.WorkingDays
	}
	yb.Totals = b.finish(total)
	return yb, nil
}
