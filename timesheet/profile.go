package timesheet

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ExpectedHoursLookup resolves the expected daily hours of a user.
type ExpectedHoursLookup interface {
	ExpectedDailyHours(ctx context.Context, userID UserID) (decimal.Decimal, error)
}

// ImpliedDailyHours is weeklyHours / workingDaysPerWeek, rounded to two
// places. Non-positive day counts fall back to defaultDays.
func ImpliedDailyHours(weeklyHours decimal.Decimal, workingDaysPerWeek, defaultDays int) decimal.Decimal {
	days := workingDaysPerWeek
	if days <= 0 {
		days = defaultDays
	}
	if days <= 0 {
		days = 5
	}
	return Round2(weeklyHours.Div(decimal.NewFromInt(int64(days))))
}

// ProfileService reads expected daily hours from user profiles and keeps
// the cached value in sync with weekly hours and working days.
type ProfileService struct {
	Users  UserStore
	Config Config
	Logger *zap.Logger
}

// ExpectedDailyHours returns the user's expected hours per working day.
// When weekly hours and working days imply a different value than the
// cached one, the cache is rewritten first.
func (ps *ProfileService) ExpectedDailyHours(ctx context.Context, userID UserID) (decimal.Decimal, error) {
	user, err := ps.Users.GetUser(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load user %s: %w", userID, err)
	}
	if user == nil {
		return decimal.Zero, &NotFoundError{Kind: "user", IDs: []string{string(userID)}}
	}

	// Without weekly hours there is nothing to derive from.
	if user.WeeklyHours.IsZero() {
		return user.ExpectedDailyHours, nil
	}

	implied := ImpliedDailyHours(user.WeeklyHours, user.WorkingDaysPerWeek, ps.Config.DefaultWorkingDaysPerWeek)
	if !implied.Equal(user.ExpectedDailyHours) {
		if err := ps.Users.UpdateExpectedDailyHours(ctx, userID, implied); err != nil {
			return decimal.Zero, fmt.Errorf("refresh expected hours of %s: %w", userID, err)
		}
		ps.logger().Debug("refreshed expected daily hours",
			zap.String("user", string(userID)),
			zap.String("previous", user.ExpectedDailyHours.String()),
			zap.String("current", implied.String()))
	}
	return implied, nil
}

func (ps *ProfileService) logger() *zap.Logger {
	if ps.Logger == nil {
		return zap.NewNop()
	}
	return ps.Logger
}
