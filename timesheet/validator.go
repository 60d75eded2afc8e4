/*
validator.go - Input checks for create and update

PURPOSE:
  Fail fast before any write: required fields, per-day uniqueness and
  existence of optional references. Struct tags cover the shape of the
  input; the methods below cover rules that depend on the entry type or
  on stored data.

RULES:
  - UserID and WorkDate are mandatory on create
  - Work and BusinessTrip need StartTime and EndTime (merged values on update)
  - A user has at most one entry per day
  - Project, activity, work location and travel type must exist when set
*/
package timesheet

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// EntryInput is the payload of a manual create.
type EntryInput struct {
	UserID       UserID    `json:"user_id" validate:"required,max=64"`
	WorkDate     Date      `json:"work_date"`
	EntryType    EntryType `json:"entry_type" validate:"omitempty,oneof=work vacation sick business_trip weekend holiday"`
	StartTime    string    `json:"start_time"`
	EndTime      string    `json:"end_time"`
	BreakMinutes int       `json:"break_minutes" validate:"gte=0"`
	Note         string    `json:"note" validate:"max=2000"`

	ProjectID        string `json:"project_id,omitempty"`
	ActivityCode     string `json:"activity_code,omitempty"`
	WorkLocationCode string `json:"work_location_code,omitempty"`
	TravelTypeCode   string `json:"travel_type_code,omitempty"`
}

// EntryPatch is a partial update. Nil fields are left unchanged.
type EntryPatch struct {
	UserID       *UserID    `json:"user_id" validate:"omitempty,min=1,max=64"`
	WorkDate     *Date      `json:"work_date"`
	EntryType    *EntryType `json:"entry_type" validate:"omitempty,oneof=work vacation sick business_trip weekend holiday"`
	StartTime    *string    `json:"start_time"`
	EndTime      *string    `json:"end_time"`
	BreakMinutes *int       `json:"break_minutes" validate:"omitempty,gte=0"`
	Note         *string    `json:"note" validate:"omitempty,max=2000"`
	Status       *Status    `json:"status"`

	ProjectID        *string `json:"project_id"`
	ActivityCode     *string `json:"activity_code"`
	WorkLocationCode *string `json:"work_location_code"`
	TravelTypeCode   *string `json:"travel_type_code"`
}

// ApplyTo returns e with the set patch fields written over it.
func (p EntryPatch) ApplyTo(e TimeEntry) TimeEntry {
	if p.UserID != nil {
		e.UserID = *p.UserID
	}
	if p.WorkDate != nil {
		e.WorkDate = *p.WorkDate
	}
	if p.EntryType != nil {
		e.EntryType = *p.EntryType
	}
	if p.StartTime != nil {
		e.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		e.EndTime = *p.EndTime
	}
	if p.BreakMinutes != nil {
		e.BreakMinutes = *p.BreakMinutes
	}
	if p.Note != nil {
		e.Note = *p.Note
	}
	if p.ProjectID != nil {
		e.ProjectID = *p.ProjectID
	}
	if p.ActivityCode != nil {
		e.ActivityCode = *p.ActivityCode
	}
	if p.WorkLocationCode != nil {
		e.WorkLocationCode = *p.WorkLocationCode
	}
	if p.TravelTypeCode != nil {
		e.TravelTypeCode = *p.TravelTypeCode
	}
	return e
}

// RequiresTimeRecalculation reports whether the patch touches a field
// the derived hours depend on. Note is included: a text-only edit
// recalculates and advances the status like any other edit.
func RequiresTimeRecalculation(p EntryPatch) bool {
	return p.StartTime != nil ||
		p.EndTime != nil ||
		p.BreakMinutes != nil ||
		p.UserID != nil ||
		p.EntryType != nil ||
		p.Note != nil
}

// =============================================================================
// REFERENCES
// =============================================================================

// ReferenceChecker answers whether a master data code exists.
type ReferenceChecker interface {
	Exists(ctx context.Context, code string) (bool, error)
}

// ReferenceCheckerFunc adapts a function to ReferenceChecker.
type ReferenceCheckerFunc func(ctx context.Context, code string) (bool, error)

func (f ReferenceCheckerFunc) Exists(ctx context.Context, code string) (bool, error) {
	return f(ctx, code)
}

// ReferenceCheckers holds one checker per optional reference. A nil
// checker accepts every code.
type ReferenceCheckers struct {
	Projects      ReferenceChecker
	Activities    ReferenceChecker
	WorkLocations ReferenceChecker
	TravelTypes   ReferenceChecker
}

// ReferenceKind names a kind of reference master data.
type ReferenceKind string

const (
	RefProject      ReferenceKind = "project"
	RefActivity     ReferenceKind = "activity"
	RefWorkLocation ReferenceKind = "work_location"
	RefTravelType   ReferenceKind = "travel_type"
)

// ReferenceKinds returns every reference kind.
func ReferenceKinds() []ReferenceKind {
	return []ReferenceKind{RefProject, RefActivity, RefWorkLocation, RefTravelType}
}

// CheckersFrom builds one checker per kind from a single lookup.
func CheckersFrom(exists func(ctx context.Context, kind ReferenceKind, code string) (bool, error)) ReferenceCheckers {
	bind := func(kind ReferenceKind) ReferenceChecker {
		return ReferenceCheckerFunc(func(ctx context.Context, code string) (bool, error) {
			return exists(ctx, kind, code)
		})
	}
	return ReferenceCheckers{
		Projects:      bind(RefProject),
		Activities:    bind(RefActivity),
		WorkLocations: bind(RefWorkLocation),
		TravelTypes:   bind(RefTravelType),
	}
}

// DayLookup finds the entry of a user on a day.
type DayLookup interface {
	EntryByUserAndDate(ctx context.Context, userID UserID, date Date, excludeID EntryID) (*TimeEntry, error)
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Validator runs the create and update checks.
type Validator struct {
	Days       DayLookup
	References ReferenceCheckers

	validate *validator.Validate
}

// NewValidator builds a validator reading stored entries from days.
func NewValidator(days DayLookup, refs ReferenceCheckers) *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{Days: days, References: refs, validate: v}
}

func (v *Validator) structErr(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return validationErr(fe.Field(), "failed %q check", fe.Tag())
	}
	return fmt.Errorf("validate input: %w", err)
}

// ValidateRequiredFieldsForCreate checks a create payload and returns the
// resolved entry type (Work when none is given).
func (v *Validator) ValidateRequiredFieldsForCreate(in EntryInput) (EntryType, error) {
	if err := v.structErr(in); err != nil {
		return "", err
	}
	if in.WorkDate.IsZero() {
		return "", validationErr("work_date", "is required")
	}
	entryType := in.EntryType
	if entryType == "" {
		entryType = EntryWork
	}
	if entryType.RequiresWorkedTime() {
		if err := requireClockTimes(in.StartTime, in.EndTime); err != nil {
			return "", err
		}
	}
	return entryType, nil
}

// ValidateFieldsForUpdate applies the create rules to the patch merged
// over the stored entry.
func (v *Validator) ValidateFieldsForUpdate(p EntryPatch, existing TimeEntry) error {
	if err := v.structErr(p); err != nil {
		return err
	}
	if p.WorkDate != nil && p.WorkDate.IsZero() {
		return validationErr("work_date", "cannot be cleared")
	}
	merged := p.ApplyTo(existing)
	if merged.EntryType.RequiresWorkedTime() {
		return requireClockTimes(merged.StartTime, merged.EndTime)
	}
	return nil
}

func requireClockTimes(start, end string) error {
	if strings.TrimSpace(start) == "" {
		return validationErr("start_time", "is required for this entry type")
	}
	if strings.TrimSpace(end) == "" {
		return validationErr("end_time", "is required for this entry type")
	}
	return nil
}

// ValidateUniqueEntryPerDay fails with a ConflictError when another entry
// than excludeID exists for the user on that day.
func (v *Validator) ValidateUniqueEntryPerDay(ctx context.Context, userID UserID, date Date, excludeID EntryID) error {
	existing, err := v.Days.EntryByUserAndDate(ctx, userID, date, excludeID)
	if err != nil {
		return fmt.Errorf("check entry per day: %w", err)
	}
	if existing != nil {
		return &ConflictError{
			Reason:   fmt.Sprintf("user %s already has an entry on %s", userID, date),
			EntryIDs: []EntryID{existing.ID},
		}
	}
	return nil
}

// ValidateReferences checks every reference set on e.
func (v *Validator) ValidateReferences(ctx context.Context, e TimeEntry) error {
	checks := []struct {
		field   string
		code    string
		checker ReferenceChecker
	}{
		{"project_id", e.ProjectID, v.References.Projects},
		{"activity_code", e.ActivityCode, v.References.Activities},
		{"work_location_code", e.WorkLocationCode, v.References.WorkLocations},
		{"travel_type_code", e.TravelTypeCode, v.References.TravelTypes},
	}
	for _, c := range checks {
		if c.code == "" || c.checker == nil {
			continue
		}
		ok, err := c.checker.Exists(ctx, c.code)
		if err != nil {
			return fmt.Errorf("check %s: %w", c.field, err)
		}
		if !ok {
			return validationErr(c.field, "%q does not exist", c.code)
		}
	}
	return nil
}
