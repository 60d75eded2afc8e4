package timesheet

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// ENTRY SERVICE - Manual create and update
// =============================================================================

// EntryService orchestrates manual entry writes:
//
//	Create: validate -> compute hours by type -> insert (Open, Manual)
//	Update: released gate -> validate merged -> uniqueness -> references
//	        -> recalculate -> status (explicit or auto-advance) -> persist
type EntryService struct {
	Store     Store
	Validator *Validator
	Factory   *EntryFactory
	Clock     Clock
	Logger    *zap.Logger
}

// Get returns one entry or a NotFoundError.
func (s *EntryService) Get(ctx context.Context, id EntryID) (TimeEntry, error) {
	entry, err := s.Store.GetByID(ctx, id)
	if err != nil {
		return TimeEntry{}, fmt.Errorf("load entry %s: %w", id, err)
	}
	if entry == nil {
		return TimeEntry{}, entryNotFound(id)
	}
	return *entry, nil
}

// List returns the entries of a user in [from, to].
func (s *EntryService) List(ctx context.Context, userID UserID, from, to Date) ([]TimeEntry, error) {
	if from.IsZero() || to.IsZero() {
		return nil, validationErr("from", "from and to are required")
	}
	if to.Before(from) {
		return nil, validationErr("to", "%s is before %s", to, from)
	}
	entries, err := s.Store.EntriesInRange(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// Create validates and stores a manual entry.
func (s *EntryService) Create(ctx context.Context, in EntryInput) (TimeEntry, error) {
	entryType, err := s.Validator.ValidateRequiredFieldsForCreate(in)
	if err != nil {
		return TimeEntry{}, err
	}
	if err := s.Validator.ValidateUniqueEntryPerDay(ctx, in.UserID, in.WorkDate, ""); err != nil {
		return TimeEntry{}, err
	}

	now := s.now()
	entry := TimeEntry{
		ID:               s.Factory.newID(),
		UserID:           in.UserID,
		WorkDate:         in.WorkDate,
		EntryType:        entryType,
		StartTime:        in.StartTime,
		EndTime:          in.EndTime,
		BreakMinutes:     in.BreakMinutes,
		Status:           StatusOpen,
		Source:           SourceManual,
		Note:             in.Note,
		ProjectID:        in.ProjectID,
		ActivityCode:     in.ActivityCode,
		WorkLocationCode: in.WorkLocationCode,
		TravelTypeCode:   in.TravelTypeCode,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.Validator.ValidateReferences(ctx, entry); err != nil {
		return TimeEntry{}, err
	}
	if err := s.computeHours(ctx, &entry); err != nil {
		return TimeEntry{}, err
	}

	if err := s.Store.Insert(ctx, entry); err != nil {
		return TimeEntry{}, fmt.Errorf("insert entry: %w", err)
	}
	s.logger().Debug("entry created",
		zap.String("id", string(entry.ID)),
		zap.String("user", string(entry.UserID)),
		zap.String("date", entry.WorkDate.String()),
		zap.String("type", string(entry.EntryType)))
	return entry, nil
}

// Update applies a patch to a stored entry.
func (s *EntryService) Update(ctx context.Context, id EntryID, patch EntryPatch) (TimeEntry, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return TimeEntry{}, err
	}
	if err := EnsureEditable(&existing); err != nil {
		return TimeEntry{}, err
	}
	if err := s.Validator.ValidateFieldsForUpdate(patch, existing); err != nil {
		return TimeEntry{}, err
	}

	merged := patch.ApplyTo(existing)
	if merged.UserID != existing.UserID || !merged.WorkDate.Equal(existing.WorkDate) {
		if err := s.Validator.ValidateUniqueEntryPerDay(ctx, merged.UserID, merged.WorkDate, id); err != nil {
			return TimeEntry{}, err
		}
	}
	if err := s.Validator.ValidateReferences(ctx, merged); err != nil {
		return TimeEntry{}, err
	}

	if RequiresTimeRecalculation(patch) {
		if err := s.computeHours(ctx, &merged); err != nil {
			return TimeEntry{}, err
		}
	}

	if patch.Status != nil {
		if err := ValidateStatusChange(existing.Status, *patch.Status); err != nil {
			return TimeEntry{}, err
		}
		if *patch.Status == StatusDone && existing.Status != StatusDone {
			if err := CheckDoneAllowed(ctx, s.Store, existing); err != nil {
				return TimeEntry{}, err
			}
		}
		merged.Status = *patch.Status
	} else {
		merged.Status = AutoAdvance(existing.Status)
	}

	merged.UpdatedAt = s.now()
	if err := s.Store.Update(ctx, merged); err != nil {
		return TimeEntry{}, fmt.Errorf("update entry %s: %w", id, err)
	}
	return merged, nil
}

// Delete always fails: entries are never removed.
func (s *EntryService) Delete(_ context.Context, id EntryID) error {
	return &ConflictError{Reason: "time entries cannot be deleted", EntryIDs: []EntryID{id}}
}

// computeHours fills the derived fields according to the entry type.
func (s *EntryService) computeHours(ctx context.Context, e *TimeEntry) error {
	switch {
	case e.EntryType.RequiresWorkedTime():
		data, err := s.Factory.CreateWorkTimeData(ctx, e.UserID, e.StartTime, e.EndTime, e.BreakMinutes)
		if err != nil {
			return err
		}
		data.Apply(e)
	case e.EntryType.CreditsExpectedHours():
		data, err := s.Factory.CreateNonWorkTimeData(ctx, e.UserID)
		if err != nil {
			return err
		}
		data.Apply(e)
		e.StartTime, e.EndTime = "", ""
	default:
		WorkTimeData{
			GrossHours:     decimal.Zero,
			NetHours:       decimal.Zero,
			OvertimeHours:  decimal.Zero,
			UndertimeHours: decimal.Zero,
			ExpectedHours:  decimal.Zero,
		}.Apply(e)
		e.StartTime, e.EndTime = "", ""
	}
	return nil
}

func (s *EntryService) now() time.Time {
	return s.Clock.now().UTC().Truncate(time.Second)
}

func (s *EntryService) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
