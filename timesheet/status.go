/*
status.go - Entry status lifecycle

PURPOSE:
  Gates every status change. The lifecycle is fixed in code; master data
  (StatusMeta action flags) can only narrow it, and is checked against
  the fixed table when it is loaded.

LIFECYCLE:
  Open --> Processed --> Done --> Released (terminal)

  - Any field edit moves Open/Done to Processed unless a status is given.
  - Released is reachable only through Release, never through an edit.
  - MarkDone skips entries already Done but rejects Released ones.
  - Release skips entries already Released but rejects anything not Done.

SEE ALSO:
  - service.go: Calls EnsureEditable / ValidateStatusChange / AutoAdvance
  - factory/status.go: JSON master data
*/
package timesheet

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// StatusMeta is the master data of one status code.
type StatusMeta struct {
	Code               Status `json:"code"`
	AllowDoneAction    bool   `json:"allow_done_action"`
	AllowReleaseAction bool   `json:"allow_release_action"`
	TransitionTarget   Status `json:"transition_target,omitempty"`
}

// canonicalSuccessor is the fixed transition table.
var canonicalSuccessor = map[Status]Status{
	StatusOpen:      StatusProcessed,
	StatusProcessed: StatusDone,
	StatusDone:      StatusReleased,
}

// CanonicalSuccessor returns the next status of the lifecycle, or "" for Released.
func CanonicalSuccessor(s Status) Status {
	return canonicalSuccessor[s]
}

// DefaultStatusCatalog returns the metadata matching the fixed lifecycle.
func DefaultStatusCatalog() map[Status]StatusMeta {
	return map[Status]StatusMeta{
		StatusOpen:      {Code: StatusOpen, AllowDoneAction: true},
		StatusProcessed: {Code: StatusProcessed, AllowDoneAction: true, TransitionTarget: StatusDone},
		StatusDone:      {Code: StatusDone, AllowReleaseAction: true, TransitionTarget: StatusReleased},
		StatusReleased:  {Code: StatusReleased},
	}
}

// ValidateStatusCatalog checks master data against the fixed lifecycle.
func ValidateStatusCatalog(catalog map[Status]StatusMeta) error {
	for _, code := range Statuses() {
		if _, ok := catalog[code]; !ok {
			return validationErr("statuses", "status %q is missing", code)
		}
	}
	for code, meta := range catalog {
		if !code.Valid() {
			return validationErr("statuses", "unknown status %q", code)
		}
		if meta.Code != "" && meta.Code != code {
			return validationErr("statuses", "status %q is keyed as %q", meta.Code, code)
		}
		if code == StatusReleased && (meta.AllowDoneAction || meta.AllowReleaseAction || meta.TransitionTarget != "") {
			return validationErr("statuses", "released is terminal and carries no actions")
		}
		if meta.AllowReleaseAction && code != StatusDone {
			return validationErr("statuses", "release is only allowed from done, not %q", code)
		}
		if meta.AllowDoneAction && code.rank() >= StatusDone.rank() {
			return validationErr("statuses", "done action is not allowed from %q", code)
		}
		if meta.TransitionTarget != "" && meta.TransitionTarget != canonicalSuccessor[code] {
			return validationErr("statuses", "%q cannot transition to %q", code, meta.TransitionTarget)
		}
	}
	return nil
}

// =============================================================================
// FIELD-EDIT RULES
// =============================================================================

// EnsureEditable rejects edits of released entries.
func EnsureEditable(e *TimeEntry) error {
	if e.Status == StatusReleased {
		return &ConflictError{Reason: "released entries cannot be changed", EntryIDs: []EntryID{e.ID}}
	}
	return nil
}

// ValidateStatusChange checks a status requested through a field edit.
func ValidateStatusChange(current, requested Status) error {
	if !requested.Valid() {
		return validationErr("status", "unknown status %q", requested)
	}
	if requested == current {
		return nil
	}
	if requested == StatusReleased {
		return &ConflictError{Reason: "released can only be set by the release action"}
	}
	return nil
}

// AutoAdvance returns the status an edited entry moves to when the edit
// names no status.
func AutoAdvance(current Status) Status {
	if current == StatusReleased || current == StatusProcessed {
		return current
	}
	return StatusProcessed
}

// =============================================================================
// BATCH ACTIONS
// =============================================================================

// StatusStore is the persistence slice the batch actions need.
type StatusStore interface {
	GetByIDs(ctx context.Context, ids []EntryID) ([]TimeEntry, error)
	UpdateStatusBatch(ctx context.Context, ids []EntryID, status Status) error
	StatusCatalog
}

// StatusMachine runs the batch markDone and release actions.
type StatusMachine struct {
	Store  StatusStore
	Logger *zap.Logger
}

// StatusResult lists what a batch action changed.
type StatusResult struct {
	Status  Status    `json:"status"`
	Updated []EntryID `json:"updated"`
	Skipped []EntryID `json:"skipped"`
}

// MarkDone moves the given entries to Done. Entries already Done are
// skipped; a released or otherwise ineligible entry aborts the batch
// before anything is written.
func (sm *StatusMachine) MarkDone(ctx context.Context, ids []EntryID) (StatusResult, error) {
	return sm.apply(ctx, ids, StatusDone, func(e TimeEntry, meta StatusMeta) (bool, error) {
		switch e.Status {
		case StatusReleased:
			return false, &ConflictError{Reason: "released entries cannot be marked done", EntryIDs: []EntryID{e.ID}}
		case StatusDone:
			return false, nil
		}
		if err := doneAllowed(e, meta); err != nil {
			return false, err
		}
		return true, nil
	})
}

// CheckDoneAllowed applies the markDone master-data check to a single
// entry whose edit requests Done explicitly.
func CheckDoneAllowed(ctx context.Context, src StatusCatalog, e TimeEntry) error {
	catalog, err := loadStatusMeta(ctx, src, []TimeEntry{e})
	if err != nil {
		return err
	}
	return doneAllowed(e, catalog[e.Status])
}

func doneAllowed(e TimeEntry, meta StatusMeta) error {
	if !meta.AllowDoneAction || !targetAllows(meta, StatusDone) {
		return &ConflictError{Reason: fmt.Sprintf("done is not allowed from %s", e.Status), EntryIDs: []EntryID{e.ID}}
	}
	return nil
}

// Release moves the given entries to Released. Entries already Released
// are skipped; anything not Done aborts the batch.
func (sm *StatusMachine) Release(ctx context.Context, ids []EntryID) (StatusResult, error) {
	return sm.apply(ctx, ids, StatusReleased, func(e TimeEntry, meta StatusMeta) (bool, error) {
		if e.Status == StatusReleased {
			return false, nil
		}
		if !meta.AllowReleaseAction || !targetAllows(meta, StatusReleased) {
			return false, &ConflictError{Reason: fmt.Sprintf("release is not allowed from %s", e.Status), EntryIDs: []EntryID{e.ID}}
		}
		return true, nil
	})
}

func targetAllows(meta StatusMeta, target Status) bool {
	return meta.TransitionTarget == "" || meta.TransitionTarget == target
}

type eligibility func(e TimeEntry, meta StatusMeta) (bool, error)

func (sm *StatusMachine) apply(ctx context.Context, ids []EntryID, target Status, eligible eligibility) (StatusResult, error) {
	result := StatusResult{Status: target, Updated: []EntryID{}, Skipped: []EntryID{}}

	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return result, validationErr("ids", "at least one entry id is required")
	}

	entries, err := sm.Store.GetByIDs(ctx, ids)
	if err != nil {
		return result, fmt.Errorf("load entries: %w", err)
	}
	byID := make(map[EntryID]TimeEntry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
	var missing []EntryID
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return result, entryNotFound(missing...)
	}

	catalog, err := loadStatusMeta(ctx, sm.Store, entries)
	if err != nil {
		return result, err
	}

	// Validate everything before writing anything.
	for _, id := range ids {
		e := byID[id]
		ok, err := eligible(e, catalog[e.Status])
		if err != nil {
			return StatusResult{Status: target, Updated: []EntryID{}, Skipped: []EntryID{}}, err
		}
		if ok {
			result.Updated = append(result.Updated, id)
		} else {
			result.Skipped = append(result.Skipped, id)
		}
	}

	if len(result.Updated) > 0 {
		if err := sm.Store.UpdateStatusBatch(ctx, result.Updated, target); err != nil {
			return result, fmt.Errorf("update status: %w", err)
		}
	}

	sm.logger().Info("status batch applied",
		zap.String("status", string(target)),
		zap.Int("updated", len(result.Updated)),
		zap.Int("skipped", len(result.Skipped)))
	return result, nil
}

// loadStatusMeta loads the metadata of the statuses present in entries.
// Codes missing from master data use the canonical metadata.
func loadStatusMeta(ctx context.Context, src StatusCatalog, entries []TimeEntry) (map[Status]StatusMeta, error) {
	seen := map[Status]bool{}
	var codes []Status
	for _, e := range entries {
		if !seen[e.Status] {
			seen[e.Status] = true
			codes = append(codes, e.Status)
		}
	}
	loaded, err := src.StatusMapByCodes(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("load status metadata: %w", err)
	}
	defaults := DefaultStatusCatalog()
	out := make(map[Status]StatusMeta, len(codes))
	for _, code := range codes {
		if meta, ok := loaded[code]; ok {
			out[code] = meta
		} else {
			out[code] = defaults[code]
		}
	}
	return out, nil
}

func (sm *StatusMachine) logger() *zap.Logger {
	if sm.Logger == nil {
		return zap.NewNop()
	}
	return sm.Logger
}

func uniqueIDs(ids []EntryID) []EntryID {
	seen := make(map[EntryID]bool, len(ids))
	out := make([]EntryID, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
