/*
handlers.go - HTTP API handlers for the timesheet engine

PURPOSE:
  Exposes the timesheet engine via REST API. Handles HTTP request/response
  and JSON serialization, and delegates to the engine. Each request runs
  in one store transaction with its own Engine.

ENDPOINTS:
  Entries:
    POST   /api/entries                 Create manual entry
    GET    /api/entries/{id}            Get entry
    PATCH  /api/entries/{id}            Partial update
    DELETE /api/entries/{id}            Always 409 (entries are never deleted)
    POST   /api/entries/done            Mark entries done      {"ids": [...]}
    POST   /api/entries/release         Release entries        {"ids": [...]}

  Users:
    GET    /api/users                   List profiles
    POST   /api/users                   Create or update profile
    GET    /api/users/{id}              Get profile
    GET    /api/users/{id}/entries      Entries in ?from=&to=
    POST   /api/users/{id}/generate/month  Fill the current month
    POST   /api/users/{id}/generate/year   Fill a year {"year", "state_code"}

  Balances:
    GET    /api/users/{id}/balance/current
    GET    /api/users/{id}/balance/recent?months=
    GET    /api/users/{id}/balance/month/{year}/{month}
    GET    /api/users/{id}/balance/year/{year}
    GET    /api/users/{id}/balance/year/{year}/export   (xlsx)

  Admin:
    POST   /api/admin/holidays/clear    Drop cached holiday calendars

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, malformed input
  - 404: Entry or user not found
  - 409: Conflict (duplicate day, status rules, released entry, delete)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/timesheet-engine/export"
	"github.com/warp/timesheet-engine/timesheet"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  timesheet.TxStore
	Deps   timesheet.Dependencies
	Logger *zap.Logger
}

// NewHandler creates a new handler over the given store.
func NewHandler(store timesheet.TxStore, deps timesheet.Dependencies) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Store: store, Deps: deps, Logger: logger}
}

// inTx runs fn with an Engine bound to one transaction.
func (h *Handler) inTx(ctx context.Context, fn func(*timesheet.Engine) error) error {
	return h.Store.WithTx(ctx, func(s timesheet.Store) error {
		return fn(timesheet.NewEngine(s, h.Deps))
	})
}

// =============================================================================
// ENTRY HANDLERS
// =============================================================================

// CreateEntry creates a manual entry.
// POST /api/entries
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var in timesheet.EntryInput
	if !decodeBody(w, r, &in) {
		return
	}

	var created timesheet.TimeEntry
	err := h.inTx(r.Context(), func(eng *timesheet.Engine) error {
		var err error
		created, err = eng.Entries.Create(r.Context(), in)
		return err
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(created))
}

// GetEntry returns one entry.
// GET /api/entries/{id}
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id := timesheet.EntryID(chi.URLParam(r, "id"))

	var entry timesheet.TimeEntry
	err := h.inTx(r.Context(), func(eng *timesheet.Engine) error {
		var err error
		entry, err = eng.Entries.Get(r.Context(), id)
		return err
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(entry))
}

// UpdateEntry applies a partial update.
// PATCH /api/entries/{id}
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id := timesheet.EntryID(chi.URLParam(r, "id"))
	var patch timesheet.EntryPatch
	if !decodeBody(w, r, &patch) {
		return
	}

	var updated timesheet.TimeEntry
	err := h.inTx(r.Context(), func(eng *timesheet.Engine) error {
		var err error
		updated, err = eng.Entries.Update(r.Context(), id, patch)
		return err
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(updated))
}

// DeleteEntry is rejected; entries are never removed.
// DELETE /api/entries/{id}
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := timesheet.EntryID(chi.URLParam(r, "id"))
	err := h.inTx(r.Context(), func(eng *timesheet.Engine) error {
		return eng.Entries.Delete(r.Context(), id)
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkDone moves entries to done.
// POST /api/entries/done
func (h *Handler) MarkDone(w http.ResponseWriter, r *http.Request) {
	h.statusAction(w, r, func(eng *timesheet.Engine, ids []timesheet.EntryID) (timesheet.StatusResult, error) {
		return eng.Status.MarkDone(r.Context(), ids)
	})
}

// Release moves entries to released.
// POST /api/entries/release
func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	h.statusAction(w, r, func(eng *timesheet.Engine, ids []timesheet.EntryID) (timesheet.StatusResult, error) {
		return eng.Status.Release(r.Context(), ids)
	})
}

func (h *Handler) statusAction(w http.ResponseWriter, r *http.Request,
	action func(*timesheet.Engine, []timesheet.EntryID) (timesheet.StatusResult, error)) {
	var req StatusActionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var result timesheet.StatusResult
	err := h.inTx(r.Context(), func(eng *timesheet.Engine) error {
		var err error
		result, err = action(eng, req.IDs)
		return err
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// ListUsers returns all profiles.
// GET /api/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context())
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": dtos})
}

// SaveUser creates or updates a profile and refreshes its expected hours.
// POST /api/users
func (h *Handler) SaveUser(w http.ResponseWriter, r *http.Request) {
	var req SaveUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == "" {
		h.writeEngineError(w, &timesheet.ValidationError{Field: "id", Message: "id is required"})
		return
	}
	if req.WeeklyHours.IsNegative() || req.WorkingDaysPerWeek < 0 || req.WorkingDaysPerWeek > 7 {
		h.writeEngineError(w, &timesheet.ValidationError{Field: "weekly_hours", Message: "weekly hours and working days must be in range"})
		return
	}

	var saved *timesheet.User
	err := h.inTx(r.Context(), func(eng *timesheet.Engine) error {
		ctx := r.Context()
		user := timesheet.User{
			ID:                 timesheet.UserID(req.ID),
			Name:               req.Name,
			WeeklyHours:        req.WeeklyHours,
			WorkingDaysPerWeek: req.WorkingDaysPerWeek,
			StateCode:          req.StateCode,
		}
		if err := eng.Profiles.Users.SaveUser(ctx, user); err != nil {
			return err
		}
		if _, err := eng.Profiles.ExpectedDailyHours(ctx, user.ID); err != nil {
			return err
		}
		var err error
		saved, err = eng.Profiles.Users.GetUser(ctx, user.ID)
		return err
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*saved))
}

// GetUser returns one profile.
// GET /api/users/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := timesheet.UserID(chi.URLParam(r, "id"))
	user, err := h.Store.GetUser(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	if user == nil {
		h.writeEngineError(w, &timesheet.NotFoundError{Kind: "user", IDs: []string{string(id)}})
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*user))
}

// ListEntries returns the entries of a user in [from, to].
// GET /api/users/{id}/entries?from=&to=
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	userID := timesheet.UserID(chi.URLParam(r, "id"))
	from, ok := queryDate(w, r, "from")
	if !ok {
		return
	}
	to, ok := queryDate(w, r, "to")
	if !ok {
		return
	}

	var entries []timesheet.TimeEntry
	err := h.inTx(r.Context(), func(eng *timesheet.Engine) error {
		var err error
		entries, err = eng.Entries.List(r.Context(), userID, from, to)
		return err
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": toEntryDTOs(entries)})
}

// =============================================================================
// GENERATION HANDLERS
// =============================================================================

// GenerateMonth fills the current month with default entries.
// POST /api/users/{id}/generate/month
func (h *Handler) GenerateMonth(w http.ResponseWriter, r *http.Request) {
	userID := timesheet.UserID(chi.URLParam(r, "id"))

	var result timesheet.GenerationResult
	err := h.inTx(r.Context(), func(eng *timesheet.Engine) error {
		var err error
		result, err = eng.Generation.GenerateMonthly(r.Context(), userID)
		return err
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GenerateYear fills a year with work, weekend and holiday entries.
// POST /api/users/{id}/generate/year
func (h *Handler) GenerateYear(w http.ResponseWriter, r *http.Request) {
	userID := timesheet.UserID(chi.URLParam(r, "id"))
	var req GenerateYearRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var result timesheet.GenerationResult
	err := h.inTx(r.Context(), func(eng *timesheet.Engine) error {
		var err error
		result, err = eng.Generation.GenerateYearly(r.Context(), userID, req.Year, req.StateCode)
		return err
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// CurrentBalance returns the balance over all entries of a user.
// GET /api/users/{id}/balance/current
func (h *Handler) CurrentBalance(w http.ResponseWriter, r *http.Request) {
	userID := timesheet.UserID(chi.URLParam(r, "id"))

	var balance timesheet.CumulativeBalance
	err := h.inTx(r.Context(), func(eng *timesheet.Engine) error {
		var err error
		balance, err = eng.Balances.CurrentCumulativeBalance(r.Context(), userID)
		return err
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

// RecentBalance returns the last n months, newest first.
// GET /api/users/{id}/balance/recent?months=
func (h *Handler) RecentBalance(w http.ResponseWriter, r *http.Request) {
	userID := timesheet.UserID(chi.URLParam(r, "id"))
	months := 0
	if raw := r.URL.Query().Get("months"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.writeEngineError(w, &timesheet.ValidationError{Field: "months", Message: "must be an integer"})
			return
		}
		months = n
	}

	var balances []timesheet.MonthlyBalance
	err := h.inTx(r.Context(), func(eng *timesheet.Engine) error {
		var err error
		balances, err = eng.Balances.RecentMonthsBalance(r.Context(), userID, months)
		return err
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"months": balances})
}

// MonthBalance returns the balance of one month.
// GET /api/users/{id}/balance/month/{year}/{month}
func (h *Handler) MonthBalance(w http.ResponseWriter, r *http.Request) {
	userID := timesheet.UserID(chi.URLParam(r, "id"))
	year, ok := pathInt(w, r, "year")
	if !ok {
		return
	}
	month, ok := pathInt(w, r, "month")
	if !ok {
		return
	}

	var balance timesheet.MonthlyBalance
	err := h.inTx(r.Context(), func(eng *timesheet.Engine) error {
		var err error
		balance, err = eng.Balances.MonthBalance(r.Context(), userID, year, month)
		return err
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

// YearBalance returns the twelve months of a year and their total.
// GET /api/users/{id}/balance/year/{year}
func (h *Handler) YearBalance(w http.ResponseWriter, r *http.Request) {
	userID := timesheet.UserID(chi.URLParam(r, "id"))
	year, ok := pathInt(w, r, "year")
	if !ok {
		return
	}

	var balance timesheet.YearBalance
	err := h.inTx(r.Context(), func(eng *timesheet.Engine) error {
		var err error
		balance, err = eng.Balances.YearBalance(r.Context(), userID, year)
		return err
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

// ExportYear streams the year balance and its entries as xlsx.
// GET /api/users/{id}/balance/year/{year}/export
func (h *Handler) ExportYear(w http.ResponseWriter, r *http.Request) {
	userID := timesheet.UserID(chi.URLParam(r, "id"))
	year, ok := pathInt(w, r, "year")
	if !ok {
		return
	}

	var buf bytes.Buffer
	err := h.inTx(r.Context(), func(eng *timesheet.Engine) error {
		ctx := r.Context()
		balance, err := eng.Balances.YearBalance(ctx, userID, year)
		if err != nil {
			return err
		}
		period := timesheet.YearPeriod(year)
		entries, err := eng.Entries.List(ctx, userID, period.Start, period.End)
		if err != nil {
			return err
		}
		return export.WriteYearReport(&buf, balance, entries)
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="balance-%s-%d.xlsx"`, userID, year))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ClearHolidays drops every cached holiday calendar.
// POST /api/admin/holidays/clear
func (h *Handler) ClearHolidays(w http.ResponseWriter, r *http.Request) {
	cache, ok := h.Deps.Holidays.(interface{ Clear() })
	if ok {
		cache.Clear()
	}
	writeJSON(w, http.StatusOK, map[string]any{"cleared": ok})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps the engine error taxonomy to HTTP status codes.
func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	var (
		validation *timesheet.ValidationError
		conflict   *timesheet.ConflictError
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation failed",
			Details: validation.Message,
			Field:   validation.Field,
		})
	case timesheet.IsValidation(err):
		writeError(w, http.StatusBadRequest, "validation failed", err)
	case timesheet.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not found", err)
	case errors.As(err, &conflict):
		resp := ErrorResponse{Error: "conflict", Details: conflict.Reason}
		for _, id := range conflict.EntryIDs {
			resp.EntryIDs = append(resp.EntryIDs, string(id))
		}
		writeJSON(w, http.StatusConflict, resp)
	case timesheet.IsConflict(err):
		writeError(w, http.StatusConflict, "conflict", err)
	default:
		h.Logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}

func pathInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: "must be an integer", Field: name})
		return 0, false
	}
	return n, true
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(w http.ResponseWriter, r *http.Request, name string) (timesheet.Date, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return timesheet.Date{}, true
	}
	d, err := timesheet.ParseDate(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: err.Error(), Field: name})
		return timesheet.Date{}, false
	}
	return d, true
}
