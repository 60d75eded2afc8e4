/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DECIMALS:
  Hour values are serialized as JSON strings ("7.8") by shopspring/decimal.

SEE ALSO:
  - handlers.go: Uses these types
  - timesheet/validator.go: EntryInput and EntryPatch (used as request bodies)
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/timesheet-engine/timesheet"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// EntryDTO represents a time entry in API responses.
type EntryDTO struct {
	ID                 string          `json:"id"`
	UserID             string          `json:"user_id"`
	WorkDate           string          `json:"work_date"`
	EntryType          string          `json:"entry_type"`
	StartTime          string          `json:"start_time,omitempty"`
	EndTime            string          `json:"end_time,omitempty"`
	BreakMinutes       int             `json:"break_minutes"`
	DurationHoursGross decimal.Decimal `json:"duration_hours_gross"`
	DurationHoursNet   decimal.Decimal `json:"duration_hours_net"`
	OvertimeHours      decimal.Decimal `json:"overtime_hours"`
	UndertimeHours     decimal.Decimal `json:"undertime_hours"`
	ExpectedDailyHours decimal.Decimal `json:"expected_daily_hours"`
	Status             string          `json:"status"`
	Source             string          `json:"source"`
	Note               string          `json:"note,omitempty"`
	ProjectID          string          `json:"project_id,omitempty"`
	ActivityCode       string          `json:"activity_code,omitempty"`
	WorkLocationCode   string          `json:"work_location_code,omitempty"`
	TravelTypeCode     string          `json:"travel_type_code,omitempty"`
	CreatedAt          string          `json:"created_at"`
	UpdatedAt          string          `json:"updated_at"`
}

// UserDTO represents an employee profile.
type UserDTO struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	WeeklyHours        decimal.Decimal `json:"weekly_hours"`
	WorkingDaysPerWeek int             `json:"working_days_per_week"`
	ExpectedDailyHours decimal.Decimal `json:"expected_daily_hours"`
	StateCode          string          `json:"state_code,omitempty"`
}

// SaveUserRequest is the body of POST /api/users.
type SaveUserRequest struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	WeeklyHours        decimal.Decimal `json:"weekly_hours"`
	WorkingDaysPerWeek int             `json:"working_days_per_week"`
	StateCode          string          `json:"state_code"`
}

// StatusActionRequest is the body of the done and release actions.
type StatusActionRequest struct {
	IDs []timesheet.EntryID `json:"ids"`
}

// GenerateYearRequest is the body of POST /api/users/{id}/generate/year.
type GenerateYearRequest struct {
	Year      int    `json:"year"`
	StateCode string `json:"state_code"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error    string   `json:"error"`
	Details  string   `json:"details,omitempty"`
	Field    string   `json:"field,omitempty"`
	EntryIDs []string `json:"entry_ids,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toEntryDTO(e timesheet.TimeEntry) EntryDTO {
	return EntryDTO{
		ID:                 string(e.ID),
		UserID:             string(e.UserID),
		WorkDate:           e.WorkDate.String(),
		EntryType:          string(e.EntryType),
		StartTime:          e.StartTime,
		EndTime:            e.EndTime,
		BreakMinutes:       e.BreakMinutes,
		DurationHoursGross: e.DurationHoursGross,
		DurationHoursNet:   e.DurationHoursNet,
		OvertimeHours:      e.OvertimeHours,
		UndertimeHours:     e.UndertimeHours,
		ExpectedDailyHours: e.ExpectedDailyHours,
		Status:             string(e.Status),
		Source:             string(e.Source),
		Note:               e.Note,
		ProjectID:          e.ProjectID,
		ActivityCode:       e.ActivityCode,
		WorkLocationCode:   e.WorkLocationCode,
		TravelTypeCode:     e.TravelTypeCode,
		CreatedAt:          e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          e.UpdatedAt.Format(time.RFC3339),
	}
}

func toEntryDTOs(entries []timesheet.TimeEntry) []EntryDTO {
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	return dtos
}

func toUserDTO(u timesheet.User) UserDTO {
	return UserDTO{
		ID:                 string(u.ID),
		Name:               u.Name,
		WeeklyHours:        u.WeeklyHours,
		WorkingDaysPerWeek: u.WorkingDaysPerWeek,
		ExpectedDailyHours: u.ExpectedDailyHours,
		StateCode:          u.StateCode,
	}
}
