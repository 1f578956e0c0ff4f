/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model from the wire contract: dates travel as "YYYY-MM-DD",
  clock times as "HH:MM" or "HH:MM:SS", worked hours as a 2-decimal string.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request structs carry go-playground/validator tags for presence and
  shape. Domain rules (ranges, ordering, references) stay in the
  attendance package and surface as ValidationError.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/report"
)

// =============================================================================
// REQUESTS
// =============================================================================

type CreateUnitRequest struct {
	Name     string  `json:"name" validate:"required,max=200"`
	ParentID *string `json:"parent_id" validate:"omitempty,uuid"`
}

type CreateWorkerRequest struct {
	EmployeeNumber string `json:"employee_number" validate:"max=50"`
	FirstName      string `json:"first_name" validate:"required_without=LastName,max=100"`
	LastName       string `json:"last_name" validate:"required_without=FirstName,max=100"`
	Email          string `json:"email" validate:"omitempty,email"`
	UnitID         string `json:"unit_id" validate:"required"`
}

type CreateShiftRequest struct {
	Label          string `json:"label" validate:"required,max=100"`
	ExpectedStart  string `json:"expected_start" validate:"required"`
	ExpectedEnd    string `json:"expected_end" validate:"required"`
	ActiveWeekdays string `json:"active_weekdays"`
}

type CreateIncidentTypeRequest struct {
	Description string `json:"description" validate:"required,max=200"`
}

type AssignShiftRequest struct {
	ShiftID   string `json:"shift_id" validate:"required"`
	ValidFrom string `json:"valid_from" validate:"required,datetime=2006-01-02"`
}

// ClockRequest is the body of check-in and check-out. Missing fields
// default to the server's current date and time.
type ClockRequest struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Time string `json:"time"`
}

type EditRecordRequest struct {
	WorkerID       string  `json:"worker_id" validate:"required"`
	Date           string  `json:"date" validate:"required,datetime=2006-01-02"`
	CheckIn        *string `json:"check_in"`
	CheckOut       *string `json:"check_out"`
	IncidentTypeID *string `json:"incident_type_id"`
}

type CalendarDayRequest struct {
	IsNonWorking *bool  `json:"is_non_working" validate:"required"`
	Reason       string `json:"reason" validate:"max=200"`
}

type CreateIncidentRequest struct {
	WorkerID       string `json:"worker_id" validate:"required"`
	IncidentTypeID string `json:"incident_type_id" validate:"required"`
	DateStart      string `json:"date_start" validate:"required,datetime=2006-01-02"`
	DateEnd        string `json:"date_end" validate:"required,datetime=2006-01-02"`
	Reason         string `json:"reason" validate:"max=1000"`
}

type RejectIncidentRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type UnitDTO struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id,omitempty"`
}

type WorkerDTO struct {
	ID             string `json:"id"`
	EmployeeNumber string `json:"employee_number,omitempty"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email,omitempty"`
	UnitID         string `json:"unit_id"`
	Active         bool   `json:"active"`
}

type ShiftDTO struct {
	ID             string `json:"id"`
	Label          string `json:"label"`
	ExpectedStart  string `json:"expected_start"`
	ExpectedEnd    string `json:"expected_end"`
	ActiveWeekdays string `json:"active_weekdays"`
}

type AssignmentDTO struct {
	ID         string  `json:"id"`
	WorkerID   string  `json:"worker_id"`
	ShiftID    string  `json:"shift_id"`
	ValidFrom  string  `json:"valid_from"`
	ValidUntil *string `json:"valid_until"`
}

type RecordDTO struct {
	ID             string  `json:"id"`
	WorkerID       string  `json:"worker_id"`
	Date           string  `json:"date"`
	CheckIn        *string `json:"check_in"`
	CheckOut       *string `json:"check_out"`
	IncidentTypeID *string `json:"incident_type_id"`
	Status         string  `json:"status"`
	LateMinutes    int     `json:"late_minutes"`
	WorkedHours    string  `json:"worked_hours"`
}

type CalendarDayDTO struct {
	Date         string `json:"date"`
	IsNonWorking bool   `json:"is_non_working"`
	Reason       string `json:"reason,omitempty"`
}

type IncidentTypeDTO struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

type IncidentDTO struct {
	ID              string  `json:"id"`
	WorkerID        string  `json:"worker_id"`
	IncidentTypeID  string  `json:"incident_type_id"`
	DateStart       string  `json:"date_start"`
	DateEnd         string  `json:"date_end"`
	Reason          string  `json:"reason,omitempty"`
	Status          string  `json:"status"`
	RequestedBy     string  `json:"requested_by"`
	ApprovedBy      *string `json:"approved_by,omitempty"`
	RejectionReason *string `json:"rejection_reason,omitempty"`
	DecidedAt       *string `json:"decided_at,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

type SummaryDTO struct {
	WorkerID         string         `json:"worker_id,omitempty"`
	UnitID           string         `json:"unit_id,omitempty"`
	From             string         `json:"from"`
	To               string         `json:"to"`
	Records          int            `json:"records"`
	Counts           map[string]int `json:"counts"`
	TotalLateMinutes int            `json:"total_late_minutes"`
	TotalWorkedHours string         `json:"total_worked_hours"`
	ScheduledDays    int            `json:"scheduled_days"`
}

type AuditEntryDTO struct {
	ID      string         `json:"id"`
	At      string         `json:"at"`
	ActorID string         `json:"actor_id"`
	Action  string         `json:"action"`
	Subject string         `json:"subject"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func clockPtr(c *generic.ClockTime) *string {
	if c == nil {
		return nil
	}
	s := c.String()
	return &s
}

func toUnitDTO(u attendance.Unit) UnitDTO {
	return UnitDTO{ID: u.ID, Name: u.Name, ParentID: u.ParentID}
}

func toWorkerDTO(w attendance.Worker) WorkerDTO {
	return WorkerDTO{
		ID:             w.ID,
		EmployeeNumber: w.EmployeeNumber,
		FirstName:      w.FirstName,
		LastName:       w.LastName,
		Email:          w.Email,
		UnitID:         w.UnitID,
		Active:         w.Active,
	}
}

func toShiftDTO(s attendance.WorkShift) ShiftDTO {
	return ShiftDTO{
		ID:             s.ID,
		Label:          s.Label,
		ExpectedStart:  s.ExpectedStart.String(),
		ExpectedEnd:    s.ExpectedEnd.String(),
		ActiveWeekdays: s.ActiveWeekdays,
	}
}

func toAssignmentDTO(a attendance.ScheduleAssignment) AssignmentDTO {
	dto := AssignmentDTO{
		ID:        a.ID,
		WorkerID:  a.WorkerID,
		ShiftID:   a.ShiftID,
		ValidFrom: a.ValidFrom.String(),
	}
	if a.ValidUntil != nil {
		until := a.ValidUntil.String()
		dto.ValidUntil = &until
	}
	return dto
}

func toRecordDTO(r attendance.Record) RecordDTO {
	return RecordDTO{
		ID:             r.ID,
		WorkerID:       r.WorkerID,
		Date:           r.Date.String(),
		CheckIn:        clockPtr(r.CheckIn),
		CheckOut:       clockPtr(r.CheckOut),
		IncidentTypeID: r.IncidentTypeID,
		Status:         string(r.Status),
		LateMinutes:    r.LateMinutes,
		WorkedHours:    r.WorkedHours.StringFixed(2),
	}
}

func toCalendarDayDTO(d attendance.NonWorkingDay) CalendarDayDTO {
	return CalendarDayDTO{Date: d.Date.String(), IsNonWorking: d.IsNonWorking, Reason: d.Reason}
}

func toIncidentTypeDTO(t attendance.IncidentType) IncidentTypeDTO {
	return IncidentTypeDTO{ID: t.ID, Description: t.Description}
}

func toIncidentDTO(i attendance.Incident) IncidentDTO {
	dto := IncidentDTO{
		ID:              i.ID,
		WorkerID:        i.WorkerID,
		IncidentTypeID:  i.IncidentTypeID,
		DateStart:       i.DateStart.String(),
		DateEnd:         i.DateEnd.String(),
		Reason:          i.Reason,
		Status:          string(i.Status),
		RequestedBy:     i.RequestedBy,
		ApprovedBy:      i.ApprovedBy,
		RejectionReason: i.RejectionReason,
		CreatedAt:       i.CreatedAt.Format(time.RFC3339),
	}
	if i.DecidedAt != nil {
		at := i.DecidedAt.Format(time.RFC3339)
		dto.DecidedAt = &at
	}
	return dto
}

func toSummaryDTO(s report.Summary) SummaryDTO {
	counts := make(map[string]int, len(s.Counts))
	for st, n := range s.Counts {
		counts[string(st)] = n
	}
	return SummaryDTO{
		WorkerID:         s.Scope.WorkerID,
		UnitID:           s.Scope.UnitID,
		From:             s.Scope.Period.Start.String(),
		To:               s.Scope.Period.End.String(),
		Records:          s.Records,
		Counts:           counts,
		TotalLateMinutes: s.TotalLateMinutes,
		TotalWorkedHours: s.TotalWorkedHours.StringFixed(2),
		ScheduledDays:    s.ScheduledDays,
	}
}

func toAuditEntryDTO(e generic.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:      e.ID,
		At:      e.At.Format(time.RFC3339),
		ActorID: e.ActorID,
		Action:  string(e.Action),
		Subject: e.Subject,
		Payload: e.Payload,
	}
}

func mapSlice[T, D any](in []T, fn func(T) D) []D {
	out := make([]D, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}
	return out
}
