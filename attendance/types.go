/*
Package attendance implements daily attendance tracking on top of the generic
date and error primitives.

PURPOSE:
  Given a worker and a date, decide whether that worker-day counts as on-time,
  late, absent, justified or non-working, and keep those decisions consistent
  when a leave request is approved after the fact.

KEY CONCEPTS IN THIS FILE (types.go):
  - Record: one row per worker-day with check-in/out marks and derived fields
  - WorkShift / ScheduleAssignment: the expected schedule and who follows it
  - NonWorkingDay: organization-wide calendar exceptions
  - Incident / IncidentType: leave requests and their catalog
  - Unit / Worker: the organizational directory the rest references

DERIVED FIELDS:
  Status, LateMinutes and WorkedHours are never accepted from callers. Every
  write path runs Recompute (engine.go) inside the same transaction as the
  write, so a record is never visible with stale derived fields.

SEE ALSO:
  - engine.go: status precedence
  - schedule.go: assignment history and reassignment
  - incident.go: approval workflow and reconciliation
*/
package attendance

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// ATTENDANCE STATUS
// =============================================================================

type Status string

const (
	StatusNormal     Status = "NORMAL"
	StatusLate       Status = "LATE"
	StatusAbsent     Status = "ABSENT"
	StatusJustified  Status = "JUSTIFIED"
	StatusNonWorking Status = "NON_WORKING"
)

// Statuses lists every status in reporting order.
var Statuses = []Status{StatusNormal, StatusLate, StatusAbsent, StatusJustified, StatusNonWorking}

// =============================================================================
// ATTENDANCE RECORD - One per worker-day
// =============================================================================

type Record struct {
	ID       string
	WorkerID string
	Date     generic.TimePoint

	CheckIn  *generic.ClockTime // nil = no check-in mark
	CheckOut *generic.ClockTime // nil = no check-out mark

	// IncidentTypeID tags the day as covered by an approved incident or an
	// administrative justification.
	IncidentTypeID *string

	// Derived by Recompute, never set by callers
	Status      Status
	LateMinutes int
	WorkedHours decimal.Decimal

	UpdatedAt time.Time
}

// RecordFilter narrows record listings. Empty fields match everything.
type RecordFilter struct {
	WorkerIDs []string
	Period    *generic.Period
}

// =============================================================================
// CALENDAR
// =============================================================================

// NonWorkingDay marks a calendar date on which no attendance obligation
// exists. Only rows with IsNonWorking set affect status.
type NonWorkingDay struct {
	Date         generic.TimePoint
	IsNonWorking bool
	Reason       string
}

// =============================================================================
// SCHEDULE
// =============================================================================

// ScheduleAssignment binds a worker to a shift over [ValidFrom, ValidUntil].
// A nil ValidUntil marks the open assignment; a worker has at most one.
type ScheduleAssignment struct {
	ID         string
	WorkerID   string
	ShiftID    string
	ValidFrom  generic.TimePoint
	ValidUntil *generic.TimePoint
	CreatedAt  time.Time
}

func (a ScheduleAssignment) IsOpen() bool { return a.ValidUntil == nil }

func (a ScheduleAssignment) Range() generic.OpenPeriod {
	return generic.OpenPeriod{Start: a.ValidFrom, End: a.ValidUntil}
}

// IsActive returns true if the assignment covers the given date.
func (a ScheduleAssignment) IsActive(at generic.TimePoint) bool {
	return a.Range().Contains(at)
}

// =============================================================================
// DIRECTORY
// =============================================================================

// Unit is an administrative unit; units nest through ParentID.
type Unit struct {
	ID       string
	Name     string
	ParentID *string
}

type Worker struct {
	ID             string
	EmployeeNumber string
	FirstName      string
	LastName       string
	Email          string
	UnitID         string
	Active         bool
	CreatedAt      time.Time
}

// DisplayName is the name used in unit-scoped listings and exports.
func (w Worker) DisplayName() string {
	if w.LastName == "" {
		return w.FirstName
	}
	if w.FirstName == "" {
		return w.LastName
	}
	return w.LastName + " " + w.FirstName
}

type IncidentType struct {
	ID          string
	Description string
}

// =============================================================================
// INCIDENT - A leave/permission request covering a date range
// =============================================================================

type IncidentStatus string

const (
	IncidentPending  IncidentStatus = "PENDING"
	IncidentApproved IncidentStatus = "APPROVED"
	IncidentRejected IncidentStatus = "REJECTED"
)

type Incident struct {
	ID             string
	WorkerID       string
	IncidentTypeID string
	DateStart      generic.TimePoint
	DateEnd        generic.TimePoint
	Reason         string
	Status         IncidentStatus

	RequestedBy     string
	ApprovedBy      *string // set by whoever decided, approve or reject
	RejectionReason *string
	DecidedAt       *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (i Incident) Period() generic.Period {
	return generic.Period{Start: i.DateStart, End: i.DateEnd}
}

// IncidentFilter narrows incident listings. Empty fields match everything.
type IncidentFilter struct {
	WorkerID    string
	Status      IncidentStatus
	Overlapping *generic.Period
}

// Matches applies the filter to a single incident.
func (f IncidentFilter) Matches(i Incident) bool {
	if f.WorkerID != "" && i.WorkerID != f.WorkerID {
		return false
	}
	if f.Status != "" && i.Status != f.Status {
		return false
	}
	if f.Overlapping != nil && !i.Period().Overlaps(*f.Overlapping) {
		return false
	}
	return true
}
