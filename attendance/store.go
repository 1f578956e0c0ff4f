/*
store.go - Persistence interfaces for the attendance engine

PURPOSE:
  Defines the boundary between the domain logic and the database. The
  service never touches SQL; it receives a Store scoped to one transaction
  and performs every read-modify-write through it.

KEY INTERFACES:
  DirectoryStore:  units, workers, incident types
  CalendarStore:   non-working days
  ShiftStore:      shift catalog
  AssignmentStore: worker-to-shift history
  RecordStore:     attendance records (unique per worker-day)
  IncidentStore:   leave requests
  TxStore:         WithTx for atomic multi-row operations

MISSING ROWS:
  Get* methods return (nil, nil) when the row does not exist. The service
  turns that into a NotFoundError with the right kind and ID.

UNIQUENESS:
  InsertRecord MUST fail with generic.ErrDuplicateRecord when a record for
  the same (worker, date) exists. Implementations enforce it in storage
  (unique index), so two concurrent writers on one worker-day serialize and
  the loser gets a conflict.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite
  - store/memory: in-memory for tests and development
*/
package attendance

import (
	"context"

	"github.com/warp/attendance-engine/generic"
)

type DirectoryStore interface {
	SaveUnit(ctx context.Context, u Unit) error
	GetUnit(ctx context.Context, id string) (*Unit, error)
	ListUnits(ctx context.Context) ([]Unit, error)

	SaveWorker(ctx context.Context, w Worker) error
	GetWorker(ctx context.Context, id string) (*Worker, error)
	// ListWorkers returns workers of a unit ordered by last name; "" lists all.
	ListWorkers(ctx context.Context, unitID string) ([]Worker, error)

	SaveIncidentType(ctx context.Context, t IncidentType) error
	GetIncidentType(ctx context.Context, id string) (*IncidentType, error)
	ListIncidentTypes(ctx context.Context) ([]IncidentType, error)
}

type CalendarStore interface {
	// SaveNonWorkingDay inserts or replaces the entry keyed by date.
	SaveNonWorkingDay(ctx context.Context, d NonWorkingDay) error
	GetNonWorkingDay(ctx context.Context, date generic.TimePoint) (*NonWorkingDay, error)
	ListNonWorkingDays(ctx context.Context, period generic.Period) ([]NonWorkingDay, error)
	DeleteNonWorkingDay(ctx context.Context, date generic.TimePoint) error
}

type ShiftStore interface {
	SaveShift(ctx context.Context, s WorkShift) error
	GetShift(ctx context.Context, id string) (*WorkShift, error)
	ListShifts(ctx context.Context) ([]WorkShift, error)
	DeleteShift(ctx context.Context, id string) error
}

type AssignmentStore interface {
	InsertAssignment(ctx context.Context, a ScheduleAssignment) error
	CloseAssignment(ctx context.Context, id string, until generic.TimePoint) error
	// ListAssignments returns a worker's history ordered by ValidFrom.
	ListAssignments(ctx context.Context, workerID string) ([]ScheduleAssignment, error)
	CountAssignmentsForShift(ctx context.Context, shiftID string) (int, error)
}

type RecordStore interface {
	InsertRecord(ctx context.Context, r Record) error
	UpdateRecord(ctx context.Context, r Record) error
	GetRecord(ctx context.Context, workerID string, date generic.TimePoint) (*Record, error)
	// ListRecords returns records ordered by date, then worker.
	ListRecords(ctx context.Context, filter RecordFilter) ([]Record, error)
	CountRecordsOn(ctx context.Context, date generic.TimePoint) (int, error)
}

type IncidentStore interface {
	InsertIncident(ctx context.Context, i Incident) error
	UpdateIncident(ctx context.Context, i Incident) error
	GetIncident(ctx context.Context, id string) (*Incident, error)
	// ListIncidents returns incidents newest DateStart first.
	ListIncidents(ctx context.Context, filter IncidentFilter) ([]Incident, error)
}

// Store is everything the service reads and writes.
type Store interface {
	DirectoryStore
	CalendarStore
	ShiftStore
	AssignmentStore
	RecordStore
	IncidentStore
	generic.AuditLog
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// Lookup is the read-only subset Recompute needs.
type Lookup interface {
	GetNonWorkingDay(ctx context.Context, date generic.TimePoint) (*NonWorkingDay, error)
	ListAssignments(ctx context.Context, workerID string) ([]ScheduleAssignment, error)
	GetShift(ctx context.Context, id string) (*WorkShift, error)
}
