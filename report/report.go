/*
Package report is the read side of the attendance engine.

PURPOSE:
  Rolls attendance records up for one worker or one administrative unit over
  a date range, and renders the same rows as CSV or XLSX. Nothing here
  writes; every figure comes from fields the engine already derived.

SCOPES:
  Worker scope: one worker's records ordered by date.
  Unit scope:   every worker of the unit, ordered by last name, then date.

  Admins see any scope. Supervisors see their own unit and its workers.
  Workers see only themselves.

SCHEDULED DAYS:
  Summary.ScheduledDays counts the days a worker was expected at work: days
  covered by an assignment whose shift's weekday pattern includes that
  weekday, minus non-working days. It is informational and never feeds
  back into status.
*/
package report

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
)

// Reader is the read-only slice of attendance.Store reports need.
type Reader interface {
	GetWorker(ctx context.Context, id string) (*attendance.Worker, error)
	GetUnit(ctx context.Context, id string) (*attendance.Unit, error)
	ListWorkers(ctx context.Context, unitID string) ([]attendance.Worker, error)
	ListIncidentTypes(ctx context.Context) ([]attendance.IncidentType, error)
	ListRecords(ctx context.Context, filter attendance.RecordFilter) ([]attendance.Record, error)
	ListNonWorkingDays(ctx context.Context, period generic.Period) ([]attendance.NonWorkingDay, error)
	ListAssignments(ctx context.Context, workerID string) ([]attendance.ScheduleAssignment, error)
	GetShift(ctx context.Context, id string) (*attendance.WorkShift, error)
}

// Scope selects whose records a report covers. Exactly one of WorkerID and
// UnitID is set.
type Scope struct {
	WorkerID string
	UnitID   string
	Period   generic.Period
}

func (s Scope) IsUnit() bool { return s.UnitID != "" }

func (s Scope) Validate() error {
	if (s.WorkerID == "") == (s.UnitID == "") {
		return generic.NewValidationError("scope", "exactly one of worker_id and unit_id is required")
	}
	if s.Period.Start.IsZero() || s.Period.End.IsZero() {
		return generic.NewValidationError("from", "from and to are required")
	}
	return s.Period.Validate("to")
}

// Row is one record with the names resolved for display.
type Row struct {
	Worker       string
	IncidentType string
	attendance.Record
}

// Summary aggregates a scope. Counts has an entry for every status.
type Summary struct {
	Scope            Scope
	Counts           map[attendance.Status]int
	Records          int
	TotalLateMinutes int
	TotalWorkedHours decimal.Decimal
	ScheduledDays    int
}

type Reporter struct {
	Reader Reader
	Logger *zap.Logger
}

func NewReporter(r Reader, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{Reader: r, Logger: logger}
}

// Rows returns the scope's records in export order.
func (r *Reporter) Rows(ctx context.Context, caller attendance.Caller, scope Scope) ([]Row, error) {
	workers, err := r.resolve(ctx, caller, scope)
	if err != nil {
		return nil, err
	}
	return r.rows(ctx, workers, scope.Period)
}

// Summary returns the aggregate figures for the scope.
func (r *Reporter) Summary(ctx context.Context, caller attendance.Caller, scope Scope) (*Summary, error) {
	workers, err := r.resolve(ctx, caller, scope)
	if err != nil {
		return nil, err
	}
	rows, err := r.rows(ctx, workers, scope.Period)
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		Scope:            scope,
		Counts:           make(map[attendance.Status]int, len(attendance.Statuses)),
		TotalWorkedHours: decimal.Zero,
	}
	for _, st := range attendance.Statuses {
		sum.Counts[st] = 0
	}
	for _, row := range rows {
		sum.Counts[row.Status]++
		sum.Records++
		sum.TotalLateMinutes += row.LateMinutes
		sum.TotalWorkedHours = sum.TotalWorkedHours.Add(row.WorkedHours)
	}

	if sum.ScheduledDays, err = r.scheduledDays(ctx, workers, scope.Period); err != nil {
		return nil, err
	}

	r.Logger.Debug("summary computed",
		zap.String("worker_id", scope.WorkerID),
		zap.String("unit_id", scope.UnitID),
		zap.String("period", scope.Period.String()),
		zap.Int("records", sum.Records))
	return sum, nil
}

// resolve checks the caller's reach and returns the workers in report order.
func (r *Reporter) resolve(ctx context.Context, caller attendance.Caller, scope Scope) ([]attendance.Worker, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	if !scope.IsUnit() {
		w, err := r.Reader.GetWorker(ctx, scope.WorkerID)
		if err != nil {
			return nil, fmt.Errorf("load worker %s: %w", scope.WorkerID, err)
		}
		if w == nil {
			return nil, generic.NewNotFound("worker", scope.WorkerID)
		}
		if !caller.CanActFor(*w) {
			return nil, &generic.ForbiddenError{Action: "view report of worker " + scope.WorkerID}
		}
		return []attendance.Worker{*w}, nil
	}

	unit, err := r.Reader.GetUnit(ctx, scope.UnitID)
	if err != nil {
		return nil, fmt.Errorf("load unit %s: %w", scope.UnitID, err)
	}
	if unit == nil {
		return nil, generic.NewNotFound("unit", scope.UnitID)
	}
	if !caller.CanViewUnit(scope.UnitID) {
		return nil, &generic.ForbiddenError{Action: "view report of unit " + scope.UnitID}
	}
	return r.Reader.ListWorkers(ctx, scope.UnitID)
}

func (r *Reporter) rows(ctx context.Context, workers []attendance.Worker, period generic.Period) ([]Row, error) {
	if len(workers) == 0 {
		return nil, nil
	}

	types, err := r.Reader.ListIncidentTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list incident types: %w", err)
	}
	typeNames := make(map[string]string, len(types))
	for _, t := range types {
		typeNames[t.ID] = t.Description
	}

	ids := make([]string, len(workers))
	for i, w := range workers {
		ids[i] = w.ID
	}
	records, err := r.Reader.ListRecords(ctx, attendance.RecordFilter{WorkerIDs: ids, Period: &period})
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	// Records arrive by date; regroup by worker keeping date order inside.
	byWorker := make(map[string][]attendance.Record, len(workers))
	for _, rec := range records {
		byWorker[rec.WorkerID] = append(byWorker[rec.WorkerID], rec)
	}

	rows := make([]Row, 0, len(records))
	for _, w := range workers {
		for _, rec := range byWorker[w.ID] {
			row := Row{Worker: w.DisplayName(), Record: rec}
			if rec.IncidentTypeID != nil {
				row.IncidentType = typeNames[*rec.IncidentTypeID]
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (r *Reporter) scheduledDays(ctx context.Context, workers []attendance.Worker, period generic.Period) (int, error) {
	calendar, err := r.Reader.ListNonWorkingDays(ctx, period)
	if err != nil {
		return 0, fmt.Errorf("list non-working days: %w", err)
	}
	off := make(map[generic.TimePoint]bool, len(calendar))
	for _, d := range calendar {
		if d.IsNonWorking {
			off[d.Date] = true
		}
	}

	shifts := make(map[string]attendance.WeekdaySet)
	total := 0
	for _, w := range workers {
		assignments, err := r.Reader.ListAssignments(ctx, w.ID)
		if err != nil {
			return 0, fmt.Errorf("list assignments of %s: %w", w.ID, err)
		}
		for _, day := range period.Days() {
			if off[day] {
				continue
			}
			a := attendance.PickActive(assignments, day)
			if a == nil {
				continue
			}
			set, ok := shifts[a.ShiftID]
			if !ok {
				sh, err := r.Reader.GetShift(ctx, a.ShiftID)
				if err != nil {
					return 0, fmt.Errorf("load shift %s: %w", a.ShiftID, err)
				}
				if sh == nil {
					return 0, generic.NewNotFound("shift", a.ShiftID)
				}
				set = sh.Weekdays()
				shifts[a.ShiftID] = set
			}
			if set.Has(day.Weekday()) {
				total++
			}
		}
	}
	return total, nil
}
