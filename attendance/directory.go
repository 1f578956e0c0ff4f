package attendance

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// DIRECTORY & CATALOGS - Administrator-managed reference data
// =============================================================================

type WorkerInput struct {
	EmployeeNumber string
	FirstName      string
	LastName       string
	Email          string
	UnitID         string
}

// NewWorker validates the input and assigns an ID. Related rows (schedule,
// records) are never provisioned implicitly; callers assign a shift with
// Service.Assign when they need one.
func NewWorker(in WorkerInput) (Worker, error) {
	first := strings.TrimSpace(in.FirstName)
	last := strings.TrimSpace(in.LastName)
	if first == "" && last == "" {
		return Worker{}, generic.NewValidationError("first_name", "a first or last name is required")
	}
	if strings.TrimSpace(in.UnitID) == "" {
		return Worker{}, generic.NewValidationError("unit_id", "is required")
	}
	return Worker{
		ID:             uuid.NewString(),
		EmployeeNumber: strings.TrimSpace(in.EmployeeNumber),
		FirstName:      first,
		LastName:       last,
		Email:          strings.TrimSpace(in.Email),
		UnitID:         in.UnitID,
		Active:         true,
	}, nil
}

func (s *Service) CreateUnit(ctx context.Context, caller Caller, name string, parentID *string) (*Unit, error) {
	if !caller.IsAdmin() {
		return nil, forbidden("create unit")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, generic.NewValidationError("name", "is required")
	}

	unit := Unit{ID: uuid.NewString(), Name: name, ParentID: parentID}
	err := s.Store.WithTx(ctx, func(tx Store) error {
		if parentID != nil {
			parent, err := tx.GetUnit(ctx, *parentID)
			if err != nil {
				return fmt.Errorf("load parent unit: %w", err)
			}
			if parent == nil {
				return generic.NewNotFound("unit", *parentID)
			}
		}
		return tx.SaveUnit(ctx, unit)
	})
	if err != nil {
		return nil, err
	}
	return &unit, nil
}

func (s *Service) CreateWorker(ctx context.Context, caller Caller, in WorkerInput) (*Worker, error) {
	if !caller.IsAdmin() {
		return nil, forbidden("create worker")
	}
	worker, err := NewWorker(in)
	if err != nil {
		return nil, err
	}
	worker.CreatedAt = s.now()

	err = s.Store.WithTx(ctx, func(tx Store) error {
		unit, err := tx.GetUnit(ctx, worker.UnitID)
		if err != nil {
			return fmt.Errorf("load unit: %w", err)
		}
		if unit == nil {
			return generic.NewNotFound("unit", worker.UnitID)
		}
		return tx.SaveWorker(ctx, worker)
	})
	if err != nil {
		return nil, err
	}
	return &worker, nil
}

func (s *Service) CreateShift(ctx context.Context, caller Caller, in ShiftInput) (*WorkShift, error) {
	if !caller.IsAdmin() {
		return nil, forbidden("create shift")
	}
	shift, err := NewWorkShift(in)
	if err != nil {
		return nil, err
	}
	if err := s.Store.WithTx(ctx, func(tx Store) error { return tx.SaveShift(ctx, shift) }); err != nil {
		return nil, err
	}
	return &shift, nil
}

// DeleteShift removes a shift nobody was ever assigned to.
func (s *Service) DeleteShift(ctx context.Context, caller Caller, id string) error {
	if !caller.IsAdmin() {
		return forbidden("delete shift")
	}
	return s.Store.WithTx(ctx, func(tx Store) error {
		if _, err := requireShift(ctx, tx, id); err != nil {
			return err
		}
		n, err := tx.CountAssignmentsForShift(ctx, id)
		if err != nil {
			return fmt.Errorf("count assignments: %w", err)
		}
		if n > 0 {
			return &generic.ConflictError{Subject: "shift", Message: fmt.Sprintf("referenced by %d assignment(s)", n)}
		}
		return tx.DeleteShift(ctx, id)
	})
}

func (s *Service) CreateIncidentType(ctx context.Context, caller Caller, description string) (*IncidentType, error) {
	if !caller.IsAdmin() {
		return nil, forbidden("create incident type")
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, generic.NewValidationError("description", "is required")
	}
	t := IncidentType{ID: uuid.NewString(), Description: description}
	if err := s.Store.WithTx(ctx, func(tx Store) error { return tx.SaveIncidentType(ctx, t) }); err != nil {
		return nil, err
	}
	return &t, nil
}

// =============================================================================
// DIRECTORY READS
// =============================================================================

// Catalogs (units, shifts, incident types, calendar) are visible to every
// caller. Workers are scoped: supervisors see their unit, workers themselves.

func (s *Service) ListUnits(ctx context.Context) ([]Unit, error) {
	return s.Store.ListUnits(ctx)
}

func (s *Service) ListShifts(ctx context.Context) ([]WorkShift, error) {
	return s.Store.ListShifts(ctx)
}

func (s *Service) ListIncidentTypes(ctx context.Context) ([]IncidentType, error) {
	return s.Store.ListIncidentTypes(ctx)
}

func (s *Service) ListNonWorkingDays(ctx context.Context, period generic.Period) ([]NonWorkingDay, error) {
	if err := period.Validate("to"); err != nil {
		return nil, err
	}
	return s.Store.ListNonWorkingDays(ctx, period)
}

func (s *Service) GetWorker(ctx context.Context, caller Caller, id string) (*Worker, error) {
	worker, err := requireWorker(ctx, s.Store, id)
	if err != nil {
		return nil, err
	}
	if !caller.CanActFor(*worker) {
		return nil, forbidden("view worker %s", id)
	}
	return worker, nil
}

// ListWorkers lists a unit's workers ordered by last name. An empty unitID
// means every unit for admins and the caller's own unit for supervisors.
func (s *Service) ListWorkers(ctx context.Context, caller Caller, unitID string) ([]Worker, error) {
	switch caller.Role {
	case RoleAdmin:
	case RoleSupervisor:
		if unitID == "" {
			unitID = caller.UnitID
		}
		if !caller.CanViewUnit(unitID) {
			return nil, forbidden("list workers of unit %s", unitID)
		}
	default:
		w, err := s.GetWorker(ctx, caller, caller.WorkerID)
		if err != nil {
			return nil, err
		}
		if unitID != "" && unitID != w.UnitID {
			return nil, forbidden("list workers of unit %s", unitID)
		}
		return []Worker{*w}, nil
	}
	return s.Store.ListWorkers(ctx, unitID)
}

// =============================================================================
// CALENDAR MAINTENANCE
// =============================================================================

// SetNonWorkingDay creates or edits a calendar entry. Once attendance
// records exist for the date only the reason may change: flipping the flag
// would leave those records with stale derived fields.
func (s *Service) SetNonWorkingDay(ctx context.Context, caller Caller, day NonWorkingDay) (*NonWorkingDay, error) {
	if !caller.IsAdmin() {
		return nil, forbidden("edit calendar")
	}
	if day.Date.IsZero() {
		return nil, generic.NewValidationError("date", "is required")
	}
	day.Reason = strings.TrimSpace(day.Reason)

	err := s.Store.WithTx(ctx, func(tx Store) error {
		existing, err := tx.GetNonWorkingDay(ctx, day.Date)
		if err != nil {
			return fmt.Errorf("load calendar entry: %w", err)
		}
		effectiveBefore := existing != nil && existing.IsNonWorking
		if effectiveBefore != day.IsNonWorking {
			if err := ensureDateUnreferenced(ctx, tx, day.Date); err != nil {
				return err
			}
		}
		return tx.SaveNonWorkingDay(ctx, day)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("calendar entry saved",
		zap.String("date", day.Date.String()),
		zap.Bool("non_working", day.IsNonWorking),
		zap.String("actor", caller.WorkerID))
	return &day, nil
}

func (s *Service) RemoveNonWorkingDay(ctx context.Context, caller Caller, date generic.TimePoint) error {
	if !caller.IsAdmin() {
		return forbidden("edit calendar")
	}
	return s.Store.WithTx(ctx, func(tx Store) error {
		existing, err := tx.GetNonWorkingDay(ctx, date)
		if err != nil {
			return fmt.Errorf("load calendar entry: %w", err)
		}
		if existing == nil {
			return generic.NewNotFound("non_working_day", date.String())
		}
		if existing.IsNonWorking {
			if err := ensureDateUnreferenced(ctx, tx, date); err != nil {
				return err
			}
		}
		return tx.DeleteNonWorkingDay(ctx, date)
	})
}

func ensureDateUnreferenced(ctx context.Context, tx Store, date generic.TimePoint) error {
	n, err := tx.CountRecordsOn(ctx, date)
	if err != nil {
		return fmt.Errorf("count records on %s: %w", date, err)
	}
	if n > 0 {
		return &generic.ConflictError{
			Subject: "non_working_day",
			Message: fmt.Sprintf("%s is referenced by %d attendance record(s)", date, n),
		}
	}
	return nil
}
