package attendance

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// RECORD WRITES - Every path recomputes inside the write's transaction
// =============================================================================

// CheckIn records the first mark of the day. A record created earlier by
// reconciliation (no marks yet) is filled in; a second check-in conflicts.
func (s *Service) CheckIn(ctx context.Context, caller Caller, workerID string, date generic.TimePoint, at generic.ClockTime) (*Record, error) {
	if !at.Valid() {
		return nil, generic.NewValidationError("check_in", "out of range")
	}

	var saved Record
	err := s.Store.WithTx(ctx, func(tx Store) error {
		worker, err := requireWorker(ctx, tx, workerID)
		if err != nil {
			return err
		}
		if !caller.CanActFor(*worker) {
			return forbidden("check in for worker %s", workerID)
		}

		day, err := tx.GetNonWorkingDay(ctx, date)
		if err != nil {
			return fmt.Errorf("calendar lookup: %w", err)
		}
		if day != nil && day.IsNonWorking {
			return generic.NewValidationError("date", "%s is a non-working day (%s)", date, day.Reason)
		}

		existing, err := tx.GetRecord(ctx, workerID, date)
		if err != nil {
			return fmt.Errorf("load record: %w", err)
		}

		switch {
		case existing == nil:
			saved, err = s.insertRecord(ctx, tx, Record{ID: uuid.NewString(), WorkerID: workerID, Date: date, CheckIn: &at})
		case existing.CheckIn != nil:
			return &generic.ConflictError{Subject: "attendance_record", Message: fmt.Sprintf("already checked in on %s", date)}
		default:
			existing.CheckIn = &at
			if existing.CheckOut != nil && !existing.CheckOut.After(at) {
				return generic.NewValidationError("check_in", "must be before check-out %s", existing.CheckOut)
			}
			saved, err = s.updateRecord(ctx, tx, *existing)
		}
		if err != nil {
			return err
		}

		return s.audit(ctx, tx, caller, generic.AuditCheckIn, workerID, map[string]any{
			"date": date.String(), "at": at.String(), "status": string(saved.Status),
		})
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("check-in recorded",
		zap.String("worker_id", workerID),
		zap.String("date", date.String()),
		zap.String("status", string(saved.Status)),
		zap.Int("late_minutes", saved.LateMinutes))
	return &saved, nil
}

// CheckOut closes the worker-day opened by CheckIn.
func (s *Service) CheckOut(ctx context.Context, caller Caller, workerID string, date generic.TimePoint, at generic.ClockTime) (*Record, error) {
	if !at.Valid() {
		return nil, generic.NewValidationError("check_out", "out of range")
	}

	var saved Record
	err := s.Store.WithTx(ctx, func(tx Store) error {
		worker, err := requireWorker(ctx, tx, workerID)
		if err != nil {
			return err
		}
		if !caller.CanActFor(*worker) {
			return forbidden("check out for worker %s", workerID)
		}

		rec, err := tx.GetRecord(ctx, workerID, date)
		if err != nil {
			return fmt.Errorf("load record: %w", err)
		}
		if rec == nil {
			return generic.NewNotFound("attendance_record", workerID+"@"+date.String())
		}
		if rec.CheckIn == nil {
			return generic.NewValidationError("check_out", "no check-in recorded on %s", date)
		}
		if rec.CheckOut != nil {
			return &generic.ConflictError{Subject: "attendance_record", Message: fmt.Sprintf("already checked out on %s", date)}
		}
		if !at.After(*rec.CheckIn) {
			return generic.NewValidationError("check_out", "must be after check-in %s", rec.CheckIn)
		}

		rec.CheckOut = &at
		if saved, err = s.updateRecord(ctx, tx, *rec); err != nil {
			return err
		}
		return s.audit(ctx, tx, caller, generic.AuditCheckOut, workerID, map[string]any{
			"date": date.String(), "at": at.String(), "worked_hours": saved.WorkedHours.StringFixed(2),
		})
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// RecordInput is an administrative edit of a worker-day. The marks and the
// incident tag replace whatever the record held.
type RecordInput struct {
	WorkerID       string
	Date           generic.TimePoint
	CheckIn        *generic.ClockTime
	CheckOut       *generic.ClockTime
	IncidentTypeID *string
}

func (in RecordInput) Validate() error {
	if in.WorkerID == "" {
		return generic.NewValidationError("worker_id", "is required")
	}
	if in.Date.IsZero() {
		return generic.NewValidationError("date", "is required")
	}
	if in.CheckIn != nil && !in.CheckIn.Valid() {
		return generic.NewValidationError("check_in", "out of range")
	}
	if in.CheckOut != nil {
		if !in.CheckOut.Valid() {
			return generic.NewValidationError("check_out", "out of range")
		}
		if in.CheckIn == nil {
			return generic.NewValidationError("check_out", "requires a check-in")
		}
		if !in.CheckOut.After(*in.CheckIn) {
			return generic.NewValidationError("check_out", "must be after check-in")
		}
	}
	return nil
}

// EditRecord creates or updates a worker-day on behalf of an administrator
// or the worker's supervisor.
func (s *Service) EditRecord(ctx context.Context, caller Caller, in RecordInput) (*Record, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var saved Record
	err := s.Store.WithTx(ctx, func(tx Store) error {
		worker, err := requireWorker(ctx, tx, in.WorkerID)
		if err != nil {
			return err
		}
		if !caller.CanManage(*worker) {
			return forbidden("edit attendance of worker %s", in.WorkerID)
		}
		if in.IncidentTypeID != nil {
			if _, err := requireIncidentType(ctx, tx, *in.IncidentTypeID); err != nil {
				return err
			}
		}

		if in.IncidentTypeID, err = approvedTag(ctx, tx, in); err != nil {
			return err
		}

		existing, err := tx.GetRecord(ctx, in.WorkerID, in.Date)
		if err != nil {
			return fmt.Errorf("load record: %w", err)
		}
		if existing == nil {
			saved, err = s.insertRecord(ctx, tx, Record{
				ID:             uuid.NewString(),
				WorkerID:       in.WorkerID,
				Date:           in.Date,
				CheckIn:        in.CheckIn,
				CheckOut:       in.CheckOut,
				IncidentTypeID: in.IncidentTypeID,
			})
		} else {
			existing.CheckIn = in.CheckIn
			existing.CheckOut = in.CheckOut
			existing.IncidentTypeID = in.IncidentTypeID
			saved, err = s.updateRecord(ctx, tx, *existing)
		}
		if err != nil {
			return err
		}

		return s.audit(ctx, tx, caller, generic.AuditRecordEdited, in.WorkerID, map[string]any{
			"date": in.Date.String(), "status": string(saved.Status),
		})
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// approvedTag resolves the incident tag an edit may write. A day covered by
// an APPROVED incident keeps that incident's type: omitting the tag keeps it,
// naming a different type is a conflict.
func approvedTag(ctx context.Context, tx Store, in RecordInput) (*string, error) {
	day := generic.Period{Start: in.Date, End: in.Date}
	approved, err := tx.ListIncidents(ctx, IncidentFilter{
		WorkerID:    in.WorkerID,
		Status:      IncidentApproved,
		Overlapping: &day,
	})
	if err != nil {
		return nil, fmt.Errorf("list approved incidents: %w", err)
	}
	if len(approved) == 0 {
		return in.IncidentTypeID, nil
	}
	incident := approved[0]
	if in.IncidentTypeID != nil && *in.IncidentTypeID != incident.IncidentTypeID {
		return nil, &generic.ConflictError{
			Subject: "attendance_record",
			Message: fmt.Sprintf("%s is justified by approved incident %s", in.Date, incident.ID),
		}
	}
	tag := incident.IncidentTypeID
	return &tag, nil
}

// ListRecords returns a worker's records over a period, ordered by date.
func (s *Service) ListRecords(ctx context.Context, caller Caller, workerID string, period generic.Period) ([]Record, error) {
	if err := period.Validate("to"); err != nil {
		return nil, err
	}
	worker, err := requireWorker(ctx, s.Store, workerID)
	if err != nil {
		return nil, err
	}
	if !caller.CanActFor(*worker) {
		return nil, forbidden("view attendance of worker %s", workerID)
	}
	return s.Store.ListRecords(ctx, RecordFilter{WorkerIDs: []string{workerID}, Period: &period})
}

// =============================================================================
// PERSISTENCE HELPERS
// =============================================================================

func (s *Service) insertRecord(ctx context.Context, tx Store, rec Record) (Record, error) {
	rec, err := Recompute(ctx, tx, rec)
	if err != nil {
		return rec, err
	}
	rec.UpdatedAt = s.now()
	if err := tx.InsertRecord(ctx, rec); err != nil {
		if errors.Is(err, generic.ErrConflict) {
			return rec, err
		}
		return rec, fmt.Errorf("insert record: %w", err)
	}
	return rec, nil
}

func (s *Service) updateRecord(ctx context.Context, tx Store, rec Record) (Record, error) {
	rec, err := Recompute(ctx, tx, rec)
	if err != nil {
		return rec, err
	}
	rec.UpdatedAt = s.now()
	if err := tx.UpdateRecord(ctx, rec); err != nil {
		return rec, fmt.Errorf("update record: %w", err)
	}
	return rec, nil
}
