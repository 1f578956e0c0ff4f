package attendance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// SCHEDULE REASSIGNMENT
// =============================================================================
//
// History for one worker is a sequence of non-overlapping ranges, the last
// one open:
//
//   [2024-01-01, 2024-05-31] morning
//   [2024-06-01, open)       evening   <- Assign(night, 2024-09-01)
//
//   [2024-01-01, 2024-05-31] morning
//   [2024-06-01, 2024-08-31] evening
//   [2024-09-01, open)       night
//
// Close and insert commit together. Past records are not recomputed; the
// change only affects later lookups.

// Assign starts a new open assignment for the worker on validFrom.
func (s *Service) Assign(ctx context.Context, caller Caller, workerID, shiftID string, validFrom generic.TimePoint) (*ScheduleAssignment, error) {
	if validFrom.IsZero() {
		return nil, generic.NewValidationError("valid_from", "is required")
	}

	var (
		created ScheduleAssignment
		closed  *ScheduleAssignment
	)
	err := s.Store.WithTx(ctx, func(tx Store) error {
		worker, err := requireWorker(ctx, tx, workerID)
		if err != nil {
			return err
		}
		if !caller.CanManage(*worker) {
			return forbidden("assign shift to worker %s", workerID)
		}
		if _, err := requireShift(ctx, tx, shiftID); err != nil {
			return err
		}

		history, err := tx.ListAssignments(ctx, workerID)
		if err != nil {
			return fmt.Errorf("load assignment history: %w", err)
		}

		for i := range history {
			a := history[i]
			if a.IsOpen() {
				if !validFrom.After(a.ValidFrom) {
					return generic.NewValidationError("valid_from",
						"must be after %s, the start of the open assignment", a.ValidFrom)
				}
				closed = &a
				continue
			}
			if !a.ValidUntil.Before(validFrom) {
				return &generic.ConflictError{
					Subject: "schedule_assignment",
					Message: fmt.Sprintf("overlaps assignment %s %s", a.ID, a.Range()),
				}
			}
		}

		if closed != nil {
			until := validFrom.AddDays(-1)
			if err := tx.CloseAssignment(ctx, closed.ID, until); err != nil {
				return fmt.Errorf("close assignment %s: %w", closed.ID, err)
			}
			closed.ValidUntil = &until
		}

		created = ScheduleAssignment{
			ID:        uuid.NewString(),
			WorkerID:  workerID,
			ShiftID:   shiftID,
			ValidFrom: validFrom,
			CreatedAt: s.now(),
		}
		if err := tx.InsertAssignment(ctx, created); err != nil {
			return fmt.Errorf("insert assignment: %w", err)
		}

		payload := map[string]any{"shift_id": shiftID, "valid_from": validFrom.String()}
		if closed != nil {
			payload["closed_assignment_id"] = closed.ID
		}
		return s.audit(ctx, tx, caller, generic.AuditShiftAssigned, workerID, payload)
	})
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.String("worker_id", workerID),
		zap.String("shift_id", shiftID),
		zap.String("valid_from", validFrom.String()),
	}
	if closed != nil {
		fields = append(fields, zap.String("closed_assignment_id", closed.ID))
	}
	s.Logger.Info("shift assigned", fields...)
	return &created, nil
}

// ListAssignments returns a worker's assignment history.
func (s *Service) ListAssignments(ctx context.Context, caller Caller, workerID string) ([]ScheduleAssignment, error) {
	worker, err := requireWorker(ctx, s.Store, workerID)
	if err != nil {
		return nil, err
	}
	if !caller.CanActFor(*worker) {
		return nil, forbidden("view assignments of worker %s", workerID)
	}
	return s.Store.ListAssignments(ctx, workerID)
}
