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
// INCIDENT WORKFLOW
// =============================================================================
//
//   PENDING ──approve──> APPROVED ──approve──> APPROVED (re-applies reconciliation)
//      │
//      └───reject────> REJECTED
//
// Every other transition fails with AlreadyDecidedError. Approval and the
// reconciliation of the whole date range commit in one transaction.

type IncidentInput struct {
	WorkerID       string
	IncidentTypeID string
	DateStart      generic.TimePoint
	DateEnd        generic.TimePoint
	Reason         string
}

// NewIncident validates the request and builds a PENDING incident. maxDays
// caps the inclusive length of the range; zero or less disables the cap.
func NewIncident(in IncidentInput, requestedBy string, maxDays int) (Incident, error) {
	if in.WorkerID == "" {
		return Incident{}, generic.NewValidationError("worker_id", "is required")
	}
	if in.IncidentTypeID == "" {
		return Incident{}, generic.NewValidationError("incident_type_id", "is required")
	}
	if in.DateStart.IsZero() {
		return Incident{}, generic.NewValidationError("date_start", "is required")
	}
	if in.DateEnd.IsZero() {
		return Incident{}, generic.NewValidationError("date_end", "is required")
	}
	period := generic.Period{Start: in.DateStart, End: in.DateEnd}
	if err := period.Validate("date_end"); err != nil {
		return Incident{}, err
	}
	if maxDays > 0 && period.Len() > maxDays {
		return Incident{}, generic.NewValidationError("date_end",
			"range %s spans %d days, at most %d allowed", period, period.Len(), maxDays)
	}

	return Incident{
		ID:             uuid.NewString(),
		WorkerID:       in.WorkerID,
		IncidentTypeID: in.IncidentTypeID,
		DateStart:      in.DateStart,
		DateEnd:        in.DateEnd,
		Reason:         strings.TrimSpace(in.Reason),
		Status:         IncidentPending,
		RequestedBy:    requestedBy,
	}, nil
}

// CreateIncident files a PENDING request. Workers file for themselves;
// supervisors and admins may file on a managed worker's behalf.
func (s *Service) CreateIncident(ctx context.Context, caller Caller, in IncidentInput) (*Incident, error) {
	incident, err := NewIncident(in, caller.WorkerID, s.MaxIncidentDays)
	if err != nil {
		return nil, err
	}
	now := s.now()
	incident.CreatedAt = now
	incident.UpdatedAt = now

	err = s.Store.WithTx(ctx, func(tx Store) error {
		worker, err := requireWorker(ctx, tx, in.WorkerID)
		if err != nil {
			return err
		}
		if !caller.CanActFor(*worker) {
			return forbidden("file incident for worker %s", in.WorkerID)
		}
		if _, err := requireIncidentType(ctx, tx, in.IncidentTypeID); err != nil {
			return err
		}
		if err := tx.InsertIncident(ctx, incident); err != nil {
			return fmt.Errorf("insert incident: %w", err)
		}
		return s.audit(ctx, tx, caller, generic.AuditIncidentCreated, incident.WorkerID, map[string]any{
			"incident_id": incident.ID,
			"period":      incident.Period().String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return &incident, nil
}

// GetIncident returns an incident visible to the caller.
func (s *Service) GetIncident(ctx context.Context, caller Caller, id string) (*Incident, error) {
	incident, err := requireIncident(ctx, s.Store, id)
	if err != nil {
		return nil, err
	}
	worker, err := requireWorker(ctx, s.Store, incident.WorkerID)
	if err != nil {
		return nil, err
	}
	if !caller.CanActFor(*worker) {
		return nil, forbidden("view incident %s", id)
	}
	return incident, nil
}

// ListIncidents returns the incidents matching filter that the caller may
// see. Workers only ever see their own.
func (s *Service) ListIncidents(ctx context.Context, caller Caller, filter IncidentFilter) ([]Incident, error) {
	if caller.Role == RoleWorker {
		filter.WorkerID = caller.WorkerID
	}
	all, err := s.Store.ListIncidents(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	if caller.IsAdmin() || caller.Role == RoleWorker {
		return all, nil
	}

	units := make(map[string]string)
	visible := all[:0]
	for _, inc := range all {
		unitID, ok := units[inc.WorkerID]
		if !ok {
			w, err := s.Store.GetWorker(ctx, inc.WorkerID)
			if err != nil {
				return nil, fmt.Errorf("load worker %s: %w", inc.WorkerID, err)
			}
			if w != nil {
				unitID = w.UnitID
			}
			units[inc.WorkerID] = unitID
		}
		if caller.CanViewUnit(unitID) {
			visible = append(visible, inc)
		}
	}
	return visible, nil
}

// Approve moves a PENDING incident to APPROVED and reconciles every day of
// its range. Approving an APPROVED incident re-runs the reconciliation.
func (s *Service) Approve(ctx context.Context, incidentID string, approver Caller) (*Incident, error) {
	var (
		approved   Incident
		reconciled int
	)
	err := s.Store.WithTx(ctx, func(tx Store) error {
		incident, err := requireIncident(ctx, tx, incidentID)
		if err != nil {
			return err
		}
		worker, err := requireWorker(ctx, tx, incident.WorkerID)
		if err != nil {
			return err
		}
		if !approver.CanManage(*worker) {
			return forbidden("approve incident %s", incidentID)
		}
		if incident.Status == IncidentRejected {
			return &generic.AlreadyDecidedError{IncidentID: incident.ID, Status: string(incident.Status)}
		}
		// Checked for APPROVED incidents too, so a re-approval only stays
		// idempotent while no two approved incidents overlap.
		if err := ensureNoApprovedOverlap(ctx, tx, *incident); err != nil {
			return err
		}

		if incident.Status == IncidentPending {
			now := s.now()
			by := approver.WorkerID
			incident.Status = IncidentApproved
			incident.ApprovedBy = &by
			incident.DecidedAt = &now
			incident.UpdatedAt = now
			if err := tx.UpdateIncident(ctx, *incident); err != nil {
				return fmt.Errorf("update incident: %w", err)
			}
			if err := s.audit(ctx, tx, approver, generic.AuditIncidentApproved, incident.WorkerID, map[string]any{
				"incident_id": incident.ID,
				"period":      incident.Period().String(),
			}); err != nil {
				return err
			}
		}

		if reconciled, err = s.reconcile(ctx, tx, *incident); err != nil {
			return err
		}
		approved = *incident
		return s.audit(ctx, tx, approver, generic.AuditReconciliation, incident.WorkerID, map[string]any{
			"incident_id": incident.ID,
			"days":        reconciled,
		})
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("incident approved",
		zap.String("incident_id", approved.ID),
		zap.String("worker_id", approved.WorkerID),
		zap.String("period", approved.Period().String()),
		zap.Int("days_reconciled", reconciled),
		zap.String("approver", approver.WorkerID))
	return &approved, nil
}

// Reject moves a PENDING incident to REJECTED. Nothing else is touched.
func (s *Service) Reject(ctx context.Context, incidentID string, approver Caller, reason string) (*Incident, error) {
	var rejected Incident
	err := s.Store.WithTx(ctx, func(tx Store) error {
		incident, err := requireIncident(ctx, tx, incidentID)
		if err != nil {
			return err
		}
		worker, err := requireWorker(ctx, tx, incident.WorkerID)
		if err != nil {
			return err
		}
		if !approver.CanManage(*worker) {
			return forbidden("reject incident %s", incidentID)
		}
		if incident.Status != IncidentPending {
			return &generic.AlreadyDecidedError{IncidentID: incident.ID, Status: string(incident.Status)}
		}

		now := s.now()
		by := approver.WorkerID
		incident.Status = IncidentRejected
		incident.ApprovedBy = &by
		incident.DecidedAt = &now
		incident.UpdatedAt = now
		if reason = strings.TrimSpace(reason); reason != "" {
			incident.RejectionReason = &reason
		}
		if err := tx.UpdateIncident(ctx, *incident); err != nil {
			return fmt.Errorf("update incident: %w", err)
		}
		rejected = *incident
		return s.audit(ctx, tx, approver, generic.AuditIncidentRejected, incident.WorkerID, map[string]any{
			"incident_id": incident.ID,
			"reason":      reason,
		})
	})
	if err != nil {
		return nil, err
	}
	return &rejected, nil
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// reconcile tags every day of the incident's range with its type and
// recomputes the record. Days without a record get one with no marks.
func (s *Service) reconcile(ctx context.Context, tx Store, incident Incident) (int, error) {
	typeID := incident.IncidentTypeID
	days := incident.Period().Days()
	for _, day := range days {
		existing, err := tx.GetRecord(ctx, incident.WorkerID, day)
		if err != nil {
			return 0, fmt.Errorf("load record %s: %w", day, err)
		}
		if existing == nil {
			_, err = s.insertRecord(ctx, tx, Record{
				ID:             uuid.NewString(),
				WorkerID:       incident.WorkerID,
				Date:           day,
				IncidentTypeID: &typeID,
			})
		} else {
			existing.IncidentTypeID = &typeID
			_, err = s.updateRecord(ctx, tx, *existing)
		}
		if err != nil {
			return 0, fmt.Errorf("reconcile %s: %w", day, err)
		}
	}
	return len(days), nil
}

// ensureNoApprovedOverlap refuses to let two approved incidents tag the
// same worker-day.
func ensureNoApprovedOverlap(ctx context.Context, tx Store, incident Incident) error {
	period := incident.Period()
	approved, err := tx.ListIncidents(ctx, IncidentFilter{
		WorkerID:    incident.WorkerID,
		Status:      IncidentApproved,
		Overlapping: &period,
	})
	if err != nil {
		return fmt.Errorf("list approved incidents: %w", err)
	}
	for _, other := range approved {
		if other.ID == incident.ID {
			continue
		}
		return &generic.ConflictError{
			Subject: "incident",
			Message: fmt.Sprintf("overlaps approved incident %s %s", other.ID, other.Period()),
		}
	}
	return nil
}
