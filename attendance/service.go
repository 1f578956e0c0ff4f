package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/attendance-engine/generic"
)

// DefaultMaxIncidentDays caps the date range of a single incident so one
// approval stays a short transaction.
const DefaultMaxIncidentDays = 366

// Service orchestrates every write against the attendance timeline. Each
// public method is one unit of work executed inside Store.WithTx.
type Service struct {
	Store           TxStore
	Logger          *zap.Logger
	MaxIncidentDays int
	Now             func() time.Time
	// Location is the zone shift times are expressed in.
	Location *time.Location
}

func NewService(store TxStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		Store:           store,
		Logger:          logger,
		MaxIncidentDays: DefaultMaxIncidentDays,
		Now:             time.Now,
		Location:        time.UTC,
	}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// LocalNow is the current instant on the wall clock of Location, the one
// check-in and check-out times are compared against.
func (s *Service) LocalNow() time.Time {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	if s.Now == nil {
		return time.Now().In(loc)
	}
	return s.Now().In(loc)
}

func (s *Service) audit(ctx context.Context, tx Store, actor Caller, action generic.AuditAction, subject string, payload map[string]any) error {
	err := tx.AppendAudit(ctx, generic.AuditEntry{
		ID:      uuid.NewString(),
		At:      s.now(),
		ActorID: actor.WorkerID,
		Action:  action,
		Subject: subject,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("append audit entry %s: %w", action, err)
	}
	return nil
}

// AuditTrail returns the audit entries concerning a worker, oldest first.
func (s *Service) AuditTrail(ctx context.Context, caller Caller, workerID string) ([]generic.AuditEntry, error) {
	worker, err := requireWorker(ctx, s.Store, workerID)
	if err != nil {
		return nil, err
	}
	if !caller.CanManage(*worker) {
		return nil, forbidden("view audit trail of worker %s", workerID)
	}
	return s.Store.QueryAudit(ctx, generic.AuditFilter{Subject: &workerID})
}

// =============================================================================
// REFERENCE RESOLUTION
// =============================================================================

func requireWorker(ctx context.Context, s Store, id string) (*Worker, error) {
	w, err := s.GetWorker(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load worker %s: %w", id, err)
	}
	if w == nil {
		return nil, generic.NewNotFound("worker", id)
	}
	return w, nil
}

func requireShift(ctx context.Context, s Store, id string) (*WorkShift, error) {
	sh, err := s.GetShift(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load shift %s: %w", id, err)
	}
	if sh == nil {
		return nil, generic.NewNotFound("shift", id)
	}
	return sh, nil
}

func requireIncidentType(ctx context.Context, s Store, id string) (*IncidentType, error) {
	t, err := s.GetIncidentType(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load incident type %s: %w", id, err)
	}
	if t == nil {
		return nil, generic.NewNotFound("incident_type", id)
	}
	return t, nil
}

func requireIncident(ctx context.Context, s Store, id string) (*Incident, error) {
	i, err := s.GetIncident(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load incident %s: %w", id, err)
	}
	if i == nil {
		return nil, generic.NewNotFound("incident", id)
	}
	return i, nil
}
