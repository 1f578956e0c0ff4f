package generic

import (
	"context"
	"time"
)

// =============================================================================
// AUDIT LOG - Separate from domain rows, tracks who did what when
// =============================================================================

// AuditEntry records who did what when.
type AuditEntry struct {
	ID      string
	At      time.Time
	ActorID string // who performed the action
	Action  AuditAction
	Subject string // worker the action concerns
	Payload map[string]any
}

type AuditAction string

const (
	AuditCheckIn          AuditAction = "check_in"
	AuditCheckOut         AuditAction = "check_out"
	AuditRecordEdited     AuditAction = "record_edited"
	AuditShiftAssigned    AuditAction = "shift_assigned"
	AuditIncidentCreated  AuditAction = "incident_created"
	AuditIncidentApproved AuditAction = "incident_approved"
	AuditIncidentRejected AuditAction = "incident_rejected"
	AuditReconciliation   AuditAction = "reconciliation"
)

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	QueryAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

type AuditFilter struct {
	Subject *string
	ActorID *string
	Actions []AuditAction
	From    *time.Time
	To      *time.Time
}

// Matches applies the filter to a single entry. Stores without a query
// language use it directly.
func (f AuditFilter) Matches(e AuditEntry) bool {
	if f.Subject != nil && e.Subject != *f.Subject {
		return false
	}
	if f.ActorID != nil && e.ActorID != *f.ActorID {
		return false
	}
	if len(f.Actions) > 0 {
		found := false
		for _, a := range f.Actions {
			if a == e.Action {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.From != nil && e.At.Before(*f.From) {
		return false
	}
	if f.To != nil && e.At.After(*f.To) {
		return false
	}
	return true
}
