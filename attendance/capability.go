package attendance

import (
	"fmt"
	"strings"

	"github.com/warp/attendance-engine/generic"
)

// Role is the capability tag the identity provider attaches to a caller.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleSupervisor Role = "SUPERVISOR"
	RoleWorker     Role = "WORKER"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleSupervisor, RoleWorker:
		return r, nil
	}
	return "", generic.NewValidationError("role", "unknown role %q", s)
}

// Caller is resolved once per request and passed into every operation.
// The engine trusts it as given.
type Caller struct {
	WorkerID string
	Role     Role
	UnitID   string
}

// SystemCaller is used for seeding and maintenance tasks.
var SystemCaller = Caller{WorkerID: "system", Role: RoleAdmin}

func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }

// CanManage: admins manage everyone, supervisors manage their own unit,
// workers manage nobody (not even themselves).
func (c Caller) CanManage(w Worker) bool {
	switch c.Role {
	case RoleAdmin:
		return true
	case RoleSupervisor:
		return c.UnitID != "" && c.UnitID == w.UnitID
	}
	return false
}

// CanActFor extends CanManage with self-service.
func (c Caller) CanActFor(w Worker) bool {
	return c.CanManage(w) || (c.WorkerID != "" && c.WorkerID == w.ID)
}

func (c Caller) CanViewUnit(unitID string) bool {
	switch c.Role {
	case RoleAdmin:
		return true
	case RoleSupervisor:
		return c.UnitID != "" && c.UnitID == unitID
	}
	return false
}

func forbidden(action string, args ...any) error {
	return &generic.ForbiddenError{Action: fmt.Sprintf(action, args...)}
}
