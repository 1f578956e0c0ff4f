package attendance

import (
	"context"
	"fmt"

	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// CALENDAR & SCHEDULE LOOKUP - Read-only, no side effects
// =============================================================================

// IsNonWorking reports whether the calendar marks date as non-working.
func IsNonWorking(ctx context.Context, s Lookup, date generic.TimePoint) (bool, error) {
	day, err := s.GetNonWorkingDay(ctx, date)
	if err != nil {
		return false, fmt.Errorf("calendar lookup for %s: %w", date, err)
	}
	return day != nil && day.IsNonWorking, nil
}

// ActiveAssignment returns the assignment covering date, or nil.
func ActiveAssignment(ctx context.Context, s Lookup, workerID string, date generic.TimePoint) (*ScheduleAssignment, error) {
	assignments, err := s.ListAssignments(ctx, workerID)
	if err != nil {
		return nil, fmt.Errorf("assignment lookup for %s: %w", workerID, err)
	}
	return PickActive(assignments, date), nil
}

// PickActive selects the assignment whose range contains date. Ranges never
// overlap, but if several match the latest ValidFrom wins.
func PickActive(assignments []ScheduleAssignment, date generic.TimePoint) *ScheduleAssignment {
	var active *ScheduleAssignment
	for i := range assignments {
		a := assignments[i]
		if !a.IsActive(date) {
			continue
		}
		if active == nil || a.ValidFrom.After(active.ValidFrom) {
			active = &a
		}
	}
	return active
}

// ActiveShift resolves the shift in effect for a worker-day, or nil when the
// worker has no assignment covering date.
func ActiveShift(ctx context.Context, s Lookup, workerID string, date generic.TimePoint) (*WorkShift, error) {
	assignment, err := ActiveAssignment(ctx, s, workerID, date)
	if err != nil || assignment == nil {
		return nil, err
	}
	shift, err := s.GetShift(ctx, assignment.ShiftID)
	if err != nil {
		return nil, fmt.Errorf("shift lookup for assignment %s: %w", assignment.ID, err)
	}
	if shift == nil {
		return nil, generic.NewNotFound("shift", assignment.ShiftID)
	}
	return shift, nil
}
