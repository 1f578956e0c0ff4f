package generic

// =============================================================================
// PERIOD - An inclusive range of calendar dates
// =============================================================================

// Period is the inclusive date range [Start, End]. Incident ranges, report
// windows and assignment validity are all Periods. An open-ended range is
// represented by OpenPeriod.
type Period struct {
	Start TimePoint
	End   TimePoint
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Days returns all days in the period as a slice of TimePoints.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	current := p.Start
	for current.BeforeOrEqual(p.End) {
		days = append(days, current)
		current = current.AddDays(1)
	}
	return days
}

// Len is the number of days in the period, 0 when End precedes Start.
func (p Period) Len() int {
	if p.End.Before(p.Start) {
		return 0
	}
	return DaysBetween(p.Start, p.End) + 1
}

// Overlaps reports whether two periods share at least one day.
func (p Period) Overlaps(other Period) bool {
	return p.Start.BeforeOrEqual(other.End) && other.Start.BeforeOrEqual(p.End)
}

// Validate rejects periods whose end precedes their start. field names the
// offending input for the resulting ValidationError.
func (p Period) Validate(field string) error {
	if p.End.Before(p.Start) {
		return &ValidationError{Field: field, Message: "end date precedes start date (" + p.String() + ")"}
	}
	return nil
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// OpenPeriod is a range starting at Start with an optional end. A nil End
// means the range is still open.
type OpenPeriod struct {
	Start TimePoint
	End   *TimePoint
}

func (p OpenPeriod) IsOpen() bool { return p.End == nil }

func (p OpenPeriod) Contains(t TimePoint) bool {
	if t.Before(p.Start) {
		return false
	}
	return p.End == nil || t.BeforeOrEqual(*p.End)
}

// Overlaps reports whether two possibly-open ranges share at least one day.
func (p OpenPeriod) Overlaps(other OpenPeriod) bool {
	if p.End != nil && p.End.Before(other.Start) {
		return false
	}
	if other.End != nil && other.End.Before(p.Start) {
		return false
	}
	return true
}

func (p OpenPeriod) String() string {
	if p.End == nil {
		return "[" + p.Start.String() + ", open)"
	}
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
