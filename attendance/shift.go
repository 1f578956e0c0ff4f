package attendance

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// WORK SHIFT - Named schedule with expected start/end and weekday pattern
// =============================================================================

type WorkShift struct {
	ID             string
	Label          string
	ExpectedStart  generic.ClockTime
	ExpectedEnd    generic.ClockTime
	ActiveWeekdays string // pattern as entered, e.g. "Mon-Fri" or "L-V"
}

// Weekdays parses ActiveWeekdays. Patterns are validated on creation, so a
// stored shift always parses; an unparsable legacy pattern yields Mon-Fri.
func (s WorkShift) Weekdays() WeekdaySet {
	set, err := ParseWeekdays(s.ActiveWeekdays)
	if err != nil {
		return DefaultWeekdays
	}
	return set
}

type ShiftInput struct {
	Label          string
	ExpectedStart  generic.ClockTime
	ExpectedEnd    generic.ClockTime
	ActiveWeekdays string
}

// NewWorkShift validates the input and assigns an ID.
func NewWorkShift(in ShiftInput) (WorkShift, error) {
	label := strings.TrimSpace(in.Label)
	if label == "" {
		return WorkShift{}, generic.NewValidationError("label", "is required")
	}
	if !in.ExpectedStart.Valid() {
		return WorkShift{}, generic.NewValidationError("expected_start", "out of range")
	}
	if !in.ExpectedEnd.Valid() {
		return WorkShift{}, generic.NewValidationError("expected_end", "out of range")
	}
	if !in.ExpectedEnd.After(in.ExpectedStart) {
		return WorkShift{}, generic.NewValidationError("expected_end", "must be after expected_start")
	}
	if _, err := ParseWeekdays(in.ActiveWeekdays); err != nil {
		return WorkShift{}, err
	}
	return WorkShift{
		ID:             uuid.NewString(),
		Label:          label,
		ExpectedStart:  in.ExpectedStart,
		ExpectedEnd:    in.ExpectedEnd,
		ActiveWeekdays: strings.TrimSpace(in.ActiveWeekdays),
	}, nil
}

// =============================================================================
// WEEKDAY PATTERNS
// =============================================================================

// WeekdaySet is a bitmask indexed by time.Weekday.
type WeekdaySet uint8

var DefaultWeekdays = NewWeekdaySet(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday)

func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s |= 1 << uint(d)
	}
	return s
}

func (s WeekdaySet) Has(d time.Weekday) bool { return s&(1<<uint(d)) != 0 }

func (s WeekdaySet) Len() int {
	n := 0
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			n++
		}
	}
	return n
}

func (s WeekdaySet) String() string {
	var names []string
	for _, d := range []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday} {
		if s.Has(d) {
			names = append(names, d.String()[:3])
		}
	}
	return strings.Join(names, ",")
}

// weekdayTokens accepts English names and the Spanish single-letter
// convention (L M X J V S D) the payroll office uses.
var weekdayTokens = map[string]time.Weekday{
	"mon": time.Monday, "monday": time.Monday, "l": time.Monday, "lunes": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday, "m": time.Tuesday, "martes": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday, "x": time.Wednesday, "miercoles": time.Wednesday, "miércoles": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday, "j": time.Thursday, "jueves": time.Thursday,
	"fri": time.Friday, "friday": time.Friday, "v": time.Friday, "viernes": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday, "s": time.Saturday, "sabado": time.Saturday, "sábado": time.Saturday,
	"sun": time.Sunday, "sunday": time.Sunday, "d": time.Sunday, "domingo": time.Sunday,
}

// ParseWeekdays parses lists and ranges such as "Mon-Fri", "Mon,Wed,Fri",
// "L-V" or "Sat-Mon" (ranges wrap around the week). An empty pattern means
// Monday to Friday.
func ParseWeekdays(pattern string) (WeekdaySet, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return DefaultWeekdays, nil
	}

	var set WeekdaySet
	items := strings.FieldsFunc(pattern, func(r rune) bool { return r == ',' || r == ' ' || r == ';' })
	for _, item := range items {
		bounds := strings.SplitN(item, "-", 2)
		from, ok := weekdayTokens[strings.ToLower(bounds[0])]
		if !ok {
			return 0, generic.NewValidationError("active_weekdays", "unknown weekday %q", bounds[0])
		}
		if len(bounds) == 1 {
			set |= NewWeekdaySet(from)
			continue
		}
		to, ok := weekdayTokens[strings.ToLower(bounds[1])]
		if !ok {
			return 0, generic.NewValidationError("active_weekdays", "unknown weekday %q", bounds[1])
		}
		for d := from; ; d = (d + 1) % 7 {
			set |= NewWeekdaySet(d)
			if d == to {
				break
			}
		}
	}
	if set == 0 {
		return 0, generic.NewValidationError("active_weekdays", "pattern %q selects no weekday", pattern)
	}
	return set, nil
}
