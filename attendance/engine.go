package attendance

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// STATUS ENGINE - First matching rule wins, precedence is fixed
// =============================================================================
//
//   1. non-working date     -> NON_WORKING, late 0, hours 0 (beats everything)
//   2. incident tag         -> JUSTIFIED
//   3. no active assignment -> NORMAL
//   4. no check-in          -> ABSENT
//   5. check-in after start -> LATE, otherwise NORMAL

var secondsPerHour = decimal.NewFromInt(3600)

// Recompute refreshes the derived fields of rec. It must run against the
// same transaction-scoped store as the write that persists its result.
// Errors come only from the lookups; the evaluation itself is total.
func Recompute(ctx context.Context, s Lookup, rec Record) (Record, error) {
	nonWorking, err := IsNonWorking(ctx, s, rec.Date)
	if err != nil {
		return rec, err
	}
	if nonWorking {
		return Evaluate(rec, true, nil), nil
	}
	shift, err := ActiveShift(ctx, s, rec.WorkerID, rec.Date)
	if err != nil {
		return rec, err
	}
	return Evaluate(rec, false, shift), nil
}

// Evaluate is the pure status function. shift is the shift in effect for
// the worker-day, nil when no assignment covers it.
func Evaluate(rec Record, nonWorking bool, shift *WorkShift) Record {
	out := rec
	out.LateMinutes = 0
	out.WorkedHours = decimal.Zero

	if nonWorking {
		out.Status = StatusNonWorking
		return out
	}

	out.WorkedHours = WorkedHours(rec.CheckIn, rec.CheckOut)
	if shift != nil && rec.CheckIn != nil {
		out.LateMinutes = LateMinutes(shift.ExpectedStart, *rec.CheckIn)
	}

	switch {
	case rec.IncidentTypeID != nil:
		out.Status = StatusJustified
	case shift == nil:
		out.Status = StatusNormal
	case rec.CheckIn == nil:
		out.Status = StatusAbsent
	case out.LateMinutes > 0:
		out.Status = StatusLate
	default:
		out.Status = StatusNormal
	}
	return out
}

// LateMinutes is the whole number of minutes checkIn trails expectedStart,
// never negative.
func LateMinutes(expectedStart, checkIn generic.ClockTime) int {
	late := checkIn.Sub(expectedStart)
	if late <= 0 {
		return 0
	}
	return int(late / time.Minute)
}

// WorkedHours is checkOut-checkIn in hours rounded to 2 decimals. Missing
// marks or a checkOut before checkIn yield zero.
func WorkedHours(checkIn, checkOut *generic.ClockTime) decimal.Decimal {
	if checkIn == nil || checkOut == nil {
		return decimal.Zero
	}
	worked := checkOut.Sub(*checkIn)
	if worked <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(worked / time.Second)).Div(secondsPerHour).Round(2)
}
