package report_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/report"
	"github.com/warp/attendance-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	admin = attendance.SystemCaller
	week  = generic.Period{Start: generic.MustParseDate("2024-03-04"), End: generic.MustParseDate("2024-03-08")}
)

type fixture struct {
	ctx      context.Context
	reporter *report.Reporter
	unit     *attendance.Unit
	ana      *attendance.Worker
	luis     *attendance.Worker
}

// newFixture seeds one unit with two workers on an L-V 08:00 shift and the
// week of 2024-03-04 with Wednesday off:
//
//	         Mon      Tue      Wed   Thu      Fri
//	Pérez    08:00    08:20    off   absent   vacation
//	Zamora   07:55    -        off   -        -
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	svc := attendance.NewService(store, nil)
	svc.Now = func() time.Time { return time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC) }

	unit, err := svc.CreateUnit(ctx, admin, "Finance", nil)
	require.NoError(t, err)
	// Created out of name order on purpose
	luis, err := svc.CreateWorker(ctx, admin, attendance.WorkerInput{FirstName: "Luis", LastName: "Zamora", UnitID: unit.ID})
	require.NoError(t, err)
	ana, err := svc.CreateWorker(ctx, admin, attendance.WorkerInput{FirstName: "Ana", LastName: "Pérez", UnitID: unit.ID})
	require.NoError(t, err)

	shift, err := svc.CreateShift(ctx, admin, attendance.ShiftInput{
		Label:          "Morning",
		ExpectedStart:  generic.MustParseClockTime("08:00"),
		ExpectedEnd:    generic.MustParseClockTime("16:00"),
		ActiveWeekdays: "L-V",
	})
	require.NoError(t, err)
	for _, w := range []*attendance.Worker{ana, luis} {
		_, err = svc.Assign(ctx, admin, w.ID, shift.ID, generic.MustParseDate("2024-03-01"))
		require.NoError(t, err)
	}

	_, err = svc.SetNonWorkingDay(ctx, admin, attendance.NonWorkingDay{
		Date: generic.MustParseDate("2024-03-06"), IsNonWorking: true, Reason: "Inventory",
	})
	require.NoError(t, err)

	at := generic.MustParseClockTime
	mark := func(w *attendance.Worker, date, in, out string) {
		in2 := at(in)
		var out2 *generic.ClockTime
		if out != "" {
			c := at(out)
			out2 = &c
		}
		_, err := svc.EditRecord(ctx, admin, attendance.RecordInput{
			WorkerID: w.ID, Date: generic.MustParseDate(date), CheckIn: &in2, CheckOut: out2,
		})
		require.NoError(t, err)
	}
	mark(ana, "2024-03-04", "08:00", "16:30")
	mark(ana, "2024-03-05", "08:20", "16:00")
	mark(luis, "2024-03-04", "07:55", "")

	_, err = svc.EditRecord(ctx, admin, attendance.RecordInput{WorkerID: ana.ID, Date: generic.MustParseDate("2024-03-07")})
	require.NoError(t, err)

	vacation, err := svc.CreateIncidentType(ctx, admin, "Vacation")
	require.NoError(t, err)
	inc, err := svc.CreateIncident(ctx, admin, attendance.IncidentInput{
		WorkerID: ana.ID, IncidentTypeID: vacation.ID,
		DateStart: generic.MustParseDate("2024-03-08"), DateEnd: generic.MustParseDate("2024-03-08"),
	})
	require.NoError(t, err)
	_, err = svc.Approve(ctx, inc.ID, admin)
	require.NoError(t, err)

	return &fixture{ctx: ctx, reporter: report.NewReporter(store, nil), unit: unit, ana: ana, luis: luis}
}

func readCSV(t *testing.T, buf *bytes.Buffer) [][]string {
	t.Helper()
	lines, err := csv.NewReader(buf).ReadAll()
	require.NoError(t, err)
	return lines
}

// =============================================================================
// SUMMARY
// =============================================================================

func TestSummary_UnitScope(t *testing.T) {
	f := newFixture(t)

	sum, err := f.reporter.Summary(f.ctx, admin, report.Scope{UnitID: f.unit.ID, Period: week})
	require.NoError(t, err)

	assert.Equal(t, 5, sum.Records)
	assert.Equal(t, 2, sum.Counts[attendance.StatusNormal])
	assert.Equal(t, 1, sum.Counts[attendance.StatusLate])
	assert.Equal(t, 1, sum.Counts[attendance.StatusAbsent])
	assert.Equal(t, 1, sum.Counts[attendance.StatusJustified])
	assert.Equal(t, 0, sum.Counts[attendance.StatusNonWorking])
	assert.Len(t, sum.Counts, len(attendance.Statuses))
	assert.Equal(t, 20, sum.TotalLateMinutes)
	assert.True(t, decimal.RequireFromString("16.17").Equal(sum.TotalWorkedHours), "got %s", sum.TotalWorkedHours)

	// 2 workers x (5 weekdays - Wednesday off)
	assert.Equal(t, 8, sum.ScheduledDays)
}

func TestSummary_WorkerScope(t *testing.T) {
	f := newFixture(t)

	sum, err := f.reporter.Summary(f.ctx, admin, report.Scope{WorkerID: f.luis.ID, Period: week})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Records)
	assert.Equal(t, 1, sum.Counts[attendance.StatusNormal])
	assert.Equal(t, 4, sum.ScheduledDays)
	assert.True(t, sum.TotalWorkedHours.IsZero())
}

func TestSummary_ScheduledDaysFollowWeekdayPattern(t *testing.T) {
	f := newFixture(t)

	// Saturday and Sunday are outside L-V
	weekend := generic.Period{Start: generic.MustParseDate("2024-03-09"), End: generic.MustParseDate("2024-03-10")}
	sum, err := f.reporter.Summary(f.ctx, admin, report.Scope{WorkerID: f.ana.ID, Period: weekend})
	require.NoError(t, err)
	assert.Zero(t, sum.ScheduledDays)

	// Before the assignment starts nothing is scheduled
	feb := generic.Period{Start: generic.MustParseDate("2024-02-26"), End: generic.MustParseDate("2024-02-29")}
	sum, err = f.reporter.Summary(f.ctx, admin, report.Scope{WorkerID: f.ana.ID, Period: feb})
	require.NoError(t, err)
	assert.Zero(t, sum.ScheduledDays)
}

// =============================================================================
// SCOPE AND ACCESS
// =============================================================================

func TestScope_Validate(t *testing.T) {
	tests := []struct {
		name  string
		scope report.Scope
	}{
		{"neither worker nor unit", report.Scope{Period: week}},
		{"both worker and unit", report.Scope{WorkerID: "w", UnitID: "u", Period: week}},
		{"missing period", report.Scope{WorkerID: "w"}},
		{"inverted period", report.Scope{WorkerID: "w", Period: generic.Period{Start: week.End, End: week.Start}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.scope.Validate()
			assert.True(t, errors.Is(err, generic.ErrValidation), "got %v", err)
		})
	}
}

func TestRows_Access(t *testing.T) {
	f := newFixture(t)
	supervisor := attendance.Caller{WorkerID: "boss", Role: attendance.RoleSupervisor, UnitID: f.unit.ID}
	outsider := attendance.Caller{WorkerID: "other", Role: attendance.RoleSupervisor, UnitID: "elsewhere"}
	ana := attendance.Caller{WorkerID: f.ana.ID, Role: attendance.RoleWorker, UnitID: f.unit.ID}

	tests := []struct {
		name    string
		caller  attendance.Caller
		scope   report.Scope
		allowed bool
	}{
		{"supervisor sees own unit", supervisor, report.Scope{UnitID: f.unit.ID, Period: week}, true},
		{"supervisor sees own worker", supervisor, report.Scope{WorkerID: f.luis.ID, Period: week}, true},
		{"other supervisor denied unit", outsider, report.Scope{UnitID: f.unit.ID, Period: week}, false},
		{"other supervisor denied worker", outsider, report.Scope{WorkerID: f.ana.ID, Period: week}, false},
		{"worker sees self", ana, report.Scope{WorkerID: f.ana.ID, Period: week}, true},
		{"worker denied colleague", ana, report.Scope{WorkerID: f.luis.ID, Period: week}, false},
		{"worker denied unit", ana, report.Scope{UnitID: f.unit.ID, Period: week}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.reporter.Rows(f.ctx, tt.caller, tt.scope)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, generic.ErrForbidden), "got %v", err)
			}
		})
	}
}

func TestRows_UnknownUnit(t *testing.T) {
	f := newFixture(t)
	_, err := f.reporter.Rows(f.ctx, admin, report.Scope{UnitID: "nope", Period: week})
	assert.True(t, errors.Is(err, generic.ErrNotFound), "got %v", err)
}

// =============================================================================
// EXPORTS
// =============================================================================

func TestWriteCSV_WorkerScope(t *testing.T) {
	// GIVEN: Ana's week
	// WHEN: Exporting her records
	// THEN: Rows follow date order with derived fields as stored

	f := newFixture(t)
	rows, err := f.reporter.Rows(f.ctx, admin, report.Scope{WorkerID: f.ana.ID, Period: week})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, report.WriteCSV(&buf, rows, false))
	lines := readCSV(t, &buf)

	require.Len(t, lines, 5)
	assert.Equal(t, []string{"Date", "CheckIn", "CheckOut", "Status", "LateMinutes", "WorkedHours", "IncidentType"}, lines[0])
	assert.Equal(t, []string{"2024-03-04", "08:00:00", "16:30:00", "NORMAL", "0", "8.50", ""}, lines[1])
	assert.Equal(t, []string{"2024-03-05", "08:20:00", "16:00:00", "LATE", "20", "7.67", ""}, lines[2])
	assert.Equal(t, []string{"2024-03-07", "", "", "ABSENT", "0", "0.00", ""}, lines[3])
	assert.Equal(t, []string{"2024-03-08", "", "", "JUSTIFIED", "0", "0.00", "Vacation"}, lines[4])
}

func TestWriteCSV_UnitScopeOrdersByLastName(t *testing.T) {
	f := newFixture(t)
	rows, err := f.reporter.Rows(f.ctx, admin, report.Scope{UnitID: f.unit.ID, Period: week})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, report.WriteCSV(&buf, rows, true))
	lines := readCSV(t, &buf)

	require.Len(t, lines, 6)
	assert.Equal(t, "Worker", lines[0][0])
	var names []string
	for _, l := range lines[1:] {
		names = append(names, l[0]+" "+l[1])
	}
	assert.Equal(t, []string{
		"Pérez Ana 2024-03-04",
		"Pérez Ana 2024-03-05",
		"Pérez Ana 2024-03-07",
		"Pérez Ana 2024-03-08",
		"Zamora Luis 2024-03-04",
	}, names)
}

func TestWriteCSV_EmptyScopeWritesHeaderOnly(t *testing.T) {
	f := newFixture(t)
	empty := generic.Period{Start: generic.MustParseDate("2023-01-01"), End: generic.MustParseDate("2023-01-31")}
	rows, err := f.reporter.Rows(f.ctx, admin, report.Scope{UnitID: f.unit.ID, Period: empty})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, report.WriteCSV(&buf, rows, true))
	assert.Len(t, readCSV(t, &buf), 1)
}

func TestWriteXLSX(t *testing.T) {
	f := newFixture(t)
	rows, err := f.reporter.Rows(f.ctx, admin, report.Scope{UnitID: f.unit.ID, Period: week})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, report.WriteXLSX(&buf, rows, true))

	book, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer book.Close()

	sheet, err := book.GetRows("Attendance")
	require.NoError(t, err)
	require.Len(t, sheet, 6)
	assert.Equal(t, report.Header(true), sheet[0])
	assert.Equal(t, "Pérez Ana", sheet[1][0])
	assert.Equal(t, "2024-03-04", sheet[1][1])
	assert.Equal(t, "LATE", sheet[2][4])
	assert.Equal(t, "20", sheet[2][5])
}
