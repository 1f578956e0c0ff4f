/*
handlers_test.go - HTTP tests for the attendance API

Tests for:
- Identity middleware and error-to-status mapping
- Check-in/out, administrative edits and listings
- Incident approval through HTTP reconciling records
- Report summary and CSV/XLSX exports
*/
package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var adminCaller = attendance.Caller{WorkerID: "admin-1", Role: attendance.RoleAdmin}

type testServer struct {
	router http.Handler
	svc    *attendance.Service
	unit   *attendance.Unit
	worker *attendance.Worker
	shift  *attendance.WorkShift
}

// newTestServer runs the full router over an in-memory SQLite store with
// the clock fixed at Monday 2024-03-11 09:00 UTC. It seeds one unit, one
// worker and an 08:00-16:00 L-V shift assigned from 2024-03-01.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := attendance.NewService(store, nil)
	svc.Now = func() time.Time { return time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC) }

	h := NewHandler(svc, nil)
	h.Health = store

	ctx := context.Background()
	unit, err := svc.CreateUnit(ctx, adminCaller, "Finance", nil)
	require.NoError(t, err)
	worker, err := svc.CreateWorker(ctx, adminCaller, attendance.WorkerInput{FirstName: "Ana", LastName: "Pérez", UnitID: unit.ID})
	require.NoError(t, err)
	shift, err := svc.CreateShift(ctx, adminCaller, attendance.ShiftInput{
		Label:          "Morning",
		ExpectedStart:  generic.MustParseClockTime("08:00"),
		ExpectedEnd:    generic.MustParseClockTime("16:00"),
		ActiveWeekdays: "L-V",
	})
	require.NoError(t, err)
	_, err = svc.Assign(ctx, adminCaller, worker.ID, shift.ID, generic.MustParseDate("2024-03-01"))
	require.NoError(t, err)

	return &testServer{router: NewRouter(h, []string{"*"}), svc: svc, unit: unit, worker: worker, shift: shift}
}

func (ts *testServer) do(t *testing.T, method, path string, caller *attendance.Caller, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != nil {
		req.Header.Set(HeaderWorkerID, caller.WorkerID)
		req.Header.Set(HeaderRole, string(caller.Role))
		req.Header.Set(HeaderUnitID, caller.UnitID)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) self() *attendance.Caller {
	return &attendance.Caller{WorkerID: ts.worker.ID, Role: attendance.RoleWorker, UnitID: ts.unit.ID}
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func TestHealth_NoIdentityNeeded(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeJSON[map[string]string](t, rec)["status"])
}

func TestIdentity_Required(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/units", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/units", &attendance.Caller{WorkerID: "x", Role: "BOSS"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/units", &adminCaller, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	worker := ts.self()

	tests := []struct {
		name   string
		method string
		path   string
		caller *attendance.Caller
		body   any
		want   int
	}{
		{"missing required field", http.MethodPost, "/api/workers", &adminCaller, map[string]any{"first_name": "Luis"}, http.StatusBadRequest},
		{"malformed json", http.MethodPost, "/api/units", &adminCaller, "not an object", http.StatusBadRequest},
		{"bad date", http.MethodGet, "/api/workers/" + ts.worker.ID + "/attendance?from=2024-13-01&to=2024-03-31", &adminCaller, nil, http.StatusBadRequest},
		{"inverted range", http.MethodGet, "/api/workers/" + ts.worker.ID + "/attendance?from=2024-03-31&to=2024-03-01", &adminCaller, nil, http.StatusBadRequest},
		{"worker creating unit", http.MethodPost, "/api/units", worker, map[string]any{"name": "Ops"}, http.StatusForbidden},
		{"unknown incident", http.MethodGet, "/api/incidents/nope", &adminCaller, nil, http.StatusNotFound},
		{"unknown worker", http.MethodGet, "/api/workers/nope", &adminCaller, nil, http.StatusNotFound},
		{"shift in use", http.MethodDelete, "/api/shifts/" + ts.shift.ID, &adminCaller, nil, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.path, tt.caller, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestErrorMapping_ValidationNamesField(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/workers", &adminCaller, map[string]any{"first_name": "Luis"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unit_id", decodeJSON[ErrorResponse](t, rec).Field)
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func TestCheckIn_ExplicitTime(t *testing.T) {
	// GIVEN: Worker on the 08:00 shift
	// WHEN: Checking in at 08:15 on 2024-03-04, then out at 16:00
	// THEN: LATE with 15 minutes, then 7.75 worked hours

	ts := newTestServer(t)
	path := "/api/workers/" + ts.worker.ID

	rec := ts.do(t, http.MethodPost, path+"/check-in", ts.self(), ClockRequest{Date: "2024-03-04", Time: "08:15"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeJSON[RecordDTO](t, rec)
	assert.Equal(t, "LATE", got.Status)
	assert.Equal(t, 15, got.LateMinutes)
	assert.Equal(t, "08:15:00", *got.CheckIn)

	rec = ts.do(t, http.MethodPost, path+"/check-out", ts.self(), ClockRequest{Date: "2024-03-04", Time: "16:00"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "7.75", decodeJSON[RecordDTO](t, rec).WorkedHours)

	rec = ts.do(t, http.MethodPost, path+"/check-in", ts.self(), ClockRequest{Date: "2024-03-04", Time: "09:00"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCheckIn_DefaultsToNow(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/workers/"+ts.worker.ID+"/check-in", ts.self(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeJSON[RecordDTO](t, rec)
	assert.Equal(t, "2024-03-11", got.Date)
	assert.Equal(t, "09:00:00", *got.CheckIn)
	assert.Equal(t, 60, got.LateMinutes)
}

func TestCheckIn_DefaultsToShiftZoneClock(t *testing.T) {
	// GIVEN: Shifts expressed in UTC-6 and a clock at 2024-03-12 01:55 UTC
	// WHEN: Checking in without a date or time
	// THEN: The record is stamped 2024-03-11 19:55 local, not the UTC day

	ts := newTestServer(t)
	ts.svc.Location = time.FixedZone("UTC-6", -6*3600)
	ts.svc.Now = func() time.Time { return time.Date(2024, 3, 12, 1, 55, 0, 0, time.UTC) }

	rec := ts.do(t, http.MethodPost, "/api/workers/"+ts.worker.ID+"/check-in", ts.self(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeJSON[RecordDTO](t, rec)
	assert.Equal(t, "2024-03-11", got.Date)
	assert.Equal(t, "19:55:00", *got.CheckIn)
}

func TestCheckIn_EarlyArrivalOutsideUTC(t *testing.T) {
	ts := newTestServer(t)
	ts.svc.Location = time.FixedZone("UTC-6", -6*3600)
	// 07:55 at UTC-6
	ts.svc.Now = func() time.Time { return time.Date(2024, 3, 11, 13, 55, 0, 0, time.UTC) }

	rec := ts.do(t, http.MethodPost, "/api/workers/"+ts.worker.ID+"/check-in", ts.self(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeJSON[RecordDTO](t, rec)
	assert.Equal(t, "07:55:00", *got.CheckIn)
	assert.Equal(t, "NORMAL", got.Status)
	assert.Equal(t, 0, got.LateMinutes)
}

func TestCheckIn_OtherWorkerForbidden(t *testing.T) {
	ts := newTestServer(t)
	other := &attendance.Caller{WorkerID: "someone-else", Role: attendance.RoleWorker, UnitID: ts.unit.ID}

	rec := ts.do(t, http.MethodPost, "/api/workers/"+ts.worker.ID+"/check-in", other, ClockRequest{Date: "2024-03-04", Time: "08:00"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestEditRecord_AndList(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPut, "/api/attendance", &adminCaller, EditRecordRequest{WorkerID: ts.worker.ID, Date: "2024-03-05"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "ABSENT", decodeJSON[RecordDTO](t, rec).Status)

	in := "07:50"
	rec = ts.do(t, http.MethodPut, "/api/attendance", &adminCaller, EditRecordRequest{WorkerID: ts.worker.ID, Date: "2024-03-04", CheckIn: &in})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/workers/"+ts.worker.ID+"/attendance?from=2024-03-01&to=2024-03-31", ts.self(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeJSON[struct {
		Records []RecordDTO `json:"records"`
	}](t, rec)
	require.Len(t, list.Records, 2)
	assert.Equal(t, "2024-03-04", list.Records[0].Date)
	assert.Equal(t, "NORMAL", list.Records[0].Status)
	assert.Equal(t, "ABSENT", list.Records[1].Status)

	// Workers cannot edit their own records
	rec = ts.do(t, http.MethodPut, "/api/attendance", ts.self(), EditRecordRequest{WorkerID: ts.worker.ID, Date: "2024-03-06"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCalendar_LockedOnceReferenced(t *testing.T) {
	ts := newTestServer(t)
	yes := true

	rec := ts.do(t, http.MethodPut, "/api/calendar/2024-03-18", &adminCaller, CalendarDayRequest{IsNonWorking: &yes, Reason: "Benito Juárez"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPut, "/api/attendance", &adminCaller, EditRecordRequest{WorkerID: ts.worker.ID, Date: "2024-03-18"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "NON_WORKING", decodeJSON[RecordDTO](t, rec).Status)

	rec = ts.do(t, http.MethodDelete, "/api/calendar/2024-03-18", &adminCaller, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/calendar?from=2024-03-01&to=2024-03-31", ts.self(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeJSON[struct {
		Days []CalendarDayDTO `json:"days"`
	}](t, rec).Days, 1)
}

func TestAssignShift_ClosesPrevious(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/shifts", &adminCaller, CreateShiftRequest{
		Label: "Afternoon", ExpectedStart: "14:00", ExpectedEnd: "22:00", ActiveWeekdays: "L-V",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	afternoon := decodeJSON[ShiftDTO](t, rec)
	assert.Equal(t, "14:00:00", afternoon.ExpectedStart)

	rec = ts.do(t, http.MethodPost, "/api/workers/"+ts.worker.ID+"/assignments", &adminCaller,
		AssignShiftRequest{ShiftID: afternoon.ID, ValidFrom: "2024-04-01"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/workers/"+ts.worker.ID+"/assignments", ts.self(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decodeJSON[struct {
		Assignments []AssignmentDTO `json:"assignments"`
	}](t, rec).Assignments
	require.Len(t, history, 2)
	require.NotNil(t, history[0].ValidUntil)
	assert.Equal(t, "2024-03-31", *history[0].ValidUntil)
	assert.Nil(t, history[1].ValidUntil)
}

// =============================================================================
// INCIDENTS
// =============================================================================

func TestIncident_ApproveReconcilesOverHTTP(t *testing.T) {
	// GIVEN: Absent days 2024-03-04..05 and a pending incident over 03-04..06
	// WHEN: The supervisor approves it
	// THEN: All three days are JUSTIFIED, including the one with no record

	ts := newTestServer(t)
	supervisor := &attendance.Caller{WorkerID: "boss", Role: attendance.RoleSupervisor, UnitID: ts.unit.ID}
	for _, d := range []string{"2024-03-04", "2024-03-05"} {
		rec := ts.do(t, http.MethodPut, "/api/attendance", &adminCaller, EditRecordRequest{WorkerID: ts.worker.ID, Date: d})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := ts.do(t, http.MethodPost, "/api/incident-types", &adminCaller, CreateIncidentTypeRequest{Description: "Sick leave"})
	require.Equal(t, http.StatusCreated, rec.Code)
	sick := decodeJSON[IncidentTypeDTO](t, rec)

	rec = ts.do(t, http.MethodPost, "/api/incidents", ts.self(), CreateIncidentRequest{
		WorkerID: ts.worker.ID, IncidentTypeID: sick.ID, DateStart: "2024-03-04", DateEnd: "2024-03-06", Reason: "flu",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	incident := decodeJSON[IncidentDTO](t, rec)
	assert.Equal(t, "PENDING", incident.Status)

	// The worker cannot decide their own incident
	rec = ts.do(t, http.MethodPost, "/api/incidents/"+incident.ID+"/approve", ts.self(), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/incidents/"+incident.ID+"/approve", supervisor, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approved := decodeJSON[IncidentDTO](t, rec)
	assert.Equal(t, "APPROVED", approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, "boss", *approved.ApprovedBy)

	rec = ts.do(t, http.MethodGet, "/api/workers/"+ts.worker.ID+"/attendance?from=2024-03-04&to=2024-03-06", supervisor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	records := decodeJSON[struct {
		Records []RecordDTO `json:"records"`
	}](t, rec).Records
	require.Len(t, records, 3)
	for _, r := range records {
		assert.Equal(t, "JUSTIFIED", r.Status, r.Date)
		require.NotNil(t, r.IncidentTypeID)
		assert.Equal(t, sick.ID, *r.IncidentTypeID)
	}

	// Rejecting after approval is a conflict
	rec = ts.do(t, http.MethodPost, "/api/incidents/"+incident.ID+"/reject", supervisor, RejectIncidentRequest{Reason: "late paperwork"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/workers/"+ts.worker.ID+"/audit", supervisor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), string(generic.AuditReconciliation))
}

func TestIncident_RejectWithoutBody(t *testing.T) {
	ts := newTestServer(t)
	vacation, err := ts.svc.CreateIncidentType(context.Background(), adminCaller, "Vacation")
	require.NoError(t, err)
	inc, err := ts.svc.CreateIncident(context.Background(), adminCaller, attendance.IncidentInput{
		WorkerID: ts.worker.ID, IncidentTypeID: vacation.ID,
		DateStart: generic.MustParseDate("2024-04-01"), DateEnd: generic.MustParseDate("2024-04-05"),
	})
	require.NoError(t, err)

	rec := ts.do(t, http.MethodPost, "/api/incidents/"+inc.ID+"/reject", &adminCaller, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "REJECTED", decodeJSON[IncidentDTO](t, rec).Status)

	rec = ts.do(t, http.MethodGet, "/api/incidents?status=rejected", ts.self(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeJSON[struct {
		Incidents []IncidentDTO `json:"incidents"`
	}](t, rec).Incidents, 1)

	rec = ts.do(t, http.MethodGet, "/api/incidents?status=maybe", ts.self(), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// REPORTS
// =============================================================================

func seedWeek(t *testing.T, ts *testServer) {
	t.Helper()
	ctx := context.Background()
	at := func(s string) *generic.ClockTime { c := generic.MustParseClockTime(s); return &c }
	for _, in := range []attendance.RecordInput{
		{WorkerID: ts.worker.ID, Date: generic.MustParseDate("2024-03-04"), CheckIn: at("08:00"), CheckOut: at("16:00")},
		{WorkerID: ts.worker.ID, Date: generic.MustParseDate("2024-03-05"), CheckIn: at("08:30"), CheckOut: at("16:00")},
		{WorkerID: ts.worker.ID, Date: generic.MustParseDate("2024-03-06")},
	} {
		_, err := ts.svc.EditRecord(ctx, adminCaller, in)
		require.NoError(t, err)
	}
}

func TestReportSummary(t *testing.T) {
	ts := newTestServer(t)
	seedWeek(t, ts)

	rec := ts.do(t, http.MethodGet, "/api/reports/summary?worker_id="+ts.worker.ID+"&from=2024-03-04&to=2024-03-08", &adminCaller, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sum := decodeJSON[SummaryDTO](t, rec)

	assert.Equal(t, 3, sum.Records)
	assert.Equal(t, 1, sum.Counts["NORMAL"])
	assert.Equal(t, 1, sum.Counts["LATE"])
	assert.Equal(t, 1, sum.Counts["ABSENT"])
	assert.Equal(t, 0, sum.Counts["JUSTIFIED"])
	assert.Equal(t, 30, sum.TotalLateMinutes)
	assert.Equal(t, "15.50", sum.TotalWorkedHours)
	assert.Equal(t, 5, sum.ScheduledDays)
}

func TestReportSummary_SupervisorDefaultsToOwnUnit(t *testing.T) {
	ts := newTestServer(t)
	seedWeek(t, ts)
	supervisor := &attendance.Caller{WorkerID: "boss", Role: attendance.RoleSupervisor, UnitID: ts.unit.ID}

	rec := ts.do(t, http.MethodGet, "/api/reports/summary?from=2024-03-04&to=2024-03-08", supervisor, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sum := decodeJSON[SummaryDTO](t, rec)
	assert.Equal(t, ts.unit.ID, sum.UnitID)
	assert.Equal(t, 3, sum.Records)

	rec = ts.do(t, http.MethodGet, "/api/reports/summary?unit_id=elsewhere&from=2024-03-04&to=2024-03-08", supervisor, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportCSV(t *testing.T) {
	ts := newTestServer(t)
	seedWeek(t, ts)

	rec := ts.do(t, http.MethodGet, "/api/reports/export.csv?unit_id="+ts.unit.ID+"&from=2024-03-04&to=2024-03-08", &adminCaller, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	lines, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"Worker", "Date", "CheckIn", "CheckOut", "Status", "LateMinutes", "WorkedHours", "IncidentType"}, lines[0])
	assert.Equal(t, []string{"Pérez Ana", "2024-03-05", "08:30:00", "16:00:00", "LATE", "30", "7.50", ""}, lines[2])
}

func TestExportXLSX(t *testing.T) {
	ts := newTestServer(t)
	seedWeek(t, ts)

	rec := ts.do(t, http.MethodGet, "/api/reports/export.xlsx?from=2024-03-04&to=2024-03-08", ts.self(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	book, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows("Attendance")
	require.NoError(t, err)
	assert.Len(t, rows, 4)
	assert.Equal(t, "Date", rows[0][0])
}
