/*
handlers.go - HTTP API handlers for the attendance engine

PURPOSE:
  Exposes the attendance service and reports via REST. Handles HTTP
  request/response, JSON serialization, and delegates to the attendance
  and report packages. No business rule lives here.

ENDPOINTS:
  Directory:
    GET    /api/units                       List units
    POST   /api/units                       Create unit
    GET    /api/workers?unit_id=            List workers visible to caller
    POST   /api/workers                     Create worker
    GET    /api/workers/{id}                Get worker
    GET    /api/workers/{id}/assignments    Assignment history
    POST   /api/workers/{id}/assignments    Assign shift from a date
    GET    /api/workers/{id}/attendance     Records (?from&to)
    POST   /api/workers/{id}/check-in       Record check-in
    POST   /api/workers/{id}/check-out      Record check-out
    GET    /api/workers/{id}/audit          Audit trail

  Attendance:
    PUT    /api/attendance                  Administrative edit of a worker-day

  Catalogs:
    GET    /api/shifts, POST /api/shifts, DELETE /api/shifts/{id}
    GET    /api/incident-types, POST /api/incident-types
    GET    /api/calendar?from&to
    PUT    /api/calendar/{date}, DELETE /api/calendar/{date}

  Incidents:
    GET    /api/incidents?worker_id&status&from&to
    POST   /api/incidents
    GET    /api/incidents/{id}
    POST   /api/incidents/{id}/approve
    POST   /api/incidents/{id}/reject

  Reports (?worker_id | ?unit_id, &from&to):
    GET    /api/reports/summary
    GET    /api/reports/export.csv
    GET    /api/reports/export.xlsx

  Scenarios:
    GET    /api/scenarios, POST /api/scenarios/load

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing or malformed identity headers
  - 403: Caller lacks the capability
  - 404: Resource not found
  - 409: Conflict, incident already decided
  - 500: Internal errors (logged, details withheld)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup, middleware, identity
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/report"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *attendance.Service
	Reports *report.Reporter
	Health  Pinger // optional
	Logger  *zap.Logger

	validate *validator.Validate
}

// NewHandler wires the service and a reporter reading from the same store.
func NewHandler(svc *attendance.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{
		Service:  svc,
		Reports:  report.NewReporter(svc.Store, logger),
		Logger:   logger,
		validate: v,
	}
}

// =============================================================================
// HEALTH
// =============================================================================

// HealthCheck reports liveness and store reachability.
// GET /api/health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// DIRECTORY
// =============================================================================

// GET /api/units
func (h *Handler) ListUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.Service.ListUnits(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"units": mapSlice(units, toUnitDTO)})
}

// POST /api/units
func (h *Handler) CreateUnit(w http.ResponseWriter, r *http.Request) {
	var req CreateUnitRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	unit, err := h.Service.CreateUnit(r.Context(), CallerFrom(r.Context()), req.Name, req.ParentID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUnitDTO(*unit))
}

// GET /api/workers?unit_id=
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := h.Service.ListWorkers(r.Context(), CallerFrom(r.Context()), r.URL.Query().Get("unit_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workers": mapSlice(workers, toWorkerDTO)})
}

// POST /api/workers
func (h *Handler) CreateWorker(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkerRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	worker, err := h.Service.CreateWorker(r.Context(), CallerFrom(r.Context()), attendance.WorkerInput{
		EmployeeNumber: req.EmployeeNumber,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		UnitID:         req.UnitID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWorkerDTO(*worker))
}

// GET /api/workers/{id}
func (h *Handler) GetWorker(w http.ResponseWriter, r *http.Request) {
	worker, err := h.Service.GetWorker(r.Context(), CallerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkerDTO(*worker))
}

// GET /api/workers/{id}/audit
func (h *Handler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Service.AuditTrail(r.Context(), CallerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": mapSlice(entries, toAuditEntryDTO)})
}

// =============================================================================
// SCHEDULE
// =============================================================================

// GET /api/shifts
func (h *Handler) ListShifts(w http.ResponseWriter, r *http.Request) {
	shifts, err := h.Service.ListShifts(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shifts": mapSlice(shifts, toShiftDTO)})
}

// POST /api/shifts
func (h *Handler) CreateShift(w http.ResponseWriter, r *http.Request) {
	var req CreateShiftRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	start, err := parseClock("expected_start", req.ExpectedStart)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	end, err := parseClock("expected_end", req.ExpectedEnd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	shift, err := h.Service.CreateShift(r.Context(), CallerFrom(r.Context()), attendance.ShiftInput{
		Label:          req.Label,
		ExpectedStart:  start,
		ExpectedEnd:    end,
		ActiveWeekdays: req.ActiveWeekdays,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toShiftDTO(*shift))
}

// DELETE /api/shifts/{id}
func (h *Handler) DeleteShift(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteShift(r.Context(), CallerFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// GET /api/workers/{id}/assignments
func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.Service.ListAssignments(r.Context(), CallerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assignments": mapSlice(assignments, toAssignmentDTO)})
}

// POST /api/workers/{id}/assignments
func (h *Handler) AssignShift(w http.ResponseWriter, r *http.Request) {
	var req AssignShiftRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	from, err := parseDate("valid_from", req.ValidFrom)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.Service.Assign(r.Context(), CallerFrom(r.Context()), chi.URLParam(r, "id"), req.ShiftID, from)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssignmentDTO(*a))
}

// =============================================================================
// CALENDAR
// =============================================================================

// GET /api/calendar?from&to
func (h *Handler) ListCalendar(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriod(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	days, err := h.Service.ListNonWorkingDays(r.Context(), period)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": mapSlice(days, toCalendarDayDTO)})
}

// PUT /api/calendar/{date}
func (h *Handler) SetCalendarDay(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate("date", chi.URLParam(r, "date"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req CalendarDayRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	day, err := h.Service.SetNonWorkingDay(r.Context(), CallerFrom(r.Context()), attendance.NonWorkingDay{
		Date:         date,
		IsNonWorking: *req.IsNonWorking,
		Reason:       req.Reason,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCalendarDayDTO(*day))
}

// DELETE /api/calendar/{date}
func (h *Handler) DeleteCalendarDay(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate("date", chi.URLParam(r, "date"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Service.RemoveNonWorkingDay(r.Context(), CallerFrom(r.Context()), date); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// =============================================================================
// ATTENDANCE
// =============================================================================

// POST /api/workers/{id}/check-in
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	h.clock(w, r, h.Service.CheckIn)
}

// POST /api/workers/{id}/check-out
func (h *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	h.clock(w, r, h.Service.CheckOut)
}

type clockFunc func(ctx context.Context, caller attendance.Caller, workerID string, date generic.TimePoint, at generic.ClockTime) (*attendance.Record, error)

func (h *Handler) clock(w http.ResponseWriter, r *http.Request, mark clockFunc) {
	var req ClockRequest
	if err := h.decodeOptional(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	now := h.Service.LocalNow()
	date, at := generic.DateOf(now), generic.ClockOf(now)
	var err error
	if req.Date != "" {
		if date, err = parseDate("date", req.Date); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	if req.Time != "" {
		if at, err = parseClock("time", req.Time); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	rec, err := mark(r.Context(), CallerFrom(r.Context()), chi.URLParam(r, "id"), date, at)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(*rec))
}

// PUT /api/attendance
func (h *Handler) EditRecord(w http.ResponseWriter, r *http.Request) {
	var req EditRecordRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	in := attendance.RecordInput{WorkerID: req.WorkerID, IncidentTypeID: req.IncidentTypeID}
	var err error
	if in.Date, err = parseDate("date", req.Date); err != nil {
		h.fail(w, r, err)
		return
	}
	if in.CheckIn, err = parseOptionalClock("check_in", req.CheckIn); err != nil {
		h.fail(w, r, err)
		return
	}
	if in.CheckOut, err = parseOptionalClock("check_out", req.CheckOut); err != nil {
		h.fail(w, r, err)
		return
	}

	rec, err := h.Service.EditRecord(r.Context(), CallerFrom(r.Context()), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(*rec))
}

// GET /api/workers/{id}/attendance?from&to
func (h *Handler) ListAttendance(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriod(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	records, err := h.Service.ListRecords(r.Context(), CallerFrom(r.Context()), chi.URLParam(r, "id"), period)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": mapSlice(records, toRecordDTO)})
}

// =============================================================================
// INCIDENTS
// =============================================================================

// GET /api/incident-types
func (h *Handler) ListIncidentTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Service.ListIncidentTypes(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"incident_types": mapSlice(types, toIncidentTypeDTO)})
}

// POST /api/incident-types
func (h *Handler) CreateIncidentType(w http.ResponseWriter, r *http.Request) {
	var req CreateIncidentTypeRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.Service.CreateIncidentType(r.Context(), CallerFrom(r.Context()), req.Description)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toIncidentTypeDTO(*t))
}

// GET /api/incidents?worker_id&status&from&to
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := attendance.IncidentFilter{
		WorkerID: q.Get("worker_id"),
		Status:   attendance.IncidentStatus(strings.ToUpper(q.Get("status"))),
	}
	switch filter.Status {
	case "", attendance.IncidentPending, attendance.IncidentApproved, attendance.IncidentRejected:
	default:
		h.fail(w, r, generic.NewValidationError("status", "unknown incident status %q", q.Get("status")))
		return
	}
	if q.Get("from") != "" || q.Get("to") != "" {
		period, err := parsePeriod(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		filter.Overlapping = &period
	}

	incidents, err := h.Service.ListIncidents(r.Context(), CallerFrom(r.Context()), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"incidents": mapSlice(incidents, toIncidentDTO)})
}

// POST /api/incidents
func (h *Handler) CreateIncident(w http.ResponseWriter, r *http.Request) {
	var req CreateIncidentRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	in := attendance.IncidentInput{WorkerID: req.WorkerID, IncidentTypeID: req.IncidentTypeID, Reason: req.Reason}
	var err error
	if in.DateStart, err = parseDate("date_start", req.DateStart); err != nil {
		h.fail(w, r, err)
		return
	}
	if in.DateEnd, err = parseDate("date_end", req.DateEnd); err != nil {
		h.fail(w, r, err)
		return
	}

	incident, err := h.Service.CreateIncident(r.Context(), CallerFrom(r.Context()), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toIncidentDTO(*incident))
}

// GET /api/incidents/{id}
func (h *Handler) GetIncident(w http.ResponseWriter, r *http.Request) {
	incident, err := h.Service.GetIncident(r.Context(), CallerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toIncidentDTO(*incident))
}

// ApproveIncident approves and reconciles the incident's range.
// POST /api/incidents/{id}/approve
func (h *Handler) ApproveIncident(w http.ResponseWriter, r *http.Request) {
	incident, err := h.Service.Approve(r.Context(), chi.URLParam(r, "id"), CallerFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toIncidentDTO(*incident))
}

// POST /api/incidents/{id}/reject
func (h *Handler) RejectIncident(w http.ResponseWriter, r *http.Request) {
	var req RejectIncidentRequest
	if err := h.decodeOptional(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	incident, err := h.Service.Reject(r.Context(), chi.URLParam(r, "id"), CallerFrom(r.Context()), req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toIncidentDTO(*incident))
}

// =============================================================================
// REPORTS
// =============================================================================

// GET /api/reports/summary
func (h *Handler) ReportSummary(w http.ResponseWriter, r *http.Request) {
	caller := CallerFrom(r.Context())
	scope, err := parseScope(r, caller)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sum, err := h.Reports.Summary(r.Context(), caller, scope)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(*sum))
}

// GET /api/reports/export.csv
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "text/csv; charset=utf-8", "csv", report.WriteCSV)
}

// GET /api/reports/export.xlsx
func (h *Handler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx", report.WriteXLSX)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request, contentType, ext string, write func(io.Writer, []report.Row, bool) error) {
	caller := CallerFrom(r.Context())
	scope, err := parseScope(r, caller)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rows, err := h.Reports.Rows(r.Context(), caller, scope)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	subject := scope.WorkerID
	if scope.IsUnit() {
		subject = "unit_" + scope.UnitID
	}
	filename := fmt.Sprintf("attendance_%s_%s_%s.%s", subject, scope.Period.Start, scope.Period.End, ext)

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if err := write(w, rows, scope.IsUnit()); err != nil {
		// Headers are out; all that is left is to log.
		h.Logger.Error("export failed",
			zap.String("format", ext),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
	}
}

// parseScope reads worker_id/unit_id and from/to. Without either id a
// supervisor gets their unit and anyone else gets themselves.
func parseScope(r *http.Request, caller attendance.Caller) (report.Scope, error) {
	q := r.URL.Query()
	period, err := parsePeriod(r)
	if err != nil {
		return report.Scope{}, err
	}
	scope := report.Scope{WorkerID: q.Get("worker_id"), UnitID: q.Get("unit_id"), Period: period}
	if scope.WorkerID == "" && scope.UnitID == "" {
		if caller.Role == attendance.RoleSupervisor && caller.UnitID != "" {
			scope.UnitID = caller.UnitID
		} else {
			scope.WorkerID = caller.WorkerID
		}
	}
	return scope, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return generic.NewValidationError("", "invalid request body: %v", err)
	}
	return h.check(dst)
}

// decodeOptional accepts an empty body.
func (h *Handler) decodeOptional(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return generic.NewValidationError("", "invalid request body: %v", err)
	}
	return h.check(dst)
}

func (h *Handler) check(dst any) error {
	err := h.validate.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return generic.NewValidationError(fe.Field(), "failed %q validation", fe.Tag())
	}
	return generic.NewValidationError("", "%v", err)
}

func parseDate(field, s string) (generic.TimePoint, error) {
	if s == "" {
		return generic.TimePoint{}, generic.NewValidationError(field, "is required")
	}
	d, err := generic.ParseDate(s)
	if err != nil {
		return generic.TimePoint{}, generic.NewValidationError(field, "%v", err)
	}
	return d, nil
}

func parseClock(field, s string) (generic.ClockTime, error) {
	c, err := generic.ParseClockTime(s)
	if err != nil {
		return 0, generic.NewValidationError(field, "%v", err)
	}
	return c, nil
}

func parseOptionalClock(field string, s *string) (*generic.ClockTime, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	c, err := parseClock(field, *s)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func parsePeriod(r *http.Request) (generic.Period, error) {
	q := r.URL.Query()
	from, err := parseDate("from", q.Get("from"))
	if err != nil {
		return generic.Period{}, err
	}
	to, err := parseDate("to", q.Get("to"))
	if err != nil {
		return generic.Period{}, err
	}
	p := generic.Period{Start: from, End: to}
	return p, p.Validate("to")
}

// fail maps a service error onto a status code.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *generic.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Field: verr.Field, Details: verr.Message})
	case generic.IsForbidden(err):
		writeError(w, http.StatusForbidden, "Forbidden", err)
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case generic.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	default:
		h.Logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal error", nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
