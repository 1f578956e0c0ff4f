/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	attendance data. Each scenario creates its own unit, workers, shifts
	and records through the attendance service, so every record carries
	derived fields computed exactly as in production.

AVAILABLE SCENARIOS:

	late-arrivals:     One week with on-time, late and absent days
	retroactive-leave: Absences later justified by an approved incident
	reassignment:      Shift change mid-history; old days keep the old shift

HOW SCENARIOS WORK:
 1. Create a unit named after the scenario
 2. Create shifts and workers, assign shifts
 3. Record check-ins/outs for the previous calendar week
 4. Optionally file and approve incidents

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "retroactive-leave"}

NOTE:

	Scenarios add data; they never reset the store. Loading requires the
	ADMIN role like any other directory write.

SEE ALSO:
  - handlers.go: attendance endpoints the loaded data can be explored with
*/
package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required,oneof=late-arrivals retroactive-leave reassignment"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "late-arrivals",
		Name:        "Late Arrivals",
		Description: "One worker, one week: on time, late, absent",
	},
	{
		ID:          "retroactive-leave",
		Name:        "Retroactive Leave",
		Description: "Three absences justified by a sick-leave incident approved afterwards",
	},
	{
		ID:          "reassignment",
		Name:        "Shift Reassignment",
		Description: "Morning shift replaced by an afternoon shift; history keeps both",
	},
}

type scenarioLoader func(ctx context.Context, s *seeder) error

var scenarioLoaders = map[string]scenarioLoader{
	"late-arrivals":     loadLateArrivals,
	"retroactive-leave": loadRetroactiveLeave,
	"reassignment":      loadReassignment,
}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"scenarios": scenarios})
}

// LoadScenario seeds the selected scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	s := &seeder{svc: h.Service, caller: CallerFrom(r.Context()), week: previousWeek(h.Service.LocalNow())}
	if err := scenarioLoaders[req.ScenarioID](r.Context(), s); err != nil {
		h.fail(w, r, err)
		return
	}

	h.Logger.Info("scenario loaded",
		zap.String("scenario", req.ScenarioID),
		zap.String("unit_id", s.unit.ID),
		zap.String("week_of", s.week[0].String()))
	writeJSON(w, http.StatusCreated, map[string]any{
		"scenario": req.ScenarioID,
		"unit_id":  s.unit.ID,
		"from":     s.week[0].String(),
		"to":       s.week[4].String(),
	})
}

// =============================================================================
// SEEDING HELPERS
// =============================================================================

// seeder stops at the first error and keeps returning it, so loaders read
// as straight-line scripts and check once at the end.
type seeder struct {
	svc    *attendance.Service
	caller attendance.Caller
	week   [5]generic.TimePoint // Monday..Friday
	unit   *attendance.Unit
	err    error
}

// previousWeek returns Monday..Friday of the week before now.
func previousWeek(now time.Time) [5]generic.TimePoint {
	today := generic.DateOf(now)
	offset := (int(today.Weekday()) + 6) % 7 // days since Monday
	monday := today.AddDays(-offset - 7)
	var week [5]generic.TimePoint
	for i := range week {
		week[i] = monday.AddDays(i)
	}
	return week
}

func (s *seeder) createUnit(ctx context.Context, name string) {
	if s.err != nil {
		return
	}
	s.unit, s.err = s.svc.CreateUnit(ctx, s.caller, name, nil)
}

func (s *seeder) worker(ctx context.Context, first, last string) *attendance.Worker {
	if s.err != nil {
		return nil
	}
	var w *attendance.Worker
	w, s.err = s.svc.CreateWorker(ctx, s.caller, attendance.WorkerInput{FirstName: first, LastName: last, UnitID: s.unit.ID})
	return w
}

func (s *seeder) shift(ctx context.Context, label, start, end string) *attendance.WorkShift {
	if s.err != nil {
		return nil
	}
	var sh *attendance.WorkShift
	sh, s.err = s.svc.CreateShift(ctx, s.caller, attendance.ShiftInput{
		Label:          label,
		ExpectedStart:  generic.MustParseClockTime(start),
		ExpectedEnd:    generic.MustParseClockTime(end),
		ActiveWeekdays: "Mon-Fri",
	})
	return sh
}

func (s *seeder) assign(ctx context.Context, w *attendance.Worker, sh *attendance.WorkShift, from generic.TimePoint) {
	if s.err != nil {
		return
	}
	_, s.err = s.svc.Assign(ctx, s.caller, w.ID, sh.ID, from)
}

// day records a worker-day. Empty in/out leave the mark unset.
func (s *seeder) day(ctx context.Context, w *attendance.Worker, date generic.TimePoint, in, out string) {
	if s.err != nil {
		return
	}
	input := attendance.RecordInput{WorkerID: w.ID, Date: date}
	if in != "" {
		c := generic.MustParseClockTime(in)
		input.CheckIn = &c
	}
	if out != "" {
		c := generic.MustParseClockTime(out)
		input.CheckOut = &c
	}
	_, s.err = s.svc.EditRecord(ctx, s.caller, input)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadLateArrivals(ctx context.Context, s *seeder) error {
	s.createUnit(ctx, "Operations (late-arrivals)")
	carla := s.worker(ctx, "Carla", "Núñez")
	sh := s.shift(ctx, "Office 09-17", "09:00", "17:00")
	s.assign(ctx, carla, sh, s.week[0].AddDays(-7))

	s.day(ctx, carla, s.week[0], "08:55", "17:05")
	s.day(ctx, carla, s.week[1], "09:12", "17:00")
	s.day(ctx, carla, s.week[2], "", "")
	s.day(ctx, carla, s.week[3], "09:00", "16:30")
	s.day(ctx, carla, s.week[4], "09:31", "17:45")
	return s.err
}

func loadRetroactiveLeave(ctx context.Context, s *seeder) error {
	s.createUnit(ctx, "Finance (retroactive-leave)")
	diego := s.worker(ctx, "Diego", "Ramírez")
	sh := s.shift(ctx, "Morning 08-16", "08:00", "16:00")
	s.assign(ctx, diego, sh, s.week[0].AddDays(-7))

	for _, d := range s.week[:3] {
		s.day(ctx, diego, d, "", "")
	}
	s.day(ctx, diego, s.week[3], "07:58", "16:02")
	s.day(ctx, diego, s.week[4], "08:03", "16:00")
	if s.err != nil {
		return s.err
	}

	sick, err := s.svc.CreateIncidentType(ctx, s.caller, "Sick leave")
	if err != nil {
		return err
	}
	incident, err := s.svc.CreateIncident(ctx, s.caller, attendance.IncidentInput{
		WorkerID:       diego.ID,
		IncidentTypeID: sick.ID,
		DateStart:      s.week[0],
		DateEnd:        s.week[2],
		Reason:         "medical certificate delivered",
	})
	if err != nil {
		return err
	}
	_, err = s.svc.Approve(ctx, incident.ID, s.caller)
	return err
}

func loadReassignment(ctx context.Context, s *seeder) error {
	s.createUnit(ctx, "Support (reassignment)")
	elena := s.worker(ctx, "Elena", "Vargas")
	morning := s.shift(ctx, "Morning 08-16", "08:00", "16:00")
	afternoon := s.shift(ctx, "Afternoon 14-22", "14:00", "22:00")
	s.assign(ctx, elena, morning, s.week[0].AddDays(-14))
	s.assign(ctx, elena, afternoon, s.week[2])

	// Monday and Tuesday are judged against 08:00, the rest against 14:00
	s.day(ctx, elena, s.week[0], "08:10", "16:00")
	s.day(ctx, elena, s.week[1], "07:59", "16:00")
	s.day(ctx, elena, s.week[2], "13:55", "22:00")
	s.day(ctx, elena, s.week[3], "14:20", "22:00")
	s.day(ctx, elena, s.week[4], "14:00", "21:30")
	return s.err
}
