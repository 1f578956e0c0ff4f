/*
scenarios_test.go - Tests for demo scenarios

PURPOSE:
	Each scenario must load cleanly through the service and leave the
	statuses its description promises. These double as integration tests
	of the write paths the scenarios drive.
*/
package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/store/memory"
)

// Friday 2024-03-15; the previous week is 2024-03-04..08.
var scenarioNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func loadScenario(t *testing.T, id string) (*attendance.Service, *seeder) {
	t.Helper()
	svc := attendance.NewService(memory.New(), nil)
	svc.Now = func() time.Time { return scenarioNow }

	s := &seeder{svc: svc, caller: attendance.SystemCaller, week: previousWeek(scenarioNow)}
	if err := scenarioLoaders[id](context.Background(), s); err != nil {
		t.Fatalf("Failed to load %s scenario: %v", id, err)
	}
	return svc, s
}

func scenarioStatuses(t *testing.T, svc *attendance.Service, s *seeder) []attendance.Status {
	t.Helper()
	ctx := context.Background()
	workers, err := svc.ListWorkers(ctx, attendance.SystemCaller, s.unit.ID)
	if err != nil || len(workers) != 1 {
		t.Fatalf("Expected 1 worker in unit, got %d (err=%v)", len(workers), err)
	}
	records, err := svc.ListRecords(ctx, attendance.SystemCaller, workers[0].ID, generic.Period{Start: s.week[0], End: s.week[4]})
	if err != nil {
		t.Fatalf("Failed to list records: %v", err)
	}
	out := make([]attendance.Status, len(records))
	for i, r := range records {
		out[i] = r.Status
	}
	return out
}

func assertStatuses(t *testing.T, got []attendance.Status, want ...attendance.Status) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("Expected %d records, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Day %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestPreviousWeek(t *testing.T) {
	tests := []struct {
		now  time.Time
		want string
	}{
		{time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC), "2024-03-04"}, // Friday
		{time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), "2024-03-04"},  // Monday
		{time.Date(2024, 3, 17, 23, 0, 0, 0, time.UTC), "2024-03-04"}, // Sunday
	}
	for _, tt := range tests {
		week := previousWeek(tt.now)
		if week[0].String() != tt.want {
			t.Errorf("previousWeek(%s): expected Monday %s, got %s", tt.now.Format(time.RFC3339), tt.want, week[0])
		}
		if week[4].Weekday() != time.Friday {
			t.Errorf("previousWeek(%s): last day is %s", tt.now.Format(time.RFC3339), week[4].Weekday())
		}
	}
}

func TestScenario_LateArrivals(t *testing.T) {
	// GIVEN: The late-arrivals scenario
	// WHEN: Loading it
	// THEN: Mon on time, Tue late, Wed absent, Thu on time, Fri late

	svc, s := loadScenario(t, "late-arrivals")
	assertStatuses(t, scenarioStatuses(t, svc, s),
		attendance.StatusNormal, attendance.StatusLate, attendance.StatusAbsent,
		attendance.StatusNormal, attendance.StatusLate)
}

func TestScenario_RetroactiveLeave(t *testing.T) {
	svc, s := loadScenario(t, "retroactive-leave")
	assertStatuses(t, scenarioStatuses(t, svc, s),
		attendance.StatusJustified, attendance.StatusJustified, attendance.StatusJustified,
		attendance.StatusNormal, attendance.StatusLate)
}

func TestScenario_Reassignment(t *testing.T) {
	// Mon 08:10 vs 08:00 late; Tue 07:59 on time; Wed 13:55 vs 14:00 on
	// time; Thu 14:20 late; Fri 14:00 on time.
	svc, s := loadScenario(t, "reassignment")
	assertStatuses(t, scenarioStatuses(t, svc, s),
		attendance.StatusLate, attendance.StatusNormal, attendance.StatusNormal,
		attendance.StatusLate, attendance.StatusNormal)
}

func TestLoadScenario_Endpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", &adminCaller, LoadScenarioRequest{ScenarioID: "late-arrivals"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodPost, "/api/scenarios/load", &adminCaller, LoadScenarioRequest{ScenarioID: "unknown"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown scenario, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/api/scenarios/load", ts.self(), LoadScenarioRequest{ScenarioID: "late-arrivals"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for worker, got %d", rec.Code)
	}
}
