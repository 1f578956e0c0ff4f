// Package memory provides an in-memory attendance.TxStore for tests and
// local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type recordKey struct {
	WorkerID string
	Date     generic.TimePoint
}

// tables holds every row. Its methods assume the caller holds the lock.
type tables struct {
	units         map[string]attendance.Unit
	workers       map[string]attendance.Worker
	incidentTypes map[string]attendance.IncidentType
	calendar      map[generic.TimePoint]attendance.NonWorkingDay
	shifts        map[string]attendance.WorkShift
	assignments   map[string]attendance.ScheduleAssignment
	records       map[recordKey]attendance.Record
	incidents     map[string]attendance.Incident
	audit         []generic.AuditEntry
}

func newTables() *tables {
	return &tables{
		units:         make(map[string]attendance.Unit),
		workers:       make(map[string]attendance.Worker),
		incidentTypes: make(map[string]attendance.IncidentType),
		calendar:      make(map[generic.TimePoint]attendance.NonWorkingDay),
		shifts:        make(map[string]attendance.WorkShift),
		assignments:   make(map[string]attendance.ScheduleAssignment),
		records:       make(map[recordKey]attendance.Record),
		incidents:     make(map[string]attendance.Incident),
	}
}

func (t *tables) clone() *tables {
	c := newTables()
	for k, v := range t.units {
		c.units[k] = v
	}
	for k, v := range t.workers {
		c.workers[k] = v
	}
	for k, v := range t.incidentTypes {
		c.incidentTypes[k] = v
	}
	for k, v := range t.calendar {
		c.calendar[k] = v
	}
	for k, v := range t.shifts {
		c.shifts[k] = v
	}
	for k, v := range t.assignments {
		c.assignments[k] = v
	}
	for k, v := range t.records {
		c.records[k] = v
	}
	for k, v := range t.incidents {
		c.incidents[k] = v
	}
	c.audit = append([]generic.AuditEntry{}, t.audit...)
	return c
}

// ===== Directory =====

func (t *tables) SaveUnit(_ context.Context, u attendance.Unit) error {
	t.units[u.ID] = u
	return nil
}

func (t *tables) GetUnit(_ context.Context, id string) (*attendance.Unit, error) {
	u, ok := t.units[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (t *tables) ListUnits(_ context.Context) ([]attendance.Unit, error) {
	out := make([]attendance.Unit, 0, len(t.units))
	for _, u := range t.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *tables) SaveWorker(_ context.Context, w attendance.Worker) error {
	t.workers[w.ID] = w
	return nil
}

func (t *tables) GetWorker(_ context.Context, id string) (*attendance.Worker, error) {
	w, ok := t.workers[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (t *tables) ListWorkers(_ context.Context, unitID string) ([]attendance.Worker, error) {
	var out []attendance.Worker
	for _, w := range t.workers {
		if unitID == "" || w.UnitID == unitID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		if a.FirstName != b.FirstName {
			return a.FirstName < b.FirstName
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (t *tables) SaveIncidentType(_ context.Context, it attendance.IncidentType) error {
	t.incidentTypes[it.ID] = it
	return nil
}

func (t *tables) GetIncidentType(_ context.Context, id string) (*attendance.IncidentType, error) {
	it, ok := t.incidentTypes[id]
	if !ok {
		return nil, nil
	}
	return &it, nil
}

func (t *tables) ListIncidentTypes(_ context.Context) ([]attendance.IncidentType, error) {
	out := make([]attendance.IncidentType, 0, len(t.incidentTypes))
	for _, it := range t.incidentTypes {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Description < out[j].Description })
	return out, nil
}

// ===== Calendar =====

func (t *tables) SaveNonWorkingDay(_ context.Context, d attendance.NonWorkingDay) error {
	t.calendar[d.Date] = d
	return nil
}

func (t *tables) GetNonWorkingDay(_ context.Context, date generic.TimePoint) (*attendance.NonWorkingDay, error) {
	d, ok := t.calendar[date]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (t *tables) ListNonWorkingDays(_ context.Context, period generic.Period) ([]attendance.NonWorkingDay, error) {
	var out []attendance.NonWorkingDay
	for date, d := range t.calendar {
		if period.Contains(date) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (t *tables) DeleteNonWorkingDay(_ context.Context, date generic.TimePoint) error {
	delete(t.calendar, date)
	return nil
}

// ===== Shifts =====

func (t *tables) SaveShift(_ context.Context, s attendance.WorkShift) error {
	t.shifts[s.ID] = s
	return nil
}

func (t *tables) GetShift(_ context.Context, id string) (*attendance.WorkShift, error) {
	s, ok := t.shifts[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (t *tables) ListShifts(_ context.Context) ([]attendance.WorkShift, error) {
	out := make([]attendance.WorkShift, 0, len(t.shifts))
	for _, s := range t.shifts {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (t *tables) DeleteShift(ctx context.Context, id string) error {
	if n, _ := t.CountAssignmentsForShift(ctx, id); n > 0 {
		return &generic.ConflictError{Subject: "shift", Message: fmt.Sprintf("shift %s is referenced by assignments", id)}
	}
	delete(t.shifts, id)
	return nil
}

// ===== Assignments =====

func (t *tables) InsertAssignment(_ context.Context, a attendance.ScheduleAssignment) error {
	if _, ok := t.shifts[a.ShiftID]; !ok {
		return generic.NewNotFound("shift", a.ShiftID)
	}
	if a.IsOpen() {
		for _, other := range t.assignments {
			if other.WorkerID == a.WorkerID && other.IsOpen() {
				return &generic.ConflictError{
					Subject: "schedule_assignment",
					Message: fmt.Sprintf("worker %s already has open assignment %s", a.WorkerID, other.ID),
				}
			}
		}
	}
	t.assignments[a.ID] = a
	return nil
}

func (t *tables) CloseAssignment(_ context.Context, id string, until generic.TimePoint) error {
	a, ok := t.assignments[id]
	if !ok {
		return generic.NewNotFound("schedule_assignment", id)
	}
	a.ValidUntil = &until
	t.assignments[id] = a
	return nil
}

func (t *tables) ListAssignments(_ context.Context, workerID string) ([]attendance.ScheduleAssignment, error) {
	var out []attendance.ScheduleAssignment
	for _, a := range t.assignments {
		if a.WorkerID == workerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ValidFrom.Before(out[j].ValidFrom) })
	return out, nil
}

func (t *tables) CountAssignmentsForShift(_ context.Context, shiftID string) (int, error) {
	n := 0
	for _, a := range t.assignments {
		if a.ShiftID == shiftID {
			n++
		}
	}
	return n, nil
}

// ===== Records =====

func (t *tables) InsertRecord(_ context.Context, r attendance.Record) error {
	k := recordKey{WorkerID: r.WorkerID, Date: r.Date}
	if _, ok := t.records[k]; ok {
		return generic.ErrDuplicateRecord
	}
	t.records[k] = r
	return nil
}

func (t *tables) UpdateRecord(_ context.Context, r attendance.Record) error {
	k := recordKey{WorkerID: r.WorkerID, Date: r.Date}
	existing, ok := t.records[k]
	if !ok || existing.ID != r.ID {
		return generic.NewNotFound("attendance_record", r.ID)
	}
	t.records[k] = r
	return nil
}

func (t *tables) GetRecord(_ context.Context, workerID string, date generic.TimePoint) (*attendance.Record, error) {
	r, ok := t.records[recordKey{WorkerID: workerID, Date: date}]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (t *tables) ListRecords(_ context.Context, filter attendance.RecordFilter) ([]attendance.Record, error) {
	workers := make(map[string]bool, len(filter.WorkerIDs))
	for _, id := range filter.WorkerIDs {
		workers[id] = true
	}
	var out []attendance.Record
	for _, r := range t.records {
		if len(workers) > 0 && !workers[r.WorkerID] {
			continue
		}
		if filter.Period != nil && !filter.Period.Contains(r.Date) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].WorkerID < out[j].WorkerID
	})
	return out, nil
}

func (t *tables) CountRecordsOn(_ context.Context, date generic.TimePoint) (int, error) {
	n := 0
	for k := range t.records {
		if k.Date.Equal(date) {
			n++
		}
	}
	return n, nil
}

// ===== Incidents =====

func (t *tables) InsertIncident(_ context.Context, i attendance.Incident) error {
	if _, ok := t.incidents[i.ID]; ok {
		return &generic.ConflictError{Subject: "incident", Message: "duplicate id " + i.ID}
	}
	t.incidents[i.ID] = i
	return nil
}

func (t *tables) UpdateIncident(_ context.Context, i attendance.Incident) error {
	if _, ok := t.incidents[i.ID]; !ok {
		return generic.NewNotFound("incident", i.ID)
	}
	t.incidents[i.ID] = i
	return nil
}

func (t *tables) GetIncident(_ context.Context, id string) (*attendance.Incident, error) {
	i, ok := t.incidents[id]
	if !ok {
		return nil, nil
	}
	return &i, nil
}

func (t *tables) ListIncidents(_ context.Context, filter attendance.IncidentFilter) ([]attendance.Incident, error) {
	var out []attendance.Incident
	for _, i := range t.incidents {
		if filter.Matches(i) {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].DateStart.Equal(out[b].DateStart) {
			return out[a].DateStart.After(out[b].DateStart)
		}
		return strings.Compare(out[a].ID, out[b].ID) < 0
	})
	return out, nil
}

// ===== Audit =====

func (t *tables) AppendAudit(_ context.Context, e generic.AuditEntry) error {
	t.audit = append(t.audit, e)
	return nil
}

func (t *tables) QueryAudit(_ context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	var out []generic.AuditEntry
	for _, e := range t.audit {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// Memory implements attendance.TxStore. Reads outside WithTx take the read
// lock; WithTx holds the write lock for the whole unit of work, so
// transactions are fully serialized.
type Memory struct {
	mu sync.RWMutex
	t  *tables
}

func New() *Memory {
	return &Memory{t: newTables()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(attendance.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := m.t.clone()
	if err := fn(m.t); err != nil {
		m.t = snapshot
		return err
	}
	if err := ctx.Err(); err != nil {
		m.t = snapshot
		return err
	}
	return nil
}

func (m *Memory) write(fn func(*tables) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.t)
}

func (m *Memory) read() (*tables, func()) {
	m.mu.RLock()
	return m.t, m.mu.RUnlock
}

func (m *Memory) SaveUnit(ctx context.Context, u attendance.Unit) error {
	return m.write(func(t *tables) error { return t.SaveUnit(ctx, u) })
}

func (m *Memory) GetUnit(ctx context.Context, id string) (*attendance.Unit, error) {
	t, done := m.read()
	defer done()
	return t.GetUnit(ctx, id)
}

func (m *Memory) ListUnits(ctx context.Context) ([]attendance.Unit, error) {
	t, done := m.read()
	defer done()
	return t.ListUnits(ctx)
}

func (m *Memory) SaveWorker(ctx context.Context, w attendance.Worker) error {
	return m.write(func(t *tables) error { return t.SaveWorker(ctx, w) })
}

func (m *Memory) GetWorker(ctx context.Context, id string) (*attendance.Worker, error) {
	t, done := m.read()
	defer done()
	return t.GetWorker(ctx, id)
}

func (m *Memory) ListWorkers(ctx context.Context, unitID string) ([]attendance.Worker, error) {
	t, done := m.read()
	defer done()
	return t.ListWorkers(ctx, unitID)
}

func (m *Memory) SaveIncidentType(ctx context.Context, it attendance.IncidentType) error {
	return m.write(func(t *tables) error { return t.SaveIncidentType(ctx, it) })
}

func (m *Memory) GetIncidentType(ctx context.Context, id string) (*attendance.IncidentType, error) {
	t, done := m.read()
	defer done()
	return t.GetIncidentType(ctx, id)
}

func (m *Memory) ListIncidentTypes(ctx context.Context) ([]attendance.IncidentType, error) {
	t, done := m.read()
	defer done()
	return t.ListIncidentTypes(ctx)
}

func (m *Memory) SaveNonWorkingDay(ctx context.Context, d attendance.NonWorkingDay) error {
	return m.write(func(t *tables) error { return t.SaveNonWorkingDay(ctx, d) })
}

func (m *Memory) GetNonWorkingDay(ctx context.Context, date generic.TimePoint) (*attendance.NonWorkingDay, error) {
	t, done := m.read()
	defer done()
	return t.GetNonWorkingDay(ctx, date)
}

func (m *Memory) ListNonWorkingDays(ctx context.Context, period generic.Period) ([]attendance.NonWorkingDay, error) {
	t, done := m.read()
	defer done()
	return t.ListNonWorkingDays(ctx, period)
}

func (m *Memory) DeleteNonWorkingDay(ctx context.Context, date generic.TimePoint) error {
	return m.write(func(t *tables) error { return t.DeleteNonWorkingDay(ctx, date) })
}

func (m *Memory) SaveShift(ctx context.Context, s attendance.WorkShift) error {
	return m.write(func(t *tables) error { return t.SaveShift(ctx, s) })
}

func (m *Memory) GetShift(ctx context.Context, id string) (*attendance.WorkShift, error) {
	t, done := m.read()
	defer done()
	return t.GetShift(ctx, id)
}

func (m *Memory) ListShifts(ctx context.Context) ([]attendance.WorkShift, error) {
	t, done := m.read()
	defer done()
	return t.ListShifts(ctx)
}

func (m *Memory) DeleteShift(ctx context.Context, id string) error {
	return m.write(func(t *tables) error { return t.DeleteShift(ctx, id) })
}

func (m *Memory) InsertAssignment(ctx context.Context, a attendance.ScheduleAssignment) error {
	return m.write(func(t *tables) error { return t.InsertAssignment(ctx, a) })
}

func (m *Memory) CloseAssignment(ctx context.Context, id string, until generic.TimePoint) error {
	return m.write(func(t *tables) error { return t.CloseAssignment(ctx, id, until) })
}

func (m *Memory) ListAssignments(ctx context.Context, workerID string) ([]attendance.ScheduleAssignment, error) {
	t, done := m.read()
	defer done()
	return t.ListAssignments(ctx, workerID)
}

func (m *Memory) CountAssignmentsForShift(ctx context.Context, shiftID string) (int, error) {
	t, done := m.read()
	defer done()
	return t.CountAssignmentsForShift(ctx, shiftID)
}

func (m *Memory) InsertRecord(ctx context.Context, r attendance.Record) error {
	return m.write(func(t *tables) error { return t.InsertRecord(ctx, r) })
}

func (m *Memory) UpdateRecord(ctx context.Context, r attendance.Record) error {
	return m.write(func(t *tables) error { return t.UpdateRecord(ctx, r) })
}

func (m *Memory) GetRecord(ctx context.Context, workerID string, date generic.TimePoint) (*attendance.Record, error) {
	t, done := m.read()
	defer done()
	return t.GetRecord(ctx, workerID, date)
}

func (m *Memory) ListRecords(ctx context.Context, filter attendance.RecordFilter) ([]attendance.Record, error) {
	t, done := m.read()
	defer done()
	return t.ListRecords(ctx, filter)
}

func (m *Memory) CountRecordsOn(ctx context.Context, date generic.TimePoint) (int, error) {
	t, done := m.read()
	defer done()
	return t.CountRecordsOn(ctx, date)
}

func (m *Memory) InsertIncident(ctx context.Context, i attendance.Incident) error {
	return m.write(func(t *tables) error { return t.InsertIncident(ctx, i) })
}

func (m *Memory) UpdateIncident(ctx context.Context, i attendance.Incident) error {
	return m.write(func(t *tables) error { return t.UpdateIncident(ctx, i) })
}

func (m *Memory) GetIncident(ctx context.Context, id string) (*attendance.Incident, error) {
	t, done := m.read()
	defer done()
	return t.GetIncident(ctx, id)
}

func (m *Memory) ListIncidents(ctx context.Context, filter attendance.IncidentFilter) ([]attendance.Incident, error) {
	t, done := m.read()
	defer done()
	return t.ListIncidents(ctx, filter)
}

func (m *Memory) AppendAudit(ctx context.Context, e generic.AuditEntry) error {
	return m.write(func(t *tables) error { return t.AppendAudit(ctx, e) })
}

func (m *Memory) QueryAudit(ctx context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	t, done := m.read()
	defer done()
	return t.QueryAudit(ctx, filter)
}

var _ attendance.TxStore = (*Memory)(nil)
