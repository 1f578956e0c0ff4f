package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/store/memory"
)

func TestMemory_DuplicateWorkerDay(t *testing.T) {
	ctx := context.Background()
	m := memory.New()
	date := generic.MustParseDate("2024-03-04")

	require.NoError(t, m.InsertRecord(ctx, attendance.Record{ID: "r-1", WorkerID: "w-1", Date: date}))
	err := m.InsertRecord(ctx, attendance.Record{ID: "r-2", WorkerID: "w-1", Date: date})
	assert.True(t, errors.Is(err, generic.ErrDuplicateRecord), "got %v", err)

	// Same date, different worker is fine
	assert.NoError(t, m.InsertRecord(ctx, attendance.Record{ID: "r-3", WorkerID: "w-2", Date: date}))
}

func TestMemory_WithTx_RollsBack(t *testing.T) {
	// GIVEN: A transaction that writes two rows then fails
	// WHEN: WithTx returns
	// THEN: Neither row is visible

	ctx := context.Background()
	m := memory.New()
	boom := errors.New("boom")

	err := m.WithTx(ctx, func(tx attendance.Store) error {
		if err := tx.SaveNonWorkingDay(ctx, attendance.NonWorkingDay{Date: generic.MustParseDate("2024-12-25"), IsNonWorking: true}); err != nil {
			return err
		}
		if err := tx.InsertRecord(ctx, attendance.Record{ID: "r-1", WorkerID: "w-1", Date: generic.MustParseDate("2024-12-24")}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	day, err := m.GetNonWorkingDay(ctx, generic.MustParseDate("2024-12-25"))
	require.NoError(t, err)
	assert.Nil(t, day)

	n, err := m.CountRecordsOn(ctx, generic.MustParseDate("2024-12-24"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemory_OneOpenAssignment(t *testing.T) {
	ctx := context.Background()
	m := memory.New()
	require.NoError(t, m.SaveShift(ctx, attendance.WorkShift{ID: "s-1", Label: "Morning"}))

	require.NoError(t, m.InsertAssignment(ctx, attendance.ScheduleAssignment{ID: "a-1", WorkerID: "w-1", ShiftID: "s-1", ValidFrom: generic.MustParseDate("2024-01-01")}))
	err := m.InsertAssignment(ctx, attendance.ScheduleAssignment{ID: "a-2", WorkerID: "w-1", ShiftID: "s-1", ValidFrom: generic.MustParseDate("2024-02-01")})
	assert.True(t, errors.Is(err, generic.ErrConflict), "got %v", err)

	err = m.DeleteShift(ctx, "s-1")
	assert.True(t, errors.Is(err, generic.ErrConflict), "got %v", err)
}

func TestMemory_ListRecordsOrdering(t *testing.T) {
	ctx := context.Background()
	m := memory.New()
	for _, r := range []attendance.Record{
		{ID: "3", WorkerID: "b", Date: generic.MustParseDate("2024-03-02")},
		{ID: "1", WorkerID: "b", Date: generic.MustParseDate("2024-03-01")},
		{ID: "2", WorkerID: "a", Date: generic.MustParseDate("2024-03-02")},
		{ID: "4", WorkerID: "a", Date: generic.MustParseDate("2024-04-01")},
	} {
		require.NoError(t, m.InsertRecord(ctx, r))
	}

	march := generic.Period{Start: generic.MustParseDate("2024-03-01"), End: generic.MustParseDate("2024-03-31")}
	got, err := m.ListRecords(ctx, attendance.RecordFilter{Period: &march})
	require.NoError(t, err)

	var ids []string
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"1", "2", "3"}, ids)
}
