package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"preheat_scheduler/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
)

var entryColumns = []string{
	"id", "user_id", "user_room_id", "home_id", "target_room_id", "module_id", "type", "mode",
	"temp", "start_time", "end_time", "status", "error", "created_at", "updated_at",
}

func newScheduleMock(t *testing.T) (*ScheduleSQLite, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet sqlmock expectations: %v", err)
		}
		_ = db.Close()
	})
	return NewScheduleSQLite(db), mock
}

func samplePair() []models.ScheduleEntry {
	start := time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC)
	eco := time.Date(2025, 6, 13, 10, 0, 0, 0, time.UTC)
	created := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	temp := 20.0
	return []models.ScheduleEntry{
		{
			ID: "heat-1", UserID: 3, UserRoomID: "ur-1", HomeID: "h1", TargetRoomID: "r1",
			Type: models.EntryHeat, Mode: models.ModeManual, Temp: &temp, StartTime: start, EndTime: &eco,
			Status: models.StatusPending, CreatedAt: created, UpdatedAt: created,
		},
		{
			ID: "stop-1", UserID: 3, UserRoomID: "ur-1", HomeID: "h1", TargetRoomID: "r1", ModuleID: "m9",
			Type: models.EntryStop, Mode: models.ModeHome, StartTime: eco,
			Status: models.StatusPending, CreatedAt: created, UpdatedAt: created,
		},
	}
}

func TestScheduleSQLite_InsertBatch_CommitsAll(t *testing.T) {
	repo, mock := newScheduleMock(t)
	pair := samplePair()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO schedule_entries"))
	prep.ExpectExec().
		WithArgs("heat-1", 3, "ur-1", "h1", "r1", nil, "heat", "manual", 20.0,
			"2025-06-10 11:00:00.000000000", "2025-06-13 10:00:00.000000000", "pending", nil,
			"2025-06-01 09:00:00.000000000", "2025-06-01 09:00:00.000000000").
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs("stop-1", 3, "ur-1", "h1", "r1", "m9", "stop", "home", nil,
			"2025-06-13 10:00:00.000000000", nil, "pending", nil,
			"2025-06-01 09:00:00.000000000", "2025-06-01 09:00:00.000000000").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.InsertBatch(context.Background(), pair); err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}
}

func TestScheduleSQLite_InsertBatch_RollsBackOnFailure(t *testing.T) {
	repo, mock := newScheduleMock(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO schedule_entries"))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.InsertBatch(context.Background(), samplePair())
	if err == nil {
		t.Fatalf("expected error")
	}
	if !regexp.MustCompile(`insert schedule entry stop-1: disk full`).MatchString(err.Error()) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestScheduleSQLite_InsertBatch_EmptyIsNoop(t *testing.T) {
	repo, _ := newScheduleMock(t)
	if err := repo.InsertBatch(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestScheduleSQLite_Get(t *testing.T) {
	repo, mock := newScheduleMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM schedule_entries WHERE id = ?")).
		WithArgs("heat-1").
		WillReturnRows(sqlmock.NewRows(entryColumns).AddRow(
			"heat-1", 3, "ur-1", "h1", "r1", nil, "heat", "manual", 21.5,
			"2025-06-10 11:00:00.000000000", "2025-06-13 10:00:00.000000000", "failed", "timeout",
			"2025-06-01 09:00:00.000000000", "2025-06-02 09:00:00.000000000"))

	e, err := repo.Get(context.Background(), "heat-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e.Temp == nil || *e.Temp != 21.5 {
		t.Fatalf("temp = %v, want 21.5", e.Temp)
	}
	if e.EndTime == nil || !e.EndTime.Equal(time.Date(2025, 6, 13, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("end_time = %v", e.EndTime)
	}
	if e.Status != models.StatusFailed || e.Error != "timeout" {
		t.Fatalf("status/error = %s/%s", e.Status, e.Error)
	}
	if e.ModuleID != "" {
		t.Fatalf("expected empty module id, got %q", e.ModuleID)
	}

	mock.ExpectQuery(regexp.QuoteMeta("FROM schedule_entries WHERE id = ?")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(entryColumns))
	if _, err := repo.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestScheduleSQLite_List_BuildsFilter(t *testing.T) {
	repo, mock := newScheduleMock(t)
	now := time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(
		"WHERE user_id = ? AND start_time <= ? AND status = ? ORDER BY start_time ASC")).
		WithArgs(3, "2025-06-10 11:00:00.000000000", "pending").
		WillReturnRows(sqlmock.NewRows(entryColumns).AddRow(
			"stop-1", 3, "ur-1", "h1", "r1", "m9", "stop", "home", nil,
			"2025-06-10 10:00:00.000000000", nil, "pending", nil,
			"2025-06-01 09:00:00.000000000", "2025-06-01 09:00:00.000000000"))

	got, err := repo.List(context.Background(), ScheduleFilter{UserID: 3, DueBy: now, Status: models.StatusPending})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].Temp != nil || got[0].EndTime != nil || got[0].ModuleID != "m9" {
		t.Fatalf("unexpected entries: %+v", got)
	}
}

func TestScheduleSQLite_List_AllUsersNoConditions(t *testing.T) {
	repo, mock := newScheduleMock(t)

	mock.ExpectQuery(`(?s)SELECT .* FROM schedule_entries ORDER BY start_time ASC`).
		WillReturnRows(sqlmock.NewRows(entryColumns))

	got, err := repo.List(context.Background(), ScheduleFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no entries, got %d", len(got))
	}
}

func TestScheduleSQLite_CountDueAndNextUpcoming(t *testing.T) {
	repo, mock := newScheduleMock(t)
	now := time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM schedule_entries")).
		WithArgs(3, "2025-06-10 11:00:00.000000000").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(2))

	n, err := repo.CountDue(context.Background(), 3, now)
	if err != nil || n != 2 {
		t.Fatalf("CountDue = %d, %v", n, err)
	}

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY start_time ASC LIMIT 1")).
		WithArgs(3, "2025-06-10 11:00:00.000000000").
		WillReturnRows(sqlmock.NewRows(entryColumns))

	next, err := repo.NextUpcoming(context.Background(), 3, now)
	if err != nil {
		t.Fatalf("NextUpcoming: %v", err)
	}
	if next != nil {
		t.Fatalf("expected nil, got %+v", next)
	}
}

func TestScheduleSQLite_Update(t *testing.T) {
	repo, mock := newScheduleMock(t)
	at := time.Date(2025, 6, 10, 11, 0, 5, 0, time.UTC)
	status := models.StatusApplied
	empty := ""

	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE schedule_entries SET temp = ?, status = ?, error = ?, updated_at = ? WHERE id = ?")).
		WithArgs(nil, "applied", nil, "2025-06-10 11:00:05.000000000", "heat-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "heat-1", models.SchedulePatch{
		ClearTemp: true, Status: &status, Error: &empty, UpdatedAt: at,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedule_entries SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.Update(context.Background(), "gone", models.SchedulePatch{Status: &status}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestScheduleSQLite_Delete(t *testing.T) {
	repo, mock := newScheduleMock(t)

	mock.ExpectExec(regexp.QuoteMeta(deleteScheduleSQL)).
		WithArgs("heat-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.Delete(context.Background(), "heat-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	mock.ExpectExec(regexp.QuoteMeta(deleteScheduleSQL)).
		WithArgs("heat-1").
		WillReturnError(errors.New("locked"))
	err := repo.Delete(context.Background(), "heat-1")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected store error, got %v", err)
	}
}
