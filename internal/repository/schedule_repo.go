package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"preheat_scheduler/internal/models"
)

type ScheduleSQLite struct {
	db *sql.DB
}

func NewScheduleSQLite(db *sql.DB) *ScheduleSQLite {
	return &ScheduleSQLite{db: db}
}

var _ ScheduleRepo = (*ScheduleSQLite)(nil)

const (
	scheduleColumns = `id, user_id, user_room_id, home_id, target_room_id, module_id, type, mode,
		temp, start_time, end_time, status, error, created_at, updated_at`

	insertScheduleSQL = `INSERT INTO schedule_entries (` + scheduleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectScheduleSQL = `SELECT ` + scheduleColumns + ` FROM schedule_entries`

	countDueSQL = `SELECT COUNT(*) FROM schedule_entries
		WHERE user_id = ? AND status = 'pending' AND start_time <= ?`

	nextUpcomingSQL = selectScheduleSQL + `
		WHERE user_id = ? AND status = 'pending' AND start_time >= ?
		ORDER BY start_time ASC LIMIT 1`

	deleteScheduleSQL = `DELETE FROM schedule_entries WHERE id = ?`
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (models.ScheduleEntry, error) {
	var (
		e                   models.ScheduleEntry
		moduleID, errMsg    sql.NullString
		temp                sql.NullFloat64
		start, created, upd string
		end                 sql.NullString
	)
	if err := row.Scan(
		&e.ID, &e.UserID, &e.UserRoomID, &e.HomeID, &e.TargetRoomID, &moduleID,
		&e.Type, &e.Mode, &temp, &start, &end, &e.Status, &errMsg, &created, &upd,
	); err != nil {
		return models.ScheduleEntry{}, err
	}

	e.ModuleID = moduleID.String
	e.Error = errMsg.String
	if temp.Valid {
		v := temp.Float64
		e.Temp = &v
	}

	var err error
	if e.StartTime, err = parseTS(start); err != nil {
		return models.ScheduleEntry{}, fmt.Errorf("entry %s: parse start_time: %w", e.ID, err)
	}
	if end.Valid && end.String != "" {
		t, err := parseTS(end.String)
		if err != nil {
			return models.ScheduleEntry{}, fmt.Errorf("entry %s: parse end_time: %w", e.ID, err)
		}
		e.EndTime = &t
	}
	if e.CreatedAt, err = parseTS(created); err != nil {
		return models.ScheduleEntry{}, fmt.Errorf("entry %s: parse created_at: %w", e.ID, err)
	}
	if e.UpdatedAt, err = parseTS(upd); err != nil {
		return models.ScheduleEntry{}, fmt.Errorf("entry %s: parse updated_at: %w", e.ID, err)
	}
	return e, nil
}

// InsertBatch writes all entries in one transaction; any failure rolls the
// whole batch back and is returned to the caller.
func (r *ScheduleSQLite) InsertBatch(ctx context.Context, entries []models.ScheduleEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schedule batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertScheduleSQL)
	if err != nil {
		return fmt.Errorf("prepare schedule insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		var temp sql.NullFloat64
		if e.Temp != nil {
			temp = sql.NullFloat64{Float64: *e.Temp, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			e.ID, e.UserID, e.UserRoomID, e.HomeID, e.TargetRoomID, nullString(e.ModuleID),
			e.Type, e.Mode, temp, formatTS(e.StartTime), nullTS(e.EndTime),
			e.Status, nullString(e.Error), formatTS(e.CreatedAt), formatTS(e.UpdatedAt),
		); err != nil {
			return fmt.Errorf("insert schedule entry %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schedule batch: %w", err)
	}
	return nil
}

func (r *ScheduleSQLite) Get(ctx context.Context, id string) (models.ScheduleEntry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, selectScheduleSQL+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ScheduleEntry{}, ErrNotFound
		}
		return models.ScheduleEntry{}, fmt.Errorf("select schedule entry %s: %w", id, err)
	}
	return e, nil
}

// List returns entries matching f ordered by start_time ascending.
func (r *ScheduleSQLite) List(ctx context.Context, f ScheduleFilter) ([]models.ScheduleEntry, error) {
	var (
		conds []string
		args  []any
	)
	if f.UserID != 0 {
		conds = append(conds, "user_id = ?")
		args = append(args, f.UserID)
	}
	if !f.From.IsZero() {
		conds = append(conds, "start_time >= ?")
		args = append(args, formatTS(f.From))
	}
	if !f.DueBy.IsZero() {
		conds = append(conds, "start_time <= ?")
		args = append(args, formatTS(f.DueBy))
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}

	q := selectScheduleSQL
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY start_time ASC, type ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list schedule entries: %w", err)
	}
	defer rows.Close()

	out := make([]models.ScheduleEntry, 0, 16)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedule entries: %w", err)
	}
	return out, nil
}

// CountDue counts pending entries of the user whose start_time has passed.
func (r *ScheduleSQLite) CountDue(ctx context.Context, userID int, now time.Time) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, countDueSQL, userID, formatTS(now)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count due entries for user %d: %w", userID, err)
	}
	return n, nil
}

// NextUpcoming returns the earliest pending entry at or after now, or nil.
func (r *ScheduleSQLite) NextUpcoming(ctx context.Context, userID int, now time.Time) (*models.ScheduleEntry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, nextUpcomingSQL, userID, formatTS(now)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select next entry for user %d: %w", userID, err)
	}
	return &e, nil
}

// Update applies p to the entry. updated_at is always stamped.
func (r *ScheduleSQLite) Update(ctx context.Context, id string, p models.SchedulePatch) error {
	var (
		sets []string
		args []any
	)
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if p.TargetRoomID != nil {
		set("target_room_id", *p.TargetRoomID)
	}
	if p.ModuleID != nil {
		set("module_id", nullString(*p.ModuleID))
	}
	if p.Type != nil {
		set("type", *p.Type)
	}
	if p.Mode != nil {
		set("mode", *p.Mode)
	}
	switch {
	case p.ClearTemp:
		set("temp", nil)
	case p.Temp != nil:
		set("temp", *p.Temp)
	}
	if p.StartTime != nil {
		set("start_time", formatTS(*p.StartTime))
	}
	switch {
	case p.ClearEndTime:
		set("end_time", nil)
	case p.EndTime != nil:
		set("end_time", formatTS(*p.EndTime))
	}
	if p.Status != nil {
		set("status", *p.Status)
	}
	if p.Error != nil {
		set("error", nullString(*p.Error))
	}

	ts := p.UpdatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	set("updated_at", formatTS(ts))

	q := "UPDATE schedule_entries SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update schedule entry %s: %w", id, err)
	}
	return expectOneRow(res, id)
}

func (r *ScheduleSQLite) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, deleteScheduleSQL, id)
	if err != nil {
		return fmt.Errorf("delete schedule entry %s: %w", id, err)
	}
	return expectOneRow(res, id)
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for entry %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
