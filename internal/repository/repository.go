package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"preheat_scheduler/internal/models"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("repository: not found")

type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// ScenarioRepo stores one scenario per user.
type ScenarioRepo interface {
	Get(ctx context.Context, userID int) (*models.ScenarioConfig, error)
	Save(ctx context.Context, cfg models.ScenarioConfig) error
}

// ScheduleFilter narrows List. Zero values disable a condition; UserID 0
// selects every user.
type ScheduleFilter struct {
	UserID int
	From   time.Time // start_time >= From
	DueBy  time.Time // start_time <= DueBy
	Status string
}

// ScheduleRepo is the durable store of schedule entries.
type ScheduleRepo interface {
	InsertBatch(ctx context.Context, entries []models.ScheduleEntry) error
	Get(ctx context.Context, id string) (models.ScheduleEntry, error)
	List(ctx context.Context, f ScheduleFilter) ([]models.ScheduleEntry, error)
	CountDue(ctx context.Context, userID int, now time.Time) (int, error)
	NextUpcoming(ctx context.Context, userID int, now time.Time) (*models.ScheduleEntry, error)
	Update(ctx context.Context, id string, p models.SchedulePatch) error
	Delete(ctx context.Context, id string) error
}

// EventFilter narrows the execution log. Zero values disable a condition.
type EventFilter struct {
	From   time.Time
	To     time.Time
	Type   string
	UserID int
}

type EventRepo interface {
	Append(ctx context.Context, e models.ScheduleEvent) error
	List(ctx context.Context, f EventFilter) ([]models.ScheduleEvent, error)
}

type Repository struct {
	Scenarios ScenarioRepo
	Schedules ScheduleRepo
	Events    EventRepo
	Auth      Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Scenarios: NewScenarioSQLite(db),
		Schedules: NewScheduleSQLite(db),
		Events:    NewEventSQLite(db),
		Auth:      NewUserRepository(db),
	}
}

// Timestamps are stored as fixed-width UTC text so that string comparison
// in SQL matches chronological order.
const tsLayout = "2006-01-02 15:04:05.000000000"

func formatTS(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTS(s string) (time.Time, error) {
	return time.ParseInLocation(tsLayout, s, time.UTC)
}

func nullTS(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTS(*t), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
