package service

import (
	"context"
	"time"

	"preheat_scheduler/internal/logger"
	"preheat_scheduler/internal/models"
	"preheat_scheduler/internal/repository"
	"preheat_scheduler/internal/thermostat"
)

type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Scenario exposes the per-user preheat configuration.
type Scenario interface {
	Get(ctx context.Context, userID int) (models.ScenarioConfig, error)
	Save(ctx context.Context, userID int, patch models.ScenarioPatch) (models.ScenarioConfig, error)
}

// Generator creates schedule entries from reservations.
type Generator interface {
	GenerateBulk(ctx context.Context, userID int, reservations []models.Reservation, m RoomMapping) (int, error)
	GenerateFromFeed(ctx context.Context, userID int, m RoomMapping) (int, error)
	GenerateManualTest(ctx context.Context, userID int, in ManualTest) ([]models.ScheduleEntry, error)
	Rooms(ctx context.Context, homeID string) ([]models.SiteRoom, error)
}

// Schedules exposes listing and manual edits of stored entries.
type Schedules interface {
	List(ctx context.Context, userID int, from time.Time) ([]models.ScheduleEntry, error)
	Update(ctx context.Context, userID int, id string, p models.SchedulePatch) (models.ScheduleEntry, error)
	Delete(ctx context.Context, userID int, id string) error
}

// Executor runs due entries through the thermostat.
// Stop Run via context cancellation in main() for graceful shutdown.
type Executor interface {
	RunOnce(ctx context.Context, scope RunScope) (RunResult, error)
	ApplyNow(ctx context.Context, userID int, id string) (models.ScheduleEntry, error)
	Run(ctx context.Context, tick time.Duration)
}

// Status exposes read-only due/next information.
type Status interface {
	GetStatus(ctx context.Context, userID int) (ScheduleStatus, error)
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.ScheduleEvent, error)
}

// Service aggregates all sub-services.
type Service struct {
	Authorization
	Scenario
	Generator
	Schedules
	Executor
	Status
	EventLog
}

// Deps are the collaborators outside the repository layer.
type Deps struct {
	Adapter    thermostat.Adapter
	Feed       ReservationSource
	Location   *time.Location
	SigningKey string
	TokenTTL   time.Duration
	Logger     *logger.Logger
}

// NewService wires the repository layer and external collaborators into concrete services.
func NewService(repos *repository.Repository, d Deps) *Service {
	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}
	scenarios := NewScenarioService(repos.Scenarios, log.With("component", "scenario"))
	return &Service{
		Authorization: NewAuthService(repos.Auth, d.SigningKey, d.TokenTTL),
		Scenario:      scenarios,
		Generator:     NewGeneratorService(scenarios, repos.Schedules, repos.Events, d.Adapter, d.Feed, d.Location, log.With("component", "generator")),
		Schedules:     NewScheduleService(repos.Schedules, repos.Events, log.With("component", "schedules")),
		Executor:      NewExecutorService(repos.Schedules, repos.Events, d.Adapter, log.With("component", "executor")),
		Status:        NewStatusService(repos.Schedules),
		EventLog:      NewEventLogService(repos.Events),
	}
}
