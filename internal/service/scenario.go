package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"preheat_scheduler/internal/logger"
	"preheat_scheduler/internal/models"
	"preheat_scheduler/internal/repository"
)

// Accepted setpoint range in °C.
const (
	MinTempC = 5.0
	MaxTempC = 30.0
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = repository.ErrNotFound
)

type ScenarioService struct {
	repo repository.ScenarioRepo
	now  func() time.Time
	log  *logger.Logger
}

func NewScenarioService(repo repository.ScenarioRepo, log *logger.Logger) *ScenarioService {
	return &ScenarioService{repo: repo, now: time.Now, log: log}
}

// Get returns the stored scenario, or the defaults when none was saved.
func (s *ScenarioService) Get(ctx context.Context, userID int) (models.ScenarioConfig, error) {
	stored, err := s.repo.Get(ctx, userID)
	if err != nil {
		return models.ScenarioConfig{}, err
	}
	if stored == nil {
		return models.DefaultScenario(userID), nil
	}
	return *stored, nil
}

// Save merges patch onto the current scenario and upserts it. Concurrent
// saves of the same input converge; the last write wins.
func (s *ScenarioService) Save(ctx context.Context, userID int, patch models.ScenarioPatch) (models.ScenarioConfig, error) {
	cur, err := s.Get(ctx, userID)
	if err != nil {
		return models.ScenarioConfig{}, err
	}

	next := patch.Apply(cur)
	next.UserID = userID
	if err := ValidateScenario(next); err != nil {
		return models.ScenarioConfig{}, err
	}
	next.UpdatedAt = s.now().UTC()

	if err := s.repo.Save(ctx, next); err != nil {
		return models.ScenarioConfig{}, err
	}

	if next.PreheatMode == models.PreheatAbsolute && next.ArrivalTime.Before(*next.HeatStartTime) {
		s.log.Warnw("scenario_heat_starts_after_arrival",
			"user_id", userID,
			"heat_start_time_of_day", next.HeatStartTime.String(),
			"arrival_time_of_day", next.ArrivalTime.String(),
		)
	}
	return next, nil
}

func ValidateScenario(c models.ScenarioConfig) error {
	switch c.PreheatMode {
	case models.PreheatRelative:
	case models.PreheatAbsolute:
		if c.HeatStartTime == nil {
			return fmt.Errorf("%w: absolute mode requires heat_start_time_of_day", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: preheat_mode must be relative or absolute, got %q", ErrValidation, c.PreheatMode)
	}
	if c.PreheatMinutes < models.MinPreheatMinutes {
		return fmt.Errorf("%w: preheat_minutes must be >= %d", ErrValidation, models.MinPreheatMinutes)
	}
	if err := validateTemp("arrival_target_temp", c.ArrivalTargetTemp); err != nil {
		return err
	}
	return validateTemp("eco_target_temp", c.EcoTargetTemp)
}

func validateTemp(field string, v float64) error {
	if v < MinTempC || v > MaxTempC {
		return fmt.Errorf("%w: %s must be within [%.0f, %.0f] °C, got %.1f", ErrValidation, field, MinTempC, MaxTempC, v)
	}
	return nil
}
