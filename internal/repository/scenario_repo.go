package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"preheat_scheduler/internal/models"
	"preheat_scheduler/internal/timeofday"
)

type ScenarioSQLite struct {
	db *sql.DB
}

func NewScenarioSQLite(db *sql.DB) *ScenarioSQLite {
	return &ScenarioSQLite{db: db}
}

var _ ScenarioRepo = (*ScenarioSQLite)(nil)

const (
	upsertScenarioSQL = `
		INSERT INTO scenarios (user_id, preheat_mode, preheat_minutes, heat_start_time, arrival_time,
			arrival_target_temp, eco_time, eco_target_temp, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			preheat_mode=excluded.preheat_mode,
			preheat_minutes=excluded.preheat_minutes,
			heat_start_time=excluded.heat_start_time,
			arrival_time=excluded.arrival_time,
			arrival_target_temp=excluded.arrival_target_temp,
			eco_time=excluded.eco_time,
			eco_target_temp=excluded.eco_target_temp,
			updated_at=excluded.updated_at
	`

	selectScenarioSQL = `
		SELECT user_id, preheat_mode, preheat_minutes, heat_start_time, arrival_time,
			arrival_target_temp, eco_time, eco_target_temp, updated_at
		FROM scenarios WHERE user_id=?
	`
)

// Save upserts the scenario keyed by user id. A zero UpdatedAt is stamped with now.
func (r *ScenarioSQLite) Save(ctx context.Context, cfg models.ScenarioConfig) error {
	ts := cfg.UpdatedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	var heatStart sql.NullString
	if cfg.HeatStartTime != nil {
		heatStart = sql.NullString{String: cfg.HeatStartTime.String(), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, upsertScenarioSQL,
		cfg.UserID,
		cfg.PreheatMode,
		cfg.PreheatMinutes,
		heatStart,
		cfg.ArrivalTime.String(),
		cfg.ArrivalTargetTemp,
		cfg.EcoTime.String(),
		cfg.EcoTargetTemp,
		formatTS(ts),
	)
	if err != nil {
		return fmt.Errorf("upsert scenario for user %d: %w", cfg.UserID, err)
	}
	return nil
}

// Get returns the stored scenario, or (nil, nil) when the user has none yet.
func (r *ScenarioSQLite) Get(ctx context.Context, userID int) (*models.ScenarioConfig, error) {
	var (
		c         models.ScenarioConfig
		heatStart sql.NullString
		updatedAt string
	)
	err := r.db.QueryRowContext(ctx, selectScenarioSQL, userID).Scan(
		&c.UserID,
		&c.PreheatMode,
		&c.PreheatMinutes,
		&heatStart,
		&c.ArrivalTime,
		&c.ArrivalTargetTemp,
		&c.EcoTime,
		&c.EcoTargetTemp,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select scenario for user %d: %w", userID, err)
	}

	if heatStart.Valid && heatStart.String != "" {
		hs, err := timeofday.Parse(heatStart.String)
		if err != nil {
			return nil, fmt.Errorf("scenario for user %d: %w", userID, err)
		}
		c.HeatStartTime = &hs
	}
	if c.UpdatedAt, err = parseTS(updatedAt); err != nil {
		return nil, fmt.Errorf("scenario for user %d: parse updated_at: %w", userID, err)
	}
	return &c, nil
}
