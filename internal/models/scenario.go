package models

import (
	"time"

	"preheat_scheduler/internal/timeofday"
)

// Preheat modes.
const (
	PreheatRelative = "relative"
	PreheatAbsolute = "absolute"
)

// MinPreheatMinutes is the floor applied to relative preheat lead times.
const MinPreheatMinutes = 5

// ScenarioConfig holds a user's preheat timing and target temperatures.
type ScenarioConfig struct {
	UserID            int                  `json:"user_id"`
	PreheatMode       string               `json:"preheat_mode"`                     // relative | absolute
	PreheatMinutes    int                  `json:"preheat_minutes"`                  // used iff relative
	HeatStartTime     *timeofday.TimeOfDay `json:"heat_start_time_of_day,omitempty"` // used iff absolute
	ArrivalTime       timeofday.TimeOfDay  `json:"arrival_time_of_day"`
	ArrivalTargetTemp float64              `json:"arrival_target_temp"` // °C
	EcoTime           timeofday.TimeOfDay  `json:"eco_time_of_day"`
	EcoTargetTemp     float64              `json:"eco_target_temp"` // °C
	UpdatedAt         time.Time            `json:"updated_at"`
}

// DefaultScenario is the only place scenario defaults are defined.
func DefaultScenario(userID int) ScenarioConfig {
	return ScenarioConfig{
		UserID:            userID,
		PreheatMode:       PreheatRelative,
		PreheatMinutes:    240,
		ArrivalTime:       timeofday.MustParse("15:00"),
		ArrivalTargetTemp: 20,
		EcoTime:           timeofday.MustParse("10:00"),
		EcoTargetTemp:     16,
	}
}

// ScenarioPatch is a partial scenario update; nil fields are left untouched.
type ScenarioPatch struct {
	PreheatMode       *string              `json:"preheat_mode,omitempty"`
	PreheatMinutes    *int                 `json:"preheat_minutes,omitempty"`
	HeatStartTime     *timeofday.TimeOfDay `json:"heat_start_time_of_day,omitempty"`
	ClearHeatStart    bool                 `json:"clear_heat_start_time_of_day,omitempty"`
	ArrivalTime       *timeofday.TimeOfDay `json:"arrival_time_of_day,omitempty"`
	ArrivalTargetTemp *float64             `json:"arrival_target_temp,omitempty"`
	EcoTime           *timeofday.TimeOfDay `json:"eco_time_of_day,omitempty"`
	EcoTargetTemp     *float64             `json:"eco_target_temp,omitempty"`
}

// Apply merges p onto c and returns the result.
func (p ScenarioPatch) Apply(c ScenarioConfig) ScenarioConfig {
	if p.PreheatMode != nil {
		c.PreheatMode = *p.PreheatMode
	}
	if p.PreheatMinutes != nil {
		c.PreheatMinutes = *p.PreheatMinutes
	}
	if p.ClearHeatStart {
		c.HeatStartTime = nil
	}
	if p.HeatStartTime != nil {
		hs := *p.HeatStartTime
		c.HeatStartTime = &hs
	}
	if p.ArrivalTime != nil {
		c.ArrivalTime = *p.ArrivalTime
	}
	if p.ArrivalTargetTemp != nil {
		c.ArrivalTargetTemp = *p.ArrivalTargetTemp
	}
	if p.EcoTime != nil {
		c.EcoTime = *p.EcoTime
	}
	if p.EcoTargetTemp != nil {
		c.EcoTargetTemp = *p.EcoTargetTemp
	}
	return c
}
