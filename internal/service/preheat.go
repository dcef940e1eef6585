package service

import (
	"time"

	"preheat_scheduler/internal/models"
)

// ComputePreheatStart returns when heating should begin for a guest arriving
// at arrival. Absolute mode uses the heat start time of day on the arrival's
// calendar date in loc; relative mode (and absolute mode without a heat start
// time) leads arrival by at least MinPreheatMinutes.
func ComputePreheatStart(arrival time.Time, sc models.ScenarioConfig, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	if sc.PreheatMode == models.PreheatAbsolute && sc.HeatStartTime != nil {
		return sc.HeatStartTime.Combine(arrival.In(loc), loc)
	}
	minutes := sc.PreheatMinutes
	if minutes < models.MinPreheatMinutes {
		minutes = models.MinPreheatMinutes
	}
	return arrival.Add(-time.Duration(minutes) * time.Minute).UTC()
}
