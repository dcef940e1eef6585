package service

import (
	"testing"
	"time"

	"preheat_scheduler/internal/models"
	"preheat_scheduler/internal/timeofday"
)

func TestComputePreheatStart(t *testing.T) {
	t.Parallel()

	cest := time.FixedZone("CEST", 2*3600)
	eight := timeofday.MustParse("08:00")

	relative := models.DefaultScenario(1)
	absolute := models.DefaultScenario(1)
	absolute.PreheatMode = models.PreheatAbsolute
	absolute.HeatStartTime = &eight
	absolute.PreheatMinutes = 999
	tooShort := models.DefaultScenario(1)
	tooShort.PreheatMinutes = 1
	absoluteNoStart := models.DefaultScenario(1)
	absoluteNoStart.PreheatMode = models.PreheatAbsolute
	absoluteNoStart.PreheatMinutes = 30

	tests := []struct {
		name    string
		arrival time.Time
		sc      models.ScenarioConfig
		loc     *time.Location
		want    time.Time
	}{
		{
			name:    "relative subtracts preheat minutes",
			arrival: time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC),
			sc:      relative,
			loc:     time.UTC,
			want:    time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC),
		},
		{
			name:    "relative clamps to five minutes",
			arrival: time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC),
			sc:      tooShort,
			loc:     time.UTC,
			want:    time.Date(2025, 6, 10, 14, 55, 0, 0, time.UTC),
		},
		{
			name:    "absolute ignores preheat minutes",
			arrival: time.Date(2025, 7, 1, 15, 0, 0, 0, time.UTC),
			sc:      absolute,
			loc:     time.UTC,
			want:    time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC),
		},
		{
			name:    "absolute uses the arrival date in the property zone",
			arrival: time.Date(2025, 6, 30, 23, 30, 0, 0, time.UTC), // 01:30 on Jul 1 in CEST
			sc:      absolute,
			loc:     cest,
			want:    time.Date(2025, 7, 1, 6, 0, 0, 0, time.UTC),
		},
		{
			name:    "absolute without heat start falls back to relative",
			arrival: time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC),
			sc:      absoluteNoStart,
			loc:     time.UTC,
			want:    time.Date(2025, 6, 10, 14, 30, 0, 0, time.UTC),
		},
		{
			name:    "nil location means UTC",
			arrival: time.Date(2025, 7, 1, 15, 0, 0, 0, time.UTC),
			sc:      absolute,
			want:    time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ComputePreheatStart(tc.arrival, tc.sc, tc.loc)
			if !got.Equal(tc.want) {
				t.Fatalf("ComputePreheatStart() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestComputePreheatStart_IsPure(t *testing.T) {
	sc := models.DefaultScenario(1)
	arrival := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)
	a := ComputePreheatStart(arrival, sc, time.UTC)
	b := ComputePreheatStart(arrival, sc, time.UTC)
	if !a.Equal(b) {
		t.Fatalf("expected deterministic result, got %v and %v", a, b)
	}
	if sc.PreheatMinutes != 240 {
		t.Fatalf("scenario was modified: %+v", sc)
	}
}
