package thermostat

import (
	"context"
	"testing"
	"time"

	"preheat_scheduler/internal/config"
	"preheat_scheduler/internal/logger"
	"preheat_scheduler/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSimulated(now time.Time) *Simulated {
	s := NewSimulated([]config.Room{{HomeID: "h", ID: "r", Name: "Loft"}}, logger.Nop())
	s.now = func() time.Time { return now }
	return s
}

func TestSimulated_ApplyIsIdempotent(t *testing.T) {
	now := time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC)
	s := newTestSimulated(now)
	exp := now.Add(72 * time.Hour)
	heat := Command{SiteID: "h", RoomID: "r", Mode: models.ModeManual, Temp: f64(20), ExpiresAt: &exp}

	require.NoError(t, s.Apply(context.Background(), heat))
	require.NoError(t, s.Apply(context.Background(), heat))
	st, ok := s.State("h", "r")
	require.True(t, ok)
	assert.Equal(t, 1, st.Changes)
	assert.Equal(t, 20.0, st.SetpointC)

	stop := Command{SiteID: "h", RoomID: "r", Mode: models.ModeHome}
	require.NoError(t, s.Apply(context.Background(), stop))
	require.NoError(t, s.Apply(context.Background(), stop))
	st, _ = s.State("h", "r")
	assert.Equal(t, 2, st.Changes)
	assert.Equal(t, models.ModeHome, st.Mode)
	assert.Nil(t, st.ExpiresAt)
}

func TestSimulated_ApplyKeepsDriftSinceLastStep(t *testing.T) {
	now := time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC)
	s := newTestSimulated(now)
	exp := now.Add(72 * time.Hour)
	require.NoError(t, s.Apply(context.Background(), Command{SiteID: "h", RoomID: "r", Mode: models.ModeManual, Temp: f64(20), ExpiresAt: &exp}))

	later := now.Add(10 * time.Minute)
	s.now = func() time.Time { return later }
	require.NoError(t, s.Apply(context.Background(), Command{SiteID: "h", RoomID: "r", Mode: models.ModeHome}))

	st, _ := s.State("h", "r")
	assert.Equal(t, models.ModeHome, st.Mode)
	assert.InDelta(t, AmbientC+RampUpCPerMin*10, st.CurrentTempC, 1e-9)
	assert.Equal(t, later, st.UpdatedAt)
}

func TestSimulated_UnknownRoom(t *testing.T) {
	s := newTestSimulated(time.Now())
	err := s.Apply(context.Background(), Command{SiteID: "h", RoomID: "nope", Mode: models.ModeHome})
	assert.ErrorIs(t, err, ErrUnknownRoom)
}

func TestSimulated_StepRevertsExpiredSetpoint(t *testing.T) {
	now := time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC)
	s := newTestSimulated(now)
	exp := now.Add(30 * time.Minute)
	require.NoError(t, s.Apply(context.Background(), Command{SiteID: "h", RoomID: "r", Mode: models.ModeManual, Temp: f64(20), ExpiresAt: &exp}))

	s.Step(now.Add(10 * time.Minute))
	st, _ := s.State("h", "r")
	assert.Equal(t, models.ModeManual, st.Mode)
	assert.InDelta(t, AmbientC+RampUpCPerMin*10, st.CurrentTempC, 1e-9)

	s.Step(exp)
	st, _ = s.State("h", "r")
	assert.Equal(t, models.ModeHome, st.Mode)
	assert.Equal(t, HomeSetpointC, st.SetpointC)
	assert.Nil(t, st.ExpiresAt)
}

func TestApproach_ClampsAtTarget(t *testing.T) {
	assert.Equal(t, 20.0, approach(19.99, 20, 60))
	assert.Equal(t, 17.0, approach(17.01, 17, 60))
	assert.Equal(t, 18.0, approach(18, 18, 5))
	assert.InDelta(t, 19.5, approach(20, 10, 10), 1e-9)
}

func TestSimulated_RunStopsOnCancel(t *testing.T) {
	s := newTestSimulated(time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
