package thermostat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"preheat_scheduler/internal/config"
	"preheat_scheduler/internal/logger"
	"preheat_scheduler/internal/models"
)

// ----------- Simulation constants -----------
const (
	HomeSetpointC   = 17.0 // setpoint followed in home mode
	AmbientC        = 12.0 // unheated room temperature
	RampUpCPerMin   = 0.1  // °C per minute while below setpoint
	RampDownCPerMin = 0.05 // °C per minute while above setpoint
)

// RoomState is the simulated state of one room.
type RoomState struct {
	Mode         string     `json:"mode"`
	SetpointC    float64    `json:"setpoint_c"`
	CurrentTempC float64    `json:"current_temp_c"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Changes      int        `json:"changes"` // applied commands that changed state
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Simulated keeps an in-process model of the configured rooms. Manual
// setpoints revert to home once they expire, like a real thermostat.
type Simulated struct {
	mu     sync.Mutex
	rooms  []config.Room
	states map[string]*RoomState // key: home_id/room_id
	now    func() time.Time
	log    *logger.Logger
}

func NewSimulated(rooms []config.Room, log *logger.Logger) *Simulated {
	return &Simulated{
		rooms:  rooms,
		states: make(map[string]*RoomState),
		now:    time.Now,
		log:    log,
	}
}

func roomKey(homeID, roomID string) string { return homeID + "/" + roomID }

func (s *Simulated) known(homeID, roomID string) bool {
	if len(s.rooms) == 0 {
		return true
	}
	for _, r := range s.rooms {
		if r.HomeID == homeID && r.ID == roomID {
			return true
		}
	}
	return false
}

func (s *Simulated) stateLocked(key string, now time.Time) *RoomState {
	st, ok := s.states[key]
	if !ok {
		st = &RoomState{Mode: models.ModeHome, SetpointC: HomeSetpointC, CurrentTempC: AmbientC, UpdatedAt: now}
		s.states[key] = st
	}
	return st
}

// Apply sets the room's absolute state. Re-applying the current state is a no-op.
func (s *Simulated) Apply(_ context.Context, cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	if !s.known(cmd.SiteID, cmd.RoomID) {
		return fmt.Errorf("%w: %s/%s", ErrUnknownRoom, cmd.SiteID, cmd.RoomID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	key := roomKey(cmd.SiteID, cmd.RoomID)
	st := s.stateLocked(key, now)
	s.advanceLocked(key, st, now)

	want := RoomState{Mode: cmd.Mode, SetpointC: HomeSetpointC}
	if cmd.Mode == models.ModeManual {
		want.SetpointC = *cmd.Temp
		exp := cmd.ExpiresAt.UTC()
		want.ExpiresAt = &exp
	}
	if sameTarget(*st, want) {
		return nil
	}

	st.Mode = want.Mode
	st.SetpointC = want.SetpointC
	st.ExpiresAt = want.ExpiresAt
	st.Changes++
	st.UpdatedAt = now
	s.log.Infow("simulated_setpoint_changed", "home_id", cmd.SiteID, "room_id", cmd.RoomID,
		"mode", st.Mode, "setpoint_c", st.SetpointC)
	return nil
}

func sameTarget(a, b RoomState) bool {
	if a.Mode != b.Mode || a.SetpointC != b.SetpointC {
		return false
	}
	if (a.ExpiresAt == nil) != (b.ExpiresAt == nil) {
		return false
	}
	return a.ExpiresAt == nil || a.ExpiresAt.Equal(*b.ExpiresAt)
}

func (s *Simulated) Rooms(_ context.Context, homeID string) ([]models.SiteRoom, error) {
	return roomsFromConfig(s.rooms, homeID), nil
}

// State returns a copy of the room's state and whether it was ever touched.
func (s *Simulated) State(homeID, roomID string) (RoomState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[roomKey(homeID, roomID)]
	if !ok {
		return RoomState{}, false
	}
	return *st, true
}

// Run ticks at the given interval until ctx is canceled.
func (s *Simulated) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Step(s.now())
		}
	}
}

// Step advances every room to now: expired manual setpoints revert to home
// and temperatures drift toward the setpoint.
func (s *Simulated) Step(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, st := range s.states {
		s.advanceLocked(key, st, now)
	}
}

// advanceLocked brings one room forward to now under the current setpoint.
func (s *Simulated) advanceLocked(key string, st *RoomState, now time.Time) {
	elapsed := now.Sub(st.UpdatedAt).Minutes()
	if elapsed <= 0 {
		return
	}
	if st.Mode == models.ModeManual && st.ExpiresAt != nil && !now.Before(*st.ExpiresAt) {
		st.Mode = models.ModeHome
		st.SetpointC = HomeSetpointC
		st.ExpiresAt = nil
		s.log.Infow("simulated_setpoint_expired", "room", key)
	}
	st.CurrentTempC = approach(st.CurrentTempC, st.SetpointC, elapsed)
	st.UpdatedAt = now
}

// approach moves cur toward target at the ramp rates, without overshoot.
func approach(cur, target, minutes float64) float64 {
	switch {
	case cur < target:
		return minFloat(cur+RampUpCPerMin*minutes, target)
	case cur > target:
		return maxFloat(cur-RampDownCPerMin*minutes, target)
	default:
		return cur
	}
}

func minFloat(a, b float64) float64 {
	if a <= b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a >= b {
		return a
	}
	return b
}
