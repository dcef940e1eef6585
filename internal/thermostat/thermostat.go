// Package thermostat is the boundary to the physical thermostat control API.
package thermostat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"preheat_scheduler/internal/config"
	"preheat_scheduler/internal/logger"
	"preheat_scheduler/internal/models"
)

// Command is an absolute setpoint for one room. Mode manual carries Temp and
// ExpiresAt; mode home carries neither.
type Command struct {
	SiteID    string     `json:"site_id"`
	RoomID    string     `json:"room_id"`
	Mode      string     `json:"mode"`
	Temp      *float64   `json:"temp,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Adapter applies commands to rooms. Apply must be idempotent: sending the
// same command twice leaves the device in the same state as sending it once.
type Adapter interface {
	Apply(ctx context.Context, cmd Command) error
	Rooms(ctx context.Context, homeID string) ([]models.SiteRoom, error)
}

var (
	ErrInvalidCommand = errors.New("invalid thermostat command")
	ErrUnknownRoom    = errors.New("unknown room")
)

// Validate checks the mode/temp/expiry combination.
func (c Command) Validate() error {
	if c.SiteID == "" || c.RoomID == "" {
		return fmt.Errorf("%w: site_id and room_id are required", ErrInvalidCommand)
	}
	switch c.Mode {
	case models.ModeManual:
		if c.Temp == nil {
			return fmt.Errorf("%w: manual mode requires temp", ErrInvalidCommand)
		}
		if c.ExpiresAt == nil {
			return fmt.Errorf("%w: manual mode requires expires_at", ErrInvalidCommand)
		}
	case models.ModeHome:
		if c.Temp != nil || c.ExpiresAt != nil {
			return fmt.Errorf("%w: home mode takes no temp or expiry", ErrInvalidCommand)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidCommand, c.Mode)
	}
	return nil
}

// CommandFor builds the command an entry stands for: heat holds a manual
// setpoint until its end time, stop reverts the room to its home schedule.
func CommandFor(e models.ScheduleEntry) (Command, error) {
	cmd := Command{SiteID: e.HomeID, RoomID: e.TargetRoomID}
	switch e.Type {
	case models.EntryHeat:
		cmd.Mode = models.ModeManual
		cmd.Temp = e.Temp
		cmd.ExpiresAt = e.EndTime
	case models.EntryStop:
		cmd.Mode = models.ModeHome
	default:
		return Command{}, fmt.Errorf("%w: unknown entry type %q", ErrInvalidCommand, e.Type)
	}
	return cmd, cmd.Validate()
}

// New builds the configured driver. The returned func releases driver
// resources and is always safe to call.
func New(cfg config.ThermostatConfig, log *logger.Logger) (Adapter, func(), error) {
	log = log.With("component", "thermostat", "driver", cfg.Driver)
	switch cfg.Driver {
	case config.DriverHTTP:
		return NewHTTPAdapter(cfg.HTTP, log), func() {}, nil
	case config.DriverMQTT:
		a, err := DialMQTT(cfg.MQTT, cfg.Rooms, log)
		if err != nil {
			return nil, func() {}, err
		}
		return a, a.Close, nil
	case config.DriverSimulated, "":
		return NewSimulated(cfg.Rooms, log), func() {}, nil
	default:
		return nil, func() {}, fmt.Errorf("unknown thermostat driver %q", cfg.Driver)
	}
}

func roomsFromConfig(rooms []config.Room, homeID string) []models.SiteRoom {
	out := make([]models.SiteRoom, 0, len(rooms))
	for _, r := range rooms {
		if r.HomeID != homeID {
			continue
		}
		out = append(out, models.SiteRoom{HomeID: r.HomeID, ID: r.ID, Name: r.Name})
	}
	return out
}
