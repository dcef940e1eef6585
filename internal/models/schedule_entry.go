package models

import "time"

// Entry types.
const (
	EntryHeat = "heat"
	EntryStop = "stop"
)

// Thermostat modes carried by an entry.
const (
	ModeManual = "manual"
	ModeHome   = "home"
)

// Entry lifecycle. pending moves to applied or failed, never back.
const (
	StatusPending = "pending"
	StatusApplied = "applied"
	StatusFailed  = "failed"
)

// ScheduleEntry is one time-stamped thermostat command.
type ScheduleEntry struct {
	ID           string     `json:"id"`
	UserID       int        `json:"user_id"`
	UserRoomID   string     `json:"user_room_id"`   // logical room
	HomeID       string     `json:"home_id"`        // device site
	TargetRoomID string     `json:"target_room_id"` // device-addressable room
	ModuleID     string     `json:"module_id,omitempty"`
	Type         string     `json:"type"` // heat | stop
	Mode         string     `json:"mode"` // manual | home
	Temp         *float64   `json:"temp"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time"`
	Status       string     `json:"status"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// SchedulePatch is an arbitrary partial update. It does not re-check the
// heat/stop pairing of generated entries.
type SchedulePatch struct {
	TargetRoomID *string    `json:"target_room_id,omitempty"`
	ModuleID     *string    `json:"module_id,omitempty"`
	Type         *string    `json:"type,omitempty"`
	Mode         *string    `json:"mode,omitempty"`
	Temp         *float64   `json:"temp,omitempty"`
	ClearTemp    bool       `json:"clear_temp,omitempty"`
	StartTime    *time.Time `json:"start_time,omitempty"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	ClearEndTime bool       `json:"clear_end_time,omitempty"`
	Status       *string    `json:"status,omitempty"`
	Error        *string    `json:"error,omitempty"`
	UpdatedAt    time.Time  `json:"-"`
}

// IsEmpty reports whether the patch carries no changes.
func (p SchedulePatch) IsEmpty() bool {
	return p.TargetRoomID == nil && p.ModuleID == nil && p.Type == nil && p.Mode == nil &&
		p.Temp == nil && !p.ClearTemp && p.StartTime == nil && p.EndTime == nil &&
		!p.ClearEndTime && p.Status == nil && p.Error == nil
}

// SiteRoom is a room known to the thermostat vendor for a home.
type SiteRoom struct {
	HomeID string `json:"home_id"`
	ID     string `json:"id"`
	Name   string `json:"name"`
}
