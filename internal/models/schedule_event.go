package models

import "time"

// Event types written to the execution log.
const (
	EventGenerated = "GENERATED"
	EventApplied   = "APPLIED"
	EventFailed    = "FAILED"
	EventUpdated   = "UPDATED"
	EventDeleted   = "DELETED"
)

// ScheduleEvent is a single execution log entry.
type ScheduleEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	UserID      int       `json:"user_id"`
	EntryID     string    `json:"entry_id,omitempty"`
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
