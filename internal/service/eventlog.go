package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"preheat_scheduler/internal/logger"
	"preheat_scheduler/internal/models"
	"preheat_scheduler/internal/repository"
)

// LogFilter supports history filtering by time range, type and user.
type LogFilter struct {
	From   time.Time // inclusive; zero means no lower bound
	To     time.Time // inclusive; zero means no upper bound
	Type   string    // "", GENERATED, APPLIED, FAILED, UPDATED, DELETED
	UserID int       // 0 means every user
}

type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

var (
	errInvalidTimeRange = errors.New("invalid time range: From must be <= To")
)

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeEventType trims spaces and uppercases the event type filter.
func normalizeEventType(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

// normalizeAndValidateFilter prepares query parameters and validates the time range.
func normalizeAndValidateFilter(f LogFilter) (repository.EventFilter, error) {
	from := normalizeToUTC(f.From)
	to := normalizeToUTC(f.To)

	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return repository.EventFilter{}, errInvalidTimeRange
	}

	return repository.EventFilter{From: from, To: to, Type: normalizeEventType(f.Type), UserID: f.UserID}, nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.ScheduleEvent, error) {
	rf, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, rf)
}

// appendEvent writes to the execution log. The log is informational, so a
// failed write is logged and otherwise ignored.
func appendEvent(ctx context.Context, repo repository.EventRepo, log *logger.Logger, ev models.ScheduleEvent) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	if err := repo.Append(ctx, ev); err != nil {
		log.Warnw("event_append_failed", "type", ev.Type, "entry_id", ev.EntryID, "error", err)
	}
}

func entryMeta(e models.ScheduleEntry) map[string]any {
	meta := map[string]any{
		"type":           e.Type,
		"mode":           e.Mode,
		"home_id":        e.HomeID,
		"target_room_id": e.TargetRoomID,
		"start_time":     e.StartTime,
	}
	if e.Temp != nil {
		meta["temp"] = *e.Temp
	}
	if e.EndTime != nil {
		meta["end_time"] = *e.EndTime
	}
	return meta
}
