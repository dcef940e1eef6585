package service

import (
	"context"
	"fmt"
	"time"

	"preheat_scheduler/internal/logger"
	"preheat_scheduler/internal/models"
	"preheat_scheduler/internal/repository"
)

// ScheduleService is the manual override path over stored entries. Edits
// touch only the addressed entry; the sibling of a generated pair is left
// as is.
type ScheduleService struct {
	schedules repository.ScheduleRepo
	events    repository.EventRepo
	now       func() time.Time
	log       *logger.Logger
}

func NewScheduleService(schedules repository.ScheduleRepo, events repository.EventRepo, log *logger.Logger) *ScheduleService {
	return &ScheduleService{schedules: schedules, events: events, now: time.Now, log: log}
}

// List returns the user's entries starting at or after from, earliest first.
func (s *ScheduleService) List(ctx context.Context, userID int, from time.Time) ([]models.ScheduleEntry, error) {
	return s.schedules.List(ctx, repository.ScheduleFilter{UserID: userID, From: normalizeToUTC(from)})
}

func (s *ScheduleService) Update(ctx context.Context, userID int, id string, p models.SchedulePatch) (models.ScheduleEntry, error) {
	if err := validatePatch(p); err != nil {
		return models.ScheduleEntry{}, err
	}
	if _, err := ownedEntry(ctx, s.schedules, userID, id); err != nil {
		return models.ScheduleEntry{}, err
	}

	p.UpdatedAt = s.now().UTC()
	if err := s.schedules.Update(ctx, id, p); err != nil {
		return models.ScheduleEntry{}, err
	}
	updated, err := s.schedules.Get(ctx, id)
	if err != nil {
		return models.ScheduleEntry{}, err
	}

	appendEvent(ctx, s.events, s.log, models.ScheduleEvent{
		OccurredAt:  p.UpdatedAt,
		Type:        models.EventUpdated,
		UserID:      updated.UserID,
		EntryID:     id,
		Description: "entry edited manually",
		Metadata:    entryMeta(updated),
	})
	return updated, nil
}

func (s *ScheduleService) Delete(ctx context.Context, userID int, id string) error {
	e, err := ownedEntry(ctx, s.schedules, userID, id)
	if err != nil {
		return err
	}
	if err := s.schedules.Delete(ctx, id); err != nil {
		return err
	}
	appendEvent(ctx, s.events, s.log, models.ScheduleEvent{
		Type:        models.EventDeleted,
		UserID:      e.UserID,
		EntryID:     id,
		Description: fmt.Sprintf("%s entry deleted", e.Type),
		Metadata:    entryMeta(e),
	})
	return nil
}

// validatePatch checks enum and range values only. Cross-field rules such as
// "heat needs temp" are not enforced on edits.
func validatePatch(p models.SchedulePatch) error {
	if p.IsEmpty() {
		return fmt.Errorf("%w: empty patch", ErrValidation)
	}
	if p.Type != nil && *p.Type != models.EntryHeat && *p.Type != models.EntryStop {
		return fmt.Errorf("%w: type must be heat or stop", ErrValidation)
	}
	if p.Mode != nil && *p.Mode != models.ModeManual && *p.Mode != models.ModeHome {
		return fmt.Errorf("%w: mode must be manual or home", ErrValidation)
	}
	if p.Status != nil {
		switch *p.Status {
		case models.StatusPending, models.StatusApplied, models.StatusFailed:
		default:
			return fmt.Errorf("%w: unknown status %q", ErrValidation, *p.Status)
		}
	}
	if p.Temp != nil {
		if p.ClearTemp {
			return fmt.Errorf("%w: temp and clear_temp are exclusive", ErrValidation)
		}
		if err := validateTemp("temp", *p.Temp); err != nil {
			return err
		}
	}
	if p.EndTime != nil && p.ClearEndTime {
		return fmt.Errorf("%w: end_time and clear_end_time are exclusive", ErrValidation)
	}
	if p.TargetRoomID != nil && *p.TargetRoomID == "" {
		return fmt.Errorf("%w: target_room_id cannot be empty", ErrValidation)
	}
	return nil
}
