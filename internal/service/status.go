package service

import (
	"context"
	"time"

	"preheat_scheduler/internal/models"
	"preheat_scheduler/internal/repository"
)

// ScheduleStatus is the user's schedule at a glance.
type ScheduleStatus struct {
	DueCount  int                   `json:"due_count"`
	Next      *models.ScheduleEntry `json:"next,omitempty"`
	CheckedAt time.Time             `json:"checked_at"`
}

type StatusService struct {
	schedules repository.ScheduleRepo
	now       func() time.Time
}

func NewStatusService(schedules repository.ScheduleRepo) *StatusService {
	return &StatusService{schedules: schedules, now: time.Now}
}

// GetStatus counts due pending entries and finds the next one to fire.
func (s *StatusService) GetStatus(ctx context.Context, userID int) (ScheduleStatus, error) {
	now := s.now().UTC()
	due, err := s.schedules.CountDue(ctx, userID, now)
	if err != nil {
		return ScheduleStatus{}, err
	}
	next, err := s.schedules.NextUpcoming(ctx, userID, now)
	if err != nil {
		return ScheduleStatus{}, err
	}
	return ScheduleStatus{DueCount: due, Next: next, CheckedAt: now}, nil
}
