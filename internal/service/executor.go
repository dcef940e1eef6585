package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"preheat_scheduler/internal/logger"
	"preheat_scheduler/internal/metrics"
	"preheat_scheduler/internal/models"
	"preheat_scheduler/internal/repository"
	"preheat_scheduler/internal/thermostat"
)

// RunScope selects whose entries a pass covers. UserID 0 means every user.
type RunScope struct {
	UserID  int
	Trigger string
}

type RunResult struct {
	Processed int `json:"processed_count"`
	Applied   int `json:"applied_count"`
	Failed    int `json:"failed_count"`
}

// ExecutorService issues due entries to the thermostat. Entries move from
// pending to applied or failed and are never retried automatically. Passes
// take no lock: concurrent passes may both send the same command, which the
// adapter treats as a no-op.
type ExecutorService struct {
	schedules repository.ScheduleRepo
	events    repository.EventRepo
	adapter   thermostat.Adapter
	now       func() time.Time
	log       *logger.Logger
}

func NewExecutorService(schedules repository.ScheduleRepo, events repository.EventRepo, adapter thermostat.Adapter, log *logger.Logger) *ExecutorService {
	return &ExecutorService{
		schedules: schedules,
		events:    events,
		adapter:   adapter,
		now:       time.Now,
		log:       log,
	}
}

// RunOnce processes every pending entry whose start time has passed. now is
// sampled once for the whole selection. An adapter failure only marks its
// own entry failed; store errors are collected and returned after the pass.
func (s *ExecutorService) RunOnce(ctx context.Context, scope RunScope) (RunResult, error) {
	now := s.now().UTC()
	if scope.Trigger == "" {
		scope.Trigger = metrics.TriggerOperator
	}
	metrics.RunsTotal.WithLabelValues(scope.Trigger).Inc()

	due, err := s.schedules.List(ctx, repository.ScheduleFilter{
		UserID: scope.UserID,
		DueBy:  now,
		Status: models.StatusPending,
	})
	if err != nil {
		return RunResult{}, fmt.Errorf("select due entries: %w", err)
	}

	var (
		res  RunResult
		errs []error
	)
	for _, e := range due {
		// untouched entries stay pending for the next pass
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("due pass interrupted after %d of %d entries: %w", res.Processed, len(due), err))
			break
		}
		out, err := s.execute(ctx, e)
		res.Processed++
		if out.Status == models.StatusApplied {
			res.Applied++
		} else {
			res.Failed++
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	if res.Processed > 0 {
		s.log.Infow("due_run_done",
			"trigger", scope.Trigger,
			"user_id", scope.UserID,
			"processed", res.Processed,
			"applied", res.Applied,
			"failed", res.Failed,
		)
	}
	return res, errors.Join(errs...)
}

// ApplyNow executes one entry immediately, whatever its start time or status.
func (s *ExecutorService) ApplyNow(ctx context.Context, userID int, id string) (models.ScheduleEntry, error) {
	e, err := ownedEntry(ctx, s.schedules, userID, id)
	if err != nil {
		return models.ScheduleEntry{}, err
	}
	out, err := s.execute(ctx, e)
	if err != nil {
		return models.ScheduleEntry{}, err
	}
	return out, nil
}

// execute sends one entry's command and records the outcome. The returned
// error is a store error; adapter failures are reported through the status.
func (s *ExecutorService) execute(ctx context.Context, e models.ScheduleEntry) (models.ScheduleEntry, error) {
	cmd, cmdErr := thermostat.CommandFor(e)
	if cmdErr == nil {
		start := time.Now()
		cmdErr = s.adapter.Apply(ctx, cmd)
		metrics.CommandDuration.Observe(time.Since(start).Seconds())
	}

	status, msg, evType := models.StatusApplied, "", models.EventApplied
	if cmdErr != nil {
		status, msg, evType = models.StatusFailed, cmdErr.Error(), models.EventFailed
	}
	now := s.now().UTC()

	result := metrics.ResultApplied
	if cmdErr != nil {
		result = metrics.ResultFailed
	}

	e.Status, e.Error, e.UpdatedAt = status, msg, now
	metrics.CommandsTotal.WithLabelValues(e.Type, result).Inc()

	if err := s.schedules.Update(ctx, e.ID, models.SchedulePatch{Status: &status, Error: &msg, UpdatedAt: now}); err != nil {
		s.log.Errorw("entry_status_write_failed", "entry_id", e.ID, "status", status, "error", err)
		return e, fmt.Errorf("record %s for entry %s: %w", status, e.ID, err)
	}

	meta := entryMeta(e)
	if cmdErr != nil {
		meta["error"] = msg
		s.log.Warnw("entry_failed", "entry_id", e.ID, "user_id", e.UserID, "type", e.Type, "error", cmdErr)
	} else {
		s.log.Infow("entry_applied", "entry_id", e.ID, "user_id", e.UserID, "type", e.Type, "room_id", e.TargetRoomID)
	}
	appendEvent(ctx, s.events, s.log, models.ScheduleEvent{
		OccurredAt:  now,
		Type:        evType,
		UserID:      e.UserID,
		EntryID:     e.ID,
		Description: fmt.Sprintf("%s %s for room %s", e.Type, status, e.TargetRoomID),
		Metadata:    meta,
	})
	return e, nil
}

// Run ticks at the given interval until ctx is canceled, running a global pass each time.
func (s *ExecutorService) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.RunOnce(ctx, RunScope{Trigger: metrics.TriggerTicker}); err != nil {
				s.log.Errorw("due_run_failed", "trigger", metrics.TriggerTicker, "error", err)
			}
		}
	}
}

// ownedEntry loads an entry and hides entries of other users as not found.
func ownedEntry(ctx context.Context, repo repository.ScheduleRepo, userID int, id string) (models.ScheduleEntry, error) {
	e, err := repo.Get(ctx, id)
	if err != nil {
		return models.ScheduleEntry{}, err
	}
	if userID != 0 && e.UserID != userID {
		return models.ScheduleEntry{}, ErrNotFound
	}
	return e, nil
}
