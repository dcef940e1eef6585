package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"preheat_scheduler/internal/models"
	"preheat_scheduler/internal/repository"
	"preheat_scheduler/internal/thermostat"
)

// ---- Test doubles ----

// fakeScheduleRepo is an in-memory repository.ScheduleRepo.
type fakeScheduleRepo struct {
	mu      sync.Mutex
	entries map[string]models.ScheduleEntry

	insertErr error
	updateErr error
	listErr   error

	inserts int
	updates []models.SchedulePatch
}

func newFakeScheduleRepo(entries ...models.ScheduleEntry) *fakeScheduleRepo {
	r := &fakeScheduleRepo{entries: map[string]models.ScheduleEntry{}}
	for _, e := range entries {
		r.entries[e.ID] = e
	}
	return r
}

func (r *fakeScheduleRepo) InsertBatch(_ context.Context, entries []models.ScheduleEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts++
	if r.insertErr != nil {
		return r.insertErr
	}
	for _, e := range entries {
		r.entries[e.ID] = e
	}
	return nil
}

func (r *fakeScheduleRepo) Get(_ context.Context, id string) (models.ScheduleEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return models.ScheduleEntry{}, repository.ErrNotFound
	}
	return e, nil
}

func (r *fakeScheduleRepo) List(_ context.Context, f repository.ScheduleFilter) ([]models.ScheduleEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]models.ScheduleEntry, 0)
	for _, e := range r.entries {
		if f.UserID != 0 && e.UserID != f.UserID {
			continue
		}
		if !f.From.IsZero() && e.StartTime.Before(f.From) {
			continue
		}
		if !f.DueBy.IsZero() && e.StartTime.After(f.DueBy) {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].Type < out[j].Type
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

func (r *fakeScheduleRepo) CountDue(ctx context.Context, userID int, now time.Time) (int, error) {
	due, err := r.List(ctx, repository.ScheduleFilter{UserID: userID, DueBy: now, Status: models.StatusPending})
	return len(due), err
}

func (r *fakeScheduleRepo) NextUpcoming(ctx context.Context, userID int, now time.Time) (*models.ScheduleEntry, error) {
	next, err := r.List(ctx, repository.ScheduleFilter{UserID: userID, From: now, Status: models.StatusPending})
	if err != nil || len(next) == 0 {
		return nil, err
	}
	return &next[0], nil
}

func (r *fakeScheduleRepo) Update(_ context.Context, id string, p models.SchedulePatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	e, ok := r.entries[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.updates = append(r.updates, p)
	if p.TargetRoomID != nil {
		e.TargetRoomID = *p.TargetRoomID
	}
	if p.Type != nil {
		e.Type = *p.Type
	}
	if p.Mode != nil {
		e.Mode = *p.Mode
	}
	if p.ClearTemp {
		e.Temp = nil
	} else if p.Temp != nil {
		v := *p.Temp
		e.Temp = &v
	}
	if p.StartTime != nil {
		e.StartTime = *p.StartTime
	}
	if p.ClearEndTime {
		e.EndTime = nil
	} else if p.EndTime != nil {
		v := *p.EndTime
		e.EndTime = &v
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.Error != nil {
		e.Error = *p.Error
	}
	e.UpdatedAt = p.UpdatedAt
	r.entries[id] = e
	return nil
}

func (r *fakeScheduleRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.entries, id)
	return nil
}

func (r *fakeScheduleRepo) get(id string) models.ScheduleEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[id]
}

func (r *fakeScheduleRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// fakeEventRepo records appends and List calls.
type fakeEventRepo struct {
	mu        sync.Mutex
	appended  []models.ScheduleEvent
	appendErr error

	gotCtx    context.Context
	gotFilter repository.EventFilter
	listOut   []models.ScheduleEvent
	listErr   error
	listCalls int
}

func (f *fakeEventRepo) Append(_ context.Context, e models.ScheduleEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, e)
	return nil
}

func (f *fakeEventRepo) List(ctx context.Context, filter repository.EventFilter) ([]models.ScheduleEvent, error) {
	f.listCalls++
	f.gotCtx = ctx
	f.gotFilter = filter
	return f.listOut, f.listErr
}

func (f *fakeEventRepo) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.appended))
	for _, e := range f.appended {
		out = append(out, e.Type)
	}
	return out
}

// fakeScenarioRepo is a one-map repository.ScenarioRepo.
type fakeScenarioRepo struct {
	byUser  map[int]models.ScenarioConfig
	getErr  error
	saveErr error
	saves   int
}

func newFakeScenarioRepo() *fakeScenarioRepo {
	return &fakeScenarioRepo{byUser: map[int]models.ScenarioConfig{}}
}

func (f *fakeScenarioRepo) Get(_ context.Context, userID int) (*models.ScenarioConfig, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	c, ok := f.byUser[userID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeScenarioRepo) Save(_ context.Context, c models.ScenarioConfig) error {
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.byUser[c.UserID] = c
	return nil
}

// fakeAdapter records commands; failRooms makes Apply fail for given room ids.
type fakeAdapter struct {
	mu        sync.Mutex
	commands  []thermostat.Command
	failRooms map[string]bool
	rooms     []models.SiteRoom
	roomsErr  error
	onApply   func() // runs after each recorded command
}

var errDeviceOffline = errors.New("device offline")

func (a *fakeAdapter) Apply(_ context.Context, cmd thermostat.Command) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.commands = append(a.commands, cmd)
	if a.onApply != nil {
		a.onApply()
	}
	if a.failRooms[cmd.RoomID] {
		return errDeviceOffline
	}
	return nil
}

func (a *fakeAdapter) Rooms(_ context.Context, homeID string) ([]models.SiteRoom, error) {
	if a.roomsErr != nil {
		return nil, a.roomsErr
	}
	out := make([]models.SiteRoom, 0)
	for _, r := range a.rooms {
		if r.HomeID == homeID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (a *fakeAdapter) sent() []thermostat.Command {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]thermostat.Command(nil), a.commands...)
}

// fakeFeed serves fixed reservations for one room.
type fakeFeed struct {
	room         string
	reservations []models.Reservation
	err          error
	gotFrom      time.Time
	gotTo        time.Time
}

func (f *fakeFeed) Window(now time.Time) (time.Time, time.Time) {
	return now, now.Add(60 * 24 * time.Hour)
}

func (f *fakeFeed) Upcoming(_ context.Context, userRoomID string, from, to time.Time) ([]models.Reservation, error) {
	f.gotFrom, f.gotTo = from, to
	if f.err != nil {
		return nil, f.err
	}
	if userRoomID != f.room {
		return nil, errors.New("unknown room")
	}
	return f.reservations, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func f64(v float64) *float64 { return &v }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
