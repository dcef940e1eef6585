package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"preheat_scheduler/internal/logger"
	"preheat_scheduler/internal/metrics"
	"preheat_scheduler/internal/models"
	"preheat_scheduler/internal/thermostat"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func heatEntry(id string, userID int, room string, start, end time.Time) models.ScheduleEntry {
	return models.ScheduleEntry{
		ID: id, UserID: userID, HomeID: "home-1", TargetRoomID: room,
		Type: models.EntryHeat, Mode: models.ModeManual, Temp: f64(20),
		StartTime: start, EndTime: &end, Status: models.StatusPending,
	}
}

func stopEntry(id string, userID int, room string, start time.Time) models.ScheduleEntry {
	return models.ScheduleEntry{
		ID: id, UserID: userID, HomeID: "home-1", TargetRoomID: room,
		Type: models.EntryStop, Mode: models.ModeHome,
		StartTime: start, Status: models.StatusPending,
	}
}

func newTestExecutor(repo *fakeScheduleRepo, events *fakeEventRepo, adapter thermostat.Adapter, now time.Time) *ExecutorService {
	s := NewExecutorService(repo, events, adapter, logger.Nop())
	s.now = fixedClock(now)
	return s
}

func TestExecutorService_RunOnce_AppliesDueEntries(t *testing.T) {
	now := time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC)
	eco := time.Date(2025, 6, 13, 10, 0, 0, 0, time.UTC)
	repo := newFakeScheduleRepo(
		heatEntry("heat", 1, "r1", now, eco),
		stopEntry("stop", 1, "r1", eco),
		stopEntry("old", 1, "r2", now.Add(-time.Hour)),
	)
	events := &fakeEventRepo{}
	adapter := &fakeAdapter{}
	svc := newTestExecutor(repo, events, adapter, now)

	res, err := svc.RunOnce(context.Background(), RunScope{})
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if res != (RunResult{Processed: 2, Applied: 2}) {
		t.Fatalf("unexpected result: %+v", res)
	}

	sent := adapter.sent()
	if len(sent) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(sent))
	}
	// ordered by start time: the old stop goes first
	if sent[0].Mode != models.ModeHome || sent[0].Temp != nil || sent[0].ExpiresAt != nil || sent[0].RoomID != "r2" {
		t.Fatalf("unexpected stop command: %+v", sent[0])
	}
	if sent[1].Mode != models.ModeManual || *sent[1].Temp != 20 || !sent[1].ExpiresAt.Equal(eco) || sent[1].SiteID != "home-1" {
		t.Fatalf("unexpected heat command: %+v", sent[1])
	}

	for _, id := range []string{"heat", "old"} {
		e := repo.get(id)
		if e.Status != models.StatusApplied || e.Error != "" || !e.UpdatedAt.Equal(now) {
			t.Fatalf("entry %s not applied: %+v", id, e)
		}
	}
	if repo.get("stop").Status != models.StatusPending {
		t.Fatalf("future entry must stay pending")
	}
	if got := events.types(); len(got) != 2 || got[0] != models.EventApplied {
		t.Fatalf("unexpected events: %v", got)
	}
}

func TestExecutorService_RunOnce_IsIdempotentAtSameNow(t *testing.T) {
	now := time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC)
	repo := newFakeScheduleRepo(
		heatEntry("a", 1, "r1", now.Add(-time.Minute), now.Add(time.Hour)),
		stopEntry("b", 2, "r2", now),
	)
	adapter := &fakeAdapter{}
	svc := newTestExecutor(repo, &fakeEventRepo{}, adapter, now)

	first, err := svc.RunOnce(context.Background(), RunScope{})
	if err != nil || first.Processed != 2 {
		t.Fatalf("first pass = %+v, %v", first, err)
	}
	second, err := svc.RunOnce(context.Background(), RunScope{})
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if second.Processed != 0 {
		t.Fatalf("second pass processed %d entries, want 0", second.Processed)
	}
	if len(adapter.sent()) != 2 {
		t.Fatalf("expected no extra commands, got %d", len(adapter.sent()))
	}
}

func TestExecutorService_RunOnce_FailureIsIsolated(t *testing.T) {
	now := time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC)
	repo := newFakeScheduleRepo(
		stopEntry("bad", 1, "offline", now.Add(-2*time.Minute)),
		stopEntry("good", 1, "online", now.Add(-time.Minute)),
	)
	events := &fakeEventRepo{}
	adapter := &fakeAdapter{failRooms: map[string]bool{"offline": true}}
	svc := newTestExecutor(repo, events, adapter, now)

	res, err := svc.RunOnce(context.Background(), RunScope{})
	if err != nil {
		t.Fatalf("adapter failures must not fail the pass: %v", err)
	}
	if res != (RunResult{Processed: 2, Applied: 1, Failed: 1}) {
		t.Fatalf("unexpected result: %+v", res)
	}
	bad := repo.get("bad")
	if bad.Status != models.StatusFailed || bad.Error != errDeviceOffline.Error() {
		t.Fatalf("unexpected failed entry: %+v", bad)
	}
	if repo.get("good").Status != models.StatusApplied {
		t.Fatalf("second entry must still be applied")
	}
	got := events.types()
	if len(got) != 2 || got[0] != models.EventFailed || got[1] != models.EventApplied {
		t.Fatalf("unexpected events: %v", got)
	}

	// failed is terminal: a later pass does not retry it
	res, _ = svc.RunOnce(context.Background(), RunScope{})
	if res.Processed != 0 {
		t.Fatalf("failed entry was retried: %+v", res)
	}
}

func TestExecutorService_RunOnce_InvalidEntryIsFailedNotSent(t *testing.T) {
	now := time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC)
	broken := heatEntry("broken", 1, "r1", now, now.Add(time.Hour))
	broken.Temp = nil // e.g. left behind by a manual edit
	repo := newFakeScheduleRepo(broken)
	adapter := &fakeAdapter{}
	svc := newTestExecutor(repo, &fakeEventRepo{}, adapter, now)

	res, err := svc.RunOnce(context.Background(), RunScope{})
	if err != nil || res.Failed != 1 {
		t.Fatalf("RunOnce = %+v, %v", res, err)
	}
	if len(adapter.sent()) != 0 {
		t.Fatalf("invalid command must not reach the device")
	}
	if e := repo.get("broken"); e.Status != models.StatusFailed || !strings.Contains(e.Error, "requires temp") {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestExecutorService_RunOnce_UserScope(t *testing.T) {
	now := time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC)
	repo := newFakeScheduleRepo(
		stopEntry("mine", 1, "r1", now),
		stopEntry("theirs", 2, "r2", now),
	)
	svc := newTestExecutor(repo, &fakeEventRepo{}, &fakeAdapter{}, now)

	res, err := svc.RunOnce(context.Background(), RunScope{UserID: 1})
	if err != nil || res.Processed != 1 {
		t.Fatalf("RunOnce = %+v, %v", res, err)
	}
	if repo.get("theirs").Status != models.StatusPending {
		t.Fatalf("other user's entry must not be touched")
	}
}

func TestExecutorService_RunOnce_StoreErrors(t *testing.T) {
	now := time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC)

	repo := newFakeScheduleRepo(stopEntry("a", 1, "r1", now))
	repo.listErr = errors.New("db locked")
	svc := newTestExecutor(repo, &fakeEventRepo{}, &fakeAdapter{}, now)
	if _, err := svc.RunOnce(context.Background(), RunScope{}); !errors.Is(err, repo.listErr) {
		t.Fatalf("expected selection error, got %v", err)
	}

	repo = newFakeScheduleRepo(stopEntry("a", 1, "r1", now), stopEntry("b", 1, "r2", now))
	repo.updateErr = errors.New("disk full")
	adapter := &fakeAdapter{}
	svc = newTestExecutor(repo, &fakeEventRepo{}, adapter, now)
	res, err := svc.RunOnce(context.Background(), RunScope{})
	if !errors.Is(err, repo.updateErr) {
		t.Fatalf("expected status write error, got %v", err)
	}
	if res.Processed != 2 || len(adapter.sent()) != 2 {
		t.Fatalf("a store error must not stop the pass: %+v, sent=%d", res, len(adapter.sent()))
	}
}

func TestExecutorService_RunOnce_EventLogErrorIsIgnored(t *testing.T) {
	now := time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC)
	repo := newFakeScheduleRepo(stopEntry("a", 1, "r1", now))
	svc := newTestExecutor(repo, &fakeEventRepo{appendErr: errors.New("log full")}, &fakeAdapter{}, now)

	if res, err := svc.RunOnce(context.Background(), RunScope{}); err != nil || res.Applied != 1 {
		t.Fatalf("RunOnce = %+v, %v", res, err)
	}
}

func TestExecutorService_ApplyNow_StopTwice(t *testing.T) {
	now := time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC)
	future := now.Add(72 * time.Hour)
	repo := newFakeScheduleRepo(stopEntry("stop", 1, "r1", future))
	sim := thermostat.NewSimulated(nil, logger.Nop())
	svc := newTestExecutor(repo, &fakeEventRepo{}, sim, now)

	for i := 0; i < 2; i++ {
		out, err := svc.ApplyNow(context.Background(), 1, "stop")
		if err != nil {
			t.Fatalf("ApplyNow #%d: %v", i+1, err)
		}
		if out.Status != models.StatusApplied {
			t.Fatalf("ApplyNow #%d status = %s (%s)", i+1, out.Status, out.Error)
		}
	}
	st, ok := sim.State("home-1", "r1")
	if !ok || st.Mode != models.ModeHome {
		t.Fatalf("unexpected device state: %+v", st)
	}
}

func TestExecutorService_ApplyNow_IgnoresStatusAndStart(t *testing.T) {
	now := time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC)
	failed := heatEntry("h", 1, "r1", now.Add(24*time.Hour), now.Add(48*time.Hour))
	failed.Status = models.StatusFailed
	failed.Error = "device offline"
	repo := newFakeScheduleRepo(failed)
	adapter := &fakeAdapter{}
	svc := newTestExecutor(repo, &fakeEventRepo{}, adapter, now)

	out, err := svc.ApplyNow(context.Background(), 1, "h")
	if err != nil {
		t.Fatalf("ApplyNow: %v", err)
	}
	if out.Status != models.StatusApplied || out.Error != "" || repo.get("h").Error != "" {
		t.Fatalf("expected recovery to applied, got %+v", out)
	}
	if len(adapter.sent()) != 1 {
		t.Fatalf("expected one command")
	}
}

func TestExecutorService_ApplyNow_NotFoundAndOwnership(t *testing.T) {
	now := time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC)
	repo := newFakeScheduleRepo(stopEntry("s", 2, "r1", now))
	adapter := &fakeAdapter{}
	svc := newTestExecutor(repo, &fakeEventRepo{}, adapter, now)

	if _, err := svc.ApplyNow(context.Background(), 1, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.ApplyNow(context.Background(), 1, "s"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected another user's entry to be hidden, got %v", err)
	}
	if len(adapter.sent()) != 0 {
		t.Fatalf("no command expected")
	}
}

func TestExecutorService_ConcurrentPassesConverge(t *testing.T) {
	now := time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC)
	repo := newFakeScheduleRepo(
		heatEntry("h", 1, "r1", now, now.Add(time.Hour)),
		stopEntry("s", 1, "r2", now),
	)
	sim := thermostat.NewSimulated(nil, logger.Nop())
	svc := newTestExecutor(repo, &fakeEventRepo{}, sim, now)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.RunOnce(context.Background(), RunScope{}); err != nil {
				t.Errorf("RunOnce: %v", err)
			}
		}()
	}
	wg.Wait()

	for _, id := range []string{"h", "s"} {
		if repo.get(id).Status != models.StatusApplied {
			t.Fatalf("entry %s = %s", id, repo.get(id).Status)
		}
	}
	if st, _ := sim.State("home-1", "r1"); st.Changes != 1 || st.SetpointC != 20 {
		t.Fatalf("duplicate commands must not change device state twice: %+v", st)
	}
}

func TestExecutorService_RunStopsOnCancel(t *testing.T) {
	svc := newTestExecutor(newFakeScheduleRepo(), &fakeEventRepo{}, &fakeAdapter{}, time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx, time.Millisecond)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestExecutorService_RunOnce_StopsWhenContextCancelled(t *testing.T) {
	now := time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC)
	eco := now.Add(72 * time.Hour)
	repo := newFakeScheduleRepo(
		stopEntry("first", 1, "r1", now.Add(-2*time.Hour)),
		heatEntry("second", 1, "r2", now.Add(-time.Hour), eco),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	adapter := &fakeAdapter{onApply: cancel}
	svc := newTestExecutor(repo, &fakeEventRepo{}, adapter, now)

	res, err := svc.RunOnce(ctx, RunScope{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res != (RunResult{Processed: 1, Applied: 1}) {
		t.Fatalf("unexpected result: %+v", res)
	}
	if n := len(adapter.sent()); n != 1 {
		t.Fatalf("expected 1 command before cancel, got %d", n)
	}
	if got := repo.get("second").Status; got != models.StatusPending {
		t.Fatalf("untouched entry must stay pending, got %s", got)
	}
}

func TestExecutorService_CountsCommandsByResult(t *testing.T) {
	now := time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC)
	repo := newFakeScheduleRepo(
		stopEntry("ok", 1, "r1", now),
		stopEntry("bad", 1, "r2", now),
	)
	adapter := &fakeAdapter{failRooms: map[string]bool{"r2": true}}
	svc := newTestExecutor(repo, &fakeEventRepo{}, adapter, now)

	applied := testutil.ToFloat64(metrics.CommandsTotal.WithLabelValues(models.EntryStop, metrics.ResultApplied))
	failed := testutil.ToFloat64(metrics.CommandsTotal.WithLabelValues(models.EntryStop, metrics.ResultFailed))

	if _, err := svc.RunOnce(context.Background(), RunScope{}); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if got := testutil.ToFloat64(metrics.CommandsTotal.WithLabelValues(models.EntryStop, metrics.ResultApplied)); got != applied+1 {
		t.Fatalf("applied counter = %v, want %v", got, applied+1)
	}
	if got := testutil.ToFloat64(metrics.CommandsTotal.WithLabelValues(models.EntryStop, metrics.ResultFailed)); got != failed+1 {
		t.Fatalf("failed counter = %v, want %v", got, failed+1)
	}
}
