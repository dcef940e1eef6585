// Package trigger drives the due-schedule pass from a cron expression.
package trigger

import (
	"context"
	"fmt"
	"time"

	"preheat_scheduler/internal/logger"

	"github.com/robfig/cron/v3"
)

// RunFunc is one global pass. Errors are logged; the next firing runs regardless.
type RunFunc func(ctx context.Context) error

// Cron fires RunFunc on a five-field cron schedule. Overlapping firings are
// skipped while a previous pass is still running.
type Cron struct {
	c       *cron.Cron
	log     *logger.Logger
	timeout time.Duration
}

// cronLogger adapts the zap wrapper to cron.Logger.
type cronLogger struct{ l *logger.Logger }

func (c cronLogger) Info(msg string, kv ...interface{}) { c.l.Debugw(msg, kv...) }
func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.l.Errorw(msg, append(kv, "error", err)...)
}

// NewCron validates spec and registers run. timeout bounds each pass; zero disables it.
func NewCron(spec string, loc *time.Location, timeout time.Duration, run RunFunc, log *logger.Logger) (*Cron, error) {
	if loc == nil {
		loc = time.Local
	}
	log = log.With("component", "cron", "spec", spec)
	cl := cronLogger{l: log}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	t := &Cron{c: c, log: log, timeout: timeout}
	if _, err := c.AddFunc(spec, func() { t.fire(run) }); err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return t, nil
}

func (t *Cron) fire(run RunFunc) {
	ctx := context.Background()
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	start := time.Now()
	if err := run(ctx); err != nil {
		t.log.Errorw("cron_run_failed", "error", err)
		return
	}
	t.log.Infow("cron_run_done", "took", time.Since(start))
}

// Next reports when the schedule fires next; zero before Start.
func (t *Cron) Next() time.Time {
	entries := t.c.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (t *Cron) Start() {
	t.c.Start()
	t.log.Infow("cron_started")
}

// Stop halts the schedule and waits for a running pass, or ctx, whichever is first.
func (t *Cron) Stop(ctx context.Context) {
	done := t.c.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		t.log.Warnw("cron_stop_timeout")
	}
}
