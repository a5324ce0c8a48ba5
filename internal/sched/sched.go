// Package sched runs a job once per day at a fixed local wall-clock time.
package sched

import (
	"context"
	"log/slog"
	"time"
)

const pollInterval = 30 * time.Second

// Daily fires fn the first time the local clock passes hour:minute each day.
type Daily struct {
	hour, minute int
	fn           func(context.Context)
	log          *slog.Logger

	poll    time.Duration
	now     func() time.Time
	lastRun time.Time
}

// New creates the daily job. fn runs inline in the scheduler goroutine.
func New(hour, minute int, fn func(context.Context), logger *slog.Logger) *Daily {
	if logger == nil {
		logger = slog.Default()
	}
	return &Daily{
		hour:   hour,
		minute: minute,
		fn:     fn,
		log:    logger,
		poll:   pollInterval,
		now:    time.Now,
	}
}

// Run polls until the context is cancelled. It blocks; callers start it in
// its own goroutine.
func (d *Daily) Run(ctx context.Context) {
	d.log.Info("daily scheduler started", "at", d.at())
	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Info("daily scheduler stopped")
			return
		case <-ticker.C:
			d.maybeRun(ctx)
		}
	}
}

// maybeRun fires when the scheduled time for today has passed and the job has
// not run today yet.
func (d *Daily) maybeRun(ctx context.Context) {
	now := d.now()
	y, m, day := now.Date()
	due := time.Date(y, m, day, d.hour, d.minute, 0, 0, now.Location())
	if now.Before(due) {
		return
	}
	if sameDay(d.lastRun, now) {
		return
	}
	d.lastRun = now
	d.log.Info("daily job firing", "at", d.at())
	d.fn(ctx)
}

func (d *Daily) at() string {
	return time.Date(0, 1, 1, d.hour, d.minute, 0, 0, time.UTC).Format("15:04")
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
