// Package eventlog mirrors the remote activity log into the local store and
// folds freshly fetched events into per-task verdicts for the planner.
package eventlog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/avolkov/todoplan/internal/models"
	"github.com/avolkov/todoplan/internal/store"
	"github.com/avolkov/todoplan/internal/todoist"
)

const (
	pageLimit = 100
	// hwmFallback bounds the first sync on an empty database. The activity
	// endpoint serves 52 weekly pages at most.
	hwmFallback = 52 * 7 * 24 * time.Hour
)

// ActivityClient fetches one page of the remote activity log.
type ActivityClient interface {
	Activity(ctx context.Context, page, limit, offset int) (*todoist.ActivityPage, error)
}

// Log is the activity-event mirror.
type Log struct {
	st       *store.Store
	client   ActivityClient
	maxPages int
	log      *slog.Logger

	now func() time.Time

	hwm     time.Time
	fetched []models.Event
}

// New creates the event mirror. maxPages clamps the page budget of one sync.
func New(st *store.Store, client ActivityClient, maxPages int, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{st: st, client: client, maxPages: maxPages, log: logger, now: time.Now}
}

// SetClock replaces the time source.
func (l *Log) SetClock(now func() time.Time) { l.now = now }

// Load computes the high-water mark from the persisted events. On an empty
// database the mark falls back to one activity window in the past.
func (l *Log) Load() error {
	max, ok, err := l.st.MaxEventDate()
	if err != nil {
		return err
	}
	if !ok {
		max = l.now().Add(-hwmFallback)
	}
	l.hwm = max
	return nil
}

// HWM returns the current high-water mark.
func (l *Log) HWM() time.Time { return l.hwm }

// pageBudget is the number of weekly pages needed to cover now−HWM, clamped
// to the configured maximum.
func (l *Log) pageBudget() int {
	days := int(l.now().Sub(l.hwm).Hours() / 24)
	pages := (days + 6) / 7
	if pages < 1 {
		pages = 1
	}
	if l.maxPages > 0 && pages > l.maxPages {
		pages = l.maxPages
	}
	return pages
}

// Sync walks the activity log newest to oldest until it crosses the
// high-water mark or exhausts the page budget. Fetched events accumulate in
// memory; Save persists the new ones.
func (l *Log) Sync(ctx context.Context) error {
	pages := l.pageBudget()
	var fetched []models.Event

	for page := 0; page < pages; page++ {
		crossed, err := l.syncPage(ctx, page, &fetched)
		if err != nil {
			return err
		}
		if crossed {
			break
		}
	}

	l.fetched = fetched
	l.log.Debug("activity sync complete", "pages", pages, "events", len(fetched), "hwm", l.hwm)
	return nil
}

// syncPage steps through one weekly page by offset. It reports whether the
// oldest event seen is at or before the high-water mark.
func (l *Log) syncPage(ctx context.Context, page int, fetched *[]models.Event) (crossed bool, err error) {
	for step := 0; ; step++ {
		ap, err := l.client.Activity(ctx, page, pageLimit, step*pageLimit)
		if err != nil {
			return false, fmt.Errorf("activity page %d offset %d: %w", page, step*pageLimit, err)
		}
		*fetched = append(*fetched, ap.Events...)

		for _, e := range ap.Events {
			if !e.EventDate.After(l.hwm) {
				return true, nil
			}
		}
		// count is the page total; once the stepped offset covers it the
		// page is exhausted.
		if ap.Count/pageLimit <= step {
			return false, nil
		}
	}
}

// New returns the fetched events newer than the high-water mark, oldest
// first.
func (l *Log) New() []models.Event {
	var out []models.Event
	for _, e := range l.fetched {
		if e.EventDate.After(l.hwm) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EventDate.Before(out[j].EventDate) })
	return out
}

// Save persists the new events and advances the high-water mark.
func (l *Log) Save() error {
	events := l.New()
	if len(events) == 0 {
		return nil
	}
	if err := l.st.SaveEvents(events); err != nil {
		return err
	}
	for _, e := range events {
		if e.EventDate.After(l.hwm) {
			l.hwm = e.EventDate
		}
	}
	return nil
}

// NewLastEventPerTask reduces the new item events to one verdict per task.
// Scanning newest first, the first event seen for a task wins, except that a
// later (older) "added" event reclassifies the task as added unless the
// newest event already deleted it (the task is dropped: it came and went
// within the window) or completed it (completion of a task added in the same
// window still reads as completed).
func (l *Log) NewLastEventPerTask() map[string]models.Event {
	events := l.New()
	// Newest first.
	sort.SliceStable(events, func(i, j int) bool { return events[i].EventDate.After(events[j].EventDate) })

	last := make(map[string]models.Event)
	for _, e := range events {
		if e.ObjectType != models.ObjectItem {
			continue
		}
		seen, ok := last[e.ObjectID]
		if !ok {
			last[e.ObjectID] = e
			continue
		}
		if e.EventType != models.EventAdded {
			continue
		}
		switch seen.EventType {
		case models.EventDeleted:
			delete(last, e.ObjectID)
		case models.EventCompleted:
			// keep the completion
		default:
			seen.EventType = models.EventAdded
			last[e.ObjectID] = seen
		}
	}
	return last
}

// ByObjectID returns the persisted history of one object, oldest first.
func (l *Log) ByObjectID(objectID string) ([]models.Event, error) {
	return l.st.EventsByObjectID(objectID)
}
