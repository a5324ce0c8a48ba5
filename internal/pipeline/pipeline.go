// Package pipeline orchestrates the tick: load mirrors, sync remote state,
// classify what changed, drive the planner, persist. It also owns the daily
// plan rollover. Tick and rollover are serialized by one mutex.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avolkov/todoplan/internal/config"
	"github.com/avolkov/todoplan/internal/eventlog"
	"github.com/avolkov/todoplan/internal/goals"
	"github.com/avolkov/todoplan/internal/mirror"
	"github.com/avolkov/todoplan/internal/models"
	"github.com/avolkov/todoplan/internal/notify"
	"github.com/avolkov/todoplan/internal/planner"
	"github.com/avolkov/todoplan/internal/store"
	"github.com/avolkov/todoplan/internal/todoist"
)

// Client is the slice of the remote API the pipeline needs.
type Client interface {
	ListTasks(ctx context.Context) ([]models.Task, error)
	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListProjects(ctx context.Context) ([]models.Project, error)
	ListSections(ctx context.Context) ([]models.Section, error)
	ListLabels(ctx context.Context) ([]models.Label, error)
	Activity(ctx context.Context, page, limit, offset int) (*todoist.ActivityPage, error)
	ArchivedItems(ctx context.Context, projectID string) ([]models.Task, error)
}

// Pipeline wires the mirrors, the event log, the planner, the analyzer, and
// the notifier.
type Pipeline struct {
	cfg    *config.Config
	st     *store.Store
	client Client

	tasks    *mirror.Manager[models.Task]
	projects *mirror.Manager[models.Project]
	sections *mirror.Manager[models.Section]
	labels   *mirror.Manager[models.Label]
	events   *eventlog.Log

	planner  *planner.Planner
	analyzer *goals.Analyzer
	notifier *notify.Notifier

	log *slog.Logger
	now func() time.Time

	// mu serializes tick and rollover: the planner's plans and the mirror
	// maps have a single writer.
	mu sync.Mutex

	warningsSent bool
}

// New wires a pipeline. The store must already be initialized.
func New(cfg *config.Config, st *store.Store, client Client, notifier *notify.Notifier, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:      cfg,
		st:       st,
		client:   client,
		tasks:    mirror.Tasks(st, client),
		projects: mirror.Projects(st, client),
		sections: mirror.Sections(st, client),
		labels:   mirror.Labels(st, client),
		events:   eventlog.New(st, client, cfg.EventsSyncMaxPages, logger),
		planner:  planner.New(st, cfg.Horizons, cfg.Transitions, logger),
		analyzer: goals.New(cfg.SpecialLabels.Goal, cfg.SpecialLabels.Success, logger),
		notifier: notifier,
		log:      logger,
		now:      time.Now,
	}
}

// SetClock replaces the time source of the pipeline and everything it owns.
func (p *Pipeline) SetClock(now func() time.Time) {
	p.now = now
	p.planner.SetClock(now)
	p.events.SetClock(now)
}

// InitialFill populates an empty database from scratch: every collection,
// archived tasks per project, and the reachable activity log. Skipped when the
// fill already completed.
func (p *Pipeline) InitialFill(ctx context.Context) error {
	done, err := p.st.GetParam(store.ParamInitialFillComplete)
	if err != nil {
		return err
	}
	if done == "true" {
		p.log.Info("initial fill already complete")
		return nil
	}

	if err := p.projects.Sync(ctx); err != nil {
		return err
	}
	if err := p.sections.Sync(ctx); err != nil {
		return err
	}
	if err := p.labels.Sync(ctx); err != nil {
		return err
	}
	if err := p.tasks.Sync(ctx); err != nil {
		return err
	}

	projects := collect(p.projects.Synced())
	if err := p.projects.Save(projects, store.SaveDeleteAll); err != nil {
		return err
	}
	if err := p.sections.Save(collect(p.sections.Synced()), store.SaveDeleteAll); err != nil {
		return err
	}
	if err := p.labels.Save(collect(p.labels.Synced()), store.SaveDeleteAll); err != nil {
		return err
	}
	if err := p.tasks.Save(collect(p.tasks.Synced()), store.SaveDeleteAll); err != nil {
		return err
	}

	// Archived tasks are only reachable per project and the endpoint is
	// heavy; this is the one place the full sweep runs.
	for _, proj := range projects {
		archived, err := p.client.ArchivedItems(ctx, proj.ID)
		if err != nil {
			return fmt.Errorf("archived items of %s: %w", proj.ID, err)
		}
		if len(archived) == 0 {
			continue
		}
		if err := p.tasks.Save(archived, store.SaveIncrement); err != nil {
			return err
		}
	}

	if err := p.events.Load(); err != nil {
		return err
	}
	if err := p.events.Sync(ctx); err != nil {
		return err
	}
	if err := p.events.Save(); err != nil {
		return err
	}

	return p.st.SetParam(store.ParamInitialFillComplete, "true")
}

// Tick runs one synchronization round.
func (p *Pipeline) Tick(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	started := p.now()

	// 1. Load mirrors from the database.
	for _, load := range []func() error{
		p.tasks.Load, p.projects.Load, p.sections.Load, p.labels.Load, p.events.Load,
	} {
		if err := load(); err != nil {
			return err
		}
	}
	if err := p.planner.Load(); err != nil {
		return err
	}

	// 2. Sync remote state. Sections and labels change rarely and are not
	// consulted by the classifier; they stay on their initial-fill copies.
	if err := p.tasks.Sync(ctx); err != nil {
		return err
	}
	if err := p.projects.Sync(ctx); err != nil {
		return err
	}
	if err := p.events.Sync(ctx); err != nil {
		return err
	}

	// 3. Analyze goal consistency. Warnings are informational and go out
	// once per process.
	p.analyzeAndWarn(ctx)

	// 4-6. Classify changed tasks and drive the planner.
	updates, inserts, err := p.classify(ctx)
	if err != nil {
		return err
	}
	for _, cl := range append(updates, inserts...) {
		if err := p.planner.ProcessTask(&cl.task, cl.action); err != nil {
			return err
		}
	}

	// 7. Persist tasks.
	if len(updates) > 0 {
		if err := p.tasks.Save(tasksOf(updates), store.SaveUpdate); err != nil {
			return err
		}
	}
	if len(inserts) > 0 {
		if err := p.tasks.Save(tasksOf(inserts), store.SaveIncrement); err != nil {
			return err
		}
	}
	if fresh := p.projects.New(); len(fresh) > 0 {
		if err := p.projects.Save(fresh, store.SaveIncrement); err != nil {
			return err
		}
	}
	if changed := p.projects.Updated(); len(changed) > 0 {
		if err := p.projects.Save(changed, store.SaveUpdate); err != nil {
			return err
		}
	}

	// 8. Persist the new events; the high-water mark advances with them.
	if err := p.events.Save(); err != nil {
		return err
	}

	p.log.Info("tick complete",
		"updates", len(updates), "inserts", len(inserts),
		"duration", p.now().Sub(started).Round(time.Millisecond))
	return nil
}

// classified pairs a task with the planner action derived for it.
type classified struct {
	task   models.Task
	action models.TaskAction
}

func tasksOf(cls []classified) []models.Task {
	out := make([]models.Task, len(cls))
	for i, cl := range cls {
		out[i] = cl.task
	}
	return out
}

// classify turns the new last-event-per-task view into (task, action) pairs,
// split by how they must be persisted.
func (p *Pipeline) classify(ctx context.Context) (updates, inserts []classified, err error) {
	live := p.tasks.Synced()
	db := p.tasks.Current()
	today := p.now()

	newEvents := p.events.New()

	for taskID, ev := range p.events.NewLastEventPerTask() {
		dbTask, inDB := db[taskID]
		liveTask, inLive := live[taskID]

		switch {
		case !inDB:
			if ev.EventType == models.EventDeleted {
				// Came and went without ever being persisted.
				continue
			}
			task := liveTask
			if !inLive {
				fetched, err := p.client.GetTask(ctx, taskID)
				if err != nil {
					return nil, nil, fmt.Errorf("fetch task %s: %w", taskID, err)
				}
				if fetched == nil {
					p.log.Warn("task gone before first sync, skipping",
						"task", taskID, "event", ev.EventType)
					continue
				}
				task = *fetched
			}
			task.Derive(p.cfg.SpecialLabels.Goal, today)
			inserts = append(inserts, classified{task: task, action: models.ActionAdded})
			p.log.Debug("task added", "task", taskID, "content", p.cfg.CutContent(task.Content))

		case !inLive:
			// Known locally, gone from the live list: completed or deleted
			// remotely. Rebuild its attributes from the event stream.
			task := dbTask
			foldEvents(&task, eventsFor(newEvents, taskID))
			task.Derive(p.cfg.SpecialLabels.Goal, today)
			updates = append(updates, classified{task: task, action: actionFor(ev.EventType)})
			p.log.Debug("task reconstructed from events", "task", taskID,
				"event", ev.EventType, "content", p.cfg.CutContent(task.Content))

		default:
			if !mirror.TaskChanged(dbTask, liveTask) {
				continue
			}
			task := liveTask
			task.Derive(p.cfg.SpecialLabels.Goal, today)
			updates = append(updates, classified{task: task, action: actionFor(ev.EventType)})
			p.log.Debug("task updated", "task", taskID, "event", ev.EventType,
				"content", p.cfg.CutContent(task.Content))
		}
	}
	return updates, inserts, nil
}

// actionFor maps an event type to a planner action.
func actionFor(t models.EventType) models.TaskAction {
	switch t {
	case models.EventAdded:
		return models.ActionAdded
	case models.EventCompleted:
		return models.ActionCompleted
	case models.EventUncompleted:
		return models.ActionUncompleted
	case models.EventDeleted:
		return models.ActionDeleted
	default:
		return models.ActionUpdated
	}
}

// eventsFor filters one object's events, oldest first (the slice from
// eventlog.New is already ascending).
func eventsFor(events []models.Event, objectID string) []models.Event {
	var out []models.Event
	for _, e := range events {
		if e.ObjectType == models.ObjectItem && e.ObjectID == objectID {
			out = append(out, e)
		}
	}
	return out
}

// foldEvents replays an ordered event stream onto a task. A deletion is
// final: nothing after it is applied.
func foldEvents(task *models.Task, events []models.Event) {
	for _, e := range events {
		switch e.EventType {
		case models.EventDeleted:
			task.IsDeleted = true
			return
		case models.EventCompleted:
			task.IsCompleted = true
		case models.EventUncompleted:
			task.IsCompleted = false
		case models.EventUpdated:
			applyUpdateEvent(task, &e)
		}
	}
}

// applyUpdateEvent carries one updated event's attribute changes. The event
// reports a change by a non-null last_<attr>; the new value is in <attr>.
func applyUpdateEvent(task *models.Task, e *models.Event) {
	if _, changed := e.ExtraString("last_content"); changed {
		if v, ok := e.ExtraString("content"); ok {
			task.Content = v
		}
	}
	if _, changed := e.ExtraString("last_description"); changed {
		if v, ok := e.ExtraString("description"); ok {
			task.Description = v
		}
	}
	if _, changed := e.ExtraString("last_due_date"); changed {
		v, ok := e.ExtraString("due_date")
		if !ok || v == "" {
			task.Due = nil
			return
		}
		// The event does not carry recurrence; a rebuilt due is plain.
		due := &models.Due{IsRecurring: false, String: v}
		if ts, err := models.ParseDatetime(v); err == nil {
			due.Datetime = v
			due.Date = ts.Format(models.DateFormat)
		} else {
			due.Date = v
		}
		task.Due = due
	}
}

// analyzeAndWarn runs the analyzer and, once per process, sends the collected
// warnings to the notifier.
func (p *Pipeline) analyzeAndWarn(ctx context.Context) {
	projects := collect(p.projects.Synced())
	tasks := collect(p.tasks.Synced())
	today := p.now()
	for i := range tasks {
		tasks[i].Derive(p.cfg.SpecialLabels.Goal, today)
	}

	var warnings []string
	for _, rep := range p.analyzer.Analyze(projects, tasks) {
		warnings = append(warnings, rep.Warnings...)
	}
	for _, w := range warnings {
		p.log.Warn("goal consistency", "finding", w)
	}
	if len(warnings) > 0 && !p.warningsSent && p.notifier != nil {
		p.notifier.Send(ctx, notify.FormatWarnings(warnings), notify.Options{})
		p.warningsSent = true
	}
}

// RefreshPlans rolls over expired plans and fans the reports out to the
// notifier. The first message asks the gateway to drop yesterday's report.
func (p *Pipeline) RefreshPlans(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.planner.Load(); err != nil {
		return err
	}

	tasks := collect(p.tasks.Synced())
	if len(tasks) == 0 {
		// Rollover can fire before the first tick of the day.
		if err := p.tasks.Sync(ctx); err != nil {
			return err
		}
		tasks = collect(p.tasks.Synced())
	}
	today := p.now()
	for i := range tasks {
		tasks[i].Derive(p.cfg.SpecialLabels.Goal, today)
	}

	reports, err := p.planner.Refresh(tasks)
	if err != nil {
		return err
	}
	for i, r := range reports {
		p.log.Info("plan rolled over", "horizon", r.Horizon,
			"completed", r.Completed, "not_completed", r.NotCompleted,
			"postponed", r.Postponed, "deleted", r.Deleted, "ratio", r.ComplRatio)
		if p.notifier != nil {
			p.notifier.Send(ctx, notify.FormatReport(r),
				notify.Options{DeletePrevious: i == 0, SaveToDB: true})
		}
	}
	return nil
}

// Report computes the live report of one horizon without rolling it over.
func (p *Pipeline) Report(h models.Horizon) (*planner.Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.planner.Load(); err != nil {
		return nil, err
	}
	return p.planner.ReportFor(h)
}

func collect[T any](m map[string]T) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
