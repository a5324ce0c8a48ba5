// Package planner assigns tasks to horizon-bounded plans and advances each
// task's plan-local status through the configured transition table.
package planner

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avolkov/todoplan/internal/config"
	"github.com/avolkov/todoplan/internal/models"
	"github.com/avolkov/todoplan/internal/store"
)

// Plan is one active horizon plan plus its folded per-task statuses.
type Plan struct {
	models.Plan
	statuses map[string]models.PlanStatus
}

// Status returns the plan-local status of a task, or ok=false when the task
// never entered this plan.
func (p *Plan) Status(taskID string) (models.PlanStatus, bool) {
	st, ok := p.statuses[taskID]
	return st, ok
}

// Planner owns the active plan of every configured horizon.
type Planner struct {
	st          *store.Store
	horizons    map[models.Horizon]config.HorizonCriteria
	transitions map[models.PlanStatus][]models.PlanStatus
	log         *slog.Logger
	now         func() time.Time

	plans map[models.Horizon]*Plan
}

// New creates a planner. Plans are not loaded until Load.
func New(st *store.Store, horizons map[models.Horizon]config.HorizonCriteria,
	transitions map[models.PlanStatus][]models.PlanStatus, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		st:          st,
		horizons:    horizons,
		transitions: transitions,
		log:         logger,
		now:         time.Now,
		plans:       make(map[models.Horizon]*Plan),
	}
}

// SetClock replaces the time source.
func (p *Planner) SetClock(now func() time.Time) { p.now = now }

// Load restores the active plan of every configured horizon, creating plans
// that do not exist yet.
func (p *Planner) Load() error {
	today := dateOf(p.now())
	for _, h := range models.Horizons {
		if _, ok := p.horizons[h]; !ok {
			continue
		}
		plan, err := p.loadOrCreate(h, today)
		if err != nil {
			return err
		}
		p.plans[h] = plan
	}
	return nil
}

func (p *Planner) loadOrCreate(h models.Horizon, today time.Time) (*Plan, error) {
	mp, err := p.st.ActivePlanByHorizon(h)
	if err == nil {
		statuses, err := p.st.TaskStatuses(mp.ID)
		if err != nil {
			return nil, err
		}
		return &Plan{Plan: *mp, statuses: statuses}, nil
	}
	if !errors.Is(err, store.ErrNoPlan) {
		return nil, err
	}
	return p.createPlan(h, today)
}

func (p *Planner) createPlan(h models.Horizon, today time.Time) (*Plan, error) {
	mp := &models.Plan{
		Horizon: h,
		Active:  true,
		Start:   today,
		End:     HorizonEnd(h, today),
	}
	if err := p.st.InsertPlan(mp); err != nil {
		return nil, err
	}
	p.log.Info("plan created", "horizon", h,
		"start", mp.Start.Format(models.DateFormat), "end", mp.End.Format(models.DateFormat))
	return &Plan{Plan: *mp, statuses: make(map[string]models.PlanStatus)}, nil
}

// Plan returns the active plan of a horizon, or nil when the horizon is not
// configured.
func (p *Planner) Plan(h models.Horizon) *Plan { return p.plans[h] }

// fits reports whether a task satisfies a horizon's criteria against its
// active plan. Zero-valued criteria fields are not checked.
func (p *Planner) fits(task *models.Task, h models.Horizon, plan *Plan) bool {
	crit := p.horizons[h]
	if crit.DueDate {
		if task.Due == nil {
			return false
		}
		due, err := task.Due.Time()
		if err != nil {
			return false
		}
		if dateOf(due).After(dateOf(plan.End)) {
			return false
		}
	}
	if crit.Label != "" && !task.HasLabel(crit.Label) {
		return false
	}
	if crit.Priority != 0 && task.Priority != crit.Priority {
		return false
	}
	return true
}

// legal reports whether the transition table allows from → to.
func (p *Planner) legal(from, to models.PlanStatus) bool {
	for _, t := range p.transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// apply records a status for the task in the plan when the transition is
// legal. Illegal transitions are silent no-ops: the table is permissive by
// construction and a blocked move just means there is nothing to record.
func (p *Planner) apply(plan *Plan, task *models.Task, to models.PlanStatus) error {
	from, ok := plan.statuses[task.ID]
	if !ok {
		from = config.StatusNone
	}
	if !p.legal(from, to) {
		return nil
	}
	rec := &models.PlanRecord{
		PlanID:    plan.ID,
		TaskID:    task.ID,
		Status:    to,
		Timestamp: p.now(),
	}
	if err := p.st.AppendPlanRecord(rec); err != nil {
		return err
	}
	plan.statuses[task.ID] = to
	p.log.Debug("plan status", "horizon", plan.Horizon, "task", task.ID, "from", from, "to", to)
	return nil
}

// ProcessTask runs one (task, action) pair through every horizon's state
// machine.
func (p *Planner) ProcessTask(task *models.Task, action models.TaskAction) error {
	for _, h := range models.Horizons {
		plan, ok := p.plans[h]
		if !ok {
			continue
		}
		if err := p.processAgainst(plan, h, task, action); err != nil {
			return err
		}
	}
	return nil
}

func (p *Planner) processAgainst(plan *Plan, h models.Horizon, task *models.Task, action models.TaskAction) error {
	_, inPlan := plan.statuses[task.ID]
	fits := p.fits(task, h, plan)

	switch action {
	case models.ActionAdded, models.ActionLoaded:
		if inPlan {
			// An added task must be unknown to the plan. Observed after
			// missed deletions; the history is kept as-is.
			p.log.Warn("added task already in plan", "horizon", h, "task", task.ID)
			return nil
		}
		if !fits {
			return nil
		}
		return p.apply(plan, task, arrivalStatus(task))

	case models.ActionUpdated, models.ActionCompleted, models.ActionUncompleted:
		if action == models.ActionCompleted && inPlan && task.Due != nil && task.Due.IsRecurring {
			// A completed recurrence never reads as completed on the live
			// task: the server reopens it with the next occurrence's due
			// date, which may already fall outside the plan. Close this
			// instance and plan the next one before any fit check.
			if err := p.apply(plan, task, models.StatusCompletedRecurring); err != nil {
				return err
			}
			return p.apply(plan, task, models.StatusPlanned)
		}
		if !inPlan {
			if fits {
				return p.apply(plan, task, models.StatusPlanned)
			}
			return nil
		}
		if !fits {
			return p.postpone(plan, task)
		}
		if task.IsCompleted {
			return p.apply(plan, task, models.StatusCompleted)
		}
		return p.apply(plan, task, models.StatusPlanned)

	case models.ActionDeleted:
		if !inPlan {
			return nil
		}
		return p.apply(plan, task, models.StatusDeleted)
	}
	return nil
}

// postpone marks a task that no longer fits, unless it is recurring (it will
// fit again) or already counted as done.
func (p *Planner) postpone(plan *Plan, task *models.Task) error {
	if task.Due != nil && task.Due.IsRecurring {
		return nil
	}
	cur := plan.statuses[task.ID]
	if cur == models.StatusCompleted || cur == models.StatusCompletedRecurring {
		return nil
	}
	return p.apply(plan, task, models.StatusPostponed)
}

// arrivalStatus is the first status of a task that enters a plan: tasks can
// arrive already completed or deleted.
func arrivalStatus(task *models.Task) models.PlanStatus {
	switch {
	case task.IsDeleted:
		return models.StatusDeleted
	case task.IsCompleted:
		return models.StatusCompleted
	default:
		return models.StatusPlanned
	}
}

// Refresh rolls over every horizon whose plan has expired: report, deactivate,
// create, reseed from tasks. Returned reports are ordered by horizon span.
func (p *Planner) Refresh(tasks []models.Task) ([]Report, error) {
	today := dateOf(p.now())
	var reports []Report

	for _, h := range models.Horizons {
		plan, ok := p.plans[h]
		if !ok {
			continue
		}
		if !dateOf(plan.End).Before(today) {
			continue
		}

		reports = append(reports, p.reportFor(plan))

		if err := p.st.SetPlanInactive(plan.ID); err != nil {
			return nil, err
		}
		fresh, err := p.createPlan(h, today)
		if err != nil {
			return nil, err
		}
		p.plans[h] = fresh

		for i := range tasks {
			if err := p.processAgainst(fresh, h, &tasks[i], models.ActionLoaded); err != nil {
				return nil, err
			}
		}
	}
	return reports, nil
}

// Report is the terminal accounting of one plan.
type Report struct {
	Horizon        models.Horizon
	Start, End     time.Time
	Completed      int
	NotCompleted   int
	Postponed      int
	Deleted        int
	OverallPlanned int
	ComplRatio     string
}

// ReportFor computes the current report of a horizon's active plan without
// rolling it over.
func (p *Planner) ReportFor(h models.Horizon) (*Report, error) {
	plan, ok := p.plans[h]
	if !ok {
		return nil, fmt.Errorf("horizon %s not configured", h)
	}
	r := p.reportFor(plan)
	return &r, nil
}

func (p *Planner) reportFor(plan *Plan) Report {
	r := Report{Horizon: plan.Horizon, Start: plan.Start, End: plan.End}
	for _, st := range plan.statuses {
		switch st {
		case models.StatusCompleted, models.StatusCompletedRecurring:
			r.Completed++
		case models.StatusPlanned:
			r.NotCompleted++
		case models.StatusPostponed:
			r.Postponed++
		case models.StatusDeleted:
			r.Deleted++
		}
	}
	r.OverallPlanned = r.Completed + r.NotCompleted + r.Postponed + r.Deleted
	if r.Completed+r.NotCompleted > 0 {
		r.ComplRatio = fmt.Sprintf("%.2f%%", float64(r.Completed)/float64(r.Completed+r.NotCompleted)*100)
	} else {
		r.ComplRatio = "0.00%"
	}
	return r
}

// HorizonEnd returns the last day a plan starting at today covers.
func HorizonEnd(h models.Horizon, today time.Time) time.Time {
	today = dateOf(today)
	y, m, _ := today.Date()
	switch h {
	case models.HorizonDay:
		return today
	case models.HorizonWeek:
		// Weeks end on Sunday.
		offset := (7 - int(today.Weekday())) % 7
		return today.AddDate(0, 0, offset)
	case models.HorizonMonth:
		return time.Date(y, m+1, 0, 0, 0, 0, 0, today.Location())
	case models.HorizonQuarter:
		lastMonth := time.Month((int(m-1)/3)*3 + 3)
		return time.Date(y, lastMonth+1, 0, 0, 0, 0, 0, today.Location())
	case models.HorizonYear:
		return time.Date(y, 12, 31, 0, 0, 0, 0, today.Location())
	}
	return today
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
