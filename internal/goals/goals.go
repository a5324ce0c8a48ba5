// Package goals analyzes the project tree for goal consistency: every
// sub-project should carry active goals, every goal a due envelope that
// matches its steps, and every "success" step should close the goal.
package goals

import (
	"fmt"
	"log/slog"

	"github.com/avolkov/todoplan/internal/models"
)

// Analyzer walks fully synced project and task snapshots.
type Analyzer struct {
	goalLabel    string
	successLabel string
	log          *slog.Logger
}

// New creates an analyzer for the configured special labels.
func New(goalLabel, successLabel string, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{goalLabel: goalLabel, successLabel: successLabel, log: logger}
}

// GoalReport is the analysis of one active goal.
type GoalReport struct {
	Goal         models.Task
	Earliest     *models.Task
	Latest       *models.Task
	StartDate    string
	EndDate      string
	SuccessSteps []models.Task
}

// ProjectReport is the analysis of one project.
type ProjectReport struct {
	Project   models.Project
	StartDate string
	EndDate   string
	Goals     []GoalReport
	Warnings  []string
}

// Analyze produces a report per project. Tasks must carry their derived
// attributes (Task.Derive). Tasks referencing unknown projects or parents are
// skipped; the snapshots may be mid-sync.
func (a *Analyzer) Analyze(projects []models.Project, tasks []models.Task) []ProjectReport {
	byProject := make(map[string][]*models.Task)
	byParent := make(map[string][]*models.Task)
	knownProjects := make(map[string]bool, len(projects))
	for _, p := range projects {
		knownProjects[p.ID] = true
	}
	knownTasks := make(map[string]bool, len(tasks))
	for i := range tasks {
		knownTasks[tasks[i].ID] = true
	}

	for i := range tasks {
		t := &tasks[i]
		if t.IsDeleted {
			continue
		}
		if !knownProjects[t.ProjectID] {
			a.log.Debug("task references unknown project", "task", t.ID, "project", t.ProjectID)
			continue
		}
		byProject[t.ProjectID] = append(byProject[t.ProjectID], t)
		if t.ParentID != "" {
			if !knownTasks[t.ParentID] {
				a.log.Debug("task references unknown parent", "task", t.ID, "parent", t.ParentID)
				continue
			}
			byParent[t.ParentID] = append(byParent[t.ParentID], t)
		}
	}

	var reports []ProjectReport
	for _, p := range projects {
		reports = append(reports, a.analyzeProject(p, byProject[p.ID], byParent))
	}
	return reports
}

func (a *Analyzer) analyzeProject(p models.Project, tasks []*models.Task, byParent map[string][]*models.Task) ProjectReport {
	report := ProjectReport{Project: p}

	var allSteps []*models.Task
	for _, t := range tasks {
		if !t.IsActiveGoal {
			continue
		}
		gr := a.analyzeGoal(t, byParent[t.ID], &report)
		report.Goals = append(report.Goals, gr)
		allSteps = append(allSteps, byParent[t.ID]...)
	}

	if earliest := extremeDue(allSteps, false); earliest != nil {
		report.StartDate = earliest.Due.Date
	}
	if latest := extremeDue(allSteps, true); latest != nil {
		report.EndDate = latest.Due.Date
	}

	// Root projects aggregate others and the inbox is a catch-all; only
	// sub-projects are expected to be goal-driven.
	if p.ParentID != "" && !p.IsInbox {
		if len(report.Goals) == 0 {
			report.Warnings = append(report.Warnings,
				projectWarning(p, "Project with no active goals"))
		}
		if report.StartDate == "" || report.EndDate == "" {
			report.Warnings = append(report.Warnings,
				projectWarning(p, "Project with no planned duration"))
		}
	}
	return report
}

func (a *Analyzer) analyzeGoal(goal *models.Task, steps []*models.Task, report *ProjectReport) GoalReport {
	gr := GoalReport{Goal: *goal}

	if len(steps) == 0 {
		report.Warnings = append(report.Warnings, goalWarning(goal, "Goal without subtasks"))
		return gr
	}

	gr.Earliest = extremeDue(steps, false)
	gr.Latest = extremeDue(steps, true)
	if gr.Earliest != nil {
		gr.StartDate = gr.Earliest.Due.Date
	}
	if gr.Latest != nil {
		gr.EndDate = gr.Latest.Due.Date
	}
	for _, s := range steps {
		if s.HasLabel(a.successLabel) {
			gr.SuccessSteps = append(gr.SuccessSteps, *s)
		}
	}

	if gr.Latest != nil {
		switch {
		case goal.Due == nil:
			report.Warnings = append(report.Warnings,
				goalWarning(goal, "Goal doesn't have due, steps have"))
		case goal.Due.Date != gr.Latest.Due.Date:
			report.Warnings = append(report.Warnings,
				goalWarning(goal, "Goal due is not equal to the last step due"))
		}
	}

	for _, s := range gr.SuccessSteps {
		if gr.Latest != nil && s.Due != nil && s.ID != gr.Latest.ID {
			report.Warnings = append(report.Warnings,
				goalWarning(goal, `"Success" step is not the last`))
			break
		}
	}
	return gr
}

// extremeDue picks the latest (or earliest) dated task. Ties on due.date are
// broken by datetime presence, then by the datetime itself.
func extremeDue(tasks []*models.Task, latest bool) *models.Task {
	var dated []*models.Task
	for _, t := range tasks {
		if t.Due != nil && t.Due.Date != "" {
			dated = append(dated, t)
		}
	}
	if len(dated) == 0 {
		return nil
	}
	best := dated[0]
	for _, t := range dated[1:] {
		if beats(t.Due, best.Due, latest) {
			best = t
		}
	}
	return best
}

// beats reports whether a outranks b for the given direction. On equal dates
// a datetime outranks a bare date regardless of direction.
func beats(a, b *models.Due, latest bool) bool {
	if a.Date != b.Date {
		if latest {
			return a.Date > b.Date
		}
		return a.Date < b.Date
	}
	aHas, bHas := a.Datetime != "", b.Datetime != ""
	switch {
	case aHas && !bHas:
		return true
	case !aHas:
		return false
	}
	if latest {
		return a.Datetime > b.Datetime
	}
	return a.Datetime < b.Datetime
}

func goalWarning(goal *models.Task, msg string) string {
	return fmt.Sprintf(`<a href="%s">%s</a>. %s`, goal.URL, goal.Content, msg)
}

func projectWarning(p models.Project, msg string) string {
	return fmt.Sprintf(`<a href="%s">%s</a>. %s`, p.URL, p.Name, msg)
}
