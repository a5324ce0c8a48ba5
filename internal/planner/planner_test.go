package planner

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/avolkov/todoplan/internal/config"
	"github.com/avolkov/todoplan/internal/models"
	"github.com/avolkov/todoplan/internal/store"
)

func testPlanner(t *testing.T, now time.Time) (*Planner, *store.Store) {
	t.Helper()
	st, err := store.Initialize(filepath.Join(t.TempDir(), "todoplan.db"))
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	p := New(st, config.DefaultHorizons("GOAL"), config.DefaultTransitions(), nil)
	p.now = func() time.Time { return now }
	if err := p.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return p, st
}

func dueTask(id, date string) *models.Task {
	return &models.Task{ID: id, Content: "task " + id, Due: &models.Due{Date: date}}
}

func TestHorizonEnd(t *testing.T) {
	// 2026-08-25 is a Tuesday.
	today := time.Date(2026, 8, 25, 14, 30, 0, 0, time.UTC)
	cases := []struct {
		horizon models.Horizon
		want    string
	}{
		{models.HorizonDay, "2026-08-25"},
		{models.HorizonWeek, "2026-08-30"},
		{models.HorizonMonth, "2026-08-31"},
		{models.HorizonQuarter, "2026-09-30"},
		{models.HorizonYear, "2026-12-31"},
	}
	for _, c := range cases {
		if got := HorizonEnd(c.horizon, today).Format(models.DateFormat); got != c.want {
			t.Errorf("HorizonEnd(%s) = %s, want %s", c.horizon, got, c.want)
		}
	}

	// A Sunday week plan ends the same day.
	sunday := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	if got := HorizonEnd(models.HorizonWeek, sunday).Format(models.DateFormat); got != "2026-08-30" {
		t.Errorf("HorizonEnd(week, sunday) = %s, want 2026-08-30", got)
	}

	// Quarter boundary: December belongs to Q4.
	dec := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	if got := HorizonEnd(models.HorizonQuarter, dec).Format(models.DateFormat); got != "2026-12-31" {
		t.Errorf("HorizonEnd(quarter, dec) = %s, want 2026-12-31", got)
	}
}

func TestLoadCreatesPlans(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	p, st := testPlanner(t, now)

	for _, h := range models.Horizons {
		plan := p.Plan(h)
		if plan == nil {
			t.Fatalf("no plan for %s", h)
		}
		if !plan.Active {
			t.Errorf("%s plan inactive", h)
		}
		if got := plan.Start.Format(models.DateFormat); got != "2026-08-25" {
			t.Errorf("%s start = %s", h, got)
		}
	}

	// A second Load picks up the same plans instead of creating more.
	p2 := New(st, config.DefaultHorizons("GOAL"), config.DefaultTransitions(), nil)
	p2.now = p.now
	if err := p2.Load(); err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if p2.Plan(models.HorizonDay).ID != p.Plan(models.HorizonDay).ID {
		t.Error("second Load created a new day plan")
	}
}

func TestAddedTaskPlanned(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	p, _ := testPlanner(t, now)

	task := dueTask("1", "2026-08-25")
	if err := p.ProcessTask(task, models.ActionAdded); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}

	if got, ok := p.Plan(models.HorizonDay).Status("1"); !ok || got != models.StatusPlanned {
		t.Errorf("day status = %s ok=%v, want planned", got, ok)
	}
	if got, ok := p.Plan(models.HorizonWeek).Status("1"); !ok || got != models.StatusPlanned {
		t.Errorf("week status = %s ok=%v, want planned", got, ok)
	}
	// No GOAL label: longer horizons ignore it.
	if _, ok := p.Plan(models.HorizonMonth).Status("1"); ok {
		t.Error("month plan picked up a non-goal task")
	}
}

func TestGoalFitsLongHorizons(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	p, _ := testPlanner(t, now)

	goal := &models.Task{ID: "g1", Content: "Ship v2", Labels: []string{"GOAL"}, Priority: 3}
	if err := p.ProcessTask(goal, models.ActionAdded); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}

	for _, h := range []models.Horizon{models.HorizonMonth, models.HorizonQuarter, models.HorizonYear} {
		if got, ok := p.Plan(h).Status("g1"); !ok || got != models.StatusPlanned {
			t.Errorf("%s status = %s ok=%v, want planned", h, got, ok)
		}
	}
	if _, ok := p.Plan(models.HorizonDay).Status("g1"); ok {
		t.Error("day plan picked up a goal without due")
	}
}

func TestDueBeyondPlanEndDoesNotFit(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	p, _ := testPlanner(t, now)

	task := dueTask("1", "2026-08-28") // Friday: fits week, not day
	if err := p.ProcessTask(task, models.ActionAdded); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
	if _, ok := p.Plan(models.HorizonDay).Status("1"); ok {
		t.Error("day plan accepted a task due past plan end")
	}
	if got, _ := p.Plan(models.HorizonWeek).Status("1"); got != models.StatusPlanned {
		t.Errorf("week status = %s, want planned", got)
	}
}

func TestCompleteThenDelete(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	p, _ := testPlanner(t, now)

	task := dueTask("1", "2026-08-25")
	if err := p.ProcessTask(task, models.ActionAdded); err != nil {
		t.Fatalf("add: %v", err)
	}

	task.IsCompleted = true
	if err := p.ProcessTask(task, models.ActionCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got, _ := p.Plan(models.HorizonDay).Status("1"); got != models.StatusCompleted {
		t.Errorf("status = %s, want completed", got)
	}

	task.IsDeleted = true
	if err := p.ProcessTask(task, models.ActionDeleted); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := p.Plan(models.HorizonDay).Status("1"); got != models.StatusDeleted {
		t.Errorf("status = %s, want deleted", got)
	}

	// deleted is terminal.
	task.IsDeleted = false
	task.IsCompleted = false
	if err := p.ProcessTask(task, models.ActionUpdated); err != nil {
		t.Fatalf("update after delete: %v", err)
	}
	if got, _ := p.Plan(models.HorizonDay).Status("1"); got != models.StatusDeleted {
		t.Errorf("status after terminal = %s, want deleted", got)
	}
}

func TestRecurringCompletionPair(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	p, st := testPlanner(t, now)

	task := &models.Task{ID: "r1", Content: "daily review",
		Due: &models.Due{Date: "2026-08-25", IsRecurring: true, String: "every day"}}
	if err := p.ProcessTask(task, models.ActionAdded); err != nil {
		t.Fatalf("add: %v", err)
	}

	// Completing a recurrence reopens the task on the server: the live state
	// stays is_completed=false with the due date advanced past the day plan.
	task.IsCompleted = false
	task.Due.Date = "2026-08-26"
	if err := p.ProcessTask(task, models.ActionCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if got, _ := p.Plan(models.HorizonDay).Status("r1"); got != models.StatusPlanned {
		t.Errorf("status = %s, want planned (next instance)", got)
	}
	recs, err := st.PlanRecords(p.Plan(models.HorizonDay).ID)
	if err != nil {
		t.Fatalf("PlanRecords: %v", err)
	}
	var seq []models.PlanStatus
	for _, r := range recs {
		if r.TaskID == "r1" {
			seq = append(seq, r.Status)
		}
	}
	want := []models.PlanStatus{models.StatusPlanned, models.StatusCompletedRecurring, models.StatusPlanned}
	if len(seq) != len(want) {
		t.Fatalf("record sequence = %v, want %v", seq, want)
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("record sequence = %v, want %v", seq, want)
		}
	}
}

func TestNoLongerFitsPostponed(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	p, _ := testPlanner(t, now)

	task := dueTask("1", "2026-08-25")
	if err := p.ProcessTask(task, models.ActionAdded); err != nil {
		t.Fatalf("add: %v", err)
	}

	task.Due.Date = "2026-09-10"
	if err := p.ProcessTask(task, models.ActionUpdated); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got, _ := p.Plan(models.HorizonDay).Status("1"); got != models.StatusPostponed {
		t.Errorf("day status = %s, want postponed", got)
	}
	if got, _ := p.Plan(models.HorizonWeek).Status("1"); got != models.StatusPostponed {
		t.Errorf("week status = %s, want postponed", got)
	}
}

func TestAddedAlreadyInPlanWarnsAndSkips(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	p, st := testPlanner(t, now)

	task := dueTask("1", "2026-08-25")
	if err := p.ProcessTask(task, models.ActionAdded); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := p.ProcessTask(task, models.ActionAdded); err != nil {
		t.Fatalf("re-add: %v", err)
	}

	recs, err := st.PlanRecords(p.Plan(models.HorizonDay).ID)
	if err != nil {
		t.Fatalf("PlanRecords: %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("re-add appended records: %v", recs)
	}
}

func TestRefreshRollsOverExpiredPlan(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	p, st := testPlanner(t, now)
	dayID := p.Plan(models.HorizonDay).ID

	// Three completed, two planned, one postponed.
	for i, status := range []models.PlanStatus{
		models.StatusCompleted, models.StatusCompleted, models.StatusCompleted,
		models.StatusPlanned, models.StatusPlanned, models.StatusPostponed,
	} {
		id := string(rune('a' + i))
		task := dueTask(id, "2026-08-25")
		if err := p.ProcessTask(task, models.ActionAdded); err != nil {
			t.Fatalf("add: %v", err)
		}
		switch status {
		case models.StatusCompleted:
			task.IsCompleted = true
			if err := p.ProcessTask(task, models.ActionCompleted); err != nil {
				t.Fatalf("complete: %v", err)
			}
		case models.StatusPostponed:
			task.Due.Date = "2026-09-10"
			if err := p.ProcessTask(task, models.ActionUpdated); err != nil {
				t.Fatalf("postpone: %v", err)
			}
		}
	}

	// Next day: the day plan expired, longer horizons did not.
	p.now = func() time.Time { return time.Date(2026, 8, 26, 0, 11, 0, 0, time.UTC) }
	carry := []models.Task{*dueTask("z", "2026-08-26")}
	reports, err := p.Refresh(carry)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("got %d reports, want 1 (day only)", len(reports))
	}

	r := reports[0]
	if r.Horizon != models.HorizonDay {
		t.Errorf("report horizon = %s", r.Horizon)
	}
	if r.Completed != 3 || r.NotCompleted != 2 || r.Postponed != 1 || r.Deleted != 0 {
		t.Errorf("report counts = %+v", r)
	}
	if r.OverallPlanned != 6 {
		t.Errorf("overall_planned = %d, want 6", r.OverallPlanned)
	}
	if r.ComplRatio != "60.00%" {
		t.Errorf("compl_ratio = %q, want 60.00%%", r.ComplRatio)
	}

	// Old plan is inactive, new plan covers the new day and carries the seed.
	if _, err := st.ActivePlanByHorizon(models.HorizonDay); err != nil {
		t.Fatalf("ActivePlanByHorizon: %v", err)
	}
	fresh := p.Plan(models.HorizonDay)
	if fresh.ID == dayID {
		t.Error("day plan was not replaced")
	}
	if got := fresh.Start.Format(models.DateFormat); got != "2026-08-26" {
		t.Errorf("new plan start = %s", got)
	}
	if got := fresh.End.Format(models.DateFormat); got != "2026-08-26" {
		t.Errorf("new plan end = %s", got)
	}
	if got, ok := fresh.Status("z"); !ok || got != models.StatusPlanned {
		t.Errorf("seeded task status = %s ok=%v, want planned", got, ok)
	}
}

func TestReportZeroDivision(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	p, _ := testPlanner(t, now)

	r, err := p.ReportFor(models.HorizonDay)
	if err != nil {
		t.Fatalf("ReportFor: %v", err)
	}
	if r.ComplRatio != "0.00%" {
		t.Errorf("compl_ratio on empty plan = %q, want 0.00%%", r.ComplRatio)
	}
}
