package models

import "time"

// Horizon is the time window a plan covers.
type Horizon string

const (
	HorizonDay     Horizon = "day"
	HorizonWeek    Horizon = "week"
	HorizonMonth   Horizon = "month"
	HorizonQuarter Horizon = "quarter"
	HorizonYear    Horizon = "year"
)

// Horizons lists all horizons in ascending span order.
var Horizons = []Horizon{HorizonDay, HorizonWeek, HorizonMonth, HorizonQuarter, HorizonYear}

// PlanStatus is a task's plan-local status, derived as the last record by
// timestamp for a (plan, task) pair.
type PlanStatus string

const (
	StatusPlanned            PlanStatus = "planned"
	StatusPostponed          PlanStatus = "postponed"
	StatusCompleted          PlanStatus = "completed"
	StatusCompletedRecurring PlanStatus = "completed_recurring"
	StatusDeleted            PlanStatus = "deleted"
)

// TaskAction is a remote mutation kind the diff engine hands to the planner.
type TaskAction string

const (
	ActionAdded       TaskAction = "added"
	ActionUpdated     TaskAction = "updated"
	ActionCompleted   TaskAction = "completed"
	ActionUncompleted TaskAction = "uncompleted"
	ActionDeleted     TaskAction = "deleted"
	ActionLoaded      TaskAction = "loaded"
)

// Plan is one horizon-bounded plan row. Records are append-only and live in
// tasks_in_plans.
type Plan struct {
	ID      int64     `json:"id"`
	Horizon Horizon   `json:"horizon"`
	Active  bool      `json:"active"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// PlanRecord is one row of a plan's append-only task history.
type PlanRecord struct {
	RecordID  int64      `json:"record_id"`
	PlanID    int64      `json:"plan_id"`
	TaskID    string     `json:"task_id"`
	Status    PlanStatus `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
}
