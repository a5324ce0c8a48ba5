package models

import (
	"time"
)

// DateFormat is the wire format for due dates.
const DateFormat = "2006-01-02"

// DatetimeFormats are the accepted wire formats for due datetimes and event
// timestamps, in the order they are tried.
var DatetimeFormats = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05.000Z",
}

// Due is the due structure attached to a task.
// String is re-rendered server-side (at midnight, in the task's locale) and
// carries no information the other fields don't; comparisons that decide
// whether a task changed must ignore it.
type Due struct {
	Date        string `json:"date"`
	Datetime    string `json:"datetime,omitempty"`
	IsRecurring bool   `json:"is_recurring"`
	Timezone    string `json:"timezone,omitempty"`
	String      string `json:"string"`
}

// Time parses the due date. The time component is taken from Datetime when
// present.
func (d *Due) Time() (time.Time, error) {
	if d.Datetime != "" {
		return ParseDatetime(d.Datetime)
	}
	return time.Parse(DateFormat, d.Date)
}

// SameExceptString reports whether two due records are equal in every field
// but String.
func (d *Due) SameExceptString(other *Due) bool {
	if d == nil || other == nil {
		return false
	}
	return d.Date == other.Date &&
		d.Datetime == other.Datetime &&
		d.IsRecurring == other.IsRecurring &&
		d.Timezone == other.Timezone
}

// ParseDatetime tries each accepted datetime layout in turn.
func ParseDatetime(s string) (time.Time, error) {
	var err error
	var t time.Time
	for _, layout := range DatetimeFormats {
		if t, err = time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

// Task mirrors a Todoist task plus the derived planning attributes.
// The derived booleans are recomputed by Derive and never treated as truth
// when read back from storage.
type Task struct {
	ID          string   `json:"id"`
	Content     string   `json:"content"`
	Description string   `json:"description,omitempty"`
	Priority    int      `json:"priority"`
	ProjectID   string   `json:"project_id"`
	SectionID   string   `json:"section_id,omitempty"`
	ParentID    string   `json:"parent_id,omitempty"`
	Labels      []string `json:"labels,omitempty"`
	Due         *Due     `json:"due,omitempty"`
	URL         string   `json:"url,omitempty"`
	IsCompleted bool     `json:"is_completed"`
	IsDeleted   bool     `json:"is_deleted"`

	IsGoal          bool `json:"is_goal"`
	IsActiveGoal    bool `json:"is_active_goal"`
	IsActiveWithDue bool `json:"is_active_with_due"`
	IsActiveNoDue   bool `json:"is_active_no_due"`
	IsActive        bool `json:"is_active"`
	IsInFocus       bool `json:"is_in_focus"`
}

// Derive recomputes the derived attributes from the core fields.
// goalLabel is the configured GOAL label name; today anchors the focus check.
func (t *Task) Derive(goalLabel string, today time.Time) {
	t.IsGoal = t.HasLabel(goalLabel)
	t.IsActiveGoal = !t.IsCompleted && t.IsGoal && (t.Priority == 3 || t.Priority == 4)
	t.IsActiveWithDue = !t.IsCompleted && (t.Priority == 3 || t.Priority == 4) && t.Due != nil
	t.IsActiveNoDue = !t.IsCompleted && (t.Priority == 2 || t.Priority == 4) && t.Due == nil
	t.IsActive = t.IsActiveGoal || t.IsActiveWithDue || t.IsActiveNoDue
	t.IsInFocus = t.isInFocus(today)
}

func (t *Task) isInFocus(today time.Time) bool {
	if t.IsCompleted || t.IsGoal {
		return false
	}
	if t.IsActiveNoDue {
		return true
	}
	if t.IsActiveWithDue {
		due, err := time.Parse(DateFormat, t.Due.Date)
		if err != nil {
			return false
		}
		y, m, d := today.Date()
		return !due.After(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
	}
	return false
}

// HasLabel reports whether the task carries the given label.
func (t *Task) HasLabel(label string) bool {
	for _, l := range t.Labels {
		if l == label {
			return true
		}
	}
	return false
}
