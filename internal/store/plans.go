package store

import (
	"errors"
	"fmt"

	"github.com/avolkov/todoplan/internal/models"
)

// ErrNoPlan marks a horizon with no active plan yet.
var ErrNoPlan = errors.New("no active plan")

// ActivePlanByHorizon returns the single active plan of a horizon. Multiple
// active plans for one horizon mean the invariant was broken externally and
// the caller must not guess which one to keep.
func (s *Store) ActivePlanByHorizon(h models.Horizon) (*models.Plan, error) {
	rows, err := s.conn.Query(`
		SELECT id, horizon, active, start_date, end_date
		FROM plans WHERE horizon = ? AND active = 1
	`, h)
	if err != nil {
		return nil, fmt.Errorf("active plan %s: %w", h, err)
	}
	defer rows.Close()

	var plans []models.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(plans) {
	case 0:
		return nil, fmt.Errorf("horizon %s: %w", h, ErrNoPlan)
	case 1:
		return &plans[0], nil
	default:
		return nil, fmt.Errorf("horizon %s: %d active plans", h, len(plans))
	}
}

func scanPlan(r rowScanner) (*models.Plan, error) {
	var p models.Plan
	var active int
	if err := r.Scan(&p.ID, &p.Horizon, &active, &p.Start, &p.End); err != nil {
		return nil, err
	}
	p.Active = active != 0
	return &p, nil
}

// InsertPlan stores a new plan and fills in its assigned id.
func (s *Store) InsertPlan(p *models.Plan) error {
	res, err := s.conn.Exec(`
		INSERT INTO plans (horizon, active, start_date, end_date) VALUES (?, ?, ?, ?)
	`, p.Horizon, boolInt(p.Active), p.Start, p.End)
	if err != nil {
		return fmt.Errorf("insert plan %s: %w", p.Horizon, err)
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert plan %s: %w", p.Horizon, err)
	}
	return nil
}

// SetPlanInactive deactivates one plan.
func (s *Store) SetPlanInactive(id int64) error {
	_, err := s.conn.Exec(`UPDATE plans SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivate plan %d: %w", id, err)
	}
	return nil
}

// AppendPlanRecord appends one status record to a plan's task history.
func (s *Store) AppendPlanRecord(rec *models.PlanRecord) error {
	res, err := s.conn.Exec(`
		INSERT INTO tasks_in_plans (task_id, plan_id, status, timestamp) VALUES (?, ?, ?, ?)
	`, rec.TaskID, rec.PlanID, rec.Status, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("append plan record %d/%s: %w", rec.PlanID, rec.TaskID, err)
	}
	rec.RecordID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("append plan record %d/%s: %w", rec.PlanID, rec.TaskID, err)
	}
	return nil
}

// PlanRecords returns a plan's full history ordered by task then time, so a
// task's current status is the last record of its run.
func (s *Store) PlanRecords(planID int64) ([]models.PlanRecord, error) {
	rows, err := s.conn.Query(`
		SELECT record_id, task_id, plan_id, status, timestamp
		FROM tasks_in_plans WHERE plan_id = ?
		ORDER BY task_id, timestamp, record_id
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("plan records %d: %w", planID, err)
	}
	defer rows.Close()

	var recs []models.PlanRecord
	for rows.Next() {
		var rec models.PlanRecord
		if err := rows.Scan(&rec.RecordID, &rec.TaskID, &rec.PlanID, &rec.Status, &rec.Timestamp); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// TaskStatuses folds a plan's history into each task's current status.
func (s *Store) TaskStatuses(planID int64) (map[string]models.PlanStatus, error) {
	recs, err := s.PlanRecords(planID)
	if err != nil {
		return nil, err
	}
	statuses := make(map[string]models.PlanStatus, len(recs))
	for _, rec := range recs {
		statuses[rec.TaskID] = rec.Status
	}
	return statuses, nil
}
