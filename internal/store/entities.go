package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avolkov/todoplan/internal/models"
)

// LoadTasks reads all task rows.
func (s *Store) LoadTasks() ([]models.Task, error) {
	rows, err := s.conn.Query(`
		SELECT id, content, description, priority, project_id, section_id, parent_id,
		       labels, due, url, is_completed, is_deleted
		FROM tasks
	`)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// GetTask reads a single task row, returning nil when absent.
func (s *Store) GetTask(id string) (*models.Task, error) {
	row := s.conn.QueryRow(`
		SELECT id, content, description, priority, project_id, section_id, parent_id,
		       labels, due, url, is_completed, is_deleted
		FROM tasks WHERE id = ?
	`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(r rowScanner) (*models.Task, error) {
	var t models.Task
	var labels string
	var due sql.NullString
	var completed, deleted int

	err := r.Scan(&t.ID, &t.Content, &t.Description, &t.Priority, &t.ProjectID,
		&t.SectionID, &t.ParentID, &labels, &due, &t.URL, &completed, &deleted)
	if err != nil {
		return nil, err
	}

	if labels != "" {
		if err := json.Unmarshal([]byte(labels), &t.Labels); err != nil {
			return nil, fmt.Errorf("task %s: parse labels: %w", t.ID, err)
		}
	}
	if due.Valid && due.String != "" {
		var d models.Due
		if err := json.Unmarshal([]byte(due.String), &d); err != nil {
			return nil, fmt.Errorf("task %s: parse due: %w", t.ID, err)
		}
		t.Due = &d
	}
	t.IsCompleted = completed != 0
	t.IsDeleted = deleted != 0
	return &t, nil
}

func taskArgs(t *models.Task) ([]any, error) {
	labels, err := json.Marshal(t.Labels)
	if err != nil {
		return nil, fmt.Errorf("task %s: marshal labels: %w", t.ID, err)
	}
	var due any
	if t.Due != nil {
		b, err := json.Marshal(t.Due)
		if err != nil {
			return nil, fmt.Errorf("task %s: marshal due: %w", t.ID, err)
		}
		due = string(b)
	}
	return []any{t.Content, t.Description, t.Priority, t.ProjectID, t.SectionID,
		t.ParentID, string(labels), due, t.URL, boolInt(t.IsCompleted), boolInt(t.IsDeleted)}, nil
}

// SaveTasks persists a batch of tasks in the given mode.
func (s *Store) SaveTasks(tasks []models.Task, mode SaveMode) error {
	return s.inTx(func(tx *sql.Tx) error {
		if mode == SaveDeleteAll {
			if _, err := tx.Exec(`DELETE FROM tasks`); err != nil {
				return fmt.Errorf("truncate tasks: %w", err)
			}
		}
		for i := range tasks {
			args, err := taskArgs(&tasks[i])
			if err != nil {
				return err
			}
			switch mode {
			case SaveUpdate:
				_, err = tx.Exec(`
					UPDATE tasks SET content=?, description=?, priority=?, project_id=?, section_id=?,
					                 parent_id=?, labels=?, due=?, url=?, is_completed=?, is_deleted=?
					WHERE id=?
				`, append(args, tasks[i].ID)...)
			default:
				_, err = tx.Exec(`
					INSERT OR IGNORE INTO tasks (content, description, priority, project_id, section_id,
					                             parent_id, labels, due, url, is_completed, is_deleted, id)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				`, append(args, tasks[i].ID)...)
			}
			if err != nil {
				return fmt.Errorf("save task %s: %w", tasks[i].ID, err)
			}
		}
		return nil
	})
}

// LoadProjects reads all project rows.
func (s *Store) LoadProjects() ([]models.Project, error) {
	rows, err := s.conn.Query(`SELECT id, name, parent_id, color, url, is_inbox, is_favorite FROM projects`)
	if err != nil {
		return nil, fmt.Errorf("load projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var p models.Project
		var inbox, favorite int
		if err := rows.Scan(&p.ID, &p.Name, &p.ParentID, &p.Color, &p.URL, &inbox, &favorite); err != nil {
			return nil, err
		}
		p.IsInbox = inbox != 0
		p.IsFavorite = favorite != 0
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// SaveProjects persists a batch of projects in the given mode.
func (s *Store) SaveProjects(projects []models.Project, mode SaveMode) error {
	return s.inTx(func(tx *sql.Tx) error {
		if mode == SaveDeleteAll {
			if _, err := tx.Exec(`DELETE FROM projects`); err != nil {
				return fmt.Errorf("truncate projects: %w", err)
			}
		}
		for _, p := range projects {
			var err error
			switch mode {
			case SaveUpdate:
				_, err = tx.Exec(`UPDATE projects SET name=?, parent_id=?, color=?, url=?, is_inbox=?, is_favorite=? WHERE id=?`,
					p.Name, p.ParentID, p.Color, p.URL, boolInt(p.IsInbox), boolInt(p.IsFavorite), p.ID)
			default:
				_, err = tx.Exec(`INSERT OR IGNORE INTO projects (name, parent_id, color, url, is_inbox, is_favorite, id) VALUES (?, ?, ?, ?, ?, ?, ?)`,
					p.Name, p.ParentID, p.Color, p.URL, boolInt(p.IsInbox), boolInt(p.IsFavorite), p.ID)
			}
			if err != nil {
				return fmt.Errorf("save project %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

// LoadSections reads all section rows.
func (s *Store) LoadSections() ([]models.Section, error) {
	rows, err := s.conn.Query(`SELECT id, name, project_id, item_order FROM sections`)
	if err != nil {
		return nil, fmt.Errorf("load sections: %w", err)
	}
	defer rows.Close()

	var sections []models.Section
	for rows.Next() {
		var sec models.Section
		if err := rows.Scan(&sec.ID, &sec.Name, &sec.ProjectID, &sec.Order); err != nil {
			return nil, err
		}
		sections = append(sections, sec)
	}
	return sections, rows.Err()
}

// SaveSections persists a batch of sections in the given mode.
func (s *Store) SaveSections(sections []models.Section, mode SaveMode) error {
	return s.inTx(func(tx *sql.Tx) error {
		if mode == SaveDeleteAll {
			if _, err := tx.Exec(`DELETE FROM sections`); err != nil {
				return fmt.Errorf("truncate sections: %w", err)
			}
		}
		for _, sec := range sections {
			var err error
			switch mode {
			case SaveUpdate:
				_, err = tx.Exec(`UPDATE sections SET name=?, project_id=?, item_order=? WHERE id=?`,
					sec.Name, sec.ProjectID, sec.Order, sec.ID)
			default:
				_, err = tx.Exec(`INSERT OR IGNORE INTO sections (name, project_id, item_order, id) VALUES (?, ?, ?, ?)`,
					sec.Name, sec.ProjectID, sec.Order, sec.ID)
			}
			if err != nil {
				return fmt.Errorf("save section %s: %w", sec.ID, err)
			}
		}
		return nil
	})
}

// LoadLabels reads all label rows.
func (s *Store) LoadLabels() ([]models.Label, error) {
	rows, err := s.conn.Query(`SELECT id, name, color, is_favorite FROM labels`)
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}
	defer rows.Close()

	var labels []models.Label
	for rows.Next() {
		var l models.Label
		var favorite int
		if err := rows.Scan(&l.ID, &l.Name, &l.Color, &favorite); err != nil {
			return nil, err
		}
		l.IsFavorite = favorite != 0
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// SaveLabels persists a batch of labels in the given mode.
func (s *Store) SaveLabels(labels []models.Label, mode SaveMode) error {
	return s.inTx(func(tx *sql.Tx) error {
		if mode == SaveDeleteAll {
			if _, err := tx.Exec(`DELETE FROM labels`); err != nil {
				return fmt.Errorf("truncate labels: %w", err)
			}
		}
		for _, l := range labels {
			var err error
			switch mode {
			case SaveUpdate:
				_, err = tx.Exec(`UPDATE labels SET name=?, color=?, is_favorite=? WHERE id=?`,
					l.Name, l.Color, boolInt(l.IsFavorite), l.ID)
			default:
				_, err = tx.Exec(`INSERT OR IGNORE INTO labels (name, color, is_favorite, id) VALUES (?, ?, ?, ?)`,
					l.Name, l.Color, boolInt(l.IsFavorite), l.ID)
			}
			if err != nil {
				return fmt.Errorf("save label %s: %w", l.ID, err)
			}
		}
		return nil
	})
}

// LoadEvents reads all persisted events.
func (s *Store) LoadEvents() ([]models.Event, error) {
	rows, err := s.conn.Query(`
		SELECT id, event_date, event_type, object_type, object_id, extra_data,
		       initiator_id, parent_item_id, parent_project_id
		FROM events
	`)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var e models.Event
		var extra string
		// DATETIME columns come back from the driver as time.Time.
		if err := rows.Scan(&e.ID, &e.EventDate, &e.EventType, &e.ObjectType, &e.ObjectID,
			&extra, &e.InitiatorID, &e.ParentItemID, &e.ParentProjectID); err != nil {
			return nil, err
		}
		if extra != "" {
			if err := json.Unmarshal([]byte(extra), &e.ExtraData); err != nil {
				return nil, fmt.Errorf("event %s: parse extra_data: %w", e.ID, err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// SaveEvents persists events. Events are insert-only; existing ids are left
// untouched regardless of mode.
func (s *Store) SaveEvents(events []models.Event) error {
	return s.inTx(func(tx *sql.Tx) error {
		for _, e := range events {
			extra, err := json.Marshal(e.ExtraData)
			if err != nil {
				return fmt.Errorf("event %s: marshal extra_data: %w", e.ID, err)
			}
			_, err = tx.Exec(`
				INSERT OR IGNORE INTO events (id, event_date, event_type, object_type, object_id,
				                              extra_data, initiator_id, parent_item_id, parent_project_id)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, e.ID, e.EventDate, e.EventType, e.ObjectType, e.ObjectID,
				string(extra), e.InitiatorID, e.ParentItemID, e.ParentProjectID)
			if err != nil {
				return fmt.Errorf("save event %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

// EventsByObjectID returns the persisted history of one object, oldest first.
func (s *Store) EventsByObjectID(objectID string) ([]models.Event, error) {
	rows, err := s.conn.Query(`
		SELECT id, event_date, event_type, object_type, object_id, extra_data,
		       initiator_id, parent_item_id, parent_project_id
		FROM events WHERE object_id = ?
		ORDER BY event_date, id
	`, objectID)
	if err != nil {
		return nil, fmt.Errorf("events for %s: %w", objectID, err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var e models.Event
		var extra string
		if err := rows.Scan(&e.ID, &e.EventDate, &e.EventType, &e.ObjectType, &e.ObjectID,
			&extra, &e.InitiatorID, &e.ParentItemID, &e.ParentProjectID); err != nil {
			return nil, err
		}
		if extra != "" {
			if err := json.Unmarshal([]byte(extra), &e.ExtraData); err != nil {
				return nil, fmt.Errorf("event %s: parse extra_data: %w", e.ID, err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// MaxEventDate returns the newest persisted event timestamp. ok is false on
// an empty event table.
func (s *Store) MaxEventDate() (t time.Time, ok bool, err error) {
	// Selecting the column directly keeps its DATETIME declaration, so the
	// driver hands back a time.Time; an aggregate would lose it.
	err = s.conn.QueryRow(`SELECT event_date FROM events ORDER BY event_date DESC LIMIT 1`).Scan(&t)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("max event date: %w", err)
	}
	return t, true, nil
}

func (s *Store) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
