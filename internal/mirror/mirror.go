// Package mirror keeps an in-memory snapshot of each entity collection as the
// database knows it next to the freshly synced remote state, and answers the
// set-algebra questions the pipeline asks: what is new, what is gone, what
// changed.
package mirror

import (
	"context"
	"fmt"

	"github.com/avolkov/todoplan/internal/models"
	"github.com/avolkov/todoplan/internal/store"
)

// Entity is anything with a stable string id.
type Entity interface {
	models.Task | models.Project | models.Section | models.Label
}

// Snapshot holds the current collection as the database knows it next to the
// freshly synced remote state. Both maps are nil until the first successful
// Load/Sync, so a failed refresh never masquerades as an empty collection.
type Snapshot[T Entity] struct {
	current map[string]T
	synced  map[string]T
	id      func(T) string
	changed func(old, new T) bool
}

func newSnapshot[T Entity](id func(T) string, changed func(old, new T) bool) *Snapshot[T] {
	return &Snapshot[T]{id: id, changed: changed}
}

func (s *Snapshot[T]) setCurrent(items []T) {
	m := make(map[string]T, len(items))
	for _, it := range items {
		m[s.id(it)] = it
	}
	s.current = m
}

func (s *Snapshot[T]) setSynced(items []T) {
	m := make(map[string]T, len(items))
	for _, it := range items {
		m[s.id(it)] = it
	}
	s.synced = m
}

// Current returns the persisted collection keyed by id.
func (s *Snapshot[T]) Current() map[string]T { return s.current }

// Synced returns the freshly synced remote collection keyed by id.
func (s *Snapshot[T]) Synced() map[string]T { return s.synced }

// New returns synced items absent from current.
func (s *Snapshot[T]) New() []T {
	var out []T
	for id, it := range s.synced {
		if _, ok := s.current[id]; !ok {
			out = append(out, it)
		}
	}
	return out
}

// Removed returns current items absent from synced.
func (s *Snapshot[T]) Removed() []T {
	var out []T
	for id, it := range s.current {
		if _, ok := s.synced[id]; !ok {
			out = append(out, it)
		}
	}
	return out
}

// Updated returns synced items that exist in current but differ from it.
func (s *Snapshot[T]) Updated() []T {
	var out []T
	for id, it := range s.synced {
		old, ok := s.current[id]
		if ok && s.changed(old, it) {
			out = append(out, it)
		}
	}
	return out
}

// TaskChanged reports a material difference between two task states. A
// difference confined to due.string is ignored: the server re-renders it
// without the task having changed.
func TaskChanged(old, new models.Task) bool {
	if old.Content != new.Content ||
		old.Description != new.Description ||
		old.Priority != new.Priority ||
		old.ProjectID != new.ProjectID ||
		old.SectionID != new.SectionID ||
		old.ParentID != new.ParentID ||
		old.URL != new.URL ||
		old.IsCompleted != new.IsCompleted ||
		old.IsDeleted != new.IsDeleted ||
		!sameLabels(old.Labels, new.Labels) {
		return true
	}
	switch {
	case old.Due == nil && new.Due == nil:
		return false
	case old.Due == nil || new.Due == nil:
		return true
	default:
		return !old.Due.SameExceptString(new.Due)
	}
}

func sameLabels(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Fetcher lists a remote collection.
type Fetcher[T Entity] func(ctx context.Context) ([]T, error)

// Manager composes a snapshot with its DB loader and remote fetcher.
type Manager[T Entity] struct {
	*Snapshot[T]
	name  string
	load  func() ([]T, error)
	save  func([]T, store.SaveMode) error
	fetch Fetcher[T]
}

// Load refreshes current from the database. synced is left untouched on
// failure.
func (m *Manager[T]) Load() error {
	items, err := m.load()
	if err != nil {
		return fmt.Errorf("load %s: %w", m.name, err)
	}
	m.setCurrent(items)
	return nil
}

// Sync refreshes synced from the remote service. current is left untouched on
// failure.
func (m *Manager[T]) Sync(ctx context.Context) error {
	items, err := m.fetch(ctx)
	if err != nil {
		return fmt.Errorf("sync %s: %w", m.name, err)
	}
	m.setSynced(items)
	return nil
}

// Save persists items and, on success, folds them into current so the diff
// views reflect the new persisted state.
func (m *Manager[T]) Save(items []T, mode store.SaveMode) error {
	if err := m.save(items, mode); err != nil {
		return fmt.Errorf("save %s: %w", m.name, err)
	}
	if mode == store.SaveDeleteAll {
		m.setCurrent(items)
		return nil
	}
	if m.current == nil {
		m.current = make(map[string]T, len(items))
	}
	for _, it := range items {
		id := m.id(it)
		if mode == store.SaveIncrement {
			if _, ok := m.current[id]; ok {
				continue
			}
		}
		m.current[id] = it
	}
	return nil
}

// Tasks builds the task manager.
func Tasks(st *store.Store, c interface {
	ListTasks(ctx context.Context) ([]models.Task, error)
}) *Manager[models.Task] {
	return &Manager[models.Task]{
		Snapshot: newSnapshot(func(t models.Task) string { return t.ID }, TaskChanged),
		name:     "tasks",
		load:     st.LoadTasks,
		save:     st.SaveTasks,
		fetch:    c.ListTasks,
	}
}

// Projects builds the project manager.
func Projects(st *store.Store, c interface {
	ListProjects(ctx context.Context) ([]models.Project, error)
}) *Manager[models.Project] {
	return &Manager[models.Project]{
		Snapshot: newSnapshot(func(p models.Project) string { return p.ID },
			func(old, new models.Project) bool { return old != new }),
		name:  "projects",
		load:  st.LoadProjects,
		save:  st.SaveProjects,
		fetch: c.ListProjects,
	}
}

// Sections builds the section manager.
func Sections(st *store.Store, c interface {
	ListSections(ctx context.Context) ([]models.Section, error)
}) *Manager[models.Section] {
	return &Manager[models.Section]{
		Snapshot: newSnapshot(func(s models.Section) string { return s.ID },
			func(old, new models.Section) bool { return old != new }),
		name:  "sections",
		load:  st.LoadSections,
		save:  st.SaveSections,
		fetch: c.ListSections,
	}
}

// Labels builds the label manager.
func Labels(st *store.Store, c interface {
	ListLabels(ctx context.Context) ([]models.Label, error)
}) *Manager[models.Label] {
	return &Manager[models.Label]{
		Snapshot: newSnapshot(func(l models.Label) string { return l.ID },
			func(old, new models.Label) bool { return old != new }),
		name:  "labels",
		load:  st.LoadLabels,
		save:  st.SaveLabels,
		fetch: c.ListLabels,
	}
}
