package todoist

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(srv *httptest.Server) *Client {
	c := New(srv.URL, srv.URL, "tok-123")
	c.HTTP = srv.Client()
	return c
}

func TestAuthorizationHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	if _, err := c.ListTasks(context.Background()); err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestListTasks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tasks" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`[
			{"id": "1", "content": "Task one", "priority": 4,
			 "due": {"date": "2026-08-25", "is_recurring": false, "string": "Aug 25"}},
			{"id": "2", "content": "Task two", "priority": 1}
		]`))
	}))
	defer srv.Close()

	tasks, err := newTestClient(srv).ListTasks(context.Background())
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks", len(tasks))
	}
	if tasks[0].Due == nil || tasks[0].Due.Date != "2026-08-25" {
		t.Errorf("due = %+v", tasks[0].Due)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
	}
	for _, c := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(c.status)
		}))
		_, err := newTestClient(srv).ListTasks(context.Background())
		if !errors.Is(err, c.want) {
			t.Errorf("status %d: err = %v, want %v", c.status, err, c.want)
		}
		srv.Close()
	}

	if !IsAuth(ErrUnauthorized) || !IsAuth(ErrForbidden) || IsAuth(ErrNotFound) {
		t.Error("IsAuth misclassifies")
	}
}

func TestGetTaskGone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	task, err := newTestClient(srv).GetTask(context.Background(), "123")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if task != nil {
		t.Errorf("task = %+v, want nil for 404", task)
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	c.backoff = time.Millisecond
	if _, err := c.ListTasks(context.Background()); err != nil {
		t.Fatalf("ListTasks after retries: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	if _, err := newTestClient(srv).ListTasks(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1 (auth errors are final)", got)
	}
}

func TestActivityQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/activity/get" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("page") != "2" || q.Get("limit") != "100" || q.Get("offset") != "100" {
			t.Errorf("query = %v", q)
		}
		w.Write([]byte(`{"count": 205, "events": [
			{"id": "1", "event_date": "2026-08-25T09:15:00Z", "event_type": "added",
			 "object_type": "item", "object_id": "10"}
		]}`))
	}))
	defer srv.Close()

	ap, err := newTestClient(srv).Activity(context.Background(), 2, 100, 100)
	if err != nil {
		t.Fatalf("Activity: %v", err)
	}
	if ap.Count != 205 || len(ap.Events) != 1 {
		t.Errorf("page = count %d, %d events", ap.Count, len(ap.Events))
	}
}

func TestArchivedItemsPagination(t *testing.T) {
	var cursors []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cursor := r.URL.Query().Get("cursor")
		cursors = append(cursors, cursor)
		if cursor == "" {
			w.Write([]byte(`{"items": [{"id": "1", "content": "Old done", "checked": true}],
				"next_cursor": "c2", "has_more": true}`))
			return
		}
		w.Write([]byte(`{"items": [{"id": "2", "content": "Older done", "checked": true}],
			"has_more": false}`))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	tasks, err := c.ArchivedItems(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ArchivedItems: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks", len(tasks))
	}
	if !tasks[0].IsCompleted {
		t.Error("checked not mapped to IsCompleted")
	}
	if len(cursors) != 2 || cursors[1] != "c2" {
		t.Errorf("cursors = %v", cursors)
	}
}
