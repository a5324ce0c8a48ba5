// Package todoist is a read-only client for the Todoist REST and activity
// endpoints. The service never writes remote state.
package todoist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/avolkov/todoplan/internal/models"
)

// Sentinel errors for the remote error taxonomy.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limited")
	ErrServer       = errors.New("server error")
)

// IsAuth reports whether err is a fatal credential failure.
func IsAuth(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}

// retryable reports whether the tick should retry the call within its budget.
func retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServer)
}

const (
	callTimeout  = 30 * time.Second
	maxRetries   = 3
	retryBackoff = 2 * time.Second
)

// Client is an authenticated HTTP client for the remote task service.
type Client struct {
	BaseURL         string // REST endpoints
	ActivityBaseURL string // sync/activity endpoints
	Token           string
	HTTP            *http.Client

	// archiveLimiter paces archived-items calls, which hit one heavy
	// endpoint per project.
	archiveLimiter *rate.Limiter

	backoff time.Duration
}

// New creates a client with the default per-call timeout and one archived
// fetch per five seconds.
func New(baseURL, activityBaseURL, token string) *Client {
	return &Client{
		BaseURL:         baseURL,
		ActivityBaseURL: activityBaseURL,
		Token:           token,
		HTTP:            &http.Client{Timeout: callTimeout},
		archiveLimiter:  rate.NewLimiter(rate.Every(5*time.Second), 1),
		backoff:         retryBackoff,
	}
}

// ListTasks returns all active tasks.
func (c *Client) ListTasks(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if err := c.get(ctx, c.BaseURL+"/tasks", &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetTask fetches a single task. Returns (nil, nil) when the task is gone
// (404): completed or deleted tasks older than the activity window cannot be
// fetched.
func (c *Client) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	err := c.get(ctx, c.BaseURL+"/tasks/"+url.PathEscape(id), &task)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// ListProjects returns all projects.
func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	if err := c.get(ctx, c.BaseURL+"/projects", &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// ListSections returns all sections.
func (c *Client) ListSections(ctx context.Context) ([]models.Section, error) {
	var sections []models.Section
	if err := c.get(ctx, c.BaseURL+"/sections", &sections); err != nil {
		return nil, err
	}
	return sections, nil
}

// ListLabels returns all personal labels.
func (c *Client) ListLabels(ctx context.Context) ([]models.Label, error) {
	var labels []models.Label
	if err := c.get(ctx, c.BaseURL+"/labels", &labels); err != nil {
		return nil, err
	}
	return labels, nil
}

// ActivityPage is one page of the activity log. Count is the total number of
// events matching the page window, used to stop offset stepping.
type ActivityPage struct {
	Events []models.Event `json:"events"`
	Count  int            `json:"count"`
}

// Activity fetches one page of the activity log. page selects the week
// (0 = current), limit is capped at 100 by the server, offset skips events
// within the week.
func (c *Client) Activity(ctx context.Context, page, limit, offset int) (*ActivityPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var ap ActivityPage
	if err := c.get(ctx, c.ActivityBaseURL+"/activity/get?"+q.Encode(), &ap); err != nil {
		return nil, err
	}
	return &ap, nil
}

// archiveItem is the sync-API shape of an archived (completed) task.
type archiveItem struct {
	ID          string      `json:"id"`
	Content     string      `json:"content"`
	Description string      `json:"description"`
	Priority    int         `json:"priority"`
	ProjectID   string      `json:"project_id"`
	SectionID   string      `json:"section_id"`
	ParentID    string      `json:"parent_id"`
	Labels      []string    `json:"labels"`
	Due         *models.Due `json:"due"`
	Checked     bool        `json:"checked"`
	IsDeleted   bool        `json:"is_deleted"`
}

type archivePage struct {
	Items      []archiveItem `json:"items"`
	NextCursor string        `json:"next_cursor"`
	HasMore    bool          `json:"has_more"`
}

// ArchivedItems lists archived tasks of a project, paced by the archive rate
// limiter. Heavy: one call per project, avoid on the tick path.
func (c *Client) ArchivedItems(ctx context.Context, projectID string) ([]models.Task, error) {
	if err := c.archiveLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	var tasks []models.Task
	cursor := ""
	for {
		q := url.Values{}
		q.Set("project_id", projectID)
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var page archivePage
		if err := c.get(ctx, c.ActivityBaseURL+"/archive/items?"+q.Encode(), &page); err != nil {
			return nil, err
		}
		for _, it := range page.Items {
			tasks = append(tasks, models.Task{
				ID:          it.ID,
				Content:     it.Content,
				Description: it.Description,
				Priority:    it.Priority,
				ProjectID:   it.ProjectID,
				SectionID:   it.SectionID,
				ParentID:    it.ParentID,
				Labels:      it.Labels,
				Due:         it.Due,
				IsCompleted: it.Checked,
				IsDeleted:   it.IsDeleted,
			})
		}
		if !page.HasMore {
			return tasks, nil
		}
		cursor = page.NextCursor
	}
}

// get executes an authenticated GET with retry on transient failures.
func (c *Client) get(ctx context.Context, rawURL string, result any) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = c.doOnce(ctx, rawURL, result)
		if err == nil || !retryable(err) || attempt >= maxRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff << attempt):
		}
	}
}

func (c *Client) doOnce(ctx context.Context, rawURL string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, string(body))
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrForbidden, string(body))
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, string(body))
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: HTTP %d", ErrServer, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
