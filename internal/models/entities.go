package models

// Project mirrors a Todoist project.
type Project struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ParentID   string `json:"parent_id,omitempty"`
	Color      string `json:"color"`
	URL        string `json:"url,omitempty"`
	IsInbox    bool   `json:"is_inbox_project"`
	IsFavorite bool   `json:"is_favorite"`
}

// Section mirrors a Todoist section.
type Section struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ProjectID string `json:"project_id"`
	Order     int    `json:"order"`
}

// Label mirrors a Todoist label.
type Label struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Color      string `json:"color"`
	IsFavorite bool   `json:"is_favorite"`
}
