// Package config loads the daemon configuration: defaults in code, optional
// YAML file, environment overrides with the TODOPLAN_ prefix. The Todoist API
// token is taken only from the environment and never persisted.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/avolkov/todoplan/internal/models"
)

// HorizonCriteria is the fit predicate for one plan horizon. Zero-valued
// fields are not checked.
type HorizonCriteria struct {
	DueDate  bool   `mapstructure:"due_date"`
	Label    string `mapstructure:"label"`
	Priority int    `mapstructure:"priority"`
}

// SpecialLabels holds the localized label names with planner semantics.
type SpecialLabels struct {
	Goal    string `mapstructure:"goal"`
	Success string `mapstructure:"success"`
}

// Notifier is the outbound report channel.
type Notifier struct {
	BaseURL string `mapstructure:"base_url"`
	ChatID  string `mapstructure:"chat_id"`
}

// Log configures the slog handler. When File is set, output rotates through
// lumberjack; otherwise it goes to stderr.
type Log struct {
	Format string `mapstructure:"format"` // "json" (default) or "text"
	Level  string `mapstructure:"level"`  // "debug", "info" (default), "warn", "error"
	File   string `mapstructure:"file"`
}

// Config is the full configuration surface.
type Config struct {
	DBPath   string `mapstructure:"db_path"`
	LockFile string `mapstructure:"lock_file"`

	APIBaseURL      string `mapstructure:"api_base_url"`
	ActivityBaseURL string `mapstructure:"activity_base_url"`
	APIToken        string `mapstructure:"-"`

	SyncTimeout             time.Duration `mapstructure:"sync_timeout"`
	EventsSyncMaxPages      int           `mapstructure:"events_sync_max_pages"`
	TaskContentLenThreshold int           `mapstructure:"task_content_len_threshold"`

	SpecialLabels SpecialLabels                             `mapstructure:"special_labels"`
	Horizons      map[models.Horizon]HorizonCriteria        `mapstructure:"horizons"`
	Transitions   map[models.PlanStatus][]models.PlanStatus `mapstructure:"status_transitions"`

	Notifier Notifier `mapstructure:"notifier"`
	Log      Log      `mapstructure:"log"`
}

// StatusNone is the transition-table key for a task with no plan history yet.
const StatusNone models.PlanStatus = "new"

// DefaultTransitions is the plan-local status machine. It is configuration
// rather than code: older deployments ran without completed_recurring and the
// table can be overridden per install.
func DefaultTransitions() map[models.PlanStatus][]models.PlanStatus {
	return map[models.PlanStatus][]models.PlanStatus{
		StatusNone:                      {models.StatusPlanned, models.StatusCompleted, models.StatusDeleted},
		models.StatusPlanned:            {models.StatusPostponed, models.StatusCompleted, models.StatusCompletedRecurring, models.StatusDeleted},
		models.StatusPostponed:          {models.StatusPlanned, models.StatusCompleted, models.StatusCompletedRecurring, models.StatusDeleted},
		models.StatusCompleted:          {models.StatusPlanned, models.StatusPostponed, models.StatusDeleted},
		models.StatusCompletedRecurring: {models.StatusPlanned, models.StatusCompleted, models.StatusPostponed, models.StatusDeleted},
		models.StatusDeleted:            {},
	}
}

// DefaultHorizons mirrors the current planning setup: day and week plans take
// dated tasks, longer horizons take goals.
func DefaultHorizons(goalLabel string) map[models.Horizon]HorizonCriteria {
	return map[models.Horizon]HorizonCriteria{
		models.HorizonDay:     {DueDate: true},
		models.HorizonWeek:    {DueDate: true},
		models.HorizonMonth:   {Label: goalLabel},
		models.HorizonQuarter: {Label: goalLabel},
		models.HorizonYear:    {Label: goalLabel},
	}
}

// Load reads configuration from the optional file at path (empty means no
// file) and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("db_path", "./data/todoplan.db")
	v.SetDefault("lock_file", "./data/todoplan.lock")
	v.SetDefault("api_base_url", "https://api.todoist.com/rest/v2")
	v.SetDefault("activity_base_url", "https://api.todoist.com/sync/v9")
	v.SetDefault("sync_timeout", "600s")
	v.SetDefault("events_sync_max_pages", 52)
	v.SetDefault("task_content_len_threshold", 50)
	v.SetDefault("special_labels.goal", "Goal")
	v.SetDefault("special_labels.success", "Success")
	v.SetDefault("notifier.base_url", "http://localhost:8083")
	v.SetDefault("notifier.chat_id", "")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetEnvPrefix("TODOPLAN")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Horizons == nil {
		cfg.Horizons = DefaultHorizons(cfg.SpecialLabels.Goal)
	}
	if cfg.Transitions == nil {
		cfg.Transitions = DefaultTransitions()
	}

	cfg.APIToken = os.Getenv("TODOIST_API_TOKEN")

	return &cfg, nil
}

// RefreshTime returns the local wall-clock time "00:MM" at which the daily
// rollover runs. The offset past midnight leaves room for the preceding tick
// to finish.
func (c *Config) RefreshTime() (hour, minute int) {
	return 0, int(c.SyncTimeout/time.Minute) + 1
}

// CutContent truncates task content for log lines.
func (c *Config) CutContent(s string) string {
	limit := c.TaskContentLenThreshold
	if limit <= 0 || len([]rune(s)) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "…"
}
