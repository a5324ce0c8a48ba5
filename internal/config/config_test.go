package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/avolkov/todoplan/internal/models"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TODOIST_API_TOKEN", "tok-123")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.APIBaseURL != "https://api.todoist.com/rest/v2" {
		t.Errorf("api_base_url = %q", cfg.APIBaseURL)
	}
	if cfg.SyncTimeout != 600*time.Second {
		t.Errorf("sync_timeout = %v", cfg.SyncTimeout)
	}
	if cfg.EventsSyncMaxPages != 52 {
		t.Errorf("events_sync_max_pages = %d", cfg.EventsSyncMaxPages)
	}
	if cfg.APIToken != "tok-123" {
		t.Errorf("token not taken from environment")
	}
	if cfg.SpecialLabels.Goal != "Goal" || cfg.SpecialLabels.Success != "Success" {
		t.Errorf("special labels = %+v", cfg.SpecialLabels)
	}
	if got := cfg.Horizons[models.HorizonDay]; !got.DueDate {
		t.Errorf("day criteria = %+v", got)
	}
	if got := cfg.Horizons[models.HorizonYear]; got.Label != "Goal" {
		t.Errorf("year criteria = %+v", got)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
db_path: /var/lib/todoplan/db.sqlite
sync_timeout: 300s
special_labels:
  goal: Ziel
log:
  level: debug
  format: text
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/var/lib/todoplan/db.sqlite" {
		t.Errorf("db_path = %q", cfg.DBPath)
	}
	if cfg.SyncTimeout != 300*time.Second {
		t.Errorf("sync_timeout = %v", cfg.SyncTimeout)
	}
	if cfg.SpecialLabels.Goal != "Ziel" {
		t.Errorf("goal label = %q", cfg.SpecialLabels.Goal)
	}
	// Horizon defaults follow the overridden goal label.
	if got := cfg.Horizons[models.HorizonMonth]; got.Label != "Ziel" {
		t.Errorf("month criteria = %+v", got)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing explicit config file accepted")
	}
}

func TestRefreshTime(t *testing.T) {
	cfg := &Config{SyncTimeout: 600 * time.Second}
	hour, minute := cfg.RefreshTime()
	if hour != 0 || minute != 11 {
		t.Errorf("RefreshTime = %02d:%02d, want 00:11", hour, minute)
	}
}

func TestDefaultTransitions(t *testing.T) {
	tr := DefaultTransitions()

	has := func(from, to models.PlanStatus) bool {
		for _, t := range tr[from] {
			if t == to {
				return true
			}
		}
		return false
	}

	if !has(StatusNone, models.StatusPlanned) {
		t.Error("new task cannot be planned")
	}
	if !has(models.StatusPlanned, models.StatusCompletedRecurring) {
		t.Error("planned cannot complete as recurring")
	}
	if has(models.StatusDeleted, models.StatusPlanned) {
		t.Error("deleted is not terminal")
	}
	if !has(models.StatusCompleted, models.StatusPlanned) {
		t.Error("completed recurring task cannot be re-planned")
	}
}

func TestCutContent(t *testing.T) {
	cfg := &Config{TaskContentLenThreshold: 5}
	if got := cfg.CutContent("short"); got != "short" {
		t.Errorf("CutContent(short) = %q", got)
	}
	if got := cfg.CutContent("a longer content"); got != "a lon…" {
		t.Errorf("CutContent = %q", got)
	}
	// Rune-safe truncation.
	if got := cfg.CutContent("тест задачи"); got != "тест …" {
		t.Errorf("CutContent(cyrillic) = %q", got)
	}

	cfg.TaskContentLenThreshold = 0
	if got := cfg.CutContent("anything goes"); got != "anything goes" {
		t.Errorf("unlimited CutContent = %q", got)
	}
}
