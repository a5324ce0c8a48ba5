package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/avolkov/todoplan/internal/notify"
	"github.com/avolkov/todoplan/internal/pipeline"
	"github.com/avolkov/todoplan/internal/sched"
	"github.com/avolkov/todoplan/internal/store"
	"github.com/avolkov/todoplan/internal/todoist"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync and planning daemon",
	Long: `Runs the periodic tick loop (sync, classify, plan, persist) and the daily
plan rollover. Exactly one instance may run per database; a second start
exits immediately.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.APIToken == "" {
		return errors.New("TODOIST_API_TOKEN is not set")
	}

	// Single-instance lock. Two daemons against one database would race
	// the planner state.
	if err := os.MkdirAll(filepath.Dir(cfg.LockFile), 0755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	lock := flock.New(cfg.LockFile)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another instance holds %s", cfg.LockFile)
	}
	defer lock.Unlock()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	client := todoist.New(cfg.APIBaseURL, cfg.ActivityBaseURL, cfg.APIToken)
	notifier := notify.New(cfg.Notifier.BaseURL, cfg.Notifier.ChatID, slog.Default())
	pipe := pipeline.New(cfg, st, client, notifier, slog.Default())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hour, minute := cfg.RefreshTime()
	daily := sched.New(hour, minute, func(ctx context.Context) {
		if err := pipe.RefreshPlans(ctx); err != nil {
			slog.Error("plan rollover failed", "error", err)
		}
	}, slog.Default())
	go daily.Run(ctx)

	slog.Info("daemon started", "db", cfg.DBPath,
		"tick", cfg.SyncTimeout, "rollover", fmt.Sprintf("%02d:%02d", hour, minute))

	ticker := time.NewTicker(cfg.SyncTimeout)
	defer ticker.Stop()

	for {
		// A tick gets at most one interval; an overrunning one is abandoned
		// rather than allowed to back up the schedule.
		tickCtx, cancel := context.WithTimeout(ctx, cfg.SyncTimeout)
		err := pipe.Tick(tickCtx)
		cancel()
		if err != nil {
			if todoist.IsAuth(err) {
				return fmt.Errorf("credential failure, exiting: %w", err)
			}
			slog.Error("tick failed", "error", err)
		}
		select {
		case <-ctx.Done():
			slog.Info("daemon stopped")
			return nil
		case <-ticker.C:
		}
	}
}
