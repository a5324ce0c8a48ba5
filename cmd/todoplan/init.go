package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/avolkov/todoplan/internal/notify"
	"github.com/avolkov/todoplan/internal/pipeline"
	"github.com/avolkov/todoplan/internal/store"
	"github.com/avolkov/todoplan/internal/todoist"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database and fill it from the remote workspace",
	Long: `Creates the database schema, then performs the one-time fill: all
projects, sections, labels, tasks (including per-project archived tasks) and
the reachable activity history. Safe to re-run; a completed fill is skipped.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.APIToken == "" {
		return errors.New("TODOIST_API_TOKEN is not set")
	}

	st, err := store.Initialize(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()
	slog.Info("schema ready", "db", cfg.DBPath)

	client := todoist.New(cfg.APIBaseURL, cfg.ActivityBaseURL, cfg.APIToken)
	notifier := notify.New(cfg.Notifier.BaseURL, cfg.Notifier.ChatID, slog.Default())
	pipe := pipeline.New(cfg, st, client, notifier, slog.Default())

	if err := pipe.InitialFill(cmd.Context()); err != nil {
		return fmt.Errorf("initial fill: %w", err)
	}
	fmt.Println("Database initialized.")
	return nil
}
