package main

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/avolkov/todoplan/internal/notify"
	"github.com/avolkov/todoplan/internal/pipeline"
	"github.com/avolkov/todoplan/internal/store"
	"github.com/avolkov/todoplan/internal/todoist"
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one synchronization round and exit",
	RunE:  runTick,
}

func init() {
	rootCmd.AddCommand(tickCmd)
}

func runTick(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.APIToken == "" {
		return errors.New("TODOIST_API_TOKEN is not set")
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	client := todoist.New(cfg.APIBaseURL, cfg.ActivityBaseURL, cfg.APIToken)
	notifier := notify.New(cfg.Notifier.BaseURL, cfg.Notifier.ChatID, slog.Default())
	pipe := pipeline.New(cfg, st, client, notifier, slog.Default())

	return pipe.Tick(cmd.Context())
}
