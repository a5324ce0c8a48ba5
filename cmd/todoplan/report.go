package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/avolkov/todoplan/internal/models"
	"github.com/avolkov/todoplan/internal/pipeline"
	"github.com/avolkov/todoplan/internal/store"
	"github.com/avolkov/todoplan/internal/todoist"
)

var reportCmd = &cobra.Command{
	Use:   "report [horizon]",
	Short: "Print the current report of one horizon's active plan",
	Long: `Prints the live status counts of a horizon's active plan without rolling
it over. Horizon is one of: day, week, month, quarter, year (default day).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	horizon := models.HorizonDay
	if len(args) == 1 {
		horizon = models.Horizon(args[0])
		valid := false
		for _, h := range models.Horizons {
			if h == horizon {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("unknown horizon %q", args[0])
		}
	}

	// Reads only local state; no token required.
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	client := todoist.New(cfg.APIBaseURL, cfg.ActivityBaseURL, cfg.APIToken)
	pipe := pipeline.New(cfg, st, client, nil, slog.Default())

	r, err := pipe.Report(horizon)
	if err != nil {
		return err
	}

	fmt.Printf("Plan: %s (%s - %s)\n", r.Horizon,
		r.Start.Format(models.DateFormat), r.End.Format(models.DateFormat))
	fmt.Printf("  completed:       %d\n", r.Completed)
	fmt.Printf("  not completed:   %d\n", r.NotCompleted)
	fmt.Printf("  postponed:       %d\n", r.Postponed)
	fmt.Printf("  deleted:         %d\n", r.Deleted)
	fmt.Printf("  overall planned: %d\n", r.OverallPlanned)
	fmt.Printf("  completion:      %s\n", r.ComplRatio)
	return nil
}
