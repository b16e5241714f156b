package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/crewline/internal/checkpoint"
	"github.com/ShayCichocki/crewline/internal/config"
	"github.com/ShayCichocki/crewline/internal/state"
	"github.com/ShayCichocki/crewline/pkg/models"
)

var statusRuns int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored checkpoints and recent runs",
	Long: `Show stored checkpoints with per-status task counts, followed by the
most recent runs from the run history. Runs whose process died are reported
as interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if err := printCheckpoints(cmd.Context(), w, cfg); err != nil {
			return err
		}
		fmt.Fprintln(w)
		return printRuns(w, cfg, statusRuns)
	},
}

func init() {
	statusCmd.Flags().IntVarP(&statusRuns, "runs", "n", 10, "Number of recent runs to show")
}

func printCheckpoints(ctx context.Context, w io.Writer, cfg *config.Config) error {
	storage, closeStorage, err := newCheckpointStorage(cfg)
	if err != nil {
		return err
	}
	defer closeStorage()

	names, err := storage.List(ctx)
	if err != nil {
		return fmt.Errorf("list checkpoints: %w", err)
	}

	fmt.Fprintf(w, "Checkpoints (%s)\n", cfg.Checkpoint.Backend)
	if len(names) == 0 {
		fmt.Fprintln(w, "  none")
		return nil
	}
	for _, name := range names {
		rec, err := checkpoint.NewManager(storage, name).Record(ctx)
		if err != nil {
			printStatus(w, "  !", fmt.Sprintf("%s: %v", name, err), color.FgYellow)
			continue
		}
		fmt.Fprintf(w, "  %s  %s  %s\n", name, rec.Crew.Process, formatCounts(rec.Counts()))
	}
	return nil
}

func printRuns(w io.Writer, cfg *config.Config, limit int) error {
	db, err := state.Open(state.DBPath(cfg.Engine.StateDir))
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return err
	}

	if _, err := state.NewRecoveryManager(db).MarkInterrupted(); err != nil {
		return err
	}
	runs, err := db.ListRuns(nil)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "Recent runs")
	if len(runs) == 0 {
		fmt.Fprintln(w, "  none")
		return nil
	}
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	for _, r := range runs {
		name := r.CrewName
		if name == "" {
			name = r.CrewID
		}
		line := fmt.Sprintf("%s  %-10s %s  %d/%d tasks  %s", shortRunID(r.ID), r.Status, name,
			r.CompletedTasks, r.TotalTasks, r.StartedAt.Local().Format(time.DateTime))
		if r.Checkpoint != "" {
			line += "  checkpoint=" + r.Checkpoint
		}
		fmt.Fprintf(w, "  %s\n", color.New(runColor(r.Status)).Sprint(line))
		if r.Error != "" {
			fmt.Fprintf(w, "      %s\n", r.Error)
		}
	}
	return nil
}

// formatCounts renders counts in lifecycle order, omitting zeros.
func formatCounts(counts map[models.TaskStatus]int) string {
	order := []models.TaskStatus{
		models.TaskStatusCompleted,
		models.TaskStatusFailed,
		models.TaskStatusSkipped,
		models.TaskStatusInProgress,
		models.TaskStatusPending,
	}
	var parts []string
	for _, s := range order {
		if counts[s] > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", s, counts[s]))
		}
	}
	if len(parts) == 0 {
		return "empty"
	}
	return strings.Join(parts, " ")
}

func runColor(s state.RunStatus) color.Attribute {
	switch s {
	case state.RunCompleted:
		return color.FgGreen
	case state.RunFailed:
		return color.FgRed
	case state.RunCancelled, state.RunInterrupted:
		return color.FgYellow
	default:
		return color.FgCyan
	}
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
