package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/crewline/internal/checkpoint"
)

var (
	resumeInputs      []string
	resumeDryRun      bool
	resumeTUI         bool
	resumeMetricsAddr string
)

var resumeCmd = &cobra.Command{
	Use:   "resume <checkpoint>",
	Short: "Continue a workflow from a checkpoint",
	Long: `Continue a workflow from a checkpoint.

Completed, failed and skipped tasks keep their recorded state. Tasks that were
in progress when the checkpoint was written are marked failed. The run keeps
checkpointing under the same name.

Use 'crewline status' to list stored checkpoints.`,
	Args: cobra.ExactArgs(1),
	RunE: resumeWorkflow,
}

func init() {
	resumeCmd.Flags().StringArrayVar(&resumeInputs, "input", nil, "Memory entry as key=value (repeatable)")
	resumeCmd.Flags().BoolVar(&resumeDryRun, "dry-run", false, "Answer every turn locally without calling a model")
	resumeCmd.Flags().BoolVar(&resumeTUI, "tui", false, "Show live progress in a terminal UI")
	resumeCmd.Flags().StringVar(&resumeMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides metrics.addr)")
}

func resumeWorkflow(cmd *cobra.Command, args []string) error {
	name := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	inputs, err := parseInputs(resumeInputs)
	if err != nil {
		return err
	}

	storage, closeStorage, err := newCheckpointStorage(cfg)
	if err != nil {
		return err
	}
	c, err := checkpoint.NewManager(storage, name).Load(cmd.Context())
	closeStorage()
	if errors.Is(err, checkpoint.ErrNotFound) {
		return fmt.Errorf("no checkpoint named %q in %s storage", name, cfg.Checkpoint.Backend)
	}
	if err != nil {
		return err
	}
	c.CheckpointEnabled = true

	return execute(cmd.Context(), cmd.OutOrStdout(), cfg, c, runOptions{
		inputs:      inputs,
		checkpoint:  name,
		dryRun:      resumeDryRun,
		tui:         resumeTUI,
		metricsAddr: resumeMetricsAddr,
	})
}
