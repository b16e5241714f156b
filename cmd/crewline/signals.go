package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/crewline/internal/orchestrator"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Ask the running workflow to stop after in-flight tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendSignal(cmd, orchestrator.SignalStop, "Stop requested; in-flight tasks will finish first")
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause dispatch of new tasks in the running workflow",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendSignal(cmd, orchestrator.SignalPause, "Pause requested; run 'crewline unpause' to continue")
	},
}

var unpauseCmd = &cobra.Command{
	Use:   "unpause",
	Short: "Resume dispatch in a paused workflow",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := orchestrator.ClearSignal(cfg.Engine.StateDir, orchestrator.SignalPause); err != nil {
			return fmt.Errorf("clear pause signal: %w", err)
		}
		printStatus(cmd.OutOrStdout(), "✓", "Unpaused", color.FgGreen)
		return nil
	},
}

func sendSignal(cmd *cobra.Command, name, message string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := orchestrator.SendSignal(cfg.Engine.StateDir, name); err != nil {
		return fmt.Errorf("send %s signal: %w", name, err)
	}
	printStatus(cmd.OutOrStdout(), "✓", message, color.FgGreen)
	return nil
}
