package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/crewline/internal/config"
)

var (
	configPath   string
	stateDirFlag string
)

var rootCmd = &cobra.Command{
	Use:   "crewline",
	Short: "Multi-agent workflow engine",
	Long: `Crewline runs crews of role-playing agents over a dependency graph of tasks.

A workflow file declares the crew, its agents and the tasks they own.
Tasks run sequentially, in parallel waves, or under a manager agent that
delegates each ready task to a worker.

Core capabilities:
- Validates definitions and dependency graphs before anything runs
- Shares results between agents through crew memory
- Checkpoints after every step and resumes from any checkpoint
- Pause and stop running workflows from another terminal`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: user config merged with "+config.ProjectConfigName+")")
	rootCmd.PersistentFlags().StringVar(&stateDirFlag, "state-dir", "", "Directory for signals, logs and run history (overrides engine.state_dir)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(unpauseCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves configuration from --config or the standard search
// path and applies persistent flag overrides.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if stateDirFlag != "" {
		cfg.Engine.StateDir = stateDirFlag
	}
	return cfg, nil
}

// printStatus prints a status line with a colored symbol.
func printStatus(w io.Writer, symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Fprintf(w, "%s %s\n", c.Sprint(symbol), message)
}
