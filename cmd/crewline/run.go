package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/crewline/internal/crew"
	"github.com/ShayCichocki/crewline/internal/workflow"
	"github.com/ShayCichocki/crewline/pkg/models"
)

var (
	runProcess     string
	runInputs      []string
	runCheckpoint  string
	runDryRun      bool
	runTUI         bool
	runMetricsAddr string
)

var runCmd = &cobra.Command{
	Use:   "run <workflow.yaml>",
	Short: "Execute a workflow definition",
	Long: `Execute a workflow definition.

The workflow file declares the crew, its agents and tasks. Inputs given with
--input are written to crew memory before the first task runs.

Examples:
  crewline run content.yaml
  crewline run content.yaml --process parallel --input topic="Go generics"
  crewline run content.yaml --checkpoint weekly-post --tui
  crewline run content.yaml --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runWorkflow,
}

func init() {
	runCmd.Flags().StringVar(&runProcess, "process", "", "Override the crew process (sequential, parallel, hierarchical)")
	runCmd.Flags().StringArrayVar(&runInputs, "input", nil, "Initial memory entry as key=value (repeatable)")
	runCmd.Flags().StringVar(&runCheckpoint, "checkpoint", "", "Checkpoint name; enables checkpointing (default: crew ID when the workflow enables it)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Answer every turn locally without calling a model")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show live progress in a terminal UI")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides metrics.addr)")
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	c, err := workflow.LoadFile(args[0])
	if err != nil {
		return err
	}
	if err := applyProcess(c, runProcess); err != nil {
		return err
	}

	inputs, err := parseInputs(runInputs)
	if err != nil {
		return err
	}

	name := runCheckpoint
	if name != "" {
		c.CheckpointEnabled = true
	} else if c.CheckpointEnabled {
		name = c.ID
	}

	return execute(cmd.Context(), cmd.OutOrStdout(), cfg, c, runOptions{
		inputs:      inputs,
		checkpoint:  name,
		dryRun:      runDryRun,
		tui:         runTUI,
		metricsAddr: runMetricsAddr,
	})
}

// applyProcess overrides the crew's process. Switching to hierarchical
// requires a crew that has a manager.
func applyProcess(c *crew.Crew, name string) error {
	if name == "" {
		return nil
	}
	p, err := models.ParseProcessType(name)
	if err != nil {
		return err
	}
	if p == models.ProcessHierarchical && c.Manager() == nil {
		return models.NewConfigError("crew.manager", "hierarchical process needs a manager or an agent with allow_delegation")
	}
	c.Process = p
	return nil
}

// parseInputs turns key=value flags into memory inputs. Integers, floats and
// booleans keep their type; everything else stays a string.
func parseInputs(pairs []string) (map[string]any, error) {
	inputs := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid input %q: expected key=value", pair)
		}
		inputs[key] = inputValue(value)
	}
	return inputs, nil
}

func inputValue(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
