package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/crewline/internal/workflow"
	"github.com/ShayCichocki/crewline/pkg/models"
)

// watchDebounce collapses the burst of events editors produce on save.
const watchDebounce = 150 * time.Millisecond

var validateWatch bool

var validateCmd = &cobra.Command{
	Use:   "validate <workflow.yaml>",
	Short: "Check a workflow definition and print its execution waves",
	Long: `Check a workflow definition and print its execution waves.

Validation resolves agent names and dependency indices, rejects cycles and
groups tasks into waves: every task in a wave depends only on earlier waves.
With --watch the file is re-validated each time it changes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		err := validateOnce(w, args[0])
		if !validateWatch {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return watchWorkflow(ctx, w, args[0])
	},
}

func init() {
	validateCmd.Flags().BoolVarP(&validateWatch, "watch", "w", false, "Re-validate whenever the file changes")
}

// validateOnce loads path and prints a summary and its waves to w.
func validateOnce(w io.Writer, path string) error {
	c, err := workflow.LoadFile(path)
	if err != nil {
		printStatus(w, "✗", err.Error(), color.FgRed)
		return err
	}
	g, err := c.Graph()
	if err != nil {
		printStatus(w, "✗", err.Error(), color.FgRed)
		return err
	}
	levels, err := g.Levels()
	if err != nil {
		printStatus(w, "✗", err.Error(), color.FgRed)
		return err
	}

	name := c.Name
	if name == "" {
		name = c.ID
	}
	printStatus(w, "✓", fmt.Sprintf("%s: %d agents, %d tasks, %s process", name, len(c.Agents), len(c.Tasks), c.Process), color.FgGreen)
	if m := c.Manager(); m != nil && c.Process == models.ProcessHierarchical {
		fmt.Fprintf(w, "  manager: %s\n", m.Role)
	}

	for i, level := range levels {
		fmt.Fprintf(w, "  wave %d:\n", i+1)
		for _, id := range level {
			t := c.TaskByID(id)
			if t == nil {
				continue
			}
			fmt.Fprintf(w, "    - [%s] %s (%s)\n", id, summarize(t.Description, 60), t.Agent.Role)
		}
	}
	return nil
}

// watchWorkflow re-validates path on every change until ctx is done. The
// parent directory is watched so editors that replace the file are seen.
func watchWorkflow(ctx context.Context, w io.Writer, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	target, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	fmt.Fprintf(w, "watching %s (ctrl+c to stop)\n", path)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(watchDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			printStatus(w, "!", err.Error(), color.FgYellow)
		case <-pending:
			pending = nil
			fmt.Fprintf(w, "\n[%s] %s changed\n", time.Now().Format("15:04:05"), path)
			validateOnce(w, path)
		}
	}
}

func summarize(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
