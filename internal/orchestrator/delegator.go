package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ShayCichocki/crewline/internal/agent"
	"github.com/ShayCichocki/crewline/pkg/models"
)

// Delegator chooses the worker that executes a task in hierarchical runs.
type Delegator interface {
	// Delegate returns the worker for task. It may return the task's bound
	// agent. workers excludes the manager and may be empty.
	Delegate(ctx context.Context, manager *models.Agent, task *models.Task, workers []*models.Agent) (*models.Agent, error)
}

// DelegatorFunc adapts a function to Delegator.
type DelegatorFunc func(ctx context.Context, manager *models.Agent, task *models.Task, workers []*models.Agent) (*models.Agent, error)

// Delegate calls f.
func (f DelegatorFunc) Delegate(ctx context.Context, manager *models.Agent, task *models.Task, workers []*models.Agent) (*models.Agent, error) {
	return f(ctx, manager, task, workers)
}

// BoundDelegator always keeps the task's bound agent.
type BoundDelegator struct{}

// Delegate returns task.Agent.
func (BoundDelegator) Delegate(_ context.Context, _ *models.Agent, task *models.Task, _ []*models.Agent) (*models.Agent, error) {
	return task.Agent, nil
}

// TurnDelegator asks the manager agent, through the turn executor, which
// worker should handle each task.
type TurnDelegator struct {
	exec agent.TurnExecutor
}

var _ Delegator = (*TurnDelegator)(nil)

// NewTurnDelegator creates a delegator that consults the manager via exec.
func NewTurnDelegator(exec agent.TurnExecutor) *TurnDelegator {
	return &TurnDelegator{exec: exec}
}

// Delegate sends the selection prompt to the manager and matches the reply
// against the workers. A reply naming no worker keeps the bound agent.
func (d *TurnDelegator) Delegate(ctx context.Context, manager *models.Agent, task *models.Task, workers []*models.Agent) (*models.Agent, error) {
	if len(workers) == 0 {
		return task.Agent, nil
	}

	reply, err := d.exec.ExecuteTurn(ctx, manager, selectionPrompt(task, workers))
	if err != nil {
		return nil, fmt.Errorf("manager %s failed to select a worker: %w", manager.ID, err)
	}

	if chosen := matchWorker(reply, workers); chosen != nil {
		return chosen, nil
	}
	debugLog("[delegate] reply %q matched no worker, keeping %s", models.Truncate(reply, 80), task.Agent.ID)
	return task.Agent, nil
}

func selectionPrompt(task *models.Task, workers []*models.Agent) string {
	var b strings.Builder
	b.WriteString("Select the best agent for this task.\n\n")
	fmt.Fprintf(&b, "Task Description: %s\n", task.Description)
	if task.ExpectedOutput != "" {
		fmt.Fprintf(&b, "Expected Output: %s\n", task.ExpectedOutput)
	}
	fmt.Fprintf(&b, "Currently assigned: %s (%s)\n\nAvailable Agents:\n", task.Agent.Role, task.Agent.ID)
	for i, w := range workers {
		fmt.Fprintf(&b, "%d. %s (id: %s) - %s\n", i, w.Role, w.ID, w.Goal)
	}
	fmt.Fprintf(&b, "\nRespond with the index (0-%d) of the chosen agent, its id, or its role.", len(workers)-1)
	return b.String()
}

// matchWorker resolves a manager reply to a worker: an exact id anywhere
// in the reply wins, then a leading index, then the longest role mentioned.
func matchWorker(reply string, workers []*models.Agent) *models.Agent {
	for _, w := range workers {
		if strings.Contains(reply, w.ID) {
			return w
		}
	}

	fields := strings.Fields(reply)
	if len(fields) > 0 {
		if i, err := strconv.Atoi(strings.TrimRight(fields[0], ".):,")); err == nil && i >= 0 && i < len(workers) {
			return workers[i]
		}
	}

	byRole := append([]*models.Agent(nil), workers...)
	sort.SliceStable(byRole, func(i, j int) bool { return len(byRole[i].Role) > len(byRole[j].Role) })
	lower := strings.ToLower(reply)
	for _, w := range byRole {
		if strings.Contains(lower, strings.ToLower(w.Role)) {
			return w
		}
	}
	return nil
}
