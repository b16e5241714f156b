// Package crew groups agents and their task graph into a validated unit of work.
package crew

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ShayCichocki/crewline/internal/graph"
	"github.com/ShayCichocki/crewline/pkg/models"
)

// Crew is a named collection of agents and the tasks they execute.
// A Crew only exists in a valid state: every task's agent belongs to the
// crew and the dependency graph is acyclic.
type Crew struct {
	// ID is the unique identifier for this crew.
	ID string
	// Name is a human-readable label.
	Name string
	// Agents are the crew members, in definition order.
	Agents []*models.Agent
	// Tasks are executed according to Process, in definition order.
	Tasks []*models.Task
	// Process selects the execution strategy.
	Process models.ProcessType
	// Memory enables the shared memory store for the run.
	Memory bool
	// CheckpointEnabled makes the engine checkpoint after every step.
	CheckpointEnabled bool
	// MaxRPM throttles turn starts per minute. Zero means unlimited.
	MaxRPM int
	// ManagerID names the manager agent for hierarchical runs.
	ManagerID string
	// Cache is carried through definitions and checkpoints.
	Cache bool
	// Verbose enables operator-facing progress output.
	Verbose bool
}

// Option configures a Crew during construction.
type Option func(*Crew)

// WithID sets an explicit crew ID.
func WithID(id string) Option {
	return func(c *Crew) {
		if id != "" {
			c.ID = id
		}
	}
}

// WithName sets the crew name.
func WithName(name string) Option {
	return func(c *Crew) { c.Name = name }
}

// WithProcess sets the execution strategy.
func WithProcess(p models.ProcessType) Option {
	return func(c *Crew) { c.Process = p }
}

// WithMemory enables or disables shared memory.
func WithMemory(enabled bool) Option {
	return func(c *Crew) { c.Memory = enabled }
}

// WithCheckpointing enables or disables checkpoints between steps.
func WithCheckpointing(enabled bool) Option {
	return func(c *Crew) { c.CheckpointEnabled = enabled }
}

// WithMaxRPM sets the turn rate limit.
func WithMaxRPM(rpm int) Option {
	return func(c *Crew) { c.MaxRPM = rpm }
}

// WithManager designates the manager agent for hierarchical runs.
func WithManager(agentID string) Option {
	return func(c *Crew) { c.ManagerID = agentID }
}

// WithCache sets the cache flag.
func WithCache(enabled bool) Option {
	return func(c *Crew) { c.Cache = enabled }
}

// WithVerbose sets operator-facing verbosity.
func WithVerbose(verbose bool) Option {
	return func(c *Crew) { c.Verbose = verbose }
}

// New validates agents and tasks and returns a crew.
// On any validation failure no crew is returned.
func New(agents []*models.Agent, tasks []*models.Task, opts ...Option) (*Crew, error) {
	c := &Crew{
		ID:      strings.ReplaceAll(uuid.New().String(), "-", ""),
		Agents:  append([]*models.Agent(nil), agents...),
		Tasks:   append([]*models.Task(nil), tasks...),
		Process: models.ProcessSequential,
		Memory:  true,
		Verbose: true,
	}
	for _, opt := range opts {
		opt(c)
	}

	if !c.Process.Valid() {
		return nil, models.NewConfigError("crew.process", "unknown process type %q", c.Process)
	}
	if c.MaxRPM < 0 {
		return nil, models.NewConfigError("crew.max_rpm", "must not be negative, got %d", c.MaxRPM)
	}
	if err := graph.Validate(c.Agents, c.Tasks); err != nil {
		return nil, fmt.Errorf("validate crew: %w", err)
	}
	if c.ManagerID != "" && c.AgentByID(c.ManagerID) == nil {
		return nil, models.NewConfigError("crew.manager", "agent %s is not in the crew", c.ManagerID)
	}
	return c, nil
}

// TaskByID returns the task with the given ID, or nil.
func (c *Crew) TaskByID(id string) *models.Task {
	for _, t := range c.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// AgentByID returns the agent with the given ID, or nil.
func (c *Crew) AgentByID(id string) *models.Agent {
	for _, a := range c.Agents {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// GetReadyTasks returns pending tasks whose dependencies have all completed,
// in definition order.
func (c *Crew) GetReadyTasks() []*models.Task {
	var ready []*models.Task
	for _, t := range c.Tasks {
		if t.Status() == models.TaskStatusPending && t.IsReady() {
			ready = append(ready, t)
		}
	}
	return ready
}

// IsComplete reports whether every task is completed or skipped.
func (c *Crew) IsComplete() bool {
	for _, t := range c.Tasks {
		switch t.Status() {
		case models.TaskStatusCompleted, models.TaskStatusSkipped:
		default:
			return false
		}
	}
	return true
}

// HasFailedTasks reports whether any task has failed.
func (c *Crew) HasFailedTasks() bool {
	return c.anyStatus(models.TaskStatusFailed)
}

// HasInProgressTasks reports whether any task is running.
func (c *Crew) HasInProgressTasks() bool {
	return c.anyStatus(models.TaskStatusInProgress)
}

func (c *Crew) anyStatus(s models.TaskStatus) bool {
	for _, t := range c.Tasks {
		if t.Status() == s {
			return true
		}
	}
	return false
}

// Counts returns the number of tasks in each status.
func (c *Crew) Counts() map[models.TaskStatus]int {
	counts := make(map[models.TaskStatus]int)
	for _, t := range c.Tasks {
		counts[t.Status()]++
	}
	return counts
}

// Manager returns the agent that delegates in hierarchical runs: ManagerID
// if set, otherwise the first agent allowed to delegate. It returns nil when
// the crew has no such agent.
func (c *Crew) Manager() *models.Agent {
	if c.ManagerID != "" {
		return c.AgentByID(c.ManagerID)
	}
	for _, a := range c.Agents {
		if a.AllowDelegation {
			return a
		}
	}
	return nil
}

// Workers returns every agent except the manager.
func (c *Crew) Workers() []*models.Agent {
	manager := c.Manager()
	workers := make([]*models.Agent, 0, len(c.Agents))
	for _, a := range c.Agents {
		if manager != nil && a.ID == manager.ID {
			continue
		}
		workers = append(workers, a)
	}
	return workers
}

// Graph builds the dependency graph of the crew's tasks.
func (c *Crew) Graph() (*graph.DependencyGraph, error) {
	g := graph.New()
	if err := g.Build(c.Tasks); err != nil {
		return nil, err
	}
	return g, nil
}

// String returns a short description of the crew.
func (c *Crew) String() string {
	return fmt.Sprintf("Crew(agents=%d, tasks=%d, process=%s)", len(c.Agents), len(c.Tasks), c.Process)
}
