package models

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusInProgress indicates the task is being worked on.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusCompleted indicates the task finished with a result.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the turn executor failed for this task.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusSkipped indicates the engine decided not to run the task.
	TaskStatusSkipped TaskStatus = "skipped"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed, TaskStatusSkipped:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further transition is possible from s.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusSkipped:
		return true
	default:
		return false
	}
}

// allowedTransitions is the task lifecycle. Nothing returns to pending.
var allowedTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending:    {TaskStatusInProgress, TaskStatusSkipped},
	TaskStatusInProgress: {TaskStatusCompleted, TaskStatusFailed},
}

// CanTransition reports whether the lifecycle permits from -> to.
func CanTransition(from, to TaskStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TaskContext is a free-form bag of variables rendered into the task prompt.
type TaskContext map[string]any

// SortedKeys returns the context keys in lexical order.
func (c TaskContext) SortedKeys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Task is a unit of work bound to one agent and gated on its dependencies.
// The agent and dependencies are references; the task does not own them.
type Task struct {
	// ID is the unique identifier for this task.
	ID string
	// Description says what needs to be done.
	Description string
	// ExpectedOutput describes the expected shape of the result.
	ExpectedOutput string
	// Agent is the agent responsible for this task.
	Agent *Agent
	// Dependencies must all complete before this task is ready.
	Dependencies []*Task
	// Context holds extra variables for the prompt.
	Context TaskContext
	// AsyncExecution is carried through definitions and checkpoints.
	AsyncExecution bool

	mu     sync.RWMutex
	status TaskStatus
	result string
	err    string
}

// TaskOption configures a Task during construction.
type TaskOption func(*Task)

// WithTaskID sets an explicit task ID instead of a generated one.
func WithTaskID(id string) TaskOption {
	return func(t *Task) {
		if id != "" {
			t.ID = id
		}
	}
}

// WithExpectedOutput sets the expected output description.
func WithExpectedOutput(expected string) TaskOption {
	return func(t *Task) { t.ExpectedOutput = expected }
}

// WithDependencies sets the tasks this task waits on.
func WithDependencies(deps ...*Task) TaskOption {
	return func(t *Task) { t.Dependencies = append([]*Task(nil), deps...) }
}

// WithContext sets the free-form prompt context.
func WithContext(ctx TaskContext) TaskOption {
	return func(t *Task) {
		t.Context = make(TaskContext, len(ctx))
		for k, v := range ctx {
			t.Context[k] = v
		}
	}
}

// WithAsync marks the task for asynchronous execution.
func WithAsync(async bool) TaskOption {
	return func(t *Task) { t.AsyncExecution = async }
}

// NewTask creates a pending task bound to agent.
func NewTask(description string, agent *Agent, opts ...TaskOption) (*Task, error) {
	t := &Task{
		ID:          uuid.New().String(),
		Description: description,
		Agent:       agent,
		Context:     TaskContext{},
		status:      TaskStatusPending,
	}
	for _, opt := range opts {
		opt(t)
	}

	if strings.TrimSpace(t.Description) == "" {
		return nil, NewConfigError("task.description", "cannot be empty")
	}
	if t.Agent == nil {
		return nil, NewConfigError("task.agent", "task must have an assigned agent")
	}
	for i, dep := range t.Dependencies {
		if dep == nil {
			return nil, NewConfigError(fmt.Sprintf("task.dependencies[%d]", i), "nil dependency")
		}
		if dep == t || dep.ID == t.ID {
			return nil, NewConfigError(fmt.Sprintf("task.dependencies[%d]", i), "task cannot depend on itself")
		}
	}
	return t, nil
}

// Status returns the current status.
func (t *Task) Status() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Result returns the output text. It is empty unless the task completed.
func (t *Task) Result() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.result
}

// Error returns the failure text. It is empty unless the task failed.
func (t *Task) Error() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// IsReady reports whether every dependency has completed.
// It is evaluated on every call because dependency statuses move during a run.
func (t *Task) IsReady() bool {
	for _, dep := range t.Dependencies {
		if dep.Status() != TaskStatusCompleted {
			return false
		}
	}
	return true
}

// MarkInProgress moves the task from pending to in_progress.
func (t *Task) MarkInProgress() error {
	return t.transition(TaskStatusInProgress, "", "")
}

// MarkCompleted moves the task from in_progress to completed with output.
func (t *Task) MarkCompleted(output string) error {
	return t.transition(TaskStatusCompleted, output, "")
}

// MarkFailed moves the task from in_progress to failed with errText.
func (t *Task) MarkFailed(errText string) error {
	return t.transition(TaskStatusFailed, "", errText)
}

// MarkSkipped moves the task from pending to skipped.
func (t *Task) MarkSkipped() error {
	return t.transition(TaskStatusSkipped, "", "")
}

func (t *Task) transition(to TaskStatus, result, errText string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !CanTransition(t.status, to) {
		return fmt.Errorf("task %s: %s -> %s: %w", t.ID, t.status, to, ErrInvalidTransition)
	}
	t.status = to
	t.result = result
	t.err = errText
	return nil
}

// Restore sets status, result and error directly, bypassing the lifecycle.
// It exists for rehydrating tasks from a checkpoint and rejects unknown statuses.
func (t *Task) Restore(status TaskStatus, result, errText string) error {
	if !status.Valid() {
		return NewConfigError("task.status", "unknown status %q", status)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = status
	t.result = ""
	t.err = ""
	switch status {
	case TaskStatusCompleted:
		t.result = result
	case TaskStatusFailed:
		t.err = errText
	}
	return nil
}

// DependencyIDs returns the IDs of the task's dependencies, in order.
func (t *Task) DependencyIDs() []string {
	ids := make([]string, 0, len(t.Dependencies))
	for _, dep := range t.Dependencies {
		ids = append(ids, dep.ID)
	}
	return ids
}

// Prompt renders the instruction sent to the agent for this task.
// Completed dependencies contribute their agent's role and result.
func (t *Task) Prompt() string {
	var b strings.Builder

	b.WriteString("# Task\n")
	b.WriteString(t.Description)

	if t.ExpectedOutput != "" {
		b.WriteString("\n\n# Expected Output\n")
		b.WriteString(t.ExpectedOutput)
	}

	if len(t.Context) > 0 {
		b.WriteString("\n\n# Context")
		for _, key := range t.Context.SortedKeys() {
			fmt.Fprintf(&b, "\n- %s: %v", key, t.Context[key])
		}
	}

	if len(t.Dependencies) > 0 {
		b.WriteString("\n\n# Previous Results")
		for _, dep := range t.Dependencies {
			if res := dep.Result(); res != "" {
				fmt.Fprintf(&b, "\n- %s: %s", dep.Agent.Role, res)
			}
		}
	}

	return b.String()
}

// String returns a short description of the task.
func (t *Task) String() string {
	return fmt.Sprintf("Task(description=%q, status=%s)", Truncate(t.Description, 50), t.Status())
}
