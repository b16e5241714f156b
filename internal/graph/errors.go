package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrNoAgents indicates a crew was defined without agents.
	ErrNoAgents = errors.New("crew must have at least one agent")
	// ErrNoTasks indicates a crew was defined without tasks.
	ErrNoTasks = errors.New("crew must have at least one task")
	// ErrAgentNotInCrew indicates a task is bound to an agent the crew does not contain.
	ErrAgentNotInCrew = errors.New("task agent not in crew agents")
	// ErrUnknownDependency indicates a task depends on a task outside the crew.
	ErrUnknownDependency = errors.New("task depends on unknown task")
	// ErrDuplicateID indicates two agents or two tasks share an ID.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrCycleDetected indicates a circular dependency was found in the task graph.
	ErrCycleDetected = errors.New("circular dependency detected")
)

// Error is a graph validation failure tied to a task.
type Error struct {
	// TaskID is the offending task, empty for crew-level failures.
	TaskID string
	// Ref is the referenced agent or task ID, when relevant. Without a
	// TaskID it is the offending agent.
	Ref string
	// Err is one of the package sentinel errors.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.TaskID == "" && e.Ref != "":
		return fmt.Sprintf("%s (agent %s)", e.Err, e.Ref)
	case e.TaskID == "":
		return e.Err.Error()
	case e.Ref == "":
		return fmt.Sprintf("%s (task %s)", e.Err, e.TaskID)
	default:
		return fmt.Sprintf("%s (task %s -> %s)", e.Err, e.TaskID, e.Ref)
	}
}

// Unwrap returns the sentinel error.
func (e *Error) Unwrap() error {
	return e.Err
}
