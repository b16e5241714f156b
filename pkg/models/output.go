package models

import "time"

// ResultMetadata describes how a single task execution went.
type ResultMetadata struct {
	// AgentID is the agent that executed the task.
	AgentID string `json:"agent_id"`
	// AgentRole is that agent's role.
	AgentRole string `json:"agent_role"`
	// ExecutionTime is how long the turn executor took. Zero for failures
	// that never reached the executor.
	ExecutionTime time.Duration `json:"execution_time,omitempty"`
	// DelegatedBy is the manager agent ID in hierarchical runs.
	DelegatedBy string `json:"delegated_by,omitempty"`
}

// TaskResult is the outcome of executing one task.
type TaskResult struct {
	TaskID   string         `json:"task_id"`
	Success  bool           `json:"success"`
	Output   string         `json:"output"`
	Error    string         `json:"error"`
	Metadata ResultMetadata `json:"metadata"`
}

// OutputMetadata summarizes a crew run.
type OutputMetadata struct {
	// Process is the strategy the run used.
	Process ProcessType `json:"process"`
	// TotalTasks is the number of tasks in the crew.
	TotalTasks int `json:"total_tasks"`
	// CompletedTasks counts tasks executed in this run, successful or not.
	CompletedTasks int `json:"completed_tasks"`
	// Cancelled is set when the run stopped before every task settled.
	Cancelled bool `json:"cancelled,omitempty"`
	// Duration is the wall time of the run.
	Duration time.Duration `json:"duration"`
	// Extra holds anything else a caller wants to attach.
	Extra map[string]any `json:"extra,omitempty"`
}

// CrewOutput is the aggregated result of a crew run.
type CrewOutput struct {
	// TasksOutput lists per-task results in execution order.
	TasksOutput []TaskResult `json:"tasks_output"`
	// FinalOutput is the synthesized markdown report.
	FinalOutput string `json:"final_output"`
	// Success is true iff no task ended failed.
	Success bool `json:"success"`
	// Metadata summarizes the run.
	Metadata OutputMetadata `json:"metadata"`
}
