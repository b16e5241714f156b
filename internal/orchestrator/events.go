package orchestrator

import (
	"time"
)

// EventType represents the type of engine event.
type EventType string

const (
	// EventTaskQueued indicates a task is ready and queued for execution.
	EventTaskQueued EventType = "task_queued"
	// EventTaskStarted indicates a task has started execution.
	EventTaskStarted EventType = "task_started"
	// EventTaskCompleted indicates a task completed successfully.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates the turn executor failed for a task.
	EventTaskFailed EventType = "task_failed"
	// EventTaskSkipped indicates a task was skipped after an upstream failure.
	EventTaskSkipped EventType = "task_skipped"
	// EventTaskDelegated indicates the manager assigned a task to a worker.
	EventTaskDelegated EventType = "task_delegated"
	// EventWaveStarted indicates a new set of ready tasks is being dispatched.
	EventWaveStarted EventType = "wave_started"
	// EventCheckpointSaved indicates the crew state was checkpointed.
	EventCheckpointSaved EventType = "checkpoint_saved"
	// EventRunPaused indicates dispatch is held until a resume or stop.
	EventRunPaused EventType = "run_paused"
	// EventRunResumed indicates dispatch was released. Duration is the pause length.
	EventRunResumed EventType = "run_resumed"
	// EventRunStopped indicates the run was asked to stop. Message is the reason.
	EventRunStopped EventType = "run_stopped"
	// EventRunDone indicates the run has finished, successfully or not.
	EventRunDone EventType = "run_done"
)

// Event represents something that happened during a run.
// Events feed the TUI and any other progress consumer.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// TaskID is the ID of the related task, if applicable.
	TaskID string
	// TaskTitle is a shortened task description, if applicable.
	TaskTitle string
	// AgentID is the ID of the agent executing the task, if applicable.
	AgentID string
	// AgentRole is that agent's role.
	AgentRole string
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Wave is the 1-based dispatch step the event belongs to.
	Wave int
	// Duration is the task execution time or, for EventRunDone, the run time.
	Duration time.Duration
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
