package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ShayCichocki/crewline/internal/agent"
	"github.com/ShayCichocki/crewline/internal/crew"
	"github.com/ShayCichocki/crewline/internal/graph"
	"github.com/ShayCichocki/crewline/internal/memory"
	"github.com/ShayCichocki/crewline/pkg/models"
)

var (
	// ErrNoProgress means nothing is ready, nothing failed and the crew is
	// not complete. A validated graph never gets here.
	ErrNoProgress = errors.New("no ready tasks but workflow not complete")
	// ErrAlreadyRun is returned when Execute is called twice on one Engine.
	ErrAlreadyRun = errors.New("engine has already run")
)

// InterruptedError is recorded on tasks that a checkpoint caught mid-turn.
const InterruptedError = "interrupted before checkpoint"

// TaskResultKey returns the memory key a task's output is published under.
func TaskResultKey(taskID string) string {
	return "task_" + taskID + "_result"
}

// Engine drives one crew run.
type Engine struct {
	crew          *crew.Crew
	exec          agent.TurnExecutor
	memory        memory.Store
	checkpoints   Checkpointer
	maxParallel   int
	skipOnFailure bool
	delegator     Delegator
	pause         *PauseController
	signals       *SignalWatcher
	metrics       *Metrics
	logger        *DebugLogger
	emitter       *EventEmitter
	limiter       *rate.Limiter

	graph *graph.DependencyGraph
	ran   atomic.Bool

	mu      sync.Mutex
	results []models.TaskResult
	wave    int
}

// New creates an engine for c that executes turns with exec.
func New(c *crew.Crew, exec agent.TurnExecutor, opts ...Option) *Engine {
	o := &engineOptions{}
	for _, opt := range opts {
		opt(o)
	}

	e := &Engine{
		crew:          c,
		exec:          exec,
		checkpoints:   o.checkpoints,
		maxParallel:   o.maxParallel,
		skipOnFailure: o.skipOnFailure,
		delegator:     o.delegator,
		pause:         o.pause,
		signals:       o.signals,
		metrics:       o.metrics,
		logger:        o.logger,
	}

	if c.Memory {
		e.memory = o.memory
		if e.memory == nil {
			e.memory = memory.NewMapStore()
		}
	}
	if e.delegator == nil {
		e.delegator = NewTurnDelegator(exec)
	}
	if e.pause == nil {
		e.pause = NewPauseController()
	}
	if e.logger == nil {
		e.logger = NopLogger()
	} else {
		setPackageLogger(e.logger)
	}
	if o.eventBuffer > 0 {
		e.emitter = NewEventEmitter(o.eventBuffer)
	}
	if c.MaxRPM > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(float64(c.MaxRPM)/60.0), 1)
	}
	return e
}

// Memory returns the run's shared memory store, or nil when the crew has
// memory disabled.
func (e *Engine) Memory() memory.Store {
	return e.memory
}

// Events returns the event stream, or nil when events are disabled.
// The channel is closed when Execute returns.
func (e *Engine) Events() <-chan Event {
	if e.emitter == nil {
		return nil
	}
	return e.emitter.Events()
}

// Pause holds dispatch between steps.
func (e *Engine) Pause() { e.pause.Pause() }

// Resume releases a Pause.
func (e *Engine) Resume() { e.pause.Resume() }

// Stop ends the run after the tasks already executing settle.
func (e *Engine) Stop() { e.pause.Stop() }

// Execute runs the crew to completion and returns the aggregated output.
//
// Task failures are reported through the output, not the error. A stopped
// or cancelled run returns the partial output with Metadata.Cancelled set
// and a nil error. The error is non-nil for configuration problems,
// ErrNoProgress and checkpoint failures; in the checkpoint case the partial
// output is returned alongside it.
func (e *Engine) Execute(ctx context.Context, inputs map[string]any) (*models.CrewOutput, error) {
	if !e.ran.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}
	defer e.closeEvents()
	defer e.pause.OnChange(e.pauseChanged)()

	start := time.Now()
	c := e.crew

	if c.Process == models.ProcessHierarchical && c.Manager() == nil {
		return nil, models.NewConfigError("crew.manager",
			"hierarchical process requires a manager or an agent with allow_delegation")
	}

	g, err := c.Graph()
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	e.graph = g
	g.SetDebugLog(e.logger.Log)

	if e.signals != nil {
		e.signals.Attach(e.pause)
	}

	e.verbosef("starting crew %s (process=%s, agents=%d, tasks=%d)", c.ID, c.Process, len(c.Agents), len(c.Tasks))

	if e.memory != nil {
		keys := make([]string, 0, len(inputs))
		for k := range inputs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			e.memory.Set(k, inputs[k])
		}
	}

	e.recoverInterrupted()

	var (
		cancelled bool
		runErr    error
	)
	for !c.IsComplete() {
		if e.stopRequested(ctx) {
			cancelled = true
			break
		}
		if err := e.pause.WaitIfPaused(ctx); err != nil {
			cancelled = true
			break
		}

		ready := c.GetReadyTasks()
		if len(ready) == 0 {
			if c.HasFailedTasks() {
				e.logger.Log("[engine] no ready tasks; remaining tasks are blocked by failures")
				break
			}
			counts := c.Counts()
			return nil, fmt.Errorf("%w (pending=%d, in_progress=%d)", ErrNoProgress,
				counts[models.TaskStatusPending], counts[models.TaskStatusInProgress])
		}

		e.wave++
		e.emit(Event{Type: EventWaveStarted, Wave: e.wave, Message: fmt.Sprintf("%d ready", len(ready))})
		e.logger.Log("[engine] step %d: %d ready tasks", e.wave, len(ready))

		var started int
		switch c.Process {
		case models.ProcessParallel:
			started = e.runWave(ctx, ready)
		case models.ProcessHierarchical:
			started = e.runDelegated(ctx, ready[0])
		default:
			started = e.runSequential(ctx, ready[0])
		}
		if started == 0 {
			// Nothing changed state, so there is nothing to checkpoint.
			e.wave--
			if !e.stopRequested(ctx) {
				runErr = fmt.Errorf("%w: step %d started no tasks", ErrNoProgress, e.wave+1)
			}
			break
		}
		e.metrics.observeWave(c.Process)

		if err := e.checkpoint(ctx); err != nil {
			runErr = err
			break
		}
	}

	if ctx.Err() != nil || e.pause.IsStopped() {
		cancelled = cancelled || !c.IsComplete()
	}

	out := e.output(start, cancelled)
	e.emit(Event{Type: EventRunDone, Duration: out.Metadata.Duration, Message: runSummary(out)})
	e.verbosef("crew %s finished: %s", c.ID, runSummary(out))
	return out, runErr
}

// runSequential executes a single ready task with its bound agent. It
// returns the number of tasks started, 0 or 1.
func (e *Engine) runSequential(ctx context.Context, task *models.Task) int {
	res := e.executeTask(ctx, task, nil)
	if res == nil {
		return 0
	}
	e.record(*res)
	return 1
}

// runWave executes every ready task concurrently and waits for all of them.
// Results are recorded in ready-list order. It returns the number of tasks
// started.
func (e *Engine) runWave(ctx context.Context, ready []*models.Task) int {
	results := make([]*models.TaskResult, len(ready))

	var g errgroup.Group
	if e.maxParallel > 0 {
		g.SetLimit(e.maxParallel)
	}
	for i, task := range ready {
		e.emit(Event{Type: EventTaskQueued, TaskID: task.ID, TaskTitle: models.Truncate(task.Description, 60), Wave: e.wave})
		g.Go(func() error {
			results[i] = e.executeTask(ctx, task, nil)
			return nil
		})
	}
	_ = g.Wait()

	started := 0
	for _, res := range results {
		if res != nil {
			e.record(*res)
			started++
		}
	}
	return started
}

// runDelegated lets the manager pick a worker for task, then executes it.
func (e *Engine) runDelegated(ctx context.Context, task *models.Task) int {
	res := e.executeTask(ctx, task, e.crew.Manager())
	if res == nil {
		return 0
	}
	e.record(*res)
	return 1
}

// executeTask runs the single-task protocol. With a manager the worker is
// chosen by the delegator once the task is in progress. It returns nil if
// the task was never started.
func (e *Engine) executeTask(ctx context.Context, task *models.Task, manager *models.Agent) *models.TaskResult {
	if e.stopRequested(ctx) {
		return nil
	}
	if e.limiter != nil {
		// Wait fails early when ctx would expire before the next slot.
		if err := e.limiter.Wait(ctx); err != nil {
			e.pause.StopWithReason(fmt.Sprintf("rate limit: %v", err))
			return nil
		}
	}
	if err := task.MarkInProgress(); err != nil {
		e.logger.Log("[engine] cannot start task %s: %v", task.ID, err)
		return nil
	}

	worker := task.Agent
	var meta models.ResultMetadata
	if manager != nil {
		meta.DelegatedBy = manager.ID
		chosen, err := e.delegator.Delegate(ctx, manager, task, e.crew.Workers())
		if err != nil {
			meta.AgentID, meta.AgentRole = worker.ID, worker.Role
			return e.fail(task, meta, fmt.Errorf("delegation: %w", err))
		}
		if chosen != nil {
			worker = chosen
		}
		e.emit(Event{Type: EventTaskDelegated, TaskID: task.ID, AgentID: worker.ID, AgentRole: worker.Role,
			Message: "assigned by " + manager.Role, Wave: e.wave})
	}
	meta.AgentID, meta.AgentRole = worker.ID, worker.Role

	e.emit(Event{Type: EventTaskStarted, TaskID: task.ID, TaskTitle: models.Truncate(task.Description, 60),
		AgentID: worker.ID, AgentRole: worker.Role, Wave: e.wave})
	e.verbosef("executing task %s with %s", shortID(task.ID), worker.Role)

	prompt := task.Prompt()
	if e.memory != nil && worker.MemoryEnabled {
		prompt += MemorySection(e.memory.GetAll())
	}

	started := time.Now()
	output, err := e.exec.ExecuteTurn(ctx, worker, prompt)
	meta.ExecutionTime = time.Since(started)
	if err != nil {
		return e.fail(task, meta, err)
	}

	if err := task.MarkCompleted(output); err != nil {
		e.logger.Log("[engine] cannot complete task %s: %v", task.ID, err)
	}
	if e.memory != nil {
		e.memory.Set(TaskResultKey(task.ID), output)
	}

	e.metrics.observeTask(models.TaskStatusCompleted, worker.Role, meta.ExecutionTime)
	e.emit(Event{Type: EventTaskCompleted, TaskID: task.ID, TaskTitle: models.Truncate(task.Description, 60),
		AgentID: worker.ID, AgentRole: worker.Role, Duration: meta.ExecutionTime, Wave: e.wave})
	e.verbosef("task %s completed in %s", shortID(task.ID), meta.ExecutionTime.Round(time.Millisecond))

	return &models.TaskResult{
		TaskID:   task.ID,
		Success:  true,
		Output:   output,
		Metadata: meta,
	}
}

// fail records a failed turn on an in-progress task.
func (e *Engine) fail(task *models.Task, meta models.ResultMetadata, err error) *models.TaskResult {
	errText := err.Error()
	if markErr := task.MarkFailed(errText); markErr != nil {
		e.logger.Log("[engine] cannot fail task %s: %v", task.ID, markErr)
	}

	e.metrics.observeTask(models.TaskStatusFailed, meta.AgentRole, meta.ExecutionTime)
	e.emit(Event{Type: EventTaskFailed, TaskID: task.ID, TaskTitle: models.Truncate(task.Description, 60),
		AgentID: meta.AgentID, AgentRole: meta.AgentRole, Error: err, Duration: meta.ExecutionTime, Wave: e.wave})
	e.verbosef("task %s failed: %s", shortID(task.ID), errText)

	if e.skipOnFailure {
		e.skipDependents(task)
	}

	return &models.TaskResult{
		TaskID:   task.ID,
		Success:  false,
		Error:    errText,
		Metadata: meta,
	}
}

// skipDependents marks every pending transitive dependent of task skipped.
func (e *Engine) skipDependents(task *models.Task) {
	for _, id := range e.graph.TransitiveDependents(task.ID) {
		dep := e.crew.TaskByID(id)
		if dep == nil || dep.Status() != models.TaskStatusPending {
			continue
		}
		if err := dep.MarkSkipped(); err != nil {
			continue
		}
		e.metrics.observeTask(models.TaskStatusSkipped, dep.Agent.Role, 0)
		e.emit(Event{Type: EventTaskSkipped, TaskID: dep.ID, TaskTitle: models.Truncate(dep.Description, 60),
			Message: "dependency " + task.ID + " failed", Wave: e.wave})
	}
}

// recoverInterrupted fails tasks a checkpoint captured mid-turn. They
// cannot return to pending, so the run treats them as failed.
func (e *Engine) recoverInterrupted() {
	for _, t := range e.crew.Tasks {
		if t.Status() != models.TaskStatusInProgress {
			continue
		}
		if err := t.MarkFailed(InterruptedError); err == nil {
			log.Printf("[engine] task %s was in progress at checkpoint time; marked failed", t.ID)
		}
	}
}

func (e *Engine) checkpoint(ctx context.Context) error {
	if !e.crew.CheckpointEnabled || e.checkpoints == nil {
		return nil
	}
	if err := e.checkpoints.Save(ctx, e.crew); err != nil {
		return fmt.Errorf("checkpoint after step %d: %w", e.wave, err)
	}
	e.emit(Event{Type: EventCheckpointSaved, Wave: e.wave})
	return nil
}

// pauseChanged surfaces controller transitions as run events.
func (e *Engine) pauseChanged(change StateChange) {
	ev := Event{Duration: change.Held}
	switch change.State {
	case RunPaused:
		ev.Type, ev.Message = EventRunPaused, "dispatch held"
	case RunActive:
		ev.Type, ev.Message = EventRunResumed, fmt.Sprintf("dispatch resumed after %s", change.Held.Round(time.Millisecond))
	case RunStopped:
		ev.Type, ev.Message = EventRunStopped, change.Reason
	}
	e.logger.Log("[engine] %s: %s", change.State, ev.Message)
	e.emit(ev)
}

func (e *Engine) stopRequested(ctx context.Context) bool {
	if ctx.Err() != nil || e.pause.IsStopped() {
		return true
	}
	if e.signals != nil && e.signals.ShouldStop() {
		e.pause.StopWithReason("stop signal file")
		return true
	}
	return false
}

func (e *Engine) record(res models.TaskResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.results = append(e.results, res)
}

func (e *Engine) output(start time.Time, cancelled bool) *models.CrewOutput {
	e.mu.Lock()
	results := append([]models.TaskResult(nil), e.results...)
	e.mu.Unlock()

	return &models.CrewOutput{
		TasksOutput: results,
		FinalOutput: FinalReport(results),
		Success:     !e.crew.HasFailedTasks(),
		Metadata: models.OutputMetadata{
			Process:        e.crew.Process,
			TotalTasks:     len(e.crew.Tasks),
			CompletedTasks: len(results),
			Cancelled:      cancelled,
			Duration:       time.Since(start),
		},
	}
}

func (e *Engine) emit(ev Event) {
	if e.emitter != nil {
		e.emitter.Emit(ev)
	}
}

func (e *Engine) closeEvents() {
	if e.emitter != nil {
		e.emitter.Close()
	}
}

func (e *Engine) verbosef(format string, args ...interface{}) {
	e.logger.Log("[engine] "+format, args...)
	if e.crew.Verbose {
		log.Printf("[engine] "+format, args...)
	}
}

// FinalReport renders per-task results, in execution order, as markdown.
func FinalReport(results []models.TaskResult) string {
	var b strings.Builder
	b.WriteString("# Workflow Results\n")
	for i, res := range results {
		if res.Success {
			fmt.Fprintf(&b, "\n## Task %d\nOutput: %s\n", i+1, res.Output)
		} else {
			fmt.Fprintf(&b, "\n## Task %d (FAILED)\nError: %s\n", i+1, res.Error)
		}
	}
	return b.String()
}

// MemorySection renders a memory snapshot for inclusion in a prompt, in
// key order. An empty snapshot renders as nothing.
func MemorySection(snapshot map[string]any) string {
	if len(snapshot) == 0 {
		return ""
	}
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("\n\n# Shared Memory\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %v\n", k, snapshot[k])
	}
	return b.String()
}

func runSummary(out *models.CrewOutput) string {
	failed := 0
	for _, r := range out.TasksOutput {
		if !r.Success {
			failed++
		}
	}
	summary := fmt.Sprintf("%d/%d tasks executed, %d failed", out.Metadata.CompletedTasks, out.Metadata.TotalTasks, failed)
	if out.Metadata.Cancelled {
		summary += " (cancelled)"
	}
	return summary
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
