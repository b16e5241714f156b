package orchestrator

import (
	"context"

	"github.com/ShayCichocki/crewline/internal/crew"
	"github.com/ShayCichocki/crewline/internal/memory"
)

// Checkpointer persists crew state after every step.
// checkpoint.Manager satisfies it.
type Checkpointer interface {
	Save(ctx context.Context, c *crew.Crew) error
}

// Option configures an Engine. Use With* functions to create Options.
type Option func(*engineOptions)

type engineOptions struct {
	memory        memory.Store
	checkpoints   Checkpointer
	maxParallel   int
	skipOnFailure bool
	delegator     Delegator
	pause         *PauseController
	signals       *SignalWatcher
	metrics       *Metrics
	logger        *DebugLogger
	eventBuffer   int
}

// WithMemoryStore sets the shared memory store. Without it a crew with
// memory enabled gets a fresh MapStore.
func WithMemoryStore(s memory.Store) Option {
	return func(o *engineOptions) { o.memory = s }
}

// WithCheckpointManager sets where state is saved after every step.
// It is only used when the crew has checkpointing enabled.
func WithCheckpointManager(c Checkpointer) Option {
	return func(o *engineOptions) { o.checkpoints = c }
}

// WithMaxParallel limits concurrent turns in a parallel wave.
// Zero or negative means no limit.
func WithMaxParallel(n int) Option {
	return func(o *engineOptions) { o.maxParallel = n }
}

// WithSkipOnFailure marks pending transitive dependents of a failed task
// as skipped instead of leaving them pending.
func WithSkipOnFailure(skip bool) Option {
	return func(o *engineOptions) { o.skipOnFailure = skip }
}

// WithDelegator sets how the manager picks workers in hierarchical runs.
// The default consults the manager through the engine's turn executor.
func WithDelegator(d Delegator) Option {
	return func(o *engineOptions) { o.delegator = d }
}

// WithPauseController shares a pause controller with the caller.
func WithPauseController(p *PauseController) Option {
	return func(o *engineOptions) { o.pause = p }
}

// WithSignals attaches a signal-file watcher to the run.
func WithSignals(w *SignalWatcher) Option {
	return func(o *engineOptions) { o.signals = w }
}

// WithMetrics records engine activity in m.
func WithMetrics(m *Metrics) Option {
	return func(o *engineOptions) { o.metrics = m }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *engineOptions) { o.logger = l }
}

// WithEventBuffer enables the event stream with a buffer of n events.
// Events are disabled when n is zero.
func WithEventBuffer(n int) Option {
	return func(o *engineOptions) { o.eventBuffer = n }
}
