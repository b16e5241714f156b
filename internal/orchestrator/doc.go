// Package orchestrator executes a crew's task graph with one of the process
// strategies and reports progress as events.
//
// The orchestrator package provides:
//   - Sequential runs: one ready task at a time, in definition order
//   - Parallel runs: every ready task of a wave at once, bounded by MaxParallel
//   - Hierarchical runs: a manager agent picks the worker for each ready task
//
// The Engine checkpoints after every step when the crew enables it, honours
// pause and stop requests from the PauseController or signal files, and
// throttles turn starts to the crew's MaxRPM.
//
// Example usage:
//
//	engine := orchestrator.New(c, agent.EchoExecutor{},
//	    orchestrator.WithMaxParallel(4),
//	    orchestrator.WithSkipOnFailure(true),
//	)
//	out, err := engine.Execute(ctx, map[string]any{"topic": "release notes"})
package orchestrator
