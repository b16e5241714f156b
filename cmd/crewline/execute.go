package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ShayCichocki/crewline/internal/api"
	"github.com/ShayCichocki/crewline/internal/checkpoint"
	"github.com/ShayCichocki/crewline/internal/config"
	"github.com/ShayCichocki/crewline/internal/crew"
	"github.com/ShayCichocki/crewline/internal/orchestrator"
	"github.com/ShayCichocki/crewline/internal/state"
	"github.com/ShayCichocki/crewline/internal/tui"
	"github.com/ShayCichocki/crewline/pkg/models"
)

// runOptions carries per-invocation settings shared by run and resume.
type runOptions struct {
	inputs      map[string]any
	checkpoint  string
	dryRun      bool
	tui         bool
	metricsAddr string
}

// execute wires the configured backends around an engine for c, runs it and
// prints the report to w. It returns an error when the run fails.
func execute(ctx context.Context, w io.Writer, cfg *config.Config, c *crew.Crew, ro runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	exec, tracker, err := newExecutor(cfg, ro.dryRun)
	if err != nil {
		return err
	}

	store, closeMemory, err := newMemory(ctx, cfg, c)
	if err != nil {
		return err
	}
	defer closeMemory()

	opts := []orchestrator.Option{
		orchestrator.WithMemoryStore(store),
		orchestrator.WithMaxParallel(cfg.Engine.MaxParallel),
		orchestrator.WithSkipOnFailure(cfg.Engine.SkipOnFailure),
	}
	if c.Process == models.ProcessHierarchical {
		opts = append(opts, orchestrator.WithDelegator(orchestrator.NewTurnDelegator(exec)))
	}

	if ro.checkpoint != "" {
		storage, closeStorage, err := newCheckpointStorage(cfg)
		if err != nil {
			return err
		}
		defer closeStorage()
		opts = append(opts, orchestrator.WithCheckpointManager(checkpoint.NewManager(storage, ro.checkpoint)))
	}

	if signals, err := orchestrator.NewSignalWatcher(cfg.Engine.StateDir); err != nil {
		log.Printf("[signals] disabled: %v", err)
	} else {
		// Leftover files from an earlier run must not stop this one.
		signals.ClearSignals()
		defer signals.Close()
		opts = append(opts, orchestrator.WithSignals(signals))
	}

	if logger := newDebugLogger(cfg); logger != nil {
		defer logger.Close()
		opts = append(opts, orchestrator.WithLogger(logger))
	}

	reg := prometheus.NewRegistry()
	metrics, err := orchestrator.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	opts = append(opts, orchestrator.WithMetrics(metrics))
	addr := ro.metricsAddr
	if addr == "" {
		addr = cfg.Metrics.Addr
	}
	if addr != "" {
		stop := serveMetrics(addr, reg)
		defer stop()
	}

	if ro.tui {
		opts = append(opts, orchestrator.WithEventBuffer(cfg.Engine.EventBuffer))
	}

	history := startRun(cfg, c, ro.checkpoint)

	engine := orchestrator.New(c, exec, opts...)
	var out *models.CrewOutput
	if ro.tui {
		out, err = runWithTUI(ctx, engine, c, ro.inputs)
	} else {
		out, err = engine.Execute(ctx, ro.inputs)
	}
	history.finish(out, err)

	return report(w, out, err, tracker)
}

// runWithTUI runs the engine behind the progress view. The engine keeps
// running until it settles even if the view is closed early.
func runWithTUI(ctx context.Context, engine *orchestrator.Engine, c *crew.Crew, inputs map[string]any) (*models.CrewOutput, error) {
	// Log output corrupts the display while the view is active.
	originalOutput := log.Writer()
	log.SetOutput(io.Discard)
	defer log.SetOutput(originalOutput)

	program, _ := tui.NewRunProgram(c, tui.WithControls(engine))
	go tui.Forward(ctx, program, engine.Events())

	type result struct {
		out *models.CrewOutput
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := engine.Execute(ctx, inputs)
		program.Send(tui.DoneMsg{Output: out, Err: err})
		done <- result{out, err}
	}()

	if _, err := program.Run(); err != nil {
		engine.Stop()
		res := <-done
		if res.err == nil {
			res.err = fmt.Errorf("terminal UI: %w", err)
		}
		return res.out, res.err
	}

	res := <-done
	return res.out, res.err
}

// report prints the rendered final report and a summary line. A failed,
// cancelled or erroring run returns an error so the exit status reflects it.
func report(w io.Writer, out *models.CrewOutput, runErr error, tracker *api.TokenTracker) error {
	if out == nil {
		if runErr == nil {
			runErr = errors.New("run produced no output")
		}
		printStatus(w, "✗", runErr.Error(), color.FgRed)
		return runErr
	}

	fmt.Fprint(w, renderMarkdown(out.FinalOutput))

	meta := out.Metadata
	summary := fmt.Sprintf("%d/%d tasks executed in %s (%s)",
		meta.CompletedTasks, meta.TotalTasks, meta.Duration.Round(time.Millisecond), meta.Process)
	if tracker != nil {
		in, outTokens := tracker.Total()
		summary += fmt.Sprintf(", %d in / %d out tokens, ~$%.4f", in, outTokens, tracker.Cost())
	}

	switch {
	case runErr != nil:
		printStatus(w, "✗", summary, color.FgRed)
		return runErr
	case meta.Cancelled:
		printStatus(w, "■", "Cancelled: "+summary, color.FgYellow)
		return errors.New("run cancelled before every task settled")
	case !out.Success:
		printStatus(w, "✗", "Failed: "+summary, color.FgRed)
		return errors.New("one or more tasks failed")
	default:
		printStatus(w, "✓", "Completed: "+summary, color.FgGreen)
		return nil
	}
}

// renderMarkdown renders md for the terminal, falling back to the raw text.
func renderMarkdown(md string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return md + "\n"
	}
	rendered, err := r.Render(md)
	if err != nil {
		return md + "\n"
	}
	return rendered
}

// newDebugLogger returns the engine trace logger, or nil when tracing is off.
func newDebugLogger(cfg *config.Config) *orchestrator.DebugLogger {
	if cfg.Log.DebugFile != "" {
		logger, err := orchestrator.NewDebugLogger(cfg.Log.DebugFile)
		if err != nil {
			log.Printf("[log] debug file disabled: %v", err)
			return nil
		}
		return logger
	}
	if cfg.Log.Level == "debug" {
		return orchestrator.NewDebugLoggerForDir(cfg.Engine.StateDir)
	}
	return nil
}

// serveMetrics exposes reg on addr/metrics and returns a shutdown function.
func serveMetrics(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[metrics] %v", err)
		}
	}()
	log.Printf("[metrics] serving on %s/metrics", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

// runHistory records a run in the state database. A nil history ignores
// every call, so a broken database never blocks a run.
type runHistory struct {
	db  *state.DB
	run *state.Run
}

// startRun opens the run history, marks runs whose process died as
// interrupted and records this one as running.
func startRun(cfg *config.Config, c *crew.Crew, checkpointName string) *runHistory {
	db, err := state.Open(state.DBPath(cfg.Engine.StateDir))
	if err != nil {
		log.Printf("[state] run history disabled: %v", err)
		return nil
	}
	if err := db.Migrate(); err != nil {
		log.Printf("[state] run history disabled: %v", err)
		db.Close()
		return nil
	}

	if stale, err := state.NewRecoveryManager(db).MarkInterrupted(); err != nil {
		log.Printf("[state] check interrupted runs: %v", err)
	} else {
		for _, r := range stale {
			log.Printf("[state] run %s of %s was interrupted (checkpoint %q)", r.ID, r.CrewID, r.Checkpoint)
		}
	}

	run := &state.Run{
		ID:         uuid.New().String(),
		CrewID:     c.ID,
		CrewName:   c.Name,
		Process:    string(c.Process),
		Checkpoint: checkpointName,
		PID:        os.Getpid(),
		TotalTasks: len(c.Tasks),
	}
	if err := db.CreateRun(run); err != nil {
		log.Printf("[state] record run: %v", err)
		db.Close()
		return nil
	}
	return &runHistory{db: db, run: run}
}

// finish stores the outcome and closes the database.
func (h *runHistory) finish(out *models.CrewOutput, runErr error) {
	if h == nil {
		return
	}
	defer h.db.Close()

	status, completed, errText := runOutcome(out, runErr)
	if err := h.db.FinishRun(h.run.ID, status, completed, errText); err != nil {
		log.Printf("[state] finish run %s: %v", h.run.ID, err)
	}
}

// runOutcome maps an engine result to a run history status.
func runOutcome(out *models.CrewOutput, runErr error) (state.RunStatus, int, string) {
	completed := 0
	if out != nil {
		completed = out.Metadata.CompletedTasks
	}
	switch {
	case runErr != nil:
		return state.RunFailed, completed, runErr.Error()
	case out == nil:
		return state.RunFailed, 0, "no output"
	case out.Metadata.Cancelled:
		return state.RunCancelled, completed, ""
	case !out.Success:
		return state.RunFailed, completed, "one or more tasks failed"
	default:
		return state.RunCompleted, completed, ""
	}
}
