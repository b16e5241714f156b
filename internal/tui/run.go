// Package tui provides the terminal progress view for crew runs.
//
// The view is read-only: it renders task states, a progress bar and an
// activity log fed by engine events. Users can pause with 'p' and stop
// with 'q' or Ctrl+C.
//
// Usage:
//
//	program, view := tui.NewRunProgram(c, tui.WithControls(engine))
//	go tui.Forward(ctx, program, engine.Events())
//	go func() {
//	    out, err := engine.Execute(ctx, inputs)
//	    program.Send(tui.DoneMsg{Output: out, Err: err})
//	}()
//	_, err := program.Run()
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/crewline/internal/crew"
	"github.com/ShayCichocki/crewline/internal/orchestrator"
	"github.com/ShayCichocki/crewline/pkg/models"
)

// maxLogLines is how many recent activity entries the view keeps.
const maxLogLines = 12

// EventMsg wraps an engine event for the view.
type EventMsg struct {
	Event orchestrator.Event
}

// DoneMsg signals that Execute returned.
type DoneMsg struct {
	Output *models.CrewOutput
	Err    error
}

// Controls lets the view pause and stop the run it displays.
// *orchestrator.Engine satisfies it.
type Controls interface {
	Pause()
	Resume()
	Stop()
}

// TaskRow is one line of the task table.
type TaskRow struct {
	ID        string
	Title     string
	AgentRole string
	Status    models.TaskStatus
	Duration  time.Duration
	Error     string
}

// LogEntry is one line of the activity log.
type LogEntry struct {
	Timestamp time.Time
	Level     string
	Message   string
}

// Option configures a RunView.
type Option func(*RunView)

// WithControls wires the pause and stop keys to c.
func WithControls(c Controls) Option {
	return func(v *RunView) { v.controls = c }
}

// RunView is the bubbletea model for a crew run.
type RunView struct {
	crewName string
	process  models.ProcessType
	tasks    []TaskRow
	index    map[string]int
	logs     []LogEntry
	wave     int
	started  time.Time

	controls Controls
	paused   bool
	stopping bool

	done    bool
	output  *models.CrewOutput
	err     error
	elapsed time.Duration

	width    int
	bar      progress.Model
	spinner  spinner.Model
	styles   styles
	quitting bool
}

// NewRunView creates a view seeded with the crew's tasks and their current
// statuses, so resumed runs show settled work from the start.
func NewRunView(c *crew.Crew, opts ...Option) *RunView {
	v := &RunView{
		crewName: c.Name,
		process:  c.Process,
		index:    make(map[string]int, len(c.Tasks)),
		started:  time.Now(),
		width:    80,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		styles:   newStyles(),
	}
	if v.crewName == "" {
		v.crewName = c.ID
	}
	for i, t := range c.Tasks {
		v.index[t.ID] = i
		v.tasks = append(v.tasks, TaskRow{
			ID:        t.ID,
			Title:     truncate(t.Description, 48),
			AgentRole: t.Agent.Role,
			Status:    t.Status(),
			Error:     t.Error(),
		})
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// NewRunProgram creates a bubbletea program around a new RunView.
func NewRunProgram(c *crew.Crew, opts ...Option) (*tea.Program, *RunView) {
	v := NewRunView(c, opts...)
	return tea.NewProgram(v, tea.WithAltScreen()), v
}

// Forward sends every event from events to the program until the channel
// closes or ctx is done.
func Forward(ctx context.Context, p *tea.Program, events <-chan orchestrator.Event) {
	if events == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			p.Send(EventMsg{Event: ev})
		}
	}
}

// Init implements tea.Model.
func (v *RunView) Init() tea.Cmd {
	return v.spinner.Tick
}

// Update implements tea.Model.
func (v *RunView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return v, v.handleKey(msg)

	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.bar.Width = max(10, min(60, msg.Width-20))

	case spinner.TickMsg:
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd

	case progress.FrameMsg:
		m, cmd := v.bar.Update(msg)
		if bar, ok := m.(progress.Model); ok {
			v.bar = bar
		}
		return v, cmd

	case EventMsg:
		v.apply(msg.Event)

	case DoneMsg:
		v.done = true
		v.output = msg.Output
		v.err = msg.Err
		v.elapsed = time.Since(v.started)
		if msg.Output != nil {
			v.elapsed = msg.Output.Metadata.Duration
		}
	}
	return v, nil
}

func (v *RunView) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q", "ctrl+c":
		if v.done || v.controls == nil || v.stopping {
			v.quitting = true
			return tea.Quit
		}
		v.stopping = true
		v.controls.Stop()
		v.log("WARN", "stop requested; waiting for running tasks")
	case "p":
		if v.controls == nil || v.done {
			return nil
		}
		if v.paused {
			v.controls.Resume()
			v.log("INFO", "resumed")
		} else {
			v.controls.Pause()
			v.log("INFO", "paused; running tasks will finish")
		}
		v.paused = !v.paused
	}
	return nil
}

// apply folds an engine event into the view state.
func (v *RunView) apply(ev orchestrator.Event) {
	row := v.row(ev.TaskID)

	switch ev.Type {
	case orchestrator.EventWaveStarted:
		v.wave = ev.Wave
		v.log("INFO", fmt.Sprintf("wave %d: %s", ev.Wave, ev.Message))
	case orchestrator.EventTaskDelegated:
		if row != nil {
			row.AgentRole = ev.AgentRole
		}
		v.log("INFO", fmt.Sprintf("%s delegated to %s", shortID(ev.TaskID), ev.AgentRole))
	case orchestrator.EventTaskStarted:
		if row != nil {
			row.Status = models.TaskStatusInProgress
			if ev.AgentRole != "" {
				row.AgentRole = ev.AgentRole
			}
		}
		v.log("INFO", fmt.Sprintf("%s started by %s", shortID(ev.TaskID), ev.AgentRole))
	case orchestrator.EventTaskCompleted:
		if row != nil {
			row.Status = models.TaskStatusCompleted
			row.Duration = ev.Duration
		}
		v.log("INFO", fmt.Sprintf("%s completed in %s", shortID(ev.TaskID), ev.Duration.Round(time.Millisecond)))
	case orchestrator.EventTaskFailed:
		if row != nil {
			row.Status = models.TaskStatusFailed
			row.Duration = ev.Duration
			if ev.Error != nil {
				row.Error = ev.Error.Error()
			}
		}
		v.log("ERROR", fmt.Sprintf("%s failed: %v", shortID(ev.TaskID), ev.Error))
	case orchestrator.EventTaskSkipped:
		if row != nil {
			row.Status = models.TaskStatusSkipped
		}
		v.log("WARN", fmt.Sprintf("%s skipped", shortID(ev.TaskID)))
	case orchestrator.EventRunPaused:
		if !v.paused {
			v.paused = true
			v.log("INFO", "paused by signal; running tasks will finish")
		}
	case orchestrator.EventRunResumed:
		if v.paused {
			v.paused = false
			v.log("INFO", "resumed by signal")
		}
	case orchestrator.EventRunStopped:
		if !v.stopping {
			v.stopping = true
			v.log("WARN", "stopping: "+ev.Message)
		}
	case orchestrator.EventCheckpointSaved:
		v.log("DEBUG", fmt.Sprintf("checkpoint saved after wave %d", ev.Wave))
	case orchestrator.EventRunDone:
		v.log("INFO", ev.Message)
	}
}

func (v *RunView) row(taskID string) *TaskRow {
	if taskID == "" {
		return nil
	}
	i, ok := v.index[taskID]
	if !ok {
		return nil
	}
	return &v.tasks[i]
}

func (v *RunView) log(level, message string) {
	v.logs = append(v.logs, LogEntry{Timestamp: time.Now(), Level: level, Message: message})
	if len(v.logs) > maxLogLines {
		v.logs = v.logs[len(v.logs)-maxLogLines:]
	}
}

// Counts returns the number of rows in each status.
func (v *RunView) Counts() map[models.TaskStatus]int {
	counts := make(map[models.TaskStatus]int)
	for _, r := range v.tasks {
		counts[r.Status]++
	}
	return counts
}

// Tasks returns a copy of the task rows.
func (v *RunView) Tasks() []TaskRow {
	return append([]TaskRow(nil), v.tasks...)
}

// Logs returns a copy of the activity log.
func (v *RunView) Logs() []LogEntry {
	return append([]LogEntry(nil), v.logs...)
}

// Done reports whether the run finished, and its result.
func (v *RunView) Done() (bool, *models.CrewOutput, error) {
	return v.done, v.output, v.err
}

// Fraction is the share of tasks that reached a terminal status.
func (v *RunView) Fraction() float64 {
	if len(v.tasks) == 0 {
		return 0
	}
	settled := 0
	for _, r := range v.tasks {
		if r.Status.Terminal() {
			settled++
		}
	}
	return float64(settled) / float64(len(v.tasks))
}

// View implements tea.Model.
func (v *RunView) View() string {
	if v.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(v.styles.header.Render(fmt.Sprintf("crewline · %s · %s", v.crewName, v.process)))
	b.WriteString("\n")

	counts := v.Counts()
	b.WriteString(v.styles.label.Render("Wave:"))
	b.WriteString(v.styles.value.Render(fmt.Sprintf("%d", v.wave)))
	b.WriteString("  ")
	b.WriteString(v.styles.label.Render("Tasks:"))
	b.WriteString(v.styles.value.Render(fmt.Sprintf("%d done, %d failed, %d skipped of %d",
		counts[models.TaskStatusCompleted], counts[models.TaskStatusFailed],
		counts[models.TaskStatusSkipped], len(v.tasks))))
	b.WriteString("\n")
	b.WriteString(v.bar.ViewAs(v.Fraction()))
	b.WriteString("\n\n")

	for _, r := range v.tasks {
		b.WriteString(v.renderRow(r))
		b.WriteString("\n")
	}

	if len(v.logs) > 0 {
		b.WriteString("\n")
		b.WriteString(v.styles.section.Render("Activity"))
		b.WriteString("\n")
		for _, entry := range v.logs {
			b.WriteString(v.styles.dim.Render(entry.Timestamp.Format("15:04:05")))
			b.WriteString(" ")
			b.WriteString(v.styles.level(entry.Level).Render(fmt.Sprintf("%-5s", entry.Level)))
			b.WriteString(" ")
			b.WriteString(entry.Message)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(v.footer())
	return b.String()
}

func (v *RunView) renderRow(r TaskRow) string {
	icon := v.styles.statusIcon(r.Status)
	if r.Status == models.TaskStatusInProgress {
		icon = v.spinner.View()
	}
	line := fmt.Sprintf("%s %-10s %-18s %s", icon, shortID(r.ID), truncate(r.AgentRole, 18), r.Title)
	if r.Duration > 0 {
		line += v.styles.dim.Render(fmt.Sprintf("  (%s)", r.Duration.Round(time.Millisecond)))
	}
	if r.Error != "" {
		line += "\n    " + v.styles.failed.Render(truncate(r.Error, 70))
	}
	return line
}

func (v *RunView) footer() string {
	if v.done {
		switch {
		case v.err != nil:
			return v.styles.failed.Render("✗ "+v.err.Error()) + "  | q to exit"
		case v.output != nil && v.output.Metadata.Cancelled:
			return v.styles.warn.Render("■ stopped") + "  | q to exit"
		case v.output != nil && !v.output.Success:
			return v.styles.failed.Render(fmt.Sprintf("✗ finished with failures in %s", v.elapsed.Round(time.Millisecond))) + "  | q to exit"
		default:
			return v.styles.completed.Render(fmt.Sprintf("✓ finished in %s", v.elapsed.Round(time.Millisecond))) + "  | q to exit"
		}
	}
	if v.stopping {
		return v.styles.warn.Render("stopping…") + "  | q to force exit"
	}
	if v.paused {
		return v.styles.warn.Render("paused") + "  | p resume · q stop"
	}
	return v.styles.dim.Render("p pause · q stop")
}

// truncate fits s on one line of at most n runes, ellipsis included.
func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
