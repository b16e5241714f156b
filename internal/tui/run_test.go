package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/crewline/internal/crew"
	"github.com/ShayCichocki/crewline/internal/orchestrator"
	"github.com/ShayCichocki/crewline/pkg/models"
)

func testCrew(t *testing.T) *crew.Crew {
	t.Helper()
	a, err := models.NewAgent("researcher", "find facts", models.WithAgentID("a1"))
	if err != nil {
		t.Fatal(err)
	}
	w, _ := models.NewAgent("writer", "write", models.WithAgentID("a2"))
	t1, _ := models.NewTask("collect sources", a, models.WithTaskID("t1"))
	t2, _ := models.NewTask("write the summary", w, models.WithTaskID("t2"), models.WithDependencies(t1))
	t3, _ := models.NewTask("publish", w, models.WithTaskID("t3"), models.WithDependencies(t2))
	c, err := crew.New([]*models.Agent{a, w}, []*models.Task{t1, t2, t3}, crew.WithName("research"))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

type fakeControls struct {
	paused, resumed, stopped int
}

func (f *fakeControls) Pause()  { f.paused++ }
func (f *fakeControls) Resume() { f.resumed++ }
func (f *fakeControls) Stop()   { f.stopped++ }

func send(v *RunView, msgs ...tea.Msg) {
	for _, m := range msgs {
		v.Update(m)
	}
}

func TestNewRunView_SeedsRows(t *testing.T) {
	c := testCrew(t)
	_ = c.Tasks[0].MarkInProgress()
	_ = c.Tasks[0].MarkCompleted("done")

	v := NewRunView(c)
	rows := v.Tasks()
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0].Status != models.TaskStatusCompleted || rows[1].Status != models.TaskStatusPending {
		t.Errorf("statuses = %s, %s", rows[0].Status, rows[1].Status)
	}
	if rows[1].AgentRole != "writer" {
		t.Errorf("agent role = %q", rows[1].AgentRole)
	}
	if got := v.Fraction(); got < 0.33 || got > 0.34 {
		t.Errorf("Fraction() = %v, want 1/3", got)
	}
}

func TestRunView_AppliesEvents(t *testing.T) {
	v := NewRunView(testCrew(t))

	send(v,
		EventMsg{orchestrator.Event{Type: orchestrator.EventWaveStarted, Wave: 1, Message: "1 ready"}},
		EventMsg{orchestrator.Event{Type: orchestrator.EventTaskStarted, TaskID: "t1", AgentRole: "researcher"}},
		EventMsg{orchestrator.Event{Type: orchestrator.EventTaskCompleted, TaskID: "t1", Duration: 1500 * time.Millisecond}},
		EventMsg{orchestrator.Event{Type: orchestrator.EventWaveStarted, Wave: 2, Message: "1 ready"}},
		EventMsg{orchestrator.Event{Type: orchestrator.EventTaskDelegated, TaskID: "t2", AgentRole: "editor"}},
		EventMsg{orchestrator.Event{Type: orchestrator.EventTaskFailed, TaskID: "t2", Error: errors.New("model unavailable")}},
		EventMsg{orchestrator.Event{Type: orchestrator.EventTaskSkipped, TaskID: "t3"}},
		EventMsg{orchestrator.Event{Type: orchestrator.EventTaskStarted, TaskID: "unknown"}},
	)

	rows := v.Tasks()
	if rows[0].Status != models.TaskStatusCompleted || rows[0].Duration != 1500*time.Millisecond {
		t.Errorf("t1 = %+v", rows[0])
	}
	if rows[1].Status != models.TaskStatusFailed || rows[1].Error != "model unavailable" || rows[1].AgentRole != "editor" {
		t.Errorf("t2 = %+v", rows[1])
	}
	if rows[2].Status != models.TaskStatusSkipped {
		t.Errorf("t3 = %+v", rows[2])
	}
	if v.wave != 2 {
		t.Errorf("wave = %d, want 2", v.wave)
	}
	if v.Fraction() != 1 {
		t.Errorf("Fraction() = %v, want 1", v.Fraction())
	}

	var levels []string
	for _, e := range v.Logs() {
		levels = append(levels, e.Level)
	}
	if !strings.Contains(strings.Join(levels, ","), "ERROR") {
		t.Errorf("log levels = %v, want an ERROR entry", levels)
	}
}

func TestRunView_LogIsBounded(t *testing.T) {
	v := NewRunView(testCrew(t))
	for i := 0; i < maxLogLines*2; i++ {
		send(v, EventMsg{orchestrator.Event{Type: orchestrator.EventWaveStarted, Wave: i + 1}})
	}
	logs := v.Logs()
	if len(logs) != maxLogLines {
		t.Fatalf("log length = %d, want %d", len(logs), maxLogLines)
	}
	if !strings.Contains(logs[len(logs)-1].Message, "wave 24") {
		t.Errorf("last entry = %q", logs[len(logs)-1].Message)
	}
}

func TestRunView_Keys(t *testing.T) {
	ctl := &fakeControls{}
	v := NewRunView(testCrew(t), WithControls(ctl))

	send(v, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	if ctl.paused != 1 || !v.paused {
		t.Errorf("first p should pause: %+v", ctl)
	}
	if !strings.Contains(v.View(), "paused") {
		t.Error("footer should show paused")
	}
	send(v, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	if ctl.resumed != 1 || v.paused {
		t.Errorf("second p should resume: %+v", ctl)
	}

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if ctl.stopped != 1 || cmd != nil {
		t.Errorf("first q should stop the engine without quitting: %+v", ctl)
	}
	_, cmd = v.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("second q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.Quit")
	}
	if ctl.stopped != 1 {
		t.Errorf("Stop called %d times", ctl.stopped)
	}
}

func TestRunView_FollowsEnginePauseState(t *testing.T) {
	v := NewRunView(testCrew(t), WithControls(&fakeControls{}))

	send(v, EventMsg{orchestrator.Event{Type: orchestrator.EventRunPaused}})
	if !v.paused || !strings.Contains(v.View(), "paused") {
		t.Error("run_paused should put the view in the paused state")
	}
	send(v, EventMsg{orchestrator.Event{Type: orchestrator.EventRunResumed, Duration: time.Second}})
	if v.paused {
		t.Error("run_resumed should clear the paused state")
	}
	send(v, EventMsg{orchestrator.Event{Type: orchestrator.EventRunStopped, Message: "stop signal file"}})
	if !v.stopping {
		t.Error("run_stopped should put the view in the stopping state")
	}
	last := v.Logs()[len(v.Logs())-1]
	if last.Level != "WARN" || !strings.Contains(last.Message, "stop signal file") {
		t.Errorf("last log = %+v", last)
	}
}

func TestRunView_QuitWithoutControls(t *testing.T) {
	v := NewRunView(testCrew(t))
	send(v, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	if v.paused {
		t.Error("p without controls must do nothing")
	}
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q without controls should quit")
	}
	if v.View() != "" {
		t.Error("view should be empty after quitting")
	}
}

func TestRunView_DoneFooter(t *testing.T) {
	tests := []struct {
		name string
		msg  DoneMsg
		want string
	}{
		{"success", DoneMsg{Output: &models.CrewOutput{Success: true, Metadata: models.OutputMetadata{Duration: 2 * time.Second}}}, "finished in 2s"},
		{"failures", DoneMsg{Output: &models.CrewOutput{Success: false}}, "finished with failures"},
		{"cancelled", DoneMsg{Output: &models.CrewOutput{Metadata: models.OutputMetadata{Cancelled: true}}}, "stopped"},
		{"error", DoneMsg{Err: errors.New("no runnable tasks")}, "no runnable tasks"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewRunView(testCrew(t))
			send(v, tt.msg)
			done, _, _ := v.Done()
			if !done {
				t.Fatal("Done() = false")
			}
			view := v.View()
			if !strings.Contains(view, tt.want) {
				t.Errorf("view missing %q:\n%s", tt.want, view)
			}
			if !strings.Contains(view, "research") {
				t.Error("view should include the crew name")
			}
		})
	}
}

func TestForward_StopsOnClose(t *testing.T) {
	events := make(chan orchestrator.Event)
	close(events)

	done := make(chan struct{})
	go func() {
		Forward(context.Background(), nil, events)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Forward did not return after the channel closed")
	}

	Forward(context.Background(), nil, nil)
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("a long description\nwith lines", 10); got != "a long ..." {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("résumé für Müller", 8); got != "résum..." {
		t.Errorf("truncate = %q, want whole runes", got)
	}
}
