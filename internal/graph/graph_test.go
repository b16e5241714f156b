package graph

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/ShayCichocki/crewline/pkg/models"
)

func testAgent(t *testing.T) *models.Agent {
	t.Helper()
	a, err := models.NewAgent("worker", "do work", models.WithAgentID("agent-1"))
	if err != nil {
		t.Fatalf("NewAgent() error = %v", err)
	}
	return a
}

// newTasks creates tasks with IDs t0..tn-1 and wires deps, given as
// task index -> dependency indices. Dependencies are assigned after
// construction so cycles can be expressed.
func newTasks(t *testing.T, n int, deps map[int][]int) []*models.Task {
	t.Helper()
	agent := testAgent(t)
	tasks := make([]*models.Task, n)
	for i := range tasks {
		task, err := models.NewTask(fmt.Sprintf("task %d", i), agent, models.WithTaskID(fmt.Sprintf("t%d", i)))
		if err != nil {
			t.Fatalf("NewTask() error = %v", err)
		}
		tasks[i] = task
	}
	for i, ds := range deps {
		for _, d := range ds {
			tasks[i].Dependencies = append(tasks[i].Dependencies, tasks[d])
		}
	}
	return tasks
}

func TestBuild_CycleDetection(t *testing.T) {
	tests := []struct {
		name      string
		n         int
		deps      map[int][]int
		wantCycle bool
	}{
		{"single task", 1, nil, false},
		{"chain", 3, map[int][]int{1: {0}, 2: {1}}, false},
		{"diamond", 4, map[int][]int{1: {0}, 2: {0}, 3: {1, 2}}, false},
		{"disconnected acyclic", 4, map[int][]int{1: {0}, 3: {2}}, false},
		{"self edge", 1, map[int][]int{0: {0}}, true},
		{"two cycle", 2, map[int][]int{0: {1}, 1: {0}}, true},
		{"transitive cycle", 3, map[int][]int{0: {2}, 1: {0}, 2: {1}}, true},
		{"cycle in second component", 4, map[int][]int{1: {0}, 2: {3}, 3: {2}}, true},
		{"dependency on later task", 2, map[int][]int{0: {1}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New()
			err := g.Build(newTasks(t, tt.n, tt.deps))
			if tt.wantCycle {
				if !errors.Is(err, ErrCycleDetected) {
					t.Fatalf("Build() error = %v, want ErrCycleDetected", err)
				}
				if !g.HasCycle() {
					t.Error("HasCycle() = false after cyclic build")
				}
				return
			}
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if g.HasCycle() {
				t.Error("HasCycle() = true for acyclic graph")
			}
		})
	}
}

func TestBuild_LongChainTerminates(t *testing.T) {
	const n = 10000
	deps := make(map[int][]int, n)
	for i := 1; i < n; i++ {
		deps[i] = []int{i - 1}
	}
	g := New()
	if err := g.Build(newTasks(t, n, deps)); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("TopologicalSort() error = %v", err)
	}
	if len(order) != n || order[0] != "t0" || order[n-1] != fmt.Sprintf("t%d", n-1) {
		t.Errorf("unexpected order endpoints: len=%d first=%s", len(order), order[0])
	}
}

func TestBuild_UnknownDependency(t *testing.T) {
	tasks := newTasks(t, 2, map[int][]int{1: {0}})
	outsider := newTasks(t, 1, nil)[0]
	tasks[0].Dependencies = []*models.Task{outsider}
	outsider.ID = "tx"

	err := New().Build(tasks)
	if !errors.Is(err, ErrUnknownDependency) {
		t.Fatalf("Build() error = %v, want ErrUnknownDependency", err)
	}
	var gErr *Error
	if !errors.As(err, &gErr) || gErr.TaskID != "t0" || gErr.Ref != "tx" {
		t.Errorf("error = %#v", err)
	}
}

func TestLevels(t *testing.T) {
	g := New()
	tasks := newTasks(t, 5, map[int][]int{1: {0}, 2: {0}, 3: {1, 2}})
	if err := g.Build(tasks); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	levels, err := g.Levels()
	if err != nil {
		t.Fatalf("Levels() error = %v", err)
	}
	want := [][]string{{"t0", "t4"}, {"t1", "t2"}, {"t3"}}
	if !reflect.DeepEqual(levels, want) {
		t.Errorf("Levels() = %v, want %v", levels, want)
	}

	order, _ := g.TopologicalSort()
	if !reflect.DeepEqual(order, []string{"t0", "t4", "t1", "t2", "t3"}) {
		t.Errorf("TopologicalSort() = %v", order)
	}
}

func TestDependents(t *testing.T) {
	g := New()
	tasks := newTasks(t, 5, map[int][]int{1: {0}, 2: {0}, 3: {1, 2}, 4: {3}})
	if err := g.Build(tasks); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if got := g.GetDependents("t0"); !reflect.DeepEqual(got, []string{"t1", "t2"}) {
		t.Errorf("GetDependents(t0) = %v", got)
	}
	if got := g.GetDependencies("t3"); !reflect.DeepEqual(got, []string{"t1", "t2"}) {
		t.Errorf("GetDependencies(t3) = %v", got)
	}
	if got := g.TransitiveDependents("t1"); !reflect.DeepEqual(got, []string{"t3", "t4"}) {
		t.Errorf("TransitiveDependents(t1) = %v", got)
	}
	if got := g.TransitiveDependents("t4"); len(got) != 0 {
		t.Errorf("TransitiveDependents(t4) = %v, want none", got)
	}
	if g.Size() != 5 {
		t.Errorf("Size() = %d, want 5", g.Size())
	}
	if g.GetTask("t2") != tasks[2] {
		t.Error("GetTask(t2) returned wrong task")
	}
}

func TestSetDebugLog(t *testing.T) {
	g := New()
	var lines int
	g.SetDebugLog(func(format string, args ...interface{}) { lines++ })
	if err := g.Build(newTasks(t, 2, nil)); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if lines == 0 {
		t.Error("expected debug output")
	}
}
