package orchestrator

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ShayCichocki/crewline/internal/crew"
	"github.com/ShayCichocki/crewline/pkg/models"
)

func TestMetrics_RecordsRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	a := newAgent(t, "a1", "worker")
	t1 := newTask(t, "t1", a)
	t2 := newTask(t, "t2", a)
	t3 := newTask(t, "t3", a, t2)
	c := newCrew(t, []*models.Agent{a}, []*models.Task{t1, t2, t3}, crew.WithProcess(models.ProcessParallel))

	if _, err := New(c, scripted("t2"), WithMetrics(m), WithSkipOnFailure(true)).Execute(context.Background(), nil); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	checks := map[string]float64{
		"completed": 1,
		"failed":    1,
		"skipped":   1,
	}
	for status, want := range checks {
		if got := testutil.ToFloat64(m.tasks.WithLabelValues(status)); got != want {
			t.Errorf("crewline_tasks_total{status=%q} = %v, want %v", status, got, want)
		}
	}
	if got := testutil.ToFloat64(m.waves.WithLabelValues("parallel")); got != 1 {
		t.Errorf("crewline_waves_total = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.duration); n != 1 {
		t.Errorf("duration series = %d, want 1", n)
	}

	if _, err := NewMetrics(reg); err == nil {
		t.Error("registering twice should fail")
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.observeWave(models.ProcessSequential)
	m.observeTask(models.TaskStatusCompleted, "x", 0)
}
