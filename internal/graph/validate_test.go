package graph

import (
	"errors"
	"testing"

	"github.com/ShayCichocki/crewline/pkg/models"
)

func TestValidate(t *testing.T) {
	agent := testAgent(t)
	stranger, _ := models.NewAgent("stranger", "lurk")
	twin, _ := models.NewAgent("twin", "copy", models.WithAgentID(agent.ID))

	tests := []struct {
		name    string
		agents  []*models.Agent
		tasks   func() []*models.Task
		wantErr error
	}{
		{
			name:    "valid diamond",
			agents:  []*models.Agent{agent},
			tasks:   func() []*models.Task { return newTasks(t, 4, map[int][]int{1: {0}, 2: {0}, 3: {1, 2}}) },
			wantErr: nil,
		},
		{
			name:    "no agents",
			agents:  nil,
			tasks:   func() []*models.Task { return newTasks(t, 1, nil) },
			wantErr: ErrNoAgents,
		},
		{
			name:    "no tasks",
			agents:  []*models.Agent{agent},
			tasks:   func() []*models.Task { return nil },
			wantErr: ErrNoTasks,
		},
		{
			name:    "agent not in crew",
			agents:  []*models.Agent{stranger},
			tasks:   func() []*models.Task { return newTasks(t, 1, nil) },
			wantErr: ErrAgentNotInCrew,
		},
		{
			name:    "duplicate agent id",
			agents:  []*models.Agent{agent, twin},
			tasks:   func() []*models.Task { return newTasks(t, 1, nil) },
			wantErr: ErrDuplicateID,
		},
		{
			name:   "duplicate task id",
			agents: []*models.Agent{agent},
			tasks: func() []*models.Task {
				tasks := newTasks(t, 2, nil)
				dup, err := models.NewTask("again", agent, models.WithTaskID(tasks[0].ID))
				if err != nil {
					t.Fatal(err)
				}
				return append(tasks, dup)
			},
			wantErr: ErrDuplicateID,
		},
		{
			name:    "cycle",
			agents:  []*models.Agent{agent},
			tasks:   func() []*models.Task { return newTasks(t, 2, map[int][]int{0: {1}, 1: {0}}) },
			wantErr: ErrCycleDetected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.agents, tt.tasks())
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
			var gErr *Error
			if !errors.As(err, &gErr) {
				t.Errorf("error %T is not a *graph.Error", err)
			}
		})
	}
}

func TestValidate_ErrorMessages(t *testing.T) {
	agent := testAgent(t)
	err := Validate([]*models.Agent{agent}, newTasks(t, 1, map[int][]int{0: {0}}))
	if err == nil || err.Error() != "circular dependency detected (task t0)" {
		t.Errorf("error = %v", err)
	}

	twin, _ := models.NewAgent("twin", "copy", models.WithAgentID(agent.ID))
	err = Validate([]*models.Agent{agent, twin}, newTasks(t, 1, nil))
	if err == nil || err.Error() != "duplicate id (agent "+agent.ID+")" {
		t.Errorf("duplicate agent error = %v", err)
	}
}
