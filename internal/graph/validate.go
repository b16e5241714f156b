package graph

import "github.com/ShayCichocki/crewline/pkg/models"

// Validate checks that agents and tasks form a runnable crew.
// Checks run in order: agents present, tasks present, agent IDs unique, task
// IDs unique, every task's agent is one of agents, every dependency is one
// of tasks, no cycles.
// The first failure is returned as an *Error.
func Validate(agents []*models.Agent, tasks []*models.Task) error {
	if len(agents) == 0 {
		return &Error{Err: ErrNoAgents}
	}
	if len(tasks) == 0 {
		return &Error{Err: ErrNoTasks}
	}

	agentIDs := make(map[string]struct{}, len(agents))
	for _, a := range agents {
		if a == nil {
			continue
		}
		if _, dup := agentIDs[a.ID]; dup {
			return &Error{Ref: a.ID, Err: ErrDuplicateID}
		}
		agentIDs[a.ID] = struct{}{}
	}
	taskIDs := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		if _, dup := taskIDs[t.ID]; dup {
			return &Error{TaskID: t.ID, Err: ErrDuplicateID}
		}
		taskIDs[t.ID] = struct{}{}
	}
	for _, t := range tasks {
		if t.Agent == nil {
			return &Error{TaskID: t.ID, Err: ErrAgentNotInCrew}
		}
		if _, ok := agentIDs[t.Agent.ID]; !ok {
			return &Error{TaskID: t.ID, Ref: t.Agent.ID, Err: ErrAgentNotInCrew}
		}
	}

	g := New()
	return g.Build(tasks)
}
