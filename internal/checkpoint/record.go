package checkpoint

import (
	"fmt"
	"time"

	"github.com/ShayCichocki/crewline/internal/crew"
	"github.com/ShayCichocki/crewline/pkg/models"
)

// RecordVersion is written into every record.
const RecordVersion = 1

// Record is the stored form of a crew.
type Record struct {
	Version int            `json:"version"`
	SavedAt time.Time      `json:"saved_at"`
	Crew    CrewRecord     `json:"crew"`
	Agents  []models.Agent `json:"agents"`
	Tasks   []TaskRecord   `json:"tasks"`
}

// CrewRecord holds crew-level configuration. Agents and tasks are listed
// by id; their full records live at the top level.
type CrewRecord struct {
	CrewID            string             `json:"crew_id"`
	Name              string             `json:"name,omitempty"`
	Agents            []string           `json:"agents"`
	Tasks             []string           `json:"tasks"`
	Process           models.ProcessType `json:"process"`
	Memory            bool               `json:"memory"`
	Cache             bool               `json:"cache"`
	Verbose           bool               `json:"verbose"`
	CheckpointEnabled bool               `json:"checkpoint_enabled"`
	MaxRPM            int                `json:"max_rpm"`
	ManagerID         string             `json:"manager_id,omitempty"`
}

// TaskRecord is a task with its references reduced to ids.
type TaskRecord struct {
	TaskID         string            `json:"task_id"`
	Description    string            `json:"description"`
	AgentID        string            `json:"agent_id"`
	ExpectedOutput string            `json:"expected_output"`
	Dependencies   []string          `json:"dependencies"`
	Context        map[string]any    `json:"context"`
	AsyncExecution bool              `json:"async_execution"`
	Status         models.TaskStatus `json:"status"`
	Result         string            `json:"result"`
	Error          string            `json:"error"`
}

// Counts returns the number of tasks in each status.
func (r *Record) Counts() map[models.TaskStatus]int {
	counts := make(map[models.TaskStatus]int)
	for _, t := range r.Tasks {
		counts[t.Status]++
	}
	return counts
}

// Snapshot captures the crew's configuration and current task state.
func Snapshot(c *crew.Crew) *Record {
	rec := &Record{
		Version: RecordVersion,
		Crew: CrewRecord{
			CrewID:            c.ID,
			Name:              c.Name,
			Agents:            make([]string, 0, len(c.Agents)),
			Tasks:             make([]string, 0, len(c.Tasks)),
			Process:           c.Process,
			Memory:            c.Memory,
			Cache:             c.Cache,
			Verbose:           c.Verbose,
			CheckpointEnabled: c.CheckpointEnabled,
			MaxRPM:            c.MaxRPM,
			ManagerID:         c.ManagerID,
		},
		Agents: make([]models.Agent, 0, len(c.Agents)),
		Tasks:  make([]TaskRecord, 0, len(c.Tasks)),
	}

	for _, a := range c.Agents {
		rec.Crew.Agents = append(rec.Crew.Agents, a.ID)
		cp := *a
		cp.LLM = a.LLM.WithDefaults()
		rec.Agents = append(rec.Agents, cp)
	}
	for _, t := range c.Tasks {
		rec.Crew.Tasks = append(rec.Crew.Tasks, t.ID)
		rec.Tasks = append(rec.Tasks, TaskRecord{
			TaskID:         t.ID,
			Description:    t.Description,
			AgentID:        t.Agent.ID,
			ExpectedOutput: t.ExpectedOutput,
			Dependencies:   t.DependencyIDs(),
			Context:        map[string]any(t.Context),
			AsyncExecution: t.AsyncExecution,
			Status:         t.Status(),
			Result:         t.Result(),
			Error:          t.Error(),
		})
	}
	return rec
}

// Restore rebuilds the crew in two passes: agents and tasks first, then
// dependency edges, since a task may depend on one listed after it. The
// result is validated like any new crew.
func (r *Record) Restore() (*crew.Crew, error) {
	agents := make([]*models.Agent, 0, len(r.Agents))
	agentByID := make(map[string]*models.Agent, len(r.Agents))
	for i, ar := range r.Agents {
		a, err := models.NewAgent(ar.Role, ar.Goal,
			models.WithAgentID(ar.ID),
			models.WithBackstory(ar.Backstory),
			models.WithTools(ar.Tools...),
			models.WithLLM(ar.LLM),
			models.WithMaxIterations(ar.MaxIterations),
			models.WithDelegation(ar.AllowDelegation),
			models.WithMemory(ar.MemoryEnabled),
			models.WithVerbose(ar.Verbose),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: agents[%d]: %v", ErrCorrupt, i, err)
		}
		if ar.ID == "" {
			return nil, fmt.Errorf("%w: agents[%d]: missing agent_id", ErrCorrupt, i)
		}
		if _, dup := agentByID[a.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate agent %s", ErrCorrupt, a.ID)
		}
		agentByID[a.ID] = a
		agents = append(agents, a)
	}

	tasks := make([]*models.Task, 0, len(r.Tasks))
	taskByID := make(map[string]*models.Task, len(r.Tasks))
	for i, tr := range r.Tasks {
		owner, ok := agentByID[tr.AgentID]
		if !ok {
			return nil, fmt.Errorf("%w: tasks[%d]: unknown agent %q", ErrCorrupt, i, tr.AgentID)
		}
		if tr.TaskID == "" {
			return nil, fmt.Errorf("%w: tasks[%d]: missing task_id", ErrCorrupt, i)
		}
		t, err := models.NewTask(tr.Description, owner,
			models.WithTaskID(tr.TaskID),
			models.WithExpectedOutput(tr.ExpectedOutput),
			models.WithContext(tr.Context),
			models.WithAsync(tr.AsyncExecution),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: tasks[%d]: %v", ErrCorrupt, i, err)
		}
		if err := t.Restore(tr.Status, tr.Result, tr.Error); err != nil {
			return nil, fmt.Errorf("%w: tasks[%d]: %v", ErrCorrupt, i, err)
		}
		if _, dup := taskByID[t.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate task %s", ErrCorrupt, t.ID)
		}
		taskByID[t.ID] = t
		tasks = append(tasks, t)
	}

	for i, tr := range r.Tasks {
		deps := make([]*models.Task, 0, len(tr.Dependencies))
		for _, depID := range tr.Dependencies {
			dep, ok := taskByID[depID]
			if !ok {
				return nil, fmt.Errorf("%w: tasks[%d]: unknown dependency %q", ErrCorrupt, i, depID)
			}
			deps = append(deps, dep)
		}
		tasks[i].Dependencies = deps
	}

	process := r.Crew.Process
	if process == "" {
		process = models.ProcessSequential
	}
	c, err := crew.New(agents, tasks,
		crew.WithID(r.Crew.CrewID),
		crew.WithName(r.Crew.Name),
		crew.WithProcess(process),
		crew.WithMemory(r.Crew.Memory),
		crew.WithCache(r.Crew.Cache),
		crew.WithVerbose(r.Crew.Verbose),
		crew.WithCheckpointing(r.Crew.CheckpointEnabled),
		crew.WithMaxRPM(r.Crew.MaxRPM),
		crew.WithManager(r.Crew.ManagerID),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return c, nil
}
