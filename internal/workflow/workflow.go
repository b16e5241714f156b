// Package workflow loads crew definitions from YAML documents.
//
// A document has three top-level keys:
//
//	crew:
//	  name: Content Team
//	  process: sequential
//	agents:
//	  - name: planner
//	    role: Content Strategist
//	    goal: Create content strategies
//	tasks:
//	  - description: Plan the article
//	    agent: planner
//	  - description: Write the article
//	    agent: writer
//	    dependencies: [0]
//
// Agents are referenced by name and dependencies by the zero-based index of
// a previously defined task.
package workflow

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/crewline/internal/crew"
	"github.com/ShayCichocki/crewline/pkg/models"
)

// Definition is the decoded form of a workflow document.
type Definition struct {
	Crew   CrewDef    `yaml:"crew"`
	Agents []AgentDef `yaml:"agents"`
	Tasks  []TaskDef  `yaml:"tasks"`
}

// CrewDef holds crew-level settings. Pointer fields distinguish "absent"
// from an explicit false so the defaults can apply.
type CrewDef struct {
	ID                string `yaml:"id"`
	Name              string `yaml:"name"`
	Process           string `yaml:"process"`
	Memory            *bool  `yaml:"memory"`
	Cache             bool   `yaml:"cache"`
	Verbose           *bool  `yaml:"verbose"`
	CheckpointEnabled bool   `yaml:"checkpoint_enabled"`
	MaxRPM            int    `yaml:"max_rpm"`
	// Manager names the manager agent for hierarchical runs.
	Manager string `yaml:"manager"`
}

// AgentDef is one agent entry.
type AgentDef struct {
	Name      string         `yaml:"name"`
	Role      string         `yaml:"role"`
	Goal      string         `yaml:"goal"`
	Backstory string         `yaml:"backstory"`
	Tools     []string       `yaml:"tools"`
	LLMConfig map[string]any `yaml:"llm_config"`
	// Model is shorthand for llm_config.model.
	Model string `yaml:"model"`
	// Temperature overrides llm_config.temperature.
	Temperature     *float64 `yaml:"temperature"`
	MaxIterations   *int     `yaml:"max_iterations"`
	AllowDelegation bool     `yaml:"allow_delegation"`
	MemoryEnabled   *bool    `yaml:"memory_enabled"`
	Verbose         *bool    `yaml:"verbose"`
}

// TaskDef is one task entry.
type TaskDef struct {
	ID             string         `yaml:"id"`
	Description    string         `yaml:"description"`
	Agent          string         `yaml:"agent"`
	ExpectedOutput string         `yaml:"expected_output"`
	Dependencies   []int          `yaml:"dependencies"`
	Context        map[string]any `yaml:"context"`
	AsyncExecution bool           `yaml:"async_execution"`
}

// LoadFile reads and builds the workflow at path.
func LoadFile(path string) (*crew.Crew, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load workflow %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a YAML document and builds a validated crew.
func Parse(data []byte) (*crew.Crew, error) {
	def, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return def.Build()
}

// Decode parses a YAML document without building it. Unknown keys are
// rejected so typos surface as errors instead of silently applying defaults.
func Decode(data []byte) (*Definition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, models.NewConfigError("workflow", "document is empty")
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var def Definition
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, models.NewConfigError("workflow", "document is empty")
		}
		return nil, models.NewConfigError("workflow", "%v", err)
	}
	return &def, nil
}

// Build resolves references and constructs the crew.
func (d *Definition) Build() (*crew.Crew, error) {
	if len(d.Agents) == 0 {
		return nil, models.NewConfigError("agents", "at least one agent must be defined")
	}
	if len(d.Tasks) == 0 {
		return nil, models.NewConfigError("tasks", "at least one task must be defined")
	}

	process, err := models.ParseProcessType(d.Crew.Process)
	if err != nil {
		return nil, err
	}

	agents := make([]*models.Agent, 0, len(d.Agents))
	byName := make(map[string]*models.Agent, len(d.Agents))
	for i, ad := range d.Agents {
		a, err := ad.build(i)
		if err != nil {
			return nil, err
		}
		if ad.Name != "" {
			if _, dup := byName[ad.Name]; dup {
				return nil, models.NewConfigError(fmt.Sprintf("agents[%d].name", i), "duplicate agent name %q", ad.Name)
			}
			byName[ad.Name] = a
		}
		agents = append(agents, a)
	}

	tasks := make([]*models.Task, 0, len(d.Tasks))
	taskIDs := make(map[string]struct{}, len(d.Tasks))
	for i, td := range d.Tasks {
		t, err := td.build(i, byName, tasks)
		if err != nil {
			return nil, err
		}
		if _, dup := taskIDs[t.ID]; dup {
			return nil, models.NewConfigError(fmt.Sprintf("tasks[%d].id", i), "duplicate task id %q", t.ID)
		}
		taskIDs[t.ID] = struct{}{}
		tasks = append(tasks, t)
	}

	opts := []crew.Option{
		crew.WithID(d.Crew.ID),
		crew.WithName(d.Crew.Name),
		crew.WithProcess(process),
		crew.WithCache(d.Crew.Cache),
		crew.WithCheckpointing(d.Crew.CheckpointEnabled),
		crew.WithMaxRPM(d.Crew.MaxRPM),
	}
	if d.Crew.Memory != nil {
		opts = append(opts, crew.WithMemory(*d.Crew.Memory))
	}
	if d.Crew.Verbose != nil {
		opts = append(opts, crew.WithVerbose(*d.Crew.Verbose))
	}
	if d.Crew.Manager != "" {
		manager, ok := byName[d.Crew.Manager]
		if !ok {
			return nil, models.NewConfigError("crew.manager", "unknown agent reference %q", d.Crew.Manager)
		}
		opts = append(opts, crew.WithManager(manager.ID))
	}

	return crew.New(agents, tasks, opts...)
}

func (ad AgentDef) build(i int) (*models.Agent, error) {
	field := func(name string) string { return fmt.Sprintf("agents[%d].%s", i, name) }

	if strings.TrimSpace(ad.Role) == "" {
		return nil, models.NewConfigError(field("role"), "is required")
	}
	if strings.TrimSpace(ad.Goal) == "" {
		return nil, models.NewConfigError(field("goal"), "is required")
	}

	llm, err := llmConfig(ad.LLMConfig)
	if err != nil {
		return nil, models.NewConfigError(field("llm_config"), "%v", err)
	}
	if ad.Model != "" && ad.LLMConfig == nil {
		llm.Model = ad.Model
	}
	if ad.Temperature != nil {
		temp := *ad.Temperature
		llm.Temperature = &temp
	}

	opts := []models.AgentOption{
		models.WithAgentID(ad.Name),
		models.WithBackstory(ad.Backstory),
		models.WithTools(ad.Tools...),
		models.WithLLM(llm),
		models.WithDelegation(ad.AllowDelegation),
	}
	if ad.MaxIterations != nil {
		opts = append(opts, models.WithMaxIterations(*ad.MaxIterations))
	}
	if ad.MemoryEnabled != nil {
		opts = append(opts, models.WithMemory(*ad.MemoryEnabled))
	}
	if ad.Verbose != nil {
		opts = append(opts, models.WithVerbose(*ad.Verbose))
	}

	a, err := models.NewAgent(ad.Role, ad.Goal, opts...)
	if err != nil {
		var cfgErr *models.ConfigError
		if errors.As(err, &cfgErr) {
			return nil, models.NewConfigError(field(strings.TrimPrefix(cfgErr.Field, "agent.")), "%s", cfgErr.Reason)
		}
		return nil, err
	}
	return a, nil
}

func (td TaskDef) build(i int, agents map[string]*models.Agent, previous []*models.Task) (*models.Task, error) {
	field := func(name string) string { return fmt.Sprintf("tasks[%d].%s", i, name) }

	if strings.TrimSpace(td.Description) == "" {
		return nil, models.NewConfigError(field("description"), "is required")
	}
	if td.Agent == "" {
		return nil, models.NewConfigError(field("agent"), "is required")
	}
	agent, ok := agents[td.Agent]
	if !ok {
		return nil, models.NewConfigError(field("agent"), "unknown agent reference %q", td.Agent)
	}

	deps := make([]*models.Task, 0, len(td.Dependencies))
	for j, idx := range td.Dependencies {
		if idx < 0 || idx >= len(previous) {
			return nil, models.NewConfigError(fmt.Sprintf("tasks[%d].dependencies[%d]", i, j),
				"invalid task dependency index %d", idx)
		}
		deps = append(deps, previous[idx])
	}

	return models.NewTask(td.Description, agent,
		models.WithTaskID(td.ID),
		models.WithExpectedOutput(td.ExpectedOutput),
		models.WithDependencies(deps...),
		models.WithContext(td.Context),
		models.WithAsync(td.AsyncExecution),
	)
}

// llmConfig maps a free-form llm_config block onto LLMConfig. Keys other
// than model, temperature and max_tokens are kept in Extra.
func llmConfig(raw map[string]any) (models.LLMConfig, error) {
	var cfg models.LLMConfig
	for key, v := range raw {
		switch key {
		case "model":
			s, ok := v.(string)
			if !ok {
				return cfg, fmt.Errorf("model must be a string, got %T", v)
			}
			cfg.Model = s
		case "temperature":
			f, ok := toFloat(v)
			if !ok {
				return cfg, fmt.Errorf("temperature must be a number, got %T", v)
			}
			cfg.Temperature = &f
		case "max_tokens":
			n, ok := v.(int)
			if !ok {
				return cfg, fmt.Errorf("max_tokens must be an integer, got %T", v)
			}
			cfg.MaxTokens = n
		default:
			if cfg.Extra == nil {
				cfg.Extra = make(map[string]any)
			}
			cfg.Extra[key] = v
		}
	}
	return cfg, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
