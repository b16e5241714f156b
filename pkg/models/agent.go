package models

import (
	"strings"

	"github.com/google/uuid"
)

const (
	// DefaultModel is applied when an agent's LLM config names no model.
	DefaultModel = "llama3-70b"
	// DefaultTemperature is applied when an agent's LLM config has no temperature.
	DefaultTemperature = 0.7
	// DefaultMaxIterations bounds an agent's reasoning iterations.
	DefaultMaxIterations = 15
)

// LLMConfig holds the model settings for an agent.
// Known settings are named fields; anything else lands in Extra so
// definitions written for newer backends still round-trip.
type LLMConfig struct {
	// Model is the model identifier passed to the turn executor.
	Model string `json:"model" yaml:"model"`
	// Temperature is the sampling temperature. Nil means "use the default".
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	// MaxTokens caps the response length. Zero leaves it to the executor.
	MaxTokens int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	// Extra carries backend-specific settings not modelled above.
	Extra map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// WithDefaults returns a copy of the config with model and temperature filled in.
func (c LLMConfig) WithDefaults() LLMConfig {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Temperature == nil {
		temp := DefaultTemperature
		c.Temperature = &temp
	}
	if c.Extra != nil {
		extra := make(map[string]any, len(c.Extra))
		for k, v := range c.Extra {
			extra[k] = v
		}
		c.Extra = extra
	}
	return c
}

// TemperatureOrDefault returns the configured temperature or DefaultTemperature.
func (c LLMConfig) TemperatureOrDefault() float64 {
	if c.Temperature == nil {
		return DefaultTemperature
	}
	return *c.Temperature
}

// Agent is a persona that executes tasks through the turn executor.
// Identity is fixed at construction; build a new Agent to change it.
type Agent struct {
	// ID is the unique identifier for this agent.
	ID string `json:"agent_id"`
	// Role is the agent's specialty, e.g. "planner".
	Role string `json:"role"`
	// Goal is what the agent is trying to accomplish.
	Goal string `json:"goal"`
	// Backstory is background context for the persona.
	Backstory string `json:"backstory"`
	// Tools lists the tool names the agent may use, in order.
	Tools []string `json:"tools"`
	// LLM is the model configuration, always defaulted.
	LLM LLMConfig `json:"llm_config"`
	// Verbose enables per-agent activity output.
	Verbose bool `json:"verbose"`
	// MaxIterations bounds the agent's reasoning iterations.
	MaxIterations int `json:"max_iterations"`
	// AllowDelegation marks the agent as able to hand work to others.
	AllowDelegation bool `json:"allow_delegation"`
	// MemoryEnabled lets the agent see the crew's shared memory.
	MemoryEnabled bool `json:"memory_enabled"`
}

// AgentOption configures an Agent during construction.
type AgentOption func(*Agent)

// WithAgentID sets an explicit agent ID instead of a generated one.
func WithAgentID(id string) AgentOption {
	return func(a *Agent) {
		if id != "" {
			a.ID = id
		}
	}
}

// WithBackstory sets the agent's backstory.
func WithBackstory(backstory string) AgentOption {
	return func(a *Agent) { a.Backstory = backstory }
}

// WithTools sets the agent's ordered tool list.
func WithTools(tools ...string) AgentOption {
	return func(a *Agent) { a.Tools = append([]string(nil), tools...) }
}

// WithLLM sets the agent's model configuration.
func WithLLM(cfg LLMConfig) AgentOption {
	return func(a *Agent) { a.LLM = cfg }
}

// WithMaxIterations sets the iteration limit.
func WithMaxIterations(n int) AgentOption {
	return func(a *Agent) { a.MaxIterations = n }
}

// WithDelegation sets whether the agent may delegate.
func WithDelegation(allow bool) AgentOption {
	return func(a *Agent) { a.AllowDelegation = allow }
}

// WithMemory sets whether the agent participates in shared memory.
func WithMemory(enabled bool) AgentOption {
	return func(a *Agent) { a.MemoryEnabled = enabled }
}

// WithVerbose sets the agent's verbosity.
func WithVerbose(verbose bool) AgentOption {
	return func(a *Agent) { a.Verbose = verbose }
}

// NewAgent creates an agent, applies defaults and validates it.
// An empty role or goal is a configuration error.
func NewAgent(role, goal string, opts ...AgentOption) (*Agent, error) {
	a := &Agent{
		ID:            uuid.New().String(),
		Role:          role,
		Goal:          goal,
		Tools:         []string{},
		Verbose:       true,
		MaxIterations: DefaultMaxIterations,
		MemoryEnabled: true,
	}
	for _, opt := range opts {
		opt(a)
	}

	if strings.TrimSpace(a.Role) == "" {
		return nil, NewConfigError("agent.role", "cannot be empty")
	}
	if strings.TrimSpace(a.Goal) == "" {
		return nil, NewConfigError("agent.goal", "cannot be empty")
	}
	if a.MaxIterations <= 0 {
		return nil, NewConfigError("agent.max_iterations", "must be positive, got %d", a.MaxIterations)
	}

	a.LLM = a.LLM.WithDefaults()
	return a, nil
}

// String returns a short description of the agent.
func (a *Agent) String() string {
	return "Agent(role=" + a.Role + ", goal=" + Truncate(a.Goal, 50) + ")"
}
