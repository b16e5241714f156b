package crew

import (
	"sort"
	"sync"

	"github.com/ShayCichocki/crewline/pkg/models"
)

// Registry is an explicit catalogue of agent definitions keyed by agent ID.
// It provides thread-safe storage and retrieval; callers own its lifetime.
type Registry struct {
	// agents maps agent IDs to agent models.
	agents map[string]*models.Agent
	// mu protects agents.
	mu sync.RWMutex
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		agents: make(map[string]*models.Agent),
	}
}

// Register adds an agent, replacing any agent with the same ID.
func (r *Registry) Register(a *models.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.ID] = a
}

// Get retrieves an agent by ID.
// Returns nil if the agent is not registered.
func (r *Registry) Get(agentID string) *models.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.agents[agentID]
}

// Unregister removes an agent from the registry.
func (r *Registry) Unregister(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, agentID)
}

// List returns all registered agents ordered by ID.
func (r *Registry) List() []*models.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := make([]*models.Agent, 0, len(r.agents))
	for _, a := range r.agents {
		agents = append(agents, a)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })
	return agents
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// Clear removes every agent.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents = make(map[string]*models.Agent)
}
