package agent

import (
	"context"
	"sync"

	"github.com/ShayCichocki/crewline/internal/api"
	"github.com/ShayCichocki/crewline/pkg/models"
)

// Completer is the part of api.Client the Anthropic executor needs.
type Completer interface {
	Complete(ctx context.Context, req api.CompletionRequest) (*api.Completion, error)
}

var _ Completer = (*api.Client)(nil)

// AnthropicExecutor executes turns through the Anthropic Messages API.
// Agents with memory enabled keep a per-agent session so later turns see
// earlier ones; other agents get a fresh conversation every turn.
type AnthropicExecutor struct {
	client Completer

	mu       sync.Mutex
	sessions map[string][]api.Turn
}

var _ TurnExecutor = (*AnthropicExecutor)(nil)

// NewAnthropicExecutor creates an executor backed by client.
func NewAnthropicExecutor(client Completer) *AnthropicExecutor {
	return &AnthropicExecutor{
		client:   client,
		sessions: make(map[string][]api.Turn),
	}
}

// ExecuteTurn sends prompt as the agent and returns the reply text.
func (e *AnthropicExecutor) ExecuteTurn(ctx context.Context, a *models.Agent, prompt string) (string, error) {
	req := api.CompletionRequest{
		Model:       a.LLM.Model,
		System:      SystemPrompt(a),
		Prompt:      prompt,
		MaxTokens:   a.LLM.MaxTokens,
		Temperature: a.LLM.Temperature,
	}
	if a.MemoryEnabled {
		req.History = e.Session(a.ID)
	}

	resp, err := e.client.Complete(ctx, req)
	if err != nil {
		return "", err
	}

	if a.MemoryEnabled {
		e.record(a, prompt, resp.Text)
	}
	return resp.Text, nil
}

// record appends a turn pair to the agent's session, keeping at most
// MaxIterations exchanges.
func (e *AnthropicExecutor) record(a *models.Agent, prompt, reply string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	history := append(e.sessions[a.ID],
		api.Turn{Role: "user", Text: prompt},
		api.Turn{Role: "assistant", Text: reply},
	)
	if limit := 2 * a.MaxIterations; limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	e.sessions[a.ID] = history
}

// Session returns a copy of the agent's conversation history.
func (e *AnthropicExecutor) Session(agentID string) []api.Turn {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]api.Turn(nil), e.sessions[agentID]...)
}

// ClearSession forgets the agent's conversation history.
func (e *AnthropicExecutor) ClearSession(agentID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessions, agentID)
}
