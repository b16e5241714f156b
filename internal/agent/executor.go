// Package agent runs single agent turns and the decorators that wrap them.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/crewline/pkg/models"
)

// TurnExecutor performs one request/response exchange between an agent and
// an inference backend. Implementations must be safe to retry.
type TurnExecutor interface {
	ExecuteTurn(ctx context.Context, agent *models.Agent, prompt string) (string, error)
}

// ExecutorFunc adapts a function to TurnExecutor.
type ExecutorFunc func(ctx context.Context, agent *models.Agent, prompt string) (string, error)

// ExecuteTurn calls f.
func (f ExecutorFunc) ExecuteTurn(ctx context.Context, agent *models.Agent, prompt string) (string, error) {
	return f(ctx, agent, prompt)
}

// EchoExecutor answers every turn without calling a model. It backs dry runs.
type EchoExecutor struct{}

// ExecuteTurn returns a deterministic acknowledgement of the task.
func (EchoExecutor) ExecuteTurn(ctx context.Context, agent *models.Agent, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	first := prompt
	if i := strings.Index(prompt, "\n# "); i >= 0 {
		first = prompt[:i]
	}
	first = strings.TrimSpace(strings.TrimPrefix(first, "# Task"))
	return fmt.Sprintf("[dry-run] %s would handle: %s", agent.Role, first), nil
}
