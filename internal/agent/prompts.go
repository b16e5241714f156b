package agent

import (
	"strings"

	"github.com/ShayCichocki/crewline/pkg/models"
)

// DelegationHint is added to the persona of agents allowed to delegate.
const DelegationHint = "You can delegate tasks to other agents if needed by clearly stating " +
	"which agent should handle the task."

// SystemPrompt builds the persona prompt for an agent.
func SystemPrompt(a *models.Agent) string {
	parts := []string{"You are a " + a.Role + "."}

	if a.Goal != "" {
		parts = append(parts, "Your goal is: "+a.Goal)
	}
	if a.Backstory != "" {
		parts = append(parts, "Background: "+a.Backstory)
	}
	if a.AllowDelegation {
		parts = append(parts, DelegationHint)
	}
	if len(a.Tools) > 0 {
		parts = append(parts, "Tools available to you: "+strings.Join(a.Tools, ", "))
	}

	return strings.Join(parts, "\n\n")
}
