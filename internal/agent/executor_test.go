package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/ShayCichocki/crewline/pkg/models"
)

func testAgent(t *testing.T, opts ...models.AgentOption) *models.Agent {
	t.Helper()
	a, err := models.NewAgent("researcher", "find facts", opts...)
	if err != nil {
		t.Fatalf("NewAgent() error = %v", err)
	}
	return a
}

func TestExecutorFunc(t *testing.T) {
	var gotPrompt string
	exec := ExecutorFunc(func(ctx context.Context, a *models.Agent, prompt string) (string, error) {
		gotPrompt = prompt
		return "done by " + a.Role, nil
	})

	out, err := exec.ExecuteTurn(context.Background(), testAgent(t), "hello")
	if err != nil {
		t.Fatalf("ExecuteTurn() error = %v", err)
	}
	if out != "done by researcher" || gotPrompt != "hello" {
		t.Errorf("out=%q prompt=%q", out, gotPrompt)
	}
}

func TestEchoExecutor(t *testing.T) {
	prompt := "# Task\nsummarize the report\n\n# Expected Output\nthree bullets"
	out, err := EchoExecutor{}.ExecuteTurn(context.Background(), testAgent(t), prompt)
	if err != nil {
		t.Fatalf("ExecuteTurn() error = %v", err)
	}
	if out != "[dry-run] researcher would handle: summarize the report" {
		t.Errorf("out = %q", out)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (EchoExecutor{}).ExecuteTurn(ctx, testAgent(t), prompt); err == nil {
		t.Error("expected error on cancelled context")
	}
}

func TestSystemPrompt(t *testing.T) {
	a := testAgent(t, models.WithBackstory("former librarian"), models.WithDelegation(true), models.WithTools("search", "calculator"))
	got := SystemPrompt(a)

	for _, want := range []string{
		"You are a researcher.",
		"Your goal is: find facts",
		"Background: former librarian",
		DelegationHint,
		"Tools available to you: search, calculator",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("system prompt missing %q:\n%s", want, got)
		}
	}

	plain := SystemPrompt(testAgent(t))
	if strings.Contains(plain, "Background") || strings.Contains(plain, "delegate") {
		t.Errorf("unexpected sections in %q", plain)
	}
}
