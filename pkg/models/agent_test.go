package models

import (
	"errors"
	"testing"
)

func TestNewAgent_Defaults(t *testing.T) {
	a, err := NewAgent("researcher", "find facts")
	if err != nil {
		t.Fatalf("NewAgent() error = %v", err)
	}

	if a.ID == "" {
		t.Error("expected generated ID")
	}
	if !a.Verbose {
		t.Error("expected Verbose default true")
	}
	if !a.MemoryEnabled {
		t.Error("expected MemoryEnabled default true")
	}
	if a.AllowDelegation {
		t.Error("expected AllowDelegation default false")
	}
	if a.MaxIterations != DefaultMaxIterations {
		t.Errorf("MaxIterations = %d, want %d", a.MaxIterations, DefaultMaxIterations)
	}
	if a.LLM.Model != DefaultModel {
		t.Errorf("LLM.Model = %q, want %q", a.LLM.Model, DefaultModel)
	}
	if a.LLM.Temperature == nil || *a.LLM.Temperature != DefaultTemperature {
		t.Errorf("LLM.Temperature = %v, want %v", a.LLM.Temperature, DefaultTemperature)
	}
	if a.Tools == nil || len(a.Tools) != 0 {
		t.Errorf("Tools = %v, want empty non-nil slice", a.Tools)
	}
}

func TestNewAgent_UniqueIDs(t *testing.T) {
	a1, _ := NewAgent("r", "g")
	a2, _ := NewAgent("r", "g")
	if a1.ID == a2.ID {
		t.Errorf("expected distinct IDs, both %q", a1.ID)
	}
}

func TestNewAgent_Options(t *testing.T) {
	temp := 0.0
	a, err := NewAgent("writer", "write", WithAgentID("w1"), WithBackstory("ex-journalist"),
		WithTools("search", "browse"), WithLLM(LLMConfig{Model: "claude", Temperature: &temp}),
		WithMaxIterations(3), WithDelegation(true), WithMemory(false), WithVerbose(false))
	if err != nil {
		t.Fatalf("NewAgent() error = %v", err)
	}

	if a.ID != "w1" {
		t.Errorf("ID = %q, want w1", a.ID)
	}
	if a.Backstory != "ex-journalist" {
		t.Errorf("Backstory = %q", a.Backstory)
	}
	if len(a.Tools) != 2 || a.Tools[0] != "search" || a.Tools[1] != "browse" {
		t.Errorf("Tools = %v", a.Tools)
	}
	if a.LLM.Model != "claude" {
		t.Errorf("LLM.Model = %q, want claude", a.LLM.Model)
	}
	if a.LLM.TemperatureOrDefault() != 0 {
		t.Errorf("explicit zero temperature was replaced: %v", a.LLM.TemperatureOrDefault())
	}
	if a.MaxIterations != 3 || !a.AllowDelegation || a.MemoryEnabled || a.Verbose {
		t.Errorf("options not applied: %+v", a)
	}
}

func TestNewAgent_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		role  string
		goal  string
		opts  []AgentOption
		field string
	}{
		{"empty role", "", "goal", nil, "agent.role"},
		{"blank role", "   ", "goal", nil, "agent.role"},
		{"empty goal", "role", "", nil, "agent.goal"},
		{"zero iterations", "role", "goal", []AgentOption{WithMaxIterations(0)}, "agent.max_iterations"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAgent(tt.role, tt.goal, tt.opts...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v does not wrap ErrInvalidConfig", err)
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("error %T is not a *ConfigError", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", cfgErr.Field, tt.field)
			}
		})
	}
}

func TestLLMConfig_WithDefaultsCopiesExtra(t *testing.T) {
	extra := map[string]any{"top_p": 0.9}
	cfg := LLMConfig{Extra: extra}.WithDefaults()

	cfg.Extra["top_p"] = 0.1
	if extra["top_p"] != 0.9 {
		t.Error("WithDefaults shared the Extra map with the caller")
	}
}

func TestAgent_String(t *testing.T) {
	a := &Agent{Role: "planner", Goal: "plan"}
	if got := a.String(); got != "Agent(role=planner, goal=plan)" {
		t.Errorf("String() = %q", got)
	}
}
