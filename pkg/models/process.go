package models

import "strings"

// ProcessType selects how the engine orders task execution.
type ProcessType string

const (
	// ProcessSequential runs one ready task at a time, in list order.
	ProcessSequential ProcessType = "sequential"
	// ProcessParallel runs every ready task of a wave concurrently.
	ProcessParallel ProcessType = "parallel"
	// ProcessHierarchical lets a manager agent assign each ready task to a worker.
	ProcessHierarchical ProcessType = "hierarchical"
)

// Valid returns true if the process type is a known value.
func (p ProcessType) Valid() bool {
	switch p {
	case ProcessSequential, ProcessParallel, ProcessHierarchical:
		return true
	default:
		return false
	}
}

// ParseProcessType parses a process name case-insensitively.
// An empty string means sequential.
func ParseProcessType(s string) (ProcessType, error) {
	if strings.TrimSpace(s) == "" {
		return ProcessSequential, nil
	}
	p := ProcessType(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", NewConfigError("crew.process", "unknown process type %q", s)
	}
	return p, nil
}
