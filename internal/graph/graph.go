// Package graph validates and orders the task dependency graph of a crew.
package graph

import (
	"sort"
	"sync"

	"github.com/ShayCichocki/crewline/pkg/models"
)

const (
	white = iota // unvisited
	grey         // on the DFS stack
	black        // fully explored
)

// DependencyGraph represents a directed acyclic graph of task dependencies.
// Tasks are nodes, and edges point from a task to the tasks it depends on.
type DependencyGraph struct {
	mu sync.RWMutex
	// order preserves task insertion order for deterministic traversal.
	order []string
	// nodes maps task ID to the task itself.
	nodes map[string]*models.Task
	// edges maps task ID to IDs of tasks it depends on.
	edges map[string][]string
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New creates a new empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes:    make(map[string]*models.Task),
		edges:    make(map[string][]string),
		debugLog: func(format string, args ...interface{}) {},
	}
}

// SetDebugLog sets the debug logging function.
func (g *DependencyGraph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Build constructs the dependency graph from a slice of tasks.
// Returns an *Error if a dependency is unknown or a cycle is detected.
func (g *DependencyGraph) Build(tasks []*models.Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.debugLog("[graph.Build] building graph from %d tasks", len(tasks))

	// First pass: register all tasks as nodes.
	for _, task := range tasks {
		if _, seen := g.nodes[task.ID]; !seen {
			g.order = append(g.order, task.ID)
		}
		g.nodes[task.ID] = task
		g.edges[task.ID] = nil
	}

	// Second pass: build edges, so tasks may depend on later tasks.
	for _, task := range tasks {
		for _, dep := range task.Dependencies {
			if dep == nil {
				return &Error{TaskID: task.ID, Err: ErrUnknownDependency}
			}
			if known, exists := g.nodes[dep.ID]; !exists || known != dep {
				return &Error{TaskID: task.ID, Ref: dep.ID, Err: ErrUnknownDependency}
			}
			g.edges[task.ID] = append(g.edges[task.ID], dep.ID)
		}
	}

	if id, ok := g.findCycleLocked(); ok {
		g.debugLog("[graph.Build] cycle through task %s", id)
		return &Error{TaskID: id, Err: ErrCycleDetected}
	}

	g.debugLog("[graph.Build] graph built with %d nodes", len(g.nodes))
	return nil
}

// HasCycle returns true if the graph contains a circular dependency.
func (g *DependencyGraph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.findCycleLocked()
	return ok
}

// frame is one entry of the explicit DFS stack: a node and the index of the
// next edge to explore.
type frame struct {
	id   string
	next int
}

// findCycleLocked runs an iterative depth-first search with white/grey/black
// colouring. A grey target is a back edge. It returns the node the back edge
// points to. The caller must hold the lock.
func (g *DependencyGraph) findCycleLocked() (string, bool) {
	colors := make(map[string]int, len(g.nodes))

	for _, root := range g.order {
		if colors[root] != white {
			continue
		}

		stack := []frame{{id: root}}
		colors[root] = grey

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			deps := g.edges[top.id]

			if top.next >= len(deps) {
				colors[top.id] = black
				stack = stack[:len(stack)-1]
				continue
			}

			depID := deps[top.next]
			top.next++

			switch colors[depID] {
			case grey:
				return depID, true
			case white:
				colors[depID] = grey
				stack = append(stack, frame{id: depID})
			}
		}
	}

	return "", false
}

// TopologicalSort returns task IDs in an order where all dependencies
// come before the tasks that depend on them. Ties keep insertion order.
// Returns ErrCycleDetected if the graph contains a cycle.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	levels, err := g.Levels()
	if err != nil {
		return nil, err
	}
	var result []string
	for _, level := range levels {
		result = append(result, level...)
	}
	return result, nil
}

// Levels partitions the tasks into waves. Every task in wave n depends only on
// tasks in waves before n, so each wave could run concurrently once the
// previous waves complete.
func (g *DependencyGraph) Levels() ([][]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.findCycleLocked(); ok {
		return nil, ErrCycleDetected
	}

	// Kahn's algorithm, one wave per round.
	index := make(map[string]int, len(g.order))
	remaining := make(map[string]int, len(g.order))
	reverse := make(map[string][]string, len(g.order))
	var wave []string
	for i, id := range g.order {
		index[id] = i
		remaining[id] = len(g.edges[id])
		for _, depID := range g.edges[id] {
			reverse[depID] = append(reverse[depID], id)
		}
		if remaining[id] == 0 {
			wave = append(wave, id)
		}
	}

	var levels [][]string
	for len(wave) > 0 {
		levels = append(levels, wave)
		var next []string
		for _, id := range wave {
			for _, dependent := range reverse[id] {
				remaining[dependent]--
				if remaining[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		sort.Slice(next, func(i, j int) bool { return index[next[i]] < index[next[j]] })
		wave = next
	}
	return levels, nil
}

// GetTask returns the task for a given ID, or nil if not found.
func (g *DependencyGraph) GetTask(taskID string) *models.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[taskID]
}

// Size returns the number of tasks in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// GetDependencies returns the IDs of tasks that the given task depends on.
func (g *DependencyGraph) GetDependencies(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.edges[taskID]...)
}

// GetDependents returns the IDs of tasks that directly depend on the given task,
// in insertion order.
func (g *DependencyGraph) GetDependents(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.dependentsLocked(taskID)
}

func (g *DependencyGraph) dependentsLocked(taskID string) []string {
	var dependents []string
	for _, id := range g.order {
		for _, depID := range g.edges[id] {
			if depID == taskID {
				dependents = append(dependents, id)
				break
			}
		}
	}
	return dependents
}

// TransitiveDependents returns every task that directly or indirectly depends
// on the given task, in breadth-first order.
func (g *DependencyGraph) TransitiveDependents(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := map[string]bool{taskID: true}
	queue := []string{taskID}
	var result []string

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, dep := range g.dependentsLocked(id) {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			result = append(result, dep)
			queue = append(queue, dep)
		}
	}
	return result
}
