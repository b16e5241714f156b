package crew

import (
	"fmt"
	"sync"
	"testing"

	"github.com/ShayCichocki/crewline/pkg/models"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	a := newAgent(t, "b", "writer")
	b := newAgent(t, "a", "reader")

	r.Register(a)
	r.Register(b)

	if r.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", r.Count())
	}
	if r.Get("b") != a {
		t.Error("Get(b) returned wrong agent")
	}
	if r.Get("missing") != nil {
		t.Error("Get(missing) should be nil")
	}
	list := r.List()
	if len(list) != 2 || list[0].ID != "a" || list[1].ID != "b" {
		t.Errorf("List() = %v, want ordered by ID", list)
	}

	r.Unregister("a")
	if r.Count() != 1 {
		t.Errorf("Count() after Unregister = %d", r.Count())
	}
	r.Clear()
	if r.Count() != 0 {
		t.Errorf("Count() after Clear = %d", r.Count())
	}
}

func TestRegistry_Independent(t *testing.T) {
	r1, r2 := NewRegistry(), NewRegistry()
	r1.Register(newAgent(t, "x", "worker"))
	if r2.Count() != 0 {
		t.Error("registries share state")
	}
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()
	agents := make([]*models.Agent, 50)
	for i := range agents {
		agents[i] = newAgent(t, fmt.Sprintf("agent-%d", i), "worker")
	}

	var wg sync.WaitGroup
	for _, a := range agents {
		wg.Add(1)
		go func(a *models.Agent) {
			defer wg.Done()
			r.Register(a)
			_ = r.List()
		}(a)
	}
	wg.Wait()
	if r.Count() != 50 {
		t.Errorf("Count() = %d, want 50", r.Count())
	}
}
