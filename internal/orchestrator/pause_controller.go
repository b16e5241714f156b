package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStopped is returned by WaitIfPaused once the run has been stopped.
var ErrStopped = errors.New("run stopped")

// RunState is the dispatch state of a run.
type RunState int

const (
	// RunActive lets the engine dispatch ready tasks.
	RunActive RunState = iota
	// RunPaused holds dispatch between steps.
	RunPaused
	// RunStopped ends the run once executing tasks settle. It is final.
	RunStopped
)

func (s RunState) String() string {
	switch s {
	case RunActive:
		return "active"
	case RunPaused:
		return "paused"
	case RunStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// StateChange describes a transition reported to OnChange listeners.
type StateChange struct {
	State RunState
	// Reason is set for stops.
	Reason string
	// Held is how long the pause that just ended lasted.
	Held time.Duration
}

// PauseController holds the pause and stop state of a run. Pausing holds
// dispatch between steps; tasks already executing finish. Transitions are
// reported to listeners so the engine can surface them as events.
type PauseController struct {
	mu       sync.Mutex
	state    RunState
	reason   string
	pausedAt time.Time
	held     time.Duration
	// release is closed when the current pause ends.
	release   chan struct{}
	listeners map[int]func(StateChange)
	nextID    int
}

// NewPauseController creates an active controller.
func NewPauseController() *PauseController {
	return &PauseController{listeners: make(map[int]func(StateChange))}
}

// OnChange registers fn for every later transition and returns a function
// that removes it. fn runs on the goroutine that caused the transition.
func (p *PauseController) OnChange(fn func(StateChange)) (remove func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

// Pause holds dispatch. No new tasks start until Resume or Stop.
func (p *PauseController) Pause() {
	p.mu.Lock()
	if p.state != RunActive {
		p.mu.Unlock()
		return
	}
	p.state = RunPaused
	p.pausedAt = time.Now()
	p.release = make(chan struct{})
	p.notifyLocked(StateChange{State: RunPaused})
}

// Resume releases a pause. It does nothing on an active or stopped run.
func (p *PauseController) Resume() {
	p.mu.Lock()
	if p.state != RunPaused {
		p.mu.Unlock()
		return
	}
	p.state = RunActive
	held := p.endPauseLocked()
	p.notifyLocked(StateChange{State: RunActive, Held: held})
}

// Stop ends the run. It unblocks any WaitIfPaused calls.
func (p *PauseController) Stop() {
	p.StopWithReason("stop requested")
}

// StopWithReason is Stop with the reason recorded for StopReason and
// listeners. Only the first stop is kept.
func (p *PauseController) StopWithReason(reason string) {
	p.mu.Lock()
	if p.state == RunStopped {
		p.mu.Unlock()
		return
	}
	var held time.Duration
	if p.state == RunPaused {
		held = p.endPauseLocked()
	}
	p.state = RunStopped
	p.reason = reason
	p.notifyLocked(StateChange{State: RunStopped, Reason: reason, Held: held})
}

// State returns the current dispatch state.
func (p *PauseController) State() RunState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// IsPaused returns whether dispatch is currently held.
func (p *PauseController) IsPaused() bool { return p.State() == RunPaused }

// IsStopped returns whether the run has been stopped.
func (p *PauseController) IsStopped() bool { return p.State() == RunStopped }

// StopReason returns why the run was stopped, or "" if it was not.
func (p *PauseController) StopReason() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reason
}

// Held returns the total time dispatch has been paused, including a pause
// still in progress.
func (p *PauseController) Held() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == RunPaused {
		return p.held + time.Since(p.pausedAt)
	}
	return p.held
}

// WaitIfPaused blocks while the run is paused. It returns ErrStopped once
// the run is stopped and ctx.Err() if ctx ends first.
func (p *PauseController) WaitIfPaused(ctx context.Context) error {
	for {
		p.mu.Lock()
		state, release := p.state, p.release
		p.mu.Unlock()

		switch state {
		case RunActive:
			return nil
		case RunStopped:
			return ErrStopped
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-release:
		}
	}
}

func (p *PauseController) endPauseLocked() time.Duration {
	held := time.Since(p.pausedAt)
	p.held += held
	close(p.release)
	return held
}

// notifyLocked releases p.mu and then calls the listeners.
func (p *PauseController) notifyLocked(change StateChange) {
	fns := make([]func(StateChange), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(change)
	}
}
