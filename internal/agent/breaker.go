package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ShayCichocki/crewline/pkg/models"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState is the state of a CircuitBreaker.
type BreakerState int

const (
	// BreakerClosed lets calls through and counts failures.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls until the recovery timeout passes.
	BreakerOpen
	// BreakerHalfOpen lets one trial call through.
	BreakerHalfOpen
)

// String returns a human-readable representation of the state.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker stops calling a failing dependency for a while once
// consecutive failures reach a threshold.
type CircuitBreaker struct {
	threshold int
	timeout   time.Duration
	now       func() time.Time

	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time
}

// NewCircuitBreaker creates a closed breaker. Non-positive values take the
// defaults of 5 failures and 60 seconds.
func NewCircuitBreaker(threshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = 60 * time.Second
	}
	return &CircuitBreaker{
		threshold: threshold,
		timeout:   recoveryTimeout,
		now:       time.Now,
	}
}

// State returns the current state.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the current failure count.
func (b *CircuitBreaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Allow reports whether a call may proceed, moving open to half-open once
// the recovery timeout has passed.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != BreakerOpen {
		return nil
	}
	if b.now().Sub(b.lastFailure) >= b.timeout {
		b.state = BreakerHalfOpen
		log.Printf("[breaker] entering half-open state")
		return nil
	}
	return fmt.Errorf("%w (last failure %s)", ErrCircuitOpen, b.lastFailure.Format(time.RFC3339))
}

// Success records a successful call.
func (b *CircuitBreaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerHalfOpen {
		log.Printf("[breaker] reset to closed")
	}
	b.state = BreakerClosed
	b.failures = 0
}

// Failure records a failed call and opens the breaker at the threshold.
// A failed half-open trial reopens it immediately.
func (b *CircuitBreaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.now()
	if b.state == BreakerHalfOpen || b.failures >= b.threshold {
		if b.state != BreakerOpen {
			log.Printf("[breaker] opened after %d failures", b.failures)
		}
		b.state = BreakerOpen
	}
}

// BreakerExecutor guards a TurnExecutor with a CircuitBreaker.
type BreakerExecutor struct {
	next    TurnExecutor
	breaker *CircuitBreaker
}

var _ TurnExecutor = (*BreakerExecutor)(nil)

// NewBreakerExecutor wraps next with breaker.
func NewBreakerExecutor(next TurnExecutor, breaker *CircuitBreaker) *BreakerExecutor {
	return &BreakerExecutor{next: next, breaker: breaker}
}

// ExecuteTurn fails fast with ErrCircuitOpen while the breaker is open.
func (e *BreakerExecutor) ExecuteTurn(ctx context.Context, a *models.Agent, prompt string) (string, error) {
	if err := e.breaker.Allow(); err != nil {
		return "", err
	}
	out, err := e.next.ExecuteTurn(ctx, a, prompt)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			e.breaker.Failure()
		}
		return "", err
	}
	e.breaker.Success()
	return out, nil
}
