package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ShayCichocki/crewline/pkg/models"
)

// ErrTurnTimeout indicates a turn exceeded its time budget.
var ErrTurnTimeout = errors.New("turn timed out")

// TimeoutExecutor bounds the latency of every turn.
type TimeoutExecutor struct {
	next    TurnExecutor
	timeout time.Duration
}

var _ TurnExecutor = (*TimeoutExecutor)(nil)

// NewTimeoutExecutor wraps next. A non-positive timeout disables the bound.
func NewTimeoutExecutor(next TurnExecutor, timeout time.Duration) *TimeoutExecutor {
	return &TimeoutExecutor{next: next, timeout: timeout}
}

// ExecuteTurn runs the wrapped executor under a deadline. It returns
// ErrTurnTimeout when the deadline, not the caller, ended the turn.
func (e *TimeoutExecutor) ExecuteTurn(ctx context.Context, a *models.Agent, prompt string) (string, error) {
	if e.timeout <= 0 {
		return e.next.ExecuteTurn(ctx, a, prompt)
	}

	turnCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := e.next.ExecuteTurn(turnCtx, a, prompt)
		done <- result{out, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() == nil && errors.Is(turnCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s: %v", ErrTurnTimeout, e.timeout, r.err)
		}
		return r.out, r.err
	case <-turnCtx.Done():
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w after %s", ErrTurnTimeout, e.timeout)
	}
}

// Chain wraps base with the standard decorators, innermost first: timeout,
// circuit breaker, then retry. Nil breaker or zero timeout skip that layer.
func Chain(base TurnExecutor, timeout time.Duration, breaker *CircuitBreaker, policy *RetryPolicy) TurnExecutor {
	exec := base
	if timeout > 0 {
		exec = NewTimeoutExecutor(exec, timeout)
	}
	if breaker != nil {
		exec = NewBreakerExecutor(exec, breaker)
	}
	if policy != nil {
		exec = NewRetryExecutor(exec, *policy)
	}
	return exec
}
