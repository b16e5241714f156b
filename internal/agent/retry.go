package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ShayCichocki/crewline/pkg/models"
)

// ErrRetriesExhausted wraps the last error once every attempt has failed.
var ErrRetriesExhausted = errors.New("retry attempts exhausted")

// RetryPolicy configures exponential backoff.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Delay is the wait before the second attempt.
	Delay time.Duration
	// Backoff multiplies the delay after every failed attempt.
	Backoff float64
	// Retryable decides whether an error is worth another attempt.
	// Nil retries everything except cancellation and an open circuit.
	Retryable func(error) bool
	// OnRetry is called before each wait with the error and the attempt
	// number that failed.
	OnRetry func(err error, attempt int)
}

// DefaultRetryPolicy returns 3 attempts starting at 1s and doubling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delay:       time.Second,
		Backoff:     2.0,
	}
}

// RetryExecutor retries a TurnExecutor with exponential backoff.
type RetryExecutor struct {
	next   TurnExecutor
	policy RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error
}

var _ TurnExecutor = (*RetryExecutor)(nil)

// NewRetryExecutor wraps next with policy. Zero fields take the defaults.
func NewRetryExecutor(next TurnExecutor, policy RetryPolicy) *RetryExecutor {
	def := DefaultRetryPolicy()
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = def.MaxAttempts
	}
	if policy.Delay < 0 {
		policy.Delay = 0
	}
	if policy.Backoff < 1 {
		policy.Backoff = def.Backoff
	}
	return &RetryExecutor{next: next, policy: policy, sleep: sleepContext}
}

// ExecuteTurn runs the wrapped executor until it succeeds, the error is not
// retryable, ctx ends, or attempts run out.
func (r *RetryExecutor) ExecuteTurn(ctx context.Context, a *models.Agent, prompt string) (string, error) {
	delay := r.policy.Delay

	for attempt := 1; ; attempt++ {
		out, err := r.next.ExecuteTurn(ctx, a, prompt)
		if err == nil {
			return out, nil
		}
		if !r.retryable(err) {
			return "", err
		}
		if attempt >= r.policy.MaxAttempts {
			log.Printf("[retry] agent %s: failed after %d attempts: %v", a.ID, attempt, err)
			return "", fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, err)
		}

		log.Printf("[retry] agent %s: attempt %d/%d failed: %v, retrying in %s",
			a.ID, attempt, r.policy.MaxAttempts, err, delay)
		if r.policy.OnRetry != nil {
			r.policy.OnRetry(err, attempt)
		}

		if err := r.sleep(ctx, delay); err != nil {
			return "", err
		}
		delay = time.Duration(float64(delay) * r.policy.Backoff)
	}
}

func (r *RetryExecutor) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrCircuitOpen) {
		return false
	}
	if r.policy.Retryable != nil {
		return r.policy.Retryable(err)
	}
	return true
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
