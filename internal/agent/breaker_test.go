package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ShayCichocki/crewline/pkg/models"
)

func TestCircuitBreaker_Transitions(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	b := NewCircuitBreaker(3, time.Minute)
	b.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		b.Failure()
	}
	if b.State() != BreakerClosed {
		t.Fatalf("state = %s, want closed below threshold", b.State())
	}

	b.Failure()
	if b.State() != BreakerOpen {
		t.Fatalf("state = %s, want open at threshold", b.State())
	}
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Allow() = %v, want ErrCircuitOpen", err)
	}

	now = now.Add(time.Minute)
	if err := b.Allow(); err != nil {
		t.Fatalf("Allow() after recovery timeout = %v", err)
	}
	if b.State() != BreakerHalfOpen {
		t.Fatalf("state = %s, want half_open", b.State())
	}

	b.Failure()
	if b.State() != BreakerOpen {
		t.Fatalf("failed trial should reopen, state = %s", b.State())
	}

	now = now.Add(2 * time.Minute)
	_ = b.Allow()
	b.Success()
	if b.State() != BreakerClosed || b.Failures() != 0 {
		t.Errorf("after successful trial: state=%s failures=%d", b.State(), b.Failures())
	}
}

func TestCircuitBreaker_Defaults(t *testing.T) {
	b := NewCircuitBreaker(0, 0)
	if b.threshold != 5 || b.timeout != 60*time.Second {
		t.Errorf("defaults = %d/%s", b.threshold, b.timeout)
	}
}

func TestBreakerExecutor(t *testing.T) {
	var calls int
	failing := ExecutorFunc(func(ctx context.Context, a *models.Agent, prompt string) (string, error) {
		calls++
		return "", errors.New("down")
	})

	exec := NewBreakerExecutor(failing, NewCircuitBreaker(2, time.Hour))
	a := testAgent(t)
	for i := 0; i < 2; i++ {
		_, _ = exec.ExecuteTurn(context.Background(), a, "p")
	}

	_, err := exec.ExecuteTurn(context.Background(), a, "p")
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("error = %v, want ErrCircuitOpen", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, open breaker must not call through", calls)
	}
}
