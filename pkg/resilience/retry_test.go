package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDelayForDoublesAndCaps(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: 10 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{6, 10 * time.Second},
	}

	for _, tt := range tests {
		if got := p.DelayFor(tt.attempt); got != tt.want {
			t.Errorf("DelayFor(%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
}

func TestDelayForJitterStaysUnderCeiling(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: 4 * time.Second, Jitter: true}

	for attempt := 1; attempt <= 6; attempt++ {
		for i := 0; i < 50; i++ {
			got := p.DelayFor(attempt)
			if got > p.MaxDelay {
				t.Fatalf("DelayFor(%d) = %s, exceeds MaxDelay %s", attempt, got, p.MaxDelay)
			}
			if got <= 0 {
				t.Fatalf("DelayFor(%d) = %s, want positive", attempt, got)
			}
		}
	}
}

func TestExecuteSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Execute(context.Background(), "op", Policy{MaxAttempts: 3}, func(ctx context.Context) error {
		calls++
		return nil
	})

	if err != nil {
		t.Fatalf("Execute returned %v, want nil", err)
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1", calls)
	}
}

func TestExecuteRetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	policy := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	err := Execute(context.Background(), "op", policy, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return NewDependencyError("svc", KindNetwork, 0, errors.New("flaky"))
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Execute returned %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("op called %d times, want 3", calls)
	}
}

func TestExecuteShortCircuitsNonRetryable(t *testing.T) {
	permanent := NewDependencyError("svc", KindAuth, 401, errors.New("bad key"))
	calls := 0

	err := Execute(context.Background(), "op", Policy{MaxAttempts: 5, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return permanent
	})

	if !errors.Is(err, permanent) {
		t.Fatalf("Execute returned %v, want the permanent error unchanged", err)
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1: non-retryable must not burn budget", calls)
	}
}

func TestExecuteExhaustionReturnsTypedError(t *testing.T) {
	underlying := NewDependencyError("svc", KindUnavailable, 503, errors.New("down"))
	policy := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	err := Execute(context.Background(), "generate_invoice", policy, func(ctx context.Context) error {
		return underlying
	})

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Execute returned %T, want *ExhaustedError", err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", exhausted.Attempts)
	}
	if exhausted.Operation != "generate_invoice" {
		t.Errorf("Operation = %q, want generate_invoice", exhausted.Operation)
	}
	if !errors.Is(err, underlying) {
		t.Error("ExhaustedError should unwrap to the last underlying error")
	}
}

func TestExecuteRespectsOpenBreaker(t *testing.T) {
	breaker := NewCircuitBreaker(BreakerConfig{Name: "svc", FailMax: 1, ResetTimeout: time.Hour})
	breaker.RecordFailure()

	calls := 0
	err := Execute(context.Background(), "op", Policy{MaxAttempts: 3, Breaker: breaker}, func(ctx context.Context) error {
		calls++
		return nil
	})

	if !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("Execute returned %v, want ErrBreakerOpen", err)
	}
	if calls != 0 {
		t.Errorf("op called %d times behind an open breaker, want 0", calls)
	}
}

func TestExecuteFeedsBreaker(t *testing.T) {
	breaker := NewCircuitBreaker(BreakerConfig{Name: "svc", FailMax: 2, ResetTimeout: time.Hour})
	policy := Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, Breaker: breaker}

	Execute(context.Background(), "op", policy, func(ctx context.Context) error {
		return NewDependencyError("svc", KindNetwork, 0, errors.New("flaky"))
	})

	if breaker.State() != StateOpen {
		t.Errorf("breaker State = %s after 2 recorded failures, want OPEN", breaker.State())
	}
}

func TestExecuteStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := Policy{MaxAttempts: 10, BaseDelay: 50 * time.Millisecond, MaxDelay: 50 * time.Millisecond}

	calls := 0
	err := Execute(ctx, "op", policy, func(ctx context.Context) error {
		calls++
		cancel()
		return NewDependencyError("svc", KindNetwork, 0, errors.New("flaky"))
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute returned %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("op called %d times after cancel, want 1", calls)
	}
}

func TestExecuteCustomRetryablePredicate(t *testing.T) {
	sentinel := errors.New("version conflict")
	policy := Policy{
		MaxAttempts: 5,
		BaseDelay:   time.Millisecond,
		Retryable: func(err error) bool {
			return !errors.Is(err, sentinel)
		},
	}

	calls := 0
	err := Execute(context.Background(), "persist", policy, func(ctx context.Context) error {
		calls++
		return sentinel
	})

	if !errors.Is(err, sentinel) {
		t.Fatalf("Execute returned %v, want sentinel", err)
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1", calls)
	}
}
