package resilience

import (
	"context"
	"log"
	"math/rand"
	"time"
)

// Policy controls retry behavior for one class of operation.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
	// Retryable decides whether an error is worth another attempt.
	// Defaults to the classifier's verdict.
	Retryable func(error) bool
	// Breaker, when set, gates every attempt and receives outcomes.
	Breaker *CircuitBreaker
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 60 * time.Second
	}
	if p.Retryable == nil {
		p.Retryable = Retryable
	}
	return p
}

// DelayFor computes the backoff before the given attempt (1-based):
// min(MaxDelay, BaseDelay * 2^(attempt-1)), plus full jitter in
// [0, delay) to keep concurrent sessions from retrying in lockstep.
func (p Policy) DelayFor(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.Jitter && delay > 0 {
		delay += time.Duration(rand.Int63n(int64(delay)))
		if delay > p.MaxDelay {
			// Jitter may not stretch the wait past the configured ceiling.
			delay = p.MaxDelay
		}
	}
	return delay
}

// Execute runs op under the policy. Non-retryable errors short-circuit
// to the caller unchanged; exhaustion returns an *ExhaustedError with
// the last error and attempt count. A nil return means op succeeded.
func Execute(ctx context.Context, name string, policy Policy, op func(ctx context.Context) error) error {
	p := policy.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if p.Breaker != nil && !p.Breaker.CanExecute() {
			// No point burning retry budget against a tripped dependency.
			return ErrBreakerOpen
		}

		err := op(ctx)
		if err == nil {
			if p.Breaker != nil {
				p.Breaker.RecordSuccess()
			}
			return nil
		}
		lastErr = err

		if p.Breaker != nil {
			p.Breaker.RecordFailure()
		}

		if !p.Retryable(err) {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}

		delay := p.DelayFor(attempt)
		log.Printf("[WARN] Attempt %d/%d failed for %s: %v. Retrying in %s", attempt, p.MaxAttempts, name, err, delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return &ExhaustedError{Operation: name, Attempts: p.MaxAttempts, LastErr: lastErr}
}

// Retry presets per dependency class, mirrored from the breaker presets.

func AIModelPolicy() Policy {
	return Policy{MaxAttempts: 4, BaseDelay: time.Second, MaxDelay: 30 * time.Second, Jitter: true}
}

func OCRPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second, Jitter: true}
}

func DatabasePolicy() Policy {
	return Policy{MaxAttempts: 5, BaseDelay: 500 * time.Millisecond, MaxDelay: 20 * time.Second, Jitter: true}
}

func WebhookPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: 5 * time.Second, MaxDelay: time.Minute, Jitter: true}
}
