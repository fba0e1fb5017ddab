package resilience

import (
	"sync"
	"time"
)

// BreakerState is the lifecycle position of a circuit breaker.
type BreakerState string

const (
	StateClosed   BreakerState = "CLOSED"
	StateOpen     BreakerState = "OPEN"
	StateHalfOpen BreakerState = "HALF_OPEN"
)

// BreakerConfig tunes a single circuit breaker.
type BreakerConfig struct {
	Name             string
	FailMax          int           // consecutive failures before opening
	ResetTimeout     time.Duration // OPEN -> HALF_OPEN cooldown
	ProbeMax         int           // calls admitted while HALF_OPEN
	SuccessThreshold int           // consecutive successes to close again
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailMax <= 0 {
		c.FailMax = 5
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 30 * time.Second
	}
	if c.ProbeMax <= 0 {
		c.ProbeMax = 2
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 1
	}
	return c
}

// BreakerStatus is a point-in-time snapshot for health reporting.
type BreakerStatus struct {
	Name                 string       `json:"name"`
	State                BreakerState `json:"state"`
	ConsecutiveFailures  int          `json:"consecutive_failures"`
	ConsecutiveSuccesses int          `json:"consecutive_successes"`
	Rejected             int64        `json:"rejected"`
	OpenedAt             *time.Time   `json:"opened_at,omitempty"`
}

// CircuitBreaker guards one named external dependency. All transitions
// happen under the mutex, so concurrent callers racing to become the
// HALF_OPEN prober cannot exceed the probe budget.
type CircuitBreaker struct {
	cfg BreakerConfig

	mu                   sync.Mutex
	state                BreakerState
	consecutiveFailures  int
	consecutiveSuccesses int
	halfOpenCalls        int
	rejected             int64
	openedAt             time.Time

	now func() time.Time // injectable for tests
}

func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		cfg:   cfg.withDefaults(),
		state: StateClosed,
		now:   time.Now,
	}
}

// CanExecute reports whether a call may be dispatched right now and
// performs the OPEN -> HALF_OPEN transition when the cooldown elapsed.
// A true return in HALF_OPEN consumes one probe slot.
func (b *CircuitBreaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.openedAt) >= b.cfg.ResetTimeout {
			b.state = StateHalfOpen
			b.halfOpenCalls = 1
			b.consecutiveSuccesses = 0
			return true
		}
		b.rejected++
		return false
	case StateHalfOpen:
		if b.halfOpenCalls < b.cfg.ProbeMax {
			b.halfOpenCalls++
			return true
		}
		b.rejected++
		return false
	}
	return false
}

// RecordSuccess feeds a successful call outcome back into the breaker.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveSuccesses++
	b.consecutiveFailures = 0

	if b.state == StateHalfOpen && b.consecutiveSuccesses >= b.cfg.SuccessThreshold {
		b.state = StateClosed
		b.halfOpenCalls = 0
	}
}

// RecordFailure feeds a failed call outcome back into the breaker.
// Any failure during HALF_OPEN reopens immediately and restarts the
// cooldown clock.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures++
	b.consecutiveSuccesses = 0

	switch b.state {
	case StateClosed:
		if b.consecutiveFailures >= b.cfg.FailMax {
			b.open()
		}
	case StateHalfOpen:
		b.open()
	}
}

func (b *CircuitBreaker) open() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.halfOpenCalls = 0
}

// ForceClose resets the breaker to CLOSED. Operator escape hatch.
func (b *CircuitBreaker) ForceClose() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.consecutiveFailures = 0
	b.halfOpenCalls = 0
}

// State returns the current state without consuming a probe slot.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Name returns the dependency name this breaker guards.
func (b *CircuitBreaker) Name() string {
	return b.cfg.Name
}

// Status snapshots the breaker for the health endpoint.
func (b *CircuitBreaker) Status() BreakerStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := BreakerStatus{
		Name:                 b.cfg.Name,
		State:                b.state,
		ConsecutiveFailures:  b.consecutiveFailures,
		ConsecutiveSuccesses: b.consecutiveSuccesses,
		Rejected:             b.rejected,
	}
	if !b.openedAt.IsZero() {
		t := b.openedAt
		st.OpenedAt = &t
	}
	return st
}
