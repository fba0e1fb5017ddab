package resilience

import (
	"sync"
	"time"
)

// BreakerRegistry holds the shared breaker instances, one per named
// dependency. It is constructed once at startup and injected wherever
// a breaker is needed; the shared-instance semantics come from the
// container owning a single registry, not from package-level state.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

func NewBreakerRegistry() *BreakerRegistry {
	return &BreakerRegistry{
		breakers: make(map[string]*CircuitBreaker),
	}
}

// GetOrCreate returns the breaker for name, creating it with cfg on
// first use. Later calls ignore cfg so every caller shares one
// instance per dependency.
func (r *BreakerRegistry) GetOrCreate(name string, cfg BreakerConfig) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}
	cfg.Name = name
	cb := NewCircuitBreaker(cfg)
	r.breakers[name] = cb
	return cb
}

// Get returns the breaker for name, or nil if none was registered.
func (r *BreakerRegistry) Get(name string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.breakers[name]
}

// StatusAll snapshots every registered breaker for health reporting.
func (r *BreakerRegistry) StatusAll() []BreakerStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	statuses := make([]BreakerStatus, 0, len(r.breakers))
	for _, cb := range r.breakers {
		statuses = append(statuses, cb.Status())
	}
	return statuses
}

// Breaker presets tuned per dependency class. Values carried over from
// operating the original bot.

func AIModelBreaker() BreakerConfig {
	return BreakerConfig{FailMax: 3, ResetTimeout: 30 * time.Second, ProbeMax: 2, SuccessThreshold: 1}
}

func OCRBreaker() BreakerConfig {
	return BreakerConfig{FailMax: 3, ResetTimeout: 20 * time.Second, ProbeMax: 2, SuccessThreshold: 1}
}

func DatabaseBreaker() BreakerConfig {
	return BreakerConfig{FailMax: 5, ResetTimeout: 10 * time.Second, ProbeMax: 3, SuccessThreshold: 2}
}

func WebhookBreaker() BreakerConfig {
	return BreakerConfig{FailMax: 10, ResetTimeout: 2 * time.Minute, ProbeMax: 1, SuccessThreshold: 1}
}
