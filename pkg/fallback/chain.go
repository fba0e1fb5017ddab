package fallback

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"invoice-collector-be/pkg/resilience"
)

// Tier labels where a strategy sits in the degradation ladder. The
// chain itself is agnostic to tier semantics; callers use the tier of
// the winning strategy to set the session degradation level.
type Tier string

const (
	TierPrimary   Tier = "primary"
	TierSecondary Tier = "secondary"
	TierTertiary  Tier = "tertiary"
	TierRuleBased Tier = "rule_based"
	TierStatic    Tier = "static"
)

// Strategy is one interchangeable way to serve a request. Each
// strategy carries its own retry policy and circuit breaker so a
// failing provider cannot consume another provider's budget.
type Strategy[Req, Resp any] struct {
	Name    string
	Tier    Tier
	Policy  resilience.Policy
	Breaker *resilience.CircuitBreaker
	Call    func(ctx context.Context, req Req) (Resp, error)
}

// Result carries the winning response tagged with which strategy
// served it and how long it took.
type Result[Resp any] struct {
	Value    Resp
	Strategy string
	Tier     Tier
	Latency  time.Duration
}

// AttemptError records one strategy's failure inside an exhausted chain.
type AttemptError struct {
	Strategy string
	Err      error
}

// ErrExhausted is returned when every strategy in the chain failed or
// was skipped. It is a typed terminal result, never a panic.
type ErrExhausted struct {
	Attempts []AttemptError
}

func (e *ErrExhausted) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = fmt.Sprintf("%s: %v", a.Strategy, a.Err)
	}
	return "all fallback strategies exhausted: " + strings.Join(parts, "; ")
}

// Chain tries strategies in configured order until one produces a
// usable result.
type Chain[Req, Resp any] struct {
	name       string
	strategies []Strategy[Req, Resp]
}

func NewChain[Req, Resp any](name string, strategies ...Strategy[Req, Resp]) *Chain[Req, Resp] {
	return &Chain[Req, Resp]{name: name, strategies: strategies}
}

// Generate walks the chain. A strategy whose breaker is OPEN is
// skipped without spending an attempt on it; the first success wins.
func (c *Chain[Req, Resp]) Generate(ctx context.Context, req Req) (*Result[Resp], error) {
	var attempts []AttemptError

	for _, s := range c.strategies {
		strategy := s
		policy := s.Policy
		policy.Breaker = s.Breaker

		start := time.Now()
		var value Resp
		err := resilience.Execute(ctx, c.name+"/"+s.Name, policy, func(ctx context.Context) error {
			v, callErr := strategy.Call(ctx, req)
			if callErr != nil {
				return callErr
			}
			value = v
			return nil
		})
		if err == nil {
			return &Result[Resp]{
				Value:    value,
				Strategy: s.Name,
				Tier:     s.Tier,
				Latency:  time.Since(start),
			}, nil
		}

		attempts = append(attempts, AttemptError{Strategy: s.Name, Err: err})
		if errors.Is(err, resilience.ErrBreakerOpen) {
			// Breaker rejected the call before dispatch; the strategy
			// was skipped, not attempted.
			log.Printf("[WARN] Fallback chain %s: strategy %s skipped (breaker open)", c.name, s.Name)
		} else {
			log.Printf("[WARN] Fallback chain %s: strategy %s failed: %v", c.name, s.Name, err)
		}

		if ctx.Err() != nil {
			break
		}
	}

	return nil, &ErrExhausted{Attempts: attempts}
}

// IsExhausted reports whether err is a chain-exhaustion failure.
func IsExhausted(err error) bool {
	var e *ErrExhausted
	return errors.As(err, &e)
}
