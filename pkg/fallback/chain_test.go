package fallback

import (
	"context"
	"errors"
	"testing"
	"time"

	"invoice-collector-be/pkg/resilience"
)

func quickPolicy(attempts int) resilience.Policy {
	return resilience.Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func failing(name string) func(ctx context.Context, req string) (string, error) {
	return func(ctx context.Context, req string) (string, error) {
		return "", resilience.NewDependencyError(name, resilience.KindUnavailable, 503, errors.New("down"))
	}
}

func succeeding(resp string) func(ctx context.Context, req string) (string, error) {
	return func(ctx context.Context, req string) (string, error) {
		return resp, nil
	}
}

func TestChainFirstStrategyWins(t *testing.T) {
	chain := NewChain[string, string]("extract",
		Strategy[string, string]{Name: "primary-ai", Tier: TierPrimary, Policy: quickPolicy(1), Call: succeeding("primary result")},
		Strategy[string, string]{Name: "backup-ai", Tier: TierSecondary, Policy: quickPolicy(1), Call: succeeding("backup result")},
	)

	res, err := chain.Generate(context.Background(), "doc")
	if err != nil {
		t.Fatalf("Generate returned %v, want nil", err)
	}
	if res.Value != "primary result" {
		t.Errorf("Value = %q, want primary result", res.Value)
	}
	if res.Strategy != "primary-ai" || res.Tier != TierPrimary {
		t.Errorf("winner = %s/%s, want primary-ai/primary", res.Strategy, res.Tier)
	}
}

func TestChainFallsThroughToNextTier(t *testing.T) {
	chain := NewChain[string, string]("extract",
		Strategy[string, string]{Name: "primary-ai", Tier: TierPrimary, Policy: quickPolicy(2), Call: failing("primary-ai")},
		Strategy[string, string]{Name: "rules", Tier: TierRuleBased, Policy: quickPolicy(1), Call: succeeding("rule result")},
	)

	res, err := chain.Generate(context.Background(), "doc")
	if err != nil {
		t.Fatalf("Generate returned %v, want nil", err)
	}
	if res.Strategy != "rules" {
		t.Errorf("Strategy = %s, want rules", res.Strategy)
	}
	if res.Tier != TierRuleBased {
		t.Errorf("Tier = %s, want rule_based", res.Tier)
	}
}

func TestChainSkipsOpenBreakerWithoutCalling(t *testing.T) {
	breaker := resilience.NewCircuitBreaker(resilience.BreakerConfig{
		Name: "primary-ai", FailMax: 1, ResetTimeout: time.Hour,
	})
	breaker.RecordFailure()

	primaryCalls := 0
	chain := NewChain[string, string]("extract",
		Strategy[string, string]{
			Name:    "primary-ai",
			Tier:    TierPrimary,
			Policy:  quickPolicy(3),
			Breaker: breaker,
			Call: func(ctx context.Context, req string) (string, error) {
				primaryCalls++
				return "never", nil
			},
		},
		Strategy[string, string]{Name: "backup-ai", Tier: TierSecondary, Policy: quickPolicy(1), Call: succeeding("backup result")},
	)

	res, err := chain.Generate(context.Background(), "doc")
	if err != nil {
		t.Fatalf("Generate returned %v, want nil", err)
	}
	if primaryCalls != 0 {
		t.Errorf("primary called %d times behind an open breaker, want 0", primaryCalls)
	}
	if res.Strategy != "backup-ai" {
		t.Errorf("Strategy = %s, want backup-ai", res.Strategy)
	}
}

func TestChainExhaustionListsEveryAttempt(t *testing.T) {
	chain := NewChain[string, string]("extract",
		Strategy[string, string]{Name: "primary-ai", Tier: TierPrimary, Policy: quickPolicy(1), Call: failing("primary-ai")},
		Strategy[string, string]{Name: "backup-ai", Tier: TierSecondary, Policy: quickPolicy(1), Call: failing("backup-ai")},
	)

	res, err := chain.Generate(context.Background(), "doc")
	if res != nil {
		t.Fatal("Generate returned a result from an exhausted chain")
	}

	var exhausted *ErrExhausted
	if !errors.As(err, &exhausted) {
		t.Fatalf("Generate returned %T, want *ErrExhausted", err)
	}
	if len(exhausted.Attempts) != 2 {
		t.Fatalf("Attempts = %d, want 2", len(exhausted.Attempts))
	}
	if exhausted.Attempts[0].Strategy != "primary-ai" || exhausted.Attempts[1].Strategy != "backup-ai" {
		t.Errorf("attempt order = %s, %s; want primary-ai, backup-ai",
			exhausted.Attempts[0].Strategy, exhausted.Attempts[1].Strategy)
	}
	if !IsExhausted(err) {
		t.Error("IsExhausted should recognize chain exhaustion")
	}
}

func TestChainNonRetryableStillFallsThrough(t *testing.T) {
	// A permanent failure on one provider must not kill the whole chain;
	// it just moves on to the next tier immediately.
	calls := 0
	chain := NewChain[string, string]("extract",
		Strategy[string, string]{
			Name:   "primary-ai",
			Tier:   TierPrimary,
			Policy: quickPolicy(5),
			Call: func(ctx context.Context, req string) (string, error) {
				calls++
				return "", resilience.NewDependencyError("primary-ai", resilience.KindAuth, 401, errors.New("bad key"))
			},
		},
		Strategy[string, string]{Name: "rules", Tier: TierRuleBased, Policy: quickPolicy(1), Call: succeeding("rule result")},
	)

	res, err := chain.Generate(context.Background(), "doc")
	if err != nil {
		t.Fatalf("Generate returned %v, want nil", err)
	}
	if calls != 1 {
		t.Errorf("primary called %d times for a permanent error, want 1", calls)
	}
	if res.Tier != TierRuleBased {
		t.Errorf("Tier = %s, want rule_based", res.Tier)
	}
}

func TestChainStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	secondCalled := false
	chain := NewChain[string, string]("extract",
		Strategy[string, string]{
			Name:   "primary-ai",
			Tier:   TierPrimary,
			Policy: quickPolicy(1),
			Call: func(ctx context.Context, req string) (string, error) {
				cancel()
				return "", resilience.NewDependencyError("primary-ai", resilience.KindNetwork, 0, errors.New("cut"))
			},
		},
		Strategy[string, string]{
			Name:   "backup-ai",
			Tier:   TierSecondary,
			Policy: quickPolicy(1),
			Call: func(ctx context.Context, req string) (string, error) {
				secondCalled = true
				return "late", nil
			},
		},
	)

	_, err := chain.Generate(ctx, "doc")
	if err == nil {
		t.Fatal("Generate should fail once the context is cancelled")
	}
	if secondCalled {
		t.Error("later strategies should not run after context cancellation")
	}
}
