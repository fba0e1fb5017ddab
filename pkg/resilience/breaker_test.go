package resilience

import (
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestBreaker(cfg BreakerConfig) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := NewCircuitBreaker(cfg)
	b.now = clock.Now
	return b, clock
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{Name: "test", FailMax: 3})

	for i := 0; i < 2; i++ {
		b.RecordFailure()
	}
	if b.State() != StateClosed {
		t.Fatalf("State = %s after 2 failures, want CLOSED", b.State())
	}

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("State = %s after 3 failures, want OPEN", b.State())
	}
	if b.CanExecute() {
		t.Error("CanExecute = true while OPEN before cooldown")
	}
}

func TestBreakerSuccessResetsFailureStreak(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{Name: "test", FailMax: 3})

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	if b.State() != StateClosed {
		t.Errorf("State = %s, want CLOSED: streak should reset on success", b.State())
	}
}

func TestBreakerHalfOpenProbeBudget(t *testing.T) {
	b, clock := newTestBreaker(BreakerConfig{
		Name:         "test",
		FailMax:      1,
		ResetTimeout: 30 * time.Second,
		ProbeMax:     2,
	})

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("State = %s, want OPEN", b.State())
	}

	clock.Advance(30 * time.Second)

	// First probe flips to HALF_OPEN and is admitted, second consumes the
	// remaining slot, third is rejected.
	if !b.CanExecute() {
		t.Fatal("first probe after cooldown should be admitted")
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("State = %s, want HALF_OPEN", b.State())
	}
	if !b.CanExecute() {
		t.Error("second probe within budget should be admitted")
	}
	if b.CanExecute() {
		t.Error("third probe should be rejected, budget is 2")
	}
}

func TestBreakerClosesAfterSuccessThreshold(t *testing.T) {
	b, clock := newTestBreaker(BreakerConfig{
		Name:             "test",
		FailMax:          1,
		ResetTimeout:     time.Second,
		ProbeMax:         3,
		SuccessThreshold: 2,
	})

	b.RecordFailure()
	clock.Advance(time.Second)

	if !b.CanExecute() {
		t.Fatal("probe should be admitted after cooldown")
	}
	b.RecordSuccess()
	if b.State() != StateHalfOpen {
		t.Fatalf("State = %s after 1 success, want HALF_OPEN", b.State())
	}

	if !b.CanExecute() {
		t.Fatal("second probe should be admitted")
	}
	b.RecordSuccess()
	if b.State() != StateClosed {
		t.Errorf("State = %s after threshold met, want CLOSED", b.State())
	}
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	b, clock := newTestBreaker(BreakerConfig{
		Name:         "test",
		FailMax:      1,
		ResetTimeout: time.Second,
	})

	b.RecordFailure()
	clock.Advance(time.Second)
	if !b.CanExecute() {
		t.Fatal("probe should be admitted after cooldown")
	}

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("State = %s after HALF_OPEN failure, want OPEN", b.State())
	}

	// The cooldown clock restarted: still rejected until it elapses again.
	clock.Advance(500 * time.Millisecond)
	if b.CanExecute() {
		t.Error("CanExecute = true before the restarted cooldown elapsed")
	}
	clock.Advance(500 * time.Millisecond)
	if !b.CanExecute() {
		t.Error("CanExecute = false after the restarted cooldown elapsed")
	}
}

func TestBreakerStatusCountsRejections(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{Name: "test", FailMax: 1, ResetTimeout: time.Minute})

	b.RecordFailure()
	b.CanExecute()
	b.CanExecute()

	st := b.Status()
	if st.Rejected != 2 {
		t.Errorf("Rejected = %d, want 2", st.Rejected)
	}
	if st.State != StateOpen {
		t.Errorf("State = %s, want OPEN", st.State)
	}
	if st.OpenedAt == nil {
		t.Error("OpenedAt should be set once the breaker has opened")
	}
}

func TestBreakerForceClose(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{Name: "test", FailMax: 1, ResetTimeout: time.Hour})

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("State = %s, want OPEN", b.State())
	}

	b.ForceClose()
	if b.State() != StateClosed {
		t.Errorf("State = %s after ForceClose, want CLOSED", b.State())
	}
	if !b.CanExecute() {
		t.Error("CanExecute = false after ForceClose")
	}
}

func TestRegistryReturnsSameBreaker(t *testing.T) {
	reg := NewBreakerRegistry()

	a := reg.GetOrCreate("primary-ai", AIModelBreaker())
	b := reg.GetOrCreate("primary-ai", BreakerConfig{FailMax: 99})
	if a != b {
		t.Error("GetOrCreate should return the existing breaker for a known name")
	}

	if got := reg.Get("primary-ai"); got != a {
		t.Error("Get should return the registered breaker")
	}
	if reg.Get("missing") != nil {
		t.Error("Get for an unknown name should return nil")
	}

	statuses := reg.StatusAll()
	if len(statuses) != 1 {
		t.Fatalf("StatusAll returned %d entries, want 1", len(statuses))
	}
	if statuses[0].Name != "primary-ai" {
		t.Errorf("StatusAll()[0].Name = %s, want primary-ai", statuses[0].Name)
	}
}
