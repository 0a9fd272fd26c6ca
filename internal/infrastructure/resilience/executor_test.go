package resilience

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

var errFlaky = errors.New("qdrant unavailable")

func quickRetry(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2,
	}
}

func classifyFlaky(err error) ErrorClassification {
	if errors.Is(err, errFlaky) {
		return Transient
	}
	return Benign
}

func TestExecuteRecoversAfterTransientFailures(t *testing.T) {
	exec := NewExecutor(Config{Retry: quickRetry(3)})

	calls := 0
	err := exec.Execute(context.Background(), "qdrant.search", func(context.Context) error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	}, classifyFlaky)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestExecuteStopsOnBenignFailure(t *testing.T) {
	exec := NewExecutor(Config{Retry: quickRetry(3)})

	errBadRequest := errors.New("400 bad vector size")
	calls := 0
	err := exec.Execute(context.Background(), "embedding.embed", func(context.Context) error {
		calls++
		return errBadRequest
	}, classifyFlaky)
	if !errors.Is(err, errBadRequest) || calls != 1 {
		t.Fatalf("expected one call returning the caller fault, got %d calls, err %v", calls, err)
	}
}

func TestBreakerIsSharedAcrossCallsOfOneDependency(t *testing.T) {
	exec := NewExecutor(Config{
		Retry: quickRetry(1),
		Breaker: BreakerPolicy{
			Enabled:       true,
			MinRequests:   2,
			FailureRatio:  0.5,
			OpenTimeout:   time.Minute,
			HalfOpenCalls: 1,
		},
	})
	failing := func(context.Context) error { return errFlaky }

	for _, name := range []string{"qdrant.search", "qdrant.scroll"} {
		if err := exec.Execute(context.Background(), name, failing, classifyFlaky); !errors.Is(err, errFlaky) {
			t.Fatalf("%s: expected upstream error, got %v", name, err)
		}
	}

	err := exec.Execute(context.Background(), "qdrant.collection_info", func(context.Context) error {
		t.Fatalf("open breaker must not let the call through")
		return nil
	}, classifyFlaky)
	if !errors.Is(err, gobreaker.ErrOpenState) || !IsCircuitOpen(err) {
		t.Fatalf("expected open breaker, got %v", err)
	}

	if err := exec.Execute(context.Background(), "nats.publish", func(context.Context) error { return nil }, classifyFlaky); err != nil {
		t.Fatalf("other dependency must be unaffected, got %v", err)
	}
}

func TestBenignFailuresDoNotTripBreaker(t *testing.T) {
	exec := NewExecutor(Config{
		Retry:   quickRetry(1),
		Breaker: BreakerPolicy{Enabled: true, MinRequests: 1, FailureRatio: 0.1, OpenTimeout: time.Minute},
	})
	errNotFound := errors.New("404 collection")

	for range 5 {
		err := exec.Execute(context.Background(), "qdrant.collection_info", func(context.Context) error {
			return errNotFound
		}, classifyFlaky)
		if !errors.Is(err, errNotFound) {
			t.Fatalf("expected caller fault to pass through unchanged, got %v", err)
		}
	}
}

func TestRetryWaitsAreJitteredWithinCap(t *testing.T) {
	exec := NewExecutor(Config{Retry: RetryPolicy{
		MaxAttempts:    4,
		InitialBackoff: 2 * time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
		FullJitter:     true,
	}})
	var waits []time.Duration
	exec.jitter = func(d time.Duration) time.Duration {
		waits = append(waits, d)
		return 0
	}

	_ = exec.Execute(context.Background(), "embedding.embed", func(context.Context) error {
		return errFlaky
	}, classifyFlaky)

	want := []time.Duration{2 * time.Millisecond, 4 * time.Millisecond, 5 * time.Millisecond}
	if !slices.Equal(waits, want) {
		t.Fatalf("waits = %v, want %v", waits, want)
	}
}

func TestExecuteHonoursCancelledContext(t *testing.T) {
	exec := NewExecutor(Config{Retry: quickRetry(3)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := exec.Execute(ctx, "nats.publish", func(context.Context) error {
		t.Fatalf("call must not run after cancellation")
		return nil
	}, classifyFlaky)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNilExecutorCallsOnce(t *testing.T) {
	var exec *Executor
	calls := 0
	err := exec.Execute(context.Background(), "qdrant.search", func(context.Context) error {
		calls++
		return errFlaky
	}, classifyFlaky)
	if !errors.Is(err, errFlaky) || calls != 1 {
		t.Fatalf("expected a single call, got %d (%v)", calls, err)
	}
}

func TestFullJitterStaysInRange(t *testing.T) {
	for range 100 {
		if d := fullJitter(10 * time.Millisecond); d < 0 || d > 10*time.Millisecond {
			t.Fatalf("jitter out of range: %v", d)
		}
	}
	if fullJitter(0) != 0 {
		t.Fatalf("expected zero jitter for zero backoff")
	}
}

func TestDefaultConfigMatchesRemoteCallPolicy(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.InitialBackoff != time.Second || cfg.Retry.MaxBackoff != time.Minute || !cfg.Retry.FullJitter {
		t.Fatalf("unexpected retry defaults %+v", cfg.Retry)
	}
	if !cfg.Breaker.Enabled {
		t.Fatalf("expected breaker enabled by default")
	}
}

func TestWithDefaultsRaisesMaxBackoffToInitial(t *testing.T) {
	cfg := Config{Retry: RetryPolicy{InitialBackoff: 5 * time.Second, MaxBackoff: time.Second}}.withDefaults()
	if cfg.Retry.MaxBackoff != 5*time.Second || cfg.Retry.MaxAttempts != 3 {
		t.Fatalf("unexpected normalised policy %+v", cfg.Retry)
	}
}
