package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrorClassification tells the executor whether a failed attempt may be
// repeated and whether it counts against the dependency's breaker.
type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

var (
	// Transient failures (connection loss, 5xx, 429) are retried and counted.
	Transient = ErrorClassification{Retryable: true, RecordFailure: true}
	// Fatal failures are counted but never repeated.
	Fatal = ErrorClassification{RecordFailure: true}
	// Benign failures are caller faults (4xx, cancellation) and leave the
	// breaker untouched.
	Benign = ErrorClassification{}
)

type ErrorClassifier func(err error) ErrorClassification

// Executor runs outbound calls under the retry policy and one circuit breaker
// per dependency. Calls are named "<dependency>.<call>", so "qdrant.search"
// and "qdrant.scroll" trip the same breaker. A nil *Executor runs each call
// exactly once.
type Executor struct {
	cfg    Config
	jitter func(time.Duration) time.Duration

	breakers sync.Map // dependency -> *gobreaker.CircuitBreaker[struct{}]
}

func NewExecutor(cfg Config) *Executor {
	return &Executor{cfg: cfg.withDefaults(), jitter: fullJitter}
}

func fullJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return rand.N(d + 1)
}

// uncounted carries a failure through the breaker without tripping it.
type uncounted struct{ err error }

func (u uncounted) Error() string { return u.err.Error() }
func (u uncounted) Unwrap() error { return u.err }

func (e *Executor) Execute(ctx context.Context, name string, fn func(context.Context) error, classify ErrorClassifier) error {
	if fn == nil {
		return fmt.Errorf("resilience: nil call %q", name)
	}
	if e == nil {
		return fn(ctx)
	}
	if classify == nil {
		classify = func(error) ErrorClassification { return Fatal }
	}
	dependency, call := splitName(name)
	log := slog.With("dependency", dependency, "call", call)

	if !e.cfg.Breaker.Enabled {
		return e.attempt(ctx, log, fn, classify)
	}

	_, err := e.breaker(dependency).Execute(func() (struct{}, error) {
		err := e.attempt(ctx, log, fn, classify)
		if err != nil && !classify(err).RecordFailure {
			return struct{}{}, uncounted{err}
		}
		return struct{}{}, err
	})
	var u uncounted
	if errors.As(err, &u) {
		return u.err
	}
	return err
}

func (e *Executor) attempt(ctx context.Context, log *slog.Logger, fn func(context.Context) error, classify ErrorClassifier) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := fn(ctx)
	n := 1
	for wait := range e.cfg.Retry.waits() {
		if err == nil || !classify(err).Retryable {
			return err
		}
		if e.cfg.Retry.FullJitter {
			wait = e.jitter(wait)
		}
		log.Warn("remote_call_retry",
			"attempt", n,
			"of", e.cfg.Retry.MaxAttempts,
			"wait_ms", wait.Milliseconds(),
			"error", err,
		)
		if !pause(ctx, wait) {
			return err
		}
		n++
		err = fn(ctx)
	}
	return err
}

// pause reports false when ctx ends first.
func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (e *Executor) breaker(dependency string) *gobreaker.CircuitBreaker[struct{}] {
	if cb, ok := e.breakers.Load(dependency); ok {
		return cb.(*gobreaker.CircuitBreaker[struct{}])
	}
	p := e.cfg.Breaker
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        dependency,
		MaxRequests: p.HalfOpenCalls,
		Timeout:     p.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= p.MinRequests &&
				float64(c.TotalFailures)/float64(c.Requests) >= p.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			var u uncounted
			return err == nil || errors.As(err, &u)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("breaker_state", "dependency", name, "from", from.String(), "to", to.String())
		},
	})
	actual, _ := e.breakers.LoadOrStore(dependency, cb)
	return actual.(*gobreaker.CircuitBreaker[struct{}])
}

func splitName(name string) (dependency, call string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown", "unknown"
	}
	dependency, call, found := strings.Cut(name, ".")
	if !found {
		return name, name
	}
	return dependency, call
}

// IsCircuitOpen reports whether err was returned by a breaker refusing calls.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
