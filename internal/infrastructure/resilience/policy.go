package resilience

import (
	"iter"
	"time"
)

// RetryPolicy bounds how often a failed remote call is attempted again.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// FullJitter sleeps a uniform random duration in [0, backoff].
	FullJitter bool
}

// BreakerPolicy configures the circuit breaker kept per remote dependency
// (embedding provider, Qdrant, NATS).
type BreakerPolicy struct {
	Enabled       bool
	MinRequests   uint32
	FailureRatio  float64
	OpenTimeout   time.Duration
	HalfOpenCalls uint32
}

type Config struct {
	Retry   RetryPolicy
	Breaker BreakerPolicy
}

// DefaultConfig is the policy applied to every outbound call: three attempts
// with exponential backoff from 1s capped at 60s.
func DefaultConfig() Config {
	return Config{
		Retry: RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			MaxBackoff:     time.Minute,
			Multiplier:     2,
			FullJitter:     true,
		},
		Breaker: BreakerPolicy{
			Enabled:       true,
			MinRequests:   5,
			FailureRatio:  0.6,
			OpenTimeout:   30 * time.Second,
			HalfOpenCalls: 2,
		},
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	r, b := c.Retry, c.Breaker

	if r.MaxAttempts <= 0 {
		r.MaxAttempts = def.Retry.MaxAttempts
	}
	if r.InitialBackoff <= 0 {
		r.InitialBackoff = def.Retry.InitialBackoff
	}
	if r.MaxBackoff <= 0 {
		r.MaxBackoff = def.Retry.MaxBackoff
	}
	r.MaxBackoff = max(r.MaxBackoff, r.InitialBackoff)
	if r.Multiplier < 1 {
		r.Multiplier = def.Retry.Multiplier
	}

	if b.MinRequests == 0 {
		b.MinRequests = def.Breaker.MinRequests
	}
	if !(b.FailureRatio > 0 && b.FailureRatio <= 1) {
		b.FailureRatio = def.Breaker.FailureRatio
	}
	if b.OpenTimeout <= 0 {
		b.OpenTimeout = def.Breaker.OpenTimeout
	}
	if b.HalfOpenCalls == 0 {
		b.HalfOpenCalls = def.Breaker.HalfOpenCalls
	}

	return Config{Retry: r, Breaker: b}
}

// waits yields the capped pause before each retry, MaxAttempts-1 values.
func (p RetryPolicy) waits() iter.Seq[time.Duration] {
	return func(yield func(time.Duration) bool) {
		next := p.InitialBackoff
		for range p.MaxAttempts - 1 {
			if !yield(min(next, p.MaxBackoff)) {
				return
			}
			next = min(time.Duration(float64(next)*p.Multiplier), p.MaxBackoff)
		}
	}
}
