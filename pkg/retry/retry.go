package retry

import (
	"math/rand/v2"
	"time"

	"github.com/jpillora/backoff"
)

// Decision is the outcome of a retry consultation.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// Policy decides whether a failed attempt should run again and after how
// long. The zero value is not usable; construct with NewPolicy.
type Policy struct {
	maxAttempts    int
	baseDelay      time.Duration
	maxDelay       time.Duration
	rateLimitFloor time.Duration
	jitter         float64
}

// Option is a functional option for configuring a policy.
type Option func(*Policy)

// WithMaxAttempts sets the total attempt cap, including the first attempt.
func WithMaxAttempts(n int) Option {
	return func(p *Policy) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithBaseDelay sets the delay after the first failed attempt.
func WithBaseDelay(d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.baseDelay = d
		}
	}
}

// WithMaxDelay caps the computed backoff delay.
func WithMaxDelay(d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.maxDelay = d
		}
	}
}

// WithRateLimitFloor sets the minimum delay applied to rate-limited
// failures, regardless of how early the attempt is.
func WithRateLimitFloor(d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.rateLimitFloor = d
		}
	}
}

// WithJitter sets the jitter fraction in [0, 1]. A uniform random share of
// the computed delay, up to this fraction, is added on top. Zero disables
// jitter, which tests rely on for determinism.
func WithJitter(f float64) Option {
	return func(p *Policy) {
		if f >= 0 && f <= 1 {
			p.jitter = f
		}
	}
}

// NewPolicy creates a retry policy with sane download defaults: three
// attempts, 2s base delay doubling per attempt, 5m cap, 30s rate-limit
// floor, 20% jitter.
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		maxAttempts:    3,
		baseDelay:      2 * time.Second,
		maxDelay:       5 * time.Minute,
		rateLimitFloor: 30 * time.Second,
		jitter:         0.2,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// MaxAttempts returns the configured attempt cap.
func (p *Policy) MaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry consults the policy after a failed attempt. attempt is the
// number of attempts already made (1 after the first failure). The returned
// delay is exponential in the attempt number with jitter applied.
func (p *Policy) ShouldRetry(attempt int, class Class) Decision {
	if !class.Retryable() {
		return Decision{}
	}

	if attempt >= p.maxAttempts {
		return Decision{}
	}

	delay := p.delayFor(attempt)
	if class == ClassRateLimited && delay < p.rateLimitFloor {
		delay = p.rateLimitFloor
	}

	if p.jitter > 0 {
		delay += time.Duration(rand.Float64() * p.jitter * float64(delay))
	}

	return Decision{Retry: true, Delay: delay}
}

// delayFor computes the pre-jitter backoff for the nth failed attempt:
// base doubled per attempt, capped at the configured maximum.
func (p *Policy) delayFor(attempt int) time.Duration {
	b := backoff.Backoff{
		Min:    p.baseDelay,
		Max:    p.maxDelay,
		Factor: 2,
	}

	if attempt < 1 {
		attempt = 1
	}

	return b.ForAttempt(float64(attempt - 1))
}
