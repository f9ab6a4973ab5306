// Package backoff retries transient endpoint errors with bounded, jittered
// exponential delays. All retry behavior in the validator goes through one
// Policy so no call site grows its own retry loop.
package backoff

import (
	"context"
	"math/rand"
	"time"

	"github.com/kumasuke/s3ready/internal/config"
	"github.com/kumasuke/s3ready/internal/endpoint"
)

// Operation is one attemptable unit of work.
type Operation func(ctx context.Context) error

// Policy bounds how an operation is retried.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// Classify decides retryability; defaults to endpoint.Classify.
	Classify func(error) endpoint.Kind
}

// FromConfig builds a policy from the run configuration.
func FromConfig(cfg config.RetryConfig) Policy {
	return Policy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
	}
}

// Execute runs op until it succeeds, fails non-retryably, or the attempt
// budget is spent. It returns the number of attempts actually made, which
// never exceeds MaxAttempts, and the last error observed.
func (p Policy) Execute(ctx context.Context, op Operation) (attempts int, err error) {
	classify := p.Classify
	if classify == nil {
		classify = endpoint.Classify
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		attempts++
		err = op(ctx)
		if err == nil {
			return attempts, nil
		}
		if !classify(err).Retryable() {
			return attempts, err
		}
		if attempt == maxAttempts-1 {
			break
		}

		select {
		case <-time.After(p.delay(attempt)):
		case <-ctx.Done():
			return attempts, ctx.Err()
		}
	}
	return attempts, err
}

// delay computes base * 2^attempt plus uniform jitter, capped at MaxDelay.
func (p Policy) delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base << uint(attempt)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d + time.Duration(rand.Int63n(int64(d)))
}
