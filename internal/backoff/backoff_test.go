package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kumasuke/s3ready/internal/endpoint"
)

var errTransient = errors.New("transient")
var errFatal = errors.New("fatal")

func testClassify(err error) endpoint.Kind {
	if errors.Is(err, errTransient) {
		return endpoint.KindThrottling
	}
	return endpoint.KindAccessDenied
}

func fastPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Classify:    testClassify,
	}
}

func TestExecuteSucceedsFirstAttempt(t *testing.T) {
	attempts, err := fastPolicy(3).Execute(context.Background(), func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestExecuteRetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	attempts, err := fastPolicy(3).Execute(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestExecuteNeverExceedsMaxAttempts(t *testing.T) {
	calls := 0
	attempts, err := fastPolicy(3).Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return errTransient
	})
	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestExecutePropagatesNonRetryableImmediately(t *testing.T) {
	calls := 0
	attempts, err := fastPolicy(5).Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return errFatal
	})
	require.ErrorIs(t, err, errFatal)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestExecuteStopsWhenContextExpires(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	p := Policy{
		MaxAttempts: 10,
		BaseDelay:   time.Second,
		Classify:    testClassify,
	}
	attempts, err := p.Execute(ctx, func(ctx context.Context) error {
		return errTransient
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, attempts)
}

func TestDefaultClassifierIsEndpointClassify(t *testing.T) {
	p := Policy{MaxAttempts: 2, BaseDelay: time.Millisecond}
	attempts, err := p.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("opaque")
	})
	// An unclassifiable error is not retryable.
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}
