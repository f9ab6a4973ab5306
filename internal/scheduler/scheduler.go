// Package scheduler dispatches selected tests against the endpoint under a
// concurrency bound and records exactly one terminal result per test.
//
// Dispatch order is deterministic: catalog order, first-selected first into
// a free worker slot. Completion order is not guaranteed; the aggregator
// tolerates out-of-order terminal results.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/kumasuke/s3ready/internal/backoff"
	"github.com/kumasuke/s3ready/internal/catalog"
	"github.com/kumasuke/s3ready/internal/config"
	"github.com/kumasuke/s3ready/internal/endpoint"
	"github.com/kumasuke/s3ready/internal/isolation"
	"github.com/kumasuke/s3ready/internal/results"
)

// namespaceManager is the slice of the isolation manager the scheduler uses.
type namespaceManager interface {
	Acquire(testID int) (*isolation.Namespace, error)
	Release(ctx context.Context, ns *isolation.Namespace) bool
}

// Scheduler runs tests through the isolation manager and backoff policy.
type Scheduler struct {
	cfg        *config.RunConfig
	client     *s3.Client
	namespaces namespaceManager
	policy     backoff.Policy
	caps       endpoint.Capabilities
	agg        *results.Aggregator
}

// New wires a scheduler for one run.
func New(cfg *config.RunConfig, client *s3.Client, namespaces namespaceManager,
	policy backoff.Policy, caps endpoint.Capabilities, agg *results.Aggregator) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		client:     client,
		namespaces: namespaces,
		policy:     policy,
		caps:       caps,
		agg:        agg,
	}
}

// Run executes the selected tests and reports whether every selected test
// reached a terminal state before cancellation. A non-nil error means a
// framework invariant was violated and the verdict must not be trusted.
//
// Cancelling ctx stops new dispatch; in-flight invocations finish naturally
// or hit their own timeout, and never-dispatched tests are recorded as
// skipped.
func (s *Scheduler) Run(ctx context.Context, selected []catalog.TestCase) (complete bool, err error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var abortMu sync.Mutex
	var abortErr error
	abort := func(cause error) {
		abortMu.Lock()
		if abortErr == nil {
			abortErr = cause
			cancel()
		}
		abortMu.Unlock()
	}
	aborted := func() error {
		abortMu.Lock()
		defer abortMu.Unlock()
		return abortErr
	}

	slots := make(chan struct{}, s.cfg.Run.Concurrency)
	var exclusive sync.Mutex
	var wg sync.WaitGroup
	cancelSkips := 0

	for _, tc := range selected {
		if aborted() != nil {
			break
		}

		// Once the run is cancelled, every not-yet-dispatched test is a
		// cancellation skip, including ones that would otherwise be
		// capability skips.
		if runCtx.Err() != nil {
			cancelSkips++
			if recErr := s.agg.Record(results.TestResult{
				ID:         tc.ID,
				Name:       tc.Name,
				Category:   tc.Category,
				Tier:       tc.Tier,
				Status:     results.StatusSkipped,
				SkipReason: results.SkipReasonCancelled,
			}); recErr != nil {
				abort(recErr)
				break
			}
			continue
		}

		if !s.caps.Supports(tc.Requires...) {
			log.Info().Int("test", tc.ID).Str("name", tc.Name).Msg("Skipping test, capability unsupported")
			if recErr := s.agg.Record(results.TestResult{
				ID:         tc.ID,
				Name:       tc.Name,
				Category:   tc.Category,
				Tier:       tc.Tier,
				Status:     results.StatusSkipped,
				SkipReason: results.SkipReasonCapability,
			}); recErr != nil {
				abort(recErr)
				break
			}
			continue
		}

		// Block until a worker slot frees up or the run is cancelled.
		dispatched := false
		select {
		case slots <- struct{}{}:
			if runCtx.Err() == nil {
				dispatched = true
			} else {
				<-slots
			}
		case <-runCtx.Done():
		}
		if !dispatched {
			if aborted() != nil {
				break
			}
			cancelSkips++
			if recErr := s.agg.Record(results.TestResult{
				ID:         tc.ID,
				Name:       tc.Name,
				Category:   tc.Category,
				Tier:       tc.Tier,
				Status:     results.StatusSkipped,
				SkipReason: results.SkipReasonCancelled,
			}); recErr != nil {
				abort(recErr)
				break
			}
			continue
		}

		wg.Add(1)
		go func(tc catalog.TestCase) {
			defer wg.Done()
			defer func() { <-slots }()

			if tc.Exclusive {
				exclusive.Lock()
				defer exclusive.Unlock()
			}

			result, invErr := s.invoke(runCtx, tc)
			if invErr != nil {
				abort(invErr)
				return
			}
			if recErr := s.agg.Record(result); recErr != nil {
				abort(recErr)
			}
		}(tc)
	}

	wg.Wait()

	if cause := aborted(); cause != nil {
		return false, fmt.Errorf("run aborted: %w", cause)
	}
	return cancelSkips == 0, nil
}

// invoke runs a single test to a terminal result. The namespace is released
// on every exit path, including timeout and panic. A non-nil error means a
// framework invariant broke before the test could run and the caller must
// abort the whole run.
func (s *Scheduler) invoke(runCtx context.Context, tc catalog.TestCase) (results.TestResult, error) {
	start := time.Now()
	result := results.TestResult{
		ID:       tc.ID,
		Name:     tc.Name,
		Category: tc.Category,
		Tier:     tc.Tier,
	}

	ns, err := s.namespaces.Acquire(tc.ID)
	if err != nil {
		return result, fmt.Errorf("failed to acquire namespace for test %d: %w", tc.ID, err)
	}

	// Cancellation is cooperative: in-flight invocations keep running
	// until they finish or hit the per-test timeout, so the test context
	// carries the deadline but not the run's cancel signal.
	testCtx, cancelTest := context.WithTimeout(context.WithoutCancel(runCtx), s.cfg.Run.TestTimeout)
	defer cancelTest()

	defer func() {
		cleanupCtx, cancelCleanup := context.WithTimeout(context.WithoutCancel(runCtx), s.cfg.Run.TestTimeout)
		defer cancelCleanup()
		result.Leaked = s.namespaces.Release(cleanupCtx, ns)
		result.Duration = time.Since(start)
	}()

	log.Debug().Int("test", tc.ID).Str("name", tc.Name).Str("namespace", ns.Prefix).Msg("Running test")

	attempts, runErr := s.policy.Execute(testCtx, func(ctx context.Context) error {
		return runBody(ctx, tc, s.client, s.cfg, ns)
	})
	result.Retries = attempts - 1

	switch {
	case runErr == nil:
		result.Status = results.StatusPassed

	case isFailure(runErr):
		result.Status = results.StatusFailed
		result.ErrorMessage = runErr.Error()

	case testCtx.Err() == context.DeadlineExceeded:
		result.Status = results.StatusErrored
		result.ErrorKind = endpoint.KindTimeout
		result.ErrorMessage = fmt.Sprintf("test exceeded timeout of %s", s.cfg.Run.TestTimeout)

	default:
		kind := endpoint.Classify(runErr)
		result.ErrorKind = kind
		result.ErrorMessage = runErr.Error()
		if kind.Retryable() {
			// Transient the whole way through the retry budget.
			result.Status = results.StatusFailed
		} else {
			result.Status = results.StatusErrored
		}
	}

	log.Info().
		Int("test", tc.ID).
		Str("name", tc.Name).
		Str("status", string(result.Status)).
		Int("retries", result.Retries).
		Dur("duration", time.Since(start)).
		Msg("Test finished")
	return result, nil
}

// runBody invokes the test body, converting a panic into an error so one
// misbehaving test cannot take down the run.
func runBody(ctx context.Context, tc catalog.TestCase, client *s3.Client, cfg *config.RunConfig, ns *isolation.Namespace) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("test %d panicked: %v", tc.ID, r)
		}
	}()
	return tc.Run(ctx, client, cfg, ns)
}

func isFailure(err error) bool {
	var f *catalog.Failure
	return errors.As(err, &f)
}
