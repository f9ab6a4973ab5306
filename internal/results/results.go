// Package results records one terminal outcome per selected test and keeps
// an incremental on-disk journal so a crashed or cancelled run still has
// its partial table.
package results

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kumasuke/s3ready/internal/catalog"
	"github.com/kumasuke/s3ready/internal/endpoint"
)

// Status is the terminal state of one test invocation.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusErrored Status = "errored"
	StatusSkipped Status = "skipped"
)

// Skip reasons surfaced in reports.
const (
	SkipReasonCapability = "capability unsupported"
	SkipReasonCancelled  = "cancelled"
)

// TestResult is the single terminal outcome of one selected test.
type TestResult struct {
	ID       int
	Name     string
	Category catalog.Category
	Tier     catalog.Tier
	Status   Status
	Duration time.Duration
	// Retries is the number of retried attempts, i.e. attempts made minus one.
	Retries      int
	ErrorKind    endpoint.Kind
	ErrorMessage string
	SkipReason   string
	Leaked       bool
}

// Aggregator collects results as workers finish, in any order. Recording a
// second result for the same test id is a framework bug and is reported as
// an error so the run aborts instead of producing a misleading score.
type Aggregator struct {
	runID   string
	journal *Journal

	mu      sync.Mutex
	results map[int]TestResult
}

// NewAggregator creates an aggregator. journal may be nil.
func NewAggregator(runID string, journal *Journal) *Aggregator {
	return &Aggregator{
		runID:   runID,
		journal: journal,
		results: make(map[int]TestResult),
	}
}

// Record stores one terminal result, exactly once per test id.
func (a *Aggregator) Record(r TestResult) error {
	a.mu.Lock()
	if _, exists := a.results[r.ID]; exists {
		a.mu.Unlock()
		return fmt.Errorf("internal: duplicate result for test %d", r.ID)
	}
	a.results[r.ID] = r
	a.mu.Unlock()

	if a.journal != nil {
		if err := a.journal.Insert(a.runID, r); err != nil {
			log.Warn().Err(err).Int("test", r.ID).Msg("Failed to journal result")
		}
	}
	return nil
}

// Snapshot returns a copy of everything recorded so far. It is safe to call
// at any point, including after cancellation.
func (a *Aggregator) Snapshot() map[int]TestResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[int]TestResult, len(a.results))
	for id, r := range a.results {
		out[id] = r
	}
	return out
}

// Sorted returns all recorded results in ascending id order.
func (a *Aggregator) Sorted() []TestResult {
	snap := a.Snapshot()
	out := make([]TestResult, 0, len(snap))
	for _, r := range snap {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of recorded results.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.results)
}
