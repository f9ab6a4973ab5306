package results

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kumasuke/s3ready/internal/catalog"
	"github.com/kumasuke/s3ready/internal/endpoint"
)

func TestRecordAndSnapshot(t *testing.T) {
	agg := NewAggregator("run-1", nil)

	require.NoError(t, agg.Record(TestResult{ID: 4, Status: StatusPassed}))
	require.NoError(t, agg.Record(TestResult{ID: 1, Status: StatusFailed}))

	snap := agg.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, StatusPassed, snap[4].Status)
	assert.Equal(t, StatusFailed, snap[1].Status)

	// The snapshot is a copy, not a view.
	snap[4] = TestResult{ID: 4, Status: StatusErrored}
	assert.Equal(t, StatusPassed, agg.Snapshot()[4].Status)
}

func TestRecordRejectsDuplicate(t *testing.T) {
	agg := NewAggregator("run-1", nil)

	require.NoError(t, agg.Record(TestResult{ID: 7, Status: StatusPassed}))
	err := agg.Record(TestResult{ID: 7, Status: StatusFailed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate result for test 7")

	// The first result survives.
	assert.Equal(t, StatusPassed, agg.Snapshot()[7].Status)
}

func TestSortedOrdersByID(t *testing.T) {
	agg := NewAggregator("run-1", nil)
	for _, id := range []int{600, 1, 100, 4} {
		require.NoError(t, agg.Record(TestResult{ID: id, Status: StatusPassed}))
	}

	sorted := agg.Sorted()
	var ids []int
	for _, r := range sorted {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []int{1, 4, 100, 600}, ids)
}

func TestJournalRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	journal, err := OpenJournal(path)
	require.NoError(t, err)
	defer journal.Close()

	recorded := []TestResult{
		{
			ID: 1, Name: "bucket-create-delete", Category: catalog.CategoryBasic,
			Tier: catalog.TierCritical, Status: StatusPassed,
			Duration: 1200 * time.Millisecond,
		},
		{
			ID: 100, Name: "multipart-upload-complete", Category: catalog.CategoryMultipart,
			Tier: catalog.TierCritical, Status: StatusFailed, Retries: 2,
			ErrorKind: endpoint.KindThrottling, ErrorMessage: "SlowDown",
			Duration: 3 * time.Second, Leaked: true,
		},
	}
	for _, r := range recorded {
		require.NoError(t, journal.Insert("run-1", r))
	}
	require.NoError(t, journal.Insert("run-2", TestResult{ID: 1, Status: StatusSkipped, SkipReason: SkipReasonCancelled}))

	loaded, err := journal.Load("run-1")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, recorded[0], loaded[0])
	assert.Equal(t, recorded[1], loaded[1])
}

func TestAggregatorJournalsIncrementally(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	journal, err := OpenJournal(path)
	require.NoError(t, err)
	defer journal.Close()

	agg := NewAggregator("run-x", journal)
	require.NoError(t, agg.Record(TestResult{ID: 2, Name: "t", Category: catalog.CategoryBasic, Tier: catalog.TierHigh, Status: StatusPassed}))

	// The row is on disk before the run finishes.
	loaded, err := journal.Load("run-x")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, 2, loaded[0].ID)
}
