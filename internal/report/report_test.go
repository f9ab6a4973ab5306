package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kumasuke/s3ready/internal/catalog"
	"github.com/kumasuke/s3ready/internal/endpoint"
	"github.com/kumasuke/s3ready/internal/results"
	"github.com/kumasuke/s3ready/internal/scoring"
)

func sampleReport() *Report {
	sorted := []results.TestResult{
		{
			ID: 1, Name: "bucket-create-delete", Category: catalog.CategoryBasic,
			Tier: catalog.TierCritical, Status: results.StatusPassed,
			Duration: 1500 * time.Millisecond,
		},
		{
			ID: 2, Name: "object-put-get-delete", Category: catalog.CategoryBasic,
			Tier: catalog.TierCritical, Status: results.StatusFailed,
			Duration: 200 * time.Millisecond, Retries: 2,
			ErrorKind: endpoint.KindThrottling, ErrorMessage: "SlowDown",
		},
		{
			ID: 200, Name: "versioning-basic", Category: catalog.CategoryVersioning,
			Tier: catalog.TierHigh, Status: results.StatusSkipped,
			SkipReason: results.SkipReasonCapability,
		},
	}
	verdict := scoring.Verdict{
		Overall: 0.5,
		Categories: []scoring.CategoryScore{
			{
				Name: catalog.CategoryBasic, Weight: 1, PassRatio: 0.5,
				RequiredRatio: 1, Met: false, Critical: true,
				Passed: 1, Failed: 1,
			},
			{
				Name: catalog.CategoryVersioning, Weight: 1, PassRatio: 0,
				RequiredRatio: 0.8, Met: true, Skipped: 1,
			},
		},
		ProductionReady: false,
		Complete:        true,
	}
	return Build("run-1234", "http://localhost:9000", sorted, verdict)
}

func TestBuildPreservesResultOrderAndVerdict(t *testing.T) {
	r := sampleReport()

	assert.Equal(t, "run-1234", r.RunID)
	assert.Equal(t, "http://localhost:9000", r.Endpoint)
	require.Len(t, r.Results, 3)
	assert.Equal(t, []int{1, 2, 200}, []int{r.Results[0].ID, r.Results[1].ID, r.Results[2].ID})
	assert.Equal(t, int64(1500), r.Results[0].DurationMS)
	assert.Equal(t, 2, r.Results[1].RetryCount)
	assert.Equal(t, "throttling", r.Results[1].ErrorKind)
	assert.Equal(t, "capability unsupported", r.Results[2].SkipReason)

	require.Len(t, r.CategoryScores, 2)
	assert.Equal(t, "basic", r.CategoryScores[0].Name)
	assert.True(t, r.CategoryScores[0].Critical)
	assert.False(t, r.CategoryScores[0].Met)
	assert.True(t, r.CategoryScores[1].Met)

	assert.InDelta(t, 0.5, r.Overall.Score, 1e-9)
	assert.False(t, r.Overall.ProductionReady)
	assert.True(t, r.Overall.Complete)
}

func TestWriteFileRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "validation-run-1234")

	path, err := sampleReport().WriteFile(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run-1234", decoded.RunID)
	require.Len(t, decoded.Results, 3)
	assert.Equal(t, "passed", decoded.Results[0].Status)
	assert.Equal(t, "skipped", decoded.Results[2].Status)
	assert.False(t, decoded.Overall.ProductionReady)

	// Terminal results carry no skip reason and omit the field entirely.
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	first := raw["results"].([]any)[0].(map[string]any)
	_, hasSkip := first["skip_reason"]
	assert.False(t, hasSkip)
}

func TestPrintSummaryShowsVerdict(t *testing.T) {
	var buf bytes.Buffer
	sampleReport().PrintSummary(&buf)

	out := buf.String()
	assert.Contains(t, out, "run-1234")
	assert.Contains(t, out, "basic *")
	assert.Contains(t, out, "versioning")
	assert.Contains(t, out, "50.0%")
	assert.Contains(t, out, "NOT PRODUCTION READY")
	assert.NotContains(t, out, "Run incomplete")
}

func TestPrintSummaryFlagsIncompleteRun(t *testing.T) {
	r := sampleReport()
	r.Overall.Complete = false

	var buf bytes.Buffer
	r.PrintSummary(&buf)
	assert.Contains(t, buf.String(), "Run incomplete")
}
