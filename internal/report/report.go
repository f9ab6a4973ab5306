// Package report renders a finished run as a machine-readable JSON document
// and a console summary.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/kumasuke/s3ready/internal/results"
	"github.com/kumasuke/s3ready/internal/scoring"
)

// Report is the machine-readable run report.
type Report struct {
	RunID          string          `json:"run_id"`
	Timestamp      time.Time       `json:"timestamp"`
	Endpoint       string          `json:"endpoint"`
	Results        []ResultEntry   `json:"results"`
	CategoryScores []CategoryEntry `json:"category_scores"`
	Overall        OverallEntry    `json:"overall"`
}

// ResultEntry is one test outcome in the report, sorted by id.
type ResultEntry struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	Tier       string `json:"tier"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	RetryCount int    `json:"retry_count"`
	ErrorKind  string `json:"error_kind,omitempty"`
	Error      string `json:"error,omitempty"`
	SkipReason string `json:"skip_reason,omitempty"`
	Leaked     bool   `json:"leaked,omitempty"`
}

// CategoryEntry is one category score in the report.
type CategoryEntry struct {
	Name          string  `json:"name"`
	Weight        float64 `json:"weight"`
	PassRatio     float64 `json:"pass_ratio"`
	RequiredRatio float64 `json:"required_ratio"`
	Met           bool    `json:"met"`
	Passed        int     `json:"passed"`
	Failed        int     `json:"failed"`
	Errored       int     `json:"errored"`
	Skipped       int     `json:"skipped"`
	Critical      bool    `json:"critical"`
}

// OverallEntry is the verdict section of the report.
type OverallEntry struct {
	Score           float64 `json:"score"`
	ProductionReady bool    `json:"production_ready"`
	Complete        bool    `json:"complete"`
}

// Build assembles a report from sorted results and the verdict.
func Build(runID, endpoint string, sorted []results.TestResult, verdict scoring.Verdict) *Report {
	r := &Report{
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Endpoint:  endpoint,
	}
	for _, res := range sorted {
		r.Results = append(r.Results, ResultEntry{
			ID:         res.ID,
			Name:       res.Name,
			Category:   string(res.Category),
			Tier:       string(res.Tier),
			Status:     string(res.Status),
			DurationMS: res.Duration.Milliseconds(),
			RetryCount: res.Retries,
			ErrorKind:  string(res.ErrorKind),
			Error:      res.ErrorMessage,
			SkipReason: res.SkipReason,
			Leaked:     res.Leaked,
		})
	}
	for _, cs := range verdict.Categories {
		r.CategoryScores = append(r.CategoryScores, CategoryEntry{
			Name:          string(cs.Name),
			Weight:        cs.Weight,
			PassRatio:     cs.PassRatio,
			RequiredRatio: cs.RequiredRatio,
			Met:           cs.Met,
			Passed:        cs.Passed,
			Failed:        cs.Failed,
			Errored:       cs.Errored,
			Skipped:       cs.Skipped,
			Critical:      cs.Critical,
		})
	}
	r.Overall = OverallEntry{
		Score:           verdict.Overall,
		ProductionReady: verdict.ProductionReady,
		Complete:        verdict.Complete,
	}
	return r
}

// WriteFile persists the report as JSON under dir, creating it if needed.
// It returns the path of the written file.
func (r *Report) WriteFile(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	path := filepath.Join(dir, "report.json")

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// PrintSummary writes the category table and the final verdict line.
func (r *Report) PrintSummary(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Validation Run %s", r.RunID)
	t.AppendHeader(table.Row{"Category", "Passed", "Failed", "Errored", "Skipped", "Pass Rate", "Required", "Met"})
	for _, cs := range r.CategoryScores {
		met := text.FgGreen.Sprint("yes")
		if !cs.Met {
			met = text.FgRed.Sprint("NO")
		}
		name := cs.Name
		if cs.Critical {
			name += " *"
		}
		t.AppendRow(table.Row{
			name, cs.Passed, cs.Failed, cs.Errored, cs.Skipped,
			fmt.Sprintf("%.1f%%", cs.PassRatio*100),
			fmt.Sprintf("%.1f%%", cs.RequiredRatio*100),
			met,
		})
	}
	t.AppendFooter(table.Row{"overall", "", "", "", "", fmt.Sprintf("%.1f%%", r.Overall.Score*100), "", ""})
	t.Render()

	if !r.Overall.Complete {
		fmt.Fprintln(w, "Run incomplete: not every selected test reached a terminal state.")
	}
	if r.Overall.ProductionReady {
		fmt.Fprintln(w, text.FgGreen.Sprint("PRODUCTION READY"))
	} else {
		fmt.Fprintln(w, text.FgRed.Sprint("NOT PRODUCTION READY"))
	}
}
