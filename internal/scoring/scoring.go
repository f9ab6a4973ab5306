// Package scoring turns aggregated test results into the production
// readiness verdict.
package scoring

import (
	"github.com/kumasuke/s3ready/internal/catalog"
	"github.com/kumasuke/s3ready/internal/config"
	"github.com/kumasuke/s3ready/internal/results"
)

// CategoryScore is the scored outcome of one category.
type CategoryScore struct {
	Name          catalog.Category
	Weight        float64
	RequiredRatio float64
	PassRatio     float64
	Passed        int
	Failed        int
	Errored       int
	Skipped       int
	Met           bool
	Critical      bool
}

// Verdict is the final decision for a run.
type Verdict struct {
	Overall         float64
	Categories      []CategoryScore
	ProductionReady bool
	// Complete is false when the run was cancelled before every selected
	// test reached a terminal state.
	Complete bool
}

// Score computes the verdict from recorded results and the category policy.
//
// Per category, the pass ratio is passed / (passed + failed + errored);
// skipped tests are excluded from the denominator but surfaced in the count.
// The overall score is the weighted mean of category ratios. The verdict is
// production-ready only when every critical category is met, no critical-tier
// test failed or errored, and the overall score reaches the global threshold.
func Score(resultSet map[int]results.TestResult, policy config.ScoringConfig, complete bool) Verdict {
	byCategory := make(map[catalog.Category]*CategoryScore)
	criticalTestFailed := false

	for _, r := range resultSet {
		cs, ok := byCategory[r.Category]
		if !ok {
			p := policyFor(policy, r.Category)
			cs = &CategoryScore{
				Name:          r.Category,
				Weight:        p.Weight,
				RequiredRatio: p.RequiredRatio,
				Critical:      p.Critical,
			}
			byCategory[r.Category] = cs
		}

		switch r.Status {
		case results.StatusPassed:
			cs.Passed++
		case results.StatusFailed:
			cs.Failed++
		case results.StatusErrored:
			cs.Errored++
		case results.StatusSkipped:
			cs.Skipped++
		}
		if r.Tier == catalog.TierCritical &&
			(r.Status == results.StatusFailed || r.Status == results.StatusErrored) {
			criticalTestFailed = true
		}
	}

	var weightedSum, weightTotal float64
	allCriticalMet := true
	var scores []CategoryScore

	for _, cat := range catalog.Categories {
		cs, ok := byCategory[cat]
		if !ok {
			continue
		}
		denom := cs.Passed + cs.Failed + cs.Errored
		if denom > 0 {
			cs.PassRatio = float64(cs.Passed) / float64(denom)
			cs.Met = cs.PassRatio >= cs.RequiredRatio
			weightedSum += cs.Weight * cs.PassRatio
			weightTotal += cs.Weight
		} else {
			// Every test in the category was skipped: no evidence either
			// way, so the category does not gate the verdict.
			cs.Met = true
		}
		if cs.Critical && !cs.Met {
			allCriticalMet = false
		}
		scores = append(scores, *cs)
	}

	overall := 0.0
	if weightTotal > 0 {
		overall = weightedSum / weightTotal
	}

	return Verdict{
		Overall:    overall,
		Categories: scores,
		Complete:   complete,
		ProductionReady: allCriticalMet &&
			!criticalTestFailed &&
			overall >= policy.GlobalThreshold,
	}
}

func policyFor(policy config.ScoringConfig, cat catalog.Category) config.CategoryPolicy {
	if p, ok := policy.Categories[string(cat)]; ok {
		return p
	}
	// Unknown categories default to the strictest reading.
	return config.CategoryPolicy{Weight: 1.0, RequiredRatio: 1.0}
}
