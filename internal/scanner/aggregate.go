package scanner

import (
	"sort"

	"DivergenceScanner/internal/model"
)

// DefaultTopN is the ranking length when none is configured.
const DefaultTopN = 3

// TopN drops failures, ranks by weighted grade descending and keeps the
// first n. Ties keep their input order. The input is not modified.
func TopN(results []model.AnalysisResult, n int) []model.AnalysisResult {
	valid := make([]model.AnalysisResult, 0, len(results))
	for _, r := range results {
		if !r.Failed() {
			valid = append(valid, r)
		}
	}
	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].WeightedGrade > valid[j].WeightedGrade
	})
	if n >= 0 && len(valid) > n {
		valid = valid[:n]
	}
	return valid
}

// Failures returns the failed results.
func Failures(results []model.AnalysisResult) []model.AnalysisResult {
	var out []model.AnalysisResult
	for _, r := range results {
		if r.Failed() {
			out = append(out, r)
		}
	}
	return out
}
