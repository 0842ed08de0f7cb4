package strategy

import "DivergenceScanner/internal/model"

// Evaluate turns a timeframe snapshot and the company's market cap into the
// final analysis result.
func Evaluate(snap *model.Snapshot, marketCap float64) model.AnalysisResult {
	raw := Grade(snap.Divergences)
	tier := TierFor(marketCap)

	return model.AnalysisResult{
		Symbol:        snap.Symbol,
		RawGrade:      raw,
		WeightedGrade: raw * tier.Multiplier,
		Direction:     ClassifyDirection(snap.Closes),
		MarketCap:     marketCap,
		Tier:          tier,
		Divergences:   snap.Divergences,
	}
}
