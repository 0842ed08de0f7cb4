package strategy

import "DivergenceScanner/internal/model"

// Tiers maps market capitalisation to a grade multiplier, smallest first.
var Tiers = []struct {
	Below float64
	Tier  model.MarketCapTier
}{
	{2e9, model.MarketCapTier{Label: "small", Multiplier: 0.8}},
	{1e10, model.MarketCapTier{Label: "mid", Multiplier: 1.0}},
}

// LargeTier applies to everything at or above the last boundary.
var LargeTier = model.MarketCapTier{Label: "large", Multiplier: 1.2}

// TierFor returns the tier of marketCap. A missing (0) figure is small.
func TierFor(marketCap float64) model.MarketCapTier {
	for _, t := range Tiers {
		if marketCap < t.Below {
			return t.Tier
		}
	}
	return LargeTier
}

// TierMultiplier returns the grade multiplier for marketCap.
func TierMultiplier(marketCap float64) float64 {
	return TierFor(marketCap).Multiplier
}
