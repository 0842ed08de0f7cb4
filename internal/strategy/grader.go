package strategy

import (
	"github.com/shopspring/decimal"

	"DivergenceScanner/internal/model"
)

// Grade bounds.
const (
	BaseGrade = 1.0
	MaxGrade  = 5.0
)

// Grade scores a divergence matrix: BaseGrade plus the timeframe weight for
// every raised flag, capped at MaxGrade and rounded to 2 decimals.
func Grade(m model.DivergenceMatrix) float64 {
	grade := decimal.NewFromFloat(BaseGrade)
	for _, tf := range model.Timeframes {
		n := m[tf.Timeframe].Count()
		if n == 0 {
			continue
		}
		w := decimal.NewFromFloat(tf.Weight)
		grade = grade.Add(w.Mul(decimal.NewFromInt(int64(n))))
	}
	if grade.GreaterThan(decimal.NewFromFloat(MaxGrade)) {
		grade = decimal.NewFromFloat(MaxGrade)
	}
	return grade.Round(2).InexactFloat64()
}

// ClassifyDirection derives the trade direction from the latest closes.
// Closes falling from weekly to minute_15 mean short, rising mean long;
// any tie or mixed ordering is neutral.
func ClassifyDirection(closes map[model.Timeframe]float64) model.TradeDirection {
	seq := make([]float64, 0, len(model.Timeframes))
	for _, tf := range model.Timeframes {
		v, ok := closes[tf.Timeframe]
		if !ok {
			return model.DirectionNeutral
		}
		seq = append(seq, v)
	}

	falling, rising := true, true
	for i := 1; i < len(seq); i++ {
		if !(seq[i-1] > seq[i]) {
			falling = false
		}
		if !(seq[i-1] < seq[i]) {
			rising = false
		}
	}
	switch {
	case falling:
		return model.DirectionShort
	case rising:
		return model.DirectionLong
	default:
		return model.DirectionNeutral
	}
}
