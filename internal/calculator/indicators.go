package calculator

import "DivergenceScanner/internal/model"

// ComputeIndicators derives the RSI and MACD-line series from bars.
func ComputeIndicators(bars []model.OHLCV) model.IndicatorSet {
	closes := model.Closes(bars)
	return model.IndicatorSet{
		RSI:  CalculateRSI(closes, RSIPeriod),
		MACD: CalculateMACD(closes, MACDFast, MACDSlow, MACDSignal).Line,
	}
}
