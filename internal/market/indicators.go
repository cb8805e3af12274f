package market

import (
	talib "github.com/markcheno/go-talib"
)

// IndicatorSnapshot is the numeric market context attached to each
// observation and handed to the strategy oracle alongside raw bars.
type IndicatorSnapshot struct {
	EMA20 float64 `json:"ema20"`
	ATR14 float64 `json:"atr14"`
	RSI14 float64 `json:"rsi14"`
}

const (
	emaPeriod = 20
	atrPeriod = 14
	rsiPeriod = 14
)

// Indicators computes the snapshot from a series. Returns false when the
// series is too short for the longest lookback.
func Indicators(s Series) (IndicatorSnapshot, bool) {
	candles := s.Candles()
	if len(candles) <= emaPeriod {
		return IndicatorSnapshot{}, false
	}
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}
	ema := talib.Ema(closes, emaPeriod)
	atr := talib.Atr(highs, lows, closes, atrPeriod)
	rsi := talib.Rsi(closes, rsiPeriod)
	last := len(candles) - 1
	return IndicatorSnapshot{
		EMA20: ema[last],
		ATR14: atr[last],
		RSI14: rsi[last],
	}, true
}
