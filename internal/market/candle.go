package market

import "time"

// Candle is one closed OHLCV bar. Times are milliseconds since epoch.
type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

func (c Candle) ClosedAt() time.Time {
	return time.UnixMilli(c.CloseTime).UTC()
}

// Body returns the absolute open-close distance.
func (c Candle) Body() float64 {
	d := c.Close - c.Open
	if d < 0 {
		return -d
	}
	return d
}

func (c Candle) Bullish() bool { return c.Close > c.Open }
func (c Candle) Bearish() bool { return c.Close < c.Open }

// DropUnclosed drops the last candle if it is still in progress. Exchange
// kline endpoints include the current, not-yet-closed bar as the last element.
func DropUnclosed(candles []Candle, interval time.Duration, now time.Time) []Candle {
	if len(candles) == 0 || interval <= 0 {
		return candles
	}
	last := candles[len(candles)-1]
	if last.OpenTime <= 0 {
		return candles
	}
	closeMs := last.OpenTime + interval.Milliseconds()
	if now.UnixMilli() < closeMs {
		return candles[:len(candles)-1]
	}
	return candles
}
