package market

import "errors"

// Series is an ordered run of closed candles, most recent last.
//
// Rule specs address bars with relative indices: 0 is the most recent closed
// bar, -1 the one before it, and so on. Translation to absolute positions and
// range bounds live here so every consumer shares one indexing convention.
type Series struct {
	candles []Candle
}

var (
	ErrIndexOutOfRange = errors.New("bar index out of range")
	ErrEmptyRange      = errors.New("bar range is empty")
)

func NewSeries(candles []Candle) Series {
	return Series{candles: candles}
}

func (s Series) Len() int { return len(s.candles) }

func (s Series) Candles() []Candle { return s.candles }

// Latest returns the most recent closed bar.
func (s Series) Latest() (Candle, bool) {
	if len(s.candles) == 0 {
		return Candle{}, false
	}
	return s.candles[len(s.candles)-1], true
}

// At resolves a relative index (0 = latest, negative = older).
func (s Series) At(rel int) (Candle, error) {
	abs := len(s.candles) - 1 + rel
	if abs < 0 || abs >= len(s.candles) {
		return Candle{}, ErrIndexOutOfRange
	}
	return s.candles[abs], nil
}

// Slice resolves an inclusive relative range. Start and end may arrive in
// either order; the result is empty only when both fall outside the series.
func (s Series) Slice(startRel, endRel int) ([]Candle, error) {
	if len(s.candles) == 0 {
		return nil, ErrEmptyRange
	}
	a := len(s.candles) - 1 + startRel
	b := len(s.candles) - 1 + endRel
	if a > b {
		a, b = b, a
	}
	if b < 0 || a >= len(s.candles) {
		return nil, ErrEmptyRange
	}
	if a < 0 {
		a = 0
	}
	if b > len(s.candles)-1 {
		b = len(s.candles) - 1
	}
	return s.candles[a : b+1], nil
}

// Tail returns up to n most recent bars.
func (s Series) Tail(n int) []Candle {
	if n <= 0 || len(s.candles) == 0 {
		return nil
	}
	if n > len(s.candles) {
		n = len(s.candles)
	}
	return s.candles[len(s.candles)-n:]
}

// HighLow returns the extreme high and low over a candle slice.
func HighLow(candles []Candle) (high, low float64) {
	for i, c := range candles {
		if i == 0 {
			high, low = c.High, c.Low
			continue
		}
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}
	return high, low
}
