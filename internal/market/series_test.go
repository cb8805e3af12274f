package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkCandles(closes ...float64) []Candle {
	out := make([]Candle, len(closes))
	for i, c := range closes {
		out[i] = Candle{
			OpenTime:  int64(i) * 60_000,
			CloseTime: int64(i+1)*60_000 - 1,
			Open:      c - 1,
			High:      c + 2,
			Low:       c - 2,
			Close:     c,
		}
	}
	return out
}

func TestAtRelativeIndexing(t *testing.T) {
	s := NewSeries(mkCandles(10, 20, 30))

	latest, err := s.At(0)
	require.NoError(t, err)
	assert.Equal(t, 30.0, latest.Close)

	older, err := s.At(-2)
	require.NoError(t, err)
	assert.Equal(t, 10.0, older.Close)

	_, err = s.At(-3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = s.At(1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestSliceInclusiveAndOrderAgnostic(t *testing.T) {
	s := NewSeries(mkCandles(10, 20, 30, 40))

	a, err := s.Slice(-2, 0)
	require.NoError(t, err)
	b, err := s.Slice(0, -2)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	require.Len(t, a, 3)
	assert.Equal(t, 20.0, a[0].Close)
	assert.Equal(t, 40.0, a[2].Close)
}

func TestSliceClampsPartialOverlap(t *testing.T) {
	s := NewSeries(mkCandles(10, 20, 30))

	// Start reaches before the series; only the overlapping part returns.
	out, err := s.Slice(-10, -1)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 10.0, out[0].Close)
}

func TestSliceFullyOutsideErrors(t *testing.T) {
	s := NewSeries(mkCandles(10, 20, 30))

	_, err := s.Slice(-10, -5)
	assert.ErrorIs(t, err, ErrEmptyRange)

	empty := NewSeries(nil)
	_, err = empty.Slice(0, 0)
	assert.ErrorIs(t, err, ErrEmptyRange)
}

func TestHighLow(t *testing.T) {
	high, low := HighLow(mkCandles(10, 50, 30))
	assert.Equal(t, 52.0, high)
	assert.Equal(t, 8.0, low)
}

func TestDropUnclosed(t *testing.T) {
	interval := time.Minute
	candles := mkCandles(10, 20, 30)

	// Now inside the last candle's interval: it is still forming.
	now := time.UnixMilli(candles[2].OpenTime + 30_000)
	closed := DropUnclosed(candles, interval, now)
	assert.Len(t, closed, 2)

	// Now past the close: everything kept.
	now = time.UnixMilli(candles[2].OpenTime + 61_000)
	closed = DropUnclosed(candles, interval, now)
	assert.Len(t, closed, 3)
}
