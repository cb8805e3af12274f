package scheduler

import (
	"context"
	"strconv"
	"strings"
	"time"

	"talon/internal/logger"
)

// highLatencyWarn is the wake latency beyond which a warning is logged.
// The tick still runs; late is better than skipped.
const highLatencyWarn = 2 * time.Second

// WakeResult reports one completed wait on a candle boundary.
type WakeResult struct {
	Boundary time.Time     // the candle close the engine woke for
	WakeAt   time.Time     // actual wake time
	Latency  time.Duration // WakeAt - Boundary (negative when woken inside the buffer)
}

// CandleTimer aligns ticks to exchange candle boundaries.
type CandleTimer struct {
	Period time.Duration
	Buffer time.Duration // wake this long before the boundary

	sync  *TimeSync // optional drift correction
	nowFn func() time.Time
}

func NewCandleTimer(period, buffer time.Duration, sync *TimeSync) *CandleTimer {
	if buffer < 0 {
		buffer = 0
	}
	return &CandleTimer{
		Period: period,
		Buffer: buffer,
		sync:   sync,
		nowFn:  time.Now,
	}
}

// Now returns the drift-corrected current time.
func (t *CandleTimer) Now(ctx context.Context) time.Time {
	now := t.nowFn().UTC()
	if t.sync == nil {
		return now
	}
	return t.sync.Adjusted(ctx, now)
}

// NextBoundary rounds now up to the next candle close. A boundary closer than
// the execution buffer belongs to the execution window that just ran, so the
// following boundary is returned instead.
func (t *CandleTimer) NextBoundary(now time.Time) time.Time {
	boundary := now.Truncate(t.Period).Add(t.Period)
	if boundary.Sub(now) <= t.Buffer {
		boundary = boundary.Add(t.Period)
	}
	return boundary
}

// WaitNext blocks until just before the next candle boundary, then returns a
// latency measurement. Returns ctx.Err() when cancelled mid-wait.
func (t *CandleTimer) WaitNext(ctx context.Context) (WakeResult, error) {
	now := t.Now(ctx)
	boundary := t.NextBoundary(now)
	wakeTarget := boundary.Add(-t.Buffer)

	if wait := wakeTarget.Sub(now); wait > 0 {
		logger.Debugf("CandleTimer: next close=%s, sleeping %s",
			boundary.Format(time.RFC3339), wait.Truncate(time.Millisecond))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return WakeResult{}, ctx.Err()
		case <-timer.C:
		}
	}

	wakeAt := t.Now(ctx)
	res := WakeResult{
		Boundary: boundary,
		WakeAt:   wakeAt,
		Latency:  wakeAt.Sub(boundary),
	}
	if res.Latency > highLatencyWarn || res.Latency < -highLatencyWarn {
		logger.Warnf("CandleTimer: high wake latency %s (close=%s wake=%s)",
			res.Latency.Truncate(time.Millisecond),
			boundary.Format("15:04:05"), wakeAt.Format("15:04:05"))
	}
	return res, nil
}

// ParseTimeframe parses "15m", "1h", "4h", "1d", "1w" into a duration.
func ParseTimeframe(tf string) (time.Duration, bool) {
	tf = strings.ToLower(strings.TrimSpace(tf))
	if tf == "" {
		return 0, false
	}
	unit := tf[len(tf)-1]
	numStr := strings.TrimSpace(tf[:len(tf)-1])
	if numStr == "" {
		return 0, false
	}
	n, err := strconv.Atoi(numStr)
	if err != nil || n <= 0 {
		return 0, false
	}
	switch unit {
	case 'm':
		return time.Duration(n) * time.Minute, true
	case 'h':
		return time.Duration(n) * time.Hour, true
	case 'd':
		return time.Duration(n) * 24 * time.Hour, true
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, true
	default:
		return 0, false
	}
}
