package scheduler

import (
	"context"
	"sync"
	"time"

	"talon/internal/logger"
)

// ServerClock is the slice of the exchange client the synchronizer needs.
type ServerClock interface {
	ServerTime(ctx context.Context) (time.Time, error)
}

// TimeSync tracks the local-minus-server clock offset. The offset is
// re-estimated at most once per interval; between syncs the stored offset is
// applied to local reads. One-way network latency is approximated by taking
// the request midpoint as the local reference.
type TimeSync struct {
	clock    ServerClock
	interval time.Duration

	mu        sync.Mutex
	offset    time.Duration // local - server
	lastSync  time.Time
	syncCount int

	nowFn func() time.Time
}

func NewTimeSync(clock ServerClock, interval time.Duration) *TimeSync {
	if interval <= 0 {
		interval = time.Hour
	}
	return &TimeSync{clock: clock, interval: interval, nowFn: time.Now}
}

// Adjusted converts a local timestamp to exchange time, resyncing first when
// the stored offset is stale. A failed sync keeps the previous offset; losing
// one correction cycle is not worth failing a tick over.
func (s *TimeSync) Adjusted(ctx context.Context, local time.Time) time.Time {
	s.mu.Lock()
	stale := s.syncCount == 0 || local.Sub(s.lastSync) >= s.interval
	s.mu.Unlock()
	if stale {
		if err := s.Sync(ctx); err != nil {
			logger.Warnf("TimeSync: sync failed, keeping offset %s: %v", s.Offset(), err)
		}
	}
	return local.Add(-s.Offset())
}

// Sync queries the server time once and updates the offset.
func (s *TimeSync) Sync(ctx context.Context) error {
	start := s.nowFn()
	serverTime, err := s.clock.ServerTime(ctx)
	if err != nil {
		return err
	}
	end := s.nowFn()

	latency := end.Sub(start)
	midpoint := start.Add(latency / 2)
	offset := midpoint.Sub(serverTime)

	s.mu.Lock()
	s.offset = offset
	s.lastSync = end
	s.syncCount++
	count := s.syncCount
	s.mu.Unlock()

	logger.Infof("TimeSync: synced with exchange (offset=%s latency=%s syncs=%d)",
		offset.Truncate(time.Millisecond), latency.Truncate(time.Millisecond), count)
	return nil
}

// Offset returns the current local-minus-server offset.
func (s *TimeSync) Offset() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}
