package monitoring

import (
	"sync"
	"time"
)

// Heartbeat tracks tick liveness for the health endpoint. The scheduler loop
// records every tick outcome; consecutive failures are the signal a human
// pager cares about.
type Heartbeat struct {
	mu                sync.Mutex
	lastTick          time.Time
	lastBoundary      time.Time
	lastError         string
	consecutiveErrors int
}

func NewHeartbeat() *Heartbeat {
	return &Heartbeat{}
}

// RecordTick notes one completed tick. err nil resets the failure streak.
func (h *Heartbeat) RecordTick(boundary time.Time, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastTick = time.Now().UTC()
	h.lastBoundary = boundary
	if err != nil {
		h.consecutiveErrors++
		h.lastError = err.Error()
		return
	}
	h.consecutiveErrors = 0
	h.lastError = ""
}

// HeartbeatSnapshot is the health view.
type HeartbeatSnapshot struct {
	LastTick          time.Time `json:"last_tick"`
	LastBoundary      time.Time `json:"last_boundary"`
	LastError         string    `json:"last_error,omitempty"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
}

func (h *Heartbeat) Snapshot() HeartbeatSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HeartbeatSnapshot{
		LastTick:          h.lastTick,
		LastBoundary:      h.lastBoundary,
		LastError:         h.lastError,
		ConsecutiveErrors: h.consecutiveErrors,
	}
}
