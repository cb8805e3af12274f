package safety

import (
	"fmt"
	"sync"

	"talon/internal/exchange"
	"talon/internal/logger"
	"talon/internal/oracle"
)

// DefaultMinConfidence is the floor each signal in a conviction run must
// clear.
const DefaultMinConfidence = 0.7

// Signal is one oracle output as seen by the conviction tracker.
type Signal struct {
	Action     oracle.Operation
	Confidence float64
	Rationale  string
}

// Tracker requires the oracle to repeat itself before the engine acts.
// A single confident signal is noise; M consecutive agreeing signals out of
// the last N are conviction.
type Tracker struct {
	mu             sync.Mutex
	historySize    int
	minConsecutive int
	minConfidence  float64
	signals        []Signal
}

func NewTracker(historySize, minConsecutive int, minConfidence float64) *Tracker {
	if historySize <= 0 {
		historySize = 3
	}
	if minConsecutive <= 0 {
		minConsecutive = 2
	}
	if minConsecutive > historySize {
		minConsecutive = historySize
	}
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	return &Tracker{historySize: historySize, minConsecutive: minConsecutive, minConfidence: minConfidence}
}

// Add appends a signal, evicting the oldest once the window is full.
func (t *Tracker) Add(s Signal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.signals = append(t.signals, s)
	if len(t.signals) > t.historySize {
		t.signals = t.signals[len(t.signals)-t.historySize:]
	}
	logger.Debugf("conviction signal: %s (confidence %.2f)", s.Action, s.Confidence)
}

// Confirmed reports whether the last minConsecutive signals all propose
// action with sufficient confidence.
func (t *Tracker) Confirmed(action oracle.Operation) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.signals) < t.minConsecutive {
		logger.Debugf("conviction: only %d/%d signals", len(t.signals), t.minConsecutive)
		return false
	}
	recent := t.signals[len(t.signals)-t.minConsecutive:]
	for _, s := range recent {
		if s.Action != action {
			logger.Debugf("conviction: mixed actions, want %s got %s", action, s.Action)
			return false
		}
		if s.Confidence < t.minConfidence {
			logger.Debugf("conviction: confidence %.2f below %.2f", s.Confidence, t.minConfidence)
			return false
		}
	}
	logger.Infof("conviction confirmed: %s over %d signals", action, len(recent))
	return true
}

// Clear drops the window, e.g. after a fill or a regime change.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.signals = nil
}

// Latest returns the newest signal, if any.
func (t *Tracker) Latest() (Signal, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.signals) == 0 {
		return Signal{}, false
	}
	return t.signals[len(t.signals)-1], true
}

// GuardEntry is the hallucination guard: the last line before an entry
// order. It blocks entries in a tight range, direction flips against an
// open position without a very strong explicit reversal, and any entry the
// conviction tracker has not confirmed.
func GuardEntry(p oracle.TradeProposal, inTightRange bool, position *exchange.Position, tracker *Tracker) (bool, string) {
	if !p.IsActionable() {
		return true, ""
	}

	if inTightRange {
		return false, "blocked: no new entries inside a tight trading range"
	}

	if position != nil {
		if p.Reversal {
			if p.ReversalStrength != "very_strong" {
				return false, fmt.Sprintf("blocked: reversal signal not strong enough (%s)", p.ReversalStrength)
			}
		} else if opposesPosition(p.Operation, position.Side) {
			return false, "blocked: cannot flip position without an explicit reversal signal"
		}
	}

	if tracker != nil && !tracker.Confirmed(p.Operation) {
		return false, "waiting for conviction, signal ignored"
	}
	return true, ""
}

func opposesPosition(op oracle.Operation, side exchange.Side) bool {
	return (side == exchange.Long && op == oracle.Sell) ||
		(side == exchange.Short && op == oracle.Buy)
}
