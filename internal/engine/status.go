package engine

import (
	"time"

	"talon/internal/exchange"
)

// StatusSnapshot is a point-in-time view of the session for the monitoring
// endpoints. All fields are copies; nothing aliases engine state.
type StatusSnapshot struct {
	RunID     string             `json:"run_id"`
	Symbol    string             `json:"symbol"`
	Timeframe string             `json:"timeframe"`
	Status    Status             `json:"status"`
	BarIndex  int                `json:"bar_index"`
	Halted    bool               `json:"halted"`
	Pending   *PendingOrder      `json:"pending_order,omitempty"`
	Position  *exchange.Position `json:"position,omitempty"`
	StopLoss  float64            `json:"stop_loss,omitempty"`

	TradingEnabled    bool          `json:"trading_enabled"`
	CooldownRemaining time.Duration `json:"cooldown_remaining"`
}

// Snapshot returns the current session state for monitoring.
func (e *Engine) Snapshot() StatusSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := StatusSnapshot{
		RunID:             e.runID,
		Symbol:            e.cfg.Session.Symbol,
		Timeframe:         e.cfg.Session.Timeframe,
		Status:            e.st.Status,
		BarIndex:          e.st.BarIndex,
		Halted:            e.halted,
		StopLoss:          e.st.Belief.StopLoss,
		TradingEnabled:    e.protector.State().TradingEnabled,
		CooldownRemaining: e.gate.CooldownRemaining(),
	}
	if e.st.Pending != nil {
		p := *e.st.Pending
		snap.Pending = &p
	}
	if e.st.Belief.Position != nil {
		p := *e.st.Belief.Position
		snap.Position = &p
	}
	return snap
}
