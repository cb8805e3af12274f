// Package engine is the tick-driven supervisor: once per closed candle it
// routes the session through hunting, order monitoring or position
// management, with every transition logged and persisted.
package engine

import (
	"time"

	"talon/internal/exchange"
)

// Status is the session's operating mode. Exactly one is active at a time.
type Status string

const (
	StatusHunting      Status = "hunting"
	StatusOrderPending Status = "order_pending"
	StatusManaging     Status = "managing_position"
	StatusCooldown     Status = "cooldown"
	StatusHalted       Status = "halted"
)

// PendingOrder is an entry order that has been placed but not yet filled.
type PendingOrder struct {
	ID        string
	Side      exchange.Side
	Entry     float64
	Stop      float64
	Target    float64
	HasTarget bool
	Size      float64
	PlacedAt  time.Time
}

// Belief is what the engine thinks its position looks like. It is only ever
// trusted after reconciliation against the exchange.
type Belief struct {
	Position        *exchange.Position
	StopLoss        float64
	TakeProfit      float64
	StopOrderID     string
	BreakevenLocked bool
	InitialRisk     float64
	EntryBarIndex   int
}

// HasPosition reports whether the belief holds an open position.
func (b Belief) HasPosition() bool { return b.Position != nil }

// clearPosition drops every position-scoped field.
func (b *Belief) clearPosition() {
	*b = Belief{}
}

// SessionState is the complete mutable state of one trading session.
type SessionState struct {
	Status  Status
	Pending *PendingOrder
	Belief  Belief

	// BarIndex counts ticks since boot; used for trade-duration reporting.
	BarIndex int
}
