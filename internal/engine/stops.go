package engine

import (
	"fmt"

	"talon/internal/exchange"
	"talon/internal/market"
)

// StopMoveKind names the dynamic stop rules.
type StopMoveKind string

const (
	MoveNone      StopMoveKind = ""
	MoveBreakeven StopMoveKind = "breakeven"
	MoveTrailing  StopMoveKind = "trailing"
)

// StopMove is a planned stop adjustment.
type StopMove struct {
	Kind    StopMoveKind
	NewStop float64
	Reason  string
}

// PlanStopMove decides whether the protective stop should move this bar.
// Pure function over the belief and the latest bars.
//
// Two rules, in order:
//  1. Breakeven: once unrealized profit at bar close reaches the initial
//     risk, the stop moves to entry. Fires once per position.
//  2. Bar-by-bar trailing: after breakeven is locked, the stop follows the
//     previous bar's low (long) or high (short), and only ever tightens.
func PlanStopMove(b Belief, lastClose float64, prevBar market.Candle, hasPrev bool) StopMove {
	if !b.HasPosition() || b.StopLoss <= 0 {
		return StopMove{}
	}
	pos := b.Position

	var unrealized, risk float64
	if pos.Side == exchange.Long {
		unrealized = lastClose - pos.EntryPrice
		risk = pos.EntryPrice - b.StopLoss
	} else {
		unrealized = pos.EntryPrice - lastClose
		risk = b.StopLoss - pos.EntryPrice
	}
	if b.InitialRisk > 0 {
		risk = b.InitialRisk
	}

	if !b.BreakevenLocked {
		if risk > 0 && unrealized >= risk {
			return StopMove{
				Kind:    MoveBreakeven,
				NewStop: pos.EntryPrice,
				Reason:  "breakeven - locked in 1x risk profit",
			}
		}
		return StopMove{}
	}

	if !hasPrev {
		return StopMove{}
	}
	if pos.Side == exchange.Long {
		if prevBar.Low > b.StopLoss {
			return StopMove{
				Kind:    MoveTrailing,
				NewStop: prevBar.Low,
				Reason:  fmt.Sprintf("bar-by-bar trailing (long): %.4f -> %.4f", b.StopLoss, prevBar.Low),
			}
		}
	} else {
		if prevBar.High < b.StopLoss {
			return StopMove{
				Kind:    MoveTrailing,
				NewStop: prevBar.High,
				Reason:  fmt.Sprintf("bar-by-bar trailing (short): %.4f -> %.4f", b.StopLoss, prevBar.High),
			}
		}
	}
	return StopMove{}
}

// StopHit reports whether the bar's range crossed the protective stop. The
// bar extreme is used, not the close: a wick through the stop is a hit.
func StopHit(b Belief, bar market.Candle) bool {
	if !b.HasPosition() || b.StopLoss <= 0 {
		return false
	}
	if b.Position.Side == exchange.Long {
		return bar.Low <= b.StopLoss
	}
	return bar.High >= b.StopLoss
}

// TargetHit reports whether the bar's range reached the take-profit level.
// The target is fixed at entry and never re-evaluated.
func TargetHit(b Belief, bar market.Candle) bool {
	if !b.HasPosition() || b.TakeProfit <= 0 {
		return false
	}
	if b.Position.Side == exchange.Long {
		return bar.High >= b.TakeProfit
	}
	return bar.Low <= b.TakeProfit
}

// RealizedPnL books the result of closing the believed position at price.
func RealizedPnL(b Belief, price float64) float64 {
	if !b.HasPosition() {
		return 0
	}
	pos := b.Position
	if pos.Side == exchange.Long {
		return (price - pos.EntryPrice) * pos.Size
	}
	return (pos.EntryPrice - price) * pos.Size
}
