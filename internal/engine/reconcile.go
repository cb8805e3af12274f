package engine

import (
	"fmt"

	"talon/internal/exchange"
)

// Reconciliation tolerances. Sub-tolerance drift is float noise from the
// exchange, anything larger means the exchange wins.
const (
	sizeTolerance   = 0.0001
	entryTolerance  = 0.01
	marginWarnRatio = 0.8
)

// Alert is a human-facing reconciliation finding.
type Alert struct {
	Title    string
	Message  string
	Severity string
}

// ReconcileResult is the corrected belief plus everything a human should
// hear about. ForceHunting is set when the believed position turned out not
// to exist.
type ReconcileResult struct {
	Belief       Belief
	Alerts       []Alert
	ForceHunting bool
	Imported     bool
}

// Reconcile compares the engine's belief with the exchange's truth and
// returns the belief that survives. Pure function: no I/O, no clock, fully
// deterministic, which keeps every desync scenario unit-testable.
//
// The exchange is always right. A position we believe in but the exchange
// does not have is a critical desync that resets the session; a position the
// exchange has but we do not know is adopted and managed.
func Reconcile(belief Belief, truth *exchange.Position, account exchange.Account, barIndex int) ReconcileResult {
	res := ReconcileResult{Belief: belief}

	switch {
	case belief.HasPosition() && truth == nil:
		res.Alerts = append(res.Alerts, Alert{
			Title: "Position Desync - Missing on Exchange",
			Message: fmt.Sprintf("Believed %s position of %.6f is not on the exchange. Resetting to hunting.",
				belief.Position.Side, belief.Position.Size),
			Severity: "critical",
		})
		res.Belief.clearPosition()
		res.ForceHunting = true

	case !belief.HasPosition() && truth != nil:
		p := *truth
		res.Alerts = append(res.Alerts, Alert{
			Title: "Position Desync - Unexpected Position",
			Message: fmt.Sprintf("Exchange holds an untracked %s position of %.6f @ %.4f on %s. Importing.",
				p.Side, p.Size, p.EntryPrice, p.Symbol),
			Severity: "warning",
		})
		res.Belief = Belief{Position: &p, EntryBarIndex: barIndex}
		res.Imported = true

	case belief.HasPosition() && truth != nil:
		if diff := abs(truth.Size - belief.Position.Size); diff > sizeTolerance {
			res.Alerts = append(res.Alerts, Alert{
				Title:    "Position Size Mismatch",
				Message:  fmt.Sprintf("Believed size %.6f, exchange reports %.6f. Adopting exchange value.", belief.Position.Size, truth.Size),
				Severity: "warning",
			})
			res.Belief.Position.Size = truth.Size
		}
		res.Belief.Position.UnrealizedPnL = truth.UnrealizedPnL
		res.Belief.Position.MarkPrice = truth.MarkPrice
		if diff := abs(truth.EntryPrice - belief.Position.EntryPrice); diff > entryTolerance {
			res.Alerts = append(res.Alerts, Alert{
				Title:    "Entry Price Mismatch",
				Message:  fmt.Sprintf("Believed entry %.4f, exchange reports %.4f. Adopting exchange value.", belief.Position.EntryPrice, truth.EntryPrice),
				Severity: "warning",
			})
			res.Belief.Position.EntryPrice = truth.EntryPrice
		}
	}

	// Margin health is advisory only; it never changes the belief.
	if account.UsedMargin > 0 && account.Equity > 0 {
		if ratio := account.UsedMargin / account.Equity; ratio > marginWarnRatio {
			res.Alerts = append(res.Alerts, Alert{
				Title:    "High Margin Usage Warning",
				Message:  fmt.Sprintf("Margin ratio %.1f%%, close to liquidation risk.", ratio*100),
				Severity: "warning",
			})
		}
	}

	return res
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
