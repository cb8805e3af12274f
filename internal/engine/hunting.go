package engine

import (
	"context"
	"fmt"
	"strings"

	"talon/internal/exchange"
	"talon/internal/logger"
	"talon/internal/market"
	"talon/internal/notifier"
	"talon/internal/oracle"
	"talon/internal/pricing"
	"talon/internal/risk"
	"talon/internal/safety"

	"github.com/google/uuid"
)

// hunt runs the entry pipeline once: ask the oracle, pass the proposal
// through the gate and the hallucination guard, resolve prices, size, and
// place the order. Every rejection is logged and audited; only a fully
// cleared proposal touches the exchange.
func (e *Engine) hunt(ctx context.Context, series market.Series, account exchange.Account, latest market.Candle) {
	indicators, _ := market.Indicators(series)
	view := oracle.MarketView{
		Symbol:     e.cfg.Session.Symbol,
		Timeframe:  e.cfg.Session.Timeframe,
		Candles:    series.Candles(),
		Indicators: indicators,
		Account:    account,
		Position:   e.st.Belief.Position,
	}

	proposal, err := e.strat.Propose(ctx, view)
	if err != nil {
		logger.Errorf("oracle proposal failed: %v", err)
		e.audit.RecordEvent(e.runID, "oracle_error", "warning", err.Error())
		return
	}
	logger.Infof("oracle: %s %s (prob %.1f%%, signal %d/10, confidence %.2f)",
		proposal.Operation, proposal.Symbol, proposal.ProbabilityScore, proposal.SignalQuality, proposal.Confidence)

	e.tracker.Add(safety.Signal{
		Action:     proposal.Operation,
		Confidence: proposal.Confidence,
		Rationale:  proposal.Rationale,
	})

	gated, reasons := e.gate.Apply(proposal, series.Candles())
	if len(reasons) > 0 {
		e.recordDecision(proposal, false, reasons)
		return
	}
	if !gated.IsActionable() {
		logger.Debugf("oracle proposes hold, nothing to do")
		e.recordDecision(proposal, true, nil)
		return
	}

	inTTR := e.detector.IsTightRange(series.Candles())
	if ok, reason := safety.GuardEntry(gated, inTTR, e.st.Belief.Position, e.tracker); !ok {
		logger.Infof("hallucination guard: %s", reason)
		e.recordDecision(proposal, false, []string{reason})
		return
	}

	side := exchange.Long
	if gated.Operation == oracle.Sell {
		side = exchange.Short
	}

	levels, err := pricing.Resolve(gated, series, side, latest.Close)
	if err != nil {
		logger.Warnf("price resolution failed: %v", err)
		e.recordDecision(proposal, false, []string{"price resolution: " + err.Error()})
		return
	}

	riskPct := e.cfg.Risk.RiskPercent
	if gated.RiskPercent > 0 && gated.RiskPercent < riskPct {
		riskPct = gated.RiskPercent
	}
	sized, err := risk.Size(risk.Params{
		Equity:      account.Equity,
		Available:   account.Available,
		EntryPrice:  levels.Entry,
		StopPrice:   levels.Stop,
		RiskPercent: riskPct,
		MaxNotional: e.cfg.Risk.MaxNotionalUSD,
		Leverage:    e.cfg.Risk.Leverage,
	})
	if err != nil {
		logger.Warnf("sizing failed: %v", err)
		e.recordDecision(proposal, false, []string{"sizing: " + err.Error()})
		return
	}
	for _, adj := range sized.Adjustments {
		logger.Infof("sizing: %s", adj)
	}

	e.recordDecision(proposal, true, nil)
	e.placeEntry(ctx, side, levels, sized)
}

// placeEntry submits the limit entry with its protective bracket and moves
// the session to order_pending.
func (e *Engine) placeEntry(ctx context.Context, side exchange.Side, levels pricing.Levels, sized risk.Result) {
	orderSide := exchange.Buy
	if side == exchange.Short {
		orderSide = exchange.Sell
	}
	req := exchange.OrderRequest{
		Symbol:   e.cfg.Session.Symbol,
		Side:     orderSide,
		Type:     exchange.Limit,
		Price:    levels.Entry,
		Amount:   sized.Size,
		Leverage: e.cfg.Risk.Leverage,
		StopLoss: levels.Stop,
		ClientID: "talon-" + uuid.NewString()[:8],
	}
	if levels.HasTarget {
		req.TakeProfit = levels.Target
	}

	if e.cfg.Exchange.DryRun {
		logger.Infof("dry run: would place %s %s %.6f @ %.4f (stop %.4f)",
			orderSide, req.Symbol, req.Amount, req.Price, req.StopLoss)
		return
	}

	order, err := e.ex.PlaceOrder(ctx, req)
	if err != nil {
		logger.Errorf("place entry order failed: %v", err)
		e.alerter.Send("Order Placement Failed", err.Error(), notifier.SeverityWarning)
		e.audit.RecordEvent(e.runID, "order_error", "warning", err.Error())
		return
	}

	e.gate.RecordTrade()
	e.st.Pending = &PendingOrder{
		ID:        order.ID,
		Side:      side,
		Entry:     levels.Entry,
		Stop:      levels.Stop,
		Target:    levels.Target,
		HasTarget: levels.HasTarget,
		Size:      sized.Size,
		PlacedAt:  order.PlacedAt,
	}
	e.st.Status = StatusOrderPending
	e.audit.RecordTrade(e.runID, order.ID, e.cfg.Session.Symbol, string(side),
		levels.Entry, levels.Stop, levels.Target, sized.Size)

	lines := []string{
		fmt.Sprintf("%s %s", strings.ToUpper(string(side)), e.cfg.Session.Symbol),
		fmt.Sprintf("Entry: %.4f", levels.Entry),
		fmt.Sprintf("Stop: %.4f", levels.Stop),
	}
	if levels.HasTarget {
		lines = append(lines, fmt.Sprintf("Target: %.4f", levels.Target))
	}
	lines = append(lines, fmt.Sprintf("Size: %.6f (risk %.2f)", sized.Size, sized.RiskAmount))
	e.alerter.Send("Entry Order Placed", strings.Join(lines, "\n"), notifier.SeverityInfo)
	logger.Infof("entry order %s placed: %s %.6f @ %.4f stop %.4f", order.ID, side, sized.Size, levels.Entry, levels.Stop)
}

func (e *Engine) recordDecision(p oracle.TradeProposal, accepted bool, reasons []string) {
	e.audit.RecordDecision(e.runID, p.Symbol, string(p.Operation),
		p.ProbabilityScore, p.SignalQuality, p.Confidence, accepted, reasons, nil)
}
