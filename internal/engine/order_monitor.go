package engine

import (
	"context"
	"fmt"
	"time"

	"talon/internal/exchange"
	"talon/internal/logger"
	"talon/internal/market"
	"talon/internal/notifier"
)

const expiredReason = "setup expired - not triggered within one candle"

// monitorPending enforces setup timeliness: an entry that has not filled by
// the close of the candle after placement is stale and gets canceled. The
// exchange is queried only once that much time has elapsed; before that the
// order just rests.
func (e *Engine) monitorPending(ctx context.Context, latest market.Candle, truth *exchange.Position) {
	pending := e.st.Pending
	elapsed := latest.ClosedAt().Sub(pending.PlacedAt)
	if elapsed < e.period {
		logger.Debugf("order %s still pending, elapsed %s of %s", pending.ID, elapsed.Round(time.Second), e.period)
		return
	}

	var order exchange.Order
	err := exchange.WithRetry(ctx, "query_order", exchange.DefaultAttempts, func(ctx context.Context) error {
		var err error
		order, err = e.ex.GetOrder(ctx, pending.ID, e.cfg.Session.Symbol)
		return err
	})
	if err != nil {
		logger.Errorf("query pending order %s: %v", pending.ID, err)
		return
	}

	switch order.Status {
	case exchange.OrderOpen:
		logger.Warnf("order %s unfilled after %s, canceling: %s", pending.ID, elapsed.Round(time.Second), expiredReason)
		if err := e.ex.CancelOrder(ctx, pending.ID, e.cfg.Session.Symbol); err != nil {
			logger.Errorf("cancel expired order %s: %v", pending.ID, err)
			return
		}
		// The entry's bracket triggers rest as separate orders; left behind
		// they would fire against a future position.
		e.cancelOpenOrders(ctx)
		e.audit.UpdateTradeStatus(pending.ID, "expired", 0, expiredReason)
		e.alerter.Send("Entry Order Expired",
			fmt.Sprintf("Order %s on %s canceled: %s", pending.ID, e.cfg.Session.Symbol, expiredReason),
			notifier.SeverityInfo)
		e.st.Pending = nil
		e.st.Status = StatusHunting

	case exchange.OrderFilled:
		e.adoptFill(ctx, pending, truth)

	case exchange.OrderCanceled:
		logger.Warnf("order %s was canceled externally", pending.ID)
		e.cancelOpenOrders(ctx)
		e.audit.UpdateTradeStatus(pending.ID, "expired", 0, "canceled externally")
		e.st.Pending = nil
		e.st.Status = StatusHunting
	}
}

// adoptFill switches to position management using the exchange's view of
// the fill, not the order we asked for. The believed stop comes from the
// pending bracket; the entry price comes from the exchange.
func (e *Engine) adoptFill(ctx context.Context, pending *PendingOrder, truth *exchange.Position) {
	if truth == nil {
		var err error
		truth, err = e.fetchPosition(ctx)
		if err != nil {
			logger.Errorf("order %s filled but position fetch failed: %v", pending.ID, err)
			return
		}
	}
	if truth == nil {
		logger.Errorf("order %s filled but no position found on exchange", pending.ID)
		e.cancelOpenOrders(ctx)
		e.audit.UpdateTradeStatus(pending.ID, "expired", 0, "filled but position missing")
		e.st.Pending = nil
		e.st.Status = StatusHunting
		return
	}

	pos := *truth
	initialRisk := pos.EntryPrice - pending.Stop
	if initialRisk < 0 {
		initialRisk = -initialRisk
	}
	e.st.Belief = Belief{
		Position:      &pos,
		StopLoss:      pending.Stop,
		TakeProfit:    pending.Target,
		InitialRisk:   initialRisk,
		EntryBarIndex: e.st.BarIndex,
	}
	e.st.Pending = nil
	e.st.Status = StatusManaging
	e.tracker.Clear()

	e.audit.UpdateTradeStatus(pending.ID, "filled", 0, "")
	e.alerter.Send("Entry Order Filled",
		fmt.Sprintf("%s %s filled @ %.4f, size %.6f\nStop: %.4f", pos.Side, e.cfg.Session.Symbol, pos.EntryPrice, pos.Size, pending.Stop),
		notifier.SeverityInfo)
	logger.Infof("order %s filled, managing %s position of %.6f @ %.4f", pending.ID, pos.Side, pos.Size, pos.EntryPrice)
}
