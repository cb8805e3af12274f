package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"talon/internal/audit"
	"talon/internal/config"
	"talon/internal/exchange"
	"talon/internal/logger"
	"talon/internal/market"
	"talon/internal/notifier"
	"talon/internal/oracle"
	"talon/internal/safety"
	"talon/internal/state"
)

// Options bundles the engine's collaborators.
type Options struct {
	Config    config.Config
	Exchange  exchange.Client
	Oracle    oracle.StrategyOracle
	Gate      *safety.Gate
	Tracker   *safety.Tracker
	Protector *safety.Protector
	Detector  safety.RangeDetector
	Alerter   *notifier.Alerter
	Audit     *audit.Store
	StateFile *state.File
	RunID     string
	Period    time.Duration
}

// Engine drives one symbol+timeframe session. Tick is called once per candle
// close by the scheduler; everything in here is synchronous and guarded by a
// single mutex, because a trading session has exactly one state.
type Engine struct {
	cfg       config.Config
	ex        exchange.Client
	strat     oracle.StrategyOracle
	gate      *safety.Gate
	tracker   *safety.Tracker
	protector *safety.Protector
	detector  safety.RangeDetector
	alerter   *notifier.Alerter
	audit     *audit.Store
	stateFile *state.File
	runID     string
	period    time.Duration

	mu     sync.Mutex
	st     SessionState
	halted bool
}

func New(opts Options) *Engine {
	return &Engine{
		cfg:       opts.Config,
		ex:        opts.Exchange,
		strat:     opts.Oracle,
		gate:      opts.Gate,
		tracker:   opts.Tracker,
		protector: opts.Protector,
		detector:  opts.Detector,
		alerter:   opts.Alerter,
		audit:     opts.Audit,
		stateFile: opts.StateFile,
		runID:     opts.RunID,
		period:    opts.Period,
		st:        SessionState{Status: StatusHunting},
	}
}

// Halt stops all trading activity until Resume. Position management is
// suspended too: halt means hands off the exchange entirely.
func (e *Engine) Halt() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.halted = true
	logger.Warnf("engine halted by admin")
	e.audit.RecordEvent(e.runID, "admin", "warning", "engine halted")
}

// Resume lifts a halt.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.halted = false
	logger.Warnf("engine resumed by admin")
	e.audit.RecordEvent(e.runID, "admin", "warning", "engine resumed")
}

// ForceEnable lifts the equity protector's breakers.
func (e *Engine) ForceEnable() {
	e.protector.ForceEnable()
	e.audit.RecordEvent(e.runID, "admin", "warning", "equity protector force-enabled")
}

// ResetGate clears the trade gate's cooldown and daily counter.
func (e *Engine) ResetGate() {
	e.gate.Reset()
	e.audit.RecordEvent(e.runID, "admin", "warning", "trade gate reset")
}

// Tick runs one full supervision pass at a candle boundary. Errors are
// internal failures worth surfacing to the caller's log; routine rejections
// (filtered trades, no-ops) are not errors.
func (e *Engine) Tick(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.st.BarIndex++

	if e.halted {
		e.st.Status = StatusHalted
		logger.Infof("tick %d: halted, skipping", e.st.BarIndex)
		return nil
	}
	if e.st.Status == StatusHalted {
		e.st.Status = StatusHunting
	}

	series, err := e.fetchSeries(ctx)
	if err != nil {
		return fmt.Errorf("fetch candles: %w", err)
	}
	latest, ok := series.Latest()
	if !ok {
		return fmt.Errorf("no closed candles for %s", e.cfg.Session.Symbol)
	}

	account, err := e.fetchAccount(ctx)
	if err != nil {
		return fmt.Errorf("fetch account: %w", err)
	}
	truth, err := e.fetchPosition(ctx)
	if err != nil {
		return fmt.Errorf("fetch positions: %w", err)
	}

	if e.st.Pending != nil {
		e.monitorPending(ctx, latest, truth)
	}

	if e.st.Status != StatusOrderPending {
		e.reconcile(ctx, truth, account)
	}

	// Cooldown outranks every other route: with the breaker open the tick
	// neither hunts nor manages, it only waits.
	if !e.protector.CanTrade() {
		e.st.Status = StatusCooldown
		logger.Infof("tick %d: equity protector active, standing down", e.st.BarIndex)
		e.persistLocked()
		return nil
	}

	switch e.st.Status {
	case StatusManaging:
		e.managePosition(ctx, series, account)
	case StatusOrderPending:
		// handled above
	default:
		if e.st.Belief.HasPosition() {
			// Breaker lifted with a position still open: resume managing.
			e.st.Status = StatusManaging
			e.managePosition(ctx, series, account)
		} else {
			e.st.Status = StatusHunting
			e.hunt(ctx, series, account, latest)
		}
	}

	e.persistLocked()
	return nil
}

func (e *Engine) fetchSeries(ctx context.Context) (market.Series, error) {
	var candles []market.Candle
	err := exchange.WithRetry(ctx, "fetch_candles", exchange.DefaultAttempts, func(ctx context.Context) error {
		var err error
		candles, err = e.ex.FetchCandles(ctx, e.cfg.Session.Symbol, e.cfg.Session.Timeframe, e.cfg.Session.HistoryBars)
		return err
	})
	if err != nil {
		return market.Series{}, err
	}
	closed := market.DropUnclosed(candles, e.period, time.Now())
	return market.NewSeries(closed), nil
}

func (e *Engine) fetchAccount(ctx context.Context) (exchange.Account, error) {
	var acct exchange.Account
	err := exchange.WithRetry(ctx, "fetch_account", exchange.DefaultAttempts, func(ctx context.Context) error {
		var err error
		acct, err = e.ex.GetAccount(ctx)
		return err
	})
	return acct, err
}

// fetchPosition returns the exchange's position for the session symbol, nil
// when flat.
func (e *Engine) fetchPosition(ctx context.Context) (*exchange.Position, error) {
	var positions []exchange.Position
	err := exchange.WithRetry(ctx, "fetch_positions", exchange.DefaultAttempts, func(ctx context.Context) error {
		var err error
		positions, err = e.ex.GetPositions(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	want := normalizeSymbol(e.cfg.Session.Symbol)
	for i := range positions {
		if normalizeSymbol(positions[i].Symbol) == want {
			return &positions[i], nil
		}
	}
	return nil, nil
}

func (e *Engine) reconcile(ctx context.Context, truth *exchange.Position, account exchange.Account) {
	res := Reconcile(e.st.Belief, truth, account, e.st.BarIndex)
	for _, a := range res.Alerts {
		logger.Warnf("reconcile: %s: %s", a.Title, a.Message)
		e.alerter.Send(a.Title, a.Message, a.Severity)
		e.audit.RecordEvent(e.runID, "reconcile", a.Severity, a.Title+": "+a.Message)
	}
	e.st.Belief = res.Belief

	if res.ForceHunting {
		// The position is gone; any protective orders left behind are
		// orphans and must not trigger against a future position.
		e.cancelOpenOrders(ctx)
		e.st.Status = StatusHunting
		return
	}
	if res.Imported {
		e.st.Status = StatusManaging
		return
	}
	if e.st.Status == StatusManaging && !e.st.Belief.HasPosition() {
		e.st.Status = StatusHunting
	}
}

// cancelOpenOrders best-effort clears every open order on the session
// symbol.
func (e *Engine) cancelOpenOrders(ctx context.Context) {
	orders, err := e.ex.GetOpenOrders(ctx, e.cfg.Session.Symbol)
	if err != nil {
		logger.Warnf("cancel open orders: list failed: %v", err)
		return
	}
	for _, o := range orders {
		if err := e.ex.CancelOrder(ctx, o.ID, e.cfg.Session.Symbol); err != nil {
			logger.Warnf("cancel order %s failed: %v", o.ID, err)
		}
	}
}

// managePosition runs the per-bar position routine: dynamic stops first,
// then the stop-hit check against the bar's range.
func (e *Engine) managePosition(ctx context.Context, series market.Series, account exchange.Account) {
	latest, ok := series.Latest()
	if !ok {
		return
	}

	prev, prevErr := series.At(-1)
	move := PlanStopMove(e.st.Belief, latest.Close, prev, prevErr == nil)
	if move.Kind != MoveNone {
		if e.updateStopOrder(ctx, move.NewStop) {
			old := e.st.Belief.StopLoss
			e.st.Belief.StopLoss = move.NewStop
			if move.Kind == MoveBreakeven {
				e.st.Belief.BreakevenLocked = true
			}
			logger.Infof("stop moved %.4f -> %.4f (%s)", old, move.NewStop, move.Reason)
			e.alerter.Send("Stop Moved", fmt.Sprintf("%.4f -> %.4f\n%s", old, move.NewStop, move.Reason), notifier.SeverityInfo)
			e.audit.RecordEvent(e.runID, "stop_moved", "info", move.Reason)
		}
	}

	switch {
	case StopHit(e.st.Belief, latest):
		logger.Warnf("stop loss hit at %.4f (bar low %.4f high %.4f)", e.st.Belief.StopLoss, latest.Low, latest.High)
		e.exitAtMarket(ctx, latest, account, "Stop Loss Hit", notifier.SeverityWarning)
	case TargetHit(e.st.Belief, latest):
		logger.Infof("target reached at %.4f (bar low %.4f high %.4f)", e.st.Belief.TakeProfit, latest.Low, latest.High)
		e.exitAtMarket(ctx, latest, account, "Target Reached", notifier.SeverityInfo)
	}
}

// updateStopOrder replaces the resting protective stop on the exchange.
func (e *Engine) updateStopOrder(ctx context.Context, newStop float64) bool {
	b := e.st.Belief
	if !b.HasPosition() {
		return false
	}
	if b.StopOrderID != "" {
		if err := e.ex.CancelOrder(ctx, b.StopOrderID, e.cfg.Session.Symbol); err != nil {
			logger.Warnf("cancel old stop order %s: %v", b.StopOrderID, err)
		}
	}
	side := exchange.Sell
	if b.Position.Side == exchange.Short {
		side = exchange.Buy
	}
	order, err := e.ex.PlaceOrder(ctx, exchange.OrderRequest{
		Symbol:     e.cfg.Session.Symbol,
		Side:       side,
		Type:       exchange.StopMarket,
		Price:      newStop,
		Amount:     b.Position.Size,
		ReduceOnly: true,
	})
	if err != nil {
		logger.Errorf("update stop order failed: %v", err)
		return false
	}
	e.st.Belief.StopOrderID = order.ID
	return true
}

// exitAtMarket closes the position, books the result into the protector and
// the audit trail, and returns the session to hunting.
func (e *Engine) exitAtMarket(ctx context.Context, bar market.Candle, account exchange.Account, reason, severity string) {
	b := e.st.Belief
	pos := b.Position

	side := exchange.Sell
	if pos.Side == exchange.Short {
		side = exchange.Buy
	}
	_, err := e.ex.PlaceOrder(ctx, exchange.OrderRequest{
		Symbol:     e.cfg.Session.Symbol,
		Side:       side,
		Type:       exchange.Market,
		Amount:     pos.Size,
		ReduceOnly: true,
	})
	if err != nil {
		logger.Errorf("market exit failed, will retry next tick: %v", err)
		return
	}
	e.cancelOpenOrders(ctx)

	pnl := RealizedPnL(b, bar.Close)
	duration := e.st.BarIndex - b.EntryBarIndex
	e.protector.RecordTradeResult(pnl, account.Equity)
	e.audit.RecordEvent(e.runID, "exit", "info",
		fmt.Sprintf("%s, pnl %.2f after %d bars", reason, pnl, duration))
	e.alerter.Send("Position Closed - "+reason,
		fmt.Sprintf("%s %s closed.\nPnL: %.2f\nDuration: %d bars", pos.Side, e.cfg.Session.Symbol, pnl, duration),
		severity)

	e.st.Belief.clearPosition()
	e.st.Status = StatusHunting
}

// persistLocked saves the restart-critical counters. Failure is logged, not
// fatal: the engine can rebuild most state from the exchange.
func (e *Engine) persistLocked() {
	snap := state.Snapshot{
		RunID:     e.runID,
		Gate:      e.gate.State(),
		Protector: e.protector.State(),
	}
	if err := e.stateFile.Save(snap); err != nil {
		logger.Warnf("persist session state: %v", err)
	}
}

func normalizeSymbol(s string) string {
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[:i]
	}
	s = strings.NewReplacer("/", "", "-", "", "_", "").Replace(s)
	return strings.ToUpper(strings.TrimSpace(s))
}
