package engine

import (
	"context"
	"testing"
	"time"

	"talon/internal/config"
	"talon/internal/exchange"
	"talon/internal/market"
	"talon/internal/notifier"
	"talon/internal/oracle"
	"talon/internal/safety"
	"talon/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockExchange struct {
	mock.Mock
}

func (m *mockExchange) Name() string { return "mock" }

func (m *mockExchange) GetAccount(ctx context.Context) (exchange.Account, error) {
	args := m.Called(ctx)
	return args.Get(0).(exchange.Account), args.Error(1)
}

func (m *mockExchange) GetPositions(ctx context.Context) ([]exchange.Position, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]exchange.Position), args.Error(1)
}

func (m *mockExchange) GetOpenOrders(ctx context.Context, symbol string) ([]exchange.Order, error) {
	args := m.Called(ctx, symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]exchange.Order), args.Error(1)
}

func (m *mockExchange) GetOrder(ctx context.Context, id, symbol string) (exchange.Order, error) {
	args := m.Called(ctx, id, symbol)
	return args.Get(0).(exchange.Order), args.Error(1)
}

func (m *mockExchange) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (exchange.Order, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(exchange.Order), args.Error(1)
}

func (m *mockExchange) CancelOrder(ctx context.Context, id, symbol string) error {
	return m.Called(ctx, id, symbol).Error(0)
}

func (m *mockExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return m.Called(ctx, symbol, leverage).Error(0)
}

func (m *mockExchange) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	args := m.Called(ctx, symbol, interval, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]market.Candle), args.Error(1)
}

func (m *mockExchange) ServerTime(ctx context.Context) (time.Time, error) {
	args := m.Called(ctx)
	return args.Get(0).(time.Time), args.Error(1)
}

type mockOracle struct {
	mock.Mock
}

func (m *mockOracle) Name() string { return "mock-oracle" }

func (m *mockOracle) Propose(ctx context.Context, view oracle.MarketView) (oracle.TradeProposal, error) {
	args := m.Called(ctx, view)
	return args.Get(0).(oracle.TradeProposal), args.Error(1)
}

func newTestEngine(ex exchange.Client, strat oracle.StrategyOracle) *Engine {
	cfg := config.Config{}
	cfg.Session.Symbol = "BTC/USDT"
	cfg.Session.Timeframe = "1h"
	cfg.Session.HistoryBars = 10

	return New(Options{
		Config:    cfg,
		Exchange:  ex,
		Oracle:    strat,
		Gate:      safety.NewGate(safety.GateConfig{}, safety.NewRangeDetector(0, 0, 0)),
		Tracker:   safety.NewTracker(3, 2, 0.7),
		Protector: safety.NewProtector(safety.ProtectorConfig{MaxDailyLossPct: 2, MaxConsecutiveLosses: 3, Cooldown: time.Hour}, nil),
		Detector:  safety.NewRangeDetector(0, 0, 0),
		Alerter:   notifier.NewAlerter(),
		StateFile: state.NewFile(""),
		RunID:     "test-run",
		Period:    time.Hour,
	})
}

// closedCandles returns n bars that all closed well in the past, so none of
// them is dropped as in-progress.
func closedCandles(n int, price float64) []market.Candle {
	base := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	out := make([]market.Candle, n)
	for i := range out {
		open := base.Add(time.Duration(i) * time.Hour)
		out[i] = market.Candle{
			OpenTime:  open.UnixMilli(),
			CloseTime: open.Add(time.Hour).UnixMilli() - 1,
			Open:      price, High: price + 50, Low: price - 50, Close: price,
		}
	}
	return out
}

func pendingLong(placedAt time.Time) *PendingOrder {
	return &PendingOrder{
		ID:       "ord-1",
		Side:     exchange.Long,
		Entry:    90000,
		Stop:     89000,
		Size:     0.5,
		PlacedAt: placedAt,
	}
}

func TestPendingOrderRestsWithinOneCandle(t *testing.T) {
	ex := new(mockExchange)
	e := newTestEngine(ex, new(mockOracle))

	placed := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	e.st.Status = StatusOrderPending
	e.st.Pending = pendingLong(placed)

	// Latest candle closed 30m after placement: less than one period.
	latest := market.Candle{CloseTime: placed.Add(30 * time.Minute).UnixMilli()}
	e.monitorPending(context.Background(), latest, nil)

	ex.AssertNotCalled(t, "GetOrder", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, StatusOrderPending, e.st.Status)
	assert.NotNil(t, e.st.Pending)
}

func TestUnfilledOrderExpiresAfterOneCandle(t *testing.T) {
	ex := new(mockExchange)
	e := newTestEngine(ex, new(mockOracle))

	placed := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	e.st.Status = StatusOrderPending
	e.st.Pending = pendingLong(placed)

	ex.On("GetOrder", mock.Anything, "ord-1", "BTC/USDT").
		Return(exchange.Order{ID: "ord-1", Status: exchange.OrderOpen}, nil)
	ex.On("CancelOrder", mock.Anything, "ord-1", "BTC/USDT").Return(nil)
	// The bracket triggers placed with the entry must go too.
	ex.On("GetOpenOrders", mock.Anything, "BTC/USDT").
		Return([]exchange.Order{{ID: "stop-1"}, {ID: "tp-1"}}, nil)
	ex.On("CancelOrder", mock.Anything, "stop-1", "BTC/USDT").Return(nil)
	ex.On("CancelOrder", mock.Anything, "tp-1", "BTC/USDT").Return(nil)

	latest := market.Candle{CloseTime: placed.Add(time.Hour).UnixMilli()}
	e.monitorPending(context.Background(), latest, nil)

	ex.AssertExpectations(t)
	assert.Equal(t, StatusHunting, e.st.Status)
	assert.Nil(t, e.st.Pending)
}

func TestFilledOrderAdoptsExchangePosition(t *testing.T) {
	ex := new(mockExchange)
	e := newTestEngine(ex, new(mockOracle))

	placed := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	e.st.Status = StatusOrderPending
	e.st.Pending = pendingLong(placed)
	e.st.BarIndex = 12
	e.tracker.Add(safety.Signal{Action: oracle.Buy, Confidence: 0.9})

	ex.On("GetOrder", mock.Anything, "ord-1", "BTC/USDT").
		Return(exchange.Order{ID: "ord-1", Status: exchange.OrderFilled}, nil)

	// The exchange reports a slightly better fill than the limit price.
	truth := &exchange.Position{Symbol: "BTCUSDT", Side: exchange.Long, Size: 0.5, EntryPrice: 89990}
	latest := market.Candle{CloseTime: placed.Add(time.Hour).UnixMilli()}
	e.monitorPending(context.Background(), latest, truth)

	assert.Equal(t, StatusManaging, e.st.Status)
	assert.Nil(t, e.st.Pending)
	require.True(t, e.st.Belief.HasPosition())
	assert.Equal(t, 89990.0, e.st.Belief.Position.EntryPrice)
	assert.Equal(t, 89000.0, e.st.Belief.StopLoss)
	assert.InDelta(t, 990.0, e.st.Belief.InitialRisk, 1e-9)
	assert.Equal(t, 12, e.st.Belief.EntryBarIndex)

	// Conviction history resets for the next setup.
	_, ok := e.tracker.Latest()
	assert.False(t, ok)
}

func TestExternallyCanceledOrderReturnsToHunting(t *testing.T) {
	ex := new(mockExchange)
	e := newTestEngine(ex, new(mockOracle))

	placed := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	e.st.Status = StatusOrderPending
	e.st.Pending = pendingLong(placed)

	ex.On("GetOrder", mock.Anything, "ord-1", "BTC/USDT").
		Return(exchange.Order{ID: "ord-1", Status: exchange.OrderCanceled}, nil)
	ex.On("GetOpenOrders", mock.Anything, "BTC/USDT").
		Return([]exchange.Order{{ID: "stop-1"}}, nil)
	ex.On("CancelOrder", mock.Anything, "stop-1", "BTC/USDT").Return(nil)

	latest := market.Candle{CloseTime: placed.Add(2 * time.Hour).UnixMilli()}
	e.monitorPending(context.Background(), latest, nil)

	ex.AssertExpectations(t)
	assert.Equal(t, StatusHunting, e.st.Status)
	assert.Nil(t, e.st.Pending)
}

func TestHaltedTickTouchesNothing(t *testing.T) {
	ex := new(mockExchange)
	e := newTestEngine(ex, new(mockOracle))
	e.Halt()

	err := e.Tick(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StatusHalted, e.st.Status)
	ex.AssertNotCalled(t, "FetchCandles", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProtectorCooldownBlocksHunting(t *testing.T) {
	ex := new(mockExchange)
	strat := new(mockOracle)
	e := newTestEngine(ex, strat)

	// Blow the daily loss limit: 3% of equity in one trade.
	e.protector.RecordTradeResult(-300, 10000)

	ex.On("FetchCandles", mock.Anything, "BTC/USDT", "1h", 10).Return(closedCandles(10, 90000), nil)
	ex.On("GetAccount", mock.Anything).Return(exchange.Account{Equity: 10000, Available: 9000}, nil)
	ex.On("GetPositions", mock.Anything).Return([]exchange.Position{}, nil)

	err := e.Tick(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StatusCooldown, e.st.Status)
	strat.AssertNotCalled(t, "Propose", mock.Anything, mock.Anything)
}

func TestHoldProposalPlacesNoOrder(t *testing.T) {
	ex := new(mockExchange)
	strat := new(mockOracle)
	e := newTestEngine(ex, strat)

	ex.On("FetchCandles", mock.Anything, "BTC/USDT", "1h", 10).Return(closedCandles(10, 90000), nil)
	ex.On("GetAccount", mock.Anything).Return(exchange.Account{Equity: 10000, Available: 9000}, nil)
	ex.On("GetPositions", mock.Anything).Return([]exchange.Position{}, nil)
	strat.On("Propose", mock.Anything, mock.Anything).
		Return(oracle.TradeProposal{Operation: oracle.Hold, Rationale: "no setup"}, nil)

	err := e.Tick(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StatusHunting, e.st.Status)
	ex.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
}

func TestVanishedPositionForcesHuntingAndCancelsOrphans(t *testing.T) {
	ex := new(mockExchange)
	strat := new(mockOracle)
	e := newTestEngine(ex, strat)

	e.st.Status = StatusManaging
	e.st.Belief = Belief{
		Position:    &exchange.Position{Symbol: "BTCUSDT", Side: exchange.Long, Size: 0.5, EntryPrice: 90000},
		StopLoss:    89000,
		StopOrderID: "stop-1",
	}

	ex.On("FetchCandles", mock.Anything, "BTC/USDT", "1h", 10).Return(closedCandles(10, 90000), nil)
	ex.On("GetAccount", mock.Anything).Return(exchange.Account{Equity: 10000, Available: 9000}, nil)
	// Exchange says flat.
	ex.On("GetPositions", mock.Anything).Return([]exchange.Position{}, nil)
	ex.On("GetOpenOrders", mock.Anything, "BTC/USDT").
		Return([]exchange.Order{{ID: "stop-1", Symbol: "BTC/USDT"}}, nil)
	ex.On("CancelOrder", mock.Anything, "stop-1", "BTC/USDT").Return(nil)
	strat.On("Propose", mock.Anything, mock.Anything).
		Return(oracle.TradeProposal{Operation: oracle.Hold}, nil)

	err := e.Tick(context.Background())

	require.NoError(t, err)
	ex.AssertExpectations(t)
	assert.False(t, e.st.Belief.HasPosition())
	assert.Equal(t, StatusHunting, e.st.Status)
}

func TestPendingOrderQueryRetriesTransientFailure(t *testing.T) {
	ex := new(mockExchange)
	e := newTestEngine(ex, new(mockOracle))

	placed := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	e.st.Status = StatusOrderPending
	e.st.Pending = pendingLong(placed)

	ex.On("GetOrder", mock.Anything, "ord-1", "BTC/USDT").
		Return(exchange.Order{}, exchange.Retryablef("read: connection reset")).Once()
	ex.On("GetOrder", mock.Anything, "ord-1", "BTC/USDT").
		Return(exchange.Order{ID: "ord-1", Status: exchange.OrderOpen}, nil)
	ex.On("CancelOrder", mock.Anything, "ord-1", "BTC/USDT").Return(nil)
	ex.On("GetOpenOrders", mock.Anything, "BTC/USDT").Return([]exchange.Order{}, nil)

	latest := market.Candle{CloseTime: placed.Add(time.Hour).UnixMilli()}
	e.monitorPending(context.Background(), latest, nil)

	ex.AssertExpectations(t)
	assert.Equal(t, StatusHunting, e.st.Status)
}

func TestOpenBreakerOutranksPositionManagement(t *testing.T) {
	ex := new(mockExchange)
	e := newTestEngine(ex, new(mockOracle))

	// Blow the daily loss limit while a position is open.
	e.protector.RecordTradeResult(-300, 10000)

	pos := exchange.Position{Symbol: "BTCUSDT", Side: exchange.Long, Size: 0.5, EntryPrice: 90000}
	e.st.Status = StatusManaging
	e.st.Belief = Belief{Position: &pos, StopLoss: 89000, InitialRisk: 1000}

	// A close at 91500 would trigger a breakeven stop move if managed.
	ex.On("FetchCandles", mock.Anything, "BTC/USDT", "1h", 10).Return(closedCandles(10, 91500), nil)
	ex.On("GetAccount", mock.Anything).Return(exchange.Account{Equity: 10000, Available: 9000}, nil)
	ex.On("GetPositions", mock.Anything).Return([]exchange.Position{pos}, nil)

	require.NoError(t, e.Tick(context.Background()))

	assert.Equal(t, StatusCooldown, e.st.Status)
	ex.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
}

func TestBreakerLiftResumesManaging(t *testing.T) {
	ex := new(mockExchange)
	strat := new(mockOracle)
	e := newTestEngine(ex, strat)

	pos := exchange.Position{Symbol: "BTCUSDT", Side: exchange.Long, Size: 0.5, EntryPrice: 90000}
	e.st.Status = StatusCooldown
	e.st.Belief = Belief{Position: &pos, StopLoss: 89000, InitialRisk: 1000}

	ex.On("FetchCandles", mock.Anything, "BTC/USDT", "1h", 10).Return(closedCandles(10, 90200), nil)
	ex.On("GetAccount", mock.Anything).Return(exchange.Account{Equity: 10000, Available: 9000}, nil)
	ex.On("GetPositions", mock.Anything).Return([]exchange.Position{pos}, nil)

	require.NoError(t, e.Tick(context.Background()))

	assert.Equal(t, StatusManaging, e.st.Status)
	strat.AssertNotCalled(t, "Propose", mock.Anything, mock.Anything)
	ex.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
}

func TestNormalizeSymbol(t *testing.T) {
	assert.Equal(t, "BTCUSDT", normalizeSymbol("BTC/USDT"))
	assert.Equal(t, "BTCUSDT", normalizeSymbol("BTC/USDT:USDT"))
	assert.Equal(t, "ETHUSDT", normalizeSymbol("eth_usdt"))
	assert.Equal(t, "BTCUSDT", normalizeSymbol(" btc-usdt "))
}
