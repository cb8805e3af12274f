package engine

import (
	"testing"

	"talon/internal/exchange"
	"talon/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func longBelief() Belief {
	return Belief{
		Position: &exchange.Position{
			Symbol: "BTCUSDT", Side: exchange.Long, Size: 0.5, EntryPrice: 90000,
		},
		StopLoss:    89000,
		InitialRisk: 1000,
	}
}

func shortBelief() Belief {
	return Belief{
		Position: &exchange.Position{
			Symbol: "BTCUSDT", Side: exchange.Short, Size: 0.5, EntryPrice: 90000,
		},
		StopLoss:    91000,
		InitialRisk: 1000,
	}
}

func TestBreakevenAtOneTimesRisk(t *testing.T) {
	b := longBelief()

	// Unrealized 500 < risk 1000: nothing yet.
	mv := PlanStopMove(b, 90500, market.Candle{}, false)
	assert.Equal(t, MoveNone, mv.Kind)

	// Close at 91000 means 1000 unrealized, exactly 1x risk.
	mv = PlanStopMove(b, 91000, market.Candle{}, false)
	require.Equal(t, MoveBreakeven, mv.Kind)
	assert.Equal(t, 90000.0, mv.NewStop)
}

func TestBreakevenFiresOnce(t *testing.T) {
	b := longBelief()
	b.BreakevenLocked = true
	b.StopLoss = 90000

	// Already locked: even deep in profit, no second breakeven move.
	mv := PlanStopMove(b, 95000, market.Candle{}, false)
	assert.NotEqual(t, MoveBreakeven, mv.Kind)
}

func TestBreakevenDerivesRiskFromStop(t *testing.T) {
	b := longBelief()
	b.InitialRisk = 0 // imported position, risk from entry-stop distance

	mv := PlanStopMove(b, 91000, market.Candle{}, false)
	assert.Equal(t, MoveBreakeven, mv.Kind)
}

func TestTrailingOnlyTightens(t *testing.T) {
	b := longBelief()
	b.BreakevenLocked = true
	b.StopLoss = 90000

	mv := PlanStopMove(b, 92000, market.Candle{Low: 90500, High: 92100}, true)
	require.Equal(t, MoveTrailing, mv.Kind)
	assert.Equal(t, 90500.0, mv.NewStop)

	// A lower previous bar must not loosen the stop.
	b.StopLoss = 90500
	mv = PlanStopMove(b, 92000, market.Candle{Low: 90200, High: 92100}, true)
	assert.Equal(t, MoveNone, mv.Kind)
}

func TestTrailingShortFollowsHighs(t *testing.T) {
	b := shortBelief()
	b.BreakevenLocked = true
	b.StopLoss = 90000

	mv := PlanStopMove(b, 88000, market.Candle{High: 89200, Low: 87900}, true)
	require.Equal(t, MoveTrailing, mv.Kind)
	assert.Equal(t, 89200.0, mv.NewStop)

	b.StopLoss = 89200
	mv = PlanStopMove(b, 88000, market.Candle{High: 89500, Low: 87900}, true)
	assert.Equal(t, MoveNone, mv.Kind)
}

func TestStopHitUsesBarExtremes(t *testing.T) {
	long := longBelief()
	assert.True(t, StopHit(long, market.Candle{Low: 88990, High: 90500, Close: 90400}))
	assert.False(t, StopHit(long, market.Candle{Low: 89100, High: 90500, Close: 89200}))

	short := shortBelief()
	assert.True(t, StopHit(short, market.Candle{High: 91050, Low: 90000, Close: 90100}))
	assert.False(t, StopHit(short, market.Candle{High: 90900, Low: 90000, Close: 90800}))
}

func TestTargetHitPerSide(t *testing.T) {
	long := longBelief()
	long.TakeProfit = 93000
	assert.True(t, TargetHit(long, market.Candle{High: 93001, Low: 91000}))
	assert.False(t, TargetHit(long, market.Candle{High: 92900, Low: 91000}))

	short := shortBelief()
	short.TakeProfit = 87000
	assert.True(t, TargetHit(short, market.Candle{Low: 86999, High: 89000}))

	// No target configured: never hit.
	assert.False(t, TargetHit(longBelief(), market.Candle{High: 999999}))
}

func TestRealizedPnLSigns(t *testing.T) {
	assert.Equal(t, 500.0, RealizedPnL(longBelief(), 91000))
	assert.Equal(t, -500.0, RealizedPnL(longBelief(), 89000))
	assert.Equal(t, 500.0, RealizedPnL(shortBelief(), 89000))
	assert.Equal(t, -500.0, RealizedPnL(shortBelief(), 91000))
	assert.Zero(t, RealizedPnL(Belief{}, 100))
}
