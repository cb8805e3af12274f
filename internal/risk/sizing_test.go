package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeFromRiskBudget(t *testing.T) {
	res, err := Size(Params{
		Equity:      10000,
		Available:   10000,
		EntryPrice:  100,
		StopPrice:   98,
		RiskPercent: 0.01,
		MaxNotional: 1_000_000,
		Leverage:    20,
	})
	require.NoError(t, err)

	// risk 100, per-unit risk 2 -> 50 units.
	assert.InDelta(t, 100.0, res.RiskAmount, 1e-9)
	assert.InDelta(t, 50.0, res.Size, 1e-9)
	assert.Empty(t, res.Adjustments)
}

func TestSizeRejectsZeroRiskDistance(t *testing.T) {
	_, err := Size(Params{Equity: 10000, EntryPrice: 100, StopPrice: 100, RiskPercent: 0.01})
	assert.ErrorIs(t, err, ErrZeroRiskDistance)
}

func TestNotionalCap(t *testing.T) {
	res, err := Size(Params{
		Equity:      100000,
		Available:   100000,
		EntryPrice:  100,
		StopPrice:   99.9,
		RiskPercent: 0.01,
		MaxNotional: 5000,
		Leverage:    20,
	})
	require.NoError(t, err)

	assert.InDelta(t, 50.0, res.Size, 1e-9)
	assert.LessOrEqual(t, res.Notional, 5000.0+1e-9)
	require.Len(t, res.Adjustments, 1)
	assert.Contains(t, res.Adjustments[0], "notional")
}

func TestMarginShrinkKeepsInvariants(t *testing.T) {
	p := Params{
		Equity:      10000,
		Available:   100, // tight margin forces the shrink path
		EntryPrice:  100,
		StopPrice:   98,
		RiskPercent: 0.01,
		MaxNotional: 1_000_000,
		Leverage:    10,
	}
	res, err := Size(p)
	require.NoError(t, err)

	// (available * 0.95 * leverage) / entry = 9.5 units.
	assert.InDelta(t, 9.5, res.Size, 1e-9)
	assert.LessOrEqual(t, res.Margin, p.Available)
	assert.LessOrEqual(t, res.Notional, p.MaxNotional)
	require.NotEmpty(t, res.Adjustments)
	assert.Contains(t, res.Adjustments[0], "margin")
}

func TestNotionalCapThenMarginShrink(t *testing.T) {
	p := Params{
		Equity:      10000,
		Available:   100,
		EntryPrice:  100,
		StopPrice:   98,
		RiskPercent: 0.01,
		MaxNotional: 2000,
		Leverage:    10,
	}
	res, err := Size(p)
	require.NoError(t, err)

	// 50 units capped to 20 by notional, then shrunk to 9.5 by margin.
	assert.InDelta(t, 9.5, res.Size, 1e-9)
	assert.LessOrEqual(t, res.Notional, p.MaxNotional)
	assert.LessOrEqual(t, res.Margin, p.Available)
	assert.Len(t, res.Adjustments, 2)
}

func TestSizeRejectsBadInputs(t *testing.T) {
	_, err := Size(Params{Equity: 0, EntryPrice: 100, StopPrice: 98, RiskPercent: 0.01})
	assert.Error(t, err)

	_, err = Size(Params{Equity: 1000, EntryPrice: 0, StopPrice: 98, RiskPercent: 0.01})
	assert.Error(t, err)
}
