// Package risk turns a resolved trade into a position size bounded by the
// account's risk budget, the notional cap and the available margin.
package risk

import (
	"errors"
	"fmt"
)

// marginSafety leaves headroom for fees and funding when sizing down to
// available margin.
const marginSafety = 0.95

var ErrZeroRiskDistance = errors.New("entry and stop are equal, cannot size position")

// Params are the inputs of one sizing pass.
type Params struct {
	Equity      float64
	Available   float64
	EntryPrice  float64
	StopPrice   float64
	RiskPercent float64 // fraction of equity risked, e.g. 0.01
	MaxNotional float64 // hard cap on position value, 0 disables
	Leverage    int
}

// Result is the sized position plus a record of every clamp applied, so the
// audit trail can show why a position is smaller than the raw risk budget.
type Result struct {
	Size        float64
	Notional    float64
	Margin      float64
	RiskAmount  float64
	Adjustments []string
}

// Size computes the position size. Risk budget first, then the notional cap,
// then margin feasibility; the notional cap is re-applied after a margin
// shrink so it always holds in the final result.
func Size(p Params) (Result, error) {
	if p.EntryPrice <= 0 {
		return Result{}, fmt.Errorf("entry price %.4f must be positive", p.EntryPrice)
	}
	if p.Equity <= 0 {
		return Result{}, fmt.Errorf("equity %.2f must be positive", p.Equity)
	}
	riskDist := p.EntryPrice - p.StopPrice
	if riskDist < 0 {
		riskDist = -riskDist
	}
	if riskDist == 0 {
		return Result{}, ErrZeroRiskDistance
	}
	leverage := p.Leverage
	if leverage <= 0 {
		leverage = 1
	}

	res := Result{RiskAmount: p.Equity * p.RiskPercent}
	res.Size = res.RiskAmount / riskDist

	res.Size = capNotional(&res, p, res.Size)

	margin := res.Size * p.EntryPrice / float64(leverage)
	if p.Available > 0 && margin > p.Available {
		shrunk := p.Available * marginSafety * float64(leverage) / p.EntryPrice
		res.Adjustments = append(res.Adjustments,
			fmt.Sprintf("margin %.2f exceeds available %.2f, size %.6f -> %.6f", margin, p.Available, res.Size, shrunk))
		res.Size = capNotional(&res, p, shrunk)
	}

	if res.Size <= 0 {
		return Result{}, fmt.Errorf("position size collapsed to zero after clamps")
	}
	res.Notional = res.Size * p.EntryPrice
	res.Margin = res.Notional / float64(leverage)
	return res, nil
}

func capNotional(res *Result, p Params, size float64) float64 {
	if p.MaxNotional <= 0 {
		return size
	}
	if size*p.EntryPrice <= p.MaxNotional {
		return size
	}
	capped := p.MaxNotional / p.EntryPrice
	res.Adjustments = append(res.Adjustments,
		fmt.Sprintf("notional %.2f exceeds cap %.2f, size %.6f -> %.6f", size*p.EntryPrice, p.MaxNotional, size, capped))
	return capped
}
