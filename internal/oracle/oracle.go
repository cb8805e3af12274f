package oracle

import (
	"context"

	"talon/internal/exchange"
	"talon/internal/market"
)

// MarketView is everything the engine hands the oracle for one decision:
// closed candles, the indicator snapshot, and the account it trades.
type MarketView struct {
	Symbol     string
	Timeframe  string
	Candles    []market.Candle
	Indicators market.IndicatorSnapshot
	Account    exchange.Account
	Position   *exchange.Position
}

// StrategyOracle produces at most one trade proposal per invocation. The
// engine treats it as a black box: proposals pass the safety gate before
// anything touches the exchange.
type StrategyOracle interface {
	Name() string
	Propose(ctx context.Context, view MarketView) (TradeProposal, error)
}
