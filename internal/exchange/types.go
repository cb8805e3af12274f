// Package exchange defines the client abstraction for the derivatives
// exchange plus the error taxonomy used by every caller. The engine treats
// the exchange as the authoritative, eventually-consistent source of truth.
package exchange

import "time"

// Side of a position.
type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Long {
		return Short
	}
	return Long
}

// OrderSide is the direction of an order ("buy"/"sell").
type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

// OrderType distinguishes how an order executes.
type OrderType string

const (
	Market     OrderType = "market"
	Limit      OrderType = "limit"
	StopMarket OrderType = "stop_market"
)

// Account is the margin account snapshot.
type Account struct {
	Equity     float64 // total equity incl. unrealized PnL
	Available  float64 // free margin
	UsedMargin float64
	UpdatedAt  time.Time
}

// Position is an exchange-reported open position.
type Position struct {
	Symbol        string
	Side          Side
	Size          float64
	EntryPrice    float64
	MarkPrice     float64
	UnrealizedPnL float64
	Leverage      float64
}

// Order is a placed or open order as the exchange reports it.
type Order struct {
	ID       string
	Symbol   string
	Side     OrderSide
	Type     OrderType
	Price    float64
	Amount   float64
	Filled   float64
	Status   OrderStatus
	PlacedAt time.Time
}

type OrderStatus string

const (
	OrderOpen     OrderStatus = "open"
	OrderFilled   OrderStatus = "filled"
	OrderCanceled OrderStatus = "canceled"
)

// OrderRequest carries every parameter place-order accepts. Price zero means
// market execution; stop/take-profit zero means not attached.
type OrderRequest struct {
	Symbol     string
	Side       OrderSide
	Type       OrderType
	Amount     float64
	Price      float64
	Leverage   int
	StopLoss   float64
	TakeProfit float64
	ReduceOnly bool
	ClientID   string
}
