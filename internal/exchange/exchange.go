package exchange

import (
	"context"
	"time"

	"talon/internal/market"
)

// Client is the synchronous exchange surface the engine consumes. Every call
// is a blocking network request bounded by the context deadline; failures are
// classified by IsRetryable before any caller decides to retry.
type Client interface {
	Name() string

	GetAccount(ctx context.Context) (Account, error)

	GetPositions(ctx context.Context) ([]Position, error)

	GetOpenOrders(ctx context.Context, symbol string) ([]Order, error)

	GetOrder(ctx context.Context, id, symbol string) (Order, error)

	PlaceOrder(ctx context.Context, req OrderRequest) (Order, error)

	CancelOrder(ctx context.Context, id, symbol string) error

	SetLeverage(ctx context.Context, symbol string, leverage int) error

	FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error)

	ServerTime(ctx context.Context) (time.Time, error)
}
