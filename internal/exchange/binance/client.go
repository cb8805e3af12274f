// Package binance adapts Binance USDⓈ-M futures to the exchange.Client
// interface.
package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"talon/internal/exchange"
	"talon/internal/market"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
)

const maxKlineLimit = 1500

type Config struct {
	RESTBaseURL string
	APIKey      string
	APISecret   string
	HTTPTimeout time.Duration
}

type Client struct {
	api *futures.Client
}

func New(cfg Config) *Client {
	api := futures.NewClient(cfg.APIKey, cfg.APISecret)
	if base := strings.TrimSpace(cfg.RESTBaseURL); base != "" {
		api.BaseURL = base
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	api.HTTPClient = &http.Client{Timeout: timeout}
	return &Client{api: api}
}

func (c *Client) Name() string { return "binance-futures" }

// toExchangeSymbol strips the pair separator: "BTC/USDT" -> "BTCUSDT".
func toExchangeSymbol(symbol string) string {
	if i := strings.Index(symbol, ":"); i >= 0 {
		symbol = symbol[:i]
	}
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(symbol), "/", ""))
}

func (c *Client) GetAccount(ctx context.Context) (exchange.Account, error) {
	acct, err := c.api.NewGetAccountService().Do(ctx)
	if err != nil {
		return exchange.Account{}, classify(err)
	}
	return exchange.Account{
		Equity:     parseFloat(acct.TotalMarginBalance),
		Available:  parseFloat(acct.AvailableBalance),
		UsedMargin: parseFloat(acct.TotalInitialMargin),
		UpdatedAt:  time.Now().UTC(),
	}, nil
}

func (c *Client) GetPositions(ctx context.Context) ([]exchange.Position, error) {
	risks, err := c.api.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		return nil, classify(err)
	}
	out := make([]exchange.Position, 0, len(risks))
	for _, r := range risks {
		if r == nil {
			continue
		}
		amt := parseFloat(r.PositionAmt)
		if amt == 0 {
			continue
		}
		side := exchange.Long
		size := amt
		if amt < 0 {
			side = exchange.Short
			size = -amt
		}
		out = append(out, exchange.Position{
			Symbol:        r.Symbol,
			Side:          side,
			Size:          size,
			EntryPrice:    parseFloat(r.EntryPrice),
			MarkPrice:     parseFloat(r.MarkPrice),
			UnrealizedPnL: parseFloat(r.UnRealizedProfit),
			Leverage:      parseFloat(r.Leverage),
		})
	}
	return out, nil
}

func (c *Client) GetOpenOrders(ctx context.Context, symbol string) ([]exchange.Order, error) {
	svc := c.api.NewListOpenOrdersService()
	if symbol != "" {
		svc = svc.Symbol(toExchangeSymbol(symbol))
	}
	orders, err := svc.Do(ctx)
	if err != nil {
		return nil, classify(err)
	}
	out := make([]exchange.Order, 0, len(orders))
	for _, o := range orders {
		if o == nil {
			continue
		}
		out = append(out, convertOrder(o))
	}
	return out, nil
}

func (c *Client) GetOrder(ctx context.Context, id, symbol string) (exchange.Order, error) {
	orderID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return exchange.Order{}, exchange.Fatalf("invalid order id %q: %v", id, err)
	}
	o, err := c.api.NewGetOrderService().
		Symbol(toExchangeSymbol(symbol)).
		OrderID(orderID).
		Do(ctx)
	if err != nil {
		return exchange.Order{}, classify(err)
	}
	return convertOrder(o), nil
}

func (c *Client) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (exchange.Order, error) {
	symbol := toExchangeSymbol(req.Symbol)
	if req.Leverage > 0 {
		if err := c.SetLeverage(ctx, req.Symbol, req.Leverage); err != nil {
			return exchange.Order{}, err
		}
	}
	svc := c.api.NewCreateOrderService().
		Symbol(symbol).
		Side(toBinanceSide(req.Side)).
		Quantity(formatQty(req.Amount))
	switch req.Type {
	case exchange.Limit:
		svc = svc.Type(futures.OrderTypeLimit).
			Price(formatQty(req.Price)).
			TimeInForce(futures.TimeInForceTypeGTC)
	case exchange.StopMarket:
		svc = svc.Type(futures.OrderTypeStopMarket).StopPrice(formatQty(req.Price))
	default:
		svc = svc.Type(futures.OrderTypeMarket)
	}
	if req.ReduceOnly {
		svc = svc.ReduceOnly(true)
	}
	if req.ClientID != "" {
		svc = svc.NewClientOrderID(req.ClientID)
	}
	resp, err := svc.Do(ctx)
	if err != nil {
		return exchange.Order{}, classify(err)
	}
	placed := exchange.Order{
		ID:       strconv.FormatInt(resp.OrderID, 10),
		Symbol:   resp.Symbol,
		Side:     req.Side,
		Type:     req.Type,
		Price:    parseFloat(resp.Price),
		Amount:   parseFloat(resp.OrigQuantity),
		Filled:   parseFloat(resp.ExecutedQuantity),
		Status:   convertStatus(resp.Status),
		PlacedAt: time.UnixMilli(resp.UpdateTime).UTC(),
	}

	// Protective orders ride as separate reduce-only triggers; a failure
	// here must surface because an unprotected position is worse than no
	// position.
	if req.StopLoss > 0 {
		if err := c.placeTrigger(ctx, symbol, req.Side, futures.OrderTypeStopMarket, req.StopLoss); err != nil {
			return placed, err
		}
	}
	if req.TakeProfit > 0 {
		if err := c.placeTrigger(ctx, symbol, req.Side, futures.OrderTypeTakeProfitMarket, req.TakeProfit); err != nil {
			return placed, err
		}
	}
	return placed, nil
}

func (c *Client) placeTrigger(ctx context.Context, symbol string, entrySide exchange.OrderSide, kind futures.OrderType, price float64) error {
	_, err := c.api.NewCreateOrderService().
		Symbol(symbol).
		Side(toBinanceSide(opposite(entrySide))).
		Type(kind).
		StopPrice(formatQty(price)).
		ClosePosition(true).
		Do(ctx)
	if err != nil {
		return classify(err)
	}
	return nil
}

func (c *Client) CancelOrder(ctx context.Context, id, symbol string) error {
	orderID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return exchange.Fatalf("invalid order id %q: %v", id, err)
	}
	_, err = c.api.NewCancelOrderService().
		Symbol(toExchangeSymbol(symbol)).
		OrderID(orderID).
		Do(ctx)
	if err != nil {
		return classify(err)
	}
	return nil
}

func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	_, err := c.api.NewChangeLeverageService().
		Symbol(toExchangeSymbol(symbol)).
		Leverage(leverage).
		Do(ctx)
	if err != nil {
		return classify(err)
	}
	return nil
}

func (c *Client) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxKlineLimit {
		limit = maxKlineLimit
	}
	kls, err := c.api.NewKlinesService().
		Symbol(toExchangeSymbol(symbol)).
		Interval(strings.ToLower(strings.TrimSpace(interval))).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, classify(err)
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
		})
	}
	return out, nil
}

func (c *Client) ServerTime(ctx context.Context) (time.Time, error) {
	ms, err := c.api.NewServerTimeService().Do(ctx)
	if err != nil {
		return time.Time{}, classify(err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

func convertOrder(o *futures.Order) exchange.Order {
	side := exchange.Buy
	if o.Side == futures.SideTypeSell {
		side = exchange.Sell
	}
	kind := exchange.Market
	switch o.Type {
	case futures.OrderTypeLimit:
		kind = exchange.Limit
	case futures.OrderTypeStopMarket:
		kind = exchange.StopMarket
	}
	return exchange.Order{
		ID:       strconv.FormatInt(o.OrderID, 10),
		Symbol:   o.Symbol,
		Side:     side,
		Type:     kind,
		Price:    parseFloat(o.Price),
		Amount:   parseFloat(o.OrigQuantity),
		Filled:   parseFloat(o.ExecutedQuantity),
		Status:   convertStatus(o.Status),
		PlacedAt: time.UnixMilli(o.Time).UTC(),
	}
}

func convertStatus(s futures.OrderStatusType) exchange.OrderStatus {
	switch s {
	case futures.OrderStatusTypeFilled:
		return exchange.OrderFilled
	case futures.OrderStatusTypeCanceled, futures.OrderStatusTypeExpired:
		return exchange.OrderCanceled
	default:
		return exchange.OrderOpen
	}
}

func toBinanceSide(s exchange.OrderSide) futures.SideType {
	if s == exchange.Sell {
		return futures.SideTypeSell
	}
	return futures.SideTypeBuy
}

func opposite(s exchange.OrderSide) exchange.OrderSide {
	if s == exchange.Buy {
		return exchange.Sell
	}
	return exchange.Buy
}

// classify maps Binance API errors onto the retryable/fatal split. Transient
// codes: -1001 internal error, -1003 rate limit, -1007 service timeout,
// -1021 recv window (clock drift heals on the next sync).
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case -1001, -1003, -1007, -1021:
			return exchange.Retryable(err)
		}
		return exchange.Fatal(fmt.Errorf("binance api error %d: %s", apiErr.Code, apiErr.Message))
	}
	if exchange.IsRetryable(err) {
		return exchange.Retryable(err)
	}
	return err
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
