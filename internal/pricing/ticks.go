package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// TickSize returns the price increment for a symbol. Matches the venue's
// USDⓈ-M contract grid for the majors; everything else gets a conservative
// sub-tick that never rounds a real level away.
func TickSize(symbol string) float64 {
	base := strings.ToUpper(symbol)
	if i := strings.IndexAny(base, "/:"); i >= 0 {
		base = base[:i]
	}
	switch base {
	case "BTC", "BTCUSDT":
		return 0.1
	case "ETH", "ETHUSDT":
		return 0.01
	default:
		return 0.0001
	}
}

// RoundToTick snaps price onto the tick grid, half away from zero. Done in
// decimal space: float64 division by 0.1 drifts enough to misplace a stop.
func RoundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	p := decimal.NewFromFloat(price)
	t := decimal.NewFromFloat(tick)
	return p.Div(t).Round(0).Mul(t).InexactFloat64()
}
