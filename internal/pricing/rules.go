package pricing

import (
	"errors"

	"talon/internal/exchange"
	"talon/internal/logger"
	"talon/internal/market"
	"talon/internal/oracle"
)

// Role says which order level a rule is resolving. Entry rules degrade to
// the current price when their bar reference is stale; stop and target
// rules never guess.
type Role string

const (
	RoleEntry  Role = "entry"
	RoleStop   Role = "stop"
	RoleTarget Role = "target"
)

// DefaultRiskMultiple is the reward multiple used when a risk_multiple rule
// leaves the factor unset.
const DefaultRiskMultiple = 1.5

// Input carries everything a single rule evaluation may read.
type Input struct {
	Series       market.Series
	Side         exchange.Side
	Role         Role
	CurrentPrice float64

	// EntryPrice and StopPrice are the already-resolved levels; required by
	// measured_move and risk_multiple rules.
	EntryPrice float64
	StopPrice  float64

	TickSize float64
}

// Levels is a fully resolved order: tick-rounded and internally consistent.
type Levels struct {
	Entry     float64
	Stop      float64
	Target    float64
	HasTarget bool
}

// Resolve evaluates a proposal's entry, stop and target rules in dependency
// order. Stop resolution sees the entry; target resolution sees both.
func Resolve(p oracle.TradeProposal, series market.Series, side exchange.Side, currentPrice float64) (Levels, error) {
	tick := TickSize(p.Symbol)
	in := Input{Series: series, Side: side, CurrentPrice: currentPrice, TickSize: tick}

	var out Levels
	var err error

	in.Role = RoleEntry
	out.Entry, err = Evaluate(*p.Entry, in)
	if err != nil {
		return Levels{}, err
	}

	in.Role = RoleStop
	in.EntryPrice = out.Entry
	out.Stop, err = Evaluate(*p.Stop, in)
	if err != nil {
		return Levels{}, err
	}

	if p.Target != nil {
		in.Role = RoleTarget
		in.StopPrice = out.Stop
		out.Target, err = Evaluate(*p.Target, in)
		if err != nil {
			return Levels{}, err
		}
		out.HasTarget = true
	}

	if err := checkLevels(out, side); err != nil {
		return Levels{}, err
	}
	return out, nil
}

// checkLevels rejects geometrically impossible orders before sizing sees
// them: stop on the wrong side of entry, or target behind entry.
func checkLevels(l Levels, side exchange.Side) error {
	switch side {
	case exchange.Long:
		if l.Stop >= l.Entry {
			return ruleErrf(ErrBadSpec, "stop", "long stop %.4f not below entry %.4f", l.Stop, l.Entry)
		}
		if l.HasTarget && l.Target <= l.Entry {
			return ruleErrf(ErrBadSpec, "target", "long target %.4f not above entry %.4f", l.Target, l.Entry)
		}
	case exchange.Short:
		if l.Stop <= l.Entry {
			return ruleErrf(ErrBadSpec, "stop", "short stop %.4f not above entry %.4f", l.Stop, l.Entry)
		}
		if l.HasTarget && l.Target >= l.Entry {
			return ruleErrf(ErrBadSpec, "target", "short target %.4f not below entry %.4f", l.Target, l.Entry)
		}
	}
	return nil
}

// Evaluate resolves one rule to a tick-rounded price. Offsets are applied
// after rounding so a "2 ticks beyond the high" rule lands exactly two grid
// steps out.
func Evaluate(rule oracle.RuleSpec, in Input) (float64, error) {
	role := string(in.Role)
	var base float64

	switch rule.Kind {
	case oracle.BarExtreme:
		c, err := in.Series.At(rule.BarIndex)
		if err != nil {
			if errors.Is(err, market.ErrIndexOutOfRange) && in.Role == RoleEntry {
				// Entry only: a stale bar reference degrades to a market
				// entry at the current price instead of killing the trade.
				logger.Warnf("entry rule bar index %d out of range, falling back to current price %.4f", rule.BarIndex, in.CurrentPrice)
				base = in.CurrentPrice
				break
			}
			return 0, ruleErrf(ErrInvalidIndex, role, "bar index %d out of range", rule.BarIndex)
		}
		base = barPrice(c, rule.Which)

	case oracle.PatternExtreme, oracle.SwingExtreme:
		window, err := in.Series.Slice(rule.StartBar, rule.EndBar)
		if err != nil {
			return 0, ruleErrf(ErrEmptyRange, role, "bar range [%d, %d] outside series", rule.StartBar, rule.EndBar)
		}
		high, low := market.HighLow(window)
		switch rule.Which {
		case oracle.Low:
			base = low
		case oracle.Close:
			base = window[len(window)-1].Close
		default:
			base = high
		}

	case oracle.MeasuredMove:
		if in.EntryPrice <= 0 {
			return 0, ruleErrf(ErrMissingInput, role, "measured_move requires a resolved entry")
		}
		window, err := in.Series.Slice(rule.StartBar, rule.EndBar)
		if err != nil {
			return 0, ruleErrf(ErrEmptyRange, role, "bar range [%d, %d] outside series", rule.StartBar, rule.EndBar)
		}
		high, low := market.HighLow(window)
		move := high - low
		if in.Side == exchange.Short {
			base = in.EntryPrice - move
		} else {
			base = in.EntryPrice + move
		}

	case oracle.RiskMultiple:
		if in.EntryPrice <= 0 || in.StopPrice <= 0 {
			return 0, ruleErrf(ErrMissingInput, role, "risk_multiple requires resolved entry and stop")
		}
		k := rule.RiskMultiple
		if k == 0 {
			k = DefaultRiskMultiple
		}
		risk := in.EntryPrice - in.StopPrice
		if risk < 0 {
			risk = -risk
		}
		if in.Side == exchange.Short {
			base = in.EntryPrice - k*risk
		} else {
			base = in.EntryPrice + k*risk
		}

	case oracle.FixedLevel:
		if rule.Price <= 0 {
			return 0, ruleErrf(ErrBadSpec, role, "fixed_level price must be positive")
		}
		base = rule.Price

	default:
		return 0, ruleErrf(ErrBadSpec, role, "unknown rule kind %q", rule.Kind)
	}

	price := RoundToTick(base, in.TickSize)
	price = applyOffset(price, base, rule, in.TickSize)
	if price <= 0 {
		return 0, ruleErrf(ErrBadSpec, role, "resolved price %.4f not positive", price)
	}
	return price, nil
}

// applyOffset nudges the rounded price beyond the referenced level. Low
// extremes shift down, high extremes shift up, so the offset always widens
// past the structure instead of into it. Close-based and level rules take
// the offset as signed.
func applyOffset(price, base float64, rule oracle.RuleSpec, tick float64) float64 {
	var delta float64
	switch {
	case rule.OffsetTicks != 0:
		delta = rule.OffsetTicks * tick
	case rule.OffsetPercent != 0:
		delta = base * rule.OffsetPercent / 100
	default:
		return price
	}
	switch rule.Which {
	case oracle.Low:
		return RoundToTick(price-delta, tick)
	case oracle.High:
		return RoundToTick(price+delta, tick)
	default:
		return RoundToTick(price+delta, tick)
	}
}

func barPrice(c market.Candle, which oracle.Extreme) float64 {
	switch which {
	case oracle.High:
		return c.High
	case oracle.Low:
		return c.Low
	default:
		return c.Close
	}
}
