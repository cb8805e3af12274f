// Package safety sits between the oracle and the exchange: the trade gate,
// the conviction tracker with its hallucination guard, and the equity
// protector. Nothing in this package places orders; it only says no.
package safety

import (
	"talon/internal/logger"
	"talon/internal/market"
)

// Tight-trading-range detection over the last 20 closed bars. Thresholds are
// empirical; the ratio cutoffs can be tuned per deployment, the window and
// directional-bar counts cannot.
const (
	ttrWindow          = 20
	ttrDirectionalBars = 14 // >70% of the window leaning one way reads as trend
	ttrDirectionalPct  = 0.5

	defaultTTRBodyRangeRatio = 0.25
	defaultTTRRangePricePct  = 0.25
	defaultTTRDriftPct       = 2.0

	ttrLooseBodyRatio = 0.3
	ttrLooseRangePct  = 1.0
)

// RangeDetector classifies a candle window as tight trading range or not.
type RangeDetector struct {
	BodyRangeRatio float64 // avg body / window range at or below this reads as TTR
	RangePricePct  float64 // window range / price at or below this reads as TTR
	DriftPct       float64 // net close-to-close drift above this reads as trend
}

// NewRangeDetector fills zero thresholds with the defaults.
func NewRangeDetector(bodyRangeRatio, rangePricePct, driftPct float64) RangeDetector {
	d := RangeDetector{BodyRangeRatio: bodyRangeRatio, RangePricePct: rangePricePct, DriftPct: driftPct}
	if d.BodyRangeRatio <= 0 {
		d.BodyRangeRatio = defaultTTRBodyRangeRatio
	}
	if d.RangePricePct <= 0 {
		d.RangePricePct = defaultTTRRangePricePct
	}
	if d.DriftPct <= 0 {
		d.DriftPct = defaultTTRDriftPct
	}
	return d
}

// IsTightRange reports whether the most recent bars form a tight trading
// range. Trend evidence is checked first: clear drift or a directional bar
// majority disqualifies the window before any compression test runs.
func (d RangeDetector) IsTightRange(candles []market.Candle) bool {
	if len(candles) < ttrWindow {
		return false
	}
	window := candles[len(candles)-ttrWindow:]

	high, low := market.HighLow(window)
	windowRange := high - low
	if windowRange == 0 {
		return true
	}

	firstClose := window[0].Close
	lastClose := window[len(window)-1].Close
	var driftPct float64
	if firstClose > 0 {
		driftPct = abs(lastClose-firstClose) / firstClose * 100
		if driftPct > d.DriftPct {
			logger.Debugf("not TTR: price drifted %.2f%%", driftPct)
			return false
		}
	}

	var bullish, bearish int
	for _, c := range window {
		switch {
		case c.Bullish():
			bullish++
		case c.Bearish():
			bearish++
		}
	}
	if (bullish > ttrDirectionalBars || bearish > ttrDirectionalBars) && driftPct > ttrDirectionalPct {
		logger.Debugf("not TTR: directional bias (bull %d, bear %d) with %.2f%% move", bullish, bearish, driftPct)
		return false
	}

	var bodySum float64
	for _, c := range window {
		bodySum += c.Body()
	}
	bodyRatio := bodySum / float64(len(window)) / windowRange
	if bodyRatio <= d.BodyRangeRatio {
		logger.Debugf("TTR: avg body %.2f%% of window range", bodyRatio*100)
		return true
	}

	if firstClose > 0 {
		rangePct := windowRange / firstClose * 100
		if rangePct <= d.RangePricePct || (bodyRatio <= ttrLooseBodyRatio && rangePct < ttrLooseRangePct) {
			logger.Debugf("TTR: window range %.2f%% of price", rangePct)
			return true
		}
	}
	return false
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
