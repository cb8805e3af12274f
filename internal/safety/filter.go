package safety

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"talon/internal/logger"
	"talon/internal/market"
	"talon/internal/oracle"
)

// In a tight range the gate demands more of the setup before letting an
// entry through.
const (
	ttrMinSignalQuality = 8
	ttrMinSetupQuality  = 7
)

// Gate rejection reasons carry a bracketed tag naming the filter, so logs
// and notifications stay grep-able.
const (
	tagCooldown   = "[Cooldown]"
	tagDailyLimit = "[Daily Limit]"
	tagProb       = "[Probability]"
	tagQuality    = "[Signal Quality]"
	tagTTR        = "[TTR]"
	tagValidation = "[Validation]"
)

// GateConfig mirrors the filter section of the session config.
type GateConfig struct {
	Enabled          bool
	Cooldown         time.Duration
	MaxDailyTrades   int
	MinProbability   float64
	MinSignalQuality int
}

// GateState is the persisted slice of the gate: the trade clock and the
// daily counter survive restarts, the thresholds do not.
type GateState struct {
	LastTradeAt  time.Time `yaml:"last_trade_at"`
	TradesToday  int       `yaml:"trades_today"`
	DailyResetAt time.Time `yaml:"daily_reset_at"`
}

// Gate applies every entry filter to a proposal and demotes failures to
// Hold. All failing filters report, not just the first: a trade blocked by
// three rules should say so.
type Gate struct {
	mu       sync.Mutex
	cfg      GateConfig
	detector RangeDetector
	state    GateState
	nowFn    func() time.Time
}

func NewGate(cfg GateConfig, detector RangeDetector) *Gate {
	return &Gate{
		cfg:      cfg,
		detector: detector,
		state:    GateState{DailyResetAt: midnight(time.Now())},
		nowFn:    time.Now,
	}
}

// Apply runs every filter against an actionable proposal. The returned
// proposal is the input either untouched or demoted to Hold; the reasons
// list is empty exactly when the proposal passed.
func (g *Gate) Apply(p oracle.TradeProposal, candles []market.Candle) (oracle.TradeProposal, []string) {
	if !p.IsActionable() || !g.cfg.Enabled {
		return p, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.nowFn()
	g.rolloverLocked(now)

	var reasons []string

	if !g.state.LastTradeAt.IsZero() {
		elapsed := now.Sub(g.state.LastTradeAt)
		if elapsed < g.cfg.Cooldown {
			remaining := (g.cfg.Cooldown - elapsed).Round(time.Minute)
			reasons = append(reasons, fmt.Sprintf("%s %s remaining (minimum %s between trades)",
				tagCooldown, remaining, g.cfg.Cooldown))
		}
	}

	if g.cfg.MaxDailyTrades > 0 && g.state.TradesToday >= g.cfg.MaxDailyTrades {
		reasons = append(reasons, fmt.Sprintf("%s %d/%d trades today",
			tagDailyLimit, g.state.TradesToday, g.cfg.MaxDailyTrades))
	}

	if p.ProbabilityScore < g.cfg.MinProbability {
		reasons = append(reasons, fmt.Sprintf("%s score %.1f%% below %.1f%% threshold",
			tagProb, p.ProbabilityScore, g.cfg.MinProbability))
	}

	if p.SignalQuality < g.cfg.MinSignalQuality {
		reasons = append(reasons, fmt.Sprintf("%s signal bar %d/10 below %d/10 threshold",
			tagQuality, p.SignalQuality, g.cfg.MinSignalQuality))
	}

	if g.detector.IsTightRange(candles) {
		if p.SignalQuality < ttrMinSignalQuality {
			reasons = append(reasons, fmt.Sprintf("%s tight range, signal bar %d/10 insufficient (need %d+)",
				tagTTR, p.SignalQuality, ttrMinSignalQuality))
		} else if p.SetupQuality < ttrMinSetupQuality {
			reasons = append(reasons, fmt.Sprintf("%s tight range with mediocre setup %d/10 (need %d+)",
				tagTTR, p.SetupQuality, ttrMinSetupQuality))
		}
	}

	if reason := checkSelfValidation(p.SelfCheck); reason != "" {
		reasons = append(reasons, reason)
	}

	if len(reasons) == 0 {
		return p, nil
	}
	logger.Infof("trade filtered by %d rule(s): %s", len(reasons), strings.Join(reasons, "; "))
	return p.HoldWith(strings.Join(reasons, "; ")), reasons
}

// checkSelfValidation turns the oracle's own self-check into a gate reason.
// Three or more warnings reads as a likely hallucination even when the
// check itself passed.
func checkSelfValidation(sc oracle.SelfCheck) string {
	if !sc.Valid {
		errs := sc.Errors
		if len(errs) > 2 {
			errs = errs[:2]
		}
		return fmt.Sprintf("%s oracle self-check failed: %s", tagValidation, strings.Join(errs, "; "))
	}
	if len(sc.Warnings) >= 3 {
		return fmt.Sprintf("%s %d validation warnings, possible hallucination", tagValidation, len(sc.Warnings))
	}
	return ""
}

// RecordTrade advances the cooldown clock and the daily counter. Call after
// an order is actually placed, not merely proposed.
func (g *Gate) RecordTrade() {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.nowFn()
	g.rolloverLocked(now)
	g.state.LastTradeAt = now
	g.state.TradesToday++
	logger.Infof("trade recorded, %d/%d today", g.state.TradesToday, g.cfg.MaxDailyTrades)
}

func (g *Gate) rolloverLocked(now time.Time) {
	if now.Before(g.state.DailyResetAt.AddDate(0, 0, 1)) {
		return
	}
	if g.state.TradesToday > 0 {
		logger.Infof("new trading day, resetting counter (previous: %d trades)", g.state.TradesToday)
	}
	g.state.TradesToday = 0
	g.state.DailyResetAt = midnight(now)
}

// State returns a copy of the persisted slice.
func (g *Gate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rolloverLocked(g.nowFn())
	return g.state
}

// Restore installs previously persisted state, e.g. after a restart.
func (g *Gate) Restore(s GateState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s.DailyResetAt.IsZero() {
		s.DailyResetAt = midnight(g.nowFn())
	}
	g.state = s
}

// Reset clears counters, for admin use.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = GateState{DailyResetAt: midnight(g.nowFn())}
	logger.Infof("trade gate reset")
}

// CooldownRemaining reports how long until the cooldown filter clears.
func (g *Gate) CooldownRemaining() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state.LastTradeAt.IsZero() {
		return 0
	}
	remaining := g.cfg.Cooldown - g.nowFn().Sub(g.state.LastTradeAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
