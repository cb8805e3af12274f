package safety

import (
	"fmt"
	"sync"
	"time"

	"talon/internal/logger"
)

// AlertFunc receives protector circuit-breaker notifications. Severity is
// "critical" or "warning".
type AlertFunc func(title, message, severity string)

// ProtectorConfig mirrors the protector section of the session config.
type ProtectorConfig struct {
	MaxDailyLossPct      float64
	MaxConsecutiveLosses int
	Cooldown             time.Duration
}

// ProtectorState is the persisted slice of the equity protector.
type ProtectorState struct {
	DailyPnL          float64   `yaml:"daily_pnl"`
	ConsecutiveLosses int       `yaml:"consecutive_losses"`
	TradingEnabled    bool      `yaml:"trading_enabled"`
	LastResetDay      time.Time `yaml:"last_reset_day"`
	CooldownUntil     time.Time `yaml:"cooldown_until"`
}

// Protector is the account-level circuit breaker. Two trips: a daily loss
// beyond the limit disables trading until the day rolls over, and a losing
// streak pauses it for a fixed cooldown. Both checks are lazy: CanTrade
// performs rollover and cooldown expiry, there is no background timer.
type Protector struct {
	mu    sync.Mutex
	cfg   ProtectorConfig
	state ProtectorState
	alert AlertFunc
	nowFn func() time.Time
}

func NewProtector(cfg ProtectorConfig, alert AlertFunc) *Protector {
	if cfg.MaxDailyLossPct <= 0 {
		cfg.MaxDailyLossPct = 2.0
	}
	if cfg.MaxConsecutiveLosses <= 0 {
		cfg.MaxConsecutiveLosses = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 2 * time.Hour
	}
	p := &Protector{cfg: cfg, alert: alert, nowFn: time.Now}
	p.state = ProtectorState{TradingEnabled: true, LastResetDay: dayOf(p.nowFn())}
	return p
}

// RecordTradeResult folds one closed trade into the daily PnL and the loss
// streak, then trips breakers if either limit is hit.
func (p *Protector) RecordTradeResult(pnl, equity float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state.DailyPnL += pnl
	if pnl < 0 {
		p.state.ConsecutiveLosses++
		logger.Warnf("loss #%d: %.2f", p.state.ConsecutiveLosses, pnl)
	} else {
		p.state.ConsecutiveLosses = 0
		logger.Infof("win: %.2f", pnl)
	}

	if p.state.DailyPnL < 0 && equity > 0 {
		lossPct := -p.state.DailyPnL / equity * 100
		if lossPct >= p.cfg.MaxDailyLossPct {
			logger.Errorf("circuit breaker: daily loss %.2f%% >= %.2f%%", lossPct, p.cfg.MaxDailyLossPct)
			p.state.TradingEnabled = false
			p.send("Daily Loss Limit Hit - Trading Stopped",
				fmt.Sprintf("Daily PnL: %.2f (%.2f%% of equity, limit %.2f%%). Trading disabled until tomorrow.",
					p.state.DailyPnL, lossPct, p.cfg.MaxDailyLossPct),
				"critical")
		}
	}

	if p.state.ConsecutiveLosses >= p.cfg.MaxConsecutiveLosses {
		until := p.nowFn().Add(p.cfg.Cooldown)
		logger.Warnf("%d consecutive losses, cooling down until %s", p.state.ConsecutiveLosses, until.Format(time.RFC3339))
		p.state.TradingEnabled = false
		p.state.CooldownUntil = until
		p.send(fmt.Sprintf("Consecutive Losses - %s Cooldown", p.cfg.Cooldown),
			fmt.Sprintf("Consecutive losses: %d. Recent PnL: %.2f. Trading paused until %s.",
				p.state.ConsecutiveLosses, p.state.DailyPnL, until.Format("2006-01-02 15:04")),
			"warning")
	}
}

// CanTrade reports whether new entries are permitted, applying day rollover
// and cooldown expiry as side effects.
func (p *Protector) CanTrade() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.nowFn()

	if dayOf(now).After(p.state.LastResetDay) {
		logger.Infof("daily reset: clearing PnL and enabling trading")
		p.state.DailyPnL = 0
		p.state.TradingEnabled = true
		p.state.LastResetDay = dayOf(now)
	}

	if !p.state.CooldownUntil.IsZero() && !now.Before(p.state.CooldownUntil) {
		logger.Infof("cooldown ended, resuming trading")
		p.state.TradingEnabled = true
		p.state.CooldownUntil = time.Time{}
	}

	return p.state.TradingEnabled
}

// ForceEnable lifts all breakers. Admin escape hatch.
func (p *Protector) ForceEnable() {
	p.mu.Lock()
	defer p.mu.Unlock()
	logger.Warnf("trading force-enabled by admin")
	p.state.TradingEnabled = true
	p.state.CooldownUntil = time.Time{}
}

// State returns a copy of the persisted slice.
func (p *Protector) State() ProtectorState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Restore installs previously persisted state.
func (p *Protector) Restore(s ProtectorState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.LastResetDay.IsZero() {
		s.LastResetDay = dayOf(p.nowFn())
		s.TradingEnabled = true
	}
	p.state = s
}

func (p *Protector) send(title, message, severity string) {
	if p.alert == nil {
		return
	}
	p.alert(title, message, severity)
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
