package config

import (
	"fmt"
	"strings"
)

func validate(c *Config) error {
	if strings.TrimSpace(c.Session.Symbol) == "" {
		return fmt.Errorf("session.symbol is required")
	}
	if !validTimeframe(c.Session.Timeframe) {
		return fmt.Errorf("session.timeframe %q is invalid (expected e.g. 15m, 1h, 4h, 1d)", c.Session.Timeframe)
	}
	if c.Risk.RiskPercent >= 0.1 {
		return fmt.Errorf("risk.risk_percent %.3f is a fraction of equity; values >= 0.1 risk 10%%+ per trade", c.Risk.RiskPercent)
	}
	if c.Risk.Leverage > 125 {
		return fmt.Errorf("risk.leverage %d exceeds exchange maximum", c.Risk.Leverage)
	}
	if c.Conviction.MinConsecutive > c.Conviction.HistorySize {
		return fmt.Errorf("conviction.min_consecutive (%d) cannot exceed history_size (%d)",
			c.Conviction.MinConsecutive, c.Conviction.HistorySize)
	}
	if strings.TrimSpace(c.Oracle.Endpoint) == "" {
		return fmt.Errorf("oracle.endpoint is required")
	}
	if c.Notify.Telegram.Enabled {
		if c.Notify.Telegram.BotToken == "" || c.Notify.Telegram.ChatID == "" {
			return fmt.Errorf("notify.telegram enabled but bot_token/chat_id missing")
		}
	}
	if !c.Exchange.DryRun && (c.Exchange.APIKey == "" || c.Exchange.APISecret == "") {
		return fmt.Errorf("exchange api_key/api_secret required unless dry_run is set")
	}
	return nil
}

func validTimeframe(tf string) bool {
	tf = strings.ToLower(strings.TrimSpace(tf))
	if len(tf) < 2 {
		return false
	}
	switch tf[len(tf)-1] {
	case 'm', 'h', 'd', 'w':
	default:
		return false
	}
	for _, r := range tf[:len(tf)-1] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
