package config

func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = ":8787"
	}
	if c.Session.Timeframe == "" {
		c.Session.Timeframe = "1h"
	}
	if c.Session.ExecutionBufferMS <= 0 {
		c.Session.ExecutionBufferMS = 500
	}
	if c.Session.TimeSyncMinutes <= 0 {
		c.Session.TimeSyncMinutes = 60
	}
	if c.Session.HistoryBars <= 0 {
		c.Session.HistoryBars = 100
	}
	if c.Exchange.RESTBaseURL == "" {
		c.Exchange.RESTBaseURL = "https://fapi.binance.com"
	}
	if c.Exchange.TimeoutSeconds <= 0 {
		c.Exchange.TimeoutSeconds = 10
	}
	if c.Oracle.TimeoutSeconds <= 0 {
		c.Oracle.TimeoutSeconds = 60
	}
	if c.Risk.RiskPercent <= 0 {
		c.Risk.RiskPercent = 0.01
	}
	if c.Risk.MaxNotionalUSD <= 0 {
		c.Risk.MaxNotionalUSD = 5000
	}
	if c.Risk.Leverage <= 0 {
		c.Risk.Leverage = 20
	}
	if c.Filters.CooldownMinutes <= 0 {
		c.Filters.CooldownMinutes = 15
	}
	if c.Filters.MaxDailyTrades <= 0 {
		c.Filters.MaxDailyTrades = 5
	}
	if c.Filters.MinProbability <= 0 {
		c.Filters.MinProbability = 60
	}
	if c.Filters.MinSignalQuality <= 0 {
		c.Filters.MinSignalQuality = 6
	}
	if c.Protector.MaxDailyLossPct <= 0 {
		c.Protector.MaxDailyLossPct = 2.0
	}
	if c.Protector.MaxConsecutiveLosses <= 0 {
		c.Protector.MaxConsecutiveLosses = 3
	}
	if c.Protector.CooldownHours <= 0 {
		c.Protector.CooldownHours = 2
	}
	if c.Conviction.HistorySize <= 0 {
		c.Conviction.HistorySize = 3
	}
	if c.Conviction.MinConsecutive <= 0 {
		c.Conviction.MinConsecutive = 2
	}
	if c.Conviction.MinConfidence <= 0 {
		c.Conviction.MinConfidence = 0.7
	}
	if c.State.Path == "" {
		c.State.Path = "data/session_state.yaml"
	}
}
