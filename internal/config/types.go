package config

// Config is the top-level configuration for a talon trading session.
type Config struct {
	App        AppConfig        `toml:"app"`
	Session    SessionConfig    `toml:"session"`
	Exchange   ExchangeConfig   `toml:"exchange"`
	Oracle     OracleConfig     `toml:"oracle"`
	Risk       RiskConfig       `toml:"risk"`
	Filters    FilterConfig     `toml:"filters"`
	Protector  ProtectorConfig  `toml:"protector"`
	Conviction ConvictionConfig `toml:"conviction"`
	Notify     NotifyConfig     `toml:"notify"`
	Audit      AuditConfig      `toml:"audit"`
	State      StateConfig      `toml:"state"`
	Control    ControlConfig    `toml:"control"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
	HTTPAddr string `toml:"http_addr"`
}

// SessionConfig pins one symbol+timeframe trading session.
type SessionConfig struct {
	Symbol            string `toml:"symbol"`    // e.g. "BTC/USDT"
	Timeframe         string `toml:"timeframe"` // "15m", "1h", "4h", ...
	ExecutionBufferMS int    `toml:"execution_buffer_ms"`
	TimeSyncMinutes   int    `toml:"time_sync_minutes"`
	HistoryBars       int    `toml:"history_bars"`
	RunImmediately    bool   `toml:"run_immediately"`
}

type ExchangeConfig struct {
	RESTBaseURL    string `toml:"rest_base_url"`
	APIKey         string `toml:"api_key"`
	APISecret      string `toml:"api_secret"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	DryRun         bool   `toml:"dry_run"`
}

// OracleConfig points at the external decision service.
type OracleConfig struct {
	Endpoint       string `toml:"endpoint"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type RiskConfig struct {
	RiskPercent    float64 `toml:"risk_percent"`     // fraction of equity risked per trade
	MaxNotionalUSD float64 `toml:"max_notional_usd"` // cap on size*entry
	Leverage       int     `toml:"leverage"`
}

type FilterConfig struct {
	Enabled          bool    `toml:"enabled"`
	CooldownMinutes  int     `toml:"cooldown_minutes"`
	MaxDailyTrades   int     `toml:"max_daily_trades"`
	MinProbability   float64 `toml:"min_probability"`    // 0-100
	MinSignalQuality int     `toml:"min_signal_quality"` // 0-10

	// Tight-trading-range heuristic overrides. Zero means package default.
	TTRBodyRangeRatio float64 `toml:"ttr_body_range_ratio"`
	TTRRangePricePct  float64 `toml:"ttr_range_price_pct"`
	TTRDriftPct       float64 `toml:"ttr_drift_pct"`
}

type ProtectorConfig struct {
	MaxDailyLossPct      float64 `toml:"max_daily_loss_pct"`
	MaxConsecutiveLosses int     `toml:"max_consecutive_losses"`
	CooldownHours        int     `toml:"cooldown_hours"`
}

type ConvictionConfig struct {
	HistorySize    int     `toml:"history_size"`
	MinConsecutive int     `toml:"min_consecutive"`
	MinConfidence  float64 `toml:"min_confidence"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

type AuditConfig struct {
	Path string `toml:"path"` // sqlite file, empty disables the sink
}

type StateConfig struct {
	Path string `toml:"path"` // persisted filter/equity counters
}

type ControlConfig struct {
	Path string `toml:"path"` // watched admin control file, empty disables
}
